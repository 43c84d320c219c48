// Command inspect dumps the contents of a pressbot store for debugging.
package main

import (
	"flag"
	"fmt"
	"os"

	"pressbot/pkg/store"
)

func main() {
	var path, prefix string
	flag.StringVar(&path, "db", "", "path to the pebble store directory")
	flag.StringVar(&prefix, "prefix", "", "only dump keys under this prefix")
	flag.Parse()
	if path == "" {
		fmt.Fprintln(os.Stderr, "--db required")
		os.Exit(2)
	}
	if err := store.Open(path); err != nil {
		fmt.Fprintf(os.Stderr, "open store: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	keys, err := store.List(prefix)
	if err != nil {
		fmt.Fprintf(os.Stderr, "list keys: %v\n", err)
		os.Exit(1)
	}
	for _, k := range keys {
		v, err := store.Get(k)
		if err != nil {
			fmt.Fprintf(os.Stderr, "get %s: %v\n", k, err)
			continue
		}
		fmt.Printf("%s\t%s\n", k, v)
	}
	fmt.Fprintf(os.Stderr, "%d keys\n", len(keys))
}
