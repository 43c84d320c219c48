package store

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/cockroachdb/pebble"

	"pressbot/pkg/logger"
)

var (
	db     *pebble.DB
	dbPath string

	// rmwMu serializes read-modify-write cycles in GetAndSet. The process is
	// the sole owner of the database, so a process-local lock is sufficient.
	rmwMu sync.Mutex
)

// ErrNotFound is returned when a path has no stored value.
var ErrNotFound = errors.New("store: path not found")

// Open opens (or creates) a Pebble database at the given path and keeps a
// global handle for simple usage in this package.
func Open(path string) error {
	var err error
	logger.Info("opening_pebble_db", "path", path)
	db, err = pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Error("pebble_open_failed", "path", path, "error", err)
		return err
	}
	dbPath = path
	logger.Info("pebble_opened", "path", path)
	return nil
}

// Close closes the opened pebble DB if present.
func Close() error {
	if db == nil {
		return nil
	}
	if err := db.Close(); err != nil {
		return err
	}
	db = nil
	dbPath = ""
	logger.Info("pebble_closed")
	return nil
}

// Ready reports whether the store is opened and ready.
func Ready() bool {
	return db != nil
}

func notOpened() error {
	return fmt.Errorf("pebble not opened; call store.Open first")
}

// Get returns the raw value stored at path, or ErrNotFound.
func Get(path string) ([]byte, error) {
	if db == nil {
		return nil, notOpened()
	}
	v, closer, err := db.Get([]byte(path))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrNotFound
		}
		logger.Error("get_path_failed", "path", path, "error", err)
		return nil, err
	}
	out := append([]byte(nil), v...)
	if closer != nil {
		_ = closer.Close()
	}
	return out, nil
}

// Set stores value at path, creating or overwriting it.
func Set(path string, value []byte) error {
	if db == nil {
		return notOpened()
	}
	if err := db.Set([]byte(path), value, pebble.Sync); err != nil {
		logger.Error("set_path_failed", "path", path, "error", err)
		return err
	}
	logger.Debug("set_path_ok", "path", path, "len", len(value))
	return nil
}

// Delete removes the value at path. Deleting an absent path is a no-op.
func Delete(path string) error {
	if db == nil {
		return notOpened()
	}
	if err := db.Delete([]byte(path), pebble.Sync); err != nil {
		logger.Error("delete_path_failed", "path", path, "error", err)
		return err
	}
	logger.Debug("delete_path_ok", "path", path)
	return nil
}

// Has reports whether a value exists at path.
func Has(path string) (bool, error) {
	_, err := Get(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return false, err
}

// List returns all paths under the given prefix. A trailing separator is
// appended when missing so "a/b" never matches "a/bc". Iteration order is
// the store's byte order; callers must not depend on it.
func List(prefix string) ([]string, error) {
	if db == nil {
		return nil, notOpened()
	}
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	pfx := []byte(prefix)
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []string
	for iter.SeekGE(pfx); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), pfx) {
			break
		}
		k := append([]byte(nil), iter.Key()...)
		out = append(out, string(k))
	}
	return out, iter.Error()
}

// DeleteAll removes every path under the given prefix.
func DeleteAll(prefix string) error {
	keys, err := List(prefix)
	if err != nil {
		return err
	}
	for _, k := range keys {
		if err := Delete(k); err != nil {
			return err
		}
	}
	return nil
}

// GetAndSet atomically transforms the value stored at path. The transform
// receives nil when the path is absent and its return value is written back
// in the same critical section. No other GetAndSet can interleave.
func GetAndSet(path string, transform func([]byte) ([]byte, error)) error {
	if db == nil {
		return notOpened()
	}
	rmwMu.Lock()
	defer rmwMu.Unlock()
	cur, err := Get(path)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	next, err := transform(cur)
	if err != nil {
		return err
	}
	return Set(path, next)
}
