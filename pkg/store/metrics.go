package store

import (
	"io/fs"
	"path/filepath"
)

// Metrics is a compact operational view of the store.
type Metrics struct {
	DiskBytes uint64 `json:"disk_bytes"`
	Keys      uint64 `json:"keys"`
}

// GetMetrics returns best-effort metrics about the underlying database:
// total on-disk size of the DB directory and the number of stored keys.
func GetMetrics() Metrics {
	var m Metrics
	if db == nil || dbPath == "" {
		return m
	}
	_ = filepath.WalkDir(dbPath, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if fi, err := d.Info(); err == nil {
			m.DiskBytes += uint64(fi.Size())
		}
		return nil
	})
	iter, err := db.NewIter(nil)
	if err != nil {
		return m
	}
	defer iter.Close()
	for iter.First(); iter.Valid(); iter.Next() {
		m.Keys++
	}
	return m
}
