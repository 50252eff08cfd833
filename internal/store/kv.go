// Package store persists the reading log in a key-value backend.
package store

import (
	"errors"
	"fmt"
	"path/filepath"
)

// ErrCorrupt marks a persisted value that could not be decoded.
var ErrCorrupt = errors.New("corrupt stored data")

// KV is a persisted string key-value store.
type KV interface {
	// Get returns the value for key and whether it exists.
	Get(key string) (string, bool, error)
	// Set replaces the value for key.
	Set(key, value string) error
	// Close releases the backend.
	Close() error
}

// OpenKV opens the backend named by kind ("file" or "sqlite") at path.
func OpenKV(kind, path string) (KV, error) {
	switch kind {
	case "file", "":
		return OpenFileKV(path)
	case "sqlite":
		if filepath.Ext(path) == "" {
			path = filepath.Join(path, "blesync.db")
		}
		return OpenSQLiteKV(path)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", kind)
	}
}
