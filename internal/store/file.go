package store

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
)

// FileKV stores each key as a file in a directory.
type FileKV struct {
	baseDir string
}

// OpenFileKV opens or creates a file store at the given directory.
func OpenFileKV(dir string) (*FileKV, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage dir: %w", err)
	}
	return &FileKV{baseDir: dir}, nil
}

// Path returns the storage directory.
func (f *FileKV) Path() string {
	return f.baseDir
}

// Get reads the file for key.
func (f *FileKV) Get(key string) (string, bool, error) {
	data, err := os.ReadFile(f.keyPath(key))
	if os.IsNotExist(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return string(data), true, nil
}

// Set writes value to a temp file and renames it over the key's file, so a
// crash mid-write leaves the previous value intact.
func (f *FileKV) Set(key, value string) error {
	dest := f.keyPath(key)
	tmp := dest + ".tmp"

	if err := os.WriteFile(tmp, []byte(value), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace %s: %w", key, err)
	}
	return nil
}

// Close is a no-op.
func (f *FileKV) Close() error {
	return nil
}

func (f *FileKV) keyPath(key string) string {
	return filepath.Join(f.baseDir, url.PathEscape(key)+".json")
}
