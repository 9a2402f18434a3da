package cache

import (
	"errors"
	"fmt"
	"io"
	"time"
)

// ErrNotFound is returned by Read when no complete entry exists for a key
var ErrNotFound = errors.New("cache entry not found")

// Entry is an open cached PNG. Callers must close Body.
type Entry struct {
	Key     Key
	Size    int64
	ModTime time.Time
	Body    io.ReadCloser
}

// Store maps keys to immutable PNG blobs
type Store interface {
	Exists(key Key) bool
	Read(key Key) (*Entry, error)
	// Publish makes data visible under key in a single step. Readers see
	// either the previous state or the complete new blob.
	Publish(key Key, data []byte) error
}

// StorageError reports a failed cache I/O operation
type StorageError struct {
	Op  string
	Key Key
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("cache %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
