package cache

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

const (
	entryExt = ".png"
	tmpExt   = ".tmp"
)

// FileStore keeps entries in a flat directory.
// Structure: {cacheDir}/{key}.png, with {key}-{random}.tmp used while publishing.
//
// There is no lock around the directory: Publish renames a fully written
// temporary file into place, so readers never see a partial entry.
type FileStore struct {
	cacheDir string
	// counted holds keys already added to the entry gauges.
	counted sync.Map
}

func NewFileStore(cacheDir string) (*FileStore, error) {
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	return &FileStore{
		cacheDir: cacheDir,
	}, nil
}

// Dir returns the directory backing the store
func (s *FileStore) Dir() string {
	return s.cacheDir
}

func (s *FileStore) buildFilePath(key Key) string {
	return filepath.Join(s.cacheDir, string(key)+entryExt)
}

func (s *FileStore) Exists(key Key) bool {
	info, err := os.Stat(s.buildFilePath(key))
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}

func (s *FileStore) Read(key Key) (*Entry, error) {
	f, err := os.Open(s.buildFilePath(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		CacheErrors.WithLabelValues("read").Inc()
		return nil, &StorageError{Op: "read", Key: key, Err: err}
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		CacheErrors.WithLabelValues("read").Inc()
		return nil, &StorageError{Op: "stat", Key: key, Err: err}
	}

	return &Entry{
		Key:     key,
		Size:    info.Size(),
		ModTime: info.ModTime(),
		Body:    f,
	}, nil
}

func (s *FileStore) Publish(key Key, data []byte) error {
	if err := s.publish(key, data); err != nil {
		CacheErrors.WithLabelValues("publish").Inc()
		return err
	}
	return nil
}

func (s *FileStore) publish(key Key, data []byte) error {
	filePath := s.buildFilePath(key)
	existed := s.Exists(key)

	// Every writer gets its own temporary file, so concurrent publishers of
	// the same key never interleave writes.
	tmp, err := os.CreateTemp(s.cacheDir, string(key)+"-*"+tmpExt)
	if err != nil {
		return &StorageError{Op: "create", Key: key, Err: err}
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return &StorageError{Op: "write", Key: key, Err: err}
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return &StorageError{Op: "sync", Key: key, Err: err}
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return &StorageError{Op: "close", Key: key, Err: err}
	}

	if err := os.Chmod(tmpPath, 0644); err != nil {
		os.Remove(tmpPath)
		return &StorageError{Op: "chmod", Key: key, Err: err}
	}

	if err := os.Rename(tmpPath, filePath); err != nil {
		os.Remove(tmpPath)
		return &StorageError{Op: "rename", Key: key, Err: err}
	}

	if _, loaded := s.counted.LoadOrStore(key, struct{}{}); !existed && !loaded {
		CacheEntries.Inc()
		CacheSize.Add(float64(len(data)))
	}

	return nil
}
