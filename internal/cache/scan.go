package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// ScanResult summarizes the cache directory after a Scan
type ScanResult struct {
	Entries    int
	Bytes      int64
	TmpRemoved int
}

// Scan walks the cache directory once at startup. Temporary files are
// leftovers of publishes interrupted by a crash and are deleted; complete
// entries are counted. Files not produced by the store are left alone.
func (s *FileStore) Scan(log *zap.Logger) (*ScanResult, error) {
	entries, err := os.ReadDir(s.cacheDir)
	if err != nil {
		CacheErrors.WithLabelValues("scan").Inc()
		return nil, fmt.Errorf("failed to read cache directory: %w", err)
	}

	result := &ScanResult{}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		path := filepath.Join(s.cacheDir, name)

		switch filepath.Ext(name) {
		case tmpExt:
			if err := os.Remove(path); err != nil {
				log.Warn("Failed to delete orphaned temp file", zap.String("path", path), zap.Error(err))
				continue
			}
			log.Info("Deleted orphaned temp file", zap.String("path", path))
			result.TmpRemoved++

		case entryExt:
			key := Key(strings.TrimSuffix(name, entryExt))
			if !key.Valid() {
				log.Debug("Ignoring foreign file in cache directory", zap.String("path", path))
				continue
			}

			info, err := entry.Info()
			if err != nil {
				log.Warn("Error getting file info", zap.String("path", path), zap.Error(err))
				continue
			}
			s.counted.Store(key, struct{}{})
			result.Entries++
			result.Bytes += info.Size()
		}
	}

	CacheEntries.Set(float64(result.Entries))
	CacheSize.Set(float64(result.Bytes))

	return result, nil
}
