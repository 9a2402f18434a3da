package cache

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	store, err := NewFileStore(filepath.Join(t.TempDir(), "cache"))
	require.NoError(t, err)
	return store
}

func readAll(t *testing.T, store *FileStore, key Key) []byte {
	t.Helper()
	entry, err := store.Read(key)
	require.NoError(t, err)
	defer entry.Body.Close()

	data, err := io.ReadAll(entry.Body)
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), entry.Size)
	return data
}

func TestNewFileStore_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, dir, store.Dir())
}

func TestFileStore_Missing(t *testing.T) {
	store := newTestStore(t)
	key := DeriveKey("https://example.test/missing.png", 8, 400, 400)

	assert.False(t, store.Exists(key))

	_, err := store.Read(key)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestFileStore_PublishAndRead(t *testing.T) {
	store := newTestStore(t)
	key := DeriveKey("https://example.test/a.png", 4, 10, 10)
	data := []byte("\x89PNG fake payload")

	before := time.Now().Add(-time.Second)
	require.NoError(t, store.Publish(key, data))

	assert.True(t, store.Exists(key))

	entry, err := store.Read(key)
	require.NoError(t, err)
	defer entry.Body.Close()

	assert.Equal(t, key, entry.Key)
	assert.Equal(t, int64(len(data)), entry.Size)
	assert.True(t, entry.ModTime.After(before))

	got, err := io.ReadAll(entry.Body)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	_, err = os.Stat(filepath.Join(store.Dir(), string(key)+".png"))
	assert.NoError(t, err)
}

func TestFileStore_PublishLeavesNoTempFiles(t *testing.T) {
	store := newTestStore(t)
	key := DeriveKey("https://example.test/a.png", 4, 10, 10)

	require.NoError(t, store.Publish(key, []byte("one")))
	require.NoError(t, store.Publish(key, []byte("one")))

	matches, err := filepath.Glob(filepath.Join(store.Dir(), "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, matches)

	entries, err := os.ReadDir(store.Dir())
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFileStore_PublishedFileIsWorldReadable(t *testing.T) {
	store := newTestStore(t)
	key := DeriveKey("https://example.test/a.png", 4, 10, 10)
	require.NoError(t, store.Publish(key, []byte("x")))

	info, err := os.Stat(filepath.Join(store.Dir(), string(key)+".png"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0644), info.Mode().Perm())
}

func TestFileStore_PublishError(t *testing.T) {
	store := newTestStore(t)
	key := DeriveKey("https://example.test/a.png", 4, 10, 10)

	require.NoError(t, os.RemoveAll(store.Dir()))

	err := store.Publish(key, []byte("data"))
	require.Error(t, err)

	var storageErr *StorageError
	require.True(t, errors.As(err, &storageErr))
	assert.Equal(t, "create", storageErr.Op)
	assert.Equal(t, key, storageErr.Key)
	assert.False(t, store.Exists(key))
}

func TestFileStore_ConcurrentPublish(t *testing.T) {
	store := newTestStore(t)
	key := DeriveKey("https://example.test/big.png", 16, 1000, 1000)
	data := bytes.Repeat([]byte("0123456789abcdef"), 64*1024) // 1 MiB

	const writers = 8
	const readers = 4

	var wg sync.WaitGroup
	done := make(chan struct{})
	readErrs := make(chan error, readers)

	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}

				entry, err := store.Read(key)
				if errors.Is(err, ErrNotFound) {
					continue
				}
				if err != nil {
					readErrs <- err
					return
				}
				got, err := io.ReadAll(entry.Body)
				entry.Body.Close()
				if err != nil {
					readErrs <- err
					return
				}
				if !bytes.Equal(got, data) {
					readErrs <- errors.New("reader observed a partial entry")
					return
				}
			}
		}()
	}

	var pubWG sync.WaitGroup
	pubErrs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		pubWG.Add(1)
		go func() {
			defer pubWG.Done()
			pubErrs <- store.Publish(key, data)
		}()
	}
	pubWG.Wait()
	close(done)
	wg.Wait()

	close(pubErrs)
	for err := range pubErrs {
		require.NoError(t, err)
	}
	close(readErrs)
	for err := range readErrs {
		require.NoError(t, err)
	}

	assert.Equal(t, data, readAll(t, store, key))

	matches, err := filepath.Glob(filepath.Join(store.Dir(), "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, g.Write(&m))
	return m.GetGauge().GetValue()
}

func TestFileStore_ConcurrentFirstPublishCountsOnce(t *testing.T) {
	store := newTestStore(t)
	key := DeriveKey("https://example.test/count.png", 8, 64, 64)
	data := bytes.Repeat([]byte{0x42}, 4096)

	entriesBefore := gaugeValue(t, CacheEntries)
	sizeBefore := gaugeValue(t, CacheSize)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, store.Publish(key, data))
		}()
	}
	wg.Wait()

	require.NoError(t, store.Publish(key, data))

	assert.Equal(t, entriesBefore+1, gaugeValue(t, CacheEntries))
	assert.Equal(t, sizeBefore+float64(len(data)), gaugeValue(t, CacheSize))
}

func TestFileStore_PublishAfterScanDoesNotRecount(t *testing.T) {
	store := newTestStore(t)
	key := DeriveKey("https://example.test/scanned.png", 8, 64, 64)
	data := []byte("png bytes")
	require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), string(key)+entryExt), data, 0644))

	_, err := store.Scan(zap.NewNop())
	require.NoError(t, err)
	entriesBefore := gaugeValue(t, CacheEntries)

	require.NoError(t, store.Publish(key, data))

	assert.Equal(t, entriesBefore, gaugeValue(t, CacheEntries))
}
