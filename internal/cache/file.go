package cache

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/duskline/reconforge/internal/record"
)

// FileStore is a directory-based backend: one file per (target,
// provider) fingerprint, written via a temp-file-plus-rename so a
// reader never observes a partially written entry. A missing or
// corrupt file is a cache miss, not an error, per §6.4.
type FileStore struct {
	dir string
	mu  sync.Mutex
	// index tracks fingerprint -> (target, provider) so Clear(pattern)
	// can match on the original strings without reading every file.
	index map[string]string
}

// NewFileStore builds a file-backed store rooted at dir, creating it
// if necessary.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, err
	}
	fs := &FileStore{dir: dir, index: make(map[string]string)}
	fs.rebuildIndex()
	return fs, nil
}

func (f *FileStore) rebuildIndex() {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return
	}
	for _, de := range entries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(f.dir, de.Name()))
		if err != nil {
			continue
		}
		var e Entry
		if err := json.Unmarshal(data, &e); err != nil {
			continue
		}
		fp := strings.TrimSuffix(de.Name(), ".json")
		f.index[fp] = e.Target + "\x00" + e.Provider
	}
}

func (f *FileStore) path(fingerprint string) string {
	return filepath.Join(f.dir, fingerprint+".json")
}

func (f *FileStore) Get(ctx context.Context, target, provider string, maxAge time.Duration) (*Entry, bool, error) {
	fp := key(target, provider)
	data, err := os.ReadFile(f.path(fp))
	if err != nil {
		return nil, false, nil
	}
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false, nil
	}
	if entry.Expired(time.Now(), maxAge) {
		return nil, false, nil
	}
	return &entry, true, nil
}

func (f *FileStore) Put(ctx context.Context, target, provider string, rec *record.Record, ttl time.Duration) error {
	fp := key(target, provider)
	entry := &Entry{
		Target:     target,
		Provider:   provider,
		Record:     rec,
		Timestamp:  time.Now(),
		TTLSeconds: int(ttl.Seconds()),
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	tmp, err := os.CreateTemp(f.dir, fp+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, f.path(fp)); err != nil {
		os.Remove(tmpName)
		return err
	}
	f.index[fp] = target + "\x00" + provider
	return nil
}

func (f *FileStore) Invalidate(ctx context.Context, target, provider string) error {
	fp := key(target, provider)
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.index, fp)
	err := os.Remove(f.path(fp))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (f *FileStore) Clear(ctx context.Context, pattern string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for fp, tp := range f.index {
		if pattern == "" || strings.Contains(tp, pattern) {
			os.Remove(f.path(fp))
			delete(f.index, fp)
		}
	}
	return nil
}

func (f *FileStore) Stats() Stats {
	f.mu.Lock()
	defer f.mu.Unlock()
	var total int64
	entries, err := os.ReadDir(f.dir)
	if err == nil {
		for _, de := range entries {
			if info, err := de.Info(); err == nil {
				total += info.Size()
			}
		}
	}
	return Stats{Entries: len(f.index), Bytes: total}
}
