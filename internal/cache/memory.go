package cache

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/duskline/reconforge/internal/record"
)

// MemoryStore is the default single-process cache backend: a bounded
// LRU keyed by the (target, provider) fingerprint, with staleness
// checked against each entry's timestamp at read time.
type MemoryStore struct {
	cache *lru.Cache[string, *Entry]
	mu    sync.RWMutex
	// targets tracks target/provider back from a fingerprint
	// so Clear(pattern) can match against the original strings instead
	// of the opaque hash.
	targets map[string]string
	bytes   int64
}

// NewMemoryStore builds an in-memory store bounded to size entries.
// Eviction beyond size is least-recently-used, exactly as
// hashicorp/golang-lru/v2 implements it.
func NewMemoryStore(size int) (*MemoryStore, error) {
	if size <= 0 {
		size = 10000
	}
	c, err := lru.New[string, *Entry](size)
	if err != nil {
		return nil, err
	}
	return &MemoryStore{cache: c, targets: make(map[string]string)}, nil
}

func (m *MemoryStore) Get(ctx context.Context, target, provider string, maxAge time.Duration) (*Entry, bool, error) {
	k := key(target, provider)
	m.mu.RLock()
	entry, ok := m.cache.Get(k)
	m.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if entry.Expired(time.Now(), maxAge) {
		return nil, false, nil
	}
	return entry, true, nil
}

func (m *MemoryStore) Put(ctx context.Context, target, provider string, rec *record.Record, ttl time.Duration) error {
	k := key(target, provider)
	entry := &Entry{
		Target:     target,
		Provider:   provider,
		Record:     rec,
		Timestamp:  time.Now(),
		TTLSeconds: int(ttl.Seconds()),
	}
	m.mu.Lock()
	evicted := m.cache.Add(k, entry)
	m.targets[k] = target + "\x00" + provider
	m.mu.Unlock()
	atomic.AddInt64(&m.bytes, approximateSize(entry))
	if evicted {
		// LRU already dropped its own oldest entry; targets map entry for
		// it is harmlessly stale until overwritten or GC'd on Clear.
		_ = evicted
	}
	return nil
}

func (m *MemoryStore) Invalidate(ctx context.Context, target, provider string) error {
	k := key(target, provider)
	m.mu.Lock()
	m.cache.Remove(k)
	delete(m.targets, k)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Clear(ctx context.Context, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if pattern == "" {
		m.cache.Purge()
		m.targets = make(map[string]string)
		atomic.StoreInt64(&m.bytes, 0)
		return nil
	}
	for k, tp := range m.targets {
		if strings.Contains(tp, pattern) {
			m.cache.Remove(k)
			delete(m.targets, k)
		}
	}
	return nil
}

func (m *MemoryStore) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Stats{
		Entries: m.cache.Len(),
		Bytes:   atomic.LoadInt64(&m.bytes),
	}
}

// approximateSize is a rough byte estimate used only for Stats; the
// cache never enforces a byte budget, only an entry-count one.
func approximateSize(e *Entry) int64 {
	size := int64(len(e.Target) + len(e.Provider) + 64)
	if e.Record != nil {
		size += int64(len(e.Record.Source) + len(e.Record.Target))
		for _, ip := range e.Record.Resolved.IP.Values() {
			size += int64(len(ip))
		}
	}
	return size
}
