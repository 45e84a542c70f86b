// Package ratelimit implements the per-provider token buckets described
// in §4.C: continuous refill, fractional tokens capped at capacity, and
// FIFO servicing of waiters on the same bucket. It is built on
// golang.org/x/time/rate the way the teacher's internal/ratelimit
// package wraps the same library, since rate.Limiter already gives
// lock-ordered (hence FIFO) reservations and honors context
// cancellation for free.
package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Config describes one provider's bucket.
type Config struct {
	// Capacity is the maximum number of tokens the bucket can hold.
	Capacity int
	// RefillRate is tokens added per second.
	RefillRate float64
}

// Bucket is a single provider's token bucket. The zero value is not
// usable; construct with NewBucket.
type Bucket struct {
	limiter *rate.Limiter
	cfg     Config

	mu       sync.Mutex
	waiting  int
	acquired int64
}

// NewBucket creates a bucket with the given capacity and refill rate.
func NewBucket(cfg Config) *Bucket {
	return &Bucket{
		limiter: rate.NewLimiter(rate.Limit(cfg.RefillRate), cfg.Capacity),
		cfg:     cfg,
	}
}

// Acquire blocks (cooperatively, honoring ctx cancellation) until n
// tokens are available, then decrements the bucket. Waiters on the same
// bucket are served in arrival order because rate.Limiter computes each
// reservation under a single internal mutex in call order; the goroutine
// with the earliest reservation always has the smallest wait.
func (b *Bucket) Acquire(ctx context.Context, n int) error {
	b.mu.Lock()
	b.waiting++
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		b.waiting--
		b.mu.Unlock()
	}()

	if err := b.limiter.WaitN(ctx, n); err != nil {
		return err
	}

	b.mu.Lock()
	b.acquired += int64(n)
	b.mu.Unlock()
	return nil
}

// Allow reports whether a single token is currently available without
// blocking or consuming it on failure.
func (b *Bucket) Allow() bool {
	return b.limiter.Allow()
}

// Stats reports point-in-time bucket state for observability.
type Stats struct {
	Capacity       int
	RefillRate     float64
	Waiting        int
	TotalAcquired  int64
}

func (b *Bucket) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{
		Capacity:      b.cfg.Capacity,
		RefillRate:    b.cfg.RefillRate,
		Waiting:       b.waiting,
		TotalAcquired: b.acquired,
	}
}

// Manager owns one Bucket per provider name, created lazily on first
// use with a caller-supplied default. Registry construction happens
// once at startup; Manager itself is safe for concurrent use across
// scans.
type Manager struct {
	mu      sync.Mutex
	buckets map[string]*Bucket
	configs map[string]Config
}

// NewManager builds a Manager seeded with per-provider configs. A
// provider requested that has no seeded config gets a conservative
// 1/s, capacity-1 bucket instead of panicking.
func NewManager(configs map[string]Config) *Manager {
	return &Manager{
		buckets: make(map[string]*Bucket),
		configs: configs,
	}
}

var fallbackConfig = Config{Capacity: 1, RefillRate: 1}

func (m *Manager) bucketFor(provider string) *Bucket {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.buckets[provider]; ok {
		return b
	}
	cfg, ok := m.configs[provider]
	if !ok {
		cfg = fallbackConfig
	}
	b := NewBucket(cfg)
	m.buckets[provider] = b
	return b
}

// Acquire waits for n tokens (default 1) from the named provider's
// bucket. The polling/blocking primitive is rate.Limiter's own timer,
// which never sleeps longer than the exact wait needed for the
// reservation and responds to ctx.Done() immediately (well under the
// 100ms poll-interval ceiling in §4.C, since there is no polling at all).
func (m *Manager) Acquire(ctx context.Context, provider string, n int) error {
	if n <= 0 {
		n = 1
	}
	return m.bucketFor(provider).Acquire(ctx, n)
}

// Stats returns the current bucket state for a provider, creating it
// with the fallback config if it has never been acquired from.
func (m *Manager) Stats(provider string) Stats {
	return m.bucketFor(provider).Stats()
}

// DefaultConfigs returns the illustrative per-category defaults from
// §4.C, keyed by provider name.
func DefaultConfigs() map[string]Config {
	return map[string]Config{
		"portscan":    {Capacity: 1, RefillRate: 1},
		"certdb":      {Capacity: 10, RefillRate: 2},   // 120/min
		"threatintel": {Capacity: 20, RefillRate: 10},  // 600/min
		"geoip":       {Capacity: 20, RefillRate: 10},
		"dns":         {Capacity: 10, RefillRate: 5},
		"whois":       {Capacity: 10, RefillRate: 5},
		"rdap":        {Capacity: 10, RefillRate: 5},
	}
}
