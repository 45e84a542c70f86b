// Package cache implements the at-most-one-live-entry-per-(target,
// provider) cache described in §3.2/§6.4: bounded staleness via TTL,
// pluggable backends, and no-cache/refresh-cache bypass modes. The
// default backend is an in-memory LRU (memory.go); file.go and
// redis.go provide persistent and shared alternatives, all behind the
// same Store interface so the orchestrator never knows which one is
// wired in.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/duskline/reconforge/internal/record"
)

// Entry is the on-disk/in-memory shape of one cached provider result,
// matching §3.2 exactly.
type Entry struct {
	Target     string         `json:"target"`
	Provider   string         `json:"provider"`
	Record     *record.Record `json:"record"`
	Timestamp  time.Time      `json:"timestamp"`
	TTLSeconds int            `json:"ttl_seconds"`
}

// Expired reports whether the entry is older than maxAge as of now.
// A maxAge of zero means "no freshness requirement" (never expired).
func (e *Entry) Expired(now time.Time, maxAge time.Duration) bool {
	if maxAge <= 0 {
		return false
	}
	return now.Sub(e.Timestamp) > maxAge
}

// Stats reports point-in-time backend occupancy.
type Stats struct {
	Entries int
	Bytes   int64
}

// Store is the interface every cache backend implements.
type Store interface {
	// Get returns the cached entry for (target, provider) if present
	// and not older than maxAge. ok is false on miss, expiry, or
	// corruption — corrupt data is always treated as a miss, never an
	// error, per §6.4.
	Get(ctx context.Context, target, provider string, maxAge time.Duration) (entry *Entry, ok bool, err error)
	// Put stores rec under (target, provider), overwriting any
	// existing entry atomically.
	Put(ctx context.Context, target, provider string, rec *record.Record, ttl time.Duration) error
	// Invalidate removes a single (target, provider) entry. Removing a
	// missing entry is not an error.
	Invalidate(ctx context.Context, target, provider string) error
	// Clear removes every entry whose key matches pattern ("" matches
	// everything).
	Clear(ctx context.Context, pattern string) error
	// Stats reports current occupancy for observability.
	Stats() Stats
}

// key fingerprints a (target, provider) pair into a filesystem- and
// Redis-key-safe identifier. Hashing rather than concatenating avoids
// path traversal and separator collisions from attacker-controlled
// target strings landing in a file backend's directory.
func key(target, provider string) string {
	sum := sha256.Sum256([]byte(provider + "\x00" + target))
	return hex.EncodeToString(sum[:])
}
