package cache

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/duskline/reconforge/internal/record"
)

// RedisStore is the shared/persistent backend for multi-process or
// multi-host deployments, grounded in the teacher's RedisConfig
// plumbing. Entries carry a native Redis TTL in addition to the
// timestamp check every backend performs, so an operator's `redis-cli
// KEYS`/expiry view matches the engine's own freshness notion.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisStore wraps an existing client. Callers own the client's
// lifecycle (Close, connection pool sizing); this store never dials.
func NewRedisStore(client *redis.Client, keyPrefix string) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = "reconforge:cache:"
	}
	return &RedisStore{client: client, keyPrefix: keyPrefix}
}

func (r *RedisStore) redisKey(fingerprint string) string {
	return r.keyPrefix + fingerprint
}

func (r *RedisStore) Get(ctx context.Context, target, provider string, maxAge time.Duration) (*Entry, bool, error) {
	fp := key(target, provider)
	data, err := r.client.Get(ctx, r.redisKey(fp)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
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

func (r *RedisStore) Put(ctx context.Context, target, provider string, rec *record.Record, ttl time.Duration) error {
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
	return r.client.Set(ctx, r.redisKey(fp), data, ttl).Err()
}

func (r *RedisStore) Invalidate(ctx context.Context, target, provider string) error {
	fp := key(target, provider)
	return r.client.Del(ctx, r.redisKey(fp)).Err()
}

// Clear scans keys under this store's prefix and deletes those whose
// stored target/provider match pattern ("" matches everything). It
// uses SCAN rather than KEYS to avoid blocking a shared Redis instance
// while iterating a potentially large keyspace.
func (r *RedisStore) Clear(ctx context.Context, pattern string) error {
	iter := r.client.Scan(ctx, 0, r.keyPrefix+"*", 100).Iterator()
	var toDelete []string
	for iter.Next(ctx) {
		k := iter.Val()
		if pattern == "" {
			toDelete = append(toDelete, k)
			continue
		}
		data, err := r.client.Get(ctx, k).Bytes()
		if err != nil {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(data, &entry); err != nil {
			continue
		}
		if strings.Contains(entry.Target, pattern) || strings.Contains(entry.Provider, pattern) {
			toDelete = append(toDelete, k)
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(toDelete) == 0 {
		return nil
	}
	return r.client.Del(ctx, toDelete...).Err()
}

// Stats reports the number of keys under this store's prefix. Byte
// occupancy is left at zero: Redis's MEMORY USAGE command is O(N) per
// key and too expensive to run on every Stats call.
func (r *RedisStore) Stats() Stats {
	ctx := context.Background()
	iter := r.client.Scan(ctx, 0, r.keyPrefix+"*", 100).Iterator()
	count := 0
	for iter.Next(ctx) {
		count++
	}
	return Stats{Entries: count}
}
