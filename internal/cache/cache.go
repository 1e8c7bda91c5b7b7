// Package cache holds the content-addressed transcript dedup cache.
// Transcription is the expensive stage; audio that hashes to a previously
// transcribed value skips it entirely.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// TranscriptCache memoizes transcription output by content hash.
// Implementations must be safe for concurrent use.
type TranscriptCache interface {
	// Lookup returns the cached transcript for hash. Absence is not an
	// error.
	Lookup(ctx context.Context, hash string) (string, bool, error)
	// Store caches transcript under hash with the given TTL. Idempotent:
	// re-storing the same hash refreshes value and TTL.
	Store(ctx context.Context, hash string, transcript string, ttl time.Duration) error
	Ping(ctx context.Context) error
}

// RedisTranscriptCache implements TranscriptCache using go-redis/v9.
type RedisTranscriptCache struct {
	client *redis.Client
}

// NewRedisTranscriptCache creates a cache from a Redis URL.
func NewRedisTranscriptCache(redisURL string) (*RedisTranscriptCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return &RedisTranscriptCache{client: redis.NewClient(opts)}, nil
}

// NewRedisTranscriptCacheFromClient wraps an existing client.
func NewRedisTranscriptCacheFromClient(client *redis.Client) *RedisTranscriptCache {
	return &RedisTranscriptCache{client: client}
}

func (c *RedisTranscriptCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisTranscriptCache) Lookup(ctx context.Context, hash string) (string, bool, error) {
	val, err := c.client.Get(ctx, TranscriptKey(hash)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("cache lookup: %w", err)
	}
	return val, true, nil
}

func (c *RedisTranscriptCache) Store(ctx context.Context, hash string, transcript string, ttl time.Duration) error {
	if err := c.client.Set(ctx, TranscriptKey(hash), transcript, ttl).Err(); err != nil {
		return fmt.Errorf("cache store: %w", err)
	}
	return nil
}

var _ TranscriptCache = (*RedisTranscriptCache)(nil)
