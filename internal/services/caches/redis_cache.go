// Package caches implements the bug cache layers.
package caches

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"bugtracker-service/internal/models"
	"bugtracker-service/internal/services/cache"
)

// tombstone marks a recently invalidated key. Encoded records always start with '{'.
var tombstone = []byte("invalidated")

// RedisStore is the subset of storage.RedisClient the cache uses.
type RedisStore interface {
	GetBytes(ctx context.Context, key string) ([]byte, error)
	SetBytes(ctx context.Context, key string, value []byte, expiration time.Duration) error
	SetBytesNX(ctx context.Context, key string, value []byte, expiration time.Duration) (bool, error)
}

// RedisCache shares cached bug records between service instances.
type RedisCache struct {
	client RedisStore
	ttl    time.Duration
}

// NewRedisCache creates a Redis-backed bug cache.
func NewRedisCache(client RedisStore, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func key(id uuid.UUID) string {
	return fmt.Sprintf("bug:%s", id.String())
}

func (rc *RedisCache) Name() string {
	return "REDIS"
}

func (rc *RedisCache) Get(ctx context.Context, id uuid.UUID) (*models.Bug, bool, error) {
	data, err := rc.client.GetBytes(ctx, key(id))
	if err != nil {
		return nil, false, fmt.Errorf("redis error: %w", err)
	}
	if data == nil || bytes.Equal(data, tombstone) {
		return nil, false, nil
	}
	bug, err := cache.Decode(data)
	if err != nil {
		return nil, false, fmt.Errorf("decode cached bug: %w", err)
	}
	return bug, true, nil
}

// Store writes the record with SETNX, so it never replaces a tombstone or a
// record another instance stored first.
func (rc *RedisCache) Store(ctx context.Context, bug *models.Bug) error {
	data, err := cache.Encode(bug)
	if err != nil {
		return fmt.Errorf("encode bug: %w", err)
	}
	if _, err := rc.client.SetBytesNX(ctx, key(bug.ID), data, rc.ttl); err != nil {
		return fmt.Errorf("failed to store in Redis: %w", err)
	}
	return nil
}

// Invalidate overwrites the record with a tombstone held for cache.InvalidationHold.
func (rc *RedisCache) Invalidate(ctx context.Context, id uuid.UUID) error {
	if err := rc.client.SetBytes(ctx, key(id), tombstone, cache.InvalidationHold); err != nil {
		return fmt.Errorf("failed to invalidate in Redis: %w", err)
	}
	return nil
}
