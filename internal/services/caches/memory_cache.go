package caches

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"bugtracker-service/internal/models"
	"bugtracker-service/internal/services/cache"
)

// memoryEntry holds an encoded record, or nil data for a tombstone.
type memoryEntry struct {
	data      []byte
	expiresAt time.Time
	storedAt  time.Time
}

// MemoryCache is an in-process bug cache with a TTL and an entry cap. When full,
// the oldest record is evicted; tombstones go only when no record is left.
type MemoryCache struct {
	mu         sync.Mutex
	entries    map[uuid.UUID]memoryEntry
	maxEntries int
	ttl        time.Duration
	hold       time.Duration
	now        func() time.Time
}

// NewMemoryCache creates an in-process bug cache.
func NewMemoryCache(maxEntries int, ttl time.Duration) *MemoryCache {
	if maxEntries <= 0 {
		maxEntries = 1
	}
	return &MemoryCache{
		entries:    make(map[uuid.UUID]memoryEntry),
		maxEntries: maxEntries,
		ttl:        ttl,
		hold:       cache.InvalidationHold,
		now:        time.Now,
	}
}

func (mc *MemoryCache) Name() string {
	return "MEMORY"
}

// live returns the unexpired entry for id; callers hold mc.mu.
func (mc *MemoryCache) live(id uuid.UUID) (memoryEntry, bool) {
	e, ok := mc.entries[id]
	if ok && mc.now().After(e.expiresAt) {
		delete(mc.entries, id)
		return memoryEntry{}, false
	}
	return e, ok
}

func (mc *MemoryCache) Get(_ context.Context, id uuid.UUID) (*models.Bug, bool, error) {
	mc.mu.Lock()
	e, ok := mc.live(id)
	mc.mu.Unlock()

	if !ok || e.data == nil {
		return nil, false, nil
	}
	bug, err := cache.Decode(e.data)
	if err != nil {
		return nil, false, err
	}
	return bug, true, nil
}

// Store fills an empty key. A live record or tombstone is left untouched.
func (mc *MemoryCache) Store(_ context.Context, bug *models.Bug) error {
	data, err := cache.Encode(bug)
	if err != nil {
		return err
	}

	mc.mu.Lock()
	defer mc.mu.Unlock()

	if _, exists := mc.live(bug.ID); exists {
		return nil
	}
	mc.put(bug.ID, data, mc.ttl)
	return nil
}

// Invalidate replaces any record for id with a tombstone.
func (mc *MemoryCache) Invalidate(_ context.Context, id uuid.UUID) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.put(id, nil, mc.hold)
	return nil
}

func (mc *MemoryCache) put(id uuid.UUID, data []byte, ttl time.Duration) {
	if _, exists := mc.entries[id]; !exists {
		for len(mc.entries) >= mc.maxEntries {
			mc.evictOldest()
		}
	}
	now := mc.now()
	mc.entries[id] = memoryEntry{data: data, storedAt: now, expiresAt: now.Add(ttl)}
}

// Len returns the number of entries, including tombstones and expired entries
// not yet collected.
func (mc *MemoryCache) Len() int {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return len(mc.entries)
}

func (mc *MemoryCache) evictOldest() {
	var (
		oldestID    uuid.UUID
		oldestAt    time.Time
		found       bool
		foundRecord bool
	)
	for id, e := range mc.entries {
		record := e.data != nil
		switch {
		case !found, record && !foundRecord, record == foundRecord && e.storedAt.Before(oldestAt):
			oldestID, oldestAt, found, foundRecord = id, e.storedAt, true, record
		}
	}
	if found {
		delete(mc.entries, oldestID)
	}
}
