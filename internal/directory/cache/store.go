package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Common cache errors.
var (
	ErrCacheNotFound   = errors.New("cache entry not found")
	ErrCacheExpired    = errors.New("cache entry expired")
	ErrInvalidCacheKey = errors.New("cache key cannot be empty")
	ErrCacheDisabled   = errors.New("cache is disabled")
)

// MemoryStore keeps cache entries in memory with TTL expiration.
// Safe for concurrent use.
type MemoryStore struct {
	enabled    bool
	ttlSeconds int
	now        func() time.Time

	mu      sync.RWMutex
	entries map[string]*CacheEntry
}

// StoreOption configures a MemoryStore.
type StoreOption func(*MemoryStore)

// WithClock sets the time source used for expiry.
func WithClock(now func() time.Time) StoreOption {
	return func(s *MemoryStore) {
		s.now = now
	}
}

// NewMemoryStore creates a store. A disabled store answers every call with ErrCacheDisabled.
func NewMemoryStore(enabled bool, ttlSeconds int, opts ...StoreOption) (*MemoryStore, error) {
	s := &MemoryStore{
		enabled:    enabled,
		ttlSeconds: ttlSeconds,
		now:        time.Now,
		entries:    make(map[string]*CacheEntry),
	}
	for _, opt := range opts {
		opt(s)
	}
	if !enabled {
		return s, nil
	}
	if err := ValidateTTL(ttlSeconds); err != nil {
		return nil, err
	}
	return s, nil
}

// Get retrieves an entry by key.
// Returns ErrCacheNotFound if the entry doesn't exist and ErrCacheExpired if it has
// expired; expired entries are removed.
func (s *MemoryStore) Get(key string) (*CacheEntry, error) {
	if !s.enabled {
		return nil, ErrCacheDisabled
	}
	if key == "" {
		return nil, ErrInvalidCacheKey
	}

	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrCacheNotFound
	}

	if entry.ExpiredAt(s.now()) {
		s.mu.Lock()
		if current, still := s.entries[key]; still && current == entry {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return nil, ErrCacheExpired
	}
	return entry, nil
}

// Set stores data under key with the store TTL, replacing any existing entry.
func (s *MemoryStore) Set(key string, data json.RawMessage) error {
	if !s.enabled {
		return ErrCacheDisabled
	}
	if key == "" {
		return ErrInvalidCacheKey
	}

	buf := make(json.RawMessage, len(data))
	copy(buf, data)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = NewCacheEntry(key, buf, s.ttlSeconds, s.now())
	return nil
}

// SetValue JSON-encodes v and stores it under key.
func (s *MemoryStore) SetValue(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}
	return s.Set(key, data)
}

// Delete removes an entry. Deleting a missing key is not an error.
func (s *MemoryStore) Delete(key string) error {
	if !s.enabled {
		return ErrCacheDisabled
	}
	if key == "" {
		return ErrInvalidCacheKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// Clear removes all entries.
func (s *MemoryStore) Clear() error {
	if !s.enabled {
		return ErrCacheDisabled
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]*CacheEntry)
	return nil
}

// CleanupExpired removes all expired entries and returns how many were removed.
func (s *MemoryStore) CleanupExpired() (int, error) {
	if !s.enabled {
		return 0, ErrCacheDisabled
	}

	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, entry := range s.entries {
		if entry.ExpiredAt(now) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed, nil
}

// Count returns the number of entries, including expired ones not yet cleaned up.
func (s *MemoryStore) Count() (int, error) {
	if !s.enabled {
		return 0, ErrCacheDisabled
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}

// IsEnabled returns true if caching is enabled.
func (s *MemoryStore) IsEnabled() bool {
	return s.enabled
}

// TTL returns the entry TTL in seconds.
func (s *MemoryStore) TTL() int {
	return s.ttlSeconds
}
