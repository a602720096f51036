package cache

import (
	"encoding/json"
	"time"
)

// CacheEntry is a single cached directory snapshot.
//
//nolint:revive // CacheEntry is the canonical name for this exported type.
type CacheEntry struct {
	// Key is the SHA256 key of the filter that produced the snapshot.
	Key string `json:"key"`

	// Data is the JSON-encoded candidate list.
	Data json.RawMessage `json:"data"`

	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`

	// TTLSeconds is kept for reference in diagnostics.
	TTLSeconds int `json:"ttl_seconds"`
}

// NewCacheEntry creates an entry created at now that expires ttlSeconds later.
func NewCacheEntry(key string, data json.RawMessage, ttlSeconds int, now time.Time) *CacheEntry {
	return &CacheEntry{
		Key:        key,
		Data:       data,
		CreatedAt:  now,
		ExpiresAt:  now.Add(time.Duration(ttlSeconds) * time.Second),
		TTLSeconds: ttlSeconds,
	}
}

// ExpiredAt reports whether the entry has expired at t.
func (e *CacheEntry) ExpiredAt(t time.Time) bool {
	return t.After(e.ExpiresAt)
}

// AgeAt returns how old the entry is at t.
func (e *CacheEntry) AgeAt(t time.Time) time.Duration {
	return t.Sub(e.CreatedAt)
}

// RemainingAt returns the time left before expiry at t, or 0 once expired.
func (e *CacheEntry) RemainingAt(t time.Time) time.Duration {
	remaining := e.ExpiresAt.Sub(t)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Decode unmarshals the cached data into v.
func (e *CacheEntry) Decode(v any) error {
	return json.Unmarshal(e.Data, v)
}
