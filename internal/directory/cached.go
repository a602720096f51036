package directory

import (
	"context"
	"errors"
	"time"

	"github.com/s100fed/fedroute/internal/directory/cache"
	"github.com/s100fed/fedroute/internal/federation"
	"github.com/s100fed/fedroute/internal/logging"
)

// Cache lookup results reported to observers.
const (
	LookupHit      = "hit"
	LookupMiss     = "miss"
	LookupExpired  = "expired"
	LookupBypass   = "bypass"
	LookupDisabled = "disabled"
)

// CachedStore serves candidate snapshots from a TTL cache in front of another Store.
// Snapshots are keyed by the normalized filter.
type CachedStore struct {
	next    Store
	cache   *cache.MemoryStore
	observe func(result string)
}

// CachedOption configures a CachedStore.
type CachedOption func(*CachedStore)

// WithLookupObserver registers fn to be called with the result of every cache lookup.
func WithLookupObserver(fn func(result string)) CachedOption {
	return func(s *CachedStore) {
		s.observe = fn
	}
}

// NewCachedStore wraps next with c. A nil or disabled cache passes every lookup through.
func NewCachedStore(next Store, c *cache.MemoryStore, opts ...CachedOption) *CachedStore {
	s := &CachedStore{next: next, cache: c, observe: func(string) {}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type bypassKey struct{}

// WithoutCache marks ctx so CachedStore lookups go straight to the backing store.
func WithoutCache(ctx context.Context) context.Context {
	return context.WithValue(ctx, bypassKey{}, true)
}

func bypassed(ctx context.Context) bool {
	v, _ := ctx.Value(bypassKey{}).(bool)
	return v
}

// FindCandidates implements Store.
func (s *CachedStore) FindCandidates(ctx context.Context, f Filter) ([]federation.Candidate, error) {
	log := logging.FromContext(ctx)

	if s.cache == nil || !s.cache.IsEnabled() {
		s.observe(LookupDisabled)
		return s.next.FindCandidates(ctx, f)
	}
	if bypassed(ctx) {
		s.observe(LookupBypass)
		return s.next.FindCandidates(ctx, f)
	}

	key := cache.GenerateKey(cache.KeyParams{
		ProductTypes:    f.ProductTypes,
		ServiceTypes:    f.ServiceTypes,
		HealthThreshold: string(f.Threshold()),
	})

	entry, err := s.cache.Get(key)
	switch {
	case err == nil:
		var cands []federation.Candidate
		decodeErr := entry.Decode(&cands)
		if decodeErr == nil {
			s.observe(LookupHit)
			log.Debug().
				Ctx(ctx).
				Str("component", "directory").
				Str("operation", "cached_lookup").
				Str("cache_key", key).
				Int("candidate_count", len(cands)).
				Msg("directory cache hit")
			return applyLimit(cands, f.Limit), nil
		}
		log.Warn().Ctx(ctx).Err(decodeErr).Str("component", "directory").Msg("discarding undecodable cache entry")
		_ = s.cache.Delete(key)
		s.observe(LookupMiss)
	case errors.Is(err, cache.ErrCacheExpired):
		s.observe(LookupExpired)
	default:
		s.observe(LookupMiss)
	}

	// Snapshots are cached uncapped so one entry serves every limit.
	uncapped := f
	uncapped.Limit = 0
	cands, err := s.next.FindCandidates(ctx, uncapped)
	if err != nil {
		return nil, err
	}
	if setErr := s.cache.SetValue(key, cands); setErr != nil {
		log.Warn().Ctx(ctx).Err(setErr).Str("component", "directory").Msg("failed to cache directory snapshot")
	}
	return applyLimit(cands, f.Limit), nil
}

// Invalidate drops every cached snapshot.
func (s *CachedStore) Invalidate() error {
	if s.cache == nil || !s.cache.IsEnabled() {
		return nil
	}
	return s.cache.Clear()
}

// Sweep removes expired snapshots and returns how many were dropped.
func (s *CachedStore) Sweep() (int, error) {
	if s.cache == nil || !s.cache.IsEnabled() {
		return 0, nil
	}
	return s.cache.CleanupExpired()
}

// RunJanitor calls Sweep every interval until ctx is done.
func (s *CachedStore) RunJanitor(ctx context.Context, interval time.Duration) {
	log := logging.FromContext(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := s.Sweep()
			if err != nil {
				log.Warn().Ctx(ctx).Err(err).Str("component", "directory").Msg("cache sweep failed")
				continue
			}
			if removed > 0 {
				log.Debug().
					Ctx(ctx).
					Str("component", "directory").
					Str("operation", "cache_sweep").
					Int("removed", removed).
					Msg("expired directory snapshots removed")
			}
		}
	}
}

func applyLimit(cands []federation.Candidate, limit int) []federation.Candidate {
	if limit > 0 && len(cands) > limit {
		return cands[:limit]
	}
	return cands
}
