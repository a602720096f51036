package directory

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s100fed/fedroute/internal/directory/cache"
	"github.com/s100fed/fedroute/internal/federation"
	"github.com/s100fed/fedroute/internal/geo"
)

func loadTestStore(t *testing.T) (*MemoryStore, []string) {
	t.Helper()
	store, warnings, err := NewMemoryStoreFromFile(context.Background(), filepath.Join("testdata", "directory.yaml"))
	require.NoError(t, err)
	return store, warnings
}

func ids(cands []federation.Candidate) []string {
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.ID()
	}
	sort.Strings(out)
	return out
}

func TestLoadSnapshot(t *testing.T) {
	store, warnings := loadTestStore(t)

	// 10 capabilities, 4 rejected at the boundary.
	assert.Equal(t, 6, store.Len())
	assert.Len(t, warnings, 6)
	joined := ""
	for _, w := range warnings {
		joined += w + "\n"
	}
	assert.Contains(t, joined, "level must be >= 0")
	assert.Contains(t, joined, `unknown status "DRAFT"`)
	assert.Contains(t, joined, `duplicate of "cap-global-s101-wms"`)
	assert.Contains(t, joined, `node "nowhere" not found`)
	assert.Contains(t, joined, "S999")
	assert.Contains(t, joined, `dataset "ds-gone" not found`)
}

func TestLoadSnapshot_Joins(t *testing.T) {
	store, _ := loadTestStore(t)
	cands, err := store.FindCandidates(context.Background(), Filter{
		ProductTypes:    []string{"S102"},
		ServiceTypes:    []string{"WMS"},
		HealthThreshold: federation.HealthHealthy,
	})
	require.NoError(t, err)
	require.Len(t, cands, 1)

	c := cands[0]
	assert.Equal(t, "cap-cn-s102-wms", c.ID())
	assert.Equal(t, "China MSA", c.Node.Name)
	assert.Equal(t, federation.HealthHealthy, c.Node.Health)
	assert.Equal(t, "1.1.1", c.Capability.Version)
	nodeBox, ok := c.Node.Coverage.BBox()
	require.True(t, ok)
	assert.Equal(t, geo.BBox{73, 3, 135, 54}, nodeBox)

	require.NotNil(t, c.Dataset)
	assert.Equal(t, federation.DatasetPublished, c.Dataset.Status)
	dsBox, ok := c.Dataset.Coverage.BBox()
	require.True(t, ok)
	assert.Equal(t, geo.BBox{120, 25, 130, 35}, dsBox)
	require.NotNil(t, c.Dataset.PublishedAt)
	assert.Equal(t, time.Date(2025, 5, 20, 0, 0, 0, 0, time.UTC), c.Dataset.PublishedAt.UTC())
}

func TestMemoryStore_FindCandidates(t *testing.T) {
	store, _ := loadTestStore(t)

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{
			name:   "healthy only by default",
			filter: Filter{},
			want:   []string{"cap-cn-s102-wms", "cap-global-s101-wms"},
		},
		{
			name:   "warning threshold admits warning nodes",
			filter: Filter{HealthThreshold: federation.HealthWarning},
			want:   []string{"cap-cn-s102-wms", "cap-global-s101-wms", "cap-sh-s102-wcs"},
		},
		{
			name:   "inactive node never returned",
			filter: Filter{ProductTypes: []string{"S104"}, HealthThreshold: federation.HealthOffline},
			want:   []string{},
		},
		{
			name:   "unpublished dataset excluded",
			filter: Filter{ProductTypes: []string{"S101"}, HealthThreshold: federation.HealthWarning},
			want:   []string{"cap-global-s101-wms"},
		},
		{
			name:   "disabled capability excluded",
			filter: Filter{ProductTypes: []string{"S111"}},
			want:   []string{},
		},
		{
			name:   "service filter",
			filter: Filter{ServiceTypes: []string{"WCS"}, HealthThreshold: federation.HealthWarning},
			want:   []string{"cap-sh-s102-wcs"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.FindCandidates(context.Background(), tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestMemoryStore_LimitKeepsShallowNodes(t *testing.T) {
	store, _ := loadTestStore(t)
	got, err := store.FindCandidates(context.Background(), Filter{HealthThreshold: federation.HealthWarning, Limit: 1})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 0, got[0].Node.Level)
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	store, _ := loadTestStore(t)
	f := Filter{ProductTypes: []string{"S102"}, ServiceTypes: []string{"WMS"}}

	first, err := store.FindCandidates(context.Background(), f)
	require.NoError(t, err)
	first[0].Dataset.Status = federation.DatasetArchived

	second, err := store.FindCandidates(context.Background(), f)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, federation.DatasetPublished, second[0].Dataset.Status)
}

func TestMemoryStore_CanceledContext(t *testing.T) {
	store := NewMemoryStore(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := store.FindCandidates(ctx, Filter{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoadSnapshot_Errors(t *testing.T) {
	_, err := LoadSnapshot(filepath.Join("testdata", "missing.yaml"))
	assert.ErrorIs(t, err, ErrInvalidSnapshot)

	_, err = ParseSnapshot([]byte("nodes: [oops"))
	assert.ErrorIs(t, err, ErrInvalidSnapshot)
}

func TestSnapshotCandidates_ParentWarning(t *testing.T) {
	snap := &Snapshot{Nodes: []federation.Node{{ID: "a", Level: 1, ParentID: "ghost", Health: "HEALTHY"}}}
	_, warnings := snap.Candidates(zerolog.Nop())
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], `parent "ghost" not found`)
}

func TestSnapshotCandidates_EndpointWarning(t *testing.T) {
	snap := &Snapshot{
		Nodes: []federation.Node{{ID: "global", Level: 0, Health: "HEALTHY", Active: true}},
		Capabilities: []federation.Capability{
			{ID: "cap-ok", NodeID: "global", ProductType: "S101", ServiceType: "WMS", Enabled: true,
				Endpoint: "https://global.example.org/wms"},
			{ID: "cap-empty", NodeID: "global", ProductType: "S102", ServiceType: "WMS", Enabled: true},
			{ID: "cap-relative", NodeID: "global", ProductType: "S104", ServiceType: "WMS", Enabled: true,
				Endpoint: "/s104/wms"},
		},
	}

	cands, warnings := snap.Candidates(zerolog.Nop())

	assert.Equal(t, []string{"cap-ok"}, ids(cands))
	require.Len(t, warnings, 2)
	assert.Contains(t, warnings[0], `capability "cap-empty"`)
	assert.Contains(t, warnings[1], `capability "cap-relative"`)
}

func TestNormalizeVersion(t *testing.T) {
	assert.Equal(t, "1.3.0", NormalizeVersion("1.3"))
	assert.Equal(t, "2.0.1", NormalizeVersion("2.0.1"))
	assert.Equal(t, "", NormalizeVersion("latest"))
	assert.Equal(t, "", NormalizeVersion(""))
}

func TestBuildCandidateQuery(t *testing.T) {
	t.Run("threshold only", func(t *testing.T) {
		query, args := buildCandidateQuery(Filter{})
		assert.Contains(t, query, "n.health_status = ANY($1)")
		assert.Contains(t, query, "(d.id IS NULL OR d.status = 'PUBLISHED')")
		assert.NotContains(t, query, "$2")
		assert.NotContains(t, query, "LIMIT")
		assert.Len(t, args, 1)
	})

	t.Run("all filters", func(t *testing.T) {
		query, args := buildCandidateQuery(Filter{
			ProductTypes:    []string{"S101", "S102"},
			ServiceTypes:    []string{"WMS"},
			HealthThreshold: federation.HealthWarning,
			Limit:           100,
		})
		assert.Contains(t, query, "c.product_type = ANY($2)")
		assert.Contains(t, query, "c.service_type = ANY($3)")
		assert.Contains(t, query, "LIMIT $4")
		require.Len(t, args, 4)
		assert.Equal(t, 100, args[3])
	})

	t.Run("service only", func(t *testing.T) {
		query, args := buildCandidateQuery(Filter{ServiceTypes: []string{"WFS"}})
		assert.Contains(t, query, "c.service_type = ANY($2)")
		assert.Len(t, args, 2)
	})
}

type countingStore struct {
	calls int
	cands []federation.Candidate
	err   error
}

func (s *countingStore) FindCandidates(_ context.Context, f Filter) ([]federation.Candidate, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	var out []federation.Candidate
	for _, c := range s.cands {
		if f.Matches(c) {
			out = append(out, c)
		}
	}
	return out, nil
}

func sampleCandidates() []federation.Candidate {
	published := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	return []federation.Candidate{
		{
			Capability: federation.Capability{ID: "a", NodeID: "n1", ProductType: "S101", ServiceType: "WMS", Enabled: true, Endpoint: "https://a"},
			Node:       federation.Node{ID: "n1", Level: 0, Health: federation.HealthHealthy, Active: true, Coverage: geo.CoverageOf(geo.BBox{0, 0, 10, 10})},
			Dataset:    &federation.Dataset{ID: "d1", Status: federation.DatasetPublished, PublishedAt: &published},
		},
		{
			Capability: federation.Capability{ID: "b", NodeID: "n2", ProductType: "S101", ServiceType: "WMS", Enabled: true, Endpoint: "https://b"},
			Node:       federation.Node{ID: "n2", Level: 1, Health: federation.HealthHealthy, Active: true},
		},
	}
}

func TestCachedStore(t *testing.T) {
	backing := &countingStore{cands: sampleCandidates()}
	c, err := cache.NewMemoryStore(true, 60)
	require.NoError(t, err)

	var results []string
	store := NewCachedStore(backing, c, WithLookupObserver(func(r string) { results = append(results, r) }))
	f := Filter{ProductTypes: []string{"S101"}, ServiceTypes: []string{"WMS"}}

	first, err := store.FindCandidates(context.Background(), f)
	require.NoError(t, err)
	second, err := store.FindCandidates(context.Background(), f)
	require.NoError(t, err)

	assert.Equal(t, 1, backing.calls)
	assert.Equal(t, []string{LookupMiss, LookupHit}, results)
	assert.Equal(t, ids(first), ids(second))
	assert.Equal(t, first[0].Node.Coverage, second[0].Node.Coverage)
	assert.Equal(t, first[0].Dataset.PublishedAt.UTC(), second[0].Dataset.PublishedAt.UTC())

	limited, err := store.FindCandidates(context.Background(), Filter{ProductTypes: []string{"S101"}, ServiceTypes: []string{"WMS"}, Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
	assert.Equal(t, 1, backing.calls, "limit does not change the cache key")

	_, err = store.FindCandidates(WithoutCache(context.Background()), f)
	require.NoError(t, err)
	assert.Equal(t, 2, backing.calls)
	assert.Equal(t, LookupBypass, results[len(results)-1])

	require.NoError(t, store.Invalidate())
	_, err = store.FindCandidates(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, 3, backing.calls)
}

func TestCachedStore_ErrorsNotCached(t *testing.T) {
	backing := &countingStore{err: errors.New("connection reset")}
	c, err := cache.NewMemoryStore(true, 60)
	require.NoError(t, err)
	store := NewCachedStore(backing, c)

	_, err = store.FindCandidates(context.Background(), Filter{})
	require.Error(t, err)
	_, err = store.FindCandidates(context.Background(), Filter{})
	require.Error(t, err)
	assert.Equal(t, 2, backing.calls)
}

func TestCachedStore_Disabled(t *testing.T) {
	backing := &countingStore{cands: sampleCandidates()}
	disabled, err := cache.NewMemoryStore(false, 0)
	require.NoError(t, err)
	var results []string
	store := NewCachedStore(backing, disabled, WithLookupObserver(func(r string) { results = append(results, r) }))

	for range 2 {
		_, err := store.FindCandidates(context.Background(), Filter{})
		require.NoError(t, err)
	}
	assert.Equal(t, 2, backing.calls)
	assert.Equal(t, []string{LookupDisabled, LookupDisabled}, results)
	require.NoError(t, store.Invalidate())
}

func TestCachedStore_Sweep(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	c, err := cache.NewMemoryStore(true, 60, cache.WithClock(func() time.Time { return now }))
	require.NoError(t, err)
	store := NewCachedStore(&countingStore{cands: sampleCandidates()}, c)

	_, err = store.FindCandidates(context.Background(), Filter{ProductTypes: []string{"S101"}})
	require.NoError(t, err)
	_, err = store.FindCandidates(context.Background(), Filter{ProductTypes: []string{"S102"}})
	require.NoError(t, err)

	removed, err := store.Sweep()
	require.NoError(t, err)
	assert.Zero(t, removed)

	now = now.Add(2 * time.Minute)
	removed, err = store.Sweep()
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	count, err := c.Count()
	require.NoError(t, err)
	assert.Zero(t, count)

	disabled, err := cache.NewMemoryStore(false, 0)
	require.NoError(t, err)
	removed, err = NewCachedStore(&countingStore{}, disabled).Sweep()
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestCachedStore_RunJanitor(t *testing.T) {
	var mu sync.Mutex
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	c, err := cache.NewMemoryStore(true, 60, cache.WithClock(clock))
	require.NoError(t, err)
	store := NewCachedStore(&countingStore{cands: sampleCandidates()}, c)
	_, err = store.FindCandidates(context.Background(), Filter{})
	require.NoError(t, err)

	mu.Lock()
	now = now.Add(time.Hour)
	mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		store.RunJanitor(ctx, 5*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool {
		n, countErr := c.Count()
		return countErr == nil && n == 0
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop after cancel")
	}
}

func TestStoreFunc(t *testing.T) {
	var got Filter
	s := StoreFunc(func(_ context.Context, f Filter) ([]federation.Candidate, error) {
		got = f
		return nil, nil
	})
	_, err := s.FindCandidates(context.Background(), Filter{Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, 3, got.Limit)
}
