package directory

import (
	"context"
	"sort"
	"sync"

	"github.com/s100fed/fedroute/internal/federation"
	"github.com/s100fed/fedroute/internal/logging"
)

// MemoryStore serves candidates from an in-memory snapshot. Safe for concurrent use;
// Replace swaps the whole snapshot atomically.
type MemoryStore struct {
	mu         sync.RWMutex
	candidates []federation.Candidate
}

// NewMemoryStore returns a store over cands.
func NewMemoryStore(cands []federation.Candidate) *MemoryStore {
	s := &MemoryStore{}
	s.Replace(cands)
	return s
}

// NewMemoryStoreFromFile loads a YAML snapshot. Malformed records are dropped with
// warnings returned alongside the store.
func NewMemoryStoreFromFile(ctx context.Context, path string) (*MemoryStore, []string, error) {
	snap, err := LoadSnapshot(path)
	if err != nil {
		return nil, nil, err
	}
	cands, warnings := snap.Candidates(*logging.FromContext(ctx))
	return NewMemoryStore(cands), warnings, nil
}

// Replace installs a new snapshot.
func (s *MemoryStore) Replace(cands []federation.Candidate) {
	cp := make([]federation.Candidate, len(cands))
	copy(cp, cands)
	sort.SliceStable(cp, func(i, j int) bool {
		return cp[i].Node.Level < cp[j].Node.Level
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	s.candidates = cp
}

// Len returns the number of candidates in the snapshot, eligible or not.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.candidates)
}

// FindCandidates implements Store.
func (s *MemoryStore) FindCandidates(ctx context.Context, f Filter) ([]federation.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []federation.Candidate
	for _, c := range s.candidates {
		if !f.Matches(c) {
			continue
		}
		out = append(out, cloneCandidate(c))
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
	}

	logging.FromContext(ctx).Debug().
		Ctx(ctx).
		Str("component", "directory").
		Str("operation", "find_candidates").
		Strs("product_types", f.ProductTypes).
		Strs("service_types", f.ServiceTypes).
		Str("health_threshold", string(f.Threshold())).
		Int("candidate_count", len(out)).
		Msg("memory directory lookup")

	return out, nil
}

// cloneCandidate copies the dataset so callers cannot mutate the snapshot.
func cloneCandidate(c federation.Candidate) federation.Candidate {
	if c.Dataset != nil {
		d := *c.Dataset
		c.Dataset = &d
	}
	return c
}
