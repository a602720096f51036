package router

import (
	"sort"

	"github.com/s100fed/fedroute/internal/federation"
	"github.com/s100fed/fedroute/internal/geo"
	"github.com/s100fed/fedroute/internal/scoring"
)

// DefaultMinConfidence is the selection threshold used when none is configured.
const DefaultMinConfidence = 0.5

// SelectOptions parameterizes a selection.
type SelectOptions struct {
	// BBox restricts candidates to those covering the area. Nil disables the spatial filter.
	BBox *geo.BBox
	// MinConfidence is the lowest acceptable confidence.
	MinConfidence float64
}

// Selection is a scored candidate.
type Selection struct {
	Candidate  federation.Candidate `json:"candidate"`
	Confidence float64              `json:"confidence"`
	Score      scoring.Result       `json:"score"`
	// Accepted is true when Confidence meets the minimum confidence.
	Accepted bool `json:"accepted"`
	// AssumedGlobal is true when the candidate passed the spatial filter only because it
	// has no coverage.
	AssumedGlobal bool `json:"assumedGlobal,omitempty"`
}

// Selector picks the best candidate for a request. It is pure: identical inputs give
// identical outputs.
type Selector struct {
	Scorer *scoring.Scorer
	// AssumeGlobal keeps candidates without any defined coverage when a bbox is given.
	AssumeGlobal bool
}

// NewSelector returns a Selector using scorer.
func NewSelector(scorer *scoring.Scorer, assumeGlobal bool) *Selector {
	return &Selector{Scorer: scorer, AssumeGlobal: assumeGlobal}
}

// Rank returns every spatially matching candidate, scored and ordered best first.
// Ties are broken by ascending hierarchy level, then ascending candidate id. Candidates
// below the minimum confidence are included with Accepted false.
func (s *Selector) Rank(cands []federation.Candidate, opts SelectOptions) []Selection {
	scorer := s.Scorer
	if scorer == nil {
		scorer = scoring.Default()
	}

	out := make([]Selection, 0, len(cands))
	for _, c := range cands {
		assumed := false
		if opts.BBox != nil {
			var ok bool
			ok, assumed = s.covers(c, *opts.BBox)
			if !ok {
				continue
			}
		}
		res := scorer.Score(c)
		out = append(out, Selection{
			Candidate:     c,
			Confidence:    res.Value,
			Score:         res,
			Accepted:      res.Value >= opts.MinConfidence,
			AssumedGlobal: assumed,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if a.Candidate.Node.Level != b.Candidate.Node.Level {
			return a.Candidate.Node.Level < b.Candidate.Node.Level
		}
		return a.Candidate.ID() < b.Candidate.ID()
	})
	return out
}

// Select returns the best candidate meeting the minimum confidence, or false when none does.
func (s *Selector) Select(cands []federation.Candidate, opts SelectOptions) (Selection, bool) {
	ranked := s.Rank(cands, opts)
	if len(ranked) == 0 || !ranked[0].Accepted {
		return Selection{}, false
	}
	return ranked[0], true
}

// covers reports whether the node or dataset coverage intersects bbox. A candidate with
// no defined coverage covers everything when AssumeGlobal is set.
func (s *Selector) covers(c federation.Candidate, bbox geo.BBox) (ok, assumed bool) {
	coverages := c.Coverages()
	if len(coverages) == 0 {
		return s.AssumeGlobal, s.AssumeGlobal
	}
	for _, cov := range coverages {
		if geo.Intersects(bbox, cov) {
			return true, false
		}
	}
	return false, false
}
