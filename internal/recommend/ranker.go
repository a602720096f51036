// Package recommend ranks discovery candidates for a user. The composite score
// blends routing quality with usage history, free-text context and spatial fit;
// factors that the request gives no input for are left out of the sum entirely.
package recommend

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/text/cases"

	"github.com/s100fed/fedroute/internal/federation"
	"github.com/s100fed/fedroute/internal/geo"
	"github.com/s100fed/fedroute/internal/logging"
	"github.com/s100fed/fedroute/internal/scoring"
)

// DefaultPreferenceSaturation is the access count at which a preference term saturates.
const DefaultPreferenceSaturation = 20

// Spatial factor values.
const (
	SpatialIntersects = 1.0
	SpatialDisjoint   = 0.3
	SpatialUnknown    = 0.5
)

// Explanation thresholds and texts.
const (
	highQualityThreshold = 0.7
	goodQualityThreshold = 0.5
	preferenceThreshold  = 0.5
	contextThreshold     = 0.5
	spatialThreshold     = 0.7

	ExplainHighQuality = "High-quality service from a healthy node"
	ExplainGoodQuality = "Good service quality"
	ExplainSpatial     = "Coverage closely matches the requested area"
	ExplainCombined    = "Combined relevance"

	productShare = 0.6
	serviceShare = 0.4

	maxVariancePenalty = 0.8
)

// Weights are the contributions of each factor to the composite score.
type Weights struct {
	Quality    float64 `yaml:"quality" json:"quality"`
	Preference float64 `yaml:"preference" json:"preference"`
	Context    float64 `yaml:"context" json:"context"`
	Spatial    float64 `yaml:"spatial" json:"spatial"`
}

// DefaultWeights returns the standard composite weights.
func DefaultWeights() Weights {
	return Weights{Quality: 0.3, Preference: 0.4, Context: 0.2, Spatial: 0.1}
}

// Context carries the per-request inputs of the ranker. Empty History, empty Text and
// a nil BBox each drop their factor from the composite.
type Context struct {
	History []AccessRecord
	Text    string
	BBox    *geo.BBox
}

// Ranker orders candidates by composite score.
type Ranker struct {
	Scorer               *scoring.Scorer
	Weights              Weights
	PreferenceSaturation int
	// NewID returns the unique suffix of a recommendation id. Defaults to a ULID.
	NewID func() string
}

// Option configures a Ranker.
type Option func(*Ranker)

// WithScorer sets the quality scorer.
func WithScorer(s *scoring.Scorer) Option {
	return func(r *Ranker) { r.Scorer = s }
}

// WithWeights sets the composite weights.
func WithWeights(w Weights) Option {
	return func(r *Ranker) { r.Weights = w }
}

// WithPreferenceSaturation sets the saturation access count. Non-positive values are ignored.
func WithPreferenceSaturation(n int) Option {
	return func(r *Ranker) {
		if n > 0 {
			r.PreferenceSaturation = n
		}
	}
}

// WithIDGenerator replaces the ULID suffix generator.
func WithIDGenerator(fn func() string) Option {
	return func(r *Ranker) { r.NewID = fn }
}

// NewRanker returns a Ranker with default weights and scorer.
func NewRanker(opts ...Option) *Ranker {
	r := &Ranker{
		Scorer:               scoring.Default(),
		Weights:              DefaultWeights(),
		PreferenceSaturation: DefaultPreferenceSaturation,
		NewID:                func() string { return ulid.Make().String() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type ranked struct {
	scored    federation.ScoredCandidate
	composite float64
}

// Rank scores every candidate and returns at most limit of them, best first. Ordering
// uses the quantized composite; ties go to the lower hierarchy level, then the lower
// candidate id. A non-positive limit returns all candidates.
func (r *Ranker) Rank(ctx context.Context, cands []federation.Candidate, rc Context, limit int) []federation.ScoredCandidate {
	log := logging.FromContext(ctx)
	start := time.Now()

	terms := contextTerms(cases.Fold(), rc.Text)

	out := make([]ranked, 0, len(cands))
	for _, c := range cands {
		f := federation.Factors{Quality: r.scorer().Confidence(c)}
		if len(rc.History) > 0 {
			p := Preference(c, rc.History, r.saturation())
			f.Preference = &p
		}
		if len(terms) > 0 {
			v := ContextScore(c, rc.Text)
			f.Context = &v
		}
		if rc.BBox != nil {
			s := Spatial(c, *rc.BBox)
			f.Spatial = &s
		}

		composite := Composite(f, r.Weights)
		out = append(out, ranked{
			composite: composite,
			scored: federation.ScoredCandidate{
				Candidate:        c,
				RecommendationID: r.recommendationID(c),
				Score:            scoring.Round2(composite),
				Factors:          f,
				Explanations:     Explain(c, f, rc.Text),
				Confidence:       Confidence(f),
			},
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.composite != b.composite {
			return a.composite > b.composite
		}
		if a.scored.Candidate.Node.Level != b.scored.Candidate.Node.Level {
			return a.scored.Candidate.Node.Level < b.scored.Candidate.Node.Level
		}
		return a.scored.Candidate.ID() < b.scored.Candidate.ID()
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}

	result := make([]federation.ScoredCandidate, len(out))
	for i, o := range out {
		result[i] = o.scored
	}

	log.Debug().
		Ctx(ctx).
		Str("component", "recommend").
		Str("operation", "rank").
		Int("candidates", len(cands)).
		Int("returned", len(result)).
		Bool("history", len(rc.History) > 0).
		Bool("text", len(terms) > 0).
		Bool("bbox", rc.BBox != nil).
		Dur("duration_ms", time.Since(start)).
		Msg("ranked recommendations")

	return result
}

func (r *Ranker) scorer() *scoring.Scorer {
	if r.Scorer == nil {
		return scoring.Default()
	}
	return r.Scorer
}

func (r *Ranker) saturation() int {
	if r.PreferenceSaturation <= 0 {
		return DefaultPreferenceSaturation
	}
	return r.PreferenceSaturation
}

func (r *Ranker) recommendationID(c federation.Candidate) string {
	suffix := ""
	if r.NewID != nil {
		suffix = r.NewID()
	}
	return fmt.Sprintf("%s_%s_%s_%s", c.Node.ID, c.Capability.ProductType, c.Capability.ServiceType, suffix)
}

// Composite is the weighted sum of the applied factors, quantized to six decimals so
// candidates with the same nominal factors tie. It is not rounded for display.
func Composite(f federation.Factors, w Weights) float64 {
	score := w.Quality * f.Quality
	if f.Preference != nil {
		score += w.Preference * *f.Preference
	}
	if f.Context != nil {
		score += w.Context * *f.Context
	}
	if f.Spatial != nil {
		score += w.Spatial * *f.Spatial
	}
	return scoring.Quantize(score)
}

// Preference scores how often the user accessed the candidate's product and service
// types. Each side saturates at saturation accesses.
func Preference(c federation.Candidate, history []AccessRecord, saturation int) float64 {
	if saturation <= 0 {
		saturation = DefaultPreferenceSaturation
	}
	var products, services, productHits, serviceHits int
	for _, h := range history {
		if h.ProductType == c.Capability.ProductType {
			products += h.AccessCount
			productHits++
		}
		if h.ServiceType == c.Capability.ServiceType {
			services += h.AccessCount
			serviceHits++
		}
	}

	score := 0.0
	if productHits > 0 {
		score += math.Min(float64(products)/float64(saturation), 1) * productShare
	}
	if serviceHits > 0 {
		score += math.Min(float64(services)/float64(saturation), 1) * serviceShare
	}
	return scoring.Clamp(score)
}

// ContextScore returns the fraction of whitespace-separated terms of text that occur in
// the candidate's searchable text, compared with Unicode case folding.
func ContextScore(c federation.Candidate, text string) float64 {
	caser := cases.Fold()
	terms := contextTerms(caser, text)
	if len(terms) == 0 {
		return 0
	}
	return termFraction(caser, c.SearchableText(), terms)
}

func contextTerms(caser cases.Caser, text string) []string {
	return strings.Fields(caser.String(text))
}

func termFraction(caser cases.Caser, searchable string, terms []string) float64 {
	haystack := caser.String(searchable)
	matched := 0
	for _, t := range terms {
		if strings.Contains(haystack, t) {
			matched++
		}
	}
	return float64(matched) / float64(len(terms))
}

// Spatial scores the candidate's first defined coverage, node before dataset, against bbox.
func Spatial(c federation.Candidate, bbox geo.BBox) float64 {
	coverages := c.Coverages()
	if len(coverages) == 0 {
		return SpatialUnknown
	}
	if geo.Intersects(bbox, coverages[0]) {
		return SpatialIntersects
	}
	return SpatialDisjoint
}

// Explain returns the human-readable reasons for a recommendation.
func Explain(c federation.Candidate, f federation.Factors, text string) []string {
	var out []string
	switch {
	case f.Quality > highQualityThreshold:
		out = append(out, ExplainHighQuality)
	case f.Quality > goodQualityThreshold:
		out = append(out, ExplainGoodQuality)
	}
	if f.Preference != nil && *f.Preference > preferenceThreshold {
		out = append(out, fmt.Sprintf("Matches your usage history for %s %s",
			c.Capability.ProductType, c.Capability.ServiceType))
	}
	if f.Context != nil && *f.Context > contextThreshold {
		out = append(out, fmt.Sprintf("Strongly matches %q", text))
	}
	if f.Spatial != nil && *f.Spatial > spatialThreshold {
		out = append(out, ExplainSpatial)
	}
	if len(out) == 0 {
		out = append(out, ExplainCombined)
	}
	return out
}

// Confidence is 1 minus twice the mean squared distance of the applied factors from
// 0.5, with the penalty capped at 0.8, rounded to two decimals.
func Confidence(f federation.Factors) float64 {
	applied := f.Applied()
	variance := 0.0
	for _, v := range applied {
		variance += (v - 0.5) * (v - 0.5)
	}
	variance /= float64(len(applied))
	return scoring.Round2(1 - math.Min(variance*2, maxVariancePenalty))
}
