// Package scoring computes the routing confidence of a candidate: a bounded [0,1]
// suitability score built from node health, hierarchy level, dataset status and
// dataset freshness. The same score is the quality factor of discovery recommendations.
package scoring

import (
	"math"
	"time"

	"github.com/s100fed/fedroute/internal/federation"
)

// Weights are the contributions of each candidate property to the confidence score.
type Weights struct {
	HealthHealthy float64 `yaml:"health_healthy" json:"health_healthy"`
	HealthWarning float64 `yaml:"health_warning" json:"health_warning"`
	HealthError   float64 `yaml:"health_error" json:"health_error"`
	HealthOther   float64 `yaml:"health_other" json:"health_other"`

	// Levels holds the contribution for hierarchy levels 0..len-1; deeper levels use LevelDeeper.
	Levels      []float64 `yaml:"levels" json:"levels"`
	LevelDeeper float64   `yaml:"level_deeper" json:"level_deeper"`

	StatusPublished  float64 `yaml:"status_published" json:"status_published"`
	StatusProcessing float64 `yaml:"status_processing" json:"status_processing"`

	FreshRecentDays int     `yaml:"fresh_recent_days" json:"fresh_recent_days"`
	FreshRecent     float64 `yaml:"fresh_recent" json:"fresh_recent"`
	FreshAgingDays  int     `yaml:"fresh_aging_days" json:"fresh_aging_days"`
	FreshAging      float64 `yaml:"fresh_aging" json:"fresh_aging"`
}

// DefaultWeights returns the standard confidence weights.
func DefaultWeights() Weights {
	return Weights{
		HealthHealthy:    0.4,
		HealthWarning:    0.2,
		HealthError:      0.05,
		HealthOther:      0.1,
		Levels:           []float64{0.3, 0.25, 0.2, 0.15},
		LevelDeeper:      0.1,
		StatusPublished:  0.2,
		StatusProcessing: 0.1,
		FreshRecentDays:  30,
		FreshRecent:      0.1,
		FreshAgingDays:   90,
		FreshAging:       0.05,
	}
}

// Max returns the largest score the weights can produce before clamping.
func (w Weights) Max() float64 {
	maxLevel := w.LevelDeeper
	for _, l := range w.Levels {
		maxLevel = math.Max(maxLevel, l)
	}
	maxHealth := math.Max(math.Max(w.HealthHealthy, w.HealthWarning), math.Max(w.HealthError, w.HealthOther))
	return maxHealth + maxLevel + math.Max(w.StatusPublished, w.StatusProcessing) + math.Max(w.FreshRecent, w.FreshAging)
}

// Factors breaks a score down by contribution.
type Factors struct {
	Health    float64 `json:"health"`
	Hierarchy float64 `json:"hierarchy"`
	Status    float64 `json:"status"`
	Freshness float64 `json:"freshness"`
}

// Sum returns the unclamped total.
func (f Factors) Sum() float64 {
	return f.Health + f.Hierarchy + f.Status + f.Freshness
}

// Result is a confidence score with its breakdown.
type Result struct {
	Value   float64 `json:"value"`
	Factors Factors `json:"factors"`
}

// Scorer computes confidence scores. It holds no mutable state and is safe for
// concurrent use.
type Scorer struct {
	Weights Weights
	// Now supplies the reference time for freshness. Defaults to time.Now.
	Now func() time.Time
}

// New returns a Scorer with the given weights and the wall clock.
func New(w Weights) *Scorer {
	return &Scorer{Weights: w, Now: time.Now}
}

// Default returns a Scorer with DefaultWeights.
func Default() *Scorer {
	return New(DefaultWeights())
}

// Score computes the confidence of a candidate. The result is clamped to [0,1].
func (s *Scorer) Score(c federation.Candidate) Result {
	w := s.Weights
	f := Factors{
		Health:    w.health(c.Node.Health),
		Hierarchy: w.hierarchy(c.Node.Level),
	}
	if c.Dataset != nil {
		f.Status = w.status(c.Dataset.Status)
		if c.Dataset.PublishedAt != nil {
			f.Freshness = w.freshness(s.now().Sub(*c.Dataset.PublishedAt))
		}
	}
	return Result{Value: Clamp(Quantize(f.Sum())), Factors: f}
}

// Confidence is Score(c).Value.
func (s *Scorer) Confidence(c federation.Candidate) float64 {
	return s.Score(c).Value
}

func (s *Scorer) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func (w Weights) health(h federation.HealthStatus) float64 {
	switch h {
	case federation.HealthHealthy:
		return w.HealthHealthy
	case federation.HealthWarning:
		return w.HealthWarning
	case federation.HealthError:
		return w.HealthError
	default:
		return w.HealthOther
	}
}

func (w Weights) hierarchy(level int) float64 {
	if level >= 0 && level < len(w.Levels) {
		return w.Levels[level]
	}
	return w.LevelDeeper
}

func (w Weights) status(st federation.DatasetStatus) float64 {
	switch st {
	case federation.DatasetPublished:
		return w.StatusPublished
	case federation.DatasetProcessing:
		return w.StatusProcessing
	default:
		return 0
	}
}

// freshness scores the age of a publication. Future timestamps count as brand new.
func (w Weights) freshness(age time.Duration) float64 {
	const day = 24 * time.Hour
	switch {
	case age < time.Duration(w.FreshRecentDays)*day:
		return w.FreshRecent
	case age < time.Duration(w.FreshAgingDays)*day:
		return w.FreshAging
	default:
		return 0
	}
}

// Clamp bounds v to [0,1]. NaN becomes 0.
func Clamp(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// quantum is the resolution scores are compared at. Sums of the same nominal weights
// in a different order land on the same value.
const quantum = 1e6

// Quantize rounds v to six decimal places.
func Quantize(v float64) float64 {
	return math.Round(v*quantum) / quantum
}

// Round2 rounds v to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
