// Package directory is the read-only query surface over the federation's capability
// records. Every Store returns joined candidates (capability, node, optional dataset)
// that are enabled, whose node meets the requested health threshold and whose dataset,
// if any, is published. Result order is not guaranteed.
package directory

import (
	"context"
	"errors"

	"github.com/s100fed/fedroute/internal/federation"
)

// ErrStoreUnavailable is wrapped when the backing store cannot be queried.
var ErrStoreUnavailable = errors.New("directory store unavailable")

// Filter narrows a candidate lookup. Empty type lists match every type.
type Filter struct {
	ProductTypes    []string
	ServiceTypes    []string
	HealthThreshold federation.HealthStatus

	// Limit caps the number of candidates returned; 0 means no cap. Capped results keep
	// the shallowest nodes first.
	Limit int
}

// Threshold returns the effective health threshold (HEALTHY when unset).
func (f Filter) Threshold() federation.HealthStatus {
	if f.HealthThreshold == "" {
		return federation.HealthHealthy
	}
	return f.HealthThreshold
}

// Matches reports whether c passes the filter, including eligibility.
func (f Filter) Matches(c federation.Candidate) bool {
	if !contains(f.ProductTypes, c.Capability.ProductType) || !contains(f.ServiceTypes, c.Capability.ServiceType) {
		return false
	}
	return c.Eligible(f.Threshold())
}

// Store finds routing candidates.
type Store interface {
	FindCandidates(ctx context.Context, f Filter) ([]federation.Candidate, error)
}

// StoreFunc adapts a function to the Store interface.
type StoreFunc func(ctx context.Context, f Filter) ([]federation.Candidate, error)

// FindCandidates calls fn.
func (fn StoreFunc) FindCandidates(ctx context.Context, f Filter) ([]federation.Candidate, error) {
	return fn(ctx, f)
}

func contains(set []string, v string) bool {
	if len(set) == 0 {
		return true
	}
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
