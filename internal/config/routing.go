package config

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/s100fed/fedroute/internal/federation"
)

const (
	defaultMinConfidence  = 0.5
	defaultResolveTimeout = 5 * time.Second
)

// RoutingConfig defines how requests are resolved to federation nodes.
//
// YAML Location: ~/.fedroute/config.yaml under "routing" key
//
// Example:
//
//	routing:
//	  min_confidence: 0.5
//	  health_threshold: HEALTHY
//	  assume_global_coverage: true
//	  resolve_timeout: 5s
//	  exclude_nodes:
//	    - type: glob
//	      pattern: "test-*"
type RoutingConfig struct {
	// MinConfidence is the lowest confidence a candidate may have to be selected.
	// Must be within [0,1]. Default 0.5.
	MinConfidence float64 `yaml:"min_confidence" json:"min_confidence"`

	// HealthThreshold is the least healthy node status eligible for routing.
	// One of HEALTHY, WARNING, ERROR, OFFLINE. Default HEALTHY.
	HealthThreshold string `yaml:"health_threshold" json:"health_threshold"`

	// AssumeGlobalCoverage keeps candidates without any parsable coverage when a
	// bounding box is requested. Default is true if not specified.
	AssumeGlobalCoverage *bool `yaml:"assume_global_coverage,omitempty" json:"assume_global_coverage,omitempty"`

	// ResolveTimeout bounds the directory lookup and the local renderer call.
	ResolveTimeout time.Duration `yaml:"resolve_timeout" json:"resolve_timeout"`

	// ExcludeNodes removes matching node ids from routing before selection.
	ExcludeNodes []NodePattern `yaml:"exclude_nodes,omitempty" json:"exclude_nodes,omitempty"`
}

// NodePattern matches node identifiers.
type NodePattern struct {
	// Type is the pattern type.
	// Required. Must be "glob" or "regex".
	//
	// "glob": Uses Go's filepath.Match semantics
	//   - "*" matches any sequence of non-separator characters
	//   - Example: "test-*" matches "test-node-1"
	//
	// "regex": Uses Go's regexp package (RE2 syntax)
	//   - Example: "^(legacy|staging)-" matches "legacy-uk"
	Type string `yaml:"type" json:"type"`

	// Pattern is the pattern string.
	// Required. Must be non-empty.
	Pattern string `yaml:"pattern" json:"pattern"`
}

// PatternTypeGlob is the pattern type for glob matching.
const PatternTypeGlob = "glob"

// PatternTypeRegex is the pattern type for regex matching.
const PatternTypeRegex = "regex"

// IsGlob returns true if this is a glob pattern.
func (p NodePattern) IsGlob() bool {
	return p.Type == PatternTypeGlob
}

// IsRegex returns true if this is a regex pattern.
func (p NodePattern) IsRegex() bool {
	return p.Type == PatternTypeRegex
}

// DefaultRoutingConfig returns the routing defaults.
func DefaultRoutingConfig() RoutingConfig {
	assume := true
	return RoutingConfig{
		MinConfidence:        defaultMinConfidence,
		HealthThreshold:      string(federation.HealthHealthy),
		AssumeGlobalCoverage: &assume,
		ResolveTimeout:       defaultResolveTimeout,
	}
}

// AssumeGlobal returns whether coverage-less candidates match any bounding box.
// Returns true if AssumeGlobalCoverage is nil.
func (r RoutingConfig) AssumeGlobal() bool {
	if r.AssumeGlobalCoverage == nil {
		return true
	}
	return *r.AssumeGlobalCoverage
}

// Threshold returns the parsed health threshold, HEALTHY when unset.
func (r RoutingConfig) Threshold() federation.HealthStatus {
	if strings.TrimSpace(r.HealthThreshold) == "" {
		return federation.HealthHealthy
	}
	return federation.ParseHealthStatus(r.HealthThreshold)
}

// Timeout returns ResolveTimeout, or the default when unset.
func (r RoutingConfig) Timeout() time.Duration {
	if r.ResolveTimeout <= 0 {
		return defaultResolveTimeout
	}
	return r.ResolveTimeout
}

// Validate performs structural validation of the routing configuration.
// It checks the confidence range, the health threshold name, the timeout and
// every exclusion pattern.
func (r *RoutingConfig) Validate() error {
	if r == nil {
		return nil
	}

	if r.MinConfidence < 0 || r.MinConfidence > 1 {
		return fmt.Errorf("min_confidence must be within [0,1], got %g", r.MinConfidence)
	}

	if r.HealthThreshold != "" && r.Threshold() == federation.HealthUnknown {
		return fmt.Errorf("health_threshold: unknown status %q", r.HealthThreshold)
	}

	if r.ResolveTimeout < 0 {
		return fmt.Errorf("resolve_timeout must be non-negative, got %s", r.ResolveTimeout)
	}

	for i, pattern := range r.ExcludeNodes {
		if err := validatePattern(i, pattern); err != nil {
			return err
		}
	}

	return nil
}

// validatePattern validates a single node exclusion pattern.
func validatePattern(index int, pattern NodePattern) error {
	if pattern.Pattern == "" {
		return fmt.Errorf("exclude_nodes[%d]: pattern string is required", index)
	}

	switch pattern.Type {
	case PatternTypeRegex:
		if _, err := regexp.Compile(pattern.Pattern); err != nil {
			return fmt.Errorf("exclude_nodes[%d]: invalid regex %q: %w", index, pattern.Pattern, err)
		}
	case PatternTypeGlob:
		if _, err := filepath.Match(pattern.Pattern, ""); err != nil {
			return fmt.Errorf("exclude_nodes[%d]: invalid glob %q: %w", index, pattern.Pattern, err)
		}
	default:
		return fmt.Errorf("exclude_nodes[%d]: invalid type %q (must be %q or %q)",
			index, pattern.Type, PatternTypeGlob, PatternTypeRegex)
	}
	return nil
}
