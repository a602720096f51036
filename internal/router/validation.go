package router

import (
	"fmt"
	"math"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/s100fed/fedroute/internal/catalog"
	"github.com/s100fed/fedroute/internal/config"
	"github.com/s100fed/fedroute/internal/federation"
)

// ValidationResult contains the results of configuration validation.
type ValidationResult struct {
	// Valid is true if no errors were found.
	// Warnings do not affect validity.
	Valid bool `json:"valid"`

	// Errors are blocking issues that prevent routing.
	// If len(Errors) > 0, Valid must be false.
	Errors []ValidationError `json:"errors"`

	// Warnings are non-blocking issues that should be reviewed.
	// Routing will still work, but behavior may be unexpected.
	Warnings []ValidationWarning `json:"warnings"`
}

// ValidationError represents a blocking validation error.
type ValidationError struct {
	// Section is the configuration section (empty for global errors).
	Section string `json:"section"`

	// Field is the configuration field with the error.
	// Examples: "health_threshold", "exclude_nodes[0].pattern"
	Field string `json:"field"`

	// Message describes the error.
	Message string `json:"message"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Section != "" {
		return e.Section + "." + e.Field + ": " + e.Message
	}
	return e.Field + ": " + e.Message
}

// ValidationWarning represents a non-blocking warning.
type ValidationWarning struct {
	// Section is the configuration section (empty for global warnings).
	Section string `json:"section"`

	// Field is the configuration field with the warning.
	Field string `json:"field"`

	// Message describes the warning.
	Message string `json:"message"`
}

const weightSumTolerance = 1e-6

// ValidateRoutingConfig checks a configuration for problems that affect routing and
// recommendation. Unlike config.Validate it collects every issue instead of stopping at
// the first, and reports advisories that do not block startup.
//
// A nil cfg is valid.
//
//nolint:gocognit,funlen // Validation logic requires nested checks for comprehensive coverage
func ValidateRoutingConfig(cfg *config.Config) ValidationResult {
	result := ValidationResult{
		Valid:    true,
		Errors:   make([]ValidationError, 0),
		Warnings: make([]ValidationWarning, 0),
	}

	if cfg == nil {
		return result
	}

	addErr := func(section, field, msg string) {
		result.Valid = false
		result.Errors = append(result.Errors, ValidationError{Section: section, Field: field, Message: msg})
	}
	addWarn := func(section, field, msg string) {
		result.Warnings = append(result.Warnings, ValidationWarning{Section: section, Field: field, Message: msg})
	}

	routing := cfg.Routing
	if routing.MinConfidence < 0 || routing.MinConfidence > 1 {
		addErr("routing", "min_confidence", fmt.Sprintf("must be within [0,1], got %g", routing.MinConfidence))
	}
	if routing.HealthThreshold != "" && routing.Threshold() == federation.HealthUnknown {
		addErr("routing", "health_threshold", fmt.Sprintf("unknown status %q; valid values are %v",
			routing.HealthThreshold, federation.AtLeast(federation.HealthOffline)))
	}
	if routing.ResolveTimeout < 0 {
		addErr("routing", "resolve_timeout", "must be non-negative")
	}

	seenPatterns := make(map[config.NodePattern]int)
	for i, pattern := range routing.ExcludeNodes {
		fieldName := fmt.Sprintf("exclude_nodes[%d]", i)

		if pattern.Type != config.PatternTypeGlob && pattern.Type != config.PatternTypeRegex {
			addErr("routing", fieldName+".type",
				fmt.Sprintf("invalid pattern type %q; must be \"glob\" or \"regex\"", pattern.Type))
			continue
		}

		if pattern.Pattern == "" {
			addErr("routing", fieldName+".pattern", "pattern cannot be empty")
			continue
		}

		if prev, seen := seenPatterns[pattern]; seen {
			addWarn("routing", fieldName, fmt.Sprintf("duplicate pattern (also at index %d)", prev))
		} else {
			seenPatterns[pattern] = i
		}

		switch pattern.Type {
		case config.PatternTypeRegex:
			if _, err := regexp.Compile(pattern.Pattern); err != nil {
				addErr("routing", fieldName+".pattern", fmt.Sprintf("invalid regex: %v", err))
			}
		case config.PatternTypeGlob:
			if _, err := filepath.Match(pattern.Pattern, ""); err != nil {
				addErr("routing", fieldName+".pattern", fmt.Sprintf("invalid glob: %v", err))
			}
		}
	}

	if maxScore := cfg.Scoring.Max(); maxScore < routing.MinConfidence {
		addWarn("scoring", "weights", fmt.Sprintf(
			"highest reachable confidence %.2f is below min_confidence %.2f; every request will render locally",
			maxScore, routing.MinConfidence))
	}

	w := cfg.Recommend.Weights
	if sum := w.Quality + w.Preference + w.Context + w.Spatial; math.Abs(sum-1) > weightSumTolerance {
		addWarn("recommend", "weights", fmt.Sprintf("weights sum to %.2f, not 1; composite scores will not span [0,1]", sum))
	}

	cat, unknown := catalog.New(cfg.Catalog.Products, cfg.Catalog.Services)
	for _, name := range unknown {
		addErr("catalog", "entries", fmt.Sprintf("unknown product or service %q", name))
	}

	seenRenderers := make(map[string]int)
	for i, r := range cfg.Renderers {
		fieldName := fmt.Sprintf("renderers[%d]", i)
		if err := r.Validate(); err != nil {
			addErr("renderers", fieldName, err.Error())
		}

		product, okProduct := catalog.ParseProduct(r.Product)
		service, okService := catalog.ParseService(r.Service)
		if !okProduct {
			addErr("renderers", fieldName+".product", fmt.Sprintf("unknown product %q", r.Product))
		}
		if !okService {
			addErr("renderers", fieldName+".service", fmt.Sprintf("unknown service %q", r.Service))
		}
		if !okProduct || !okService {
			continue
		}

		key := string(product) + "/" + string(service)
		if prev, seen := seenRenderers[key]; seen {
			addErr("renderers", fieldName, fmt.Sprintf("duplicate renderer for %s (also at index %d)", key, prev))
		} else {
			seenRenderers[key] = i
		}

		if !cat.HasProduct(string(product)) || !cat.HasService(string(service)) {
			addWarn("renderers", fieldName,
				fmt.Sprintf("%s is outside the configured catalog and will never be used", key))
		}
	}

	return result
}

// HasErrors returns true if the validation result contains any errors.
func (r ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// HasWarnings returns true if the validation result contains any warnings.
func (r ValidationResult) HasWarnings() bool {
	return len(r.Warnings) > 0
}

// ErrorMessages returns all error messages as a slice of strings.
func (r ValidationResult) ErrorMessages() []string {
	messages := make([]string, len(r.Errors))
	for i, err := range r.Errors {
		messages[i] = err.Error()
	}
	return messages
}

// WarningMessages returns all warning messages as a slice of strings.
func (r ValidationResult) WarningMessages() []string {
	messages := make([]string, len(r.Warnings))
	for i, warn := range r.Warnings {
		if warn.Section != "" {
			messages[i] = warn.Section + "." + warn.Field + ": " + warn.Message
		} else {
			messages[i] = warn.Field + ": " + warn.Message
		}
	}
	return messages
}

// String summarizes the result on one line.
func (r ValidationResult) String() string {
	if r.Valid && !r.HasWarnings() {
		return "valid"
	}
	parts := append(r.ErrorMessages(), r.WarningMessages()...)
	return strings.Join(parts, "; ")
}
