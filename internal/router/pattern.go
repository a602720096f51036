package router

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/s100fed/fedroute/internal/config"
	"github.com/s100fed/fedroute/internal/federation"
)

// CompiledPattern is a pre-compiled pattern for efficient matching.
type CompiledPattern struct {
	// Original is the original pattern configuration.
	Original config.NodePattern

	// Regex is the compiled regex (nil for glob patterns).
	Regex *regexp.Regexp
}

// matchNodeGlob applies filepath.Match with "/" replaced by a non-separator sentinel in
// both the pattern and the node id, so "*" also spans ids such as "cn/msa/east".
func matchNodeGlob(pattern, nodeID string) (bool, error) {
	const sepSentinel = "\x00"

	normPattern := strings.ReplaceAll(pattern, "/", sepSentinel)
	normID := strings.ReplaceAll(nodeID, "/", sepSentinel)
	return filepath.Match(normPattern, normID)
}

// Match checks if the pattern matches the given node id.
func (p *CompiledPattern) Match(nodeID string) (bool, error) {
	if p.Original.IsGlob() {
		return matchNodeGlob(p.Original.Pattern, nodeID)
	}

	if p.Regex != nil {
		return p.Regex.MatchString(nodeID), nil
	}

	return false, fmt.Errorf("pattern not compiled: %s", p.Original.Pattern)
}

// CompilePattern compiles a NodePattern for efficient matching.
// Regex patterns are compiled up front; a pattern that fails to compile is an error.
func CompilePattern(pattern config.NodePattern) (*CompiledPattern, error) {
	compiled := &CompiledPattern{
		Original: pattern,
	}

	switch {
	case pattern.IsRegex():
		regex, err := regexp.Compile(pattern.Pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid regex pattern %q: %w", pattern.Pattern, err)
		}
		compiled.Regex = regex
	case pattern.IsGlob():
		if _, err := filepath.Match(pattern.Pattern, ""); err != nil {
			return nil, fmt.Errorf("invalid glob pattern %q: %w", pattern.Pattern, err)
		}
	default:
		return nil, fmt.Errorf("unknown pattern type %q", pattern.Type)
	}

	return compiled, nil
}

// NodeFilter removes candidates hosted on excluded nodes.
type NodeFilter struct {
	patterns []*CompiledPattern
}

// NewNodeFilter compiles the exclusion patterns.
func NewNodeFilter(patterns []config.NodePattern) (*NodeFilter, error) {
	f := &NodeFilter{}
	for i, p := range patterns {
		compiled, err := CompilePattern(p)
		if err != nil {
			return nil, fmt.Errorf("exclude_nodes[%d]: %w", i, err)
		}
		f.patterns = append(f.patterns, compiled)
	}
	return f, nil
}

// Excluded reports whether any pattern matches nodeID.
func (f *NodeFilter) Excluded(nodeID string) bool {
	if f == nil {
		return false
	}
	for _, p := range f.patterns {
		if matched, err := p.Match(nodeID); err == nil && matched {
			return true
		}
	}
	return false
}

// Apply returns the candidates whose node is not excluded, preserving order, and the
// ids of the excluded nodes.
func (f *NodeFilter) Apply(cands []federation.Candidate) ([]federation.Candidate, []string) {
	if f == nil || len(f.patterns) == 0 {
		return cands, nil
	}
	kept := make([]federation.Candidate, 0, len(cands))
	var excluded []string
	for _, c := range cands {
		if f.Excluded(c.Node.ID) {
			excluded = append(excluded, c.Node.ID)
			continue
		}
		kept = append(kept, c)
	}
	return kept, excluded
}

// Len returns the number of patterns.
func (f *NodeFilter) Len() int {
	if f == nil {
		return 0
	}
	return len(f.patterns)
}
