package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s100fed/fedroute/internal/config"
	"github.com/s100fed/fedroute/internal/federation"
)

func TestCompilePattern_Glob(t *testing.T) {
	pattern := config.NodePattern{
		Type:    "glob",
		Pattern: "test-*",
	}

	compiled, err := CompilePattern(pattern)
	require.NoError(t, err)
	require.NotNil(t, compiled)
	assert.Nil(t, compiled.Regex, "glob patterns should not have compiled regex")
	assert.Equal(t, pattern, compiled.Original)
}

func TestCompilePattern_Regex(t *testing.T) {
	pattern := config.NodePattern{
		Type:    "regex",
		Pattern: "^(legacy|staging)-",
	}

	compiled, err := CompilePattern(pattern)
	require.NoError(t, err)
	require.NotNil(t, compiled)
	assert.NotNil(t, compiled.Regex, "regex patterns should have compiled regex")
}

func TestCompilePattern_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		pattern config.NodePattern
		wantErr string
	}{
		{"unclosed regex", config.NodePattern{Type: "regex", Pattern: "^(legacy"}, "invalid regex"},
		{"bad glob", config.NodePattern{Type: "glob", Pattern: "[a-"}, "invalid glob"},
		{"unknown type", config.NodePattern{Type: "prefix", Pattern: "a"}, "unknown pattern type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			compiled, err := CompilePattern(tt.pattern)
			require.Error(t, err)
			assert.Nil(t, compiled)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestCompiledPattern_Match_Glob(t *testing.T) {
	tests := []struct {
		name      string
		pattern   string
		nodeID    string
		wantMatch bool
	}{
		{"exact match", "cn-msa", "cn-msa", true},
		{"wildcard suffix", "test-*", "test-node-1", true},
		{"wildcard crosses slash", "cn/*", "cn/msa/east", true},
		{"question mark single char", "node-?", "node-7", true},
		{"character class", "node-[12]", "node-2", true},
		{"no match", "test-*", "prod-node", false},
		{"prefix only", "test", "test-node", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			compiled, err := CompilePattern(config.NodePattern{Type: "glob", Pattern: tt.pattern})
			require.NoError(t, err)

			matched, err := compiled.Match(tt.nodeID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantMatch, matched)
		})
	}
}

func TestCompiledPattern_Match_Regex(t *testing.T) {
	compiled, err := CompilePattern(config.NodePattern{Type: "regex", Pattern: "^(legacy|staging)-"})
	require.NoError(t, err)

	for id, want := range map[string]bool{
		"legacy-uk":   true,
		"staging-cn":  true,
		"uk-legacy-1": false,
		"production":  false,
	} {
		matched, err := compiled.Match(id)
		require.NoError(t, err)
		assert.Equal(t, want, matched, id)
	}
}

func TestCompiledPattern_Match_NotCompiled(t *testing.T) {
	p := &CompiledPattern{Original: config.NodePattern{Type: "regex", Pattern: "x"}}
	_, err := p.Match("x")
	require.Error(t, err)
}

func TestNodeFilter_Apply(t *testing.T) {
	f, err := NewNodeFilter([]config.NodePattern{
		{Type: "glob", Pattern: "test-*"},
		{Type: "regex", Pattern: "^legacy-"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, f.Len())

	cands := []federation.Candidate{
		{Capability: federation.Capability{ID: "1"}, Node: federation.Node{ID: "cn-msa"}},
		{Capability: federation.Capability{ID: "2"}, Node: federation.Node{ID: "test-a"}},
		{Capability: federation.Capability{ID: "3"}, Node: federation.Node{ID: "legacy-uk"}},
		{Capability: federation.Capability{ID: "4"}, Node: federation.Node{ID: "sh-port"}},
	}

	kept, excluded := f.Apply(cands)
	require.Len(t, kept, 2)
	assert.Equal(t, "1", kept[0].ID())
	assert.Equal(t, "4", kept[1].ID())
	assert.Equal(t, []string{"test-a", "legacy-uk"}, excluded)
}

func TestNodeFilter_Empty(t *testing.T) {
	var nilFilter *NodeFilter
	assert.False(t, nilFilter.Excluded("any"))
	assert.Zero(t, nilFilter.Len())

	cands := []federation.Candidate{{Node: federation.Node{ID: "a"}}}
	kept, excluded := nilFilter.Apply(cands)
	assert.Equal(t, cands, kept)
	assert.Nil(t, excluded)

	f, err := NewNodeFilter(nil)
	require.NoError(t, err)
	kept, _ = f.Apply(cands)
	assert.Equal(t, cands, kept)
}

func TestNewNodeFilter_Invalid(t *testing.T) {
	_, err := NewNodeFilter([]config.NodePattern{{Type: "glob", Pattern: "ok"}, {Type: "regex", Pattern: "("}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exclude_nodes[1]")
}
