package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s100fed/fedroute/internal/config"
)

// newDefaultTarget returns a Config with known non-zero values so tests can
// verify that absent overlay keys leave the original values intact.
func newDefaultTarget() *config.Config {
	cfg := config.New()
	cfg.Logging = config.LoggingConfig{Level: "info", Format: "console"}
	cfg.Renderers = []config.RendererConfig{
		{Product: "S101", Service: "WMS", Kind: "static", File: "caps.xml"},
	}
	return cfg
}

// writeOverlay is a test helper that writes YAML content to a temp file
// and returns its path.
func writeOverlay(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "overlay.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestShallowMergeYAML_SingleKeyOverride(t *testing.T) {
	target := newDefaultTarget()
	overlay := writeOverlay(t, `
server:
  listen: ":9443"
  read_timeout: 5s
`)

	err := config.ShallowMergeYAML(target, overlay)
	require.NoError(t, err)

	// Server should be replaced.
	assert.Equal(t, ":9443", target.Server.Listen)
	assert.Equal(t, 5*time.Second, target.Server.ReadTimeout)
	assert.Zero(t, target.Server.WriteTimeout)

	// Other sections should be unchanged.
	assert.Equal(t, "info", target.Logging.Level)
	assert.Equal(t, "console", target.Logging.Format)
	assert.True(t, target.Cache.Enabled)
	assert.Equal(t, 3600, target.Cache.TTLSeconds)
}

func TestShallowMergeYAML_MultipleKeyOverride(t *testing.T) {
	target := newDefaultTarget()
	overlay := writeOverlay(t, `
limits:
  max_width: 2048
  max_height: 1024
cache:
  enabled: false
  ttl_seconds: 600
`)

	err := config.ShallowMergeYAML(target, overlay)
	require.NoError(t, err)

	assert.Equal(t, 2048, target.Limits.MaxWidth)
	assert.Equal(t, 1024, target.Limits.MaxHeight)
	assert.False(t, target.Cache.Enabled)
	assert.Equal(t, 600, target.Cache.TTLSeconds)
	assert.Empty(t, target.Cache.Strategies, "cache section is replaced as a whole")
}

func TestShallowMergeYAML_EmptyAndCommentOnly(t *testing.T) {
	for name, content := range map[string]string{
		"empty":        "",
		"comment only": "# this file is intentionally empty\n# just comments\n",
	} {
		t.Run(name, func(t *testing.T) {
			target := newDefaultTarget()
			original := *target

			require.NoError(t, config.ShallowMergeYAML(target, writeOverlay(t, content)))
			assert.Equal(t, original.Server, target.Server)
			assert.Equal(t, original.Logging, target.Logging)
			assert.Equal(t, original.Routing, target.Routing)
		})
	}
}

func TestShallowMergeYAML_CorruptedYAMLReturnsError(t *testing.T) {
	target := newDefaultTarget()
	overlay := writeOverlay(t, "{{{{not valid yaml at all")

	err := config.ShallowMergeYAML(target, overlay)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing overlay YAML")
}

func TestShallowMergeYAML_MissingFileReturnsError(t *testing.T) {
	target := newDefaultTarget()

	err := config.ShallowMergeYAML(target, "/nonexistent/path/overlay.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading overlay file")
}

func TestShallowMergeYAML_NilTarget(t *testing.T) {
	err := config.ShallowMergeYAML(nil, writeOverlay(t, "server: {}"))
	require.Error(t, err)
}

func TestShallowMergeYAML_OverrideRouting(t *testing.T) {
	target := newDefaultTarget()
	overlay := writeOverlay(t, `
routing:
  min_confidence: 0.7
  health_threshold: WARNING
  resolve_timeout: 1500ms
  exclude_nodes:
    - type: regex
      pattern: "^legacy-"
    - type: glob
      pattern: "test-*"
`)

	err := config.ShallowMergeYAML(target, overlay)
	require.NoError(t, err)

	assert.InDelta(t, 0.7, target.Routing.MinConfidence, 1e-9)
	assert.Equal(t, 1500*time.Millisecond, target.Routing.ResolveTimeout)
	require.Len(t, target.Routing.ExcludeNodes, 2)
	assert.True(t, target.Routing.ExcludeNodes[0].IsRegex())
	assert.Equal(t, "test-*", target.Routing.ExcludeNodes[1].Pattern)
	// Absent pointer defaults to assuming global coverage.
	assert.Nil(t, target.Routing.AssumeGlobalCoverage)
	assert.True(t, target.Routing.AssumeGlobal())
	require.NoError(t, target.Routing.Validate())
}

func TestShallowMergeYAML_OverrideRenderers(t *testing.T) {
	target := newDefaultTarget()
	overlay := writeOverlay(t, `
renderers:
  - product: S102
    service: WCS
    kind: http
    url: http://localhost:8081/wcs
    timeout: 20s
`)

	err := config.ShallowMergeYAML(target, overlay)
	require.NoError(t, err)

	require.Len(t, target.Renderers, 1)
	assert.Equal(t, "S102", target.Renderers[0].Product)
	assert.Equal(t, 20*time.Second, target.Renderers[0].Timeout)
}

func TestShallowMergeYAML_OverrideScoringAndRecommend(t *testing.T) {
	target := newDefaultTarget()
	overlay := writeOverlay(t, `
scoring:
  health_healthy: 0.5
  levels: [0.3, 0.2]
recommend:
  weights:
    quality: 0.5
    preference: 0.3
    context: 0.1
    spatial: 0.1
  preference_saturation: 10
  default_limit: 5
  max_limit: 50
  max_candidates: 200
`)

	err := config.ShallowMergeYAML(target, overlay)
	require.NoError(t, err)

	assert.InDelta(t, 0.5, target.Scoring.HealthHealthy, 1e-9)
	assert.Equal(t, []float64{0.3, 0.2}, target.Scoring.Levels)
	assert.Zero(t, target.Scoring.HealthWarning)
	assert.InDelta(t, 0.5, target.Recommend.Weights.Quality, 1e-9)
	assert.Equal(t, 10, target.Recommend.PreferenceSaturation)
	assert.Equal(t, 200, target.Recommend.MaxCandidates)
}

func TestShallowMergeYAML_UnknownKeysIgnored(t *testing.T) {
	target := newDefaultTarget()
	overlay := writeOverlay(t, `
directory:
  driver: postgres
  database_url: postgres://localhost/fedroute
unknown_section:
  foo: bar
extra_key: 42
`)

	err := config.ShallowMergeYAML(target, overlay)
	require.NoError(t, err)

	// The known key should be applied.
	assert.Equal(t, config.DriverPostgres, target.Directory.Driver)
	assert.Equal(t, "postgres://localhost/fedroute", target.Directory.DatabaseURL)

	// Unknown keys should be silently ignored, no error.
	assert.Equal(t, "info", target.Logging.Level)
}
