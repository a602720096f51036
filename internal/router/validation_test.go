package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s100fed/fedroute/internal/config"
)

func TestValidateRoutingConfig_NilConfig(t *testing.T) {
	result := ValidateRoutingConfig(nil)

	assert.True(t, result.Valid)
	assert.Empty(t, result.Errors)
	assert.Empty(t, result.Warnings)
	assert.Equal(t, "valid", result.String())
}

func TestValidateRoutingConfig_Defaults(t *testing.T) {
	result := ValidateRoutingConfig(config.New())

	assert.True(t, result.Valid, result.String())
	assert.Empty(t, result.Errors)
	assert.Empty(t, result.Warnings)
}

func TestValidateRoutingConfig_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		field  string
		substr string
	}{
		{
			name:   "confidence out of range",
			mutate: func(c *config.Config) { c.Routing.MinConfidence = 1.5 },
			field:  "min_confidence",
			substr: "[0,1]",
		},
		{
			name:   "unknown health threshold",
			mutate: func(c *config.Config) { c.Routing.HealthThreshold = "DEGRADED" },
			field:  "health_threshold",
			substr: "DEGRADED",
		},
		{
			name: "invalid pattern type",
			mutate: func(c *config.Config) {
				c.Routing.ExcludeNodes = []config.NodePattern{{Type: "prefix", Pattern: "x"}}
			},
			field:  "exclude_nodes[0].type",
			substr: "glob",
		},
		{
			name: "empty pattern",
			mutate: func(c *config.Config) {
				c.Routing.ExcludeNodes = []config.NodePattern{{Type: "glob"}}
			},
			field:  "exclude_nodes[0].pattern",
			substr: "empty",
		},
		{
			name: "invalid regex",
			mutate: func(c *config.Config) {
				c.Routing.ExcludeNodes = []config.NodePattern{{Type: "regex", Pattern: "[unclosed"}}
			},
			field:  "exclude_nodes[0].pattern",
			substr: "invalid regex",
		},
		{
			name:   "unknown catalog entry",
			mutate: func(c *config.Config) { c.Catalog.Products = []string{"S101", "S999"} },
			field:  "entries",
			substr: "S999",
		},
		{
			name: "renderer for unknown product",
			mutate: func(c *config.Config) {
				c.Renderers = []config.RendererConfig{
					{Product: "S000", Service: "WMS", Kind: "http", URL: "http://render.local/wms"},
				}
			},
			field:  "renderers[0].product",
			substr: "S000",
		},
		{
			name: "duplicate renderer",
			mutate: func(c *config.Config) {
				c.Renderers = []config.RendererConfig{
					{Product: "S101", Service: "WMS", Kind: "http", URL: "http://a.local/wms"},
					{Product: "S101", Service: "WMS", Kind: "http", URL: "http://b.local/wms"},
				}
			},
			field:  "renderers[1]",
			substr: "duplicate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.New()
			tt.mutate(cfg)

			result := ValidateRoutingConfig(cfg)

			assert.False(t, result.Valid)
			require.NotEmpty(t, result.Errors)
			var found bool
			for _, e := range result.Errors {
				if e.Field == tt.field {
					found = true
					assert.Contains(t, e.Message, tt.substr)
				}
			}
			assert.True(t, found, "no error on field %s: %v", tt.field, result.ErrorMessages())
		})
	}
}

func TestValidateRoutingConfig_CollectsAllErrors(t *testing.T) {
	cfg := config.New()
	cfg.Routing.MinConfidence = -1
	cfg.Routing.HealthThreshold = "nope"
	cfg.Routing.ExcludeNodes = []config.NodePattern{{Type: "regex", Pattern: "("}}

	result := ValidateRoutingConfig(cfg)

	assert.False(t, result.Valid)
	assert.Len(t, result.Errors, 3)
	assert.True(t, result.HasErrors())
	assert.Len(t, result.ErrorMessages(), 3)
	assert.Contains(t, result.ErrorMessages()[0], "routing.min_confidence")
}

func TestValidateRoutingConfig_Warnings(t *testing.T) {
	t.Run("duplicate exclusion pattern", func(t *testing.T) {
		cfg := config.New()
		cfg.Routing.ExcludeNodes = []config.NodePattern{
			{Type: "glob", Pattern: "test-*"},
			{Type: "glob", Pattern: "test-*"},
		}
		result := ValidateRoutingConfig(cfg)

		assert.True(t, result.Valid)
		require.Len(t, result.Warnings, 1)
		assert.Equal(t, "exclude_nodes[1]", result.Warnings[0].Field)
		assert.Contains(t, result.Warnings[0].Message, "index 0")
	})

	t.Run("unreachable min confidence", func(t *testing.T) {
		cfg := config.New()
		cfg.Scoring.HealthHealthy = 0.1
		cfg.Routing.MinConfidence = 0.95
		result := ValidateRoutingConfig(cfg)

		assert.True(t, result.Valid)
		require.True(t, result.HasWarnings())
		assert.Equal(t, "scoring", result.Warnings[0].Section)
	})

	t.Run("recommend weights not summing to one", func(t *testing.T) {
		cfg := config.New()
		cfg.Recommend.Weights.Spatial = 0.5
		result := ValidateRoutingConfig(cfg)

		assert.True(t, result.Valid)
		require.Len(t, result.Warnings, 1)
		assert.Equal(t, "recommend.weights: weights sum to 1.40, not 1; composite scores will not span [0,1]",
			result.WarningMessages()[0])
	})

	t.Run("renderer outside narrowed catalog", func(t *testing.T) {
		cfg := config.New()
		cfg.Catalog.Products = []string{"S101"}
		cfg.Renderers = []config.RendererConfig{
			{Product: "S102", Service: "WCS", Kind: "http", URL: "http://render.local/wcs"},
		}
		result := ValidateRoutingConfig(cfg)

		assert.True(t, result.Valid)
		require.Len(t, result.Warnings, 1)
		assert.Contains(t, result.Warnings[0].Message, "S102/WCS")
	})
}
