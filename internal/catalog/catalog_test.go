package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidProducts(t *testing.T) {
	assert.Equal(t,
		[]string{"S101", "S102", "S104", "S111", "S124", "S125", "S131"},
		ValidProductNames())
	assert.Equal(t, []string{"WMS", "WFS", "WCS"}, ValidServiceNames())
}

func TestParseProduct(t *testing.T) {
	tests := []struct {
		in   string
		want Product
		ok   bool
	}{
		{"S101", ProductS101, true},
		{"S131", ProductS131, true},
		{"s101", ProductS101, true},
		{" s124 ", ProductS124, true},
		{"S999", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseProduct(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.ok, IsValidProduct(tt.in))
		})
	}
}

func TestParseService(t *testing.T) {
	got, ok := ParseService("WCS")
	assert.True(t, ok)
	assert.Equal(t, ServiceWCS, got)

	_, ok = ParseService("WMTS")
	assert.False(t, ok)
	got, ok = ParseService("wms")
	assert.True(t, ok)
	assert.Equal(t, ServiceWMS, got)
	assert.True(t, IsValidService("Wfs"))
}

func TestParseOperation(t *testing.T) {
	tests := []struct {
		in   string
		want Operation
		ok   bool
	}{
		{"GetMap", OpGetMap, true},
		{"getmap", OpGetMap, true},
		{"GETCOVERAGE", OpGetCoverage, true},
		{"GetFeatureInfo", OpGetFeatureInfo, true},
		{"GetTile", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseOperation(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRequiresBBox(t *testing.T) {
	for _, op := range ValidOperations() {
		want := op == OpGetMap || op == OpGetCoverage
		assert.Equal(t, want, op.RequiresBBox(), string(op))
	}
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Electronic Navigational Chart", ProductS101.DisplayName())
	assert.Equal(t, "Surface Currents", ProductS111.DisplayName())
	assert.Equal(t, "X1", Product("X1").DisplayName())
}

func TestNew(t *testing.T) {
	t.Run("empty means all", func(t *testing.T) {
		c := Default()
		assert.Len(t, c.Products(), len(ValidProducts()))
		assert.Len(t, c.Services(), len(ValidServices()))
		assert.True(t, c.HasProduct("S124"))
		assert.True(t, c.HasService("WFS"))
	})

	t.Run("narrowed", func(t *testing.T) {
		c, unknown := New([]string{"S101", "S102"}, []string{"WMS"})
		assert.Empty(t, unknown)
		assert.True(t, c.HasProduct("S101"))
		assert.False(t, c.HasProduct("S104"))
		assert.True(t, c.HasService("WMS"))
		assert.False(t, c.HasService("WCS"))
		assert.Equal(t, []Product{ProductS101, ProductS102}, c.Products())
	})

	t.Run("unknown names reported", func(t *testing.T) {
		c, unknown := New([]string{"S101", "S999"}, []string{"WMTS"})
		assert.Equal(t, []string{"S999", "WMTS"}, unknown)
		assert.False(t, c.HasProduct("S999"))
		assert.Empty(t, c.Services())
	})
}
