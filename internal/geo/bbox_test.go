package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBBox(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    BBox
		wantErr bool
	}{
		{name: "valid", in: "120,30,122,32", want: BBox{120, 30, 122, 32}},
		{name: "whitespace tolerated", in: " 120 , 30, 122 ,32 ", want: BBox{120, 30, 122, 32}},
		{name: "negative coordinates", in: "-10.5,-20,-5,-1.25", want: BBox{-10.5, -20, -5, -1.25}},
		{name: "full world", in: "-180,-90,180,90", want: BBox{-180, -90, 180, 90}},
		{name: "three parts", in: "120,30,122", wantErr: true},
		{name: "five parts", in: "1,2,3,4,5", wantErr: true},
		{name: "empty", in: "", wantErr: true},
		{name: "not a number", in: "a,30,122,32", wantErr: true},
		{name: "NaN", in: "NaN,30,122,32", wantErr: true},
		{name: "infinite", in: "-Inf,30,122,32", wantErr: true},
		{name: "minX equals maxX", in: "120,30,120,32", wantErr: true},
		{name: "minY greater than maxY", in: "120,33,122,32", wantErr: true},
		{name: "longitude out of range", in: "170,30,181,32", wantErr: true},
		{name: "latitude out of range", in: "120,-91,122,32", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseBBox(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidBBox)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBBoxString(t *testing.T) {
	b := BBox{120, 30.5, 122, 32}
	assert.Equal(t, "120,30.5,122,32", b.String())

	parsed, err := ParseBBox(b.String())
	require.NoError(t, err)
	assert.Equal(t, b, parsed)
}

func TestBBoxIntersects(t *testing.T) {
	base := BBox{0, 0, 10, 10}
	tests := []struct {
		name  string
		other BBox
		want  bool
	}{
		{"identical", BBox{0, 0, 10, 10}, true},
		{"contained", BBox{2, 2, 3, 3}, true},
		{"containing", BBox{-5, -5, 15, 15}, true},
		{"partial overlap", BBox{5, 5, 15, 15}, true},
		{"touching edge", BBox{10, 0, 20, 10}, true},
		{"touching corner", BBox{10, 10, 20, 20}, true},
		{"disjoint east", BBox{11, 0, 20, 10}, false},
		{"disjoint west", BBox{-20, 0, -1, 10}, false},
		{"disjoint north", BBox{0, 11, 10, 20}, false},
		{"disjoint south", BBox{0, -20, 10, -0.5}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, base.Intersects(tt.other))
		})
	}
}

func TestBBoxIntersects_Symmetric(t *testing.T) {
	boxes := []BBox{
		{0, 0, 10, 10},
		{5, 5, 15, 15},
		{10, 10, 20, 20},
		{-180, -90, 180, 90},
		{120, 30, 122, 32},
		{121, 31, 121.5, 31.5},
		{-5, -5, -1, -1},
		{100, 0, 101, 1},
	}
	for _, a := range boxes {
		for _, b := range boxes {
			assert.Equal(t, a.Intersects(b), b.Intersects(a), "a=%v b=%v", a, b)
			assert.Equal(t, Intersects(a, CoverageOf(b)), Intersects(b, CoverageOf(a)), "a=%v b=%v", a, b)
		}
	}
}

func TestCenterDistance(t *testing.T) {
	a := BBox{0, 0, 2, 2}
	b := BBox{3, 4, 5, 6}
	assert.InDelta(t, math.Hypot(3, 4), CenterDistance(a, b), 1e-9)
	assert.InDelta(t, 0, CenterDistance(a, a), 1e-9)
}
