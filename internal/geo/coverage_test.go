package geo

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParseCoverage(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    BBox
		defined bool
	}{
		{name: "empty", raw: ""},
		{name: "free text", raw: "East China Sea"},
		{name: "bbox string", raw: "120,30,122,32", want: BBox{120, 30, 122, 32}, defined: true},
		{name: "json array", raw: "[120, 30, 122, 32]", want: BBox{120, 30, 122, 32}, defined: true},
		{name: "json array wrong length", raw: "[120, 30, 122]"},
		{
			name: "polygon",
			raw: `{"type":"Polygon","coordinates":[[[120,30],[125,30],[125,35],[120,35],[120,30]]]}`,
			want: BBox{120, 30, 125, 35}, defined: true,
		},
		{
			name: "multipolygon",
			raw: `{"type":"MultiPolygon","coordinates":[[[[0,0],[1,0],[1,1],[0,0]]],[[[5,5],[6,5],[6,7],[5,5]]]]}`,
			want: BBox{0, 0, 6, 7}, defined: true,
		},
		{
			name: "feature wrapping polygon",
			raw: `{"type":"Feature","geometry":{"type":"Polygon","coordinates":[[[1,2],[3,2],[3,4],[1,2]]]}}`,
			want: BBox{1, 2, 3, 4}, defined: true,
		},
		{name: "bbox member", raw: `{"type":"Point","bbox":[1,2,3,4]}`, want: BBox{1, 2, 3, 4}, defined: true},
		{name: "point geometry", raw: `{"type":"Point","coordinates":[1,2]}`},
		{name: "empty polygon", raw: `{"type":"Polygon","coordinates":[]}`},
		{name: "malformed json", raw: `{"type":`},
		{name: "inverted box", raw: "10,10,0,0"},
		{
			name: "polygon with hole",
			raw:  `{"type":"Polygon","coordinates":[[[0,0],[10,0],[10,10],[0,10],[0,0]],[[2,2],[3,2],[3,3],[2,2]]]}`,
			want: BBox{0, 0, 10, 10}, defined: true,
		},
		{
			name: "feature bbox without geometry",
			raw:  `{"type":"Feature","bbox":[-8,49,2,61],"geometry":null,"properties":{}}`,
			want: BBox{-8, 49, 2, 61}, defined: true,
		},
		{
			name: "feature point falls back to bbox",
			raw:  `{"type":"Feature","bbox":[1,1,2,2],"geometry":{"type":"Point","coordinates":[1.5,1.5]},"properties":null}`,
			want: BBox{1, 1, 2, 2}, defined: true,
		},
		{name: "feature without area", raw: `{"type":"Feature","geometry":{"type":"Point","coordinates":[1,2]},"properties":{}}`},
		{name: "line string", raw: `{"type":"LineString","coordinates":[[0,0],[1,1]]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := ParseCoverage(tt.raw)
			assert.Equal(t, tt.defined, c.Defined())
			if tt.defined {
				b, ok := c.BBox()
				require.True(t, ok)
				assert.Equal(t, tt.want, b)
			}
		})
	}
}

func TestIntersects_UndefinedCoverage(t *testing.T) {
	assert.False(t, Intersects(BBox{-180, -90, 180, 90}, Coverage{}))
	assert.False(t, Intersects(BBox{0, 0, 1, 1}, ParseCoverage("somewhere")))
}

func TestCoverageJSON(t *testing.T) {
	c := CoverageOf(BBox{1, 2, 3, 4})
	data, err := json.Marshal(c)
	require.NoError(t, err)
	assert.JSONEq(t, "[1,2,3,4]", string(data))

	var decoded Coverage
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, c, decoded)

	data, err = json.Marshal(Coverage{})
	require.NoError(t, err)
	assert.Equal(t, "null", string(data))

	require.NoError(t, json.Unmarshal([]byte("null"), &decoded))
	assert.False(t, decoded.Defined())

	require.NoError(t, json.Unmarshal([]byte(`"5,6,7,8"`), &decoded))
	assert.Equal(t, CoverageOf(BBox{5, 6, 7, 8}), decoded)
}

func TestCoverageYAML(t *testing.T) {
	var doc struct {
		Text    Coverage `yaml:"text"`
		Seq     Coverage `yaml:"seq"`
		Polygon Coverage `yaml:"polygon"`
		Missing Coverage `yaml:"missing"`
	}
	src := `
text: "120,30,122,32"
seq: [1, 2, 3, 4]
polygon:
  type: Polygon
  coordinates: [[[0, 0], [2, 0], [2, 3], [0, 0]]]
`
	require.NoError(t, yaml.Unmarshal([]byte(src), &doc))
	assert.Equal(t, CoverageOf(BBox{120, 30, 122, 32}), doc.Text)
	assert.Equal(t, CoverageOf(BBox{1, 2, 3, 4}), doc.Seq)
	assert.Equal(t, CoverageOf(BBox{0, 0, 2, 3}), doc.Polygon)
	assert.False(t, doc.Missing.Defined())
}
