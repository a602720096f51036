package geo

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"gopkg.in/yaml.v3"
)

// Coverage is the declared geographic extent of a node or dataset, reduced to its
// bounding box. The zero value is an undefined coverage: nothing was declared or the
// declaration could not be parsed.
type Coverage struct {
	box     BBox
	defined bool
}

// CoverageOf returns a defined coverage for b.
func CoverageOf(b BBox) Coverage {
	return Coverage{box: b, defined: true}
}

// Defined reports whether the coverage holds a usable bounding box.
func (c Coverage) Defined() bool { return c.defined }

// BBox returns the bounding box and whether the coverage is defined.
func (c Coverage) BBox() (BBox, bool) { return c.box, c.defined }

// String renders a defined coverage as "minX,minY,maxX,maxY" and an undefined one as "".
func (c Coverage) String() string {
	if !c.defined {
		return ""
	}
	return c.box.String()
}

// MarshalJSON encodes a defined coverage as a four element array and an undefined one as null.
func (c Coverage) MarshalJSON() ([]byte, error) {
	if !c.defined {
		return []byte("null"), nil
	}
	return json.Marshal(c.box)
}

// MarshalYAML encodes the coverage in its textual form.
func (c Coverage) MarshalYAML() (interface{}, error) {
	return c.String(), nil
}

// UnmarshalJSON accepts null, a four element array or any form understood by ParseCoverage.
func (c *Coverage) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" || s == "" {
		*c = Coverage{}
		return nil
	}
	if s[0] == '"' {
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
		*c = ParseCoverage(text)
		return nil
	}
	*c = ParseCoverage(s)
	return nil
}

// UnmarshalYAML accepts any of the textual forms understood by ParseCoverage, as well as
// inline YAML sequences and GeoJSON mappings.
func (c *Coverage) UnmarshalYAML(value *yaml.Node) error {
	var raw interface{}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case nil:
		*c = Coverage{}
	case string:
		*c = ParseCoverage(v)
	default:
		data, err := json.Marshal(normalizeYAML(v))
		if err != nil {
			*c = Coverage{}
			return nil
		}
		*c = ParseCoverage(string(data))
	}
	return nil
}

// Intersects reports whether b overlaps the coverage. An undefined coverage never
// intersects; callers decide whether that means "skip spatial filtering" or "exclude".
func Intersects(b BBox, c Coverage) bool {
	cb, ok := c.BBox()
	if !ok {
		return false
	}
	return b.Intersects(cb)
}

// ParseCoverage reads a coverage declaration. Accepted forms:
//
//	"minX,minY,maxX,maxY"
//	[minX, minY, maxX, maxY]
//	{"type":"Polygon","coordinates":[[[x,y],...]]}
//	{"type":"MultiPolygon","coordinates":[[[[x,y],...]]]}
//	{"bbox":[minX,minY,maxX,maxY], ...}
//
// Polygons are reduced to their bounding box. Anything else yields an undefined coverage.
func ParseCoverage(raw string) Coverage {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Coverage{}
	}
	switch raw[0] {
	case '[':
		var arr []float64
		if err := json.Unmarshal([]byte(raw), &arr); err != nil || len(arr) != 4 {
			return Coverage{}
		}
		return coverageFromBox(BBox{arr[0], arr[1], arr[2], arr[3]})
	case '{':
		return parseGeoJSON([]byte(raw))
	default:
		b, err := parseFour(raw)
		if err != nil {
			return Coverage{}
		}
		return coverageFromBox(b)
	}
}

// geoJSONHeader holds the members read before handing the object to orb.
type geoJSONHeader struct {
	Type string       `json:"type"`
	BBox geojson.BBox `json:"bbox"`
}

func parseGeoJSON(data []byte) Coverage {
	var h geoJSONHeader
	if err := json.Unmarshal(data, &h); err != nil {
		return Coverage{}
	}

	if h.Type == "Feature" {
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return Coverage{}
		}
		if c := polygonCoverage(f.Geometry); c.Defined() {
			return c
		}
		if f.BBox.Valid() {
			return boundCoverage(f.BBox.Bound())
		}
		return Coverage{}
	}

	if h.BBox.Valid() {
		return boundCoverage(h.BBox.Bound())
	}
	if h.Type != "Polygon" && h.Type != "MultiPolygon" {
		return Coverage{}
	}
	g, err := geojson.UnmarshalGeometry(data)
	if err != nil {
		return Coverage{}
	}
	return polygonCoverage(g.Geometry())
}

// polygonCoverage is the envelope of a polygon or multipolygon. Other geometry types
// declare no area and yield an undefined coverage.
func polygonCoverage(g orb.Geometry) Coverage {
	switch g.(type) {
	case orb.Polygon, orb.MultiPolygon:
		return boundCoverage(g.Bound())
	default:
		return Coverage{}
	}
}

func boundCoverage(b orb.Bound) Coverage {
	return coverageFromBox(BBox{b.Min.X(), b.Min.Y(), b.Max.X(), b.Max.Y()})
}

// coverageFromBox accepts degenerate boxes (a point or a line is still a declared
// extent) but rejects non-finite or inverted ones.
func coverageFromBox(b BBox) Coverage {
	for _, v := range b {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Coverage{}
		}
	}
	if b.MinX() > b.MaxX() || b.MinY() > b.MaxY() {
		return Coverage{}
	}
	return CoverageOf(b)
}

// normalizeYAML converts map[string]interface{} trees produced by yaml.v3 into values
// encoding/json can marshal.
func normalizeYAML(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = normalizeYAML(val)
		}
		return out
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			if ks, ok := k.(string); ok {
				out[ks] = normalizeYAML(val)
			}
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = normalizeYAML(val)
		}
		return out
	default:
		return v
	}
}
