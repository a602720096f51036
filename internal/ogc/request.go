// Package ogc normalizes and validates OGC-style service requests (WMS, WFS, WCS).
// Validation is pure: it never touches storage or the network.
package ogc

import (
	"net/url"
	"sort"
	"strings"

	"github.com/s100fed/fedroute/internal/catalog"
	"github.com/s100fed/fedroute/internal/geo"
)

// Standard OGC query parameter names. Lookup is case-insensitive.
const (
	ParamService = "SERVICE"
	ParamVersion = "VERSION"
	ParamRequest = "REQUEST"
	ParamBBox    = "BBOX"
	ParamWidth   = "WIDTH"
	ParamHeight  = "HEIGHT"
	ParamLayers  = "LAYERS"
	ParamFormat  = "FORMAT"
)

// DefaultMaxDimension is the largest WIDTH or HEIGHT accepted unless configured otherwise.
const DefaultMaxDimension = 4096

//nolint:gochecknoglobals // Immutable lookup table of default protocol versions.
var defaultVersions = map[catalog.Service]string{
	catalog.ServiceWMS: "1.1.1",
	catalog.ServiceWFS: "2.0.0",
	catalog.ServiceWCS: "2.0.1",
}

// Request is a validated service request.
type Request struct {
	Product   catalog.Product
	Service   catalog.Service
	Operation catalog.Operation
	Version   string

	// BBox is set when a BBOX parameter was supplied.
	BBox *geo.BBox

	// Width and Height are zero when not supplied.
	Width  int
	Height int

	// Params holds every original query parameter, unmodified.
	Params url.Values
}

// Get returns the first value of the named parameter, ignoring key case.
func (r Request) Get(name string) string {
	return Lookup(r.Params, name)
}

// Lookup returns the first value for name in params, matching keys case-insensitively.
// An exact-case key wins over other spellings; among the rest the lowest key in byte
// order wins.
func Lookup(params url.Values, name string) string {
	if v, ok := params[name]; ok && len(v) > 0 {
		return v[0]
	}
	keys := make([]string, 0, len(params))
	for k, v := range params {
		if strings.EqualFold(k, name) && len(v) > 0 {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return ""
	}
	sort.Strings(keys)
	return params[keys[0]][0]
}

// Has reports whether params contains a non-empty value for name, ignoring key case.
func Has(params url.Values, name string) bool {
	return strings.TrimSpace(Lookup(params, name)) != ""
}
