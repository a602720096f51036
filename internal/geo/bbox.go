// Package geo implements the spatial fast-path used by routing and discovery:
// bounding box parsing, coverage declarations and axis-aligned intersection.
package geo

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Longitude and latitude limits for request bounding boxes.
const (
	MinLongitude = -180.0
	MaxLongitude = 180.0
	MinLatitude  = -90.0
	MaxLatitude  = 90.0
)

// ErrInvalidBBox is wrapped by every bounding box parse or range error.
var ErrInvalidBBox = errors.New("invalid bbox")

// BBox is an axis-aligned bounding box [minX, minY, maxX, maxY] in degrees.
type BBox [4]float64

// MinX returns the western edge.
func (b BBox) MinX() float64 { return b[0] }

// MinY returns the southern edge.
func (b BBox) MinY() float64 { return b[1] }

// MaxX returns the eastern edge.
func (b BBox) MaxX() float64 { return b[2] }

// MaxY returns the northern edge.
func (b BBox) MaxY() float64 { return b[3] }

// String formats the box the way it is written in a BBOX query parameter.
func (b BBox) String() string {
	parts := make([]string, len(b))
	for i, v := range b {
		parts[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strings.Join(parts, ",")
}

// Intersects reports whether two boxes overlap. Touching edges count as overlap.
// The relation is symmetric.
func (b BBox) Intersects(o BBox) bool {
	return !(b.MaxX() < o.MinX() || b.MinX() > o.MaxX() || b.MaxY() < o.MinY() || b.MinY() > o.MaxY())
}

// Center returns the midpoint of the box.
func (b BBox) Center() (x, y float64) {
	return (b.MinX() + b.MaxX()) / 2, (b.MinY() + b.MaxY()) / 2
}

// CenterDistance returns the planar distance in degrees between the centers of two boxes.
func CenterDistance(a, b BBox) float64 {
	ax, ay := a.Center()
	bx, by := b.Center()
	return math.Hypot(ax-bx, ay-by)
}

// ParseBBox parses "minX,minY,maxX,maxY" into a BBox and checks ordering and
// geographic ranges. All errors wrap ErrInvalidBBox.
func ParseBBox(s string) (BBox, error) {
	b, err := parseFour(s)
	if err != nil {
		return BBox{}, err
	}
	if err := b.Validate(); err != nil {
		return BBox{}, err
	}
	return b, nil
}

// Validate checks that the box is well ordered and within longitude/latitude limits.
func (b BBox) Validate() error {
	for _, v := range b {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: coordinates must be finite", ErrInvalidBBox)
		}
	}
	if b.MinX() >= b.MaxX() {
		return fmt.Errorf("%w: minX %g must be less than maxX %g", ErrInvalidBBox, b.MinX(), b.MaxX())
	}
	if b.MinY() >= b.MaxY() {
		return fmt.Errorf("%w: minY %g must be less than maxY %g", ErrInvalidBBox, b.MinY(), b.MaxY())
	}
	if b.MinX() < MinLongitude || b.MaxX() > MaxLongitude {
		return fmt.Errorf("%w: longitude must be within [%g,%g]", ErrInvalidBBox, MinLongitude, MaxLongitude)
	}
	if b.MinY() < MinLatitude || b.MaxY() > MaxLatitude {
		return fmt.Errorf("%w: latitude must be within [%g,%g]", ErrInvalidBBox, MinLatitude, MaxLatitude)
	}
	return nil
}

// parseFour parses exactly four comma-separated finite numbers without range checks.
func parseFour(s string) (BBox, error) {
	parts := strings.Split(strings.TrimSpace(s), ",")
	if len(parts) != len(BBox{}) {
		return BBox{}, fmt.Errorf("%w: expected minX,minY,maxX,maxY, got %d values", ErrInvalidBBox, len(parts))
	}
	var b BBox
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return BBox{}, fmt.Errorf("%w: value %q is not a number", ErrInvalidBBox, p)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return BBox{}, fmt.Errorf("%w: value %q is not finite", ErrInvalidBBox, p)
		}
		b[i] = v
	}
	return b, nil
}
