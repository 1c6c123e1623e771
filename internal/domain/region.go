package domain

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// bufferVertices is the number of vertices used to approximate a point buffer.
const bufferVertices = 32

// Region is an immutable WGS84 polygon describing an area of interest.
// The zero value contains nothing.
type Region struct {
	polygon orb.Polygon
	bound   orb.Bound
}

// NewPolygonRegion builds a region from one exterior ring of lon/lat points.
// The ring is closed automatically when the last point differs from the first.
func NewPolygonRegion(ring []orb.Point) (Region, error) {
	if len(ring) < 3 {
		return Region{}, errors.New("region polygon needs at least 3 points")
	}
	r := make(orb.Ring, 0, len(ring)+1)
	for i, p := range ring {
		if err := validLonLat(p); err != nil {
			return Region{}, fmt.Errorf("region point %d: %w", i, err)
		}
		r = append(r, p)
	}
	if !r.Closed() {
		r = append(r, r[0])
	}
	if len(r) < 4 {
		return Region{}, errors.New("region polygon needs at least 3 distinct points")
	}
	if planar.Area(r) == 0 {
		return Region{}, errors.New("region polygon has zero area")
	}

	poly := orb.Polygon{r}
	return Region{polygon: poly, bound: poly.Bound()}, nil
}

// NewBBoxRegion builds a rectangular region from west/south/east/north degrees.
func NewBBoxRegion(west, south, east, north float64) (Region, error) {
	if west >= east || south >= north {
		return Region{}, fmt.Errorf("region bbox [%g %g %g %g] is empty", west, south, east, north)
	}
	return NewPolygonRegion([]orb.Point{
		{west, south}, {east, south}, {east, north}, {west, north},
	})
}

// NewPointBufferRegion approximates a circle of radius meters around center.
func NewPointBufferRegion(center orb.Point, meters float64) (Region, error) {
	if err := validLonLat(center); err != nil {
		return Region{}, fmt.Errorf("region center: %w", err)
	}
	if meters <= 0 {
		return Region{}, fmt.Errorf("region buffer must be positive, got %g", meters)
	}

	// Metres per degree at the centre latitude; accurate well below 1% for
	// buffers of a few kilometres.
	phi := center.Lat() * math.Pi / 180
	mPerDegLat := 111132.92 - 559.82*math.Cos(2*phi) + 1.175*math.Cos(4*phi)
	mPerDegLon := 111412.84*math.Cos(phi) - 93.5*math.Cos(3*phi)

	ring := make([]orb.Point, 0, bufferVertices)
	for i := range bufferVertices {
		theta := 2 * math.Pi * float64(i) / bufferVertices
		ring = append(ring, orb.Point{
			center.Lon() + meters*math.Cos(theta)/mPerDegLon,
			center.Lat() + meters*math.Sin(theta)/mPerDegLat,
		})
	}
	return NewPolygonRegion(ring)
}

// Contains reports whether p (lon, lat) lies inside the region.
func (r Region) Contains(p orb.Point) bool {
	if r.polygon == nil || !r.bound.Contains(p) {
		return false
	}
	return planar.PolygonContains(r.polygon, p)
}

// Bound returns the region's lon/lat bounding box.
func (r Region) Bound() orb.Bound { return r.bound }

// Polygon returns a copy of the region outline.
func (r Region) Polygon() orb.Polygon { return r.polygon.Clone() }

// IsZero reports whether the region was never initialised.
func (r Region) IsZero() bool { return r.polygon == nil }

// Key is a canonical text form of the outline, stable across calls and
// suitable as a cache key.
func (r Region) Key() string {
	if r.polygon == nil {
		return ""
	}
	var b strings.Builder
	for i, pt := range r.polygon[0] {
		if i > 0 {
			b.WriteByte(';')
		}
		b.WriteString(strconv.FormatFloat(pt.Lon(), 'f', 7, 64))
		b.WriteByte(',')
		b.WriteString(strconv.FormatFloat(pt.Lat(), 'f', 7, 64))
	}
	return b.String()
}

func validLonLat(p orb.Point) error {
	lon, lat := p.Lon(), p.Lat()
	if math.IsNaN(lon) || math.IsNaN(lat) || lon < -180 || lon > 180 || lat < -90 || lat > 90 {
		return fmt.Errorf("coordinate (%g, %g) outside WGS84 range", lon, lat)
	}
	return nil
}
