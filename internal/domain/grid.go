package domain

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// Affine maps pixel (col, row) to CRS (x, y) in the STAC proj:transform
// order: x = a*col + b*row + c, y = d*col + e*row + f.
type Affine [6]float64

// Apply maps a fractional pixel position to CRS coordinates.
func (t Affine) Apply(col, row float64) (x, y float64) {
	return t[0]*col + t[1]*row + t[2], t[3]*col + t[4]*row + t[5]
}

// Pixel maps CRS coordinates back to a fractional pixel position.
// ok is false when the transform is singular.
func (t Affine) Pixel(x, y float64) (col, row float64, ok bool) {
	det := t[0]*t[4] - t[1]*t[3]
	if det == 0 {
		return 0, 0, false
	}
	dx, dy := x-t[2], y-t[5]
	return (t[4]*dx - t[1]*dy) / det, (t[0]*dy - t[3]*dx) / det, true
}

// Grid describes the georeferencing of a raster.
type Grid struct {
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Transform Affine `json:"transform"`
	EPSG      int    `json:"epsg"`
}

// Window is a rectangular block of pixels within a grid.
type Window struct {
	Col, Row      int
	Width, Height int
}

// Validate reports whether the grid can be used for sampling.
func (g Grid) Validate() error {
	if g.Width <= 0 || g.Height <= 0 {
		return fmt.Errorf("grid shape %dx%d is empty", g.Width, g.Height)
	}
	if _, _, ok := g.Transform.Pixel(0, 0); !ok {
		return errors.New("grid transform is singular")
	}
	if _, err := ProjectionFor(g.EPSG); err != nil {
		return fmt.Errorf("grid: %w", err)
	}
	return nil
}

// Len is the number of pixels in the grid.
func (g Grid) Len() int { return g.Width * g.Height }

// PixelCenter returns the lon/lat of the centre of pixel (col, row).
func (g Grid) PixelCenter(col, row int) orb.Point {
	return g.lonLat(float64(col)+0.5, float64(row)+0.5)
}

// Corner returns the lon/lat of the top-left corner of pixel (col, row).
// Corner(Width, Height) is the bottom-right corner of the grid.
func (g Grid) Corner(col, row int) orb.Point {
	return g.lonLat(float64(col), float64(row))
}

func (g Grid) lonLat(col, row float64) orb.Point {
	x, y := g.Transform.Apply(col, row)
	lon, lat := g.projection().Inverse(x, y)
	return orb.Point{lon, lat}
}

// PixelAt returns the pixel containing CRS coordinate (x, y).
func (g Grid) PixelAt(x, y float64) (col, row int, ok bool) {
	c, r, ok := g.Transform.Pixel(x, y)
	if !ok {
		return 0, 0, false
	}
	col, row = int(math.Floor(c)), int(math.Floor(r))
	if col < 0 || row < 0 || col >= g.Width || row >= g.Height {
		return 0, 0, false
	}
	return col, row, true
}

// Window returns the pixel block covering a lon/lat bound, padded by one pixel
// and clipped to the grid. ok is false when the bound misses the grid.
func (g Grid) Window(b orb.Bound) (Window, bool) {
	proj := g.projection()
	minC, minR := math.Inf(1), math.Inf(1)
	maxC, maxR := math.Inf(-1), math.Inf(-1)

	// Edge midpoints as well as corners: bbox edges are curved in UTM.
	lons := [3]float64{b.Min.Lon(), (b.Min.Lon() + b.Max.Lon()) / 2, b.Max.Lon()}
	lats := [3]float64{b.Min.Lat(), (b.Min.Lat() + b.Max.Lat()) / 2, b.Max.Lat()}
	for _, lon := range lons {
		for _, lat := range lats {
			x, y := proj.Forward(lon, lat)
			c, r, ok := g.Transform.Pixel(x, y)
			if !ok {
				return Window{}, false
			}
			minC, maxC = math.Min(minC, c), math.Max(maxC, c)
			minR, maxR = math.Min(minR, r), math.Max(maxR, r)
		}
	}

	c0 := max(int(math.Floor(minC))-1, 0)
	r0 := max(int(math.Floor(minR))-1, 0)
	c1 := min(int(math.Ceil(maxC))+1, g.Width)
	r1 := min(int(math.Ceil(maxR))+1, g.Height)
	if c0 >= c1 || r0 >= r1 {
		return Window{}, false
	}
	return Window{Col: c0, Row: r0, Width: c1 - c0, Height: r1 - r0}, true
}

// Crop returns the grid of a window of g.
func (g Grid) Crop(w Window) Grid {
	t := g.Transform
	x, y := t.Apply(float64(w.Col), float64(w.Row))
	t[2], t[5] = x, y
	return Grid{Width: w.Width, Height: w.Height, Transform: t, EPSG: g.EPSG}
}

func (g Grid) projection() Projection {
	p, err := ProjectionFor(g.EPSG)
	if err != nil {
		// Unsupported grids are rejected by Validate before sampling.
		return geographic{}
	}
	return p
}
