package domain

import (
	"fmt"
	"math"
)

// Raster is a 2-D grid of float64 values with an explicit nodata bitmap.
// Values at nodata pixels are meaningless and never read.
type Raster struct {
	width, height int
	values        []float64
	nodata        []bool
}

// NewRaster returns a width x height raster with every pixel nodata.
func NewRaster(width, height int) Raster {
	n := width * height
	nodata := make([]bool, n)
	for i := range nodata {
		nodata[i] = true
	}
	return Raster{width: width, height: height, values: make([]float64, n), nodata: nodata}
}

// NewRasterFrom wraps row-major values. NaN and infinite values become nodata.
func NewRasterFrom(width, height int, values []float64) (Raster, error) {
	if width <= 0 || height <= 0 || len(values) != width*height {
		return Raster{}, fmt.Errorf("raster %dx%d needs %d values, got %d", width, height, width*height, len(values))
	}
	r := Raster{
		width:  width,
		height: height,
		values: append([]float64(nil), values...),
		nodata: make([]bool, len(values)),
	}
	for i, v := range r.values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			r.nodata[i] = true
		}
	}
	return r, nil
}

func (r Raster) Width() int  { return r.width }
func (r Raster) Height() int { return r.height }

// SameShape reports whether two rasters have identical dimensions.
func (r Raster) SameShape(o Raster) bool {
	return r.width == o.width && r.height == o.height
}

// InBounds reports whether (col, row) addresses a pixel.
func (r Raster) InBounds(col, row int) bool {
	return col >= 0 && row >= 0 && col < r.width && row < r.height
}

// At returns the value at (col, row) and whether it holds data.
// Out-of-bounds pixels are reported as nodata.
func (r Raster) At(col, row int) (float64, bool) {
	if !r.InBounds(col, row) {
		return 0, false
	}
	i := row*r.width + col
	if r.nodata[i] {
		return 0, false
	}
	return r.values[i], true
}

// Set stores a valid value. NaN and infinite values are stored as nodata.
func (r *Raster) Set(col, row int, v float64) {
	i := row*r.width + col
	if math.IsNaN(v) || math.IsInf(v, 0) {
		r.nodata[i] = true
		return
	}
	r.values[i] = v
	r.nodata[i] = false
}

// SetNodata marks (col, row) as nodata.
func (r *Raster) SetNodata(col, row int) {
	r.nodata[row*r.width+col] = true
}

// IsNodata is the inverse of the ok result of At.
func (r Raster) IsNodata(col, row int) bool {
	_, ok := r.At(col, row)
	return !ok
}

// ValidCount is the number of pixels holding data.
func (r Raster) ValidCount() int {
	n := 0
	for _, nd := range r.nodata {
		if !nd {
			n++
		}
	}
	return n
}

// Clone returns a deep copy.
func (r Raster) Clone() Raster {
	return Raster{
		width:  r.width,
		height: r.height,
		values: append([]float64(nil), r.values...),
		nodata: append([]bool(nil), r.nodata...),
	}
}
