package domain

import (
	"math"
	"slices"
	"time"
)

// Sample is the regional mean of one index raster.
type Sample struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
	// Valid is false when no pixel inside the region held data.
	Valid bool `json:"valid"`
	// ValidPixels and RegionPixels count pixels whose centre lies inside the region.
	ValidPixels  int    `json:"valid_pixels"`
	RegionPixels int    `json:"region_pixels"`
	SceneID      string `json:"scene_id,omitempty"`
}

// Coverage is the fraction of region pixels that held data.
func (s Sample) Coverage() float64 {
	if s.RegionPixels == 0 {
		return 0
	}
	return float64(s.ValidPixels) / float64(s.RegionPixels)
}

// Reduce averages the valid pixels of raster whose centres lie inside region.
// The mean is independent of pixel iteration order.
func Reduce(raster IndexRaster, region Region) Sample {
	s := Sample{Date: Day(raster.Acquired), SceneID: raster.SceneID}

	var values []float64
	for row := 0; row < raster.Grid.Height; row++ {
		for col := 0; col < raster.Grid.Width; col++ {
			p := raster.Grid.PixelCenter(col, row)
			if !region.Contains(p) {
				continue
			}
			s.RegionPixels++
			if v, ok := raster.Values.At(col, row); ok {
				values = append(values, v)
			}
		}
	}

	s.ValidPixels = len(values)
	if len(values) == 0 {
		return s
	}
	s.Value = stableMean(values)
	s.Valid = !math.IsNaN(s.Value) && !math.IsInf(s.Value, 0)
	return s
}

// Reducer applies Reduce with a minimum coverage requirement.
type Reducer struct {
	// MinValidFraction marks a sample invalid when less than this fraction of
	// region pixels held data. Zero accepts any sample with one valid pixel.
	MinValidFraction float64
}

// Reduce is Reduce with the coverage requirement applied.
func (r Reducer) Reduce(raster IndexRaster, region Region) Sample {
	s := Reduce(raster, region)
	if s.Valid && s.Coverage() < r.MinValidFraction {
		s.Valid = false
	}
	return s
}

// stableMean sorts before summing so the result is bit-identical for any
// permutation of values. values is reordered.
func stableMean(values []float64) float64 {
	slices.Sort(values)
	// Neumaier compensated summation.
	var sum, comp float64
	for _, v := range values {
		t := sum + v
		if math.Abs(sum) >= math.Abs(v) {
			comp += (sum - t) + v
		} else {
			comp += (v - t) + sum
		}
		sum = t
	}
	return (sum + comp) / float64(len(values))
}
