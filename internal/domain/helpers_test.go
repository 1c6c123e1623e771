package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const pixelDeg = 0.01

// testGrid is a geographic grid whose top-left corner is (153.0, -25.0).
func testGrid(w, h int) Grid {
	return Grid{
		Width:     w,
		Height:    h,
		Transform: Affine{pixelDeg, 0, 153.0, 0, -pixelDeg, -25.0},
		EPSG:      EPSGWGS84,
	}
}

// fullRegion covers every pixel centre of testGrid(w, h).
func fullRegion(t *testing.T, w, h int) Region {
	t.Helper()
	r, err := NewBBoxRegion(153.0, -25.0-pixelDeg*float64(h), 153.0+pixelDeg*float64(w), -25.0)
	require.NoError(t, err)
	return r
}

func constRaster(t *testing.T, w, h int, v float64) Raster {
	t.Helper()
	values := make([]float64, w*h)
	for i := range values {
		values[i] = v
	}
	r, err := NewRasterFrom(w, h, values)
	require.NoError(t, err)
	return r
}

func rasterOf(t *testing.T, w, h int, values ...float64) Raster {
	t.Helper()
	r, err := NewRasterFrom(w, h, values)
	require.NoError(t, err)
	return r
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// testScene builds a scene with uniform red, green, and nir bands and an
// SCL layer of vegetation.
func testScene(t *testing.T, id string, acquired time.Time, w, h int, red, green, nir float64) Scene {
	t.Helper()
	scl := constRaster(t, w, h, float64(ClassVegetation))
	prob := constRaster(t, w, h, 0)
	return Scene{
		ID:       id,
		Acquired: acquired,
		Grid:     testGrid(w, h),
		Bands: map[string]Raster{
			BandRed:   constRaster(t, w, h, red),
			BandGreen: constRaster(t, w, h, green),
			BandNIR:   constRaster(t, w, h, nir),
		},
		Classification:   &scl,
		CloudProbability: &prob,
	}
}

func indexRaster(name, id string, acquired time.Time, grid Grid, values Raster) IndexRaster {
	return IndexRaster{Name: name, SceneID: id, Acquired: acquired, Grid: grid, Values: values}
}

func validSample(date time.Time, v float64) Sample {
	return Sample{Date: date, Value: v, Valid: true, ValidPixels: 1, RegionPixels: 1}
}
