package domain

import (
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReduce_Mean(t *testing.T) {
	g := testGrid(2, 2)
	raster := indexRaster("NDVI", "S1", day(2020, 5, 6), g, rasterOf(t, 2, 2, 0.1, 0.2, 0.3, 0.4))

	s := Reduce(raster, fullRegion(t, 2, 2))

	assert.True(t, s.Valid)
	assert.InDelta(t, 0.25, s.Value, 1e-12)
	assert.Equal(t, 4, s.ValidPixels)
	assert.Equal(t, 4, s.RegionPixels)
	assert.Equal(t, day(2020, 5, 6), s.Date)
	assert.Equal(t, "S1", s.SceneID)
}

func TestReduce_OnlyPixelsInsideRegion(t *testing.T) {
	g := testGrid(2, 1)
	raster := indexRaster("NDVI", "S1", day(2020, 5, 6), g, rasterOf(t, 2, 1, 0.2, 0.8))
	// Covers the left pixel centre (153.005) only.
	left, err := NewBBoxRegion(153.0, -25.01, 153.009, -25.0)
	require.NoError(t, err)

	s := Reduce(raster, left)
	assert.True(t, s.Valid)
	assert.InDelta(t, 0.2, s.Value, 1e-12)
	assert.Equal(t, 1, s.RegionPixels)
}

func TestReduce_SkipsNodata(t *testing.T) {
	values := rasterOf(t, 3, 1, 0.2, 0.4, 0.9)
	values.SetNodata(2, 0)
	raster := indexRaster("NDVI", "S1", day(2020, 5, 6), testGrid(3, 1), values)

	s := Reduce(raster, fullRegion(t, 3, 1))
	assert.InDelta(t, 0.3, s.Value, 1e-12)
	assert.Equal(t, 2, s.ValidPixels)
	assert.Equal(t, 3, s.RegionPixels)
	assert.InDelta(t, 2.0/3, s.Coverage(), 1e-12)
}

func TestReduce_AllNodataIsInvalid(t *testing.T) {
	raster := indexRaster("NDVI", "S1", day(2020, 5, 6), testGrid(2, 2), NewRaster(2, 2))

	s := Reduce(raster, fullRegion(t, 2, 2))
	assert.False(t, s.Valid)
	assert.Equal(t, 0, s.ValidPixels)
	assert.Equal(t, 4, s.RegionPixels)
}

func TestReduce_RegionMissesRaster(t *testing.T) {
	raster := indexRaster("NDVI", "S1", day(2020, 5, 6), testGrid(2, 2), constRaster(t, 2, 2, 0.5))
	far, err := NewPolygonRegion([]orb.Point{{0, 0}, {1, 0}, {1, 1}})
	require.NoError(t, err)

	s := Reduce(raster, far)
	assert.False(t, s.Valid)
	assert.Equal(t, 0, s.RegionPixels)
	assert.Equal(t, 0.0, s.Coverage())
}

func TestReducer_MinValidFraction(t *testing.T) {
	values := NewRaster(4, 1)
	values.Set(0, 0, 0.5)
	raster := indexRaster("NDVI", "S1", day(2020, 5, 6), testGrid(4, 1), values)
	region := fullRegion(t, 4, 1)

	assert.True(t, Reducer{}.Reduce(raster, region).Valid)
	assert.True(t, Reducer{MinValidFraction: 0.25}.Reduce(raster, region).Valid)
	assert.False(t, Reducer{MinValidFraction: 0.5}.Reduce(raster, region).Valid)
}

func TestStableMean_PermutationInvariant(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	values := make([]float64, 500)
	for i := range values {
		values[i] = rng.Float64()*2 - 1
	}
	want := stableMean(slices.Clone(values))

	for range 20 {
		shuffled := slices.Clone(values)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		assert.Equal(t, want, stableMean(shuffled))
	}
}

func TestStableMean_Compensated(t *testing.T) {
	values := []float64{1e16, 1, -1e16, 1}
	assert.Equal(t, 0.5, stableMean(values))
}
