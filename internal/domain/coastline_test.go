package domain

import (
	"strconv"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ndwiComposite(t *testing.T, w, h int, values ...float64) IndexRaster {
	t.Helper()
	return indexRaster("NDWI", "median", day(2020, 1, 1), testGrid(w, h), rasterOf(t, w, h, values...))
}

func TestExtractCoastline_AllLandIsEmpty(t *testing.T) {
	comp := ndwiComposite(t, 3, 3, -0.3, -0.2, -0.1, 0, 0.05, 0.1, -0.4, -0.5, -0.6)

	vec := ExtractCoastline(fullRegion(t, 3, 3), comp, DefaultWaterThreshold)
	assert.True(t, vec.Empty())
}

func TestExtractCoastline_AllWaterIsEmpty(t *testing.T) {
	comp := ndwiComposite(t, 2, 2, 0.3, 0.4, 0.5, 0.6)

	vec := ExtractCoastline(fullRegion(t, 2, 2), comp, DefaultWaterThreshold)
	assert.True(t, vec.Empty())
}

func TestExtractCoastline_StraightShore(t *testing.T) {
	// Water in columns 0-1, land in columns 2-3.
	comp := ndwiComposite(t, 4, 2,
		0.5, 0.4, -0.2, -0.3,
		0.6, 0.3, -0.1, -0.4,
	)

	vec := ExtractCoastline(fullRegion(t, 4, 2), comp, DefaultWaterThreshold)
	require.Len(t, vec.Lines, 1)

	line := vec.Lines[0]
	require.Len(t, line, 2, "collinear vertices are merged")
	assert.ElementsMatch(t, []string{"153.0200,-25.0000", "153.0200,-25.0200"}, []string{fmtPoint(line[0]), fmtPoint(line[1])})
}

func TestExtractCoastline_Island(t *testing.T) {
	comp := ndwiComposite(t, 3, 3,
		-0.2, -0.2, -0.2,
		-0.2, 0.5, -0.2,
		-0.2, -0.2, -0.2,
	)

	vec := ExtractCoastline(fullRegion(t, 3, 3), comp, DefaultWaterThreshold)
	require.Len(t, vec.Lines, 1)

	ring := vec.Lines[0]
	assert.Len(t, ring, 5)
	assert.Equal(t, ring[0], ring[len(ring)-1], "island boundary is closed")
}

func TestExtractCoastline_ThresholdIsExclusive(t *testing.T) {
	comp := ndwiComposite(t, 2, 1, 0.1, 0.11)

	vec := ExtractCoastline(fullRegion(t, 2, 1), comp, 0.1)
	require.Len(t, vec.Lines, 1, "0.1 is land, 0.11 is water")
}

func TestExtractCoastline_NodataIsNotShore(t *testing.T) {
	values := rasterOf(t, 3, 1, 0.5, 0, -0.5)
	values.SetNodata(1, 0)
	comp := indexRaster("NDWI", "median", day(2020, 1, 1), testGrid(3, 1), values)

	vec := ExtractCoastline(fullRegion(t, 3, 1), comp, DefaultWaterThreshold)
	assert.True(t, vec.Empty(), "water and land never touch")
}

func TestExtractCoastline_OutsideRegionIgnored(t *testing.T) {
	comp := ndwiComposite(t, 2, 1, 0.5, -0.5)
	// Only the water pixel's centre is inside.
	left, err := NewBBoxRegion(153.0, -25.01, 153.009, -25.0)
	require.NoError(t, err)

	vec := ExtractCoastline(left, comp, DefaultWaterThreshold)
	assert.True(t, vec.Empty())
}

func TestExtractCoastline_CheckerboardUsesEveryEdgeOnce(t *testing.T) {
	comp := ndwiComposite(t, 2, 2,
		0.5, -0.5,
		-0.5, 0.5,
	)

	vec := ExtractCoastline(fullRegion(t, 2, 2), comp, DefaultWaterThreshold)
	require.NotEmpty(t, vec.Lines)

	edges := 0
	for _, l := range vec.Lines {
		require.GreaterOrEqual(t, len(l), 2)
		edges += len(l) - 1
	}
	assert.Equal(t, 4, edges)
	assert.Len(t, vec.MultiLineString(), len(vec.Lines))
}

func fmtPoint(p orb.Point) string {
	return strconv.FormatFloat(p.Lon(), 'f', 4, 64) + "," + strconv.FormatFloat(p.Lat(), 'f', 4, 64)
}
