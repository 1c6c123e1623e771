package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCloudMask(t *testing.T) {
	m, err := NewCloudMask(MaskConfig{Strategy: MaskCategorical})
	require.NoError(t, err)
	cat, ok := m.(CategoricalMask)
	require.True(t, ok)
	for _, c := range DefaultExcludedClasses {
		assert.True(t, cat.Excludes(c), c.String())
	}
	assert.False(t, cat.Excludes(ClassCloudShadow), "shadow is optional")
	assert.False(t, cat.Excludes(ClassWater))

	m, err = NewCloudMask(MaskConfig{Strategy: MaskProbability, Threshold: 40})
	require.NoError(t, err)
	assert.Equal(t, ProbabilityMask{Threshold: 40}, m)

	_, err = NewCloudMask(MaskConfig{Strategy: MaskProbability, Threshold: 120})
	assert.Error(t, err)

	_, err = NewCloudMask(MaskConfig{Strategy: "fmask"})
	assert.Error(t, err)
}

func TestCategoricalMask_ApplyMask(t *testing.T) {
	scene := testScene(t, "S1", day(2020, 1, 1), 3, 1, 0.1, 0.2, 0.5)
	scl := rasterOf(t, 3, 1, float64(ClassVegetation), float64(ClassCloudHigh), float64(ClassThinCirrus))
	scene.Classification = &scl

	masked, err := NewCategoricalMask(DefaultExcludedClasses).ApplyMask(scene)
	require.NoError(t, err)

	for _, name := range []string{BandRed, BandGreen, BandNIR} {
		band := masked.Bands[name]
		assert.False(t, band.IsNodata(0, 0), name)
		assert.True(t, band.IsNodata(1, 0), name)
		assert.True(t, band.IsNodata(2, 0), name)
	}

	// Input unchanged.
	assert.False(t, scene.Bands[BandRed].IsNodata(1, 0))
}

func TestCategoricalMask_RejectsCodesOutsideTable(t *testing.T) {
	scene := testScene(t, "S1", day(2020, 1, 1), 4, 1, 0.1, 0.2, 0.5)
	scl := rasterOf(t, 4, 1, float64(ClassVegetation), 99, -1, 4.5)
	scene.Classification = &scl

	masked, err := NewCategoricalMask(DefaultExcludedClasses).ApplyMask(scene)
	require.NoError(t, err)

	band := masked.Bands[BandNIR]
	assert.False(t, band.IsNodata(0, 0))
	assert.True(t, band.IsNodata(1, 0), "code 99")
	assert.True(t, band.IsNodata(2, 0), "code -1")
	assert.True(t, band.IsNodata(3, 0), "fractional code")

	assert.True(t, ClassSnowIce.Known())
	assert.False(t, SceneClass(99).Known())
}

func TestCategoricalMask_ShadowOptIn(t *testing.T) {
	scene := testScene(t, "S1", day(2020, 1, 1), 2, 1, 0.1, 0.2, 0.5)
	scl := rasterOf(t, 2, 1, float64(ClassCloudShadow), float64(ClassWater))
	scene.Classification = &scl

	withShadow := append([]SceneClass{ClassCloudShadow}, DefaultExcludedClasses...)
	masked, err := NewCategoricalMask(withShadow).ApplyMask(scene)
	require.NoError(t, err)
	assert.True(t, masked.Bands[BandNIR].IsNodata(0, 0))
	assert.False(t, masked.Bands[BandNIR].IsNodata(1, 0))
}

func TestCategoricalMask_MissingClassificationValue(t *testing.T) {
	scene := testScene(t, "S1", day(2020, 1, 1), 2, 1, 0.1, 0.2, 0.5)
	scl := rasterOf(t, 2, 1, float64(ClassVegetation), float64(ClassVegetation))
	scl.SetNodata(1, 0)
	scene.Classification = &scl

	masked, err := NewCategoricalMask(DefaultExcludedClasses).ApplyMask(scene)
	require.NoError(t, err)
	assert.True(t, masked.Bands[BandRed].IsNodata(1, 0))
}

func TestMask_NeverRestoresNodata(t *testing.T) {
	scene := testScene(t, "S1", day(2020, 1, 1), 2, 1, 0.1, 0.2, 0.5)
	red := scene.Bands[BandRed].Clone()
	red.SetNodata(0, 0)
	scene.Bands[BandRed] = red

	for _, m := range []CloudMask{NewCategoricalMask(DefaultExcludedClasses), ProbabilityMask{Threshold: 30}} {
		masked, err := m.ApplyMask(scene)
		require.NoError(t, err)
		assert.True(t, masked.Bands[BandRed].IsNodata(0, 0))
		assert.Equal(t, 1, masked.Bands[BandRed].ValidCount())
	}
}

func TestProbabilityMask_ApplyMask(t *testing.T) {
	scene := testScene(t, "S1", day(2020, 1, 1), 3, 1, 0.1, 0.2, 0.5)
	prob := rasterOf(t, 3, 1, 10, 30, 31)
	scene.CloudProbability = &prob

	masked, err := ProbabilityMask{Threshold: 30}.ApplyMask(scene)
	require.NoError(t, err)

	nir := masked.Bands[BandNIR]
	assert.False(t, nir.IsNodata(0, 0))
	assert.False(t, nir.IsNodata(1, 0), "threshold itself is kept")
	assert.True(t, nir.IsNodata(2, 0))
}

func TestMask_MissingQualityLayer(t *testing.T) {
	scene := testScene(t, "S9", day(2020, 1, 1), 2, 2, 0.1, 0.2, 0.5)
	scene.Classification = nil
	scene.CloudProbability = nil

	_, err := NewCategoricalMask(DefaultExcludedClasses).ApplyMask(scene)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedScene)

	var se *SceneError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "S9", se.SceneID)

	_, err = ProbabilityMask{Threshold: 30}.ApplyMask(scene)
	assert.ErrorIs(t, err, ErrMalformedScene)
}

func TestMask_ShapeMismatch(t *testing.T) {
	scene := testScene(t, "S1", day(2020, 1, 1), 2, 2, 0.1, 0.2, 0.5)
	scl := constRaster(t, 3, 3, float64(ClassVegetation))
	scene.Classification = &scl

	_, err := NewCategoricalMask(DefaultExcludedClasses).ApplyMask(scene)
	assert.ErrorIs(t, err, ErrMalformedScene)
}

func TestParseSceneClass(t *testing.T) {
	c, err := ParseSceneClass(" Cloud_Shadow ")
	require.NoError(t, err)
	assert.Equal(t, ClassCloudShadow, c)

	_, err = ParseSceneClass("fog")
	assert.Error(t, err)

	assert.Equal(t, "class(42)", SceneClass(42).String())
}
