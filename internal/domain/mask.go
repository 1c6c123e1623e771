package domain

import (
	"fmt"
	"math"
	"strings"
)

// SceneClass is a provider-independent per-pixel land cover class.
type SceneClass int

// Classes in Sentinel-2 L2A scene classification (SCL) code order.
const (
	ClassNoData SceneClass = iota
	ClassSaturated
	ClassDarkArea
	ClassCloudShadow
	ClassVegetation
	ClassNotVegetated
	ClassWater
	ClassUnclassified
	ClassCloudMedium
	ClassCloudHigh
	ClassThinCirrus
	ClassSnowIce
)

var classNames = map[SceneClass]string{
	ClassNoData:       "no_data",
	ClassSaturated:    "saturated",
	ClassDarkArea:     "dark_area",
	ClassCloudShadow:  "cloud_shadow",
	ClassVegetation:   "vegetation",
	ClassNotVegetated: "not_vegetated",
	ClassWater:        "water",
	ClassUnclassified: "unclassified",
	ClassCloudMedium:  "cloud_medium",
	ClassCloudHigh:    "cloud_high",
	ClassThinCirrus:   "thin_cirrus",
	ClassSnowIce:      "snow_ice",
}

func (c SceneClass) String() string {
	if name, ok := classNames[c]; ok {
		return name
	}
	return fmt.Sprintf("class(%d)", int(c))
}

// Known reports whether c is a code of the SCL table.
func (c SceneClass) Known() bool {
	_, ok := classNames[c]
	return ok
}

// ParseSceneClass maps a class name such as "cloud_high" to its value.
func ParseSceneClass(s string) (SceneClass, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for c, name := range classNames {
		if name == s {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown scene class %q", s)
}

// DefaultExcludedClasses are the classes rejected by the categorical mask:
// medium and high probability cloud, thin cirrus, and snow/ice.
var DefaultExcludedClasses = []SceneClass{ClassCloudMedium, ClassCloudHigh, ClassThinCirrus, ClassSnowIce}

// DefaultProbabilityThreshold is the cloud probability (percent) above which
// the probability mask rejects a pixel.
const DefaultProbabilityThreshold = 30.0

// CloudMask rejects contaminated pixels. The returned scene has every band
// marked nodata wherever the quality layer flags contamination; nodata pixels
// in the input stay nodata. The input scene is not modified.
type CloudMask interface {
	ApplyMask(scene Scene) (Scene, error)
}

// MaskStrategy selects how cloud contamination is read from a scene.
type MaskStrategy string

const (
	MaskCategorical MaskStrategy = "categorical"
	MaskProbability MaskStrategy = "probability"
)

// MaskConfig parameterizes NewCloudMask.
type MaskConfig struct {
	Strategy MaskStrategy
	// Excluded classes for the categorical strategy; DefaultExcludedClasses when nil.
	Excluded []SceneClass
	// Threshold in percent for the probability strategy.
	Threshold float64
}

// NewCloudMask builds the mask selected by cfg.
func NewCloudMask(cfg MaskConfig) (CloudMask, error) {
	switch cfg.Strategy {
	case MaskCategorical, "":
		excluded := cfg.Excluded
		if excluded == nil {
			excluded = DefaultExcludedClasses
		}
		return NewCategoricalMask(excluded), nil
	case MaskProbability:
		if cfg.Threshold < 0 || cfg.Threshold > 100 || math.IsNaN(cfg.Threshold) {
			return nil, fmt.Errorf("probability threshold %g outside [0, 100]", cfg.Threshold)
		}
		return ProbabilityMask{Threshold: cfg.Threshold}, nil
	default:
		return nil, fmt.Errorf("unknown mask strategy %q", cfg.Strategy)
	}
}

// CategoricalMask rejects pixels whose classification falls in an excluded set.
// Pixels without a classification value, or with a code outside the SCL
// table, are rejected as well.
type CategoricalMask struct {
	excluded map[SceneClass]struct{}
}

// NewCategoricalMask builds a categorical mask over Sentinel-2 SCL codes.
func NewCategoricalMask(excluded []SceneClass) CategoricalMask {
	set := make(map[SceneClass]struct{}, len(excluded))
	for _, c := range excluded {
		set[c] = struct{}{}
	}
	return CategoricalMask{excluded: set}
}

// Excludes reports whether pixels of class c are rejected.
func (m CategoricalMask) Excludes(c SceneClass) bool {
	_, ok := m.excluded[c]
	return ok
}

func (m CategoricalMask) ApplyMask(scene Scene) (Scene, error) {
	if scene.Classification == nil {
		return Scene{}, malformed(scene.ID, "missing classification layer")
	}
	return applyQuality(scene, *scene.Classification, func(code float64) bool {
		c := SceneClass(int(code))
		return float64(c) != code || !c.Known() || m.Excludes(c)
	})
}

// ProbabilityMask rejects pixels whose cloud probability exceeds Threshold.
type ProbabilityMask struct {
	Threshold float64
}

func (m ProbabilityMask) ApplyMask(scene Scene) (Scene, error) {
	if scene.CloudProbability == nil {
		return Scene{}, malformed(scene.ID, "missing cloud probability layer")
	}
	return applyQuality(scene, *scene.CloudProbability, func(p float64) bool {
		return p > m.Threshold
	})
}

// applyQuality copies scene with every band masked wherever reject returns
// true or the quality layer has no value.
func applyQuality(scene Scene, quality Raster, reject func(float64) bool) (Scene, error) {
	if quality.Width() != scene.Grid.Width || quality.Height() != scene.Grid.Height {
		return Scene{}, malformed(scene.ID, "quality layer is %dx%d, grid is %dx%d",
			quality.Width(), quality.Height(), scene.Grid.Width, scene.Grid.Height)
	}

	out := scene
	out.Bands = make(map[string]Raster, len(scene.Bands))
	for name := range scene.Bands {
		band, err := scene.Band(name)
		if err != nil {
			return Scene{}, err
		}
		out.Bands[name] = band.Clone()
	}

	for row := 0; row < scene.Grid.Height; row++ {
		for col := 0; col < scene.Grid.Width; col++ {
			q, ok := quality.At(col, row)
			if ok && !reject(q) {
				continue
			}
			// Cloned rasters share their bitmap with the map entry.
			for _, band := range out.Bands {
				band.SetNodata(col, row)
			}
		}
	}
	return out, nil
}
