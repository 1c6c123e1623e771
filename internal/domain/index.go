package domain

import (
	"math"
	"strings"
	"time"
)

// IndexSpec names a normalized difference index (a - b) / (a + b).
type IndexSpec struct {
	Name  string
	BandA string
	BandB string
}

var (
	// NDVI is the normalized difference vegetation index.
	NDVI = IndexSpec{Name: "NDVI", BandA: BandNIR, BandB: BandRed}
	// NDWI is the McFeeters normalized difference water index.
	NDWI = IndexSpec{Name: "NDWI", BandA: BandGreen, BandB: BandNIR}
)

// LookupIndex finds a built-in index by case-insensitive name.
func LookupIndex(name string) (IndexSpec, bool) {
	for _, s := range []IndexSpec{NDVI, NDWI} {
		if strings.EqualFold(s.Name, name) {
			return s, true
		}
	}
	return IndexSpec{}, false
}

// Compute evaluates the index over a scene.
func (s IndexSpec) Compute(scene Scene) (IndexRaster, error) {
	return ComputeIndex(scene, s.BandA, s.BandB, s.Name)
}

// IndexRaster is a per-pixel index over a scene grid, values in [-1, 1].
type IndexRaster struct {
	Name     string
	SceneID  string
	Acquired time.Time
	Grid     Grid
	Values   Raster
}

// ComputeIndex evaluates (a - b) / (a + b) per pixel. A pixel is nodata when
// either input is nodata, when a + b is zero, or when the ratio is not a
// finite value in [-1, 1].
func ComputeIndex(scene Scene, bandA, bandB, name string) (IndexRaster, error) {
	a, err := scene.Band(bandA)
	if err != nil {
		return IndexRaster{}, err
	}
	b, err := scene.Band(bandB)
	if err != nil {
		return IndexRaster{}, err
	}

	out := NewRaster(scene.Grid.Width, scene.Grid.Height)
	for row := 0; row < scene.Grid.Height; row++ {
		for col := 0; col < scene.Grid.Width; col++ {
			va, okA := a.At(col, row)
			vb, okB := b.At(col, row)
			if !okA || !okB {
				continue
			}
			sum := va + vb
			if sum == 0 {
				continue
			}
			v := (va - vb) / sum
			if math.IsNaN(v) || math.IsInf(v, 0) || v < -1 || v > 1 {
				continue
			}
			out.Set(col, row, v)
		}
	}

	return IndexRaster{
		Name:     name,
		SceneID:  scene.ID,
		Acquired: scene.Acquired,
		Grid:     scene.Grid,
		Values:   out,
	}, nil
}
