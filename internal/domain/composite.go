package domain

import (
	"fmt"
	"slices"
	"strings"
)

// Compositor collapses many index rasters of one region into a single raster.
// ok is false when there is nothing to composite.
type Compositor interface {
	Compose(rasters []IndexRaster) (composite IndexRaster, ok bool)
}

// CompositeMethod selects a Compositor.
type CompositeMethod string

const (
	CompositeMedian CompositeMethod = "median"
	CompositeFirst  CompositeMethod = "first"
)

// NewCompositor returns the compositor for method.
func NewCompositor(method CompositeMethod) (Compositor, error) {
	switch method {
	case CompositeMedian, "":
		return MedianComposite{}, nil
	case CompositeFirst:
		return FirstComposite{}, nil
	default:
		return nil, fmt.Errorf("unknown composite method %q", method)
	}
}

// sortedRasters orders rasters by (acquisition day, scene ID) without
// modifying the input.
func sortedRasters(rasters []IndexRaster) []IndexRaster {
	sorted := slices.Clone(rasters)
	slices.SortStableFunc(sorted, func(a, b IndexRaster) int {
		if c := Day(a.Acquired).Compare(Day(b.Acquired)); c != 0 {
			return c
		}
		return strings.Compare(a.SceneID, b.SceneID)
	})
	return sorted
}

// MedianComposite takes the per-pixel median of valid values. The grid of the
// earliest raster is the reference; rasters on other grids are ignored.
type MedianComposite struct{}

func (MedianComposite) Compose(rasters []IndexRaster) (IndexRaster, bool) {
	if len(rasters) == 0 {
		return IndexRaster{}, false
	}
	sorted := sortedRasters(rasters)
	ref := sorted[0].Grid

	var members []IndexRaster
	for _, r := range sorted {
		if r.Grid == ref {
			members = append(members, r)
		}
	}

	out := NewRaster(ref.Width, ref.Height)
	buf := make([]float64, 0, len(members))
	for row := 0; row < ref.Height; row++ {
		for col := 0; col < ref.Width; col++ {
			buf = buf[:0]
			for _, m := range members {
				if v, ok := m.Values.At(col, row); ok {
					buf = append(buf, v)
				}
			}
			if len(buf) == 0 {
				continue
			}
			out.Set(col, row, median(buf))
		}
	}

	last := members[len(members)-1]
	return IndexRaster{
		Name:     sorted[0].Name,
		SceneID:  fmt.Sprintf("median(%d)", len(members)),
		Acquired: last.Acquired,
		Grid:     ref,
		Values:   out,
	}, true
}

// median sorts values in place.
func median(values []float64) float64 {
	slices.Sort(values)
	n := len(values)
	if n%2 == 1 {
		return values[n/2]
	}
	return (values[n/2-1] + values[n/2]) / 2
}

// FirstComposite picks the earliest raster holding any data.
type FirstComposite struct{}

func (FirstComposite) Compose(rasters []IndexRaster) (IndexRaster, bool) {
	for _, r := range sortedRasters(rasters) {
		if r.Values.ValidCount() > 0 {
			return r, true
		}
	}
	return IndexRaster{}, false
}
