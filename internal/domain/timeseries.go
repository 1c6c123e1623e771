package domain

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"
)

// TimeSeries is a date-ordered list of valid samples with at most one
// sample per UTC day.
type TimeSeries struct {
	Samples []Sample `json:"samples"`
}

// BuildTimeSeries drops invalid samples, averages samples sharing a day, and
// sorts by date. The result does not depend on the order of samples.
func BuildTimeSeries(samples []Sample) TimeSeries {
	groups := make(map[time.Time][]Sample)
	for _, s := range samples {
		if !s.Valid || math.IsNaN(s.Value) || math.IsInf(s.Value, 0) {
			continue
		}
		day := Day(s.Date)
		groups[day] = append(groups[day], s)
	}

	out := make([]Sample, 0, len(groups))
	for day, group := range groups {
		out = append(out, mergeSameDay(day, group))
	}
	slices.SortFunc(out, func(a, b Sample) int { return a.Date.Compare(b.Date) })
	return TimeSeries{Samples: out}
}

// mergeSameDay averages one day's samples. Pixel counts are summed and scene
// IDs joined in sorted order so the merged sample is deterministic.
func mergeSameDay(day time.Time, group []Sample) Sample {
	values := make([]float64, 0, len(group))
	ids := make([]string, 0, len(group))
	merged := Sample{Date: day, Valid: true}
	for _, s := range group {
		values = append(values, s.Value)
		merged.ValidPixels += s.ValidPixels
		merged.RegionPixels += s.RegionPixels
		if s.SceneID != "" {
			ids = append(ids, s.SceneID)
		}
	}
	slices.Sort(ids)
	merged.SceneID = strings.Join(ids, "+")
	merged.Value = stableMean(values)
	return merged
}

// Len is the number of samples.
func (ts TimeSeries) Len() int { return len(ts.Samples) }

// First returns the earliest sample.
func (ts TimeSeries) First() (Sample, bool) {
	if len(ts.Samples) == 0 {
		return Sample{}, false
	}
	return ts.Samples[0], true
}

// Last returns the latest sample.
func (ts TimeSeries) Last() (Sample, bool) {
	if len(ts.Samples) == 0 {
		return Sample{}, false
	}
	return ts.Samples[len(ts.Samples)-1], true
}

// Validate checks that dates are strictly increasing and values are valid.
func (ts TimeSeries) Validate() error {
	for i, s := range ts.Samples {
		if !s.Valid || math.IsNaN(s.Value) || math.IsInf(s.Value, 0) {
			return fmt.Errorf("sample %d (%s) is not valid", i, s.Date.Format(dateLayout))
		}
		if i > 0 && !ts.Samples[i-1].Date.Before(s.Date) {
			return fmt.Errorf("sample %d (%s) is not after %s", i,
				s.Date.Format(dateLayout), ts.Samples[i-1].Date.Format(dateLayout))
		}
	}
	return nil
}
