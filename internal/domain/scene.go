package domain

import (
	"errors"
	"fmt"
	"time"
)

// Canonical band names. Adapters translate provider asset keys to these.
const (
	BandRed   = "red"
	BandGreen = "green"
	BandNIR   = "nir"
)

const dateLayout = "2006-01-02"

// Day truncates t to its UTC calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DateRange is an inclusive range of UTC calendar days.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewDateRange truncates both ends to whole days and rejects inverted ranges.
func NewDateRange(start, end time.Time) (DateRange, error) {
	s, e := Day(start), Day(end)
	if e.Before(s) {
		return DateRange{}, fmt.Errorf("date range end %s before start %s", e.Format(dateLayout), s.Format(dateLayout))
	}
	return DateRange{Start: s, End: e}, nil
}

// ParseDateRange parses two YYYY-MM-DD dates.
func ParseDateRange(start, end string) (DateRange, error) {
	s, err := time.Parse(dateLayout, start)
	if err != nil {
		return DateRange{}, fmt.Errorf("parse start date: %w", err)
	}
	e, err := time.Parse(dateLayout, end)
	if err != nil {
		return DateRange{}, fmt.Errorf("parse end date: %w", err)
	}
	return NewDateRange(s, e)
}

// Contains reports whether t falls on a day inside the range.
func (d DateRange) Contains(t time.Time) bool {
	day := Day(t)
	return !day.Before(d.Start) && !day.After(d.End)
}

// String renders the range as start/end dates.
func (d DateRange) String() string {
	return d.Start.Format(dateLayout) + "/" + d.End.Format(dateLayout)
}

// Scene is one satellite acquisition over a region: co-registered spectral
// bands plus at most one quality layer of each kind.
type Scene struct {
	ID         string
	Acquired   time.Time // UTC day
	CloudCover float64   // provider whole-scene estimate, percent
	Grid       Grid
	Bands      map[string]Raster

	// Classification holds per-pixel scene classification codes.
	Classification *Raster
	// CloudProbability holds per-pixel cloud probability in percent.
	CloudProbability *Raster
}

// Band returns a named band, or a malformed-scene error when it is missing
// or does not match the scene grid.
func (s Scene) Band(name string) (Raster, error) {
	r, ok := s.Bands[name]
	if !ok {
		return Raster{}, malformed(s.ID, "missing band %q", name)
	}
	if r.Width() != s.Grid.Width || r.Height() != s.Grid.Height {
		return Raster{}, malformed(s.ID, "band %q is %dx%d, grid is %dx%d",
			name, r.Width(), r.Height(), s.Grid.Width, s.Grid.Height)
	}
	return r, nil
}

// Validate checks that every layer matches the scene grid.
func (s Scene) Validate() error {
	if s.ID == "" {
		return errors.New("scene has no id")
	}
	if err := s.Grid.Validate(); err != nil {
		return malformed(s.ID, "%v", err)
	}
	for name := range s.Bands {
		if _, err := s.Band(name); err != nil {
			return err
		}
	}
	for name, q := range map[string]*Raster{"classification": s.Classification, "cloud probability": s.CloudProbability} {
		if q != nil && (q.Width() != s.Grid.Width || q.Height() != s.Grid.Height) {
			return malformed(s.ID, "%s layer does not match grid", name)
		}
	}
	return nil
}
