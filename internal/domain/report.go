package domain

import "time"

// Site is a named monitoring location.
type Site struct {
	Name   string
	Region Region
}

// StageStatus records how far a per-site stage got, so a partially processed
// site can be told apart from one that was never attempted.
type StageStatus string

const (
	StatusNotComputed StageStatus = "not_computed"
	StatusOK          StageStatus = "ok"
	// StatusEmpty means the stage ran and legitimately produced nothing.
	StatusEmpty  StageStatus = "empty"
	StatusFailed StageStatus = "failed"
)

// StageResult is the outcome of one stage.
type StageResult struct {
	Status StageStatus `json:"status"`
	Error  string      `json:"error,omitempty"`
}

// Failed builds a failed stage result.
func Failed(err error) StageResult {
	return StageResult{Status: StatusFailed, Error: err.Error()}
}

// SiteReport collects everything computed for one site in one run.
type SiteReport struct {
	RunID     string    `json:"run_id"`
	Site      string    `json:"site"`
	Index     string    `json:"index"`
	DateRange DateRange `json:"date_range"`

	Fetch     StageResult `json:"fetch"`
	Series    StageResult `json:"series"`
	Coastline StageResult `json:"coastline"`
	Risk      StageResult `json:"risk"`

	// SourceUnavailable is set when the fetch failed because the provider
	// could not be reached in time.
	SourceUnavailable bool `json:"source_unavailable,omitempty"`

	ScenesFetched  int `json:"scenes_fetched"`
	ScenesSkipped  int `json:"scenes_skipped"`
	SamplesDropped int `json:"samples_dropped"`

	TimeSeries TimeSeries      `json:"time_series"`
	Assessment Assessment      `json:"assessment"`
	Coastlines CoastlineVector `json:"-"`
	// CoastlineSegments mirrors len(Coastlines.Lines) for JSON consumers.
	CoastlineSegments int `json:"coastline_segments"`
	// Preview is the index raster of the first usable scene.
	Preview *IndexRaster `json:"-"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// NewSiteReport returns a report with every stage not yet computed.
func NewSiteReport(runID string, site Site, index string, dates DateRange) SiteReport {
	pending := StageResult{Status: StatusNotComputed}
	return SiteReport{
		RunID:      runID,
		Site:       site.Name,
		Index:      index,
		DateRange:  dates,
		Fetch:      pending,
		Series:     pending,
		Coastline:  pending,
		Risk:       pending,
		Assessment: Assessment{Tier: RiskUnknown},
	}
}

// Complete reports whether every stage finished, successfully or empty.
func (r SiteReport) Complete() bool {
	for _, s := range []StageResult{r.Fetch, r.Series, r.Coastline, r.Risk} {
		if s.Status != StatusOK && s.Status != StatusEmpty {
			return false
		}
	}
	return true
}

// Attempted reports whether processing of the site started.
func (r SiteReport) Attempted() bool {
	return r.Fetch.Status != StatusNotComputed
}
