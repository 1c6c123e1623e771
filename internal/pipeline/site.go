package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/coastal-erosion-etl/internal/domain"
	"github.com/couchcryptid/coastal-erosion-etl/internal/observability"
)

// Settings are the per-run processing parameters shared by every site.
type Settings struct {
	Index          domain.IndexSpec
	DateRange      domain.DateRange
	MaxCloudCover  int
	WaterThreshold float64
	// FetchTimeout bounds fetching and consuming one site's scenes.
	FetchTimeout time.Duration
}

// Stages are the pluggable per-scene and per-site computations.
type Stages struct {
	Mask       domain.CloudMask
	Compositor domain.Compositor
	Reducer    domain.Reducer
}

// SiteProcessor implements Processor: fetch, mask, index, reduce, and
// classify for the time series; NDWI composite and extraction for the
// coastline. Broken scenes are skipped and counted.
type SiteProcessor struct {
	source   domain.SceneSource
	stages   Stages
	settings Settings
	logger   *slog.Logger
	metrics  *observability.Metrics
	clock    clockwork.Clock
}

// NewSiteProcessor creates a SiteProcessor. A nil clock uses the real clock.
func NewSiteProcessor(source domain.SceneSource, stages Stages, settings Settings, logger *slog.Logger, metrics *observability.Metrics, clock clockwork.Clock) *SiteProcessor {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &SiteProcessor{
		source:   source,
		stages:   stages,
		settings: settings,
		logger:   logger,
		metrics:  metrics,
		clock:    clock,
	}
}

// BeginRun forwards to the scene source when it holds per-run state.
func (p *SiteProcessor) BeginRun(runID string) {
	if rs, ok := p.source.(RunScoped); ok {
		rs.BeginRun(runID)
	}
}

func (p *SiteProcessor) Pending(runID string, site domain.Site) domain.SiteReport {
	return domain.NewSiteReport(runID, site, p.settings.Index.Name, p.settings.DateRange)
}

// sceneOutput is what one scene contributes to a site.
type sceneOutput struct {
	index domain.IndexRaster
	water *domain.IndexRaster
}

func (p *SiteProcessor) Process(ctx context.Context, runID string, site domain.Site) (report domain.SiteReport) {
	report = p.Pending(runID, site)
	report.StartedAt = p.clock.Now()
	defer func() { report.FinishedAt = p.clock.Now() }()
	logger := p.logger.With("site", site.Name, "run_id", runID)

	outputs, err := p.collect(ctx, site, &report, logger)
	if err != nil {
		report.Fetch = domain.Failed(err)
		report.SourceUnavailable = errors.Is(err, domain.ErrSourceUnavailable)
		if ctx.Err() != nil {
			logger.Warn("scene fetch interrupted", "error", err)
			return report
		}
		logger.Error("scene fetch failed", "error", err, "unavailable", report.SourceUnavailable)
		return report
	}

	p.buildSeries(&report, site.Region, outputs, logger)
	p.buildCoastline(&report, site.Region, outputs)

	logger.Info("site processed",
		"scenes", report.ScenesFetched,
		"skipped", report.ScenesSkipped,
		"samples", report.TimeSeries.Len(),
		"tier", report.Assessment.Tier.String(),
		"coastline_segments", report.CoastlineSegments,
	)
	return report
}

// collect consumes the scene sequence. A provider failure for the fetch as a
// whole, including a timeout mid-sequence, is returned; per-scene failures
// are skipped.
func (p *SiteProcessor) collect(ctx context.Context, site domain.Site, report *domain.SiteReport, logger *slog.Logger) ([]sceneOutput, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, p.settings.FetchTimeout)
	defer cancel()

	scenes, err := p.source.FetchScenes(fetchCtx, site.Region, p.settings.DateRange, p.settings.MaxCloudCover)
	if err != nil {
		return nil, fetchFailure(ctx, fetchCtx, err)
	}

	var outputs []sceneOutput
	yielded := 0
	for scene, err := range scenes {
		yielded++
		if err != nil {
			if fetchCtx.Err() != nil {
				return nil, fetchFailure(ctx, fetchCtx, err)
			}
			p.skip(report, logger, sceneID(err), err)
			continue
		}
		report.ScenesFetched++
		p.metrics.ScenesFetched.Inc()

		out, err := p.processScene(scene, logger)
		if err != nil {
			p.skip(report, logger, scene.ID, err)
			continue
		}
		outputs = append(outputs, out)
	}

	if yielded == 0 {
		report.Fetch = domain.StageResult{Status: domain.StatusEmpty}
	} else {
		report.Fetch = domain.StageResult{Status: domain.StatusOK}
	}
	return outputs, nil
}

// processScene masks a scene and computes the tracked index plus NDWI for
// the coastline. A scene without a green band still contributes its index.
func (p *SiteProcessor) processScene(scene domain.Scene, logger *slog.Logger) (sceneOutput, error) {
	masked, err := p.stages.Mask.ApplyMask(scene)
	if err != nil {
		return sceneOutput{}, err
	}
	index, err := p.settings.Index.Compute(masked)
	if err != nil {
		return sceneOutput{}, err
	}

	out := sceneOutput{index: index}
	if p.settings.Index == domain.NDWI {
		out.water = &index
		return out, nil
	}
	water, err := domain.NDWI.Compute(masked)
	if err != nil {
		logger.Debug("scene has no water index, coastline skips it", "scene_id", scene.ID, "error", err)
		return out, nil
	}
	out.water = &water
	return out, nil
}

func (p *SiteProcessor) buildSeries(report *domain.SiteReport, region domain.Region, outputs []sceneOutput, logger *slog.Logger) {
	samples := make([]domain.Sample, 0, len(outputs))
	for _, out := range outputs {
		s := p.stages.Reducer.Reduce(out.index, region)
		if !s.Valid {
			report.SamplesDropped++
			p.metrics.SamplesDropped.Inc()
			logger.Debug("sample dropped", "scene_id", out.index.SceneID, "valid_pixels", s.ValidPixels, "region_pixels", s.RegionPixels)
			continue
		}
		p.metrics.SamplesProduced.Inc()
		samples = append(samples, s)
		if report.Preview == nil {
			preview := out.index
			report.Preview = &preview
		}
	}

	report.TimeSeries = domain.BuildTimeSeries(samples)
	report.Series = statusOf(report.TimeSeries.Len() > 0)
	report.Assessment = domain.Classify(report.TimeSeries)
	report.Risk = domain.StageResult{Status: domain.StatusOK}
}

func (p *SiteProcessor) buildCoastline(report *domain.SiteReport, region domain.Region, outputs []sceneOutput) {
	water := make([]domain.IndexRaster, 0, len(outputs))
	for _, out := range outputs {
		if out.water != nil {
			water = append(water, *out.water)
		}
	}

	composite, ok := p.stages.Compositor.Compose(water)
	if !ok {
		report.Coastline = domain.StageResult{Status: domain.StatusEmpty}
		return
	}
	vec := domain.ExtractCoastline(region, composite, p.settings.WaterThreshold)
	report.Coastlines = vec
	report.CoastlineSegments = len(vec.Lines)
	report.Coastline = statusOf(!vec.Empty())
}

func (p *SiteProcessor) skip(report *domain.SiteReport, logger *slog.Logger, id string, err error) {
	report.ScenesSkipped++
	p.metrics.ScenesSkipped.WithLabelValues(skipReason(err)).Inc()
	logger.Warn("scene skipped", "scene_id", id, "error", err)
}

func statusOf(nonEmpty bool) domain.StageResult {
	if nonEmpty {
		return domain.StageResult{Status: domain.StatusOK}
	}
	return domain.StageResult{Status: domain.StatusEmpty}
}

func skipReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrMalformedScene):
		return "malformed"
	case errors.Is(err, domain.ErrSourceUnavailable):
		return "unavailable"
	default:
		return "other"
	}
}

func sceneID(err error) string {
	var se *domain.SceneError
	if errors.As(err, &se) {
		return se.SceneID
	}
	return ""
}

// fetchFailure classifies a failed fetch. Cancellation of the run is its own
// error, never ErrSourceUnavailable, whatever the source wrapped it in. An
// expired fetch timeout is reported as ErrSourceUnavailable.
func fetchFailure(ctx, fetchCtx context.Context, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("fetch interrupted: %w", context.Cause(ctx))
	}
	if errors.Is(err, domain.ErrSourceUnavailable) || fetchCtx.Err() == nil {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrSourceUnavailable, err)
}
