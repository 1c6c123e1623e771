package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/coastal-erosion-etl/internal/domain"
	"github.com/couchcryptid/coastal-erosion-etl/internal/observability"
)

// ErrAllSitesUnavailable is returned by RunOnce when every site's fetch
// failed because the imagery source was unreachable.
var ErrAllSitesUnavailable = fmt.Errorf("every site failed: %w", domain.ErrSourceUnavailable)

// publishTimeout bounds sink writes, which run even after the run context is cancelled.
const publishTimeout = 30 * time.Second

// Processor turns one site into a report. Process must not return until it
// has stopped using ctx.
type Processor interface {
	// Pending returns the report of a site that was never started.
	Pending(runID string, site domain.Site) domain.SiteReport
	Process(ctx context.Context, runID string, site domain.Site) domain.SiteReport
}

// ReportLoader writes a run's site reports to a destination.
type ReportLoader interface {
	LoadBatch(ctx context.Context, reports []domain.SiteReport) error
}

// RunScoped is implemented by components holding state that must not outlive
// a run. BeginRun is called before the first site of a run starts.
type RunScoped interface {
	BeginRun(runID string)
}

// Sink is a named ReportLoader.
type Sink struct {
	Name   string
	Loader ReportLoader
}

// Options tune the runner.
type Options struct {
	// Concurrency bounds the number of sites processed at once.
	Concurrency int
	// Interval between runs. Zero runs once.
	Interval time.Duration
}

// Runner processes every site of a catalog and publishes the reports.
type Runner struct {
	processor Processor
	sinks     []Sink
	logger    *slog.Logger
	metrics   *observability.Metrics
	clock     clockwork.Clock
	opts      Options
	ready     atomic.Bool
}

// New creates a Runner. A nil clock uses the real clock.
func New(processor Processor, sinks []Sink, logger *slog.Logger, metrics *observability.Metrics, clock clockwork.Clock, opts Options) *Runner {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Runner{
		processor: processor,
		sinks:     sinks,
		logger:    logger,
		metrics:   metrics,
		clock:     clock,
		opts:      opts,
	}
}

// CheckReadiness returns nil once a run has completed, or an error describing
// why the service is not yet ready.
func (r *Runner) CheckReadiness(_ context.Context) error {
	if !r.ready.Load() {
		return errors.New("no run has completed yet")
	}
	return nil
}

// Run repeats RunOnce every Interval until ctx is cancelled. With a zero
// Interval it runs once and returns that run's error. A run in which every
// site was unreachable is retried with exponential backoff instead of
// waiting the full interval.
func (r *Runner) Run(ctx context.Context, sites []domain.Site) error {
	r.logger.Info("pipeline started",
		"sites", len(sites),
		"concurrency", r.opts.Concurrency,
		"interval", r.opts.Interval,
	)

	// Exponential backoff: start at 30s, double each retry, cap at the interval.
	backoff := 30 * time.Second

	for {
		_, err := r.RunOnce(ctx, sites)
		if ctx.Err() != nil {
			r.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		}
		if r.opts.Interval <= 0 {
			return err
		}

		wait := r.opts.Interval
		if errors.Is(err, ErrAllSitesUnavailable) {
			wait = min(backoff, r.opts.Interval)
			r.logger.Error("run failed, retrying", "error", err, "backoff", wait)
			backoff = nextBackoff(backoff, r.opts.Interval)
		} else {
			backoff = 30 * time.Second
		}

		if !sleepWithContext(ctx, r.clock, wait) {
			r.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		}
	}
}

// RunOnce processes every site with bounded parallelism. A failing site is
// recorded on its report and never stops the others. Cancelling ctx stops
// scheduling; sites not yet started keep status not_computed and RunOnce
// returns ctx's error. Reports are published to every sink before returning
// and are ordered like sites.
func (r *Runner) RunOnce(ctx context.Context, sites []domain.Site) ([]domain.SiteReport, error) {
	runID := uuid.NewString()
	start := r.clock.Now()
	r.metrics.PipelineRunning.Set(1)
	defer r.metrics.PipelineRunning.Set(0)
	r.logger.Info("run started", "run_id", runID, "sites", len(sites))

	if rs, ok := r.processor.(RunScoped); ok {
		rs.BeginRun(runID)
	}

	reports := make([]domain.SiteReport, len(sites))
	for i, site := range sites {
		reports[i] = r.processor.Pending(runID, site)
	}

	var g errgroup.Group
	g.SetLimit(r.opts.Concurrency)
	for i, site := range sites {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			reports[i] = r.processSite(ctx, runID, site)
			return nil
		})
	}
	_ = g.Wait()

	r.publish(ctx, reports)
	r.metrics.RunDuration.Observe(r.clock.Since(start).Seconds())

	if err := ctx.Err(); err != nil {
		r.logger.Warn("run interrupted", "run_id", runID, "error", err)
		return reports, err
	}
	if err := runError(reports); err != nil {
		r.logger.Error("run failed", "run_id", runID, "error", err)
		return reports, err
	}

	r.ready.Store(true)
	r.logger.Info("run finished", "run_id", runID, "sites", len(sites), "duration", r.clock.Since(start))
	return reports, nil
}

// processSite runs one site, converting a panic into a failed report.
func (r *Runner) processSite(ctx context.Context, runID string, site domain.Site) (report domain.SiteReport) {
	start := r.clock.Now()
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("site processing panicked", "site", site.Name, "run_id", runID, "panic", p)
			report = r.processor.Pending(runID, site)
			report.Fetch = domain.StageResult{Status: domain.StatusFailed, Error: fmt.Sprintf("panic: %v", p)}
		}
		r.metrics.SiteDuration.Observe(r.clock.Since(start).Seconds())
		r.metrics.SitesProcessed.WithLabelValues(outcome(report)).Inc()
		if report.Risk.Status == domain.StatusOK {
			r.metrics.SiteRiskTier.WithLabelValues(site.Name).Set(float64(report.Assessment.Tier))
			if report.Assessment.Delta != nil {
				r.metrics.SiteDelta.WithLabelValues(site.Name).Set(*report.Assessment.Delta)
			}
		}
	}()
	return r.processor.Process(ctx, runID, site)
}

// publish writes reports to every sink. A failing sink is logged and does not
// prevent the others from receiving the batch.
func (r *Runner) publish(ctx context.Context, reports []domain.SiteReport) {
	if len(reports) == 0 {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	for _, s := range r.sinks {
		if err := s.Loader.LoadBatch(pubCtx, reports); err != nil {
			r.logger.Error("load batch failed", "sink", s.Name, "error", err, "batch_size", len(reports))
			r.metrics.SinkErrors.WithLabelValues(s.Name).Inc()
			continue
		}
		r.metrics.ReportsPublished.WithLabelValues(s.Name).Add(float64(len(reports)))
	}
}

func runError(reports []domain.SiteReport) error {
	if len(reports) == 0 {
		return nil
	}
	for _, rep := range reports {
		if !rep.SourceUnavailable {
			return nil
		}
	}
	return ErrAllSitesUnavailable
}

func outcome(r domain.SiteReport) string {
	switch {
	case r.Complete():
		return "ok"
	case r.SourceUnavailable:
		return "unavailable"
	case r.Fetch.Status == domain.StatusFailed:
		return "failed"
	default:
		return "partial"
	}
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, clock clockwork.Clock, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}
