package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "coastwatch"

// Metrics holds the Prometheus counters, histograms, and gauges for the site pipeline.
type Metrics struct {
	ScenesFetched   prometheus.Counter
	ScenesSkipped   *prometheus.CounterVec // labels: reason={malformed,unavailable,other}
	SamplesProduced prometheus.Counter
	SamplesDropped  prometheus.Counter
	PipelineRunning prometheus.Gauge

	// Site processing metrics.
	SitesProcessed *prometheus.CounterVec // labels: outcome={ok,partial,failed,unavailable}
	SiteDuration   prometheus.Histogram
	RunDuration    prometheus.Histogram
	SiteRiskTier   *prometheus.GaugeVec // labels: site; value is the tier ordinal
	SiteDelta      *prometheus.GaugeVec // labels: site

	// Imagery source metrics.
	SceneCache       *prometheus.CounterVec // labels: result={hit,miss,shared}
	STACRequests     *prometheus.CounterVec // labels: endpoint={landing,search,asset}, outcome={success,error}
	STACDuration     *prometheus.HistogramVec
	SinkErrors       *prometheus.CounterVec // labels: sink
	ReportsPublished *prometheus.CounterVec // labels: sink
}

func newMetrics() *Metrics {
	return &Metrics{
		ScenesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scenes_fetched_total",
			Help:      "Total scenes yielded by the imagery source.",
		}),
		ScenesSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scenes_skipped_total",
			Help:      "Scenes skipped during processing by reason.",
		}, []string{"reason"}),
		SamplesProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_produced_total",
			Help:      "Valid regional index samples produced.",
		}),
		SamplesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_dropped_total",
			Help:      "Samples dropped for having no valid pixels.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while a run is in progress, 0 otherwise.",
		}),
		SitesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sites_processed_total",
			Help:      "Sites processed by outcome.",
		}, []string{"outcome"}),
		SiteDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "site_processing_duration_seconds",
			Help:      "Duration of fetching and processing one site.",
			Buckets:   []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete run over every site.",
			Buckets:   []float64{1, 10, 30, 60, 300, 600, 1800, 3600},
		}),
		SiteRiskTier: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "site_risk_tier",
			Help:      "Latest risk tier per site: 0 Unknown, 1 Stable, 2 Watch, 3 High.",
		}, []string{"site"}),
		SiteDelta: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "site_index_delta",
			Help:      "Latest first-to-last index change per site.",
		}, []string{"site"}),
		SceneCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scene_cache_total",
			Help:      "Scene cache lookups by result.",
		}, []string{"result"}),
		STACRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stac_requests_total",
			Help:      "Imagery catalog requests by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		STACDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stac_request_duration_seconds",
			Help:      "Imagery catalog request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"endpoint"}),
		SinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_errors_total",
			Help:      "Report sink failures by sink.",
		}, []string{"sink"}),
		ReportsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_published_total",
			Help:      "Site reports written by sink.",
		}, []string{"sink"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.ScenesFetched,
		m.ScenesSkipped,
		m.SamplesProduced,
		m.SamplesDropped,
		m.PipelineRunning,
		m.SitesProcessed,
		m.SiteDuration,
		m.RunDuration,
		m.SiteRiskTier,
		m.SiteDelta,
		m.SceneCache,
		m.STACRequests,
		m.STACDuration,
		m.SinkErrors,
		m.ReportsPublished,
	}
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}
