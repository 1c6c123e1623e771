package httpadapter

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/coastal-erosion-etl/internal/domain"
)

// ReportReader serves the latest report per site.
type ReportReader interface {
	All() []domain.SiteReport
	Get(site string) (domain.SiteReport, bool)
}

// Server exposes health, readiness, metrics, and site report HTTP endpoints.
type Server struct {
	httpServer *http.Server
	reports    ReportReader
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics, and
// /api/sites routes.
func NewServer(addr string, ready sharedobs.ReadinessChecker, reports ReportReader, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		reports: reports,
		logger:  logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /api/sites", s.listSites)
	mux.HandleFunc("GET /api/sites/{name}", s.getSite)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

// siteSummary is one row of the site list: the dashboard's risk table.
type siteSummary struct {
	Site              string          `json:"site"`
	RunID             string          `json:"run_id"`
	Tier              domain.RiskTier `json:"tier"`
	Delta             *float64        `json:"delta,omitempty"`
	Samples           int             `json:"samples"`
	CoastlineSegments int             `json:"coastline_segments"`
	Complete          bool            `json:"complete"`
	SourceUnavailable bool            `json:"source_unavailable,omitempty"`
	FinishedAt        time.Time       `json:"finished_at"`
}

func (s *Server) listSites(w http.ResponseWriter, _ *http.Request) {
	reports := s.reports.All()
	out := make([]siteSummary, 0, len(reports))
	for _, r := range reports {
		out = append(out, siteSummary{
			Site:              r.Site,
			RunID:             r.RunID,
			Tier:              r.Assessment.Tier,
			Delta:             r.Assessment.Delta,
			Samples:           r.Assessment.Samples,
			CoastlineSegments: r.CoastlineSegments,
			Complete:          r.Complete(),
			SourceUnavailable: r.SourceUnavailable,
			FinishedAt:        r.FinishedAt,
		})
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"sites": out})
}

func (s *Server) getSite(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	report, ok := s.reports.Get(name)
	if !ok {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "site not found", "site": name})
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("write response failed", "error", err)
	}
}
