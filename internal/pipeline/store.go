package pipeline

import (
	"context"
	"sort"
	"sync"

	"github.com/couchcryptid/coastal-erosion-etl/internal/domain"
)

// ReportStore keeps the latest attempted report per site in memory. It is a
// ReportLoader so the runner publishes to it like any other sink.
type ReportStore struct {
	mu      sync.RWMutex
	reports map[string]domain.SiteReport
}

// NewReportStore creates an empty store.
func NewReportStore() *ReportStore {
	return &ReportStore{reports: make(map[string]domain.SiteReport)}
}

// LoadBatch records reports. Sites that were never started keep their
// previous report.
func (s *ReportStore) LoadBatch(_ context.Context, reports []domain.SiteReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range reports {
		if r.Attempted() {
			s.reports[r.Site] = r
		}
	}
	return nil
}

// Get returns the latest report for a site.
func (s *ReportStore) Get(site string) (domain.SiteReport, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reports[site]
	return r, ok
}

// All returns the latest reports sorted by site name.
func (s *ReportStore) All() []domain.SiteReport {
	s.mu.RLock()
	out := make([]domain.SiteReport, 0, len(s.reports))
	for _, r := range s.reports {
		out = append(out, r)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Site < out[j].Site })
	return out
}
