package pipeline_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/coastal-erosion-etl/internal/domain"
	"github.com/couchcryptid/coastal-erosion-etl/internal/pipeline"
)

func TestReportStore_KeepsLatestAttempted(t *testing.T) {
	store := pipeline.NewReportStore()
	ctx := context.Background()

	first := domain.NewSiteReport("run-1", domain.Site{Name: "b"}, "NDVI", domain.DateRange{})
	first.Fetch = domain.StageResult{Status: domain.StatusOK}
	other := domain.NewSiteReport("run-1", domain.Site{Name: "a"}, "NDVI", domain.DateRange{})
	other.Fetch = domain.StageResult{Status: domain.StatusEmpty}
	require.NoError(t, store.LoadBatch(ctx, []domain.SiteReport{first, other}))

	// A later run that never reached site b leaves the earlier report in place.
	pending := domain.NewSiteReport("run-2", domain.Site{Name: "b"}, "NDVI", domain.DateRange{})
	require.NoError(t, store.LoadBatch(ctx, []domain.SiteReport{pending}))

	got, ok := store.Get("b")
	require.True(t, ok)
	assert.Equal(t, "run-1", got.RunID)

	_, ok = store.Get("missing")
	assert.False(t, ok)

	all := store.All()
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].Site)
	assert.Equal(t, "b", all[1].Site)
}
