// Package export writes site reports to the file layout read by the
// dashboard. Each site gets a time-series CSV, a 16-bit grayscale TIFF preview
// of its first usable scene, and its extracted coastline as GeoJSON.
package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/couchcryptid/coastal-erosion-etl/internal/domain"
)

// Writer implements pipeline.ReportLoader over a directory tree rooted at Root:
//
//	<root>/<INDEX>/<site>/<INDEX>_timeseries_<site>.csv
//	<root>/<INDEX>/<site>/<INDEX>_<site>_scene1.tif
//	<root>/<INDEX>/<site>/<INDEX>_<site>_scene1.tfw
//	<root>/Coastlines/<site>/coastlines_<site>.geojson
type Writer struct {
	root   string
	logger *slog.Logger
}

// NewWriter creates a Writer rooted at dir.
func NewWriter(dir string, logger *slog.Logger) *Writer {
	return &Writer{root: dir, logger: logger}
}

// TimeSeriesPath is where the series CSV of a site is written.
func (w *Writer) TimeSeriesPath(index, site string) string {
	return filepath.Join(w.root, index, site, fmt.Sprintf("%s_timeseries_%s.csv", index, site))
}

// PreviewPath is where the first-scene preview of a site is written.
func (w *Writer) PreviewPath(index, site string) string {
	return filepath.Join(w.root, index, site, fmt.Sprintf("%s_%s_scene1.tif", index, site))
}

// PreviewWorldPath is where the world file georeferencing the preview is written.
func (w *Writer) PreviewWorldPath(index, site string) string {
	return strings.TrimSuffix(w.PreviewPath(index, site), ".tif") + ".tfw"
}

// CoastlinePath is where the coastline GeoJSON of a site is written.
func (w *Writer) CoastlinePath(site string) string {
	return filepath.Join(w.root, "Coastlines", site, fmt.Sprintf("coastlines_%s.geojson", site))
}

// LoadBatch writes every stage that completed. Sites that failed to fetch or
// were never started leave earlier files untouched.
func (w *Writer) LoadBatch(ctx context.Context, reports []domain.SiteReport) error {
	var errs []error
	for _, r := range reports {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !r.Attempted() {
			continue
		}
		if err := w.writeSite(r); err != nil {
			errs = append(errs, fmt.Errorf("site %s: %w", r.Site, err))
		}
	}
	return errors.Join(errs...)
}

func (w *Writer) writeSite(r domain.SiteReport) error {
	written := 0
	if finished(r.Series) {
		path := w.TimeSeriesPath(r.Index, r.Site)
		if err := writeFileAtomic(path, func(out io.Writer) error {
			return WriteTimeSeries(out, r.Index, r.TimeSeries)
		}); err != nil {
			return err
		}
		written++
	}
	if r.Preview != nil {
		path := w.PreviewPath(r.Index, r.Site)
		if err := writeFileAtomic(path, func(out io.Writer) error {
			return WritePreview(out, *r.Preview)
		}); err != nil {
			return err
		}
		if err := writeFileAtomic(w.PreviewWorldPath(r.Index, r.Site), func(out io.Writer) error {
			return WriteWorldFile(out, r.Preview.Grid)
		}); err != nil {
			return err
		}
		written += 2
	}
	if finished(r.Coastline) {
		path := w.CoastlinePath(r.Site)
		if err := writeFileAtomic(path, func(out io.Writer) error {
			return WriteCoastlines(out, r)
		}); err != nil {
			return err
		}
		written++
	}
	w.logger.Debug("site exported", "site", r.Site, "files", written)
	return nil
}

func finished(s domain.StageResult) bool {
	return s.Status == domain.StatusOK || s.Status == domain.StatusEmpty
}

// writeFileAtomic writes through a temporary file in the target directory
// and renames it into place, so readers never see a partial file.
func writeFileAtomic(path string, write func(io.Writer) error) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if err := write(tmp); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
