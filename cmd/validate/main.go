// Command validate checks the files a pipeline run exported for a site
// catalog: the time-series CSVs, first-scene previews, and coastline GeoJSON.
// It verifies that every file parses, that series dates strictly increase,
// that values stay in the index range, and that coastlines lie inside their
// site's region. It prints the risk tier each series implies.
//
// Usage:
//
//	go run ./cmd/validate -dir data -index NDVI -sites sites.yaml
package main

import (
	"flag"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"golang.org/x/image/tiff"

	"github.com/couchcryptid/coastal-erosion-etl/internal/adapter/export"
	"github.com/couchcryptid/coastal-erosion-etl/internal/config"
	"github.com/couchcryptid/coastal-erosion-etl/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	dir := flag.String("dir", "data", "output directory written by the pipeline")
	indexName := flag.String("index", "NDVI", "tracked index: NDVI or NDWI")
	sitesFile := flag.String("sites", "", "YAML site catalog (default: built-in catalog)")
	flag.Parse()

	index, ok := domain.LookupIndex(*indexName)
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown index %q\n", *indexName)
		os.Exit(1)
	}
	sites, err := config.LoadSites(*sitesFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}

	if code := run(*dir, index.Name, sites); code != 0 {
		os.Exit(code)
	}
}

func run(dir, index string, sites []domain.Site) int {
	fmt.Println("=== Coastal Export Validation ===")
	fmt.Println()

	paths := export.NewWriter(dir, slog.New(slog.NewTextHandler(io.Discard, nil)))

	series := &phase{name: "Time series " + index}
	previews := &phase{name: "First-scene previews"}
	coastlines := &phase{name: "Coastlines inside region"}

	for _, site := range sites {
		ts, ok := validateSeries(series, paths.TimeSeriesPath(index, site.Name), index)
		if ok {
			a := domain.Classify(ts)
			delta := "n/a"
			if a.Delta != nil {
				delta = fmt.Sprintf("%+.4f", *a.Delta)
			}
			fmt.Printf("  %-32s %-8s delta=%s samples=%d\n", site.Name, a.Tier, delta, a.Samples)
		}
		validatePreview(previews, paths.PreviewPath(index, site.Name), paths.PreviewWorldPath(index, site.Name))
		validateCoastlines(coastlines, paths.CoastlinePath(site.Name), site)
	}

	phases := []*phase{series, previews, coastlines}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Printf("\nAll validations passed for %d sites.\n", len(sites))
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

func validateSeries(p *phase, path, index string) (domain.TimeSeries, bool) {
	f, err := os.Open(path)
	if err != nil {
		p.errorf("%v", err)
		return domain.TimeSeries{}, false
	}
	defer f.Close()

	ts, header, err := export.ReadTimeSeries(f)
	if err != nil {
		p.errorf("%s: %v", path, err)
		return domain.TimeSeries{}, false
	}
	if header != index {
		p.errorf("%s: header names %s, want %s", path, header, index)
	}
	for _, s := range ts.Samples {
		if s.Value < -1 || s.Value > 1 {
			p.errorf("%s: %s value %g outside [-1, 1]", path, s.Date.Format("2006-01-02"), s.Value)
		}
	}
	return ts, true
}

func validatePreview(p *phase, path, worldPath string) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		// A site without a usable scene has no preview.
		return
	}
	if err != nil {
		p.errorf("%v", err)
		return
	}
	defer f.Close()

	if _, err := os.Stat(worldPath); err != nil {
		p.errorf("preview %s is not georeferenced: %v", path, err)
	}

	img, err := tiff.Decode(f)
	if err != nil {
		p.errorf("%s: %v", path, err)
		return
	}
	gray, ok := img.(*image.Gray16)
	if !ok {
		p.errorf("%s: decoded as %T, want 16-bit grayscale", path, img)
		return
	}
	valid := 0
	b := gray.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if _, ok := export.PreviewValue(gray.Gray16At(x, y).Y); ok {
				valid++
			}
		}
	}
	if valid == 0 {
		p.errorf("%s: no valid pixels", path)
	}
}

func validateCoastlines(p *phase, path string, site domain.Site) {
	f, err := os.Open(path)
	if err != nil {
		p.errorf("%v", err)
		return
	}
	defer f.Close()

	fc, err := export.ReadCoastlines(f)
	if err != nil {
		p.errorf("%s: %v", path, err)
		return
	}
	bound := site.Region.Bound()
	for i, feat := range fc.Features {
		checkFeature(p, path, i, feat, site.Name, bound)
	}
}

func checkFeature(p *phase, path string, i int, feat *geojson.Feature, site string, bound orb.Bound) {
	line, ok := feat.Geometry.(orb.LineString)
	if !ok {
		p.errorf("%s: feature %d is %T, want LineString", path, i, feat.Geometry)
		return
	}
	if len(line) < 2 {
		p.errorf("%s: feature %d has %d points", path, i, len(line))
	}
	if got := feat.Properties.MustString("site", ""); got != site {
		p.errorf("%s: feature %d site %q, want %q", path, i, got, site)
	}
	// Contour points sit on pixel edges, so allow one pixel outside the region.
	padded := bound.Pad(0.001)
	for _, pt := range line {
		if !padded.Contains(pt) {
			p.errorf("%s: feature %d point %v outside region", path, i, pt)
			return
		}
	}
}
