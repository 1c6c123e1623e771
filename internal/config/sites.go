package config

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/paulmach/orb"

	"github.com/couchcryptid/coastal-erosion-etl/internal/domain"
)

// siteNameRe keeps site names safe to use as directory and file names.
var siteNameRe = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

type siteCatalog struct {
	Sites []siteSpec `koanf:"sites" validate:"required,min=1,unique=Name,dive"`
}

// siteSpec is one catalog entry. Exactly one of BBox, Point, or Polygon is set.
type siteSpec struct {
	Name    string      `koanf:"name" validate:"required,max=128"`
	BBox    *bboxSpec   `koanf:"bbox" validate:"omitempty"`
	Point   *pointSpec  `koanf:"point" validate:"omitempty"`
	BufferM float64     `koanf:"buffer_m" validate:"gte=0,lte=50000"`
	Polygon [][]float64 `koanf:"polygon" validate:"omitempty,min=3,dive,len=2"`
}

type bboxSpec struct {
	West  float64 `koanf:"west" validate:"longitude"`
	South float64 `koanf:"south" validate:"latitude"`
	East  float64 `koanf:"east" validate:"longitude"`
	North float64 `koanf:"north" validate:"latitude"`
}

type pointSpec struct {
	Lon float64 `koanf:"lon" validate:"longitude"`
	Lat float64 `koanf:"lat" validate:"latitude"`
}

// DefaultSites is the catalog used when no SITES_FILE is configured.
func DefaultSites() []domain.Site {
	region, err := domain.NewBBoxRegion(153.078, -25.915, 153.145, -25.880)
	if err != nil {
		panic(err)
	}
	return []domain.Site{{Name: "Rainbow_Beach", Region: region}}
}

// LoadSites reads and validates a YAML site catalog. An empty path returns
// DefaultSites.
func LoadSites(path string) ([]domain.Site, error) {
	if path == "" {
		return DefaultSites(), nil
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load site catalog %s: %w", path, err)
	}
	var catalog siteCatalog
	if err := k.UnmarshalWithConf("", &catalog, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("decode site catalog %s: %w", path, err)
	}
	return buildSites(catalog)
}

func buildSites(catalog siteCatalog) ([]domain.Site, error) {
	if err := validator.New().Struct(catalog); err != nil {
		return nil, fmt.Errorf("invalid site catalog: %w", err)
	}

	sites := make([]domain.Site, 0, len(catalog.Sites))
	for _, spec := range catalog.Sites {
		if !siteNameRe.MatchString(spec.Name) {
			return nil, fmt.Errorf("site %q: name may only contain letters, digits, '_', '.', '-'", spec.Name)
		}
		region, err := spec.region()
		if err != nil {
			return nil, fmt.Errorf("site %q: %w", spec.Name, err)
		}
		sites = append(sites, domain.Site{Name: spec.Name, Region: region})
	}
	return sites, nil
}

func (s siteSpec) region() (domain.Region, error) {
	set := 0
	for _, ok := range []bool{s.BBox != nil, s.Point != nil, len(s.Polygon) > 0} {
		if ok {
			set++
		}
	}
	if set != 1 {
		return domain.Region{}, errors.New("exactly one of bbox, point, or polygon is required")
	}

	switch {
	case s.BBox != nil:
		return domain.NewBBoxRegion(s.BBox.West, s.BBox.South, s.BBox.East, s.BBox.North)
	case s.Point != nil:
		if s.BufferM <= 0 {
			return domain.Region{}, errors.New("point sites need a positive buffer_m")
		}
		return domain.NewPointBufferRegion(orb.Point{s.Point.Lon, s.Point.Lat}, s.BufferM)
	default:
		ring := make([]orb.Point, 0, len(s.Polygon))
		for _, p := range s.Polygon {
			ring = append(ring, orb.Point{p[0], p[1]})
		}
		return domain.NewPolygonRegion(ring)
	}
}
