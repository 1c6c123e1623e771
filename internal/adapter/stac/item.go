package stac

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// STAC API wire types. Only the fields the loader reads are decoded.

type searchRequest struct {
	Collections []string       `json:"collections"`
	BBox        [4]float64     `json:"bbox"`
	Datetime    string         `json:"datetime"`
	Limit       int            `json:"limit,omitempty"`
	Query       map[string]any `json:"query,omitempty"`
}

type itemCollection struct {
	Features []item `json:"features"`
	Links    []link `json:"links"`
}

type link struct {
	Rel    string          `json:"rel"`
	Href   string          `json:"href"`
	Method string          `json:"method,omitempty"`
	Body   json.RawMessage `json:"body,omitempty"`
	Merge  bool            `json:"merge,omitempty"`
}

type item struct {
	ID         string           `json:"id"`
	Properties itemProperties   `json:"properties"`
	Assets     map[string]asset `json:"assets"`
}

type itemProperties struct {
	Datetime   time.Time `json:"datetime"`
	CloudCover *float64  `json:"eo:cloud_cover"`
	EPSG       *int      `json:"proj:epsg"`
	Code       string    `json:"proj:code"`
}

type asset struct {
	Href        string       `json:"href"`
	Type        string       `json:"type"`
	Transform   []float64    `json:"proj:transform"`
	Shape       []int        `json:"proj:shape"`
	EPSG        *int         `json:"proj:epsg"`
	Code        string       `json:"proj:code"`
	RasterBands []rasterBand `json:"raster:bands"`
}

type rasterBand struct {
	Nodata *float64 `json:"nodata"`
	Scale  *float64 `json:"scale"`
	Offset *float64 `json:"offset"`
}

// epsg returns the asset CRS, falling back to the item CRS.
func (a asset) epsg(it item) (int, error) {
	if a.EPSG != nil {
		return *a.EPSG, nil
	}
	if a.Code != "" {
		return parseCode(a.Code)
	}
	if it.Properties.EPSG != nil {
		return *it.Properties.EPSG, nil
	}
	if it.Properties.Code != "" {
		return parseCode(it.Properties.Code)
	}
	return 0, fmt.Errorf("no proj:epsg or proj:code")
}

// parseCode parses a projection code of the form "EPSG:32756".
func parseCode(code string) (int, error) {
	authority, num, ok := strings.Cut(code, ":")
	if !ok || !strings.EqualFold(authority, "EPSG") {
		return 0, fmt.Errorf("unsupported proj:code %q", code)
	}
	n, err := strconv.Atoi(num)
	if err != nil {
		return 0, fmt.Errorf("unsupported proj:code %q", code)
	}
	return n, nil
}

// band returns the first raster:bands entry, or zero values.
func (a asset) band() rasterBand {
	if len(a.RasterBands) == 0 {
		return rasterBand{}
	}
	return a.RasterBands[0]
}

// cloudCover returns the item's cloud estimate. Items without one count as
// fully clouded.
func (it item) cloudCover() float64 {
	if it.Properties.CloudCover == nil {
		return 100
	}
	return *it.Properties.CloudCover
}
