package export

import (
	"encoding/json"
	"io"

	"github.com/paulmach/orb/geojson"

	"github.com/couchcryptid/coastal-erosion-etl/internal/domain"
)

// WriteCoastlines writes a report's coastline as a GeoJSON FeatureCollection
// with one LineString feature per segment. A site with no coastline gets an
// empty collection.
func WriteCoastlines(w io.Writer, r domain.SiteReport) error {
	fc := geojson.NewFeatureCollection()
	for i, line := range r.Coastlines.Lines {
		f := geojson.NewFeature(line)
		f.Properties["site"] = r.Site
		f.Properties["segment"] = i
		f.Properties["date_range"] = r.DateRange.String()
		f.Properties["run_id"] = r.RunID
		fc.Append(f)
	}

	data, err := json.MarshalIndent(fc, "", "  ")
	if err != nil {
		return err
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

// ReadCoastlines parses a FeatureCollection written by WriteCoastlines.
func ReadCoastlines(r io.Reader) (*geojson.FeatureCollection, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return geojson.UnmarshalFeatureCollection(data)
}
