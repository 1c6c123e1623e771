package domain

import (
	"fmt"

	"github.com/wroge/wgs84"
)

// EPSG codes with built-in projection support.
const (
	EPSGWGS84         = 4326
	epsgUTMNorthFirst = 32601
	epsgUTMNorthLast  = 32660
	epsgUTMSouthFirst = 32701
	epsgUTMSouthLast  = 32760
)

// Projection converts between WGS84 lon/lat degrees and a planar CRS.
type Projection interface {
	Forward(lon, lat float64) (x, y float64)
	Inverse(x, y float64) (lon, lat float64)
}

// ProjectionFor returns the projection for an EPSG code. Geographic WGS84 and
// the 120 WGS84 UTM zones are supported, which covers Sentinel-2 and Landsat
// L2 products.
func ProjectionFor(epsg int) (Projection, error) {
	switch {
	case epsg == EPSGWGS84:
		return geographic{}, nil
	case epsg >= epsgUTMNorthFirst && epsg <= epsgUTMNorthLast:
		return newUTM(epsg-epsgUTMNorthFirst+1, true), nil
	case epsg >= epsgUTMSouthFirst && epsg <= epsgUTMSouthLast:
		return newUTM(epsg-epsgUTMSouthFirst+1, false), nil
	default:
		return nil, fmt.Errorf("unsupported CRS EPSG:%d", epsg)
	}
}

type geographic struct{}

func (geographic) Forward(lon, lat float64) (float64, float64) { return lon, lat }
func (geographic) Inverse(x, y float64) (float64, float64)     { return x, y }

// utm projects into one fixed WGS84 UTM zone. Points outside the zone are
// still projected into it, since rasters near a zone edge keep their tile's CRS.
type utm struct {
	forward wgs84.Func
	inverse wgs84.Func
}

func newUTM(zone int, northern bool) utm {
	zoneCRS := wgs84.UTM(float64(zone), northern)
	return utm{
		forward: wgs84.Transform(wgs84.LonLat(), zoneCRS),
		inverse: wgs84.Transform(zoneCRS, wgs84.LonLat()),
	}
}

func (u utm) Forward(lon, lat float64) (float64, float64) {
	x, y, _ := u.forward(lon, lat, 0)
	return x, y
}

func (u utm) Inverse(x, y float64) (float64, float64) {
	lon, lat, _ := u.inverse(x, y, 0)
	return lon, lat
}
