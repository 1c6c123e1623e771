package stac

import (
	"bytes"
	"context"
	"image"
	"image/color"

	"golang.org/x/image/tiff"

	"github.com/couchcryptid/coastal-erosion-etl/internal/domain"
)

// AssetKeys maps canonical layers to item asset keys.
type AssetKeys struct {
	Red            string
	Green          string
	NIR            string
	Classification string
	Probability    string
}

// DefaultAssetKeys are the Sentinel-2 L2A asset keys of Earth Search.
func DefaultAssetKeys() AssetKeys {
	return AssetKeys{
		Red:            "red",
		Green:          "green",
		NIR:            "nir",
		Classification: "scl",
		Probability:    "cloud_probability",
	}
}

// Loader downloads and decodes the GeoTIFF assets of an item into a scene
// cropped to a region. The red asset defines the scene grid; every other
// layer is resampled onto it by nearest pixel centre.
type Loader struct {
	session *Session
	keys    AssetKeys
}

// NewLoader creates a Loader.
func NewLoader(session *Session, keys AssetKeys) *Loader {
	return &Loader{session: session, keys: keys}
}

// layer is one decoded asset on its native grid.
type layer struct {
	grid   domain.Grid
	values domain.Raster
}

// Load builds the scene of one item. Layers absent from the item are left
// out; the processing stages report a missing required layer as malformed.
func (l *Loader) Load(ctx context.Context, it item, region domain.Region) (domain.Scene, error) {
	refAsset, ok := it.Assets[l.keys.Red]
	if !ok {
		return domain.Scene{}, domain.MalformedScene(it.ID, "missing asset %q", l.keys.Red)
	}
	ref, err := l.layer(ctx, it, refAsset)
	if err != nil {
		return domain.Scene{}, err
	}
	win, ok := ref.grid.Window(region.Bound())
	if !ok {
		return domain.Scene{}, domain.MalformedScene(it.ID, "asset %q does not overlap the region", l.keys.Red)
	}
	grid := ref.grid.Crop(win)

	scene := domain.Scene{
		ID:         it.ID,
		Acquired:   domain.Day(it.Properties.Datetime),
		CloudCover: it.cloudCover(),
		Grid:       grid,
		Bands:      map[string]domain.Raster{domain.BandRed: cropRaster(ref.values, win)},
	}

	for _, b := range []struct{ band, key string }{
		{domain.BandGreen, l.keys.Green},
		{domain.BandNIR, l.keys.NIR},
	} {
		r, ok, err := l.resampled(ctx, it, b.key, grid)
		if err != nil {
			return domain.Scene{}, err
		}
		if ok {
			scene.Bands[b.band] = r
		}
	}

	if r, ok, err := l.resampled(ctx, it, l.keys.Classification, grid); err != nil {
		return domain.Scene{}, err
	} else if ok {
		scene.Classification = &r
	}
	if r, ok, err := l.resampled(ctx, it, l.keys.Probability, grid); err != nil {
		return domain.Scene{}, err
	} else if ok {
		scene.CloudProbability = &r
	}

	if err := scene.Validate(); err != nil {
		return domain.Scene{}, err
	}
	return scene, nil
}

// resampled loads an optional asset onto grid. ok is false when the item
// has no such asset.
func (l *Loader) resampled(ctx context.Context, it item, key string, grid domain.Grid) (domain.Raster, bool, error) {
	if key == "" {
		return domain.Raster{}, false, nil
	}
	a, ok := it.Assets[key]
	if !ok {
		return domain.Raster{}, false, nil
	}
	lay, err := l.layer(ctx, it, a)
	if err != nil {
		return domain.Raster{}, false, err
	}
	if lay.grid.EPSG != grid.EPSG {
		return domain.Raster{}, false, domain.MalformedScene(it.ID, "asset %q is in EPSG:%d, scene grid is EPSG:%d", key, lay.grid.EPSG, grid.EPSG)
	}
	return resample(lay, grid), true, nil
}

// layer downloads and decodes one asset. Pixels equal to the asset nodata
// value (0 when unset) become nodata; others are scaled and offset.
func (l *Loader) layer(ctx context.Context, it item, a asset) (layer, error) {
	epsg, err := a.epsg(it)
	if err != nil {
		return layer{}, domain.MalformedScene(it.ID, "asset %s: %v", a.Href, err)
	}
	if len(a.Transform) < 6 {
		return layer{}, domain.MalformedScene(it.ID, "asset %s has no proj:transform", a.Href)
	}
	href, err := l.session.resolve(a.Href)
	if err != nil {
		return layer{}, domain.MalformedScene(it.ID, "%v", err)
	}

	data, err := l.session.fetch(ctx, href, "asset")
	if err != nil {
		return layer{}, &domain.SceneError{SceneID: it.ID, Err: err}
	}
	img, err := tiff.Decode(bytes.NewReader(data))
	if err != nil {
		return layer{}, domain.MalformedScene(it.ID, "decode %s: %v", a.Href, err)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if len(a.Shape) == 2 && (a.Shape[0] != h || a.Shape[1] != w) {
		return layer{}, domain.MalformedScene(it.ID, "asset %s is %dx%d, proj:shape says %dx%d", a.Href, w, h, a.Shape[1], a.Shape[0])
	}

	var t domain.Affine
	copy(t[:], a.Transform[:6])
	grid := domain.Grid{Width: w, Height: h, Transform: t, EPSG: epsg}
	if err := grid.Validate(); err != nil {
		return layer{}, domain.MalformedScene(it.ID, "asset %s: %v", a.Href, err)
	}

	band := a.band()
	nodata, scale, offset := 0.0, 1.0, 0.0
	if band.Nodata != nil {
		nodata = *band.Nodata
	}
	if band.Scale != nil {
		scale = *band.Scale
	}
	if band.Offset != nil {
		offset = *band.Offset
	}

	sample := sampler(img)
	values := domain.NewRaster(w, h)
	for row := range h {
		for col := range w {
			raw := sample(bounds.Min.X+col, bounds.Min.Y+row)
			if raw == nodata {
				continue
			}
			values.Set(col, row, raw*scale+offset)
		}
	}
	return layer{grid: grid, values: values}, nil
}

// sampler returns a reader of raw integer pixel values.
func sampler(img image.Image) func(x, y int) float64 {
	switch m := img.(type) {
	case *image.Gray16:
		return func(x, y int) float64 { return float64(m.Gray16At(x, y).Y) }
	case *image.Gray:
		return func(x, y int) float64 { return float64(m.GrayAt(x, y).Y) }
	default:
		return func(x, y int) float64 {
			return float64(color.Gray16Model.Convert(img.At(x, y)).(color.Gray16).Y)
		}
	}
}

func cropRaster(r domain.Raster, w domain.Window) domain.Raster {
	out := domain.NewRaster(w.Width, w.Height)
	for row := range w.Height {
		for col := range w.Width {
			if v, ok := r.At(w.Col+col, w.Row+row); ok {
				out.Set(col, row, v)
			}
		}
	}
	return out
}

// resample maps each target pixel centre into the layer grid and takes the
// containing pixel. Centres outside the layer are nodata.
func resample(lay layer, target domain.Grid) domain.Raster {
	out := domain.NewRaster(target.Width, target.Height)
	for row := range target.Height {
		for col := range target.Width {
			x, y := target.Transform.Apply(float64(col)+0.5, float64(row)+0.5)
			c, r, ok := lay.grid.PixelAt(x, y)
			if !ok {
				continue
			}
			if v, ok := lay.values.At(c, r); ok {
				out.Set(col, row, v)
			}
		}
	}
	return out
}
