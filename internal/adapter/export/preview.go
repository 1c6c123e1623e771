package export

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"math"
	"strconv"

	"golang.org/x/image/tiff"

	"github.com/couchcryptid/coastal-erosion-etl/internal/domain"
)

// WritePreview encodes an index raster as a 16-bit grayscale TIFF. Index
// values in [-1, 1] map linearly onto 1..65535; nodata is 0.
func WritePreview(w io.Writer, r domain.IndexRaster) error {
	width, height := r.Values.Width(), r.Values.Height()
	img := image.NewGray16(image.Rect(0, 0, width, height))
	for row := range height {
		for col := range width {
			v, ok := r.Values.At(col, row)
			if !ok {
				continue
			}
			img.SetGray16(col, row, color.Gray16{Y: previewLevel(v)})
		}
	}
	return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
}

// previewLevel maps an index value to a non-zero gray level.
func previewLevel(v float64) uint16 {
	v = math.Max(-1, math.Min(1, v))
	return uint16(math.Round((v+1)/2*65534)) + 1
}

// PreviewValue inverts previewLevel. ok is false for the nodata level.
func PreviewValue(level uint16) (float64, bool) {
	if level == 0 {
		return 0, false
	}
	return float64(level-1)/65534*2 - 1, true
}

// WriteWorldFile writes the ESRI world file that georeferences a preview:
// pixel size and rotation terms, then the centre of the upper-left pixel in
// the grid's CRS.
func WriteWorldFile(w io.Writer, g domain.Grid) error {
	t := g.Transform
	x, y := t.Apply(0.5, 0.5)
	for _, v := range []float64{t[0], t[3], t[1], t[4], x, y} {
		if _, err := fmt.Fprintln(w, strconv.FormatFloat(v, 'f', -1, 64)); err != nil {
			return err
		}
	}
	return nil
}
