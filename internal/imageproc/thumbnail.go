package imageproc

import (
	"image"
	"image/color"
	"io"

	"github.com/UnendingLoop/ScanDesk/internal/model"
	"github.com/disintegration/imaging"
)

// Render applies t to src and, when size > 0, fits the result into a size x size box.
// The skew is applied before the quarter turns; plane rotations commute, so the order only
// affects the white margins.
func Render(src image.Image, t model.Transform, size int) (image.Image, error) {
	if src == nil {
		return nil, model.ErrNilImage
	}

	img := src
	if t.Skew != 0 {
		img = imaging.Rotate(img, t.Skew, color.White)
	}

	switch t.QuarterTurns {
	case 1:
		img = imaging.Rotate90(img)
	case 2:
		img = imaging.Rotate180(img)
	case 3:
		img = imaging.Rotate270(img)
	}

	if size > 0 {
		img = imaging.Fit(img, size, size, imaging.Lanczos)
	}
	return img, nil
}

// Thumbnailer renders the record thumbnail and encodes it for delivery.
func Thumbnailer(src image.Image, t model.Transform, size int, format imaging.Format) (io.Reader, int64, error) {
	thumb, err := Render(src, t, size)
	if err != nil {
		return nil, 0, err
	}
	return Encode(thumb, format)
}
