// Package imageproc provides pixel operations for records: decoding, rendering with transforms,
// thumbnail generation and skew detection.
package imageproc

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"

	"github.com/UnendingLoop/ScanDesk/internal/model"
	"github.com/disintegration/imaging"
)

// Decode reads an encoded PNG, JPEG or GIF image and reports its format.
func Decode(r io.Reader) (image.Image, imaging.Format, error) {
	if r == nil {
		return nil, -1, errors.New("nil-reader provided to Decode")
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, -1, err
	}

	_, f, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, -1, fmt.Errorf("failed to read image config: %w", err)
	}

	format, err := imaging.FormatFromExtension(f)
	if err != nil {
		return nil, -1, err
	}

	switch format {
	case imaging.PNG, imaging.JPEG, imaging.GIF:
	default:
		return nil, -1, model.ErrUnsupportedFormat
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, -1, fmt.Errorf("failed to DEcode image: %w", err)
	}
	return img, format, nil
}

// Encode writes img in the given format and returns the encoded bytes with their size.
func Encode(img image.Image, format imaging.Format) (io.Reader, int64, error) {
	if img == nil {
		return nil, 0, model.ErrNilImage
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, format); err != nil {
		return nil, 0, fmt.Errorf("failed to ENcode image: %w", err)
	}
	return &buf, int64(buf.Len()), nil
}
