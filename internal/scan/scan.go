// Package scan checks uploaded OMR sheets and keeps image sizes in bounds.
package scan

import (
	"bytes"
	"fmt"

	"github.com/disintegration/imaging"

	"github.com/pavelanni/resultportal/internal/model"
)

// Options controls image normalization.
type Options struct {
	// MaxWidth caps image width in pixels. Zero disables resizing.
	MaxWidth    int
	JPEGQuality int
}

// DefaultOptions keeps scans legible at a reasonable size.
var DefaultOptions = Options{MaxWidth: 2000, JPEGQuality: 85}

var pdfMagic = []byte("%PDF-")

// Prepare validates data as a scan with extension ext and returns the
// bytes to store. Images are auto-oriented and downscaled when wider than
// MaxWidth; otherwise the original bytes are kept.
func Prepare(data []byte, ext string, opts Options) ([]byte, error) {
	if ext == ".pdf" {
		if !bytes.HasPrefix(data, pdfMagic) {
			return nil, model.Invalid("file", "is not a PDF document")
		}
		return data, nil
	}

	format, err := imaging.FormatFromExtension(ext)
	if err != nil {
		return nil, model.Invalid("file", "unsupported image type %s", ext)
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, model.Invalid("file", "is not a readable image")
	}
	if opts.MaxWidth <= 0 || img.Bounds().Dx() <= opts.MaxWidth {
		return data, nil
	}

	img = imaging.Resize(img, opts.MaxWidth, 0, imaging.Lanczos)
	quality := opts.JPEGQuality
	if quality <= 0 {
		quality = DefaultOptions.JPEGQuality
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, format, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("encode resized scan: %w", err)
	}
	return buf.Bytes(), nil
}
