package scan

import (
	"bytes"
	"errors"
	"image/color"
	"testing"

	"github.com/disintegration/imaging"

	"github.com/pavelanni/resultportal/internal/model"
)

func encode(t *testing.T, w, h int, f imaging.Format) []byte {
	t.Helper()
	img := imaging.New(w, h, color.NRGBA{R: 200, G: 200, B: 200, A: 255})
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, f); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func TestPrepareKeepsSmallImages(t *testing.T) {
	data := encode(t, 40, 20, imaging.PNG)
	out, err := Prepare(data, ".png", Options{MaxWidth: 100})
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if !bytes.Equal(out, data) {
		t.Error("small image should be stored unchanged")
	}
}

func TestPrepareDownscales(t *testing.T) {
	data := encode(t, 400, 200, imaging.JPEG)
	out, err := Prepare(data, ".jpg", Options{MaxWidth: 100, JPEGQuality: 80})
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	img, err := imaging.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if img.Bounds().Dx() != 100 || img.Bounds().Dy() != 50 {
		t.Errorf("size = %v, want 100x50", img.Bounds().Size())
	}
}

func TestPrepareRejects(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		ext  string
	}{
		{"garbage image", []byte("not an image"), ".jpg"},
		{"fake pdf", []byte("hello"), ".pdf"},
		{"unknown ext", []byte("x"), ".gif2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Prepare(tt.data, tt.ext, DefaultOptions)
			var ve *model.ValidationError
			if !errors.As(err, &ve) {
				t.Errorf("expected ValidationError, got %v", err)
			}
		})
	}
}

func TestPreparePDF(t *testing.T) {
	data := []byte("%PDF-1.4\n%fake\n")
	out, err := Prepare(data, ".pdf", DefaultOptions)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if !bytes.Equal(out, data) {
		t.Error("PDF should pass through")
	}
}
