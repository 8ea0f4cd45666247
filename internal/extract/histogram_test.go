package extract

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"testing"
)

func TestRGBToHSV(t *testing.T) {
	tests := []struct {
		name    string
		r, g, b int
		h, s, v int
	}{
		{"black", 0, 0, 0, 0, 0, 0},
		{"white", 255, 255, 255, 0, 0, 255},
		{"gray", 128, 128, 128, 0, 0, 128},
		{"red", 255, 0, 0, 0, 255, 255},
		{"yellow", 255, 255, 0, 30, 255, 255},
		{"green", 0, 255, 0, 60, 255, 255},
		{"cyan", 0, 255, 255, 90, 255, 255},
		{"blue", 0, 0, 255, 120, 255, 255},
		{"magenta", 255, 0, 255, 150, 255, 255},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, s, v := rgbToHSV(tt.r, tt.g, tt.b)
			if h != tt.h || s != tt.s || v != tt.v {
				t.Errorf("expected (%d,%d,%d), got (%d,%d,%d)", tt.h, tt.s, tt.v, h, s, v)
			}
		})
	}
}

func solidPNG(t *testing.T, w, h int, fill func(x, y int) color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, fill(x, y))
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestHistogram_SolidColor(t *testing.T) {
	h, err := NewHistogram(32)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data := solidPNG(t, 4, 4, func(x, y int) color.Color { return color.RGBA{255, 0, 0, 255} })

	hist, err := h.ExtractAppearance(context.Background(), data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hist) != 32*32*32 {
		t.Fatalf("expected %d bins, got %d", 32*32*32, len(hist))
	}

	// hue 0, saturation 255 -> 31, value 255 -> 31
	want := 0*32*32 + 31*32 + 31
	for i, v := range hist {
		if i == want {
			if v != 1 {
				t.Errorf("expected bin %d to be 1, got %v", i, v)
			}
		} else if v != 0 {
			t.Fatalf("expected bin %d to be 0, got %v", i, v)
		}
	}
}

func TestHistogram_TwoColorsAreL2Normalised(t *testing.T) {
	h, _ := NewHistogram(32)
	data := solidPNG(t, 4, 2, func(x, y int) color.Color {
		if x < 2 {
			return color.RGBA{255, 0, 0, 255}
		}
		return color.RGBA{0, 0, 255, 255}
	})

	hist, err := h.ExtractAppearance(context.Background(), data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	red := 31*32 + 31
	blue := 21*32*32 + 31*32 + 31 // hue 120 -> bin 21
	want := float32(1 / math.Sqrt2)
	if math.Abs(float64(hist[red]-want)) > 1e-6 {
		t.Errorf("expected red bin %v, got %v", want, hist[red])
	}
	if math.Abs(float64(hist[blue]-want)) > 1e-6 {
		t.Errorf("expected blue bin %v, got %v", want, hist[blue])
	}

	var sum float64
	for _, v := range hist {
		sum += float64(v) * float64(v)
	}
	if math.Abs(sum-1) > 1e-6 {
		t.Errorf("expected unit L2 norm, got %v", sum)
	}
}

func TestHistogram_DefaultBins(t *testing.T) {
	h, err := NewHistogram(0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.Bins() != 32 {
		t.Errorf("expected 32 bins, got %d", h.Bins())
	}
	if _, err := NewHistogram(181); err == nil {
		t.Error("expected error for too many bins")
	}
}

func TestHistogram_CorruptImage(t *testing.T) {
	h, _ := NewHistogram(8)
	_, err := h.ExtractAppearance(context.Background(), []byte("not an image"))

	var extErr *ExtractionError
	if !errors.As(err, &extErr) {
		t.Fatalf("expected ExtractionError, got %v", err)
	}
	if extErr.Stage != StageDecode {
		t.Errorf("expected stage %q, got %q", StageDecode, extErr.Stage)
	}
}
