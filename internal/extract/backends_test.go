package extract

import (
	"testing"

	"github.com/kozaktomas/picscreenr/internal/config"
)

func TestNewFaceExtractor(t *testing.T) {
	fe, err := NewFaceExtractor(config.ExtractorConfig{Face: "http", EmbeddingURL: "http://embed:8000"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	client, ok := fe.(*FaceClient)
	if !ok {
		t.Fatalf("expected *FaceClient, got %T", fe)
	}
	if client.baseURL != "http://embed:8000" {
		t.Errorf("expected base URL http://embed:8000, got %s", client.baseURL)
	}

	if _, err := NewFaceExtractor(config.ExtractorConfig{Face: "magic"}); err == nil {
		t.Error("expected error for unknown face extractor")
	}
}

func TestNewAppearanceExtractor(t *testing.T) {
	ae, err := NewAppearanceExtractor(config.ExtractorConfig{Histogram: "native"}, 16)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h, ok := ae.(*Histogram)
	if !ok {
		t.Fatalf("expected *Histogram, got %T", ae)
	}
	if h.Bins() != 16 {
		t.Errorf("expected 16 bins, got %d", h.Bins())
	}

	if _, err := NewAppearanceExtractor(config.ExtractorConfig{Histogram: "magic"}, 16); err == nil {
		t.Error("expected error for unknown histogram backend")
	}
}
