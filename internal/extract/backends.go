package extract

import (
	"fmt"

	"github.com/kozaktomas/picscreenr/internal/config"
)

// NewFaceExtractor returns the face extractor selected by cfg.Face.
func NewFaceExtractor(cfg config.ExtractorConfig) (FaceExtractor, error) {
	switch cfg.Face {
	case "", "http":
		return NewFaceClient(cfg.EmbeddingURL), nil
	case "dlib":
		d, err := NewDlibExtractor(cfg.DlibModelsDir)
		if err != nil {
			return nil, err
		}
		return d, nil
	default:
		return nil, fmt.Errorf("unknown face extractor %q (expected http or dlib)", cfg.Face)
	}
}

// NewAppearanceExtractor returns the histogram backend selected by cfg.Histogram.
func NewAppearanceExtractor(cfg config.ExtractorConfig, bins int) (AppearanceExtractor, error) {
	switch cfg.Histogram {
	case "", "native":
		h, err := NewHistogram(bins)
		if err != nil {
			return nil, err
		}
		return h, nil
	case "opencv":
		h, err := NewOpenCVHistogram(bins)
		if err != nil {
			return nil, err
		}
		return h, nil
	default:
		return nil, fmt.Errorf("unknown histogram backend %q (expected native or opencv)", cfg.Histogram)
	}
}
