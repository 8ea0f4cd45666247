//go:build !opencv

package extract

import (
	"context"
	"errors"
)

var errNoOpenCV = errors.New("opencv histogram backend not available: rebuild with -tags opencv")

// OpenCVHistogram is unavailable in builds without the opencv tag.
type OpenCVHistogram struct{}

// NewOpenCVHistogram always fails in builds without the opencv tag.
func NewOpenCVHistogram(bins int) (*OpenCVHistogram, error) {
	return nil, errNoOpenCV
}

func (h *OpenCVHistogram) ExtractAppearance(ctx context.Context, data []byte) ([]float32, error) {
	return nil, failed(StageAppearance, errNoOpenCV)
}
