//go:build !dlib

package extract

import (
	"context"
	"errors"
)

var errNoDlib = errors.New("dlib face extractor not available: rebuild with -tags dlib")

// DlibExtractor is unavailable in builds without the dlib tag.
type DlibExtractor struct{}

// NewDlibExtractor always fails in builds without the dlib tag.
func NewDlibExtractor(modelsDir string) (*DlibExtractor, error) {
	return nil, errNoDlib
}

func (d *DlibExtractor) ExtractFaces(ctx context.Context, data []byte) ([][]float32, error) {
	return nil, failed(StageFaces, errNoDlib)
}

func (d *DlibExtractor) Close() error {
	return nil
}
