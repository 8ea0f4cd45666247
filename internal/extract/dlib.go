//go:build dlib

package extract

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"sync"

	"github.com/Kagami/go-face"
)

// DlibExtractor detects faces locally with dlib through go-face.
type DlibExtractor struct {
	mu  sync.Mutex
	rec *face.Recognizer
}

// NewDlibExtractor loads the dlib models from modelsDir.
func NewDlibExtractor(modelsDir string) (*DlibExtractor, error) {
	rec, err := face.NewRecognizer(modelsDir)
	if err != nil {
		return nil, fmt.Errorf("load dlib models from %s: %w", modelsDir, err)
	}
	return &DlibExtractor{rec: rec}, nil
}

// ExtractFaces returns the 128-d descriptors of every detected face.
func (d *DlibExtractor) ExtractFaces(ctx context.Context, data []byte) ([][]float32, error) {
	jpg, err := asJPEG(data)
	if err != nil {
		return nil, err
	}

	// The recognizer is not safe for concurrent use.
	d.mu.Lock()
	faces, err := d.rec.Recognize(jpg)
	d.mu.Unlock()
	if err != nil {
		return nil, failed(StageFaces, err)
	}

	out := make([][]float32, len(faces))
	for i, f := range faces {
		vec := make([]float32, len(f.Descriptor))
		copy(vec, f.Descriptor[:])
		out[i] = vec
	}
	return out, nil
}

// Close releases the dlib models.
func (d *DlibExtractor) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.rec != nil {
		d.rec.Close()
		d.rec = nil
	}
	return nil
}

// go-face only reads JPEG.
func asJPEG(data []byte) ([]byte, error) {
	img, format, err := Decode(data)
	if err != nil {
		return nil, err
	}
	if format == "jpeg" {
		return data, nil
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}); err != nil {
		return nil, failed(StageFaces, fmt.Errorf("re-encode as jpeg: %w", err))
	}
	return buf.Bytes(), nil
}
