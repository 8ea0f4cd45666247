// Package extract turns image bytes into the signatures the resolver compares: one embedding
// per detected face and one clothing colour histogram per image.
package extract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// Extraction stages reported by ExtractionError.
const (
	StageDecode     = "decode"
	StageFaces      = "faces"
	StageAppearance = "appearance"
)

// FaceExtractor returns one embedding per detected face, in detection order.
type FaceExtractor interface {
	ExtractFaces(ctx context.Context, data []byte) ([][]float32, error)
}

// AppearanceExtractor returns exactly one appearance signature per image.
type AppearanceExtractor interface {
	ExtractAppearance(ctx context.Context, data []byte) ([]float32, error)
}

// ExtractionError reports that an image could not be turned into signatures.
type ExtractionError struct {
	Stage string
	Err   error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.Stage, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// UnavailableError reports that a remote extractor could not be reached or failed on its side.
// The image itself may be fine.
type UnavailableError struct {
	Service string
	Err     error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Service, e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

func failed(stage string, err error) error {
	return &ExtractionError{Stage: stage, Err: err}
}

// Decode decodes JPEG, PNG, GIF, BMP or WebP data.
func Decode(data []byte) (image.Image, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", failed(StageDecode, err)
	}
	if img.Bounds().Empty() {
		return nil, "", failed(StageDecode, fmt.Errorf("image has no pixels"))
	}
	return img, format, nil
}
