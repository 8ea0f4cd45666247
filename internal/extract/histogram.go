package extract

import (
	"context"
	"fmt"
	"image"
	"math"

	"github.com/kozaktomas/picscreenr/internal/constants"
	"golang.org/x/image/draw"
)

// Histogram computes an L2 normalised 3D HSV colour histogram with bins^3 entries,
// laid out hue-major: index = h*bins*bins + s*bins + v.
type Histogram struct {
	bins int
}

// NewHistogram creates a histogram extractor. A non-positive bin count uses the default.
func NewHistogram(bins int) (*Histogram, error) {
	if bins <= 0 {
		bins = constants.DefaultHistogramBins
	}
	if bins > 180 {
		return nil, fmt.Errorf("histogram bins must be at most 180, got %d", bins)
	}
	return &Histogram{bins: bins}, nil
}

// Bins returns the number of bins per channel.
func (h *Histogram) Bins() int {
	return h.bins
}

// ExtractAppearance decodes data and returns its histogram.
func (h *Histogram) ExtractAppearance(ctx context.Context, data []byte) ([]float32, error) {
	img, _, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return h.Compute(img)
}

// Compute returns the histogram of img.
func (h *Histogram) Compute(img image.Image) ([]float32, error) {
	b := img.Bounds()
	if b.Empty() {
		return nil, failed(StageAppearance, fmt.Errorf("image has no pixels"))
	}
	rgba := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)

	bins := h.bins
	counts := make([]float64, bins*bins*bins)
	for y := 0; y < rgba.Rect.Dy(); y++ {
		row := rgba.Pix[y*rgba.Stride : y*rgba.Stride+rgba.Rect.Dx()*4]
		for x := 0; x < len(row); x += 4 {
			hue, sat, val := rgbToHSV(int(row[x]), int(row[x+1]), int(row[x+2]))
			hb := hue * bins / 180
			sb := sat * bins / 256
			vb := val * bins / 256
			counts[hb*bins*bins+sb*bins+vb]++
		}
	}

	var sum float64
	for _, c := range counts {
		sum += c * c
	}
	norm := math.Sqrt(sum)

	out := make([]float32, len(counts))
	for i, c := range counts {
		out[i] = float32(c / norm)
	}
	return out, nil
}

// 8-bit RGB to HSV with H in [0,180) and S, V in [0,255], using the fixed point
// tables of OpenCV's COLOR_BGR2HSV so bins agree with histograms computed there.
const hsvShift = 12

var sdivTable, hdivTable [256]int

func init() {
	for i := 1; i < 256; i++ {
		sdivTable[i] = int(math.Round(float64(255<<hsvShift) / float64(i)))
		hdivTable[i] = int(math.Round(float64(180<<hsvShift) / (6 * float64(i))))
	}
}

func rgbToHSV(r, g, b int) (h, s, v int) {
	v = max(r, g, b)
	diff := v - min(r, g, b)

	s = (diff*sdivTable[v] + 1<<(hsvShift-1)) >> hsvShift

	switch {
	case diff == 0:
		h = 0
	case v == r:
		h = g - b
	case v == g:
		h = b - r + 2*diff
	default:
		h = r - g + 4*diff
	}
	h = (h*hdivTable[diff] + 1<<(hsvShift-1)) >> hsvShift
	if h < 0 {
		h += 180
	}
	return h, s, v
}
