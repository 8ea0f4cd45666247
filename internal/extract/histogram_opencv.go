//go:build opencv

package extract

import (
	"context"
	"fmt"

	"gocv.io/x/gocv"
)

// OpenCVHistogram computes the appearance histogram with OpenCV's calcHist.
type OpenCVHistogram struct {
	bins int
}

// NewOpenCVHistogram creates an OpenCV backed histogram extractor.
func NewOpenCVHistogram(bins int) (*OpenCVHistogram, error) {
	if bins <= 0 {
		return nil, fmt.Errorf("histogram bins must be positive, got %d", bins)
	}
	return &OpenCVHistogram{bins: bins}, nil
}

func (h *OpenCVHistogram) ExtractAppearance(ctx context.Context, data []byte) ([]float32, error) {
	src, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return nil, failed(StageDecode, err)
	}
	defer src.Close()
	if src.Empty() {
		return nil, failed(StageDecode, fmt.Errorf("image has no pixels"))
	}

	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(src, &hsv, gocv.ColorBGRToHSV)

	mask := gocv.NewMat()
	defer mask.Close()
	hist := gocv.NewMat()
	defer hist.Close()

	gocv.CalcHist([]gocv.Mat{hsv}, []int{0, 1, 2}, mask, &hist,
		[]int{h.bins, h.bins, h.bins}, []float64{0, 180, 0, 256, 0, 256}, false)
	gocv.Normalize(hist, &hist, 1, 0, gocv.NormL2)

	n := h.bins * h.bins * h.bins
	ptr, err := hist.DataPtrFloat32()
	if err != nil {
		return nil, failed(StageAppearance, err)
	}
	if len(ptr) != n {
		return nil, failed(StageAppearance, fmt.Errorf("histogram has %d entries, expected %d", len(ptr), n))
	}
	out := make([]float32, n)
	copy(out, ptr)
	return out, nil
}
