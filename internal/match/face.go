package match

import "math"

// EuclideanDistance returns the L2 distance between two vectors of equal length.
func EuclideanDistance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Face returns the known embedding closest to candidate. A distance equal to tolerance
// still counts as a match. With no known embeddings the result is NoMatch at +Inf.
func Face(known [][]float32, candidate []float32, tolerance float64) (Result, error) {
	if len(known) == 0 {
		return Result{Index: NoMatch, Score: math.Inf(1)}, nil
	}
	if err := checkDims(known, candidate); err != nil {
		return Result{Index: NoMatch, Score: math.Inf(1)}, err
	}

	best, bestDist := 0, math.Inf(1)
	for i, k := range known {
		// Strict comparison keeps the first of equally close entries.
		if d := EuclideanDistance(k, candidate); d < bestDist {
			best, bestDist = i, d
		}
	}

	if bestDist <= tolerance {
		return Result{Index: best, Score: bestDist}, nil
	}
	return Result{Index: NoMatch, Score: bestDist}, nil
}
