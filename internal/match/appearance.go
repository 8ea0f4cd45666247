package match

import "math"

// dblEpsilon mirrors DBL_EPSILON, below which a correlation denominator is treated as zero.
const dblEpsilon = 2.220446049250313e-16

// Correlation computes the Pearson correlation of two histograms the way OpenCV's
// HISTCMP_CORREL does, including its convention of returning 1 for a zero-variance pair.
func Correlation(a, b []float32) float64 {
	n := len(a)
	if n == 0 {
		return 1
	}

	var s1, s2, s11, s22, s12 float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		s1 += x
		s2 += y
		s11 += x * x
		s22 += y * y
		s12 += x * y
	}

	scale := 1.0 / float64(n)
	num := s12 - s1*s2*scale
	denom := (s11 - s1*s1*scale) * (s22 - s2*s2*scale)
	if math.Abs(denom) <= dblEpsilon {
		return 1
	}
	return num / math.Sqrt(denom)
}

// Appearance returns the known histogram most correlated with candidate. A score equal to
// threshold still counts as a match. With no known histograms the result is NoMatch at -1;
// callers must check Index rather than Score to detect that case.
func Appearance(known [][]float32, candidate []float32, threshold float64) (Result, error) {
	if len(known) == 0 {
		return Result{Index: NoMatch, Score: -1}, nil
	}
	if err := checkDims(known, candidate); err != nil {
		return Result{Index: NoMatch, Score: -1}, err
	}

	best, bestScore := 0, math.Inf(-1)
	for i, k := range known {
		if s := Correlation(k, candidate); s > bestScore {
			best, bestScore = i, s
		}
	}

	if bestScore >= threshold {
		return Result{Index: best, Score: bestScore}, nil
	}
	return Result{Index: NoMatch, Score: bestScore}, nil
}
