// Package match implements the stateless similarity matchers used during identity resolution.
//
// Both matchers scan a caller-supplied candidate list linearly and return the index of the best
// candidate within that list. The index is only meaningful for the exact slice that was passed in.
package match

import (
	"errors"
	"fmt"
)

// NoMatch is the index reported when no candidate passed the cutoff.
const NoMatch = -1

// ErrDimensionMismatch is returned when the candidate and a known vector differ in length.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Result is the outcome of a best-match scan. Score is the best distance or correlation
// found, and is populated even when Index is NoMatch.
type Result struct {
	Index int
	Score float64
}

// Matched reports whether Index refers to a candidate.
func (r Result) Matched() bool {
	return r.Index >= 0
}

// Func is the signature shared by Face and Appearance so resolvers can swap matchers in tests.
type Func func(known [][]float32, candidate []float32, cutoff float64) (Result, error)

func checkDims(known [][]float32, candidate []float32) error {
	for i, k := range known {
		if len(k) != len(candidate) {
			return fmt.Errorf("%w: candidate has %d dims, known[%d] has %d",
				ErrDimensionMismatch, len(candidate), i, len(k))
		}
	}
	return nil
}
