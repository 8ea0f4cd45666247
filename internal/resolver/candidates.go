package resolver

import (
	"fmt"

	"github.com/kozaktomas/picscreenr/internal/database"
)

// Candidate pairs a person with the signature the matcher sees for it.
type Candidate struct {
	Person database.Person
	Vector []float32
}

// Candidates is the filtered list an appearance match index refers to.
type Candidates []Candidate

func appearanceCandidates(persons []database.Person) Candidates {
	out := make(Candidates, 0, len(persons))
	for _, p := range persons {
		if !p.HasAppearance() {
			continue
		}
		out = append(out, Candidate{Person: p, Vector: p.AppearanceSignature})
	}
	return out
}

// Vectors returns the signatures in candidate order.
func (c Candidates) Vectors() [][]float32 {
	out := make([][]float32, len(c))
	for i, cand := range c {
		out[i] = cand.Vector
	}
	return out
}

// At returns the person behind match index i.
func (c Candidates) At(i int) (database.Person, error) {
	if i < 0 || i >= len(c) {
		return database.Person{}, fmt.Errorf("%w: index %d, %d candidates", ErrIndexMapping, i, len(c))
	}
	return c[i].Person, nil
}
