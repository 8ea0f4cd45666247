package database

import (
	"time"
)

// Person is a long-lived identity. Either signature may be absent.
type Person struct {
	ID                  int64
	FaceSignature       []float32 // nil until a face of this person has been seen
	AppearanceSignature []float32 // latest clothing histogram, overwritten on update
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// HasFace reports whether a face signature is stored.
func (p Person) HasFace() bool {
	return len(p.FaceSignature) > 0
}

// HasAppearance reports whether an appearance signature is stored.
func (p Person) HasAppearance() bool {
	return len(p.AppearanceSignature) > 0
}

// Image is one processed upload. Immutable after creation.
type Image struct {
	ID        int64
	Filename  string
	Caption   string
	Tags      []string // order preserved, never deduplicated here
	CreatedAt time.Time
}

// Source identifies the signal that produced a PersonImage link.
type Source string

// Link sources.
const (
	SourceFace       Source = "face"
	SourceAppearance Source = "appearance"
)

// PersonImage evidences that a person appears in an image. Confidence is 1 - distance
// for face links and the raw correlation for appearance links, so the two scales differ.
type PersonImage struct {
	ID         int64
	PersonID   int64
	ImageID    int64
	Confidence float64
	Source     Source
	CreatedAt  time.Time
}

// SignatureKind selects which signature a new person is seeded with.
type SignatureKind string

// Signature kinds.
const (
	SignatureFace       SignatureKind = "face"
	SignatureAppearance SignatureKind = "appearance"
)
