package database

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a registry transaction lost a race with a concurrent one.
	// The transaction was rolled back and can be retried from a fresh read.
	ErrConflict = errors.New("registry conflict")
)

// RegistryTx is the registry as seen from inside one resolution transaction.
// Nothing written through it is visible to others until the transaction commits.
type RegistryTx interface {
	// ListPersonsWithFaceSignature returns every person with a face signature, ordered by id
	ListPersonsWithFaceSignature(ctx context.Context) ([]Person, error)
	// ListPersonsWithAppearanceSignature returns every person with an appearance signature, ordered by id
	ListPersonsWithAppearanceSignature(ctx context.Context) ([]Person, error)
	// CreatePerson inserts a person seeded with one signature of the given kind
	CreatePerson(ctx context.Context, kind SignatureKind, vec []float32) (*Person, error)
	// UpdateAppearance overwrites the appearance signature of a person
	UpdateAppearance(ctx context.Context, personID int64, vec []float32) error
	// CreateLink inserts a person-image association
	CreateLink(ctx context.Context, link PersonImage) (*PersonImage, error)
	// CreateImage inserts the image record the links of this transaction refer to
	CreateImage(ctx context.Context, img Image) (*Image, error)
}

// Registry runs resolution transactions. Implementations serialize concurrent calls so two
// resolutions never act on the same snapshot, and return ErrConflict when they cannot.
type Registry interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx RegistryTx) error) error
}

// ImageReader provides the read-side queries used by the API and CLI.
type ImageReader interface {
	// GetImage returns ErrNotFound when the image does not exist
	GetImage(ctx context.Context, id int64) (*Image, error)
	// ListLinksForImage returns the links of an image in creation order
	ListLinksForImage(ctx context.Context, imageID int64) ([]PersonImage, error)
	// ListLinksForPerson returns the links of a person in creation order
	ListLinksForPerson(ctx context.Context, personID int64) ([]PersonImage, error)
	// GetPerson returns ErrNotFound when the person does not exist
	GetPerson(ctx context.Context, id int64) (*Person, error)
	// ListPersons returns all persons ordered by id
	ListPersons(ctx context.Context) ([]Person, error)
}
