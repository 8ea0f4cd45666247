// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kozaktomas/picscreenr/internal/database"
)

// MockRegistry is an in-memory implementation of database.Registry and database.ImageReader.
// Transactions run one at a time against a private copy of the state that is swapped in on commit.
type MockRegistry struct {
	mu    sync.RWMutex
	state state

	// Attempts counts WithinTx calls, including ones that ended in a conflict
	Attempts int
	// ConflictsBeforeCommit makes the next N transactions fail with database.ErrConflict
	// after fn succeeded, discarding their writes
	ConflictsBeforeCommit int

	// Error injection
	ListFaceError         error
	ListAppearanceError   error
	CreatePersonError     error
	UpdateAppearanceError error
	CreateLinkError       error
	CreateImageError      error
	GetImageError         error
	GetPersonError        error
	ListLinksError        error
	ListPersonsError      error
}

type state struct {
	persons    []database.Person
	images     []database.Image
	links      []database.PersonImage
	nextPerson int64
	nextImage  int64
	nextLink   int64
}

func (s state) clone() state {
	c := state{
		persons:    make([]database.Person, len(s.persons)),
		images:     make([]database.Image, len(s.images)),
		links:      append([]database.PersonImage(nil), s.links...),
		nextPerson: s.nextPerson,
		nextImage:  s.nextImage,
		nextLink:   s.nextLink,
	}
	for i, p := range s.persons {
		c.persons[i] = clonePerson(p)
	}
	for i, img := range s.images {
		img.Tags = append([]string(nil), img.Tags...)
		c.images[i] = img
	}
	return c
}

func clonePerson(p database.Person) database.Person {
	p.FaceSignature = database.CloneVector(p.FaceSignature)
	p.AppearanceSignature = database.CloneVector(p.AppearanceSignature)
	return p
}

// NewMockRegistry creates a new empty mock registry
func NewMockRegistry() *MockRegistry {
	return &MockRegistry{state: state{nextPerson: 1, nextImage: 1, nextLink: 1}}
}

// AddPerson stores a person outside any transaction and returns it with its assigned ID
func (m *MockRegistry) AddPerson(p database.Person) database.Person {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = m.state.nextPerson
	m.state.nextPerson++
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	m.state.persons = append(m.state.persons, clonePerson(p))
	return p
}

// Persons returns a copy of all committed persons
func (m *MockRegistry) Persons() []database.Person {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.clone().persons
}

// Images returns a copy of all committed images
func (m *MockRegistry) Images() []database.Image {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.clone().images
}

// Links returns a copy of all committed links
func (m *MockRegistry) Links() []database.PersonImage {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]database.PersonImage(nil), m.state.links...)
}

// WithinTx runs fn against a private copy of the state and commits it when fn succeeds
func (m *MockRegistry) WithinTx(ctx context.Context, fn func(ctx context.Context, tx database.RegistryTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Attempts++

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &mockTx{m: m, s: m.state.clone()}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	if m.ConflictsBeforeCommit > 0 {
		m.ConflictsBeforeCommit--
		return fmt.Errorf("commit: %w", database.ErrConflict)
	}

	m.state = tx.s
	return nil
}

// mockTx is a database.RegistryTx over a transaction-private state copy.
type mockTx struct {
	m *MockRegistry
	s state
}

func (t *mockTx) ListPersonsWithFaceSignature(ctx context.Context) ([]database.Person, error) {
	if t.m.ListFaceError != nil {
		return nil, t.m.ListFaceError
	}
	var out []database.Person
	for _, p := range t.s.persons {
		if p.HasFace() {
			out = append(out, clonePerson(p))
		}
	}
	return out, nil
}

func (t *mockTx) ListPersonsWithAppearanceSignature(ctx context.Context) ([]database.Person, error) {
	if t.m.ListAppearanceError != nil {
		return nil, t.m.ListAppearanceError
	}
	var out []database.Person
	for _, p := range t.s.persons {
		if p.HasAppearance() {
			out = append(out, clonePerson(p))
		}
	}
	return out, nil
}

func (t *mockTx) CreatePerson(ctx context.Context, kind database.SignatureKind, vec []float32) (*database.Person, error) {
	if t.m.CreatePersonError != nil {
		return nil, t.m.CreatePersonError
	}
	p := database.Person{ID: t.s.nextPerson, CreatedAt: time.Now()}
	p.UpdatedAt = p.CreatedAt
	switch kind {
	case database.SignatureFace:
		p.FaceSignature = database.CloneVector(vec)
	case database.SignatureAppearance:
		p.AppearanceSignature = database.CloneVector(vec)
	default:
		return nil, fmt.Errorf("create person: unknown signature kind %q", kind)
	}
	t.s.nextPerson++
	t.s.persons = append(t.s.persons, clonePerson(p))
	return &p, nil
}

func (t *mockTx) UpdateAppearance(ctx context.Context, personID int64, vec []float32) error {
	if t.m.UpdateAppearanceError != nil {
		return t.m.UpdateAppearanceError
	}
	for i := range t.s.persons {
		if t.s.persons[i].ID == personID {
			t.s.persons[i].AppearanceSignature = database.CloneVector(vec)
			t.s.persons[i].UpdatedAt = time.Now()
			return nil
		}
	}
	return fmt.Errorf("update appearance of person %d: %w", personID, database.ErrNotFound)
}

func (t *mockTx) CreateLink(ctx context.Context, link database.PersonImage) (*database.PersonImage, error) {
	if t.m.CreateLinkError != nil {
		return nil, t.m.CreateLinkError
	}
	if !t.hasPerson(link.PersonID) {
		return nil, fmt.Errorf("link person %d: %w", link.PersonID, database.ErrNotFound)
	}
	if !t.hasImage(link.ImageID) {
		return nil, fmt.Errorf("link image %d: %w", link.ImageID, database.ErrNotFound)
	}
	link.ID = t.s.nextLink
	link.CreatedAt = time.Now()
	t.s.nextLink++
	t.s.links = append(t.s.links, link)
	return &link, nil
}

func (t *mockTx) CreateImage(ctx context.Context, img database.Image) (*database.Image, error) {
	if t.m.CreateImageError != nil {
		return nil, t.m.CreateImageError
	}
	img.ID = t.s.nextImage
	img.CreatedAt = time.Now()
	img.Tags = append([]string{}, img.Tags...)
	t.s.nextImage++
	t.s.images = append(t.s.images, img)
	return &img, nil
}

func (t *mockTx) hasPerson(id int64) bool {
	for _, p := range t.s.persons {
		if p.ID == id {
			return true
		}
	}
	return false
}

func (t *mockTx) hasImage(id int64) bool {
	for _, img := range t.s.images {
		if img.ID == id {
			return true
		}
	}
	return false
}

// GetImage retrieves a committed image by ID
func (m *MockRegistry) GetImage(ctx context.Context, id int64) (*database.Image, error) {
	if m.GetImageError != nil {
		return nil, m.GetImageError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, img := range m.state.images {
		if img.ID == id {
			img.Tags = append([]string(nil), img.Tags...)
			return &img, nil
		}
	}
	return nil, fmt.Errorf("image %d: %w", id, database.ErrNotFound)
}

// ListLinksForImage returns the committed links of an image
func (m *MockRegistry) ListLinksForImage(ctx context.Context, imageID int64) ([]database.PersonImage, error) {
	if m.ListLinksError != nil {
		return nil, m.ListLinksError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []database.PersonImage
	for _, l := range m.state.links {
		if l.ImageID == imageID {
			out = append(out, l)
		}
	}
	return out, nil
}

// ListLinksForPerson returns the committed links of a person
func (m *MockRegistry) ListLinksForPerson(ctx context.Context, personID int64) ([]database.PersonImage, error) {
	if m.ListLinksError != nil {
		return nil, m.ListLinksError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []database.PersonImage
	for _, l := range m.state.links {
		if l.PersonID == personID {
			out = append(out, l)
		}
	}
	return out, nil
}

// GetPerson retrieves a committed person by ID
func (m *MockRegistry) GetPerson(ctx context.Context, id int64) (*database.Person, error) {
	if m.GetPersonError != nil {
		return nil, m.GetPersonError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.state.persons {
		if p.ID == id {
			c := clonePerson(p)
			return &c, nil
		}
	}
	return nil, fmt.Errorf("person %d: %w", id, database.ErrNotFound)
}

// ListPersons returns all committed persons ordered by ID
func (m *MockRegistry) ListPersons(ctx context.Context) ([]database.Person, error) {
	if m.ListPersonsError != nil {
		return nil, m.ListPersonsError
	}
	return m.Persons(), nil
}

// Compile-time interface checks
var (
	_ database.Registry    = (*MockRegistry)(nil)
	_ database.ImageReader = (*MockRegistry)(nil)
)
