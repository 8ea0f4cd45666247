package resolver

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/kozaktomas/picscreenr/internal/constants"
	"github.com/kozaktomas/picscreenr/internal/database"
	"github.com/kozaktomas/picscreenr/internal/database/mock"
	"github.com/kozaktomas/picscreenr/internal/extract"
	"github.com/kozaktomas/picscreenr/internal/logging"
	"github.com/kozaktomas/picscreenr/internal/match"
)

func newTestResolver(reg database.Registry, mutate func(*Config)) *Resolver {
	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	return New(reg, cfg).WithLogger(logging.Discard())
}

func testImage() database.Image {
	return database.Image{Filename: "photo.jpg", Caption: "a person", Tags: []string{"a", "person"}}
}

type wantLink struct {
	personID   int64
	confidence float64
	source     database.Source
}

func assertLinks(t *testing.T, got []database.PersonImage, want []wantLink) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %d links, got %d: %+v", len(want), len(got), got)
	}
	for i, w := range want {
		if got[i].PersonID != w.personID {
			t.Errorf("link %d: expected person %d, got %d", i, w.personID, got[i].PersonID)
		}
		if got[i].Confidence != w.confidence {
			t.Errorf("link %d: expected confidence %v, got %v", i, w.confidence, got[i].Confidence)
		}
		if got[i].Source != w.source {
			t.Errorf("link %d: expected source %s, got %s", i, w.source, got[i].Source)
		}
	}
}

func TestResolve_EmptyRegistry(t *testing.T) {
	reg := mock.NewMockRegistry()
	r := newTestResolver(reg, nil)

	res, err := r.Resolve(context.Background(), testImage(), Features{
		Faces:      [][]float32{{0, 0}, {10, 10}},
		Appearance: []float32{1, 2, 3},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(res.Created) != 2 {
		t.Fatalf("expected 2 new persons, got %d", len(res.Created))
	}
	// The first face has nothing to compare against. The second is compared with the first.
	first, second := res.Created[0].ID, res.Created[1].ID
	assertLinks(t, res.Links, []wantLink{
		{first, constants.MinFaceConfidence, database.SourceFace},
		{second, 1 - math.Sqrt(200), database.SourceFace},
		{first, -1, database.SourceAppearance},
	})

	persons := reg.Persons()
	if len(persons) != 2 {
		t.Fatalf("expected 2 persons in registry, got %d", len(persons))
	}
	if !persons[0].HasAppearance() || persons[1].HasAppearance() {
		t.Errorf("expected only the first person to carry the appearance signature")
	}
	if images := reg.Images(); len(images) != 1 || images[0].ID != res.Image.ID {
		t.Errorf("expected the image to be stored once, got %+v", images)
	}
	if res.Attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", res.Attempts)
	}
}

func TestResolve_IdempotentFaceMatch(t *testing.T) {
	reg := mock.NewMockRegistry()
	known := reg.AddPerson(database.Person{FaceSignature: []float32{0.1, 0.2, 0.3}})
	r := newTestResolver(reg, nil)

	res, err := r.Resolve(context.Background(), testImage(), Features{
		Faces:      [][]float32{{0.1, 0.2, 0.3}},
		Appearance: []float32{1, 2, 3},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(res.Created) != 0 {
		t.Errorf("expected no new persons, got %d", len(res.Created))
	}
	assertLinks(t, res.Links, []wantLink{
		{known.ID, 1, database.SourceFace},
		{known.ID, -1, database.SourceAppearance},
	})
	if len(reg.Persons()) != 1 {
		t.Errorf("expected 1 person, got %d", len(reg.Persons()))
	}
}

func TestResolve_FaceToleranceBoundary(t *testing.T) {
	tests := []struct {
		name      string
		tolerance float64
		matched   bool
	}{
		{"distance equal to tolerance matches", 5, true},
		{"distance just above tolerance does not match", math.Nextafter(5, 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := mock.NewMockRegistry()
			known := reg.AddPerson(database.Person{FaceSignature: []float32{0, 0}})
			r := newTestResolver(reg, func(c *Config) { c.Tolerance = tt.tolerance })

			res, err := r.Resolve(context.Background(), testImage(), Features{
				Faces:      [][]float32{{3, 4}},
				Appearance: []float32{1, 2, 3},
			})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			face := res.Links[0]
			if tt.matched {
				if face.PersonID != known.ID || face.Confidence != -4 {
					t.Errorf("expected match to person %d at confidence -4, got %+v", known.ID, face)
				}
				if len(res.Created) != 0 {
					t.Errorf("expected no new persons, got %d", len(res.Created))
				}
			} else {
				if face.PersonID == known.ID {
					t.Errorf("expected a new person, got a match to %d", known.ID)
				}
				if face.Confidence != -4 {
					t.Errorf("expected new person linked at confidence -4, got %v", face.Confidence)
				}
				if len(res.Created) != 1 {
					t.Errorf("expected 1 new person, got %d", len(res.Created))
				}
			}
		})
	}
}

func TestResolve_UnmatchedFaceConfidence(t *testing.T) {
	tests := []struct {
		name  string
		known [][]float32
		face  []float32
		want  float64
	}{
		{"nearest known face beyond tolerance", [][]float32{{0, 0}}, []float32{0.8, 0}, 1 - float64(float32(0.8))},
		{"nearest of several", [][]float32{{3, 0}, {0, 2}}, []float32{0, 0}, -1},
		{"empty registry", nil, []float32{0.8, 0}, constants.MinFaceConfidence},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := mock.NewMockRegistry()
			for _, k := range tt.known {
				reg.AddPerson(database.Person{FaceSignature: k})
			}
			r := newTestResolver(reg, func(c *Config) { c.Tolerance = 0.5 })

			res, err := r.Resolve(context.Background(), testImage(), Features{
				Faces:      [][]float32{tt.face},
				Appearance: []float32{1, 2, 3},
			})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(res.Created) != 1 {
				t.Fatalf("expected 1 new person, got %d", len(res.Created))
			}
			face := res.Links[0]
			if face.PersonID != res.Created[0].ID {
				t.Errorf("expected link to the new person %d, got %d", res.Created[0].ID, face.PersonID)
			}
			if face.Confidence != tt.want {
				t.Errorf("expected confidence %v, got %v", tt.want, face.Confidence)
			}
			if math.IsInf(face.Confidence, 0) || math.IsNaN(face.Confidence) {
				t.Errorf("expected a finite confidence, got %v", face.Confidence)
			}
		})
	}
}

func TestFaceConfidence(t *testing.T) {
	tests := []struct {
		distance float64
		want     float64
	}{
		{0, 1},
		{0.25, 0.75},
		{2, -1},
		{math.Inf(1), constants.MinFaceConfidence},
	}

	for _, tt := range tests {
		if got := faceConfidence(tt.distance); got != tt.want {
			t.Errorf("faceConfidence(%v): expected %v, got %v", tt.distance, tt.want, got)
		}
	}
}

func TestResolve_AppearanceThresholdBoundary(t *testing.T) {
	tests := []struct {
		name      string
		threshold float64
		matched   bool
	}{
		{"score equal to threshold matches", 0.5, true},
		{"score just below threshold does not match", math.Nextafter(0.5, 1), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := mock.NewMockRegistry()
			known := reg.AddPerson(database.Person{AppearanceSignature: []float32{1, 3, 2}})
			r := newTestResolver(reg, func(c *Config) { c.Threshold = tt.threshold })

			res, err := r.Resolve(context.Background(), testImage(), Features{Appearance: []float32{1, 2, 3}})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if len(res.Links) != 1 || res.Links[0].Confidence != 0.5 {
				t.Fatalf("expected one link at 0.5, got %+v", res.Links)
			}
			if tt.matched {
				if res.Links[0].PersonID != known.ID {
					t.Errorf("expected link to person %d, got %d", known.ID, res.Links[0].PersonID)
				}
				if len(res.Created) != 0 {
					t.Errorf("expected no new persons, got %d", len(res.Created))
				}
			} else {
				if len(res.Created) != 1 || res.Links[0].PersonID != res.Created[0].ID {
					t.Errorf("expected link to a new faceless person, got %+v", res)
				}
			}
		})
	}
}

func TestResolve_AppearanceIndexTranslation(t *testing.T) {
	reg := mock.NewMockRegistry()
	reg.AddPerson(database.Person{AppearanceSignature: []float32{1, 2, 3, 4}})
	reg.AddPerson(database.Person{FaceSignature: []float32{9, 9}})
	third := reg.AddPerson(database.Person{AppearanceSignature: []float32{4, 1, 3, 2}})
	r := newTestResolver(reg, nil)

	res, err := r.Resolve(context.Background(), testImage(), Features{Appearance: []float32{4, 1, 3, 2}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The match is index 1 of the filtered list, which is the second person of the
	// full registry. The link must still go to the third person.
	assertLinks(t, res.Links, []wantLink{{third.ID, 1, database.SourceAppearance}})
	if len(res.Created) != 0 {
		t.Errorf("expected no new persons, got %d", len(res.Created))
	}
}

func TestResolve_FacelessAttribution(t *testing.T) {
	reg := mock.NewMockRegistry()
	reg.AddPerson(database.Person{AppearanceSignature: []float32{1, 3, 2}})
	r := newTestResolver(reg, func(c *Config) { c.Threshold = 0.6 })

	res, err := r.Resolve(context.Background(), testImage(), Features{Appearance: []float32{1, 2, 3}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(res.Created) != 1 {
		t.Fatalf("expected 1 new person, got %d", len(res.Created))
	}
	created := res.Created[0]
	if created.HasFace() || !created.HasAppearance() {
		t.Errorf("expected a person with only an appearance signature, got %+v", created)
	}
	assertLinks(t, res.Links, []wantLink{{created.ID, 0.5, database.SourceAppearance}})
}

func TestResolve_FaceThenAppearanceAttachment(t *testing.T) {
	reg := mock.NewMockRegistry()
	r := newTestResolver(reg, nil)

	res, err := r.Resolve(context.Background(), testImage(), Features{
		Faces:      [][]float32{{0.5, 0.5}},
		Appearance: []float32{1, 2, 3},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(res.Created) != 1 {
		t.Fatalf("expected 1 new person, got %d", len(res.Created))
	}
	id := res.Created[0].ID
	assertLinks(t, res.Links, []wantLink{
		{id, constants.MinFaceConfidence, database.SourceFace},
		{id, -1, database.SourceAppearance},
	})

	p, err := reg.GetPerson(context.Background(), id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !p.HasFace() || !p.HasAppearance() {
		t.Errorf("expected person with both signatures, got %+v", p)
	}
}

func TestResolve_AttachesToFirstSeenPerson(t *testing.T) {
	reg := mock.NewMockRegistry()
	known := reg.AddPerson(database.Person{FaceSignature: []float32{5, 5}})
	r := newTestResolver(reg, nil)

	res, err := r.Resolve(context.Background(), testImage(), Features{
		Faces:      [][]float32{{0, 0}, {5, 5}, {0, 0}},
		Appearance: []float32{1, 2, 3},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The repeated unseen face collapses onto the person created for its first occurrence.
	if len(res.Created) != 1 {
		t.Fatalf("expected 1 new person, got %d", len(res.Created))
	}
	newID := res.Created[0].ID
	assertLinks(t, res.Links, []wantLink{
		{newID, 1 - math.Sqrt(50), database.SourceFace},
		{known.ID, 1, database.SourceFace},
		{newID, 1, database.SourceFace},
		{newID, -1, database.SourceAppearance},
	})
}

func TestResolve_AppearanceUpdateOverwrites(t *testing.T) {
	reg := mock.NewMockRegistry()
	known := reg.AddPerson(database.Person{
		FaceSignature:       []float32{1, 1},
		AppearanceSignature: []float32{1, 2, 3},
	})
	r := newTestResolver(reg, nil)

	res, err := r.Resolve(context.Background(), testImage(), Features{
		Faces:      [][]float32{{1, 1}},
		Appearance: []float32{3, 2, 1},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertLinks(t, res.Links, []wantLink{
		{known.ID, 1, database.SourceFace},
		{known.ID, -1, database.SourceAppearance},
	})

	p, _ := reg.GetPerson(context.Background(), known.ID)
	if p.AppearanceSignature[0] != 3 {
		t.Errorf("expected latest appearance signature to replace the old one, got %v", p.AppearanceSignature)
	}
}

func TestResolve_FaceAndAppearanceMatchSamePerson(t *testing.T) {
	reg := mock.NewMockRegistry()
	known := reg.AddPerson(database.Person{
		FaceSignature:       []float32{1, 1},
		AppearanceSignature: []float32{1, 2, 3},
	})
	r := newTestResolver(reg, nil)

	res, err := r.Resolve(context.Background(), testImage(), Features{
		Faces:      [][]float32{{1, 1}},
		Appearance: []float32{1, 2, 3},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertLinks(t, res.Links, []wantLink{
		{known.ID, 1, database.SourceFace},
		{known.ID, 1, database.SourceAppearance},
	})
}

func TestResolve_ConcurrentIdenticalUnseenFace(t *testing.T) {
	reg := mock.NewMockRegistry()
	r := newTestResolver(reg, nil)
	features := Features{Faces: [][]float32{{0.2, 0.4}}, Appearance: []float32{1, 2, 3}}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range 2 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = r.Resolve(context.Background(), testImage(), features)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("resolution %d failed: %v", i, err)
		}
	}
	if n := len(reg.Persons()); n != 1 {
		t.Errorf("expected exactly 1 person, got %d", n)
	}
	if n := len(reg.Images()); n != 2 {
		t.Errorf("expected 2 images, got %d", n)
	}
}

func TestResolve_RetriesOnConflict(t *testing.T) {
	reg := mock.NewMockRegistry()
	reg.ConflictsBeforeCommit = 2
	r := newTestResolver(reg, nil)

	res, err := r.Resolve(context.Background(), testImage(), Features{
		Faces:      [][]float32{{1, 2}},
		Appearance: []float32{1, 2, 3},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", res.Attempts)
	}
	if reg.Attempts != 3 {
		t.Errorf("expected 3 transactions, got %d", reg.Attempts)
	}
	if len(reg.Persons()) != 1 || len(reg.Images()) != 1 || len(reg.Links()) != 2 {
		t.Errorf("expected only the committed attempt to persist, got %d persons, %d images, %d links",
			len(reg.Persons()), len(reg.Images()), len(reg.Links()))
	}
}

func TestResolve_ConflictRetriesExhausted(t *testing.T) {
	reg := mock.NewMockRegistry()
	reg.ConflictsBeforeCommit = 10
	r := newTestResolver(reg, func(c *Config) { c.MaxAttempts = 3 })

	_, err := r.Resolve(context.Background(), testImage(), Features{Appearance: []float32{1, 2, 3}})
	if !errors.Is(err, database.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if reg.Attempts != 3 {
		t.Errorf("expected 3 transactions, got %d", reg.Attempts)
	}
	if len(reg.Persons()) != 0 || len(reg.Images()) != 0 {
		t.Errorf("expected nothing persisted")
	}
}

func TestResolve_AtomicOnRegistryError(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name   string
		inject func(*mock.MockRegistry)
	}{
		{"create image", func(m *mock.MockRegistry) { m.CreateImageError = boom }},
		{"create person", func(m *mock.MockRegistry) { m.CreatePersonError = boom }},
		{"create link", func(m *mock.MockRegistry) { m.CreateLinkError = boom }},
		{"update appearance", func(m *mock.MockRegistry) { m.UpdateAppearanceError = boom }},
		{"list faces", func(m *mock.MockRegistry) { m.ListFaceError = boom }},
		{"list appearances", func(m *mock.MockRegistry) { m.ListAppearanceError = boom }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := mock.NewMockRegistry()
			tt.inject(reg)
			r := newTestResolver(reg, nil)

			_, err := r.Resolve(context.Background(), testImage(), Features{
				Faces:      [][]float32{{1, 2}},
				Appearance: []float32{1, 2, 3},
			})
			if !errors.Is(err, boom) {
				t.Fatalf("expected boom, got %v", err)
			}
			if reg.Attempts != 1 {
				t.Errorf("expected no retry, got %d attempts", reg.Attempts)
			}
			if len(reg.Persons()) != 0 || len(reg.Images()) != 0 || len(reg.Links()) != 0 {
				t.Errorf("expected nothing persisted")
			}
		})
	}
}

func TestResolve_DimensionMismatch(t *testing.T) {
	reg := mock.NewMockRegistry()
	reg.AddPerson(database.Person{FaceSignature: []float32{1, 2, 3}})
	r := newTestResolver(reg, nil)

	_, err := r.Resolve(context.Background(), testImage(), Features{
		Faces:      [][]float32{{1, 2}},
		Appearance: []float32{1, 2, 3},
	})
	if !errors.Is(err, match.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
	if len(reg.Persons()) != 1 || len(reg.Images()) != 0 {
		t.Errorf("expected registry to be unchanged")
	}
}

func TestResolve_MissingAppearance(t *testing.T) {
	reg := mock.NewMockRegistry()
	r := newTestResolver(reg, nil)

	_, err := r.Resolve(context.Background(), testImage(), Features{Faces: [][]float32{{1, 2}}})
	var extErr *extract.ExtractionError
	if !errors.As(err, &extErr) {
		t.Fatalf("expected ExtractionError, got %v", err)
	}
	if reg.Attempts != 0 {
		t.Errorf("expected no transaction, got %d", reg.Attempts)
	}
}

func TestResolve_IndexMappingGuard(t *testing.T) {
	reg := mock.NewMockRegistry()
	reg.AddPerson(database.Person{AppearanceSignature: []float32{1, 2, 3}})
	r := newTestResolver(reg, func(c *Config) {
		c.Matchers.Appearance = func(known [][]float32, candidate []float32, cutoff float64) (match.Result, error) {
			return match.Result{Index: len(known), Score: 1}, nil
		}
	})

	_, err := r.Resolve(context.Background(), testImage(), Features{Appearance: []float32{1, 2, 3}})
	if !errors.Is(err, ErrIndexMapping) {
		t.Fatalf("expected ErrIndexMapping, got %v", err)
	}
	if len(reg.Links()) != 0 || len(reg.Images()) != 0 {
		t.Errorf("expected nothing persisted")
	}
}

func TestCandidates_At(t *testing.T) {
	c := appearanceCandidates([]database.Person{
		{ID: 10, AppearanceSignature: []float32{1}},
		{ID: 11},
		{ID: 12, AppearanceSignature: []float32{2}},
	})

	if len(c) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(c))
	}
	p, err := c.At(1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ID != 12 {
		t.Errorf("expected person 12, got %d", p.ID)
	}
	for _, i := range []int{-1, 2} {
		if _, err := c.At(i); !errors.Is(err, ErrIndexMapping) {
			t.Errorf("index %d: expected ErrIndexMapping, got %v", i, err)
		}
	}
}

func TestNew_Defaults(t *testing.T) {
	r := New(mock.NewMockRegistry(), Config{})
	if r.cfg.MaxAttempts != 3 {
		t.Errorf("expected 3 attempts, got %d", r.cfg.MaxAttempts)
	}
	if r.cfg.Matchers.Face == nil || r.cfg.Matchers.Appearance == nil {
		t.Error("expected default matchers")
	}
}
