// Package resolver decides which persons an image depicts and records the result in the registry.
//
// One call to Resolve is one registry transaction. Faces are resolved first, in detection order,
// then the clothing histogram is either matched against stored appearance signatures or attached
// to the first person seen in the image. A conflicting concurrent transaction causes the whole
// resolution to rerun from a fresh read.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/kozaktomas/picscreenr/internal/constants"
	"github.com/kozaktomas/picscreenr/internal/database"
	"github.com/kozaktomas/picscreenr/internal/extract"
	"github.com/kozaktomas/picscreenr/internal/logging"
	"github.com/kozaktomas/picscreenr/internal/match"
	"github.com/sirupsen/logrus"
)

// Features are the already extracted signatures of one image.
type Features struct {
	Faces      [][]float32 // detection order, possibly empty
	Appearance []float32   // exactly one clothing histogram
}

// Matchers holds the comparison functions used for each signal.
type Matchers struct {
	Face       match.Func
	Appearance match.Func
}

// Config controls matching cutoffs and the conflict retry bound.
type Config struct {
	Tolerance   float64 // maximum face distance that counts as a match
	Threshold   float64 // minimum appearance correlation that counts as a match
	MaxAttempts int
	Matchers    Matchers
}

// DefaultConfig returns the stock cutoffs with the euclidean and correlation matchers.
func DefaultConfig() Config {
	return Config{
		Tolerance:   constants.DefaultFaceTolerance,
		Threshold:   constants.DefaultAppearanceThreshold,
		MaxAttempts: constants.DefaultResolveAttempts,
		Matchers:    Matchers{Face: match.Face, Appearance: match.Appearance},
	}
}

// Resolution is the committed outcome of resolving one image.
type Resolution struct {
	Image    database.Image
	Links    []database.PersonImage // in creation order
	Created  []database.Person      // persons first seen in this image
	Attempts int
}

// Resolver resolves images against a registry.
type Resolver struct {
	registry database.Registry
	cfg      Config
	log      *logrus.Entry
}

// New creates a resolver. Missing matchers and a non-positive attempt bound fall back to defaults.
func New(registry database.Registry, cfg Config) *Resolver {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = constants.DefaultResolveAttempts
	}
	if cfg.Matchers.Face == nil {
		cfg.Matchers.Face = match.Face
	}
	if cfg.Matchers.Appearance == nil {
		cfg.Matchers.Appearance = match.Appearance
	}
	return &Resolver{
		registry: registry,
		cfg:      cfg,
		log:      logging.Component("resolver"),
	}
}

// WithLogger replaces the log entry, mainly so tests can silence output.
func (r *Resolver) WithLogger(entry *logrus.Entry) *Resolver {
	r.log = entry
	return r
}

// Resolve stores img and links it to the persons identified by features.
// Nothing is written unless the whole resolution commits.
func (r *Resolver) Resolve(ctx context.Context, img database.Image, features Features) (*Resolution, error) {
	if len(features.Appearance) == 0 {
		return nil, &extract.ExtractionError{Stage: "appearance", Err: errors.New("no appearance signature")}
	}

	log := r.log.WithFields(logrus.Fields{
		"resolution_id": uuid.NewString(),
		"filename":      img.Filename,
		"faces":         len(features.Faces),
	})

	var lastErr error
	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		var res *Resolution
		err := r.registry.WithinTx(ctx, func(ctx context.Context, tx database.RegistryTx) error {
			out, err := r.resolve(ctx, tx, img, features)
			if err != nil {
				return err
			}
			res = out
			return nil
		})
		if err == nil {
			res.Attempts = attempt
			log.WithFields(logrus.Fields{
				"image_id": res.Image.ID,
				"attempt":  attempt,
				"links":    len(res.Links),
				"created":  len(res.Created),
			}).Info("Image resolved")
			return res, nil
		}
		if !errors.Is(err, database.ErrConflict) {
			return nil, fmt.Errorf("resolve image: %w", err)
		}

		lastErr = err
		log.WithField("attempt", attempt).WithError(err).Warn("Registry conflict, retrying resolution")
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("resolve image: %w", ctxErr)
		}
	}

	return nil, fmt.Errorf("resolve image: gave up after %d attempts: %w", r.cfg.MaxAttempts, lastErr)
}

func (r *Resolver) resolve(ctx context.Context, tx database.RegistryTx, img database.Image, features Features) (*Resolution, error) {
	stored, err := tx.CreateImage(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("create image: %w", err)
	}
	res := &Resolution{Image: *stored}

	seen, err := r.resolveFaces(ctx, tx, res, features.Faces)
	if err != nil {
		return nil, err
	}
	if err := r.resolveAppearance(ctx, tx, res, seen, features.Appearance); err != nil {
		return nil, err
	}
	return res, nil
}

// resolveFaces links every detected face and returns the linked persons in first-seen order.
func (r *Resolver) resolveFaces(ctx context.Context, tx database.RegistryTx, res *Resolution, faces [][]float32) ([]database.Person, error) {
	if len(faces) == 0 {
		return nil, nil
	}

	facePersons, err := tx.ListPersonsWithFaceSignature(ctx)
	if err != nil {
		return nil, fmt.Errorf("list face persons: %w", err)
	}
	known := make([][]float32, len(facePersons))
	for i, p := range facePersons {
		known[i] = p.FaceSignature
	}

	var seen []database.Person
	seenIDs := make(map[int64]struct{})

	for i, embedding := range faces {
		m, err := r.cfg.Matchers.Face(known, embedding, r.cfg.Tolerance)
		if err != nil {
			return nil, fmt.Errorf("match face %d: %w", i, err)
		}

		var person database.Person
		if m.Matched() {
			person = facePersons[m.Index]
		} else {
			created, err := tx.CreatePerson(ctx, database.SignatureFace, embedding)
			if err != nil {
				return nil, fmt.Errorf("create face person: %w", err)
			}
			person = *created
			facePersons = append(facePersons, person)
			known = append(known, person.FaceSignature)
			res.Created = append(res.Created, person)
		}

		if err := r.link(ctx, tx, res, person.ID, faceConfidence(m.Score), database.SourceFace); err != nil {
			return nil, err
		}
		if _, ok := seenIDs[person.ID]; !ok {
			seenIDs[person.ID] = struct{}{}
			seen = append(seen, person)
		}
	}
	return seen, nil
}

// faceConfidence is 1 - distance, floored at MinFaceConfidence when nothing was compared.
func faceConfidence(distance float64) float64 {
	if math.IsInf(distance, 1) {
		return constants.MinFaceConfidence
	}
	return 1 - distance
}

func (r *Resolver) resolveAppearance(ctx context.Context, tx database.RegistryTx, res *Resolution, seen []database.Person, hist []float32) error {
	persons, err := tx.ListPersonsWithAppearanceSignature(ctx)
	if err != nil {
		return fmt.Errorf("list appearance persons: %w", err)
	}
	candidates := appearanceCandidates(persons)

	m, err := r.cfg.Matchers.Appearance(candidates.Vectors(), hist, r.cfg.Threshold)
	if err != nil {
		return fmt.Errorf("match appearance: %w", err)
	}

	if m.Matched() {
		person, err := candidates.At(m.Index)
		if err != nil {
			return err
		}
		return r.link(ctx, tx, res, person.ID, m.Score, database.SourceAppearance)
	}

	if len(seen) > 0 {
		first := seen[0]
		if err := tx.UpdateAppearance(ctx, first.ID, hist); err != nil {
			return fmt.Errorf("attach appearance: %w", err)
		}
		return r.link(ctx, tx, res, first.ID, m.Score, database.SourceAppearance)
	}

	created, err := tx.CreatePerson(ctx, database.SignatureAppearance, hist)
	if err != nil {
		return fmt.Errorf("create appearance person: %w", err)
	}
	res.Created = append(res.Created, *created)
	return r.link(ctx, tx, res, created.ID, m.Score, database.SourceAppearance)
}

func (r *Resolver) link(ctx context.Context, tx database.RegistryTx, res *Resolution, personID int64, confidence float64, source database.Source) error {
	link, err := tx.CreateLink(ctx, database.PersonImage{
		PersonID:   personID,
		ImageID:    res.Image.ID,
		Confidence: confidence,
		Source:     source,
	})
	if err != nil {
		return fmt.Errorf("create %s link: %w", source, err)
	}
	res.Links = append(res.Links, *link)
	return nil
}
