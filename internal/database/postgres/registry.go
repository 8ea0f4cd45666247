package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kozaktomas/picscreenr/internal/constants"
	"github.com/kozaktomas/picscreenr/internal/database"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

// SQLSTATE codes for which retrying the whole transaction is the correct recovery.
var conflictCodes = map[pq.ErrorCode]struct{}{
	"40001": {}, // serialization_failure
	"40P01": {}, // deadlock_detected
	"55P03": {}, // lock_not_available
}

// asConflict tags retryable PostgreSQL errors with database.ErrConflict.
func asConflict(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if _, ok := conflictCodes[pqErr.Code]; ok {
			return fmt.Errorf("%w: %w", database.ErrConflict, err)
		}
	}
	return err
}

// RegistryRepository provides PostgreSQL-backed resolution transactions
type RegistryRepository struct {
	pool    *Pool
	lockKey int64
}

// NewRegistryRepository creates a new PostgreSQL registry
func NewRegistryRepository(pool *Pool) *RegistryRepository {
	return &RegistryRepository{pool: pool, lockKey: constants.ResolutionLockKey}
}

// WithinTx runs fn in a transaction that holds the resolution advisory lock until it ends.
// Under READ COMMITTED each statement runs after the lock is granted, so fn observes every
// resolution committed before it and no resolution can interleave with it.
func (r *RegistryRepository) WithinTx(ctx context.Context, fn func(ctx context.Context, tx database.RegistryTx) error) error {
	tx, err := r.pool.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return asConflict(err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1)", r.lockKey); err != nil {
		return asConflict(fmt.Errorf("acquire resolution lock: %w", err))
	}

	if err := fn(ctx, &registryTx{tx: tx}); err != nil {
		return asConflict(err)
	}

	if err := tx.Commit(); err != nil {
		return asConflict(fmt.Errorf("commit resolution: %w", err))
	}
	return nil
}

// registryTx implements database.RegistryTx on an open transaction.
type registryTx struct {
	tx *sql.Tx
}

const personColumns = "id, face_signature, appearance_signature, created_at, updated_at"

func (t *registryTx) ListPersonsWithFaceSignature(ctx context.Context) ([]database.Person, error) {
	rows, err := t.tx.QueryContext(ctx,
		"SELECT "+personColumns+" FROM persons WHERE face_signature IS NOT NULL ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("query face persons: %w", err)
	}
	defer rows.Close()
	return scanPersons(rows)
}

func (t *registryTx) ListPersonsWithAppearanceSignature(ctx context.Context) ([]database.Person, error) {
	rows, err := t.tx.QueryContext(ctx,
		"SELECT "+personColumns+" FROM persons WHERE appearance_signature IS NOT NULL ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("query appearance persons: %w", err)
	}
	defer rows.Close()
	return scanPersons(rows)
}

func (t *registryTx) CreatePerson(ctx context.Context, kind database.SignatureKind, vec []float32) (*database.Person, error) {
	p := database.Person{}
	var query string
	var arg any

	switch kind {
	case database.SignatureFace:
		query = "INSERT INTO persons (face_signature) VALUES ($1) RETURNING id, created_at, updated_at"
		arg = pgvector.NewVector(vec)
		p.FaceSignature = database.CloneVector(vec)
	case database.SignatureAppearance:
		query = "INSERT INTO persons (appearance_signature) VALUES ($1) RETURNING id, created_at, updated_at"
		arg = database.EncodeVector(vec)
		p.AppearanceSignature = database.CloneVector(vec)
	default:
		return nil, fmt.Errorf("create person: unknown signature kind %q", kind)
	}

	if err := t.tx.QueryRowContext(ctx, query, arg).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, fmt.Errorf("insert person: %w", err)
	}
	return &p, nil
}

func (t *registryTx) UpdateAppearance(ctx context.Context, personID int64, vec []float32) error {
	result, err := t.tx.ExecContext(ctx,
		"UPDATE persons SET appearance_signature = $2, updated_at = NOW() WHERE id = $1",
		personID, database.EncodeVector(vec))
	if err != nil {
		return fmt.Errorf("update appearance: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("update appearance of person %d: %w", personID, database.ErrNotFound)
	}
	return nil
}

func (t *registryTx) CreateLink(ctx context.Context, link database.PersonImage) (*database.PersonImage, error) {
	err := t.tx.QueryRowContext(ctx, `
		INSERT INTO person_images (person_id, image_id, confidence, source)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, link.PersonID, link.ImageID, link.Confidence, string(link.Source)).Scan(&link.ID, &link.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert link: %w", err)
	}
	return &link, nil
}

func (t *registryTx) CreateImage(ctx context.Context, img database.Image) (*database.Image, error) {
	tags := img.Tags
	if tags == nil {
		tags = []string{}
	}
	err := t.tx.QueryRowContext(ctx, `
		INSERT INTO images (filename, caption, tags)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, img.Filename, img.Caption, pq.Array(tags)).Scan(&img.ID, &img.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert image: %w", err)
	}
	img.Tags = tags
	return &img, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanPerson(row rowScanner) (database.Person, error) {
	var (
		p          database.Person
		face       *pgvector.Vector
		appearance []byte
		createdAt  time.Time
		updatedAt  time.Time
	)
	if err := row.Scan(&p.ID, &face, &appearance, &createdAt, &updatedAt); err != nil {
		return p, err
	}
	if face != nil {
		p.FaceSignature = face.Slice()
	}
	vec, err := database.DecodeVector(appearance)
	if err != nil {
		return p, fmt.Errorf("person %d: %w", p.ID, err)
	}
	p.AppearanceSignature = vec
	p.CreatedAt = createdAt
	p.UpdatedAt = updatedAt
	return p, nil
}

func scanPersons(rows *sql.Rows) ([]database.Person, error) {
	var persons []database.Person
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		persons = append(persons, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate persons: %w", err)
	}
	return persons, nil
}
