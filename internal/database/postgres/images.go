package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kozaktomas/picscreenr/internal/database"
	"github.com/lib/pq"
)

// ImageRepository provides the PostgreSQL read side for images, links and persons
type ImageRepository struct {
	pool *Pool
}

// NewImageRepository creates a new PostgreSQL image repository
func NewImageRepository(pool *Pool) *ImageRepository {
	return &ImageRepository{pool: pool}
}

// GetImage retrieves an image by ID
func (r *ImageRepository) GetImage(ctx context.Context, id int64) (*database.Image, error) {
	var img database.Image
	err := r.pool.QueryRow(ctx,
		"SELECT id, filename, caption, tags, created_at FROM images WHERE id = $1", id,
	).Scan(&img.ID, &img.Filename, &img.Caption, pq.Array(&img.Tags), &img.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("image %d: %w", id, database.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get image: %w", err)
	}
	return &img, nil
}

// ListLinksForImage returns all person links for an image in creation order
func (r *ImageRepository) ListLinksForImage(ctx context.Context, imageID int64) ([]database.PersonImage, error) {
	return r.listLinks(ctx, "image_id", imageID)
}

// ListLinksForPerson returns all image links of a person in creation order
func (r *ImageRepository) ListLinksForPerson(ctx context.Context, personID int64) ([]database.PersonImage, error) {
	return r.listLinks(ctx, "person_id", personID)
}

func (r *ImageRepository) listLinks(ctx context.Context, column string, id int64) ([]database.PersonImage, error) {
	// column is one of two constants above, never user input.
	rows, err := r.pool.Query(ctx, `
		SELECT id, person_id, image_id, confidence, source, created_at
		FROM person_images
		WHERE `+column+` = $1
		ORDER BY id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query links: %w", err)
	}
	defer rows.Close()

	var links []database.PersonImage
	for rows.Next() {
		var l database.PersonImage
		var source string
		if err := rows.Scan(&l.ID, &l.PersonID, &l.ImageID, &l.Confidence, &source, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan link: %w", err)
		}
		l.Source = database.Source(source)
		links = append(links, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate links: %w", err)
	}
	return links, nil
}

// GetPerson retrieves a person by ID
func (r *ImageRepository) GetPerson(ctx context.Context, id int64) (*database.Person, error) {
	p, err := scanPerson(r.pool.QueryRow(ctx, "SELECT "+personColumns+" FROM persons WHERE id = $1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("person %d: %w", id, database.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get person: %w", err)
	}
	return &p, nil
}

// ListPersons returns every person ordered by ID
func (r *ImageRepository) ListPersons(ctx context.Context) ([]database.Person, error) {
	rows, err := r.pool.Query(ctx, "SELECT "+personColumns+" FROM persons ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("query persons: %w", err)
	}
	defer rows.Close()
	return scanPersons(rows)
}
