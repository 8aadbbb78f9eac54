package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/imgshare/apiserver/types"
)

// ImageRepository handles persistence for image metadata.
type ImageRepository struct {
	db *sql.DB
}

func NewImageRepository(db *sql.DB) *ImageRepository {
	return &ImageRepository{db: db}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// List returns images in creation order. A non-empty nameFilter keeps only
// images whose name contains it, ignoring case.
func (r *ImageRepository) List(ctx context.Context, nameFilter string) ([]types.Image, error) {
	const baseQuery = `
		SELECT id, src, name, author_username, created_at, updated_at
		FROM images`
	const order = `
		ORDER BY created_at, id`

	var (
		rows *sql.Rows
		err  error
	)
	if nameFilter == "" {
		rows, err = r.db.QueryContext(ctx, baseQuery+order)
	} else {
		pattern := "%" + likeEscaper.Replace(nameFilter) + "%"
		rows, err = r.db.QueryContext(ctx, baseQuery+`
		WHERE name ILIKE $1`+order, pattern)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	images := make([]types.Image, 0)
	for rows.Next() {
		var image types.Image
		if err := rows.Scan(
			&image.ID,
			&image.Src,
			&image.Name,
			&image.AuthorUsername,
			&image.CreatedAt,
			&image.UpdatedAt,
		); err != nil {
			return nil, err
		}
		images = append(images, image)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return images, nil
}

// Get loads one image. An id that is not a UUID is reported as ErrNotFound.
func (r *ImageRepository) Get(ctx context.Context, id string) (types.Image, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return types.Image{}, ErrNotFound
	}

	const query = `
		SELECT id, src, name, author_username, created_at, updated_at
		FROM images
		WHERE id = $1`
	var image types.Image
	err = r.db.QueryRowContext(ctx, query, parsed.String()).Scan(
		&image.ID,
		&image.Src,
		&image.Name,
		&image.AuthorUsername,
		&image.CreatedAt,
		&image.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Image{}, ErrNotFound
		}
		return types.Image{}, err
	}
	return image, nil
}

// Create inserts an image under a freshly generated id.
func (r *ImageRepository) Create(ctx context.Context, image types.Image) (types.Image, error) {
	now := time.Now()
	image.ID = uuid.NewString()
	image.CreatedAt = now
	image.UpdatedAt = now

	const query = `
		INSERT INTO images (id, src, name, author_username, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		image.ID,
		image.Src,
		image.Name,
		image.AuthorUsername,
		image.CreatedAt,
		image.UpdatedAt,
	); err != nil {
		return types.Image{}, err
	}
	return image, nil
}

// UpdateName sets the name of one image and reports how many rows matched.
func (r *ImageRepository) UpdateName(ctx context.Context, id, name string) (int64, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return 0, nil
	}

	const query = `
		UPDATE images
		SET name = $1,
			updated_at = $2
		WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, name, time.Now(), parsed.String())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
