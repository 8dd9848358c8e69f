// Package post resolves board posts for the attachment pipeline.
// Posts themselves are managed elsewhere; this package only reads their authors.
package post

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a post does not exist or was deleted.
var ErrNotFound = errors.New("post not found")

// Repository handles post lookups.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new Repository with the given connection pool.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// OwnerID returns the author of a live post.
func (r *Repository) OwnerID(ctx context.Context, postID int64) (int64, error) {
	var ownerID int64
	err := r.db.QueryRow(ctx,
		`SELECT user_id FROM posts WHERE id = $1 AND deleted_at IS NULL`,
		postID,
	).Scan(&ownerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("get post owner: %w", err)
	}
	return ownerID, nil
}
