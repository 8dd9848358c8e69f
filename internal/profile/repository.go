// Package profile manages the single profile-image slot of each user.
package profile

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/commboard/service/internal/attachment"
)

// Assignment is the result of filling the slot.
type Assignment struct {
	File *attachment.FileRecord
	// SupersededKey is the storage key of the image that was replaced, if any.
	SupersededKey string
}

// Repository persists profile images and the user's pointer to the current one.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new Repository with the given connection pool.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Assign makes rec the user's profile image in one transaction: the previous live image
// is tombstoned, rec is inserted and users.profile_image_file_id is repointed.
func (r *Repository) Assign(ctx context.Context, userID int64, rec *attachment.FileRecord) (*Assignment, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin assign: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := lockUser(ctx, tx, userID); err != nil {
		return nil, err
	}

	previous, err := tombstoneCurrent(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	created, err := attachment.InsertRecord(ctx, tx, rec)
	if err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx,
		`UPDATE users SET profile_image_file_id = $2, updated_at = NOW() WHERE id = $1`,
		userID, created.ID,
	); err != nil {
		return nil, fmt.Errorf("repoint profile image: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit assign: %w", err)
	}
	return &Assignment{File: created, SupersededKey: previous}, nil
}

// Clear empties the slot and returns the key of the removed image, or "" if there was none.
func (r *Repository) Clear(ctx context.Context, userID int64) (string, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin clear: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := lockUser(ctx, tx, userID); err != nil {
		return "", err
	}

	previous, err := tombstoneCurrent(ctx, tx, userID)
	if err != nil {
		return "", err
	}

	if _, err := tx.Exec(ctx,
		`UPDATE users SET profile_image_file_id = NULL, updated_at = NOW()
		 WHERE id = $1 AND profile_image_file_id IS NOT NULL`,
		userID,
	); err != nil {
		return "", fmt.Errorf("clear profile image pointer: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit clear: %w", err)
	}
	return previous, nil
}

// lockUser serializes slot changes of one user.
func lockUser(ctx context.Context, tx pgx.Tx, userID int64) error {
	var id int64
	err := tx.QueryRow(ctx,
		`SELECT id FROM users WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`, userID,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("user %d: %w", userID, attachment.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("lock user: %w", err)
	}
	return nil
}

func tombstoneCurrent(ctx context.Context, tx pgx.Tx, userID int64) (string, error) {
	var key string
	err := tx.QueryRow(ctx,
		`UPDATE files SET deleted_at = NOW()
		 WHERE user_id = $1 AND category = 'profile' AND deleted_at IS NULL
		 RETURNING storage_key`,
		userID,
	).Scan(&key)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("tombstone profile image: %w", err)
	}
	return key, nil
}
