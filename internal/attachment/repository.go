package attachment

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const fileColumns = `id, original_name, mime_type, size_bytes, storage_key, storage_url,
	category, post_id, user_id, uploader_id, created_at, deleted_at`

// Repository handles file metadata persistence.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new Repository with the given connection pool.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Create commits a new live record.
func (r *Repository) Create(ctx context.Context, rec *FileRecord) (*FileRecord, error) {
	return InsertRecord(ctx, r.db, rec)
}

// GetLive fetches a record that has not been tombstoned.
func (r *Repository) GetLive(ctx context.Context, id int64) (*FileRecord, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+fileColumns+` FROM files WHERE id = $1 AND deleted_at IS NULL`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("file %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}
	return rec, nil
}

// ListByPost returns the live files of a post, newest first.
func (r *Repository) ListByPost(ctx context.Context, postID int64) ([]FileRecord, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+fileColumns+` FROM files
		 WHERE post_id = $1 AND deleted_at IS NULL
		 ORDER BY created_at DESC, id DESC`, postID)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer rows.Close()

	var out []FileRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	return out, nil
}

// SoftDelete tombstones a live record.
func (r *Repository) SoftDelete(ctx context.Context, id int64) error {
	return TombstoneRecord(ctx, r.db, id)
}

// Swap atomically tombstones oldID and commits rec in its place.
// If oldID is no longer live nothing changes and ErrNotFound is returned.
func (r *Repository) Swap(ctx context.Context, oldID int64, rec *FileRecord) (*FileRecord, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin swap: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := TombstoneRecord(ctx, tx, oldID); err != nil {
		return nil, err
	}
	created, err := InsertRecord(ctx, tx, rec)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit swap: %w", err)
	}
	return created, nil
}

// InsertRecord inserts rec through db, which may be a transaction.
func InsertRecord(ctx context.Context, db DBTX, rec *FileRecord) (*FileRecord, error) {
	row := db.QueryRow(ctx,
		`INSERT INTO files (original_name, mime_type, size_bytes, storage_key, storage_url,
		                    category, post_id, user_id, uploader_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING `+fileColumns,
		rec.OriginalName, rec.MimeType, rec.SizeBytes, rec.StorageKey, rec.StorageURL,
		string(rec.Category), rec.PostID, rec.UserID, rec.UploaderID,
	)
	created, err := scanRecord(row)
	if err != nil {
		if isUniqueViolation(err, "files_storage_key_key") {
			return nil, fmt.Errorf("%w: %s", ErrKeyConflict, rec.StorageKey)
		}
		return nil, fmt.Errorf("insert file: %w", err)
	}
	return created, nil
}

// TombstoneRecord marks a live record deleted through db.
func TombstoneRecord(ctx context.Context, db DBTX, id int64) error {
	tag, err := db.Exec(ctx,
		`UPDATE files SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("tombstone file: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("file %d: %w", id, ErrNotFound)
	}
	return nil
}

func scanRecord(row pgx.Row) (*FileRecord, error) {
	rec := &FileRecord{}
	var category string
	err := row.Scan(
		&rec.ID, &rec.OriginalName, &rec.MimeType, &rec.SizeBytes, &rec.StorageKey, &rec.StorageURL,
		&category, &rec.PostID, &rec.UserID, &rec.UploaderID, &rec.CreatedAt, &rec.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.Category = Category(category)
	return rec, nil
}

// isUniqueViolation checks for a PostgreSQL unique_violation (23505), optionally on a named constraint.
func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}
