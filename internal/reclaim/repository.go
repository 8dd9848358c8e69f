package reclaim

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository finds tombstoned files whose objects still exist.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new Repository with the given connection pool.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// ListReclaimable returns up to limit unpurged records tombstoned before cutoff,
// with ids greater than after, in id order.
func (r *Repository) ListReclaimable(ctx context.Context, cutoff time.Time, after int64, limit int) ([]Candidate, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, storage_key FROM files
		 WHERE deleted_at IS NOT NULL AND purged_at IS NULL
		   AND deleted_at < $1 AND id > $2
		 ORDER BY id
		 LIMIT $3`,
		cutoff, after, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list reclaimable: %w", err)
	}
	defer rows.Close()

	var out []Candidate
	for rows.Next() {
		var c Candidate
		if err := rows.Scan(&c.ID, &c.StorageKey); err != nil {
			return nil, fmt.Errorf("scan reclaimable: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list reclaimable: %w", err)
	}
	return out, nil
}

// MarkPurged records that the object of a tombstoned file is gone.
func (r *Repository) MarkPurged(ctx context.Context, id int64) error {
	if _, err := r.db.Exec(ctx,
		`UPDATE files SET purged_at = NOW() WHERE id = $1 AND deleted_at IS NOT NULL AND purged_at IS NULL`, id,
	); err != nil {
		return fmt.Errorf("mark purged: %w", err)
	}
	return nil
}
