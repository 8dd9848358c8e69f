// Package dbtest starts a throwaway PostgreSQL for repository integration tests.
// Tests using it are skipped unless TEST_INTEGRATION is set.
package dbtest

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/commboard/service/internal/db"
)

var seq atomic.Int64

// New runs a migrated PostgreSQL container and returns a pool connected to it.
func New(t *testing.T) *pgxpool.Pool {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("skipping integration test: TEST_INTEGRATION is not set")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("board_test"),
		postgres.WithUsername("board"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate postgres container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("container connection string: %v", err)
	}

	log := zerolog.Nop()
	if err := db.Migrate(dsn, log); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	pool, err := db.Connect(ctx, dsn, log)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)

	return pool
}

// SeedUser inserts a user and returns its id.
func SeedUser(t *testing.T, pool *pgxpool.Pool) int64 {
	t.Helper()
	n := seq.Add(1)
	var id int64
	err := pool.QueryRow(context.Background(),
		`INSERT INTO users (email, nickname) VALUES ($1, $2) RETURNING id`,
		fmt.Sprintf("user%d@board.test", n), fmt.Sprintf("user%d", n),
	).Scan(&id)
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return id
}

// SeedPost inserts a post written by userID and returns its id.
func SeedPost(t *testing.T, pool *pgxpool.Pool, userID int64) int64 {
	t.Helper()
	var id int64
	err := pool.QueryRow(context.Background(),
		`INSERT INTO posts (user_id, title) VALUES ($1, 'test post') RETURNING id`, userID,
	).Scan(&id)
	if err != nil {
		t.Fatalf("seed post: %v", err)
	}
	return id
}
