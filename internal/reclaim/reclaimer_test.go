package reclaim

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tombstone struct {
	key       string
	deletedAt time.Time
	purged    bool
}

type memStore struct {
	mu    sync.Mutex
	files map[int64]*tombstone
	lists int
}

func (s *memStore) ListReclaimable(_ context.Context, cutoff time.Time, after int64, limit int) ([]Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists++
	var ids []int64
	for id, f := range s.files {
		if !f.purged && f.deletedAt.Before(cutoff) && id > after {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if len(ids) > limit {
		ids = ids[:limit]
	}
	out := make([]Candidate, 0, len(ids))
	for _, id := range ids {
		out = append(out, Candidate{ID: id, StorageKey: s.files[id].key})
	}
	return out, nil
}

func (s *memStore) MarkPurged(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[id].purged = true
	return nil
}

type bucket struct {
	mu      sync.Mutex
	deleted []string
	broken  map[string]bool
}

func (b *bucket) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.broken[key] {
		return errors.New("access denied")
	}
	b.deleted = append(b.deleted, key)
	return nil
}

func TestRunOnce(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := &memStore{files: map[int64]*tombstone{
		1: {key: "post-file/1/a.txt", deletedAt: now.Add(-48 * time.Hour)},
		2: {key: "post-file/1/b.txt", deletedAt: now.Add(-25 * time.Hour)},
		3: {key: "post-file/1/c.txt", deletedAt: now.Add(-time.Hour)}, // inside grace
		4: {key: "profile/9/d.png", deletedAt: now.Add(-72 * time.Hour)},
		5: {key: "post-file/2/e.txt", deletedAt: now.Add(-72 * time.Hour)},
	}}
	objects := &bucket{broken: map[string]bool{"profile/9/d.png": true}}

	r := New(store, objects, Options{Interval: time.Hour, Grace: 24 * time.Hour, BatchSize: 2}, zerolog.Nop())
	r.now = func() time.Time { return now }

	res := r.RunOnce(context.Background())
	assert.Equal(t, 3, res.Purged)
	assert.Equal(t, 1, res.Failed)
	assert.ElementsMatch(t, []string{"post-file/1/a.txt", "post-file/1/b.txt", "post-file/2/e.txt"}, objects.deleted)

	assert.True(t, store.files[1].purged)
	assert.False(t, store.files[3].purged)
	assert.False(t, store.files[4].purged, "failed delete stays for the next pass")

	// Second pass retries only the failure.
	objects.broken = nil
	res = r.RunOnce(context.Background())
	assert.Equal(t, 1, res.Purged)
	assert.Zero(t, res.Failed)
	assert.True(t, store.files[4].purged)
}

func TestRunOnce_Empty(t *testing.T) {
	store := &memStore{files: map[int64]*tombstone{}}
	r := New(store, &bucket{}, Options{Interval: time.Hour, BatchSize: 10}, zerolog.Nop())

	res := r.RunOnce(context.Background())
	assert.Zero(t, res.Purged)
	assert.Equal(t, 1, store.lists)
}

func TestStartStop(t *testing.T) {
	store := &memStore{files: map[int64]*tombstone{
		1: {key: "k", deletedAt: time.Now().Add(-time.Hour)},
	}}
	objects := &bucket{}
	r := New(store, objects, Options{Interval: 10 * time.Millisecond, BatchSize: 10}, zerolog.Nop())

	r.Start(context.Background())
	require.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return store.files[1].purged
	}, time.Second, 5*time.Millisecond)
	r.Stop()

	objects.mu.Lock()
	defer objects.mu.Unlock()
	assert.Equal(t, []string{"k"}, objects.deleted)
}
