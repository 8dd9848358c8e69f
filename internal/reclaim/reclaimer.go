// Package reclaim removes the objects of tombstoned files from the object store.
//
// Commits never delete bytes: a replaced, deleted or superseded file keeps its object
// until the reclaimer, running on its own schedule with object-store credentials,
// deletes it and stamps purged_at.
package reclaim

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/commboard/service/internal/metrics"
)

// Candidate is a tombstoned file whose object may still exist.
type Candidate struct {
	ID         int64
	StorageKey string
}

// Store lists and marks reclaimable files.
type Store interface {
	ListReclaimable(ctx context.Context, cutoff time.Time, after int64, limit int) ([]Candidate, error)
	MarkPurged(ctx context.Context, id int64) error
}

// ObjectDeleter removes objects by key.
type ObjectDeleter interface {
	Delete(ctx context.Context, key string) error
}

// Options tunes a Reclaimer.
type Options struct {
	Interval  time.Duration
	Grace     time.Duration
	BatchSize int
}

// Result summarizes one pass.
type Result struct {
	Purged   int
	Failed   int
	Duration time.Duration
}

// Reclaimer periodically purges tombstoned objects.
type Reclaimer struct {
	store   Store
	objects ObjectDeleter
	opts    Options
	log     zerolog.Logger
	now     func() time.Time

	mu     sync.Mutex // one pass at a time
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a Reclaimer.
func New(store Store, objects ObjectDeleter, opts Options, log zerolog.Logger) *Reclaimer {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	return &Reclaimer{
		store:   store,
		objects: objects,
		opts:    opts,
		log:     log.With().Str("component", "reclaimer").Logger(),
		now:     time.Now,
	}
}

// Start runs a pass immediately and then every Interval until ctx ends or Stop is called.
func (r *Reclaimer) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})

	go r.run(runCtx)

	r.log.Info().
		Dur("interval", r.opts.Interval).
		Dur("grace", r.opts.Grace).
		Msg("reclaimer started")
}

// Stop ends the background loop and waits for an in-flight pass to finish.
func (r *Reclaimer) Stop() {
	if r.cancel == nil {
		return
	}
	r.cancel()
	<-r.done
	r.log.Info().Msg("reclaimer stopped")
}

func (r *Reclaimer) run(ctx context.Context) {
	defer close(r.done)

	r.RunOnce(ctx)

	ticker := time.NewTicker(r.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}

// RunOnce purges every file tombstoned longer than Grace ago. A failed object delete
// leaves the record unpurged so the next pass retries it.
func (r *Reclaimer) RunOnce(ctx context.Context) Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	cutoff := r.now().Add(-r.opts.Grace)
	var res Result
	var after int64

	for ctx.Err() == nil {
		batch, err := r.store.ListReclaimable(ctx, cutoff, after, r.opts.BatchSize)
		if err != nil {
			r.log.Error().Err(err).Msg("list reclaimable files")
			break
		}

		for _, c := range batch {
			after = c.ID
			if err := r.objects.Delete(ctx, c.StorageKey); err != nil {
				res.Failed++
				r.log.Warn().Err(err).Int64("file_id", c.ID).Str("key", c.StorageKey).Msg("delete object")
				continue
			}
			if err := r.store.MarkPurged(ctx, c.ID); err != nil {
				res.Failed++
				r.log.Warn().Err(err).Int64("file_id", c.ID).Msg("mark purged")
				continue
			}
			res.Purged++
		}

		if len(batch) < r.opts.BatchSize {
			break
		}
	}

	res.Duration = time.Since(start)
	metrics.RecordReclaim(res.Purged, res.Failed)

	r.log.Info().
		Int("purged", res.Purged).
		Int("failed", res.Failed).
		Dur("duration", res.Duration).
		Msg("reclaim pass finished")
	return res
}
