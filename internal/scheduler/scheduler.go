// Package scheduler polls the record store for pending datasets and
// dispatches one training run per record. Poll failures are logged and
// retried on the next tick; a record is never trained twice concurrently.
package scheduler

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"patch-trainer/internal/store"
)

// Lister is the slice of the record store the scheduler polls.
type Lister interface {
	PendingRecords(ctx context.Context, limit int) ([]store.Record, error)
}

// RunFunc executes one training run for a record.
type RunFunc func(ctx context.Context, recordID string) error

// Scheduler drives the poll/dispatch loop.
type Scheduler struct {
	Store    Lister
	Run      RunFunc
	Interval time.Duration
	Batch    int // max pending records fetched per poll
	Parallel int // max concurrent runs
	Log      *log.Logger

	mu       sync.Mutex
	inflight map[string]struct{}
}

// Start polls until ctx is canceled, then waits for in-flight runs to
// finish. Run errors are logged, not propagated: a failed record has
// already been marked failed by the runner and must not stop the loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.inflight = make(map[string]struct{})

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(s.Parallel)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.poll(gctx, group)
	for {
		select {
		case <-ctx.Done():
			return group.Wait()
		case <-ticker.C:
			s.poll(gctx, group)
		}
	}
}

func (s *Scheduler) poll(ctx context.Context, group *errgroup.Group) {
	records, err := s.Store.PendingRecords(ctx, s.Batch)
	if err != nil {
		s.Log.WithError(err).Warn("poll failed, will retry")
		return
	}
	if len(records) == 0 {
		s.Log.Debug("no pending datasets")
		return
	}

	for _, rec := range records {
		id := rec.ID
		if !s.claim(id) {
			continue
		}
		started := group.TryGo(func() error {
			defer s.release(id)
			if err := s.Run(ctx, id); err != nil {
				s.Log.WithField("record", id).WithError(err).Error("run failed")
			}
			return nil
		})
		if !started {
			// All run slots busy; the record stays pending and the next
			// poll picks it up again.
			s.release(id)
		}
	}
}

// claim marks a record in-flight; it returns false if the record is
// already being trained.
func (s *Scheduler) claim(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[id]; busy {
		return false
	}
	s.inflight[id] = struct{}{}
	return true
}

func (s *Scheduler) release(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, id)
}
