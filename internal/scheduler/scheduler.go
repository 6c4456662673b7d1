// Package scheduler runs periodic background jobs such as follow-up
// processing and reply detection.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Job is a unit of periodic work. Run must honour ctx cancellation.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

type Scheduler struct {
	jobs   []Job
	logger *zap.Logger
}

func New(logger *zap.Logger, jobs ...Job) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{jobs: jobs, logger: logger}
}

// Run starts every job on its own ticker and blocks until ctx is done.
// The first run of each job happens one interval after start.
// A tick that arrives while the previous run is still going is skipped.
func (s *Scheduler) Run(ctx context.Context) error {
	for _, job := range s.jobs {
		if job.Interval <= 0 {
			return fmt.Errorf("job %q: interval must be positive", job.Name)
		}
		if job.Run == nil {
			return fmt.Errorf("job %q: run func is required", job.Name)
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, job := range s.jobs {
		g.Go(func() error {
			s.loop(ctx, job)
			return nil
		})
	}

	err := g.Wait()
	if errors.Is(ctx.Err(), context.Canceled) {
		return nil
	}
	return err
}

func (s *Scheduler) loop(ctx context.Context, job Job) {
	log := s.logger.With(zap.String("job", job.Name), zap.Duration("interval", job.Interval))
	log.Info("job scheduled")

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	var (
		busy     atomic.Bool
		inflight sync.WaitGroup
	)
	for {
		select {
		case <-ctx.Done():
			inflight.Wait()
			log.Info("job stopped")
			return
		case <-ticker.C:
			if !busy.CompareAndSwap(false, true) {
				log.Warn("previous run still in progress, skipping tick")
				continue
			}
			inflight.Add(1)
			go func() {
				defer inflight.Done()
				defer busy.Store(false)
				s.runOnce(ctx, job, log)
			}()
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, job Job, log *zap.Logger) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			log.Error("job panicked", zap.Any("panic", r))
		}
	}()

	if err := job.Run(ctx); err != nil {
		log.Error("job failed", zap.Error(err), zap.Duration("took", time.Since(start)))
		return
	}
	log.Debug("job finished", zap.Duration("took", time.Since(start)))
}
