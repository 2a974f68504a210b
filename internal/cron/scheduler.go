package cron

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/exclusivemerch/store-backend/pkg/logger"
	"github.com/exclusivemerch/store-backend/pkg/metrics"
)

const defaultInterval = 5 * time.Minute

// SchedulerParams configure the cron scheduler.
type SchedulerParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  *metrics.CronJobMetrics
	Interval time.Duration
}

// Scheduler sweeps every registered job once per interval. A sweep only runs
// while this replica holds the shared lock, and each job gets at most one
// interval to finish.
type Scheduler struct {
	logg     *logger.Logger
	registry *Registry
	lock     Lock
	metrics  *metrics.CronJobMetrics
	interval time.Duration
}

func NewScheduler(params SchedulerParams) (*Scheduler, error) {
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	if params.Lock == nil {
		return nil, errors.New("lock required")
	}
	s := &Scheduler{
		logg:     params.Logger,
		registry: params.Registry,
		lock:     params.Lock,
		metrics:  params.Metrics,
		interval: params.Interval,
	}
	if s.registry == nil {
		s.registry = NewRegistry()
	}
	if s.interval <= 0 {
		s.interval = defaultInterval
	}
	return s, nil
}

// Run sweeps right away and then on every tick until ctx ends.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		s.sweep(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) sweep(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	held, err := s.lock.Acquire(ctx)
	if err != nil {
		s.logg.Error(ctx, "cron lock acquire failed", err)
		return
	}
	if !held {
		s.logg.Debug(ctx, "cron lock held elsewhere, sweep skipped")
		for _, job := range s.registry.Jobs() {
			s.metrics.IncLockSkipped(job.Name())
		}
		return
	}
	defer func() {
		// Release even when shutdown canceled ctx so the next replica is not
		// blocked until the lock TTL runs out.
		if err := s.lock.Release(context.WithoutCancel(ctx)); err != nil {
			s.logg.Error(ctx, "cron lock release failed", err)
		}
	}()

	for _, job := range s.registry.Jobs() {
		if ctx.Err() != nil {
			return
		}
		s.runJob(ctx, job)
	}
}

func (s *Scheduler) runJob(ctx context.Context, job Job) {
	name := job.Name()
	jobCtx, cancel := context.WithTimeout(s.logg.WithField(ctx, "job", name), s.interval)
	defer cancel()

	start := time.Now()
	affected, err := safeRun(jobCtx, job)
	elapsed := time.Since(start)

	s.metrics.ObserveDuration(name, elapsed)
	s.metrics.AddAffected(name, affected)
	jobCtx = s.logg.WithFields(jobCtx, map[string]any{
		"duration_ms":   elapsed.Milliseconds(),
		"rows_affected": affected,
	})
	if err != nil {
		s.metrics.IncFailure(name)
		s.logg.Error(jobCtx, "cron job failed", err)
		return
	}
	s.metrics.IncSuccess(name)
	if affected > 0 {
		s.logg.Info(jobCtx, "cron job completed")
	}
}

// safeRun turns a panicking job into an error so one bad job cannot take the
// worker down.
func safeRun(ctx context.Context, job Job) (affected int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	return job.Run(ctx)
}
