package monitor

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Default scheduling knobs.
const (
	DefaultTickInterval = 30 * time.Minute
	DefaultStartupDelay = time.Minute

	panicBackoffBase = 30 * time.Second
	panicBackoffMax  = 10 * time.Minute
)

// Evaluator runs one evaluation pass.
type Evaluator interface {
	EvaluateAll(ctx context.Context) (*Summary, error)
}

// Scheduler drives the engine on a fixed interval after a startup delay.
// Ticks never overlap: if a pass is still running when the next tick is due,
// that tick is skipped and logged. A panicking pass is recovered and further
// ticks are held back with exponential backoff instead of crashing the host.
type Scheduler struct {
	evaluator    Evaluator
	interval     time.Duration
	startupDelay time.Duration
	logger       *slog.Logger

	running atomic.Bool
	wg      sync.WaitGroup

	mu        sync.Mutex
	panics    int
	holdUntil time.Time
}

// NewScheduler creates a scheduler. Non-positive durations fall back to
// defaults.
func NewScheduler(evaluator Evaluator, interval, startupDelay time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	if startupDelay < 0 {
		startupDelay = DefaultStartupDelay
	}
	return &Scheduler{
		evaluator:    evaluator,
		interval:     interval,
		startupDelay: startupDelay,
		logger:       logger,
	}
}

// Run blocks until ctx is canceled. Cancellation stops new ticks and waits
// for an in-flight pass to finish, so a delivered alert is never left without
// its ledger record by shutdown alone.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("scheduler started",
		"interval", s.interval,
		"startup_delay", s.startupDelay,
	)

	select {
	case <-ctx.Done():
		return
	case <-time.After(s.startupDelay):
	}
	s.tick(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopping, draining in-flight pass")
			s.wg.Wait()
			s.logger.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	s.mu.Lock()
	hold := s.holdUntil
	s.mu.Unlock()
	if time.Now().Before(hold) {
		s.logger.Warn("tick held back after panic", "until", hold)
		return
	}

	if !s.running.CompareAndSwap(false, true) {
		s.logger.Warn("previous evaluation pass still running, skipping tick")
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.running.Store(false)
		defer func() {
			if r := recover(); r != nil {
				s.backOff(r)
			}
		}()

		// An in-flight pass runs to completion even if Run's context is
		// canceled mid-tick.
		tickCtx := context.WithoutCancel(ctx)
		if _, err := s.evaluator.EvaluateAll(tickCtx); err != nil {
			s.logger.Error("evaluation pass failed", "error", err)
			return
		}

		s.mu.Lock()
		s.panics = 0
		s.mu.Unlock()
	}()
}

func (s *Scheduler) backOff(cause any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.panics++
	backoff := panicBackoffBase << (s.panics - 1)
	if backoff > panicBackoffMax || backoff <= 0 {
		backoff = panicBackoffMax
	}
	s.holdUntil = time.Now().Add(backoff)

	s.logger.Error("evaluation pass panicked, backing off",
		"panic", cause,
		"consecutive", s.panics,
		"backoff", backoff,
	)
}
