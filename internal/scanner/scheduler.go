package scanner

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sapliy/cart-recovery/pkg/observability"
)

// Scheduler drives the scanner on a fixed interval, with one immediate run at
// startup. A single instance is assumed; ticks never overlap because RunOnce
// guards itself.
type Scheduler struct {
	scanner  *Scanner
	interval time.Duration
	logger   *observability.Logger
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewScheduler(s *Scanner, interval time.Duration, logger *observability.Logger) *Scheduler {
	return &Scheduler{
		scanner:  s,
		interval: interval,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

// Start launches the scheduler loop in the background.
func (s *Scheduler) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.loop(ctx)
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	s.runTick(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runTick(ctx)
		}
	}
}

func (s *Scheduler) runTick(ctx context.Context) {
	summary, err := s.scanner.RunOnce(ctx)
	if err != nil {
		if errors.Is(err, ErrTickInProgress) {
			s.logger.Warn("skipping tick, previous one still running")
			return
		}
		s.logger.Error("tick failed", "error", err)
		return
	}
	s.logger.Info("scheduled tick finished",
		"processed", summary.Processed,
		"recorded", summary.Recorded,
	)
}

// Stop halts the loop and waits for an in-flight tick to finish.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
	s.wg.Wait()
}
