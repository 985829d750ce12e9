package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"OnionHarvester/internal/ports"
)

// Scheduler wires the recurring driver with the harvest cycle.
type Scheduler struct {
	driver    ports.Scheduler
	harvester *Harvester
	logger    *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring harvest cycles.
func NewScheduler(driver ports.Scheduler, harvester *Harvester, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{driver: driver, harvester: harvester, logger: logger.With("component", "scheduler")}
}

// Start registers the harvest cycle with the provided scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.harvester == nil {
		return nil
	}

	job := func(trigger time.Time) {
		s.logger.Debug("harvest cycle triggered", "at", trigger.Format(time.RFC3339))
		_, err := s.harvester.Cycle(ctx)
		switch {
		case err == nil, errors.Is(err, ErrCycleInProgress):
		case ctx.Err() != nil:
			s.logger.Info("harvest cycle interrupted")
		default:
			s.logger.Error("harvest cycle failed", "error", err)
		}
	}

	return s.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
