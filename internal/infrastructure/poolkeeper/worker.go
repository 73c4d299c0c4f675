// Package poolkeeper keeps the address pool stocked and clean: each tick
// replenishes below-minimum inventory from the HD generator, releases lapsed
// cooldowns and recovers addresses stuck on terminal deposits.
package poolkeeper

import (
	"context"
	"log"
	"time"

	"depositgate/internal/application/dto"
	portsin "depositgate/internal/application/ports/in"
)

type Worker struct {
	enabled      bool
	tickInterval time.Duration
	minimumSize  int
	maxBatchSize int
	replenish    portsin.ReplenishPoolUseCase
	sweep        portsin.SweepPoolUseCase
	logger       *log.Logger
}

type Config struct {
	Enabled      bool
	TickInterval time.Duration
	MinimumSize  int
	MaxBatchSize int
}

func NewWorker(
	cfg Config,
	replenish portsin.ReplenishPoolUseCase,
	sweep portsin.SweepPoolUseCase,
	logger *log.Logger,
) *Worker {
	return &Worker{
		enabled:      cfg.Enabled,
		tickInterval: cfg.TickInterval,
		minimumSize:  cfg.MinimumSize,
		maxBatchSize: cfg.MaxBatchSize,
		replenish:    replenish,
		sweep:        sweep,
		logger:       logger,
	}
}

func (w *Worker) Enabled() bool {
	return w != nil && w.enabled
}

func (w *Worker) Start(ctx context.Context) {
	if w == nil || !w.enabled {
		return
	}

	w.logf(
		"pool keeper started tick_interval=%s minimum_size=%d max_batch_size=%d",
		w.tickInterval,
		w.minimumSize,
		w.maxBatchSize,
	)

	w.runCycle(ctx)
	ticker := time.NewTicker(w.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logf("pool keeper stopped")
			return
		case <-ticker.C:
			w.runCycle(ctx)
		}
	}
}

// runCycle sweeps before replenishing so freshly released addresses count
// against the minimum and the generator is not over-asked.
func (w *Worker) runCycle(ctx context.Context) {
	startedAt := time.Now().UTC()

	if w.sweep != nil {
		sweepOutput, appErr := w.sweep.Execute(ctx, dto.SweepPoolCommand{Now: startedAt})
		if appErr != nil {
			w.logf(
				"pool sweep cycle failed code=%s message=%s details=%v",
				appErr.Code,
				appErr.Message,
				appErr.Details,
			)
		} else {
			w.logf(
				"pool sweep cycle completed released=%d recovered=%d latency_ms=%d",
				sweepOutput.Released,
				sweepOutput.Recovered,
				time.Since(startedAt).Milliseconds(),
			)
		}
	}

	if w.replenish == nil {
		return
	}
	replenishStartedAt := time.Now().UTC()
	replenishOutput, appErr := w.replenish.Execute(ctx, dto.ReplenishPoolCommand{
		Now:          replenishStartedAt,
		MinimumSize:  w.minimumSize,
		MaxBatchSize: w.maxBatchSize,
	})
	if appErr != nil {
		w.logf(
			"pool replenish cycle failed code=%s message=%s details=%v",
			appErr.Code,
			appErr.Message,
			appErr.Details,
		)
		return
	}

	if replenishOutput.Generated > 0 {
		w.logf(
			"pool replenish cycle completed available_before=%d generated=%d inserted=%d skipped=%d latency_ms=%d",
			replenishOutput.AvailableBefore,
			replenishOutput.Generated,
			replenishOutput.Inserted,
			replenishOutput.Skipped,
			time.Since(replenishStartedAt).Milliseconds(),
		)
	}
}

func (w *Worker) logf(format string, args ...any) {
	if w.logger == nil {
		return
	}
	w.logger.Printf(format, args...)
}
