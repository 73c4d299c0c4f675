// Package monitor runs the deposit polling loop. Each tick claims a leased
// batch of monitorable deposits and advances them through confirmation and
// expiry transitions.
package monitor

import (
	"context"
	"log"
	"time"

	"depositgate/internal/application/dto"
	portsin "depositgate/internal/application/ports/in"
)

type Worker struct {
	enabled               bool
	pollInterval          time.Duration
	batchSize             int
	workerID              string
	leaseDuration         time.Duration
	confirmationThreshold int
	queryTimeout          time.Duration
	maxPollBackoff        time.Duration
	cooldownDuration      time.Duration
	useCase               portsin.MonitorDepositsUseCase
	logger                *log.Logger
}

type Config struct {
	Enabled               bool
	PollInterval          time.Duration
	BatchSize             int
	WorkerID              string
	LeaseDuration         time.Duration
	ConfirmationThreshold int
	QueryTimeout          time.Duration
	MaxPollBackoff        time.Duration
	CooldownDuration      time.Duration
}

func NewWorker(cfg Config, useCase portsin.MonitorDepositsUseCase, logger *log.Logger) *Worker {
	return &Worker{
		enabled:               cfg.Enabled,
		pollInterval:          cfg.PollInterval,
		batchSize:             cfg.BatchSize,
		workerID:              cfg.WorkerID,
		leaseDuration:         cfg.LeaseDuration,
		confirmationThreshold: cfg.ConfirmationThreshold,
		queryTimeout:          cfg.QueryTimeout,
		maxPollBackoff:        cfg.MaxPollBackoff,
		cooldownDuration:      cfg.CooldownDuration,
		useCase:               useCase,
		logger:                logger,
	}
}

func (w *Worker) Enabled() bool {
	return w != nil && w.enabled
}

func (w *Worker) Start(ctx context.Context) {
	if w == nil || !w.enabled || w.useCase == nil {
		return
	}

	w.logf(
		"deposit monitor started worker_id=%s poll_interval=%s batch_size=%d lease_duration=%s confirmation_threshold=%d",
		w.workerID,
		w.pollInterval,
		w.batchSize,
		w.leaseDuration,
		w.confirmationThreshold,
	)

	w.runCycle(ctx)
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logf("deposit monitor stopped")
			return
		case <-ticker.C:
			w.runCycle(ctx)
		}
	}
}

func (w *Worker) runCycle(ctx context.Context) {
	startedAt := time.Now().UTC()
	output, appErr := w.useCase.Execute(ctx, dto.MonitorDepositsCommand{
		Now:                   startedAt,
		BatchSize:             w.batchSize,
		WorkerID:              w.workerID,
		LeaseDuration:         w.leaseDuration,
		ConfirmationThreshold: w.confirmationThreshold,
		QueryTimeout:          w.queryTimeout,
		PollInterval:          w.pollInterval,
		MaxPollBackoff:        w.maxPollBackoff,
		CooldownDuration:      w.cooldownDuration,
	})
	if appErr != nil {
		w.logf(
			"deposit monitor cycle failed code=%s message=%s details=%v",
			appErr.Code,
			appErr.Message,
			appErr.Details,
		)
		return
	}

	w.logf(
		"deposit monitor cycle completed worker_id=%s claimed=%d scanned=%d confirmed=%d partially_confirmed=%d expired=%d unavailable=%d skipped=%d errors=%d latency_ms=%d",
		w.workerID,
		output.Claimed,
		output.Scanned,
		output.Confirmed,
		output.PartiallyConfirmed,
		output.Expired,
		output.Unavailable,
		output.Skipped,
		output.Errors,
		time.Since(startedAt).Milliseconds(),
	)
}

func (w *Worker) logf(format string, args ...any) {
	if w.logger == nil {
		return
	}
	w.logger.Printf(format, args...)
}
