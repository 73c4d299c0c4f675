// Package dispatcher drains the event outbox and delivers claimed events to
// the configured sinks.
package dispatcher

import (
	"context"
	"log"
	"time"

	"depositgate/internal/application/dto"
	portsin "depositgate/internal/application/ports/in"
)

type Worker struct {
	enabled        bool
	pollInterval   time.Duration
	batchSize      int
	workerID       string
	leaseDuration  time.Duration
	initialBackoff time.Duration
	maxBackoff     time.Duration
	retryBudget    int
	useCase        portsin.DispatchEventsUseCase
	logger         *log.Logger
}

type Config struct {
	Enabled        bool
	PollInterval   time.Duration
	BatchSize      int
	WorkerID       string
	LeaseDuration  time.Duration
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	RetryBudget    int
}

func NewWorker(cfg Config, useCase portsin.DispatchEventsUseCase, logger *log.Logger) *Worker {
	return &Worker{
		enabled:        cfg.Enabled,
		pollInterval:   cfg.PollInterval,
		batchSize:      cfg.BatchSize,
		workerID:       cfg.WorkerID,
		leaseDuration:  cfg.LeaseDuration,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
		retryBudget:    cfg.RetryBudget,
		useCase:        useCase,
		logger:         logger,
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
		"event dispatcher started worker_id=%s poll_interval=%s batch_size=%d retry_budget=%d",
		w.workerID,
		w.pollInterval,
		w.batchSize,
		w.retryBudget,
	)

	w.runCycle(ctx)
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logf("event dispatcher stopped")
			return
		case <-ticker.C:
			w.runCycle(ctx)
		}
	}
}

func (w *Worker) runCycle(ctx context.Context) {
	startedAt := time.Now().UTC()
	output, appErr := w.useCase.Execute(ctx, dto.DispatchEventsCommand{
		Now:            startedAt,
		BatchSize:      w.batchSize,
		WorkerID:       w.workerID,
		LeaseDuration:  w.leaseDuration,
		InitialBackoff: w.initialBackoff,
		MaxBackoff:     w.maxBackoff,
		RetryBudget:    w.retryBudget,
	})
	if appErr != nil {
		w.logf(
			"event dispatch cycle failed code=%s message=%s details=%v",
			appErr.Code,
			appErr.Message,
			appErr.Details,
		)
		return
	}

	if output.Claimed > 0 {
		w.logf(
			"event dispatch cycle completed worker_id=%s claimed=%d delivered=%d retried=%d failed=%d errors=%d latency_ms=%d",
			w.workerID,
			output.Claimed,
			output.Delivered,
			output.Retried,
			output.Failed,
			output.Errors,
			time.Since(startedAt).Milliseconds(),
		)
	}
}

func (w *Worker) logf(format string, args ...any) {
	if w.logger == nil {
		return
	}
	w.logger.Printf(format, args...)
}
