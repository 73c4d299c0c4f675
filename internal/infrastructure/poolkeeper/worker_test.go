//go:build !integration

package poolkeeper

import (
	"context"
	"sync"
	"testing"
	"time"

	"depositgate/internal/application/dto"
	apperrors "depositgate/internal/shared_kernel/errors"
)

func TestWorkerDisabled(t *testing.T) {
	replenish := &fakeReplenishUseCase{}
	sweep := &fakeSweepUseCase{}
	worker := NewWorker(Config{
		Enabled:      false,
		TickInterval: 10 * time.Millisecond,
		MinimumSize:  50,
	}, replenish, sweep, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	worker.Start(ctx)

	if replenish.calls() != 0 || sweep.calls() != 0 {
		t.Fatalf("expected no calls for disabled worker, got %d/%d", replenish.calls(), sweep.calls())
	}
}

func TestWorkerSweepsThenReplenishes(t *testing.T) {
	replenish := &fakeReplenishUseCase{}
	sweep := &fakeSweepUseCase{}
	worker := NewWorker(Config{
		Enabled:      true,
		TickInterval: 10 * time.Millisecond,
		MinimumSize:  50,
		MaxBatchSize: 100,
	}, replenish, sweep, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	worker.Start(ctx)

	if sweep.calls() == 0 {
		t.Fatalf("expected at least one sweep call")
	}
	if replenish.calls() == 0 {
		t.Fatalf("expected at least one replenish call")
	}
	last := replenish.lastCommand()
	if last.MinimumSize != 50 {
		t.Fatalf("expected minimum size 50, got %d", last.MinimumSize)
	}
	if last.MaxBatchSize != 100 {
		t.Fatalf("expected max batch size 100, got %d", last.MaxBatchSize)
	}
}

func TestWorkerKeepsTickingWhenSweepFails(t *testing.T) {
	replenish := &fakeReplenishUseCase{}
	sweep := &fakeSweepUseCase{
		err: apperrors.NewInternal("store_unreachable", "store is unreachable", nil),
	}
	worker := NewWorker(Config{
		Enabled:      true,
		TickInterval: 10 * time.Millisecond,
		MinimumSize:  50,
	}, replenish, sweep, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	worker.Start(ctx)

	if replenish.calls() == 0 {
		t.Fatalf("expected replenish to run despite sweep failure")
	}
}

type fakeReplenishUseCase struct {
	mu        sync.Mutex
	callCount int
	last      dto.ReplenishPoolCommand
}

func (f *fakeReplenishUseCase) Execute(_ context.Context, command dto.ReplenishPoolCommand) (dto.ReplenishPoolOutput, *apperrors.AppError) {
	f.mu.Lock()
	f.callCount++
	f.last = command
	f.mu.Unlock()
	return dto.ReplenishPoolOutput{}, nil
}

func (f *fakeReplenishUseCase) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.callCount
}

func (f *fakeReplenishUseCase) lastCommand() dto.ReplenishPoolCommand {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

type fakeSweepUseCase struct {
	mu        sync.Mutex
	callCount int
	err       *apperrors.AppError
}

func (f *fakeSweepUseCase) Execute(_ context.Context, _ dto.SweepPoolCommand) (dto.SweepPoolOutput, *apperrors.AppError) {
	f.mu.Lock()
	f.callCount++
	f.mu.Unlock()
	if f.err != nil {
		return dto.SweepPoolOutput{}, f.err
	}
	return dto.SweepPoolOutput{}, nil
}

func (f *fakeSweepUseCase) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.callCount
}
