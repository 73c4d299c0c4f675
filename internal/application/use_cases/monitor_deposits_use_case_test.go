//go:build !integration

package use_cases

import (
	"context"
	"testing"
	"time"

	"depositgate/internal/application/dto"
	"depositgate/internal/domain/entities"
	apperrors "depositgate/internal/shared_kernel/errors"
)

func monitorCommand(now time.Time) dto.MonitorDepositsCommand {
	return dto.MonitorDepositsCommand{
		Now:                   now,
		BatchSize:             50,
		WorkerID:              "monitor-test",
		LeaseDuration:         time.Minute,
		ConfirmationThreshold: 3,
		QueryTimeout:          10 * time.Second,
		PollInterval:          30 * time.Second,
		MaxPollBackoff:        10 * time.Minute,
		CooldownDuration:      time.Hour,
	}
}

func monitorableRow(now time.Time) dto.MonitorableDeposit {
	return dto.MonitorableDeposit{
		ID:          "dep_0001",
		Address:     testPoolAddress,
		AmountMinor: "25000000",
		Asset:       "USDT",
		State:       "pending",
		ExpiresAt:   now.Add(time.Hour),
	}
}

func TestMonitorDepositsUseCaseExecutePartialConfirmation(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	row := monitorableRow(now)
	deposits := &fakeDepositRepository{claimed: []dto.MonitorableDeposit{row}}
	pool := &fakeAddressPool{}
	chain := &fakeChainClient{observations: map[string][]entities.ChainObservation{
		row.Address: {{
			TxHash:        "tx_a",
			ToAddress:     row.Address,
			AmountMinor:   "25000000",
			BlockHeight:   700,
			Confirmations: 1,
			ObservedAt:    now,
		}},
	}}
	outbox := &fakeEventOutbox{}

	useCase := NewMonitorDepositsUseCase(deposits, pool, chain, outbox, &sequenceIDs{prefix: "evt"})
	output, appErr := useCase.Execute(context.Background(), monitorCommand(now))
	if appErr != nil {
		t.Fatalf("expected no error, got %+v", appErr)
	}

	if output.PartiallyConfirmed != 1 || output.Confirmed != 0 {
		t.Fatalf("expected one partial confirmation, got %+v", output)
	}
	if len(deposits.transitions) != 1 {
		t.Fatalf("expected one transition, got %+v", deposits.transitions)
	}
	if deposits.transitions[0].from != "pending" || deposits.transitions[0].to != "partially_confirmed" {
		t.Fatalf("unexpected transition: %+v", deposits.transitions[0])
	}
	if len(deposits.applied) != 1 || deposits.applied[0].advanceHeight {
		t.Fatalf("height must not advance below threshold, got %+v", deposits.applied)
	}
	if len(outbox.enqueued) != 1 || outbox.enqueued[0].EventType != dto.EventTypeDepositPartiallyConfirmed {
		t.Fatalf("expected deposit.partially_confirmed event, got %+v", outbox.enqueued)
	}
	if len(deposits.schedules) != 1 || deposits.schedules[0].schedule.PollBackoffSeconds != 0 {
		t.Fatalf("expected backoff reset on a clean cycle, got %+v", deposits.schedules)
	}
	if !deposits.schedules[0].schedule.NextPollAt.Equal(now.Add(30 * time.Second)) {
		t.Fatalf("unexpected next poll: %s", deposits.schedules[0].schedule.NextPollAt)
	}
	if len(pool.monitoring) != 1 || pool.monitoring[0] != row.Address {
		t.Fatalf("address must move to monitoring, got %+v", pool.monitoring)
	}
}

func TestMonitorDepositsUseCaseExecuteConfirmsAtThreshold(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	row := monitorableRow(now)
	row.State = "partially_confirmed"
	row.ConfirmationsObserved = 2
	deposits := &fakeDepositRepository{claimed: []dto.MonitorableDeposit{row}}
	pool := &fakeAddressPool{}
	chain := &fakeChainClient{observations: map[string][]entities.ChainObservation{
		row.Address: {{
			TxHash:        "tx_a",
			ToAddress:     row.Address,
			AmountMinor:   "25000000",
			BlockHeight:   700,
			Confirmations: 3,
			ObservedAt:    now,
		}},
	}}
	outbox := &fakeEventOutbox{}

	useCase := NewMonitorDepositsUseCase(deposits, pool, chain, outbox, &sequenceIDs{prefix: "evt"})
	output, appErr := useCase.Execute(context.Background(), monitorCommand(now))
	if appErr != nil {
		t.Fatalf("expected no error, got %+v", appErr)
	}

	if output.Confirmed != 1 {
		t.Fatalf("expected one confirmation, got %+v", output)
	}
	if len(deposits.transitions) != 1 || deposits.transitions[0].to != "confirmed" {
		t.Fatalf("expected confirmed transition, got %+v", deposits.transitions)
	}
	if len(deposits.applied) != 1 || !deposits.applied[0].advanceHeight {
		t.Fatalf("height must advance at threshold, got %+v", deposits.applied)
	}
	if len(outbox.enqueued) != 1 || outbox.enqueued[0].EventType != dto.EventTypeDepositConfirmed {
		t.Fatalf("expected deposit.confirmed event, got %+v", outbox.enqueued)
	}
	if len(pool.cooldowns) != 1 || pool.cooldowns[0].address != row.Address {
		t.Fatalf("address must enter cooldown after a terminal deposit, got %+v", pool.cooldowns)
	}
	if !pool.cooldowns[0].until.Equal(now.Add(time.Hour)) {
		t.Fatalf("unexpected cooldown horizon: %s", pool.cooldowns[0].until)
	}
	if len(deposits.schedules) != 0 {
		t.Fatalf("terminal deposits must not be rescheduled, got %+v", deposits.schedules)
	}
}

func TestMonitorDepositsUseCaseExecuteUnderPaymentNeverConfirms(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	row := monitorableRow(now)
	deposits := &fakeDepositRepository{claimed: []dto.MonitorableDeposit{row}}
	chain := &fakeChainClient{observations: map[string][]entities.ChainObservation{
		row.Address: {{
			TxHash:        "tx_small",
			ToAddress:     row.Address,
			AmountMinor:   "24999999",
			BlockHeight:   700,
			Confirmations: 9,
			ObservedAt:    now,
		}},
	}}
	outbox := &fakeEventOutbox{}

	useCase := NewMonitorDepositsUseCase(deposits, &fakeAddressPool{}, chain, outbox, &sequenceIDs{prefix: "evt"})
	output, appErr := useCase.Execute(context.Background(), monitorCommand(now))
	if appErr != nil {
		t.Fatalf("expected no error, got %+v", appErr)
	}

	if output.Confirmed != 0 || output.PartiallyConfirmed != 1 {
		t.Fatalf("under-payment must stop at partially_confirmed, got %+v", output)
	}
	if len(deposits.transitions) != 1 || deposits.transitions[0].to != "partially_confirmed" {
		t.Fatalf("unexpected transitions: %+v", deposits.transitions)
	}
}

func TestMonitorDepositsUseCaseExecuteIgnoresForeignTransfers(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	row := monitorableRow(now)
	deposits := &fakeDepositRepository{claimed: []dto.MonitorableDeposit{row}}
	chain := &fakeChainClient{observations: map[string][]entities.ChainObservation{
		row.Address: {{
			TxHash:        "tx_other",
			ToAddress:     "TNPeeaaFB7K9cmo4uQpcU32zGK8G1NYqeL",
			AmountMinor:   "25000000",
			BlockHeight:   700,
			Confirmations: 5,
			ObservedAt:    now,
		}},
	}}
	outbox := &fakeEventOutbox{}

	useCase := NewMonitorDepositsUseCase(deposits, &fakeAddressPool{}, chain, outbox, &sequenceIDs{prefix: "evt"})
	output, appErr := useCase.Execute(context.Background(), monitorCommand(now))
	if appErr != nil {
		t.Fatalf("expected no error, got %+v", appErr)
	}

	if output.Confirmed != 0 || output.PartiallyConfirmed != 0 {
		t.Fatalf("foreign transfers must not advance state, got %+v", output)
	}
	if len(deposits.applied) != 0 {
		t.Fatalf("foreign transfers must not be recorded, got %+v", deposits.applied)
	}
	if len(deposits.schedules) != 1 {
		t.Fatalf("deposit must still be rescheduled, got %+v", deposits.schedules)
	}
}

func TestMonitorDepositsUseCaseExecuteExpiresOverdueDeposit(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	row := monitorableRow(now)
	row.ExpiresAt = now.Add(-time.Second)
	deposits := &fakeDepositRepository{claimed: []dto.MonitorableDeposit{row}}
	pool := &fakeAddressPool{}
	chain := &fakeChainClient{}
	outbox := &fakeEventOutbox{}

	useCase := NewMonitorDepositsUseCase(deposits, pool, chain, outbox, &sequenceIDs{prefix: "evt"})
	output, appErr := useCase.Execute(context.Background(), monitorCommand(now))
	if appErr != nil {
		t.Fatalf("expected no error, got %+v", appErr)
	}

	if output.Expired != 1 {
		t.Fatalf("expected one expiry, got %+v", output)
	}
	if chain.fetchCalls != 0 {
		t.Fatalf("expiry must be checked before touching the provider")
	}
	if len(deposits.transitions) != 1 || deposits.transitions[0].to != "expired" {
		t.Fatalf("expected expired transition, got %+v", deposits.transitions)
	}
	if len(outbox.enqueued) != 1 || outbox.enqueued[0].EventType != dto.EventTypeDepositExpired {
		t.Fatalf("expected deposit.expired event, got %+v", outbox.enqueued)
	}
	if len(pool.cooldowns) != 1 {
		t.Fatalf("expired deposit must park its address, got %+v", pool.cooldowns)
	}
}

func TestMonitorDepositsUseCaseExecuteLostRaceSkipsEvent(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	row := monitorableRow(now)
	row.ExpiresAt = now.Add(-time.Second)
	deposits := &fakeDepositRepository{
		claimed:      []dto.MonitorableDeposit{row},
		transitionOK: func(_, _, _ string) bool { return false },
	}
	outbox := &fakeEventOutbox{}

	useCase := NewMonitorDepositsUseCase(deposits, &fakeAddressPool{}, &fakeChainClient{}, outbox, &sequenceIDs{prefix: "evt"})
	output, appErr := useCase.Execute(context.Background(), monitorCommand(now))
	if appErr != nil {
		t.Fatalf("expected no error, got %+v", appErr)
	}

	if output.Skipped != 1 || output.Expired != 0 {
		t.Fatalf("a lost transition race must be skipped, got %+v", output)
	}
	if len(outbox.enqueued) != 0 {
		t.Fatalf("a lost race must not emit, got %+v", outbox.enqueued)
	}
}

func TestMonitorDepositsUseCaseExecuteProviderBackoff(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	cases := []struct {
		name            string
		backoffSeconds  int
		expectedBackoff time.Duration
	}{
		{name: "first failure doubles the interval", backoffSeconds: 0, expectedBackoff: time.Minute},
		{name: "repeat failure doubles again", backoffSeconds: 60, expectedBackoff: 2 * time.Minute},
		{name: "cap holds", backoffSeconds: 600, expectedBackoff: 10 * time.Minute},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			row := monitorableRow(now)
			row.PollBackoffSeconds = tc.backoffSeconds
			deposits := &fakeDepositRepository{claimed: []dto.MonitorableDeposit{row}}
			chain := &fakeChainClient{
				fetchErr: apperrors.NewUnavailable("provider_rate_limited", "rate limit hit", nil),
			}

			useCase := NewMonitorDepositsUseCase(deposits, &fakeAddressPool{}, chain, &fakeEventOutbox{}, &sequenceIDs{prefix: "evt"})
			output, appErr := useCase.Execute(context.Background(), monitorCommand(now))
			if appErr != nil {
				t.Fatalf("expected no error, got %+v", appErr)
			}

			if output.Unavailable != 1 {
				t.Fatalf("expected one unavailable cycle, got %+v", output)
			}
			if len(deposits.transitions) != 0 {
				t.Fatalf("provider trouble must never change state, got %+v", deposits.transitions)
			}
			if len(deposits.schedules) != 1 {
				t.Fatalf("expected one reschedule, got %+v", deposits.schedules)
			}
			schedule := deposits.schedules[0].schedule
			if !schedule.NextPollAt.Equal(now.Add(tc.expectedBackoff)) {
				t.Fatalf("expected next poll at +%s, got %s", tc.expectedBackoff, schedule.NextPollAt)
			}
			if schedule.PollBackoffSeconds != int(tc.expectedBackoff/time.Second) {
				t.Fatalf("expected persisted backoff %d, got %d", int(tc.expectedBackoff/time.Second), schedule.PollBackoffSeconds)
			}
		})
	}
}

func TestMonitorDepositsUseCaseExecuteCommandValidation(t *testing.T) {
	useCase := NewMonitorDepositsUseCase(&fakeDepositRepository{}, &fakeAddressPool{}, &fakeChainClient{}, &fakeEventOutbox{}, &sequenceIDs{})

	command := monitorCommand(time.Now().UTC())
	command.BatchSize = 0
	if _, appErr := useCase.Execute(context.Background(), command); appErr == nil || appErr.Code != "monitor_batch_size_invalid" {
		t.Fatalf("expected monitor_batch_size_invalid, got %+v", appErr)
	}

	command = monitorCommand(time.Now().UTC())
	command.WorkerID = "  "
	if _, appErr := useCase.Execute(context.Background(), command); appErr == nil || appErr.Code != "monitor_worker_id_invalid" {
		t.Fatalf("expected monitor_worker_id_invalid, got %+v", appErr)
	}

	command = monitorCommand(time.Now().UTC())
	command.ConfirmationThreshold = 0
	if _, appErr := useCase.Execute(context.Background(), command); appErr == nil || appErr.Code != "confirmation_threshold_invalid" {
		t.Fatalf("expected confirmation_threshold_invalid, got %+v", appErr)
	}
}

type fakeChainClient struct {
	observations map[string][]entities.ChainObservation
	fetchErr     *apperrors.AppError
	fetchCalls   int
}

func (f *fakeChainClient) FetchTransactions(
	_ context.Context,
	address string,
	_ int64,
) ([]entities.ChainObservation, *apperrors.AppError) {
	f.fetchCalls++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.observations[address], nil
}
