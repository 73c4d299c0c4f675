package use_cases

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"depositgate/internal/application/dto"
	portsin "depositgate/internal/application/ports/in"
	portsout "depositgate/internal/application/ports/out"
	valueobjects "depositgate/internal/domain/value_objects"
	apperrors "depositgate/internal/shared_kernel/errors"
)

type monitorDepositsUseCase struct {
	deposits portsout.DepositRepository
	pool     portsout.AddressPoolRepository
	chain    portsout.ChainClient
	outbox   portsout.EventOutboxRepository
	ids      IDGenerator
}

func NewMonitorDepositsUseCase(
	deposits portsout.DepositRepository,
	pool portsout.AddressPoolRepository,
	chain portsout.ChainClient,
	outbox portsout.EventOutboxRepository,
	ids IDGenerator,
) portsin.MonitorDepositsUseCase {
	return &monitorDepositsUseCase{
		deposits: deposits,
		pool:     pool,
		chain:    chain,
		outbox:   outbox,
		ids:      ids,
	}
}

func (u *monitorDepositsUseCase) Execute(
	ctx context.Context,
	command dto.MonitorDepositsCommand,
) (dto.MonitorDepositsOutput, *apperrors.AppError) {
	if u.deposits == nil || u.pool == nil || u.chain == nil || u.outbox == nil {
		return dto.MonitorDepositsOutput{}, apperrors.NewInternal(
			"monitor_dependencies_missing",
			"deposit repository, address pool, chain client and event outbox are required",
			nil,
		)
	}
	if command.BatchSize <= 0 {
		return dto.MonitorDepositsOutput{}, apperrors.NewValidation(
			"monitor_batch_size_invalid",
			"monitor batch size must be greater than zero",
			map[string]any{"batch_size": command.BatchSize},
		)
	}
	workerID := strings.TrimSpace(command.WorkerID)
	if workerID == "" {
		return dto.MonitorDepositsOutput{}, apperrors.NewValidation(
			"monitor_worker_id_invalid",
			"monitor worker id is required",
			nil,
		)
	}
	if command.ConfirmationThreshold <= 0 {
		return dto.MonitorDepositsOutput{}, apperrors.NewValidation(
			"confirmation_threshold_invalid",
			"confirmation threshold must be greater than zero",
			map[string]any{"confirmation_threshold": command.ConfirmationThreshold},
		)
	}
	if command.LeaseDuration <= 0 || command.QueryTimeout <= 0 || command.PollInterval <= 0 {
		return dto.MonitorDepositsOutput{}, apperrors.NewValidation(
			"monitor_durations_invalid",
			"lease duration, query timeout and poll interval must be greater than zero",
			nil,
		)
	}

	now := command.Now.UTC()
	if command.Now.IsZero() {
		now = time.Now().UTC()
	}

	rows, appErr := u.deposits.ClaimMonitorable(ctx, now, command.BatchSize, workerID, now.Add(command.LeaseDuration))
	if appErr != nil {
		return dto.MonitorDepositsOutput{}, appErr
	}

	output := dto.MonitorDepositsOutput{Claimed: len(rows), Scanned: len(rows)}
	for _, row := range rows {
		u.monitorOne(ctx, command, workerID, now, row, &output)
	}

	return output, nil
}

// monitorOne drives a single claimed deposit through one poll cycle. Chain
// trouble never moves a deposit to a terminal state; it only pushes the next
// poll out.
func (u *monitorDepositsUseCase) monitorOne(
	ctx context.Context,
	command dto.MonitorDepositsCommand,
	workerID string,
	now time.Time,
	row dto.MonitorableDeposit,
	output *dto.MonitorDepositsOutput,
) {
	currentState := strings.TrimSpace(row.State)

	if now.After(row.ExpiresAt) {
		updated, appErr := u.deposits.TransitionStateIfCurrent(
			ctx, row.ID, currentState, valueobjects.DepositStateExpired.String(), now, workerID,
		)
		if appErr != nil {
			output.Errors++
			return
		}
		if !updated {
			output.Skipped++
			return
		}
		u.emit(ctx, now, row, dto.EventTypeDepositExpired, map[string]any{
			"expired_at": now,
		}, output)
		u.parkAddress(ctx, row.Address, now, command.CooldownDuration, output)
		output.Expired++
		return
	}

	// First successful claim of a fresh assignment moves the address into
	// monitoring; subsequent cycles are a guarded no-op.
	if _, appErr := u.pool.MarkMonitoring(ctx, row.Address); appErr != nil {
		output.Errors++
	}

	queryCtx, cancel := context.WithTimeout(ctx, command.QueryTimeout)
	observations, fetchErr := u.chain.FetchTransactions(queryCtx, row.Address, row.LastCheckedBlockHeight)
	cancel()
	if fetchErr != nil {
		output.Unavailable++
		u.backOff(ctx, command, workerID, now, row, output)
		return
	}

	anyMatch := false
	var confirmedHash string
	confirmedCount := 0
	for _, observation := range observations {
		if observation.ToAddress != row.Address {
			continue
		}

		matured := observation.Confirmations >= command.ConfirmationThreshold
		if _, appErr := u.deposits.ApplyObservation(ctx, row.ID, observation, matured); appErr != nil {
			output.Errors++
			continue
		}
		anyMatch = true

		cmp, cmpErr := valueobjects.CompareAmountMinor(observation.AmountMinor, row.AmountMinor)
		if cmpErr != nil {
			output.Errors++
			continue
		}
		// Under-payment never confirms; it still drives the partial state.
		if cmp >= 0 && matured {
			if observation.Confirmations > confirmedCount {
				confirmedCount = observation.Confirmations
				confirmedHash = observation.TxHash
			}
		}
	}

	if confirmedHash != "" {
		updated, appErr := u.deposits.TransitionStateIfCurrent(
			ctx, row.ID, currentState, valueobjects.DepositStateConfirmed.String(), now, workerID,
		)
		if appErr != nil {
			output.Errors++
			return
		}
		if !updated {
			output.Skipped++
			return
		}
		u.emit(ctx, now, row, dto.EventTypeDepositConfirmed, map[string]any{
			"tx_hash":       confirmedHash,
			"confirmations": confirmedCount,
			"confirmed_at":  now,
		}, output)
		u.parkAddress(ctx, row.Address, now, command.CooldownDuration, output)
		output.Confirmed++
		return
	}

	if anyMatch && currentState == valueobjects.DepositStatePending.String() {
		updated, appErr := u.deposits.TransitionStateIfCurrent(
			ctx, row.ID, currentState, valueobjects.DepositStatePartiallyConfirmed.String(), now, workerID,
		)
		if appErr != nil {
			output.Errors++
		} else if updated {
			u.emit(ctx, now, row, dto.EventTypeDepositPartiallyConfirmed, map[string]any{
				"observed_at": now,
			}, output)
			output.PartiallyConfirmed++
		} else {
			output.Skipped++
		}
	}

	if appErr := u.deposits.SchedulePoll(ctx, row.ID, dto.PollSchedule{
		NextPollAt:         now.Add(command.PollInterval),
		PollBackoffSeconds: 0,
	}, workerID); appErr != nil {
		output.Errors++
	}
}

// backOff pushes the deposit's next poll out exponentially after a provider
// failure, capped at the configured maximum.
func (u *monitorDepositsUseCase) backOff(
	ctx context.Context,
	command dto.MonitorDepositsCommand,
	workerID string,
	now time.Time,
	row dto.MonitorableDeposit,
	output *dto.MonitorDepositsOutput,
) {
	backoff := time.Duration(row.PollBackoffSeconds) * time.Second
	if backoff < command.PollInterval {
		backoff = command.PollInterval
	}
	backoff *= 2
	if command.MaxPollBackoff > 0 && backoff > command.MaxPollBackoff {
		backoff = command.MaxPollBackoff
	}

	if appErr := u.deposits.SchedulePoll(ctx, row.ID, dto.PollSchedule{
		NextPollAt:         now.Add(backoff),
		PollBackoffSeconds: int(backoff / time.Second),
	}, workerID); appErr != nil {
		output.Errors++
	}
}

// parkAddress ends the assignment cycle for a terminal deposit: cooldown now,
// release by the sweeper once the cooldown lapses.
func (u *monitorDepositsUseCase) parkAddress(
	ctx context.Context,
	address string,
	now time.Time,
	cooldown time.Duration,
	output *dto.MonitorDepositsOutput,
) {
	if _, appErr := u.pool.BeginCooldown(ctx, address, now.Add(cooldown)); appErr != nil {
		output.Errors++
	}
}

func (u *monitorDepositsUseCase) emit(
	ctx context.Context,
	now time.Time,
	row dto.MonitorableDeposit,
	eventType string,
	fields map[string]any,
	output *dto.MonitorDepositsOutput,
) {
	payload := map[string]any{
		"deposit_id":   row.ID,
		"address":      row.Address,
		"amount_minor": row.AmountMinor,
		"asset":        row.Asset,
	}
	for key, value := range fields {
		payload[key] = value
	}

	body, marshalErr := json.Marshal(payload)
	if marshalErr != nil {
		output.Errors++
		return
	}

	if _, appErr := u.outbox.Enqueue(ctx, dto.EnqueueEventCommand{
		EventID:   u.ids.NewID(),
		EventType: eventType,
		DepositID: row.ID,
		Payload:   body,
		Now:       now,
	}); appErr != nil {
		output.Errors++
	}
}
