package use_cases

import (
	"context"
	"fmt"
	"time"

	"depositgate/internal/application/dto"
	portsin "depositgate/internal/application/ports/in"
	portsout "depositgate/internal/application/ports/out"
	apperrors "depositgate/internal/shared_kernel/errors"
)

type dispatchEventsUseCase struct {
	outbox     portsout.EventOutboxRepository
	webhook    portsout.WebhookEventGateway
	publisher  portsout.EventPublisher
	webhookURL string
}

// NewDispatchEventsUseCase builds the dispatcher tick: claim a leased batch
// of pending outbox events and push each one to the webhook endpoint and, when
// a publisher is wired, to the message broker. Delivery is at-least-once;
// failed attempts are rescheduled with exponential backoff until the retry
// budget runs out.
func NewDispatchEventsUseCase(
	outbox portsout.EventOutboxRepository,
	webhook portsout.WebhookEventGateway,
	publisher portsout.EventPublisher,
	webhookURL string,
) portsin.DispatchEventsUseCase {
	return &dispatchEventsUseCase{
		outbox:     outbox,
		webhook:    webhook,
		publisher:  publisher,
		webhookURL: webhookURL,
	}
}

func (u *dispatchEventsUseCase) Execute(ctx context.Context, command dto.DispatchEventsCommand) (dto.DispatchEventsOutput, *apperrors.AppError) {
	if u.outbox == nil || u.webhook == nil {
		return dto.DispatchEventsOutput{}, apperrors.NewInternal(
			"dispatch_events_dependencies_missing",
			"event outbox and webhook gateway are required",
			nil,
		)
	}
	if appErr := validateDispatchCommand(command); appErr != nil {
		return dto.DispatchEventsOutput{}, appErr
	}

	now := command.Now.UTC()
	if command.Now.IsZero() {
		now = time.Now().UTC()
	}

	events, appErr := u.outbox.ClaimPending(ctx, now, command.BatchSize, command.WorkerID, now.Add(command.LeaseDuration))
	if appErr != nil {
		return dto.DispatchEventsOutput{}, appErr
	}

	output := dto.DispatchEventsOutput{Claimed: len(events)}
	for _, event := range events {
		u.dispatchOne(ctx, command, event, now, &output)
	}
	return output, nil
}

func (u *dispatchEventsUseCase) dispatchOne(
	ctx context.Context,
	command dto.DispatchEventsCommand,
	event dto.PendingOutboxEvent,
	now time.Time,
	output *dto.DispatchEventsOutput,
) {
	deliveryErr := u.deliver(ctx, event)
	if deliveryErr == nil {
		if _, appErr := u.outbox.MarkDelivered(ctx, event.ID, command.WorkerID, now); appErr != nil {
			output.Errors++
			return
		}
		output.Delivered++
		return
	}

	attempted := event.Attempts + 1
	if attempted >= command.RetryBudget {
		if _, appErr := u.outbox.MarkFailed(ctx, event.ID, command.WorkerID, now, deliveryErr.Message); appErr != nil {
			output.Errors++
			return
		}
		output.Failed++
		return
	}

	nextAttemptAt := now.Add(retryDelay(command.InitialBackoff, command.MaxBackoff, attempted))
	if _, appErr := u.outbox.MarkRetry(ctx, event.ID, command.WorkerID, nextAttemptAt, deliveryErr.Message); appErr != nil {
		output.Errors++
		return
	}
	output.Retried++
}

// deliver pushes one event to every configured sink. The broker publish runs
// first so a webhook failure retries both sinks; consumers dedupe on
// event_id.
func (u *dispatchEventsUseCase) deliver(ctx context.Context, event dto.PendingOutboxEvent) *apperrors.AppError {
	if u.publisher != nil {
		if appErr := u.publisher.Publish(ctx, event.EventType, event.Payload); appErr != nil {
			return appErr
		}
	}
	if u.webhookURL == "" {
		return nil
	}
	_, appErr := u.webhook.SendEvent(ctx, dto.DeliverEventInput{
		EventID:         event.EventID,
		EventType:       event.EventType,
		DestinationURL:  u.webhookURL,
		Payload:         event.Payload,
		DeliveryAttempt: event.Attempts + 1,
	})
	return appErr
}

// retryDelay doubles the initial backoff per completed attempt, capped.
func retryDelay(initial, max time.Duration, attempts int) time.Duration {
	delay := initial
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}

func validateDispatchCommand(command dto.DispatchEventsCommand) *apperrors.AppError {
	details := map[string]any{}
	if command.BatchSize <= 0 {
		details["batch_size"] = command.BatchSize
	}
	if command.WorkerID == "" {
		details["worker_id"] = "required"
	}
	if command.LeaseDuration <= 0 {
		details["lease_duration"] = fmt.Sprint(command.LeaseDuration)
	}
	if command.InitialBackoff <= 0 || command.MaxBackoff < command.InitialBackoff {
		details["backoff"] = fmt.Sprintf("initial=%s max=%s", command.InitialBackoff, command.MaxBackoff)
	}
	if command.RetryBudget <= 0 {
		details["retry_budget"] = command.RetryBudget
	}
	if len(details) > 0 {
		return apperrors.NewValidation("dispatch_command_invalid", "dispatch command has invalid fields", details)
	}
	return nil
}
