//go:build !integration

package use_cases

import (
	"context"
	"testing"
	"time"

	"depositgate/internal/application/dto"
	apperrors "depositgate/internal/shared_kernel/errors"
)

func dispatchCommand(now time.Time) dto.DispatchEventsCommand {
	return dto.DispatchEventsCommand{
		Now:            now,
		BatchSize:      25,
		WorkerID:       "dispatcher-test",
		LeaseDuration:  time.Minute,
		InitialBackoff: 5 * time.Second,
		MaxBackoff:     5 * time.Minute,
		RetryBudget:    3,
	}
}

func TestDispatchEventsUseCaseExecuteDeliversBatch(t *testing.T) {
	now := time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC)
	outbox := &fakeEventOutbox{pending: []dto.PendingOutboxEvent{
		{ID: 1, EventID: "evt_1", EventType: dto.EventTypeAddressAssigned, DepositID: "dep_1", Payload: []byte(`{}`)},
		{ID: 2, EventID: "evt_2", EventType: dto.EventTypeDepositConfirmed, DepositID: "dep_2", Payload: []byte(`{}`), Attempts: 1},
	}}
	webhook := &fakeWebhookGateway{}
	publisher := &fakeEventPublisher{}

	useCase := NewDispatchEventsUseCase(outbox, webhook, publisher, "https://merchant.example/webhooks")
	output, appErr := useCase.Execute(context.Background(), dispatchCommand(now))
	if appErr != nil {
		t.Fatalf("expected no error, got %+v", appErr)
	}

	if output.Claimed != 2 || output.Delivered != 2 || output.Retried != 0 || output.Failed != 0 {
		t.Fatalf("unexpected output: %+v", output)
	}
	if len(outbox.delivered) != 2 {
		t.Fatalf("expected both events marked delivered, got %+v", outbox.delivered)
	}
	if len(webhook.sent) != 2 || webhook.sent[1].DeliveryAttempt != 2 {
		t.Fatalf("unexpected webhook sends: %+v", webhook.sent)
	}
	if len(publisher.published) != 2 {
		t.Fatalf("expected broker fan-out, got %+v", publisher.published)
	}
}

func TestDispatchEventsUseCaseExecuteRetriesWithBackoff(t *testing.T) {
	now := time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC)

	cases := []struct {
		name          string
		attempts      int
		expectedDelay time.Duration
	}{
		{name: "first retry", attempts: 0, expectedDelay: 5 * time.Second},
		{name: "second retry doubles", attempts: 1, expectedDelay: 10 * time.Second},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			outbox := &fakeEventOutbox{pending: []dto.PendingOutboxEvent{
				{ID: 7, EventID: "evt_7", EventType: dto.EventTypeDepositExpired, Payload: []byte(`{}`), Attempts: tc.attempts},
			}}
			webhook := &fakeWebhookGateway{
				errors: map[string]*apperrors.AppError{
					"evt_7": apperrors.NewUnavailable("webhook_unreachable", "connection refused", nil),
				},
			}

			useCase := NewDispatchEventsUseCase(outbox, webhook, nil, "https://merchant.example/webhooks")
			output, appErr := useCase.Execute(context.Background(), dispatchCommand(now))
			if appErr != nil {
				t.Fatalf("expected no error, got %+v", appErr)
			}

			if output.Retried != 1 || output.Failed != 0 {
				t.Fatalf("expected one retry, got %+v", output)
			}
			if len(outbox.retried) != 1 {
				t.Fatalf("expected one retry mark, got %+v", outbox.retried)
			}
			if !outbox.retried[0].nextAttemptAt.Equal(now.Add(tc.expectedDelay)) {
				t.Fatalf("expected next attempt at +%s, got %s", tc.expectedDelay, outbox.retried[0].nextAttemptAt)
			}
		})
	}
}

func TestDispatchEventsUseCaseExecuteFailsAfterRetryBudget(t *testing.T) {
	now := time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC)
	outbox := &fakeEventOutbox{pending: []dto.PendingOutboxEvent{
		{ID: 9, EventID: "evt_9", EventType: dto.EventTypeDepositConfirmed, Payload: []byte(`{}`), Attempts: 2},
	}}
	webhook := &fakeWebhookGateway{
		errors: map[string]*apperrors.AppError{
			"evt_9": apperrors.NewUnavailable("webhook_unreachable", "connection refused", nil),
		},
	}

	useCase := NewDispatchEventsUseCase(outbox, webhook, nil, "https://merchant.example/webhooks")
	output, appErr := useCase.Execute(context.Background(), dispatchCommand(now))
	if appErr != nil {
		t.Fatalf("expected no error, got %+v", appErr)
	}

	if output.Failed != 1 || output.Retried != 0 {
		t.Fatalf("expected terminal failure, got %+v", output)
	}
	if len(outbox.failed) != 1 || outbox.failed[0] != 9 {
		t.Fatalf("expected event 9 marked failed, got %+v", outbox.failed)
	}
}

func TestDispatchEventsUseCaseExecuteBrokerFailureRetriesBothSinks(t *testing.T) {
	now := time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC)
	outbox := &fakeEventOutbox{pending: []dto.PendingOutboxEvent{
		{ID: 4, EventID: "evt_4", EventType: dto.EventTypeAddressReleased, Payload: []byte(`{}`)},
	}}
	webhook := &fakeWebhookGateway{}
	publisher := &fakeEventPublisher{
		publishErr: apperrors.NewUnavailable("broker_unreachable", "amqp channel closed", nil),
	}

	useCase := NewDispatchEventsUseCase(outbox, webhook, publisher, "https://merchant.example/webhooks")
	output, appErr := useCase.Execute(context.Background(), dispatchCommand(now))
	if appErr != nil {
		t.Fatalf("expected no error, got %+v", appErr)
	}

	if output.Retried != 1 {
		t.Fatalf("expected retry on broker failure, got %+v", output)
	}
	if len(webhook.sent) != 0 {
		t.Fatalf("webhook must not run after a broker failure, got %+v", webhook.sent)
	}
}

func TestDispatchEventsUseCaseExecuteCommandValidation(t *testing.T) {
	useCase := NewDispatchEventsUseCase(&fakeEventOutbox{}, &fakeWebhookGateway{}, nil, "https://merchant.example/webhooks")

	command := dispatchCommand(time.Now().UTC())
	command.BatchSize = 0
	command.WorkerID = ""
	if _, appErr := useCase.Execute(context.Background(), command); appErr == nil || appErr.Code != "dispatch_command_invalid" {
		t.Fatalf("expected dispatch_command_invalid, got %+v", appErr)
	}
}

type fakeWebhookGateway struct {
	sent   []dto.DeliverEventInput
	errors map[string]*apperrors.AppError
}

func (f *fakeWebhookGateway) SendEvent(_ context.Context, input dto.DeliverEventInput) (dto.DeliverEventOutput, *apperrors.AppError) {
	if f.errors != nil {
		if appErr, exists := f.errors[input.EventID]; exists {
			return dto.DeliverEventOutput{}, appErr
		}
	}
	f.sent = append(f.sent, input)
	return dto.DeliverEventOutput{StatusCode: 200}, nil
}

type fakeEventPublisher struct {
	published  []string
	publishErr *apperrors.AppError
}

func (f *fakeEventPublisher) Publish(_ context.Context, eventType string, _ []byte) *apperrors.AppError {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, eventType)
	return nil
}
