package out

import (
	"context"

	"depositgate/internal/application/dto"
	apperrors "depositgate/internal/shared_kernel/errors"
)

// WebhookEventGateway delivers one event to the configured webhook endpoint.
type WebhookEventGateway interface {
	SendEvent(ctx context.Context, input dto.DeliverEventInput) (dto.DeliverEventOutput, *apperrors.AppError)
}

// EventPublisher fans events out to a message broker. Consumers must be
// idempotent; delivery is at-least-once.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, payload []byte) *apperrors.AppError
}
