//go:build !integration

package http

import (
	"context"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"depositgate/internal/application/dto"
)

func TestSendEventSuccess(t *testing.T) {
	const secret = "webhook-secret"
	payload := []byte(`{"event_id":"evt_1","event_type":"deposit.confirmed"}`)

	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodPost {
			t.Fatalf("expected POST, got %s", r.Method)
		}
		if got := r.Header.Get("X-DepositGate-Event-Id"); got != "evt_1" {
			t.Fatalf("expected event id header evt_1, got %s", got)
		}
		if got := r.Header.Get("Idempotency-Key"); got != "evt_1" {
			t.Fatalf("expected idempotency key evt_1, got %s", got)
		}
		if got := r.Header.Get("X-DepositGate-Event-Type"); got != "deposit.confirmed" {
			t.Fatalf("expected event type header, got %s", got)
		}
		if got := r.Header.Get("X-DepositGate-Delivery-Attempt"); got != "3" {
			t.Fatalf("expected attempt header 3, got %s", got)
		}
		timestamp := strings.TrimSpace(r.Header.Get("X-DepositGate-Timestamp"))
		if timestamp == "" {
			t.Fatalf("expected timestamp header")
		}
		nonce := strings.TrimSpace(r.Header.Get("X-DepositGate-Nonce"))
		if nonce == "" {
			t.Fatalf("expected nonce header")
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatalf("failed to read request body: %v", err)
		}
		expectedSignature := BuildExpectedSignatureHeader(
			secret,
			timestamp,
			nonce,
			"evt_1",
			"deposit.confirmed",
			body,
		)
		if got := r.Header.Get("X-DepositGate-Signature"); got != expectedSignature {
			t.Fatalf("expected signature %s, got %s", expectedSignature, got)
		}
		w.WriteHeader(nethttp.StatusNoContent)
	}))
	defer server.Close()

	gateway := NewGateway(Config{
		HMACSecret: secret,
	})
	output, appErr := gateway.SendEvent(context.Background(), dto.DeliverEventInput{
		EventID:         "evt_1",
		EventType:       "deposit.confirmed",
		DeliveryAttempt: 3,
		DestinationURL:  server.URL,
		Payload:         payload,
	})
	if appErr != nil {
		t.Fatalf("expected no error, got %+v", appErr)
	}
	if output.StatusCode != nethttp.StatusNoContent {
		t.Fatalf("expected status %d, got %d", nethttp.StatusNoContent, output.StatusCode)
	}
}

func TestSendEventNon2xxReturnsError(t *testing.T) {
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.WriteHeader(nethttp.StatusBadGateway)
		_, _ = w.Write([]byte("upstream unavailable"))
	}))
	defer server.Close()

	gateway := NewGateway(Config{
		HMACSecret: "webhook-secret",
	})
	output, appErr := gateway.SendEvent(context.Background(), dto.DeliverEventInput{
		EventID:        "evt_2",
		EventType:      "deposit.confirmed",
		DestinationURL: server.URL,
		Payload:        []byte(`{"event_id":"evt_2"}`),
	})
	if appErr == nil {
		t.Fatalf("expected error")
	}
	if appErr.Code != "webhook_delivery_failed" {
		t.Fatalf("expected webhook_delivery_failed, got %s", appErr.Code)
	}
	if output.StatusCode != nethttp.StatusBadGateway {
		t.Fatalf("expected status %d, got %d", nethttp.StatusBadGateway, output.StatusCode)
	}
}

func TestSendEventUsesDefaultAttemptHeader(t *testing.T) {
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if got := r.Header.Get("X-DepositGate-Delivery-Attempt"); got != "1" {
			t.Fatalf("expected default attempt header 1, got %s", got)
		}
		w.WriteHeader(nethttp.StatusNoContent)
	}))
	defer server.Close()

	gateway := NewGateway(Config{
		HMACSecret: "webhook-secret",
	})
	_, appErr := gateway.SendEvent(context.Background(), dto.DeliverEventInput{
		EventID:        "evt_3",
		EventType:      "deposit.expired",
		DestinationURL: server.URL,
		Payload:        []byte(`{"event_id":"evt_3"}`),
	})
	if appErr != nil {
		t.Fatalf("expected no error, got %+v", appErr)
	}
}

func TestSendEventValidatesInput(t *testing.T) {
	gateway := NewGateway(Config{
		HMACSecret: "webhook-secret",
	})

	testCases := []struct {
		name         string
		input        dto.DeliverEventInput
		expectedCode string
	}{
		{
			name: "missing destination",
			input: dto.DeliverEventInput{
				EventID:   "evt_4",
				EventType: "deposit.confirmed",
				Payload:   []byte(`{}`),
			},
			expectedCode: "webhook_destination_missing",
		},
		{
			name: "missing event id",
			input: dto.DeliverEventInput{
				EventType:      "deposit.confirmed",
				DestinationURL: "https://hooks.example.com/evt",
				Payload:        []byte(`{}`),
			},
			expectedCode: "webhook_event_id_missing",
		},
		{
			name: "missing event type",
			input: dto.DeliverEventInput{
				EventID:        "evt_4",
				DestinationURL: "https://hooks.example.com/evt",
				Payload:        []byte(`{}`),
			},
			expectedCode: "webhook_event_type_missing",
		},
		{
			name: "missing payload",
			input: dto.DeliverEventInput{
				EventID:        "evt_4",
				EventType:      "deposit.confirmed",
				DestinationURL: "https://hooks.example.com/evt",
			},
			expectedCode: "webhook_payload_missing",
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			_, appErr := gateway.SendEvent(context.Background(), testCase.input)
			if appErr == nil {
				t.Fatalf("expected error")
			}
			if appErr.Code != testCase.expectedCode {
				t.Fatalf("expected %s, got %s", testCase.expectedCode, appErr.Code)
			}
		})
	}
}
