package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"depositgate/internal/application/dto"
	apperrors "depositgate/internal/shared_kernel/errors"
)

func TestDepositsControllerRequestDepositCreated(t *testing.T) {
	controller := NewDepositsController(stubRequestUseCase{}, stubStatusUseCase{}, log.New(io.Discard, "", 0))

	body := bytes.NewBufferString(`{"amount_minor":"25000000","asset":"USDT"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/deposits", body)
	rec := httptest.NewRecorder()

	controller.RequestDeposit(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d body=%s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("Location") != "/v1/deposits/dep_test" {
		t.Fatalf("unexpected Location header: %q", rec.Header().Get("Location"))
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte(`"state":"pending"`)) {
		t.Fatalf("expected pending state in payload, got %s", rec.Body.String())
	}
}

func TestDepositsControllerRequestDepositInvalidJSON(t *testing.T) {
	controller := NewDepositsController(stubRequestUseCase{}, stubStatusUseCase{}, log.New(io.Discard, "", 0))

	req := httptest.NewRequest(http.MethodPost, "/v1/deposits", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()

	controller.RequestDeposit(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d body=%s", rec.Code, rec.Body.String())
	}

	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("expected valid json: %v", err)
	}
	if _, ok := payload["error"]; !ok {
		t.Fatalf("expected error envelope, got %v", payload)
	}
}

func TestDepositsControllerRequestDepositPoolExhausted(t *testing.T) {
	controller := NewDepositsController(stubRequestUseCase{
		appErr: apperrors.NewExhausted("pool_exhausted", "no address available", nil),
	}, stubStatusUseCase{}, log.New(io.Discard, "", 0))

	body := bytes.NewBufferString(`{"amount_minor":"25000000","asset":"USDT"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/deposits", body)
	rec := httptest.NewRecorder()

	controller.RequestDeposit(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d body=%s", rec.Code, rec.Body.String())
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte("pool_exhausted")) {
		t.Fatalf("expected pool_exhausted code, got %s", rec.Body.String())
	}
}

func TestDepositsControllerRequestDepositProviderUnavailable(t *testing.T) {
	controller := NewDepositsController(stubRequestUseCase{
		appErr: apperrors.NewUnavailable("provider_rate_limited", "rate limit hit", map[string]any{"retry_after_seconds": 7}),
	}, stubStatusUseCase{}, log.New(io.Discard, "", 0))

	body := bytes.NewBufferString(`{"amount_minor":"25000000","asset":"USDT"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/deposits", body)
	rec := httptest.NewRecorder()

	controller.RequestDeposit(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d body=%s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("Retry-After") != "7" {
		t.Fatalf("expected Retry-After 7, got %q", rec.Header().Get("Retry-After"))
	}
}

func TestDepositsControllerGetDeposit(t *testing.T) {
	controller := NewDepositsController(stubRequestUseCase{}, stubStatusUseCase{}, log.New(io.Discard, "", 0))

	req := chiRequest(http.MethodGet, "/v1/deposits/dep_test", "id", "dep_test")
	rec := httptest.NewRecorder()

	controller.GetDeposit(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte(`"id":"dep_test"`)) {
		t.Fatalf("expected id in payload, got %s", rec.Body.String())
	}
}

func TestDepositsControllerGetDepositNotFound(t *testing.T) {
	controller := NewDepositsController(stubRequestUseCase{}, stubStatusUseCase{
		appErr: apperrors.NewNotFound("deposit_not_found", "deposit request was not found", nil),
	}, log.New(io.Discard, "", 0))

	req := chiRequest(http.MethodGet, "/v1/deposits/dep_missing", "id", "dep_missing")
	rec := httptest.NewRecorder()

	controller.GetDeposit(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d body=%s", rec.Code, rec.Body.String())
	}
}

func chiRequest(method, target, paramKey, paramValue string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(paramKey, paramValue)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

type stubRequestUseCase struct {
	appErr *apperrors.AppError
}

func (s stubRequestUseCase) Execute(_ context.Context, _ dto.RequestDepositCommand) (dto.RequestDepositOutput, *apperrors.AppError) {
	if s.appErr != nil {
		return dto.RequestDepositOutput{}, s.appErr
	}
	return dto.RequestDepositOutput{
		Resource: dto.DepositResource{
			ID:      "dep_test",
			Address: "TJCnKsPa7y5okkXvQAidZBzqx3QyQ6sxMW",
			State:   "pending",
		},
	}, nil
}

type stubStatusUseCase struct {
	appErr *apperrors.AppError
}

func (s stubStatusUseCase) Execute(_ context.Context, query dto.GetDepositStatusQuery) (dto.DepositResource, *apperrors.AppError) {
	if s.appErr != nil {
		return dto.DepositResource{}, s.appErr
	}
	return dto.DepositResource{ID: query.ID, State: "pending"}, nil
}
