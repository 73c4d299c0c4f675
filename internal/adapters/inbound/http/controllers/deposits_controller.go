package controllers

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"depositgate/internal/application/dto"
	portsin "depositgate/internal/application/ports/in"
	apperrors "depositgate/internal/shared_kernel/errors"
)

type DepositsController struct {
	requestUseCase portsin.RequestDepositUseCase
	statusUseCase  portsin.GetDepositStatusUseCase
	logger         *log.Logger
}

type requestDepositPayload struct {
	AmountMinor string `json:"amount_minor"`
	Asset       string `json:"asset"`
}

func NewDepositsController(
	requestUseCase portsin.RequestDepositUseCase,
	statusUseCase portsin.GetDepositStatusUseCase,
	logger *log.Logger,
) *DepositsController {
	return &DepositsController{
		requestUseCase: requestUseCase,
		statusUseCase:  statusUseCase,
		logger:         logger,
	}
}

func (c *DepositsController) RequestDeposit(w http.ResponseWriter, r *http.Request) {
	payload, appErr := parseRequestDepositPayload(r.Body)
	if appErr != nil {
		writeAppError(w, appErr)
		return
	}

	output, appErr := c.requestUseCase.Execute(r.Context(), dto.RequestDepositCommand{
		AmountMinor: payload.AmountMinor,
		Asset:       payload.Asset,
	})
	if appErr != nil {
		c.logger.Printf("request error path=/v1/deposits method=%s code=%s message=%s", r.Method, appErr.Code, appErr.Message)
		writeAppError(w, appErr)
		return
	}

	w.Header().Set("Location", "/v1/deposits/"+output.Resource.ID)
	writeJSON(w, http.StatusCreated, output.Resource)
}

func (c *DepositsController) GetDeposit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	resource, appErr := c.statusUseCase.Execute(r.Context(), dto.GetDepositStatusQuery{ID: id})
	if appErr != nil {
		c.logger.Printf("request error path=/v1/deposits/{id} method=%s code=%s message=%s", r.Method, appErr.Code, appErr.Message)
		writeAppError(w, appErr)
		return
	}

	writeJSON(w, http.StatusOK, resource)
}

func parseRequestDepositPayload(body io.Reader) (requestDepositPayload, *apperrors.AppError) {
	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()
	decoder.UseNumber()

	payload := requestDepositPayload{}
	if err := decoder.Decode(&payload); err != nil {
		return requestDepositPayload{}, apperrors.NewValidation(
			"invalid_request",
			"request body must be valid JSON",
			map[string]any{"error": err.Error()},
		)
	}

	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return requestDepositPayload{}, apperrors.NewValidation(
			"invalid_request",
			"request body must contain a single JSON object",
			nil,
		)
	}

	payload.AmountMinor = strings.TrimSpace(payload.AmountMinor)
	if payload.AmountMinor == "" {
		return requestDepositPayload{}, apperrors.NewValidation(
			"invalid_request",
			"amount_minor is required",
			map[string]any{"field": "amount_minor"},
		)
	}

	return payload, nil
}
