package controllers

import (
	"encoding/json"
	"io"
	"log"
	"net/http"

	"depositgate/internal/application/dto"
	portsin "depositgate/internal/application/ports/in"
	apperrors "depositgate/internal/shared_kernel/errors"
)

type PoolController struct {
	statusUseCase portsin.GetPoolStatusUseCase
	seedUseCase   portsin.SeedAddressesUseCase
	logger        *log.Logger
}

type seedAddressesPayload struct {
	Addresses []string `json:"addresses"`
}

func NewPoolController(
	statusUseCase portsin.GetPoolStatusUseCase,
	seedUseCase portsin.SeedAddressesUseCase,
	logger *log.Logger,
) *PoolController {
	return &PoolController{
		statusUseCase: statusUseCase,
		seedUseCase:   seedUseCase,
		logger:        logger,
	}
}

func (c *PoolController) GetPoolStatus(w http.ResponseWriter, r *http.Request) {
	resource, appErr := c.statusUseCase.Execute(r.Context(), dto.GetPoolStatusQuery{})
	if appErr != nil {
		c.logger.Printf("request error path=/v1/pool/status method=%s code=%s message=%s", r.Method, appErr.Code, appErr.Message)
		writeAppError(w, appErr)
		return
	}

	writeJSON(w, http.StatusOK, resource)
}

func (c *PoolController) SeedAddresses(w http.ResponseWriter, r *http.Request) {
	payload, appErr := parseSeedAddressesPayload(r.Body)
	if appErr != nil {
		writeAppError(w, appErr)
		return
	}

	output, appErr := c.seedUseCase.Execute(r.Context(), dto.SeedAddressesCommand{Addresses: payload.Addresses})
	if appErr != nil {
		c.logger.Printf("request error path=/v1/pool/addresses method=%s code=%s message=%s", r.Method, appErr.Code, appErr.Message)
		writeAppError(w, appErr)
		return
	}

	writeJSON(w, http.StatusCreated, output)
}

func parseSeedAddressesPayload(body io.Reader) (seedAddressesPayload, *apperrors.AppError) {
	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()

	payload := seedAddressesPayload{}
	if err := decoder.Decode(&payload); err != nil {
		return seedAddressesPayload{}, apperrors.NewValidation(
			"invalid_request",
			"request body must be valid JSON",
			map[string]any{"error": err.Error()},
		)
	}

	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return seedAddressesPayload{}, apperrors.NewValidation(
			"invalid_request",
			"request body must contain a single JSON object",
			nil,
		)
	}

	return payload, nil
}
