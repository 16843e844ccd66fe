// Package handler exposes the integration over HTTP: slip lifecycle,
// statement fetch/reconciliation and the bank payment webhook.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/higorocha/SistemaWebAlencarFrutas-sub009/internal/domain"

	"go.uber.org/zap"
)

type errorResponse struct {
	Error  string             `json:"error"`
	Errors []domain.BankError `json:"errors,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// actorFrom pulls the acting user from the request. There is no end-user
// auth here; upstream services identify the actor by header.
func actorFrom(r *http.Request) string {
	return r.Header.Get("X-Actor-Id")
}

// handleServiceError maps domain errors to HTTP responses.
func handleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var notFound *domain.ErrNotFound
	var validation *domain.ErrValidation
	var incomplete *domain.ErrIncompleteClient
	var authExpired *domain.ErrAuthExpired
	var bankAPI *domain.ErrBankAPI
	var external *domain.ErrExternalService
	var timeout *domain.ErrTimeout
	var circuitOpen *domain.ErrCircuitOpen
	var duplicate *domain.ErrDuplicate
	var mutation *domain.ErrMutationNotAllowed

	switch {
	case errors.As(err, &notFound):
		logger.Debug("not found", zap.String("error", err.Error()))
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &validation):
		logger.Debug("validation error", zap.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &incomplete):
		logger.Warn("incomplete client",
			zap.String("client_id", incomplete.ClientID),
			zap.Strings("missing", incomplete.Missing),
		)
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":          err.Error(),
			"client_id":      incomplete.ClientID,
			"missing_fields": incomplete.Missing,
		})
	case errors.As(err, &authExpired):
		logger.Warn("bank token expired", zap.String("credential_id", authExpired.CredentialID))
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.As(err, &bankAPI):
		logger.Warn("bank rejected the request",
			zap.Int("bank_status", bankAPI.StatusCode),
			zap.String("errors", bankAPI.Messages()),
		)
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error(), Errors: bankAPI.Errors})
	case errors.As(err, &mutation):
		logger.Debug("mutation rejected", zap.String("error", err.Error()))
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &duplicate):
		logger.Debug("duplicate resource", zap.String("error", err.Error()))
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &circuitOpen):
		logger.Error("circuit breaker open", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &timeout):
		logger.Error("request timeout", zap.Error(err))
		writeError(w, http.StatusGatewayTimeout, err.Error())
	case errors.As(err, &external):
		logger.Error("external service failure", zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		logger.Error("unhandled error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
