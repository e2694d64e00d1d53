package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/shortkit/shortkit/internal/service"
)

type successResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

func (h *Handler) writeData(rw http.ResponseWriter, status int, message string, data any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)

	resp := successResponse{Success: true, Message: message, Data: data}
	if err := json.NewEncoder(rw).Encode(resp); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (h *Handler) writeErrorMessage(rw http.ResponseWriter, status int, message string) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)

	if err := json.NewEncoder(rw).Encode(errorResponse{Success: false, Message: message}); err != nil {
		h.logger.Error("Failed to encode error response", zap.Error(err))
	}
}

// writeError maps service errors onto HTTP statuses. Each sentinel has
// exactly one status; everything unrecognized is an internal error whose
// detail is suppressed unless the deployment exposes it.
func (h *Handler) writeError(rw http.ResponseWriter, err error) {
	var status int
	var message string

	switch {
	case errors.Is(err, service.ErrInvalidURL):
		status, message = http.StatusBadRequest, "Please provide a valid URL"
	case errors.Is(err, service.ErrInvalidCode):
		status, message = http.StatusBadRequest, "Custom code must be 4-20 letters, numbers, hyphens, or underscores"
	case errors.Is(err, service.ErrCodeTaken):
		status, message = http.StatusConflict, "Custom code is already taken"
	case errors.Is(err, service.ErrGenerationExhausted):
		status, message = http.StatusServiceUnavailable, "Could not generate a unique code, please try again"
	case errors.Is(err, service.ErrNotFound):
		status, message = http.StatusNotFound, "URL not found"
	case errors.Is(err, service.ErrInvalidUsername):
		status, message = http.StatusBadRequest, "Username must be 3-30 letters, numbers, or underscores"
	case errors.Is(err, service.ErrInvalidEmail):
		status, message = http.StatusBadRequest, "Please provide a valid email"
	case errors.Is(err, service.ErrWeakPassword):
		status, message = http.StatusBadRequest, "Password must be at least 6 characters with a lowercase letter, an uppercase letter, and a number"
	case errors.Is(err, service.ErrAccountExists):
		status, message = http.StatusConflict, "Username or email is already in use"
	case errors.Is(err, service.ErrInvalidCredentials):
		status, message = http.StatusUnauthorized, "Invalid credentials"
	default:
		status, message = http.StatusInternalServerError, "Internal server error"
		h.logger.Error("Unhandled service error", zap.Error(err))
	}

	resp := errorResponse{Success: false, Message: message}
	if status == http.StatusInternalServerError && h.exposeErrors {
		resp.Detail = err.Error()
	}

	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	if err := json.NewEncoder(rw).Encode(resp); err != nil {
		h.logger.Error("Failed to encode error response", zap.Error(err))
	}
}
