package handler

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

func (h *Handler) HealthHandler(rw http.ResponseWriter, r *http.Request) {
	if err := h.shortener.Ping(r.Context()); err != nil {
		h.logger.Error("Store ping failed", zap.Error(err))
		h.writeErrorMessage(rw, http.StatusInternalServerError, "Store unavailable")
		return
	}

	h.writeData(rw, http.StatusOK, "", map[string]any{
		"status":    "OK",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
