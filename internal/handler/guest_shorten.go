package handler

import (
	"encoding/json"
	"net/http"

	"github.com/shortkit/shortkit/internal/models"
)

// GuestShortenHandler creates a temporary, anonymous link that lives only in
// the cache for 24 hours.
func (h *Handler) GuestShortenHandler(rw http.ResponseWriter, r *http.Request) {
	var req models.GuestShortenRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(&req); err != nil {
		h.writeErrorMessage(rw, http.StatusBadRequest, "Invalid JSON")
		return
	}

	guestLink, err := h.shortener.CreateGuestLink(r.Context(), req.LongURL)
	if err != nil {
		h.writeError(rw, err)
		return
	}

	h.writeData(rw, http.StatusCreated, "URL shortened successfully (temporary)", guestLink)
}
