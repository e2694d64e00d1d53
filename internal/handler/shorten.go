package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shortkit/shortkit/internal/middleware"
	"github.com/shortkit/shortkit/internal/models"
	"github.com/shortkit/shortkit/internal/service"
)

// linkData is the creation/stats payload: the durable row plus the fully
// qualified short URL.
type linkData struct {
	models.ShortLink
	ShortURL string `json:"shortUrl"`
}

// ShortenHandler creates an owned short link. Repeating the same long URL
// for the same owner returns the existing link with 200 instead of 201.
func (h *Handler) ShortenHandler(rw http.ResponseWriter, r *http.Request) {
	account, ok := middleware.AccountFromContext(r.Context())
	if !ok {
		h.writeErrorMessage(rw, http.StatusUnauthorized, "Access denied")
		return
	}

	var req models.ShortenRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(&req); err != nil {
		h.writeErrorMessage(rw, http.StatusBadRequest, "Invalid JSON")
		return
	}

	link, err := h.shortener.CreateLink(r.Context(), account.ID, req)
	if err != nil && !errors.Is(err, service.ErrLinkExists) {
		h.writeError(rw, err)
		return
	}

	status := http.StatusCreated
	message := "URL shortened successfully"
	if errors.Is(err, service.ErrLinkExists) {
		status = http.StatusOK
		message = "URL already exists"
	}

	h.writeData(rw, status, message, linkData{
		ShortLink: *link,
		ShortURL:  h.shortener.ShortURL(link.ShortCode),
	})
}
