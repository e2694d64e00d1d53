package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/shortkit/shortkit/internal/middleware"
	"github.com/shortkit/shortkit/internal/models"
	"github.com/shortkit/shortkit/internal/service"
)

func (h *Handler) RegisterHandler(rw http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(&req); err != nil {
		h.writeErrorMessage(rw, http.StatusBadRequest, "Invalid JSON")
		return
	}

	account, err := h.auth.Register(r.Context(), req)
	if err != nil {
		h.writeError(rw, err)
		return
	}

	h.writeData(rw, http.StatusCreated, "Account created successfully", account)
}

func (h *Handler) LoginHandler(rw http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(&req); err != nil {
		h.writeErrorMessage(rw, http.StatusBadRequest, "Invalid JSON")
		return
	}

	account, token, err := h.auth.Login(r.Context(), req)
	if err != nil {
		h.writeError(rw, err)
		return
	}

	http.SetCookie(rw, &http.Cookie{
		Name:     middleware.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(service.SessionTTL),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	h.writeData(rw, http.StatusOK, "Login successful", account)
}

func (h *Handler) LogoutHandler(rw http.ResponseWriter, r *http.Request) {
	token, ok := middleware.TokenFromContext(r.Context())
	if ok {
		if err := h.auth.Logout(r.Context(), token); err != nil {
			h.logger.Warn("Failed to drop session on logout", zap.Error(err))
		}
	}

	http.SetCookie(rw, &http.Cookie{
		Name:     middleware.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	h.writeData(rw, http.StatusOK, "Logged out successfully", nil)
}

func (h *Handler) ProfileHandler(rw http.ResponseWriter, r *http.Request) {
	account, ok := middleware.AccountFromContext(r.Context())
	if !ok {
		h.writeErrorMessage(rw, http.StatusUnauthorized, "Access denied")
		return
	}

	h.writeData(rw, http.StatusOK, "", account)
}
