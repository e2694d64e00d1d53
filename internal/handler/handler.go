package handler

import (
	"time"

	"go.uber.org/zap"

	"github.com/shortkit/shortkit/internal/middleware"
	"github.com/shortkit/shortkit/internal/service"
)

// Rate limits per route scope, fixed windows.
const (
	authRateMax       = 1000
	authRateWindow    = 15 * time.Minute
	urlRateMax        = 500
	urlRateWindow     = time.Hour
	generalRateMax    = 1000
	generalRateWindow = time.Hour
)

type Handler struct {
	shortener *service.Shortener
	auth      *service.Auth
	authMW    *middleware.Auth
	limiter   *middleware.RateLimiter
	logger    *zap.Logger

	// exposeErrors includes internal error detail in responses. Off in
	// production deployments.
	exposeErrors bool
}

func NewHandler(
	shortener *service.Shortener,
	auth *service.Auth,
	authMW *middleware.Auth,
	limiter *middleware.RateLimiter,
	logger *zap.Logger,
	exposeErrors bool,
) *Handler {
	return &Handler{
		shortener:    shortener,
		auth:         auth,
		authMW:       authMW,
		limiter:      limiter,
		logger:       logger,
		exposeErrors: exposeErrors,
	}
}
