package service

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shortkit/shortkit/internal/cache"
	"github.com/shortkit/shortkit/internal/models"
	"github.com/shortkit/shortkit/internal/repository"
	"github.com/shortkit/shortkit/internal/shortcode"
)

const (
	maxURLLength   = 2048
	maxGenAttempts = 10
)

func validateLongURL(longURL string) error {
	if longURL == "" || len(longURL) > maxURLLength {
		return ErrInvalidURL
	}

	parsed, err := url.Parse(longURL)
	if err != nil {
		return ErrInvalidURL
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return ErrInvalidURL
	}
	if parsed.Host == "" {
		return ErrInvalidURL
	}
	return nil
}

// cacheTTL clamps the cache entry lifetime so a mapping never outlives its
// expiry. The cache is trusted as a positive cache on the read path.
func cacheTTL(expiresAt *time.Time) time.Duration {
	ttl := cache.URLTTL
	if expiresAt != nil {
		if remaining := time.Until(*expiresAt); remaining < ttl {
			ttl = remaining
		}
	}
	return ttl
}

// ShortURL returns the fully qualified short URL for a code.
func (s *Shortener) ShortURL(code string) string {
	full, _ := url.JoinPath(s.baseURL, code)
	return full
}

// CreateGuestLink shortens a URL for an anonymous caller. The mapping lives
// only in the cache with a 24-hour TTL; no durable row is created, so the
// cache is the sole source of truth and its failure fails the operation.
func (s *Shortener) CreateGuestLink(ctx context.Context, longURL string) (*models.GuestLink, error) {
	longURL = strings.TrimSpace(longURL)
	if err := validateLongURL(longURL); err != nil {
		s.logger.Warn("Invalid guest URL rejected", zap.String("url", longURL))
		return nil, err
	}

	var code string
	for attempts := 0; ; attempts++ {
		if attempts == maxGenAttempts {
			s.logger.Error("Failed to generate unique guest code after max attempts")
			return nil, ErrGenerationExhausted
		}

		code = shortcode.Generate()
		_, err := s.cache.GetURL(ctx, code)
		if errors.Is(err, cache.ErrMiss) {
			break
		}
		if err != nil {
			return nil, err
		}
		// occupied, try another
	}

	if err := s.cache.SetURL(ctx, code, longURL, cache.GuestTTL); err != nil {
		return nil, err
	}

	return &models.GuestLink{
		LongURL:   longURL,
		ShortCode: code,
		ShortURL:  s.ShortURL(code),
		ExpiresIn: "24 hours",
	}, nil
}

// CreateLink shortens a URL for an account. Creation is idempotent per
// (owner, long URL): an existing active row is returned unchanged. Custom
// codes must be unused across every row, active or not. Uniqueness of
// generated codes is ultimately arbitrated by the store's constraint, not by
// any in-process lock.
func (s *Shortener) CreateLink(ctx context.Context, ownerID uuid.UUID, req models.ShortenRequest) (*models.ShortLink, error) {
	longURL := strings.TrimSpace(req.LongURL)
	if err := validateLongURL(longURL); err != nil {
		s.logger.Warn("Invalid URL rejected", zap.String("url", longURL))
		return nil, err
	}

	existing, err := s.store.FindActiveByOwnerAndURL(ctx, ownerID, longURL)
	if err == nil {
		// Idempotent per (owner, long URL): hand back the existing row and
		// signal that nothing was created.
		return existing, ErrLinkExists
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	link := &models.ShortLink{
		ID:        uuid.New(),
		LongURL:   longURL,
		OwnerID:   &ownerID,
		ExpiresAt: req.ExpiresAt,
	}

	if req.CustomCode != "" {
		if err := s.createWithCustomCode(ctx, link, req.CustomCode); err != nil {
			return nil, err
		}
	} else {
		if err := s.createWithGeneratedCode(ctx, link); err != nil {
			return nil, err
		}
	}

	// Write-through is best effort; the store already holds the row.
	if err := s.cache.SetURL(ctx, link.ShortCode, link.LongURL, cacheTTL(link.ExpiresAt)); err != nil {
		s.logger.Warn("Failed to cache new link",
			zap.String("shortCode", link.ShortCode),
			zap.Error(err))
	}

	return link, nil
}

func (s *Shortener) createWithCustomCode(ctx context.Context, link *models.ShortLink, customCode string) error {
	if !shortcode.Valid(customCode) {
		return ErrInvalidCode
	}

	taken, err := s.store.CodeInUse(ctx, customCode)
	if err != nil {
		return err
	}
	if taken {
		return ErrCodeTaken
	}

	link.ShortCode = customCode
	link.CustomCode = &customCode

	if err := s.store.SaveLink(ctx, link); err != nil {
		// A racing insert of the same code loses here.
		if errors.Is(err, repository.ErrDuplicate) {
			return ErrCodeTaken
		}
		return err
	}
	return nil
}

func (s *Shortener) createWithGeneratedCode(ctx context.Context, link *models.ShortLink) error {
	for attempts := 0; attempts < maxGenAttempts; attempts++ {
		code := shortcode.Generate()

		taken, err := s.store.CodeInUse(ctx, code)
		if err != nil {
			return err
		}
		if taken {
			continue
		}

		link.ShortCode = code
		link.CustomCode = nil

		err = s.store.SaveLink(ctx, link)
		if errors.Is(err, repository.ErrDuplicate) {
			continue
		}
		return err
	}

	s.logger.Error("Failed to generate unique short code after max attempts")
	return ErrGenerationExhausted
}
