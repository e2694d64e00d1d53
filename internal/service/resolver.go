package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/shortkit/shortkit/internal/cache"
	"github.com/shortkit/shortkit/internal/models"
	"github.com/shortkit/shortkit/internal/repository"
	"github.com/shortkit/shortkit/internal/shortcode"
)

// Resolve maps a short code back to its long URL: cache first, store on a
// miss with populate-on-read. Malformed codes never reach the cache or the
// store. Click accounting is queued after the lookup and never delays or
// fails the resolution.
func (s *Shortener) Resolve(ctx context.Context, code, userAgent, referrer string) (string, error) {
	if !shortcode.Valid(code) {
		return "", ErrNotFound
	}

	longURL, err := s.cache.GetURL(ctx, code)
	switch {
	case err == nil:
		// hit
	case errors.Is(err, cache.ErrMiss):
		longURL, err = s.lookupAndPopulate(ctx, code)
		if err != nil {
			return "", err
		}
	default:
		// Cache unreachable: degrade to store-only lookups.
		s.logger.Warn("Cache degraded, resolving from store",
			zap.String("shortCode", code),
			zap.Error(err))
		longURL, err = s.lookupAndPopulate(ctx, code)
		if err != nil {
			return "", err
		}
	}

	s.recordClick(models.ClickEvent{
		ShortCode:  code,
		OccurredAt: time.Now(),
		UserAgent:  userAgent,
		Referrer:   referrer,
	})

	return longURL, nil
}

func (s *Shortener) lookupAndPopulate(ctx context.Context, code string) (string, error) {
	link, err := s.store.FindActiveByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", err
	}

	// Populate-on-read is best effort.
	if err := s.cache.SetURL(ctx, code, link.LongURL, cacheTTL(link.ExpiresAt)); err != nil {
		s.logger.Warn("Failed to populate cache",
			zap.String("shortCode", code),
			zap.Error(err))
	}

	return link.LongURL, nil
}

// recordClick hands the event to the background workers without blocking.
// When the queue is full the click is dropped rather than delaying the
// redirect; click accounting is best effort end to end.
func (s *Shortener) recordClick(event models.ClickEvent) {
	select {
	case s.clickEvents <- event:
	default:
		s.logger.Warn("Click queue full, dropping event",
			zap.String("shortCode", event.ShortCode))
	}
}
