package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shortkit/shortkit/internal/models"
	"github.com/shortkit/shortkit/internal/repository"
	"github.com/shortkit/shortkit/internal/shortcode"
)

const (
	defaultPageLimit = 10
	maxPageLimit     = 50
)

// enhance derives the response fields for one link. Observed clicks are the
// maximum of the durable and cached counters: the cache runs ahead of the
// durable value between flushes, and the durable value survives counter TTL
// expiry.
func (s *Shortener) enhance(link models.ShortLink, cachedClicks int64, now time.Time) models.EnhancedLink {
	total := link.Clicks
	if cachedClicks > total {
		total = cachedClicks
	}
	return models.EnhancedLink{
		ShortLink:   link,
		ShortURL:    s.ShortURL(link.ShortCode),
		TotalClicks: total,
		IsExpired:   link.Expired(now),
	}
}

// ListLinks returns one page of the owner's active links, newest first.
// limit is clamped to [1,50] and page to >= 1.
func (s *Shortener) ListLinks(ctx context.Context, ownerID uuid.UUID, page, limit int) (*models.LinkPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	links, total, err := s.store.ListByOwner(ctx, ownerID, (page-1)*limit, limit)
	if err != nil {
		return nil, err
	}

	codes := make([]string, len(links))
	for i, link := range links {
		codes[i] = link.ShortCode
	}

	counters, err := s.cache.GetClicksBatch(ctx, codes)
	if err != nil {
		s.logger.Warn("Failed to fetch cached click counters", zap.Error(err))
		counters = nil
	}

	now := time.Now()
	urls := make([]models.EnhancedLink, len(links))
	for i, link := range links {
		urls[i] = s.enhance(link, counters[link.ShortCode], now)
	}

	pages := int((total + int64(limit) - 1) / int64(limit))

	return &models.LinkPage{
		URLs: urls,
		Pagination: models.Pagination{
			Current: page,
			Pages:   pages,
			Total:   total,
			Limit:   limit,
			HasNext: page < pages,
			HasPrev: page > 1,
		},
	}, nil
}

// GetLinkStats returns one of the owner's active links with derived fields.
func (s *Shortener) GetLinkStats(ctx context.Context, ownerID uuid.UUID, code string) (*models.EnhancedLink, error) {
	if !shortcode.Valid(code) {
		return nil, ErrNotFound
	}

	link, err := s.store.FindActiveByOwnerAndCode(ctx, ownerID, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	cachedClicks, err := s.cache.GetClicks(ctx, code)
	if err != nil {
		s.logger.Warn("Failed to fetch cached clicks",
			zap.String("shortCode", code),
			zap.Error(err))
		cachedClicks = 0
	}

	enhanced := s.enhance(*link, cachedClicks, time.Now())
	return &enhanced, nil
}

// DeleteLink soft-deletes the owner's link. The store performs the
// compare-and-set; a link that is already inactive or belongs to another
// owner reports ErrNotFound. Cache eviction afterwards is best effort: a
// stale URL entry serves at most until its TTL, and resolution re-checks
// is_active on every cache miss.
func (s *Shortener) DeleteLink(ctx context.Context, ownerID uuid.UUID, code string) error {
	if !shortcode.Valid(code) {
		return ErrNotFound
	}

	if err := s.store.Deactivate(ctx, ownerID, code); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}

	if err := s.cache.DeleteURL(ctx, code); err != nil {
		s.logger.Warn("Failed to evict cached url",
			zap.String("shortCode", code),
			zap.Error(err))
	}
	if err := s.cache.DeleteClicks(ctx, code); err != nil {
		s.logger.Warn("Failed to evict clicks counter",
			zap.String("shortCode", code),
			zap.Error(err))
	}

	return nil
}
