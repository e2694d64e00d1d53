// Package service holds the shortening and resolution engine: code
// generation, cache-then-store lookups, write-through population, click
// accounting, and soft deletes.
package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shortkit/shortkit/internal/models"
)

var (
	ErrInvalidURL          = errors.New("invalid url")
	ErrInvalidCode         = errors.New("invalid short code")
	ErrCodeTaken           = errors.New("code already taken")
	ErrLinkExists          = errors.New("url already exists")
	ErrGenerationExhausted = errors.New("failed to generate unique code")
	ErrNotFound            = errors.New("link not found")

	ErrInvalidUsername    = errors.New("invalid username")
	ErrInvalidEmail       = errors.New("invalid email")
	ErrWeakPassword       = errors.New("password too weak")
	ErrAccountExists      = errors.New("account already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Store is the durable, authoritative record of links and accounts.
type Store interface {
	SaveLink(ctx context.Context, link *models.ShortLink) error
	CodeInUse(ctx context.Context, code string) (bool, error)
	FindActiveByCode(ctx context.Context, code string) (*models.ShortLink, error)
	FindActiveByOwnerAndURL(ctx context.Context, ownerID uuid.UUID, longURL string) (*models.ShortLink, error)
	FindActiveByOwnerAndCode(ctx context.Context, ownerID uuid.UUID, code string) (*models.ShortLink, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID, offset, limit int) ([]models.ShortLink, int64, error)
	AddClicks(ctx context.Context, code string, n int64) error
	Deactivate(ctx context.Context, ownerID uuid.UUID, code string) error
	Ping(ctx context.Context) error
}

// Cache is the fast path: positive URL cache plus click counters. Every
// method may fail without taking the service down; the store remains
// authoritative.
type Cache interface {
	GetURL(ctx context.Context, code string) (string, error)
	SetURL(ctx context.Context, code, longURL string, ttl time.Duration) error
	DeleteURL(ctx context.Context, code string) error
	AddClicks(ctx context.Context, code string, n int64) (int64, error)
	GetClicks(ctx context.Context, code string) (int64, error)
	GetClicksBatch(ctx context.Context, codes []string) (map[string]int64, error)
	DeleteClicks(ctx context.Context, code string) error
	Ping(ctx context.Context) error
}

// ClickPublisher mirrors click events onto an external queue. Optional.
type ClickPublisher interface {
	Publish(ctx context.Context, event models.ClickEvent) error
}

type Shortener struct {
	store     Store
	cache     Cache
	publisher ClickPublisher
	baseURL   string
	logger    *zap.Logger

	clickEvents  chan models.ClickEvent
	batchTimeout time.Duration
	batchSize    int
	workers      int
	wg           sync.WaitGroup
	shutdownOnce sync.Once
	shutdown     chan struct{}
}

// NewShortener wires the engine and starts the click-accounting workers.
// publisher may be nil when no queue is configured.
func NewShortener(baseURL string, store Store, cache Cache, publisher ClickPublisher, logger *zap.Logger) *Shortener {
	s := &Shortener{
		store:        store,
		cache:        cache,
		publisher:    publisher,
		baseURL:      baseURL,
		logger:       logger,
		clickEvents:  make(chan models.ClickEvent, 1000),
		batchTimeout: 500 * time.Millisecond,
		batchSize:    100,
		workers:      2,
		shutdown:     make(chan struct{}),
	}

	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.clickWorker(i)
	}

	return s
}

// Ping checks the durable store. A cache failure is reported separately so
// callers can distinguish degraded from down.
func (s *Shortener) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Close drains queued click events and stops the workers.
func (s *Shortener) Close() {
	s.shutdownOnce.Do(func() {
		close(s.shutdown)
		close(s.clickEvents)
	})
	s.wg.Wait()
	s.logger.Info("All click workers stopped")
}
