package models

import (
	"time"

	"github.com/google/uuid"
)

// ShortLink is the durable code -> URL mapping. Rows are never hard-deleted;
// deactivation flips IsActive and the code stays reserved forever.
type ShortLink struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	LongURL    string     `db:"long_url" json:"longUrl"`
	ShortCode  string     `db:"short_code" json:"shortCode"`
	CustomCode *string    `db:"custom_code" json:"customCode,omitempty"`
	OwnerID    *uuid.UUID `db:"owner_id" json:"-"`
	Clicks     int64      `db:"clicks" json:"clicks"`
	IsActive   bool       `db:"is_active" json:"-"`
	ExpiresAt  *time.Time `db:"expires_at" json:"expiresAt"`
	CreatedAt  time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updatedAt"`
}

// Expired reports whether the link is past its expiry. Links without an
// expiry never expire.
func (l *ShortLink) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && l.ExpiresAt.Before(now)
}

// EnhancedLink is a ShortLink augmented with derived fields for listing and
// stats responses. TotalClicks folds the cache counter into the durable value.
type EnhancedLink struct {
	ShortLink
	ShortURL    string `json:"shortUrl"`
	TotalClicks int64  `json:"totalClicks"`
	IsExpired   bool   `json:"isExpired"`
}

// GuestLink is a cache-only temporary link. It has no durable row.
type GuestLink struct {
	LongURL   string `json:"longUrl"`
	ShortCode string `json:"shortCode"`
	ShortURL  string `json:"shortUrl"`
	ExpiresIn string `json:"expiresIn"`
}

type Account struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	IsActive     bool      `db:"is_active" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}

// ClickEvent is one recorded redirect, consumed by the analytics worker.
type ClickEvent struct {
	ShortCode  string    `json:"short_code"`
	OccurredAt time.Time `json:"occurred_at"`
	UserAgent  string    `json:"user_agent"`
	Referrer   string    `json:"referrer"`
}

type ShortenRequest struct {
	LongURL    string     `json:"longUrl"`
	CustomCode string     `json:"customCode,omitempty"`
	ExpiresAt  *time.Time `json:"expiresAt,omitempty"`
}

type GuestShortenRequest struct {
	LongURL string `json:"longUrl"`
}

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Pagination describes one page of a listing response.
type Pagination struct {
	Current int   `json:"current"`
	Pages   int   `json:"pages"`
	Total   int64 `json:"total"`
	Limit   int   `json:"limit"`
	HasNext bool  `json:"hasNext"`
	HasPrev bool  `json:"hasPrev"`
}

// LinkPage is the result of listing an owner's links.
type LinkPage struct {
	URLs       []EnhancedLink `json:"urls"`
	Pagination Pagination     `json:"pagination"`
}
