package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shortkit/shortkit/internal/cache"
	"github.com/shortkit/shortkit/internal/models"
	"github.com/shortkit/shortkit/internal/repository"
)

var errStoreDown = errors.New("store down")

// fakeStore is an in-memory Store with the same uniqueness and soft-delete
// semantics as the Postgres repository.
type fakeStore struct {
	mu       sync.Mutex
	links    map[string]*models.ShortLink
	accounts map[uuid.UUID]*models.Account
	down     bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		links:    make(map[string]*models.ShortLink),
		accounts: make(map[uuid.UUID]*models.Account),
	}
}

func (f *fakeStore) SaveLink(_ context.Context, link *models.ShortLink) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return errStoreDown
	}

	for _, existing := range f.links {
		if existing.ShortCode == link.ShortCode ||
			(existing.CustomCode != nil && *existing.CustomCode == link.ShortCode) {
			return repository.ErrDuplicate
		}
		if link.CustomCode != nil && existing.ShortCode == *link.CustomCode {
			return repository.ErrDuplicate
		}
	}

	now := time.Now()
	link.IsActive = true
	link.CreatedAt = now
	link.UpdatedAt = now
	stored := *link
	f.links[link.ShortCode] = &stored
	return nil
}

func (f *fakeStore) CodeInUse(_ context.Context, code string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return false, errStoreDown
	}

	for _, link := range f.links {
		if link.ShortCode == code || (link.CustomCode != nil && *link.CustomCode == code) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) FindActiveByCode(_ context.Context, code string) (*models.ShortLink, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return nil, errStoreDown
	}

	link, ok := f.links[code]
	if !ok || !link.IsActive || link.Expired(time.Now()) {
		return nil, repository.ErrNotFound
	}
	copied := *link
	return &copied, nil
}

func (f *fakeStore) FindActiveByOwnerAndURL(_ context.Context, ownerID uuid.UUID, longURL string) (*models.ShortLink, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return nil, errStoreDown
	}

	for _, link := range f.links {
		if link.IsActive && link.OwnerID != nil && *link.OwnerID == ownerID && link.LongURL == longURL {
			copied := *link
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeStore) FindActiveByOwnerAndCode(_ context.Context, ownerID uuid.UUID, code string) (*models.ShortLink, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	link, ok := f.links[code]
	if !ok || !link.IsActive || link.OwnerID == nil || *link.OwnerID != ownerID {
		return nil, repository.ErrNotFound
	}
	copied := *link
	return &copied, nil
}

func (f *fakeStore) ListByOwner(_ context.Context, ownerID uuid.UUID, offset, limit int) ([]models.ShortLink, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var owned []models.ShortLink
	for _, link := range f.links {
		if link.IsActive && link.OwnerID != nil && *link.OwnerID == ownerID {
			owned = append(owned, *link)
		}
	}
	sort.Slice(owned, func(i, j int) bool {
		return owned[i].CreatedAt.After(owned[j].CreatedAt)
	})

	total := int64(len(owned))
	if offset >= len(owned) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(owned) {
		end = len(owned)
	}
	return owned[offset:end], total, nil
}

func (f *fakeStore) AddClicks(_ context.Context, code string, n int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return errStoreDown
	}

	if link, ok := f.links[code]; ok {
		link.Clicks += n
	}
	return nil
}

func (f *fakeStore) Deactivate(_ context.Context, ownerID uuid.UUID, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	link, ok := f.links[code]
	if !ok || !link.IsActive || link.OwnerID == nil || *link.OwnerID != ownerID {
		return repository.ErrNotFound
	}
	link.IsActive = false
	return nil
}

func (f *fakeStore) Ping(context.Context) error {
	if f.down {
		return errStoreDown
	}
	return nil
}

func (f *fakeStore) CreateAccount(_ context.Context, account *models.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, existing := range f.accounts {
		if existing.Username == account.Username || existing.Email == account.Email {
			return repository.ErrDuplicate
		}
	}
	account.IsActive = true
	account.CreatedAt = time.Now()
	stored := *account
	f.accounts[account.ID] = &stored
	return nil
}

func (f *fakeStore) FindAccountByEmail(_ context.Context, email string) (*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, account := range f.accounts {
		if account.Email == email {
			copied := *account
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeStore) FindAccountByID(_ context.Context, id uuid.UUID) (*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	account, ok := f.accounts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *account
	return &copied, nil
}

func (f *fakeStore) deactivateAccount(id uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if account, ok := f.accounts[id]; ok {
		account.IsActive = false
	}
}

var errCacheDown = errors.New("cache down")

type cachedURL struct {
	longURL   string
	expiresAt time.Time
}

// fakeCache is an in-memory Cache with a controllable clock so TTL expiry
// can be tested without sleeping.
type fakeCache struct {
	mu       sync.Mutex
	urls     map[string]cachedURL
	clicks   map[string]int64
	sessions map[string]string
	now      time.Time
	down     bool
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		urls:     make(map[string]cachedURL),
		clicks:   make(map[string]int64),
		sessions: make(map[string]string),
		now:      time.Now(),
	}
}

func (f *fakeCache) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func (f *fakeCache) GetURL(_ context.Context, code string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return "", errCacheDown
	}

	entry, ok := f.urls[code]
	if !ok || !entry.expiresAt.After(f.now) {
		delete(f.urls, code)
		return "", cache.ErrMiss
	}
	return entry.longURL, nil
}

func (f *fakeCache) SetURL(_ context.Context, code, longURL string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return errCacheDown
	}

	f.urls[code] = cachedURL{longURL: longURL, expiresAt: f.now.Add(ttl)}
	return nil
}

func (f *fakeCache) DeleteURL(_ context.Context, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return errCacheDown
	}
	delete(f.urls, code)
	return nil
}

func (f *fakeCache) AddClicks(_ context.Context, code string, n int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return 0, errCacheDown
	}
	f.clicks[code] += n
	return f.clicks[code], nil
}

func (f *fakeCache) GetClicks(_ context.Context, code string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return 0, errCacheDown
	}
	return f.clicks[code], nil
}

func (f *fakeCache) GetClicksBatch(_ context.Context, codes []string) (map[string]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return nil, errCacheDown
	}

	result := make(map[string]int64, len(codes))
	for _, code := range codes {
		if n, ok := f.clicks[code]; ok {
			result[code] = n
		}
	}
	return result, nil
}

func (f *fakeCache) DeleteClicks(_ context.Context, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return errCacheDown
	}
	delete(f.clicks, code)
	return nil
}

func (f *fakeCache) SetSession(_ context.Context, token, accountID string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return errCacheDown
	}
	f.sessions[token] = accountID
	return nil
}

func (f *fakeCache) GetSession(_ context.Context, token string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return "", errCacheDown
	}

	accountID, ok := f.sessions[token]
	if !ok {
		return "", cache.ErrMiss
	}
	return accountID, nil
}

func (f *fakeCache) DeleteSession(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return errCacheDown
	}
	delete(f.sessions, token)
	return nil
}

func (f *fakeCache) Allow(_ context.Context, key string, max int64, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return false, errCacheDown
	}
	f.clicks["limit:"+key]++
	return f.clicks["limit:"+key] <= max, nil
}

func (f *fakeCache) Ping(context.Context) error {
	if f.down {
		return errCacheDown
	}
	return nil
}
