package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shortkit/shortkit/internal/cache"
	"github.com/shortkit/shortkit/internal/middleware"
	"github.com/shortkit/shortkit/internal/models"
	"github.com/shortkit/shortkit/internal/repository"
	"github.com/shortkit/shortkit/internal/service"
)

const testBaseURL = "http://sho.rt"

// memStore backs the full stack under test in memory, with the same
// uniqueness and soft-delete semantics as the Postgres repository.
type memStore struct {
	mu       sync.Mutex
	links    map[string]*models.ShortLink
	accounts map[uuid.UUID]*models.Account
	down     bool
}

func newMemStore() *memStore {
	return &memStore{
		links:    make(map[string]*models.ShortLink),
		accounts: make(map[uuid.UUID]*models.Account),
	}
}

func (m *memStore) SaveLink(_ context.Context, link *models.ShortLink) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.links {
		if existing.ShortCode == link.ShortCode ||
			(existing.CustomCode != nil && *existing.CustomCode == link.ShortCode) {
			return repository.ErrDuplicate
		}
	}

	now := time.Now()
	link.IsActive = true
	link.CreatedAt = now
	link.UpdatedAt = now
	stored := *link
	m.links[link.ShortCode] = &stored
	return nil
}

func (m *memStore) CodeInUse(_ context.Context, code string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, link := range m.links {
		if link.ShortCode == code || (link.CustomCode != nil && *link.CustomCode == code) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) FindActiveByCode(_ context.Context, code string) (*models.ShortLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	link, ok := m.links[code]
	if !ok || !link.IsActive || link.Expired(time.Now()) {
		return nil, repository.ErrNotFound
	}
	copied := *link
	return &copied, nil
}

func (m *memStore) FindActiveByOwnerAndURL(_ context.Context, ownerID uuid.UUID, longURL string) (*models.ShortLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, link := range m.links {
		if link.IsActive && link.OwnerID != nil && *link.OwnerID == ownerID && link.LongURL == longURL {
			copied := *link
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memStore) FindActiveByOwnerAndCode(_ context.Context, ownerID uuid.UUID, code string) (*models.ShortLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	link, ok := m.links[code]
	if !ok || !link.IsActive || link.OwnerID == nil || *link.OwnerID != ownerID {
		return nil, repository.ErrNotFound
	}
	copied := *link
	return &copied, nil
}

func (m *memStore) ListByOwner(_ context.Context, ownerID uuid.UUID, offset, limit int) ([]models.ShortLink, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var owned []models.ShortLink
	for _, link := range m.links {
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

func (m *memStore) AddClicks(_ context.Context, code string, n int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if link, ok := m.links[code]; ok {
		link.Clicks += n
	}
	return nil
}

func (m *memStore) Deactivate(_ context.Context, ownerID uuid.UUID, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	link, ok := m.links[code]
	if !ok || !link.IsActive || link.OwnerID == nil || *link.OwnerID != ownerID {
		return repository.ErrNotFound
	}
	link.IsActive = false
	return nil
}

func (m *memStore) Ping(context.Context) error {
	if m.down {
		return errors.New("store down")
	}
	return nil
}

func (m *memStore) CreateAccount(_ context.Context, account *models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.accounts {
		if existing.Username == account.Username || existing.Email == account.Email {
			return repository.ErrDuplicate
		}
	}
	account.IsActive = true
	account.CreatedAt = time.Now()
	stored := *account
	m.accounts[account.ID] = &stored
	return nil
}

func (m *memStore) FindAccountByEmail(_ context.Context, email string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, account := range m.accounts {
		if account.Email == email {
			copied := *account
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memStore) FindAccountByID(_ context.Context, id uuid.UUID) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	account, ok := m.accounts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *account
	return &copied, nil
}

// memCache is the cache, session store, and rate limiter in one. TTLs are
// ignored; handler tests exercise routing and envelopes, not expiry.
type memCache struct {
	mu       sync.Mutex
	urls     map[string]string
	clicks   map[string]int64
	sessions map[string]string
	hits     map[string]int64

	// requests beyond this count are throttled; zero means unlimited
	limitAfter int64
}

func newMemCache() *memCache {
	return &memCache{
		urls:     make(map[string]string),
		clicks:   make(map[string]int64),
		sessions: make(map[string]string),
		hits:     make(map[string]int64),
	}
}

func (m *memCache) GetURL(_ context.Context, code string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	longURL, ok := m.urls[code]
	if !ok {
		return "", cache.ErrMiss
	}
	return longURL, nil
}

func (m *memCache) SetURL(_ context.Context, code, longURL string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.urls[code] = longURL
	return nil
}

func (m *memCache) DeleteURL(_ context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.urls, code)
	return nil
}

func (m *memCache) AddClicks(_ context.Context, code string, n int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clicks[code] += n
	return m.clicks[code], nil
}

func (m *memCache) GetClicks(_ context.Context, code string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clicks[code], nil
}

func (m *memCache) GetClicksBatch(_ context.Context, codes []string) (map[string]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make(map[string]int64, len(codes))
	for _, code := range codes {
		if n, ok := m.clicks[code]; ok {
			result[code] = n
		}
	}
	return result, nil
}

func (m *memCache) DeleteClicks(_ context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.clicks, code)
	return nil
}

func (m *memCache) SetSession(_ context.Context, token, accountID string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[token] = accountID
	return nil
}

func (m *memCache) GetSession(_ context.Context, token string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	accountID, ok := m.sessions[token]
	if !ok {
		return "", cache.ErrMiss
	}
	return accountID, nil
}

func (m *memCache) DeleteSession(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, token)
	return nil
}

func (m *memCache) Allow(_ context.Context, key string, max int64, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.hits[key]++
	if m.limitAfter > 0 && m.hits[key] > m.limitAfter {
		return false, nil
	}
	return m.hits[key] <= max, nil
}

func (m *memCache) Ping(context.Context) error { return nil }

type testApp struct {
	router http.Handler
	store  *memStore
	cache  *memCache
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	logger := zap.NewNop()
	store := newMemStore()
	mc := newMemCache()

	shortener := service.NewShortener(testBaseURL, store, mc, nil, logger)
	t.Cleanup(shortener.Close)

	auth := service.NewAuth(store, mc, "handler-test-secret", logger)
	h := NewHandler(
		shortener,
		auth,
		middleware.NewAuthMiddleware(auth, logger),
		middleware.NewRateLimiter(mc, logger),
		logger,
		true,
	)

	return &testApp{router: h.SetupRouter(), store: store, cache: mc}
}

// do runs one request through the full router and returns the recorder.
func (app *testApp) do(t *testing.T, method, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}

	rec := httptest.NewRecorder()
	app.router.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Detail  string          `json:"detail"`
	Data    json.RawMessage `json:"data"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, out any) envelope {
	t.Helper()
	env := decodeEnvelope(t, rec)
	require.NotEmpty(t, env.Data)
	require.NoError(t, json.Unmarshal(env.Data, out))
	return env
}

// signup registers and logs in a fresh account, returning its auth cookie.
func (app *testApp) signup(t *testing.T, username string) *http.Cookie {
	t.Helper()

	email := username + "@example.com"
	rec := app.do(t, http.MethodPost, "/api/auth/register",
		`{"username":"`+username+`","email":"`+email+`","password":"Sup3rSecret"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = app.do(t, http.MethodPost, "/api/auth/login",
		`{"email":"`+email+`","password":"Sup3rSecret"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == middleware.CookieName {
			return cookie
		}
	}
	t.Fatal("login response did not set the auth cookie")
	return nil
}

// shorten creates a link through the API and returns its short code.
func (app *testApp) shorten(t *testing.T, cookie *http.Cookie, longURL string) string {
	t.Helper()

	rec := app.do(t, http.MethodPost, "/api/url/shorten",
		`{"longUrl":"`+longURL+`"}`, cookie)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var data struct {
		ShortCode string `json:"shortCode"`
	}
	decodeData(t, rec, &data)
	require.NotEmpty(t, data.ShortCode)
	return data.ShortCode
}
