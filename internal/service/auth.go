package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"time"
	"unicode"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/shortkit/shortkit/internal/cache"
	"github.com/shortkit/shortkit/internal/models"
	"github.com/shortkit/shortkit/internal/repository"
)

// SessionTTL bounds how long a login stays valid without re-authenticating.
const SessionTTL = 2 * time.Hour

const bcryptCost = 12

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{3,30}$`)

// AccountStore is the durable account record, referenced by links via owner id.
type AccountStore interface {
	CreateAccount(ctx context.Context, account *models.Account) error
	FindAccountByEmail(ctx context.Context, email string) (*models.Account, error)
	FindAccountByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
}

// SessionStore keeps issued tokens server-side so logout actually revokes.
type SessionStore interface {
	SetSession(ctx context.Context, token, accountID string, ttl time.Duration) error
	GetSession(ctx context.Context, token string) (string, error)
	DeleteSession(ctx context.Context, token string) error
}

type Auth struct {
	accounts AccountStore
	sessions SessionStore
	secret   []byte
	logger   *zap.Logger
}

func NewAuth(accounts AccountStore, sessions SessionStore, secret string, logger *zap.Logger) *Auth {
	return &Auth{
		accounts: accounts,
		sessions: sessions,
		secret:   []byte(secret),
		logger:   logger,
	}
}

func validPassword(password string) bool {
	if len(password) < 6 {
		return false
	}
	var lower, upper, digit bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return lower && upper && digit
}

func (a *Auth) Register(ctx context.Context, req models.RegisterRequest) (*models.Account, error) {
	if !usernamePattern.MatchString(req.Username) {
		return nil, ErrInvalidUsername
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return nil, ErrInvalidEmail
	}
	if !validPassword(req.Password) {
		return nil, ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	account := &models.Account{
		ID:           uuid.New(),
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(hash),
	}

	if err := a.accounts.CreateAccount(ctx, account); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrAccountExists
		}
		return nil, err
	}

	a.logger.Info("Account registered", zap.String("username", account.Username))
	return account, nil
}

// Login verifies the credentials, signs a token, and opens a server-side
// session for it.
func (a *Auth) Login(ctx context.Context, req models.LoginRequest) (*models.Account, string, error) {
	account, err := a.accounts.FindAccountByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", err
	}
	if !account.IsActive {
		return nil, "", ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(req.Password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := a.signToken(account.ID)
	if err != nil {
		return nil, "", err
	}

	if err := a.sessions.SetSession(ctx, token, account.ID.String(), SessionTTL); err != nil {
		return nil, "", err
	}

	return account, token, nil
}

func (a *Auth) Logout(ctx context.Context, token string) error {
	return a.sessions.DeleteSession(ctx, token)
}

func (a *Auth) Profile(ctx context.Context, accountID uuid.UUID) (*models.Account, error) {
	account, err := a.accounts.FindAccountByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return account, nil
}

func (a *Auth) signToken(accountID uuid.UUID) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   accountID.String(),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(SessionTTL)),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

// Authenticate validates a token end to end: signature, server-side session,
// and account liveness. A token whose account went inactive also loses its
// session.
func (a *Auth) Authenticate(ctx context.Context, token string) (*models.Account, error) {
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidCredentials
	}

	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok {
		return nil, ErrInvalidCredentials
	}

	accountID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	if _, err := a.sessions.GetSession(ctx, token); err != nil {
		if errors.Is(err, cache.ErrMiss) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	account, err := a.accounts.FindAccountByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !account.IsActive {
		if err := a.sessions.DeleteSession(ctx, token); err != nil {
			a.logger.Warn("Failed to drop session for inactive account", zap.Error(err))
		}
		return nil, ErrInvalidCredentials
	}

	return account, nil
}
