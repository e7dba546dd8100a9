package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"
)

// Static errors for err113 compliance.
var (
	ErrStaticTokenCannotRefresh = errors.New("static token cannot be refreshed")
	ErrEnvTokenNotSet           = errors.New("token environment variable not set")
	ErrNoTokenSource            = errors.New("no token source configured")
	ErrEmptyToken               = errors.New("token source returned an empty token")
)

// StaticTokenManager serves one fixed token.
type StaticTokenManager struct {
	mutex sync.RWMutex
	token string
}

// NewStaticTokenManager creates a manager around a fixed token.
func NewStaticTokenManager(token string) *StaticTokenManager {
	return &StaticTokenManager{token: token}
}

// GetToken returns the stored token.
func (m *StaticTokenManager) GetToken(ctx context.Context) (string, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	return m.token, nil
}

// RefreshToken fails; a static token has no renewal path.
func (m *StaticTokenManager) RefreshToken(ctx context.Context) error {
	return ErrStaticTokenCannotRefresh
}

// SetToken replaces the stored token.
func (m *StaticTokenManager) SetToken(token string, expiresAt time.Time) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.token = token
}

// EnvTokenManager reads the token from an environment variable on every
// request, so external rotation is picked up without a restart.
type EnvTokenManager struct {
	envVar string
}

// NewEnvTokenManager creates a manager reading the given variable.
func NewEnvTokenManager(envVar string) *EnvTokenManager {
	return &EnvTokenManager{envVar: envVar}
}

// GetToken reads the variable, erroring when it is unset or empty.
func (m *EnvTokenManager) GetToken(ctx context.Context) (string, error) {
	token := os.Getenv(m.envVar)
	if token == "" {
		return "", fmt.Errorf("%w: %s", ErrEnvTokenNotSet, m.envVar)
	}

	return token, nil
}

// RefreshToken succeeds without side effects; the next GetToken reads
// the environment again.
func (m *EnvTokenManager) RefreshToken(ctx context.Context) error {
	return nil
}

// SetToken is a no-op; the environment owns the value.
func (m *EnvTokenManager) SetToken(token string, expiresAt time.Time) {
}

// FetchFunc obtains a fresh token from wherever credentials live: an
// identity provider, a metadata service, a secrets file.
type FetchFunc func(ctx context.Context) (*Token, error)

// RenewableTokenManager caches tokens from a fetch function and renews
// them as they approach expiry. Concurrent callers share one renewal.
type RenewableTokenManager struct {
	fetch   FetchFunc
	store   *TokenStore
	onRenew func(*Token)
	mutex   sync.Mutex
}

// NewRenewableTokenManager creates a manager around the fetch function.
func NewRenewableTokenManager(fetch FetchFunc) *RenewableTokenManager {
	return &RenewableTokenManager{
		fetch: fetch,
		store: NewTokenStore(),
	}
}

// OnRenew registers a hook invoked with each newly fetched token, e.g.
// to persist it alongside local configuration.
func (m *RenewableTokenManager) OnRenew(hook func(*Token)) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.onRenew = hook
}

// GetToken returns the cached token while it is valid, renewing it
// otherwise.
func (m *RenewableTokenManager) GetToken(ctx context.Context) (string, error) {
	if token := m.store.Get(); token.Valid() {
		return token.AccessToken, nil
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	// Another caller may have renewed while we waited for the lock.
	if token := m.store.Get(); token.Valid() {
		return token.AccessToken, nil
	}

	token, err := m.renew(ctx)
	if err != nil {
		return "", err
	}

	return token.AccessToken, nil
}

// RefreshToken forces a renewal.
func (m *RenewableTokenManager) RefreshToken(ctx context.Context) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	_, err := m.renew(ctx)

	return err
}

// SetToken installs a token manually, bypassing the fetch function.
func (m *RenewableTokenManager) SetToken(token string, expiresAt time.Time) {
	m.store.Set(&Token{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresAt:   expiresAt,
	})
}

// renew calls the fetch function and stores its result. Callers hold
// the mutex.
func (m *RenewableTokenManager) renew(ctx context.Context) (*Token, error) {
	if m.fetch == nil {
		return nil, ErrNoTokenSource
	}

	token, err := m.fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching token: %w", err)
	}

	if token == nil || token.AccessToken == "" {
		return nil, ErrEmptyToken
	}

	if token.ExpiresAt.IsZero() && token.ExpiresIn > 0 {
		token.ExpiresAt = time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)
	}

	if token.TokenType == "" {
		token.TokenType = "bearer"
	}

	m.store.Set(token)

	if m.onRenew != nil {
		m.onRenew(token)
	}

	return token, nil
}
