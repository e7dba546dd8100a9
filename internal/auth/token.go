// Package auth supplies bearer tokens to the transport: a static
// token, a token read from the environment, or a renewable token
// fetched on demand and cached until it nears expiry.
package auth

import (
	"context"
	"sync"
	"time"

	"github.com/fivetwenty-io/apiq/internal/constants"
)

// TokenManager is the credential source the transport consults per
// request.
type TokenManager interface {
	// GetToken returns a valid access token, renewing if necessary.
	GetToken(ctx context.Context) (string, error)
	// RefreshToken forces a renewal regardless of expiry.
	RefreshToken(ctx context.Context) error
	// SetToken installs a token manually.
	SetToken(token string, expiresAt time.Time)
}

// Token is one bearer credential with its expiry metadata.
type Token struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type,omitempty"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresIn    int64     `json:"expires_in,omitempty"`
	ExpiresAt    time.Time `json:"-"`
}

// Valid reports whether the token is usable: non-empty and not within
// the expiration buffer of its expiry. A token without an expiry never
// expires.
func (t *Token) Valid() bool {
	if t == nil || t.AccessToken == "" {
		return false
	}

	if t.ExpiresAt.IsZero() {
		return true
	}

	return time.Now().Add(constants.TokenExpirationBuffer).Before(t.ExpiresAt)
}

// TokenStore holds the current token for concurrent readers.
type TokenStore struct {
	mutex sync.RWMutex
	token *Token
}

// NewTokenStore creates an empty token store.
func NewTokenStore() *TokenStore {
	return &TokenStore{}
}

// Get returns the current token, or nil when none is set.
func (s *TokenStore) Get() *Token {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return s.token
}

// Set replaces the current token.
func (s *TokenStore) Set(token *Token) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.token = token
}

// Clear removes the current token.
func (s *TokenStore) Clear() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.token = nil
}
