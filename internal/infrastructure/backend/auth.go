package backend

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/buyandsale/boost/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

// Authenticator supplies bearer tokens for authenticated backend calls
type Authenticator interface {
	AccessToken(ctx context.Context) (string, error)
	Refresh(ctx context.Context) (string, error)
}

// TokenPair is the access/refresh pair issued by the backend
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// RefreshFunc exchanges a refresh token for a new pair
type RefreshFunc func(ctx context.Context, refreshToken string) (*TokenPair, error)

// LogoutFunc is invoked once when the credentials can no longer be renewed
type LogoutFunc func()

// TokenManager holds one user's credentials. The refresh and logout
// behaviour is injected by whoever owns the session.
type TokenManager struct {
	mu        sync.Mutex
	pair      TokenPair
	refresh   RefreshFunc
	onLogout  LogoutFunc
	skew      time.Duration
	loggedOut bool
	now       func() time.Time
}

// NewTokenManager creates a token manager for pair
func NewTokenManager(pair TokenPair, refresh RefreshFunc, onLogout LogoutFunc, skew time.Duration) *TokenManager {
	return &TokenManager{
		pair:     pair,
		refresh:  refresh,
		onLogout: onLogout,
		skew:     skew,
		now:      time.Now,
	}
}

// AccessToken returns the current access token, refreshing it first when the
// JWT expiry falls within the configured skew.
func (m *TokenManager) AccessToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.loggedOut {
		return "", domain.ErrUnauthorized
	}
	if m.pair.AccessToken == "" {
		return m.refreshLocked(ctx)
	}
	if m.expiresSoon(m.pair.AccessToken) && m.pair.RefreshToken != "" {
		return m.refreshLocked(ctx)
	}
	return m.pair.AccessToken, nil
}

// Refresh forces a token renewal
func (m *TokenManager) Refresh(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.loggedOut {
		return "", domain.ErrUnauthorized
	}
	return m.refreshLocked(ctx)
}

// LoggedOut reports whether the logout callback already fired
func (m *TokenManager) LoggedOut() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loggedOut
}

func (m *TokenManager) refreshLocked(ctx context.Context) (string, error) {
	if m.pair.RefreshToken == "" || m.refresh == nil {
		m.logoutLocked()
		return "", domain.ErrUnauthorized
	}

	pair, err := m.refresh(ctx, m.pair.RefreshToken)
	if err != nil {
		// Only a rejected refresh token ends the session; transport errors may be retried.
		if errors.Is(err, domain.ErrUnauthorized) || errors.Is(err, domain.ErrForbidden) {
			m.logoutLocked()
			return "", fmt.Errorf("refresh rejected: %w", domain.ErrUnauthorized)
		}
		return "", fmt.Errorf("failed to refresh token: %w", err)
	}

	m.pair = *pair
	return m.pair.AccessToken, nil
}

func (m *TokenManager) logoutLocked() {
	if m.loggedOut {
		return
	}
	m.loggedOut = true
	log.Printf("[Auth] credentials expired, logging out")
	if m.onLogout != nil {
		go m.onLogout()
	}
}

// expiresSoon reads the exp claim without verifying the signature.
// Opaque tokens are assumed valid until the backend says otherwise.
func (m *TokenManager) expiresSoon(token string) bool {
	claims := &domain.BackendClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return m.now().Add(m.skew).After(claims.ExpiresAt.Time)
}
