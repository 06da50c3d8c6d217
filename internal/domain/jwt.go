package domain

import (
	"github.com/golang-jwt/jwt/v5"
)

// BackendClaims is the subset of Buy&Sale access token claims the gateway reads.
// Tokens are issued and verified by the backend; the gateway only inspects them.
type BackendClaims struct {
	UserID string `json:"userId,omitempty"`
	Email  string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// ResolveUserID returns the user id, falling back to the registered "sub" claim
func (c *BackendClaims) ResolveUserID() string {
	if c.UserID != "" {
		return c.UserID
	}
	return c.RegisteredClaims.Subject
}
