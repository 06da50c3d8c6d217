package middleware

import (
	"strings"

	"github.com/buyandsale/boost/internal/domain"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/golang-jwt/jwt/v5"
)

// Context keys for storing user info
const (
	UserIDKey      = "userID"
	CredentialsKey = "credentials"
)

// RefreshTokenHeader carries the backend refresh token next to the bearer token
const RefreshTokenHeader = "X-Refresh-Token"

// Credentials are the backend tokens a request acts with
type Credentials struct {
	UserID       string
	AccessToken  string
	RefreshToken string
}

// BackendCredentials extracts the Buy&Sale tokens of the caller. The backend
// owns the signing key, so the access token is only decoded here to learn
// who the caller is; expired tokens pass and are renewed when used.
func BackendCredentials() fiber.Handler {
	parser := jwt.NewParser()

	return func(c *fiber.Ctx) error {
		// Get token from Authorization header
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"error":   "Missing authorization token",
			})
		}

		// Extract token (format: "Bearer <token>")
		tokenString := strings.TrimSpace(authHeader)
		if len(tokenString) > 7 && strings.EqualFold(tokenString[:7], "Bearer ") {
			tokenString = strings.TrimSpace(tokenString[7:])
		}

		claims := &domain.BackendClaims{}
		if _, _, err := parser.ParseUnverified(tokenString, claims); err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"error":   "Invalid token",
			})
		}

		userID := claims.ResolveUserID()
		if userID == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"error":   "Invalid token claims",
			})
		}

		// Header values alias the request buffer; sessions keep these tokens
		c.Locals(UserIDKey, userID)
		c.Locals(CredentialsKey, Credentials{
			UserID:       userID,
			AccessToken:  utils.CopyString(tokenString),
			RefreshToken: utils.CopyString(c.Get(RefreshTokenHeader)),
		})

		return c.Next()
	}
}

// CredentialsFrom returns the credentials stored by BackendCredentials
func CredentialsFrom(c *fiber.Ctx) (Credentials, bool) {
	creds, ok := c.Locals(CredentialsKey).(Credentials)
	if !ok || creds.UserID == "" {
		return Credentials{}, false
	}
	return creds, true
}
