package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenType distinguishes access from refresh tokens
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// TokenClaims is the payload of every token we sign
type TokenClaims struct {
	jwt.RegisteredClaims
	Type TokenType `json:"type"`
}

// SubjectID parses the subject as a user id
func (c *TokenClaims) SubjectID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

// Expires returns the expiration time
func (c *TokenClaims) Expires() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// Issued returns the issued at time
func (c *TokenClaims) Issued() time.Time {
	if c.IssuedAt == nil {
		return time.Time{}
	}
	return c.IssuedAt.Time
}

// TokenPair is the result of a successful login or signup
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	TokenType        string    `json:"token_type"`
	AccessExpiresAt  time.Time `json:"-"`
	RefreshExpiresAt time.Time `json:"-"`
}
