package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid session token")
	ErrTokenExpired = errors.New("session token expired")
)

const tokenIssuer = "unrepo-portal"

// Claims is the payload of the portal session cookie
type Claims struct {
	Email       string `json:"email"`
	Name        string `json:"name,omitempty"`
	GitHubID    string `json:"github_id,omitempty"`
	GitHubLogin string `json:"github_login,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	jwt.RegisteredClaims
}

// SessionID identifies the browser session the token was issued to
func (c *Claims) SessionID() string {
	return c.ID
}

// User returns the session user carried by the claims
func (c *Claims) User() *User {
	return &User{
		Email:       c.Email,
		Name:        c.Name,
		GitHubID:    c.GitHubID,
		GitHubLogin: c.GitHubLogin,
		AvatarURL:   c.AvatarURL,
	}
}

// TokenManager signs and validates HS256 session tokens
type TokenManager struct {
	secret []byte
	expiry time.Duration
	now    func() time.Time
}

// NewTokenManager creates a token manager
func NewTokenManager(secret string, expiry time.Duration) *TokenManager {
	return &TokenManager{secret: []byte(secret), expiry: expiry, now: time.Now}
}

// Expiry returns the configured token lifetime
func (m *TokenManager) Expiry() time.Duration {
	return m.expiry
}

// Issue signs a new session token for user
func (m *TokenManager) Issue(user *User) (string, *Claims, error) {
	now := m.now()
	claims := &Claims{
		Email:       user.Email,
		Name:        user.Name,
		GitHubID:    user.GitHubID,
		GitHubLogin: user.GitHubLogin,
		AvatarURL:   user.AvatarURL,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "session",
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.expiry)),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, claims, nil
}

// Parse validates a session token and returns its claims
func (m *TokenManager) Parse(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithTimeFunc(m.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject != "session" || claims.ID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ClaimsProvider resolves the session user from already validated claims
type ClaimsProvider struct {
	Claims *Claims
}

func (p ClaimsProvider) CurrentUser(_ context.Context) (*User, error) {
	if p.Claims == nil {
		return nil, nil
	}
	return p.Claims.User(), nil
}
