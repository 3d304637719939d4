package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	apierrors "github.com/unrepo/devportal/internal/errors"
	"github.com/unrepo/devportal/internal/session"
)

// Context keys for storing session information
const (
	ContextKeyEmail         = "email"
	ContextKeySessionID     = "session_id"
	ContextKeyClaims        = "claims"
	ContextKeyRequestID     = "request_id"
	ContextKeyCorrelationID = "correlation_id"
)

// SessionAuthenticator validates the portal session token
type SessionAuthenticator struct {
	tokens     *session.TokenManager
	cookieName string
}

// NewSessionAuthenticator creates a new session authenticator
func NewSessionAuthenticator(tokens *session.TokenManager, cookieName string) *SessionAuthenticator {
	return &SessionAuthenticator{
		tokens:     tokens,
		cookieName: cookieName,
	}
}

// CookieName returns the name of the session cookie
func (a *SessionAuthenticator) CookieName() string {
	return a.cookieName
}

// LoadSession attaches the session claims when a valid token is present.
// Requests without a valid token continue unauthenticated.
func (a *SessionAuthenticator) LoadSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims, err := a.authenticate(c); err == nil {
			setClaims(c, claims)
		}
		c.Next()
	}
}

// RequireSession rejects requests that carry no valid session token
func (a *SessionAuthenticator) RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := a.authenticate(c)
		if err != nil {
			if errors.Is(err, session.ErrTokenExpired) {
				RespondWithError(c, apierrors.ErrSessionExpiredError)
			} else {
				RespondWithError(c, apierrors.ErrUnauthorizedError)
			}
			c.Abort()
			return
		}

		setClaims(c, claims)
		c.Next()
	}
}

// authenticate reads the token from the session cookie, or from a Bearer
// header for non-browser clients
func (a *SessionAuthenticator) authenticate(c *gin.Context) (*session.Claims, error) {
	token, err := c.Cookie(a.cookieName)
	if err != nil || token == "" {
		token, err = extractBearerToken(c.GetHeader("Authorization"))
		if err != nil {
			return nil, err
		}
	}
	return a.tokens.Parse(token)
}

func setClaims(c *gin.Context, claims *session.Claims) {
	c.Set(ContextKeyEmail, claims.Email)
	c.Set(ContextKeySessionID, claims.SessionID())
	c.Set(ContextKeyClaims, claims)
}

// extractBearerToken extracts the token from a Bearer authorization header
func extractBearerToken(authHeader string) (string, error) {
	const bearerPrefix = "Bearer "
	if !strings.HasPrefix(authHeader, bearerPrefix) || len(authHeader) == len(bearerPrefix) {
		return "", session.ErrInvalidToken
	}
	return authHeader[len(bearerPrefix):], nil
}

// RespondWithError sends a standardized error response
func RespondWithError(c *gin.Context, err *apierrors.APIError) {
	response := apierrors.NewErrorResponse(
		err,
		GetRequestIDFromContext(c),
		GetCorrelationIDFromContext(c),
		c.Request.URL.Path,
		c.Request.Method,
	)

	c.JSON(err.HTTPStatus, response)
}

// GetEmailFromContext extracts the session email from the gin context
// Returns empty string if not found
func GetEmailFromContext(c *gin.Context) string {
	return c.GetString(ContextKeyEmail)
}

// GetSessionIDFromContext extracts the session id from the gin context
// Returns empty string if not found
func GetSessionIDFromContext(c *gin.Context) string {
	return c.GetString(ContextKeySessionID)
}

// GetClaimsFromContext extracts the full claims from the gin context
// Returns nil if not found
func GetClaimsFromContext(c *gin.Context) *session.Claims {
	claims, exists := c.Get(ContextKeyClaims)
	if !exists {
		return nil
	}
	return claims.(*session.Claims)
}

// RequestID adds a unique request ID to each request
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set(ContextKeyRequestID, requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

// CorrelationID propagates the upstream correlation id, falling back to the request id
func CorrelationID() gin.HandlerFunc {
	return func(c *gin.Context) {
		correlationID := c.GetHeader("X-Correlation-ID")
		if correlationID == "" {
			correlationID = c.GetString(ContextKeyRequestID)
			if correlationID == "" {
				correlationID = uuid.New().String()
			}
		}
		c.Set(ContextKeyCorrelationID, correlationID)
		c.Header("X-Correlation-ID", correlationID)
		c.Next()
	}
}

// GetCorrelationIDFromContext extracts the correlation ID from the gin context
// Returns empty string if not found
func GetCorrelationIDFromContext(c *gin.Context) string {
	return c.GetString(ContextKeyCorrelationID)
}

// GetRequestIDFromContext extracts the request ID from the gin context
// Returns empty string if not found
func GetRequestIDFromContext(c *gin.Context) string {
	return c.GetString(ContextKeyRequestID)
}

// CORS configures CORS headers
func CORS(allowedOrigins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		allowed := false
		for _, o := range allowedOrigins {
			if o == origin || o == "*" {
				allowed = true
				break
			}
		}

		if allowed && origin != "" {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID, X-Correlation-ID")
			c.Header("Access-Control-Expose-Headers", "X-Request-ID, X-Correlation-ID")
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Max-Age", "43200") // 12 hours
			c.Header("Vary", "Origin")
		}

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
