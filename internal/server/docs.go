package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/unrepo/devportal/internal/cache"
	"github.com/unrepo/devportal/internal/middleware"
	"github.com/unrepo/devportal/internal/models"
)

const (
	apiVersion     = "v1"
	apiKeyHeader   = "x-api-key"
	chatbotBaseURL = "https://chat.unrepo.dev/api/v1"
	researchBase   = "https://research.unrepo.dev/api/v1"
)

// ServiceDoc describes one backend service and the key that unlocks it
type ServiceDoc struct {
	Type         models.KeyType `json:"type"`
	BaseURL      string         `json:"baseUrl"`
	Endpoint     string         `json:"endpoint"`
	KeyPrefix    string         `json:"keyPrefix"`
	ExampleKey   string         `json:"exampleKey"`
	KeyIsCached  bool           `json:"keyIsCached"`
	HourlyLimits RateLimits     `json:"hourlyLimits"`
}

// RateLimits are requests per hour per tier
type RateLimits struct {
	Free        int `json:"free"`
	TokenHolder int `json:"tokenHolder"`
}

// Docs is the API documentation page
type Docs struct {
	Version      string       `json:"version"`
	AuthHeader   string       `json:"authHeader"`
	Services     []ServiceDoc `json:"services"`
	LimitHeaders []string     `json:"rateLimitHeaders"`
}

var serviceDocs = []ServiceDoc{
	{
		Type:         models.KeyTypeChatbot,
		BaseURL:      chatbotBaseURL,
		Endpoint:     "POST " + chatbotBaseURL + "/chatbot",
		KeyPrefix:    models.KeyTypeChatbot.SecretPrefix(),
		HourlyLimits: RateLimits{Free: 200, TokenHolder: 500},
	},
	{
		Type:         models.KeyTypeResearch,
		BaseURL:      researchBase,
		Endpoint:     "POST " + researchBase + "/research",
		KeyPrefix:    models.KeyTypeResearch.SecretPrefix(),
		HourlyLimits: RateLimits{Free: 100, TokenHolder: 500},
	},
}

// handleDocs serves the documentation, pre-filling examples with the caller's
// most recently generated keys when known
func (s *APIServer) handleDocs(c *gin.Context) {
	lookup := func(context.Context, models.KeyType) (string, bool) { return "", false }
	if claims := middleware.GetClaimsFromContext(c); claims != nil {
		if w, ok := s.registry.Lookup(claims.SessionID()); ok {
			lookup = w.Controller.CachedKey
		} else if s.cache != nil {
			scoped := cache.ForIdentity(s.cache, sessionIdentity(claims))
			lookup = func(ctx context.Context, t models.KeyType) (string, bool) {
				secret, ok, err := scoped.Get(ctx, t.CacheSlot())
				return secret, ok && err == nil
			}
		}
	}

	docs := Docs{
		Version:      apiVersion,
		AuthHeader:   apiKeyHeader,
		LimitHeaders: []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
	}
	for _, svc := range serviceDocs {
		svc.ExampleKey = svc.KeyPrefix + "YOUR_KEY_HERE"
		if secret, ok := lookup(c.Request.Context(), svc.Type); ok {
			svc.ExampleKey = secret
			svc.KeyIsCached = true
		}
		docs.Services = append(docs.Services, svc)
	}

	c.JSON(http.StatusOK, docs)
}
