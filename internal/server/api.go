package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/unrepo/devportal/internal/activity"
	"github.com/unrepo/devportal/internal/cache"
	"github.com/unrepo/devportal/internal/config"
	"github.com/unrepo/devportal/internal/dashboard"
	apierrors "github.com/unrepo/devportal/internal/errors"
	"github.com/unrepo/devportal/internal/keystore"
	"github.com/unrepo/devportal/internal/logging"
	"github.com/unrepo/devportal/internal/middleware"
	"github.com/unrepo/devportal/internal/models"
	"github.com/unrepo/devportal/internal/monitoring"
	"github.com/unrepo/devportal/internal/session"
)

const (
	stateCookieName   = "unrepo_oauth_state"
	stateCookieMaxAge = 10 * 60
	notificationLimit = 20
)

// OAuthProvider is the GitHub sign-in flow
type OAuthProvider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*models.GitHubProfile, error)
}

// UserSyncer records a signed-in GitHub user with the backend
type UserSyncer interface {
	SyncUser(ctx context.Context, profile *models.GitHubProfile) error
}

// Deps are the collaborators of the portal server
type Deps struct {
	Store  dashboard.KeyStore
	Users  UserSyncer
	OAuth  OAuthProvider
	Cache  cache.Store
	Tokens *session.TokenManager
}

// APIServer is the portal HTTP server
type APIServer struct {
	config   *config.Config
	router   *gin.Engine
	store    dashboard.KeyStore
	users    UserSyncer
	oauth    OAuthProvider
	cache    cache.Store
	tokens   *session.TokenManager
	auth     *middleware.SessionAuthenticator
	registry *Registry
}

// NewAPIServer creates a new portal server instance
func NewAPIServer(cfg *config.Config, deps Deps) *APIServer {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Add middleware in order
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.CORS(cfg.CORS.AllowedOrigins))
	router.Use(monitoring.MetricsMiddleware())
	router.Use(logging.RequestLogger())

	tokens := deps.Tokens
	if tokens == nil {
		tokens = session.NewTokenManager(cfg.Session.Secret, cfg.Session.Expiry)
	}

	srv := &APIServer{
		config: cfg,
		router: router,
		store:  deps.Store,
		users:  deps.Users,
		oauth:  deps.OAuth,
		cache:  deps.Cache,
		tokens: tokens,
		auth:   middleware.NewSessionAuthenticator(tokens, cfg.Session.CookieName),
	}
	srv.registry = NewRegistry(srv.newWorkspace, cfg.Session.IdleTimeout)

	srv.setupRoutes()
	return srv
}

// Router returns the gin router
func (s *APIServer) Router() http.Handler {
	return s.router
}

// Registry returns the per-session workspace registry
func (s *APIServer) Registry() *Registry {
	return s.registry
}

// Close closes every open dashboard workspace
func (s *APIServer) Close() {
	s.registry.Close()
}

// setupRoutes configures all portal routes
func (s *APIServer) setupRoutes() {
	s.router.GET("/health", s.healthCheck)

	if s.config.Monitoring.PrometheusEnabled && s.metricsOnMainPort() {
		s.router.GET("/metrics", monitoring.GinHandler())
	}

	authGroup := s.router.Group("/auth")
	{
		authGroup.GET("/github/login", s.handleGitHubLogin)
		authGroup.GET("/github/callback", s.handleGitHubCallback)
		authGroup.POST("/logout", s.auth.LoadSession(), s.handleLogout)
	}

	api := s.router.Group("/api")
	{
		api.GET("/session", s.auth.LoadSession(), s.handleSession)
		api.GET("/docs", s.auth.LoadSession(), s.handleDocs)

		dash := api.Group("/dashboard")
		dash.Use(s.auth.RequireSession())
		dash.Use(s.withWorkspace())
		{
			dash.GET("", s.handleDashboard)
			dash.POST("/keys/:id/visibility", s.handleToggleVisibility)
			dash.POST("/keys/:id/copy", s.handleCopyKey)
			dash.DELETE("/keys/:id", s.handleDeleteKey)
			dash.POST("/create", s.handleOpenCreation)
			dash.PUT("/create", s.handleSetCreationName)
			dash.POST("/create/submit", s.handleSubmitCreation)
			dash.DELETE("/create", s.handleCancelCreation)
			dash.GET("/usage", s.handleUsage)
			dash.GET("/activity", s.handleActivity)
			dash.GET("/notifications", s.handleNotifications)
		}
	}
}

func (s *APIServer) metricsOnMainPort() bool {
	port := s.config.Monitoring.PrometheusPort
	return port == 0 || port == s.config.Server.Port
}

// newWorkspace builds the dashboard of one session
func (s *APIServer) newWorkspace(claims *session.Claims, tab dashboard.Tab) (*Workspace, error) {
	sess := session.NewContext(session.ClaimsProvider{Claims: claims}, s.config.Backend.Timeout)
	queue := dashboard.NewNotificationQueue(notificationLimit)

	var keyCache dashboard.KeyCache
	if s.cache != nil {
		keyCache = cache.ForIdentity(s.cache, sessionIdentity(claims))
	}

	ctrl, err := dashboard.New(dashboard.Options{
		Store:          s.store,
		Session:        sess,
		Notifier:       queue,
		Confirmer:      dashboard.RequestConfirmer{},
		Cache:          keyCache,
		InitialTab:     tab,
		CopyResetDelay: s.config.Dashboard.CopyResetDelay,
		FreeTierCap:    s.config.Dashboard.FreeTierCap,
		PreviewLength:  s.config.Dashboard.PreviewLength,
	})
	if err != nil {
		return nil, err
	}

	graph := activity.NewGraph(s.config.Activity.Points, s.config.Activity.Interval, time.Now())
	return &Workspace{
		Controller:    ctrl,
		Notifications: queue,
		Sampler:       activity.NewSampler(graph, ctrl, s.config.Activity.Interval),
	}, nil
}

func sessionIdentity(claims *session.Claims) string {
	if claims.Email == "" {
		return session.AnonymousIdentity
	}
	return claims.Email
}

// Health check handler
func (s *APIServer) healthCheck(c *gin.Context) {
	resp := gin.H{
		"status":     "healthy",
		"service":    "portal",
		"workspaces": s.registry.Len(),
	}

	if b, ok := s.store.(interface{ BreakerState() keystore.BreakerState }); ok {
		resp["backend_breaker"] = b.BreakerState()
	}

	if h, ok := s.cache.(interface{ Health(context.Context) error }); ok {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.Health(ctx); err != nil {
			resp["status"] = "degraded"
			resp["cache"] = "unreachable"
		} else {
			resp["cache"] = "ok"
		}
	}

	c.JSON(http.StatusOK, resp)
}

// handleGitHubLogin redirects to GitHub with a fresh state cookie
func (s *APIServer) handleGitHubLogin(c *gin.Context) {
	state := session.NewState()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(stateCookieName, state, stateCookieMaxAge, "/auth", "", s.config.Session.Secure, true)
	c.Redirect(http.StatusFound, s.oauth.AuthCodeURL(state))
}

// handleGitHubCallback finishes sign-in and issues the session cookie
func (s *APIServer) handleGitHubCallback(c *gin.Context) {
	expected, _ := c.Cookie(stateCookieName)
	state := c.Query("state")
	if expected == "" || state != expected {
		monitoring.RecordSessionLogin("invalid_state")
		logging.LogSecurityEvent("oauth_state_mismatch", "", c.ClientIP(), "state cookie missing or different")
		middleware.RespondWithError(c, apierrors.ErrInvalidStateError)
		return
	}
	c.SetCookie(stateCookieName, "", -1, "/auth", "", s.config.Session.Secure, true)

	code := c.Query("code")
	if code == "" {
		monitoring.RecordSessionLogin("missing_code")
		middleware.RespondWithError(c, apierrors.NewInvalidRequestError("Missing authorization code"))
		return
	}

	profile, err := s.oauth.Exchange(c.Request.Context(), code)
	if err != nil {
		monitoring.RecordSessionLogin("exchange_failed")
		logging.LogError(err, middleware.GetRequestIDFromContext(c), "auth", "github_exchange")
		middleware.RespondWithError(c, apierrors.ErrUnauthorizedError.WithMessage("GitHub sign-in failed"))
		return
	}

	// A failed sync never blocks sign-in
	if s.users != nil {
		if err := s.users.SyncUser(c.Request.Context(), profile); err != nil {
			logging.LogError(err, middleware.GetRequestIDFromContext(c), "auth", "sync_user")
		}
	}

	token, _, err := s.tokens.Issue(session.UserFromProfile(profile))
	if err != nil {
		monitoring.RecordSessionLogin("token_failed")
		respondError(c, err)
		return
	}

	monitoring.RecordSessionLogin("success")
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(s.auth.CookieName(), token, int(s.tokens.Expiry().Seconds()), "/", "", s.config.Session.Secure, true)
	c.Redirect(http.StatusFound, "/")
}

// handleLogout clears the session cookie and closes the dashboard
func (s *APIServer) handleLogout(c *gin.Context) {
	if id := middleware.GetSessionIDFromContext(c); id != "" {
		s.registry.Remove(id)
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(s.auth.CookieName(), "", -1, "/", "", s.config.Session.Secure, true)
	c.JSON(http.StatusOK, gin.H{"message": "Signed out"})
}

// handleSession reports the session status of the caller
func (s *APIServer) handleSession(c *gin.Context) {
	claims := middleware.GetClaimsFromContext(c)
	if claims == nil {
		c.JSON(http.StatusOK, session.Session{Status: session.StatusUnauthenticated})
		return
	}
	c.JSON(http.StatusOK, session.Session{Status: session.StatusAuthenticated, User: claims.User()})
}
