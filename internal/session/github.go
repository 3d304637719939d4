package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/unrepo/devportal/internal/config"
	"github.com/unrepo/devportal/internal/models"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

const defaultGitHubAPI = "https://api.github.com"

var (
	ErrMissingCode   = errors.New("authorization code missing")
	ErrStateMismatch = errors.New("oauth state mismatch")
)

// GitHubOAuth signs users in with GitHub and reads their profile
type GitHubOAuth struct {
	config  oauth2.Config
	apiBase string
}

// GitHubOption customises a GitHubOAuth
type GitHubOption func(*GitHubOAuth)

// WithGitHubEndpoints points the provider at alternate OAuth and REST endpoints
func WithGitHubEndpoints(endpoint oauth2.Endpoint, apiBase string) GitHubOption {
	return func(g *GitHubOAuth) {
		g.config.Endpoint = endpoint
		g.apiBase = strings.TrimRight(apiBase, "/")
	}
}

// NewGitHubOAuth creates the GitHub sign-in provider
func NewGitHubOAuth(cfg *config.GitHubConfig, opts ...GitHubOption) *GitHubOAuth {
	g := &GitHubOAuth{
		config: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     github.Endpoint,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
		},
		apiBase: defaultGitHubAPI,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// NewState returns a fresh OAuth state nonce
func NewState() string {
	return uuid.NewString()
}

// AuthCodeURL returns the GitHub authorization URL for state
func (g *GitHubOAuth) AuthCodeURL(state string) string {
	return g.config.AuthCodeURL(state)
}

// Exchange trades an authorization code for the user's GitHub profile
func (g *GitHubOAuth) Exchange(ctx context.Context, code string) (*models.GitHubProfile, error) {
	if code == "" {
		return nil, ErrMissingCode
	}
	token, err := g.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}
	client := g.config.Client(ctx, token)

	var profile models.GitHubProfile
	if err := g.getJSON(ctx, client, "/user", &profile); err != nil {
		return nil, fmt.Errorf("failed to fetch github user: %w", err)
	}

	if profile.Email == "" {
		// Private emails are only exposed through the emails endpoint
		var emails []struct {
			Email    string `json:"email"`
			Primary  bool   `json:"primary"`
			Verified bool   `json:"verified"`
		}
		if err := g.getJSON(ctx, client, "/user/emails", &emails); err == nil {
			for _, e := range emails {
				if e.Primary && e.Verified {
					profile.Email = e.Email
					break
				}
			}
		}
	}
	return &profile, nil
}

func (g *GitHubOAuth) getJSON(ctx context.Context, client *http.Client, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.apiBase+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("github %s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// UserFromProfile converts a GitHub profile into a session user
func UserFromProfile(p *models.GitHubProfile) *User {
	return &User{
		Email:       p.Email,
		Name:        p.DisplayName(),
		GitHubID:    strconv.FormatInt(p.ID, 10),
		GitHubLogin: p.Login,
		AvatarURL:   p.AvatarURL,
	}
}
