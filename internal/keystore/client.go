package keystore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/unrepo/devportal/internal/config"
	"github.com/unrepo/devportal/internal/logging"
	"github.com/unrepo/devportal/internal/models"
	"github.com/unrepo/devportal/internal/monitoring"
)

const maxResponseBody = 1 << 20

// GenerateResult is the outcome of a successful GenerateKey call
type GenerateResult struct {
	Secret string
	// Existing is true when the backend handed back the key already held for this type
	Existing bool
	Message  string
}

// Client talks to the unrepo backend key service on behalf of one identity per call
type Client struct {
	baseURL     string
	http        *http.Client
	breaker     *Breaker
	timeouts    *TimeoutManager
	callTimeout time.Duration
	logger      zerolog.Logger
}

// Option customises a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// WithBreaker replaces the circuit breaker
func WithBreaker(b *Breaker) Option {
	return func(c *Client) {
		if b != nil {
			c.breaker = b
		}
	}
}

// NewClient creates a backend client from configuration
func NewClient(cfg *config.BackendConfig, opts ...Option) *Client {
	timeouts := NewTimeoutManager(&TimeoutConfig{
		DefaultTimeout: cfg.Timeout,
		MinTimeout:     cfg.MinTimeout,
		MaxTimeout:     cfg.MaxTimeout,
	})
	breakerCfg := DefaultBreakerConfig()
	if cfg.BreakerTimeout > 0 {
		breakerCfg.Timeout = cfg.BreakerTimeout
	}
	if cfg.BreakerFailures > 0 {
		breakerCfg.FailureThreshold = cfg.BreakerFailures
	}

	c := &Client{
		baseURL:     strings.TrimRight(strings.TrimSpace(cfg.URL), "/"),
		http:        &http.Client{},
		timeouts:    timeouts,
		callTimeout: timeouts.GetTimeout(cfg.Timeout),
		logger:      logging.NewLogger("keystore"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.breaker == nil {
		c.breaker = NewBreaker("unrepo-backend", breakerCfg)
	}
	return c
}

// BreakerState exposes the backend circuit breaker state for health reporting
func (c *Client) BreakerState() BreakerState {
	return c.breaker.State()
}

// ListKeys returns every key the backend holds for identity
func (c *Client) ListKeys(ctx context.Context, identity string) ([]models.APIKey, error) {
	keys := []models.APIKey{}
	if _, err := c.call(ctx, "list_keys", http.MethodGet, "/api/keys?email="+url.QueryEscape(identity), nil, &keys); err != nil {
		return nil, err
	}
	if keys == nil {
		keys = []models.APIKey{}
	}
	return keys, nil
}

// GenerateKey asks the backend for a key of keyType. A blank name fails with
// ErrEmptyName without contacting the backend.
func (c *Client) GenerateKey(ctx context.Context, identity string, keyType models.KeyType, name string) (*GenerateResult, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrEmptyName
	}
	if !keyType.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKeyType, keyType)
	}

	payload, err := json.Marshal(models.GenerateKeyRequest{Type: keyType, Name: name, Email: identity})
	if err != nil {
		return nil, fmt.Errorf("encode generate request: %w", err)
	}

	var data models.GeneratedKey
	env, err := c.call(ctx, "generate_key", http.MethodPost, "/api/keys/generate", payload, &data)
	if err != nil {
		return nil, err
	}
	secret := data.Secret()
	if secret == "" {
		return nil, &RemoteError{Operation: "generate_key", StatusCode: http.StatusOK, Message: env.Reason()}
	}

	existing := env.Message == models.AlreadyExistsMessage
	outcome := "new"
	if existing {
		outcome = "existing"
	}
	monitoring.RecordKeyGenerated(string(keyType), outcome)

	return &GenerateResult{Secret: secret, Existing: existing, Message: env.Message}, nil
}

// DeleteKey removes keyID for identity
func (c *Client) DeleteKey(ctx context.Context, identity, keyID string) error {
	if strings.TrimSpace(keyID) == "" {
		return ErrEmptyKeyID
	}
	path := "/api/keys/" + url.PathEscape(keyID) + "?email=" + url.QueryEscape(identity)
	_, err := c.call(ctx, "delete_key", http.MethodDelete, path, nil, nil)
	if err != nil {
		monitoring.RecordKeyDeleted("failed")
		return err
	}
	monitoring.RecordKeyDeleted("deleted")
	return nil
}

// FetchUsageStats returns per-endpoint usage aggregates for identity
func (c *Client) FetchUsageStats(ctx context.Context, identity string) ([]models.UsageRecord, error) {
	records := []models.UsageRecord{}
	if _, err := c.call(ctx, "usage_stats", http.MethodGet, "/api/keys/usage?email="+url.QueryEscape(identity), nil, &records); err != nil {
		return nil, err
	}
	if records == nil {
		records = []models.UsageRecord{}
	}
	return records, nil
}

// SyncUser registers or refreshes the signed-in GitHub user with the backend
func (c *Client) SyncUser(ctx context.Context, profile *models.GitHubProfile) error {
	payload, err := json.Marshal(models.UserSyncRequest{
		GitHubID:       strconv.FormatInt(profile.ID, 10),
		GitHubUsername: profile.Login,
		Name:           profile.DisplayName(),
		Email:          profile.Email,
		Avatar:         profile.AvatarURL,
	})
	if err != nil {
		return fmt.Errorf("encode user sync request: %w", err)
	}
	_, err = c.call(ctx, "sync_user", http.MethodPost, "/auth/github/login", payload, nil)
	return err
}

// call runs one request through the breaker and the per-call deadline, then
// decodes the envelope data into out when out is non-nil.
func (c *Client) call(ctx context.Context, operation, method, path string, payload []byte, out interface{}) (*models.Envelope, error) {
	ctx, cancel, _ := c.timeouts.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	result, err := c.breaker.Execute(ctx, func() (interface{}, error) {
		return c.doJSON(ctx, operation, method, path, payload)
	})
	if err != nil {
		monitoring.RecordBackendError(operation, errorType(err))
		return nil, err
	}

	env := result.(*models.Envelope)
	if out != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, out); err != nil {
			monitoring.RecordBackendError(operation, "malformed")
			return nil, fmt.Errorf("%w: decode %s data: %v", ErrMalformedResponse, operation, err)
		}
	}
	return env, nil
}

func (c *Client) doJSON(ctx context.Context, operation, method, path string, payload []byte) (*models.Envelope, error) {
	start := time.Now()
	entry := &logging.BackendCallLogEntry{Operation: operation, Method: method, Path: stripQuery(path)}
	defer func() {
		entry.Latency = time.Since(start)
		logging.LogBackendCall(entry)
		monitoring.RecordBackendCall(operation, entry.Status, entry.Latency)
	}()

	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		entry.Err = err
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		entry.Err = err
		if errors.Is(err, context.Canceled) && ctx.Err() == context.Canceled {
			return nil, err
		}
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("%w: %s", ErrBackendTimeout, operation)
		}
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()
	entry.Status = resp.StatusCode

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		entry.Err = err
		return nil, fmt.Errorf("%w: read response: %v", ErrBackendUnavailable, err)
	}

	var env models.Envelope
	decodeErr := json.Unmarshal(body, &env)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := ""
		if decodeErr == nil {
			msg = env.Reason()
		}
		remote := &RemoteError{Operation: operation, StatusCode: resp.StatusCode, Message: msg}
		entry.Err = remote
		return nil, remote
	}
	if decodeErr != nil {
		entry.Err = decodeErr
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedResponse, operation, decodeErr)
	}
	if !env.Success {
		remote := &RemoteError{Operation: operation, StatusCode: resp.StatusCode, Message: env.Reason()}
		entry.Err = remote
		return nil, remote
	}
	return &env, nil
}

func stripQuery(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		return path[:i]
	}
	return path
}

func errorType(err error) string {
	var remote *RemoteError
	switch {
	case errors.Is(err, ErrCircuitOpen):
		return "circuit_open"
	case errors.Is(err, ErrBackendTimeout):
		return "timeout"
	case errors.Is(err, ErrBackendUnavailable):
		return "unavailable"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.As(err, &remote):
		if remote.Rejected() {
			return "rejected"
		}
		return "server_error"
	default:
		return "other"
	}
}
