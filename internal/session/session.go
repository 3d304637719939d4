package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Status is the resolution state of a browser session
type Status string

const (
	StatusLoading         Status = "loading"
	StatusUnauthenticated Status = "unauthenticated"
	StatusAuthenticated   Status = "authenticated"
)

// AnonymousIdentity scopes backend calls when the provider supplies no email
const AnonymousIdentity = "anonymous@unrepo.dev"

// DefaultResolveTimeout bounds how long Resolve waits for the provider
const DefaultResolveTimeout = 10 * time.Second

// User is the signed-in account as reported by the identity provider
type User struct {
	Email       string `json:"email,omitempty"`
	Name        string `json:"name,omitempty"`
	GitHubID    string `json:"githubId,omitempty"`
	GitHubLogin string `json:"githubLogin,omitempty"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
}

// Session is a snapshot of the session state
type Session struct {
	Status Status `json:"status"`
	User   *User  `json:"user,omitempty"`
}

// Identity returns the email scoping backend key operations
func (s Session) Identity() string {
	if s.User != nil && s.User.Email != "" {
		return s.User.Email
	}
	return AnonymousIdentity
}

// Authenticated reports whether the session resolved to a signed-in user
func (s Session) Authenticated() bool {
	return s.Status == StatusAuthenticated
}

// Provider resolves the current user. A nil user with a nil error means signed out.
type Provider interface {
	CurrentUser(ctx context.Context) (*User, error)
}

// StaticProvider always resolves to the same user, or signed out when User is nil
type StaticProvider struct {
	User *User
}

func (p StaticProvider) CurrentUser(ctx context.Context) (*User, error) {
	return p.User, nil
}

// Context tracks one session's status and notifies subscribers on transitions
type Context struct {
	provider Provider
	timeout  time.Duration

	mu          sync.RWMutex
	current     Session
	subscribers map[int]func(Session)
	nextSubID   int
}

// NewContext creates a session context in the loading state
func NewContext(provider Provider, timeout time.Duration) *Context {
	if timeout <= 0 {
		timeout = DefaultResolveTimeout
	}
	return &Context{
		provider:    provider,
		timeout:     timeout,
		current:     Session{Status: StatusLoading},
		subscribers: make(map[int]func(Session)),
	}
}

// Resolve asks the provider for the user. Provider errors and timeouts resolve
// to unauthenticated so callers never wait on a stuck provider.
func (c *Context) Resolve(ctx context.Context) Session {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	type result struct {
		user *User
		err  error
	}
	done := make(chan result, 1)
	go func() {
		user, err := c.provider.CurrentUser(ctx)
		done <- result{user: user, err: err}
	}()

	next := Session{Status: StatusUnauthenticated}
	select {
	case r := <-done:
		if r.err != nil {
			log.Warn().Err(r.err).Msg("Session provider failed, treating as signed out")
		} else if r.user != nil {
			next = Session{Status: StatusAuthenticated, User: r.user}
		}
	case <-ctx.Done():
		log.Warn().Err(ctx.Err()).Msg("Session provider did not answer, treating as signed out")
	}

	c.set(next)
	return next
}

// Current returns the latest session snapshot
func (c *Context) Current() Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Status returns the current status
func (c *Context) Status() Status {
	return c.Current().Status
}

// Identity returns the current identity, falling back to AnonymousIdentity
func (c *Context) Identity() string {
	return c.Current().Identity()
}

// OnChange registers fn for status transitions and returns an unsubscribe func
func (c *Context) OnChange(fn func(Session)) func() {
	c.mu.Lock()
	id := c.nextSubID
	c.nextSubID++
	c.subscribers[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subscribers, id)
		c.mu.Unlock()
	}
}

// SignOut moves the context to unauthenticated
func (c *Context) SignOut() {
	c.set(Session{Status: StatusUnauthenticated})
}

func (c *Context) set(next Session) {
	c.mu.Lock()
	prev := c.current
	c.current = next
	var subs []func(Session)
	if prev.Status != next.Status || prev.Identity() != next.Identity() {
		subs = make([]func(Session), 0, len(c.subscribers))
		for _, fn := range c.subscribers {
			subs = append(subs, fn)
		}
	}
	c.mu.Unlock()

	for _, fn := range subs {
		fn(next)
	}
}
