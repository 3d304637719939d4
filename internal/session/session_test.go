package session

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type providerFunc func(ctx context.Context) (*User, error)

func (f providerFunc) CurrentUser(ctx context.Context) (*User, error) { return f(ctx) }

func TestContext_StartsLoading(t *testing.T) {
	c := NewContext(StaticProvider{}, time.Second)
	if c.Status() != StatusLoading {
		t.Fatalf("status = %s, want loading", c.Status())
	}
}

func TestContext_ResolveAuthenticated(t *testing.T) {
	c := NewContext(StaticProvider{User: &User{Email: "dev@example.com", Name: "Dev"}}, time.Second)

	s := c.Resolve(context.Background())
	if !s.Authenticated() {
		t.Fatalf("status = %s, want authenticated", s.Status)
	}
	if c.Identity() != "dev@example.com" {
		t.Errorf("identity = %q", c.Identity())
	}
}

func TestContext_IdentityFallsBackToAnonymous(t *testing.T) {
	c := NewContext(StaticProvider{User: &User{Name: "no email"}}, time.Second)
	c.Resolve(context.Background())
	if c.Identity() != AnonymousIdentity {
		t.Errorf("identity = %q, want %q", c.Identity(), AnonymousIdentity)
	}
}

func TestContext_ProviderErrorResolvesUnauthenticated(t *testing.T) {
	c := NewContext(providerFunc(func(ctx context.Context) (*User, error) {
		return nil, errors.New("provider down")
	}), time.Second)

	if s := c.Resolve(context.Background()); s.Status != StatusUnauthenticated {
		t.Fatalf("status = %s, want unauthenticated", s.Status)
	}
}

func TestContext_ProviderTimeoutResolvesUnauthenticated(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	c := NewContext(providerFunc(func(ctx context.Context) (*User, error) {
		<-block
		return &User{Email: "late@example.com"}, nil
	}), 20*time.Millisecond)

	start := time.Now()
	s := c.Resolve(context.Background())
	if s.Status != StatusUnauthenticated {
		t.Fatalf("status = %s, want unauthenticated", s.Status)
	}
	if time.Since(start) > time.Second {
		t.Fatal("Resolve waited on a stuck provider")
	}
}

func TestContext_OnChangeNotifiesTransitionsOnly(t *testing.T) {
	c := NewContext(StaticProvider{User: &User{Email: "dev@example.com"}}, time.Second)
	var calls int32
	var last atomic.Value
	unsubscribe := c.OnChange(func(s Session) {
		atomic.AddInt32(&calls, 1)
		last.Store(s.Status)
	})

	c.Resolve(context.Background())
	c.Resolve(context.Background())
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("calls = %d, want 1", got)
	}
	if last.Load().(Status) != StatusAuthenticated {
		t.Errorf("last = %v", last.Load())
	}

	c.SignOut()
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Fatalf("calls = %d, want 2 after sign out", got)
	}

	unsubscribe()
	c.Resolve(context.Background())
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Fatalf("calls = %d after unsubscribe", got)
	}
}
