package server

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/unrepo/devportal/internal/activity"
	"github.com/unrepo/devportal/internal/dashboard"
	"github.com/unrepo/devportal/internal/logging"
	"github.com/unrepo/devportal/internal/monitoring"
	"github.com/unrepo/devportal/internal/session"
)

// Workspace is everything the portal keeps for one signed-in browser session
type Workspace struct {
	Controller    *dashboard.Controller
	Notifications *dashboard.NotificationQueue
	Sampler       *activity.Sampler

	startMu  sync.Mutex
	started  bool
	ctx      context.Context
	cancel   context.CancelFunc
	mu       sync.Mutex
	lastSeen time.Time
}

// start loads the dashboard on the workspace context, so an aborted request
// cannot settle the session. A session that did not resolve as signed in is
// resolved again on the next call; concurrent callers wait for the load.
func (w *Workspace) start() {
	w.startMu.Lock()
	defer w.startMu.Unlock()

	if !w.started {
		w.started = true
		w.Controller.Start(w.ctx)
		if w.Sampler != nil {
			_ = w.Sampler.Start(w.ctx)
		}
		return
	}
	w.Controller.Reconnect(w.ctx)
}

func (w *Workspace) touch(now time.Time) {
	w.mu.Lock()
	w.lastSeen = now
	w.mu.Unlock()
}

func (w *Workspace) idleSince() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastSeen
}

func (w *Workspace) close() {
	w.cancel()
	if w.Sampler != nil {
		w.Sampler.Stop()
	}
	w.Controller.Close()
}

// WorkspaceFactory builds the workspace of a session from its validated claims
type WorkspaceFactory func(claims *session.Claims, tab dashboard.Tab) (*Workspace, error)

// Registry holds one Workspace per session id and evicts idle ones
type Registry struct {
	mu         sync.Mutex
	workspaces map[string]*Workspace
	factory    WorkspaceFactory
	idle       time.Duration
	now        func() time.Time
	logger     zerolog.Logger
}

// NewRegistry creates a registry; idle <= 0 disables eviction
func NewRegistry(factory WorkspaceFactory, idle time.Duration) *Registry {
	return &Registry{
		workspaces: make(map[string]*Workspace),
		factory:    factory,
		idle:       idle,
		now:        time.Now,
		logger:     logging.NewLogger("registry"),
	}
}

// Acquire returns the workspace of the session, creating and starting it on
// first use. tab only matters for a new workspace.
func (r *Registry) Acquire(claims *session.Claims, tab dashboard.Tab) (*Workspace, error) {
	id := claims.SessionID()

	r.mu.Lock()
	w, ok := r.workspaces[id]
	r.mu.Unlock()

	if !ok {
		created, err := r.factory(claims, tab)
		if err != nil {
			return nil, err
		}
		created.ctx, created.cancel = context.WithCancel(context.Background())

		r.mu.Lock()
		if existing, found := r.workspaces[id]; found {
			r.mu.Unlock()
			created.close()
			w = existing
		} else {
			r.workspaces[id] = created
			n := len(r.workspaces)
			r.mu.Unlock()
			monitoring.SetActiveControllers(n)
			r.logger.Debug().Str("session_id", id).Msg("Dashboard workspace created")
			w = created
		}
	}

	w.start()
	w.touch(r.now())
	return w, nil
}

// Lookup returns the workspace of a session without creating one
func (r *Registry) Lookup(sessionID string) (*Workspace, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.workspaces[sessionID]
	return w, ok
}

// Remove closes and forgets the workspace of a session
func (r *Registry) Remove(sessionID string) {
	r.mu.Lock()
	w, ok := r.workspaces[sessionID]
	delete(r.workspaces, sessionID)
	n := len(r.workspaces)
	r.mu.Unlock()

	if ok {
		w.close()
		monitoring.SetActiveControllers(n)
	}
}

// Sweep closes workspaces idle for longer than the idle timeout
func (r *Registry) Sweep() int {
	if r.idle <= 0 {
		return 0
	}
	cutoff := r.now().Add(-r.idle)

	var evicted []*Workspace
	r.mu.Lock()
	for id, w := range r.workspaces {
		if w.idleSince().Before(cutoff) {
			evicted = append(evicted, w)
			delete(r.workspaces, id)
		}
	}
	n := len(r.workspaces)
	r.mu.Unlock()

	for _, w := range evicted {
		w.close()
	}
	if len(evicted) > 0 {
		monitoring.SetActiveControllers(n)
		r.logger.Info().Int("evicted", len(evicted)).Int("active", n).Msg("Evicted idle dashboard workspaces")
	}
	return len(evicted)
}

// Run sweeps on interval until ctx is done
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// Len returns the number of live workspaces
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.workspaces)
}

// Close closes every workspace
func (r *Registry) Close() {
	r.mu.Lock()
	all := r.workspaces
	r.workspaces = make(map[string]*Workspace)
	r.mu.Unlock()

	for _, w := range all {
		w.close()
	}
	monitoring.SetActiveControllers(0)
}
