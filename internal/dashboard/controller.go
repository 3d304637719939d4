package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/unrepo/devportal/internal/keystore"
	"github.com/unrepo/devportal/internal/logging"
	"github.com/unrepo/devportal/internal/models"
	"github.com/unrepo/devportal/internal/monitoring"
	"github.com/unrepo/devportal/internal/session"
)

// User facing messages
const (
	MsgNameRequired      = "Please enter an API name"
	MsgGenerated         = "API key generated successfully!"
	MsgExisting          = "Using existing API key"
	MsgGenerateFailed    = "Failed to generate API key"
	MsgGenerateTransport = "Failed to generate API key. Please try again."
	MsgDeleted           = "API key deleted successfully"
	MsgDeleteFailed      = "Failed to delete API key"
	MsgDeleteTransport   = "Failed to delete API key. Please try again."
	MsgCopied            = "API key copied to clipboard"
	DeletePrompt         = "Are you sure you want to delete this API key? This action cannot be undone."
	OneTimeRevealWarning = "Copy it now and store it securely; it will not be shown in full again."
)

// SuccessNotificationDuration is how long key generation results stay visible
const SuccessNotificationDuration = 5 * time.Second

var (
	ErrNotAuthenticated = errors.New("session is not authenticated")
	ErrKeyNotFound      = errors.New("api key not found")
	ErrNotConfirmed     = errors.New("delete not confirmed")
	ErrClosed           = errors.New("dashboard controller closed")
)

// Options configures a Controller
type Options struct {
	Store     KeyStore
	Session   *session.Context
	Notifier  Notifier
	Confirmer Confirmer
	Clipboard Clipboard
	Cache     KeyCache
	// InitialTab is read once; later tab changes are never written back
	InitialTab     Tab
	CopyResetDelay time.Duration
	FreeTierCap    int64
	PreviewLength  int
}

// Controller owns one session's dashboard state and drives the key store
type Controller struct {
	store     KeyStore
	sess      *session.Context
	notifier  Notifier
	confirmer Confirmer
	clipboard Clipboard
	cache     KeyCache

	freeTierCap int64
	preview     int

	visibility *Visibility
	creation   *CreationFlow
	logger     zerolog.Logger

	base   context.Context
	cancel context.CancelFunc

	mu           sync.RWMutex
	tab          Tab
	keys         []models.APIKey
	usage        []models.UsageRecord
	keysIssued   uint64
	keysApplied  uint64
	usageIssued  uint64
	usageApplied uint64
	closed       bool
	unsubscribe  func()
}

type discardNotifier struct{}

func (discardNotifier) Notify(Notification) {}

// New creates a controller. Store and Session are required.
func New(opts Options) (*Controller, error) {
	if opts.Store == nil || opts.Session == nil {
		return nil, fmt.Errorf("dashboard: store and session are required")
	}
	if opts.Notifier == nil {
		opts.Notifier = discardNotifier{}
	}
	if opts.Confirmer == nil {
		opts.Confirmer = RequestConfirmer{}
	}
	if opts.FreeTierCap <= 0 {
		opts.FreeTierCap = DefaultFreeTierCap
	}
	if opts.PreviewLength <= 0 {
		opts.PreviewLength = PreviewLength
	}

	base, cancel := context.WithCancel(context.Background())
	return &Controller{
		store:       opts.Store,
		sess:        opts.Session,
		notifier:    opts.Notifier,
		confirmer:   opts.Confirmer,
		clipboard:   opts.Clipboard,
		cache:       opts.Cache,
		freeTierCap: opts.FreeTierCap,
		preview:     opts.PreviewLength,
		visibility:  NewVisibility(opts.CopyResetDelay),
		creation:    NewCreationFlow(),
		logger:      logging.NewLogger("dashboard"),
		base:        base,
		cancel:      cancel,
		tab:         ParseTab(string(opts.InitialTab)),
		keys:        []models.APIKey{},
		usage:       []models.UsageRecord{},
	}, nil
}

// Start resolves the session if needed and loads keys and usage when signed in.
// Later session transitions refresh or clear the cached lists.
func (c *Controller) Start(ctx context.Context) {
	if c.sess.Status() == session.StatusLoading {
		c.sess.Resolve(ctx)
	}

	unsubscribe := c.sess.OnChange(func(s session.Session) {
		if s.Authenticated() {
			c.Refresh(c.base)
			return
		}
		c.clear()
	})
	c.mu.Lock()
	c.unsubscribe = unsubscribe
	c.mu.Unlock()

	if c.sess.Current().Authenticated() {
		c.Refresh(ctx)
	}
}

// Reconnect resolves the session again when it is not signed in. A transition
// to signed in reloads keys and usage before Reconnect returns.
func (c *Controller) Reconnect(ctx context.Context) session.Session {
	if c.isClosed() || c.sess.Current().Authenticated() {
		return c.sess.Current()
	}
	return c.sess.Resolve(ctx)
}

// Refresh re-fetches keys and usage concurrently
func (c *Controller) Refresh(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		c.RefreshKeys(ctx)
	}()
	go func() {
		defer wg.Done()
		c.RefreshUsage(ctx)
	}()
	wg.Wait()
}

// RefreshKeys re-fetches the key list. Failures are logged and leave the
// cached list untouched; a response older than one already applied is dropped.
func (c *Controller) RefreshKeys(ctx context.Context) {
	s := c.sess.Current()
	if !s.Authenticated() {
		return
	}
	ctx, cancel := c.derive(ctx)
	defer cancel()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.keysIssued++
	seq := c.keysIssued
	c.mu.Unlock()

	keys, err := c.store.ListKeys(ctx, s.Identity())
	if err != nil {
		c.logger.Warn().Err(err).Msg("Failed to fetch API keys")
		return
	}

	c.mu.Lock()
	if c.closed || seq < c.keysApplied {
		c.mu.Unlock()
		c.logger.Debug().Uint64("seq", seq).Msg("Discarding stale key list")
		return
	}
	c.keysApplied = seq
	c.keys = keys
	c.mu.Unlock()

	keep := make(map[string]bool, len(keys))
	for i := range keys {
		keep[keys[i].ID] = true
	}
	c.visibility.Forget(keep)
}

// RefreshUsage re-fetches usage stats with the same failure policy as RefreshKeys
func (c *Controller) RefreshUsage(ctx context.Context) {
	s := c.sess.Current()
	if !s.Authenticated() {
		return
	}
	ctx, cancel := c.derive(ctx)
	defer cancel()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.usageIssued++
	seq := c.usageIssued
	c.mu.Unlock()

	usage, err := c.store.FetchUsageStats(ctx, s.Identity())
	if err != nil {
		c.logger.Warn().Err(err).Msg("Failed to fetch usage stats")
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || seq < c.usageApplied {
		return
	}
	c.usageApplied = seq
	c.usage = usage
}

// ToggleVisibility flips the revealed flag of keyID
func (c *Controller) ToggleVisibility(keyID string) (bool, error) {
	if _, ok := c.lookup(keyID); !ok {
		return false, ErrKeyNotFound
	}
	return c.visibility.Toggle(keyID), nil
}

// CopyKey writes the secret of keyID to the clipboard and returns it
func (c *Controller) CopyKey(ctx context.Context, keyID string) (string, error) {
	key, ok := c.lookup(keyID)
	if !ok {
		return "", ErrKeyNotFound
	}
	if err := c.visibility.Copy(ctx, c.clipboard, keyID, key.Secret); err != nil {
		return "", err
	}
	monitoring.RecordKeyCopied()
	c.notify(LevelSuccess, MsgCopied, "", 0)
	return key.Secret, nil
}

// DeleteKey deletes keyID after the Confirmer agrees. A declined confirmation
// makes no backend call and leaves the list as it was.
func (c *Controller) DeleteKey(ctx context.Context, keyID string) error {
	s := c.sess.Current()
	if !s.Authenticated() {
		return ErrNotAuthenticated
	}
	if c.isClosed() {
		return ErrClosed
	}
	if !c.confirmer.Confirm(ctx, DeletePrompt) {
		monitoring.RecordDeleteDeclined()
		return ErrNotConfirmed
	}

	dctx, cancel := c.derive(ctx)
	defer cancel()

	if err := c.store.DeleteKey(dctx, s.Identity(), keyID); err != nil {
		c.logger.Warn().Err(err).Str("key_id", keyID).Msg("Failed to delete API key")
		if !c.isClosed() {
			c.notify(LevelError, failureMessage(err, MsgDeleteFailed, MsgDeleteTransport), "", 0)
		}
		return err
	}

	logging.LogKeyEvent("deleted", s.Identity(), "", keyID)
	c.RefreshKeys(ctx)
	c.notify(LevelSuccess, MsgDeleted, "", 0)
	return nil
}

// OpenCreation opens the create dialog for keyType
func (c *Controller) OpenCreation(keyType models.KeyType) error {
	return c.creation.Open(keyType)
}

// SetCreationName updates the draft name
func (c *Controller) SetCreationName(name string) error {
	return c.creation.SetName(name)
}

// CancelCreation discards the draft unless a submit is outstanding
func (c *Controller) CancelCreation() error {
	return c.creation.Cancel()
}

// SubmitCreation generates the drafted key. A blank name fails with
// ErrNameRequired and no backend call; a second submit while one is
// outstanding fails with ErrSubmitInProgress. On success the secret is cached,
// the key list is re-fetched once, the flow closes and the backend result is
// returned. On failure the flow stays open with the name kept.
func (c *Controller) SubmitCreation(ctx context.Context) (*keystore.GenerateResult, error) {
	s := c.sess.Current()
	if !s.Authenticated() {
		return nil, ErrNotAuthenticated
	}
	if c.isClosed() {
		return nil, ErrClosed
	}

	keyType, name, err := c.creation.begin()
	if err != nil {
		return nil, err
	}

	gctx, cancel := c.derive(ctx)
	res, err := c.store.GenerateKey(gctx, s.Identity(), keyType, name)
	cancel()
	if err != nil {
		msg := failureMessage(err, MsgGenerateFailed, MsgGenerateTransport)
		c.creation.fail(msg)
		monitoring.RecordKeyGenerateFailed(string(keyType))
		c.logger.Warn().Err(err).Str("key_type", string(keyType)).Msg("Failed to generate API key")
		if !c.isClosed() {
			c.notify(LevelError, msg, "", 0)
		}
		return nil, err
	}

	c.creation.generated()
	if c.cache != nil {
		if err := c.cache.Put(ctx, keyType.CacheSlot(), res.Secret); err != nil {
			c.logger.Warn().Err(err).Str("slot", keyType.CacheSlot()).Msg("Failed to cache generated key")
		}
	}
	c.RefreshKeys(ctx)
	c.creation.close()

	event, title := "generated", MsgGenerated
	if res.Existing {
		event, title = "existing", MsgExisting
	}
	logging.LogKeyEvent(event, s.Identity(), string(keyType), "")
	c.notify(LevelSuccess, title,
		fmt.Sprintf("Key: %s... %s", PreviewN(res.Secret, c.preview), OneTimeRevealWarning),
		SuccessNotificationDuration)
	return res, nil
}

// SelectTab switches the active tab for this controller only
func (c *Controller) SelectTab(tab Tab) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tab = tab
}

// CachedKey returns the most recently generated secret of keyType, if cached.
// The cache is a convenience for docs examples, not the source of a new secret.
func (c *Controller) CachedKey(ctx context.Context, keyType models.KeyType) (string, bool) {
	if c.cache == nil {
		return "", false
	}
	secret, ok, err := c.cache.Get(ctx, keyType.CacheSlot())
	if err != nil {
		c.logger.Warn().Err(err).Msg("Failed to read key cache")
		return "", false
	}
	return secret, ok
}

// Keys returns a copy of the cached key list
func (c *Controller) Keys() []models.APIKey {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.APIKey, len(c.keys))
	copy(out, c.keys)
	return out
}

// Usage returns a copy of the cached usage records
func (c *Controller) Usage() []models.UsageRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.UsageRecord, len(c.usage))
	copy(out, c.usage)
	return out
}

// TotalCalls sums usage over the cached key list
func (c *Controller) TotalCalls() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return TotalCalls(c.keys)
}

// Session returns the session snapshot
func (c *Controller) Session() session.Session {
	return c.sess.Current()
}

// Creation returns the creation draft
func (c *Controller) Creation() Draft {
	return c.creation.Snapshot()
}

// CopiedKeyID returns the key copied within the reset window, or ""
func (c *Controller) CopiedKeyID() string {
	return c.visibility.Copied()
}

// View composes the current dashboard view
func (c *Controller) View() View {
	c.mu.RLock()
	in := ComposeInput{
		Tab:         c.tab,
		Keys:        c.keys,
		Usage:       c.usage,
		FreeTierCap: c.freeTierCap,
		Visible:     c.preview,
	}
	c.mu.RUnlock()

	in.Identity = c.sess.Identity()
	in.Creation = c.creation.Snapshot()
	in.Revealed = c.visibility.Revealed
	in.CopiedKeyID = c.visibility.Copied()
	return Compose(in)
}

// Close cancels in-flight requests and stops the copy timer. Responses that
// arrive afterwards are discarded.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	unsubscribe := c.unsubscribe
	c.mu.Unlock()

	c.cancel()
	c.visibility.Stop()
	if unsubscribe != nil {
		unsubscribe()
	}
}

func (c *Controller) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

func (c *Controller) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	// invalidate anything still in flight
	c.keysApplied = c.keysIssued + 1
	c.keysIssued = c.keysApplied
	c.usageApplied = c.usageIssued + 1
	c.usageIssued = c.usageApplied
	c.keys = []models.APIKey{}
	c.usage = []models.UsageRecord{}
}

func (c *Controller) lookup(keyID string) (models.APIKey, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for i := range c.keys {
		if c.keys[i].ID == keyID {
			return c.keys[i], true
		}
	}
	return models.APIKey{}, false
}

// derive ties a caller context to the controller lifetime
func (c *Controller) derive(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(c.base, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func (c *Controller) notify(level Level, title, description string, d time.Duration) {
	c.notifier.Notify(Notification{
		Level:       level,
		Title:       title,
		Description: description,
		Duration:    d,
		DurationMS:  d.Milliseconds(),
		CreatedAt:   time.Now().UTC(),
	})
}

func failureMessage(err error, fallback, transport string) string {
	if msg := keystore.ServerMessage(err); msg != "" {
		return msg
	}
	if keystore.IsTransport(err) || errors.Is(err, context.DeadlineExceeded) {
		return transport
	}
	return fallback
}
