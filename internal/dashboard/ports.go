package dashboard

import (
	"context"
	"sync"
	"time"

	"github.com/unrepo/devportal/internal/keystore"
	"github.com/unrepo/devportal/internal/models"
)

// KeyStore is the remote key service the controller drives
type KeyStore interface {
	ListKeys(ctx context.Context, identity string) ([]models.APIKey, error)
	GenerateKey(ctx context.Context, identity string, keyType models.KeyType, name string) (*keystore.GenerateResult, error)
	DeleteKey(ctx context.Context, identity, keyID string) error
	FetchUsageStats(ctx context.Context, identity string) ([]models.UsageRecord, error)
}

// Level is the severity of a notification
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notification is a transient, dismissable message about an async outcome
type Notification struct {
	Level       Level         `json:"level"`
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	Duration    time.Duration `json:"-"`
	DurationMS  int64         `json:"durationMs,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
}

// Notifier presents notifications to the user
type Notifier interface {
	Notify(n Notification)
}

// Confirmer asks the user to confirm a destructive action
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) bool
}

// Clipboard receives copied secrets
type Clipboard interface {
	WriteText(ctx context.Context, text string) error
}

// KeyCache holds the most recently generated secret per key type. It is a
// convenience for pre-filling examples and never treated as authoritative.
type KeyCache interface {
	Put(ctx context.Context, slot, secret string) error
	Get(ctx context.Context, slot string) (string, bool, error)
}

// ConfirmFunc adapts a function to Confirmer
type ConfirmFunc func(ctx context.Context, prompt string) bool

func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) bool { return f(ctx, prompt) }

// ClipboardFunc adapts a function to Clipboard
type ClipboardFunc func(ctx context.Context, text string) error

func (f ClipboardFunc) WriteText(ctx context.Context, text string) error { return f(ctx, text) }

type confirmationKey struct{}

// WithConfirmation records on ctx whether the user already confirmed the action
func WithConfirmation(ctx context.Context, confirmed bool) context.Context {
	return context.WithValue(ctx, confirmationKey{}, confirmed)
}

// RequestConfirmer confirms only when the request context says the user did
type RequestConfirmer struct{}

func (RequestConfirmer) Confirm(ctx context.Context, _ string) bool {
	confirmed, _ := ctx.Value(confirmationKey{}).(bool)
	return confirmed
}

// NotificationQueue buffers notifications until the presentation layer drains them
type NotificationQueue struct {
	mu    sync.Mutex
	items []Notification
	limit int
}

// NewNotificationQueue creates a queue keeping at most limit pending notifications
func NewNotificationQueue(limit int) *NotificationQueue {
	if limit <= 0 {
		limit = 20
	}
	return &NotificationQueue{limit: limit}
}

// Notify appends n, dropping the oldest pending notification when full
func (q *NotificationQueue) Notify(n Notification) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == q.limit {
		q.items = q.items[1:]
	}
	q.items = append(q.items, n)
}

// Drain returns and clears pending notifications
func (q *NotificationQueue) Drain() []Notification {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.items
	q.items = nil
	if out == nil {
		out = []Notification{}
	}
	return out
}
