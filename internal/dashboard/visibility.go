package dashboard

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// DefaultCopyResetDelay is how long a key stays marked as copied
const DefaultCopyResetDelay = 2000 * time.Millisecond

type stopper interface {
	Stop() bool
}

// Visibility tracks which keys are revealed and which one was just copied.
// Only one reset timer is ever pending; a newer copy replaces it.
type Visibility struct {
	mu         sync.Mutex
	revealed   map[string]bool
	copied     string
	generation uint64
	timer      stopper
	resetAfter time.Duration
	afterFunc  func(d time.Duration, f func()) stopper
}

// NewVisibility creates visibility state with the given copied-flag lifetime
func NewVisibility(resetAfter time.Duration) *Visibility {
	if resetAfter <= 0 {
		resetAfter = DefaultCopyResetDelay
	}
	return &Visibility{
		revealed:   make(map[string]bool),
		resetAfter: resetAfter,
		afterFunc: func(d time.Duration, f func()) stopper {
			return time.AfterFunc(d, f)
		},
	}
}

// Toggle flips the revealed flag of keyID only and returns the new value
func (v *Visibility) Toggle(keyID string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.revealed[keyID] = !v.revealed[keyID]
	return v.revealed[keyID]
}

// Revealed reports whether keyID is shown in full
func (v *Visibility) Revealed(keyID string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.revealed[keyID]
}

// Copied returns the id of the key copied within the reset window, or ""
func (v *Visibility) Copied() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.copied
}

// Copy writes secret to clip and marks keyID as copied
func (v *Visibility) Copy(ctx context.Context, clip Clipboard, keyID, secret string) error {
	if clip != nil {
		if err := clip.WriteText(ctx, secret); err != nil {
			return fmt.Errorf("write clipboard: %w", err)
		}
	}
	v.markCopied(keyID)
	return nil
}

func (v *Visibility) markCopied(keyID string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.timer != nil {
		v.timer.Stop()
	}
	v.generation++
	gen := v.generation
	v.copied = keyID
	v.timer = v.afterFunc(v.resetAfter, func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		// a stopped timer may still fire if it was already running
		if v.generation == gen {
			v.copied = ""
			v.timer = nil
		}
	})
}

// Forget drops state for keys that no longer exist
func (v *Visibility) Forget(keep map[string]bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for id := range v.revealed {
		if !keep[id] {
			delete(v.revealed, id)
		}
	}
}

// Stop cancels the pending reset timer and clears the copied flag
func (v *Visibility) Stop() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.timer != nil {
		v.timer.Stop()
		v.timer = nil
	}
	v.generation++
	v.copied = ""
}
