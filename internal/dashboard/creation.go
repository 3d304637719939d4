package dashboard

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/unrepo/devportal/internal/models"
)

// FlowState is a state of the key creation flow
type FlowState string

const (
	FlowClosed       FlowState = "closed"
	FlowTypeSelected FlowState = "type_selected"
	FlowSubmitting   FlowState = "submitting"
	FlowSucceeded    FlowState = "succeeded"
	FlowFailed       FlowState = "failed"
)

var (
	// ErrNameRequired is the inline validation error for a blank key name
	ErrNameRequired = errors.New("api key name is required")
	// ErrSubmitInProgress rejects a submit while another is outstanding
	ErrSubmitInProgress = errors.New("api key generation already in progress")
	// ErrFlowClosed is returned for draft operations while no flow is open
	ErrFlowClosed = errors.New("no api key creation in progress")
	// ErrInvalidKeyType rejects types other than RESEARCH and CHATBOT
	ErrInvalidKeyType = errors.New("api key type must be RESEARCH or CHATBOT")
)

// Draft is a snapshot of the creation flow
type Draft struct {
	State FlowState      `json:"state"`
	Type  models.KeyType `json:"type,omitempty"`
	Name  string         `json:"name"`
	Error string         `json:"error,omitempty"`
}

// Submitting reports whether a generate call is outstanding
func (d Draft) Submitting() bool {
	return d.State == FlowSubmitting
}

// CreationFlow is the state machine behind the create key dialog:
// Closed -> TypeSelected -> Submitting -> Succeeded | Failed.
// Succeeded closes once the key list is refreshed; Failed keeps the draft for a retry.
type CreationFlow struct {
	mu      sync.Mutex
	state   FlowState
	keyType models.KeyType
	name    string
	errMsg  string
}

// NewCreationFlow returns a closed flow
func NewCreationFlow() *CreationFlow {
	return &CreationFlow{state: FlowClosed}
}

// Open starts a draft for keyType with an empty name
func (f *CreationFlow) Open(keyType models.KeyType) error {
	if !keyType.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidKeyType, keyType)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == FlowSubmitting || f.state == FlowSucceeded {
		return ErrSubmitInProgress
	}
	f.state = FlowTypeSelected
	f.keyType = keyType
	f.name = ""
	f.errMsg = ""
	return nil
}

// SetName updates the draft name
func (f *CreationFlow) SetName(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch f.state {
	case FlowTypeSelected, FlowFailed:
		f.name = name
		f.errMsg = ""
		return nil
	case FlowSubmitting, FlowSucceeded:
		return ErrSubmitInProgress
	default:
		return ErrFlowClosed
	}
}

// Cancel discards the draft. It is refused while a submit is outstanding.
func (f *CreationFlow) Cancel() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == FlowSubmitting {
		return ErrSubmitInProgress
	}
	f.reset()
	return nil
}

// begin validates the draft and moves to Submitting
func (f *CreationFlow) begin() (models.KeyType, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch f.state {
	case FlowSubmitting, FlowSucceeded:
		return "", "", ErrSubmitInProgress
	case FlowTypeSelected, FlowFailed:
	default:
		return "", "", ErrFlowClosed
	}
	if strings.TrimSpace(f.name) == "" {
		f.errMsg = MsgNameRequired
		return "", "", ErrNameRequired
	}
	f.state = FlowSubmitting
	f.errMsg = ""
	return f.keyType, f.name, nil
}

// generated records that the backend issued the key; the caller finishes
// the post-success work and then calls close.
func (f *CreationFlow) generated() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = FlowSucceeded
}

func (f *CreationFlow) close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reset()
}

func (f *CreationFlow) fail(message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = FlowFailed
	f.errMsg = message
}

func (f *CreationFlow) reset() {
	f.state = FlowClosed
	f.keyType = ""
	f.name = ""
	f.errMsg = ""
}

// Snapshot returns the current draft
func (f *CreationFlow) Snapshot() Draft {
	f.mu.Lock()
	defer f.mu.Unlock()
	return Draft{State: f.state, Type: f.keyType, Name: f.name, Error: f.errMsg}
}
