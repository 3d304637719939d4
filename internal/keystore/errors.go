package keystore

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyName is returned by GenerateKey before any network call when the name is blank
	ErrEmptyName = errors.New("api key name is required")
	// ErrInvalidKeyType is returned for key types other than RESEARCH and CHATBOT
	ErrInvalidKeyType = errors.New("invalid api key type")
	// ErrEmptyKeyID is returned by DeleteKey when no key id is given
	ErrEmptyKeyID = errors.New("api key id is required")
	// ErrBackendUnavailable wraps transport failures reaching the backend
	ErrBackendUnavailable = errors.New("unrepo backend unavailable")
	// ErrBackendTimeout is returned when a backend call exceeds its deadline
	ErrBackendTimeout = errors.New("unrepo backend timeout")
	// ErrMalformedResponse is returned when the backend body is not a valid envelope
	ErrMalformedResponse = errors.New("malformed backend response")
	// ErrCircuitOpen is returned when the circuit breaker is open
	ErrCircuitOpen = errors.New("circuit breaker is open")
)

// RemoteError is a failure reported by the backend itself: either a non-2xx
// status or an envelope with success=false.
type RemoteError struct {
	Operation  string
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: backend returned status %d", e.Operation, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s", e.Operation, e.Message)
}

// Rejected reports whether the backend refused the request rather than failed
func (e *RemoteError) Rejected() bool {
	return e.StatusCode < 500
}

// ServerMessage returns the backend supplied message carried by err, if any
func ServerMessage(err error) string {
	var remote *RemoteError
	if errors.As(err, &remote) {
		return remote.Message
	}
	return ""
}

// IsTransport reports whether err means the backend could not be reached or understood
func IsTransport(err error) bool {
	return errors.Is(err, ErrBackendUnavailable) ||
		errors.Is(err, ErrBackendTimeout) ||
		errors.Is(err, ErrMalformedResponse) ||
		errors.Is(err, ErrCircuitOpen)
}
