package keystore

import (
	"context"
	"errors"
	"time"
)

// TimeoutConfig holds timeout configuration
type TimeoutConfig struct {
	// DefaultTimeout is used when no timeout is requested
	DefaultTimeout time.Duration
	// MaxTimeout is the maximum allowed timeout
	MaxTimeout time.Duration
	// MinTimeout is the minimum allowed timeout
	MinTimeout time.Duration
}

// DefaultTimeoutConfig returns default timeout configuration
func DefaultTimeoutConfig() *TimeoutConfig {
	return &TimeoutConfig{
		DefaultTimeout: 10 * time.Second,
		MaxTimeout:     60 * time.Second,
		MinTimeout:     2 * time.Second,
	}
}

// TimeoutManager clamps per-call deadlines for backend requests
type TimeoutManager struct {
	config *TimeoutConfig
}

// NewTimeoutManager creates a new timeout manager
func NewTimeoutManager(config *TimeoutConfig) *TimeoutManager {
	if config == nil {
		config = DefaultTimeoutConfig()
	}
	return &TimeoutManager{config: config}
}

// GetTimeout returns the default for 0, otherwise requested clamped to [min, max]
func (t *TimeoutManager) GetTimeout(requested time.Duration) time.Duration {
	if requested == 0 {
		return t.config.DefaultTimeout
	}
	if requested < t.config.MinTimeout {
		return t.config.MinTimeout
	}
	if requested > t.config.MaxTimeout {
		return t.config.MaxTimeout
	}
	return requested
}

// WithTimeout derives a context bounded by the clamped timeout
func (t *TimeoutManager) WithTimeout(ctx context.Context, requested time.Duration) (context.Context, context.CancelFunc, time.Duration) {
	timeout := t.GetTimeout(requested)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, cancel, timeout
}

// IsTimeoutError checks if an error is a timeout error
func IsTimeoutError(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrBackendTimeout)
}
