package errorx

import (
	"fmt"
	"runtime/debug"

	"mangabot/internal/logger"
)

// Handler provides centralized panic recovery for long-lived workers.
type Handler struct {
	// RecoveryEnabled determines if panics should be recovered
	RecoveryEnabled bool
	// LogStackTraces determines if stack traces should be logged
	LogStackTraces bool
}

// NewHandler creates a new error handler
func NewHandler() *Handler {
	return &Handler{
		RecoveryEnabled: true,
		LogStackTraces:  true,
	}
}

// WithRecovery wraps a function with panic recovery. A recovered panic is
// returned as an error so the caller's loop can continue.
func (h *Handler) WithRecovery(fn func() error) (err error) {
	if !h.RecoveryEnabled {
		return fn()
	}

	defer func() {
		if r := recover(); r != nil {
			if h.LogStackTraces {
				logger.Errorf("panic recovered: %v\n%s", r, debug.Stack())
			}
			err = fmt.Errorf("panic recovered: %v", r)
		}
	}()

	return fn()
}
