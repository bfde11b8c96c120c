package ollama

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
)

// Sentinel errors for client operations
var (
	// ErrNotRunning is returned when no server is reachable at the configured address
	ErrNotRunning = errors.New("ollama not running")
	// ErrTimeout is returned when a request exceeds the configured duration
	ErrTimeout = errors.New("ollama request timed out")
	// ErrConnectionFailed is returned when the connection fails for other reasons
	ErrConnectionFailed = errors.New("ollama connection failed")
)

// StatusError reports a non-2xx HTTP response, carrying the status code
// and the (truncated) response body.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ollama request failed: status %d: %s", e.Code, e.Body)
}

// classifyError converts low-level transport errors into the client's
// error taxonomy.
func classifyError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	if errors.Is(err, context.Canceled) {
		return context.Canceled
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		return ErrNotRunning
	}

	// DNS errors, TLS errors, resets, etc.
	return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
}
