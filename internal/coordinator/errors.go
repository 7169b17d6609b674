package coordinator

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Domain-specific errors for the coordinator package.
var (
	// ErrConfiguration is returned by New for invalid parameters.
	ErrConfiguration = errors.New("coordinator: invalid configuration")

	// ErrSetupNotReady is returned by FirstRefresh when the initial fetch
	// fails. The owning entry should retry setup later.
	ErrSetupNotReady = errors.New("coordinator: setup not ready")

	// ErrUpdateFailed marks an expected, transient fetch failure.
	// Fetch functions wrap it for timeouts, refused connections and the like.
	ErrUpdateFailed = errors.New("coordinator: update failed")

	// ErrShutdown is returned when a refresh is attempted on, or completes
	// after, a coordinator that has been shut down.
	ErrShutdown = errors.New("coordinator: shut down")
)

// UpdateFailed wraps err as an expected fetch failure.
func UpdateFailed(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrUpdateFailed) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrUpdateFailed, err)
}

// IsExpected reports whether err is a transient failure that should be
// logged quietly: an ErrUpdateFailed, a deadline, or a network error.
func IsExpected(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUpdateFailed) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
