package coordinator

import (
	"context"
	"time"
)

// Status is a point-in-time view of a coordinator, shaped for the API.
type Status struct {
	Name              string    `json:"name"`
	EntryID           string    `json:"entry_id,omitempty"`
	Interval          string    `json:"interval"`
	LastUpdateSuccess bool      `json:"last_update_success"`
	Available         bool      `json:"available"`
	Rebooting         bool      `json:"rebooting"`
	Failures          int       `json:"consecutive_failures"`
	LastError         string    `json:"last_error,omitempty"`
	LastSuccessAt     time.Time `json:"last_success_at,omitzero"`
	LastRefreshAt     time.Time `json:"last_refresh_at,omitzero"`
	RetryPending      bool      `json:"retry_pending"`
	Listeners         int       `json:"listeners"`
	HasData           bool      `json:"has_data"`
}

// Handle is the type-independent view of a Coordinator used by entry
// bookkeeping and the API.
type Handle interface {
	Name() string
	Snapshot() Status
	RequestRefresh(ctx context.Context)
	Shutdown()
}

// Snapshot returns the current status.
func (c *Coordinator[T]) Snapshot() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Status{
		Name:              c.name,
		EntryID:           c.opts.entryID,
		Interval:          c.interval.String(),
		LastUpdateSuccess: c.lastSuccess,
		Available:         c.availableLocked(),
		Rebooting:         c.rebooting,
		Failures:          c.failures,
		LastSuccessAt:     c.lastSuccessAt,
		LastRefreshAt:     c.lastRefreshAt,
		RetryPending:      c.retryPending,
		Listeners:         len(c.listeners),
		HasData:           c.hasData,
	}
	if c.lastErr != nil {
		s.LastError = c.lastErr.Error()
	}
	return s
}
