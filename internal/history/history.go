package history

import (
	"context"
	"errors"
	"time"

	"github.com/nerrad567/gray-logic-hub/internal/coordinator"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// ErrInvalidRecord is returned when a record lacks its entry or coordinator.
var ErrInvalidRecord = errors.New("history: entry_id and coordinator are required")

// Record is one stored refresh attempt.
type Record struct {
	ID          int64         `json:"id"`
	EntryID     string        `json:"entry_id"`
	Coordinator string        `json:"coordinator"`
	Trigger     string        `json:"trigger"`
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration_ns"`
	Success     bool          `json:"success"`
	Expected    bool          `json:"expected"`
	Failures    int           `json:"consecutive_failures"`
	Available   bool          `json:"available"`
	Error       string        `json:"error,omitempty"`
}

// FromEvent converts a refresh event into a record.
func FromEvent(ev coordinator.RefreshEvent) Record {
	r := Record{
		EntryID:     ev.EntryID,
		Coordinator: ev.Coordinator,
		Trigger:     string(ev.Trigger),
		StartedAt:   ev.StartedAt,
		Duration:    ev.Duration,
		Success:     ev.Success(),
		Expected:    ev.Expected,
		Failures:    ev.Failures,
		Available:   ev.Available,
	}
	if ev.Err != nil {
		r.Error = ev.Err.Error()
	}
	return r
}

// Filter selects records. Entry and coordinator are optional.
type Filter struct {
	EntryID     string
	Coordinator string
	Limit       int // default 50, max 500
}

// Repository stores refresh records.
//
// Implementations must be safe for concurrent use.
type Repository interface {
	Insert(ctx context.Context, r Record) error
	List(ctx context.Context, f Filter) ([]Record, error)
	Prune(ctx context.Context, before time.Time) (int64, error)
}
