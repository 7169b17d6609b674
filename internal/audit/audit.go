package audit

import (
	"context"
	"errors"
	"time"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// Actions recorded in the trail.
const (
	ActionRefresh = "refresh"
	ActionReboot  = "reboot"
)

// Sources a request can arrive from.
const (
	SourceAPI  = "api"
	SourceMQTT = "mqtt"
)

// Outcomes of a recorded action.
const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// ErrInvalidEvent is returned when an event lacks its action, entry or source.
var ErrInvalidEvent = errors.New("audit: action, entry_id and source are required")

// Event is one audited control action.
type Event struct {
	ID          string         `json:"id"`
	Action      string         `json:"action"`
	EntryID     string         `json:"entry_id"`
	Coordinator string         `json:"coordinator,omitempty"`
	Subject     string         `json:"subject,omitempty"`
	Source      string         `json:"source"`
	Outcome     string         `json:"outcome"`
	Details     map[string]any `json:"details,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Filter selects events. Empty fields match everything.
type Filter struct {
	Action  string
	EntryID string
	Limit   int // default 50, max 200
	Offset  int
}

// Page is one page of events, newest first.
type Page struct {
	Events []Event `json:"events"`
	Total  int     `json:"total"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
}

// Repository stores audit events.
type Repository interface {
	Create(ctx context.Context, ev *Event) error
	List(ctx context.Context, f Filter) (*Page, error)
}

// Logger defines the logging interface for the trail.
type Logger interface {
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any) {}

// Trail records events and never fails the caller. A nil *Trail drops
// everything, so callers need no enabled check.
type Trail struct {
	repo   Repository
	logger Logger
}

// NewTrail creates a trail backed by repo.
func NewTrail(repo Repository, logger Logger) *Trail {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Trail{repo: repo, logger: logger}
}

// Record stores ev. Storage errors are logged.
func (t *Trail) Record(ctx context.Context, ev Event) {
	if t == nil || t.repo == nil {
		return
	}
	if err := t.repo.Create(ctx, &ev); err != nil {
		t.logger.Warn("recording audit event", "action", ev.Action, "entry_id", ev.EntryID, "error", err)
	}
}

// List returns events matching f.
func (t *Trail) List(ctx context.Context, f Filter) (*Page, error) {
	return t.repo.List(ctx, f)
}

// OutcomeOf maps an action error to an outcome: nil is accepted, errors in
// rejected are rejected and anything else failed.
func OutcomeOf(err error, rejected ...error) string {
	if err == nil {
		return OutcomeAccepted
	}
	for _, r := range rejected {
		if errors.Is(err, r) {
			return OutcomeRejected
		}
	}
	return OutcomeFailed
}
