package coordinator

import (
	"context"
	"time"
)

// Trigger identifies what started a refresh.
type Trigger string

// Refresh triggers.
const (
	TriggerFirst     Trigger = "first"
	TriggerScheduled Trigger = "scheduled"
	TriggerRequested Trigger = "requested"
	TriggerRetry     Trigger = "retry"
)

// RefreshEvent describes one completed refresh attempt.
type RefreshEvent struct {
	EntryID     string
	Coordinator string
	Trigger     Trigger
	StartedAt   time.Time
	Duration    time.Duration
	Err         error
	Expected    bool // Err is a transient, expected failure
	Failures    int
	Available   bool
}

// Success reports whether the attempt fetched data.
func (e RefreshEvent) Success() bool {
	return e.Err == nil
}

// RefreshObserver receives refresh events. Implementations must be quick
// and must not call back into the coordinator.
type RefreshObserver interface {
	ObserveRefresh(ctx context.Context, ev RefreshEvent)
}

// ObserverFunc adapts a function to RefreshObserver.
type ObserverFunc func(ctx context.Context, ev RefreshEvent)

// ObserveRefresh calls f.
func (f ObserverFunc) ObserveRefresh(ctx context.Context, ev RefreshEvent) {
	f(ctx, ev)
}

// Observers fans an event out to several observers in order. Nil entries are skipped.
type Observers []RefreshObserver

// ObserveRefresh forwards ev to every observer.
func (o Observers) ObserveRefresh(ctx context.Context, ev RefreshEvent) {
	for _, obs := range o {
		if obs != nil {
			obs.ObserveRefresh(ctx, ev)
		}
	}
}
