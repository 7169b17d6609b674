package coordinator

import (
	"time"

	"k8s.io/utils/clock"
)

// Logger defines the logging interface for coordinators.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Option configures a Coordinator.
type Option func(*options)

type options struct {
	logger        Logger
	clock         clock.WithDelayedExecution
	fetchTimeout  time.Duration
	retry         *RetryPolicy
	observer      RefreshObserver
	skipUnchanged bool
	entryID       string
	debounce      *debounce
}

type debounce struct {
	cooldown  time.Duration
	immediate bool
}

func defaultOptions() options {
	return options{
		logger:   noopLogger{},
		clock:    clock.RealClock{},
		observer: Observers(nil),
	}
}

// WithLogger sets the logger. A nil logger is ignored.
func WithLogger(logger Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock replaces the wall clock used for timers. Tests pass a fake clock.
func WithClock(c clock.WithDelayedExecution) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithFetchTimeout bounds each fetch. Zero means no coordinator-imposed limit.
func WithFetchTimeout(d time.Duration) Option {
	return func(o *options) {
		o.fetchTimeout = d
	}
}

// WithRetry enables the fixed-delay retry policy. Unless WithFetchTimeout
// is also given, the policy timeout bounds each fetch.
func WithRetry(p RetryPolicy) Option {
	return func(o *options) {
		o.retry = &p
	}
}

// WithObserver receives an event after every refresh attempt.
func WithObserver(obs RefreshObserver) Option {
	return func(o *options) {
		if obs != nil {
			o.observer = obs
		}
	}
}

// WithSkipUnchanged suppresses listener notification when a refresh
// changed neither the data nor the success or availability state.
func WithSkipUnchanged() Option {
	return func(o *options) {
		o.skipUnchanged = true
	}
}

// WithEntryID tags logs, status and refresh events with the owning entry.
func WithEntryID(id string) Option {
	return func(o *options) {
		o.entryID = id
	}
}

// WithRequestDebounce limits RequestRefresh to one fetch per cooldown.
//
// With immediate set, the first request fetches at once and starts the
// cooldown. Otherwise the first request starts the cooldown and fetches
// when it ends. Requests made during a cooldown collapse into one fetch at
// its end, which starts a new cooldown. Deferred requests return without
// waiting for the fetch. A non-positive cooldown is ignored.
func WithRequestDebounce(cooldown time.Duration, immediate bool) Option {
	return func(o *options) {
		if cooldown > 0 {
			o.debounce = &debounce{cooldown: cooldown, immediate: immediate}
		}
	}
}
