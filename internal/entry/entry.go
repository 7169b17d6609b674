package entry

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/gray-logic-hub/internal/coordinator"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-hub/internal/signal"
)

// State is the lifecycle state of an entry.
type State string

// Entry states.
const (
	StateNotLoaded       State = "not_loaded"
	StateSetupInProgress State = "setup_in_progress"
	StateLoaded          State = "loaded"
	StateSetupRetry      State = "setup_retry"
	StateSetupError      State = "setup_error"
)

// Rebooter restarts a device. Integrations that support it register one with
// SetRebooter.
type Rebooter interface {
	Reboot(ctx context.Context) error
}

// Integration sets up an entry.
//
// Setup returns an error wrapping coordinator.ErrSetupNotReady when the
// device is temporarily unreachable; the Manager retries those. Any other
// error is permanent.
type Integration interface {
	Setup(ctx context.Context, e *Entry) error
}

// IntegrationFunc adapts a function to Integration.
type IntegrationFunc func(ctx context.Context, e *Entry) error

// Setup calls f.
func (f IntegrationFunc) Setup(ctx context.Context, e *Entry) error {
	return f(ctx, e)
}

// Entry is one configured device and everything its setup created.
type Entry struct {
	ID    string
	Title string
	Data  config.EntryConfig

	mu           sync.Mutex
	state        State
	lastErr      error
	signals      *signal.Dispatcher
	unload       []func()
	coordinators []coordinator.Handle
	rebooter     Rebooter
	cancel       context.CancelFunc
	done         chan struct{}
}

// New creates an entry from its configuration.
func New(data config.EntryConfig) *Entry {
	title := data.Name
	if title == "" {
		title = data.ID
	}
	return &Entry{
		ID:    data.ID,
		Title: title,
		Data:  data,
		state: StateNotLoaded,
	}
}

// State returns the lifecycle state.
func (e *Entry) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// LastError returns the most recent setup error, or nil.
func (e *Entry) LastError() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

// Signals returns the entry's signal dispatcher, creating it on first use.
// It is closed when the entry unloads.
func (e *Entry) Signals() *signal.Dispatcher {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.signals == nil {
		e.signals = signal.New(nil)
	}
	return e.signals
}

// OnUnload registers fn to run when the entry unloads.
// Hooks run in reverse registration order.
func (e *Entry) OnUnload(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.unload = append(e.unload, fn)
}

// AddCoordinator registers a coordinator for status reporting and manual
// refresh. It is shut down on unload.
func (e *Entry) AddCoordinator(h coordinator.Handle) {
	e.mu.Lock()
	e.coordinators = append(e.coordinators, h)
	e.mu.Unlock()

	e.OnUnload(h.Shutdown)
}

// Coordinators returns the registered coordinators in registration order.
func (e *Entry) Coordinators() []coordinator.Handle {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]coordinator.Handle, len(e.coordinators))
	copy(out, e.coordinators)
	return out
}

// Coordinator returns the registered coordinator with the given name.
func (e *Entry) Coordinator(name string) (coordinator.Handle, bool) {
	for _, h := range e.Coordinators() {
		if h.Name() == name {
			return h, true
		}
	}
	return nil, false
}

// SetRebooter registers how the device is rebooted.
func (e *Entry) SetRebooter(r Rebooter) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rebooter = r
}

// Reboot asks the device to restart.
func (e *Entry) Reboot(ctx context.Context) error {
	e.mu.Lock()
	r := e.rebooter
	st := e.state
	e.mu.Unlock()

	if st != StateLoaded {
		return ErrNotLoaded
	}
	if r == nil {
		return ErrRebootUnsupported
	}
	return r.Reboot(ctx)
}

// RefreshAll requests a refresh of every coordinator concurrently and
// waits for all of them.
func (e *Entry) RefreshAll(ctx context.Context) {
	var g errgroup.Group
	for _, h := range e.Coordinators() {
		g.Go(func() error {
			h.RequestRefresh(ctx)
			return nil
		})
	}
	_ = g.Wait()
}

// Status is the reportable view of an entry.
type Status struct {
	ID           string               `json:"id"`
	Title        string               `json:"title"`
	State        State                `json:"state"`
	Error        string               `json:"error,omitempty"`
	Rebootable   bool                 `json:"rebootable"`
	Coordinators []coordinator.Status `json:"coordinators"`
}

// Snapshot returns the entry's current status.
func (e *Entry) Snapshot() Status {
	e.mu.Lock()
	s := Status{
		ID:         e.ID,
		Title:      e.Title,
		State:      e.state,
		Rebootable: e.rebooter != nil,
	}
	if e.lastErr != nil {
		s.Error = e.lastErr.Error()
	}
	e.mu.Unlock()

	s.Coordinators = make([]coordinator.Status, 0)
	for _, h := range e.Coordinators() {
		s.Coordinators = append(s.Coordinators, h.Snapshot())
	}
	return s
}

func (e *Entry) setState(st State, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = st
	e.lastErr = err
}

// teardown runs unload hooks in reverse order and closes the dispatcher.
// The entry can be set up again afterwards.
func (e *Entry) teardown() {
	e.mu.Lock()
	hooks := e.unload
	signals := e.signals
	e.unload = nil
	e.coordinators = nil
	e.rebooter = nil
	e.signals = nil
	e.mu.Unlock()

	for i := len(hooks) - 1; i >= 0; i-- {
		hooks[i]()
	}
	if signals != nil {
		signals.Close()
	}
}
