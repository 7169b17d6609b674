package entry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"k8s.io/utils/clock"

	"github.com/nerrad567/gray-logic-hub/internal/coordinator"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/config"
)

// Logger defines the logging interface for the manager.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Manager sets up and unloads entries.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Manager struct {
	retry  config.SetupRetryConfig
	logger Logger
	clock  clock.Clock

	mu      sync.Mutex
	entries map[string]*Entry
	wg      sync.WaitGroup
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithClock replaces the wall clock used to wait between setup attempts.
func WithClock(c clock.Clock) ManagerOption {
	return func(m *Manager) {
		if c != nil {
			m.clock = c
		}
	}
}

// NewManager creates a manager that retries not-ready setups with
// exponential backoff bounded by retry.
func NewManager(retry config.SetupRetryConfig, logger Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = noopLogger{}
	}
	if retry.InitialDelay <= 0 {
		retry.InitialDelay = 5 * time.Second
	}
	if retry.MaxDelay < retry.InitialDelay {
		retry.MaxDelay = retry.InitialDelay
	}
	m := &Manager{
		retry:   retry,
		logger:  logger,
		clock:   clock.RealClock{},
		entries: make(map[string]*Entry),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Setup registers e and sets it up.
//
// On success the entry is loaded and nil is returned. A permanent failure
// leaves the entry in setup_error and returns an error wrapping
// ErrSetupFailed. When the device is not ready the entry moves to
// setup_retry, setup keeps retrying in the background until it succeeds,
// fails permanently, ctx ends or the entry is unloaded, and the not-ready
// error is returned.
func (m *Manager) Setup(ctx context.Context, e *Entry, integration Integration) error {
	m.mu.Lock()
	if existing, ok := m.entries[e.ID]; ok && existing.State() != StateNotLoaded {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadyLoaded, e.ID)
	}
	m.entries[e.ID] = e

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	e.mu.Lock()
	e.cancel = cancel
	e.done = done
	e.mu.Unlock()
	m.mu.Unlock()

	err := m.attempt(runCtx, e, integration)
	if err == nil || !errors.Is(err, coordinator.ErrSetupNotReady) {
		close(done)
		return err
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer close(done)
		m.retryLoop(runCtx, e, integration)
	}()
	return err
}

// attempt runs one setup attempt and records its outcome.
func (m *Manager) attempt(ctx context.Context, e *Entry, integration Integration) error {
	e.setState(StateSetupInProgress, nil)

	err := integration.Setup(ctx, e)
	switch {
	case err == nil:
		e.setState(StateLoaded, nil)
		m.logger.Info("entry loaded", "entry_id", e.ID, "coordinators", len(e.Coordinators()))
		return nil

	case errors.Is(err, coordinator.ErrSetupNotReady):
		e.teardown()
		e.setState(StateSetupRetry, err)
		m.logger.Warn("entry not ready, will retry", "entry_id", e.ID, "error", err)
		return err

	default:
		e.teardown()
		wrapped := fmt.Errorf("%w: %s: %w", ErrSetupFailed, e.ID, err)
		e.setState(StateSetupError, wrapped)
		m.logger.Error("entry setup failed", "entry_id", e.ID, "error", err)
		return wrapped
	}
}

// retryLoop waits InitialDelay after the failed first attempt, then keeps
// retrying with growing delays until setup stops being not-ready.
func (m *Manager) retryLoop(ctx context.Context, e *Entry, integration Integration) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = m.retry.InitialDelay
	b.MaxInterval = m.retry.MaxDelay
	b.Reset()
	// The first interval is the fixed InitialDelay below.
	b.NextBackOff()

	start := m.clock.Now()
	delay := m.retry.InitialDelay
	for {
		select {
		case <-ctx.Done():
			m.logger.Debug("entry setup retry stopped", "entry_id", e.ID)
			return
		case <-m.clock.After(delay):
		}

		err := m.attempt(ctx, e, integration)
		if err == nil || !errors.Is(err, coordinator.ErrSetupNotReady) {
			return
		}
		if ctx.Err() != nil {
			m.logger.Debug("entry setup retry stopped", "entry_id", e.ID)
			return
		}
		if m.retry.MaxElapsed > 0 && m.clock.Since(start) >= m.retry.MaxElapsed {
			wrapped := fmt.Errorf("%w: %s: gave up after %s: %w", ErrSetupFailed, e.ID, m.retry.MaxElapsed, err)
			e.setState(StateSetupError, wrapped)
			m.logger.Error("entry setup retries exhausted", "entry_id", e.ID, "error", err)
			return
		}

		delay = b.NextBackOff()
		m.logger.Debug("retrying entry setup", "entry_id", e.ID, "in", delay.String())
	}
}

// Unload stops any pending setup retry, runs the entry's unload hooks and
// forgets the entry.
func (m *Manager) Unload(id string) error {
	m.mu.Lock()
	e, ok := m.entries[id]
	if ok {
		delete(m.entries, id)
	}
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	e.mu.Lock()
	cancel, done := e.cancel, e.done
	e.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	e.teardown()
	e.setState(StateNotLoaded, nil)
	m.logger.Info("entry unloaded", "entry_id", id)
	return nil
}

// UnloadAll unloads every entry and waits for retry goroutines to exit.
func (m *Manager) UnloadAll() {
	for _, e := range m.List() {
		if err := m.Unload(e.ID); err != nil && !errors.Is(err, ErrNotFound) {
			m.logger.Warn("unloading entry", "entry_id", e.ID, "error", err)
		}
	}
	m.wg.Wait()
}

// Get returns the entry with the given id.
func (m *Manager) Get(id string) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return e, nil
}

// List returns all entries sorted by id.
func (m *Manager) List() []*Entry {
	m.mu.Lock()
	out := make([]*Entry, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e)
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Coordinators returns every coordinator of every entry.
func (m *Manager) Coordinators() []coordinator.Handle {
	var out []coordinator.Handle
	for _, e := range m.List() {
		out = append(out, e.Coordinators()...)
	}
	return out
}
