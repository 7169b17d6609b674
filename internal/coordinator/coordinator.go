package coordinator

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
	"k8s.io/utils/clock"
)

// flightKey is the single singleflight key; one coordinator has one flight.
const flightKey = "refresh"

// FetchFunc retrieves fresh data. It should wrap transient failures with
// ErrUpdateFailed (see UpdateFailed) and honour ctx cancellation.
type FetchFunc[T any] func(ctx context.Context) (T, error)

type listener struct {
	id     uint64
	fn     func()
	active atomic.Bool
}

// Coordinator runs one periodic refresh cycle and fans the result out to listeners.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Coordinator[T any] struct {
	name  string
	fetch FetchFunc[T]
	opts  options

	flight singleflight.Group
	ctx    context.Context
	cancel context.CancelFunc

	// notifyMu serialises listener invocation.
	notifyMu sync.Mutex

	mu            sync.Mutex
	interval      time.Duration
	data          T
	hasData       bool
	lastSuccess   bool
	failures      int
	lastErr       error
	lastSuccessAt time.Time
	lastRefreshAt time.Time
	started       bool
	timer         clock.Timer
	timerGen      uint64
	retryPending  bool
	shutdown      bool
	listeners     []*listener
	nextListener  uint64

	// Request debounce state.
	cooldown       clock.Timer
	requestPending bool

	// Reboot state, driven by RebootGroup.
	rebooting       bool
	rebootEpoch     uint64
	rebootConfirmed bool
}

// New creates a coordinator. It does not fetch and does not arm a timer.
//
// Returns an error wrapping ErrConfiguration if name is empty, fetch is
// nil, interval is not positive, or the retry policy is invalid.
func New[T any](name string, interval time.Duration, fetch FetchFunc[T], opts ...Option) (*Coordinator[T], error) {
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrConfiguration)
	}
	if interval <= 0 {
		return nil, fmt.Errorf("%w: %s: interval must be positive, got %v", ErrConfiguration, name, interval)
	}
	if fetch == nil {
		return nil, fmt.Errorf("%w: %s: fetch function is required", ErrConfiguration, name)
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.retry != nil {
		p := o.retry.withDefaults()
		if err := p.validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		o.retry = &p
		if o.fetchTimeout == 0 {
			o.fetchTimeout = p.Timeout
		}
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Coordinator[T]{
		name:     name,
		fetch:    fetch,
		opts:     o,
		ctx:      ctx,
		cancel:   cancel,
		interval: interval,
	}, nil
}

// Name returns the coordinator name.
func (c *Coordinator[T]) Name() string {
	return c.name
}

// EntryID returns the owning entry id, if one was set.
func (c *Coordinator[T]) EntryID() string {
	return c.opts.entryID
}

// Interval returns the current update interval.
func (c *Coordinator[T]) Interval() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.interval
}

// SetInterval changes the update interval. A pending interval tick is
// re-armed with the new value; a pending one-off retry is left alone.
func (c *Coordinator[T]) SetInterval(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("%w: %s: interval must be positive, got %v", ErrConfiguration, c.name, d)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.interval = d
	if c.started && !c.shutdown && !c.retryPending && c.timer != nil {
		c.armLocked(d, TriggerScheduled)
	}
	return nil
}

// Data returns the last successfully fetched payload. It is kept across
// failed refreshes.
func (c *Coordinator[T]) Data() T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.data
}

// HasData reports whether any fetch has succeeded since creation or the
// last ClearData.
func (c *Coordinator[T]) HasData() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hasData
}

// ClearData drops the stored payload. Listeners are not notified.
func (c *Coordinator[T]) ClearData() {
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero T
	c.data = zero
	c.hasData = false
}

// LastUpdateSuccess reports whether the most recent refresh succeeded.
func (c *Coordinator[T]) LastUpdateSuccess() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSuccess
}

// Failures returns the number of consecutive failed refreshes.
func (c *Coordinator[T]) Failures() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failures
}

// LastError returns the error of the most recent failed refresh, or nil
// after a success.
func (c *Coordinator[T]) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// LastUpdateSuccessTime returns when the last successful fetch started.
func (c *Coordinator[T]) LastUpdateSuccessTime() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSuccessAt
}

// Available reports whether entities backed by this coordinator should be
// shown as available.
//
// A rebooting coordinator is never available. Without a retry policy
// availability follows LastUpdateSuccess. With one, stale data stays
// available until the failure threshold is reached.
func (c *Coordinator[T]) Available() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.availableLocked()
}

func (c *Coordinator[T]) availableLocked() bool {
	if c.rebooting {
		return false
	}
	if c.lastSuccess {
		return true
	}
	if c.opts.retry != nil {
		return c.hasData && !c.opts.retry.Exhausted(c.failures)
	}
	return false
}

// FirstRefresh performs the initial fetch and, on success, arms the
// periodic timer. On failure it returns an error wrapping ErrSetupNotReady
// and the fetch error, and no timer is armed.
func (c *Coordinator[T]) FirstRefresh(ctx context.Context) error {
	if err := c.refresh(ctx, TriggerFirst); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSetupNotReady, c.name, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.shutdown {
		return fmt.Errorf("%w: %s: %w", ErrSetupNotReady, c.name, ErrShutdown)
	}
	if !c.started {
		c.started = true
		c.armLocked(c.interval, TriggerScheduled)
	}
	return nil
}

// RequestRefresh fetches outside the timer cadence and waits for the
// result. If a refresh is already in flight the call joins it instead of
// starting another fetch. Failures are absorbed into coordinator state.
// With WithRequestDebounce, requests inside a cooldown are deferred.
func (c *Coordinator[T]) RequestRefresh(ctx context.Context) {
	if c.opts.debounce == nil {
		_ = c.refresh(ctx, TriggerRequested)
		return
	}

	c.mu.Lock()
	if c.shutdown {
		c.mu.Unlock()
		return
	}
	if c.cooldown != nil || !c.opts.debounce.immediate {
		c.requestPending = true
		if c.cooldown == nil {
			c.armCooldownLocked()
		}
		c.mu.Unlock()
		return
	}
	c.armCooldownLocked()
	c.mu.Unlock()

	_ = c.refresh(ctx, TriggerRequested)
}

func (c *Coordinator[T]) armCooldownLocked() {
	c.cooldown = c.opts.clock.AfterFunc(c.opts.debounce.cooldown, func() {
		go c.onCooldown()
	})
}

// onCooldown runs the refresh deferred during the cooldown, if any.
func (c *Coordinator[T]) onCooldown() {
	c.mu.Lock()
	c.cooldown = nil
	run := c.requestPending && !c.shutdown
	c.requestPending = false
	if run {
		c.armCooldownLocked()
	}
	c.mu.Unlock()

	if run {
		_ = c.refresh(c.ctx, TriggerRequested)
	}
}

// AddListener registers fn to be called after every refresh attempt.
// The returned function removes it and is safe to call more than once.
func (c *Coordinator[T]) AddListener(fn func()) (unsubscribe func()) {
	c.mu.Lock()
	c.nextListener++
	l := &listener{id: c.nextListener, fn: fn}
	l.active.Store(true)
	if !c.shutdown {
		c.listeners = append(c.listeners, l)
	} else {
		l.active.Store(false)
	}
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.active.Store(false)
			c.mu.Lock()
			defer c.mu.Unlock()
			for i, other := range c.listeners {
				if other == l {
					c.listeners = append(c.listeners[:i:i], c.listeners[i+1:]...)
					break
				}
			}
		})
	}
}

// ListenerCount returns the number of registered listeners.
func (c *Coordinator[T]) ListenerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.listeners)
}

// UpdateListeners notifies every listener without fetching.
func (c *Coordinator[T]) UpdateListeners() {
	c.notify()
}

// Shutdown cancels the pending timer or retry, cancels the context of any
// in-flight fetch and removes all listeners. A result that arrives after
// Shutdown is discarded. Safe to call more than once.
func (c *Coordinator[T]) Shutdown() {
	c.mu.Lock()
	if c.shutdown {
		c.mu.Unlock()
		return
	}
	c.shutdown = true
	c.stopTimerLocked()
	if c.cooldown != nil {
		c.cooldown.Stop()
		c.cooldown = nil
	}
	c.requestPending = false
	for _, l := range c.listeners {
		l.active.Store(false)
	}
	c.listeners = nil
	c.mu.Unlock()

	c.cancel()
	c.opts.logger.Debug("coordinator shut down", "coordinator", c.name)
}

// refresh runs, or joins, the single in-flight refresh.
func (c *Coordinator[T]) refresh(ctx context.Context, trigger Trigger) error {
	ch := c.flight.DoChan(flightKey, func() (any, error) {
		return nil, c.runRefresh(trigger)
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// outcome summarises how a refresh changed coordinator state.
type outcome struct {
	changed       bool
	prevFailures  int
	failures      int
	available     bool
	prevAvailable bool
}

func (c *Coordinator[T]) runRefresh(trigger Trigger) error {
	c.mu.Lock()
	if c.shutdown {
		c.mu.Unlock()
		return ErrShutdown
	}
	c.stopTimerLocked()
	epoch := c.rebootEpoch
	c.mu.Unlock()

	fetchCtx, cancel := c.fetchContext()
	defer cancel()

	start := c.opts.clock.Now()
	data, err := c.safeFetch(fetchCtx)
	elapsed := c.opts.clock.Since(start)

	c.mu.Lock()
	if c.shutdown {
		c.mu.Unlock()
		c.opts.logger.Debug("discarding refresh result after shutdown", "coordinator", c.name)
		return ErrShutdown
	}
	out := c.recordLocked(data, err, epoch, start)
	c.scheduleLocked(err)
	c.mu.Unlock()

	c.logResult(trigger, err, out)
	c.opts.observer.ObserveRefresh(c.ctx, RefreshEvent{
		EntryID:     c.opts.entryID,
		Coordinator: c.name,
		Trigger:     trigger,
		StartedAt:   start,
		Duration:    elapsed,
		Err:         err,
		Expected:    IsExpected(err),
		Failures:    out.failures,
		Available:   out.available,
	})

	if out.changed || !c.opts.skipUnchanged {
		c.notify()
	}
	return err
}

func (c *Coordinator[T]) fetchContext() (context.Context, context.CancelFunc) {
	if c.opts.fetchTimeout > 0 {
		return context.WithTimeout(c.ctx, c.opts.fetchTimeout)
	}
	return context.WithCancel(c.ctx)
}

// safeFetch turns a panicking fetch function into an unexpected error.
func (c *Coordinator[T]) safeFetch(ctx context.Context) (data T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("fetch panicked: %v", r)
		}
	}()
	return c.fetch(ctx)
}

func (c *Coordinator[T]) recordLocked(data T, err error, epoch uint64, start time.Time) outcome {
	out := outcome{
		prevFailures:  c.failures,
		prevAvailable: c.availableLocked(),
	}
	prevSuccess := c.lastSuccess
	c.lastRefreshAt = start

	if err != nil {
		c.lastSuccess = false
		c.failures++
		c.lastErr = err
		out.changed = prevSuccess
	} else {
		out.changed = !prevSuccess || !c.hasData
		if !out.changed && c.opts.skipUnchanged {
			out.changed = !reflect.DeepEqual(c.data, data)
		}
		c.data = data
		c.hasData = true
		c.lastSuccess = true
		c.failures = 0
		c.lastErr = nil
		c.lastSuccessAt = start
		if c.rebooting {
			// The reboot group decides completion from a listener, so every
			// success during a reboot must notify.
			out.changed = true
			if epoch == c.rebootEpoch {
				c.rebootConfirmed = true
			}
		}
	}

	out.failures = c.failures
	out.available = c.availableLocked()
	if out.available != out.prevAvailable {
		out.changed = true
	}
	return out
}

// scheduleLocked arms the next refresh once the coordinator has started.
func (c *Coordinator[T]) scheduleLocked(err error) {
	if !c.started || c.shutdown {
		return
	}
	if err != nil && c.opts.retry != nil && c.opts.retry.ShouldRetry(c.failures) {
		c.armLocked(c.opts.retry.Delay(), TriggerRetry)
		return
	}
	c.armLocked(c.interval, TriggerScheduled)
}

func (c *Coordinator[T]) armLocked(delay time.Duration, trigger Trigger) {
	c.stopTimerLocked()
	c.timerGen++
	gen := c.timerGen
	c.retryPending = trigger == TriggerRetry
	c.timer = c.opts.clock.AfterFunc(delay, func() {
		go c.onTimer(gen, trigger)
	})
}

func (c *Coordinator[T]) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.retryPending = false
}

func (c *Coordinator[T]) onTimer(gen uint64, trigger Trigger) {
	c.mu.Lock()
	stale := c.shutdown || gen != c.timerGen || c.timer == nil
	if !stale {
		c.timer = nil
		c.retryPending = false
	}
	c.mu.Unlock()
	if stale {
		return
	}
	_ = c.refresh(c.ctx, trigger)
}

func (c *Coordinator[T]) logResult(trigger Trigger, err error, out outcome) {
	log := c.opts.logger
	attrs := []any{"coordinator", c.name, "trigger", string(trigger)}
	if c.opts.entryID != "" {
		attrs = append(attrs, "entry_id", c.opts.entryID)
	}

	if err == nil {
		if out.prevFailures > 0 {
			log.Info("refresh recovered", append(attrs, "failed_attempts", out.prevFailures)...)
		} else {
			log.Debug("refresh succeeded", attrs...)
		}
		return
	}

	attrs = append(attrs, "attempt", out.failures, "error", err)
	switch {
	case !IsExpected(err):
		log.Error("unexpected error during refresh", attrs...)
	case out.failures == 1:
		log.Warn("refresh failed", attrs...)
	default:
		log.Debug("refresh still failing", attrs...)
	}

	if c.opts.retry != nil && out.failures == c.opts.retry.MaxFailures {
		log.Warn("marking data source unavailable after consecutive failures",
			"coordinator", c.name, "failures", out.failures)
	}
}

// notify invokes every active listener in registration order.
func (c *Coordinator[T]) notify() {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	if c.shutdown {
		c.mu.Unlock()
		return
	}
	ls := append([]*listener(nil), c.listeners...)
	c.mu.Unlock()

	for _, l := range ls {
		if l.active.Load() {
			c.invoke(l)
		}
	}
}

func (c *Coordinator[T]) invoke(l *listener) {
	defer func() {
		if r := recover(); r != nil {
			c.opts.logger.Error("listener panicked",
				"coordinator", c.name,
				"listener", l.id,
				"incident", uuid.NewString(),
				"panic", r,
			)
		}
	}()
	l.fn()
}
