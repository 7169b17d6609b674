package signal

import (
	"sync"
)

// Reserved signal name prefixes. The entry id is appended to form the full name.
const (
	rebootRequestedPrefix = "reboot_requested_"
	rebootCompletedPrefix = "reboot_completed_"
)

// RebootRequested returns the signal name announcing that a reboot of the
// device behind entryID was requested.
func RebootRequested(entryID string) string {
	return rebootRequestedPrefix + entryID
}

// RebootCompleted returns the signal name announcing that the device behind
// entryID answered again after a reboot.
func RebootCompleted(entryID string) string {
	return rebootCompletedPrefix + entryID
}

// Logger defines the logging interface for the dispatcher.
type Logger interface {
	Debug(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Error(string, ...any) {}

type handler struct {
	id uint64
	fn func()
}

// Dispatcher delivers named signals to connected handlers.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Handlers run one at a time on the dispatcher goroutine.
type Dispatcher struct {
	logger Logger

	mu       sync.Mutex
	handlers map[string][]handler
	nextID   uint64
	queue    []string
	closed   bool
	wake     chan struct{}
	done     chan struct{}
}

// New creates a Dispatcher and starts its delivery goroutine.
// A nil logger discards log output.
func New(logger Logger) *Dispatcher {
	if logger == nil {
		logger = noopLogger{}
	}
	d := &Dispatcher{
		logger:   logger,
		handlers: make(map[string][]handler),
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	go d.run()
	return d
}

// Connect registers fn for the named signal and returns a function that
// disconnects it. The returned function may be called any number of times.
func (d *Dispatcher) Connect(name string, fn func()) (disconnect func()) {
	d.mu.Lock()
	d.nextID++
	id := d.nextID
	d.handlers[name] = append(d.handlers[name], handler{id: id, fn: fn})
	d.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			defer d.mu.Unlock()
			hs := d.handlers[name]
			for i, h := range hs {
				if h.id == id {
					d.handlers[name] = append(hs[:i:i], hs[i+1:]...)
					break
				}
			}
			if len(d.handlers[name]) == 0 {
				delete(d.handlers, name)
			}
		})
	}
}

// Send queues the named signal for delivery and returns immediately.
// Signals sent after Close are dropped.
func (d *Dispatcher) Send(name string) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.logger.Debug("signal dropped after close", "signal", name)
		return
	}
	d.queue = append(d.queue, name)
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Connected reports how many handlers are attached to the named signal.
func (d *Dispatcher) Connected(name string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.handlers[name])
}

// Close delivers every signal already queued, then stops the dispatcher.
// It blocks until delivery has finished and is safe to call more than once.
// Close must not be called from inside a handler.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		<-d.done
		return
	}
	d.closed = true
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
	<-d.done
}

func (d *Dispatcher) run() {
	defer close(d.done)

	for range d.wake {
		for {
			d.mu.Lock()
			if len(d.queue) == 0 {
				closed := d.closed
				d.mu.Unlock()
				if closed {
					return
				}
				break
			}
			name := d.queue[0]
			d.queue = d.queue[1:]
			hs := append([]handler(nil), d.handlers[name]...)
			d.mu.Unlock()

			for _, h := range hs {
				d.deliver(name, h.fn)
			}
		}
	}
}

func (d *Dispatcher) deliver(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("signal handler panicked", "signal", name, "panic", r)
		}
	}()
	fn()
}
