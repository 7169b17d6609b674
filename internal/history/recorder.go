package history

import (
	"context"
	"sync"
	"time"

	"k8s.io/utils/clock"

	"github.com/nerrad567/gray-logic-hub/internal/coordinator"
)

const (
	defaultQueueSize = 256
	writeTimeout     = 5 * time.Second
	pruneInterval    = time.Hour
)

// Logger defines the logging interface for the recorder.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Recorder writes refresh events to a Repository in the background and
// prunes rows older than the retention.
type Recorder struct {
	repo      Repository
	retention time.Duration
	logger    Logger
	clock     clock.WithTicker

	queue chan Record
	stop  chan struct{}

	mu      sync.Mutex
	dropped int
	closed  bool

	wg sync.WaitGroup
}

// NewRecorder creates a recorder. A retention of zero disables pruning.
func NewRecorder(repo Repository, retention time.Duration, logger Logger) *Recorder {
	return &Recorder{
		repo:      repo,
		retention: retention,
		logger:    logger,
		clock:     clock.RealClock{},
		queue:     make(chan Record, defaultQueueSize),
		stop:      make(chan struct{}),
	}
}

// Start launches the writer and pruner goroutines. They run until Close.
func (r *Recorder) Start(ctx context.Context) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.writeLoop()
	}()

	if r.retention > 0 {
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			r.pruneLoop(ctx)
		}()
	}
}

// ObserveRefresh queues ev. When the queue is full the event is dropped.
func (r *Recorder) ObserveRefresh(_ context.Context, ev coordinator.RefreshEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	select {
	case r.queue <- FromEvent(ev):
	default:
		r.dropped++
		if r.dropped == 1 || r.dropped%100 == 0 {
			r.logger.Warn("refresh history queue full, dropping records", "dropped", r.dropped)
		}
	}
}

// Dropped returns how many events were dropped because the queue was full.
func (r *Recorder) Dropped() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// Close flushes queued records and stops the goroutines.
func (r *Recorder) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.queue)
	close(r.stop)
	r.mu.Unlock()

	r.wg.Wait()
}

func (r *Recorder) writeLoop() {
	for rec := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		if err := r.repo.Insert(ctx, rec); err != nil {
			r.logger.Warn("recording refresh history", "coordinator", rec.Coordinator, "error", err)
		}
		cancel()
	}
}

func (r *Recorder) pruneLoop(ctx context.Context) {
	ticker := r.clock.NewTicker(pruneInterval)
	defer ticker.Stop()

	r.prune(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stop:
			return
		case <-ticker.C():
			r.prune(ctx)
		}
	}
}

func (r *Recorder) prune(ctx context.Context) {
	cutoff := r.clock.Now().Add(-r.retention)
	n, err := r.repo.Prune(ctx, cutoff)
	if err != nil {
		r.logger.Warn("pruning refresh history", "error", err)
		return
	}
	if n > 0 {
		r.logger.Debug("pruned refresh history", "rows", n, "before", cutoff)
	}
}
