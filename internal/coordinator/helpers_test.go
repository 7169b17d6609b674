package coordinator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	testingclock "k8s.io/utils/clock/testing"
)

const waitTimeout = 2 * time.Second

// result is one scripted fetch outcome.
type result struct {
	data map[string]int
	err  error
}

// stubFetcher returns scripted results in order and repeats the last one.
type stubFetcher struct {
	mu      sync.Mutex
	results []result
	calls   int

	// block, when non-nil, holds each fetch until it is closed or ctx ends.
	block   chan struct{}
	entered chan struct{}
}

func newStub(results ...result) *stubFetcher {
	return &stubFetcher{results: results, entered: make(chan struct{}, 16)}
}

func (s *stubFetcher) fetch(ctx context.Context) (map[string]int, error) {
	s.mu.Lock()
	s.calls++
	idx := s.calls - 1
	if idx >= len(s.results) {
		idx = len(s.results) - 1
	}
	r := s.results[idx]
	block := s.block
	s.mu.Unlock()

	select {
	case s.entered <- struct{}{}:
	default:
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return r.data, r.err
}

func (s *stubFetcher) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *stubFetcher) setResults(results ...result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := make([]result, s.calls)
	for i := range kept {
		kept[i] = s.results[min(i, len(s.results)-1)]
	}
	s.results = append(kept, results...)
}

func ok(v int) result {
	return result{data: map[string]int{"value": v}}
}

func failed(msg string) result {
	return result{err: UpdateFailed(errors.New(msg))}
}

type logEntry struct {
	level string
	msg   string
}

type recordingLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *recordingLogger) add(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{level: level, msg: msg})
}

func (l *recordingLogger) Debug(msg string, _ ...any) { l.add("debug", msg) }
func (l *recordingLogger) Info(msg string, _ ...any)  { l.add("info", msg) }
func (l *recordingLogger) Warn(msg string, _ ...any)  { l.add("warn", msg) }
func (l *recordingLogger) Error(msg string, _ ...any) { l.add("error", msg) }

func (l *recordingLogger) count(level, msg string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.entries {
		if e.level == level && e.msg == msg {
			n++
		}
	}
	return n
}

func newFakeClock() *testingclock.FakeClock {
	return testingclock.NewFakeClock(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
}

// waitUntil polls cond until it holds or the test times out.
func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

// assertStays checks that cond keeps holding for a short while.
func assertStays(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(30 * time.Millisecond)
	for time.Now().Before(deadline) {
		if !cond() {
			t.Fatalf("%s no longer holds", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func waitEntered(t *testing.T, s *stubFetcher) {
	t.Helper()
	select {
	case <-s.entered:
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for fetch to start")
	}
}

// counter is a listener that counts invocations.
type counter struct {
	mu sync.Mutex
	n  int
}

func (c *counter) inc() {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
}

func (c *counter) get() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}
