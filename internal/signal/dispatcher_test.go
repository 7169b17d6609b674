package signal

import (
	"sync"
	"testing"
	"time"
)

const testTimeout = 2 * time.Second

func waitFor(t *testing.T, ch <-chan string, want string) {
	t.Helper()
	select {
	case got := <-ch:
		if got != want {
			t.Fatalf("received %q, want %q", got, want)
		}
	case <-time.After(testTimeout):
		t.Fatalf("timed out waiting for %q", want)
	}
}

func TestSignalNames(t *testing.T) {
	if got := RebootRequested("controller"); got != "reboot_requested_controller" {
		t.Errorf("RebootRequested() = %q", got)
	}
	if got := RebootCompleted("controller"); got != "reboot_completed_controller" {
		t.Errorf("RebootCompleted() = %q", got)
	}
}

func TestDispatcher_DeliversInOrder(t *testing.T) {
	d := New(nil)
	defer d.Close()

	got := make(chan string, 10)
	d.Connect("a", func() { got <- "a1" })
	d.Connect("a", func() { got <- "a2" })
	d.Connect("b", func() { got <- "b" })

	d.Send("a")
	d.Send("b")

	waitFor(t, got, "a1")
	waitFor(t, got, "a2")
	waitFor(t, got, "b")
}

func TestDispatcher_KeysAreIsolated(t *testing.T) {
	d := New(nil)
	defer d.Close()

	got := make(chan string, 10)
	d.Connect(RebootRequested("one"), func() { got <- "one" })
	d.Connect(RebootRequested("two"), func() { got <- "two" })

	d.Send(RebootRequested("two"))
	waitFor(t, got, "two")

	select {
	case extra := <-got:
		t.Fatalf("unexpected delivery %q", extra)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestDispatcher_DisconnectIsIdempotent(t *testing.T) {
	d := New(nil)
	defer d.Close()

	got := make(chan string, 10)
	off := d.Connect("a", func() { got <- "first" })
	d.Connect("a", func() { got <- "second" })

	off()
	off()

	if n := d.Connected("a"); n != 1 {
		t.Fatalf("Connected() = %d, want 1", n)
	}

	d.Send("a")
	waitFor(t, got, "second")
}

func TestDispatcher_SendFromHandler(t *testing.T) {
	d := New(nil)
	defer d.Close()

	got := make(chan string, 10)
	d.Connect("first", func() {
		got <- "first"
		d.Send("second")
	})
	d.Connect("second", func() { got <- "second" })

	d.Send("first")
	waitFor(t, got, "first")
	waitFor(t, got, "second")
}

func TestDispatcher_PanicDoesNotStopDelivery(t *testing.T) {
	d := New(nil)
	defer d.Close()

	got := make(chan string, 10)
	d.Connect("a", func() { panic("boom") })
	d.Connect("a", func() { got <- "survived" })

	d.Send("a")
	waitFor(t, got, "survived")
}

func TestDispatcher_CloseDrainsQueue(t *testing.T) {
	d := New(nil)

	var mu sync.Mutex
	count := 0
	d.Connect("a", func() {
		mu.Lock()
		count++
		mu.Unlock()
	})

	for i := 0; i < 5; i++ {
		d.Send("a")
	}
	d.Close()
	d.Close()

	mu.Lock()
	defer mu.Unlock()
	if count != 5 {
		t.Errorf("delivered %d signals before close, want 5", count)
	}

	d.Send("a")
}
