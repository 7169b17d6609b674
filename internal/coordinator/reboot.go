package coordinator

import (
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-hub/internal/signal"
)

// RebootMember is a coordinator that can join a RebootGroup.
// Only *Coordinator[T] implements it.
type RebootMember interface {
	Name() string
	Interval() time.Duration
	AddListener(fn func()) func()
	Rebooting() bool

	beginReboot()
	endReboot()
	rebootObserved() bool
}

// Rebooting reports whether a reboot of the underlying device is in progress.
func (c *Coordinator[T]) Rebooting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rebooting
}

func (c *Coordinator[T]) beginReboot() {
	c.mu.Lock()
	if c.shutdown {
		c.mu.Unlock()
		return
	}
	c.rebooting = true
	c.rebootEpoch++
	c.rebootConfirmed = false
	c.lastSuccess = false
	c.mu.Unlock()

	c.opts.logger.Info("reboot requested, marking unavailable", "coordinator", c.name)
	c.notify()
}

func (c *Coordinator[T]) endReboot() {
	c.mu.Lock()
	if c.shutdown || !c.rebooting {
		c.mu.Unlock()
		return
	}
	c.rebooting = false
	c.rebootConfirmed = false
	c.lastSuccess = true
	c.mu.Unlock()

	c.opts.logger.Info("reboot completed", "coordinator", c.name)
	c.notify()
}

// rebootObserved reports whether a fetch that started after the reboot
// request has succeeded.
func (c *Coordinator[T]) rebootObserved() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rebooting && c.rebootConfirmed && c.lastSuccess
}

// RebootGroup ties the sibling coordinators of one device together so a
// requested reboot is tracked as one state.
//
// On the entry's "reboot requested" signal every member is marked
// rebooting and unavailable. The watcher, the member with the shortest
// interval (first added wins a tie), announces "reboot completed" after its
// first successful fetch that started after the request. Every member then
// returns to available.
type RebootGroup struct {
	entryID string
	signals *signal.Dispatcher
	logger  Logger

	mu      sync.Mutex
	members []RebootMember
	offs    []func()
	closed  bool
}

// NewRebootGroup connects a group to the entry's signal dispatcher.
// A nil logger discards log output.
func NewRebootGroup(entryID string, signals *signal.Dispatcher, logger Logger) *RebootGroup {
	if logger == nil {
		logger = noopLogger{}
	}
	g := &RebootGroup{
		entryID: entryID,
		signals: signals,
		logger:  logger,
	}
	g.offs = append(g.offs,
		signals.Connect(signal.RebootRequested(entryID), g.handleRequested),
		signals.Connect(signal.RebootCompleted(entryID), g.handleCompleted),
	)
	return g
}

// Add registers a member. Members should be added before they start polling.
func (g *RebootGroup) Add(m RebootMember) {
	off := m.AddListener(func() { g.check(m) })

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		off()
		return
	}
	g.members = append(g.members, m)
	g.offs = append(g.offs, off)
}

// Members returns the current members in the order they were added.
func (g *RebootGroup) Members() []RebootMember {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]RebootMember(nil), g.members...)
}

// Watcher returns the member that decides when a reboot has completed,
// or nil for an empty group.
func (g *RebootGroup) Watcher() RebootMember {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.watcherLocked()
}

func (g *RebootGroup) watcherLocked() RebootMember {
	var watcher RebootMember
	var shortest time.Duration
	for _, m := range g.members {
		if iv := m.Interval(); watcher == nil || iv < shortest {
			watcher, shortest = m, iv
		}
	}
	return watcher
}

// RequestReboot announces that the device is about to reboot.
func (g *RebootGroup) RequestReboot() {
	g.signals.Send(signal.RebootRequested(g.entryID))
}

// Rebooting reports whether any member is rebooting.
func (g *RebootGroup) Rebooting() bool {
	for _, m := range g.Members() {
		if m.Rebooting() {
			return true
		}
	}
	return false
}

// Close disconnects the group from its signals and members. Safe to call
// more than once.
func (g *RebootGroup) Close() {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	g.closed = true
	offs := g.offs
	g.offs = nil
	g.mu.Unlock()

	for _, off := range offs {
		off()
	}
}

func (g *RebootGroup) check(m RebootMember) {
	g.mu.Lock()
	isWatcher := !g.closed && g.watcherLocked() == m
	g.mu.Unlock()

	if isWatcher && m.rebootObserved() {
		g.logger.Info("device answered after reboot", "entry_id", g.entryID, "watcher", m.Name())
		g.signals.Send(signal.RebootCompleted(g.entryID))
	}
}

func (g *RebootGroup) handleRequested() {
	for _, m := range g.Members() {
		m.beginReboot()
	}
}

func (g *RebootGroup) handleCompleted() {
	for _, m := range g.Members() {
		m.endReboot()
	}
}
