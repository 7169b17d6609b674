package template

import (
	"fmt"
	"sync"
)

// Logger defines the logging interface for trackers.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Attribute binds a template to one attribute of the owning entity.
type Attribute struct {
	Name      string
	Template  *Template
	Validator Validator // optional

	// OnUpdate receives every evaluation result, in order.
	OnUpdate func(Result)
}

// Tracker evaluates the attributes of one entity as live state changes.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Evaluations and OnUpdate callbacks never overlap.
//   - writeState is called without internal locks held.
type Tracker struct {
	source     Source
	writeState func()
	logger     Logger

	// evalMu serialises evaluation and OnUpdate callbacks.
	evalMu sync.Mutex

	mu       sync.Mutex
	attrs    []Attribute
	results  map[string]Result
	attached bool
	added    bool
	unsub    func()
}

// NewTracker creates a tracker reading from source. writeState publishes the
// owner's visible state; it is not called before Attach completes.
func NewTracker(source Source, writeState func(), logger Logger) *Tracker {
	if logger == nil {
		logger = noopLogger{}
	}
	if writeState == nil {
		writeState = func() {}
	}
	return &Tracker{
		source:     source,
		writeState: writeState,
		logger:     logger,
		results:    make(map[string]Result),
	}
}

// Add registers an attribute. Attributes must be added before Attach.
func (t *Tracker) Add(a Attribute) error {
	if a.Name == "" || a.Template == nil {
		return fmt.Errorf("%w: name and template are required", ErrInvalidAttr)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.attached {
		return ErrAttached
	}
	for _, existing := range t.attrs {
		if existing.Name == a.Name {
			return fmt.Errorf("%w: %s", ErrDuplicateAttr, a.Name)
		}
	}
	t.attrs = append(t.attrs, a)
	return nil
}

// Attach subscribes to state changes, evaluates every attribute once and
// then writes the owner's state for the first time.
func (t *Tracker) Attach() error {
	t.mu.Lock()
	if t.attached {
		t.mu.Unlock()
		return ErrAttached
	}
	t.attached = true
	attrs := append([]Attribute(nil), t.attrs...)
	t.mu.Unlock()

	unsub := t.source.Subscribe(t.onChange)

	t.evaluate(attrs)

	t.mu.Lock()
	t.unsub = unsub
	t.added = true
	t.mu.Unlock()

	t.writeState()
	return nil
}

// Detach stops tracking. Safe to call more than once.
func (t *Tracker) Detach() {
	t.mu.Lock()
	unsub := t.unsub
	t.unsub = nil
	t.attached = false
	t.added = false
	t.mu.Unlock()

	if unsub != nil {
		unsub()
	}
}

// Refresh re-evaluates every attribute and writes the owner's state.
func (t *Tracker) Refresh() {
	t.mu.Lock()
	attrs := append([]Attribute(nil), t.attrs...)
	added := t.added
	t.mu.Unlock()

	t.evaluate(attrs)
	if added {
		t.writeState()
	}
}

// Result returns the latest result for the named attribute.
func (t *Tracker) Result(name string) (Result, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.results[name]
	return r, ok
}

// Entities returns every entity id referenced by any attribute.
func (t *Tracker) Entities() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	seen := make(map[string]bool)
	var out []string
	for _, a := range t.attrs {
		for _, id := range a.Template.Entities() {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	return out
}

func (t *Tracker) onChange(entityID string) {
	t.mu.Lock()
	if !t.attached {
		t.mu.Unlock()
		return
	}
	var affected []Attribute
	for _, a := range t.attrs {
		if a.Template.References(entityID) {
			affected = append(affected, a)
		}
	}
	t.mu.Unlock()

	if len(affected) == 0 {
		return
	}

	t.evaluate(affected)

	t.mu.Lock()
	added := t.added
	t.mu.Unlock()
	if added {
		t.writeState()
	}
}

func (t *Tracker) evaluate(attrs []Attribute) {
	t.evalMu.Lock()
	defer t.evalMu.Unlock()

	snapshot := t.source.Snapshot()
	for _, a := range attrs {
		r := a.Template.Evaluate(snapshot)
		if r.Kind == KindTemplateError {
			t.logger.Debug("template evaluation failed", "attribute", a.Name, "template", a.Template.String(), "error", r.Err)
		}
		if r.IsOK() && r.Value != nil && a.Validator != nil {
			v, err := a.Validator(r.Value)
			if err != nil {
				t.logger.Warn("template result rejected", "attribute", a.Name, "template", a.Template.String(), "value", r.Value, "error", err)
				r = ValidationError(r.Value, err)
			} else {
				r = OK(v)
			}
		}

		t.mu.Lock()
		t.results[a.Name] = r
		t.mu.Unlock()

		t.dispatch(a, r)
	}
}

func (t *Tracker) dispatch(a Attribute, r Result) {
	if a.OnUpdate == nil {
		return
	}
	defer func() {
		if p := recover(); p != nil {
			t.logger.Error("attribute update panicked", "attribute", a.Name, "panic", p)
		}
	}()
	a.OnUpdate(r)
}
