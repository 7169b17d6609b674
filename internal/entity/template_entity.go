package entity

import (
	"errors"
	"fmt"
	"sync"

	"github.com/nerrad567/gray-logic-hub/internal/state"
	"github.com/nerrad567/gray-logic-hub/internal/template"
)

// ErrSelfReference is returned for a template that reads its own entity.
var ErrSelfReference = errors.New("entity: template references itself")

// TemplateEntity is a sensor whose value is computed from other entities.
//
// A template error makes the entity unavailable. A validation error keeps it
// available with no value and the error in its attributes.
type TemplateEntity struct {
	id      string
	name    string
	unit    string
	sink    Sink
	tracker *template.Tracker

	mu     sync.Mutex
	result template.Result
}

// NewTemplateEntity creates a template sensor. It does nothing until Attach.
func NewTemplateEntity(id, name, unit string, tmpl *template.Template, validator template.Validator, sink Sink) (*TemplateEntity, error) {
	if tmpl.References(id) {
		return nil, fmt.Errorf("%w: %s", ErrSelfReference, id)
	}

	e := &TemplateEntity{
		id:     id,
		name:   name,
		unit:   unit,
		sink:   sink,
		result: template.TemplateError(template.ErrTemplate),
	}
	e.tracker = template.NewTracker(sink.Store, e.writeState, sink.logger())
	if err := e.tracker.Add(template.Attribute{
		Name:      "state",
		Template:  tmpl,
		Validator: validator,
		OnUpdate:  e.onResult,
	}); err != nil {
		return nil, err
	}
	return e, nil
}

// ID returns the entity id.
func (e *TemplateEntity) ID() string {
	return e.id
}

// Attach starts tracking and writes the first state once evaluated.
func (e *TemplateEntity) Attach() error {
	return e.tracker.Attach()
}

// Detach stops tracking and removes the entity's state.
func (e *TemplateEntity) Detach() {
	e.tracker.Detach()
	e.sink.Remove(e.id)
}

// Result returns the latest evaluation result.
func (e *TemplateEntity) Result() template.Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.result
}

func (e *TemplateEntity) onResult(r template.Result) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.result = r
}

func (e *TemplateEntity) writeState() {
	r := e.Result()

	st := state.State{
		EntityID:   e.id,
		Name:       e.name,
		Attributes: map[string]any{"result": r.Kind.String()},
	}
	if e.unit != "" {
		st.Attributes["unit"] = e.unit
	}

	switch r.Kind {
	case template.KindOK:
		st.Value = r.Value
		st.Available = true
	case template.KindValidationError:
		st.Available = true
		st.Attributes["error"] = r.Err.Error()
	default:
		st.Attributes["error"] = r.Err.Error()
	}

	e.sink.Write(st)
}
