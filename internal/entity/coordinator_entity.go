package entity

import (
	"math"
	"sync"

	"github.com/tidwall/gjson"

	"github.com/nerrad567/gray-logic-hub/internal/state"
)

// Description is the static description of a coordinator-backed entity.
type Description struct {
	Key         string
	Name        string
	Path        string // gjson path into the coordinator payload
	Unit        string
	DeviceClass string
}

// Source is the part of a coordinator an entity reads.
// *coordinator.Coordinator[T] satisfies it.
type Source[T any] interface {
	Data() T
	HasData() bool
	Available() bool
	AddListener(fn func()) (unsubscribe func())
}

// ValueFunc extracts the entity value and extra attributes from a payload.
type ValueFunc[T any] func(data T) (value any, attrs map[string]any)

// GJSONValue extracts the value at path from a raw JSON payload.
func GJSONValue(path string) ValueFunc[[]byte] {
	return func(data []byte) (any, map[string]any) {
		res := gjson.GetBytes(data, path)
		if !res.Exists() {
			return nil, nil
		}
		// Out-of-range numbers such as 1e999 parse to infinity.
		if res.Type == gjson.Number && (math.IsInf(res.Num, 0) || math.IsNaN(res.Num)) {
			return nil, map[string]any{"raw_value": res.Raw}
		}
		return res.Value(), nil
	}
}

// CoordinatorEntity mirrors one value of a coordinator payload into the state store.
type CoordinatorEntity[T any] struct {
	id    string
	desc  Description
	src   Source[T]
	value ValueFunc[T]
	sink  Sink

	mu    sync.Mutex
	unsub func()
}

// NewCoordinatorEntity creates an entity. It does nothing until Attach.
func NewCoordinatorEntity[T any](id string, desc Description, src Source[T], value ValueFunc[T], sink Sink) *CoordinatorEntity[T] {
	return &CoordinatorEntity[T]{
		id:    id,
		desc:  desc,
		src:   src,
		value: value,
		sink:  sink,
	}
}

// ID returns the entity id.
func (e *CoordinatorEntity[T]) ID() string {
	return e.id
}

// Attach subscribes to the coordinator and writes the current state.
func (e *CoordinatorEntity[T]) Attach() {
	e.mu.Lock()
	if e.unsub != nil {
		e.mu.Unlock()
		return
	}
	e.unsub = e.src.AddListener(e.writeState)
	e.mu.Unlock()

	e.writeState()
}

// Detach unsubscribes and removes the entity's state.
func (e *CoordinatorEntity[T]) Detach() {
	e.mu.Lock()
	unsub := e.unsub
	e.unsub = nil
	e.mu.Unlock()

	if unsub == nil {
		return
	}
	unsub()
	e.sink.Remove(e.id)
}

func (e *CoordinatorEntity[T]) writeState() {
	st := state.State{
		EntityID:  e.id,
		Name:      e.desc.Name,
		Available: e.src.Available(),
	}

	attrs := map[string]any{}
	if e.src.HasData() {
		var extra map[string]any
		st.Value, extra = e.value(e.src.Data())
		for k, v := range extra {
			attrs[k] = v
		}
	}
	if e.desc.Unit != "" {
		attrs["unit"] = e.desc.Unit
	}
	if e.desc.DeviceClass != "" {
		attrs["device_class"] = e.desc.DeviceClass
	}
	if len(attrs) > 0 {
		st.Attributes = attrs
	}

	e.sink.Write(st)
}
