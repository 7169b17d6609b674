// Package state holds the live state of every entity the hub exposes.
//
// The Store is the single source that entities write to and that templates,
// the WebSocket stream and the API read from. Subscribers are told which
// entity changed and read the new value themselves.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"
	"sync"
	"time"
)

// State is the visible state of one entity.
type State struct {
	EntityID   string         `json:"entity_id"`
	Name       string         `json:"name,omitempty"`
	Value      any            `json:"value"`
	Available  bool           `json:"available"`
	Attributes map[string]any `json:"attributes,omitempty"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// equivalent reports whether two states would look the same to a reader.
func (s State) equivalent(o State) bool {
	return s.Available == o.Available &&
		s.Name == o.Name &&
		reflect.DeepEqual(s.Value, o.Value) &&
		reflect.DeepEqual(s.Attributes, o.Attributes)
}

type subscriber struct {
	fn func(entityID string)
}

// Store is a concurrency-safe map of entity states with change subscriptions.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Subscribers are called without the store lock held, so they may read
//     from or write to the store.
type Store struct {
	mu     sync.RWMutex
	states map[string]State
	subs   []*subscriber
	now    func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		states: make(map[string]State),
		now:    time.Now,
	}
}

// Set stores st and notifies subscribers if it differs from the previous
// state. UpdatedAt is filled in when zero. NaN and infinite numbers in the
// value or attributes are stored as nil, since JSON cannot carry them.
// Returns true if the state changed.
func (s *Store) Set(st State) bool {
	st.Value = finite(st.Value)
	if st.Attributes != nil {
		attrs := make(map[string]any, len(st.Attributes))
		for k, v := range st.Attributes {
			attrs[k] = finite(v)
		}
		st.Attributes = attrs
	}
	if st.UpdatedAt.IsZero() {
		st.UpdatedAt = s.now().UTC()
	}

	s.mu.Lock()
	prev, existed := s.states[st.EntityID]
	if existed && prev.equivalent(st) {
		s.mu.Unlock()
		return false
	}
	s.states[st.EntityID] = st
	subs := append([]*subscriber(nil), s.subs...)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.fn(st.EntityID)
	}
	return true
}

// Get returns the state of one entity.
func (s *Store) Get(entityID string) (State, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.states[entityID]
	return st, ok
}

// All returns every state ordered by entity id.
func (s *Store) All() []State {
	s.mu.RLock()
	out := make([]State, 0, len(s.states))
	for _, st := range s.states {
		out = append(out, st)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].EntityID < out[j].EntityID })
	return out
}

// Remove deletes an entity and notifies subscribers. Returns false if it
// did not exist.
func (s *Store) Remove(entityID string) bool {
	s.mu.Lock()
	if _, ok := s.states[entityID]; !ok {
		s.mu.Unlock()
		return false
	}
	delete(s.states, entityID)
	subs := append([]*subscriber(nil), s.subs...)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.fn(entityID)
	}
	return true
}

// Encode returns all states as a JSON object keyed by entity id.
// An entity that cannot be encoded is left out and reported in the error;
// the returned object still holds every other entity.
func (s *Store) Encode() ([]byte, error) {
	s.mu.RLock()
	raw := make(map[string]json.RawMessage, len(s.states))
	var errs []error
	for id, st := range s.states {
		b, err := json.Marshal(st)
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: %s: %w", ErrEncode, id, err))
			continue
		}
		raw[id] = b
	}
	s.mu.RUnlock()

	data, err := json.Marshal(raw)
	if err != nil {
		return []byte("{}"), fmt.Errorf("%w: %w", ErrEncode, err)
	}
	return data, errors.Join(errs...)
}

// Snapshot returns the encodable part of the store, as Encode does.
func (s *Store) Snapshot() []byte {
	data, _ := s.Encode()
	return data
}

// Subscribe registers fn to be called with the id of every changed or
// removed entity. The returned function unsubscribes and may be called
// more than once.
func (s *Store) Subscribe(fn func(entityID string)) (unsubscribe func()) {
	sub := &subscriber{fn: fn}

	s.mu.Lock()
	s.subs = append(s.subs, sub)
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, other := range s.subs {
				if other == sub {
					s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
					break
				}
			}
		})
	}
}

// finite replaces NaN and infinite floats, including those nested in maps
// and slices, with nil.
func finite(v any) any {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil
		}
	case float32:
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			return nil
		}
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = finite(e)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = finite(e)
		}
		return out
	}
	return v
}
