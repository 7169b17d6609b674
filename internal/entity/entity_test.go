package entity

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/nerrad567/gray-logic-hub/internal/state"
	"github.com/nerrad567/gray-logic-hub/internal/template"
)

// ===== Fixtures =====

type published struct {
	topic    string
	payload  []byte
	retained bool
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (p *fakePublisher) Publish(topic string, payload []byte, _ byte, retained bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, published{topic: topic, payload: payload, retained: retained})
	return nil
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.msgs)
}

func (p *fakePublisher) last() published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.msgs[len(p.msgs)-1]
}

// fakeSource is a hand-driven coordinator.
type fakeSource struct {
	mu        sync.Mutex
	data      []byte
	hasData   bool
	available bool
	listeners map[int]func()
	next      int
}

func newFakeSource() *fakeSource {
	return &fakeSource{listeners: make(map[int]func())}
}

func (s *fakeSource) Data() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data
}

func (s *fakeSource) HasData() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasData
}

func (s *fakeSource) Available() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.available
}

func (s *fakeSource) AddListener(fn func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.next
	s.next++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *fakeSource) update(data string, available bool) {
	s.mu.Lock()
	s.data = []byte(data)
	s.hasData = true
	s.available = available
	fns := make([]func(), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

func (s *fakeSource) listenerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listeners)
}

func topic(id string) string { return "graylogic/state/hub/" + id }

// ===== ID =====

func TestID(t *testing.T) {
	tests := []struct {
		domain, object, want string
	}{
		{"sensor", "controller_zone_1", "sensor.controller_zone_1"},
		{"sensor", "controller_Zone 1", "sensor.controller_zone_1"},
		{"sensor", "rain-delay", "sensor.rain_delay"},
	}
	for _, tt := range tests {
		if got := ID(tt.domain, tt.object); got != tt.want {
			t.Errorf("ID(%q, %q) = %q, want %q", tt.domain, tt.object, got, tt.want)
		}
	}
}

// ===== CoordinatorEntity =====

func TestCoordinatorEntity_AttachWritesCurrentState(t *testing.T) {
	store := state.NewStore()
	src := newFakeSource()
	src.update(`{"zones":[{"runtime":12}]}`, true)

	e := NewCoordinatorEntity("sensor.controller_zone_1", Description{
		Key: "zone_1", Name: "Zone 1", Path: "zones.0.runtime", Unit: "min",
	}, src, GJSONValue("zones.0.runtime"), Sink{Store: store})
	e.Attach()
	defer e.Detach()

	st, ok := store.Get("sensor.controller_zone_1")
	if !ok {
		t.Fatal("state not written on Attach")
	}
	if st.Value != float64(12) {
		t.Errorf("Value = %v, want 12", st.Value)
	}
	if !st.Available {
		t.Error("Available = false, want true")
	}
	if st.Attributes["unit"] != "min" {
		t.Errorf("unit = %v, want min", st.Attributes["unit"])
	}
}

func TestCoordinatorEntity_FollowsCoordinator(t *testing.T) {
	store := state.NewStore()
	pub := &fakePublisher{}
	src := newFakeSource()

	e := NewCoordinatorEntity("sensor.controller_rain", Description{Name: "Rain"},
		src, GJSONValue("rain"), Sink{Store: store, Publisher: pub, Topic: topic})
	e.Attach()

	st, _ := store.Get("sensor.controller_rain")
	if st.Value != nil || st.Available {
		t.Errorf("state before first data = %+v, want no value and unavailable", st)
	}

	src.update(`{"rain":true}`, true)
	st, _ = store.Get("sensor.controller_rain")
	if st.Value != true || !st.Available {
		t.Errorf("state = %+v, want true and available", st)
	}

	// Coordinator becomes unavailable; last value is kept.
	src.update(`{"rain":true}`, false)
	st, _ = store.Get("sensor.controller_rain")
	if st.Available {
		t.Error("Available = true after coordinator became unavailable")
	}
	if st.Value != true {
		t.Errorf("Value = %v, want stale true", st.Value)
	}

	msg := pub.last()
	if msg.topic != "graylogic/state/hub/sensor.controller_rain" || !msg.retained {
		t.Errorf("published %q retained=%v", msg.topic, msg.retained)
	}
	var decoded state.State
	if err := json.Unmarshal(msg.payload, &decoded); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if decoded.Available {
		t.Error("published state is available, want unavailable")
	}

	e.Detach()
	if src.listenerCount() != 0 {
		t.Error("listener still registered after Detach")
	}
	if _, ok := store.Get("sensor.controller_rain"); ok {
		t.Error("state still present after Detach")
	}
	if pub.last().payload != nil {
		t.Error("retained state not cleared after Detach")
	}
}

func TestCoordinatorEntity_UnchangedStateNotRepublished(t *testing.T) {
	store := state.NewStore()
	pub := &fakePublisher{}
	src := newFakeSource()
	src.update(`{"level":3}`, true)

	e := NewCoordinatorEntity("sensor.tank_level", Description{Name: "Level"},
		src, GJSONValue("level"), Sink{Store: store, Publisher: pub, Topic: topic})
	e.Attach()
	defer e.Detach()

	src.update(`{"level":3}`, true)
	src.update(`{"level":3}`, true)
	if got := pub.count(); got != 1 {
		t.Errorf("published %d times, want 1", got)
	}

	src.update(`{"level":4}`, true)
	if got := pub.count(); got != 2 {
		t.Errorf("published %d times, want 2", got)
	}
}

func TestCoordinatorEntity_NonFiniteNumberKeepsStoreEncodable(t *testing.T) {
	store := state.NewStore()
	pub := &fakePublisher{}
	sink := Sink{Store: store, Publisher: pub, Topic: topic}
	store.Set(state.State{EntityID: "sensor.other", Value: 5.0, Available: true})

	tmpl, err := NewTemplateEntity("sensor.copy", "Copy", "",
		template.MustParse("{{sensor.other}}.value"), nil, sink)
	if err != nil {
		t.Fatalf("NewTemplateEntity() error = %v", err)
	}
	if err := tmpl.Attach(); err != nil {
		t.Fatalf("Attach() error = %v", err)
	}
	defer tmpl.Detach()

	src := newFakeSource()
	src.update(`{"v":1e999}`, true)
	e := NewCoordinatorEntity("sensor.overflow", Description{Name: "Overflow"}, src, GJSONValue("v"), sink)
	e.Attach()
	defer e.Detach()

	st, ok := store.Get("sensor.overflow")
	if !ok {
		t.Fatal("state not written")
	}
	if st.Value != nil {
		t.Errorf("Value = %v, want nil for an out-of-range number", st.Value)
	}
	if st.Attributes["raw_value"] != "1e999" {
		t.Errorf("raw_value = %v, want 1e999", st.Attributes["raw_value"])
	}
	if msg := pub.last(); msg.topic != topic("sensor.overflow") {
		t.Errorf("last published topic = %q, want the overflow entity", msg.topic)
	}

	if _, err := store.Encode(); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	// Other templates keep evaluating.
	store.Set(state.State{EntityID: "sensor.other", Value: 6.0, Available: true})
	if r := tmpl.Result(); !r.IsOK() || r.Value != 6.0 {
		t.Errorf("Result() = %+v, want OK 6", r)
	}
}

func TestCoordinatorEntity_AttachTwice(t *testing.T) {
	src := newFakeSource()
	e := NewCoordinatorEntity("sensor.x", Description{}, src, GJSONValue("x"), Sink{Store: state.NewStore()})
	e.Attach()
	e.Attach()
	if n := src.listenerCount(); n != 1 {
		t.Errorf("listeners = %d, want 1", n)
	}
	e.Detach()
	e.Detach()
}

func TestSink_PublishFailureKeepsState(t *testing.T) {
	store := state.NewStore()
	sink := Sink{Store: store, Publisher: &fakePublisher{err: errors.New("not connected")}, Topic: topic}

	sink.Write(state.State{EntityID: "sensor.a", Value: 1, Available: true})
	if _, ok := store.Get("sensor.a"); !ok {
		t.Error("state dropped after publish failure")
	}
}

// ===== TemplateEntity =====

func TestTemplateEntity_SelfReference(t *testing.T) {
	tmpl := template.MustParse("{{sensor.total}}")
	_, err := NewTemplateEntity("sensor.total", "Total", "", tmpl, nil, Sink{Store: state.NewStore()})
	if !errors.Is(err, ErrSelfReference) {
		t.Errorf("NewTemplateEntity() error = %v, want ErrSelfReference", err)
	}
}

func TestTemplateEntity_Outcomes(t *testing.T) {
	store := state.NewStore()
	pub := &fakePublisher{}
	sink := Sink{Store: store, Publisher: pub, Topic: topic}

	e, err := NewTemplateEntity("sensor.rain_mm", "Rain", "mm",
		template.MustParse("{{sensor.controller_rain}}"), template.Number(nil, nil), sink)
	if err != nil {
		t.Fatalf("NewTemplateEntity() error = %v", err)
	}
	if err := e.Attach(); err != nil {
		t.Fatalf("Attach() error = %v", err)
	}
	defer e.Detach()

	// Unknown source entity: unavailable.
	st, ok := store.Get("sensor.rain_mm")
	if !ok {
		t.Fatal("state not written on Attach")
	}
	if st.Available {
		t.Error("Available = true with unknown source entity")
	}
	if st.Attributes["result"] != "template_error" {
		t.Errorf("result = %v, want template_error", st.Attributes["result"])
	}

	// Valid value.
	store.Set(state.State{EntityID: "sensor.controller_rain", Value: "4.5", Available: true})
	st, _ = store.Get("sensor.rain_mm")
	if st.Value != 4.5 || !st.Available {
		t.Errorf("state = %+v, want 4.5 available", st)
	}
	if st.Attributes["unit"] != "mm" {
		t.Errorf("unit = %v, want mm", st.Attributes["unit"])
	}

	// Validation error: available, no value.
	store.Set(state.State{EntityID: "sensor.controller_rain", Value: "heavy", Available: true})
	st, _ = store.Get("sensor.rain_mm")
	if st.Value != nil || !st.Available {
		t.Errorf("state = %+v, want no value and available", st)
	}
	if st.Attributes["result"] != "validation_error" {
		t.Errorf("result = %v, want validation_error", st.Attributes["result"])
	}
	if e.Result().Kind != template.KindValidationError {
		t.Errorf("Result().Kind = %v, want validation error", e.Result().Kind)
	}
	if pub.count() == 0 {
		t.Error("template state never published")
	}

	e.Detach()
	if _, ok := store.Get("sensor.rain_mm"); ok {
		t.Error("state still present after Detach")
	}
}
