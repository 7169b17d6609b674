package entity

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/nerrad567/gray-logic-hub/internal/state"
)

var objectIDPattern = regexp.MustCompile(`[^a-z0-9_]+`)

// ID builds an entity id such as "sensor.controller_zone_1".
func ID(domain, objectID string) string {
	return fmt.Sprintf("%s.%s", domain, objectIDPattern.ReplaceAllString(strings.ToLower(objectID), "_"))
}

// Publisher sends a message to an MQTT topic. *mqtt.Client satisfies it.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Logger defines the logging interface for entities.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Sink is where entities write their state.
type Sink struct {
	Store *state.Store

	// Publisher and Topic are optional. When both are set, changed states
	// are published retained with QoS.
	Publisher Publisher
	Topic     func(entityID string) string
	QoS       byte

	Logger Logger
}

func (s Sink) logger() Logger {
	if s.Logger == nil {
		return noopLogger{}
	}
	return s.Logger
}

// Write stores st and publishes it if it changed.
func (s Sink) Write(st state.State) {
	if !s.Store.Set(st) {
		return
	}
	if s.Publisher == nil || s.Topic == nil {
		return
	}

	stored, _ := s.Store.Get(st.EntityID)
	payload, err := json.Marshal(stored)
	if err != nil {
		s.logger().Error("encoding entity state", "entity_id", st.EntityID, "error", err)
		return
	}
	if err := s.Publisher.Publish(s.Topic(st.EntityID), payload, s.QoS, true); err != nil {
		s.logger().Warn("publishing entity state", "entity_id", st.EntityID, "error", err)
	}
}

// Remove deletes the entity from the store and clears its retained message.
func (s Sink) Remove(entityID string) {
	if !s.Store.Remove(entityID) {
		return
	}
	if s.Publisher == nil || s.Topic == nil {
		return
	}
	// An empty retained payload deletes the retained message on the broker.
	if err := s.Publisher.Publish(s.Topic(entityID), nil, s.QoS, true); err != nil {
		s.logger().Debug("clearing retained entity state", "entity_id", entityID, "error", err)
	}
}
