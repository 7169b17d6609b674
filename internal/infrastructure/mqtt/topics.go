package mqtt

import (
	"fmt"
	"strings"
)

// Topic prefixes.
const (
	TopicPrefix       = "graylogic"
	TopicPrefixSystem = "graylogic/system"

	// hubProtocol is the protocol segment the hub uses in the flat
	// graylogic/{category}/{protocol}/{id} scheme.
	hubProtocol = "hub"
)

// Topics builds the hub's MQTT topics.
//
//	topics := mqtt.Topics{}
//	topics.EntityState("sensor.controller_zone_1")
//	// graylogic/state/hub/sensor.controller_zone_1
type Topics struct{}

// EntityState is where an entity's state is published, retained.
func (Topics) EntityState(entityID string) string {
	return fmt.Sprintf("%s/state/%s/%s", TopicPrefix, hubProtocol, entityID)
}

// EntryCommand is where commands for an entry are received.
func (Topics) EntryCommand(entryID string) string {
	return fmt.Sprintf("%s/command/%s/%s", TopicPrefix, hubProtocol, entryID)
}

// AllEntryCommands matches every entry command topic.
func (Topics) AllEntryCommands() string {
	return fmt.Sprintf("%s/command/%s/+", TopicPrefix, hubProtocol)
}

// AllEntityStates matches every entity state topic.
func (Topics) AllEntityStates() string {
	return fmt.Sprintf("%s/state/%s/+", TopicPrefix, hubProtocol)
}

// EntryIDFromCommand extracts the entry id from an entry command topic.
func (Topics) EntryIDFromCommand(topic string) (string, bool) {
	prefix := fmt.Sprintf("%s/command/%s/", TopicPrefix, hubProtocol)
	id, ok := strings.CutPrefix(topic, prefix)
	if !ok || id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}

// SystemStatus is the hub's retained online/offline status.
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}
