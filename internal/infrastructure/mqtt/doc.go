// Package mqtt connects the hub to an MQTT broker.
//
// The hub publishes every entity state retained on
// graylogic/state/hub/{entity_id} and listens for commands on
// graylogic/command/hub/{entry_id}. Its own online/offline status, including
// a Last Will for unexpected disconnects, is retained on
// graylogic/system/status.
//
// Usage:
//
//	client, err := mqtt.Connect(cfg.MQTT, logger)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllEntryCommands(), 1,
//	    func(topic string, payload []byte) error {
//	        entryID, _ := mqtt.Topics{}.EntryIDFromCommand(topic)
//	        cmd, err := mqtt.ParseCommand(payload)
//	        ...
//	    })
//
// Subscriptions are restored automatically after a reconnect.
package mqtt
