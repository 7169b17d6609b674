// Package entity turns coordinator data and template results into entity
// states.
//
// Every entity writes through a Sink: the live state store first, then,
// when the state actually changed and a publisher is configured, a retained
// JSON message on the entity's MQTT state topic.
//
//	sink := entity.Sink{Store: store, Publisher: mqttClient, Topic: topics.HubEntityState}
//	e := entity.NewCoordinatorEntity(id, desc, coord, entity.GJSONValue(desc.Path), sink)
//	e.Attach()
//	defer e.Detach()
package entity
