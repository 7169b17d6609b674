// Package api implements the hub's HTTP control API and WebSocket event
// stream.
//
// # Routes
//
// Everything lives under /api/v1:
//
//	GET  /health                                    component health
//	GET  /system/metrics                            runtime and hub counters
//	GET  /entries                                   entry status list
//	GET  /entries/{id}
//	POST /entries/{id}/refresh                      refresh every coordinator
//	POST /entries/{id}/reboot                       reboot the device
//	GET  /coordinators
//	GET  /coordinators/{entry_id}/{name}
//	POST /coordinators/{entry_id}/{name}/refresh
//	GET  /coordinators/{entry_id}/{name}/history
//	GET  /states
//	GET  /states/{entity_id}
//	GET  /audit                                     control actions (admin)
//	GET  /ws                                        event stream
//
// The Prometheus handler, when provided, is mounted outside /api/v1.
//
// # Security
//
// When a JWT secret is configured, mutating routes require a bearer token
// whose role grants the route's permission. Reads and the event stream are
// open so dashboards on the local network work without credentials.
//
// # Events
//
// WebSocket clients subscribe to channels. The hub broadcasts
// state.changed for every entity change and coordinator.refreshed for
// every refresh attempt.
package api
