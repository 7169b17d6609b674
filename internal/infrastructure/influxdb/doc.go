// Package influxdb writes hub time series to InfluxDB v2.
//
// Two measurements are recorded:
//
//   - coordinator_refresh: one point per refresh attempt, tagged with entry,
//     coordinator and trigger, with duration, success and failure fields.
//   - entity_state: one point per numeric entity state change.
//
// Writes are non-blocking and batched by the InfluxDB client. Errors are
// delivered asynchronously to the callback set with SetOnError.
package influxdb
