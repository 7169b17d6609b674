// Package history persists one row per coordinator refresh attempt.
//
// The Recorder is a coordinator.RefreshObserver. It queues events and writes
// them on its own goroutine so a slow disk never delays a refresh. Rows
// older than the configured retention are pruned periodically.
package history
