// Package entry manages the lifecycle of configured devices.
//
// An Entry is one configured device. An Integration sets it up by creating
// coordinators, entities and unload hooks. The Manager runs setup, retries it
// in the background while the device is not ready, and unloads entries in
// reverse order of what their setup registered.
//
// Lifecycle:
//
//	not_loaded -> setup_in_progress -> loaded
//	                                -> setup_retry -> setup_in_progress ...
//	                                -> setup_error
package entry
