// Package signal provides the per-entry signal dispatcher used for
// cross-coordinator notifications such as reboot requests.
//
// A Dispatcher is owned by one config entry and injected into whatever
// needs to talk across coordinators of that entry. Signals are named,
// payload-free and delivered asynchronously by a single goroutine in the
// order they were sent, so a handler may safely Send from inside another
// handler or from a coordinator listener.
//
// Example usage:
//
//	d := signal.New(logger)
//	defer d.Close()
//
//	off := d.Connect(signal.RebootRequested(entryID), func() { ... })
//	defer off()
//
//	d.Send(signal.RebootRequested(entryID))
package signal
