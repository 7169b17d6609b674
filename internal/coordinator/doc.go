// Package coordinator implements the polling data-update coordinator.
//
// A Coordinator owns one periodic refresh cycle for one logical device or
// data category. It calls a producer-supplied fetch function on a timer,
// keeps the last successful payload, tracks success and consecutive
// failures, and notifies registered listeners after every attempt.
//
// Lifecycle:
//
//	c, err := coordinator.New("zones", 30*time.Second, fetchZones,
//	    coordinator.WithLogger(logger),
//	)
//	if err != nil {
//	    return err
//	}
//	if err := c.FirstRefresh(ctx); err != nil {
//	    return err // wraps ErrSetupNotReady, retry setup later
//	}
//	off := c.AddListener(func() { render(c.Data()) })
//	...
//	off()
//	c.Shutdown()
//
// Failure handling:
//   - Only FirstRefresh returns fetch errors to its caller.
//   - Scheduled and requested refreshes absorb failures into state.
//   - Errors wrapping ErrUpdateFailed, deadlines and network errors are
//     expected and logged at warn (first of a streak) or debug. Anything
//     else is logged at error. Both are otherwise handled the same way.
//   - Stale data is kept until ClearData is called.
//
// Variants:
//   - WithRetry adds a one-off retry after a fixed multiple of the fetch
//     timeout and marks the coordinator unavailable after a number of
//     consecutive failures.
//   - RebootGroup links sibling coordinators of one device so a requested
//     reboot marks them all unavailable until the watcher, the member with
//     the shortest interval, sees the device answer again.
//
// Concurrency:
//   - At most one fetch runs per coordinator. Concurrent RequestRefresh
//     calls share the in-flight result.
//   - Listener invocations for one coordinator never overlap.
//   - Listeners must not call RequestRefresh synchronously.
package coordinator
