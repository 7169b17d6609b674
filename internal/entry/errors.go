package entry

import "errors"

// Domain errors for entry management.
var (
	// ErrNotFound is returned when no entry has the requested id.
	ErrNotFound = errors.New("entry: not found")

	// ErrAlreadyLoaded is returned when setting up an entry id twice.
	ErrAlreadyLoaded = errors.New("entry: already loaded")

	// ErrSetupFailed wraps a permanent setup failure.
	ErrSetupFailed = errors.New("entry: setup failed")

	// ErrNotLoaded is returned when acting on an entry that is not loaded.
	ErrNotLoaded = errors.New("entry: not loaded")

	// ErrRebootUnsupported is returned when the device cannot be rebooted.
	ErrRebootUnsupported = errors.New("entry: reboot not supported")
)
