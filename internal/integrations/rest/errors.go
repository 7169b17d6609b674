package rest

import "errors"

// Domain errors for the REST integration.
var (
	// ErrStatus is returned for a non-2xx response.
	ErrStatus = errors.New("rest: unexpected status")

	// ErrInvalidPayload is returned when the response body is not valid JSON.
	ErrInvalidPayload = errors.New("rest: invalid JSON payload")

	// ErrInvalidURL is returned when the device URL cannot be used.
	ErrInvalidURL = errors.New("rest: invalid device URL")

	// ErrRebootUnsupported is returned when no reboot path is configured.
	ErrRebootUnsupported = errors.New("rest: reboot not configured")
)
