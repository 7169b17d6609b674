// Package rest integrates devices that expose their state as JSON over HTTP.
//
// Each configured category (for example "zones" or "provision") is polled by
// its own coordinator at its own interval. Coordinators of one device share
// an HTTP client and a reboot group, so a reboot request marks every category
// unavailable until the fastest-polling one sees the device again.
//
// Error classification:
//   - Connection failures, timeouts, HTTP 5xx and 429 are expected and wrap
//     coordinator.ErrUpdateFailed.
//   - Other HTTP errors and malformed JSON are unexpected and logged as errors.
package rest
