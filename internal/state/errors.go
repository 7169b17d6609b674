package state

import "errors"

// ErrEncode is returned when a state cannot be encoded as JSON.
var ErrEncode = errors.New("state: encode failed")
