package mqtt

import (
	"encoding/json"
	"fmt"
)

// Command names accepted on entry command topics.
const (
	CommandRefresh = "refresh"
	CommandReboot  = "reboot"
)

// Command is a request to act on an entry.
//
// Coordinator is optional for refresh; when empty every coordinator of the
// entry refreshes.
type Command struct {
	Command     string `json:"command"`
	Coordinator string `json:"coordinator,omitempty"`
}

// ParseCommand decodes and validates a command payload.
func ParseCommand(payload []byte) (Command, error) {
	var cmd Command
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return Command{}, fmt.Errorf("%w: %w", ErrInvalidCommand, err)
	}
	switch cmd.Command {
	case CommandRefresh:
	case CommandReboot:
		if cmd.Coordinator != "" {
			return Command{}, fmt.Errorf("%w: reboot applies to the whole entry", ErrInvalidCommand)
		}
	default:
		return Command{}, fmt.Errorf("%w: unknown command %q", ErrInvalidCommand, cmd.Command)
	}
	return cmd, nil
}
