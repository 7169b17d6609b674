package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-hub/internal/audit"
	"github.com/nerrad567/gray-logic-hub/internal/entry"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/mqtt"
)

// commandTimeout bounds a refresh or reboot started from MQTT.
const commandTimeout = 30 * time.Second

// entryLookup finds entries by id. *entry.Manager satisfies it.
type entryLookup interface {
	Get(id string) (*entry.Entry, error)
}

// executeCommand runs one parsed MQTT command against an entry.
//
// "refresh" refreshes every coordinator of the entry, or only the named one.
// "reboot" asks the device to restart.
func executeCommand(ctx context.Context, entries entryLookup, entryID string, cmd mqtt.Command) error {
	e, err := entries.Get(entryID)
	if err != nil {
		return err
	}
	if e.State() != entry.StateLoaded {
		return fmt.Errorf("%w: %s is %s", entry.ErrNotLoaded, entryID, e.State())
	}

	switch cmd.Command {
	case mqtt.CommandRefresh:
		if cmd.Coordinator == "" {
			e.RefreshAll(ctx)
			return nil
		}
		c, ok := e.Coordinator(cmd.Coordinator)
		if !ok {
			return fmt.Errorf("coordinator %s/%s: %w", entryID, cmd.Coordinator, entry.ErrNotFound)
		}
		c.RequestRefresh(ctx)
		return nil

	case mqtt.CommandReboot:
		return e.Reboot(ctx)

	default:
		return fmt.Errorf("%w: %q", mqtt.ErrInvalidCommand, cmd.Command)
	}
}

// commandHandler returns the MQTT handler for entry command topics.
// Commands run in their own goroutine so a slow device does not stall the
// MQTT client. Every parsed command is recorded in trail.
func commandHandler(ctx context.Context, entries entryLookup, trail *audit.Trail, log commandLogger) mqtt.MessageHandler {
	return func(topic string, payload []byte) error {
		entryID, ok := (mqtt.Topics{}).EntryIDFromCommand(topic)
		if !ok {
			return fmt.Errorf("%w: %s", mqtt.ErrInvalidTopic, topic)
		}
		cmd, err := mqtt.ParseCommand(payload)
		if err != nil {
			return err
		}

		go func() {
			cmdCtx, cancel := context.WithTimeout(ctx, commandTimeout)
			defer cancel()

			err := executeCommand(cmdCtx, entries, entryID, cmd)
			ev := audit.Event{
				Action:      cmd.Command,
				EntryID:     entryID,
				Coordinator: cmd.Coordinator,
				Source:      audit.SourceMQTT,
				Outcome:     audit.OutcomeOf(err, entry.ErrNotFound, entry.ErrNotLoaded, entry.ErrRebootUnsupported),
			}
			if err != nil {
				ev.Details = map[string]any{"error": err.Error()}
			}
			trail.Record(ctx, ev)

			switch {
			case err == nil:
				log.Info("command executed", "entry_id", entryID, "command", cmd.Command, "coordinator", cmd.Coordinator)
			case errors.Is(err, entry.ErrNotFound), errors.Is(err, entry.ErrNotLoaded), errors.Is(err, entry.ErrRebootUnsupported):
				log.Warn("command rejected", "entry_id", entryID, "command", cmd.Command, "error", err)
			default:
				log.Error("command failed", "entry_id", entryID, "command", cmd.Command, "error", err)
			}
		}()
		return nil
	}
}

type commandLogger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}
