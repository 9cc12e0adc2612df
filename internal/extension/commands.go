package extension

import (
	"context"
	"fmt"
	"strings"

	"github.com/dshills/puppetext/internal/host"
)

// Extension-level command ids.
const (
	CommandConnectionMenu = "puppet.puppetShowConnectionMenu"
	CommandConnectionLogs = "puppet.puppetShowConnectionLogs"
	CommandRestartSession = "puppet.restartSession"
)

// Connection menu actions.
const (
	ActionRestartSession = "Restart Session"
	ActionShowLogs       = "Show Logs"
)

// LogsTitle is the title of the document showing the connection logs.
const LogsTitle = "Puppet Connection Logs"

// registerCommands binds the extension commands to the current
// orchestrator. Must be called with mu held.
func (e *Extension) registerCommands() error {
	orch := e.orchestrator
	surface := e.surface
	protocol := string(e.snapshot.EditorService.Protocol)

	restart := func(ctx context.Context) error {
		if err := orch.Restart(ctx); err != nil {
			return fmt.Errorf("restart session: %w", err)
		}
		return nil
	}
	showLogs := func(ctx context.Context) error {
		return e.host.Window.ShowDocument(ctx, LogsTitle, strings.Join(e.logger.Recent(), "\n"))
	}

	handlers := []struct {
		id string
		fn host.CommandFunc
	}{
		{CommandConnectionMenu, func(ctx context.Context, _ ...any) (any, error) {
			action, err := e.host.Window.ShowInformation(ctx, surface.Menu(protocol), ActionRestartSession, ActionShowLogs)
			if err != nil {
				return nil, err
			}
			switch action {
			case ActionRestartSession:
				return nil, restart(ctx)
			case ActionShowLogs:
				return nil, showLogs(ctx)
			}
			return nil, nil
		}},
		{CommandConnectionLogs, func(ctx context.Context, _ ...any) (any, error) {
			return nil, showLogs(ctx)
		}},
		{CommandRestartSession, func(ctx context.Context, _ ...any) (any, error) {
			return nil, restart(ctx)
		}},
	}

	for _, h := range handlers {
		id, fn := h.id, h.fn
		d, err := e.host.Commands.RegisterCommand(id, func(ctx context.Context, args ...any) (any, error) {
			result, err := fn(ctx, args...)
			e.metrics.CommandExecuted(id, err)
			return result, err
		})
		if err != nil {
			return fmt.Errorf("%s: %w", id, err)
		}
		e.commands = append(e.commands, d)
	}
	return nil
}
