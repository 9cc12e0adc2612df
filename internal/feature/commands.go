package feature

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/dshills/puppetext/internal/host"
	"github.com/dshills/puppetext/internal/logging"
	"github.com/dshills/puppetext/internal/settings"
	"github.com/dshills/puppetext/internal/telemetry"
)

// commandSet tracks the commands a feature registered so they can be
// released together.
type commandSet struct {
	name     string
	commands host.Commands
	metrics  *telemetry.Metrics
	handles  []host.Disposable
}

func newCommandSet(name string, deps Deps) *commandSet {
	return &commandSet{name: name, commands: deps.Commands, metrics: deps.Metrics}
}

// register binds fn to id. On error every command registered so far is
// released.
func (c *commandSet) register(id string, fn host.CommandFunc) error {
	if c.commands == nil {
		return fmt.Errorf("%s: no command registry", c.name)
	}
	metrics := c.metrics
	d, err := c.commands.RegisterCommand(id, func(ctx context.Context, args ...any) (any, error) {
		result, err := fn(ctx, args...)
		metrics.CommandExecuted(id, err)
		return result, err
	})
	if err != nil {
		_ = c.Dispose()
		return fmt.Errorf("register %s: %w", id, err)
	}
	c.handles = append(c.handles, d)
	return nil
}

func (c *commandSet) Name() string {
	return c.name
}

// Dispose releases every registered command.
func (c *commandSet) Dispose() error {
	var errs error
	for _, d := range c.handles {
		errs = multierr.Append(errs, d.Dispose())
	}
	c.handles = nil
	return errs
}

// stringArg returns args[i] when it is a string.
func stringArg(args []any, i int) string {
	if i < len(args) {
		if s, ok := args[i].(string); ok {
			return s
		}
	}
	return ""
}

// reporter delivers feature messages according to the configured
// notification mode.
type reporter struct {
	mode      settings.NotificationMode
	window    host.Window
	statusBar host.StatusBar
	logger    *logging.Logger
}

func (r reporter) showInfo(ctx context.Context, msg string) {
	r.logger.Info("%s", msg)
	switch r.mode {
	case settings.NotifyMessageBox:
		_, _ = r.window.ShowInformation(ctx, msg)
	case settings.NotifyStatusBar:
		if r.statusBar != nil {
			r.statusBar.SetStatus("$(info) "+msg, msg)
		}
	}
}

func (r reporter) showError(ctx context.Context, msg string) {
	r.logger.Warn("%s", msg)
	switch r.mode {
	case settings.NotifyMessageBox:
		_, _ = r.window.ShowError(ctx, msg)
	case settings.NotifyStatusBar:
		if r.statusBar != nil {
			r.statusBar.SetStatus("$(alert) "+msg, msg)
		}
	}
}
