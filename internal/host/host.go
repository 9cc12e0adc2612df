// Package host defines the narrow capabilities puppetext consumes from the
// editor host.
//
// Nothing in this package knows about a particular editor. The lifecycle
// code depends only on these interfaces, so a terminal host, a test fake, or
// a real editor bridge can be plugged in without touching the orchestration.
package host

import (
	"context"
	"errors"
)

// Memento is persisted key-value state that survives across activations.
type Memento interface {
	// Get returns the stored value for key, or def when the key is unset.
	Get(key string, def any) any
	// Update stores value under key.
	Update(ctx context.Context, key string, value any) error
}

// BoolValue reads a boolean from m, returning def when the key is unset or
// holds a value of another type.
func BoolValue(m Memento, key string, def bool) bool {
	if m == nil {
		return def
	}
	if b, ok := m.Get(key, def).(bool); ok {
		return b
	}
	return def
}

// ConfigStore exposes raw editor configuration by dotted setting name.
// Values are returned as stored, without type coercion.
type ConfigStore interface {
	Get(name string) (any, bool)
}

// Window is the display surface for non-modal prompts.
//
// The Show methods block until the user picks an action or dismisses the
// prompt; a dismissal resolves to "".
type Window interface {
	ShowInformation(ctx context.Context, msg string, actions ...string) (string, error)
	ShowWarning(ctx context.Context, msg string, actions ...string) (string, error)
	ShowError(ctx context.Context, msg string, actions ...string) (string, error)
	// InputBox asks for a single line of text. A dismissal resolves to "".
	InputBox(ctx context.Context, prompt string) (string, error)
	// ShowDocument displays read-only content to the user.
	ShowDocument(ctx context.Context, title, content string) error
}

// Opener follows links such as release notes or troubleshooting pages.
type Opener interface {
	Open(ctx context.Context, url string) error
}

// CommandFunc is the handler bound to a registered command.
type CommandFunc func(ctx context.Context, args ...any) (any, error)

// Commands registers editor commands.
type Commands interface {
	RegisterCommand(id string, fn CommandFunc) (Disposable, error)
}

// StatusBar shows a short status line.
type StatusBar interface {
	SetStatus(text, tooltip string)
}

// Terminal runs a command line in an editor terminal.
type Terminal interface {
	Run(ctx context.Context, dir, commandLine string) error
}

// Disposable releases a resource.
type Disposable interface {
	Dispose() error
}

// DisposableFunc adapts a function to Disposable.
type DisposableFunc func() error

// Dispose calls f.
func (f DisposableFunc) Dispose() error {
	if f == nil {
		return nil
	}
	return f()
}

// ErrCommandExists is returned when a command id is registered twice.
var ErrCommandExists = errors.New("command already registered")

// ErrUnknownCommand is returned when executing an unregistered command.
var ErrUnknownCommand = errors.New("unknown command")

// Host bundles every capability handed to the lifecycle owner.
type Host struct {
	GlobalState Memento
	Config      ConfigStore
	Window      Window
	Opener      Opener
	Commands    Commands
	StatusBar   StatusBar
	Terminal    Terminal
}

// Validate reports the first missing capability.
func (h Host) Validate() error {
	switch {
	case h.GlobalState == nil:
		return errors.New("host: global state is required")
	case h.Config == nil:
		return errors.New("host: config store is required")
	case h.Window == nil:
		return errors.New("host: window is required")
	case h.Opener == nil:
		return errors.New("host: opener is required")
	case h.Commands == nil:
		return errors.New("host: commands is required")
	case h.StatusBar == nil:
		return errors.New("host: status bar is required")
	case h.Terminal == nil:
		return errors.New("host: terminal is required")
	}
	return nil
}
