// Package status mirrors the connection state on the host status bar.
package status

import (
	"fmt"
	"strings"
	"sync"

	"github.com/dshills/puppetext/internal/connection"
	"github.com/dshills/puppetext/internal/host"
)

// Text is what the status bar shows for one state.
type Text struct {
	Label   string
	Tooltip string
}

// For returns the status text for state s. err, when set, is appended to
// the tooltip.
func For(s connection.State, err error) Text {
	var t Text
	switch s {
	case connection.StateUninitialized, connection.StateChecked:
		t = Text{"$(sync~spin) Puppet: Initializing", "Checking the Puppet installation"}
	case connection.StateStarting:
		t = Text{"$(sync~spin) Puppet: Starting", "Starting the Puppet language server"}
	case connection.StateRunning:
		t = Text{"$(check) Puppet", "Connected to the Puppet language server"}
	case connection.StateStopping:
		t = Text{"$(sync~spin) Puppet: Stopping", "Stopping the Puppet language server"}
	case connection.StateStopped:
		t = Text{"$(circle-slash) Puppet: Stopped", "The Puppet language server is stopped"}
	case connection.StateUnavailable:
		t = Text{"$(alert) Puppet: Unavailable", "No Puppet installation was found"}
	case connection.StateFailed:
		t = Text{"$(alert) Puppet: Error", "The Puppet language server is not running"}
	default:
		t = Text{"Puppet", ""}
	}
	if err != nil {
		t.Tooltip += ": " + err.Error()
	}
	return t
}

// Surface pushes state changes of a connection to a status bar.
type Surface struct {
	bar    host.StatusBar
	client connection.Client

	mu          sync.Mutex
	unsubscribe func()
}

// Attach shows the client's current state on bar and follows its changes
// until Dispose.
func Attach(bar host.StatusBar, client connection.Client) *Surface {
	s := &Surface{bar: bar, client: client}
	s.unsubscribe = client.Subscribe(func(c connection.Change) {
		s.show(c.To, c.Err)
	})
	s.show(client.State(), client.LastError())
	return s
}

func (s *Surface) show(state connection.State, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	Show(s.bar, state, err)
}

// Show sets bar to the text for state. err only reaches the tooltip of the
// failure states.
func Show(bar host.StatusBar, state connection.State, err error) {
	if state != connection.StateFailed && state != connection.StateUnavailable {
		err = nil
	}
	t := For(state, err)
	bar.SetStatus(t.Label, t.Tooltip)
}

// Menu describes the connection for the connection menu command.
func (s *Surface) Menu(protocol string) string {
	return MenuText(s.client.State(), s.client.LastError(), protocol)
}

// Dispose stops following the connection.
func (s *Surface) Dispose() error {
	s.mu.Lock()
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
	return nil
}

// MenuText renders a short connection summary.
func MenuText(state connection.State, err error, protocol string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Puppet language server: %s\n", state)
	if protocol != "" {
		fmt.Fprintf(&b, "Protocol: %s\n", protocol)
	}
	if err != nil {
		fmt.Fprintf(&b, "Last error: %v\n", err)
	}
	return b.String()
}
