package status

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dshills/puppetext/internal/connection"
	"github.com/dshills/puppetext/internal/host/hosttest"
)

func TestFor(t *testing.T) {
	tests := []struct {
		state connection.State
		label string
	}{
		{connection.StateStarting, "$(sync~spin) Puppet: Starting"},
		{connection.StateRunning, "$(check) Puppet"},
		{connection.StateFailed, "$(alert) Puppet: Error"},
		{connection.StateUnavailable, "$(alert) Puppet: Unavailable"},
		{connection.StateStopped, "$(circle-slash) Puppet: Stopped"},
	}
	for _, tt := range tests {
		if got := For(tt.state, nil).Label; got != tt.label {
			t.Errorf("For(%s).Label = %q, expected %q", tt.state, got, tt.label)
		}
	}

	tip := For(connection.StateFailed, errors.New("boom")).Tooltip
	if !strings.HasSuffix(tip, ": boom") {
		t.Errorf("expected error in tooltip, got %q", tip)
	}
}

// fakeClient is a connection.Client whose state is driven by the test.
type fakeClient struct {
	state    connection.State
	err      error
	observer connection.Observer
}

func (c *fakeClient) State() connection.State { return c.state }
func (c *fakeClient) LastError() error        { return c.err }
func (c *fakeClient) Request(context.Context, string, any, any) error {
	return nil
}
func (c *fakeClient) Notify(context.Context, string, any) error { return nil }
func (c *fakeClient) Subscribe(fn connection.Observer) func() {
	c.observer = fn
	return func() { c.observer = nil }
}

func (c *fakeClient) move(to connection.State, err error) {
	from := c.state
	c.state, c.err = to, err
	if c.observer != nil {
		c.observer(connection.Change{From: from, To: to, Err: err})
	}
}

func TestSurface(t *testing.T) {
	bar := &hosttest.StatusBar{}
	client := &fakeClient{state: connection.StateChecked}

	s := Attach(bar, client)
	if bar.Last() != "$(sync~spin) Puppet: Initializing" {
		t.Errorf("unexpected initial status %q", bar.Last())
	}

	client.move(connection.StateStarting, nil)
	client.move(connection.StateRunning, nil)
	if bar.Last() != "$(check) Puppet" {
		t.Errorf("expected running status, got %q", bar.Last())
	}

	client.move(connection.StateFailed, errors.New("crashed"))
	if bar.Last() != "$(alert) Puppet: Error" {
		t.Errorf("expected error status, got %q", bar.Last())
	}
	if !strings.Contains(s.Menu("stdio"), "Last error: crashed") {
		t.Errorf("expected last error in menu, got %q", s.Menu("stdio"))
	}

	if err := s.Dispose(); err != nil {
		t.Fatalf("Dispose() error = %v", err)
	}
	n := len(bar.History())
	client.move(connection.StateRunning, nil)
	if len(bar.History()) != n {
		t.Error("expected no updates after Dispose")
	}
}

// idleConn is a connection.Conn that stays open until closed.
type idleConn struct {
	once sync.Once
	done chan struct{}
}

func (c *idleConn) Call(context.Context, string, any, any) error { return nil }
func (c *idleConn) Notify(context.Context, string, any) error    { return nil }
func (c *idleConn) Done() <-chan struct{}                        { return c.done }
func (c *idleConn) Err() error                                   { return nil }
func (c *idleConn) Close(context.Context) error {
	c.once.Do(func() { close(c.done) })
	return nil
}

func TestSurface_SlowObserverBeforeStop(t *testing.T) {
	ctx := context.Background()
	o := connection.New(connection.ConnectorFunc(func(context.Context) (connection.Conn, error) {
		return &idleConn{done: make(chan struct{})}, nil
	}))
	t.Cleanup(func() { _ = o.Dispose(ctx) })

	// Subscribed ahead of the surface, so it delays every later observer.
	o.Subscribe(func(c connection.Change) {
		if c.To == connection.StateRunning {
			time.Sleep(50 * time.Millisecond)
		}
	})
	bar := &hosttest.StatusBar{}
	s := Attach(bar, o)
	defer s.Dispose()

	_, err := o.Check(ctx, func(context.Context) (bool, error) { return true, nil })
	require.NoError(t, err)
	require.NoError(t, o.Start(ctx))
	require.Eventually(t, func() bool { return o.State() == connection.StateRunning },
		2*time.Second, 5*time.Millisecond)
	require.NoError(t, o.Stop(ctx))

	require.Equal(t, connection.StateStopped, o.State())
	if got, want := bar.Last(), For(connection.StateStopped, nil).Label; got != want {
		t.Errorf("status = %q, expected %q", got, want)
	}
}

func TestMenuText(t *testing.T) {
	got := MenuText(connection.StateRunning, nil, "tcp")
	want := "Puppet language server: running\nProtocol: tcp\n"
	if got != want {
		t.Errorf("MenuText() = %q, expected %q", got, want)
	}
}
