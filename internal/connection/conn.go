package connection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/dshills/puppetext/internal/logging"
)

// Conn is an established link to the language server.
type Conn interface {
	// Call sends a request and decodes the response into result.
	Call(ctx context.Context, method string, params, result any) error
	// Notify sends a notification.
	Notify(ctx context.Context, method string, params any) error
	// Done is closed when the connection ends for any reason.
	Done() <-chan struct{}
	// Err reports why the connection ended, or nil while it is open.
	Err() error
	// Close shuts the server down and releases every resource.
	Close(ctx context.Context) error
}

// Connector establishes connections. Connect must honour ctx cancellation
// and release anything it started when it fails.
type Connector interface {
	Connect(ctx context.Context) (Conn, error)
}

// ConnectorFunc adapts a function to Connector.
type ConnectorFunc func(ctx context.Context) (Conn, error)

// Connect calls f.
func (f ConnectorFunc) Connect(ctx context.Context) (Conn, error) {
	return f(ctx)
}

// ClientName is reported to the server during initialize.
const ClientName = "puppetext"

// shutdownTimeout bounds the graceful shutdown request.
const shutdownTimeout = 5 * time.Second

type initializeParams struct {
	ProcessID    int            `json:"processId"`
	ClientInfo   clientInfo     `json:"clientInfo"`
	RootURI      *string        `json:"rootUri"`
	Capabilities map[string]any `json:"capabilities"`
}

type clientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// ServerInfo is what the server reported about itself.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

type initializeResult struct {
	Capabilities json.RawMessage `json:"capabilities"`
	ServerInfo   *ServerInfo     `json:"serverInfo,omitempty"`
}

// rpcConn is a Conn over a Transport, optionally owning a server process.
type rpcConn struct {
	transport *Transport
	proc      *process
	logger    *logging.Logger

	closeOnce sync.Once
	closeErr  error
}

func newRPCConn(t *Transport, proc *process, logger *logging.Logger) *rpcConn {
	c := &rpcConn{transport: t, proc: proc, logger: logger}
	t.OnNotification("window/logMessage", c.logMessage)
	t.OnNotification("*", func(method string, _ json.RawMessage) {
		c.logger.Debug("unhandled notification %s", method)
	})
	t.Start()
	if proc != nil {
		go func() {
			select {
			case <-proc.exited:
				t.lost(fmt.Errorf("%w: %v", ErrServerCrashed, proc.waitErr))
			case <-t.Done():
			}
		}()
	}
	return c
}

func (c *rpcConn) logMessage(_ string, params json.RawMessage) {
	var msg struct {
		Type    int    `json:"type"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(params, &msg); err != nil {
		return
	}
	switch msg.Type {
	case 1:
		c.logger.Error("%s", msg.Message)
	case 2:
		c.logger.Warn("%s", msg.Message)
	case 3:
		c.logger.Info("%s", msg.Message)
	default:
		c.logger.Debug("%s", msg.Message)
	}
}

// initialize performs the LSP initialize handshake.
func (c *rpcConn) initialize(ctx context.Context, version string) error {
	params := initializeParams{
		ProcessID:    os.Getpid(),
		ClientInfo:   clientInfo{Name: ClientName, Version: version},
		Capabilities: map[string]any{},
	}

	var result initializeResult
	if err := c.transport.Call(ctx, "initialize", params, &result); err != nil {
		return fmt.Errorf("initialize request: %w", err)
	}
	if info := result.ServerInfo; info != nil {
		c.logger.Info("connected to %s %s", info.Name, info.Version)
	}

	if err := c.transport.Notify(ctx, "initialized", struct{}{}); err != nil {
		return fmt.Errorf("initialized notification: %w", err)
	}
	return nil
}

func (c *rpcConn) Call(ctx context.Context, method string, params, result any) error {
	return c.transport.Call(ctx, method, params, result)
}

func (c *rpcConn) Notify(ctx context.Context, method string, params any) error {
	return c.transport.Notify(ctx, method, params)
}

func (c *rpcConn) Done() <-chan struct{} {
	return c.transport.Done()
}

func (c *rpcConn) Err() error {
	return c.transport.Err()
}

// Close sends shutdown and exit when the server is still reachable, closes
// the transport and stops the process.
func (c *rpcConn) Close(ctx context.Context) error {
	c.closeOnce.Do(func() {
		c.transport.expectClose()
		if c.transport.Err() == nil {
			shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
			_ = c.transport.Call(shutdownCtx, "shutdown", nil, nil)
			_ = c.transport.Notify(shutdownCtx, "exit", nil)
			cancel()
		}
		err := c.transport.Close()
		if c.proc != nil {
			c.proc.stop(ctx)
		}
		if err != nil && !errors.Is(err, io.ErrClosedPipe) && !errors.Is(err, os.ErrClosed) {
			c.closeErr = err
		}
	})
	return c.closeErr
}

// abort tears the connection down without a graceful shutdown.
func (c *rpcConn) abort() {
	c.closeOnce.Do(func() {
		_ = c.transport.Close()
		if c.proc != nil {
			c.proc.stop(canceledContext())
		}
	})
}
