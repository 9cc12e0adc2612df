package connection

import (
	"errors"
	"fmt"
)

// Standard errors returned by the orchestrator and connections.
var (
	// ErrNotChecked indicates Start was called before the pre-flight check.
	ErrNotChecked = errors.New("connection not checked")

	// ErrAlreadyChecked indicates the pre-flight check already ran.
	ErrAlreadyChecked = errors.New("connection already checked")

	// ErrUnavailable indicates the pre-flight check failed.
	ErrUnavailable = errors.New("language server unavailable")

	// ErrAlreadyDisposed indicates the orchestrator was disposed.
	ErrAlreadyDisposed = errors.New("connection already disposed")

	// ErrNotRunning indicates a request was made without a running connection.
	ErrNotRunning = errors.New("connection not running")

	// ErrShutdown indicates the connection has been closed.
	ErrShutdown = errors.New("connection shut down")

	// ErrConnectionLost indicates the server stopped answering.
	ErrConnectionLost = errors.New("connection lost")

	// ErrServerCrashed indicates the server process terminated unexpectedly.
	ErrServerCrashed = errors.New("server crashed")

	// ErrNoServerAddress indicates a TCP connection without a port.
	ErrNoServerAddress = errors.New("no server address")
)

// RPCError represents a JSON-RPC error from the server.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *RPCError) Error() string {
	if e.Data != nil {
		return fmt.Sprintf("rpc error %d: %s (data: %v)", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// JSON-RPC error codes used by the transport.
const (
	CodeMethodNotFound = -32601
	CodeInternalError  = -32603
)

// ConnectError wraps a failure to establish a connection.
type ConnectError struct {
	Protocol string
	Err      error
}

// Error implements the error interface.
func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect %s: %v", e.Protocol, e.Err)
}

// Unwrap returns the underlying error.
func (e *ConnectError) Unwrap() error {
	return e.Err
}
