package connection

import (
	"context"

	"github.com/dshills/puppetext/internal/logging"
)

// StdioConnector runs the language server and talks to it over its
// standard input and output.
type StdioConnector struct {
	Launch Launch
	Logger *logging.Logger
}

// Connect starts the server and completes the initialize handshake.
func (c *StdioConnector) Connect(ctx context.Context) (Conn, error) {
	logger := c.Logger.WithField("protocol", "stdio")

	spec := c.Launch.spec("--stdio")
	return connectProcess(ctx, "stdio", spec, c.Launch.Version, logger)
}

func connectProcess(ctx context.Context, protocol string, spec ProcessSpec, version string, logger *logging.Logger) (Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, &ConnectError{Protocol: protocol, Err: err}
	}
	proc, err := startProcess(spec, logger)
	if err != nil {
		return nil, &ConnectError{Protocol: protocol, Err: err}
	}

	conn := newRPCConn(NewTransport(proc.stdout, proc.stdin, proc.stdout), proc, logger)
	if err := conn.initialize(ctx, version); err != nil {
		conn.abort()
		return nil, &ConnectError{Protocol: protocol, Err: err}
	}
	return conn, nil
}
