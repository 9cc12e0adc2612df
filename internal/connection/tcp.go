package connection

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"regexp"
	"strconv"
	"time"

	"github.com/flowchartsman/retry"

	"github.com/dshills/puppetext/internal/logging"
)

// Dial defaults.
const (
	DefaultDialAttempts = 10
	DefaultDialDelay    = 100 * time.Millisecond
	DefaultDialMaxDelay = 2 * time.Second
)

// runningPattern matches the line a server started without a port prints
// once it is listening.
var runningPattern = regexp.MustCompile(`LANGUAGE SERVER RUNNING\s+(\S+):(\d+)`)

// TCPConnector reaches the language server over TCP. For a local address
// it starts the server first; remote servers are only dialed.
type TCPConnector struct {
	Launch Launch
	Logger *logging.Logger

	Attempts int
	Delay    time.Duration
	MaxDelay time.Duration
}

// Connect starts the server when needed, dials it and completes the
// initialize handshake.
func (c *TCPConnector) Connect(ctx context.Context) (Conn, error) {
	logger := c.Logger.WithField("protocol", "tcp")
	tcp := c.Launch.Settings.EditorService.TCP
	host, port := tcp.Address, tcp.Port
	if host == "" {
		host = "127.0.0.1"
	}

	var proc *process
	if isLocal(host) {
		args := []string{"--ip=" + host}
		if port > 0 {
			args = append(args, "--port="+strconv.Itoa(port))
		}
		var err error
		proc, err = startProcess(c.Launch.spec(args...), logger)
		if err != nil {
			return nil, &ConnectError{Protocol: "tcp", Err: err}
		}
		announced := watchStdout(proc, logger)
		if port == 0 {
			host, port, err = awaitAddress(ctx, proc, announced)
			if err != nil {
				proc.stop(canceledContext())
				return nil, &ConnectError{Protocol: "tcp", Err: err}
			}
		}
	} else if port == 0 {
		return nil, &ConnectError{Protocol: "tcp", Err: ErrNoServerAddress}
	}

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	nc, err := c.dial(ctx, addr)
	if err != nil {
		if proc != nil {
			proc.stop(canceledContext())
		}
		return nil, &ConnectError{Protocol: "tcp", Err: fmt.Errorf("dial %s: %w", addr, err)}
	}
	logger.Debug("connected to %s", addr)

	conn := newRPCConn(NewTransport(nc, nc, nc), proc, logger)
	if err := conn.initialize(ctx, c.Launch.Version); err != nil {
		conn.abort()
		return nil, &ConnectError{Protocol: "tcp", Err: err}
	}
	return conn, nil
}

func (c *TCPConnector) dial(ctx context.Context, addr string) (net.Conn, error) {
	attempts, delay, maxDelay := c.Attempts, c.Delay, c.MaxDelay
	if attempts <= 0 {
		attempts = DefaultDialAttempts
	}
	if delay <= 0 {
		delay = DefaultDialDelay
	}
	if maxDelay <= 0 {
		maxDelay = DefaultDialMaxDelay
	}

	var nc net.Conn
	retrier := retry.NewRetrier(attempts, delay, maxDelay)
	err := retrier.RunContext(ctx, func(ctx context.Context) error {
		var d net.Dialer
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			return err
		}
		nc = conn
		return nil
	})
	if err != nil {
		return nil, err
	}
	return nc, nil
}

func isLocal(host string) bool {
	switch host {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}

// watchStdout logs the server's standard output and forwards the address
// announcement, if any.
func watchStdout(proc *process, logger *logging.Logger) <-chan string {
	announced := make(chan string, 1)
	go func() {
		scanner := bufio.NewScanner(proc.stdout)
		for scanner.Scan() {
			line := scanner.Text()
			logger.Debug("server: %s", line)
			if runningPattern.MatchString(line) {
				select {
				case announced <- line:
				default:
				}
			}
		}
	}()
	return announced
}

func awaitAddress(ctx context.Context, proc *process, announced <-chan string) (string, int, error) {
	select {
	case <-ctx.Done():
		return "", 0, ctx.Err()
	case <-proc.exited:
		return "", 0, fmt.Errorf("%w: exited before listening: %v", ErrServerCrashed, proc.waitErr)
	case line := <-announced:
		m := runningPattern.FindStringSubmatch(line)
		port, err := strconv.Atoi(m[2])
		if err != nil {
			return "", 0, fmt.Errorf("parse server address %q: %w", line, err)
		}
		return m[1], port, nil
	}
}

func canceledContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}
