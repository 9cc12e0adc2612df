package connection

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/dshills/puppetext/internal/logging"
	"github.com/dshills/puppetext/internal/telemetry"
)

// DefaultStartTimeout bounds one connection attempt.
const DefaultStartTimeout = 2 * time.Minute

// CheckFunc is the pre-flight check. It reports whether the toolchain is
// present.
type CheckFunc func(ctx context.Context) (bool, error)

// Orchestrator owns the connection and its lifecycle.
type Orchestrator struct {
	connector    Connector
	logger       *logging.Logger
	metrics      *telemetry.Metrics
	startTimeout time.Duration

	// opMu serializes Check, Start, Stop, Restart and Dispose.
	opMu sync.Mutex

	// mu guards the fields below. state is also readable without it.
	mu          sync.Mutex
	state       atomic.Int32
	conn        Conn
	lastErr     error
	cancelStart context.CancelFunc
	startDone   chan struct{}
	seq         uint64

	disposed    atomic.Bool
	connections atomic.Int64
	observers   *observers
	quit        chan struct{}
	wg          sync.WaitGroup
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithMetrics sets the telemetry sink.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithStartTimeout bounds each connection attempt.
func WithStartTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.startTimeout = d
		}
	}
}

// New creates an orchestrator in the Uninitialized state.
func New(connector Connector, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		connector:    connector,
		logger:       logging.Null(),
		startTimeout: DefaultStartTimeout,
		observers:    newObservers(),
		quit:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.WithComponent("connection")
	return o
}

// State returns the current state.
func (o *Orchestrator) State() State {
	return State(o.state.Load())
}

// LastError returns the error behind the most recent failure.
func (o *Orchestrator) LastError() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastErr
}

// Connections returns how many connection attempts have been made.
func (o *Orchestrator) Connections() int {
	return int(o.connections.Load())
}

// Subscribe registers fn for state changes and returns a function that
// removes it. Observers run synchronously, see changes in transition order,
// and must not call Start, Stop, Restart or Dispose.
func (o *Orchestrator) Subscribe(fn Observer) func() {
	if o.disposed.Load() {
		return func() {}
	}
	return o.observers.subscribe(fn)
}

// transition moves to state to. It must be called with mu held and returns
// the change to publish once mu is released.
func (o *Orchestrator) transition(to State, err error) Change {
	from := State(o.state.Swap(int32(to)))
	if err != nil {
		o.lastErr = err
	}
	o.metrics.Transition(from.String(), to.String())
	if err != nil {
		o.logger.Warn("connection %s -> %s: %v", from, to, err)
	} else {
		o.logger.Debug("connection %s -> %s", from, to)
	}
	o.seq++
	return Change{From: from, To: to, Err: err, seq: o.seq}
}

func (o *Orchestrator) setState(to State, err error) {
	o.mu.Lock()
	change := o.transition(to, err)
	o.mu.Unlock()
	o.observers.notify(change)
}

// Check runs the pre-flight check. It may only run once. A false result or
// an error leaves the orchestrator Unavailable, from which it never starts.
func (o *Orchestrator) Check(ctx context.Context, check CheckFunc) (State, error) {
	o.opMu.Lock()
	defer o.opMu.Unlock()

	if o.disposed.Load() {
		return o.State(), ErrAlreadyDisposed
	}
	if o.State() != StateUninitialized {
		return o.State(), ErrAlreadyChecked
	}

	ok, err := check(ctx)
	switch {
	case err != nil:
		o.setState(StateUnavailable, fmt.Errorf("pre-flight check: %w", err))
		return StateUnavailable, err
	case !ok:
		o.setState(StateUnavailable, nil)
		return StateUnavailable, nil
	default:
		o.setState(StateChecked, nil)
		return StateChecked, nil
	}
}

// Start begins connecting in the background and returns without waiting
// for the server. The outcome is observed as a transition to Running or
// Failed. Start is a no-op while Starting or Running.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.opMu.Lock()
	defer o.opMu.Unlock()

	if o.disposed.Load() {
		return ErrAlreadyDisposed
	}
	return o.startLocked(ctx)
}

func (o *Orchestrator) startLocked(ctx context.Context) error {
	o.mu.Lock()
	state := o.State()
	switch {
	case state == StateStarting || state == StateRunning:
		o.mu.Unlock()
		return nil
	case state == StateUninitialized:
		o.mu.Unlock()
		return ErrNotChecked
	case state == StateUnavailable:
		o.mu.Unlock()
		return ErrUnavailable
	case !state.canStart():
		o.mu.Unlock()
		return fmt.Errorf("cannot start from state %s", state)
	}

	// The attempt outlives the caller's context but keeps its values.
	attemptCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.startTimeout)
	done := make(chan struct{})
	o.cancelStart = cancel
	o.startDone = done
	o.lastErr = nil
	change := o.transition(StateStarting, nil)
	o.wg.Add(1)
	o.mu.Unlock()

	o.observers.notify(change)
	go o.connect(attemptCtx, cancel, done)
	return nil
}

func (o *Orchestrator) connect(ctx context.Context, cancel context.CancelFunc, done chan struct{}) {
	defer o.wg.Done()
	defer close(done)
	defer cancel()

	o.connections.Inc()
	conn, err := o.connector.Connect(ctx)

	o.mu.Lock()
	if o.startDone != done || o.State() != StateStarting {
		// Stopped or disposed while connecting.
		o.mu.Unlock()
		o.metrics.ConnectAttempt("cancelled")
		if conn != nil {
			_ = conn.Close(canceledContext())
		}
		return
	}
	o.cancelStart = nil
	o.startDone = nil

	if err != nil {
		o.metrics.ConnectAttempt("error")
		change := o.transition(StateFailed, err)
		o.mu.Unlock()
		o.observers.notify(change)
		return
	}

	o.metrics.ConnectAttempt("ok")
	o.conn = conn
	change := o.transition(StateRunning, nil)
	o.wg.Add(1)
	o.mu.Unlock()

	o.observers.notify(change)
	go o.monitor(conn)
}

// monitor moves a running connection to Failed when it ends unexpectedly.
func (o *Orchestrator) monitor(conn Conn) {
	defer o.wg.Done()

	select {
	case <-o.quit:
		return
	case <-conn.Done():
	}

	o.mu.Lock()
	if o.conn != conn {
		// Stop took the connection.
		o.mu.Unlock()
		return
	}
	o.conn = nil
	err := conn.Err()
	if err == nil {
		err = ErrConnectionLost
	}
	change := o.transition(StateFailed, err)
	o.mu.Unlock()

	o.observers.notify(change)
	_ = conn.Close(canceledContext())
}

// Stop closes the connection. A pending attempt is cancelled and anything it
// acquired is released. Stop is a no-op unless Starting or Running.
func (o *Orchestrator) Stop(ctx context.Context) error {
	o.opMu.Lock()
	defer o.opMu.Unlock()

	if o.disposed.Load() {
		return ErrAlreadyDisposed
	}
	return o.stopLocked(ctx)
}

func (o *Orchestrator) stopLocked(ctx context.Context) error {
	o.mu.Lock()
	switch o.State() {
	case StateStarting:
		cancel, done := o.cancelStart, o.startDone
		change := o.transition(StateStopping, nil)
		o.mu.Unlock()
		o.observers.notify(change)

		cancel()
		var err error
		select {
		case <-done:
		case <-ctx.Done():
			err = fmt.Errorf("waiting for pending connection: %w", ctx.Err())
		}

		o.mu.Lock()
		o.cancelStart = nil
		o.startDone = nil
		o.mu.Unlock()
		o.setState(StateStopped, nil)
		return err

	case StateRunning:
		conn := o.conn
		o.conn = nil
		change := o.transition(StateStopping, nil)
		o.mu.Unlock()
		o.observers.notify(change)

		err := conn.Close(ctx)
		o.setState(StateStopped, nil)
		if err != nil {
			return fmt.Errorf("close connection: %w", err)
		}
		return nil

	default:
		o.mu.Unlock()
		return nil
	}
}

// Restart stops the connection and starts a new one.
func (o *Orchestrator) Restart(ctx context.Context) error {
	o.opMu.Lock()
	defer o.opMu.Unlock()

	if o.disposed.Load() {
		return ErrAlreadyDisposed
	}
	if err := o.stopLocked(ctx); err != nil {
		o.logger.Warn("restart: %v", err)
	}
	return o.startLocked(ctx)
}

// Dispose stops the connection and releases everything. It is terminal:
// a second call, and any later lifecycle call, fails with
// ErrAlreadyDisposed.
func (o *Orchestrator) Dispose(ctx context.Context) error {
	o.opMu.Lock()
	defer o.opMu.Unlock()

	if o.disposed.Swap(true) {
		return ErrAlreadyDisposed
	}

	err := o.stopLocked(ctx)
	close(o.quit)
	o.wg.Wait()
	o.observers.clear()
	o.logger.Debug("connection disposed")
	return err
}

// Disposed reports whether Dispose has been called.
func (o *Orchestrator) Disposed() bool {
	return o.disposed.Load()
}

// Request sends a request over the running connection.
func (o *Orchestrator) Request(ctx context.Context, method string, params, result any) error {
	conn, err := o.running()
	if err != nil {
		return err
	}
	return conn.Call(ctx, method, params, result)
}

// Notify sends a notification over the running connection.
func (o *Orchestrator) Notify(ctx context.Context, method string, params any) error {
	conn, err := o.running()
	if err != nil {
		return err
	}
	return conn.Notify(ctx, method, params)
}

func (o *Orchestrator) running() (Conn, error) {
	if o.disposed.Load() {
		return nil, ErrAlreadyDisposed
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.State() != StateRunning || o.conn == nil {
		return nil, ErrNotRunning
	}
	return o.conn, nil
}

// Client returns the read-only capability handed to features.
func (o *Orchestrator) Client() Client {
	return client{o: o}
}
