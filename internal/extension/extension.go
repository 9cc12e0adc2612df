// Package extension owns one activation of the Puppet extension: it gates
// on the toolchain, owns the connection orchestrator and the feature set,
// and tears everything down in order.
package extension

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/puppetext/internal/connection"
	"github.com/dshills/puppetext/internal/feature"
	"github.com/dshills/puppetext/internal/host"
	"github.com/dshills/puppetext/internal/logging"
	"github.com/dshills/puppetext/internal/notice"
	"github.com/dshills/puppetext/internal/settings"
	"github.com/dshills/puppetext/internal/status"
	"github.com/dshills/puppetext/internal/telemetry"
	"github.com/dshills/puppetext/internal/toolchain"
)

// Activation outcomes recorded in metrics.
const (
	OutcomeStarted     = "started"
	OutcomeUnavailable = "unavailable"
	OutcomeDisabled    = "disabled"
	OutcomeRepeated    = "repeated"
	OutcomeFailed      = "failed"
)

// Extension is the lifecycle owner. Every field that lives for one
// activation is reset by Deactivate.
type Extension struct {
	host         host.Host
	version      string
	workDir      string
	logger       *logging.Logger
	metrics      *telemetry.Metrics
	locator      *toolchain.Locator
	connector    connection.Connector
	constructors []feature.Constructor
	legacyNames  []string
	startTimeout time.Duration

	mu                 sync.Mutex
	active             bool
	session            string
	snapshot           settings.Snapshot
	paths              toolchain.Paths
	degraded           bool
	unavailable        bool
	orchestrator       *connection.Orchestrator
	registry           *feature.Registry
	surface            *status.Surface
	commands           []host.Disposable
	commandsRegistered bool
	notices            *errgroup.Group
	cancelNotices      context.CancelFunc
}

// Option configures an Extension.
type Option func(*Extension)

// WithVersion sets the extension version used for the update notice and
// the initialize handshake.
func WithVersion(v string) Option {
	return func(e *Extension) { e.version = v }
}

// WithWorkDir sets the language server working directory.
func WithWorkDir(dir string) Option {
	return func(e *Extension) { e.workDir = dir }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(e *Extension) { e.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(e *Extension) { e.metrics = m }
}

// WithLocator sets the toolchain locator.
func WithLocator(l *toolchain.Locator) Option {
	return func(e *Extension) { e.locator = l }
}

// WithConnector replaces the connector derived from settings.
func WithConnector(c connection.Connector) Option {
	return func(e *Extension) { e.connector = c }
}

// WithFeatures replaces the feature catalog.
func WithFeatures(c ...feature.Constructor) Option {
	return func(e *Extension) { e.constructors = c }
}

// WithLegacyNames replaces the list of deprecated setting names.
func WithLegacyNames(names ...string) Option {
	return func(e *Extension) { e.legacyNames = names }
}

// WithStartTimeout bounds each connection attempt.
func WithStartTimeout(d time.Duration) Option {
	return func(e *Extension) { e.startTimeout = d }
}

// New creates an inactive extension bound to h.
func New(h host.Host, opts ...Option) (*Extension, error) {
	if err := h.Validate(); err != nil {
		return nil, err
	}
	e := &Extension{
		host:         h,
		version:      "0.0.0",
		logger:       logging.Null(),
		constructors: feature.Catalog,
		legacyNames:  settings.DefaultLegacyNames,
		startTimeout: connection.DefaultStartTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.locator == nil {
		e.locator = toolchain.NewLocator()
	}
	return e, nil
}

// Activate runs the activation chain. A failed toolchain gate or a
// disabled editor service leaves the extension active in degraded mode and
// is not an error. Calling Activate again before Deactivate does nothing.
func (e *Extension) Activate(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.active {
		e.metrics.Activation(OutcomeRepeated)
		return nil
	}
	e.active = true
	e.session = uuid.NewString()
	logger := e.logger.WithField("session", e.session)

	noticeCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	e.cancelNotices = cancel
	e.notices = new(errgroup.Group)
	sink := notice.NewSink(e.host.GlobalState, e.host.Window, e.host.Opener,
		notice.WithLogger(logger), notice.WithMetrics(e.metrics))

	e.notices.Go(func() error {
		_, err := sink.VersionNotice(noticeCtx, e.version)
		return NewComponentError("notice", "version", err)
	})

	resolver := settings.NewResolver(e.host.Config, settings.WithLegacyNames(e.legacyNames...))
	snap, legacy := resolver.Resolve()
	e.snapshot = snap
	e.logger.SetLevel(logging.ParseLevel(snap.EditorService.LogLevel))

	if len(legacy) > 0 {
		logger.Warn("deprecated settings in use: %v", settings.Names(legacy))
		e.notices.Go(func() error {
			return NewComponentError("notice", "legacy settings", sink.LegacyWarning(noticeCtx, legacy))
		})
	}

	e.paths = e.locator.Locate(snap)
	paths := e.paths
	found, err := e.locator.Exists(ctx, paths)
	if !found || err != nil {
		if err != nil {
			logger.Error("checking Puppet installation at %s: %v", paths.BaseDir, err)
			err = fmt.Errorf("pre-flight check: %w", err)
		} else {
			logger.Error("Could not find a valid Puppet installation at %s", paths.BaseDir)
		}
		e.notices.Go(func() error {
			return NewComponentError("notice", "missing toolchain", sink.MissingToolchain(noticeCtx, paths.BaseDir))
		})
		e.degraded = true
		e.unavailable = true
		status.Show(e.host.StatusBar, connection.StateUnavailable, err)
		e.buildFeatures(logger, nil)
		e.metrics.Activation(OutcomeUnavailable)
		return nil
	}
	logger.Debug("Found a valid Puppet installation at %s", paths.PuppetDir)

	e.orchestrator = connection.New(e.connectorFor(snap, logger),
		connection.WithLogger(logger),
		connection.WithMetrics(e.metrics),
		connection.WithStartTimeout(e.startTimeout))
	e.surface = status.Attach(e.host.StatusBar, e.orchestrator.Client())
	if _, err := e.orchestrator.Check(ctx, toolchainFound); err != nil {
		e.metrics.Activation(OutcomeFailed)
		return NewComponentError("connection", "check", err)
	}

	if !snap.EditorService.Enable {
		logger.Info("editor service is disabled")
		e.degraded = true
		e.buildFeatures(logger, nil)
		e.metrics.Activation(OutcomeDisabled)
		return nil
	}

	client := e.orchestrator.Client()
	e.buildFeatures(logger, client)

	if !e.commandsRegistered {
		logger.Debug("Configuring commands")
		if err := e.registerCommands(); err != nil {
			e.metrics.Activation(OutcomeFailed)
			return NewComponentError("commands", "register", err)
		}
		e.commandsRegistered = true
	}

	if err := e.orchestrator.Start(ctx); err != nil {
		e.metrics.Activation(OutcomeFailed)
		return NewComponentError("connection", "start", err)
	}
	e.metrics.Activation(OutcomeStarted)
	return nil
}

// toolchainFound is the orchestrator check once the gate has passed.
func toolchainFound(context.Context) (bool, error) { return true, nil }

// buildFeatures constructs the feature set. Without a client only the
// connection-independent features are built.
func (e *Extension) buildFeatures(logger *logging.Logger, client connection.Client) {
	constructors := e.constructors
	if client == nil {
		constructors = nil
		for _, c := range e.constructors {
			if !c.Backend {
				constructors = append(constructors, c)
			}
		}
	}
	e.registry = feature.NewRegistry(
		feature.WithConstructors(constructors...),
		feature.WithRegistryLogger(logger),
		feature.WithRegistryMetrics(e.metrics))
	err := e.registry.Build(feature.Deps{
		Client:    client,
		Settings:  e.snapshot,
		Commands:  e.host.Commands,
		Window:    e.host.Window,
		StatusBar: e.host.StatusBar,
		Terminal:  e.host.Terminal,
		Logger:    logger,
		Metrics:   e.metrics,
	})
	if err != nil {
		logger.Error("building features: %v", err)
	}
}

func (e *Extension) connectorFor(snap settings.Snapshot, logger *logging.Logger) connection.Connector {
	if e.connector != nil {
		return e.connector
	}
	launch := connection.Launch{
		Paths:    e.paths,
		Settings: snap,
		Version:  e.version,
		Dir:      e.workDir,
	}
	if snap.EditorService.Protocol == settings.ProtocolTCP {
		return &connection.TCPConnector{Launch: launch, Logger: logger}
	}
	return &connection.StdioConnector{Launch: launch, Logger: logger}
}

// Deactivate disposes the features, stops and disposes the connection,
// releases the commands and waits for outstanding notices. Every step runs
// and their errors are combined.
func (e *Extension) Deactivate(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.active {
		return nil
	}

	var errs error
	if e.registry != nil {
		errs = multierr.Append(errs, NewComponentError("features", "dispose", e.registry.DisposeAll()))
	}
	if e.orchestrator != nil {
		errs = multierr.Append(errs, NewComponentError("connection", "stop", e.orchestrator.Stop(ctx)))
		errs = multierr.Append(errs, NewComponentError("connection", "dispose", e.orchestrator.Dispose(ctx)))
	}
	if e.surface != nil {
		errs = multierr.Append(errs, e.surface.Dispose())
	}
	for _, d := range e.commands {
		errs = multierr.Append(errs, NewComponentError("commands", "dispose", d.Dispose()))
	}

	e.cancelNotices()
	if err := e.notices.Wait(); err != nil {
		e.logger.Debug("notice ended with error: %v", err)
	}

	e.active = false
	e.degraded = false
	e.unavailable = false
	e.registry = nil
	e.orchestrator = nil
	e.surface = nil
	e.commands = nil
	e.commandsRegistered = false
	return errs
}

// WaitNotices blocks until every notice issued by the current activation
// has been resolved.
func (e *Extension) WaitNotices() error {
	e.mu.Lock()
	g := e.notices
	e.mu.Unlock()
	if g == nil {
		return nil
	}
	return g.Wait()
}

// Active reports whether Activate has run without a matching Deactivate.
func (e *Extension) Active() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// Degraded reports whether the extension runs without a connection.
func (e *Extension) Degraded() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.degraded
}

// Session returns the id of the current activation.
func (e *Extension) Session() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session
}

// Settings returns the snapshot resolved by the current activation.
func (e *Extension) Settings() settings.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshot
}

// Features lists the features built by the current activation.
func (e *Extension) Features() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.registry == nil {
		return nil
	}
	return e.registry.Names()
}

// Client returns the connection capability of the current activation. There
// is none when the toolchain gate failed.
func (e *Extension) Client() (connection.Client, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.orchestrator == nil {
		return nil, ErrNotActive
	}
	return e.orchestrator.Client(), nil
}

// State returns the connection state. It is Unavailable when the toolchain
// gate failed and Uninitialized when inactive.
func (e *Extension) State() connection.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stateLocked()
}

func (e *Extension) stateLocked() connection.State {
	switch {
	case e.orchestrator != nil:
		return e.orchestrator.State()
	case e.unavailable:
		return connection.StateUnavailable
	default:
		return connection.StateUninitialized
	}
}

// Health describes the extension for the health endpoint.
func (e *Extension) Health() map[string]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	h := map[string]string{
		"active":   fmt.Sprint(e.active),
		"degraded": fmt.Sprint(e.degraded),
	}
	if e.orchestrator != nil || e.unavailable {
		h["connection"] = e.stateLocked().String()
	}
	if e.session != "" {
		h["session"] = e.session
	}
	return h
}
