// Package feature implements the editor features built on top of the
// connection, and the registry that owns them.
//
// The feature set is closed: debug-config, format, node-graph, pdk and
// resource. Features never depend on each other, so the order in which
// they are built or disposed carries no meaning.
package feature

import (
	"errors"

	"github.com/dshills/puppetext/internal/connection"
	"github.com/dshills/puppetext/internal/host"
	"github.com/dshills/puppetext/internal/logging"
	"github.com/dshills/puppetext/internal/settings"
	"github.com/dshills/puppetext/internal/telemetry"
)

// Feature names.
const (
	NameDebugConfig = "debug-config"
	NameFormat      = "format"
	NameNodeGraph   = "node-graph"
	NamePDK         = "pdk"
	NameResource    = "resource"
)

var (
	// ErrAlreadyBuilt indicates Build was called twice.
	ErrAlreadyBuilt = errors.New("features already built")

	// ErrNotRunning indicates a backend feature was used without a running
	// connection.
	ErrNotRunning = connection.ErrNotRunning
)

// Feature is an independently disposable unit of editor functionality.
type Feature interface {
	Name() string
	Dispose() error
}

// Deps is what every feature is constructed with.
type Deps struct {
	// Client is nil-safe only for connection-independent features.
	Client    connection.Client
	Settings  settings.Snapshot
	Commands  host.Commands
	Window    host.Window
	StatusBar host.StatusBar
	Terminal  host.Terminal
	Logger    *logging.Logger
	Metrics   *telemetry.Metrics
}

// Constructor builds one feature.
type Constructor struct {
	Name string
	// Backend reports whether the feature needs a running connection.
	Backend bool
	New     func(deps Deps) (Feature, error)
}

// Catalog is the fixed feature set, in construction order.
var Catalog = []Constructor{
	{Name: NameDebugConfig, Backend: false, New: newDebugConfig},
	{Name: NameFormat, Backend: true, New: newFormat},
	{Name: NameNodeGraph, Backend: true, New: newNodeGraph},
	{Name: NamePDK, Backend: false, New: newPDK},
	{Name: NameResource, Backend: true, New: newResource},
}
