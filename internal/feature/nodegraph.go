package feature

import (
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/dshills/puppetext/internal/connection"
	"github.com/dshills/puppetext/internal/host"
)

// CommandShowNodeGraph compiles and shows the node graph of a manifest.
const CommandShowNodeGraph = "extension.puppetShowNodeGraphToSide"

// CompileNodeGraphResult is the reply to puppet/compileNodeGraph.
type CompileNodeGraphResult struct {
	DotContent string `json:"dotContent"`
	Error      string `json:"error,omitempty"`
}

type nodeGraph struct {
	*commandSet
	client connection.Client
	window host.Window
	report reporter
}

func newNodeGraph(deps Deps) (Feature, error) {
	f := &nodeGraph{
		commandSet: newCommandSet(NameNodeGraph, deps),
		client:     deps.Client,
		window:     deps.Window,
		report: reporter{
			mode:      deps.Settings.Notification.NodeGraph,
			window:    deps.Window,
			statusBar: deps.StatusBar,
			logger:    deps.Logger,
		},
	}
	if err := f.register(CommandShowNodeGraph, f.show); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *nodeGraph) show(ctx context.Context, args ...any) (any, error) {
	uri := stringArg(args, 0)
	if uri == "" {
		return nil, errors.New("node graph: document uri required")
	}
	if err := requireRunning(f.client); err != nil {
		return nil, err
	}

	var result CompileNodeGraphResult
	if err := f.client.Request(ctx, "puppet/compileNodeGraph", map[string]string{"external": uri}, &result); err != nil {
		return nil, err
	}
	if result.Error != "" {
		f.report.showError(ctx, "Error while compiling the node graph: "+result.Error)
		return &result, nil
	}

	title := fmt.Sprintf("Node Graph '%s'", path.Base(uri))
	if err := f.window.ShowDocument(ctx, title, result.DotContent); err != nil {
		return nil, err
	}
	return &result, nil
}
