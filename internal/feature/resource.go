package feature

import (
	"context"
	"strings"

	"github.com/dshills/puppetext/internal/connection"
	"github.com/dshills/puppetext/internal/host"
)

// CommandPuppetResource shows the manifest of a resource type.
const CommandPuppetResource = "extension.puppetResource"

// GetResourceResult is the reply to puppet/getResource.
type GetResourceResult struct {
	Data  string `json:"data"`
	Error string `json:"error,omitempty"`
}

type resource struct {
	*commandSet
	client connection.Client
	window host.Window
	report reporter
}

func newResource(deps Deps) (Feature, error) {
	f := &resource{
		commandSet: newCommandSet(NameResource, deps),
		client:     deps.Client,
		window:     deps.Window,
		report: reporter{
			mode:      deps.Settings.Notification.PuppetResource,
			window:    deps.Window,
			statusBar: deps.StatusBar,
			logger:    deps.Logger,
		},
	}
	if err := f.register(CommandPuppetResource, f.lookup); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *resource) lookup(ctx context.Context, args ...any) (any, error) {
	if err := requireRunning(f.client); err != nil {
		return nil, err
	}
	typeName := stringArg(args, 0)
	if typeName == "" {
		var err error
		typeName, err = f.window.InputBox(ctx, "Enter a Puppet resource to interrogate")
		if err != nil {
			return nil, err
		}
	}
	typeName = strings.TrimSpace(typeName)
	if typeName == "" {
		return nil, nil
	}

	var result GetResourceResult
	if err := f.client.Request(ctx, "puppet/getResource", map[string]string{"typename": typeName}, &result); err != nil {
		return nil, err
	}
	switch {
	case result.Error != "":
		f.report.showError(ctx, "Error while running puppet resource: "+result.Error)
	case result.Data == "":
		f.report.showInfo(ctx, "No resources found for "+typeName)
	default:
		if err := f.window.ShowDocument(ctx, "puppet resource "+typeName, result.Data); err != nil {
			return nil, err
		}
	}
	return &result, nil
}
