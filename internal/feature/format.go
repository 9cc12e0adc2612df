package feature

import (
	"context"
	"errors"

	"github.com/dshills/puppetext/internal/connection"
)

// CommandFormatDocument fixes the lint errors of a document.
const CommandFormatDocument = "puppet.formatDocument"

// FixDiagnosticErrorsResult is the reply to puppet/fixDiagnosticErrors.
type FixDiagnosticErrorsResult struct {
	DocumentURI  string `json:"documentUri"`
	FixesApplied int    `json:"fixesApplied"`
	NewContent   string `json:"newContent,omitempty"`
}

type format struct {
	*commandSet
	client connection.Client
}

func newFormat(deps Deps) (Feature, error) {
	f := &format{
		commandSet: newCommandSet(NameFormat, deps),
		client:     deps.Client,
	}
	if !deps.Settings.Format.Enable {
		deps.Logger.Debug("document formatting disabled")
		return f, nil
	}
	if err := f.register(CommandFormatDocument, f.formatDocument); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *format) formatDocument(ctx context.Context, args ...any) (any, error) {
	uri := stringArg(args, 0)
	if uri == "" {
		return nil, errors.New("format: document uri required")
	}
	if err := requireRunning(f.client); err != nil {
		return nil, err
	}
	params := map[string]any{
		"documentUri":         uri,
		"alwaysReturnContent": true,
	}
	var result FixDiagnosticErrorsResult
	if err := f.client.Request(ctx, "puppet/fixDiagnosticErrors", params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func requireRunning(c connection.Client) error {
	if c == nil || c.State() != connection.StateRunning {
		return ErrNotRunning
	}
	return nil
}
