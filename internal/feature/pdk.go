package feature

import (
	"context"
	"strings"

	"github.com/dshills/puppetext/internal/host"
)

// PDK commands.
const (
	CommandPDKNewModule = "extension.pdkNewModule"
	CommandPDKNewClass  = "extension.pdkNewClass"
	CommandPDKValidate  = "extension.pdkValidate"
	CommandPDKTestUnit  = "extension.pdkTestUnit"
)

type pdk struct {
	*commandSet
	window   host.Window
	terminal host.Terminal
}

func newPDK(deps Deps) (Feature, error) {
	f := &pdk{
		commandSet: newCommandSet(NamePDK, deps),
		window:     deps.Window,
		terminal:   deps.Terminal,
	}
	commands := []struct {
		id string
		fn host.CommandFunc
	}{
		{CommandPDKNewModule, f.prompted("Enter a name for the new Puppet module", "pdk new module %s --skip-interview")},
		{CommandPDKNewClass, f.prompted("Enter a name for the new Puppet class", "pdk new class %s")},
		{CommandPDKValidate, f.run("pdk validate")},
		{CommandPDKTestUnit, f.run("pdk test unit")},
	}
	for _, c := range commands {
		if err := f.register(c.id, c.fn); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// run returns a command that runs line in the terminal. An optional first
// argument is the working directory.
func (f *pdk) run(line string) host.CommandFunc {
	return func(ctx context.Context, args ...any) (any, error) {
		return nil, f.terminal.Run(ctx, stringArg(args, 0), line)
	}
}

// prompted returns a command that asks for a name and substitutes it into
// line. A dismissed prompt runs nothing.
func (f *pdk) prompted(prompt, line string) host.CommandFunc {
	return func(ctx context.Context, args ...any) (any, error) {
		name, err := f.window.InputBox(ctx, prompt)
		if err != nil {
			return nil, err
		}
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, nil
		}
		return nil, f.terminal.Run(ctx, stringArg(args, 0), strings.Replace(line, "%s", name, 1))
	}
}
