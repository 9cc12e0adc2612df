package feature

import (
	"context"

	"github.com/tidwall/sjson"
)

// CommandProvideDebugConfigurations returns the default launch configurations.
const CommandProvideDebugConfigurations = "puppet.provideDebugConfigurations"

type debugConfig struct {
	*commandSet
	environment string
}

func newDebugConfig(deps Deps) (Feature, error) {
	f := &debugConfig{
		commandSet:  newCommandSet(NameDebugConfig, deps),
		environment: deps.Settings.EditorService.Puppet.Environment,
	}
	if err := f.register(CommandProvideDebugConfigurations, f.provide); err != nil {
		return nil, err
	}
	return f, nil
}

// provide returns a JSON array with the default "puppet apply" launch
// configuration. An optional first argument sets the working directory.
func (f *debugConfig) provide(_ context.Context, args ...any) (any, error) {
	cwd := stringArg(args, 0)
	if cwd == "" {
		cwd = "${workspaceRoot}"
	}
	return DebugConfigurations(cwd, f.environment)
}

// DebugConfigurations builds the launch configuration list.
func DebugConfigurations(cwd, environment string) (string, error) {
	cfg := `{}`
	var err error
	set := func(path string, value any) {
		if err == nil {
			cfg, err = sjson.Set(cfg, path, value)
		}
	}
	set("type", "Puppet")
	set("request", "launch")
	set("name", "Puppet Apply current file")
	set("manifest", "${file}")
	set("cwd", cwd)
	set("noop", true)
	set("args", []string{})
	if environment != "" {
		set("args.-1", "--environment")
		set("args.-1", environment)
	}
	if err != nil {
		return "", err
	}
	return sjson.SetRaw(`[]`, "-1", cfg)
}
