package connection

import (
	"os"
	"strconv"
	"strings"

	"github.com/dshills/puppetext/internal/settings"
	"github.com/dshills/puppetext/internal/toolchain"
)

// ServerArgs returns the language server options derived from s, excluding
// the transport selection.
func ServerArgs(s settings.Snapshot) []string {
	es := s.EditorService
	args := []string{"--timeout=" + strconv.Itoa(es.Timeout)}
	if es.DebugFilePath != "" {
		args = append(args, "--debug="+es.DebugFilePath)
	}
	if len(es.FeatureFlags) > 0 {
		args = append(args, "--feature-flags="+strings.Join(es.FeatureFlags, ","))
	}

	var puppet []string
	add := func(flag, value string) {
		if value != "" {
			puppet = append(puppet, flag, value)
		}
	}
	add("--confdir", es.Puppet.ConfDir)
	add("--environment", es.Puppet.Environment)
	add("--modulepath", es.Puppet.ModulePath)
	add("--vardir", es.Puppet.VarDir)
	if len(puppet) > 0 {
		args = append(args, "--puppet-settings="+strings.Join(puppet, ","))
	}
	return args
}

// Launch holds what every connector needs to run the server.
type Launch struct {
	Paths    toolchain.Paths
	Settings settings.Snapshot
	// Version is the client version reported during initialize.
	Version string
	// Env is the base environment; nil means os.Environ().
	Env []string
	// Dir is the working directory of the server process.
	Dir string
}

func (l Launch) spec(transportArgs ...string) ProcessSpec {
	env := l.Env
	if env == nil {
		env = os.Environ()
	}
	args := append([]string{l.Paths.LanguageServerScript}, transportArgs...)
	args = append(args, ServerArgs(l.Settings)...)
	return ProcessSpec{
		Command: l.Paths.RubyExecutable,
		Args:    args,
		Env:     l.Paths.Environment(env),
		Dir:     l.Dir,
	}
}
