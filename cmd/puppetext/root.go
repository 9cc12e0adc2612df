package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"github.com/dshills/puppetext/internal/host"
	"github.com/dshills/puppetext/internal/host/memento"
	"github.com/dshills/puppetext/internal/logging"
	"github.com/dshills/puppetext/internal/settings"
	"github.com/dshills/puppetext/internal/toolchain"
)

// options holds the global flags.
type options struct {
	configPath     string
	stateDir       string
	ephemeral      bool
	logLevel       string
	metricsAddr    string
	manifest       string
	extensionDir   string
	nonInteractive bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "puppetext",
		Short:         "Run the Puppet editor extension lifecycle",
		Long:          `puppetext checks for a Puppet installation, runs the Puppet language server and exposes the extension commands from a terminal.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "settings file (yaml, toml or json)")
	flags.StringVar(&opts.stateDir, "state-dir", "", "directory for persisted state (default is the user config dir)")
	flags.BoolVar(&opts.ephemeral, "ephemeral", false, "keep state in memory only")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn or error (default from settings)")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve /metrics and /health on this address")
	flags.StringVar(&opts.manifest, "manifest", "", "extension package.json to read the version from")
	flags.StringVar(&opts.extensionDir, "extension-dir", "", "directory containing vendor/languageserver")
	flags.BoolVar(&opts.nonInteractive, "non-interactive", false, "dismiss every prompt")

	root.AddCommand(
		newRunCmd(opts),
		newExecCmd(opts),
		newCheckCmd(opts),
		newSettingsCmd(opts),
		newFeaturesCmd(),
		newVersionCmd(opts),
	)
	return root
}

// extensionVersion returns the manifest version when a manifest is given,
// otherwise the build version.
func (o *options) extensionVersion() (string, error) {
	if o.manifest == "" {
		return strings.TrimPrefix(version, "v"), nil
	}
	data, err := os.ReadFile(o.manifest)
	if err != nil {
		return "", fmt.Errorf("read manifest: %w", err)
	}
	if !gjson.ValidBytes(data) {
		return "", fmt.Errorf("manifest %s is not valid JSON", o.manifest)
	}
	v := gjson.GetBytes(data, "version")
	if !v.Exists() || v.String() == "" {
		return "", fmt.Errorf("manifest %s has no version", o.manifest)
	}
	return v.String(), nil
}

func (o *options) logger() *logging.Logger {
	cfg := logging.DefaultConfig()
	if o.logLevel != "" {
		cfg.Level = logging.ParseLevel(o.logLevel)
	}
	return logging.New(cfg)
}

func (o *options) store() (*settings.ViperStore, error) {
	return settings.OpenViperStore(o.configPath)
}

// globalState opens the persisted global state. The returned close
// function is never nil.
func (o *options) globalState() (host.Memento, func() error, error) {
	if o.ephemeral {
		return memento.NewMemory(), func() error { return nil }, nil
	}
	path, err := o.statePath()
	if err != nil {
		return nil, nil, err
	}
	db, err := memento.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return db, db.Close, nil
}

func (o *options) statePath() (string, error) {
	dir := o.stateDir
	if dir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("state dir: %w", err)
		}
		dir = filepath.Join(base, "puppetext")
	}
	return filepath.Join(dir, "state.db"), nil
}

func (o *options) locator() *toolchain.Locator {
	return toolchain.NewLocator(toolchain.WithExtensionDir(o.extensionDir))
}
