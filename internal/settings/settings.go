package settings

// Protocol is the transport used to reach the editor service.
type Protocol string

const (
	ProtocolStdio Protocol = "stdio"
	ProtocolTCP   Protocol = "tcp"
)

// InstallType selects which Puppet installation layout to look for.
type InstallType string

const (
	InstallAuto  InstallType = "auto"
	InstallPDK   InstallType = "pdk"
	InstallAgent InstallType = "agent"
)

// NotificationMode controls how a feature reports progress.
type NotificationMode string

const (
	NotifyMessageBox NotificationMode = "messagebox"
	NotifyStatusBar  NotificationMode = "statusbar"
	NotifyNone       NotificationMode = "none"
)

// Snapshot is the resolved configuration for one activation.
// It is produced once and must be treated as read-only.
type Snapshot struct {
	InstallDirectory string        `json:"installDirectory" yaml:"installDirectory" toml:"installDirectory"`
	InstallType      InstallType   `json:"installType" yaml:"installType" toml:"installType"`
	EditorService    EditorService `json:"editorService" yaml:"editorService" toml:"editorService"`
	Format           Format        `json:"format" yaml:"format" toml:"format"`
	Notification     Notification  `json:"notification" yaml:"notification" toml:"notification"`
	PDK              PDK           `json:"pdk" yaml:"pdk" toml:"pdk"`
}

// EditorService configures the backend language server.
type EditorService struct {
	Enable        bool          `json:"enable" yaml:"enable" toml:"enable"`
	Protocol      Protocol      `json:"protocol" yaml:"protocol" toml:"protocol"`
	TCP           TCP           `json:"tcp" yaml:"tcp" toml:"tcp"`
	Timeout       int           `json:"timeout" yaml:"timeout" toml:"timeout"`
	LogLevel      string        `json:"loglevel" yaml:"loglevel" toml:"loglevel"`
	DebugFilePath string        `json:"debugFilePath,omitempty" yaml:"debugFilePath,omitempty" toml:"debugFilePath,omitempty"`
	FeatureFlags  []string      `json:"featureFlags" yaml:"featureFlags" toml:"featureFlags"`
	Puppet        PuppetOptions `json:"puppet" yaml:"puppet" toml:"puppet"`
}

// TCP is the address of a language server reached over TCP.
type TCP struct {
	Address string `json:"address,omitempty" yaml:"address,omitempty" toml:"address,omitempty"`
	Port    int    `json:"port,omitempty" yaml:"port,omitempty" toml:"port,omitempty"`
}

// PuppetOptions are passed through to the language server's Puppet runtime.
type PuppetOptions struct {
	ConfDir     string `json:"confdir,omitempty" yaml:"confdir,omitempty" toml:"confdir,omitempty"`
	Environment string `json:"environment,omitempty" yaml:"environment,omitempty" toml:"environment,omitempty"`
	ModulePath  string `json:"modulePath,omitempty" yaml:"modulePath,omitempty" toml:"modulePath,omitempty"`
	VarDir      string `json:"vardir,omitempty" yaml:"vardir,omitempty" toml:"vardir,omitempty"`
}

// Format toggles document formatting.
type Format struct {
	Enable bool `json:"enable" yaml:"enable" toml:"enable"`
}

// Notification holds the per-feature notification modes.
type Notification struct {
	NodeGraph      NotificationMode `json:"nodeGraph" yaml:"nodeGraph" toml:"nodeGraph"`
	PuppetResource NotificationMode `json:"puppetResource" yaml:"puppetResource" toml:"puppetResource"`
}

// PDK configures Puppet Development Kit integration.
type PDK struct {
	CheckVersion bool `json:"checkVersion" yaml:"checkVersion" toml:"checkVersion"`
}

// Default returns the snapshot used when nothing is configured.
func Default() Snapshot {
	return Snapshot{
		InstallType: InstallAuto,
		EditorService: EditorService{
			Enable:   true,
			Protocol: ProtocolStdio,
			Timeout:  10,
			LogLevel: "normal",
		},
		Format: Format{Enable: true},
		Notification: Notification{
			NodeGraph:      NotifyMessageBox,
			PuppetResource: NotifyMessageBox,
		},
		PDK: PDK{CheckVersion: true},
	}
}

// FeatureFlags returns a copy of the editor service feature flags.
func (s Snapshot) FeatureFlags() []string {
	return append([]string(nil), s.EditorService.FeatureFlags...)
}

// LegacySetting is a deprecated setting found in the configuration.
type LegacySetting struct {
	Name  string
	Value any
}

// Names returns the setting names of entries, in order.
func Names(entries []LegacySetting) []string {
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	return names
}
