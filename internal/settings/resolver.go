package settings

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dshills/puppetext/internal/host"
)

// Setting names read by the resolver.
const (
	KeyInstallDirectory     = "puppet.installDirectory"
	KeyInstallType          = "puppet.installType"
	KeyServiceEnable        = "puppet.editorService.enable"
	KeyServiceProtocol      = "puppet.editorService.protocol"
	KeyServiceTCPAddress    = "puppet.editorService.tcp.address"
	KeyServiceTCPPort       = "puppet.editorService.tcp.port"
	KeyServiceTimeout       = "puppet.editorService.timeout"
	KeyServiceLogLevel      = "puppet.editorService.loglevel"
	KeyServiceDebugFilePath = "puppet.editorService.debugFilePath"
	KeyServiceFeatureFlags  = "puppet.editorService.featureFlags"
	KeyPuppetConfDir        = "puppet.editorService.puppet.confdir"
	KeyPuppetEnvironment    = "puppet.editorService.puppet.environment"
	KeyPuppetModulePath     = "puppet.editorService.puppet.modulePath"
	KeyPuppetVarDir         = "puppet.editorService.puppet.vardir"
	KeyFormatEnable         = "puppet.format.enable"
	KeyNotifyNodeGraph      = "puppet.notification.nodeGraph"
	KeyNotifyResource       = "puppet.notification.puppetResource"
	KeyPDKCheckVersion      = "puppet.pdk.checkVersion"
)

// DefaultLegacyNames are the deprecated setting names still recognised.
var DefaultLegacyNames = []string{
	"puppet.languageclient.minimumUserLogLevel",
	"puppet.languageclient.protocol",
	"puppet.languageserver.address",
	"puppet.languageserver.debugFilePath",
	"puppet.languageserver.filecache.enable",
	"puppet.languageserver.port",
	"puppet.languageserver.timeout",
	"puppet.puppetAgentDir",
}

// Resolver reads a ConfigStore into a Snapshot.
type Resolver struct {
	store       host.ConfigStore
	legacyNames []string
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLegacyNames replaces the list of deprecated names to detect.
func WithLegacyNames(names ...string) Option {
	return func(r *Resolver) {
		r.legacyNames = append([]string(nil), names...)
	}
}

// NewResolver creates a resolver over store.
func NewResolver(store host.ConfigStore, opts ...Option) *Resolver {
	r := &Resolver{
		store:       store,
		legacyNames: DefaultLegacyNames,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve produces the settings snapshot and the deprecated settings that
// are set. Legacy entries are returned in the order of the legacy name list.
func (r *Resolver) Resolve() (Snapshot, []LegacySetting) {
	return r.Snapshot(), r.Legacy()
}

// Snapshot reads the current configuration, filling defaults for anything
// unset or of the wrong type.
func (r *Resolver) Snapshot() Snapshot {
	s := Default()

	s.InstallDirectory = r.stringValue(KeyInstallDirectory, s.InstallDirectory)
	switch t := InstallType(strings.ToLower(r.stringValue(KeyInstallType, string(s.InstallType)))); t {
	case InstallAuto, InstallPDK, InstallAgent:
		s.InstallType = t
	}

	es := &s.EditorService
	es.Enable = r.boolValue(KeyServiceEnable, es.Enable)
	switch p := Protocol(strings.ToLower(r.stringValue(KeyServiceProtocol, string(es.Protocol)))); p {
	case ProtocolStdio, ProtocolTCP:
		es.Protocol = p
	}
	es.TCP.Address = r.stringValue(KeyServiceTCPAddress, es.TCP.Address)
	es.TCP.Port = r.intValue(KeyServiceTCPPort, es.TCP.Port)
	if timeout := r.intValue(KeyServiceTimeout, es.Timeout); timeout > 0 {
		es.Timeout = timeout
	}
	es.LogLevel = r.stringValue(KeyServiceLogLevel, es.LogLevel)
	es.DebugFilePath = r.stringValue(KeyServiceDebugFilePath, es.DebugFilePath)
	es.FeatureFlags = r.stringsValue(KeyServiceFeatureFlags)
	es.Puppet = PuppetOptions{
		ConfDir:     r.stringValue(KeyPuppetConfDir, ""),
		Environment: r.stringValue(KeyPuppetEnvironment, ""),
		ModulePath:  r.stringValue(KeyPuppetModulePath, ""),
		VarDir:      r.stringValue(KeyPuppetVarDir, ""),
	}

	s.Format.Enable = r.boolValue(KeyFormatEnable, s.Format.Enable)
	s.Notification.NodeGraph = r.notificationValue(KeyNotifyNodeGraph, s.Notification.NodeGraph)
	s.Notification.PuppetResource = r.notificationValue(KeyNotifyResource, s.Notification.PuppetResource)
	s.PDK.CheckVersion = r.boolValue(KeyPDKCheckVersion, s.PDK.CheckVersion)

	return s
}

// Legacy returns the deprecated settings that hold a value.
func (r *Resolver) Legacy() []LegacySetting {
	var found []LegacySetting
	for _, name := range r.legacyNames {
		v, ok := r.get(name)
		if !ok || v == nil {
			continue
		}
		found = append(found, LegacySetting{Name: name, Value: v})
	}
	return found
}

func (r *Resolver) get(name string) (any, bool) {
	if r.store == nil {
		return nil, false
	}
	return r.store.Get(name)
}

func (r *Resolver) stringValue(name, def string) string {
	v, ok := r.get(name)
	if !ok || v == nil {
		return def
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case fmt.Stringer:
		return t.String()
	default:
		return def
	}
}

func (r *Resolver) boolValue(name string, def bool) bool {
	v, ok := r.get(name)
	if !ok {
		return def
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(t)); err == nil {
			return b
		}
	}
	return def
}

func (r *Resolver) intValue(name string, def int) int {
	v, ok := r.get(name)
	if !ok {
		return def
	}
	switch t := v.(type) {
	case int:
		return t
	case int32:
		return int(t)
	case int64:
		return int(t)
	case uint16:
		return int(t)
	case float64:
		return int(t)
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(t)); err == nil {
			return n
		}
	}
	return def
}

func (r *Resolver) stringsValue(name string) []string {
	v, ok := r.get(name)
	if !ok || v == nil {
		return nil
	}
	var out []string
	switch t := v.(type) {
	case []string:
		out = append(out, t...)
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
	case string:
		for _, part := range strings.Split(t, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func (r *Resolver) notificationValue(name string, def NotificationMode) NotificationMode {
	switch m := NotificationMode(strings.ToLower(r.stringValue(name, string(def)))); m {
	case NotifyMessageBox, NotifyStatusBar, NotifyNone:
		return m
	}
	return def
}
