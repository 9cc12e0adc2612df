package settings

import (
	"reflect"
	"testing"
)

func TestResolver_Defaults(t *testing.T) {
	s, legacy := NewResolver(MapStore{}).Resolve()

	if !reflect.DeepEqual(s, Default()) {
		t.Errorf("expected defaults, got %+v", s)
	}
	if len(legacy) != 0 {
		t.Errorf("expected no legacy settings, got %v", legacy)
	}
}

func TestResolver_NilStore(t *testing.T) {
	s, legacy := NewResolver(nil).Resolve()
	if s.EditorService.Protocol != ProtocolStdio {
		t.Errorf("expected stdio, got %q", s.EditorService.Protocol)
	}
	if legacy != nil {
		t.Errorf("expected nil legacy, got %v", legacy)
	}
}

func TestResolver_Values(t *testing.T) {
	store := MapStore{
		KeyInstallDirectory:     "/opt/custom",
		KeyInstallType:          "PDK",
		KeyServiceEnable:        false,
		KeyServiceProtocol:      "tcp",
		KeyServiceTCPAddress:    "localhost",
		KeyServiceTCPPort:       float64(8081),
		KeyServiceTimeout:       "30",
		KeyServiceLogLevel:      "debug",
		KeyServiceDebugFilePath: "/tmp/ls.log",
		KeyServiceFeatureFlags:  []any{"puppetstrings", 7, "hiera"},
		KeyPuppetEnvironment:    "production",
		KeyFormatEnable:         "false",
		KeyNotifyNodeGraph:      "statusbar",
		KeyNotifyResource:       "bogus",
		KeyPDKCheckVersion:      false,
	}

	s := NewResolver(store).Snapshot()

	if s.InstallDirectory != "/opt/custom" {
		t.Errorf("expected install directory '/opt/custom', got %q", s.InstallDirectory)
	}
	if s.InstallType != InstallPDK {
		t.Errorf("expected pdk, got %q", s.InstallType)
	}
	es := s.EditorService
	if es.Enable {
		t.Error("expected editor service disabled")
	}
	if es.Protocol != ProtocolTCP {
		t.Errorf("expected tcp, got %q", es.Protocol)
	}
	if es.TCP.Address != "localhost" || es.TCP.Port != 8081 {
		t.Errorf("expected localhost:8081, got %s:%d", es.TCP.Address, es.TCP.Port)
	}
	if es.Timeout != 30 {
		t.Errorf("expected timeout 30, got %d", es.Timeout)
	}
	if es.LogLevel != "debug" {
		t.Errorf("expected loglevel debug, got %q", es.LogLevel)
	}
	if es.DebugFilePath != "/tmp/ls.log" {
		t.Errorf("expected debug file path, got %q", es.DebugFilePath)
	}
	if !reflect.DeepEqual(es.FeatureFlags, []string{"puppetstrings", "hiera"}) {
		t.Errorf("unexpected feature flags %v", es.FeatureFlags)
	}
	if es.Puppet.Environment != "production" {
		t.Errorf("expected environment production, got %q", es.Puppet.Environment)
	}
	if s.Format.Enable {
		t.Error("expected format disabled")
	}
	if s.Notification.NodeGraph != NotifyStatusBar {
		t.Errorf("expected statusbar, got %q", s.Notification.NodeGraph)
	}
	if s.Notification.PuppetResource != NotifyMessageBox {
		t.Errorf("expected invalid mode to fall back to messagebox, got %q", s.Notification.PuppetResource)
	}
	if s.PDK.CheckVersion {
		t.Error("expected pdk version check disabled")
	}
}

func TestResolver_InvalidValuesFallBack(t *testing.T) {
	store := MapStore{
		KeyInstallType:     "chocolatey",
		KeyServiceProtocol: "websocket",
		KeyServiceTimeout:  -5,
		KeyServiceEnable:   "maybe",
	}

	s := NewResolver(store).Snapshot()

	if s.InstallType != InstallAuto {
		t.Errorf("expected auto, got %q", s.InstallType)
	}
	if s.EditorService.Protocol != ProtocolStdio {
		t.Errorf("expected stdio, got %q", s.EditorService.Protocol)
	}
	if s.EditorService.Timeout != 10 {
		t.Errorf("expected timeout 10, got %d", s.EditorService.Timeout)
	}
	if !s.EditorService.Enable {
		t.Error("expected editor service enabled")
	}
}

func TestResolver_FeatureFlagsString(t *testing.T) {
	s := NewResolver(MapStore{KeyServiceFeatureFlags: " a, ,b "}).Snapshot()
	if !reflect.DeepEqual(s.EditorService.FeatureFlags, []string{"a", "b"}) {
		t.Errorf("unexpected feature flags %v", s.EditorService.FeatureFlags)
	}
}

func TestSnapshot_FeatureFlagsCopy(t *testing.T) {
	s := NewResolver(MapStore{KeyServiceFeatureFlags: []string{"a"}}).Snapshot()
	flags := s.FeatureFlags()
	flags[0] = "changed"
	if s.EditorService.FeatureFlags[0] != "a" {
		t.Error("expected FeatureFlags to return a copy")
	}
}

func TestResolver_Legacy(t *testing.T) {
	store := MapStore{
		"puppet.puppetAgentDir":          "/opt/puppet",
		"puppet.languageserver.port":     8081,
		"puppet.languageclient.protocol": nil,
		"puppet.unrelated":               true,
	}

	legacy := NewResolver(store).Legacy()

	want := []string{"puppet.languageserver.port", "puppet.puppetAgentDir"}
	if got := Names(legacy); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
	if legacy[0].Value != 8081 {
		t.Errorf("expected value 8081, got %v", legacy[0].Value)
	}
}

func TestResolver_CustomLegacyNames(t *testing.T) {
	store := MapStore{"puppet.oldName": "x"}

	legacy := NewResolver(store, WithLegacyNames("puppet.oldName")).Legacy()

	if len(legacy) != 1 {
		t.Fatalf("expected 1 legacy setting, got %d", len(legacy))
	}
	if legacy[0].Name != "puppet.oldName" || legacy[0].Value != "x" {
		t.Errorf("unexpected legacy setting %+v", legacy[0])
	}
}

func TestResolver_LegacyDoesNotChangeSnapshot(t *testing.T) {
	store := MapStore{"puppet.languageserver.timeout": 99}
	s, legacy := NewResolver(store).Resolve()
	if s.EditorService.Timeout != 10 {
		t.Errorf("expected legacy timeout to be ignored, got %d", s.EditorService.Timeout)
	}
	if len(legacy) != 1 {
		t.Errorf("expected 1 legacy setting, got %d", len(legacy))
	}
}
