package settings

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"
)

const sampleYAML = `puppet:
  installDirectory: /opt/example
  editorService:
    protocol: tcp
    timeout: 25
    tcp:
      address: 127.0.0.1
      port: 9000
  languageserver:
    port: 8081
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestViperStore_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	writeFile(t, path, sampleYAML)

	store, err := OpenViperStore(path)
	require.NoError(t, err)

	s, legacy := NewResolver(store).Resolve()
	assert.Equal(t, "/opt/example", s.InstallDirectory)
	assert.Equal(t, ProtocolTCP, s.EditorService.Protocol)
	assert.Equal(t, 25, s.EditorService.Timeout)
	assert.Equal(t, 9000, s.EditorService.TCP.Port)
	assert.Equal(t, []string{"puppet.languageserver.port"}, Names(legacy))

	_, ok := store.Get("puppet.format.enable")
	assert.False(t, ok)
}

func TestViperStore_Env(t *testing.T) {
	t.Setenv("PUPPETEXT_PUPPET_EDITORSERVICE_TIMEOUT", "42")

	store, err := OpenViperStore("")
	require.NoError(t, err)

	s := NewResolver(store).Snapshot()
	assert.Equal(t, 42, s.EditorService.Timeout)
}

func TestViperStore_MissingFile(t *testing.T) {
	_, err := OpenViperStore(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestViperStore_Reload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	writeFile(t, path, sampleYAML)

	store, err := OpenViperStore(path)
	require.NoError(t, err)

	writeFile(t, path, "puppet:\n  editorService:\n    timeout: 5\n")
	require.NoError(t, store.Reload())

	assert.Equal(t, 5, NewResolver(store).Snapshot().EditorService.Timeout)

	writeFile(t, path, "puppet: [unterminated")
	assert.Error(t, store.Reload())
	assert.Equal(t, 5, NewResolver(store).Snapshot().EditorService.Timeout)
}

func TestViperStore_Watch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	writeFile(t, path, sampleYAML)

	store, err := OpenViperStore(path)
	require.NoError(t, err)
	store.debounce = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan error, 8)
	require.NoError(t, store.Watch(ctx, func(err error) { changed <- err }))

	writeFile(t, path, "puppet:\n  editorService:\n    timeout: 7\n")

	select {
	case err := <-changed:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
	assert.Equal(t, 7, NewResolver(store).Snapshot().EditorService.Timeout)
}

func TestViperStore_WatchWithoutFile(t *testing.T) {
	store, err := OpenViperStore("")
	require.NoError(t, err)
	assert.Error(t, store.Watch(context.Background(), nil))
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input    string
		expected Encoding
		wantErr  bool
	}{
		{"yaml", FormatYAML, false},
		{"YML", FormatYAML, false},
		{"", FormatYAML, false},
		{"toml", FormatTOML, false},
		{"json", FormatJSON, false},
		{"xml", "", true},
	}

	for _, tt := range tests {
		got, err := ParseFormat(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseFormat(%q) expected error", tt.input)
			}
			continue
		}
		if err != nil || got != tt.expected {
			t.Errorf("ParseFormat(%q) = %q, %v; expected %q", tt.input, got, err, tt.expected)
		}
	}
}

func TestEncode(t *testing.T) {
	s := Default()
	s.EditorService.FeatureFlags = []string{"hiera"}

	out, err := Encode(s, FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, "stdio", gjson.GetBytes(out, "editorService.protocol").String())
	assert.Equal(t, "hiera", gjson.GetBytes(out, "editorService.featureFlags.0").String())

	out, err = Encode(s, FormatYAML)
	require.NoError(t, err)
	var fromYAML Snapshot
	require.NoError(t, yaml.Unmarshal(out, &fromYAML))
	assert.Equal(t, 10, fromYAML.EditorService.Timeout)

	out, err = Encode(s, FormatTOML)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(out), "[editorService]"))
	var fromTOML Snapshot
	require.NoError(t, toml.Unmarshal(out, &fromTOML))
	assert.Equal(t, InstallAuto, fromTOML.InstallType)

	_, err = Encode(s, Encoding("xml"))
	assert.Error(t, err)
}
