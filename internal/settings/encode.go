package settings

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Encoding is an output encoding for a snapshot.
type Encoding string

const (
	FormatYAML Encoding = "yaml"
	FormatTOML Encoding = "toml"
	FormatJSON Encoding = "json"
)

// ParseFormat maps a format name to an Encoding.
func ParseFormat(s string) (Encoding, error) {
	switch f := Encoding(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatYAML, FormatTOML, FormatJSON:
		return f, nil
	case "yml":
		return FormatYAML, nil
	case "":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown settings format %q", s)
	}
}

// Encode renders the snapshot in the given format.
func Encode(s Snapshot, f Encoding) ([]byte, error) {
	switch f {
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(s); err != nil {
			return nil, fmt.Errorf("encode yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("encode yaml: %w", err)
		}
		return buf.Bytes(), nil
	case FormatTOML:
		b, err := toml.Marshal(s)
		if err != nil {
			return nil, fmt.Errorf("encode toml: %w", err)
		}
		return b, nil
	case FormatJSON:
		b, err := json.MarshalIndent(s, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode json: %w", err)
		}
		return append(b, '\n'), nil
	default:
		return nil, fmt.Errorf("unknown settings format %q", f)
	}
}
