// Package configfile mutates port-bearing fields in configuration files,
// with byte-exact backup and restore around every mutation.
package configfile

import (
	"path/filepath"
	"strings"
)

// Format identifies the mutation strategy for a configuration file.
type Format string

const (
	// FormatJSON is parsed into a generic tree and reserialized.
	FormatJSON Format = "json"
	// FormatYAML is parsed into a generic tree and reserialized.
	FormatYAML Format = "yaml"
	// FormatTOML is rewritten line-by-line so comments and layout survive.
	FormatTOML Format = "toml"
)

// DefaultPortFields are the field names recognized as port-bearing.
var DefaultPortFields = []string{
	"port",
	"listen_port",
	"http_port",
	"ws_port",
	"api_port",
	"server_port",
}

// DetectFormat selects a format from the file extension. TOML is the
// fallback: bot configs in the wild are overwhelmingly TOML with stray
// extensions, and line rewriting is the safest strategy for unknown text.
func DetectFormat(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatTOML
	}
}
