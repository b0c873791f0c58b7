package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// OutputFormat specifies the output format.
type OutputFormat string

const (
	// FormatYAML outputs in YAML format.
	FormatYAML OutputFormat = "yaml"

	// FormatJSON outputs in JSON format.
	FormatJSON OutputFormat = "json"

	// FormatTable outputs a styled table.
	FormatTable OutputFormat = "table"

	// FormatTree outputs a dependency tree.
	FormatTree OutputFormat = "tree"
)

// String returns the string representation of the output format.
func (f OutputFormat) String() string {
	return string(f)
}

// Valid reports whether f is a known format.
func (f OutputFormat) Valid() bool {
	switch f {
	case FormatYAML, FormatJSON, FormatTable, FormatTree:
		return true
	default:
		return false
	}
}

// ParseOutputFormat parses s case-insensitively. The second result reports
// whether s named a known format.
func ParseOutputFormat(s string) (OutputFormat, bool) {
	switch strings.ToLower(s) {
	case "yaml", "yml":
		return FormatYAML, true
	case "json":
		return FormatJSON, true
	case "table":
		return FormatTable, true
	case "tree":
		return FormatTree, true
	default:
		return OutputFormat(s), false
	}
}

// ValidFormats returns every format name.
func ValidFormats() []string {
	return []string{"yaml", "json", "table", "tree"}
}

// ValidDataFormats returns the formats for plain data output.
func ValidDataFormats() []string {
	return []string{"yaml", "json"}
}

// Encode writes v to w as YAML or JSON.
func Encode(w io.Writer, format OutputFormat, v any) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("format %q cannot encode data (valid: %s)", format, strings.Join(ValidDataFormats(), ", "))
	}
}
