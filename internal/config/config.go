// Package config provides configuration loading and management.
package config

import (
	"bytes"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/opmodel/modload/pkg/loader"
)

// ExtensionsConfig maps file extensions to module formats.
type ExtensionsConfig struct {
	// Ambiguous is resolved through the nearest package manifest.
	// Env: MODLOAD_EXTENSIONS_AMBIGUOUS, Default: ".js"
	Ambiguous string `mapstructure:"ambiguous" json:"ambiguous,omitempty" yaml:"ambiguous"`

	// Native is always the native format.
	// Env: MODLOAD_EXTENSIONS_NATIVE, Default: ".mjs"
	Native string `mapstructure:"native" json:"native,omitempty" yaml:"native"`

	// Legacy is always the legacy format.
	// Env: MODLOAD_EXTENSIONS_LEGACY, Default: ".cjs"
	Legacy string `mapstructure:"legacy" json:"legacy,omitempty" yaml:"legacy"`
}

// LogConfig contains logging-related settings.
type LogConfig struct {
	// Verbose enables debug logging.
	// Env: MODLOAD_LOG_VERBOSE. Override with --verbose flag.
	Verbose bool `mapstructure:"verbose" json:"verbose,omitempty" yaml:"verbose"`

	// Timestamps controls whether timestamps are shown in log output.
	// Default: true. Override with --timestamps flag.
	Timestamps *bool `mapstructure:"timestamps" json:"timestamps,omitempty" yaml:"timestamps,omitempty"`
}

// Config represents the modload CLI configuration.
// Loaded from ~/.modload/config.yaml, validated against the embedded CUE schema.
type Config struct {
	Extensions ExtensionsConfig `mapstructure:"extensions" json:"extensions" yaml:"extensions"`

	// Manifest is the per-directory package descriptor file name.
	Manifest string `mapstructure:"manifest" json:"manifest,omitempty" yaml:"manifest"`

	// DependencyDir is the directory bare packages are installed under.
	DependencyDir string `mapstructure:"dependencyDir" json:"dependencyDir,omitempty" yaml:"dependencyDir"`

	// BuiltinPrefix marks explicit builtin references.
	BuiltinPrefix string `mapstructure:"builtinPrefix" json:"builtinPrefix,omitempty" yaml:"builtinPrefix"`

	// Conditions lists the accepted exports/imports conditions in priority order.
	Conditions []string `mapstructure:"conditions" json:"conditions,omitempty" yaml:"conditions"`

	// MainPrecedence is "exports" or "main".
	MainPrecedence string `mapstructure:"mainPrecedence" json:"mainPrecedence,omitempty" yaml:"mainPrecedence"`

	Log LogConfig `mapstructure:"log" json:"log" yaml:"log"`
}

// DefaultConfig returns a Config with all default values populated.
// Used by `modload config init` to generate the initial config file.
func DefaultConfig() *Config {
	d := loader.DefaultOptions()
	return &Config{
		Extensions: ExtensionsConfig{
			Ambiguous: d.AmbiguousExt,
			Native:    d.NativeExt,
			Legacy:    d.LegacyExt,
		},
		Manifest:       d.ManifestName,
		DependencyDir:  d.DependencyDir,
		BuiltinPrefix:  d.BuiltinPrefix,
		Conditions:     d.Conditions,
		MainPrecedence: string(d.MainPrecedence),
	}
}

// LoaderOptions converts the configuration into loader conventions.
func (c *Config) LoaderOptions() loader.Options {
	return loader.Options{
		AmbiguousExt:   c.Extensions.Ambiguous,
		NativeExt:      c.Extensions.Native,
		LegacyExt:      c.Extensions.Legacy,
		ManifestName:   c.Manifest,
		DependencyDir:  c.DependencyDir,
		BuiltinPrefix:  c.BuiltinPrefix,
		Conditions:     append([]string(nil), c.Conditions...),
		MainPrecedence: loader.MainPrecedence(c.MainPrecedence),
	}
}

const configHeader = `# modload configuration
#
# Every value can be overridden by a MODLOAD_* environment variable
# (for example MODLOAD_DEPENDENCY_DIR), and some by command-line flags.
# Precedence: flag > environment > this file > built-in default.
`

// MarshalDefault renders DefaultConfig as commented YAML.
func MarshalDefault() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(configHeader)
	buf.WriteString("\n")

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(DefaultConfig()); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// joinList renders a list value for display and environment parsing.
func joinList(v []string) string {
	return strings.Join(v, ",")
}

// splitList parses a comma-separated list, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
