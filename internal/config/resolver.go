package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode"

	"github.com/hashicorp/go-multierror"

	"github.com/opmodel/modload/internal/output"
)

// ConfigSource indicates where a configuration value came from.
type ConfigSource string

const (
	// SourceFlag indicates value came from command-line flag.
	SourceFlag ConfigSource = "flag"
	// SourceEnv indicates value came from environment variable.
	SourceEnv ConfigSource = "env"
	// SourceConfig indicates value came from config file.
	SourceConfig ConfigSource = "config"
	// SourceDefault indicates value is the built-in default.
	SourceDefault ConfigSource = "default"
)

// precedence lists the sources from highest to lowest.
var precedence = []ConfigSource{SourceFlag, SourceEnv, SourceConfig, SourceDefault}

// ResolvedValue records how one configuration key was resolved.
type ResolvedValue struct {
	Key    string
	Value  string
	Source ConfigSource
	// Shadowed contains values that were overridden by higher precedence.
	Shadowed map[ConfigSource]string
}

// field binds a configuration key to its string form on Config.
type field struct {
	key string
	get func(*Config) string
	set func(*Config, string) error
}

func stringField(key string, p func(*Config) *string) field {
	return field{
		key: key,
		get: func(c *Config) string { return *p(c) },
		set: func(c *Config, s string) error {
			*p(c) = s
			return nil
		},
	}
}

var fields = []field{
	stringField("extensions.ambiguous", func(c *Config) *string { return &c.Extensions.Ambiguous }),
	stringField("extensions.native", func(c *Config) *string { return &c.Extensions.Native }),
	stringField("extensions.legacy", func(c *Config) *string { return &c.Extensions.Legacy }),
	stringField("manifest", func(c *Config) *string { return &c.Manifest }),
	stringField("dependencyDir", func(c *Config) *string { return &c.DependencyDir }),
	stringField("builtinPrefix", func(c *Config) *string { return &c.BuiltinPrefix }),
	{
		key: "conditions",
		get: func(c *Config) string { return joinList(c.Conditions) },
		set: func(c *Config, s string) error {
			c.Conditions = splitList(s)
			return nil
		},
	},
	stringField("mainPrecedence", func(c *Config) *string { return &c.MainPrecedence }),
	{
		key: "log.verbose",
		get: func(c *Config) string { return strconv.FormatBool(c.Log.Verbose) },
		set: func(c *Config, s string) error {
			b, err := strconv.ParseBool(s)
			if err != nil {
				return err
			}
			c.Log.Verbose = b
			return nil
		},
	},
	{
		key: "log.timestamps",
		get: func(c *Config) string {
			if c.Log.Timestamps == nil {
				return ""
			}
			return strconv.FormatBool(*c.Log.Timestamps)
		},
		set: func(c *Config, s string) error {
			if s == "" {
				c.Log.Timestamps = nil
				return nil
			}
			b, err := strconv.ParseBool(s)
			if err != nil {
				return err
			}
			c.Log.Timestamps = &b
			return nil
		},
	},
}

// Keys returns every configuration key in display order.
func Keys() []string {
	keys := make([]string, len(fields))
	for i, f := range fields {
		keys[i] = f.key
	}
	return keys
}

// EnvVar returns the environment variable that overrides key.
//
//	dependencyDir     -> MODLOAD_DEPENDENCY_DIR
//	extensions.native -> MODLOAD_EXTENSIONS_NATIVE
func EnvVar(key string) string {
	var b strings.Builder
	b.WriteString(envPrefix)
	b.WriteByte('_')
	for i, r := range key {
		switch {
		case r == '.':
			b.WriteByte('_')
		case unicode.IsUpper(r) && i > 0:
			b.WriteByte('_')
			b.WriteRune(r)
		default:
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	return b.String()
}

// ResolveOptions contains the inputs for configuration resolution.
type ResolveOptions struct {
	// Flags maps configuration keys to flag values the user set explicitly.
	Flags map[string]string

	// File is the configuration loaded by Loader.Load. Nil means defaults only.
	File *Config

	// FileKeys are the keys the configuration file set (see Loader.FileKeys).
	FileKeys map[string]bool

	// Getenv looks up environment variables. Defaults to os.Getenv.
	Getenv func(string) string
}

// Resolve computes the effective configuration using precedence:
// (1) flag, (2) MODLOAD_* environment variable, (3) config file, (4) default.
// Every key is reported with its source and the values it shadowed.
func Resolve(opts ResolveOptions) (*Config, []ResolvedValue, error) {
	getenv := opts.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	file := opts.File
	if file == nil {
		file = DefaultConfig()
	}
	defaults := DefaultConfig()

	cfg := DefaultConfig()
	values := make([]ResolvedValue, 0, len(fields))
	var result *multierror.Error

	for _, f := range fields {
		candidates := make(map[ConfigSource]string, len(precedence))
		if v, ok := opts.Flags[f.key]; ok {
			candidates[SourceFlag] = v
		}
		if v := getenv(EnvVar(f.key)); v != "" {
			candidates[SourceEnv] = v
		}
		if opts.FileKeys[strings.ToLower(f.key)] {
			candidates[SourceConfig] = f.get(file)
		}
		candidates[SourceDefault] = f.get(defaults)

		rv := ResolvedValue{Key: f.key, Shadowed: make(map[ConfigSource]string)}
		for _, src := range precedence {
			v, ok := candidates[src]
			if !ok {
				continue
			}
			if rv.Source == "" {
				rv.Value = v
				rv.Source = src
				continue
			}
			rv.Shadowed[src] = v
		}

		if err := f.set(cfg, rv.Value); err != nil {
			result = multierror.Append(result, &ValidationError{
				Field:   f.key,
				Message: fmt.Sprintf("invalid %s value %q: %v", rv.Source, rv.Value, err),
			})
		}
		values = append(values, rv)
	}

	return cfg, values, result.ErrorOrNil()
}

// ResolveConfigPathOptions contains options for config path resolution.
type ResolveConfigPathOptions struct {
	// FlagValue is the --config flag value (empty if not set).
	FlagValue string
}

// ResolveConfigPathResult contains the resolved config path and its source.
type ResolveConfigPathResult struct {
	// ConfigPath is the resolved config file path.
	ConfigPath string
	// Source indicates where the config path came from.
	Source ConfigSource
	// Shadowed contains values that were overridden by higher precedence.
	Shadowed map[ConfigSource]string
}

// ResolveConfigPath resolves the config file path using precedence:
// (1) --config flag, (2) MODLOAD_CONFIG env, (3) ~/.modload/config.yaml default
func ResolveConfigPath(opts ResolveConfigPathOptions) (ResolveConfigPathResult, error) {
	result := ResolveConfigPathResult{
		Shadowed: make(map[ConfigSource]string),
	}

	envValue := os.Getenv(envPrefix + "_CONFIG")

	paths, err := DefaultPaths()
	if err != nil {
		return result, err
	}
	defaultPath := paths.ConfigFile

	switch {
	case opts.FlagValue != "":
		result.ConfigPath = opts.FlagValue
		result.Source = SourceFlag
		if envValue != "" {
			result.Shadowed[SourceEnv] = envValue
		}
		result.Shadowed[SourceDefault] = defaultPath
	case envValue != "":
		result.ConfigPath = envValue
		result.Source = SourceEnv
		result.Shadowed[SourceDefault] = defaultPath
	default:
		result.ConfigPath = defaultPath
		result.Source = SourceDefault
	}

	return result, nil
}

// LogResolvedValues logs configuration resolution at DEBUG level.
func LogResolvedValues(values []ResolvedValue) {
	for _, v := range values {
		output.Debug("config value resolved",
			"key", v.Key,
			"value", v.Value,
			"source", v.Source,
		)
		for _, source := range precedence {
			shadowed, ok := v.Shadowed[source]
			if !ok {
				continue
			}
			output.Debug("  shadowed by higher precedence",
				"key", v.Key,
				"shadowed_source", source,
				"shadowed_value", shadowed,
			)
		}
	}
}
