package loader

import (
	"io"

	"github.com/charmbracelet/log"
)

// MainPrecedence selects how a package entry point is found when the request
// names no subpath and the package declares both an exports table and a main hint.
type MainPrecedence string

const (
	// PrecedenceExports consults the exports table and ignores main when exports is declared.
	PrecedenceExports MainPrecedence = "exports"

	// PrecedenceMain tries the main hint first and falls back to the exports table.
	PrecedenceMain MainPrecedence = "main"
)

// Options holds the loader conventions.
type Options struct {
	// AmbiguousExt is resolved through the nearest ancestor manifest.
	AmbiguousExt string
	// NativeExt is always the native format.
	NativeExt string
	// LegacyExt is always the legacy format.
	LegacyExt string

	// ManifestName is the per-directory package descriptor file name.
	ManifestName string
	// DependencyDir is the directory bare packages are installed under.
	DependencyDir string
	// BuiltinPrefix marks explicit builtin references.
	BuiltinPrefix string

	// Conditions lists the accepted exports/imports conditions, in priority order.
	Conditions []string

	MainPrecedence MainPrecedence

	Logger *log.Logger
}

// DefaultOptions returns the default conventions.
func DefaultOptions() Options {
	return Options{
		AmbiguousExt:   ".js",
		NativeExt:      ".mjs",
		LegacyExt:      ".cjs",
		ManifestName:   "package.json",
		DependencyDir:  "node_modules",
		BuiltinPrefix:  "builtin:",
		Conditions:     []string{"import", "default"},
		MainPrecedence: PrecedenceExports,
	}
}

// Option configures a Loader.
type Option func(*Options)

// WithOptions replaces every convention at once. Empty fields keep their defaults.
func WithOptions(o Options) Option {
	return func(dst *Options) {
		if o.AmbiguousExt != "" {
			dst.AmbiguousExt = o.AmbiguousExt
		}
		if o.NativeExt != "" {
			dst.NativeExt = o.NativeExt
		}
		if o.LegacyExt != "" {
			dst.LegacyExt = o.LegacyExt
		}
		if o.ManifestName != "" {
			dst.ManifestName = o.ManifestName
		}
		if o.DependencyDir != "" {
			dst.DependencyDir = o.DependencyDir
		}
		if o.BuiltinPrefix != "" {
			dst.BuiltinPrefix = o.BuiltinPrefix
		}
		if len(o.Conditions) > 0 {
			dst.Conditions = append([]string(nil), o.Conditions...)
		}
		if o.MainPrecedence != "" {
			dst.MainPrecedence = o.MainPrecedence
		}
		if o.Logger != nil {
			dst.Logger = o.Logger
		}
	}
}

// WithLogger sets the logger used for debug tracing.
func WithLogger(logger *log.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithMainPrecedence sets the entry point policy.
func WithMainPrecedence(p MainPrecedence) Option {
	return func(o *Options) {
		o.MainPrecedence = p
	}
}

// WithConditions sets the accepted exports/imports conditions.
func WithConditions(conditions ...string) Option {
	return func(o *Options) {
		o.Conditions = append([]string(nil), conditions...)
	}
}

func discardLogger() *log.Logger {
	return log.New(io.Discard)
}
