package loader

import "context"

// Source is module source text handed to an Engine for compilation.
type Source struct {
	// Identifier is the canonical identifier of the module.
	Identifier string
	// Path is the filesystem path, empty for inline data modules.
	Path string

	Text   string
	Format Format
}

// Host is the view of the loader given to a running module. Dynamic imports,
// require calls and specifier resolution made by module code go through it.
type Host interface {
	Identifier() string
	Path() string
	Import(ctx context.Context, specifier string) (*Namespace, error)
	Resolve(ctx context.Context, specifier string) (string, error)
}

// Engine is the execution primitive. Compile methods may run concurrently with
// each other; Evaluate, Run and LoadBuiltin are serialized by the loader.
type Engine interface {
	CompileNative(ctx context.Context, src Source) (NativeUnit, error)
	CompileLegacy(ctx context.Context, src Source) (LegacyUnit, error)

	// BuiltinNames returns the export names of a builtin module.
	BuiltinNames(name string) ([]string, bool)
	// LoadBuiltin returns the export values of a builtin module.
	LoadBuiltin(ctx context.Context, name string) (map[string]any, error)
}

// NativeUnit is a compiled native module.
type NativeUnit interface {
	// Requests lists the statically imported specifiers in source order.
	Requests() []string
	// ExportNames lists the names the module exports itself or re-exports by name.
	ExportNames() []string
	// StarExports lists the specifiers whose exports are re-exported wholesale.
	StarExports() []string
	// Evaluate runs the module body and fills env.Namespace.
	Evaluate(ctx context.Context, env *Environment) error
}

// Environment carries a linked module's namespace and its resolved imports.
type Environment struct {
	Namespace *Namespace
	// Imports maps each requested specifier to the linked namespace.
	Imports map[string]*Namespace
	Host    Host
}

// LegacyUnit is a compiled legacy module.
type LegacyUnit interface {
	// ExportNames lists the statically detected export names.
	ExportNames() []string
	// Run executes the body once and returns the export values. The "default"
	// entry holds the whole exports value.
	Run(ctx context.Context, host Host) (map[string]any, error)
}
