// Package loader implements a dynamic module loader.
//
// A specifier is resolved against the identity of the module that issued it
// into a canonical identifier (a file URL, a builtin pseudo-URL or an inline
// data: URL). The identifier is the cache key: every request that resolves to
// the same identifier observes the same module instance, evaluated once.
//
// Source files are native or legacy format. The native and legacy extensions
// decide directly; the ambiguous extension is decided by the nearest ancestor
// package manifest. Legacy and builtin modules are adapted into synthetic
// modules with a fixed export list so they link like native ones.
//
// Compiling and running source text is delegated to an Engine; see the
// jsengine subpackage for the ECMAScript implementation.
package loader
