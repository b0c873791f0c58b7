package loader

import (
	"context"
	"errors"
	"net/url"
	"path/filepath"
	"strings"
)

// location is a specifier resolved to a canonical identifier, before the
// module behind it is checked or read.
type location struct {
	id   string
	path string

	// builtin is the builtin module name for builtin references.
	builtin string
	// data is set for inline data: URL modules.
	data bool
}

// annotate fills in the request on a loader error that was built without one.
func annotate(err error, specifier, referrer string) error {
	var le *Error
	if !errors.As(err, &le) || le.Specifier != "" {
		return err
	}
	le.Specifier = specifier
	le.Referrer = referrer
	return err
}

// locate classifies a specifier and resolves it to a canonical identifier.
//
// Resolution order:
//  1. explicit builtin prefix, or a bare name in the builtin set
//  2. data: URLs
//  3. relative or absolute paths and file: URLs
//  4. other URL schemes, which are rejected
//  5. "#name" imports through the nearest manifest
//  6. bare packages through the module URL hook
func (l *Loader) locate(ctx context.Context, specifier, referrer string) (location, error) {
	if specifier == "" {
		return location{}, &Error{Kind: KindInvalidSpecifier, Specifier: specifier, Referrer: referrer, Detail: "specifier is empty"}
	}

	// Step 1: builtins
	prefix := l.opts.BuiltinPrefix
	if strings.HasPrefix(specifier, prefix) {
		name := strings.TrimPrefix(specifier, prefix)
		if _, ok := l.engine.BuiltinNames(name); !ok {
			return location{}, &Error{Kind: KindUnknownBuiltin, Specifier: specifier, Referrer: referrer}
		}
		return location{id: prefix + name, builtin: name}, nil
	}
	if _, ok := l.engine.BuiltinNames(specifier); ok {
		return location{id: prefix + specifier, builtin: specifier}, nil
	}

	// Step 2: inline data
	if strings.HasPrefix(specifier, "data:") {
		return location{id: specifier, data: true}, nil
	}

	// Step 3: paths and file URLs
	var (
		u   *url.URL
		err error
	)
	switch {
	case strings.HasPrefix(specifier, "."),
		strings.HasPrefix(specifier, "/") && strings.HasPrefix(referrer, "file:"):
		u, err = resolveRelative(specifier, referrer)
	case filepath.IsAbs(specifier):
		u, err = url.Parse(PathToFileURL(specifier))
	case strings.HasPrefix(specifier, "file:"):
		u, err = url.Parse(strings.ReplaceAll(specifier, `\`, "/"))
	case schemeOf(specifier) != "":
		// Step 4: everything else with a scheme
		return location{}, &Error{Kind: KindUnsupportedScheme, Specifier: specifier, Referrer: referrer, Detail: schemeOf(specifier)}
	default:
		// Steps 5 and 6: imports table and bare packages
		var raw string
		if strings.HasPrefix(specifier, "#") {
			raw, err = l.resolveImports(ctx, specifier, referrer)
		} else {
			if _, err = parsePackageSpecifier(specifier, referrer); err == nil {
				raw, err = l.resolveModuleURL()(ctx, specifier, referrer)
			}
		}
		if err != nil {
			return location{}, annotate(err, specifier, referrer)
		}
		u, err = url.Parse(raw)
	}
	if err != nil {
		return location{}, annotate(asInvalidSpecifier(err), specifier, referrer)
	}

	id, path, err := canonicalFileURL(u)
	if err != nil {
		return location{}, annotate(err, specifier, referrer)
	}
	return location{id: id, path: path}, nil
}

// resolveRelative resolves a path-like specifier against the referrer URL.
// Backslashes read as forward slashes, as they do for file URLs.
func resolveRelative(specifier, referrer string) (*url.URL, error) {
	base, err := url.Parse(referrer)
	if err != nil || base.Scheme != "file" {
		return nil, &Error{Kind: KindInvalidSpecifier, Detail: "relative specifier needs a file URL referrer"}
	}
	if base.Opaque != "" {
		base = &url.URL{Scheme: "file", Path: "/" + base.Opaque}
	}
	ref, err := url.Parse(strings.ReplaceAll(specifier, `\`, "/"))
	if err != nil {
		return nil, err
	}
	return base.ResolveReference(ref), nil
}

func asInvalidSpecifier(err error) error {
	var le *Error
	if errors.As(err, &le) {
		return err
	}
	return &Error{Kind: KindInvalidSpecifier, Cause: err}
}
