package loader

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
)

// Format is the source format of a module.
type Format uint8

const (
	// FormatNative is declarative import/export source, linked before evaluation.
	FormatNative Format = iota + 1
	// FormatLegacy is a synchronous body assigning to a shared exports object.
	FormatLegacy
	// FormatBuiltin is a host-provided namespace.
	FormatBuiltin
)

// String implements fmt.Stringer.
func (f Format) String() string {
	switch f {
	case FormatNative:
		return "native"
	case FormatLegacy:
		return "legacy"
	case FormatBuiltin:
		return "builtin"
	}
	return "unknown"
}

// detectFormat determines the format of the file at path from its extension,
// consulting the nearest ancestor manifest for the ambiguous extension.
func (l *Loader) detectFormat(ctx context.Context, path, specifier, referrer string) (Format, error) {
	ext := filepath.Ext(path)
	switch ext {
	case l.opts.NativeExt:
		return FormatNative, nil
	case l.opts.LegacyExt:
		return FormatLegacy, nil
	case l.opts.AmbiguousExt:
		m, dir, err := l.packageScope(ctx, filepath.Dir(path), specifier, referrer)
		if err != nil {
			return 0, err
		}
		if m != nil && m.Native() {
			l.log.Debug("format from manifest", "path", path, "scope", dir)
			return FormatNative, nil
		}
		return FormatLegacy, nil
	}
	return 0, &Error{Kind: KindUnknownExtension, Specifier: specifier, Referrer: referrer, Path: path, Detail: ext}
}

// checkModulePath rejects directories and missing files. Other filesystem
// errors are returned unchanged.
func (l *Loader) checkModulePath(path, specifier, referrer string) error {
	if strings.HasSuffix(path, "/") || strings.HasSuffix(path, `\`) {
		return &Error{Kind: KindUnsupportedDirImport, Specifier: specifier, Referrer: referrer, Path: path}
	}
	info, err := l.fs.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &Error{Kind: KindModuleNotFound, Specifier: specifier, Referrer: referrer, Path: path}
		}
		return err
	}
	if info.IsDir() {
		return &Error{Kind: KindUnsupportedDirImport, Specifier: specifier, Referrer: referrer, Path: path}
	}
	return nil
}

// fileExists reports whether path names an existing regular file. Errors other
// than absence are returned.
func (l *Loader) fileExists(path string) (bool, error) {
	info, err := l.fs.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return info.Mode().IsRegular(), nil
}
