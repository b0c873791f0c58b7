package loader

import (
	"context"

	"github.com/spf13/afero"
)

// ReadTextFileFunc reads a source or manifest file. Returning an error that
// matches fs.ErrNotExist for a manifest means "no manifest here".
type ReadTextFileFunc func(ctx context.Context, path string) (string, error)

// ResolveModuleURLFunc resolves a bare package specifier to a file URL. It is
// called with the specifier as written and the full referrer identifier, and
// its result is trusted.
type ResolveModuleURLFunc func(ctx context.Context, specifier, referrer string) (string, error)

// SetReadTextFile replaces the file reading hook and returns the previous one.
// A nil fn restores the default.
func (l *Loader) SetReadTextFile(fn ReadTextFileFunc) ReadTextFileFunc {
	l.hooksMu.Lock()
	defer l.hooksMu.Unlock()
	prev := l.readText
	if fn == nil {
		fn = l.defaultReadTextFile
	}
	l.readText = fn
	return prev
}

// SetResolveModuleURL replaces the package resolution hook and returns the
// previous one. A nil fn restores the default.
func (l *Loader) SetResolveModuleURL(fn ResolveModuleURLFunc) ResolveModuleURLFunc {
	l.hooksMu.Lock()
	defer l.hooksMu.Unlock()
	prev := l.resolveURL
	if fn == nil {
		fn = l.resolvePackage
	}
	l.resolveURL = fn
	return prev
}

// ResolvePackage exposes the default package resolution so replacement hooks
// can delegate to it.
func (l *Loader) ResolvePackage(ctx context.Context, specifier, referrer string) (string, error) {
	return l.resolvePackage(ctx, specifier, referrer)
}

func (l *Loader) readTextFile() ReadTextFileFunc {
	l.hooksMu.RLock()
	defer l.hooksMu.RUnlock()
	return l.readText
}

func (l *Loader) resolveModuleURL() ResolveModuleURLFunc {
	l.hooksMu.RLock()
	defer l.hooksMu.RUnlock()
	return l.resolveURL
}

func (l *Loader) defaultReadTextFile(_ context.Context, path string) (string, error) {
	b, err := afero.ReadFile(l.fs, path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
