package loader

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"path/filepath"
	"sync"
	"syscall"

	"golang.org/x/sync/singleflight"
)

// Manifest is a parsed package descriptor. The mapping tables are kept raw and
// interpreted only when a lookup consults them.
type Manifest struct {
	// Path is the manifest file path.
	Path string

	// Type is the format flag; "module" selects the native format.
	Type string

	// Main is the entry point hint; HasMain is false when absent or not a string.
	Main    string
	HasMain bool

	exports json.RawMessage
	imports json.RawMessage
}

// Native reports whether the manifest declares the native format.
func (m *Manifest) Native() bool {
	return m.Type == "module"
}

// HasExports reports whether an exports table is declared.
func (m *Manifest) HasExports() bool {
	return len(m.exports) > 0
}

// HasImports reports whether an imports table is declared.
func (m *Manifest) HasImports() bool {
	return len(m.imports) > 0
}

func parseManifest(path, text string) (*Manifest, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		return nil, errors.New("manifest is not an object")
	}

	m := &Manifest{Path: path}
	if raw, ok := fields["type"]; ok {
		_ = json.Unmarshal(raw, &m.Type)
	}
	if raw, ok := fields["main"]; ok {
		if err := json.Unmarshal(raw, &m.Main); err == nil && string(raw) != "null" {
			m.HasMain = true
		}
	}
	if raw, ok := fields["exports"]; ok && string(raw) != "null" {
		m.exports = raw
	}
	if raw, ok := fields["imports"]; ok && string(raw) != "null" {
		m.imports = raw
	}
	return m, nil
}

type manifestResult struct {
	manifest *Manifest
	parseErr error
}

// manifestCache memoizes manifests per directory for the loader's lifetime.
// A syntax failure is cached as the raw parse error so every request can build
// its own InvalidManifest error. I/O failures are not cached.
type manifestCache struct {
	group   singleflight.Group
	mu      sync.RWMutex
	entries map[string]manifestResult
}

func newManifestCache() *manifestCache {
	return &manifestCache{entries: make(map[string]manifestResult)}
}

// manifest returns the manifest in dir, or nil when there is none. A malformed
// manifest fails with InvalidManifest tagged with the given request.
func (l *Loader) manifest(ctx context.Context, dir, specifier, referrer string) (*Manifest, error) {
	res, err := l.manifests.get(dir, func() (manifestResult, error) {
		return l.loadManifest(ctx, dir)
	})
	if err != nil {
		return nil, err
	}
	if res.parseErr != nil {
		return nil, &Error{
			Kind:      KindInvalidManifest,
			Specifier: specifier,
			Referrer:  referrer,
			Path:      filepath.Join(dir, l.opts.ManifestName),
			Cause:     res.parseErr,
		}
	}
	return res.manifest, nil
}

func (c *manifestCache) get(dir string, load func() (manifestResult, error)) (manifestResult, error) {
	c.mu.RLock()
	res, ok := c.entries[dir]
	c.mu.RUnlock()
	if ok {
		return res, nil
	}

	v, err, _ := c.group.Do(dir, func() (any, error) {
		c.mu.RLock()
		res, ok := c.entries[dir]
		c.mu.RUnlock()
		if ok {
			return res, nil
		}
		res, err := load()
		if err != nil {
			return manifestResult{}, err
		}
		c.mu.Lock()
		c.entries[dir] = res
		c.mu.Unlock()
		return res, nil
	})
	if err != nil {
		return manifestResult{}, err
	}
	return v.(manifestResult), nil
}

func (l *Loader) loadManifest(ctx context.Context, dir string) (manifestResult, error) {
	path := filepath.Join(dir, l.opts.ManifestName)

	info, err := l.fs.Stat(path)
	switch {
	case err != nil && absentEntry(err):
		return manifestResult{}, nil
	case err != nil:
		return manifestResult{}, err
	case info.IsDir():
		return manifestResult{}, nil
	}

	text, err := l.readTextFile()(ctx, path)
	if err != nil {
		if absentEntry(err) {
			return manifestResult{}, nil
		}
		return manifestResult{}, err
	}

	m, err := parseManifest(path, text)
	if err != nil {
		l.log.Debug("invalid manifest", "path", path, "err", err)
		return manifestResult{parseErr: err}, nil
	}
	l.log.Debug("manifest loaded", "path", path, "type", m.Type)
	return manifestResult{manifest: m}, nil
}

// absentEntry reports whether a filesystem error means "no manifest here".
// Self-referencing links count as absent.
func absentEntry(err error) bool {
	return errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ELOOP) || errors.Is(err, syscall.EISDIR)
}

// packageScope walks from dir upward and returns the first manifest found. The
// walk stops at the root or at a dependency directory boundary.
func (l *Loader) packageScope(ctx context.Context, dir, specifier, referrer string) (*Manifest, string, error) {
	for {
		if filepath.Base(dir) == l.opts.DependencyDir {
			return nil, "", nil
		}
		m, err := l.manifest(ctx, dir, specifier, referrer)
		if err != nil {
			return nil, "", err
		}
		if m != nil {
			return m, dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, "", nil
		}
		dir = parent
	}
}
