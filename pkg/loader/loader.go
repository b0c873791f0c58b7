package loader

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"
)

// Loader resolves, links and evaluates modules. Each canonical identifier is
// loaded at most once per Loader; separate Loaders share nothing.
type Loader struct {
	fs     afero.Fs
	engine Engine
	opts   Options
	log    *log.Logger

	manifests *manifestCache

	hooksMu    sync.RWMutex
	readText   ReadTextFileFunc
	resolveURL ResolveModuleURLFunc

	mu      sync.Mutex
	entries map[string]*entry

	// evalMu serializes linking and evaluation.
	evalMu sync.Mutex
}

// New creates a Loader reading from fsys and executing modules with engine.
func New(fsys afero.Fs, engine Engine, opts ...Option) *Loader {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.Logger == nil {
		o.Logger = discardLogger()
	}

	l := &Loader{
		fs:        fsys,
		engine:    engine,
		opts:      o,
		log:       o.Logger,
		manifests: newManifestCache(),
		entries:   make(map[string]*entry),
	}
	l.readText = l.defaultReadTextFile
	l.resolveURL = l.resolvePackage
	return l
}

// Options returns the conventions the loader was created with.
func (l *Loader) Options() Options {
	return l.opts
}

// Import loads specifier relative to the Go source file of its caller.
func (l *Loader) Import(ctx context.Context, specifier string) (*Namespace, error) {
	referrer, err := callerIdentity(1)
	if err != nil {
		return nil, annotate(err, specifier, "")
	}
	return l.ImportFrom(ctx, specifier, referrer)
}

// ImportFrom loads specifier on behalf of referrer, a canonical identifier or
// an absolute path. The returned namespace is fully evaluated.
func (l *Loader) ImportFrom(ctx context.Context, specifier, referrer string) (*Namespace, error) {
	referrer = normalizeReferrer(referrer)

	loc, err := l.locate(ctx, specifier, referrer)
	if err != nil {
		return nil, err
	}
	l.log.Debug("import", "specifier", specifier, "referrer", referrer, "id", loc.id)

	r, err := l.construct(ctx, loc, specifier, referrer)
	if err != nil {
		return nil, err
	}

	err = l.withEvalLock(ctx, func(ctx context.Context) error {
		if err := l.link(ctx, r); err != nil {
			return err
		}
		return l.evaluate(ctx, r)
	})
	if err != nil {
		return nil, err
	}
	return r.ns, nil
}

// Resolution is the outcome of resolving a specifier without loading it.
type Resolution struct {
	Identifier string `json:"identifier" yaml:"identifier"`
	Path       string `json:"path,omitempty" yaml:"path,omitempty"`
	Format     Format `json:"-" yaml:"-"`
}

// Resolve resolves specifier for referrer and determines the module format.
func (l *Loader) Resolve(ctx context.Context, specifier, referrer string) (Resolution, error) {
	referrer = normalizeReferrer(referrer)

	loc, err := l.locate(ctx, specifier, referrer)
	if err != nil {
		return Resolution{}, err
	}
	res := Resolution{Identifier: loc.id, Path: loc.path}
	switch {
	case loc.builtin != "":
		res.Format = FormatBuiltin
	case loc.data:
		if _, err := decodeDataURL(loc.id); err != nil {
			return Resolution{}, annotate(err, specifier, referrer)
		}
		res.Format = FormatNative
	default:
		if err := l.checkModulePath(loc.path, specifier, referrer); err != nil {
			return Resolution{}, err
		}
		if res.Format, err = l.detectFormat(ctx, loc.path, specifier, referrer); err != nil {
			return Resolution{}, err
		}
	}
	return res, nil
}
