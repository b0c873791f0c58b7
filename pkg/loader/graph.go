package loader

import (
	"context"
	"fmt"
	"slices"
	"sort"
)

// entry is the pending load for one canonical identifier. done is closed once
// construction has finished, successfully or not.
type entry struct {
	done chan struct{}
	rec  *record
	err  error
}

type evalKey struct{}

// withEvalLock runs fn holding the evaluation lock. Calls made from module code
// already running under the lock carry it in ctx and do not take it again.
func (l *Loader) withEvalLock(ctx context.Context, fn func(context.Context) error) error {
	if held, _ := ctx.Value(evalKey{}).(*Loader); held == l {
		return fn(ctx)
	}
	l.evalMu.Lock()
	defer l.evalMu.Unlock()
	return fn(context.WithValue(ctx, evalKey{}, l))
}

// construct returns the record for loc, building it if this is the first
// request for the identifier. Concurrent requests for one identifier share a
// single build and its outcome.
func (l *Loader) construct(ctx context.Context, loc location, specifier, referrer string) (*record, error) {
	l.mu.Lock()
	if e, ok := l.entries[loc.id]; ok {
		l.mu.Unlock()
		select {
		case <-e.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if e.err != nil {
			return nil, retag(e.err, specifier, referrer)
		}
		return e.rec, nil
	}
	e := &entry{done: make(chan struct{})}
	l.entries[loc.id] = e
	l.mu.Unlock()

	e.rec, e.err = l.build(ctx, loc, specifier, referrer)
	if e.err != nil && e.rec == nil {
		// Nothing was acquired, so a later request may still find the module.
		l.mu.Lock()
		delete(l.entries, loc.id)
		l.mu.Unlock()
		l.log.Debug("module build failed", "id", loc.id, "err", e.err)
	}
	close(e.done)
	return e.rec, e.err
}

// build checks, reads and compiles one module. A module whose source was read
// but failed to compile is returned as an errored record along with the error.
func (l *Loader) build(ctx context.Context, loc location, specifier, referrer string) (*record, error) {
	var r *record
	switch {
	case loc.builtin != "":
		r = l.newBuiltinRecord(loc)
	default:
		src, err := l.source(ctx, loc, specifier, referrer)
		if err != nil {
			return nil, err
		}
		if src.Format == FormatNative {
			unit, err := l.engine.CompileNative(ctx, src)
			if err != nil {
				return compileFailed(loc, src.Format, err)
			}
			r = &record{id: loc.id, path: loc.path, format: FormatNative, native: unit}
		} else {
			unit, err := l.engine.CompileLegacy(ctx, src)
			if err != nil {
				return compileFailed(loc, src.Format, err)
			}
			r = l.newLegacyRecord(loc, unit)
		}
	}
	r.host = &moduleHost{l: l, id: r.id, path: r.path}
	r.deps = make(map[string]*record)
	l.log.Debug("module constructed", "id", r.id, "format", r.format)
	return r, nil
}

func compileFailed(loc location, format Format, err error) (*record, error) {
	err = fmt.Errorf("compiling %s: %w", loc.id, err)
	return &record{id: loc.id, path: loc.path, format: format, status: StatusErrored, err: err}, err
}

// source acquires the source text for a file or data location.
func (l *Loader) source(ctx context.Context, loc location, specifier, referrer string) (Source, error) {
	if loc.data {
		text, err := decodeDataURL(loc.id)
		if err != nil {
			return Source{}, annotate(err, specifier, referrer)
		}
		return Source{Identifier: loc.id, Text: text, Format: FormatNative}, nil
	}

	if err := l.checkModulePath(loc.path, specifier, referrer); err != nil {
		return Source{}, err
	}
	format, err := l.detectFormat(ctx, loc.path, specifier, referrer)
	if err != nil {
		return Source{}, err
	}
	text, err := l.readTextFile()(ctx, loc.path)
	if err != nil {
		return Source{}, err
	}
	return Source{Identifier: loc.id, Path: loc.path, Text: text, Format: format}, nil
}

// fail marks r as errored. A record that failed to link never ran, so the next
// request links it again; an evaluation failure is final and shared by every
// later request.
func (l *Loader) fail(r *record, err error, relink bool) error {
	r.status = StatusErrored
	r.err = err
	r.relink = relink
	return err
}

// link resolves and constructs the static dependencies of r, recursively. A
// dependency still linking is part of a cycle and counts as satisfied.
func (l *Loader) link(ctx context.Context, r *record) error {
	switch r.status {
	case StatusErrored:
		if !r.relink {
			return r.err
		}
		l.log.Debug("relinking module", "id", r.id, "previous", r.err)
	case StatusUnlinked:
	default:
		return nil
	}
	r.status = StatusLinking

	for _, spec := range r.requests() {
		dep, ok := r.deps[spec]
		if !ok {
			loc, err := l.locate(ctx, spec, r.id)
			if err != nil {
				return l.fail(r, err, true)
			}
			if dep, err = l.construct(ctx, loc, spec, r.id); err != nil {
				return l.fail(r, err, true)
			}
			r.deps[spec] = dep
			if !slices.Contains(r.order, dep) {
				r.order = append(r.order, dep)
			}
		}
		if err := l.link(ctx, dep); err != nil {
			return l.fail(r, err, true)
		}
	}

	if r.format == FormatNative {
		r.ns = newNamespace(r.id, FormatNative, l.exportNames(r, map[*record]bool{}))
	}
	r.status = StatusLinked
	l.log.Debug("module linked", "id", r.id, "deps", len(r.order))
	return nil
}

// exportNames collects the names of a native record including star re-exports.
// "default" is never re-exported through a star.
func (l *Loader) exportNames(r *record, seen map[*record]bool) []string {
	if seen[r] {
		return nil
	}
	seen[r] = true
	if r.native == nil {
		if r.ns == nil {
			return nil
		}
		return r.ns.Names()
	}
	names := slices.Clone(r.native.ExportNames())
	for _, spec := range r.native.StarExports() {
		dep, ok := r.deps[spec]
		if !ok {
			continue
		}
		for _, name := range l.exportNames(dep, seen) {
			if name != "default" {
				names = append(names, name)
			}
		}
	}
	return names
}

// evaluate runs r after its dependencies, in post order. A record already
// evaluating belongs to a cycle that is being evaluated further up the stack.
func (l *Loader) evaluate(ctx context.Context, r *record) error {
	switch r.status {
	case StatusEvaluated, StatusEvaluating:
		return nil
	case StatusErrored:
		return r.err
	}
	r.status = StatusEvaluating

	for _, dep := range r.order {
		if err := l.evaluate(ctx, dep); err != nil {
			return l.fail(r, err, false)
		}
	}

	var err error
	if r.format == FormatNative {
		err = l.evaluateNative(ctx, r)
	} else {
		err = l.evaluateSynthetic(ctx, r)
	}
	if err != nil {
		return l.fail(r, err, false)
	}
	r.status = StatusEvaluated
	l.log.Debug("module evaluated", "id", r.id)
	return nil
}

func (l *Loader) evaluateNative(ctx context.Context, r *record) error {
	env := &Environment{
		Namespace: r.ns,
		Imports:   make(map[string]*Namespace, len(r.deps)),
		Host:      r.host,
	}
	for spec, dep := range r.deps {
		env.Imports[spec] = dep.ns
	}
	if err := r.native.Evaluate(ctx, env); err != nil {
		return err
	}

	// Copy star re-exports the module did not define itself.
	own := r.native.ExportNames()
	for _, name := range r.ns.Names() {
		if slices.Contains(own, name) {
			continue
		}
		for _, spec := range r.native.StarExports() {
			dep, ok := r.deps[spec]
			if !ok || dep.ns == nil {
				continue
			}
			if v, ok := dep.ns.Get(name); ok {
				if err := r.ns.Set(name, v); err != nil {
					return fmt.Errorf("re-exporting %s from %s: %w", name, dep.id, err)
				}
				break
			}
		}
	}
	return nil
}

// Graph returns a snapshot of every module in the cache, sorted by identifier.
func (l *Loader) Graph(ctx context.Context) []ModuleInfo {
	var out []ModuleInfo
	_ = l.withEvalLock(ctx, func(context.Context) error {
		l.mu.Lock()
		recs := make([]*record, 0, len(l.entries))
		for _, e := range l.entries {
			select {
			case <-e.done:
				if e.rec != nil {
					recs = append(recs, e.rec)
				}
			default:
			}
		}
		l.mu.Unlock()

		for _, r := range recs {
			info := ModuleInfo{
				Identifier: r.id,
				Path:       r.path,
				Format:     r.format.String(),
				Status:     r.status.String(),
			}
			if r.ns != nil {
				info.Exports = r.ns.Names()
			}
			for _, dep := range r.order {
				info.Dependencies = append(info.Dependencies, dep.id)
			}
			out = append(out, info)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Identifier < out[j].Identifier })
	return out
}
