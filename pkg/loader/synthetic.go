package loader

import (
	"context"
	"fmt"
	"slices"
)

// newBuiltinRecord adapts a builtin module. Every name the host provides is exported.
func (l *Loader) newBuiltinRecord(loc location) *record {
	names, _ := l.engine.BuiltinNames(loc.builtin)
	r := &record{
		id:      loc.id,
		format:  FormatBuiltin,
		builtin: loc.builtin,
	}
	r.ns = newNamespace(loc.id, FormatBuiltin, names)
	return r
}

// newLegacyRecord adapts a compiled legacy module. The statically detected
// names are exported, plus "default" bound to the whole exports value.
func (l *Loader) newLegacyRecord(loc location, unit LegacyUnit) *record {
	names := unit.ExportNames()
	if !slices.Contains(names, "default") {
		names = append(slices.Clone(names), "default")
	}
	r := &record{
		id:     loc.id,
		path:   loc.path,
		format: FormatLegacy,
		legacy: unit,
	}
	r.ns = newNamespace(loc.id, FormatLegacy, names)
	return r
}

// evaluateSynthetic fills a synthetic namespace.
func (l *Loader) evaluateSynthetic(ctx context.Context, r *record) error {
	var (
		values map[string]any
		err    error
	)
	if r.format == FormatBuiltin {
		values, err = l.engine.LoadBuiltin(ctx, r.builtin)
	} else {
		values, err = r.legacy.Run(ctx, r.host)
	}
	if err != nil {
		return err
	}
	for _, name := range r.ns.Names() {
		if err := r.ns.Set(name, values[name]); err != nil {
			return fmt.Errorf("populating %s: %w", r.id, err)
		}
	}
	return nil
}
