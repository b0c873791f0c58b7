package jsengine

import (
	"context"
	"fmt"
	"maps"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dop251/goja"
)

// builtinModule is a module provided by the engine rather than by a file.
type builtinModule struct {
	names []string
	load  func(e *Engine) map[string]any
}

func defaultBuiltins() map[string]builtinModule {
	return map[string]builtinModule{
		"path": {
			names: []string{"basename", "default", "dirname", "extname", "join", "resolve", "sep"},
			load:  loadPath,
		},
		"console": {
			names: []string{"debug", "default", "error", "info", "log", "warn"},
			load:  loadConsole,
		},
	}
}

// hostBuiltin adapts a Go map into a builtin module.
func hostBuiltin(exports map[string]any) builtinModule {
	names := slices.Sorted(maps.Keys(exports))
	if _, ok := exports["default"]; !ok {
		names = append(names, "default")
		slices.Sort(names)
	}
	return builtinModule{
		names: names,
		load: func(*Engine) map[string]any {
			return maps.Clone(exports)
		},
	}
}

// BuiltinNames returns the export names of a builtin module.
func (e *Engine) BuiltinNames(name string) ([]string, bool) {
	b, ok := e.builtins[name]
	if !ok {
		return nil, false
	}
	return slices.Clone(b.names), true
}

// LoadBuiltin returns the export values of a builtin module as runtime values.
// "default" holds an object carrying every other export.
func (e *Engine) LoadBuiltin(ctx context.Context, name string) (map[string]any, error) {
	if values, ok := e.loaded[name]; ok {
		return values, nil
	}
	b, ok := e.builtins[name]
	if !ok {
		return nil, fmt.Errorf("no builtin module %q", name)
	}

	values := make(map[string]any, len(b.names))
	err := e.run(ctx, func() error {
		raw := b.load(e)
		all := e.rt.NewObject()
		for key, v := range raw {
			jv := e.toJS(v)
			values[key] = jv
			if key != "default" {
				_ = all.Set(key, jv)
			}
		}
		if _, ok := values["default"]; !ok {
			values["default"] = all
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.loaded[name] = values
	return values, nil
}

func loadPath(*Engine) map[string]any {
	return map[string]any{
		"sep":      string(filepath.Separator),
		"join":     func(parts ...string) string { return filepath.Join(parts...) },
		"dirname":  filepath.Dir,
		"basename": pathBase,
		"extname":  filepath.Ext,
		"resolve":  pathResolve,
	}
}

// pathBase returns the last element of p, trimming ext when it is a suffix.
func pathBase(p string, ext ...string) string {
	base := filepath.Base(p)
	if len(ext) > 0 && ext[0] != "" && ext[0] != base {
		base = strings.TrimSuffix(base, ext[0])
	}
	return base
}

// pathResolve resolves parts right to left until an absolute path is formed.
func pathResolve(parts ...string) (string, error) {
	var joined string
	for i := len(parts) - 1; i >= 0; i-- {
		if parts[i] == "" {
			continue
		}
		joined = filepath.Join(parts[i], joined)
		if filepath.IsAbs(joined) {
			return filepath.Clean(joined), nil
		}
	}
	return filepath.Abs(joined)
}

func loadConsole(e *Engine) map[string]any {
	logf := func(level string) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			parts := make([]string, len(call.Arguments))
			for i, arg := range call.Arguments {
				parts[i] = arg.String()
			}
			msg := strings.Join(parts, " ")
			switch level {
			case "debug":
				e.log.Debug(msg)
			case "warn":
				e.log.Warn(msg)
			case "error":
				e.log.Error(msg)
			default:
				e.log.Info(msg)
			}
			return goja.Undefined()
		}
	}
	return map[string]any{
		"log":   logf("info"),
		"info":  logf("info"),
		"debug": logf("debug"),
		"warn":  logf("warn"),
		"error": logf("error"),
	}
}
