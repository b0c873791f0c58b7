package loader_test

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/opmodel/modload/pkg/loader"
)

// scriptEngine is a line-oriented stand-in for a real execution engine.
//
// Native source:
//
//	import <spec>            static dependency
//	export <name> = <value>  export a string
//	export * from <spec>     star re-export
//	dynamic <spec>           import <spec> while evaluating
//	fail <message>           evaluation error
//
// Legacy source:
//
//	exports.<name> = <value>
//	require <spec>
type scriptEngine struct {
	mu        sync.Mutex
	evals     map[string]int
	compiles  map[string]int
	envs      map[string]*loader.Environment
	order     []string
	dynamic   map[string]*loader.Namespace
	builtins  map[string]map[string]any
	compileFn func(src loader.Source) error
}

func newScriptEngine() *scriptEngine {
	return &scriptEngine{
		evals:    map[string]int{},
		compiles: map[string]int{},
		envs:     map[string]*loader.Environment{},
		dynamic:  map[string]*loader.Namespace{},
		builtins: map[string]map[string]any{
			"fs":   {"readFile": "fs.readFile", "writeFile": "fs.writeFile"},
			"path": {"join": "path.join"},
		},
	}
}

func (e *scriptEngine) evalCount(id string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.evals[id]
}

func (e *scriptEngine) compileCount(id string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.compiles[id]
}

func (e *scriptEngine) evalOrder() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.order...)
}

func (e *scriptEngine) recordEval(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.evals[id]++
	e.order = append(e.order, id)
}

func (e *scriptEngine) BuiltinNames(name string) ([]string, bool) {
	b, ok := e.builtins[name]
	if !ok {
		return nil, false
	}
	names := make([]string, 0, len(b))
	for k := range b {
		names = append(names, k)
	}
	return names, true
}

func (e *scriptEngine) LoadBuiltin(_ context.Context, name string) (map[string]any, error) {
	return e.builtins[name], nil
}

func (e *scriptEngine) CompileNative(_ context.Context, src loader.Source) (loader.NativeUnit, error) {
	e.mu.Lock()
	e.compiles[src.Identifier]++
	fn := e.compileFn
	e.mu.Unlock()
	if fn != nil {
		if err := fn(src); err != nil {
			return nil, err
		}
	}

	u := &nativeScript{engine: e, id: src.Identifier, values: map[string]string{}}
	sc := bufio.NewScanner(strings.NewReader(src.Text))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "":
		case strings.HasPrefix(line, "import "):
			u.requests = append(u.requests, strings.TrimPrefix(line, "import "))
		case strings.HasPrefix(line, "export * from "):
			spec := strings.TrimPrefix(line, "export * from ")
			u.requests = append(u.requests, spec)
			u.stars = append(u.stars, spec)
		case strings.HasPrefix(line, "export "):
			name, value, ok := strings.Cut(strings.TrimPrefix(line, "export "), " = ")
			if !ok {
				return nil, fmt.Errorf("%s: malformed export %q", src.Identifier, line)
			}
			u.names = append(u.names, name)
			u.values[name] = value
		case strings.HasPrefix(line, "dynamic "):
			u.dynamic = append(u.dynamic, strings.TrimPrefix(line, "dynamic "))
		case strings.HasPrefix(line, "fail "):
			u.fail = strings.TrimPrefix(line, "fail ")
		default:
			return nil, fmt.Errorf("%s: syntax error %q", src.Identifier, line)
		}
	}
	return u, nil
}

func (e *scriptEngine) CompileLegacy(_ context.Context, src loader.Source) (loader.LegacyUnit, error) {
	e.mu.Lock()
	e.compiles[src.Identifier]++
	e.mu.Unlock()

	u := &legacyScript{engine: e, id: src.Identifier, values: map[string]any{}}
	for _, line := range strings.Split(src.Text, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "":
		case strings.HasPrefix(line, "exports."):
			name, value, ok := strings.Cut(strings.TrimPrefix(line, "exports."), " = ")
			if !ok {
				return nil, fmt.Errorf("%s: malformed export %q", src.Identifier, line)
			}
			u.names = append(u.names, name)
			u.values[name] = value
		case strings.HasPrefix(line, "require "):
			u.requires = append(u.requires, strings.TrimPrefix(line, "require "))
		default:
			return nil, fmt.Errorf("%s: syntax error %q", src.Identifier, line)
		}
	}
	return u, nil
}

type nativeScript struct {
	engine   *scriptEngine
	id       string
	requests []string
	stars    []string
	names    []string
	values   map[string]string
	dynamic  []string
	fail     string
}

func (u *nativeScript) Requests() []string    { return u.requests }
func (u *nativeScript) ExportNames() []string { return u.names }
func (u *nativeScript) StarExports() []string { return u.stars }

func (u *nativeScript) Evaluate(ctx context.Context, env *loader.Environment) error {
	u.engine.recordEval(u.id)
	u.engine.mu.Lock()
	u.engine.envs[u.id] = env
	u.engine.mu.Unlock()

	for _, spec := range u.dynamic {
		ns, err := env.Host.Import(ctx, spec)
		if err != nil {
			return err
		}
		u.engine.mu.Lock()
		u.engine.dynamic[u.id+" -> "+spec] = ns
		u.engine.mu.Unlock()
	}
	if u.fail != "" {
		return errors.New(u.fail)
	}
	for name, value := range u.values {
		if err := env.Namespace.Set(name, value); err != nil {
			return err
		}
	}
	return nil
}

type legacyScript struct {
	engine   *scriptEngine
	id       string
	names    []string
	values   map[string]any
	requires []string
}

func (u *legacyScript) ExportNames() []string { return u.names }

func (u *legacyScript) Run(ctx context.Context, host loader.Host) (map[string]any, error) {
	u.engine.recordEval(u.id)
	for _, spec := range u.requires {
		if _, err := host.Import(ctx, spec); err != nil {
			return nil, err
		}
	}
	out := make(map[string]any, len(u.values)+1)
	exports := make(map[string]any, len(u.values))
	for k, v := range u.values {
		out[k] = v
		exports[k] = v
	}
	out["default"] = exports
	return out, nil
}
