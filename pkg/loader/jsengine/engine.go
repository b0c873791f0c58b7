// Package jsengine executes native and legacy ECMAScript modules for the
// loader on an embedded goja runtime.
package jsengine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/dop251/goja"

	"github.com/opmodel/modload/pkg/loader"
)

const (
	legacyPrologue = "(function (exports, require, module, __filename, __dirname, " + paramImport + ") {"
	legacyEpilogue = "\n})"

	// importFactory builds the per-module dynamic import function. load returns
	// the namespace object and, for a module still awaiting, its promise.
	importFactory = `(function (load) {
	return function (specifier) {
		return (async function () {
			const r = load(String(specifier));
			if (r.pending !== undefined) await r.pending;
			return r.ns;
		})();
	};
})`
)

// Engine runs modules on a single goja runtime. The runtime is only touched by
// evaluation, which the loader serializes; compilation is safe to call
// concurrently.
type Engine struct {
	rt  *goja.Runtime
	log *log.Logger

	builtins map[string]builtinModule
	loaded   map[string]map[string]any

	// stack holds the contexts of the evaluations in progress, innermost last.
	stack []context.Context

	getters  map[*loader.Namespace]map[string]goja.Callable
	stars    map[*loader.Namespace][]*loader.Namespace
	pending  map[*loader.Namespace]*pendingModule
	objects  map[*loader.Namespace]*goja.Object
	objectNS map[*goja.Object]*loader.Namespace
	thrown   map[*goja.Object]error

	// running maps a legacy module still executing to its module object.
	running map[string]*goja.Object

	newImport goja.Callable
}

type pendingModule struct {
	promise *goja.Promise
	value   goja.Value
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger routes the console builtin and engine diagnostics to logger.
func WithLogger(logger *log.Logger) Option {
	return func(e *Engine) {
		e.log = logger
	}
}

// WithBuiltin registers a host builtin module. Every key of exports becomes a
// named export, and "default" holds the whole set unless exports defines it.
func WithBuiltin(name string, exports map[string]any) Option {
	return func(e *Engine) {
		e.builtins[name] = hostBuiltin(exports)
	}
}

// New creates an Engine with the path and console builtins.
func New(opts ...Option) *Engine {
	e := &Engine{
		rt:       goja.New(),
		log:      log.New(io.Discard),
		builtins: defaultBuiltins(),
		loaded:   make(map[string]map[string]any),
		getters:  make(map[*loader.Namespace]map[string]goja.Callable),
		stars:    make(map[*loader.Namespace][]*loader.Namespace),
		pending:  make(map[*loader.Namespace]*pendingModule),
		objects:  make(map[*loader.Namespace]*goja.Object),
		objectNS: make(map[*goja.Object]*loader.Namespace),
		thrown:   make(map[*goja.Object]error),
		running:  make(map[string]*goja.Object),
	}
	for _, opt := range opts {
		opt(e)
	}

	factory, err := e.rt.RunString(importFactory)
	if err != nil {
		panic(fmt.Sprintf("jsengine: import factory: %v", err))
	}
	e.newImport, _ = goja.AssertFunction(factory)
	return e
}

var _ loader.Engine = (*Engine)(nil)

// CompileNative lowers and compiles a native module.
func (e *Engine) CompileNative(_ context.Context, src loader.Source) (loader.NativeUnit, error) {
	low, err := lowerNative(src.Text)
	if err != nil {
		return nil, err
	}
	// The body carries its own "use strict"; the wrapper scopes live bindings.
	prog, err := goja.Compile(sourceName(src), low.code, false)
	if err != nil {
		return nil, err
	}
	return &nativeUnit{e: e, prog: prog, low: low}, nil
}

// CompileLegacy compiles a legacy module inside its function wrapper.
func (e *Engine) CompileLegacy(_ context.Context, src loader.Source) (loader.LegacyUnit, error) {
	text, names, err := lowerLegacy(src.Text)
	if err != nil {
		return nil, err
	}
	prog, err := goja.Compile(sourceName(src), legacyPrologue+text+legacyEpilogue, false)
	if err != nil {
		return nil, err
	}
	return &legacyUnit{e: e, prog: prog, names: names}, nil
}

func sourceName(src loader.Source) string {
	if src.Path != "" {
		return src.Path
	}
	return src.Identifier
}

// run executes fn as one evaluation step. The outermost step owns the
// runtime: it arms interruption on ctx and settles modules left awaiting by
// nested steps once the job queue has drained.
func (e *Engine) run(ctx context.Context, fn func() error) error {
	e.stack = append(e.stack, ctx)
	outer := len(e.stack) == 1
	if outer {
		stop := context.AfterFunc(ctx, func() {
			e.rt.Interrupt(ctx.Err())
		})
		defer func() {
			stop()
			e.rt.ClearInterrupt()
		}()
	}

	err := fn()

	e.stack = e.stack[:len(e.stack)-1]
	if outer {
		e.settlePending()
		clear(e.thrown)
	}
	if err != nil && ctx.Err() != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			return ctx.Err()
		}
	}
	return err
}

// ctx returns the context of the innermost evaluation.
func (e *Engine) ctx() context.Context {
	if len(e.stack) == 0 {
		return context.Background()
	}
	return e.stack[len(e.stack)-1]
}

func (e *Engine) settlePending() {
	for ns, p := range e.pending {
		switch p.promise.State() {
		case goja.PromiseStateFulfilled:
			e.snapshot(ns)
			delete(e.pending, ns)
		case goja.PromiseStateRejected:
			e.log.Warn("module failed after top-level await", "module", ns.Identifier(), "err", e.errorFromValue(p.promise.Result()))
			delete(e.pending, ns)
		}
	}
}

// snapshot copies the current export values of a native module into ns.
func (e *Engine) snapshot(ns *loader.Namespace) {
	for name, get := range e.getters[ns] {
		v, err := get(goja.Undefined())
		if err != nil {
			continue
		}
		_ = ns.Set(name, v)
	}
}

// throw converts a Go error into a JS exception value. Loader errors keep their
// code, and the original error is restored if the value reaches Go again.
func (e *Engine) throw(err error) *goja.Object {
	var obj *goja.Object
	var le *loader.Error
	if errors.As(err, &le) && le.IsTypeError() {
		obj = e.rt.NewTypeError(err.Error())
	} else {
		obj = e.rt.NewGoError(err)
	}
	if errors.As(err, &le) {
		_ = obj.Set("code", le.Code())
	}
	e.thrown[obj] = err
	return obj
}

// fromJS converts an error returned by the runtime.
func (e *Engine) fromJS(err error) error {
	var ex *goja.Exception
	if errors.As(err, &ex) {
		if obj, ok := ex.Value().(*goja.Object); ok {
			if orig, ok := e.thrown[obj]; ok {
				return orig
			}
		}
	}
	return err
}

// errorFromValue converts a rejection reason.
func (e *Engine) errorFromValue(v goja.Value) error {
	if obj, ok := v.(*goja.Object); ok {
		if orig, ok := e.thrown[obj]; ok {
			return orig
		}
	}
	if v == nil || goja.IsUndefined(v) {
		return errors.New("module rejected with undefined")
	}
	return &ScriptError{Message: v.String()}
}

// ScriptError is a value thrown by module code that is not a Go error.
type ScriptError struct {
	Message string
}

func (e *ScriptError) Error() string {
	return e.Message
}

// nativeUnit is a compiled native module.
type nativeUnit struct {
	e    *Engine
	prog *goja.Program
	low  *lowered
}

func (u *nativeUnit) Requests() []string    { return u.low.requests }
func (u *nativeUnit) ExportNames() []string { return u.low.exports }
func (u *nativeUnit) StarExports() []string { return u.low.stars }

func (u *nativeUnit) Evaluate(ctx context.Context, env *loader.Environment) error {
	e := u.e
	return e.run(ctx, func() error {
		rt := e.rt
		fnv, err := rt.RunProgram(u.prog)
		if err != nil {
			return e.fromJS(err)
		}
		fn, ok := goja.AssertFunction(fnv)
		if !ok {
			return fmt.Errorf("module %s did not compile to a function", env.Namespace.Identifier())
		}

		imports := rt.NewObject()
		for spec, ns := range env.Imports {
			_ = imports.Set(spec, e.namespaceObject(ns))
		}
		var stars []*loader.Namespace
		for _, spec := range u.low.stars {
			if ns, ok := env.Imports[spec]; ok {
				stars = append(stars, ns)
			}
		}
		e.stars[env.Namespace] = stars

		getters := make(map[string]goja.Callable)
		e.getters[env.Namespace] = getters
		register := func(call goja.FunctionCall) goja.Value {
			obj := call.Argument(0).ToObject(rt)
			for _, key := range obj.Keys() {
				if get, ok := goja.AssertFunction(obj.Get(key)); ok {
					getters[key] = get
				}
			}
			return goja.Undefined()
		}

		res, err := fn(goja.Undefined(), imports, rt.ToValue(register), e.importMeta(env.Host), e.dynamicImport(env.Host))
		if err != nil {
			return e.fromJS(err)
		}
		promise, ok := res.Export().(*goja.Promise)
		if !ok {
			e.snapshot(env.Namespace)
			return nil
		}
		switch promise.State() {
		case goja.PromiseStateRejected:
			return e.errorFromValue(promise.Result())
		case goja.PromiseStatePending:
			if len(e.stack) == 1 {
				return fmt.Errorf("module %s: top-level await did not settle", env.Namespace.Identifier())
			}
			e.pending[env.Namespace] = &pendingModule{promise: promise, value: res}
		}
		e.snapshot(env.Namespace)
		return nil
	})
}

// legacyUnit is a compiled legacy module.
type legacyUnit struct {
	e     *Engine
	prog  *goja.Program
	names []string
}

func (u *legacyUnit) ExportNames() []string { return u.names }

func (u *legacyUnit) Run(ctx context.Context, host loader.Host) (map[string]any, error) {
	e := u.e
	var out map[string]any
	err := e.run(ctx, func() error {
		rt := e.rt
		fnv, err := rt.RunProgram(u.prog)
		if err != nil {
			return e.fromJS(err)
		}
		fn, ok := goja.AssertFunction(fnv)
		if !ok {
			return fmt.Errorf("module %s did not compile to a function", host.Identifier())
		}

		exports := rt.NewObject()
		module := rt.NewObject()
		_ = module.Set("exports", exports)
		_ = module.Set("id", host.Identifier())
		_ = module.Set("filename", host.Path())
		_ = module.Set("require", e.require(host))

		e.running[host.Identifier()] = module
		defer delete(e.running, host.Identifier())
		_, err = fn(goja.Undefined(),
			exports,
			module.Get("require"),
			module,
			rt.ToValue(host.Path()),
			rt.ToValue(filepath.Dir(host.Path())),
			e.dynamicImport(host),
		)
		if err != nil {
			return e.fromJS(err)
		}

		value := module.Get("exports")
		out = map[string]any{"default": value}
		if obj, ok := value.(*goja.Object); ok {
			for _, name := range u.names {
				out[name] = obj.Get(name)
			}
		}
		return nil
	})
	return out, err
}

// require loads a module synchronously on behalf of legacy code. A legacy
// module that is still running, as in a require cycle, yields the exports it
// has assigned so far.
func (e *Engine) require(host loader.Host) goja.Value {
	return e.rt.ToValue(func(call goja.FunctionCall) goja.Value {
		spec := call.Argument(0).String()
		ns, err := host.Import(e.ctx(), spec)
		if err != nil {
			panic(e.throw(err))
		}
		if module, ok := e.running[ns.Identifier()]; ok {
			return module.Get("exports")
		}
		if _, ok := e.pending[ns]; ok {
			panic(e.rt.NewTypeError(fmt.Sprintf("cannot require %s: module uses top-level await", ns.Identifier())))
		}
		if ns.Format() == loader.FormatLegacy {
			v, _ := ns.Get("default")
			return e.toJS(v)
		}
		return e.namespaceObject(ns)
	})
}

// dynamicImport returns the import() function for one module.
func (e *Engine) dynamicImport(host loader.Host) goja.Value {
	rt := e.rt
	load := func(call goja.FunctionCall) goja.Value {
		ns, err := host.Import(e.ctx(), call.Argument(0).String())
		if err != nil {
			panic(e.throw(err))
		}
		r := rt.NewObject()
		_ = r.Set("ns", e.namespaceObject(ns))
		if p, ok := e.pending[ns]; ok {
			_ = r.Set("pending", p.value)
		}
		return r
	}
	fn, err := e.newImport(goja.Undefined(), rt.ToValue(load))
	if err != nil {
		panic(e.throw(err))
	}
	return fn
}

// importMeta builds the import.meta object for one module.
func (e *Engine) importMeta(host loader.Host) goja.Value {
	rt := e.rt
	meta := rt.NewObject()
	_ = meta.Set("url", host.Identifier())
	if path := host.Path(); path != "" {
		_ = meta.Set("filename", path)
		_ = meta.Set("dirname", filepath.Dir(path))
	}
	_ = meta.Set("resolve", func(call goja.FunctionCall) goja.Value {
		id, err := host.Resolve(e.ctx(), call.Argument(0).String())
		if err != nil {
			panic(e.throw(err))
		}
		return rt.ToValue(id)
	})
	return meta
}
