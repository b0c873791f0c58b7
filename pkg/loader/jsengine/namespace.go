package jsengine

import (
	"github.com/dop251/goja"

	"github.com/opmodel/modload/pkg/loader"
)

// nsObject exposes a loader namespace to module code as a read-only object.
// Exports of native modules run on this engine are read live through their
// getters; everything else comes from the namespace values.
type nsObject struct {
	e  *Engine
	ns *loader.Namespace
}

// namespaceObject returns the cached JS object for ns.
func (e *Engine) namespaceObject(ns *loader.Namespace) *goja.Object {
	if obj, ok := e.objects[ns]; ok {
		return obj
	}
	obj := e.rt.NewDynamicObject(&nsObject{e: e, ns: ns})
	e.objects[ns] = obj
	e.objectNS[obj] = ns
	return obj
}

func (o *nsObject) Get(key string) goja.Value {
	if !o.ns.Has(key) {
		return goja.Undefined()
	}
	if v, ok := o.e.lookup(o.ns, key, map[*loader.Namespace]bool{}); ok {
		return v
	}
	return goja.Undefined()
}

// lookup resolves key through own getters, then star re-exports, then the
// stored value.
func (e *Engine) lookup(ns *loader.Namespace, key string, seen map[*loader.Namespace]bool) (goja.Value, bool) {
	if seen[ns] {
		return nil, false
	}
	seen[ns] = true

	if get, ok := e.getters[ns][key]; ok {
		v, err := get(goja.Undefined())
		if err != nil {
			// Not yet initialized.
			return goja.Undefined(), true
		}
		return v, true
	}
	if key != "default" {
		for _, star := range e.stars[ns] {
			if star.Has(key) {
				if v, ok := e.lookup(star, key, seen); ok {
					return v, true
				}
			}
		}
	}
	v, ok := ns.Get(key)
	if !ok {
		return nil, false
	}
	return e.toJS(v), true
}

func (o *nsObject) Set(string, goja.Value) bool { return false }

func (o *nsObject) Has(key string) bool { return o.ns.Has(key) }

func (o *nsObject) Delete(string) bool { return false }

func (o *nsObject) Keys() []string { return o.ns.Names() }

// toJS converts a namespace value for module code.
func (e *Engine) toJS(v any) goja.Value {
	switch x := v.(type) {
	case nil:
		return goja.Undefined()
	case goja.Value:
		return x
	case *loader.Namespace:
		return e.namespaceObject(x)
	}
	return e.rt.ToValue(v)
}
