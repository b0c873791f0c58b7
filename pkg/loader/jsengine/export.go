package jsengine

import (
	"strconv"

	"github.com/dop251/goja"

	"github.com/opmodel/modload/pkg/loader"
)

const maxExportDepth = 16

// Export converts a namespace or a value held by one into plain Go data for
// printing. Functions become "<function>" and cycles "<cycle>". It must not
// run while modules are loading.
func (e *Engine) Export(v any) any {
	return e.export(v, map[*goja.Object]bool{}, 0)
}

func (e *Engine) export(v any, seen map[*goja.Object]bool, depth int) any {
	if depth > maxExportDepth {
		return "<...>"
	}
	switch x := v.(type) {
	case *loader.Namespace:
		return e.exportNamespace(x, seen, depth)
	case goja.Value:
		return e.exportValue(x, seen, depth)
	}
	return v
}

func (e *Engine) exportNamespace(ns *loader.Namespace, seen map[*goja.Object]bool, depth int) map[string]any {
	out := make(map[string]any, len(ns.Names()))
	for _, name := range ns.Names() {
		if v, ok := e.lookup(ns, name, map[*loader.Namespace]bool{}); ok {
			out[name] = e.export(v, seen, depth+1)
		} else {
			out[name] = nil
		}
	}
	return out
}

func (e *Engine) exportValue(v goja.Value, seen map[*goja.Object]bool, depth int) any {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil
	}
	if depth > maxExportDepth {
		return "<...>"
	}
	if _, ok := goja.AssertFunction(v); ok {
		return "<function>"
	}
	obj, ok := v.(*goja.Object)
	if !ok {
		return v.Export()
	}
	if ns, ok := e.objectNS[obj]; ok {
		return e.exportNamespace(ns, seen, depth)
	}
	if seen[obj] {
		return "<cycle>"
	}
	seen[obj] = true
	defer delete(seen, obj)

	switch obj.ClassName() {
	case "Array":
		n := int(obj.Get("length").ToInteger())
		out := make([]any, n)
		for i := range n {
			out[i] = e.exportValue(obj.Get(strconv.Itoa(i)), seen, depth+1)
		}
		return out
	case "Object":
		out := make(map[string]any)
		for _, key := range obj.Keys() {
			out[key] = e.exportValue(obj.Get(key), seen, depth+1)
		}
		return out
	}
	return obj.Export()
}
