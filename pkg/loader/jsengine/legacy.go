package jsengine

import (
	"slices"

	"github.com/tdewolff/parse/v2/js"
)

// legacyExportNames statically detects the names a legacy module assigns on
// its exports object. It recognizes
//
//	exports.name = ...
//	module.exports.name = ...
//	exports["name"] = ...
//	Object.defineProperty(exports, "name", ...)
//	module.exports = { name, other: ..., "quoted": ... }
//
// Names are returned in first-seen order; "default" is never included.
func legacyExportNames(ast *js.AST) []string {
	v := &exportsVisitor{}
	js.Walk(v, ast)
	return v.names
}

type exportsVisitor struct {
	names []string
}

func (v *exportsVisitor) add(name string) {
	if name != "" && name != "default" && !slices.Contains(v.names, name) {
		v.names = append(v.names, name)
	}
}

func (v *exportsVisitor) Enter(n js.INode) js.IVisitor {
	switch n := n.(type) {
	case *js.BinaryExpr:
		if n.Op != js.EqToken {
			break
		}
		if isModuleExports(n.X) {
			if obj, ok := n.Y.(*js.ObjectExpr); ok {
				for _, key := range objectKeys(obj) {
					v.add(key)
				}
			}
			break
		}
		v.add(exportsMember(n.X))
	case *js.CallExpr:
		v.add(definedProperty(n))
	}
	return v
}

func (v *exportsVisitor) Exit(js.INode) {}

// exportsMember returns the property name of exports.name or exports["name"].
func exportsMember(x js.IExpr) string {
	switch x := x.(type) {
	case *js.DotExpr:
		if isExportsObject(x.X) {
			if lit, ok := literal(x.Y); ok && lit.TokenType == js.IdentifierToken {
				return string(lit.Data)
			}
		}
	case *js.IndexExpr:
		if isExportsObject(x.X) {
			return stringLiteral(x.Y)
		}
	}
	return ""
}

// definedProperty returns the name in Object.defineProperty(exports, "name", ...).
func definedProperty(call *js.CallExpr) string {
	dot, ok := call.X.(*js.DotExpr)
	if !ok || !isVar(dot.X, "Object") || !isName(dot.Y, "defineProperty") || len(call.Args.List) < 2 {
		return ""
	}
	if !isExportsObject(call.Args.List[0].Value) {
		return ""
	}
	return stringLiteral(call.Args.List[1].Value)
}

// objectKeys returns the top-level keys of an object literal. Spread and
// computed members are skipped.
func objectKeys(obj *js.ObjectExpr) []string {
	var keys []string
	for _, p := range obj.List {
		name := p.Name
		if name == nil {
			// get/set accessors and methods carry their own key.
			if m, ok := p.Value.(*js.MethodDecl); ok && m.Name.Private == nil {
				name = &m.Name.PropertyName
			}
		}
		if p.Spread || name == nil || name.IsComputed() {
			continue
		}
		switch name.Literal.TokenType {
		case js.IdentifierToken:
			keys = append(keys, string(name.Literal.Data))
		case js.StringToken:
			if s, err := unquoteJS(string(name.Literal.Data)); err == nil {
				keys = append(keys, s)
			}
		}
	}
	return keys
}

func isExportsObject(x js.IExpr) bool {
	return isVar(x, "exports") || isModuleExports(x)
}

func isModuleExports(x js.IExpr) bool {
	dot, ok := x.(*js.DotExpr)
	return ok && isVar(dot.X, "module") && isName(dot.Y, "exports")
}

func isVar(x js.IExpr, name string) bool {
	v, ok := x.(*js.Var)
	return ok && string(v.Name()) == name
}

func isName(x js.IExpr, name string) bool {
	lit, ok := literal(x)
	return ok && string(lit.Data) == name
}

func stringLiteral(x js.IExpr) string {
	lit, ok := literal(x)
	if !ok || lit.TokenType != js.StringToken {
		return ""
	}
	s, err := unquoteJS(string(lit.Data))
	if err != nil {
		return ""
	}
	return s
}

func literal(x js.IExpr) (js.LiteralExpr, bool) {
	switch lit := x.(type) {
	case js.LiteralExpr:
		return lit, true
	case *js.LiteralExpr:
		return *lit, true
	}
	return js.LiteralExpr{}, false
}
