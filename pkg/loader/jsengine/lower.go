package jsengine

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/tdewolff/parse/v2/js"
)

// Parameter names of the function a native module body is lowered into.
const (
	paramImports = "__imports"
	paramExport  = "__export"
	paramMeta    = "__meta"
	paramImport  = "__import"
	localDefault = "__default"
)

// lowered is a native module rewritten as a function expression.
//
// Import and re-export declarations are removed. Named imports resolve
// through getters on a scope object, so they read the exporter's current
// value. Export declarations lose their keyword and are published through
// getters passed to __export, import.meta becomes __meta and import()
// becomes __import(). The body runs as a strict async function and keeps
// its line numbers.
type lowered struct {
	code     string
	requests []string
	exports  []string
	stars    []string
}

type edit struct {
	start, end int
	text       string
}

type importBinding struct {
	local    string
	spec     string
	imported string // empty for a namespace import
}

type exportGetter struct {
	name string
	expr string
}

type lowerer struct {
	src   string
	toks  []token
	i     int
	decls []js.IStmt

	edits       []edit
	requests    []string
	seen        map[string]bool
	imports     []importBinding
	exports     []exportGetter
	exported    map[string]bool
	stars       []string
	needDefault bool
}

// lowerNative rewrites native module source into a function expression.
func lowerNative(src string) (*lowered, error) {
	src = stripHashbang(src)
	ast, err := parseSource(src, false)
	if err != nil {
		return nil, err
	}
	toks, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	l := &lowerer{src: src, toks: toks, seen: map[string]bool{}, exported: map[string]bool{}}
	for _, stmt := range ast.List {
		switch stmt.(type) {
		case *js.ImportStmt, *js.ExportStmt:
			l.decls = append(l.decls, stmt)
		}
	}
	if err := l.run(); err != nil {
		return nil, err
	}

	var scope, pro strings.Builder
	for _, b := range l.imports {
		if b.imported == "" {
			fmt.Fprintf(&pro, "const %s = %s[%s];", b.local, paramImports, jsString(b.spec))
			continue
		}
		if scope.Len() > 0 {
			scope.WriteString(", ")
		}
		fmt.Fprintf(&scope, "%s: {get: () => %s[%s][%s]}", jsString(b.local), paramImports, jsString(b.spec), jsString(b.imported))
	}
	if l.needDefault {
		fmt.Fprintf(&pro, "let %s;", localDefault)
	}
	if len(l.exports) > 0 {
		fmt.Fprintf(&pro, "%s({", paramExport)
		for i, g := range l.exports {
			if i > 0 {
				pro.WriteString(", ")
			}
			fmt.Fprintf(&pro, "%s: () => %s", jsString(g.name), g.expr)
		}
		pro.WriteString("});")
	}

	names := make([]string, 0, len(l.exports))
	for _, g := range l.exports {
		names = append(names, g.name)
	}

	var code strings.Builder
	fmt.Fprintf(&code, "(function (%s, %s, %s, %s) {", paramImports, paramExport, paramMeta, paramImport)
	if scope.Len() > 0 {
		fmt.Fprintf(&code, "with (Object.create(null, {%s})) ", scope.String())
	}
	fmt.Fprintf(&code, `return (async function () {"use strict";%s%s`, pro.String(), applyEdits(src, l.edits))
	code.WriteString("\n})();})")
	return &lowered{code: code.String(), requests: l.requests, exports: names, stars: l.stars}, nil
}

// lowerLegacy rewrites dynamic import() calls in legacy source and returns
// the names it assigns on its exports object.
func lowerLegacy(src string) (string, []string, error) {
	src = stripHashbang(src)
	ast, err := parseSource(src, true)
	if err != nil {
		return "", nil, err
	}
	toks, err := tokenize(src)
	if err != nil {
		return "", nil, err
	}
	var edits []edit
	for i, t := range toks {
		if t.is(js.ImportToken) && !precededByDot(toks, i) && at(toks, i+1).is(js.OpenParenToken) && !isMethodDefinition(toks, i+1) {
			edits = append(edits, edit{t.start, t.end, paramImport})
		}
	}
	return applyEdits(src, edits), legacyExportNames(ast), nil
}

func (l *lowerer) run() error {
	for ; l.i < len(l.toks); l.i++ {
		t := l.toks[l.i]
		switch {
		case t.is(js.ImportToken) && !precededByDot(l.toks, l.i):
			next := at(l.toks, l.i+1)
			switch {
			case next.is(js.OpenParenToken):
				if !isMethodDefinition(l.toks, l.i+1) {
					l.replace(t.start, t.end, paramImport)
				}
			case next.is(js.DotToken) && at(l.toks, l.i+2).is(js.MetaToken):
				l.replace(t.start, at(l.toks, l.i+2).end, paramMeta)
				l.i += 2
			case t.depth == 0 && !next.is(js.ColonToken):
				if err := l.importDecl(); err != nil {
					return err
				}
			}
		case t.is(js.ExportToken) && t.depth == 0 && !precededByDot(l.toks, l.i):
			if err := l.exportDecl(); err != nil {
				return err
			}
		}
	}
	return nil
}

// nextDecl returns the parsed declaration for the keyword at the cursor.
func (l *lowerer) nextDecl() (js.IStmt, error) {
	if len(l.decls) == 0 {
		t := l.toks[l.i]
		return nil, l.errorf(t, "unexpected %s", t.text)
	}
	d := l.decls[0]
	l.decls = l.decls[1:]
	return d, nil
}

func (l *lowerer) replace(start, end int, text string) {
	l.edits = append(l.edits, edit{start, end, text})
}

// remove drops a source range but keeps its line breaks.
func (l *lowerer) remove(start, end int) {
	l.replace(start, end, strings.Repeat("\n", strings.Count(l.src[start:end], "\n")))
}

func (l *lowerer) request(spec string) {
	if !l.seen[spec] {
		l.seen[spec] = true
		l.requests = append(l.requests, spec)
	}
}

func (l *lowerer) export(name, expr string) error {
	if l.exported[name] {
		return fmt.Errorf("duplicate export %q", name)
	}
	l.exported[name] = true
	l.exports = append(l.exports, exportGetter{name: name, expr: expr})
	return nil
}

// statementEnd advances the cursor to the last token of the declaration
// starting at it and returns the end offset. A declaration naming a module
// ends at its module string, any other at its closing brace.
func (l *lowerer) statementEnd(fromModule bool) int {
	depth := l.toks[l.i].depth
	for l.i++; l.i < len(l.toks); l.i++ {
		t := l.toks[l.i]
		if t.depth != depth {
			continue
		}
		if (fromModule && t.is(js.StringToken)) || (!fromModule && t.is(js.CloseBraceToken)) {
			break
		}
	}
	if l.i >= len(l.toks) {
		l.i = len(l.toks) - 1
		return len(l.src)
	}
	if at(l.toks, l.i+1).is(js.SemicolonToken) {
		l.i++
	}
	return l.toks[l.i].end
}

// importDecl lowers a static import declaration.
func (l *lowerer) importDecl() error {
	kw := l.toks[l.i]
	d, err := l.nextDecl()
	if err != nil {
		return err
	}
	stmt, ok := d.(*js.ImportStmt)
	if !ok {
		return l.errorf(kw, "unexpected import")
	}
	spec, err := unquoteJS(string(stmt.Module))
	if err != nil {
		return err
	}
	l.request(spec)

	if stmt.Default != nil {
		l.imports = append(l.imports, importBinding{local: string(stmt.Default), spec: spec, imported: "default"})
	}
	for _, a := range stmt.List {
		switch {
		case a.Binding == nil:
		case isStar(a.Name):
			l.imports = append(l.imports, importBinding{local: string(a.Binding), spec: spec})
		default:
			imported, err := aliasName(a.Name, a.Binding)
			if err != nil {
				return err
			}
			l.imports = append(l.imports, importBinding{local: string(a.Binding), spec: spec, imported: imported})
		}
	}
	l.remove(kw.start, l.statementEnd(true))
	return nil
}

// exportDecl lowers an export declaration.
func (l *lowerer) exportDecl() error {
	kw := l.toks[l.i]
	d, err := l.nextDecl()
	if err != nil {
		return err
	}
	stmt, ok := d.(*js.ExportStmt)
	if !ok {
		return l.errorf(kw, "unexpected export")
	}

	switch {
	case stmt.Decl == nil:
		return l.exportList(kw, stmt)

	case stmt.Default:
		def := at(l.toks, l.i+1)
		l.i++
		if name := declaredName(stmt.Decl); name != "" {
			l.replace(kw.start, def.end, "")
			return l.export("default", name)
		}
		l.needDefault = true
		l.replace(kw.start, def.end, localDefault+" =")
		return l.export("default", localDefault)
	}

	l.replace(kw.start, kw.end, "")
	if decl, ok := stmt.Decl.(*js.VarDecl); ok {
		for _, item := range decl.List {
			for _, name := range boundNames(item.Binding) {
				if err := l.export(name, name); err != nil {
					return err
				}
			}
		}
		return nil
	}
	name := declaredName(stmt.Decl)
	if name == "" {
		return l.errorf(kw, "exported declaration needs a name")
	}
	return l.export(name, name)
}

// exportList lowers "export { ... } [from ...]" and "export * [as x] from ...".
func (l *lowerer) exportList(kw token, stmt *js.ExportStmt) error {
	from := ""
	if stmt.Module != nil {
		var err error
		if from, err = unquoteJS(string(stmt.Module)); err != nil {
			return err
		}
		l.request(from)
	}
	for _, a := range stmt.List {
		switch {
		case a.Binding == nil:
		case a.Name == nil && isStar(a.Binding):
			l.stars = append(l.stars, from)
		case isStar(a.Name):
			alias, err := aliasName(nil, a.Binding)
			if err != nil {
				return err
			}
			if err := l.export(alias, fmt.Sprintf("%s[%s]", paramImports, jsString(from))); err != nil {
				return err
			}
		default:
			local, err := aliasName(a.Name, a.Binding)
			if err != nil {
				return err
			}
			alias, err := aliasName(nil, a.Binding)
			if err != nil {
				return err
			}
			expr := local
			if from != "" {
				expr = fmt.Sprintf("%s[%s][%s]", paramImports, jsString(from), jsString(local))
			}
			if err := l.export(alias, expr); err != nil {
				return err
			}
		}
	}
	l.remove(kw.start, l.statementEnd(stmt.Module != nil))
	return nil
}

func (l *lowerer) errorf(t token, format string, args ...any) error {
	line := 1 + strings.Count(l.src[:t.start], "\n")
	return fmt.Errorf("line %d: %s", line, fmt.Sprintf(format, args...))
}

func isStar(name []byte) bool {
	return string(name) == "*"
}

// aliasName returns the exported side of an import or export specifier,
// decoding string names.
func aliasName(name, binding []byte) (string, error) {
	if name == nil {
		name = binding
	}
	if len(name) > 0 && (name[0] == '"' || name[0] == '\'') {
		return unquoteJS(string(name))
	}
	return string(name), nil
}

// declaredName returns the name of a function or class declaration.
func declaredName(decl js.IExpr) string {
	switch d := decl.(type) {
	case *js.FuncDecl:
		if d.Name != nil {
			return string(d.Name.Name())
		}
	case *js.ClassDecl:
		if d.Name != nil {
			return string(d.Name.Name())
		}
	}
	return ""
}

// boundNames collects the names bound by a binding pattern.
func boundNames(b js.IBinding) []string {
	var names []string
	switch b := b.(type) {
	case *js.Var:
		names = append(names, string(b.Name()))
	case *js.BindingArray:
		for _, el := range b.List {
			names = append(names, boundNames(el.Binding)...)
		}
		if b.Rest != nil {
			names = append(names, boundNames(b.Rest)...)
		}
	case *js.BindingObject:
		for _, item := range b.List {
			names = append(names, boundNames(item.Value.Binding)...)
		}
		if b.Rest != nil {
			names = append(names, string(b.Rest.Name()))
		}
	}
	return names
}

func applyEdits(src string, edits []edit) string {
	sort.SliceStable(edits, func(i, j int) bool { return edits[i].start < edits[j].start })
	var b strings.Builder
	pos := 0
	for _, e := range edits {
		if e.start < pos {
			continue
		}
		b.WriteString(src[pos:e.start])
		b.WriteString(e.text)
		pos = e.end
	}
	b.WriteString(src[pos:])
	return b.String()
}

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

// unquoteJS decodes a single or double quoted string literal.
func unquoteJS(lit string) (string, error) {
	if len(lit) < 2 {
		return "", fmt.Errorf("malformed string literal %s", lit)
	}
	body := lit[1 : len(lit)-1]
	if !strings.Contains(body, `\`) {
		return body, nil
	}
	var b strings.Builder
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c != '\\' || i+1 >= len(body) {
			b.WriteByte(c)
			continue
		}
		i++
		switch e := body[i]; e {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case 'v':
			b.WriteByte('\v')
		case '0':
			b.WriteByte(0)
		case '\n':
		case 'x':
			if i+2 >= len(body) {
				return "", fmt.Errorf("malformed escape in %s", lit)
			}
			n, err := strconv.ParseUint(body[i+1:i+3], 16, 8)
			if err != nil {
				return "", err
			}
			b.WriteRune(rune(n))
			i += 2
		case 'u':
			hex := ""
			if i+1 < len(body) && body[i+1] == '{' {
				end := strings.IndexByte(body[i:], '}')
				if end < 0 {
					return "", fmt.Errorf("malformed escape in %s", lit)
				}
				hex = body[i+2 : i+end]
				i += end
			} else {
				if i+4 >= len(body) {
					return "", fmt.Errorf("malformed escape in %s", lit)
				}
				hex = body[i+1 : i+5]
				i += 4
			}
			n, err := strconv.ParseUint(hex, 16, 32)
			if err != nil {
				return "", err
			}
			if !utf8.ValidRune(rune(n)) {
				return "", fmt.Errorf("invalid code point in %s", lit)
			}
			b.WriteRune(rune(n))
		default:
			b.WriteByte(e)
		}
	}
	return b.String(), nil
}
