package loader

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
)

var packageSpecifier = regexp.MustCompile(`(?s)^([^@][^/]*|@[^/]+/[^/]+)(?:/(.*))?$`)

var (
	mainPostfixes = []string{"", ".js", ".json", ".node", "/index.js", "/index.json", "/index.node"}
	mainBaseNames = []string{"index.js", "index.json", "index.node"}
)

var errMixedExports = errors.New("exports mixes subpath keys and condition keys")

// packageRequest is a bare specifier split into package name and subpath.
type packageRequest struct {
	name       string
	subpath    string
	hasSubpath bool
}

func parsePackageSpecifier(specifier, referrer string) (packageRequest, error) {
	m := packageSpecifier.FindStringSubmatchIndex(specifier)
	if m == nil {
		return packageRequest{}, &Error{Kind: KindInvalidSpecifier, Specifier: specifier, Referrer: referrer, Detail: "not a valid package name"}
	}
	req := packageRequest{name: specifier[m[2]:m[3]]}
	if m[4] >= 0 {
		req.subpath = specifier[m[4]:m[5]]
		req.hasSubpath = true
	}
	if strings.ContainsAny(req.name, `\%`) {
		return packageRequest{}, &Error{Kind: KindInvalidSpecifier, Specifier: specifier, Referrer: referrer, Detail: "package name must not contain \"\\\" or \"%\""}
	}
	return req, nil
}

// referrerDir returns the directory of a file URL referrer.
func referrerDir(specifier, referrer string) (string, error) {
	u, err := url.Parse(referrer)
	if err != nil || u.Scheme != "file" {
		return "", &Error{Kind: KindModuleNotFound, Specifier: specifier, Referrer: referrer, Detail: "referrer is not a file URL"}
	}
	_, path, err := canonicalFileURL(u)
	if err != nil {
		return "", annotate(err, specifier, referrer)
	}
	if strings.HasSuffix(path, string(filepath.Separator)) {
		return filepath.Clean(path), nil
	}
	return filepath.Dir(path), nil
}

// resolvePackage is the default module URL resolver for bare specifiers.
func (l *Loader) resolvePackage(ctx context.Context, specifier, referrer string) (string, error) {
	req, err := parsePackageSpecifier(specifier, referrer)
	if err != nil {
		return "", err
	}
	start, err := referrerDir(specifier, referrer)
	if err != nil {
		return "", err
	}
	pkgDir, err := l.findPackagePath(req.name, start, specifier, referrer)
	if err != nil {
		return "", err
	}
	m, err := l.manifest(ctx, pkgDir, specifier, referrer)
	if err != nil {
		return "", err
	}

	path, err := l.packageEntry(pkgDir, m, req, specifier, referrer)
	if err != nil {
		return "", err
	}
	l.log.Debug("package resolved", "specifier", specifier, "path", path)
	return PathToFileURL(path), nil
}

func (l *Loader) packageEntry(pkgDir string, m *Manifest, req packageRequest, specifier, referrer string) (string, error) {
	notFound := &Error{Kind: KindModuleNotFound, Specifier: specifier, Referrer: referrer}

	useExports := m != nil && m.HasExports()
	if useExports && !req.hasSubpath && l.opts.MainPrecedence == PrecedenceMain {
		path, ok, err := l.findMainPath(pkgDir, m)
		if err != nil {
			return "", err
		}
		if ok {
			return path, nil
		}
	}

	if useExports {
		key := "."
		if req.hasSubpath {
			key = "./" + req.subpath
		}
		target, ok, err := l.exportsTarget(m, key)
		if err != nil {
			return "", &Error{Kind: KindInvalidManifest, Specifier: specifier, Referrer: referrer, Path: m.Path, Detail: err.Error()}
		}
		if !ok {
			notFound.Detail = fmt.Sprintf("subpath %q is not exported", key)
			return "", notFound
		}
		return joinKeepSlash(pkgDir, target), nil
	}

	if req.hasSubpath {
		return joinKeepSlash(pkgDir, req.subpath), nil
	}
	path, ok, err := l.findMainPath(pkgDir, m)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", notFound
	}
	return path, nil
}

// joinKeepSlash joins like filepath.Join but preserves a trailing separator so
// directory targets are still recognised as directories.
func joinKeepSlash(dir, rel string) string {
	p := filepath.Join(dir, filepath.FromSlash(rel))
	if strings.HasSuffix(rel, "/") || rel == "" {
		p += string(filepath.Separator)
	}
	return p
}

// findPackagePath searches the dependency directory of start and each of its
// ancestors for a package directory called name. Stat errors other than
// absence stop the search.
func (l *Loader) findPackagePath(name, start, specifier, referrer string) (string, error) {
	for dir := start; ; {
		candidate := filepath.Join(dir, l.opts.DependencyDir, filepath.FromSlash(name))
		info, err := l.fs.Stat(candidate)
		switch {
		case err == nil && info.IsDir():
			return candidate, nil
		case err != nil && !errors.Is(err, fs.ErrNotExist):
			return "", err
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", &Error{Kind: KindModuleNotFound, Specifier: specifier, Referrer: referrer}
		}
		dir = parent
	}
}

// findMainPath tries the main hint variants, then the index files of the
// package root.
func (l *Loader) findMainPath(pkgDir string, m *Manifest) (string, bool, error) {
	var guesses []string
	if m != nil && m.HasMain {
		for _, postfix := range mainPostfixes {
			guesses = append(guesses, filepath.Join(pkgDir, filepath.FromSlash(m.Main+postfix)))
		}
	}
	for _, base := range mainBaseNames {
		guesses = append(guesses, filepath.Join(pkgDir, base))
	}
	for _, guess := range guesses {
		ok, err := l.fileExists(guess)
		if err != nil {
			return "", false, err
		}
		if ok {
			return guess, true, nil
		}
	}
	return "", false, nil
}

// exportsTarget looks key up in the exports table. ok is false when the key is
// not exported or explicitly mapped to null.
func (l *Loader) exportsTarget(m *Manifest, key string) (string, bool, error) {
	raw := bytes.TrimSpace(m.exports)
	var table map[string]json.RawMessage
	if len(raw) > 0 && raw[0] == '{' {
		if err := json.Unmarshal(raw, &table); err != nil {
			return "", false, err
		}
		subpaths, conditions := 0, 0
		for k := range table {
			if strings.HasPrefix(k, ".") {
				subpaths++
			} else {
				conditions++
			}
		}
		if subpaths > 0 && conditions > 0 {
			return "", false, errMixedExports
		}
		if subpaths == 0 {
			table = map[string]json.RawMessage{".": raw}
		}
	} else {
		table = map[string]json.RawMessage{".": raw}
	}
	return l.lookupTable(table, key, true)
}

// importsTarget looks a "#name" key up in the imports table.
func (l *Loader) importsTarget(m *Manifest, key string) (string, bool, error) {
	var table map[string]json.RawMessage
	if err := json.Unmarshal(m.imports, &table); err != nil {
		return "", false, err
	}
	return l.lookupTable(table, key, false)
}

// lookupTable matches key exactly, then against single-"*" patterns, choosing
// the longest matching prefix.
func (l *Loader) lookupTable(table map[string]json.RawMessage, key string, relativeOnly bool) (string, bool, error) {
	if raw, ok := table[key]; ok && !strings.Contains(key, "*") {
		return l.resolveTarget(raw, "", relativeOnly)
	}

	best, bestMatch, bestLen := "", "", -1
	for k := range table {
		prefix, suffix, ok := strings.Cut(k, "*")
		if !ok || strings.Contains(suffix, "*") {
			continue
		}
		if len(key) < len(prefix)+len(suffix) || !strings.HasPrefix(key, prefix) || !strings.HasSuffix(key, suffix) {
			continue
		}
		if len(prefix) > bestLen {
			best, bestLen = k, len(prefix)
			bestMatch = key[len(prefix) : len(key)-len(suffix)]
		}
	}
	if best == "" {
		return "", false, nil
	}
	return l.resolveTarget(table[best], bestMatch, relativeOnly)
}

// resolveTarget interprets one mapping target: a string, null, an array of
// fallbacks, or a conditions object.
func (l *Loader) resolveTarget(raw json.RawMessage, match string, relativeOnly bool) (string, bool, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", false, nil
	}
	switch raw[0] {
	case 'n':
		return "", false, nil
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", false, err
		}
		if relativeOnly && !strings.HasPrefix(s, "./") {
			return "", false, fmt.Errorf("target %q must start with \"./\"", s)
		}
		return strings.ReplaceAll(s, "*", match), true, nil
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return "", false, err
		}
		for _, item := range items {
			if t, ok, err := l.resolveTarget(item, match, relativeOnly); err == nil && ok {
				return t, true, nil
			}
		}
		return "", false, nil
	case '{':
		var conds map[string]json.RawMessage
		if err := json.Unmarshal(raw, &conds); err != nil {
			return "", false, err
		}
		for _, c := range l.opts.Conditions {
			sub, ok := conds[c]
			if !ok {
				continue
			}
			t, found, err := l.resolveTarget(sub, match, relativeOnly)
			if err != nil || found {
				return t, found, err
			}
		}
		return "", false, nil
	}
	return "", false, fmt.Errorf("unsupported target %s", raw)
}

// resolveImports resolves a "#name" specifier through the imports table of the
// referrer's nearest manifest.
func (l *Loader) resolveImports(ctx context.Context, specifier, referrer string) (string, error) {
	if specifier == "#" || strings.HasPrefix(specifier, "#/") {
		return "", &Error{Kind: KindInvalidSpecifier, Specifier: specifier, Referrer: referrer, Detail: "imports key is empty"}
	}
	start, err := referrerDir(specifier, referrer)
	if err != nil {
		return "", err
	}
	m, dir, err := l.packageScope(ctx, start, specifier, referrer)
	if err != nil {
		return "", err
	}
	if m == nil || !m.HasImports() {
		return "", &Error{Kind: KindModuleNotFound, Specifier: specifier, Referrer: referrer, Detail: "no imports table in scope"}
	}
	target, ok, err := l.importsTarget(m, specifier)
	if err != nil {
		return "", &Error{Kind: KindInvalidManifest, Specifier: specifier, Referrer: referrer, Path: m.Path, Detail: err.Error()}
	}
	if !ok {
		return "", &Error{Kind: KindModuleNotFound, Specifier: specifier, Referrer: referrer, Detail: "import key is not mapped"}
	}
	if strings.HasPrefix(target, "./") {
		return PathToFileURL(joinKeepSlash(dir, target)), nil
	}
	// A bare target resolves as a package visible from the manifest directory.
	return l.resolveModuleURL()(ctx, target, PathToFileURL(filepath.Join(dir, l.opts.ManifestName)))
}
