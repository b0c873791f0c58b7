package loader_test

import (
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/opmodel/modload/pkg/loader"
)

// ---------------------------------------------------------------------------
// Fixture helpers
// ---------------------------------------------------------------------------

const importer = "file:///proj/importer.mjs"

// fixtureFiles is the shared project tree. Keys ending in "/" are directories.
var fixtureFiles = map[string]string{
	"/proj/importer.mjs": "",
	"/proj/any.js":       "exports.any = yes",
	"/proj/native.mjs":   "export kind = native",
	"/proj/legacy.cjs":   "exports.kind = legacy",
	"/proj/README.md":    "# docs",
	"/proj/Upper.CJS":    "exports.kind = legacy",
	"/proj/some-dir/":    "",

	"/proj/esm/package.json":                        `{"type": "module"}`,
	"/proj/esm/es-module.js":                        "export kind = native",
	"/proj/esm/nested/deep.js":                      "export kind = native",
	"/proj/esm/node_modules/plain/index.js":         "exports.kind = legacy",
	"/proj/cjs/package.json":                        `{"type": "commonjs"}`,
	"/proj/cjs/module.js":                           "exports.kind = legacy",
	"/proj/invalid/package.json":                    `{"type": `,
	"/proj/invalid/module.js":                       "exports.kind = legacy",
	"/proj/null/package.json":                       `null`,
	"/proj/null/module.js":                          "exports.kind = legacy",
	"/proj/dir-package-json/package.json/":          "",
	"/proj/dir-package-json/module.js":              "exports.kind = legacy",
	"/proj/self-link/module.js":                     "exports.kind = legacy",
	"/proj/denied/module.js":                        "exports.kind = legacy",
	"/proj/app/package.json":                        `{"type": "module", "imports": {"#util": "./util.mjs", "#dep": "any-package", "#gone": null}}`,
	"/proj/app/util.mjs":                            "export util = yes",
	"/proj/app/main.mjs":                            "import #util",
	"/proj/node_modules/any-package/package.json":   `{}`,
	"/proj/node_modules/any-package/index.js":       "exports.pkg = any",
	"/proj/node_modules/any-package/any-module.mjs": "export pkg = any-module",

	"/proj/node_modules/package-with-main/package.json":         `{"main": "main-dir"}`,
	"/proj/node_modules/package-with-main/main-dir/index.js":    "exports.pkg = main",
	"/proj/node_modules/package-with-missing-main/package.json": `{"main": "missing"}`,
	"/proj/node_modules/package-with-bad-main/package.json":     `{"main": 42}`,
	"/proj/node_modules/package-with-bad-main/index.js":         "exports.pkg = index",
	"/proj/node_modules/no-manifest/index.json":                 "",
	"/proj/node_modules/@scope/pkg/index.js":                    "exports.pkg = scoped",

	"/proj/node_modules/exports-pkg/package.json": `{
		"main": "./legacy-main.cjs",
		"exports": {
			".": "./lib/main.mjs",
			"./feature/*": "./lib/features/*.mjs",
			"./hidden": null,
			"./escape": "lib/main.mjs"
		}
	}`,
	"/proj/node_modules/exports-pkg/legacy-main.cjs":    "exports.pkg = main",
	"/proj/node_modules/exports-pkg/lib/main.mjs":       "export pkg = exports",
	"/proj/node_modules/exports-pkg/lib/features/a.mjs": "export feature = a",
	"/proj/node_modules/cond-pkg/package.json":          `{"exports": {"require": "./r.cjs", "import": "./i.mjs"}}`,
	"/proj/node_modules/cond-pkg/r.cjs":                 "exports.pkg = require",
	"/proj/node_modules/cond-pkg/i.mjs":                 "export pkg = import",
	"/proj/node_modules/string-pkg/package.json":        `{"exports": "./entry.mjs"}`,
	"/proj/node_modules/string-pkg/entry.mjs":           "export pkg = string",
}

// newFS builds an in-memory filesystem from a path -> content map.
func newFS(t *testing.T, files map[string]string) afero.Fs {
	t.Helper()
	fsys := afero.NewMemMapFs()
	for path, content := range files {
		if strings.HasSuffix(path, "/") {
			require.NoError(t, fsys.MkdirAll(path, 0o755))
			continue
		}
		require.NoError(t, fsys.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, afero.WriteFile(fsys, path, []byte(content), 0o644))
	}
	return fsys
}

// faultFS injects stat errors for chosen paths.
type faultFS struct {
	afero.Fs
	faults map[string]error
}

func (f *faultFS) Stat(name string) (os.FileInfo, error) {
	if err, ok := f.faults[name]; ok {
		return nil, &os.PathError{Op: "stat", Path: name, Err: err}
	}
	return f.Fs.Stat(name)
}

// newFixtureLoader returns a loader over the shared fixture tree, with a
// self-linked manifest and a permission failure injected.
func newFixtureLoader(t *testing.T, opts ...loader.Option) (*loader.Loader, *scriptEngine) {
	t.Helper()
	fsys := &faultFS{
		Fs: newFS(t, fixtureFiles),
		faults: map[string]error{
			"/proj/self-link/package.json": syscall.ELOOP,
			"/proj/denied/package.json":    syscall.EACCES,
		},
	}
	engine := newScriptEngine()
	return loader.New(fsys, engine, opts...), engine
}

func writeFile(fsys afero.Fs, path, content string) error {
	return afero.WriteFile(fsys, path, []byte(content), 0o644)
}
