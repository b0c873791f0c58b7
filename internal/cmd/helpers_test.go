package cmd

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

// appFiles is a small project with a native entry, a legacy helper and an
// installed package.
var appFiles = map[string]string{
	"/app/package.json": `{"type": "module"}`,
	"/app/main.js": `import { twice } from "./lib.cjs";
import greet from "greet";
export const answer = twice(21);
export const greeting = greet.hello;
`,
	"/app/lib.cjs": `exports.twice = (n) => n * 2;
`,
	"/app/broken.js": `import "./missing.js";
`,
	"/app/throws.mjs": `throw new Error("boom");
`,
	"/app/node_modules/greet/package.json": `{"name": "greet", "exports": "./index.js"}`,
	"/app/node_modules/greet/index.js": `module.exports = { hello: "world" };
`,
}

// isolateConfig points the config lookup at an empty home directory and
// clears every MODLOAD_* override. It returns the home directory.
func isolateConfig(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("MODLOAD_CONFIG", "")
	for _, key := range []string{"MAIN_PRECEDENCE", "CONDITIONS", "DEPENDENCY_DIR", "MANIFEST", "LOG_VERBOSE", "LOG_TIMESTAMPS"} {
		t.Setenv("MODLOAD_"+key, "")
	}
	return home
}

type result struct {
	stdout string
	stderr string
	g      *GlobalConfig
	err    error
}

// run executes the root command against an in-memory filesystem holding
// files. env is applied after the config environment is isolated.
func run(t *testing.T, env, files map[string]string, args ...string) result {
	t.Helper()
	isolateConfig(t)
	for k, v := range env {
		t.Setenv(k, v)
	}

	fsys := afero.NewMemMapFs()
	for path, content := range files {
		require.NoError(t, fsys.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, afero.WriteFile(fsys, path, []byte(content), 0o644))
	}

	g := &GlobalConfig{Fs: fsys}
	root := newRootCmd(g)
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)

	err := root.Execute()
	return result{stdout: out.String(), stderr: errOut.String(), g: g, err: err}
}
