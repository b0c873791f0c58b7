package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opmodel/modload/internal/config"
	oerrors "github.com/opmodel/modload/internal/errors"
)

func TestNewRootCmd(t *testing.T) {
	cmd := NewRootCmd()

	assert.Equal(t, "modload", cmd.Use)
	for _, flag := range []string{"config", "output", "verbose", "timestamps", "main-precedence", "conditions", "dependency-dir"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(flag), flag)
	}

	var names []string
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	assert.ElementsMatch(t, []string{"load", "resolve", "graph", "config", "version"}, names)
}

func TestInitializeGlobals(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		res := run(t, nil, nil, "version")
		require.NoError(t, res.err)
		assert.Equal(t, config.DefaultConfig(), res.g.Config)
		assert.Len(t, res.g.Resolved, len(config.Keys()))
	})

	t.Run("flag beats env beats file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("mainPrecedence: exports\ndependencyDir: file_modules\nmanifest: module.json\n"), 0o600))

		res := run(t, map[string]string{
			"MODLOAD_CONFIG":          path,
			"MODLOAD_DEPENDENCY_DIR":  "env_modules",
			"MODLOAD_MAIN_PRECEDENCE": "exports",
		}, nil, "version", "--main-precedence", "main")
		require.NoError(t, res.err)

		assert.Equal(t, path, res.g.ConfigPath)
		assert.Equal(t, "main", res.g.Config.MainPrecedence)
		assert.Equal(t, "env_modules", res.g.Config.DependencyDir)
		assert.Equal(t, "module.json", res.g.Config.Manifest)

		for _, rv := range res.g.Resolved {
			switch rv.Key {
			case "mainPrecedence":
				assert.Equal(t, config.SourceFlag, rv.Source)
			case "dependencyDir":
				assert.Equal(t, config.SourceEnv, rv.Source)
				assert.Equal(t, "file_modules", rv.Shadowed[config.SourceConfig])
			case "manifest":
				assert.Equal(t, config.SourceConfig, rv.Source)
			}
		}
	})

	t.Run("conditions flag", func(t *testing.T) {
		res := run(t, nil, nil, "version", "--conditions", "deno,import")
		require.NoError(t, res.err)
		assert.Equal(t, []string{"deno", "import"}, res.g.Config.Conditions)
	})

	t.Run("invalid env value", func(t *testing.T) {
		res := run(t, map[string]string{"MODLOAD_LOG_VERBOSE": "loud"}, nil, "version")
		require.Error(t, res.err)
		assert.ErrorIs(t, res.err, oerrors.ErrValidation)
		assert.Equal(t, oerrors.ExitValidationError, oerrors.ExitCodeFromError(res.err))
	})

	t.Run("unreadable config file is ignored", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("manifest: [unclosed\n"), 0o600))

		res := run(t, map[string]string{"MODLOAD_CONFIG": path}, nil, "version")
		require.NoError(t, res.err)
		assert.Equal(t, config.DefaultConfig().Manifest, res.g.Config.Manifest)
	})
}

func TestOutputFormatFlag(t *testing.T) {
	res := run(t, nil, nil, "version", "-o", "xml")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), `invalid output format "xml"`)
	assert.Equal(t, oerrors.ExitGeneralError, oerrors.ExitCodeFromError(res.err))
}

func TestReferrerFor(t *testing.T) {
	tests := []struct {
		from     string
		referrer string
		dir      string
	}{
		{"/app/", "file:///app/", "/app"},
		{"/app/main.js", "file:///app/main.js", "/app"},
		{"file:///srv/lib/", "file:///srv/lib/", "/srv/lib"},
		{"file:///srv/lib/index.js", "file:///srv/lib/index.js", "/srv/lib"},
	}

	for _, tt := range tests {
		t.Run(tt.from, func(t *testing.T) {
			referrer, dir, err := referrerFor(tt.from)
			require.NoError(t, err)
			assert.Equal(t, tt.referrer, referrer)
			assert.Equal(t, tt.dir, dir)
		})
	}

	t.Run("working directory", func(t *testing.T) {
		wd, err := os.Getwd()
		require.NoError(t, err)
		referrer, dir, err := referrerFor("")
		require.NoError(t, err)
		assert.Equal(t, wd, dir)
		assert.True(t, len(referrer) > 0 && referrer[len(referrer)-1] == '/')
	})
}
