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

// ----------------------------------------------------------------------------
// config init
// ----------------------------------------------------------------------------

func TestConfigInit(t *testing.T) {
	t.Run("writes default config", func(t *testing.T) {
		home := isolateConfig(t)
		cmd := NewConfigInitCmd(&GlobalConfig{})
		cmd.SetOut(&discard{})
		cmd.SetArgs([]string{})
		require.NoError(t, cmd.Execute())

		path := filepath.Join(home, ".modload", "config.yaml")
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), "dependencyDir")

		cfg, err := config.NewLoader().Load(path)
		require.NoError(t, err)
		assert.Equal(t, config.DefaultConfig(), cfg)
	})

	t.Run("refuses to overwrite", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("manifest: custom.json\n"), 0o600))

		res := run(t, map[string]string{"MODLOAD_CONFIG": path}, nil, "config", "init")
		require.Error(t, res.err)
		assert.Contains(t, res.err.Error(), "configuration already exists")
		assert.Equal(t, oerrors.ExitValidationError, oerrors.ExitCodeFromError(res.err))

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "manifest: custom.json\n", string(data))
	})

	t.Run("force overwrites", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("manifest: custom.json\n"), 0o600))

		res := run(t, nil, nil, "config", "init", "--force", "--config", path)
		require.NoError(t, res.err)
		assert.Contains(t, res.stdout, "Configuration initialized")

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.NotContains(t, string(data), "custom.json")
	})
}

// ----------------------------------------------------------------------------
// config vet
// ----------------------------------------------------------------------------

func TestConfigVet(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		res := run(t, nil, nil, "config", "vet", "--config", path)
		require.Error(t, res.err)
		assert.ErrorIs(t, res.err, oerrors.ErrNotFound)
		assert.Contains(t, res.err.Error(), "modload config init")
	})

	t.Run("valid file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		data, err := config.MarshalDefault()
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(path, data, 0o600))

		res := run(t, nil, nil, "config", "vet", "--config", path)
		require.NoError(t, res.err)
		assert.Contains(t, res.stdout, "Config file found")
		assert.Contains(t, res.stdout, "Schema validation passed")
	})

	t.Run("invalid file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("mainPrecedence: first\nextensions:\n  native: mjs\n"), 0o600))

		res := run(t, nil, nil, "config", "vet", "--config", path)
		require.Error(t, res.err)
		assert.Equal(t, oerrors.ExitValidationError, oerrors.ExitCodeFromError(res.err))

		var detail *oerrors.DetailError
		require.ErrorAs(t, res.err, &detail)
		assert.Equal(t, path, detail.Location)
		assert.Contains(t, detail.Message, "mainPrecedence")
		assert.Contains(t, detail.Message, "extensions.native")
	})
}

// ----------------------------------------------------------------------------
// version
// ----------------------------------------------------------------------------

func TestVersion(t *testing.T) {
	t.Run("text", func(t *testing.T) {
		res := run(t, nil, nil, "version")
		require.NoError(t, res.err)
		for _, want := range []string{"modload version", "Commit:", "Go:", "Engine:", "CUE SDK:"} {
			assert.Contains(t, res.stdout, want)
		}
	})

	t.Run("json", func(t *testing.T) {
		res := run(t, nil, nil, "version", "-o", "json")
		require.NoError(t, res.err)
		assert.Contains(t, res.stdout, `"goVersion"`)
	})
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }
