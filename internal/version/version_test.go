package version

import (
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet(t *testing.T) {
	info := Get()

	require.NotEmpty(t, info.GoVersion, "GoVersion should be populated")
	require.NotEmpty(t, info.EngineVersion, "EngineVersion should be populated")
	require.NotEmpty(t, info.CUESDKVersion, "CUESDKVersion should be populated")
}

func TestApplyBuildInfo(t *testing.T) {
	t.Run("dependency versions", func(t *testing.T) {
		info := Info{Version: "v0.0.0-dev"}
		applyBuildInfo(&info, &debug.BuildInfo{
			Main: debug.Module{Path: "github.com/opmodel/modload", Version: "v1.2.3"},
			Deps: []*debug.Module{
				{Path: "github.com/dop251/goja", Version: "v0.0.0-20240220182346-e401ed450204"},
				{Path: "cuelang.org/go", Version: "v0.15.4"},
				{Path: "github.com/spf13/cobra", Version: "v1.10.2"},
			},
		})

		assert.Equal(t, "v1.2.3", info.Version)
		assert.Equal(t, "v0.0.0-20240220182346-e401ed450204", info.EngineVersion)
		assert.Equal(t, "v0.15.4", info.CUESDKVersion)
	})

	t.Run("replacement wins", func(t *testing.T) {
		info := Info{Version: "v9.9.9"}
		applyBuildInfo(&info, &debug.BuildInfo{
			Main: debug.Module{Version: "(devel)"},
			Deps: []*debug.Module{
				{Path: "cuelang.org/go", Version: "v0.15.4", Replace: &debug.Module{Path: "cuelang.org/go", Version: "v0.16.0"}},
			},
		})

		assert.Equal(t, "v9.9.9", info.Version, "ldflags version is kept")
		assert.Equal(t, "v0.16.0", info.CUESDKVersion)
	})
}

func TestInfoString(t *testing.T) {
	info := Info{
		Version:       "v1.0.0",
		GitCommit:     "abc123",
		BuildDate:     "2026-01-29",
		GoVersion:     "go1.25",
		EngineVersion: "v0.0.0-20240220182346-e401ed450204",
		CUESDKVersion: "v0.15.4",
	}

	str := info.String()

	assert.Contains(t, str, "v1.0.0")
	assert.Contains(t, str, "abc123")
	assert.Contains(t, str, "2026-01-29")
	assert.Contains(t, str, "go1.25")
	assert.Contains(t, str, "e401ed450204")
	assert.Contains(t, str, "v0.15.4")
}
