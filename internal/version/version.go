// Package version provides version information for the modload CLI.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Build-time variables set via ldflags.
var (
	// Version is the CLI version (set via ldflags).
	Version = "v0.0.0-dev"

	// GitCommit is the git commit hash.
	GitCommit = "unknown"

	// BuildDate is the build timestamp.
	BuildDate = "unknown"
)

// Modules whose versions are reported alongside the CLI's own.
const (
	engineModule = "github.com/dop251/goja"
	cueModule    = "cuelang.org/go"
)

// Info contains version information.
type Info struct {
	// Version is the CLI version (set via ldflags).
	Version string `json:"version" yaml:"version"`

	// GitCommit is the git commit hash.
	GitCommit string `json:"gitCommit" yaml:"gitCommit"`

	// BuildDate is the build timestamp.
	BuildDate string `json:"buildDate" yaml:"buildDate"`

	// GoVersion is the Go version used to build.
	GoVersion string `json:"goVersion" yaml:"goVersion"`

	// EngineVersion is the script engine module version.
	EngineVersion string `json:"engineVersion" yaml:"engineVersion"`

	// CUESDKVersion is the CUE SDK version used for config validation.
	CUESDKVersion string `json:"cueSDKVersion" yaml:"cueSDKVersion"`
}

// Get returns the current version information.
func Get() Info {
	info := Info{
		Version:       Version,
		GitCommit:     GitCommit,
		BuildDate:     BuildDate,
		GoVersion:     runtime.Version(),
		EngineVersion: "unknown",
		CUESDKVersion: "unknown",
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		applyBuildInfo(&info, bi)
	}
	return info
}

func applyBuildInfo(info *Info, bi *debug.BuildInfo) {
	for _, dep := range bi.Deps {
		v := dep.Version
		if dep.Replace != nil {
			v = dep.Replace.Version
		}
		switch dep.Path {
		case engineModule:
			info.EngineVersion = v
		case cueModule:
			info.CUESDKVersion = v
		}
	}
	if info.Version == "v0.0.0-dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}
}

// String returns a human-readable version string.
func (i Info) String() string {
	return fmt.Sprintf("modload:\n  Version:  %s\n  Build ID: %s/%s\n  Go:       %s\n\nDependencies:\n  Engine:      %s\n  CUE SDK:     %s",
		i.Version, i.BuildDate, i.GitCommit, i.GoVersion, i.EngineVersion, i.CUESDKVersion)
}
