package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opmodel/modload/internal/output"
	"github.com/opmodel/modload/internal/version"
)

// NewVersionCmd creates the version command.
func NewVersionCmd(_ *GlobalConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long: `Show modload version information.

Displays:
  - modload version, commit, and build date
  - script engine and CUE SDK versions`,
		RunE: runVersion,
	}
}

func runVersion(cmd *cobra.Command, args []string) error {
	info := version.Get()

	format, err := outputFormat(cmd, output.FormatTable, output.FormatTable, output.FormatYAML, output.FormatJSON)
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	if format != output.FormatTable {
		return output.Encode(w, format, info)
	}

	fmt.Fprintf(w, "modload version %s\n", info.Version)
	fmt.Fprintf(w, "  Commit:    %s\n", info.GitCommit)
	fmt.Fprintf(w, "  Built:     %s\n", info.BuildDate)
	fmt.Fprintf(w, "  Go:        %s\n", info.GoVersion)
	fmt.Fprintf(w, "  Engine:    %s\n", info.EngineVersion)
	fmt.Fprintf(w, "  CUE SDK:   %s\n", info.CUESDKVersion)

	return nil
}
