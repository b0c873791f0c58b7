package cmd

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"

	"github.com/opmodel/modload/internal/config"
	oerrors "github.com/opmodel/modload/internal/errors"
	"github.com/opmodel/modload/internal/output"
)

// NewConfigVetCmd creates the config vet command.
func NewConfigVetCmd(g *GlobalConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "vet",
		Short: "Validate configuration",
		Long: `Validate the modload configuration file.

Checks performed:
  1. Config file exists at resolved path
  2. Config file matches the schema (known keys, value types and formats)
  3. Extensions are distinct and conditions are not repeated

The config path is resolved using precedence:
  --config flag > MODLOAD_CONFIG env > ~/.modload/config.yaml

Examples:
  # Validate default configuration
  modload config vet

  # Validate custom config path
  modload config vet --config /path/to/config.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigVet(cmd, g)
		},
	}
}

func runConfigVet(cmd *cobra.Command, g *GlobalConfig) error {
	path, err := configPath(g)
	if err != nil {
		return err
	}

	output.Debug("validating config", "path", path)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return &oerrors.DetailError{
			Type:     "not found",
			Message:  "configuration file not found",
			Location: path,
			Hint:     "Run 'modload config init' to create default configuration",
			Cause:    oerrors.ErrNotFound,
		}
	}

	w := cmd.OutOrStdout()
	fmt.Fprintln(w, output.FormatVetCheck("Config file found", path))

	v, err := config.NewValidator()
	if err != nil {
		return err
	}
	if err := v.ValidateFile(path); err != nil {
		var merr *multierror.Error
		if !errors.As(err, &merr) {
			return err
		}
		detail := wrapValidation(err).(*oerrors.DetailError)
		detail.Location = path
		detail.Hint = "Fix the listed fields, or regenerate with 'modload config init --force'."
		return detail
	}

	fmt.Fprintln(w, output.FormatVetCheck("Schema validation passed", strconv.Itoa(len(config.Keys()))+" keys checked"))
	return nil
}
