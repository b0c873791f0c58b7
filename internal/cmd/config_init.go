package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/opmodel/modload/internal/config"
	oerrors "github.com/opmodel/modload/internal/errors"
	"github.com/opmodel/modload/internal/output"
)

// NewConfigInitCmd creates the config init command.
func NewConfigInitCmd(g *GlobalConfig) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize default configuration",
		Long: `Write the default modload configuration to the resolved config path
(--config > MODLOAD_CONFIG > ~/.modload/config.yaml).

Examples:
  # Initialize configuration
  modload config init

  # Overwrite existing configuration
  modload config init --force`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigInit(cmd, g, force)
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite existing configuration")

	return cmd
}

func runConfigInit(cmd *cobra.Command, g *GlobalConfig, force bool) error {
	path, err := configPath(g)
	if err != nil {
		return err
	}

	if _, err := os.Stat(path); err == nil && !force {
		return &oerrors.DetailError{
			Type:     "validation failed",
			Message:  "configuration already exists",
			Location: path,
			Hint:     "Use --force to overwrite existing configuration.",
			Cause:    oerrors.ErrValidation,
		}
	}

	data, err := config.MarshalDefault()
	if err != nil {
		return err
	}

	if err := config.EnsureDir(path); err != nil {
		return oerrors.Wrap(oerrors.ErrPermission, "could not create config directory")
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return oerrors.Wrap(oerrors.ErrPermission, "could not write "+path)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintln(w, output.FormatCheckmark("Configuration initialized at "+output.StyleNoun.Render(path)))
	fmt.Fprintln(w, "Validate with: modload config vet")
	return nil
}

// configPath returns the resolved config path, resolving it when the root
// command's pre-run did not.
func configPath(g *GlobalConfig) (string, error) {
	if g.ConfigPath != "" {
		return config.ExpandPath(g.ConfigPath)
	}
	res, err := config.ResolveConfigPath(config.ResolveConfigPathOptions{})
	if err != nil {
		return "", oerrors.Wrap(oerrors.ErrNotFound, "could not determine home directory")
	}
	return config.ExpandPath(res.ConfigPath)
}
