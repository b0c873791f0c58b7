// Package cmd provides CLI command implementations.
package cmd

import (
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/opmodel/modload/internal/config"
	"github.com/opmodel/modload/internal/output"
)

// GlobalConfig is the state shared by every command. It is filled in by the
// root command's PersistentPreRunE.
type GlobalConfig struct {
	// ConfigPath is the resolved config file path.
	ConfigPath string

	// Config is the effective configuration after flag, env and file precedence.
	Config *config.Config

	// Resolved records the source of every configuration value.
	Resolved []config.ResolvedValue

	// Fs is the filesystem modules are loaded from.
	Fs afero.Fs
}

// rootFlags holds the persistent flag values.
type rootFlags struct {
	config         string
	output         string
	verbose        bool
	timestamps     bool
	mainPrecedence string
	conditions     string
	dependencyDir  string
}

// flagKeys maps persistent flags onto configuration keys.
var flagKeys = map[string]string{
	"verbose":         "log.verbose",
	"timestamps":      "log.timestamps",
	"main-precedence": "mainPrecedence",
	"conditions":      "conditions",
	"dependency-dir":  "dependencyDir",
}

// NewRootCmd creates the root command for the modload CLI.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&GlobalConfig{Fs: afero.NewOsFs()})
}

func newRootCmd(g *GlobalConfig) *cobra.Command {
	flags := &rootFlags{}

	rootCmd := &cobra.Command{
		Use:   "modload",
		Short: "Resolve, link and evaluate script modules",
		Long: `modload resolves module specifiers, loads native and legacy modules
from disk, links their dependency graph and evaluates it exactly once.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initializeGlobals(cmd, g, flags)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.config, "config", "", "Path to config file (env: MODLOAD_CONFIG)")
	pf.StringVarP(&flags.output, "output", "o", "", "Output format: "+joinFormats(output.ValidFormats()))
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "Enable verbose output")
	pf.BoolVar(&flags.timestamps, "timestamps", true, "Show timestamps in log output")
	pf.StringVar(&flags.mainPrecedence, "main-precedence", "", "Package entry policy: exports or main (env: MODLOAD_MAIN_PRECEDENCE)")
	pf.StringVar(&flags.conditions, "conditions", "", "Comma-separated exports conditions (env: MODLOAD_CONDITIONS)")
	pf.StringVar(&flags.dependencyDir, "dependency-dir", "", "Directory packages are installed under (env: MODLOAD_DEPENDENCY_DIR)")

	rootCmd.AddCommand(NewLoadCmd(g))
	rootCmd.AddCommand(NewResolveCmd(g))
	rootCmd.AddCommand(NewGraphCmd(g))
	rootCmd.AddCommand(NewConfigCmd(g))
	rootCmd.AddCommand(NewVersionCmd(g))

	return rootCmd
}

// initializeGlobals loads configuration and sets up logging.
func initializeGlobals(cmd *cobra.Command, g *GlobalConfig, flags *rootFlags) error {
	pathResult, err := config.ResolveConfigPath(config.ResolveConfigPathOptions{
		FlagValue: flags.config,
	})
	if err != nil {
		return err
	}
	g.ConfigPath = pathResult.ConfigPath

	loader := config.NewLoader()
	fileCfg, err := loader.Load(g.ConfigPath)
	fileKeys := loader.FileKeys()
	if err != nil {
		// Commands like `config init` and `config vet` must still run.
		output.Warn("ignoring unreadable config file", "path", g.ConfigPath, "error", err)
		fileCfg, fileKeys = nil, nil
	}

	values := map[string]string{}
	pf := cmd.Flags()
	for flag, key := range flagKeys {
		if f := pf.Lookup(flag); f != nil && f.Changed {
			values[key] = f.Value.String()
		}
	}

	cfg, resolved, err := config.Resolve(config.ResolveOptions{
		Flags:    values,
		File:     fileCfg,
		FileKeys: fileKeys,
	})
	if err != nil {
		return wrapValidation(err)
	}
	g.Config = cfg
	g.Resolved = resolved

	output.SetupLogging(output.LogConfig{
		Verbose:    cfg.Log.Verbose,
		Timestamps: cfg.Log.Timestamps,
	})

	output.Debug("initializing CLI",
		"config", g.ConfigPath,
		"configSource", pathResult.Source,
	)
	config.LogResolvedValues(resolved)

	return nil
}

// outputFormat returns the -o value, or fallback when it was not given.
func outputFormat(cmd *cobra.Command, fallback output.OutputFormat, allowed ...output.OutputFormat) (output.OutputFormat, error) {
	raw, _ := cmd.Flags().GetString("output")
	if raw == "" {
		return fallback, nil
	}
	f, ok := output.ParseOutputFormat(raw)
	if ok {
		for _, a := range allowed {
			if f == a {
				return f, nil
			}
		}
	}
	names := make([]string, len(allowed))
	for i, a := range allowed {
		names[i] = a.String()
	}
	return "", usageError("invalid output format %q (valid: %s)", raw, joinFormats(names))
}
