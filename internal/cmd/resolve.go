package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opmodel/modload/internal/output"
)

// ResolveResult is the printed outcome of resolving one specifier.
type ResolveResult struct {
	Specifier  string `json:"specifier" yaml:"specifier"`
	Identifier string `json:"identifier" yaml:"identifier"`
	Path       string `json:"path,omitempty" yaml:"path,omitempty"`
	Format     string `json:"format" yaml:"format"`
}

// NewResolveCmd creates the resolve command.
func NewResolveCmd(g *GlobalConfig) *cobra.Command {
	var from string

	cmd := &cobra.Command{
		Use:   "resolve <specifier>...",
		Short: "Resolve specifiers without loading them",
		Long: `Resolve import specifiers to canonical module identifiers, filesystem
paths and formats. Nothing is compiled or evaluated.

Examples:
  # Resolve a bare package from the working directory
  modload resolve lodash

  # Resolve relative to another directory
  modload resolve ./util.js --from /srv/app/`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(cmd, g, from, args)
		},
	}

	addFromFlag(cmd, &from)
	return cmd
}

func runResolve(cmd *cobra.Command, g *GlobalConfig, from string, args []string) error {
	format, err := outputFormat(cmd, output.FormatTable,
		output.FormatYAML, output.FormatJSON, output.FormatTable)
	if err != nil {
		return err
	}

	s, err := newSession(g)
	if err != nil {
		return err
	}
	referrer, _, err := referrerFor(from)
	if err != nil {
		return err
	}

	ctx := commandContext(cmd)
	var (
		results []ResolveResult
		errs    []error
	)
	for _, arg := range args {
		res, err := s.loader.Resolve(ctx, arg, referrer)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		results = append(results, ResolveResult{
			Specifier:  arg,
			Identifier: res.Identifier,
			Path:       res.Path,
			Format:     res.Format.String(),
		})
	}

	w := cmd.OutOrStdout()
	if len(results) > 0 {
		if format == output.FormatTable {
			t := output.NewTable("SPECIFIER", "IDENTIFIER", "FORMAT")
			for _, r := range results {
				t.Row(r.Specifier, r.Identifier, output.FormatTag(r.Format))
			}
			fmt.Fprintln(w, t.String())
		} else if err := output.Encode(w, format, results); err != nil {
			return err
		}
	}

	return reportErrors(cmd.ErrOrStderr(), errs)
}
