package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opmodel/modload/internal/output"
)

// NewGraphCmd creates the graph command.
func NewGraphCmd(g *GlobalConfig) *cobra.Command {
	flags := &loadFlags{}

	cmd := &cobra.Command{
		Use:   "graph <specifier>...",
		Short: "Load modules and show the module graph",
		Long: `Load entry modules and print every module in the resulting graph with its
format, status and dependencies. Modules are listed even when loading fails
part way, so the errored node is visible.

Examples:
  # Dependency tree of an entry
  modload graph ./main.mjs

  # Every module as a table
  modload graph ./main.mjs -o table`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGraph(cmd, g, flags, args)
		},
	}

	addLoadFlags(cmd, flags)
	return cmd
}

func runGraph(cmd *cobra.Command, g *GlobalConfig, flags *loadFlags, args []string) error {
	format, err := outputFormat(cmd, output.FormatTree,
		output.FormatYAML, output.FormatJSON, output.FormatTable, output.FormatTree)
	if err != nil {
		return err
	}

	ctx := commandContext(cmd)
	s, from, res, err := loadEntries(ctx, g, flags, args)
	if err != nil {
		return err
	}
	graph := s.loader.Graph(ctx)

	roots := make([]string, 0, len(args))
	for _, arg := range args {
		if r, err := s.loader.Resolve(ctx, entrySpecifier(g.Fs, arg, from.dir), from.referrer); err == nil {
			roots = append(roots, r.Identifier)
		}
	}

	w := cmd.OutOrStdout()
	switch format {
	case output.FormatTree:
		fmt.Fprintln(w, output.RenderGraphTree(graphNodes(graph), roots))
	case output.FormatTable:
		fmt.Fprintln(w, output.RenderModuleTable(moduleRows(graph, nil)))
	default:
		if err := output.Encode(w, format, graph); err != nil {
			return err
		}
	}

	return reportErrors(cmd.ErrOrStderr(), res.errs)
}
