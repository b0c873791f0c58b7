package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/opmodel/modload/internal/output"
	"github.com/opmodel/modload/pkg/loader"
)

// loadFlags holds the flags shared by load and graph.
type loadFlags struct {
	from string
	jobs int
}

// LoadResult is the printed outcome of one loaded entry.
type LoadResult struct {
	Specifier  string         `json:"specifier" yaml:"specifier"`
	Identifier string         `json:"identifier" yaml:"identifier"`
	Exports    map[string]any `json:"exports" yaml:"exports"`
}

// NewLoadCmd creates the load command.
func NewLoadCmd(g *GlobalConfig) *cobra.Command {
	flags := &loadFlags{}

	cmd := &cobra.Command{
		Use:   "load <specifier>...",
		Short: "Load and evaluate modules and print their exports",
		Long: `Load one or more entry modules, link their dependency graphs and evaluate
them, then print each entry's exports.

Entries are import specifiers resolved from --from (default: the working
directory). A plain file name that exists there is treated as a relative path.
Independent entries load concurrently and share one module graph, so a module
reachable from several entries is evaluated once.

Examples:
  # Load an entry module
  modload load ./main.mjs

  # Load a package entry as JSON
  modload load lodash -o json

  # Show the loaded graph as a table
  modload load ./main.mjs -o table`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(cmd, g, flags, args)
		},
	}

	addLoadFlags(cmd, flags)
	return cmd
}

func addLoadFlags(cmd *cobra.Command, flags *loadFlags) {
	addFromFlag(cmd, &flags.from)
	cmd.Flags().IntVarP(&flags.jobs, "jobs", "j", 4, "Maximum number of entries loaded concurrently")
}

func runLoad(cmd *cobra.Command, g *GlobalConfig, flags *loadFlags, args []string) error {
	format, err := outputFormat(cmd, output.FormatYAML,
		output.FormatYAML, output.FormatJSON, output.FormatTable, output.FormatTree)
	if err != nil {
		return err
	}

	ctx := commandContext(cmd)
	s, from, namespaces, err := loadEntries(ctx, g, flags, args)
	if err != nil {
		return err
	}
	errs := namespaces.errs

	w := cmd.OutOrStdout()
	switch format {
	case output.FormatTable:
		fmt.Fprintln(w, output.RenderModuleTable(moduleRows(s.loader.Graph(ctx), namespaces.ids())))
	case output.FormatTree:
		fmt.Fprintln(w, output.RenderGraphTree(graphNodes(s.loader.Graph(ctx)), namespaces.ids()))
	default:
		var results []LoadResult
		for i, ns := range namespaces.ns {
			if ns == nil {
				continue
			}
			exports, _ := s.engine.Export(ns).(map[string]any)
			results = append(results, LoadResult{
				Specifier:  args[i],
				Identifier: ns.Identifier(),
				Exports:    exports,
			})
		}
		if len(results) > 0 {
			if err := output.Encode(w, format, results); err != nil {
				return err
			}
		}
	}

	output.Debug("load finished", "referrer", from.referrer, "entries", len(args))
	return reportErrors(cmd.ErrOrStderr(), errs)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// entryDir is where entries were resolved from.
type entryDir struct {
	referrer string
	dir      string
}

// loaded collects the per-entry outcomes of a load in argument order.
type loaded struct {
	ns   []*loader.Namespace
	errs []error
}

// ids returns the identifiers of the entries that loaded. It is never nil, so
// a load where every entry failed selects no rows.
func (l loaded) ids() []string {
	ids := []string{}
	for _, ns := range l.ns {
		if ns != nil {
			ids = append(ids, ns.Identifier())
		}
	}
	return ids
}

// loadEntries loads every entry with at most flags.jobs in flight. Failures
// are recorded per entry rather than cancelling the others.
func loadEntries(ctx context.Context, g *GlobalConfig, flags *loadFlags, args []string) (*session, entryDir, loaded, error) {
	s, err := newSession(g)
	if err != nil {
		return nil, entryDir{}, loaded{}, err
	}
	referrer, dir, err := referrerFor(flags.from)
	if err != nil {
		return nil, entryDir{}, loaded{}, err
	}

	res := loaded{
		ns:   make([]*loader.Namespace, len(args)),
		errs: make([]error, len(args)),
	}
	title := fmt.Sprintf("Loading %d module(s)", len(args))
	err = output.RunWithSpinner(ctx, title, func(ctx context.Context) error {
		eg, ctx := errgroup.WithContext(ctx)
		eg.SetLimit(max(flags.jobs, 1))
		for i, arg := range args {
			spec := entrySpecifier(g.Fs, arg, dir)
			eg.Go(func() error {
				ns, err := s.loader.ImportFrom(ctx, spec, referrer)
				res.ns[i], res.errs[i] = ns, err
				if err == nil {
					output.ModuleLogger(ns.Identifier()).Debug("loaded", "specifier", arg)
				}
				return nil
			})
		}
		return eg.Wait()
	})
	return s, entryDir{referrer: referrer, dir: dir}, res, err
}

// entrySpecifier treats a plain name that exists in dir as a relative path,
// the way a command-line entry point is usually meant.
func entrySpecifier(fs afero.Fs, arg, dir string) string {
	if arg == "" || strings.HasPrefix(arg, ".") || strings.HasPrefix(arg, "/") || strings.Contains(arg, ":") {
		return arg
	}
	info, err := fs.Stat(filepath.Join(dir, arg))
	if err != nil || info.IsDir() {
		return arg
	}
	return "./" + arg
}

func moduleRows(graph []loader.ModuleInfo, only []string) []output.ModuleRow {
	keep := make(map[string]bool, len(only))
	for _, id := range only {
		keep[id] = true
	}
	var rows []output.ModuleRow
	for _, m := range graph {
		if only != nil && !keep[m.Identifier] {
			continue
		}
		rows = append(rows, output.ModuleRow{
			Identifier: m.Identifier,
			Format:     m.Format,
			Status:     m.Status,
			Exports:    m.Exports,
			Deps:       len(m.Dependencies),
		})
	}
	return rows
}

func graphNodes(graph []loader.ModuleInfo) []output.GraphNode {
	nodes := make([]output.GraphNode, len(graph))
	for i, m := range graph {
		nodes[i] = output.GraphNode{
			Identifier:   m.Identifier,
			Format:       m.Format,
			Status:       m.Status,
			Dependencies: m.Dependencies,
		}
	}
	return nodes
}
