package output

import (
	"slices"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/tree"
)

// GraphNode is one module of a dependency graph as the renderers see it.
type GraphNode struct {
	Identifier   string
	Format       string
	Status       string
	Dependencies []string
}

// RenderGraphTree renders the dependency tree below each root. A module that
// has already been expanded on the current branch is shown once more and
// marked as a cycle; elsewhere repeated modules are marked as seen.
func RenderGraphTree(nodes []GraphNode, roots []string) string {
	byID := make(map[string]GraphNode, len(nodes))
	for _, n := range nodes {
		byID[n.Identifier] = n
	}

	root := tree.Root("").
		Enumerator(tree.RoundedEnumerator).
		EnumeratorStyle(lipgloss.NewStyle().Foreground(ColorDimGray))

	expanded := map[string]bool{}
	for _, id := range roots {
		root.Child(graphSubtree(byID, id, nil, expanded))
	}
	return root.String()
}

func graphSubtree(byID map[string]GraphNode, id string, branch []string, expanded map[string]bool) *tree.Tree {
	n, ok := byID[id]
	label := StyleNoun.Render(id)
	if ok {
		label += " " + FormatTag(n.Format)
		if n.Status != StatusEvaluated {
			label += " " + statusStyle(n.Status).Render(n.Status)
		}
	}
	switch {
	case slices.Contains(branch, id):
		return tree.Root(label + " " + StyleDim.Render("(cycle)"))
	case expanded[id]:
		return tree.Root(label + " " + StyleDim.Render("(seen)"))
	}
	expanded[id] = true

	t := tree.Root(label)
	branch = append(branch, id)
	for _, dep := range n.Dependencies {
		t.Child(graphSubtree(byID, dep, branch, expanded))
	}
	return t
}
