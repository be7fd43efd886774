package depgraph

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/efebarandurmaz/codechart/internal/diagram"
)

const unanalyzed = "unanalyzed"

// cluster is the set of file nodes sharing a category.
type cluster struct {
	label string
	files []Node
}

// fileClusters groups file nodes by category, in the order categories are
// first seen. Function and category nodes are not drawn.
func fileClusters(g *Graph) []cluster {
	var out []cluster
	index := make(map[string]int)
	for _, n := range g.Nodes {
		if n.Kind != NodeFile {
			continue
		}
		label := n.Category
		if label == "" {
			label = unanalyzed
		}
		i, ok := index[label]
		if !ok {
			i = len(out)
			index[label] = i
			out = append(out, cluster{label: label})
		}
		out[i].files = append(out[i].files, n)
	}
	return out
}

func imports(g *Graph) []Edge {
	var out []Edge
	for _, e := range g.Edges {
		if e.Kind == EdgeImports {
			out = append(out, e)
		}
	}
	return out
}

// ExportDOT renders the file import graph for Graphviz, one dashed cluster
// per category. Edges folding several imports carry an "xN" label.
func ExportDOT(g *Graph) string {
	var b strings.Builder
	b.WriteString("digraph dependencies {\n")
	b.WriteString("  rankdir=LR;\n")
	b.WriteString("  node [fontname=\"Helvetica\" shape=box style=filled];\n")
	b.WriteString("  edge [fontname=\"Helvetica\" fontsize=10 color=\"#3fb950\"];\n\n")

	for _, c := range fileClusters(g) {
		fmt.Fprintf(&b, "  subgraph cluster_%s {\n", sanitizeID(c.label))
		fmt.Fprintf(&b, "    label=%q;\n    style=dashed;\n", c.label)
		fill := diagram.ComponentColor(c.label)
		for _, n := range c.files {
			fmt.Fprintf(&b, "    %q [label=%q fillcolor=%q];\n", n.ID, n.Name, fill)
		}
		b.WriteString("  }\n\n")
	}

	for _, e := range imports(g) {
		if e.Weight > 1 {
			fmt.Fprintf(&b, "  %q -> %q [label=\"x%d\"];\n", e.From, e.To, e.Weight)
			continue
		}
		fmt.Fprintf(&b, "  %q -> %q;\n", e.From, e.To)
	}

	b.WriteString("}\n")
	return b.String()
}

// ExportMermaid renders the file import graph as a left-to-right flowchart
// with a subgraph per category.
func ExportMermaid(g *Graph) string {
	var b strings.Builder
	b.WriteString("graph LR\n")

	for _, c := range fileClusters(g) {
		fmt.Fprintf(&b, "  subgraph %s[\"%s\"]\n", sanitizeID("cat_"+c.label), mermaidText(c.label))
		for _, n := range c.files {
			fmt.Fprintf(&b, "    %s[\"%s\"]\n", sanitizeID(n.ID), mermaidText(n.Name))
		}
		b.WriteString("  end\n")
	}
	for _, e := range imports(g) {
		fmt.Fprintf(&b, "  %s --> %s\n", sanitizeID(e.From), sanitizeID(e.To))
	}
	return b.String()
}

// ExportJSON returns the indented graph, stats included.
func ExportJSON(g *Graph) ([]byte, error) {
	return json.MarshalIndent(g, "", "  ")
}

// FormatStats is the plain-text report printed by `codechart analyze --stats`.
func FormatStats(g *Graph) string {
	s := g.Stats
	var b strings.Builder
	b.WriteString("Dependency Graph Statistics\n")
	b.WriteString("==========================\n\n")
	fmt.Fprintf(&b, "Nodes:         %d total\n", s.TotalNodes)
	fmt.Fprintf(&b, "  Files:       %d\n", s.FileCount)
	fmt.Fprintf(&b, "  Functions:   %d\n", s.FunctionCount)
	fmt.Fprintf(&b, "  Categories:  %d\n", s.CategoryCount)
	fmt.Fprintf(&b, "Edges:         %d total (%d imports)\n", s.TotalEdges, s.ImportCount)
	fmt.Fprintf(&b, "Max Fan-Out:   %d (%s)\n", s.MaxFanOut, s.HotspotNode)
	fmt.Fprintf(&b, "Max Fan-In:    %d (%s)\n", s.MaxFanIn, s.MostImported)
	fmt.Fprintf(&b, "Components:    %d\n", s.ConnectedComponents)
	if len(s.OrphanFiles) > 0 {
		fmt.Fprintf(&b, "Orphan Files:  %s\n", strings.Join(s.OrphanFiles, ", "))
	}

	if len(s.CyclicDeps) > 0 {
		fmt.Fprintf(&b, "\nCyclic Dependencies: %d\n", len(s.CyclicDeps))
		for i, cycle := range s.CyclicDeps {
			fmt.Fprintf(&b, "  %d: %s\n", i+1, strings.Join(cycle, " -> "))
		}
	}

	if len(s.CategoryFanOut) > 0 {
		cats := make([]string, 0, len(s.CategoryFanOut))
		for c := range s.CategoryFanOut {
			cats = append(cats, c)
		}
		sort.Strings(cats)
		b.WriteString("\nCategory Dependencies:\n")
		for _, c := range cats {
			fmt.Fprintf(&b, "  %s: %d outgoing\n", c, s.CategoryFanOut[c])
		}
	}
	return b.String()
}

func sanitizeID(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		}
		return '_'
	}, s)
}

func mermaidText(s string) string {
	return strings.ReplaceAll(s, `"`, "'")
}
