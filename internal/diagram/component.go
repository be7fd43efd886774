package diagram

import (
	"fmt"
	"strings"

	"github.com/efebarandurmaz/codechart/internal/ir"
)

// DefaultComponentColor fills categories missing from ComponentColors.
const DefaultComponentColor = "#e0e0e0"

// ComponentColors is keyed by the lowercased top-level segment of a category
// ("Frontend/UI" -> "frontend"). Keys cover the areas the classifier prompt
// offers.
var ComponentColors = map[string]string{
	"frontend":       "#61dafb",
	"backend":        "#68a063",
	"database":       "#f29111",
	"api":            "#8e44ad",
	"utilities":      "#95a5a6",
	"config":         "#f1c40f",
	"configuration":  "#f1c40f",
	"tests":          "#e74c3c",
	"testing":        "#e74c3c",
	"styles":         "#e67e22",
	"authentication": "#16a085",
	"infrastructure": "#34495e",
	"documentation":  "#bdc3c7",
	"other":          DefaultComponentColor,
}

// ComponentColor returns the fill used for a category.
func ComponentColor(category string) string {
	top, _, _ := strings.Cut(category, "/")
	if c, ok := ComponentColors[strings.ToLower(strings.TrimSpace(top))]; ok {
		return c
	}
	return DefaultComponentColor
}

// RenderComponent draws one block per category and a "depends" arrow for
// each ordered pair of categories connected by at least one import.
func RenderComponent(m *ir.Model) string {
	var b strings.Builder
	b.WriteString("classDiagram\n")

	order := categoryOrder(m)
	counts := make(map[string]int, len(order))
	owner := make(map[string]string, len(m.Files))
	for _, f := range m.Files {
		counts[f.Category]++
		owner[f.Key()] = f.Category
	}

	for _, cat := range order {
		id := ID(cat)
		fmt.Fprintf(&b, "    class %s[\"%s\"] {\n", id, quote(cat))
		b.WriteString("        +String role\n")
		b.WriteString("        +int fileCount\n")
		b.WriteString("        +getFiles()\n")
		b.WriteString("        +getRole()\n")
		b.WriteString("    }\n")
		fmt.Fprintf(&b, "    note for %s \"%s: %d files\"\n", id, quote(cat), counts[cat])
	}

	type pair struct{ from, to string }
	drawn := make(map[pair]bool)
	for _, e := range m.Edges {
		from, ok := owner[e.FromKey()]
		if !ok {
			continue
		}
		to, ok := owner[e.ToKey()]
		if !ok || from == to {
			continue
		}
		p := pair{from, to}
		if drawn[p] {
			continue
		}
		drawn[p] = true
		fmt.Fprintf(&b, "    %s ..> %s : depends\n", ID(from), ID(to))
	}

	for _, cat := range order {
		fmt.Fprintf(&b, "    style %s fill:%s\n", ID(cat), ComponentColor(cat))
	}
	return b.String()
}

// categoryOrder prefers the model's recorded order and falls back to a scan
// of the files for hand-built models.
func categoryOrder(m *ir.Model) []string {
	if len(m.CategoryOrder) > 0 {
		return m.CategoryOrder
	}
	var order []string
	seen := make(map[string]bool)
	for _, f := range m.Files {
		if !seen[f.Category] {
			seen[f.Category] = true
			order = append(order, f.Category)
		}
	}
	return order
}
