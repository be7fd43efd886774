package diagram

import (
	"fmt"
	"strings"

	"github.com/efebarandurmaz/codechart/internal/ir"
)

// Palette is cycled over class blocks in file order.
var Palette = []string{
	"#f9d5e5",
	"#eeac99",
	"#e06377",
	"#c83349",
	"#5b9aa0",
	"#d6d4e0",
	"#b8a9c9",
	"#622569",
}

// RenderClass draws one class per file, one method per extracted function
// and an "imports" arrow per dependency edge.
func RenderClass(m *ir.Model) string {
	var b strings.Builder
	b.WriteString("classDiagram\n")

	ids := make([]string, 0, len(m.Files))
	for _, f := range m.Files {
		id := FileID(f.Key())
		ids = append(ids, id)

		fmt.Fprintf(&b, "    class %s[\"%s\"] {\n", id, quote(f.Name))
		b.WriteString("        +String fileName\n")
		b.WriteString("        +int loc\n")
		b.WriteString("        +String category\n")
		if len(f.Libraries) > 0 {
			b.WriteString("        +String[] dependencies\n")
		}
		if len(f.Practices) > 0 {
			b.WriteString("        +String[] practices\n")
		}
		if len(f.Functions) == 0 {
			b.WriteString("        +info()\n")
		}
		for _, fn := range f.Functions {
			fmt.Fprintf(&b, "        %s%s()\n", Visibility(fn), Sanitize(fn))
		}
		b.WriteString("        +getLineCount() int\n")
		b.WriteString("        +getCategory() String\n")
		b.WriteString("    }\n")
	}

	for _, e := range m.Edges {
		fmt.Fprintf(&b, "    %s --> %s : imports\n", FileID(e.FromKey()), FileID(e.ToKey()))
	}

	for i, id := range ids {
		fmt.Fprintf(&b, "    style %s fill:%s\n", id, Palette[i%len(Palette)])
	}
	return b.String()
}
