package depgraph

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/efebarandurmaz/codechart/internal/ir"
)

// Helper types for building test models
type testFile struct {
	name      string
	category  string
	functions []string
	imports   []string
}

func makeTestModel(files ...testFile) *ir.Model {
	m := &ir.Model{}
	for _, tf := range files {
		rec := ir.NewFileRecord("/src/" + tf.name)
		rec.Category = tf.category
		rec.Functions = tf.functions
		m.Files = append(m.Files, rec)
		for _, imp := range tf.imports {
			m.Edges = append(m.Edges, ir.DependencyEdge{From: tf.name, To: imp, RelativePath: "./" + imp})
		}
	}
	return m
}

func countEdgesByKind(g *Graph, kind EdgeKind) int {
	n := 0
	for _, e := range g.Edges {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

func findEdge(g *Graph, from, to string, kind EdgeKind) *Edge {
	for i := range g.Edges {
		if g.Edges[i].From == from && g.Edges[i].To == to && g.Edges[i].Kind == kind {
			return &g.Edges[i]
		}
	}
	return nil
}

// Analyzer Tests

func TestAnalyze_EmptyModel(t *testing.T) {
	g := Analyze(&ir.Model{})

	if len(g.Nodes) != 0 {
		t.Errorf("expected 0 nodes, got %d", len(g.Nodes))
	}
	if len(g.Edges) != 0 {
		t.Errorf("expected 0 edges, got %d", len(g.Edges))
	}
	if g.Stats.ConnectedComponents != 0 {
		t.Errorf("expected 0 components, got %d", g.Stats.ConnectedComponents)
	}
}

func TestAnalyze_SingleFile(t *testing.T) {
	g := Analyze(makeTestModel(testFile{
		name:      "app.js",
		category:  "Frontend",
		functions: []string{"render", "mount"},
	}))

	if g.Stats.FileCount != 1 {
		t.Errorf("expected 1 file, got %d", g.Stats.FileCount)
	}
	if g.Stats.FunctionCount != 2 {
		t.Errorf("expected 2 functions, got %d", g.Stats.FunctionCount)
	}
	if g.Stats.CategoryCount != 1 {
		t.Errorf("expected 1 category, got %d", g.Stats.CategoryCount)
	}
	// file + category + 2 functions
	if g.Stats.TotalNodes != 4 {
		t.Errorf("expected 4 total nodes, got %d", g.Stats.TotalNodes)
	}
	if n := countEdgesByKind(g, EdgeContains); n != 2 {
		t.Errorf("expected 2 contains edges, got %d", n)
	}
	if n := countEdgesByKind(g, EdgeBelongsTo); n != 1 {
		t.Errorf("expected 1 belongs_to edge, got %d", n)
	}
	if len(g.Stats.OrphanFiles) != 1 || g.Stats.OrphanFiles[0] != "app.js" {
		t.Errorf("expected app.js to be an orphan, got %v", g.Stats.OrphanFiles)
	}
}

func TestAnalyze_Imports(t *testing.T) {
	g := Analyze(makeTestModel(
		testFile{name: "a.js", category: "Frontend", imports: []string{"b.js", "c.js"}},
		testFile{name: "b.js", category: "API", imports: []string{"c.js"}},
		testFile{name: "c.js", category: "Utilities"},
	))

	if g.Stats.ImportCount != 3 {
		t.Errorf("expected 3 imports, got %d", g.Stats.ImportCount)
	}
	if g.Stats.MaxFanOut != 2 || g.Stats.HotspotNode != "a.js" {
		t.Errorf("expected hotspot a.js with fan-out 2, got %s/%d", g.Stats.HotspotNode, g.Stats.MaxFanOut)
	}
	if g.Stats.MaxFanIn != 2 || g.Stats.MostImported != "c.js" {
		t.Errorf("expected c.js most imported with fan-in 2, got %s/%d", g.Stats.MostImported, g.Stats.MaxFanIn)
	}
	if g.Stats.ConnectedComponents != 1 {
		t.Errorf("expected 1 component, got %d", g.Stats.ConnectedComponents)
	}
	if len(g.Stats.OrphanFiles) != 0 {
		t.Errorf("expected no orphans, got %v", g.Stats.OrphanFiles)
	}
}

func TestAnalyze_RepeatedImportsFoldIntoWeight(t *testing.T) {
	g := Analyze(makeTestModel(
		testFile{name: "a.js", category: "x", imports: []string{"b.js", "b.js"}},
		testFile{name: "b.js", category: "x"},
	))

	e := findEdge(g, FileNodeID("a.js"), FileNodeID("b.js"), EdgeImports)
	if e == nil {
		t.Fatal("expected an import edge a.js -> b.js")
	}
	if e.Weight != 2 {
		t.Errorf("expected weight 2, got %d", e.Weight)
	}
	if g.Stats.ImportCount != 1 {
		t.Errorf("expected 1 import edge, got %d", g.Stats.ImportCount)
	}
}

func TestAnalyze_TargetOutsideAnalyzedSet(t *testing.T) {
	g := Analyze(makeTestModel(testFile{name: "a.js", category: "x", imports: []string{"vendor.js"}}))

	if g.Stats.FileCount != 2 {
		t.Errorf("expected the import target to get a node, got %d files", g.Stats.FileCount)
	}
}

func TestAnalyze_CategoryDependencies(t *testing.T) {
	g := Analyze(makeTestModel(
		testFile{name: "page.js", category: "Frontend", imports: []string{"api.js", "util.js"}},
		testFile{name: "form.js", category: "Frontend", imports: []string{"api.js"}},
		testFile{name: "api.js", category: "API", imports: []string{"util.js"}},
		testFile{name: "util.js", category: "API"},
	))

	e := findEdge(g, CategoryNodeID("Frontend"), CategoryNodeID("API"), EdgeDependsOn)
	if e == nil {
		t.Fatal("expected Frontend -> API dependency")
	}
	if e.Weight != 3 {
		t.Errorf("expected weight 3, got %d", e.Weight)
	}
	if n := countEdgesByKind(g, EdgeDependsOn); n != 1 {
		t.Errorf("same-category imports must not produce dependencies, got %d", n)
	}
	if g.Stats.CategoryFanOut["Frontend"] != 1 {
		t.Errorf("expected Frontend fan-out 1, got %v", g.Stats.CategoryFanOut)
	}
}

func TestAnalyze_CycleDetection(t *testing.T) {
	g := Analyze(makeTestModel(
		testFile{name: "a.js", category: "x", imports: []string{"b.js"}},
		testFile{name: "b.js", category: "x", imports: []string{"c.js"}},
		testFile{name: "c.js", category: "x", imports: []string{"a.js"}},
	))

	if len(g.Stats.CyclicDeps) != 1 {
		t.Fatalf("expected 1 cycle, got %d: %v", len(g.Stats.CyclicDeps), g.Stats.CyclicDeps)
	}
	if got := strings.Join(g.Stats.CyclicDeps[0], ","); got != "a.js,b.js,c.js" {
		t.Errorf("unexpected cycle: %s", got)
	}
}

func TestAnalyze_NoCycles(t *testing.T) {
	g := Analyze(makeTestModel(
		testFile{name: "a.js", category: "x", imports: []string{"b.js"}},
		testFile{name: "b.js", category: "x"},
	))
	if len(g.Stats.CyclicDeps) != 0 {
		t.Errorf("expected no cycles, got %v", g.Stats.CyclicDeps)
	}
}

func TestAnalyze_SelfImport(t *testing.T) {
	g := Analyze(makeTestModel(testFile{name: "a.js", category: "x", imports: []string{"a.js"}}))
	if len(g.Stats.CyclicDeps) != 1 || len(g.Stats.CyclicDeps[0]) != 1 {
		t.Errorf("expected a one-file cycle, got %v", g.Stats.CyclicDeps)
	}
}

func TestAnalyze_ConnectedComponents(t *testing.T) {
	g := Analyze(makeTestModel(
		testFile{name: "a.js", category: "x", imports: []string{"b.js"}},
		testFile{name: "b.js", category: "x"},
		testFile{name: "c.js", category: "x", imports: []string{"d.js"}},
		testFile{name: "d.js", category: "x"},
		testFile{name: "e.js", category: "x"},
	))
	if g.Stats.ConnectedComponents != 3 {
		t.Errorf("expected 3 components, got %d", g.Stats.ConnectedComponents)
	}
}

func TestAnalyze_DuplicateFunctions(t *testing.T) {
	g := Analyze(makeTestModel(
		testFile{name: "a.js", category: "x", functions: []string{"init"}},
		testFile{name: "b.js", category: "x", functions: []string{"init"}},
	))
	// Same name in different files is two nodes.
	if g.Stats.FunctionCount != 2 {
		t.Errorf("expected 2 function nodes, got %d", g.Stats.FunctionCount)
	}
}

// Export Tests

func TestExportDOT(t *testing.T) {
	g := Analyze(makeTestModel(
		testFile{name: "a.js", category: "Frontend", imports: []string{"b.js"}},
		testFile{name: "b.js", category: "Backend"},
	))
	dot := ExportDOT(g)

	for _, want := range []string{
		"digraph dependencies {",
		"subgraph cluster_Frontend",
		"subgraph cluster_Backend",
		`"file:a.js" -> "file:b.js"`,
	} {
		if !strings.Contains(dot, want) {
			t.Errorf("DOT output missing %q:\n%s", want, dot)
		}
	}
	if strings.Index(dot, "cluster_Frontend") > strings.Index(dot, "cluster_Backend") {
		t.Error("clusters should follow first-seen category order")
	}
	if !strings.HasSuffix(dot, "}\n") {
		t.Error("DOT output should end with closing brace")
	}
}

func TestExportMermaid(t *testing.T) {
	g := Analyze(makeTestModel(
		testFile{name: "a.js", category: "Frontend", imports: []string{"b.js"}},
		testFile{name: "b.js", category: "Frontend"},
	))
	out := ExportMermaid(g)

	if !strings.HasPrefix(out, "graph LR\n") {
		t.Errorf("expected flowchart header, got %q", out)
	}
	if !strings.Contains(out, "file_a_js --> file_b_js") {
		t.Errorf("missing import edge:\n%s", out)
	}
	if !strings.Contains(out, `subgraph cat_Frontend["Frontend"]`) {
		t.Errorf("missing category subgraph:\n%s", out)
	}
}

func TestExportJSON(t *testing.T) {
	g := Analyze(makeTestModel(testFile{name: "a.js", category: "x", functions: []string{"f"}}))
	data, err := ExportJSON(g)
	if err != nil {
		t.Fatal(err)
	}
	var decoded Graph
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if decoded.Stats.FileCount != 1 || len(decoded.Nodes) != len(g.Nodes) {
		t.Errorf("round trip lost data: %+v", decoded.Stats)
	}
}

func TestFormatStats(t *testing.T) {
	g := Analyze(makeTestModel(
		testFile{name: "a.js", category: "Frontend", imports: []string{"b.js"}},
		testFile{name: "b.js", category: "API", imports: []string{"a.js"}},
	))
	out := FormatStats(g)

	for _, want := range []string{
		"Dependency Graph Statistics",
		"Files:       2",
		"Cyclic Dependencies: 1",
		"a.js -> b.js",
		"Category Dependencies:",
		"API: 1 outgoing",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("stats output missing %q:\n%s", want, out)
		}
	}
}

func TestAnalyze_NestedFilesShareBasename(t *testing.T) {
	home := ir.NewFileRecordAt("/work/site", "/work/site/app/page.tsx")
	home.Category = "Frontend/Pages"
	about := ir.NewFileRecordAt("/work/site", "/work/site/app/about/page.tsx")
	about.Category = "Frontend/Pages"
	m := &ir.Model{
		Files: []*ir.FileRecord{home, about},
		Edges: []ir.DependencyEdge{{
			From: "page.tsx", To: "page.tsx", RelativePath: "./about/page",
			FromPath: "app/page.tsx", ToPath: "app/about/page.tsx",
		}},
	}

	g := Analyze(m)

	if g.Stats.FileCount != 2 {
		t.Errorf("expected 2 file nodes, got %d", g.Stats.FileCount)
	}
	if findEdge(g, FileNodeID("app/page.tsx"), FileNodeID("app/about/page.tsx"), EdgeImports) == nil {
		t.Error("import edge should connect the two distinct pages")
	}
	if len(g.Stats.CyclicDeps) != 0 {
		t.Errorf("distinct files must not look like a self cycle: %v", g.Stats.CyclicDeps)
	}
}
