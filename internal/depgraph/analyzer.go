package depgraph

import (
	"path"
	"sort"
	"strings"

	"github.com/efebarandurmaz/codechart/internal/ir"
)

// Analyze builds a dependency graph from an aggregated model.
func Analyze(m *ir.Model) *Graph {
	g := &Graph{Nodes: []Node{}, Edges: []Edge{}}

	nodeMap := make(map[string]bool) // track existing node IDs
	categoryOf := make(map[string]string)

	// 1. File nodes, category membership and declared functions
	for _, f := range m.Files {
		fileID := FileNodeID(f.Key())
		categoryOf[f.Key()] = f.Category
		if !nodeMap[fileID] {
			g.Nodes = append(g.Nodes, Node{
				ID:       fileID,
				Name:     f.Name,
				Kind:     NodeFile,
				File:     f.Key(),
				Category: f.Category,
				Metadata: map[string]string{"path": f.Path},
			})
			nodeMap[fileID] = true
		}

		catID := CategoryNodeID(f.Category)
		if !nodeMap[catID] {
			g.Nodes = append(g.Nodes, Node{
				ID:       catID,
				Name:     f.Category,
				Kind:     NodeCategory,
				Category: f.Category,
			})
			nodeMap[catID] = true
		}
		g.Edges = append(g.Edges, Edge{From: fileID, To: catID, Kind: EdgeBelongsTo})

		for _, fn := range f.Functions {
			fnID := "fn:" + f.Key() + "." + fn
			if !nodeMap[fnID] {
				g.Nodes = append(g.Nodes, Node{
					ID:       fnID,
					Name:     fn,
					Kind:     NodeFunction,
					File:     f.Key(),
					Category: f.Category,
				})
				nodeMap[fnID] = true
			}
			g.Edges = append(g.Edges, Edge{From: fileID, To: fnID, Kind: EdgeContains})
		}
	}

	// 2. Import edges. Repeated imports of the same target fold into weight.
	weights := make(map[[2]string]int)
	var order [][2]string
	for _, e := range m.Edges {
		key := [2]string{e.FromKey(), e.ToKey()}
		if weights[key] == 0 {
			order = append(order, key)
		}
		weights[key]++
	}
	for _, key := range order {
		for _, name := range key {
			id := FileNodeID(name)
			if !nodeMap[id] {
				// Target resolved on disk but outside the analyzed set.
				g.Nodes = append(g.Nodes, Node{ID: id, Name: path.Base(name), Kind: NodeFile, File: name})
				nodeMap[id] = true
			}
		}
		g.Edges = append(g.Edges, Edge{
			From:   FileNodeID(key[0]),
			To:     FileNodeID(key[1]),
			Kind:   EdgeImports,
			Weight: weights[key],
		})
	}

	// 3. Category-level dependencies
	g.addCategoryDependencies(categoryOf)

	// 4. Stats
	g.computeStats()

	return g
}

// FileNodeID is the node id of a file key (see ir.FileRecord.Key).
func FileNodeID(name string) string { return "file:" + name }

// CategoryNodeID is the node id of a category.
func CategoryNodeID(category string) string { return "cat:" + category }

func nodeName(id string) string {
	if i := strings.IndexByte(id, ':'); i >= 0 {
		return id[i+1:]
	}
	return id
}

// addCategoryDependencies derives category-to-category edges from imports
// that cross a category boundary.
func (g *Graph) addCategoryDependencies(categoryOf map[string]string) {
	catDeps := make(map[[2]string]int)
	var order [][2]string
	for _, e := range g.Edges {
		if e.Kind != EdgeImports {
			continue
		}
		from, okFrom := categoryOf[nodeName(e.From)]
		to, okTo := categoryOf[nodeName(e.To)]
		if !okFrom || !okTo || from == to {
			continue
		}
		key := [2]string{from, to}
		if catDeps[key] == 0 {
			order = append(order, key)
		}
		catDeps[key] += e.Weight
	}
	for _, key := range order {
		g.Edges = append(g.Edges, Edge{
			From:   CategoryNodeID(key[0]),
			To:     CategoryNodeID(key[1]),
			Kind:   EdgeDependsOn,
			Weight: catDeps[key],
		})
	}
}

// computeStats computes graph metrics
func (g *Graph) computeStats() {
	g.Stats.TotalNodes = len(g.Nodes)
	g.Stats.TotalEdges = len(g.Edges)
	g.Stats.CategoryFanOut = make(map[string]int)

	fanOut := make(map[string]int)
	fanIn := make(map[string]int)

	for _, n := range g.Nodes {
		switch n.Kind {
		case NodeFile:
			g.Stats.FileCount++
		case NodeFunction:
			g.Stats.FunctionCount++
		case NodeCategory:
			g.Stats.CategoryCount++
		}
	}

	for _, e := range g.Edges {
		switch e.Kind {
		case EdgeImports:
			g.Stats.ImportCount++
			fanOut[e.From]++
			fanIn[e.To]++
		case EdgeDependsOn:
			g.Stats.CategoryFanOut[nodeName(e.From)]++
		}
	}

	// Node order keeps ties deterministic: the first file wins.
	for _, n := range g.Nodes {
		if n.Kind != NodeFile {
			continue
		}
		if fanOut[n.ID] > g.Stats.MaxFanOut {
			g.Stats.MaxFanOut = fanOut[n.ID]
			g.Stats.HotspotNode = n.Name
		}
		if fanIn[n.ID] > g.Stats.MaxFanIn {
			g.Stats.MaxFanIn = fanIn[n.ID]
			g.Stats.MostImported = n.Name
		}
		if fanOut[n.ID] == 0 && fanIn[n.ID] == 0 {
			g.Stats.OrphanFiles = append(g.Stats.OrphanFiles, n.Name)
		}
	}

	g.Stats.ConnectedComponents = g.countComponents()
	g.Stats.CyclicDeps = g.detectCycles()
}

// countComponents counts connected components of the file import graph via
// union-find.
func (g *Graph) countComponents() int {
	parent := make(map[string]string)
	var find func(string) string
	find = func(x string) string {
		if parent[x] == "" {
			parent[x] = x
		}
		if parent[x] != x {
			parent[x] = find(parent[x])
		}
		return parent[x]
	}
	union := func(a, b string) {
		fa, fb := find(a), find(b)
		if fa != fb {
			parent[fa] = fb
		}
	}

	for _, n := range g.Nodes {
		if n.Kind == NodeFile {
			find(n.ID)
		}
	}
	for _, e := range g.Edges {
		if e.Kind == EdgeImports {
			union(e.From, e.To)
		}
	}

	roots := make(map[string]bool)
	for _, n := range g.Nodes {
		if n.Kind == NodeFile {
			roots[find(n.ID)] = true
		}
	}
	return len(roots)
}

// detectCycles finds import cycles between files using DFS.
func (g *Graph) detectCycles() [][]string {
	adj := make(map[string][]string)
	files := make(map[string]bool)

	for _, e := range g.Edges {
		if e.Kind == EdgeImports {
			from := nodeName(e.From)
			to := nodeName(e.To)
			adj[from] = append(adj[from], to)
			files[from] = true
			files[to] = true
		}
	}

	var cycles [][]string
	visited := make(map[string]int) // 0=unvisited, 1=in-progress, 2=done
	stack := make([]string, 0)

	var dfs func(node string)
	dfs = func(node string) {
		if visited[node] == 2 {
			return
		}
		if visited[node] == 1 {
			cycle := make([]string, 0)
			for i := len(stack) - 1; i >= 0; i-- {
				cycle = append(cycle, stack[i])
				if stack[i] == node {
					break
				}
			}
			for i, j := 0, len(cycle)-1; i < j; i, j = i+1, j-1 {
				cycle[i], cycle[j] = cycle[j], cycle[i]
			}
			cycles = append(cycles, cycle)
			return
		}
		visited[node] = 1
		stack = append(stack, node)
		for _, next := range adj[node] {
			dfs(next)
		}
		stack = stack[:len(stack)-1]
		visited[node] = 2
	}

	sorted := make([]string, 0, len(files))
	for f := range files {
		sorted = append(sorted, f)
	}
	sort.Strings(sorted)

	for _, f := range sorted {
		if visited[f] == 0 {
			dfs(f)
		}
	}

	return cycles
}
