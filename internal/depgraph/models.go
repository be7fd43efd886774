package depgraph

// Node is a file, a declared function or a category. IDs are prefixed by
// kind ("file:a.js", "fn:a.js.init", "cat:API").
type Node struct {
	ID       string            `json:"id"`
	Name     string            `json:"name"`
	Kind     NodeKind          `json:"kind"`     // file, function, category
	File     string            `json:"file"`     // owning file basename
	Category string            `json:"category"` // category of the owning file
	Metadata map[string]string `json:"metadata,omitempty"`
}

// NodeKind is the node type.
type NodeKind string

const (
	NodeFile     NodeKind = "file"
	NodeFunction NodeKind = "function"
	NodeCategory NodeKind = "category"
)

// Edge points From -> To by node ID.
type Edge struct {
	From   string   `json:"from"`
	To     string   `json:"to"`
	Kind   EdgeKind `json:"kind"`
	Weight int      `json:"weight,omitempty"` // number of imports folded into the edge
}

type EdgeKind string

const (
	EdgeImports   EdgeKind = "imports"    // file imports file
	EdgeContains  EdgeKind = "contains"   // file declares function
	EdgeBelongsTo EdgeKind = "belongs_to" // file is in category
	EdgeDependsOn EdgeKind = "depends_on" // category depends on category
)

// Graph is what Analyze derives from an aggregated model.
type Graph struct {
	Nodes []Node     `json:"nodes"`
	Edges []Edge     `json:"edges"`
	Stats GraphStats `json:"stats"`
}

// GraphStats holds metrics over the file import graph.
type GraphStats struct {
	TotalNodes          int            `json:"total_nodes"`
	TotalEdges          int            `json:"total_edges"`
	FileCount           int            `json:"file_count"`
	FunctionCount       int            `json:"function_count"`
	CategoryCount       int            `json:"category_count"`
	ImportCount         int            `json:"import_count"`
	MaxFanOut           int            `json:"max_fan_out"`   // most imports from one file
	MaxFanIn            int            `json:"max_fan_in"`    // most importers of one file
	HotspotNode         string         `json:"hotspot_node"`  // file with the highest fan-out
	MostImported        string         `json:"most_imported"` // file with the highest fan-in
	OrphanFiles         []string       `json:"orphan_files,omitempty"`
	ConnectedComponents int            `json:"connected_components"`
	CyclicDeps          [][]string     `json:"cyclic_deps,omitempty"`
	CategoryFanOut      map[string]int `json:"category_fan_out"` // per-category outgoing dependencies
}
