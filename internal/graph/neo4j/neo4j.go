package neo4j

import (
	"context"
	"fmt"

	"github.com/efebarandurmaz/codechart/internal/graph"
	"github.com/efebarandurmaz/codechart/internal/ir"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Neo4jRepository implements graph.Repository using Neo4j.
//
// Layout: (:Analysis)-[:CONTAINS]->(:File)-[:IN_CATEGORY]->(:Category) and
// (:File)-[:IMPORTS]->(:File). File and Category nodes are scoped by the
// analysis id so several runs can share one database.
type Neo4jRepository struct {
	driver neo4j.DriverWithContext
}

// NewNeo4j connects and verifies connectivity.
func NewNeo4j(ctx context.Context, uri, username, password string) (*Neo4jRepository, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("neo4j connectivity: %w", err)
	}
	return &Neo4jRepository{driver: driver}, nil
}

type statement struct {
	cypher string
	params map[string]any
}

const (
	mergeAnalysis = "MERGE (a:Analysis {id: $id}) SET a.summary = $summary, a.key_flows = $flows"

	mergeFiles = "UNWIND $files AS file " +
		"MERGE (f:File {analysis: $id, path: file.path}) " +
		"SET f.key = file.key, f.name = file.name, f.category = file.category, f.summary = file.summary, " +
		"f.loc = file.loc, f.functions = file.functions, f.degraded = file.degraded " +
		"MERGE (c:Category {analysis: $id, name: file.category}) " +
		"MERGE (f)-[:IN_CATEGORY]->(c) " +
		"WITH f MATCH (a:Analysis {id: $id}) MERGE (a)-[:CONTAINS]->(f)"

	mergeImports = "UNWIND $edges AS edge " +
		"MATCH (src:File {analysis: $id, key: edge.from_key}) " +
		"MATCH (dst:File {analysis: $id, key: edge.to_key}) " +
		"MERGE (src)-[r:IMPORTS {relative_path: edge.relative_path}]->(dst)"

	loadFiles = "MATCH (f:File {analysis: $id}) " +
		"RETURN f.path AS path, f.key AS key, f.name AS name, f.category AS category, f.summary AS summary, " +
		"f.loc AS loc, f.functions AS functions ORDER BY f.path"

	loadImports = "MATCH (src:File {analysis: $id})-[r:IMPORTS]->(dst:File) " +
		"RETURN src.name AS from, dst.name AS to, src.key AS from_key, dst.key AS to_key, " +
		"r.relative_path AS relative_path " +
		"ORDER BY src.path, r.relative_path"

	queryImporters = "MATCH (src:File {analysis: $id})-[:IMPORTS]->(:File {analysis: $id, name: $name}) " +
		"RETURN DISTINCT src.name AS name ORDER BY name"
)

// modelStatements builds the write batch for one model. Edges go last so both
// endpoints exist when they are matched.
func modelStatements(analysisID string, m *ir.Model) []statement {
	files := make([]map[string]any, 0, len(m.Files))
	for _, f := range m.Files {
		files = append(files, map[string]any{
			"path":      f.Path,
			"key":       f.Key(),
			"name":      f.Name,
			"category":  f.Category,
			"summary":   f.Summary,
			"loc":       int64(f.Metrics.LOC),
			"functions": f.Functions,
			"degraded":  f.Degraded,
		})
	}
	edges := make([]map[string]any, 0, len(m.Edges))
	for _, e := range m.Edges {
		edges = append(edges, map[string]any{
			"from":          e.From,
			"to":            e.To,
			"from_key":      e.FromKey(),
			"to_key":        e.ToKey(),
			"relative_path": e.RelativePath,
		})
	}

	flows := m.KeyFlows
	if flows == nil {
		flows = []string{}
	}
	stmts := []statement{
		{cypher: mergeAnalysis, params: map[string]any{"id": analysisID, "summary": m.Summary, "flows": flows}},
	}
	if len(files) > 0 {
		stmts = append(stmts, statement{cypher: mergeFiles, params: map[string]any{"id": analysisID, "files": files}})
	}
	if len(edges) > 0 {
		stmts = append(stmts, statement{cypher: mergeImports, params: map[string]any{"id": analysisID, "edges": edges}})
	}
	return stmts
}

func (r *Neo4jRepository) StoreModel(ctx context.Context, analysisID string, m *ir.Model) error {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		for _, s := range modelStatements(analysisID, m) {
			if _, err := tx.Run(ctx, s.cypher, s.params); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("store analysis %s: %w", analysisID, err)
	}
	return nil
}

// LoadModel returns the stored files and edges. Groups and the narrative are
// not rebuilt; fold the files again for those.
func (r *Neo4jRepository) LoadModel(ctx context.Context, analysisID string) (*ir.Model, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		params := map[string]any{"id": analysisID}
		m := &ir.Model{}

		records, err := tx.Run(ctx, loadFiles, params)
		if err != nil {
			return nil, err
		}
		for records.Next(ctx) {
			rec := records.Record()
			m.Files = append(m.Files, fileFromRecord(rec.AsMap()))
		}
		if err := records.Err(); err != nil {
			return nil, err
		}

		records, err = tx.Run(ctx, loadImports, params)
		if err != nil {
			return nil, err
		}
		for records.Next(ctx) {
			row := records.Record().AsMap()
			m.Edges = append(m.Edges, ir.DependencyEdge{
				From:         asString(row["from"]),
				To:           asString(row["to"]),
				RelativePath: asString(row["relative_path"]),
				FromPath:     asString(row["from_key"]),
				ToPath:       asString(row["to_key"]),
			})
		}
		return m, records.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("load analysis %s: %w", analysisID, err)
	}
	return result.(*ir.Model), nil
}

func (r *Neo4jRepository) QueryImporters(ctx context.Context, analysisID, fileName string) ([]string, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		records, err := tx.Run(ctx, queryImporters, map[string]any{"id": analysisID, "name": fileName})
		if err != nil {
			return nil, err
		}
		var names []string
		for records.Next(ctx) {
			n, _ := records.Record().Get("name")
			names = append(names, asString(n))
		}
		return names, records.Err()
	})
	if err != nil {
		return nil, err
	}
	return result.([]string), nil
}

// Ping verifies the database is reachable.
func (r *Neo4jRepository) Ping(ctx context.Context) error {
	return r.driver.VerifyConnectivity(ctx)
}

func (r *Neo4jRepository) Close(ctx context.Context) error {
	return r.driver.Close(ctx)
}

func fileFromRecord(row map[string]any) *ir.FileRecord {
	rec := ir.NewFileRecord(asString(row["path"]))
	if name := asString(row["name"]); name != "" {
		rec.Name = name
	}
	if key := asString(row["key"]); key != "" {
		rec.RelPath = key
	}
	if c := asString(row["category"]); c != "" {
		rec.Category = c
	}
	if s := asString(row["summary"]); s != "" {
		rec.Summary = s
	}
	if loc, ok := row["loc"].(int64); ok {
		rec.Metrics.LOC = int(loc)
	}
	if fns, ok := row["functions"].([]any); ok {
		for _, fn := range fns {
			if s, ok := fn.(string); ok {
				rec.Functions = append(rec.Functions, s)
			}
		}
	}
	return rec
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

var _ graph.Repository = (*Neo4jRepository)(nil)
