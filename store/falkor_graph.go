package store

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// FalkorGraph stores the knowledge graph in FalkorDB, speaking cypher
// over GRAPH.QUERY on a plain go-redis connection. Vertex type is kept
// both as the label and as a "type" property so traversal results come
// back as scalar columns.
type FalkorGraph struct {
	client    redis.UniversalClient
	graphName string
}

var _ GraphStore = (*FalkorGraph)(nil)

// NewFalkorGraph connects to falkordb://host:port/graph_name. The
// graph name defaults to "medrag".
func NewFalkorGraph(ctx context.Context, connectionString string) (*FalkorGraph, error) {
	u, err := url.Parse(connectionString)
	if err != nil {
		return nil, fmt.Errorf("store: invalid falkordb url: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("store: invalid falkordb url: missing host")
	}
	graphName := strings.TrimPrefix(u.Path, "/")
	if graphName == "" {
		graphName = "medrag"
	}

	client := redis.NewClient(&redis.Options{Addr: u.Host})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("store: connect to falkordb: %w", err)
	}

	return &FalkorGraph{client: client, graphName: graphName}, nil
}

// NewFalkorGraphFromClient wraps an existing client; tests use this.
func NewFalkorGraphFromClient(client redis.UniversalClient, graphName string) *FalkorGraph {
	return &FalkorGraph{client: client, graphName: graphName}
}

// AddVertex creates a vertex and returns its generated ID. CREATE is
// used rather than MERGE: duplicate ingestions keep duplicate vertices.
func (f *FalkorGraph) AddVertex(ctx context.Context, vtype, name string, props map[string]any) (string, error) {
	id := uuid.NewString()

	all := map[string]any{"id": id, "name": name, "type": vtype}
	for k, v := range props {
		all[sanitizeLabel(k)] = v
	}

	query := fmt.Sprintf("CREATE (n:%s %s)", sanitizeLabel(vtype), propsToCypher(all))
	if _, err := f.query(ctx, query); err != nil {
		return "", fmt.Errorf("store: create vertex %s: %w", name, err)
	}
	return id, nil
}

// AddEdge links two vertices by their generated IDs.
func (f *FalkorGraph) AddEdge(ctx context.Context, srcID, dstID, etype string, props map[string]any) error {
	query := fmt.Sprintf("MATCH (a {id: %s}), (b {id: %s}) CREATE (a)-[r:%s %s]->(b)",
		quoteCypher(srcID), quoteCypher(dstID), sanitizeLabel(etype), propsToCypher(props))
	if _, err := f.query(ctx, query); err != nil {
		return fmt.Errorf("store: create edge %s: %w", etype, err)
	}
	return nil
}

// Traverse matches (start)-[etype]->(end) and reads scalar columns.
func (f *FalkorGraph) Traverse(ctx context.Context, start VertexFilter, etype string, end VertexFilter) ([]Traversal, error) {
	var b strings.Builder
	b.WriteString("MATCH (a")
	if start.Type != "" {
		b.WriteString(":" + sanitizeLabel(start.Type))
	}
	b.WriteString(")-[r")
	if etype != "" {
		b.WriteString(":" + sanitizeLabel(etype))
	}
	b.WriteString("]->(b")
	if end.Type != "" {
		b.WriteString(":" + sanitizeLabel(end.Type))
	}
	b.WriteString(")")

	var where []string
	if start.Name != "" {
		where = append(where, fmt.Sprintf("a.name = %s", quoteCypher(start.Name)))
	}
	if end.Name != "" {
		where = append(where, fmt.Sprintf("b.name = %s", quoteCypher(end.Name)))
	}
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	b.WriteString(" RETURN a.name, a.type, type(r), b.name, b.type, b.value")

	rows, err := f.query(ctx, b.String())
	if err != nil {
		return nil, fmt.Errorf("store: graph traversal: %w", err)
	}

	out := make([]Traversal, 0, len(rows))
	for _, row := range rows {
		if len(row) < 6 {
			continue
		}
		out = append(out, Traversal{
			StartName: cellString(row[0]),
			StartType: cellString(row[1]),
			EdgeType:  cellString(row[2]),
			EndName:   cellString(row[3]),
			EndType:   cellString(row[4]),
			EndValue:  cellString(row[5]),
		})
	}
	return out, nil
}

// Clear deletes the whole graph key. A graph that was never written is
// already clear.
func (f *FalkorGraph) Clear(ctx context.Context) error {
	err := f.client.Do(ctx, "GRAPH.DELETE", f.graphName).Err()
	if err != nil && !strings.Contains(err.Error(), "empty key") {
		return fmt.Errorf("store: clear graph: %w", err)
	}
	return nil
}

// Stats counts vertices and edges.
func (f *FalkorGraph) Stats(ctx context.Context) (*Stats, error) {
	vertices, err := f.count(ctx, "MATCH (n) RETURN count(n)")
	if err != nil {
		return nil, err
	}
	edges, err := f.count(ctx, "MATCH ()-[r]->() RETURN count(r)")
	if err != nil {
		return nil, err
	}
	return &Stats{
		Backend:     "falkordb",
		Entries:     vertices + edges,
		Vertices:    vertices,
		Edges:       edges,
		LastUpdated: time.Now(),
	}, nil
}

// Close closes the connection.
func (f *FalkorGraph) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}

func (f *FalkorGraph) count(ctx context.Context, cypher string) (int, error) {
	rows, err := f.query(ctx, cypher)
	if err != nil {
		return 0, fmt.Errorf("store: graph stats: %w", err)
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return 0, nil
	}
	n, _ := strconv.Atoi(cellString(rows[0][0]))
	return n, nil
}

// query runs GRAPH.QUERY in verbose mode and returns the result rows.
// The reply is [header, rows, stats] for reads and [stats] shapes for
// writes.
func (f *FalkorGraph) query(ctx context.Context, cypher string) ([][]any, error) {
	res, err := f.client.Do(ctx, "GRAPH.QUERY", f.graphName, cypher).Result()
	if err != nil {
		return nil, err
	}

	reply, ok := res.([]any)
	if !ok {
		return nil, fmt.Errorf("unexpected graph reply type %T", res)
	}
	if len(reply) < 3 {
		return nil, nil
	}

	rawRows, ok := reply[1].([]any)
	if !ok {
		return nil, nil
	}
	rows := make([][]any, 0, len(rawRows))
	for _, r := range rawRows {
		if cells, ok := r.([]any); ok {
			rows = append(rows, cells)
		}
	}
	return rows, nil
}

var labelRegex = regexp.MustCompile(`[^a-zA-Z0-9_]`)

// sanitizeLabel keeps labels and relationship types cypher-safe.
func sanitizeLabel(l string) string {
	clean := labelRegex.ReplaceAllString(l, "_")
	if clean == "" {
		return "Entity"
	}
	return clean
}

// propsToCypher renders a property map as a cypher literal.
func propsToCypher(m map[string]any) string {
	if len(m) == 0 {
		return "{}"
	}
	parts := make([]string, 0, len(m))
	for k, v := range m {
		parts = append(parts, fmt.Sprintf("%s: %s", k, quoteCypher(v)))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// quoteCypher renders a value as a cypher literal, escaping quotes and
// backslashes in strings.
func quoteCypher(v any) string {
	switch x := v.(type) {
	case string:
		escaped := strings.ReplaceAll(x, `\`, `\\`)
		escaped = strings.ReplaceAll(escaped, `"`, `\"`)
		return `"` + escaped + `"`
	case nil:
		return "null"
	default:
		return fmt.Sprint(x)
	}
}

func cellString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		if x == "NULL" || x == "null" {
			return ""
		}
		return x
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}
