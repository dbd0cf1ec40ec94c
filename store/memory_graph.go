package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

type vertex struct {
	id    string
	vtype string
	name  string
	props map[string]any
}

type edge struct {
	srcID string
	dstID string
	etype string
	props map[string]any
}

// MemoryGraph is an in-process knowledge graph with linear edge scans.
type MemoryGraph struct {
	mu       sync.RWMutex
	vertices map[string]vertex
	edges    []edge
	updated  time.Time
}

var _ GraphStore = (*MemoryGraph)(nil)

// NewMemoryGraph creates an empty in-memory graph.
func NewMemoryGraph() *MemoryGraph {
	return &MemoryGraph{
		vertices: make(map[string]vertex),
	}
}

// AddVertex stores a vertex and returns its generated ID. Vertices are
// never merged; each call creates a new one.
func (m *MemoryGraph) AddVertex(ctx context.Context, vtype, name string, props map[string]any) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.NewString()
	m.vertices[id] = vertex{id: id, vtype: vtype, name: name, props: props}
	m.updated = time.Now()
	return id, nil
}

// AddEdge links two existing vertices with a typed edge.
func (m *MemoryGraph) AddEdge(ctx context.Context, srcID, dstID, etype string, props map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.vertices[srcID]; !ok {
		return fmt.Errorf("store: edge source vertex not found: %s", srcID)
	}
	if _, ok := m.vertices[dstID]; !ok {
		return fmt.Errorf("store: edge target vertex not found: %s", dstID)
	}
	m.edges = append(m.edges, edge{srcID: srcID, dstID: dstID, etype: etype, props: props})
	m.updated = time.Now()
	return nil
}

// Traverse matches (start)-[etype]->(end) over all edges.
func (m *MemoryGraph) Traverse(ctx context.Context, start VertexFilter, etype string, end VertexFilter) ([]Traversal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Traversal
	for _, e := range m.edges {
		if etype != "" && e.etype != etype {
			continue
		}
		src, ok := m.vertices[e.srcID]
		if !ok || !matchesVertex(src, start) {
			continue
		}
		dst, ok := m.vertices[e.dstID]
		if !ok || !matchesVertex(dst, end) {
			continue
		}

		t := Traversal{
			StartName: src.name,
			StartType: src.vtype,
			EdgeType:  e.etype,
			EndName:   dst.name,
			EndType:   dst.vtype,
		}
		if v, ok := dst.props["value"].(string); ok {
			t.EndValue = v
		}
		out = append(out, t)
	}
	return out, nil
}

func matchesVertex(v vertex, f VertexFilter) bool {
	if f.Type != "" && v.vtype != f.Type {
		return false
	}
	if f.Name != "" && v.name != f.Name {
		return false
	}
	return true
}

// Clear drops every vertex and edge.
func (m *MemoryGraph) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vertices = make(map[string]vertex)
	m.edges = nil
	m.updated = time.Now()
	return nil
}

// Stats reports vertex and edge counts.
func (m *MemoryGraph) Stats(ctx context.Context) (*Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return &Stats{
		Backend:     "memory",
		Entries:     len(m.vertices) + len(m.edges),
		Vertices:    len(m.vertices),
		Edges:       len(m.edges),
		LastUpdated: m.updated,
	}, nil
}

// Close releases the graph.
func (m *MemoryGraph) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vertices = make(map[string]vertex)
	m.edges = nil
	return nil
}
