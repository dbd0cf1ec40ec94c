// Package store holds the three persistence boundaries of the
// pipeline: embeddings, full structured records, and the knowledge
// graph. Each boundary has an in-memory implementation plus one or
// more server-backed ones, selected by URL scheme.
package store

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Entry is one embedded text chunk in a vector store.
type Entry struct {
	ID       string
	Vector   []float32
	Metadata map[string]any
}

// SearchResult is a vector search hit with its cosine similarity.
type SearchResult struct {
	Entry Entry
	Score float64
}

// Text returns the stored chunk text, empty if the metadata lacks it.
func (r SearchResult) Text() string {
	s, _ := r.Entry.Metadata["text"].(string)
	return s
}

// VectorStore persists embeddings and answers nearest-neighbor queries.
type VectorStore interface {
	Upsert(ctx context.Context, entries []Entry) error
	// Search returns up to topK entries by descending cosine
	// similarity. A non-nil filter restricts candidates to entries
	// whose metadata matches every filter key exactly.
	Search(ctx context.Context, vector []float32, topK int, filter map[string]any) ([]SearchResult, error)
	Clear(ctx context.Context) error
	Stats(ctx context.Context) (*Stats, error)
	Close() error
}

// Document is one stored record with its write metadata.
type Document struct {
	Key      string
	Fields   map[string]any
	Metadata map[string]any
}

// DocumentStore persists complete structured records.
type DocumentStore interface {
	Insert(ctx context.Context, key string, fields map[string]any, meta map[string]any) error
	// Find returns documents whose fields match the filter exactly.
	// An empty filter returns everything. A non-nil projection keeps
	// only the named top-level fields.
	Find(ctx context.Context, filter map[string]any, projection []string) ([]Document, error)
	Clear(ctx context.Context) error
	Stats(ctx context.Context) (*Stats, error)
	Close() error
}

// VertexFilter selects graph vertices by type and/or name. Empty
// fields match anything.
type VertexFilter struct {
	Type string
	Name string
}

// Traversal is one matched (start)-[edge]->(end) path.
type Traversal struct {
	StartName string
	StartType string
	EdgeType  string
	EndName   string
	EndType   string
	EndValue  string
}

// String renders the path the way answers quote it.
func (t Traversal) String() string {
	end := t.EndName
	if t.EndValue != "" {
		end = fmt.Sprintf("%s: %s", t.EndName, t.EndValue)
	}
	return fmt.Sprintf("%s -> %s -> %s", t.StartName, t.EdgeType, end)
}

// GraphStore persists entity vertices and typed relationship edges.
type GraphStore interface {
	AddVertex(ctx context.Context, vtype, name string, props map[string]any) (string, error)
	AddEdge(ctx context.Context, srcID, dstID, etype string, props map[string]any) error
	// Traverse matches (start)-[etype]->(end). An empty etype matches
	// every edge type.
	Traverse(ctx context.Context, start VertexFilter, etype string, end VertexFilter) ([]Traversal, error)
	Clear(ctx context.Context) error
	Stats(ctx context.Context) (*Stats, error)
	Close() error
}

// Stats is a point-in-time size snapshot of a store.
type Stats struct {
	Backend     string    `json:"backend"`
	Entries     int       `json:"entries"`
	Vertices    int       `json:"vertices,omitempty"`
	Edges       int       `json:"edges,omitempty"`
	Dimension   int       `json:"dimension,omitempty"`
	LastUpdated time.Time `json:"last_updated"`
}

// NewVectorStore selects a vector store from a URL: memory:// or
// redis://host:port/db.
func NewVectorStore(ctx context.Context, url string) (VectorStore, error) {
	switch {
	case url == "" || strings.HasPrefix(url, "memory://"):
		return NewMemoryVectorStore(), nil
	case strings.HasPrefix(url, "redis://"):
		return NewRedisVectorStore(ctx, url)
	default:
		return nil, fmt.Errorf("store: unsupported vector store URL %q", url)
	}
}

// NewDocumentStore selects a document store from a URL: memory://,
// mongodb://, sqlite://path, or postgres://.
func NewDocumentStore(ctx context.Context, url string) (DocumentStore, error) {
	switch {
	case url == "" || strings.HasPrefix(url, "memory://"):
		return NewMemoryDocumentStore(), nil
	case strings.HasPrefix(url, "mongodb://"), strings.HasPrefix(url, "mongodb+srv://"):
		return NewMongoDocumentStore(ctx, url)
	case strings.HasPrefix(url, "sqlite://"):
		return NewSQLiteDocumentStore(strings.TrimPrefix(url, "sqlite://"))
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return NewPostgresDocumentStore(ctx, url)
	default:
		return nil, fmt.Errorf("store: unsupported document store URL %q", url)
	}
}

// NewGraphStore selects a graph store from a URL: memory:// or
// falkordb://host:port.
func NewGraphStore(ctx context.Context, url string) (GraphStore, error) {
	switch {
	case url == "" || strings.HasPrefix(url, "memory://"):
		return NewMemoryGraph(), nil
	case strings.HasPrefix(url, "falkordb://"):
		return NewFalkorGraph(ctx, url)
	default:
		return nil, fmt.Errorf("store: unsupported graph store URL %q", url)
	}
}
