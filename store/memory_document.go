package store

import (
	"context"
	"sync"
	"time"
)

// MemoryDocumentStore keeps documents in an append-only slice. Inserts
// with the same key do not overwrite; duplicates accumulate just as
// they do in the server-backed stores.
type MemoryDocumentStore struct {
	mu      sync.RWMutex
	docs    []Document
	updated time.Time
}

var _ DocumentStore = (*MemoryDocumentStore)(nil)

// NewMemoryDocumentStore creates an empty in-memory document store.
func NewMemoryDocumentStore() *MemoryDocumentStore {
	return &MemoryDocumentStore{}
}

// Insert appends the document.
func (s *MemoryDocumentStore) Insert(ctx context.Context, key string, fields map[string]any, meta map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs = append(s.docs, Document{Key: key, Fields: fields, Metadata: meta})
	s.updated = time.Now()
	return nil
}

// Find returns documents whose fields match the filter exactly.
func (s *MemoryDocumentStore) Find(ctx context.Context, filter map[string]any, projection []string) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Document
	for _, doc := range s.docs {
		if !matchesFilter(doc.Fields, filter) {
			continue
		}
		out = append(out, project(doc, projection))
	}
	return out, nil
}

// Clear drops every document.
func (s *MemoryDocumentStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs = nil
	s.updated = time.Now()
	return nil
}

// Stats reports the document count.
func (s *MemoryDocumentStore) Stats(ctx context.Context) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &Stats{Backend: "memory", Entries: len(s.docs), LastUpdated: s.updated}, nil
}

// Close releases the stored documents.
func (s *MemoryDocumentStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs = nil
	return nil
}

// project keeps only the named top-level fields. A nil projection
// returns the document unchanged.
func project(doc Document, projection []string) Document {
	if len(projection) == 0 {
		return doc
	}
	fields := make(map[string]any, len(projection))
	for _, name := range projection {
		if v, ok := doc.Fields[name]; ok {
			fields[name] = v
		}
	}
	return Document{Key: doc.Key, Fields: fields, Metadata: doc.Metadata}
}
