package store

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"
)

// MemoryVectorStore keeps entries in process memory with brute-force
// cosine search. It is the default backend and the one tests use.
type MemoryVectorStore struct {
	mu      sync.RWMutex
	entries []Entry
	updated time.Time
}

var _ VectorStore = (*MemoryVectorStore)(nil)

// NewMemoryVectorStore creates an empty in-memory vector store.
func NewMemoryVectorStore() *MemoryVectorStore {
	return &MemoryVectorStore{}
}

// Upsert appends entries. Existing IDs are replaced in place.
func (s *MemoryVectorStore) Upsert(ctx context.Context, entries []Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range entries {
		replaced := false
		for i := range s.entries {
			if s.entries[i].ID == e.ID {
				s.entries[i] = e
				replaced = true
				break
			}
		}
		if !replaced {
			s.entries = append(s.entries, e)
		}
	}
	s.updated = time.Now()
	return nil
}

// Search scores every stored entry against the query vector and
// returns the topK best matches, optionally restricted by a metadata
// filter.
func (s *MemoryVectorStore) Search(ctx context.Context, vector []float32, topK int, filter map[string]any) ([]SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if topK <= 0 {
		topK = 1
	}

	results := make([]SearchResult, 0, len(s.entries))
	for _, e := range s.entries {
		if !matchesFilter(e.Metadata, filter) {
			continue
		}
		results = append(results, SearchResult{
			Entry: e,
			Score: cosineSimilarity32(vector, e.Vector),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}

// Clear drops every entry.
func (s *MemoryVectorStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	s.updated = time.Now()
	return nil
}

// Stats reports current size and dimension.
func (s *MemoryVectorStore) Stats(ctx context.Context) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := &Stats{
		Backend:     "memory",
		Entries:     len(s.entries),
		LastUpdated: s.updated,
	}
	if len(s.entries) > 0 {
		st.Dimension = len(s.entries[0].Vector)
	}
	return st, nil
}

// Close releases the stored entries.
func (s *MemoryVectorStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	return nil
}

// matchesFilter checks exact equality for every filter key.
func matchesFilter(metadata, filter map[string]any) bool {
	for key, value := range filter {
		got, exists := metadata[key]
		if !exists || got != value {
			return false
		}
	}
	return true
}

// cosineSimilarity32 calculates cosine similarity between two float32
// vectors. Mismatched lengths or zero vectors score 0.
func cosineSimilarity32(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct float64
	var normA float64
	var normB float64

	for i := range a {
		dotProduct += float64(a[i] * b[i])
		normA += float64(a[i] * a[i])
		normB += float64(b[i] * b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
