package retriever

import (
	"context"
	"fmt"

	"github.com/alantany/medrag/embed"
	"github.com/alantany/medrag/store"
)

const (
	// DefaultTopK is how many candidates the store returns before
	// threshold filtering.
	DefaultTopK = 50
	// DefaultMaxResults caps the snippets passed to synthesis.
	DefaultMaxResults = 5
	// DefaultScoreThreshold drops weak matches; results below it are
	// discarded, never padded back in.
	DefaultScoreThreshold = 0.3
)

// VectorRetriever embeds the question with the same embedder the
// ingest path used and runs nearest-neighbor search.
type VectorRetriever struct {
	store      store.VectorStore
	embedder   embed.Embedder
	topK       int
	maxResults int
	threshold  float64
}

// NewVectorRetriever creates a vector retriever; non-positive knobs
// take the defaults.
func NewVectorRetriever(s store.VectorStore, e embed.Embedder, topK, maxResults int, threshold float64) *VectorRetriever {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	if threshold <= 0 {
		threshold = DefaultScoreThreshold
	}
	return &VectorRetriever{store: s, embedder: e, topK: topK, maxResults: maxResults, threshold: threshold}
}

// Search embeds the question and returns the texts of matches above
// the similarity threshold. When the question names a patient, the
// search stays filtered to that patient: a named patient with no
// entries yields empty results, never other patients' records. Only
// questions naming no patient search the whole corpus.
func (r *VectorRetriever) Search(ctx context.Context, question string) ([]string, error) {
	vector, err := r.embedder.EmbedDocument(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	var filter map[string]any
	if name := ExtractPatientName(question); name != "" {
		filter = map[string]any{"patient_name": name}
	}

	hits, err := r.store.Search(ctx, vector, r.topK, filter)
	if err != nil {
		return nil, err
	}

	var snippets []string
	for _, h := range hits {
		if h.Score < r.threshold {
			continue
		}
		if text := h.Text(); text != "" {
			snippets = append(snippets, text)
		}
		if len(snippets) >= r.maxResults {
			break
		}
	}
	return snippets, nil
}
