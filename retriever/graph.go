package retriever

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/alantany/medrag/store"
)

// relationshipKeywords maps question keywords to graph edge types. The
// first keyword found in the question wins; an unmatched question
// falls back to basic info.
var relationshipKeywords = []struct {
	keyword string
	edge    string
}{
	{"症状", "has_symptom"},
	{"主诉", "has_complaint"},
	{"不适", "has_complaint"},
	{"现病史", "has_present_illness"},
	{"生化指标", "has_lab_result"},
	{"检验", "has_lab_result"},
	{"化验", "has_lab_result"},
	{"诊断", "diagnosed_with"},
	{"病情", "diagnosed_with"},
	{"疾病", "diagnosed_with"},
	{"治疗", "has_treatment"},
	{"检查", "underwent"},
}

const defaultRelationship = "has_basic_info"

// allowedRelationships is the closed set a model-translated query may
// use.
var allowedRelationships = map[string]bool{
	"has_basic_info":      true,
	"has_complaint":       true,
	"has_present_illness": true,
	"diagnosed_with":      true,
	"has_symptom":         true,
	"has_lab_result":      true,
	"has_treatment":       true,
	"underwent":           true,
}

// GraphQuery is the structured traversal a model translates a
// question into.
type GraphQuery struct {
	StartNode struct {
		Type string `json:"type"`
		Name string `json:"name"`
	} `json:"start_node"`
	Relationship string `json:"relationship"`
	EndNode      struct {
		Type string `json:"type"`
	} `json:"end_node"`
	Return []string `json:"return"`
}

// Validate rejects traversals outside the known edge set.
func (q *GraphQuery) Validate() error {
	if q.Relationship != "" && !allowedRelationships[q.Relationship] {
		return fmt.Errorf("%w: unknown relationship %q", ErrMalformedQuery, q.Relationship)
	}
	return nil
}

const graphQueryPrompt = `你是一个图查询翻译助手。把问题翻译成 JSON 查询对象,格式:
{"start_node": {"type": "patient", "name": "患者名"}, "relationship": "关系", "end_node": {"type": "节点类型"}, "return": ["name", "value"]}
可用关系: has_basic_info, has_complaint, has_present_illness, diagnosed_with, has_symptom, has_lab_result, has_treatment, underwent
只输出 JSON。

问题: %s`

// GraphRetriever answers questions by traversing the knowledge graph.
// The edge type comes from keyword lookup, or from an optional model
// translation validated against the known edge set.
type GraphRetriever struct {
	store      store.GraphStore
	translator llms.Model // optional
	maxResults int
}

// NewGraphRetriever creates a graph retriever. translator may be nil.
func NewGraphRetriever(s store.GraphStore, translator llms.Model, maxResults int) *GraphRetriever {
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	return &GraphRetriever{store: s, translator: translator, maxResults: maxResults}
}

// Search traverses the graph and renders each matched path as
// "patient -> edge -> field: value".
func (r *GraphRetriever) Search(ctx context.Context, question string) ([]string, error) {
	start := store.VertexFilter{Type: "patient", Name: ExtractPatientName(question)}
	etype := relationshipFor(question)
	var end store.VertexFilter

	if r.translator != nil {
		q, err := r.translateQuery(ctx, question)
		if err != nil {
			return nil, err
		}
		if q.StartNode.Name != "" {
			start.Name = q.StartNode.Name
		}
		if q.StartNode.Type != "" {
			start.Type = q.StartNode.Type
		}
		if q.Relationship != "" {
			etype = q.Relationship
		}
		end.Type = q.EndNode.Type
	}

	paths, err := r.store.Traverse(ctx, start, etype, end)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 && etype != "" {
		// The guessed edge type found nothing; widen to every edge
		// from the patient.
		paths, err = r.store.Traverse(ctx, start, "", end)
		if err != nil {
			return nil, err
		}
	}
	if len(paths) > r.maxResults {
		paths = paths[:r.maxResults]
	}

	snippets := make([]string, 0, len(paths))
	for _, p := range paths {
		snippets = append(snippets, p.String())
	}
	return snippets, nil
}

func (r *GraphRetriever) translateQuery(ctx context.Context, question string) (*GraphQuery, error) {
	messages := []llms.MessageContent{
		llms.TextParts("human", fmt.Sprintf(graphQueryPrompt, question)),
	}
	response, err := r.translator.GenerateContent(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("translate graph query: %w", err)
	}
	if len(response.Choices) == 0 {
		return nil, ErrMalformedQuery
	}

	var q GraphQuery
	raw := stripFences(response.Choices[0].Content)
	if err := json.Unmarshal([]byte(raw), &q); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedQuery, err)
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}
	return &q, nil
}

// relationshipFor picks the edge type a question is about.
func relationshipFor(question string) string {
	for _, kw := range relationshipKeywords {
		if strings.Contains(question, kw.keyword) {
			return kw.edge
		}
	}
	return defaultRelationship
}
