package retriever

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/alantany/medrag/store"
)

// ErrMalformedQuery is returned when a model-translated query does not
// conform to the document schema. The query is rejected, never run.
var ErrMalformedQuery = errors.New("retriever: model produced malformed store query")

// recordFields are the top-level keys a translated filter or
// projection may reference.
var recordFields = map[string]bool{
	"patient_name":    true,
	"gender":          true,
	"age":             true,
	"ethnicity":       true,
	"marital_status":  true,
	"admission_date":  true,
	"discharge_date":  true,
	"chief_complaint": true,
	"present_illness": true,
	"diagnoses":       true,
	"symptoms":        true,
	"lab_results":     true,
	"treatments":      true,
	"examinations":    true,
}

// DocQuery is the structured form a model translates a question into.
type DocQuery struct {
	Filter     map[string]any `json:"filter"`
	Projection []string       `json:"projection"`
}

// Validate rejects queries referencing unknown fields.
func (q *DocQuery) Validate() error {
	for key := range q.Filter {
		if !recordFields[key] {
			return fmt.Errorf("%w: unknown filter field %q", ErrMalformedQuery, key)
		}
	}
	for _, key := range q.Projection {
		if !recordFields[key] {
			return fmt.Errorf("%w: unknown projection field %q", ErrMalformedQuery, key)
		}
	}
	return nil
}

const docQueryPrompt = `你是一个查询翻译助手。把用户的问题翻译成 JSON 查询对象,格式:
{"filter": {"字段": "值"}, "projection": ["字段", ...]}
可用字段: patient_name, gender, age, ethnicity, marital_status, admission_date, discharge_date, chief_complaint, present_illness, diagnoses, symptoms, lab_results, treatments, examinations
只输出 JSON。

问题: %s`

// DocumentRetriever answers questions from the document store. A
// patient name in the question becomes a direct filter; otherwise an
// optional model translates the question into a DocQuery.
type DocumentRetriever struct {
	store      store.DocumentStore
	translator llms.Model // optional
	maxResults int
}

// NewDocumentRetriever creates a document retriever. translator may be
// nil, in which case questions without a patient name scan everything.
func NewDocumentRetriever(s store.DocumentStore, translator llms.Model, maxResults int) *DocumentRetriever {
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	return &DocumentRetriever{store: s, translator: translator, maxResults: maxResults}
}

// Search finds matching records and renders them as text snippets.
func (r *DocumentRetriever) Search(ctx context.Context, question string) ([]string, error) {
	var filter map[string]any
	var projection []string

	if name := ExtractPatientName(question); name != "" {
		filter = map[string]any{"patient_name": name}
	} else if r.translator != nil {
		q, err := r.translateQuery(ctx, question)
		if err != nil {
			return nil, err
		}
		filter = q.Filter
		projection = q.Projection
	}

	// A narrow query that matches nothing stays empty. Re-running
	// unfiltered would hand the synthesizer other patients' records.
	docs, err := r.store.Find(ctx, filter, projection)
	if err != nil {
		return nil, err
	}
	if len(docs) > r.maxResults {
		docs = docs[:r.maxResults]
	}

	snippets := make([]string, 0, len(docs))
	for _, d := range docs {
		snippets = append(snippets, formatDocument(d))
	}
	return snippets, nil
}

// translateQuery asks the model for a DocQuery and validates it
// against the record schema before use.
func (r *DocumentRetriever) translateQuery(ctx context.Context, question string) (*DocQuery, error) {
	messages := []llms.MessageContent{
		llms.TextParts("human", fmt.Sprintf(docQueryPrompt, question)),
	}
	response, err := r.translator.GenerateContent(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("translate document query: %w", err)
	}
	if len(response.Choices) == 0 {
		return nil, ErrMalformedQuery
	}

	var q DocQuery
	raw := stripFences(response.Choices[0].Content)
	if err := json.Unmarshal([]byte(raw), &q); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedQuery, err)
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}
	return &q, nil
}

// formatDocument renders a record document as a readable snippet.
func formatDocument(d store.Document) string {
	var b strings.Builder
	if name, ok := d.Fields["patient_name"].(string); ok && name != "" {
		fmt.Fprintf(&b, "患者: %s", name)
	} else if d.Key != "" {
		fmt.Fprintf(&b, "患者: %s", d.Key)
	}

	writeField := func(label, key string) {
		if v, ok := d.Fields[key].(string); ok && v != "" {
			fmt.Fprintf(&b, "\n%s: %s", label, v)
		}
	}
	writeField("性别", "gender")
	writeField("主诉", "chief_complaint")
	writeField("现病史", "present_illness")

	if age, ok := numberField(d.Fields["age"]); ok && age > 0 {
		fmt.Fprintf(&b, "\n年龄: %d岁", age)
	}
	if list := stringList(d.Fields["diagnoses"]); len(list) > 0 {
		fmt.Fprintf(&b, "\n诊断: %s", strings.Join(list, "; "))
	}
	if list := stringList(d.Fields["treatments"]); len(list) > 0 {
		fmt.Fprintf(&b, "\n治疗: %s", strings.Join(list, "; "))
	}
	if labs := stringMap(d.Fields["lab_results"]); len(labs) > 0 {
		b.WriteString("\n检验:")
		keys := make([]string, 0, len(labs))
		for k := range labs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "\n  - %s: %s", k, labs[k])
		}
	}
	return b.String()
}

func numberField(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}

func stringList(v any) []string {
	switch vv := v.(type) {
	case []string:
		return vv
	case []any:
		out := make([]string, 0, len(vv))
		for _, e := range vv {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func stringMap(v any) map[string]string {
	switch vv := v.(type) {
	case map[string]string:
		return vv
	case map[string]any:
		out := make(map[string]string, len(vv))
		for k, e := range vv {
			if s, ok := e.(string); ok {
				out[k] = s
			}
		}
		return out
	}
	return nil
}

// stripFences removes a surrounding markdown code fence.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
