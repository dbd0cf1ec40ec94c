package retriever

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/alantany/medrag/log"
	"github.com/alantany/medrag/store"
)

// fixedEmbedder returns canned vectors per text, with a fallback for
// unknown texts.
type fixedEmbedder struct {
	vectors  map[string][]float32
	fallback []float32
}

func (f *fixedEmbedder) EmbedDocument(ctx context.Context, text string) ([]float32, error) {
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return f.fallback, nil
}

func (f *fixedEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, _ := f.EmbedDocument(ctx, t)
		out[i] = v
	}
	return out, nil
}

func (f *fixedEmbedder) Dimension() int { return len(f.fallback) }

// scriptedModel returns a fixed reply or error for every call.
type scriptedModel struct {
	reply string
	err   error
}

func (m *scriptedModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: m.reply}}}, nil
}

func (m *scriptedModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return m.reply, nil
}

// failingVectorStore errors on every search.
type failingVectorStore struct {
	store.VectorStore
}

func (f *failingVectorStore) Search(ctx context.Context, vector []float32, topK int, filter map[string]any) ([]store.SearchResult, error) {
	return nil, errors.New("vector backend down")
}

func TestExtractPatientName(t *testing.T) {
	assert.Equal(t, "蒲某某", ExtractPatientName("蒲某某有哪些症状?"))
	assert.Equal(t, "张某某", ExtractPatientName("请查询张某某的生化指标"))
	assert.Equal(t, "张三", ExtractPatientName("患者张三的诊断是什么"))
	assert.Equal(t, "", ExtractPatientName("有哪些高血压病例?"))
}

func TestParseMode(t *testing.T) {
	for _, s := range []string{"vector", "document", "graph", "hybrid"} {
		m, err := ParseMode(s)
		require.NoError(t, err)
		assert.Equal(t, Mode(s), m)
	}

	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeHybrid, m)

	_, err = ParseMode("fulltext")
	assert.Error(t, err)
}

func TestVectorRetriever_ThresholdFiltering(t *testing.T) {
	ctx := context.Background()
	vs := store.NewMemoryVectorStore()
	require.NoError(t, vs.Upsert(ctx, []store.Entry{
		{ID: "hit", Vector: []float32{1, 0}, Metadata: map[string]any{"text": "患者头晕三天"}},
		{ID: "miss", Vector: []float32{0, 1}, Metadata: map[string]any{"text": "无关内容"}},
	}))

	e := &fixedEmbedder{
		vectors:  map[string][]float32{"患者头晕三天": {1, 0}},
		fallback: []float32{1, 0},
	}
	r := NewVectorRetriever(vs, e, 50, 5, 0.3)

	snippets, err := r.Search(ctx, "患者头晕三天")
	require.NoError(t, err)
	require.Len(t, snippets, 1, "below-threshold matches must be dropped, not padded")
	assert.Equal(t, "患者头晕三天", snippets[0])
}

func TestVectorRetriever_PatientFilter(t *testing.T) {
	ctx := context.Background()
	vs := store.NewMemoryVectorStore()
	require.NoError(t, vs.Upsert(ctx, []store.Entry{
		{ID: "a", Vector: []float32{1, 0}, Metadata: map[string]any{"text": "蒲某某主诉头晕", "patient_name": "蒲某某"}},
		{ID: "b", Vector: []float32{1, 0}, Metadata: map[string]any{"text": "李某某主诉胸闷", "patient_name": "李某某"}},
	}))

	e := &fixedEmbedder{fallback: []float32{1, 0}}
	r := NewVectorRetriever(vs, e, 50, 5, 0.3)

	snippets, err := r.Search(ctx, "蒲某某的主诉是什么")
	require.NoError(t, err)
	require.Len(t, snippets, 1)
	assert.Equal(t, "蒲某某主诉头晕", snippets[0])

	// A named patient with no entries must stay empty; other patients'
	// records never stand in.
	snippets, err = r.Search(ctx, "王某某的主诉是什么")
	require.NoError(t, err)
	assert.Empty(t, snippets)

	// No patient name searches the whole corpus.
	snippets, err = r.Search(ctx, "主诉一般写什么")
	require.NoError(t, err)
	assert.Len(t, snippets, 2)
}

func TestDocumentRetriever_PatientNameFilter(t *testing.T) {
	ctx := context.Background()
	ds := store.NewMemoryDocumentStore()
	require.NoError(t, ds.Insert(ctx, "蒲某某", map[string]any{
		"patient_name": "蒲某某",
		"gender":       "男",
		"age":          45,
		"diagnoses":    []any{"高血压2级"},
		"lab_results":  map[string]any{"血糖": "7.8mmol/L"},
	}, nil))
	require.NoError(t, ds.Insert(ctx, "李某某", map[string]any{"patient_name": "李某某"}, nil))

	r := NewDocumentRetriever(ds, nil, 5)
	snippets, err := r.Search(ctx, "蒲某某的检验结果")
	require.NoError(t, err)
	require.Len(t, snippets, 1)
	assert.Contains(t, snippets[0], "患者: 蒲某某")
	assert.Contains(t, snippets[0], "年龄: 45岁")
	assert.Contains(t, snippets[0], "诊断: 高血压2级")
	assert.Contains(t, snippets[0], "- 血糖: 7.8mmol/L")

	// Asking about a patient the store has never seen returns nothing
	// rather than the other patients' records.
	snippets, err = r.Search(ctx, "王某某的主诉是什么")
	require.NoError(t, err)
	assert.Empty(t, snippets)
}

func TestDocumentRetriever_TranslatedQuery(t *testing.T) {
	ctx := context.Background()
	ds := store.NewMemoryDocumentStore()
	require.NoError(t, ds.Insert(ctx, "蒲某某", map[string]any{"patient_name": "蒲某某", "gender": "男"}, nil))
	require.NoError(t, ds.Insert(ctx, "李某某", map[string]any{"patient_name": "李某某", "gender": "女"}, nil))

	translator := &scriptedModel{reply: "```json\n{\"filter\": {\"gender\": \"女\"}, \"projection\": [\"patient_name\", \"gender\"]}\n```"}
	r := NewDocumentRetriever(ds, translator, 5)

	snippets, err := r.Search(ctx, "有哪些女性病人?")
	require.NoError(t, err)
	require.Len(t, snippets, 1)
	assert.Contains(t, snippets[0], "李某某")
}

func TestDocumentRetriever_MalformedTranslationRejected(t *testing.T) {
	ctx := context.Background()
	ds := store.NewMemoryDocumentStore()

	t.Run("invalid json", func(t *testing.T) {
		r := NewDocumentRetriever(ds, &scriptedModel{reply: "我不知道"}, 5)
		_, err := r.Search(ctx, "有哪些女性病人?")
		assert.ErrorIs(t, err, ErrMalformedQuery)
	})

	t.Run("unknown field", func(t *testing.T) {
		r := NewDocumentRetriever(ds, &scriptedModel{reply: `{"filter": {"ssn": "123"}}`}, 5)
		_, err := r.Search(ctx, "有哪些女性病人?")
		assert.ErrorIs(t, err, ErrMalformedQuery)
	})
}

func TestGraphRetriever_SymptomTraversal(t *testing.T) {
	ctx := context.Background()
	gs := store.NewMemoryGraph()
	patient, _ := gs.AddVertex(ctx, "patient", "张三", nil)
	symptom, _ := gs.AddVertex(ctx, "symptom", "头晕", nil)
	require.NoError(t, gs.AddEdge(ctx, patient, symptom, "has_symptom", nil))

	r := NewGraphRetriever(gs, nil, 5)
	snippets, err := r.Search(ctx, "患者张三有哪些症状?")
	require.NoError(t, err)
	assert.Equal(t, []string{"张三 -> has_symptom -> 头晕"}, snippets)
}

func TestGraphRetriever_KeywordFallbackWidens(t *testing.T) {
	ctx := context.Background()
	gs := store.NewMemoryGraph()
	patient, _ := gs.AddVertex(ctx, "patient", "张三", nil)
	info, _ := gs.AddVertex(ctx, "basic_info", "性别", map[string]any{"value": "男"})
	require.NoError(t, gs.AddEdge(ctx, patient, info, "has_basic_info", nil))

	r := NewGraphRetriever(gs, nil, 5)
	// Question mentions 症状 but the patient has no symptom edges;
	// the retriever widens to all edges.
	snippets, err := r.Search(ctx, "患者张三有哪些症状?")
	require.NoError(t, err)
	require.Len(t, snippets, 1)
	assert.Equal(t, "张三 -> has_basic_info -> 性别: 男", snippets[0])
}

func TestGraphRetriever_UnknownPatientStaysEmpty(t *testing.T) {
	ctx := context.Background()
	gs := store.NewMemoryGraph()
	patient, _ := gs.AddVertex(ctx, "patient", "张三", nil)
	symptom, _ := gs.AddVertex(ctx, "symptom", "头晕", nil)
	require.NoError(t, gs.AddEdge(ctx, patient, symptom, "has_symptom", nil))

	r := NewGraphRetriever(gs, nil, 5)
	// The edge-type widening keeps the patient filter, so another
	// patient's edges never surface.
	snippets, err := r.Search(ctx, "王某某有哪些症状?")
	require.NoError(t, err)
	assert.Empty(t, snippets)
}

func TestGraphRetriever_TranslatedQueryValidation(t *testing.T) {
	ctx := context.Background()
	gs := store.NewMemoryGraph()

	r := NewGraphRetriever(gs, &scriptedModel{reply: `{"relationship": "drop_table"}`}, 5)
	_, err := r.Search(ctx, "问题")
	assert.ErrorIs(t, err, ErrMalformedQuery)
}

func TestRelationshipFor(t *testing.T) {
	assert.Equal(t, "has_symptom", relationshipFor("有哪些症状"))
	assert.Equal(t, "has_lab_result", relationshipFor("查一下化验结果"))
	assert.Equal(t, "diagnosed_with", relationshipFor("诊断是什么"))
	assert.Equal(t, "has_treatment", relationshipFor("怎么治疗的"))
	assert.Equal(t, "has_basic_info", relationshipFor("随便问问"))
}

func newHybridRouter(vs store.VectorStore) *Router {
	ctx := context.Background()
	e := &fixedEmbedder{fallback: []float32{1, 0}}

	ds := store.NewMemoryDocumentStore()
	_ = ds.Insert(ctx, "张三", map[string]any{"patient_name": "张三", "gender": "男"}, nil)

	gs := store.NewMemoryGraph()
	patient, _ := gs.AddVertex(ctx, "patient", "张三", nil)
	symptom, _ := gs.AddVertex(ctx, "symptom", "头晕", nil)
	_ = gs.AddEdge(ctx, patient, symptom, "has_symptom", nil)

	return NewRouter(
		NewVectorRetriever(vs, e, 50, 5, 0.3),
		NewDocumentRetriever(ds, nil, 5),
		NewGraphRetriever(gs, nil, 5),
		&log.NoOpLogger{},
	)
}

func TestRouter_HybridSurvivesOneStoreFailure(t *testing.T) {
	ctx := context.Background()
	router := newHybridRouter(&failingVectorStore{})

	results, err := router.Search(ctx, "患者张三有哪些症状?", ModeHybrid)
	require.NoError(t, err)

	require.Error(t, results.Errors["vector"])
	var qerr *QueryError
	require.ErrorAs(t, results.Errors["vector"], &qerr)
	assert.Equal(t, "vector", qerr.Store)

	assert.NotEmpty(t, results.Snippets["document"])
	assert.NotEmpty(t, results.Snippets["graph"])
	assert.False(t, results.Empty())
}

func TestRouter_SingleStoreModes(t *testing.T) {
	ctx := context.Background()
	vs := store.NewMemoryVectorStore()
	_ = vs.Upsert(ctx, []store.Entry{
		{ID: "a", Vector: []float32{1, 0}, Metadata: map[string]any{"text": "张三主诉头晕", "patient_name": "张三"}},
	})
	router := newHybridRouter(vs)

	results, err := router.Search(ctx, "患者张三有哪些症状?", ModeGraph)
	require.NoError(t, err)
	assert.NotEmpty(t, results.Snippets["graph"])
	assert.Empty(t, results.Snippets["vector"])
	assert.Empty(t, results.Snippets["document"])

	results, err = router.Search(ctx, "患者张三有哪些症状?", ModeVector)
	require.NoError(t, err)
	assert.NotEmpty(t, results.Snippets["vector"])
	assert.Empty(t, results.Snippets["graph"])
}

func TestRouter_RejectsUnknownMode(t *testing.T) {
	router := newHybridRouter(store.NewMemoryVectorStore())
	_, err := router.Search(context.Background(), "问题", Mode("sql"))
	assert.Error(t, err)
}
