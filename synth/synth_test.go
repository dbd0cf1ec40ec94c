package synth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/alantany/medrag/log"
	"github.com/alantany/medrag/retriever"
)

// flakyModel fails a set number of times, then answers.
type flakyModel struct {
	failures int
	calls    int
	reply    string
}

func (m *flakyModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	m.calls++
	if m.calls <= m.failures {
		return nil, errors.New("upstream timeout")
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: m.reply}}}, nil
}

func (m *flakyModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return m.reply, nil
}

func testResults() *retriever.Results {
	return &retriever.Results{
		Question: "张三有哪些症状?",
		Mode:     retriever.ModeHybrid,
		Snippets: map[string][]string{
			"vector": {"张三主诉头晕伴胸闷"},
			"graph":  {"张三 -> has_symptom -> 头晕"},
		},
		Errors: map[string]error{},
	}
}

func newTestSynthesizer(m llms.Model) *Synthesizer {
	s := New(m, nil,
		WithRetryDelay(time.Millisecond),
		WithLogger(&log.NoOpLogger{}))
	s.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return s
}

func TestSynthesizer_Answer(t *testing.T) {
	m := &flakyModel{reply: "张三的症状是头晕和胸闷。"}
	s := newTestSynthesizer(m)

	answer, err := s.Answer(context.Background(), "张三有哪些症状?", testResults())
	require.NoError(t, err)
	assert.Equal(t, "张三的症状是头晕和胸闷。", answer)
	assert.Equal(t, 1, m.calls)
}

func TestSynthesizer_RetriesThenSucceeds(t *testing.T) {
	m := &flakyModel{failures: 2, reply: "头晕和胸闷。"}
	s := newTestSynthesizer(m)

	answer, err := s.Answer(context.Background(), "张三有哪些症状?", testResults())
	require.NoError(t, err)
	assert.Equal(t, "头晕和胸闷。", answer)
	assert.Equal(t, 3, m.calls)
}

func TestSynthesizer_FallbackAfterExhaustion(t *testing.T) {
	m := &flakyModel{failures: 10}
	s := newTestSynthesizer(m)

	answer, err := s.Answer(context.Background(), "张三有哪些症状?", testResults())

	require.Error(t, err)
	var serr *SynthesisError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, DefaultMaxAttempts, serr.Attempts)
	assert.Equal(t, DefaultMaxAttempts, m.calls)

	assert.True(t, strings.HasPrefix(answer, UnavailableNotice))
	assert.Contains(t, answer, "张三主诉头晕伴胸闷")
	assert.Contains(t, answer, "张三 -> has_symptom -> 头晕")
	assert.NotEmpty(t, answer, "fallback answer must never be empty")
}

func TestSynthesizer_EmptyResults(t *testing.T) {
	s := newTestSynthesizer(&flakyModel{reply: "unused"})

	answer, err := s.Answer(context.Background(), "问题", &retriever.Results{
		Snippets: map[string][]string{},
	})
	require.NoError(t, err)
	assert.Contains(t, answer, "未能从病历库中检索到相关内容")
}

func TestSynthesizer_EmptyModelReplyCountsAsFailure(t *testing.T) {
	m := &flakyModel{reply: "   "}
	s := newTestSynthesizer(m)

	answer, err := s.Answer(context.Background(), "问题", testResults())
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(answer, UnavailableNotice))
	assert.Equal(t, DefaultMaxAttempts, m.calls)
}

func TestBuildPrompt(t *testing.T) {
	prompt := buildPrompt("张三有哪些症状?", testResults())
	assert.Contains(t, prompt, "1. 张三主诉头晕伴胸闷")
	assert.Contains(t, prompt, "2. 张三 -> has_symptom -> 头晕")
	assert.Contains(t, prompt, "问题: 张三有哪些症状?")
}
