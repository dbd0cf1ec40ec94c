// Package synth turns retrieved snippets into a final answer via a
// chat model, with bounded retry and a raw-snippet fallback so the
// caller always gets a usable response.
package synth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"

	"github.com/alantany/medrag/log"
	"github.com/alantany/medrag/ratelimit"
	"github.com/alantany/medrag/retriever"
)

const (
	// DefaultMaxAttempts bounds how often a failing model is retried.
	DefaultMaxAttempts = 3
	// DefaultRetryDelay is the fixed pause between attempts.
	DefaultRetryDelay = 2 * time.Second
	// DefaultTemperature keeps answers close to the source snippets.
	DefaultTemperature = 0.1

	// UnavailableNotice prefixes fallback answers so the caller knows
	// synthesis was skipped.
	UnavailableNotice = "AI 服务暂不可用,以下为检索到的原始内容:"
)

const systemPrompt = `你是一个医疗病历问答助手。只根据提供的病历内容回答问题,不要编造信息。如果病历内容不足以回答,请明确说明无法从现有病历中找到答案。`

// SynthesisError wraps the final model failure after retries were
// exhausted. The fallback answer is still returned alongside it.
type SynthesisError struct {
	Attempts int
	Err      error
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("synth: answer synthesis failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *SynthesisError) Unwrap() error { return e.Err }

// Synthesizer generates answers from retrieval results.
type Synthesizer struct {
	llm         llms.Model
	limiter     *ratelimit.Limiter
	maxAttempts int
	retryDelay  time.Duration
	temperature float64
	logger      log.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithMaxAttempts overrides the retry budget.
func WithMaxAttempts(n int) Option {
	return func(s *Synthesizer) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithRetryDelay overrides the pause between attempts.
func WithRetryDelay(d time.Duration) Option {
	return func(s *Synthesizer) {
		if d > 0 {
			s.retryDelay = d
		}
	}
}

// WithTemperature overrides the sampling temperature.
func WithTemperature(t float64) Option {
	return func(s *Synthesizer) { s.temperature = t }
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(s *Synthesizer) { s.logger = l }
}

// New creates a Synthesizer. limiter may be nil to disable pacing.
func New(llm llms.Model, limiter *ratelimit.Limiter, opts ...Option) *Synthesizer {
	s := &Synthesizer{
		llm:         llm,
		limiter:     limiter,
		maxAttempts: DefaultMaxAttempts,
		retryDelay:  DefaultRetryDelay,
		temperature: DefaultTemperature,
		logger:      log.GetDefaultLogger(),
		sleep:       sleepContext,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Answer synthesizes one answer from the question and every retrieved
// snippet in a single prompt. When the model keeps failing, it returns
// a fallback answer assembled from the raw snippets together with the
// SynthesisError; the answer is never empty.
func (s *Synthesizer) Answer(ctx context.Context, question string, results *retriever.Results) (string, error) {
	if results == nil || results.Empty() {
		return "未能从病历库中检索到相关内容,无法回答该问题。", nil
	}

	prompt := buildPrompt(question, results)
	messages := []llms.MessageContent{
		llms.TextParts("system", systemPrompt),
		llms.TextParts("human", prompt),
	}

	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return s.fallback(results), &SynthesisError{Attempts: attempt, Err: err}
			}
		}

		response, err := s.llm.GenerateContent(ctx, messages, llms.WithTemperature(s.temperature))
		if err == nil && len(response.Choices) > 0 && strings.TrimSpace(response.Choices[0].Content) != "" {
			return strings.TrimSpace(response.Choices[0].Content), nil
		}
		if err == nil {
			err = fmt.Errorf("model returned an empty answer")
		}
		lastErr = err
		s.logger.Warn("synthesis attempt %d/%d failed: %v", attempt, s.maxAttempts, err)

		if attempt < s.maxAttempts {
			if serr := s.sleep(ctx, s.retryDelay); serr != nil {
				return s.fallback(results), &SynthesisError{Attempts: attempt, Err: serr}
			}
		}
	}

	return s.fallback(results), &SynthesisError{Attempts: s.maxAttempts, Err: lastErr}
}

// buildPrompt joins the question with every snippet from every store.
func buildPrompt(question string, results *retriever.Results) string {
	var b strings.Builder
	b.WriteString("病历内容:\n")
	for i, snippet := range results.All() {
		fmt.Fprintf(&b, "%d. %s\n", i+1, snippet)
	}
	fmt.Fprintf(&b, "\n问题: %s\n\n请只根据以上病历内容回答。", question)
	return b.String()
}

// fallback renders the raw snippets with the unavailability notice.
func (s *Synthesizer) fallback(results *retriever.Results) string {
	var b strings.Builder
	b.WriteString(UnavailableNotice)
	for _, snippet := range results.All() {
		b.WriteString("\n- ")
		b.WriteString(snippet)
	}
	return b.String()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
