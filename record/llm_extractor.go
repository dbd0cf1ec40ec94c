package record

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
)

const extractionSystemPrompt = `你是一个医疗病历信息提取助手。从病历文本中提取结构化信息,只输出 JSON,不要输出任何解释。`

// extractionExample is a worked example the model mirrors; every key a
// Record carries appears here so missing sections come back empty
// rather than absent.
const extractionExample = `{
  "patient_name": "张某某",
  "gender": "男",
  "age": 45,
  "ethnicity": "汉族",
  "marital_status": "已婚",
  "admission_date": "2024-01-05",
  "discharge_date": "2024-01-15",
  "chief_complaint": "头晕伴胸闷3天",
  "present_illness": "患者3天前无明显诱因出现头晕...",
  "diagnoses": ["高血压2级", "2型糖尿病"],
  "symptoms": ["头晕", "胸闷"],
  "lab_results": {"血红蛋白": "120g/L", "血糖": "7.8mmol/L"},
  "treatments": ["降压治疗", "控制血糖"],
  "examinations": {"心电图": "窦性心律"}
}`

// LLMExtractor asks a chat model to produce the structured record as
// JSON. It is the fallback for documents whose layout defeats the
// rule patterns.
type LLMExtractor struct {
	llm llms.Model
}

// NewLLMExtractor creates a model-backed extractor.
func NewLLMExtractor(llm llms.Model) *LLMExtractor {
	return &LLMExtractor{llm: llm}
}

// Extract prompts the model with the document text and a worked JSON
// example, then parses the reply. Code fences around the JSON are
// tolerated; internal bookkeeping keys (_id and friends) are dropped.
// A reply that is not valid JSON yields ErrMalformedExtraction and no
// record is created.
func (e *LLMExtractor) Extract(ctx context.Context, text string) (*Record, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &ExtractionError{Source: "llm", Err: ErrEmptyDocument}
	}

	prompt := fmt.Sprintf("请从下面的病历文本中提取信息,输出与示例结构完全一致的 JSON。\n\n示例:\n%s\n\n病历文本:\n%s", extractionExample, text)
	messages := []llms.MessageContent{
		llms.TextParts("system", extractionSystemPrompt),
		llms.TextParts("human", prompt),
	}

	response, err := e.llm.GenerateContent(ctx, messages)
	if err != nil {
		return nil, &ExtractionError{Source: "llm", Err: err}
	}
	if len(response.Choices) == 0 {
		return nil, &ExtractionError{Source: "llm", Err: ErrMalformedExtraction}
	}

	raw := stripCodeFences(response.Choices[0].Content)

	var fields map[string]any
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, &ExtractionError{Source: "llm", Err: fmt.Errorf("%w: %v", ErrMalformedExtraction, err)}
	}
	for key := range fields {
		if strings.HasPrefix(key, "_") {
			delete(fields, key)
		}
	}

	rec := FromMap(fields)
	if rec.PatientName == "" {
		rec.PatientName = Unknown
	}
	return rec, nil
}

// stripCodeFences removes a surrounding ```json ... ``` block if the
// model wrapped its answer in one.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
