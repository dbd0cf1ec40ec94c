package record

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Section markers and field patterns for Chinese-language inpatient
// discharge summaries. Each rule is evaluated independently; a rule
// that does not match leaves its field at the documented default.
var (
	reName          = regexp.MustCompile(`姓名\s*[:：]?\s*([\p{Han}]+)`)
	reGender        = regexp.MustCompile(`性别\s*[:：]?\s*([\p{Han}]+)`)
	reAge           = regexp.MustCompile(`年龄\s*[:：]?\s*(\d+)\s*岁`)
	reEthnicity     = regexp.MustCompile(`民族\s*[:：]?\s*([\p{Han}]+)`)
	reMarital       = regexp.MustCompile(`婚姻\s*(?:状况)?\s*[:：]?\s*([\p{Han}]+)`)
	reAdmissionDate = regexp.MustCompile(`(?:住院|入院)日期\s*[:：]\s*(\d{4})\s*年\s*(\d{1,2})\s*月\s*(\d{1,2})\s*日`)
	reDischargeDate = regexp.MustCompile(`出院日期\s*[:：]\s*(\d{4})\s*年\s*(\d{1,2})\s*月\s*(\d{1,2})\s*日`)

	reDiagnosisBlock = regexp.MustCompile(`出院诊断\s*[:：]?\s*([\s\S]*?)(?:出院时情况|出院医嘱|$)`)
	reComplaintBlock = regexp.MustCompile(`主诉\s*[:：]?\s*([\s\S]*?)(?:入院时情况|现病史|$)`)
	reIllnessBlock   = regexp.MustCompile(`(?:现病史|入院时情况)\s*[:：]?\s*([\s\S]*?)(?:既往史|入院诊断|查体|辅助检查|$)`)
	reLabBlock       = regexp.MustCompile(`(?:检验结果|化验结果|生化指标|辅助检查)\s*[:：]?\s*([\s\S]*?)(?:出院诊断|诊疗经过|治疗经过|$)`)
	reTreatmentBlock = regexp.MustCompile(`(?:诊疗经过|治疗经过|治疗方案)\s*[:：]?\s*([\s\S]*?)(?:出院时情况|出院诊断|出院医嘱|$)`)

	reLabItem      = regexp.MustCompile(`([\p{Han}a-zA-Z][\p{Han}a-zA-Z0-9-]*)\s*[:：]?\s*(\d+(?:\.\d+)?\s*[a-zA-Z/%μ^0-9]*)`)
	reListSplit    = regexp.MustCompile(`[\n;；、,，]|\d+[.、)）]`)
	reSymptomSplit = regexp.MustCompile(`[伴,，、及和;；]`)
	reHanRun       = regexp.MustCompile(`[\p{Han}]+`)
)

// RuleExtractor builds a Record from raw text using fixed patterns.
// It never calls out to a model and never panics on malformed input.
type RuleExtractor struct {
	now func() time.Time
}

// NewRuleExtractor creates a rule-based extractor.
func NewRuleExtractor() *RuleExtractor {
	return &RuleExtractor{now: time.Now}
}

// Extract parses the discharge-summary text into a Record. Every field
// is populated: fields whose rule does not match get their default
// (Unknown for text, 0 for age, today for the admission date, empty
// collections for lists). It fails only when the text is empty.
func (e *RuleExtractor) Extract(text string) (*Record, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &ExtractionError{Source: "rules", Err: ErrEmptyDocument}
	}

	r := &Record{
		PatientName:   Unknown,
		Gender:        Unknown,
		Ethnicity:     Unknown,
		MaritalStatus: Unknown,
		LabResults:    map[string]string{},
		Examinations:  map[string]string{},
	}

	if m := reName.FindStringSubmatch(text); m != nil {
		r.PatientName = m[1]
	}
	if m := reGender.FindStringSubmatch(text); m != nil {
		r.Gender = m[1]
	}
	if m := reAge.FindStringSubmatch(text); m != nil {
		if age, err := strconv.Atoi(m[1]); err == nil && age >= 0 {
			r.Age = age
		}
	}
	if m := reEthnicity.FindStringSubmatch(text); m != nil {
		r.Ethnicity = m[1]
	}
	if m := reMarital.FindStringSubmatch(text); m != nil {
		r.MaritalStatus = m[1]
	}

	r.AdmissionDate = e.matchDate(reAdmissionDate, text, e.now())
	r.DischargeDate = e.matchDate(reDischargeDate, text, time.Time{})

	if m := reComplaintBlock.FindStringSubmatch(text); m != nil {
		r.ChiefComplaint = strings.TrimSpace(m[1])
		r.Symptoms = symptomsFromComplaint(r.ChiefComplaint)
	}
	if m := reIllnessBlock.FindStringSubmatch(text); m != nil {
		r.PresentIllness = strings.TrimSpace(m[1])
	}
	if m := reDiagnosisBlock.FindStringSubmatch(text); m != nil {
		r.Diagnoses = splitList(m[1])
	}
	if m := reTreatmentBlock.FindStringSubmatch(text); m != nil {
		r.Treatments = splitList(m[1])
	}
	if m := reLabBlock.FindStringSubmatch(text); m != nil {
		for _, item := range reLabItem.FindAllStringSubmatch(m[1], -1) {
			r.LabResults[item[1]] = strings.TrimSpace(item[2])
		}
	}

	return r, nil
}

// matchDate parses a 2006年1月2日 date, returning fallback when the
// pattern does not match or the digits do not form a real date.
func (e *RuleExtractor) matchDate(re *regexp.Regexp, text string, fallback time.Time) time.Time {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return fallback
	}
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return fallback
	}
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.Local)
}

// symptomsFromComplaint splits a chief complaint on conjunctions and
// keeps the leading Chinese run of each part, so "头晕伴胸闷3天"
// yields 头晕 and 胸闷.
func symptomsFromComplaint(complaint string) []string {
	var out []string
	for _, part := range reSymptomSplit.Split(complaint, -1) {
		run := reHanRun.FindString(part)
		if run != "" {
			out = append(out, run)
		}
	}
	return out
}

// splitList breaks an enumerated block into trimmed, non-empty items.
func splitList(block string) []string {
	var out []string
	for _, part := range reListSplit.Split(block, -1) {
		part = strings.TrimSpace(strings.Trim(part, "。.:："))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
