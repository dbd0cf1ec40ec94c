// Package record defines the structured medical record and the
// extractors that build one from raw discharge-summary text.
package record

import (
	"time"
)

// Unknown is the default value for text fields that could not be
// located in the source document.
const Unknown = "未知"

// Record is the structured form of one inpatient medical record.
// A Record is immutable once written to the stores; re-ingesting the
// same document produces a new Record.
type Record struct {
	PatientName   string            `json:"patient_name"`
	Gender        string            `json:"gender"`
	Age           int               `json:"age"`
	Ethnicity     string            `json:"ethnicity"`
	MaritalStatus string            `json:"marital_status"`
	AdmissionDate time.Time         `json:"admission_date"`
	DischargeDate time.Time         `json:"discharge_date"`
	ChiefComplaint string           `json:"chief_complaint"`
	PresentIllness string           `json:"present_illness"`
	Diagnoses     []string          `json:"diagnoses"`
	Symptoms      []string          `json:"symptoms"`
	LabResults    map[string]string `json:"lab_results"`
	Treatments    []string          `json:"treatments"`
	Examinations  map[string]string `json:"examinations"`
}

// ToMap flattens the record into the nested map shape the document
// store persists. Dates use the 2006-01-02 layout; the zero time maps
// to an empty string.
func (r *Record) ToMap() map[string]any {
	labs := make(map[string]any, len(r.LabResults))
	for k, v := range r.LabResults {
		labs[k] = v
	}
	exams := make(map[string]any, len(r.Examinations))
	for k, v := range r.Examinations {
		exams[k] = v
	}
	return map[string]any{
		"patient_name":    r.PatientName,
		"gender":          r.Gender,
		"age":             r.Age,
		"ethnicity":       r.Ethnicity,
		"marital_status":  r.MaritalStatus,
		"admission_date":  formatDate(r.AdmissionDate),
		"discharge_date":  formatDate(r.DischargeDate),
		"chief_complaint": r.ChiefComplaint,
		"present_illness": r.PresentIllness,
		"diagnoses":       toAnySlice(r.Diagnoses),
		"symptoms":        toAnySlice(r.Symptoms),
		"lab_results":     labs,
		"treatments":      toAnySlice(r.Treatments),
		"examinations":    exams,
	}
}

// FromMap rebuilds a Record from the document-store shape. Missing or
// mistyped keys fall back to zero values so a partially written
// document still round-trips.
func FromMap(m map[string]any) *Record {
	r := &Record{
		PatientName:    asString(m["patient_name"]),
		Gender:         asString(m["gender"]),
		Ethnicity:      asString(m["ethnicity"]),
		MaritalStatus:  asString(m["marital_status"]),
		ChiefComplaint: asString(m["chief_complaint"]),
		PresentIllness: asString(m["present_illness"]),
		Diagnoses:      asStringSlice(m["diagnoses"]),
		Symptoms:       asStringSlice(m["symptoms"]),
		Treatments:     asStringSlice(m["treatments"]),
		LabResults:     asStringMap(m["lab_results"]),
		Examinations:   asStringMap(m["examinations"]),
	}
	switch v := m["age"].(type) {
	case int:
		r.Age = v
	case int32:
		r.Age = int(v)
	case int64:
		r.Age = int(v)
	case float64:
		r.Age = int(v)
	}
	r.AdmissionDate = parseDate(asString(m["admission_date"]))
	r.DischargeDate = parseDate(asString(m["discharge_date"]))
	return r
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

func parseDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func toAnySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asStringSlice(v any) []string {
	switch vv := v.(type) {
	case []string:
		return append([]string(nil), vv...)
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

func asStringMap(v any) map[string]string {
	switch vv := v.(type) {
	case map[string]string:
		out := make(map[string]string, len(vv))
		for k, e := range vv {
			out[k] = e
		}
		return out
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
