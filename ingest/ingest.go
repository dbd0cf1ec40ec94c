// Package ingest fans one extracted medical record out to the vector,
// document, and graph stores.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/alantany/medrag/embed"
	"github.com/alantany/medrag/log"
	"github.com/alantany/medrag/record"
	"github.com/alantany/medrag/splitter"
	"github.com/alantany/medrag/store"
)

// Edge types linking the patient vertex to its field vertices.
const (
	EdgeBasicInfo      = "has_basic_info"
	EdgeComplaint      = "has_complaint"
	EdgePresentIllness = "has_present_illness"
	EdgeDiagnosis      = "diagnosed_with"
	EdgeSymptom        = "has_symptom"
	EdgeLabResult      = "has_lab_result"
	EdgeTreatment      = "has_treatment"
	EdgeExamination    = "underwent"
)

// WriteError reports which store failed during the fan-out.
type WriteError struct {
	Store string
	Err   error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("ingest: %s store write failed: %v", e.Store, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Report is the per-store outcome of one ingestion. The three writes
// are independent: there is no cross-store transaction and no rollback,
// so a failed store leaves the others written.
type Report struct {
	PatientName string           `json:"patient_name"`
	Filename    string           `json:"filename"`
	Chunks      int              `json:"chunks"`
	Status      map[string]error `json:"-"`
}

// Ok reports whether every store write succeeded.
func (r *Report) Ok() bool {
	for _, err := range r.Status {
		if err != nil {
			return false
		}
	}
	return true
}

// StatusStrings renders per-store outcomes for API responses. Error
// text names the failing store but never includes credentials.
func (r *Report) StatusStrings() map[string]string {
	out := make(map[string]string, len(r.Status))
	for name, err := range r.Status {
		if err == nil {
			out[name] = "ok"
		} else {
			out[name] = err.Error()
		}
	}
	return out
}

// Writer fans extracted records out to the three stores.
type Writer struct {
	vectors   store.VectorStore
	documents store.DocumentStore
	graph     store.GraphStore
	embedder  embed.Embedder
	splitter  *splitter.WordSplitter
	logger    log.Logger
}

// NewWriter wires up a multi-store writer. A nil logger falls back to
// the package default.
func NewWriter(vectors store.VectorStore, documents store.DocumentStore, graph store.GraphStore, embedder embed.Embedder, split *splitter.WordSplitter, logger log.Logger) *Writer {
	if split == nil {
		split = splitter.NewWordSplitter(0)
	}
	if logger == nil {
		logger = log.GetDefaultLogger()
	}
	return &Writer{
		vectors:   vectors,
		documents: documents,
		graph:     graph,
		embedder:  embedder,
		splitter:  split,
		logger:    logger,
	}
}

// Ingest writes one record to all three stores, attempting each even
// when another fails. Re-ingesting the same document writes duplicate
// entries everywhere; nothing deduplicates.
func (w *Writer) Ingest(ctx context.Context, rec *record.Record, rawText, filename string) *Report {
	report := &Report{
		PatientName: rec.PatientName,
		Filename:    filename,
		Status:      make(map[string]error, 3),
	}

	chunks, err := w.writeVectors(ctx, rec, rawText, filename)
	report.Chunks = chunks
	if err != nil {
		err = &WriteError{Store: "vector", Err: err}
		w.logger.Error("ingest %s: %v", filename, err)
	}
	report.Status["vector"] = err

	if err := w.writeDocument(ctx, rec); err != nil {
		werr := &WriteError{Store: "document", Err: err}
		w.logger.Error("ingest %s: %v", filename, werr)
		report.Status["document"] = werr
	} else {
		report.Status["document"] = nil
	}

	if err := w.writeGraph(ctx, rec); err != nil {
		werr := &WriteError{Store: "graph", Err: err}
		w.logger.Error("ingest %s: %v", filename, werr)
		report.Status["graph"] = werr
	} else {
		report.Status["graph"] = nil
	}

	w.logger.Info("ingested %s for patient %s (chunks=%d, ok=%v)",
		filename, rec.PatientName, report.Chunks, report.Ok())
	return report
}

// writeVectors embeds the raw text chunks plus one text per extracted
// field, so both free-text and field-level questions can hit.
func (w *Writer) writeVectors(ctx context.Context, rec *record.Record, rawText, filename string) (int, error) {
	texts := w.splitter.SplitText(rawText)
	chunkCount := len(texts)
	texts = append(texts, fieldTexts(rec)...)
	if len(texts) == 0 {
		return 0, fmt.Errorf("nothing to embed")
	}

	vectors, err := w.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return chunkCount, err
	}

	importTime := time.Now().Format(time.RFC3339)
	entries := make([]store.Entry, len(texts))
	for i, text := range texts {
		entries[i] = store.Entry{
			ID:     uuid.NewString(),
			Vector: vectors[i],
			Metadata: map[string]any{
				"text":            text,
				"patient_name":    rec.PatientName,
				"source_filename": filename,
				"source_type":     "medical_record",
				"import_time":     importTime,
				"chunk_index":     i,
			},
		}
	}
	return chunkCount, w.vectors.Upsert(ctx, entries)
}

func (w *Writer) writeDocument(ctx context.Context, rec *record.Record) error {
	meta := map[string]any{
		"source_type": "pdf",
		"import_time": time.Now().Format(time.RFC3339),
	}
	return w.documents.Insert(ctx, rec.PatientName, rec.ToMap(), meta)
}

// writeGraph creates the patient vertex and one vertex per extracted
// field, each linked from the patient by its category's edge type.
func (w *Writer) writeGraph(ctx context.Context, rec *record.Record) error {
	patientID, err := w.graph.AddVertex(ctx, "patient", rec.PatientName, map[string]any{
		"gender": rec.Gender,
		"age":    rec.Age,
	})
	if err != nil {
		return err
	}

	link := func(vtype, name, value, etype string) error {
		var props map[string]any
		if value != "" {
			props = map[string]any{"value": value}
		}
		id, err := w.graph.AddVertex(ctx, vtype, name, props)
		if err != nil {
			return err
		}
		return w.graph.AddEdge(ctx, patientID, id, etype, nil)
	}

	basics := []struct{ name, value string }{
		{"性别", rec.Gender},
		{"年龄", fmt.Sprintf("%d", rec.Age)},
		{"民族", rec.Ethnicity},
		{"婚姻状况", rec.MaritalStatus},
	}
	for _, b := range basics {
		if err := link("basic_info", b.name, b.value, EdgeBasicInfo); err != nil {
			return err
		}
	}

	if rec.ChiefComplaint != "" {
		if err := link("chief_complaint", rec.ChiefComplaint, "", EdgeComplaint); err != nil {
			return err
		}
	}
	if rec.PresentIllness != "" {
		if err := link("present_illness", rec.PresentIllness, "", EdgePresentIllness); err != nil {
			return err
		}
	}
	for _, d := range rec.Diagnoses {
		if err := link("diagnosis", d, "", EdgeDiagnosis); err != nil {
			return err
		}
	}
	for _, s := range rec.Symptoms {
		if err := link("symptom", s, "", EdgeSymptom); err != nil {
			return err
		}
	}
	for name, value := range rec.LabResults {
		if err := link("lab_result", name, value, EdgeLabResult); err != nil {
			return err
		}
	}
	for _, t := range rec.Treatments {
		if err := link("treatment", t, "", EdgeTreatment); err != nil {
			return err
		}
	}
	for name, value := range rec.Examinations {
		if err := link("examination", name, value, EdgeExamination); err != nil {
			return err
		}
	}
	return nil
}

// fieldTexts renders the extracted fields as small standalone texts.
func fieldTexts(rec *record.Record) []string {
	var texts []string
	if rec.ChiefComplaint != "" {
		texts = append(texts, fmt.Sprintf("%s 主诉: %s", rec.PatientName, rec.ChiefComplaint))
	}
	if rec.PresentIllness != "" {
		texts = append(texts, fmt.Sprintf("%s 现病史: %s", rec.PatientName, rec.PresentIllness))
	}
	for _, d := range rec.Diagnoses {
		texts = append(texts, fmt.Sprintf("%s 诊断: %s", rec.PatientName, d))
	}
	for name, value := range rec.LabResults {
		texts = append(texts, fmt.Sprintf("%s 检验 %s: %s", rec.PatientName, name, value))
	}
	for _, t := range rec.Treatments {
		texts = append(texts, fmt.Sprintf("%s 治疗: %s", rec.PatientName, t))
	}
	return texts
}

// Clear empties all three stores. Like Ingest, it keeps going when a
// store fails and reports per-store outcomes.
func (w *Writer) Clear(ctx context.Context) map[string]error {
	status := make(map[string]error, 3)
	status["vector"] = w.vectors.Clear(ctx)
	status["document"] = w.documents.Clear(ctx)
	status["graph"] = w.graph.Clear(ctx)
	for name, err := range status {
		if err != nil {
			w.logger.Error("clear %s store: %v", name, err)
		}
	}
	return status
}

// Stats gathers per-store snapshots; a failing store contributes an
// error entry instead of aborting the report.
func (w *Writer) Stats(ctx context.Context) map[string]any {
	out := make(map[string]any, 3)
	if s, err := w.vectors.Stats(ctx); err != nil {
		out["vector"] = map[string]string{"error": err.Error()}
	} else {
		out["vector"] = s
	}
	if s, err := w.documents.Stats(ctx); err != nil {
		out["document"] = map[string]string{"error": err.Error()}
	} else {
		out["document"] = s
	}
	if s, err := w.graph.Stats(ctx); err != nil {
		out["graph"] = map[string]string{"error": err.Error()}
	} else {
		out["graph"] = s
	}
	return out
}
