package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/alantany/medrag/config"
	"github.com/alantany/medrag/ingest"
	"github.com/alantany/medrag/loader"
	"github.com/alantany/medrag/log"
	"github.com/alantany/medrag/ratelimit"
	"github.com/alantany/medrag/record"
	"github.com/alantany/medrag/retriever"
	"github.com/alantany/medrag/session"
	"github.com/alantany/medrag/synth"
)

// Server exposes the ingestion and question answering API.
type Server struct {
	cfg *config.Config

	writer      *ingest.Writer
	router      *retriever.Router
	synthesizer *synth.Synthesizer

	ruleExtractor *record.RuleExtractor
	llmExtractor  *record.LLMExtractor

	limiter    *ratelimit.Limiter
	transcript *session.Transcript
	logger     log.Logger
}

// NewServer wires the HTTP layer over the pipeline components.
func NewServer(cfg *config.Config, writer *ingest.Writer, router *retriever.Router, synthesizer *synth.Synthesizer, ruleExtractor *record.RuleExtractor, llmExtractor *record.LLMExtractor, limiter *ratelimit.Limiter, transcript *session.Transcript, logger log.Logger) *Server {
	if logger == nil {
		logger = log.GetDefaultLogger()
	}
	return &Server{
		cfg:           cfg,
		writer:        writer,
		router:        router,
		synthesizer:   synthesizer,
		ruleExtractor: ruleExtractor,
		llmExtractor:  llmExtractor,
		limiter:       limiter,
		transcript:    transcript,
		logger:        logger,
	}
}

// Start registers the routes and blocks serving HTTP.
func (s *Server) Start() error {
	addr := s.cfg.ServerHost + ":" + s.cfg.ServerPort
	s.logger.Info("starting medrag server on %s", addr)

	http.HandleFunc("/api/ingest", s.handleIngest)
	http.HandleFunc("/api/query", s.handleQuery)
	http.HandleFunc("/api/history", s.handleHistory)
	http.HandleFunc("/api/stats", s.handleStats)
	http.HandleFunc("/api/clear", s.handleClear)
	http.HandleFunc("/api/health", s.handleHealth)

	return http.ListenAndServe(addr, nil)
}

// ingestFileResult is the per-file outcome returned by /api/ingest.
type ingestFileResult struct {
	Filename    string            `json:"filename"`
	PatientName string            `json:"patient_name,omitempty"`
	Chunks      int               `json:"chunks,omitempty"`
	Status      map[string]string `json:"status,omitempty"`
	Error       string            `json:"error,omitempty"`
}

// handleIngest accepts multipart uploads under the "files" field,
// extracts the record fields and fans each record out to the stores.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		sendJSONError(w, "Failed to parse multipart form", http.StatusBadRequest)
		return
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		sendJSONError(w, "No files uploaded", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	results := make([]ingestFileResult, 0, len(files))
	ingested := 0

	for _, header := range files {
		file, err := header.Open()
		if err != nil {
			s.logger.Warn("failed to open upload %s: %v", header.Filename, err)
			results = append(results, ingestFileResult{Filename: header.Filename, Error: "failed to open uploaded file"})
			continue
		}
		data, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			results = append(results, ingestFileResult{Filename: header.Filename, Error: "failed to read uploaded file"})
			continue
		}

		doc, err := loader.ForFilename(header.Filename, data)
		if err != nil {
			s.logger.Warn("failed to load %s: %v", header.Filename, err)
			results = append(results, ingestFileResult{Filename: header.Filename, Error: "failed to extract text from document"})
			continue
		}

		rec, err := s.extract(ctx, doc.Text)
		if err != nil {
			s.logger.Warn("field extraction failed for %s: %v", header.Filename, err)
			results = append(results, ingestFileResult{Filename: header.Filename, Error: "field extraction failed"})
			continue
		}

		report := s.writer.Ingest(ctx, rec, doc.Text, header.Filename)
		results = append(results, ingestFileResult{
			Filename:    header.Filename,
			PatientName: report.PatientName,
			Chunks:      report.Chunks,
			Status:      report.StatusStrings(),
		})
		if report.Ok() {
			ingested++
		}
	}

	if ingested == 0 {
		w.WriteHeader(http.StatusInternalServerError)
	}
	sendJSONResponse(w, map[string]any{
		"success": ingested == len(files),
		"files":   results,
	})
}

// extract runs the rule-based extractor and upgrades to the LLM
// extractor when the rules cannot find a patient name. A failed LLM
// pass keeps the rule result rather than failing the ingestion.
func (s *Server) extract(ctx context.Context, text string) (*record.Record, error) {
	rec, err := s.ruleExtractor.Extract(text)
	if err != nil {
		return nil, err
	}
	if rec.PatientName != record.Unknown || s.llmExtractor == nil {
		return rec, nil
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return rec, nil
	}
	llmRec, err := s.llmExtractor.Extract(ctx, text)
	if err != nil {
		s.logger.Warn("LLM extraction failed, keeping rule-based fields: %v", err)
		return rec, nil
	}
	return llmRec, nil
}

// queryRequest is the body of POST /api/query.
type queryRequest struct {
	Question string `json:"question"`
	Mode     string `json:"mode"`
}

// handleQuery retrieves snippets in the requested mode and synthesizes
// an answer. A degraded answer (raw snippets after LLM exhaustion) is
// still returned with degraded=true.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Question == "" {
		sendJSONError(w, "question is required", http.StatusBadRequest)
		return
	}

	mode, err := retriever.ParseMode(req.Mode)
	if err != nil {
		sendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	defer cancel()

	results, err := s.router.Search(ctx, req.Question, mode)
	if err != nil {
		s.logger.Error("retrieval failed: %v", err)
		sendJSONError(w, "retrieval failed", http.StatusInternalServerError)
		return
	}

	answer, err := s.synthesizer.Answer(ctx, req.Question, results)
	degraded := false
	if err != nil {
		var serr *synth.SynthesisError
		if !errors.As(err, &serr) {
			s.logger.Error("synthesis failed: %v", err)
			sendJSONError(w, "answer synthesis failed", http.StatusInternalServerError)
			return
		}
		degraded = true
		s.logger.Warn("LLM unavailable after %d attempts, returning raw snippets", serr.Attempts)
	}

	s.transcript.Append(session.Turn{
		Question:     req.Question,
		Answer:       answer,
		Mode:         string(mode),
		StoreResults: results.Snippets,
	})

	sendJSONResponse(w, map[string]any{
		"question":     req.Question,
		"mode":         string(mode),
		"answer":       answer,
		"degraded":     degraded,
		"sources":      results.Snippets,
		"store_errors": errorStrings(results.Errors),
	})
}

// handleHistory returns the session transcript in order.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	sendJSONResponse(w, map[string]any{
		"turns": s.transcript.Turns(),
	})
}

// handleStats reports per-store statistics and the limiter state.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	snapshot := s.limiter.Stats()
	sendJSONResponse(w, map[string]any{
		"stores": s.writer.Stats(r.Context()),
		"rate_limiter": map[string]any{
			"requests_this_minute":    snapshot.RequestsThisMinute,
			"max_requests_per_minute": snapshot.MaxRequestsPerMinute,
			"request_interval":        snapshot.RequestInterval.String(),
		},
		"history_turns": s.transcript.Len(),
	})
}

// handleClear empties every store and the transcript. Each store is
// cleared independently and per-store outcomes are reported.
func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	errs := s.writer.Clear(r.Context())
	s.transcript.Reset()

	status := make(map[string]string, len(errs))
	ok := true
	for name, err := range errs {
		if err != nil {
			ok = false
			status[name] = err.Error()
			s.logger.Error("failed to clear %s store: %v", name, err)
		} else {
			status[name] = "ok"
		}
	}

	if !ok {
		w.WriteHeader(http.StatusInternalServerError)
	}
	sendJSONResponse(w, map[string]any{
		"success": ok,
		"status":  status,
	})
}

// handleHealth returns liveness status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	sendJSONResponse(w, map[string]any{
		"status": "ok",
	})
}

func errorStrings(errs map[string]error) map[string]string {
	out := make(map[string]string, len(errs))
	for name, err := range errs {
		if err != nil {
			out[name] = err.Error()
		}
	}
	return out
}

// sendJSONResponse sends a JSON response.
func sendJSONResponse(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

// sendJSONError sends a JSON error response.
func sendJSONError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error": message,
	})
}
