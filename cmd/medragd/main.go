// Command medragd serves the medical-record question answering API. It
// ingests uploaded records into vector, document and graph stores and
// answers questions over them through an LLM.
package main

import (
	"context"
	stdlog "log"

	"github.com/tmc/langchaingo/llms/openai"

	"github.com/alantany/medrag/config"
	"github.com/alantany/medrag/embed"
	"github.com/alantany/medrag/ingest"
	"github.com/alantany/medrag/log"
	"github.com/alantany/medrag/ratelimit"
	"github.com/alantany/medrag/record"
	"github.com/alantany/medrag/retriever"
	"github.com/alantany/medrag/session"
	"github.com/alantany/medrag/splitter"
	"github.com/alantany/medrag/store"
	"github.com/alantany/medrag/synth"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		stdlog.Fatal(err)
	}

	log.SetLogLevel(log.ParseLevel(cfg.LogLevel))
	logger := log.GetDefaultLogger()

	ctx := context.Background()

	vectors, err := store.NewVectorStore(ctx, cfg.VectorStoreURL)
	if err != nil {
		stdlog.Fatalf("vector store unavailable: %v", err)
	}
	documents, err := store.NewDocumentStore(ctx, cfg.DocumentStoreURL)
	if err != nil {
		stdlog.Fatalf("document store unavailable: %v", err)
	}
	graph, err := store.NewGraphStore(ctx, cfg.GraphStoreURL)
	if err != nil {
		stdlog.Fatalf("graph store unavailable: %v", err)
	}

	opts := []openai.Option{
		openai.WithToken(cfg.APIKey),
		openai.WithModel(cfg.ChatModel),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		stdlog.Fatalf("failed to create LLM client: %v", err)
	}

	embedder := embed.NewOpenAIEmbedder(cfg.APIKey, cfg.BaseURL, cfg.EmbedModel, cfg.EmbeddingDim)
	limiter := ratelimit.New(cfg.MaxRequestsPerMinute, cfg.RequestInterval)

	writer := ingest.NewWriter(vectors, documents, graph, embedder,
		splitter.NewWordSplitter(cfg.ChunkSize), logger)

	router := retriever.NewRouter(
		retriever.NewVectorRetriever(vectors, embedder, cfg.VectorTopK, cfg.MaxResults, cfg.SimilarityThreshold),
		retriever.NewDocumentRetriever(documents, llm, cfg.MaxResults),
		retriever.NewGraphRetriever(graph, llm, cfg.MaxResults),
		logger)

	synthesizer := synth.New(llm, limiter,
		synth.WithMaxAttempts(cfg.MaxRetries),
		synth.WithRetryDelay(cfg.RetryDelay),
		synth.WithLogger(logger))

	srv := NewServer(cfg,
		writer, router, synthesizer,
		record.NewRuleExtractor(), record.NewLLMExtractor(llm),
		limiter, session.NewTranscript(), logger)

	if err := srv.Start(); err != nil {
		stdlog.Fatalf("server stopped: %v", err)
	}
}
