// medrag - Multi-Store RAG over Chinese Medical Records
//
// medrag ingests Chinese-language medical record documents (PDF, HTML or
// plain text), extracts structured patient fields, and fans each record
// out to three stores: a vector store for semantic similarity search, a
// document store for structured field lookups, and a knowledge graph for
// relationship traversal. Questions are answered by retrieving from one
// or more stores and synthesizing an answer with an LLM.
//
// # Quick Start
//
// Run the server:
//
//	OPENAI_API_KEY=... go run ./cmd/medragd
//
// Ingest a record and ask a question:
//
//	curl -F "files=@record.pdf" http://localhost:8080/api/ingest
//	curl -X POST http://localhost:8080/api/query \
//	    -d '{"question": "患者张三有哪些症状?", "mode": "hybrid"}'
//
// # Package Structure
//
// record/
// Field extraction from raw record text. A rule-based extractor handles
// the common discharge-summary layout; an LLM extractor covers free-form
// text. Missing fields default rather than fail.
//
// loader/ and splitter/
// Document loading (PDF, HTML, plain text) and word-boundary chunking.
//
// embed/
// Text embedding through the OpenAI embeddings API.
//
// store/
// The three storage backends behind common interfaces. Each is selected
// by URL scheme:
//
//	vectors, _ := store.NewVectorStore(ctx, "redis://localhost:6379")
//	documents, _ := store.NewDocumentStore(ctx, "mongodb://localhost:27017")
//	graph, _ := store.NewGraphStore(ctx, "falkordb://localhost:6379")
//
// memory:// backs all three for tests and local runs.
//
// ingest/
// The multi-store writer. Every store write is attempted independently;
// per-store outcomes are reported, never rolled back.
//
// retriever/
// The query router. Modes vector, document and graph query one store;
// hybrid fans out to all three and tolerates per-store failures.
//
// synth/
// Answer synthesis with bounded retry. When the LLM stays unavailable,
// the raw retrieved snippets are returned instead of an error page.
//
// ratelimit/
// Rolling one-minute window with minimum spacing between LLM requests.
//
// cmd/medragd/
// The HTTP server tying the pipeline together.
//
// # Configuration
//
// Configuration comes from environment variables (optionally via .env):
//
//   - OPENAI_API_KEY: API key for chat and embedding models (required)
//   - OPENAI_BASE_URL: alternative OpenAI-compatible endpoint
//   - VECTOR_STORE_URL, DOCUMENT_STORE_URL, GRAPH_STORE_URL: store backends
//   - LOG_LEVEL: debug, info, warn, error or none
//
// See config.Load for the full list and defaults.
package medrag // import "github.com/alantany/medrag"
