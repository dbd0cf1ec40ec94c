// Package store provides the three storage backends medical records fan
// out to: a vector store for semantic search, a document store for
// structured field lookups, and a graph store for relationship
// traversal.
//
// Each concern is an interface with an in-memory implementation plus at
// least one server-backed one:
//
//   - VectorStore: memory, Redis
//   - DocumentStore: memory, MongoDB, SQLite, PostgreSQL
//   - GraphStore: memory, FalkorDB
//
// Backends are selected by URL scheme through NewVectorStore,
// NewDocumentStore and NewGraphStore:
//
//	vectors, err := store.NewVectorStore(ctx, "redis://localhost:6379")
//	documents, err := store.NewDocumentStore(ctx, "mongodb://localhost:27017")
//	graph, err := store.NewGraphStore(ctx, "falkordb://localhost:6379/medrag")
//
// The memory:// scheme backs all three interfaces and needs no server,
// which makes it the default for tests and local development.
//
// Writes are append-only: re-inserting the same record accumulates
// duplicates in every backend. Deduplication is the caller's problem.
package store
