// Package ingestion provides pipeline orchestration for loading documents
// into per-collection vector indexes.
//
// The Pipeline type manages the ingestion workflow for one collection:
//   - Chunking documents and fingerprinting each chunk's content
//   - Reconciling fingerprints against the document registry to decide
//     insert, update, or skip
//   - Resolving vectors from the embedding cache, embedding only misses
//     under the configured request quotas
//   - Upserting chunks and advancing the collection watermark
//
// Repeated runs over unchanged documents are idempotent: they produce no
// embedding requests and no writes. The Group type runs pipelines for
// multiple collections concurrently over a shared worker pool.
package ingestion
