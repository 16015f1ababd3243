// Package core defines the domain model for the hivemind ingestion
// pipeline: documents, chunks, embedded chunks, collections, and
// ingestion watermarks.
//
// Content identity is central to the design. FingerprintChunk derives a
// deterministic 64-bit fingerprint from a chunk's normalized text and
// identity-relevant metadata; the fingerprint is the embedding cache key
// and the change-detection key that makes re-runs idempotent.
package core
