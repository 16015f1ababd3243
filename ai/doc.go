// Package ai defines the embedding model abstraction used by the
// ingestion pipeline.
//
// The Embedder interface hides the concrete embedding provider. The
// openai subpackage implements it against any OpenAI-compatible API;
// the mock subpackage provides a deterministic in-process implementation
// for tests.
package ai
