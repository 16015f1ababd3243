// Package openai implements the ai.Embedder interface against any
// OpenAI-compatible embedding API, including local services such as
// Ollama, LocalAI, and vLLM.
package openai
