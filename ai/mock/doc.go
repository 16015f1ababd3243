// Package mock provides a deterministic in-process ai.Embedder for
// tests: identical text always embeds to the identical vector, and call
// counts are recorded for assertions about cache behavior.
package mock
