// Package chunker splits documents into bounded, semantically coherent
// chunks for embedding. Chunking is deterministic and lossless:
// concatenating a document's chunks in order reconstructs its text.
package chunker
