// Package config loads pipeline settings from the environment.
//
// A .env file in the working directory is honored when present. The
// chunk size and the embedding dimension have no safe defaults and must
// be set explicitly; the embedding dimension in particular must match
// whatever dimension the existing vector index was built with.
package config
