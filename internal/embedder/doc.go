// Package embedder adapts an HTTP embeddings endpoint onto
// memoryindex.Embedder.
package embedder
