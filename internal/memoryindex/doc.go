// Package memoryindex chunks, embeds, persists, and hybrid-searches
// arbitrary text keyed by logical path, backed by a durable SQL store with
// full-text and vector similarity capability.
package memoryindex
