// Package llmclient defines the provider-agnostic model interface the
// agent brain (§4.K) talks to, plus an adapter onto the Anthropic API.
package llmclient
