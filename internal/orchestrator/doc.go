// Package orchestrator drives the end-to-end per-message pipeline (§4.N):
// validate, parse directives, process attachments, scan for security
// violations, load/compact channel context, invoke the agent brain,
// persist turns, and schedule background summarization.
package orchestrator
