// Package channelstore persists per-channel turn history and dual
// summaries, and parses/serializes the framed text history format and JSON
// summary format described in the external interfaces.
package channelstore
