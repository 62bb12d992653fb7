// Package directives extracts inline /word command tokens from user text:
// verbosity hints, tool-profile tags, elevation, and prompt modes, leaving
// unknown tokens in place.
package directives
