// Package summarizer reduces a turn list into a user-profile summary and a
// conversation summary via a secondary model call, per §4.L.
package summarizer
