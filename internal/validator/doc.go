// Package validator rejects inbound messages that violate configured size,
// attachment, or user-blocklist policies without mutating them.
package validator
