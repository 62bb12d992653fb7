// Package tokenbudget estimates the token cost of text and enforces a
// running budget against it.
package tokenbudget
