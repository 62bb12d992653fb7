// Package compactor fits a channel's turn history and summary within a
// token budget, using one of three selectable strategies.
package compactor
