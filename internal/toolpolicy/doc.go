// Package toolpolicy filters a tool catalog down to what is permitted for
// an active profile and elevation state, per §4.I.
package toolpolicy
