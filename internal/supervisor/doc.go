// Package supervisor owns every registered gateway's lifecycle (§4.P):
// register, start, stop, restart, fan-out start_all/stop_all, and
// auto-restart on an unhandled run-loop failure. A failure in one
// gateway never affects another.
package supervisor
