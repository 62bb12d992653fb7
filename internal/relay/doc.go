// Package relay implements the browser control relay (§4.Q): a
// loopback-only HTTP+WebSocket multiplexer that pretends to be a single
// remote-debugging endpoint while forwarding commands to one controller
// extension (the upstream) and fanning its events out to many debug-protocol
// consumers (downstreams).
package relay
