// Package gateway implements the ingress/egress adapters of §4.O: a common
// Provider contract plus the terminal and socket gateways built on it.
// Each provider declares which response modalities it can deliver; the
// orchestrator uses that to down-convert an agent response before it
// reaches Send.
package gateway
