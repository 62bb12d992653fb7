package model

import "time"

// GatewayStatus is the lifecycle state of a registered gateway.
type GatewayStatus string

const (
	GatewayRegistered GatewayStatus = "registered"
	GatewayStarting   GatewayStatus = "starting"
	GatewayRunning    GatewayStatus = "running"
	GatewayStopping   GatewayStatus = "stopping"
	GatewayStopped    GatewayStatus = "stopped"
	GatewayError      GatewayStatus = "error"
	GatewayRestarting GatewayStatus = "restarting"
)

// ResponseCapability is one output modality a gateway can deliver.
type ResponseCapability string

const (
	CapabilityText  ResponseCapability = "text"
	CapabilityAudio ResponseCapability = "audio"
	CapabilityImage ResponseCapability = "image"
	CapabilityVideo ResponseCapability = "video"
)

// GatewayInfo is the supervisor's bookkeeping record for one registered
// gateway (§3, §4.P). The run task handle itself lives alongside this
// record in the supervisor, not in model, since it is a live goroutine
// handle rather than data.
type GatewayInfo struct {
	Name         string        `json:"name"`
	Status       GatewayStatus `json:"status"`
	StartedAt    time.Time     `json:"started_at,omitempty"`
	StoppedAt    time.Time     `json:"stopped_at,omitempty"`
	LastError    string        `json:"last_error,omitempty"`
	RestartCount int           `json:"restart_count"`
}
