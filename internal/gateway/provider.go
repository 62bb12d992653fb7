package gateway

import (
	"context"

	"github.com/alvesfc/openbotx/internal/model"
)

// Provider is the abstract gateway contract (§4.O): initialize once,
// start accepting traffic, run an event loop until stop is signaled, and
// accept outbound sends at any point after start. Implementations must
// observe ctx (passed to Run) at every loop iteration boundary and return
// promptly once it is cancelled.
type Provider interface {
	Initialize(ctx context.Context) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Send(ctx context.Context, out model.OutboundMessage) bool
	Run(ctx context.Context, inbound func(model.InboundMessage))

	// ResponseCapabilities lists the output modalities this gateway can
	// deliver, used by the orchestrator to down-convert responses.
	ResponseCapabilities() []model.ResponseCapability
}

// ChannelID prefixes a raw channel identifier with a gateway type tag so
// ids stay globally unique across gateways, e.g. "term-default" or
// "sock-<uuid>".
func ChannelID(gatewayTag, raw string) string {
	return gatewayTag + "-" + raw
}
