package main

import (
	"context"
	"strconv"
	"strings"

	"github.com/alvesfc/openbotx/internal/config"
	"github.com/alvesfc/openbotx/internal/gateway"
	"github.com/alvesfc/openbotx/internal/model"
	"github.com/alvesfc/openbotx/internal/orchestrator"
	"github.com/alvesfc/openbotx/internal/supervisor"
)

// senderRegistry routes an outbound send to whichever gateway provider owns
// a channel id, keyed by the gateway tag prefix ChannelID applies.
type senderRegistry struct {
	byTag map[string]gateway.Provider
}

func newSenderRegistry() *senderRegistry {
	return &senderRegistry{byTag: make(map[string]gateway.Provider)}
}

func (r *senderRegistry) add(tag string, p gateway.Provider) {
	r.byTag[tag] = p
}

func (r *senderRegistry) lookup(channelID string) (orchestrator.Sender, []model.ResponseCapability, bool) {
	tag, _, ok := strings.Cut(channelID, "-")
	if !ok {
		return nil, nil, false
	}
	p, ok := r.byTag[tag]
	if !ok {
		return nil, nil, false
	}
	send := func(ctx context.Context, out model.OutboundMessage) error {
		p.Send(ctx, out)
		return nil
	}
	return send, p.ResponseCapabilities(), true
}

func registerTerminal(sup *supervisor.Supervisor, senders *senderRegistry) {
	term := gateway.NewTerminal()
	senders.add(gateway.TerminalTag, term)
	if err := sup.Register("terminal", term); err != nil {
		panic(err) // programmer error: duplicate registration of a fixed name
	}
}

func registerSocket(sup *supervisor.Supervisor, senders *senderRegistry, cfg config.Config) {
	sock := gateway.NewSocket(cfg.Socket.Host + ":" + strconv.Itoa(cfg.Socket.Port))
	senders.add(gateway.SocketTag, sock)
	if err := sup.Register("socket", sock); err != nil {
		panic(err)
	}
}
