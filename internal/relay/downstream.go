package relay

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// downstreamCommand is one frame a CDP client sends to /cdp.
type downstreamCommand struct {
	ID        int             `json:"id"`
	Method    string          `json:"method"`
	SessionID string          `json:"sessionId,omitempty"`
	Params    json.RawMessage `json:"params,omitempty"`
}

type downstreamReply struct {
	ID        int         `json:"id"`
	SessionID string      `json:"sessionId,omitempty"`
	Result    any         `json:"result,omitempty"`
	Error     *replyError `json:"error,omitempty"`
}

type replyError struct {
	Message string `json:"message"`
}

// downstreamEvent is broadcast to every connected /cdp client.
type downstreamEvent struct {
	Method    string `json:"method"`
	Params    any    `json:"params"`
	SessionID string `json:"sessionId,omitempty"`
}

func (r *Relay) handleCDP(c echo.Context) error {
	if !r.upstreamConnected() {
		return c.String(http.StatusServiceUnavailable, ErrUpstreamNotConnected.Error())
	}

	raw, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.Warn().Err(err).Msg("relay_cdp_upgrade_failed")
		return nil
	}
	conn := &downstreamConn{conn: raw}

	r.downMu.Lock()
	r.downstreams[raw] = conn
	r.downMu.Unlock()
	log.Info().Str("peer", c.Request().RemoteAddr).Msg("relay_cdp_client_connected")

	defer func() {
		r.downMu.Lock()
		delete(r.downstreams, raw)
		r.downMu.Unlock()
		raw.Close()
		log.Info().Msg("relay_cdp_client_disconnected")
	}()

	for {
		var cmd downstreamCommand
		if err := raw.ReadJSON(&cmd); err != nil {
			return nil
		}
		r.handleDownstreamCommand(context.Background(), conn, cmd)
	}
}

func (r *Relay) handleDownstreamCommand(ctx context.Context, conn *downstreamConn, cmd downstreamCommand) {
	if !r.upstreamConnected() {
		r.replyTo(conn, downstreamReply{ID: cmd.ID, SessionID: cmd.SessionID, Error: &replyError{Message: ErrUpstreamNotConnected.Error()}})
		return
	}

	result, err := r.routeCommand(ctx, cmd)
	if err != nil {
		r.replyTo(conn, downstreamReply{ID: cmd.ID, SessionID: cmd.SessionID, Error: &replyError{Message: err.Error()}})
		return
	}

	switch {
	case cmd.Method == "Target.setAutoAttach" && cmd.SessionID == "":
		r.ensureTargetEventsForClient(conn, "autoAttach")
	case cmd.Method == "Target.setDiscoverTargets":
		var params struct {
			Discover bool `json:"discover"`
		}
		_ = json.Unmarshal(cmd.Params, &params)
		if params.Discover {
			r.ensureTargetEventsForClient(conn, "discover")
		}
	case cmd.Method == "Target.attachToTarget":
		var params struct {
			TargetID string `json:"targetId"`
		}
		_ = json.Unmarshal(cmd.Params, &params)
		if params.TargetID != "" {
			if t, ok := r.findTargetByID(params.TargetID); ok {
				r.sendEvent(conn, downstreamEvent{
					Method: "Target.attachedToTarget",
					Params: map[string]any{
						"sessionId":         t.SessionID,
						"targetInfo":        t.attachedInfo(),
						"waitingForDebugger": false,
					},
				})
			}
		}
	}

	r.replyTo(conn, downstreamReply{ID: cmd.ID, SessionID: cmd.SessionID, Result: result})
}

// routeCommand serves the seven locally-handled CDP methods directly;
// everything else is forwarded to the extension as forwardCDPCommand.
func (r *Relay) routeCommand(ctx context.Context, cmd downstreamCommand) (any, error) {
	switch cmd.Method {
	case "Browser.getVersion":
		return map[string]any{
			"protocolVersion": "1.3",
			"product":         "Chrome/OpenBotX-Extension-Relay",
			"revision":        "0",
			"userAgent":       "OpenBotX-Extension-Relay",
			"jsVersion":       "V8",
		}, nil

	case "Browser.setDownloadBehavior":
		return map[string]any{}, nil

	case "Target.setAutoAttach", "Target.setDiscoverTargets":
		return map[string]any{}, nil

	case "Target.getTargets":
		targets := r.targetsSnapshot()
		infos := make([]map[string]any, 0, len(targets))
		for _, t := range targets {
			infos = append(infos, t.attachedInfo())
		}
		return map[string]any{"targetInfos": infos}, nil

	case "Target.getTargetInfo":
		var params struct {
			TargetID string `json:"targetId"`
		}
		_ = json.Unmarshal(cmd.Params, &params)
		if params.TargetID != "" {
			if t, ok := r.findTargetByID(params.TargetID); ok {
				return map[string]any{"targetInfo": t.Info}, nil
			}
		}
		targets := r.targetsSnapshot()
		if len(targets) > 0 {
			return map[string]any{"targetInfo": targets[0].Info}, nil
		}
		return map[string]any{"targetInfo": map[string]any{"targetId": "", "type": "page", "title": "", "url": ""}}, nil

	case "Target.attachToTarget":
		var params struct {
			TargetID string `json:"targetId"`
		}
		_ = json.Unmarshal(cmd.Params, &params)
		if params.TargetID == "" {
			return nil, errTargetIDRequired
		}
		if t, ok := r.findTargetByID(params.TargetID); ok {
			return map[string]any{"sessionId": t.SessionID}, nil
		}
		return nil, errTargetNotFound

	default:
		raw, err := r.sendToUpstream(ctx, cmd.Method, cmd.SessionID, cmd.Params)
		if err != nil {
			return nil, err
		}
		if len(raw) == 0 {
			return nil, nil
		}
		var result any
		if err := json.Unmarshal(raw, &result); err != nil {
			return nil, err
		}
		return result, nil
	}
}

// ensureTargetEventsForClient replays one synthetic event per known page
// target to conn only, so a freshly connected/discovering client learns
// about tabs that attached before it connected.
func (r *Relay) ensureTargetEventsForClient(conn *downstreamConn, mode string) {
	for _, t := range r.targetsSnapshot() {
		if mode == "autoAttach" {
			r.sendEvent(conn, downstreamEvent{
				Method: "Target.attachedToTarget",
				Params: map[string]any{
					"sessionId":          t.SessionID,
					"targetInfo":         t.attachedInfo(),
					"waitingForDebugger": false,
				},
			})
		} else {
			r.sendEvent(conn, downstreamEvent{
				Method: "Target.targetCreated",
				Params: map[string]any{"targetInfo": t.attachedInfo()},
			})
		}
	}
}

func (r *Relay) replyTo(conn *downstreamConn, reply downstreamReply) {
	r.sendRaw(conn, reply)
}

func (r *Relay) sendEvent(conn *downstreamConn, evt downstreamEvent) {
	r.sendRaw(conn, evt)
}

func (r *Relay) sendRaw(conn *downstreamConn, v any) {
	if err := conn.writeJSON(v); err != nil {
		log.Warn().Err(err).Msg("relay_cdp_write_failed")
	}
}

// broadcast delivers evt to every connected downstream. Calls are made
// synchronously and in the caller's order so that two broadcasts issued
// back to back (e.g. a synthetic detach followed by its attach) reach each
// client in that order; delivery across distinct clients is still
// best-effort and may finish out of order relative to each other.
func (r *Relay) broadcast(evt downstreamEvent) {
	r.downMu.Lock()
	conns := make([]*downstreamConn, 0, len(r.downstreams))
	for _, c := range r.downstreams {
		conns = append(conns, c)
	}
	r.downMu.Unlock()
	for _, c := range conns {
		r.sendRaw(c, evt)
	}
}

// closeAllDownstreams closes every tracked /cdp connection with a
// service-unavailable close code, run when the upstream disconnects.
func (r *Relay) closeAllDownstreams() {
	r.downMu.Lock()
	defer r.downMu.Unlock()
	for raw, c := range r.downstreams {
		c.mu.Lock()
		_ = raw.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseServiceRestart, "extension disconnected"),
			deadlineNow())
		c.mu.Unlock()
		raw.Close()
		delete(r.downstreams, raw)
	}
}
