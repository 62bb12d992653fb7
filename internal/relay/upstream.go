package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// upstreamFrame covers every shape the extension sends: a ping/pong control
// frame, a reply to a forwarded command (id + result|error), or a forwarded
// CDP event.
type upstreamFrame struct {
	ID     *int            `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  json.RawMessage `json:"error,omitempty"`
}

type forwardedEventParams struct {
	Method    string          `json:"method"`
	Params    json.RawMessage `json:"params"`
	SessionID string          `json:"sessionId"`
}

type attachedTargetParams struct {
	SessionID  string         `json:"sessionId"`
	TargetInfo map[string]any `json:"targetInfo"`
}

type detachedTargetParams struct {
	SessionID string `json:"sessionId"`
}

type targetInfoChangedParams struct {
	TargetInfo map[string]any `json:"targetInfo"`
}

func (r *Relay) handleExtension(c echo.Context) error {
	if r.upstreamConnected() {
		return c.String(http.StatusConflict, ErrUpstreamConflict.Error())
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.Warn().Err(err).Msg("relay_extension_upgrade_failed")
		return nil
	}

	r.mu.Lock()
	if r.upstream != nil {
		r.mu.Unlock()
		conn.Close()
		return nil
	}
	up := &upstreamConn{conn: conn}
	r.upstream = up
	r.mu.Unlock()

	log.Info().Str("peer", c.Request().RemoteAddr).Msg("relay_extension_connected")

	pingCtx, cancelPing := context.WithCancel(context.Background())
	go r.pingLoop(pingCtx, up)

	defer func() {
		cancelPing()
		r.mu.Lock()
		if r.upstream == up {
			r.upstream = nil
		}
		pending := r.pendingUpstream
		r.pendingUpstream = make(map[int]chan pendingResult)
		r.mu.Unlock()

		for _, ch := range pending {
			ch <- pendingResult{Err: ErrUpstreamNotConnected}
		}
		r.clearTargets()
		r.closeAllDownstreams()
		conn.Close()
		log.Info().Msg("relay_extension_disconnected")
	}()

	for {
		var frame upstreamFrame
		if err := conn.ReadJSON(&frame); err != nil {
			return nil
		}
		r.handleUpstreamFrame(up, frame)
	}
}

func (r *Relay) pingLoop(ctx context.Context, up *upstreamConn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := up.writeJSON(map[string]string{"method": "ping"}); err != nil {
				return
			}
		}
	}
}

func (r *Relay) handleUpstreamFrame(up *upstreamConn, frame upstreamFrame) {
	if frame.Method == "ping" {
		_ = up.writeJSON(map[string]string{"method": "pong"})
		return
	}
	if frame.Method == "pong" {
		return
	}

	if frame.ID != nil {
		r.resolvePending(*frame.ID, frame)
		return
	}

	if frame.Method != "forwardCDPEvent" {
		return
	}
	var fwd forwardedEventParams
	if err := json.Unmarshal(frame.Params, &fwd); err != nil || fwd.Method == "" {
		return
	}
	r.handleForwardedEvent(fwd)
}

func (r *Relay) resolvePending(id int, frame upstreamFrame) {
	r.mu.Lock()
	ch, ok := r.pendingUpstream[id]
	if ok {
		delete(r.pendingUpstream, id)
	}
	r.mu.Unlock()
	if !ok {
		return
	}
	if len(frame.Error) > 0 {
		ch <- pendingResult{Err: &upstreamError{raw: frame.Error}}
		return
	}
	ch <- pendingResult{Result: frame.Result}
}

type upstreamError struct {
	raw json.RawMessage
}

func (e *upstreamError) Error() string {
	return "relay: extension error: " + string(e.raw)
}

func (r *Relay) handleForwardedEvent(fwd forwardedEventParams) {
	switch fwd.Method {
	case "Target.attachedToTarget":
		var p attachedTargetParams
		if err := json.Unmarshal(fwd.Params, &p); err != nil {
			return
		}
		if targetType, _ := p.TargetInfo["type"].(string); targetType != "page" {
			return
		}
		targetID, _ := p.TargetInfo["targetId"].(string)
		if p.SessionID == "" || targetID == "" {
			return
		}
		prevTargetID, existed := r.upsertTarget(p.SessionID, targetID, p.TargetInfo)
		if prevTargetID != "" {
			r.broadcast(downstreamEvent{
				Method:    "Target.detachedFromTarget",
				Params:    map[string]any{"sessionId": p.SessionID, "targetId": prevTargetID},
				SessionID: p.SessionID,
			})
		}
		if !existed || prevTargetID != "" {
			r.broadcast(downstreamEvent{Method: fwd.Method, Params: fwd.Params, SessionID: p.SessionID})
		}

	case "Target.detachedFromTarget":
		var p detachedTargetParams
		_ = json.Unmarshal(fwd.Params, &p)
		if p.SessionID != "" {
			r.removeTarget(p.SessionID)
		}
		r.broadcast(downstreamEvent{Method: fwd.Method, Params: fwd.Params, SessionID: fwd.SessionID})

	case "Target.targetInfoChanged":
		var p targetInfoChangedParams
		if err := json.Unmarshal(fwd.Params, &p); err == nil {
			if targetID, _ := p.TargetInfo["targetId"].(string); targetID != "" {
				if targetType, _ := p.TargetInfo["type"].(string); targetType == "" || targetType == "page" {
					r.mergeTargetInfo(targetID, p.TargetInfo)
				}
			}
		}
		r.broadcast(downstreamEvent{Method: fwd.Method, Params: fwd.Params, SessionID: fwd.SessionID})

	default:
		r.broadcast(downstreamEvent{Method: fwd.Method, Params: fwd.Params, SessionID: fwd.SessionID})
	}
}

// sendToUpstream wraps method/params as a forwardCDPCommand call to the
// extension, assigns the next request id, and blocks until the matching
// reply arrives or upstreamCallTimeout elapses.
func (r *Relay) sendToUpstream(ctx context.Context, method, sessionID string, params json.RawMessage) (json.RawMessage, error) {
	r.mu.Lock()
	up := r.upstream
	if up == nil {
		r.mu.Unlock()
		return nil, ErrUpstreamNotConnected
	}
	r.nextRequestID++
	id := r.nextRequestID
	ch := make(chan pendingResult, 1)
	r.pendingUpstream[id] = ch
	r.mu.Unlock()

	payload := map[string]any{
		"id":     id,
		"method": "forwardCDPCommand",
		"params": map[string]any{
			"method":    method,
			"sessionId": sessionID,
			"params":    json.RawMessage(params),
		},
	}
	if err := up.writeJSON(payload); err != nil {
		r.mu.Lock()
		delete(r.pendingUpstream, id)
		r.mu.Unlock()
		return nil, err
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, upstreamCallTimeout)
	defer cancel()
	select {
	case res := <-ch:
		return res.Result, res.Err
	case <-timeoutCtx.Done():
		r.mu.Lock()
		delete(r.pendingUpstream, id)
		r.mu.Unlock()
		return nil, timeoutCtx.Err()
	}
}
