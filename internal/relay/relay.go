package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// DefaultHost and DefaultPort match the extension's built-in expectations.
const (
	DefaultHost = "127.0.0.1"
	DefaultPort = 18792

	pingInterval        = 5 * time.Second
	upstreamCallTimeout = 30 * time.Second
)

var (
	// ErrUpstreamNotConnected is returned (and surfaced to downstreams) when
	// a command needs the extension but none is attached.
	ErrUpstreamNotConnected = errors.New("relay: extension not connected")
	// ErrUpstreamConflict is returned when a second upstream tries to
	// connect while one is already attached.
	ErrUpstreamConflict = errors.New("relay: extension already connected")
	// ErrLoopbackOnly names the loopback-only rule; loopbackMiddleware itself
	// answers any non-loopback origin with 403 "Forbidden" and does not
	// return this value.
	ErrLoopbackOnly = errors.New("relay: forbidden, loopback only")

	errTargetIDRequired = errors.New("relay: targetId required")
	errTargetNotFound   = errors.New("relay: target not found")
)

func deadlineNow() time.Time {
	return time.Now().Add(time.Second)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// targetRecord mirrors one entry of connected_targets, keyed by session id.
// targetInfo is kept as a raw map so relay code never needs to know every
// field the debug protocol may carry (title, url, faviconUrl, ...).
type targetRecord struct {
	SessionID string
	TargetID  string
	Info      map[string]any
}

func (t targetRecord) attachedInfo() map[string]any {
	info := make(map[string]any, len(t.Info)+1)
	for k, v := range t.Info {
		info[k] = v
	}
	info["attached"] = true
	return info
}

type pendingResult struct {
	Result json.RawMessage
	Err    error
}

// upstreamConn wraps the single extension connection with a write mutex;
// writes race between the ping task, forwarded commands, and pong replies.
type upstreamConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (u *upstreamConn) writeJSON(v any) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.conn.WriteJSON(v)
}

// Relay is the process-wide singleton multiplexer (§4.Q). Zero value is not
// usable; build with New.
type Relay struct {
	Host string
	Port int

	echo   *echo.Echo
	server *http.Server

	mu              sync.Mutex
	upstream        *upstreamConn
	pendingUpstream map[int]chan pendingResult
	nextRequestID   int
	targets         map[string]targetRecord // keyed by session id

	downMu      sync.Mutex
	downstreams map[*websocket.Conn]*downstreamConn
}

// downstreamConn wraps one /cdp client connection with a write mutex;
// broadcasts, replies, and synthetic replays can all target the same
// connection from different goroutines.
type downstreamConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (d *downstreamConn) writeJSON(v any) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conn.WriteJSON(v)
}

// New builds a Relay bound to host:port. Host/port default to the
// extension's expected 127.0.0.1:18792 when left zero.
func New(host string, port int) *Relay {
	if host == "" {
		host = DefaultHost
	}
	if port == 0 {
		port = DefaultPort
	}
	return &Relay{
		Host:            host,
		Port:            port,
		pendingUpstream: make(map[int]chan pendingResult),
		targets:         make(map[string]targetRecord),
		downstreams:     make(map[*websocket.Conn]*downstreamConn),
	}
}

// Initialize builds HTTP routing; it performs no network I/O.
func (r *Relay) Initialize(ctx context.Context) error {
	r.echo = echo.New()
	r.echo.HideBanner = true
	r.echo.Use(loopbackMiddleware)
	r.registerRoutes()
	return nil
}

// Start begins accepting connections in the background.
func (r *Relay) Start(ctx context.Context) error {
	if r.echo == nil {
		if err := r.Initialize(ctx); err != nil {
			return err
		}
	}
	r.server = &http.Server{Addr: fmt.Sprintf("%s:%d", r.Host, r.Port), Handler: r.echo}
	go func() {
		if err := r.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("relay_listen_failed")
		}
	}()
	return nil
}

// Stop closes every downstream connection, the upstream connection (if any),
// and the HTTP listener.
func (r *Relay) Stop(ctx context.Context) error {
	r.mu.Lock()
	up := r.upstream
	r.mu.Unlock()
	if up != nil {
		up.conn.Close()
	}

	r.downMu.Lock()
	for conn := range r.downstreams {
		conn.Close()
	}
	r.downMu.Unlock()

	if r.server != nil {
		return r.server.Shutdown(ctx)
	}
	return nil
}

func loopbackMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !isLoopback(c.Request().RemoteAddr) {
			return c.String(http.StatusForbidden, "Forbidden")
		}
		return next(c)
	}
}

func isLoopback(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// upstreamConnected reports whether an extension is currently attached.
func (r *Relay) upstreamConnected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.upstream != nil
}

func (r *Relay) targetsSnapshot() []targetRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]targetRecord, 0, len(r.targets))
	for _, t := range r.targets {
		out = append(out, t)
	}
	return out
}

func (r *Relay) findTargetByID(targetID string) (targetRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.targets {
		if t.TargetID == targetID {
			return t, true
		}
	}
	return targetRecord{}, false
}

// upsertTarget records sessionID -> (targetID, info), returning the
// previous target id for that session (if the target id changed under a
// reused session) so the caller can emit a synthetic detach first.
func (r *Relay) upsertTarget(sessionID, targetID string, info map[string]any) (prevTargetID string, changed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, existed := r.targets[sessionID]
	changed = existed && prev.TargetID != "" && prev.TargetID != targetID
	r.targets[sessionID] = targetRecord{SessionID: sessionID, TargetID: targetID, Info: info}
	if changed {
		return prev.TargetID, true
	}
	return "", existed
}

func (r *Relay) removeTarget(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.targets, sessionID)
}

func (r *Relay) mergeTargetInfo(targetID string, patch map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for sid, t := range r.targets {
		if t.TargetID != targetID {
			continue
		}
		merged := make(map[string]any, len(t.Info)+len(patch))
		for k, v := range t.Info {
			merged[k] = v
		}
		for k, v := range patch {
			merged[k] = v
		}
		t.Info = merged
		r.targets[sid] = t
	}
}

func (r *Relay) clearTargets() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.targets = make(map[string]targetRecord)
}
