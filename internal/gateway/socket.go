package gateway

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/alvesfc/openbotx/internal/model"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// SocketTag is the channel-id prefix for the socket gateway.
const SocketTag = "sock"

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// inboundFrame is the wire shape of one inbound socket message (§6).
type inboundFrame struct {
	Type        string            `json:"type"`
	Text        string            `json:"text,omitempty"`
	UserID      string            `json:"user_id,omitempty"`
	Attachments []attachmentFrame `json:"attachments,omitempty"`
}

type attachmentFrame struct {
	Filename    string            `json:"filename"`
	ContentType string            `json:"content_type"`
	Data        string            `json:"data"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// outboundFrame is the wire shape of one outbound socket message (§6).
type outboundFrame struct {
	Type        string                   `json:"type"`
	ID          string                   `json:"id"`
	Text        *string                  `json:"text"`
	Timestamp   string                   `json:"timestamp"`
	ReplyTo     string                   `json:"reply_to,omitempty"`
	Attachments []outboundAttachmentInfo `json:"attachments,omitempty"`
}

type outboundAttachmentInfo struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	URL         string `json:"url"`
}

type socketConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *socketConn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

// Socket is the WS gateway (§4.O): each accepted connection gets a fresh
// channel id and is tracked until it disconnects.
type Socket struct {
	Addr string // host:port, e.g. "0.0.0.0:8765"

	server  *http.Server
	echo    *echo.Echo
	inbound func(model.InboundMessage)

	mu    sync.RWMutex
	conns map[string]*socketConn
}

// NewSocket builds a Socket listening on addr once started.
func NewSocket(addr string) *Socket {
	return &Socket{Addr: addr, conns: make(map[string]*socketConn)}
}

// Initialize builds the HTTP routing; it performs no network I/O. The /ws
// route is registered here (not in Run) so it exists before Start begins
// serving.
func (s *Socket) Initialize(ctx context.Context) error {
	s.echo = echo.New()
	s.echo.HideBanner = true
	s.echo.GET("/ws", func(c echo.Context) error {
		s.handleConn(c)
		return nil
	})
	return nil
}

// Start begins accepting connections in the background.
func (s *Socket) Start(ctx context.Context) error {
	if s.echo == nil {
		if err := s.Initialize(ctx); err != nil {
			return err
		}
	}
	s.server = &http.Server{Addr: s.Addr, Handler: s.echo}
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("gateway_socket_listen_failed")
		}
	}()
	return nil
}

// Stop closes the listener and every tracked connection.
func (s *Socket) Stop(ctx context.Context) error {
	s.mu.Lock()
	for id, c := range s.conns {
		c.conn.Close()
		delete(s.conns, id)
	}
	s.mu.Unlock()

	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// ResponseCapabilities reports that the socket gateway can deliver every
// modality; down-conversion is a no-op here.
func (s *Socket) ResponseCapabilities() []model.ResponseCapability {
	return []model.ResponseCapability{
		model.CapabilityText, model.CapabilityAudio, model.CapabilityImage, model.CapabilityVideo,
	}
}

// Send delivers out to the connection registered under out.ChannelID.
// Unknown channel ids are logged and dropped (§7: "unknown target channel
// id ... logged").
func (s *Socket) Send(ctx context.Context, out model.OutboundMessage) bool {
	s.mu.RLock()
	c, ok := s.conns[out.ChannelID]
	s.mu.RUnlock()
	if !ok {
		log.Warn().Str("channel_id", out.ChannelID).Msg("gateway_socket_send_unknown_channel")
		return false
	}
	return c.writeJSON(frameFor(out)) == nil
}

// Broadcast sends out to every currently connected client, ignoring
// out.ChannelID.
func (s *Socket) Broadcast(ctx context.Context, out model.OutboundMessage) {
	frame := frameFor(out)
	frame.Type = "broadcast"
	s.mu.RLock()
	defer s.mu.RUnlock()
	for id, c := range s.conns {
		if err := c.writeJSON(frame); err != nil {
			log.Warn().Err(err).Str("channel_id", id).Msg("gateway_socket_broadcast_failed")
		}
	}
}

func frameFor(out model.OutboundMessage) outboundFrame {
	var text *string
	for _, part := range out.Contents {
		if part.Kind == model.ContentKindText {
			t := part.Text
			text = &t
			break
		}
	}
	return outboundFrame{
		Type:      "message",
		ID:        uuid.NewString(),
		Text:      text,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// Run records the inbound handler and blocks until ctx is cancelled; the
// actual per-connection accept/read loops run on goroutines spawned from
// the /ws handler registered in Initialize, each independent of this
// method's lifetime.
func (s *Socket) Run(ctx context.Context, inbound func(model.InboundMessage)) {
	s.mu.Lock()
	s.inbound = inbound
	s.mu.Unlock()
	<-ctx.Done()
}

func (s *Socket) handleConn(c echo.Context) {
	raw, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.Warn().Err(err).Msg("gateway_socket_upgrade_failed")
		return
	}
	channelID := ChannelID(SocketTag, uuid.NewString())
	conn := &socketConn{conn: raw}

	s.mu.Lock()
	s.conns[channelID] = conn
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.conns, channelID)
		s.mu.Unlock()
		raw.Close()
	}()

	for {
		var frame inboundFrame
		if err := raw.ReadJSON(&frame); err != nil {
			return
		}
		msg, err := toInboundMessage(channelID, frame)
		if err != nil {
			log.Warn().Err(err).Str("channel_id", channelID).Msg("gateway_socket_bad_frame")
			continue
		}
		s.mu.RLock()
		handler := s.inbound
		s.mu.RUnlock()
		if handler != nil {
			handler(msg)
		}
	}
}

func toInboundMessage(channelID string, frame inboundFrame) (model.InboundMessage, error) {
	msg := model.InboundMessage{
		ID:        uuid.NewString(),
		ChannelID: channelID,
		UserID:    frame.UserID,
		Transport: "socket",
		Kind:      model.ContentKind(frame.Type),
		Text:      frame.Text,
		Timestamp: time.Now().UTC(),
	}
	if msg.Kind == "" {
		msg.Kind = model.ContentKindText
	}

	for _, af := range frame.Attachments {
		data, err := base64.StdEncoding.DecodeString(af.Data)
		if err != nil {
			return model.InboundMessage{}, fmt.Errorf("gateway: decode attachment %q: %w", af.Filename, err)
		}
		msg.Attachments = append(msg.Attachments, model.Attachment{
			ID:        uuid.NewString(),
			Filename:  af.Filename,
			MediaType: af.ContentType,
			ByteSize:  int64(len(data)),
			Bytes:     data,
			Metadata:  af.Metadata,
		})
	}
	return msg, nil
}
