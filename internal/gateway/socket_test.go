package gateway

import (
	"context"
	"encoding/base64"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alvesfc/openbotx/internal/model"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSocketServer(t *testing.T) (s *Socket, server *httptest.Server, received chan model.InboundMessage, cleanup func()) {
	t.Helper()

	s = NewSocket("")
	require.NoError(t, s.Initialize(context.Background()))
	server = httptest.NewServer(s.echo)

	ctx, cancel := context.WithCancel(context.Background())
	received = make(chan model.InboundMessage, 8)
	done := make(chan struct{})
	go func() {
		s.Run(ctx, func(m model.InboundMessage) { received <- m })
		close(done)
	}()

	cleanup = func() {
		cancel()
		<-done
		server.Close()
	}
	return s, server, received, cleanup
}

func dialSocket(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func TestSocket_ResponseCapabilitiesIncludeAllModalities(t *testing.T) {
	t.Parallel()

	s := NewSocket("")
	caps := s.ResponseCapabilities()
	assert.Contains(t, caps, model.CapabilityText)
	assert.Contains(t, caps, model.CapabilityAudio)
	assert.Contains(t, caps, model.CapabilityImage)
	assert.Contains(t, caps, model.CapabilityVideo)
}

func TestSocket_ConnectSendFrameDelivered(t *testing.T) {
	t.Parallel()

	_, server, received, cleanup := newTestSocketServer(t)
	defer cleanup()

	conn := dialSocket(t, server)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(inboundFrame{Type: "text", Text: "hello socket", UserID: "u1"}))

	select {
	case msg := <-received:
		assert.Equal(t, "hello socket", msg.Text)
		assert.Equal(t, "u1", msg.UserID)
		assert.True(t, strings.HasPrefix(msg.ChannelID, "sock-"))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for inbound message")
	}
}

func TestSocket_OutboundSendReachesConnectedClient(t *testing.T) {
	t.Parallel()

	s, server, received, cleanup := newTestSocketServer(t)
	defer cleanup()

	conn := dialSocket(t, server)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(inboundFrame{Type: "text", Text: "hi"}))
	var channelID string
	select {
	case msg := <-received:
		channelID = msg.ChannelID
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for connection registration")
	}

	ok := s.Send(context.Background(), model.OutboundMessage{
		ChannelID: channelID,
		Contents:  []model.ContentPart{model.TextPart("reply text")},
	})
	assert.True(t, ok)

	var frame outboundFrame
	require.NoError(t, conn.ReadJSON(&frame))
	require.NotNil(t, frame.Text)
	assert.Equal(t, "reply text", *frame.Text)
}

func TestSocket_SendUnknownChannelReturnsFalse(t *testing.T) {
	t.Parallel()

	s := NewSocket("")
	require.NoError(t, s.Initialize(context.Background()))
	ok := s.Send(context.Background(), model.OutboundMessage{ChannelID: "sock-does-not-exist"})
	assert.False(t, ok)
}

func TestSocket_ToInboundMessageDecodesBase64Attachment(t *testing.T) {
	t.Parallel()

	payload := base64.StdEncoding.EncodeToString([]byte("file-bytes"))
	frame := inboundFrame{
		Type: "file",
		Text: "see attached",
		Attachments: []attachmentFrame{
			{Filename: "a.bin", ContentType: "application/octet-stream", Data: payload},
		},
	}
	msg, err := toInboundMessage("sock-abc", frame)
	require.NoError(t, err)
	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, []byte("file-bytes"), msg.Attachments[0].Bytes)
	assert.Equal(t, model.ContentKindFile, msg.Kind)
	assert.Equal(t, "sock-abc", msg.ChannelID)
}

func TestSocket_ToInboundMessageRejectsBadBase64(t *testing.T) {
	t.Parallel()

	frame := inboundFrame{Attachments: []attachmentFrame{{Filename: "a.bin", Data: "not-base64!!"}}}
	_, err := toInboundMessage("sock-abc", frame)
	assert.Error(t, err)
}

func TestSocket_FrameForPicksFirstTextPart(t *testing.T) {
	t.Parallel()

	out := model.OutboundMessage{Contents: []model.ContentPart{
		{Kind: model.ContentKindImage},
		model.TextPart("the reply"),
	}}
	frame := frameFor(out)
	require.NotNil(t, frame.Text)
	assert.Equal(t, "the reply", *frame.Text)
}
