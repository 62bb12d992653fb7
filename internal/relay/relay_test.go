package relay

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRelay(t *testing.T) (*Relay, *httptest.Server) {
	t.Helper()
	r := New("127.0.0.1", 0)
	require.NoError(t, r.Initialize(context.Background()))
	server := httptest.NewServer(r.echo)
	t.Cleanup(server.Close)
	return r, server
}

func dialWS(t *testing.T, server *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn, timeout time.Duration) map[string]any {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(timeout))
	var frame map[string]any
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

func TestJSONVersion_NoUpstreamOmitsDebuggerURL(t *testing.T) {
	t.Parallel()
	r, server := newTestRelay(t)
	_ = r

	resp, err := server.Client().Get(server.URL + "/json/version")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, 200, resp.StatusCode)

	var payload map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	assert.NotContains(t, payload, "webSocketDebuggerUrl")
}

func TestCDP_RejectsConnectionWithoutUpstream(t *testing.T) {
	t.Parallel()
	_, server := newTestRelay(t)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/cdp"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 503, resp.StatusCode)
}

func TestExtension_SecondConnectionConflicts(t *testing.T) {
	t.Parallel()
	_, server := newTestRelay(t)

	first := dialWS(t, server, "/extension")
	defer first.Close()
	time.Sleep(20 * time.Millisecond)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/extension"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 409, resp.StatusCode)
}

func TestExtension_RepliesPongToPing(t *testing.T) {
	t.Parallel()
	oldInterval := pingInterval
	_ = oldInterval
	_, server := newTestRelay(t)

	up := dialWS(t, server, "/extension")
	defer up.Close()

	// pingInterval is 5s in production; this just verifies the connection
	// stays open and responds to an application-level ping from us too.
	require.NoError(t, up.WriteJSON(map[string]string{"method": "ping"}))
	frame := readFrame(t, up, 2*time.Second)
	assert.Equal(t, "pong", frame["method"])
}

func TestCDP_LocalBrowserGetVersion(t *testing.T) {
	t.Parallel()
	_, server := newTestRelay(t)

	up := dialWS(t, server, "/extension")
	defer up.Close()
	time.Sleep(20 * time.Millisecond)

	down := dialWS(t, server, "/cdp")
	defer down.Close()

	require.NoError(t, down.WriteJSON(downstreamCommand{ID: 1, Method: "Browser.getVersion"}))
	frame := readFrame(t, down, 2*time.Second)
	assert.Equal(t, float64(1), frame["id"])
	result, ok := frame["result"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "1.3", result["protocolVersion"])
}

func TestCDP_UnknownCommandForwardsToUpstreamAndMatchesReply(t *testing.T) {
	t.Parallel()
	_, server := newTestRelay(t)

	up := dialWS(t, server, "/extension")
	defer up.Close()
	time.Sleep(20 * time.Millisecond)

	down := dialWS(t, server, "/cdp")
	defer down.Close()

	require.NoError(t, down.WriteJSON(downstreamCommand{ID: 7, Method: "Page.navigate", SessionID: "s1"}))

	fwd := readFrame(t, up, 2*time.Second)
	assert.Equal(t, "forwardCDPCommand", fwd["method"])
	fwdID, ok := fwd["id"].(float64)
	require.True(t, ok)

	require.NoError(t, up.WriteJSON(map[string]any{"id": int(fwdID), "result": map[string]any{"ok": true}}))

	reply := readFrame(t, down, 2*time.Second)
	assert.Equal(t, float64(7), reply["id"])
	result, ok := reply["result"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, result["ok"])
}

func TestExtension_AttachedTargetFanOutAndAutoAttachReplay(t *testing.T) {
	t.Parallel()
	_, server := newTestRelay(t)

	up := dialWS(t, server, "/extension")
	defer up.Close()
	time.Sleep(20 * time.Millisecond)

	down := dialWS(t, server, "/cdp")
	defer down.Close()

	attach := map[string]any{
		"method": "forwardCDPEvent",
		"params": map[string]any{
			"method": "Target.attachedToTarget",
			"params": map[string]any{
				"sessionId":  "s1",
				"targetInfo": map[string]any{"targetId": "t1", "type": "page", "title": "A", "url": "http://a"},
			},
			"sessionId": "s1",
		},
	}
	require.NoError(t, up.WriteJSON(attach))

	frame := readFrame(t, down, 2*time.Second)
	assert.Equal(t, "Target.attachedToTarget", frame["method"])

	// A second downstream connecting afterwards learns about t1 via replay.
	down2 := dialWS(t, server, "/cdp")
	defer down2.Close()
	require.NoError(t, down2.WriteJSON(downstreamCommand{ID: 1, Method: "Target.setAutoAttach"}))

	replay := readFrame(t, down2, 2*time.Second)
	assert.Equal(t, "Target.attachedToTarget", replay["method"])

	reply := readFrame(t, down2, 2*time.Second)
	assert.Equal(t, float64(1), reply["id"])
}

func TestExtension_TargetIDChangeEmitsSyntheticDetachThenAttach(t *testing.T) {
	t.Parallel()
	_, server := newTestRelay(t)

	up := dialWS(t, server, "/extension")
	defer up.Close()
	time.Sleep(20 * time.Millisecond)

	down := dialWS(t, server, "/cdp")
	defer down.Close()

	sendAttach := func(targetID string) {
		require.NoError(t, up.WriteJSON(map[string]any{
			"method": "forwardCDPEvent",
			"params": map[string]any{
				"method": "Target.attachedToTarget",
				"params": map[string]any{
					"sessionId":  "s1",
					"targetInfo": map[string]any{"targetId": targetID, "type": "page"},
				},
				"sessionId": "s1",
			},
		}))
	}

	sendAttach("t1")
	first := readFrame(t, down, 2*time.Second)
	assert.Equal(t, "Target.attachedToTarget", first["method"])

	sendAttach("t2")
	detach := readFrame(t, down, 2*time.Second)
	assert.Equal(t, "Target.detachedFromTarget", detach["method"])
	second := readFrame(t, down, 2*time.Second)
	assert.Equal(t, "Target.attachedToTarget", second["method"])
}

func TestExtension_DisconnectClosesDownstreamsAndClearsTargets(t *testing.T) {
	t.Parallel()
	r, server := newTestRelay(t)

	up := dialWS(t, server, "/extension")
	time.Sleep(20 * time.Millisecond)

	down := dialWS(t, server, "/cdp")
	defer down.Close()

	up.Close()

	require.Eventually(t, func() bool {
		return !r.upstreamConnected()
	}, time.Second, 10*time.Millisecond)

	down.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := down.ReadMessage()
	assert.Error(t, err)

	assert.Empty(t, r.targetsSnapshot())
}

func TestLoopbackMiddleware_BlocksNonLoopbackRemoteAddr(t *testing.T) {
	t.Parallel()
	assert.True(t, isLoopback("127.0.0.1:54321"))
	assert.True(t, isLoopback("[::1]:54321"))
	assert.False(t, isLoopback("10.0.0.5:54321"))
}

func TestRouteCommand_AttachToTargetUnknownErrors(t *testing.T) {
	t.Parallel()
	r := New("127.0.0.1", 0)
	_, err := r.routeCommand(context.Background(), downstreamCommand{Method: "Target.attachToTarget", Params: []byte(`{"targetId":"missing"}`)})
	assert.ErrorIs(t, err, errTargetNotFound)
}
