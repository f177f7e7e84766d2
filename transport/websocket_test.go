package transport_test

import (
	"context"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clduab11/gemini-flow-sub001/protocol"
	"github.com/clduab11/gemini-flow-sub001/transport"
)

type stubIntake struct {
	notifications chan *protocol.Envelope
}

func newStubIntake() *stubIntake {
	return &stubIntake{notifications: make(chan *protocol.Envelope, 4)}
}

func (s *stubIntake) AgentID() string {
	return "server-agent"
}

func (s *stubIntake) SendMessage(ctx context.Context, env *protocol.Envelope) (any, error) {
	if env.Method == "always.fails" {
		return nil, protocol.NewError(protocol.CodeMethodNotFound, protocol.KindCapabilityNotFound, "unknown method")
	}
	return map[string]any{"echo": env.Method}, nil
}

func (s *stubIntake) SendNotification(ctx context.Context, env *protocol.Envelope) error {
	s.notifications <- env
	return nil
}

func dialTestTransport(t *testing.T) (*websocket.Conn, *stubIntake) {
	t.Helper()

	intake := newStubIntake()
	tr := transport.NewWebSocket(transport.WebSocketConfig{Listen: "127.0.0.1:0"}, nil)
	require.NoError(t, tr.Start(context.Background(), intake))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = tr.Stop(ctx)
	})

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+tr.Addr()+"/a2a", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return conn, intake
}

func TestWebSocketRequestResponse(t *testing.T) {
	conn, _ := dialTestTransport(t)

	env := protocol.NewRequest("client-agent", "server-agent", "system.ping", nil).Build()
	require.NoError(t, conn.WriteJSON(env))

	var resp protocol.Response
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	require.NoError(t, conn.ReadJSON(&resp))

	assert.Equal(t, env.ID, resp.ID)
	assert.Equal(t, "server-agent", resp.From)
	assert.Equal(t, "client-agent", resp.To)
	assert.Equal(t, protocol.MessageTypeResponse, resp.MessageType)
	require.Nil(t, resp.Error)
	assert.Equal(t, map[string]any{"echo": "system.ping"}, resp.Result)
}

func TestWebSocketErrorResponse(t *testing.T) {
	conn, _ := dialTestTransport(t)

	env := protocol.NewRequest("client-agent", "server-agent", "always.fails", nil).Build()
	require.NoError(t, conn.WriteJSON(env))

	var resp protocol.Response
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	require.NoError(t, conn.ReadJSON(&resp))

	assert.Equal(t, env.ID, resp.ID)
	require.NotNil(t, resp.Error)
	assert.Equal(t, protocol.CodeMethodNotFound, resp.Error.Code)
	assert.Equal(t, protocol.KindCapabilityNotFound, resp.Error.Kind)
}

func TestWebSocketNotification(t *testing.T) {
	conn, intake := dialTestTransport(t)

	env := protocol.NewNotification("client-agent", "server-agent", "status.update", map[string]any{"state": "idle"}).Build()
	require.NoError(t, conn.WriteJSON(env))

	select {
	case got := <-intake.notifications:
		assert.Equal(t, "status.update", got.Method)
		assert.Equal(t, "client-agent", got.From)
	case <-time.After(5 * time.Second):
		t.Fatal("notification never reached the intake")
	}
}

func TestWebSocketMalformedFrame(t *testing.T) {
	conn, _ := dialTestTransport(t)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))

	var resp protocol.Response
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	require.NoError(t, conn.ReadJSON(&resp))

	require.NotNil(t, resp.Error)
	assert.Equal(t, protocol.CodeInvalidRequest, resp.Error.Code)
	assert.Equal(t, protocol.KindProtocolError, resp.Error.Kind)
}
