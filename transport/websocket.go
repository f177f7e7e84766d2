package transport

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

	"github.com/clduab11/gemini-flow-sub001/observability"
	"github.com/clduab11/gemini-flow-sub001/protocol"
)

const (
	defaultWebSocketPath = "/a2a"
	writeDeadline        = 10 * time.Second
)

// WebSocket transport events.
const (
	EventConnOpened    observability.EventType = "transport.ws.connection.opened"
	EventConnClosed    observability.EventType = "transport.ws.connection.closed"
	EventFrameRejected observability.EventType = "transport.ws.frame.rejected"
)

// WebSocketConfig configures the WebSocket listener.
type WebSocketConfig struct {
	// Listen is the TCP address, e.g. ":8470".
	Listen string
	// Path is the upgrade endpoint. Defaults to /a2a.
	Path string
}

// WebSocketTransport serves envelopes over WebSocket connections. Each
// text frame carries one JSON envelope; request frames get a response
// frame back on the same connection.
type WebSocketTransport struct {
	cfg      WebSocketConfig
	observer observability.Observer
	upgrader websocket.Upgrader

	intake Intake
	server *http.Server
	addr   net.Addr

	mu    sync.Mutex
	conns map[*wsConn]struct{}
	wg    sync.WaitGroup
}

// wsConn serializes writes; gorilla connections allow one concurrent
// writer.
type wsConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *wsConn) writeJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	return c.conn.WriteJSON(v)
}

func NewWebSocket(cfg WebSocketConfig, observer observability.Observer) *WebSocketTransport {
	if cfg.Path == "" {
		cfg.Path = defaultWebSocketPath
	}
	if observer == nil {
		observer = observability.NoOpObserver{}
	}
	return &WebSocketTransport{
		cfg:      cfg,
		observer: observer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		conns: make(map[*wsConn]struct{}),
	}
}

func (t *WebSocketTransport) Name() string {
	return "websocket"
}

func (t *WebSocketTransport) Start(ctx context.Context, intake Intake) error {
	if t.cfg.Listen == "" {
		return errors.New("websocket transport requires a listen address")
	}
	t.intake = intake

	ln, err := net.Listen("tcp", t.cfg.Listen)
	if err != nil {
		return fmt.Errorf("websocket listen on %s: %w", t.cfg.Listen, err)
	}
	t.addr = ln.Addr()

	mux := http.NewServeMux()
	mux.HandleFunc(t.cfg.Path, t.handleUpgrade)
	t.server = &http.Server{Handler: mux}

	go func() {
		if serveErr := t.server.Serve(ln); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			t.emit(EventConnClosed, observability.LevelError, map[string]any{
				"error": serveErr.Error(),
			})
		}
	}()

	return nil
}

func (t *WebSocketTransport) Stop(ctx context.Context) error {
	var err error
	if t.server != nil {
		err = t.server.Shutdown(ctx)
	}

	t.mu.Lock()
	for c := range t.conns {
		_ = c.conn.Close()
	}
	t.mu.Unlock()

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	return err
}

// Addr reports the bound listen address, useful when Listen used port 0.
// Valid after Start.
func (t *WebSocketTransport) Addr() string {
	if t.addr == nil {
		return t.cfg.Listen
	}
	return t.addr.String()
}

func (t *WebSocketTransport) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := t.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	c := &wsConn{conn: conn}
	t.mu.Lock()
	t.conns[c] = struct{}{}
	t.mu.Unlock()

	t.emit(EventConnOpened, observability.LevelDebug, map[string]any{
		"remote": conn.RemoteAddr().String(),
	})

	t.wg.Add(1)
	go t.readLoop(c)
}

func (t *WebSocketTransport) readLoop(c *wsConn) {
	defer func() {
		t.mu.Lock()
		delete(t.conns, c)
		t.mu.Unlock()
		_ = c.conn.Close()
		t.wg.Done()

		t.emit(EventConnClosed, observability.LevelDebug, map[string]any{
			"remote": c.conn.RemoteAddr().String(),
		})
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		t.wg.Add(1)
		go func() {
			defer t.wg.Done()
			t.handleFrame(c, data)
		}()
	}
}

func (t *WebSocketTransport) handleFrame(c *wsConn, data []byte) {
	var env protocol.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.emit(EventFrameRejected, observability.LevelWarn, map[string]any{
			"remote": c.conn.RemoteAddr().String(),
			"error":  err.Error(),
		})
		protoErr := protocol.NewError(protocol.CodeInvalidRequest, protocol.KindProtocolError, "malformed envelope: not valid JSON")
		_ = c.writeJSON(protocol.NewErrorResponse(&protocol.Envelope{}, t.intake.AgentID(), protoErr))
		return
	}

	ctx := context.Background()

	if env.IsNotification() {
		if err := t.intake.SendNotification(ctx, &env); err != nil {
			t.emit(EventFrameRejected, observability.LevelWarn, map[string]any{
				"method": env.Method,
				"error":  err.Error(),
			})
		}
		return
	}

	result, err := t.intake.SendMessage(ctx, &env)
	if err != nil {
		_ = c.writeJSON(protocol.NewErrorResponse(&env, t.intake.AgentID(), protocol.WrapError(err, t.intake.AgentID())))
		return
	}
	_ = c.writeJSON(protocol.NewResponse(&env, t.intake.AgentID(), result))
}

func (t *WebSocketTransport) emit(eventType observability.EventType, level observability.Level, data map[string]any) {
	t.observer.OnEvent(context.Background(), observability.Event{
		Type:      eventType,
		Level:     level,
		Timestamp: time.Now(),
		Source:    "transport.websocket",
		Data:      data,
	})
}
