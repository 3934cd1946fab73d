package stream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// mockWSServer creates a test WebSocket server.
func mockWSServer(t *testing.T, handler func(*websocket.Conn)) *httptest.Server {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer ws.Close()
		handler(ws)
	}))

	return server
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func testConnConfig(url string) ConnConfig {
	return ConnConfig{
		URL:          url,
		PingInterval: time.Hour,
		ReadTimeout:  time.Hour,
		WriteTimeout: 5 * time.Second,
		BufferSize:   100,
	}
}

func drain(ws *websocket.Conn) {
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
	}
}

func TestConn_Connect(t *testing.T) {
	server := mockWSServer(t, drain)
	defer server.Close()

	c := newConn(testConnConfig(wsURL(server)), nil)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	if !c.IsConnected() {
		t.Error("expected IsConnected to return true")
	}

	if err := c.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if c.IsConnected() {
		t.Error("expected IsConnected to return false after Close")
	}
	if err := c.Connect(context.Background()); err != ErrAlreadyClosed {
		t.Errorf("Connect after Close = %v, want ErrAlreadyClosed", err)
	}
}

func TestConn_Send(t *testing.T) {
	var received []byte
	var mu sync.Mutex

	server := mockWSServer(t, func(ws *websocket.Conn) {
		for {
			_, msg, err := ws.ReadMessage()
			if err != nil {
				return
			}
			mu.Lock()
			received = msg
			mu.Unlock()
		}
	})
	defer server.Close()

	c := newConn(testConnConfig(wsURL(server)), nil)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer c.Close()

	testMsg := []byte(`{"assets_ids":["a"],"type":"market"}`)
	if err := c.Send(testMsg); err != nil {
		t.Errorf("Send failed: %v", err)
	}

	// Wait for message to be received
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if string(received) != string(testMsg) {
		t.Errorf("received = %q, want %q", received, testMsg)
	}
}

func TestConn_MessagesSkipPong(t *testing.T) {
	server := mockWSServer(t, func(ws *websocket.Conn) {
		ws.WriteMessage(websocket.TextMessage, []byte("PONG"))
		ws.WriteMessage(websocket.TextMessage, []byte(`{"event_type":"book"}`))
		drain(ws)
	})
	defer server.Close()

	c := newConn(testConnConfig(wsURL(server)), nil)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer c.Close()

	select {
	case msg := <-c.Messages():
		if string(msg.Data) != `{"event_type":"book"}` {
			t.Errorf("first message = %q, want the book event", msg.Data)
		}
		if msg.ReceivedAt.IsZero() {
			t.Error("ReceivedAt not set")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestConn_SendsKeepalive(t *testing.T) {
	pings := make(chan string, 4)
	server := mockWSServer(t, func(ws *websocket.Conn) {
		for {
			_, msg, err := ws.ReadMessage()
			if err != nil {
				return
			}
			pings <- string(msg)
		}
	})
	defer server.Close()

	cfg := testConnConfig(wsURL(server))
	cfg.PingInterval = 20 * time.Millisecond
	c := newConn(cfg, nil)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer c.Close()

	select {
	case got := <-pings:
		if got != "PING" {
			t.Errorf("keepalive = %q, want PING", got)
		}
	case <-time.After(time.Second):
		t.Fatal("no keepalive sent")
	}
}

func TestConn_StaleConnection(t *testing.T) {
	// Server never writes, so the connection goes stale.
	server := mockWSServer(t, drain)
	defer server.Close()

	cfg := testConnConfig(wsURL(server))
	cfg.PingInterval = 10 * time.Millisecond
	cfg.ReadTimeout = 30 * time.Millisecond
	c := newConn(cfg, nil)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer c.Close()

	select {
	case err := <-c.Errors():
		if err != ErrStaleConnection {
			t.Errorf("err = %v, want ErrStaleConnection", err)
		}
	case <-time.After(time.Second):
		t.Fatal("stale connection not detected")
	}
}

func TestConn_SendNotConnected(t *testing.T) {
	c := newConn(testConnConfig("ws://localhost:0"), nil)
	if err := c.Send([]byte("test")); err != ErrNotConnected {
		t.Errorf("Send = %v, want ErrNotConnected", err)
	}
}

func TestConn_DoubleClose(t *testing.T) {
	server := mockWSServer(t, drain)
	defer server.Close()

	c := newConn(testConnConfig(wsURL(server)), nil)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	if err := c.Close(); err != nil {
		t.Errorf("first Close failed: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
}
