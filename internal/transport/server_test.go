package transport

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/gorilla/websocket/websockettest"

	"massivegame/server/internal/logging"
)

type recordingHandler struct {
	mu       sync.Mutex
	opened   []string
	messages [][]byte
	closed   []string
	sender   Sender
}

func (h *recordingHandler) OnOpen(peerID string, sender Sender) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.opened = append(h.opened, peerID)
	h.sender = sender
}

func (h *recordingHandler) OnMessage(peerID string, payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, append([]byte(nil), payload...))
}

func (h *recordingHandler) OnClose(peerID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = append(h.closed, peerID)
}

func (h *recordingHandler) snapshot() (opened, closed []string, messages int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.opened...), append([]string(nil), h.closed...), len(h.messages)
}

func dialTestServer(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(url, "http")
	conn, _, err := websockettest.DialIgnoringPongs(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func newTestServer(handler Handler) (*Server, *httptest.Server) {
	cfg := Config{MaxPayloadBytes: 1 << 16, PingInterval: 50 * time.Millisecond}
	s := NewServer(cfg, logging.NewTestLogger(), handler, nil)
	s.upgrader.CheckOrigin = func(*http.Request) bool { return true }
	return s, httptest.NewServer(s)
}

func TestServerOpenMessageClose(t *testing.T) {
	handler := &recordingHandler{}
	s, httpServer := newTestServer(handler)
	defer httpServer.Close()

	conn := dialTestServer(t, httpServer.URL)

	if err := conn.WriteMessage(websocket.BinaryMessage, []byte("hello")); err != nil {
		t.Fatalf("write: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if _, _, n := handler.snapshot(); n > 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	_, _, n := handler.snapshot()
	if n != 1 {
		t.Fatalf("expected exactly one recorded message, got %d", n)
	}

	conn.Close()

	deadline = time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		_, closed, _ := handler.snapshot()
		if len(closed) == 1 {
			if s.ActiveClients() != 0 {
				t.Fatalf("expected server to have removed the closed client")
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("timed out waiting for OnClose notification")
}

func TestServerSenderDeliversToClient(t *testing.T) {
	handler := &recordingHandler{}
	_, httpServer := newTestServer(handler)
	defer httpServer.Close()

	conn := dialTestServer(t, httpServer.URL)
	defer conn.Close()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		handler.mu.Lock()
		ready := handler.sender != nil
		handler.mu.Unlock()
		if ready {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	handler.mu.Lock()
	sender := handler.sender
	handler.mu.Unlock()
	if sender == nil {
		t.Fatal("expected OnOpen to have supplied a Sender")
	}
	if !sender.IsOpen() {
		t.Fatal("expected a freshly opened connection to report IsOpen")
	}
	if err := sender.Send([]byte("payload")); err != nil {
		t.Fatalf("send: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("client read: %v", err)
	}
	if string(msg) != "payload" {
		t.Fatalf("unexpected payload: %q", msg)
	}
}

func TestServerRejectsAtClientLimit(t *testing.T) {
	handler := &recordingHandler{}
	cfg := Config{MaxClients: 1}
	s := NewServer(cfg, logging.NewTestLogger(), handler, nil)
	s.upgrader.CheckOrigin = func(*http.Request) bool { return true }
	httpServer := httptest.NewServer(s)
	defer httpServer.Close()

	first := dialTestServer(t, httpServer.URL)
	defer first.Close()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if s.ActiveClients() == 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	wsURL := "ws" + strings.TrimPrefix(httpServer.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatal("expected the second dial to be rejected at capacity")
	}
	if resp == nil || resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %+v", resp)
	}
}
