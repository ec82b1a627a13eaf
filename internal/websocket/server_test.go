package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/yegors/class-transcribe/pkg/logger"
)

type echoHandler struct{}

func (echoHandler) HandleMessage(c *Client, messageType string, data map[string]any) error {
	if messageType == MessageTypeStatusRequest {
		c.Reply("status", map[string]any{"label": "Idle"})
	}
	return nil
}

func startServer(t *testing.T) (*Server, *websocket.Conn) {
	t.Helper()
	s := NewServer(logger.NewNop())
	s.SetMessageHandler(echoHandler{})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go s.Run(ctx)

	httpServer := httptest.NewServer(http.HandlerFunc(s.HandleConnection))
	t.Cleanup(httpServer.Close)

	url := "ws" + strings.TrimPrefix(httpServer.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() = %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	deadline := time.Now().Add(5 * time.Second)
	for s.ClientCount() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}
	return s, conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() = %v", err)
	}
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal %s: %v", data, err)
	}
	return m
}

func TestPublishReachesClients(t *testing.T) {
	s, conn := startServer(t)

	s.Publish("job_updated", map[string]any{"id": "abc"})
	m := readMessage(t, conn)
	if m.Type != "job_updated" || m.Data["id"] != "abc" || m.Timestamp.IsZero() {
		t.Fatalf("message = %+v", m)
	}
}

func TestMessageHandlerReplies(t *testing.T) {
	_, conn := startServer(t)

	if err := conn.WriteJSON(map[string]any{"type": MessageTypeStatusRequest}); err != nil {
		t.Fatal(err)
	}
	m := readMessage(t, conn)
	if m.Type != "status" || m.Data["label"] != "Idle" {
		t.Fatalf("reply = %+v", m)
	}
}

func TestPublishWithoutHubDoesNotBlock(t *testing.T) {
	s := NewServer(logger.NewNop())
	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			s.Publish("status", nil)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Publish blocked without a running hub")
	}
}

func TestClientUnregistersOnClose(t *testing.T) {
	s, conn := startServer(t)
	conn.Close()

	deadline := time.Now().Add(5 * time.Second)
	for s.ClientCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never unregistered")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
