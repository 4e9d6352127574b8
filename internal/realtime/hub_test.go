package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/yungbote/mindtrail-backend/internal/platform/logger"
)

func mustTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	t.Cleanup(log.Sync)
	return log
}

func recvMessage(t *testing.T, ch <-chan SSEMessage, timeout time.Duration) SSEMessage {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(timeout):
		t.Fatalf("timed out waiting for SSE message")
	}
	return SSEMessage{}
}

func TestSSEHubOrderingAndReconnect(t *testing.T) {
	hub := NewSSEHub(mustTestLogger(t))
	channel := CaptureChannel("u1")

	clientA := hub.NewSSEClient("u1")
	hub.AddChannel(clientA, channel)

	hub.Broadcast(SSEMessage{Channel: channel, Event: SSEEventCaptureAdded, Data: map[string]any{"seq": 1}})
	hub.Broadcast(SSEMessage{Channel: channel, Event: SSEEventCaptureAdded, Data: map[string]any{"seq": 2}})

	gotFirst := recvMessage(t, clientA.Outbound, time.Second)
	gotSecond := recvMessage(t, clientA.Outbound, time.Second)
	if gotFirst.Data.(map[string]any)["seq"] != 1 || gotSecond.Data.(map[string]any)["seq"] != 2 {
		t.Fatalf("messages out of order: %+v then %+v", gotFirst, gotSecond)
	}

	hub.CloseClient(clientA)
	select {
	case _, ok := <-clientA.Outbound:
		if ok {
			t.Fatalf("clientA outbound should be closed after disconnect")
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("timed out waiting for clientA channel close")
	}
	if n := hub.Subscribers(channel); n != 0 {
		t.Fatalf("closed client still subscribed: %d", n)
	}

	clientB := hub.NewSSEClient("u1")
	hub.AddChannel(clientB, channel)
	hub.Broadcast(SSEMessage{Channel: channel, Event: SSEEventCaptureAdded})
	if got := recvMessage(t, clientB.Outbound, time.Second); got.Event != SSEEventCaptureAdded {
		t.Fatalf("reconnect event: want=%s got=%s", SSEEventCaptureAdded, got.Event)
	}
}

func TestSSEHubCloseClientIsIdempotent(t *testing.T) {
	hub := NewSSEHub(mustTestLogger(t))
	client := hub.NewSSEClient("u1")
	hub.AddChannel(client, CaptureChannel("u1"))

	hub.CloseClient(client)
	hub.CloseClient(client)

	// subscribing a closed client is ignored, so broadcasts cannot hit a closed channel
	hub.AddChannel(client, CaptureChannel("u1"))
	hub.Broadcast(SSEMessage{Channel: CaptureChannel("u1"), Event: SSEEventCaptureAdded})
	if n := hub.Subscribers(CaptureChannel("u1")); n != 0 {
		t.Fatalf("closed client re-subscribed: %d", n)
	}
}

func TestSSEHubScopesChannelsPerUser(t *testing.T) {
	hub := NewSSEHub(mustTestLogger(t))
	alice := hub.NewSSEClient("alice")
	bob := hub.NewSSEClient("bob")
	hub.AddChannel(alice, CaptureChannel("alice"))
	hub.AddChannel(bob, CaptureChannel("bob"))

	hub.Broadcast(SSEMessage{Channel: CaptureChannel("alice"), Event: SSEEventCaptureAdded})
	recvMessage(t, alice.Outbound, time.Second)
	select {
	case msg := <-bob.Outbound:
		t.Fatalf("bob received alice's message: %+v", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestServeStreamWritesEventsAndStops(t *testing.T) {
	events := make(chan StreamEvent, 2)
	events <- StreamEvent{Name: "snapshot", Data: map[string]any{"items": []string{}}}
	events <- StreamEvent{Name: "error", Data: map[string]any{"error": "boom"}}
	close(events)

	rec := httptest.NewRecorder()
	ServeStream(context.Background(), rec, mustTestLogger(t), events, time.Hour)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: want 200 got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type: %q", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "event: snapshot\ndata: {\"items\":[]}\n\n") {
		t.Fatalf("snapshot frame missing: %q", body)
	}
	if !strings.Contains(body, "event: error\ndata: {\"error\":\"boom\"}\n\n") {
		t.Fatalf("error frame missing: %q", body)
	}
}

func TestServeStreamHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		ServeStream(ctx, httptest.NewRecorder(), nil, make(chan StreamEvent), time.Hour)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("ServeStream did not return after cancel")
	}
}
