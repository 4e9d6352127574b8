package bus

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/yungbote/mindtrail-backend/internal/platform/logger"
	"github.com/yungbote/mindtrail-backend/internal/realtime"
)

func TestNewRedisBusRequiresAddr(t *testing.T) {
	if _, err := NewRedisBus(logger.Nop(), RedisConfig{}); err == nil {
		t.Fatalf("expected an error without an address")
	}
	if _, err := NewRedisBus(nil, RedisConfig{Addr: "localhost:6379"}); err == nil {
		t.Fatalf("expected an error without a logger")
	}
}

func TestEnvelopeRoundTrip(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	msg := realtime.SSEMessage{
		Channel: realtime.CaptureChannel("u1"),
		Event:   realtime.SSEEventCaptureAdded,
		Data:    map[string]any{"id": "cap-1"},
	}
	raw, err := encodeEnvelope("node-a", msg, now)
	if err != nil {
		t.Fatalf("encodeEnvelope: %v", err)
	}

	var wire map[string]any
	if err := json.Unmarshal(raw, &wire); err != nil {
		t.Fatalf("unmarshal wire: %v", err)
	}
	if wire["v"] != float64(envelopeVersion) || wire["origin"] != "node-a" || wire["publishedAt"] != float64(now.UnixMilli()) {
		t.Fatalf("unexpected envelope header: %v", wire)
	}

	got, origin, err := decodeEnvelope(raw)
	if err != nil {
		t.Fatalf("decodeEnvelope: %v", err)
	}
	if origin != "node-a" || got.Channel != msg.Channel || got.Event != msg.Event {
		t.Fatalf("decoded mismatch: origin=%q msg=%+v", origin, got)
	}
	data, err := json.Marshal(got.Data)
	if err != nil {
		t.Fatalf("marshal data: %v", err)
	}
	if string(data) != `{"id":"cap-1"}` {
		t.Fatalf("data = %s", data)
	}
}

func TestEnvelopeRejectsForeignMessages(t *testing.T) {
	if _, err := encodeEnvelope("n", realtime.SSEMessage{Channel: "jobs:u1", Event: realtime.SSEEventCaptureAdded}, time.Now()); err == nil {
		t.Fatalf("expected non-capture channel to be rejected on publish")
	}
	if _, err := encodeEnvelope("n", realtime.SSEMessage{Channel: realtime.CaptureChannel(""), Event: realtime.SSEEventCaptureAdded}, time.Now()); err == nil {
		t.Fatalf("expected empty user channel to be rejected on publish")
	}

	cases := map[string]string{
		"not json":      `{`,
		"old version":   `{"v":0,"channel":"captures:u1","event":"CaptureAdded"}`,
		"wrong channel": `{"v":1,"channel":"jobs:u1","event":"CaptureAdded"}`,
		"wrong event":   `{"v":1,"channel":"captures:u1","event":"JobDone"}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			if _, _, err := decodeEnvelope([]byte(raw)); err == nil {
				t.Fatalf("expected %s payload to be rejected", name)
			}
		})
	}
}

func TestForwardDropsInvalidPayloads(t *testing.T) {
	b := &redisBus{log: logger.Nop(), origin: "node-a"}
	var got []realtime.SSEMessage
	onMsg := func(m realtime.SSEMessage) { got = append(got, m) }

	b.forward(`{"channel":"captures:u1","event":"CaptureAdded"}`, onMsg)
	if len(got) != 0 {
		t.Fatalf("unversioned payload should not be forwarded: %+v", got)
	}

	raw, err := encodeEnvelope("node-b", realtime.SSEMessage{Channel: realtime.CaptureChannel("u2"), Event: realtime.SSEEventCaptureAdded}, time.Now())
	if err != nil {
		t.Fatalf("encodeEnvelope: %v", err)
	}
	b.forward(string(raw), onMsg)
	if len(got) != 1 || !strings.HasSuffix(got[0].Channel, "u2") {
		t.Fatalf("expected one forwarded message, got %+v", got)
	}
}

func TestRedisBusRoundTrip(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set TEST_REDIS_ADDR to run redis bus integration tests")
	}
	b, err := NewRedisBus(logger.Nop(), RedisConfig{Addr: addr, Channel: "mindtrail:test:" + time.Now().Format("150405.000")})
	if err != nil {
		t.Fatalf("NewRedisBus: %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	got := make(chan realtime.SSEMessage, 1)
	if err := b.StartForwarder(ctx, func(m realtime.SSEMessage) { got <- m }); err != nil {
		t.Fatalf("StartForwarder: %v", err)
	}
	want := realtime.SSEMessage{Channel: realtime.CaptureChannel("u1"), Event: realtime.SSEEventCaptureAdded}
	if err := b.Publish(ctx, want); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	select {
	case m := <-got:
		if m.Channel != want.Channel || m.Event != want.Event {
			t.Fatalf("forwarded message mismatch: %+v", m)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for forwarded message")
	}
}
