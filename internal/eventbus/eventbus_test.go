package eventbus

import (
	"testing"
	"time"

	"github.com/friendsincode/grimnir_panel/internal/config"
	"github.com/friendsincode/grimnir_panel/internal/events"
	"github.com/rs/zerolog"
)

func TestMessageDecoding(t *testing.T) {
	data, err := marshalMessage(events.EventNotice, events.Payload{"message": "hello"}, "node-a")
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	msg, err := unmarshalMessage(data)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.EventType != events.EventNotice || msg.NodeID != "node-a" || msg.Payload["message"] != "hello" || msg.MessageID == "" {
		t.Fatalf("decoded = %+v", msg)
	}

	for _, bad := range []string{"{", `{"payload":{}}`} {
		if _, err := unmarshalMessage([]byte(bad)); err == nil {
			t.Fatalf("expected error for %s", bad)
		}
	}
}

func TestNodeID(t *testing.T) {
	if got := NodeID("panel-1"); got != "panel-1" {
		t.Fatalf("NodeID = %q", got)
	}
	a, b := NodeID(""), NodeID("")
	if a == "" || a == b {
		t.Fatalf("generated node ids %q and %q", a, b)
	}
}

func TestRedisBusFallsBackWhenUnreachable(t *testing.T) {
	cfg := DefaultRedisConfig()
	cfg.Addr = "127.0.0.1:1"
	cfg.DialTimeout = 200 * time.Millisecond

	rb := NewRedisBus(cfg, "node-a", zerolog.Nop())
	defer rb.Close()
	if !rb.Fallback() {
		t.Fatal("expected in-process fallback")
	}

	sub := rb.Subscribe(events.EventNotice)
	rb.Publish(events.EventNotice, events.Payload{"message": "local"})
	select {
	case payload := <-sub:
		if payload["message"] != "local" {
			t.Fatalf("payload = %+v", payload)
		}
	case <-time.After(time.Second):
		t.Fatal("local subscriber did not receive the event")
	}
	rb.Unsubscribe(events.EventNotice, sub)
}

func TestNATSMirrorConnectFailure(t *testing.T) {
	cfg := DefaultNATSConfig()
	cfg.URL = "nats://127.0.0.1:1"
	cfg.Timeout = 200 * time.Millisecond

	if _, err := NewNATSMirror(events.NewBus(), cfg, "node-a", zerolog.Nop()); err == nil {
		t.Fatal("expected connect error")
	}
}

func TestNATSSubject(t *testing.T) {
	m := &NATSMirror{prefix: "grimnir.panel"}
	if got := m.Subject(events.EventNowPlaying); got != "grimnir.panel.now_playing" {
		t.Fatalf("subject = %q", got)
	}
}

func TestOpenMemoryBus(t *testing.T) {
	broker, closers := Open(&config.Config{EventBus: "memory"}, zerolog.Nop())
	if _, ok := broker.(*events.Bus); !ok {
		t.Fatalf("broker = %T, want *events.Bus", broker)
	}
	if len(closers) != 0 {
		t.Fatalf("closers = %d", len(closers))
	}

	broker, closers = Open(&config.Config{EventBus: "memory", NATSURL: "nats://127.0.0.1:1"}, zerolog.Nop())
	if _, ok := broker.(*events.Bus); !ok {
		t.Fatalf("unreachable nats should leave the memory bus, got %T", broker)
	}
	if len(closers) != 0 {
		t.Fatalf("closers = %d", len(closers))
	}
}
