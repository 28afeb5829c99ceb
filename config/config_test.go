package config

import (
	"context"
	"testing"
	"time"

	"otgw-go/bus"
)

func TestPublishEmbeddedRetainedPerKey(t *testing.T) {
	oldLookup := EmbeddedConfigLookup
	EmbeddedConfigLookup = func(device string) ([]byte, bool) {
		if device != "test-profile" {
			return nil, false
		}
		return []byte(`{"coordinator": {"mode": "control"}, "status": {"interval_ms": 500}}`), true
	}
	t.Cleanup(func() { EmbeddedConfigLookup = oldLookup })

	b := bus.NewBus(16)
	conn := b.NewConnection("test-config")
	svc := NewService()

	ctx := context.WithValue(context.Background(), CtxDeviceKey, "test-profile")
	svc.Start(ctx, conn)

	sub := conn.Subscribe(bus.Topic{configPrefix, "#"})
	got := map[string]any{}
	deadline := time.Now().Add(600 * time.Millisecond)
	for len(got) < 2 && time.Now().Before(deadline) {
		select {
		case m := <-sub.Channel():
			key, _ := m.Topic[1].(string)
			got[key] = m.Payload
		case <-time.After(10 * time.Millisecond):
		}
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 retained messages, got %d (%v)", len(got), got)
	}
	if _, ok := got["coordinator"]; !ok {
		t.Fatal("missing 'coordinator' message")
	}
	if _, ok := got["status"]; !ok {
		t.Fatal("missing 'status' message")
	}
}

func TestPublishConfigMissingDevice(t *testing.T) {
	b := bus.NewBus(4)
	conn := b.NewConnection("test-missing-device")
	svc := NewService()
	if err := svc.publishConfig(context.Background(), conn); err == nil {
		t.Fatal("expected error for missing device ID, got nil")
	}
}

func TestPublishConfigNoConfigFound(t *testing.T) {
	oldLookup := EmbeddedConfigLookup
	EmbeddedConfigLookup = func(device string) ([]byte, bool) { return nil, false }
	t.Cleanup(func() { EmbeddedConfigLookup = oldLookup })

	b := bus.NewBus(4)
	conn := b.NewConnection("test-no-config")
	svc := NewService()
	ctx := context.WithValue(context.Background(), CtxDeviceKey, "unknown-device")
	if err := svc.publishConfig(ctx, conn); err == nil {
		t.Fatal("expected error for missing embedded config, got nil")
	}
}
