package statuspublisher

import (
	"testing"
	"time"

	"otgw-go/bus"
	"otgw-go/coordinator"
	"otgw-go/diagnostics"
)

func TestPublishEmitsRetainedSnapshot(t *testing.T) {
	store := diagnostics.NewStore()
	store.Apply(25, 15360) // t_boiler ~60.0

	coord := coordinator.New(nil, nil, store, coordinator.Config{Mode: coordinator.Proxy})
	svc := New(coord)

	b := bus.NewBus(8)
	conn := b.NewConnection("test-status")
	svc.publish(conn)

	sub := conn.Subscribe(bus.Topic{"status", "coordinator"})
	select {
	case msg := <-sub.Channel():
		snap, ok := msg.Payload.(Snapshot)
		if !ok {
			t.Fatalf("payload type = %T, want Snapshot", msg.Payload)
		}
		if snap.Mode != "proxy" {
			t.Fatalf("mode = %q, want proxy", snap.Mode)
		}
		if v, ok := snap.Diagnostics["t_boiler"]; !ok || v < 59.9 || v > 60.1 {
			t.Fatalf("diagnostics[t_boiler] = %v, ok=%v", v, ok)
		}
	case <-time.After(time.Second):
		t.Fatal("no retained status message delivered")
	}
}
