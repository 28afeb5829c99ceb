package coordinator_test

import (
	"context"
	"testing"
	"time"

	"otgw-go/coordinator"
	"otgw-go/diagnostics"
	"otgw-go/frame"
	"otgw-go/hw"
	"otgw-go/link"
)

// harness wires two link.Port pairs back to back: one representing the
// physical wire to the thermostat, one to the boiler, each as a single
// shared FakePin per direction (the electrical node a real open-collector
// bus would be).
type harness struct {
	coordThermo, coordBoiler *link.Port
	extThermo, extBoiler     *link.Port
}

func newHarness(t *testing.T, ctx context.Context) *harness {
	t.Helper()
	thermoWire := &hw.FakePin{} // driven by extThermo, heard by coordThermo
	thermoEcho := &hw.FakePin{} // driven by coordThermo, heard by extThermo
	boilerWire := &hw.FakePin{} // driven by coordBoiler, heard by extBoiler
	boilerEcho := &hw.FakePin{} // driven by extBoiler, heard by coordBoiler

	coordThermo, err := link.NewPort(ctx, link.SlaveFacing, thermoEcho, thermoWire, link.Config{})
	if err != nil {
		t.Fatalf("coordThermo: %v", err)
	}
	coordBoiler, err := link.NewPort(ctx, link.MasterFacing, boilerWire, boilerEcho, link.Config{})
	if err != nil {
		t.Fatalf("coordBoiler: %v", err)
	}
	extThermo, err := link.NewPort(ctx, link.MasterFacing, thermoWire, thermoEcho, link.Config{})
	if err != nil {
		t.Fatalf("extThermo: %v", err)
	}
	extBoiler, err := link.NewPort(ctx, link.SlaveFacing, boilerEcho, boilerWire, link.Config{})
	if err != nil {
		t.Fatalf("extBoiler: %v", err)
	}

	// All four ports were just constructed, so the 900ms bus-activation
	// delay applies to all of them; clear it once up front.
	time.Sleep(905 * time.Millisecond)

	return &harness{coordThermo: coordThermo, coordBoiler: coordBoiler, extThermo: extThermo, extBoiler: extBoiler}
}

func recvFrame(t *testing.T, p *link.Port, d time.Duration) frame.Frame {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if f, err, ok := p.TryRecv(); ok {
			if err != nil {
				t.Fatalf("link error while waiting for frame: %v", err)
			}
			return f
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("timed out waiting for a frame")
	return 0
}

type fakeControlSource struct{ c coordinator.ExternalControl }

func (f fakeControlSource) Get() coordinator.ExternalControl { return f.c }

func TestPassthroughForwardsBothDirections(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := newHarness(t, ctx)

	store := diagnostics.NewStore()
	c := coordinator.New(h.coordThermo, h.coordBoiler, store, coordinator.Config{Mode: coordinator.Passthrough})
	go c.Run(ctx)

	req := frame.Build(frame.ReadData, 0, 0)
	if err := h.extThermo.Send(req); err != nil {
		t.Fatalf("extThermo.Send: %v", err)
	}
	forwarded := recvFrame(t, h.extBoiler, 2*time.Second)
	if forwarded != req {
		t.Fatalf("boiler saw %#x, want forwarded %#x", forwarded.Raw(), req.Raw())
	}

	resp := frame.Build(frame.ReadAck, 0, 0x0300)
	if err := h.extBoiler.Send(resp); err != nil {
		t.Fatalf("extBoiler.Send: %v", err)
	}
	gotResp := recvFrame(t, h.extThermo, 2*time.Second)
	if gotResp != resp {
		t.Fatalf("thermostat saw %#x, want forwarded %#x", gotResp.Raw(), resp.Raw())
	}
}

func TestControlModeSynthesizesStatusResponse(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := newHarness(t, ctx)

	store := diagnostics.NewStore()
	ctl := fakeControlSource{c: coordinator.ExternalControl{Available: true, CHOn: true, TsetC: 55}}
	c := coordinator.New(h.coordThermo, h.coordBoiler, store, coordinator.Config{
		Mode: coordinator.Control, ControlSource: ctl,
	})
	go c.Run(ctx)

	req := frame.Build(frame.ReadData, 0, 0)
	if err := h.extThermo.Send(req); err != nil {
		t.Fatalf("extThermo.Send: %v", err)
	}
	resp := recvFrame(t, h.extThermo, 2*time.Second)
	if resp.MessageType() != frame.ReadAck || resp.DataID() != 0 {
		t.Fatalf("synthesized response = %#x, want READ_ACK DID=0", resp.Raw())
	}
	if resp.DataValue()&0b11 != 0b11 {
		t.Fatalf("status bits = %03b, want CH+flame on", resp.DataValue())
	}

	// The boiler must never have been bothered with this request.
	if _, _, ok := h.extBoiler.TryRecv(); ok {
		t.Fatal("boiler should not see a request Control mode answered itself")
	}
}

func TestManualWriteRoundTrip(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := newHarness(t, ctx)

	store := diagnostics.NewStore()
	c := coordinator.New(h.coordThermo, h.coordBoiler, store, coordinator.Config{Mode: coordinator.Proxy})
	go c.Run(ctx)

	wctx, wcancel := context.WithTimeout(ctx, 2*time.Second)
	defer wcancel()
	resultCh := c.SubmitManualWrite(wctx, 1, frame.F8_8(45.0))

	req := recvFrame(t, h.extBoiler, 2*time.Second)
	if req.MessageType() != frame.WriteData || req.DataID() != 1 {
		t.Fatalf("boiler saw %#x, want WRITE_DATA DID=1", req.Raw())
	}
	if err := h.extBoiler.Send(frame.Build(frame.WriteAck, 1, req.DataValue())); err != nil {
		t.Fatalf("extBoiler.Send: %v", err)
	}

	select {
	case res := <-resultCh:
		if res.Err != nil {
			t.Fatalf("manual write result: %v", res.Err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("manual write never resolved")
	}
}
