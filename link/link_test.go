package link

import (
	"context"
	"testing"
	"time"

	"otgw-go/frame"
	"otgw-go/hw"
)

// busPin wires a TX-side FakePin's level changes onto an RX-side FakePin,
// standing in for the shared electrical node of a real OpenTherm bus.
type busPin struct{ rx *hw.FakePin }

func (b busPin) ConfigureInput(p hw.Pull) error  { return nil }
func (b busPin) ConfigureOutput(init bool) error { b.rx.Set(init); return nil }
func (b busPin) Set(level bool)                  { b.rx.Set(level) }
func (b busPin) Get() bool                       { return b.rx.Get() }
func (b busPin) Number() int                     { return b.rx.Number() }

func newTestPort(t *testing.T, role Role, cfg Config) (*Port, *hw.FakePin) {
	t.Helper()
	rxPin := &hw.FakePin{}
	p, err := NewPort(context.Background(), role, busPin{rx: rxPin}, rxPin, cfg)
	if err != nil {
		t.Fatalf("NewPort: %v", err)
	}
	t.Cleanup(p.Close)
	p.tx.started = time.Now().Add(-time.Hour) // skip the real 900ms activation wait
	return p, rxPin
}

func recvWithin(t *testing.T, p *Port, d time.Duration) (frame.Frame, error) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if f, err, ok := p.TryRecv(); ok {
			return f, err
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("timed out waiting for a decoded frame")
	return 0, nil
}

func TestSelfLoopbackPassthroughRequest(t *testing.T) {
	tx, _ := newTestPort(t, MasterFacing, Config{})
	rx, rxPin := newTestPort(t, SlaveFacing, Config{})

	// Wire tx's transmitter straight onto rx's receiver pin.
	tx.tx.pin = busPin{rx: rxPin}

	want := frame.Build(frame.ReadData, 0, 0)
	if err := tx.Send(want); err != nil {
		t.Fatalf("Send: %v", err)
	}
	got, err := recvWithin(t, rx, 2*time.Second)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if got != want {
		t.Fatalf("got %#x, want %#x", got.Raw(), want.Raw())
	}
}

func TestSelfLoopbackInvertedPolarity(t *testing.T) {
	tx, _ := newTestPort(t, MasterFacing, Config{InvertTX: true})
	rx, rxPin := newTestPort(t, SlaveFacing, Config{InvertRX: true})
	tx.tx.pin = busPin{rx: rxPin}

	want := frame.Build(frame.ReadData, 1, 0x1234)
	if err := tx.Send(want); err != nil {
		t.Fatalf("Send: %v", err)
	}
	got, err := recvWithin(t, rx, 2*time.Second)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if got != want {
		t.Fatalf("got %#x, want %#x", got.Raw(), want.Raw())
	}
}

func TestSendBusyWhileInFlight(t *testing.T) {
	tx, _ := newTestPort(t, MasterFacing, Config{})
	dummyRx := &hw.FakePin{}
	tx.tx.pin = busPin{rx: dummyRx}

	done := make(chan error, 1)
	go func() { done <- tx.Send(frame.Build(frame.ReadData, 0, 0)) }()
	time.Sleep(2 * time.Millisecond) // let the first send grab the busy flag
	if err := tx.Send(frame.Build(frame.ReadData, 1, 0)); err != ErrBusy {
		t.Fatalf("second concurrent send = %v, want ErrBusy", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("first send: %v", err)
	}
}

func TestClassifyDurationNoiseRejected(t *testing.T) {
	if n := classifyDuration(50 * time.Microsecond); n != 0 {
		t.Fatalf("50us classified as %d half-bits, want 0 (noise)", n)
	}
	if n := classifyDuration(500 * time.Microsecond); n != 1 {
		t.Fatalf("500us classified as %d half-bits, want 1", n)
	}
	if n := classifyDuration(1000 * time.Microsecond); n != 2 {
		t.Fatalf("1000us classified as %d half-bits, want 2", n)
	}
}

func TestResyncAdvancesByOneHalfBitOnGlitch(t *testing.T) {
	r := &receiver{invert: false, outQ: make(chan Result, 4)}
	// Encode ReadData/DID=0/DV=0 (all-zero, 32 high-low pairs) by hand,
	// then splice in a single spurious half-bit after the start bit to
	// simulate a glitch, and confirm the frame still decodes.
	want := frame.Build(frame.ReadData, 0, 0)
	hb := encodeHalfBits(want)
	glitched := append([]bool{}, hb[:2]...)
	glitched = append(glitched, true) // extra half-bit: a lone glitch
	glitched = append(glitched, hb[2:]...)
	r.buf = glitched
	r.tryDecode(true)
	select {
	case res := <-r.outQ:
		if res.Err != nil {
			t.Fatalf("decode after glitch: %v", res.Err)
		}
		if res.Frame != want {
			t.Fatalf("got %#x, want %#x", res.Frame.Raw(), want.Raw())
		}
	default:
		t.Fatal("expected a decoded result")
	}
}

// encodeHalfBits mirrors transmitter.send's bit encoding without touching a
// pin, for use in decoder-only tests.
func encodeHalfBits(f frame.Frame) []bool {
	var out []bool
	emit := func(bit bool) {
		if bit {
			out = append(out, false, true)
		} else {
			out = append(out, true, false)
		}
	}
	emit(true)
	for i := 31; i >= 0; i-- {
		emit((f.Raw()>>uint(i))&1 != 0)
	}
	emit(true)
	return out
}
