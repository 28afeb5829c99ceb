package link

import (
	"sync/atomic"
	"time"

	"otgw-go/hw"
)

// edgeEvent is captured inside the pin's interrupt handler. The handler's
// only job is to stamp the level and enqueue it; decoding never happens in
// that context.
type edgeEvent struct {
	level bool
	ts    time.Time
}

// edgeCapture registers an IRQ handler on pin and forwards every edge to a
// bounded channel. A full channel means the consumer fell behind; the edge
// is dropped and counted rather than blocking the interrupt.
type edgeCapture struct {
	pin   hw.IRQPin
	q     chan edgeEvent
	drops uint32
}

func newEdgeCapture(pin hw.IRQPin, buf int) *edgeCapture {
	if buf <= 0 {
		buf = 256
	}
	return &edgeCapture{pin: pin, q: make(chan edgeEvent, buf)}
}

func (c *edgeCapture) start() error {
	return c.pin.SetIRQ(hw.EdgeBoth, func() {
		ev := edgeEvent{level: c.pin.Get(), ts: time.Now()}
		select {
		case c.q <- ev:
		default:
			atomic.AddUint32(&c.drops, 1)
		}
	})
}

func (c *edgeCapture) stop() error { return c.pin.ClearIRQ() }

func (c *edgeCapture) events() <-chan edgeEvent { return c.q }

func (c *edgeCapture) dropCount() uint32 { return atomic.LoadUint32(&c.drops) }
