package link

import (
	"sync/atomic"
	"time"

	"otgw-go/frame"
	"otgw-go/hw"
)

// activationDelay is the minimum time the bus must idle-high before the
// very first transmission, giving the far end's receiver time to settle.
const activationDelay = 900 * time.Millisecond

// transmitter drives one output pin with the Manchester encoding of a
// frame. Only one send may be in flight at a time; a concurrent attempt
// fails fast with ErrBusy rather than queuing.
type transmitter struct {
	pin     hw.GPIOPin
	invert  bool
	busy    int32
	started time.Time
}

func newTransmitter(pin hw.GPIOPin, invertTX bool) *transmitter {
	pin.Set(true) // idle high from construction, through the activation delay
	return &transmitter{pin: pin, invert: invertTX, started: time.Now()}
}

// send blocks for the duration of the 34-symbol frame (~34ms). It is the
// only method on transmitter that touches the pin; callers must not call it
// concurrently with itself, which is enforced by the busy flag.
func (t *transmitter) send(f frame.Frame) error {
	if time.Since(t.started) < activationDelay {
		return ErrNotActivated
	}
	if !atomic.CompareAndSwapInt32(&t.busy, 0, 1) {
		return ErrBusy
	}
	defer atomic.StoreInt32(&t.busy, 0)

	t.sendBit(true) // start bit
	for i := 31; i >= 0; i-- {
		bit := (f.Raw()>>uint(i))&1 != 0
		t.sendBit(bit)
	}
	t.sendBit(true) // stop bit

	t.set(true) // return to idle
	return nil
}

// sendBit emits one logical bit as a low-high (1) or high-low (0)
// half-bit pair, inverted at the electrical layer if configured.
func (t *transmitter) sendBit(bit bool) {
	lowHigh := bit
	if t.invert {
		lowHigh = !lowHigh
	}
	if lowHigh {
		t.set(false)
		time.Sleep(HalfBit)
		t.set(true)
		time.Sleep(HalfBit)
		return
	}
	t.set(true)
	time.Sleep(HalfBit)
	t.set(false)
	time.Sleep(HalfBit)
}

func (t *transmitter) set(level bool) { t.pin.Set(level) }

func (t *transmitter) isBusy() bool { return atomic.LoadInt32(&t.busy) != 0 }
