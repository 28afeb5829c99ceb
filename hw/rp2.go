//go:build rp2040 || rp2350

package hw

import "machine"

// rp2PinFactory maps logical pin numbers directly to machine.Pin(n), which
// matches Pico/Pico 2 GP numbering.
type rp2PinFactory struct{}

// NewRP2PinFactory returns a GPIO factory for the onboard GP0..GP28 pins.
func NewRP2PinFactory() PinFactory { return rp2PinFactory{} }

func (rp2PinFactory) ByNumber(n int) (IRQPin, bool) {
	if n < 0 || n > 28 {
		return nil, false
	}
	return &rp2Pin{p: machine.Pin(n), n: n}, true
}

type rp2Pin struct {
	p machine.Pin
	n int
}

func (r *rp2Pin) ConfigureInput(pull Pull) error {
	var mode machine.PinMode
	switch pull {
	case PullUp:
		mode = machine.PinInputPullup
	case PullDown:
		mode = machine.PinInputPulldown
	default:
		mode = machine.PinInput
	}
	r.p.Configure(machine.PinConfig{Mode: mode})
	return nil
}

func (r *rp2Pin) ConfigureOutput(initial bool) error {
	r.p.Configure(machine.PinConfig{Mode: machine.PinOutput})
	r.p.Set(initial)
	return nil
}

func (r *rp2Pin) Set(level bool) { r.p.Set(level) }
func (r *rp2Pin) Get() bool      { return r.p.Get() }
func (r *rp2Pin) Number() int    { return r.n }

func (r *rp2Pin) SetIRQ(edge Edge, handler func()) error {
	return r.p.SetInterrupt(toPinChange(edge), func(machine.Pin) { handler() })
}

func (r *rp2Pin) ClearIRQ() error {
	var zero machine.PinChange
	return r.p.SetInterrupt(zero, nil)
}

func toPinChange(e Edge) machine.PinChange {
	switch e {
	case EdgeRising:
		return machine.PinRising
	case EdgeFalling:
		return machine.PinFalling
	case EdgeBoth:
		return machine.PinToggle
	default:
		var zero machine.PinChange
		return zero
	}
}
