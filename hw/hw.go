// Package hw abstracts the GPIO pins this gateway bit-bangs OpenTherm over:
// two pins per port, one configured as output for TX and one as input+IRQ
// for RX. There
// is no I2C or UART surface here; the bus is a single open-collector wire,
// not a peripheral.
package hw

// Pull selects the pin's input bias.
type Pull uint8

const (
	PullNone Pull = iota
	PullUp
	PullDown
)

// Edge selects which transitions an IRQPin reports.
type Edge uint8

const (
	EdgeNone Edge = iota
	EdgeRising
	EdgeFalling
	EdgeBoth
)

func (e Edge) String() string {
	switch e {
	case EdgeRising:
		return "rising"
	case EdgeFalling:
		return "falling"
	case EdgeBoth:
		return "both"
	default:
		return "none"
	}
}

// GPIOPin is a single digital pin, driven as output for TX or sampled as
// input for RX.
type GPIOPin interface {
	ConfigureInput(pull Pull) error
	ConfigureOutput(initial bool) error
	Set(level bool)
	Get() bool
	Number() int
}

// IRQPin extends GPIOPin with edge-triggered interrupts. The link-layer RX
// accumulator registers a handler here and must not block inside it: the
// handler's only job is to timestamp the edge and enqueue it.
type IRQPin interface {
	GPIOPin
	SetIRQ(edge Edge, handler func()) error
	ClearIRQ() error
}

// PinFactory supplies GPIO pins by logical number. Each gateway port claims
// two pins: one for TX and one for RX.
type PinFactory interface {
	ByNumber(n int) (IRQPin, bool)
}
