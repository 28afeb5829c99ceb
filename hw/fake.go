package hw

import (
	"sync"
	"time"
)

// FakePin is a host-side GPIOPin/IRQPin double. Set drives the pin level and
// synchronously fires any matching IRQ handler, which is what lets tests
// loop one FakePin's TX straight into another's RX without a real wire.
type FakePin struct {
	mu       sync.RWMutex
	number   int
	level    bool
	modeOut  bool
	irqEdge  Edge
	irqFunc  func()
	debounce time.Duration
	lastIRQ  time.Time
}

func (p *FakePin) ConfigureInput(_ Pull) error {
	p.mu.Lock()
	p.modeOut = false
	p.mu.Unlock()
	return nil
}

func (p *FakePin) ConfigureOutput(initial bool) error {
	p.mu.Lock()
	p.modeOut = true
	p.level = initial
	p.mu.Unlock()
	return nil
}

func (p *FakePin) Set(level bool) {
	p.mu.Lock()
	old := p.level
	p.level = level
	edge := edgeFrom(old, level)
	irq := p.irqFunc
	want := irqWanted(p.irqEdge, edge)
	deb := p.debounce
	last := p.lastIRQ
	now := time.Now()
	if want && (deb == 0 || now.Sub(last) >= deb) {
		p.lastIRQ = now
		p.mu.Unlock()
		if irq != nil {
			irq()
		}
		return
	}
	p.mu.Unlock()
}

func (p *FakePin) Get() bool {
	p.mu.RLock()
	v := p.level
	p.mu.RUnlock()
	return v
}

func (p *FakePin) Number() int { return p.number }

func (p *FakePin) SetIRQ(edge Edge, handler func()) error {
	p.mu.Lock()
	p.irqEdge = edge
	p.irqFunc = handler
	p.mu.Unlock()
	return nil
}

func (p *FakePin) ClearIRQ() error {
	p.mu.Lock()
	p.irqEdge = EdgeNone
	p.irqFunc = nil
	p.mu.Unlock()
	return nil
}

// SetDebounce ignores IRQ-worthy edges closer together than d. Zero disables
// debouncing (the default).
func (p *FakePin) SetDebounce(d time.Duration) {
	p.mu.Lock()
	p.debounce = d
	p.mu.Unlock()
}

func edgeFrom(old, new bool) Edge {
	switch {
	case !old && new:
		return EdgeRising
	case old && !new:
		return EdgeFalling
	default:
		return EdgeNone
	}
}

func irqWanted(cfg, seen Edge) bool {
	switch cfg {
	case EdgeBoth:
		return seen == EdgeRising || seen == EdgeFalling
	default:
		return cfg == seen
	}
}

// HostPinFactory returns stable *FakePin instances per number.
type HostPinFactory struct {
	mu   sync.Mutex
	pins map[int]*FakePin
}

func NewHostPinFactory() *HostPinFactory {
	return &HostPinFactory{pins: make(map[int]*FakePin)}
}

func (f *HostPinFactory) ByNumber(n int) (IRQPin, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.pins[n]
	if !ok {
		p = &FakePin{number: n}
		f.pins[n] = p
	}
	return p, true
}

// Get exposes the underlying *FakePin for tests, e.g. to drive edges or wire
// two pins' levels together to simulate a shared bus.
func (f *HostPinFactory) Get(n int) (*FakePin, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.pins[n]
	return p, ok
}
