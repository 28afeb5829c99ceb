// Package coordinator implements the single cooperative worker that sits
// between the thermostat-facing and boiler-facing link ports: it decides,
// per request, whether to forward, intervene with a synthesized response,
// or divert to a diagnostic poll, and it owns the diagnostic store and the
// manual-write path used by the operator CLI.
package coordinator

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"otgw-go/diagnostics"
	"otgw-go/frame"
	"otgw-go/link"
)

// Message describes one frame observed in either direction, handed to an
// optional observer callback for logging/diagnostics (e.g. raw_frame_u32).
type Message struct {
	Direction string // "thermostat->boiler" or "boiler->thermostat"
	Source    string // "forward", "synthesized", "diagnostic_poll", "manual_write"
	RawFrame  uint32
}

// Config configures one Coordinator instance.
type Config struct {
	Mode          Mode
	InterceptRate int // 0 is treated as 10
	ControlSource ControlSource
	OnMessage     func(Message)
}

// Coordinator is the single worker; all of its mutable policy state
// (mode, counters, loop state, pending write) is only ever touched from
// inside Run's goroutine, except where noted atomic/channel-guarded.
type Coordinator struct {
	thermostat *link.Port
	boiler     *link.Port
	store      *diagnostics.Store
	control    ControlSource
	onMessage  func(Message)

	mode          int32 // Mode, atomic so config reloads can change it live
	interceptRate int32

	statusCounter int
	diagIdx       int
	loopState     LoopState

	pendingDiagDID     uint8
	pendingWrite       *manualWrite
	writeRequests      chan *manualWrite
	pendingTimeoutDrop bool // next boiler response is a late straggler from a timed-out request

	counters counters

	mu sync.Mutex // guards loopState/statusCounter/diagIdx/pendingDiagDID/pendingWrite for Stats()/SubmitManualWrite readers
}

// New builds a Coordinator. thermostatPort must have Role SlaveFacing and
// boilerPort must have Role MasterFacing.
func New(thermostatPort, boilerPort *link.Port, store *diagnostics.Store, cfg Config) *Coordinator {
	rate := int32(cfg.InterceptRate)
	if rate <= 0 {
		rate = 10
	}
	src := cfg.ControlSource
	if src == nil {
		src = staticControlSource{}
	}
	return &Coordinator{
		thermostat:    thermostatPort,
		boiler:        boilerPort,
		store:         store,
		control:       src,
		onMessage:     cfg.OnMessage,
		mode:          int32(cfg.Mode),
		interceptRate: rate,
		writeRequests: make(chan *manualWrite, 8),
	}
}

func (c *Coordinator) Mode() Mode { return Mode(atomic.LoadInt32(&c.mode)) }
func (c *Coordinator) SetMode(m Mode) { atomic.StoreInt32(&c.mode, int32(m)) }

func (c *Coordinator) InterceptRate() int { return int(atomic.LoadInt32(&c.interceptRate)) }
func (c *Coordinator) SetInterceptRate(n int) {
	if n <= 0 {
		n = 10
	}
	atomic.StoreInt32(&c.interceptRate, int32(n))
}

// Stats returns a snapshot of coordinator-level counters.
func (c *Coordinator) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{SpuriousCount: c.counters.snapshot(), StatusCounter: c.statusCounter}
}

// Store exposes the diagnostic store for status publishing.
func (c *Coordinator) Store() *diagnostics.Store { return c.store }

// SubmitManualWrite queues a WRITE_DATA(did, dv) for the next idle tick and
// returns a channel that resolves once the boiler answers, the deadline in
// ctx expires, or the coordinator stops. The channel is buffered so a late
// resolution never blocks a coordinator that has moved on.
func (c *Coordinator) SubmitManualWrite(ctx context.Context, did uint8, dv uint16) <-chan WriteResult {
	mw := &manualWrite{did: did, dv: dv, result: make(chan WriteResult, 1), ctx: ctx}
	select {
	case c.writeRequests <- mw:
	default:
		mw.result <- WriteResult{Err: link.ErrBusy}
	}
	return mw.result
}

// Run drives the coordinator until ctx is cancelled. It is the only
// goroutine that ever touches loopState, the diagnostic rotation cursor,
// or pendingWrite.
func (c *Coordinator) Run(ctx context.Context) {
	tick := time.NewTicker(time.Millisecond)
	defer tick.Stop()

	var deadline time.Time // zero means no outstanding deadline

	for {
		select {
		case <-ctx.Done():
			c.cancelPendingWrite()
			return
		case mw := <-c.writeRequests:
			c.mu.Lock()
			if c.pendingWrite == nil {
				c.pendingWrite = mw
			} else {
				c.mu.Unlock()
				mw.result <- WriteResult{Err: link.ErrBusy}
				continue
			}
			c.mu.Unlock()
		case <-tick.C:
			if !deadline.IsZero() && time.Now().After(deadline) {
				c.onDeadlineExpired()
				deadline = time.Time{}
			}
			if f, err, ok := c.thermostat.TryRecv(); ok {
				if err == nil {
					c.onThermostatRequest(f, &deadline)
				}
				// Link-layer errors are already counted in port stats;
				// nothing more to do with them here.
			}
			if f, err, ok := c.boiler.TryRecv(); ok {
				if err == nil {
					c.onBoilerResponse(f)
					deadline = time.Time{}
				}
			}
			c.maybeDispatchManualWrite(&deadline)
		}
	}
}

func (c *Coordinator) cancelPendingWrite() {
	c.mu.Lock()
	mw := c.pendingWrite
	c.pendingWrite = nil
	c.mu.Unlock()
	if mw != nil {
		mw.result <- WriteResult{Err: ErrCancelled}
	}
}

func (c *Coordinator) onDeadlineExpired() {
	c.mu.Lock()
	state := c.loopState
	mw := c.pendingWrite
	if state == AwaitControlWriteResponse {
		c.pendingWrite = nil
	}
	if state != Idle {
		c.pendingTimeoutDrop = true
	}
	c.loopState = Idle
	c.mu.Unlock()

	switch state {
	case AwaitControlWriteResponse:
		c.boiler.NoteTimeout()
		if mw != nil {
			mw.result <- WriteResult{Err: ErrTimeout}
		}
	case AwaitPassthroughResponse, AwaitDiagnosticResponse:
		c.boiler.NoteTimeout()
	}
}

func (c *Coordinator) emit(direction, source string, f frame.Frame) {
	if c.onMessage != nil {
		c.onMessage(Message{Direction: direction, Source: source, RawFrame: f.Raw()})
	}
}
