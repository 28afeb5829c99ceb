// Package link implements the OpenTherm physical/link layer: Manchester
// encoding and decoding of 34-bit frames over a single GPIO pin pair, and
// the Port abstraction the coordinator talks to.
package link

import (
	"context"
	"sync/atomic"

	"otgw-go/frame"
	"otgw-go/hw"
)

// Role tags which side of the conversation a Port plays.
type Role uint8

const (
	// SlaveFacing receives requests from a thermostat and sends responses,
	// i.e. this gateway is acting as the boiler.
	SlaveFacing Role = iota
	// MasterFacing receives responses from a boiler and sends requests,
	// i.e. this gateway is acting as the thermostat.
	MasterFacing
)

// Config configures one port's electrical polarity. Both default to false
// (spec-direct): logical 1 is a low-then-high transition on the wire
// exactly as received. Sites whose interface hardware inverts the signal
// (common with optocoupler/open-collector front ends) set the matching
// flag; the logical semantics this package exposes never change.
type Config struct {
	InvertTX bool
	InvertRX bool
}

// Stats are cumulative counters for one port, safe to read concurrently.
type Stats struct {
	TXCount      uint64
	RXCount      uint64
	ErrorCount   uint64
	TimeoutCount uint64
}

// Port is one side of the gateway: a receiver decoding inbound frames and a
// transmitter sending outbound ones, tagged with the role that determines
// which message types are expected in each direction.
type Port struct {
	role Role
	rx   *receiver
	tx   *transmitter

	txCount      uint64
	rxCount      uint64
	errorCount   uint64
	timeoutCount uint64
}

// NewPort wires a port to a TX pin and an RX pin. They are usually distinct
// GPIOs on real interface hardware (opto-isolated input, transistor-driven
// output), but nothing here requires that.
func NewPort(ctx context.Context, role Role, txPin hw.GPIOPin, rxPin hw.IRQPin, cfg Config) (*Port, error) {
	p := &Port{
		role: role,
		rx:   newReceiver(rxPin, cfg.InvertRX, 32),
		tx:   newTransmitter(txPin, cfg.InvertTX),
	}
	if err := p.rx.start(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Port) Role() Role { return p.role }

// Send transmits f, blocking for the ~34ms frame duration. It returns
// ErrBusy immediately if a send is already in flight and never queues.
func (p *Port) Send(f frame.Frame) error {
	err := p.tx.send(f)
	if err != nil {
		atomic.AddUint64(&p.errorCount, 1)
		return err
	}
	atomic.AddUint64(&p.txCount, 1)
	return nil
}

// TryRecv returns the next decoded frame without blocking. ok is false when
// nothing is pending. A non-nil err means a frame attempt failed at the
// link layer (counted, never surfaced further up as a frame).
func (p *Port) TryRecv() (f frame.Frame, err error, ok bool) {
	select {
	case res, open := <-p.rx.results():
		if !open {
			return 0, nil, false
		}
		if res.Err == nil && !p.directionOK(res.Frame) {
			res.Err = ErrWrongRole
		}
		if res.Err != nil {
			atomic.AddUint64(&p.errorCount, 1)
			return res.Frame, res.Err, true
		}
		atomic.AddUint64(&p.rxCount, 1)
		return res.Frame, nil, true
	default:
		return 0, nil, false
	}
}

// directionOK reports whether a successfully decoded frame's message type
// is the one this role expects to receive.
func (p *Port) directionOK(f frame.Frame) bool {
	switch p.role {
	case SlaveFacing:
		return f.IsValidRequest()
	default:
		return f.IsValidResponse()
	}
}

// NoteTimeout lets the coordinator record a deadline miss against this
// port's stats without it having come through TryRecv.
func (p *Port) NoteTimeout() { atomic.AddUint64(&p.timeoutCount, 1) }

func (p *Port) Stats() Stats {
	return Stats{
		TXCount:      atomic.LoadUint64(&p.txCount),
		RXCount:      atomic.LoadUint64(&p.rxCount),
		ErrorCount:   atomic.LoadUint64(&p.errorCount),
		TimeoutCount: atomic.LoadUint64(&p.timeoutCount),
	}
}

// Close stops the port's receiver goroutine and IRQ registration.
func (p *Port) Close() { p.rx.stop() }
