package coordinator

import (
	"context"
	"sync/atomic"
	"time"

	"otgw-go/frame"
)

// Mode selects how aggressively the coordinator intervenes in the
// thermostat/boiler conversation.
type Mode int32

const (
	Passthrough Mode = iota
	Proxy
	Control
)

func (m Mode) String() string {
	switch m {
	case Passthrough:
		return "passthrough"
	case Control:
		return "control"
	default:
		return "proxy"
	}
}

// LoopState is what the coordinator is waiting for right now. It is a
// tagged variant, not a bag of independent booleans: exactly one of these
// is true at any instant.
type LoopState int32

const (
	Idle LoopState = iota
	AwaitPassthroughResponse
	AwaitDiagnosticResponse
	AwaitControlWriteResponse
)

func (s LoopState) String() string {
	switch s {
	case AwaitPassthroughResponse:
		return "await_passthrough_response"
	case AwaitDiagnosticResponse:
		return "await_diagnostic_response"
	case AwaitControlWriteResponse:
		return "await_control_write_response"
	default:
		return "idle"
	}
}

// boilerResponseDeadline is how long the coordinator waits for the boiler
// to answer a forwarded or synthesized request before giving up.
const boilerResponseDeadline = 900 * time.Millisecond

// ExternalControl is the demand state published by an external controller
// (normally the MQTT bridge). It is read-only from the coordinator's side.
type ExternalControl struct {
	Available    bool
	TsetC        float32
	CHOn         bool
	LastUpdateMs int64
}

// Active reports whether Control mode should be overriding the thermostat.
func (c ExternalControl) Active(enabled bool) bool { return enabled && c.Available }

// Fallback reports whether Control mode is enabled but has no fresh demand,
// in which case the coordinator behaves as Proxy rather than blocking.
func (c ExternalControl) Fallback(enabled bool) bool { return enabled && !c.Available }

// ControlSource supplies the latest ExternalControl snapshot. The bridge
// package implements this.
type ControlSource interface {
	Get() ExternalControl
}

// staticControlSource is a ControlSource that never changes, useful for
// Passthrough/Proxy-only deployments and tests.
type staticControlSource struct{ c ExternalControl }

func (s staticControlSource) Get() ExternalControl { return s.c }

// WriteResult is what a manual write's completer resolves to.
type WriteResult struct {
	Response frame.Frame
	Err      error
}

// manualWrite is a caller-submitted WRITE_DATA request awaiting dispatch
// to the boiler and a one-shot resolution.
type manualWrite struct {
	did    uint8
	dv     uint16
	result chan WriteResult
	ctx    context.Context
	sentAt time.Time
	sent   bool
}

// Stats is a point-in-time snapshot of coordinator-level counters.
type Stats struct {
	SpuriousCount uint64
	StatusCounter int
}

type counters struct {
	spurious uint64
}

func (c *counters) noteSpurious() { atomic.AddUint64(&c.spurious, 1) }
func (c *counters) snapshot() uint64 { return atomic.LoadUint64(&c.spurious) }
