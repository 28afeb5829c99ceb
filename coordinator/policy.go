package coordinator

import (
	"time"

	"otgw-go/diagnostics"
	"otgw-go/frame"
)

// onThermostatRequest runs the policy decision table against one inbound
// thermostat request. First match wins.
func (c *Coordinator) onThermostatRequest(req frame.Frame, deadline *time.Time) {
	c.mu.Lock()
	mode := c.Mode()
	did := req.DataID()

	if mode == Control && c.controlSynthesizable(did) {
		resp := c.synthesizeResponse(did)
		c.loopState = Idle
		c.pendingTimeoutDrop = false
		c.mu.Unlock()
		_ = c.thermostat.Send(resp)
		c.emit("boiler->thermostat", "synthesized", resp)
		return
	}

	if (mode == Proxy || mode == Control) && did == 0 {
		c.statusCounter++
		if c.statusCounter >= c.InterceptRate() {
			c.statusCounter = 0
			diagDID := diagnostics.Rotation[c.diagIdx]
			c.diagIdx = (c.diagIdx + 1) % len(diagnostics.Rotation)
			c.pendingDiagDID = diagDID
			c.loopState = AwaitDiagnosticResponse
			c.pendingTimeoutDrop = false
			c.mu.Unlock()

			pollReq := frame.Build(frame.ReadData, diagDID, 0)
			if err := c.boiler.Send(pollReq); err == nil {
				*deadline = time.Now().Add(boilerResponseDeadline)
				c.emit("thermostat->boiler", "diagnostic_poll", pollReq)
			}
			return
		}
	}

	c.loopState = AwaitPassthroughResponse
	c.pendingTimeoutDrop = false
	c.mu.Unlock()

	if err := c.boiler.Send(req); err == nil {
		*deadline = time.Now().Add(boilerResponseDeadline)
		c.emit("thermostat->boiler", "forward", req)
	}
}

// controlSynthesizable reports whether did is one of the DIDs this
// coordinator answers directly from external demand state while Control
// mode is actively overriding the thermostat.
func (c *Coordinator) controlSynthesizable(did uint8) bool {
	if !c.control.Get().Active(true) {
		return false
	}
	switch did {
	case 0, 1, 3, 17:
		return true
	default:
		return false
	}
}

// synthesizeResponse builds the READ_ACK this gateway returns in place of
// forwarding to the boiler, for the four DIDs Control mode owns.
func (c *Coordinator) synthesizeResponse(did uint8) frame.Frame {
	ctl := c.control.Get()
	switch did {
	case 0:
		var status uint16
		if ctl.CHOn {
			status = 0b11
		}
		return frame.Build(frame.ReadAck, 0, status)
	case 1:
		return frame.Build(frame.ReadAck, 1, frame.F8_8(ctl.TsetC))
	case 3:
		return frame.Build(frame.ReadAck, 3, 0)
	default: // 17
		return frame.Build(frame.ReadAck, 17, 0)
	}
}

// onBoilerResponse dispatches a decoded boiler frame according to what the
// coordinator was waiting for.
func (c *Coordinator) onBoilerResponse(resp frame.Frame) {
	c.mu.Lock()
	state := c.loopState
	wasLate := c.pendingTimeoutDrop
	diagDID := c.pendingDiagDID
	mw := c.pendingWrite
	c.loopState = Idle
	c.pendingTimeoutDrop = false
	if state == AwaitControlWriteResponse {
		c.pendingWrite = nil
	}
	c.mu.Unlock()

	switch state {
	case AwaitPassthroughResponse:
		_ = c.thermostat.Send(resp)
		c.emit("boiler->thermostat", "forward", resp)

	case AwaitDiagnosticResponse:
		if resp.DataID() == diagDID {
			c.store.Apply(resp.DataID(), resp.DataValue())
		}

	case AwaitControlWriteResponse:
		if mw != nil {
			mw.result <- classifyWriteResponse(resp)
		}

	default: // Idle
		c.counters.noteSpurious()
		if wasLate {
			return // straggler from an already-timed-out request: drop silently
		}
		_ = c.thermostat.Send(resp)
		c.emit("boiler->thermostat", "forward", resp)
	}
}

func classifyWriteResponse(resp frame.Frame) WriteResult {
	if !resp.ParityOK() {
		return WriteResult{Response: resp, Err: ErrInvalidCrc}
	}
	switch resp.MessageType() {
	case frame.WriteAck:
		return WriteResult{Response: resp}
	case frame.DataInvalid, frame.UnknownDataID:
		return WriteResult{Response: resp, Err: ErrInvalidResponse}
	default:
		return WriteResult{Response: resp, Err: ErrInvalidResponse}
	}
}

// maybeDispatchManualWrite sends a queued manual write to the boiler once
// the coordinator is Idle and nothing else claimed this tick.
func (c *Coordinator) maybeDispatchManualWrite(deadline *time.Time) {
	c.mu.Lock()
	mw := c.pendingWrite
	if mw == nil || mw.sent || c.loopState != Idle {
		c.mu.Unlock()
		return
	}
	if err := mw.ctx.Err(); err != nil {
		c.pendingWrite = nil
		c.mu.Unlock()
		mw.result <- WriteResult{Err: ErrTimeout}
		return
	}
	mw.sent = true
	mw.sentAt = time.Now()
	c.loopState = AwaitControlWriteResponse
	c.mu.Unlock()

	req := frame.Build(frame.WriteData, mw.did, mw.dv)
	if err := c.boiler.Send(req); err != nil {
		c.mu.Lock()
		c.pendingWrite = nil
		c.loopState = Idle
		c.mu.Unlock()
		mw.result <- WriteResult{Err: err}
		return
	}
	*deadline = time.Now().Add(boilerResponseDeadline)
	c.emit("thermostat->boiler", "manual_write", req)
}
