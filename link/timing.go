package link

import (
	"time"

	"otgw-go/x/mathx"
)

// HalfBit is the nominal duration of one Manchester half-bit.
const HalfBit = 500 * time.Microsecond

// noiseFloor rejects edges that cannot be a real bus transition.
const noiseFloor = 200 * time.Microsecond

// frameGap is the idle duration that ends a frame in progress.
const frameGap = 2 * time.Millisecond

// halfBitsPerFrame is 2 (start) + 64 (32 data bits) + 2 (stop).
const halfBitsPerFrame = 68

// classifyDuration maps an edge-to-edge gap to a count of half-bits, or 0 if
// the gap is noise (below noiseFloor). The two explicit bands match common
// jitter on real OpenTherm interface boards; anything else falls back to
// rounding against the nominal half-bit width, clamped to 1..4 half-bits.
func classifyDuration(d time.Duration) int {
	if d < noiseFloor {
		return 0
	}
	switch {
	case d >= 350*time.Microsecond && d <= 650*time.Microsecond:
		return 1
	case d >= 850*time.Microsecond && d <= 1150*time.Microsecond:
		return 2
	default:
		n := mathx.RoundDiv(uint64(d), uint64(HalfBit))
		return int(mathx.Clamp(n, 1, 4))
	}
}
