package coordinator

import "otgw-go/errcode"

// Errors surfaced by a manual write's completer. ErrBusy is link.ErrBusy
// reused verbatim since "TX in flight" means the same thing at both layers.
var (
	ErrTimeout         = errcode.Timeout
	ErrInvalidResponse = errcode.InvalidResponse
	ErrInvalidCrc      = errcode.InvalidCrc
	ErrCancelled       = errcode.Cancelled
)
