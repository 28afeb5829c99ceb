package link

import "otgw-go/errcode"

// Failure taxonomy for one link-layer frame attempt. Every value here is
// local to the port that observed it: none of these ever reach the
// coordinator as anything but a dropped frame and an incremented counter.
// They're errcode.Code values rather than plain errors so a status
// snapshot can report a stable identifier instead of matching on text.
var (
	ErrNoFrame         = errcode.NoFrame
	ErrFrameTooShort   = errcode.FrameTooShort
	ErrUnsynced        = errcode.Unsynced
	ErrManchesterError = errcode.ManchesterError
	ErrBadParity       = errcode.BadParity
	ErrWrongRole       = errcode.WrongRole
	ErrBusy            = errcode.Busy
	ErrNotActivated    = errcode.NotActivated
)
