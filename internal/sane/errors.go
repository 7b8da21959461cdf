package sane

import (
	"errors"
	"fmt"

	"github.com/mzyy94/airsane/internal/sane/sys"
)

// Status is the reason a library call failed.
type Status int

const (
	StatusUnsupported Status = iota + 1
	StatusCancelled
	StatusDeviceBusy
	StatusInval
	StatusEOF
	StatusJammed
	StatusNoDocs
	StatusCoverOpen
	StatusIOError
	StatusNoMem
	StatusAccessDenied
	// StatusUnknown is any code this package does not know.
	StatusUnknown
)

var statusNames = map[Status]string{
	StatusUnsupported:  "unsupported",
	StatusCancelled:    "cancelled",
	StatusDeviceBusy:   "device busy",
	StatusInval:        "invalid argument",
	StatusEOF:          "eof",
	StatusJammed:       "jammed",
	StatusNoDocs:       "no docs",
	StatusCoverOpen:    "cover open",
	StatusIOError:      "i/o error",
	StatusNoMem:        "no memory",
	StatusAccessDenied: "access denied",
	StatusUnknown:      "unknown",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", int(s))
}

func statusFromSys(st sys.Status) Status {
	switch st {
	case sys.StatusUnsupported:
		return StatusUnsupported
	case sys.StatusCancelled:
		return StatusCancelled
	case sys.StatusDeviceBusy:
		return StatusDeviceBusy
	case sys.StatusInval:
		return StatusInval
	case sys.StatusEOF:
		return StatusEOF
	case sys.StatusJammed:
		return StatusJammed
	case sys.StatusNoDocs:
		return StatusNoDocs
	case sys.StatusCoverOpen:
		return StatusCoverOpen
	case sys.StatusIOError:
		return StatusIOError
	case sys.StatusNoMem:
		return StatusNoMem
	case sys.StatusAccessDenied:
		return StatusAccessDenied
	}
	return StatusUnknown
}

// Error is a failed library call. Code is the raw status, Message what
// the library's strstatus reported for it.
type Error struct {
	Status  Status
	Code    int32
	Message string
}

func (e *Error) Error() string {
	return "sane: " + e.Message
}

// Is matches the sentinel errors below by status.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Code != 0 || t.Message != "" {
		return false
	}
	return e.Status == t.Status
}

// Sentinels for errors.Is.
var (
	ErrUnsupported  = &Error{Status: StatusUnsupported}
	ErrCancelled    = &Error{Status: StatusCancelled}
	ErrDeviceBusy   = &Error{Status: StatusDeviceBusy}
	ErrInval        = &Error{Status: StatusInval}
	ErrEOF          = &Error{Status: StatusEOF}
	ErrJammed       = &Error{Status: StatusJammed}
	ErrNoDocs       = &Error{Status: StatusNoDocs}
	ErrCoverOpen    = &Error{Status: StatusCoverOpen}
	ErrIOError      = &Error{Status: StatusIOError}
	ErrNoMem        = &Error{Status: StatusNoMem}
	ErrAccessDenied = &Error{Status: StatusAccessDenied}
)

// StatusOf returns the status carried by err, if any.
func StatusOf(err error) (Status, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Status, true
	}
	return 0, false
}

// check turns a raw status into nil or an *Error.
func check(b sys.Backend, st sys.Status) error {
	if st == sys.StatusGood {
		return nil
	}
	return &Error{
		Status:  statusFromSys(st),
		Code:    int32(st),
		Message: b.StrStatus(st),
	}
}
