// Package sys is the raw surface of the SANE C API.
//
// Everything here mirrors <sane/sane.h> one to one: status codes, frame
// formats, option descriptors and the entry points of the library. Values
// are copied out of C memory so callers never hold pointers owned by the
// backend. The Backend interface is implemented by the libsane binding
// (cgo builds) and by the in-memory backend in package mock.
package sys

// Header version implemented by this binding.
const (
	CurrentMajor = 1
	CurrentMinor = 0
)

// Credential buffer sizes handed to the authorization callback, including
// the terminating NUL.
const (
	MaxUsernameLen = 128
	MaxPasswordLen = 128
)

// FixedScaleShift is the number of fractional bits of SANE_Fixed.
const FixedScaleShift = 16

// Status is a SANE_Status code.
type Status int32

const (
	StatusGood Status = iota
	StatusUnsupported
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
)

var statusMessages = map[Status]string{
	StatusGood:         "Success",
	StatusUnsupported:  "Operation not supported",
	StatusCancelled:    "Operation was cancelled",
	StatusDeviceBusy:   "Device busy",
	StatusInval:        "Invalid argument",
	StatusEOF:          "End of file reached",
	StatusJammed:       "Document feeder jammed",
	StatusNoDocs:       "Document feeder out of documents",
	StatusCoverOpen:    "Scanner cover is open",
	StatusIOError:      "Error during device I/O",
	StatusNoMem:        "Out of memory",
	StatusAccessDenied: "Access to resource has been denied",
}

// StatusMessage returns the message sane_strstatus gives for st in the
// reference implementation. Backends without a native strstatus use it.
func StatusMessage(st Status) string {
	if msg, ok := statusMessages[st]; ok {
		return msg
	}
	return "Unknown SANE status code"
}

// Frame is a SANE_Frame format.
type Frame int32

const (
	FrameGray Frame = iota
	FrameRGB
	FrameRed
	FrameGreen
	FrameBlue
)

// ValueType is a SANE_Value_Type.
type ValueType int32

const (
	TypeBool ValueType = iota
	TypeInt
	TypeFixed
	TypeString
	TypeButton
	TypeGroup
)

// Unit is a SANE_Unit.
type Unit int32

const (
	UnitNone Unit = iota
	UnitPixel
	UnitBit
	UnitMM
	UnitDPI
	UnitPercent
	UnitMicrosecond
)

// ConstraintType is a SANE_Constraint_Type.
type ConstraintType int32

const (
	ConstraintNone ConstraintType = iota
	ConstraintRange
	ConstraintWordList
	ConstraintStringList
)

// Action is a SANE_Action passed to ControlOption.
type Action int32

const (
	ActionGetValue Action = iota
	ActionSetValue
	ActionSetAuto
)

// Option capability bits (SANE_CAP_*).
const (
	CapSoftSelect = 1 << 0
	CapHardSelect = 1 << 1
	CapSoftDetect = 1 << 2
	CapEmulated   = 1 << 3
	CapAutomatic  = 1 << 4
	CapInactive   = 1 << 5
	CapAdvanced   = 1 << 6
)

// Control info bits returned from a set (SANE_INFO_*).
const (
	InfoInexact       = 1 << 0
	InfoReloadOptions = 1 << 1
	InfoReloadParams  = 1 << 2
)

// Handle identifies an open device. The zero value is never a valid handle.
type Handle uintptr

// Device is a copy of one SANE_Device entry. Strings are Latin-1 without
// the terminating NUL.
type Device struct {
	Name   []byte
	Vendor []byte
	Model  []byte
	Type   []byte
}

// Range is a SANE_Range. For fixed options the words are Q15.16 values.
type Range struct {
	Min   int32
	Max   int32
	Quant int32
}

// OptionDescriptor is a copy of a SANE_Option_Descriptor.
//
// WordList keeps the protocol layout: the first word is the number of
// entries that follow.
type OptionDescriptor struct {
	Name           []byte
	Title          []byte
	Desc           []byte
	Type           ValueType
	Unit           Unit
	Size           int32
	Cap            int32
	ConstraintType ConstraintType
	Range          Range
	WordList       []int32
	StringList     [][]byte
}

// Parameters is a SANE_Parameters value. Lines is -1 when the height is
// not known in advance.
type Parameters struct {
	Format        Frame
	LastFrame     bool
	BytesPerLine  int32
	PixelsPerLine int32
	Lines         int32
	Depth         int32
}

// AuthFunc receives an authorization request for resource and fills the
// two credential buffers with NUL-terminated Latin-1 strings. The buffers
// are MaxUsernameLen and MaxPasswordLen bytes long.
type AuthFunc func(resource []byte, username, password []byte)

// Backend is the set of SANE entry points. Apart from Cancel, no method
// may be called concurrently with any other; callers serialize access.
type Backend interface {
	// Init initializes the library. auth is called synchronously from
	// within other calls (typically Open) when a resource needs
	// credentials.
	Init(auth AuthFunc) (versionCode int32, st Status)
	Exit()
	GetDevices(localOnly bool) ([]Device, Status)
	Open(name []byte) (Handle, Status)
	Close(h Handle)
	// GetOptionDescriptor returns nil when index is not a valid option.
	GetOptionDescriptor(h Handle, index int32) *OptionDescriptor
	// ControlOption reads or writes the option value through value,
	// which holds native-endian words or a NUL-terminated string.
	ControlOption(h Handle, index int32, action Action, value []byte) (info int32, st Status)
	GetParameters(h Handle) (Parameters, Status)
	Start(h Handle) Status
	Read(h Handle, buf []byte) (n int, st Status)
	// Cancel may be called at any time from any goroutine.
	Cancel(h Handle)
	SetIOMode(h Handle, nonBlocking bool) Status
	GetSelectFD(h Handle) (fd int, st Status)
	StrStatus(st Status) string
}
