package sane

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"slices"
	"sync/atomic"
	"syscall"

	"github.com/mzyy94/airsane/internal/sane/sys"
)

// FrameFormat is the layout of one frame.
type FrameFormat int

const (
	FrameGray FrameFormat = iota
	FrameRGB
	FrameRed
	FrameGreen
	FrameBlue
	// FrameUnsupported is any format code this package does not know.
	FrameUnsupported
)

func (f FrameFormat) String() string {
	switch f {
	case FrameGray:
		return "gray"
	case FrameRGB:
		return "rgb"
	case FrameRed:
		return "red"
	case FrameGreen:
		return "green"
	case FrameBlue:
		return "blue"
	}
	return "unsupported"
}

// IsRGB reports whether the frame carries color data, interleaved or as
// a single channel.
func (f FrameFormat) IsRGB() bool {
	return f >= FrameRGB && f <= FrameBlue
}

// Parameters describe the frame about to be, or being, acquired.
type Parameters struct {
	Format FrameFormat
	// RawFormat is the library's format code.
	RawFormat     int32
	LastFrame     bool
	BytesPerLine  uint32
	PixelsPerLine uint32
	// Lines is negative when the height is not known in advance.
	Lines int32
	Depth uint32
}

// KnownLines returns the frame height if the backend reported one.
func (p Parameters) KnownLines() (uint32, bool) {
	if p.Lines < 0 {
		return 0, false
	}
	return uint32(p.Lines), true
}

func (p Parameters) String() string {
	lines := "?"
	if n, ok := p.KnownLines(); ok {
		lines = fmt.Sprint(n)
	}
	return fmt.Sprintf("%s %dx%s depth=%d bpl=%d last=%t",
		p.Format, p.PixelsPerLine, lines, p.Depth, p.BytesPerLine, p.LastFrame)
}

func parametersFromSys(p sys.Parameters) Parameters {
	format := FrameUnsupported
	if p.Format >= sys.FrameGray && p.Format <= sys.FrameBlue {
		format = FrameFormat(p.Format)
	}
	lines := p.Lines
	if lines < 0 {
		lines = -1
	}
	return Parameters{
		Format:        format,
		RawFormat:     int32(p.Format),
		LastFrame:     p.LastFrame,
		BytesPerLine:  uint32(max(p.BytesPerLine, 0)),
		PixelsPerLine: uint32(max(p.PixelsPerLine, 0)),
		Lines:         lines,
		Depth:         uint32(max(p.Depth, 0)),
	}
}

// ScanReader is one scan in progress on a device it owns. Frames are
// obtained one at a time with NextFrame.
type ScanReader struct {
	device    *Device
	done      atomic.Bool
	cancelled atomic.Bool
}

// Scan consumes d into a ScanReader. Close the reader, or take the
// device back with IntoInner.
func (d *Device) Scan() *ScanReader {
	d.mustBeOpen()
	return &ScanReader{device: d}
}

// Device returns the scanned device.
func (r *ScanReader) Device() *Device { return r.device }

// Done reports whether the scan finished or was cancelled.
func (r *ScanReader) Done() bool { return r.done.Load() }

// NextFrame starts the next frame. It returns nil, nil once the scan is
// done.
func (r *ScanReader) NextFrame() (*FrameReader, error) {
	if r.done.Load() {
		return nil, nil
	}
	d := r.device
	d.mustBeOpen()
	params, err := With2(d.anchor, func(s *Session) (Parameters, error) {
		b := s.sys()
		if err := check(b, b.Start(d.handle)); err != nil {
			return Parameters{}, err
		}
		if st := b.SetIOMode(d.handle, false); st != sys.StatusGood && st != sys.StatusUnsupported {
			return Parameters{}, check(b, st)
		}
		return getParameters(b, d.handle)
	})
	if err != nil {
		return nil, err
	}
	slog.Debug("sane: frame started", "params", params.String())
	return &FrameReader{scan: r, params: params}, nil
}

// Cancel stops the scan. It does not take the anchor and may be called
// from any goroutine while another one reads. Only the first call
// reaches the backend, and only when the scan is not done yet and the
// device is still open. Reads issued after Cancel fail with ErrCancelled
// without reaching the backend.
func (r *ScanReader) Cancel() {
	if !r.done.CompareAndSwap(false, true) {
		return
	}
	r.cancelled.Store(true)
	if r.device.state.Load() != deviceOpen {
		return
	}
	r.device.backend.Cancel(r.device.handle)
	slog.Debug("sane: scan cancelled")
}

// IntoInner cancels the scan and returns the device.
func (r *ScanReader) IntoInner() *Device {
	r.Cancel()
	return r.device
}

// Close cancels an unfinished scan and closes the device.
func (r *ScanReader) Close() error {
	r.Cancel()
	return r.device.Close()
}

// FrameReader reads the data of one frame.
type FrameReader struct {
	scan    *ScanReader
	params  Parameters
	started bool
}

// Parameters returns the parameters reported when the frame started.
func (f *FrameReader) Parameters() Parameters { return f.params }

// ReadFrame reads raw frame data into buf. The end of the frame is
// reported as an error matching ErrEOF.
func (f *FrameReader) ReadFrame(buf []byte) (int, error) {
	f.started = true
	d := f.scan.device
	d.mustBeOpen()
	if f.scan.cancelled.Load() {
		return 0, &Error{Status: StatusCancelled, Code: int32(sys.StatusCancelled), Message: d.backend.StrStatus(sys.StatusCancelled)}
	}
	n, err := With2(d.anchor, func(s *Session) (int, error) {
		n, st := s.sys().Read(d.handle, buf)
		return n, check(s.backend, st)
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrCancelled):
			f.scan.done.Store(true)
		case errors.Is(err, ErrEOF) && f.params.LastFrame:
			f.scan.done.Store(true)
		}
	}
	return n, err
}

// Read implements io.Reader. The end of the frame is io.EOF; other
// failures are *ReadError.
func (f *FrameReader) Read(p []byte) (int, error) {
	n, err := f.ReadFrame(p)
	if err == nil {
		return n, nil
	}
	if errors.Is(err, ErrEOF) {
		return n, io.EOF
	}
	return n, newReadError(err)
}

// ReadFullFrame appends the rest of the frame to dst and returns the
// extended slice. It must be the first read on f.
//
// With a known height exactly BytesPerLine*Lines bytes are read. Otherwise
// the buffer grows by an adaptive number of lines until the end of the
// frame.
func (f *FrameReader) ReadFullFrame(dst []byte) ([]byte, error) {
	if f.started {
		panic("sane: ReadFullFrame after frame reads")
	}
	f.started = true
	bpl := int(f.params.BytesPerLine)

	if lines, ok := f.params.KnownLines(); ok {
		need := bpl * int(lines)
		base := len(dst)
		dst = slices.Grow(dst, need)[:base+need]
		for filled := 0; filled < need; {
			n, err := f.ReadFrame(dst[base+filled:])
			filled += n
			if errors.Is(err, ErrEOF) {
				panic(fmt.Sprintf("sane: frame ended after %d of %d bytes", filled, need))
			}
			if err != nil {
				return dst[:base+filled], err
			}
		}
		if f.params.LastFrame {
			f.scan.done.Store(true)
		}
		return dst, nil
	}

	tryLines := 32
	for {
		reserve := max(bpl*tryLines, 1)
		dst = slices.Grow(dst, reserve)
		n, err := f.ReadFrame(dst[len(dst):cap(dst)])
		dst = dst[:len(dst)+n]
		if errors.Is(err, ErrEOF) {
			return dst, nil
		}
		if err != nil {
			return dst, err
		}
		if n < reserve/2 {
			tryLines = max(tryLines/2, 1)
		} else {
			tryLines++
		}
	}
}

// ReadError is an error from FrameReader.Read. It matches both the
// library error and the nearest I/O error kind:
// ErrCancelled is syscall.EPIPE, ErrNoMem is syscall.ENOMEM,
// ErrAccessDenied is fs.ErrPermission and ErrEOF is io.ErrUnexpectedEOF.
type ReadError struct {
	Err  error
	Kind error
}

func newReadError(err error) *ReadError {
	e := &ReadError{Err: err}
	switch {
	case errors.Is(err, ErrCancelled):
		e.Kind = syscall.EPIPE
	case errors.Is(err, ErrNoMem):
		e.Kind = syscall.ENOMEM
	case errors.Is(err, ErrAccessDenied):
		e.Kind = fs.ErrPermission
	case errors.Is(err, ErrEOF):
		e.Kind = io.ErrUnexpectedEOF
	}
	return e
}

func (e *ReadError) Error() string { return e.Err.Error() }

func (e *ReadError) Unwrap() []error {
	if e.Kind == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Kind}
}
