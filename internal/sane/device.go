package sane

import (
	"log/slog"
	"sync/atomic"

	"github.com/mzyy94/airsane/internal/sane/sys"
)

// Device is an open scanner. All calls except Cancel go through its
// anchor. A Device must be closed exactly once, either directly or by the
// ScanReader that consumed it.
type Device struct {
	handle  sys.Handle
	anchor  Anchor
	backend sys.Backend
	name    Str
	// state is 0 while usable, 1 once closed, 2 once moved by MapAnchor.
	state atomic.Int32
}

const (
	deviceOpen int32 = iota
	deviceClosed
	deviceMoved
)

// Connect opens the device called name through anchor. An empty name
// opens the first available device.
func Connect(anchor Anchor, name Str) (*Device, error) {
	var (
		h       sys.Handle
		backend sys.Backend
		err     error
	)
	anchor.WithSession(func(s *Session) {
		backend = s.sys()
		var st sys.Status
		h, st = backend.Open(name)
		err = check(backend, st)
	})
	if err != nil {
		return nil, err
	}
	slog.Debug("sane: device opened", "name", name.String())
	return &Device{handle: h, anchor: anchor, backend: backend, name: cloneStr(name)}, nil
}

// Connect opens a device anchored on s itself.
func (s *Session) Connect(name Str) (*Device, error) {
	return Connect(s, name)
}

// MapAnchor moves the open handle of d to a device anchored on the result
// of f. d becomes unusable and must not be closed.
func MapAnchor(d *Device, f func(Anchor) Anchor) *Device {
	if !d.state.CompareAndSwap(deviceOpen, deviceMoved) {
		panic("sane: MapAnchor on closed device")
	}
	return &Device{handle: d.handle, anchor: f(d.anchor), backend: d.backend, name: d.name}
}

// Name returns the name the device was opened with.
func (d *Device) Name() Str { return d.name }

// Anchor returns the anchor d calls through.
func (d *Device) Anchor() Anchor { return d.anchor }

// WithSession makes a Device usable as an Anchor.
func (d *Device) WithSession(f func(s *Session)) {
	d.anchor.WithSession(f)
}

// Close releases the device. Calling Close more than once has no effect.
func (d *Device) Close() error {
	if !d.state.CompareAndSwap(deviceOpen, deviceClosed) {
		return nil
	}
	d.anchor.WithSession(func(s *Session) {
		s.sys().Close(d.handle)
	})
	slog.Debug("sane: device closed", "name", d.name.String())
	return nil
}

// Parameters returns the current, possibly estimated, scan parameters.
func (d *Device) Parameters() (Parameters, error) {
	d.mustBeOpen()
	return With2(d.anchor, func(s *Session) (Parameters, error) {
		return getParameters(s.sys(), d.handle)
	})
}

// Cancel cancels the current operation. It does not take the anchor and
// may be called from any goroutine.
func (d *Device) Cancel() {
	d.mustBeOpen()
	d.backend.Cancel(d.handle)
}

// SelectFD returns a file descriptor that becomes readable when image
// data is available in non-blocking mode. Most backends return
// ErrUnsupported.
func (d *Device) SelectFD() (int, error) {
	d.mustBeOpen()
	return With2(d.anchor, func(s *Session) (int, error) {
		fd, st := s.sys().GetSelectFD(d.handle)
		return fd, check(s.backend, st)
	})
}

func (d *Device) mustBeOpen() {
	if d.state.Load() != deviceOpen {
		panic("sane: use of closed device")
	}
}

func getParameters(b sys.Backend, h sys.Handle) (Parameters, error) {
	p, st := b.GetParameters(h)
	if err := check(b, st); err != nil {
		return Parameters{}, err
	}
	return parametersFromSys(p), nil
}
