// Package mock provides an in-memory sys.Backend with scripted devices,
// options and frames. Every entry point is counted so tests can assert on
// the exact calls made against the library.
package mock

import (
	"bytes"
	"sync"

	"github.com/mzyy94/airsane/internal/sane/sys"
)

// Frame is one scripted frame returned by Start/Read.
type Frame struct {
	Params sys.Parameters
	Data   []byte
	// Chunk limits the bytes returned per Read. Zero means unlimited.
	Chunk int
	// End is returned once Data is exhausted. Zero means StatusEOF.
	End sys.Status
	// Block makes Read wait for Cancel once Data is exhausted.
	Block bool
}

// Option is a scripted option with its current value.
type Option struct {
	Descriptor sys.OptionDescriptor
	// Value holds native-endian words or a NUL-padded string.
	Value []byte
	// SetInfo is returned from a successful set.
	SetInfo int32
	// Status, when not StatusGood, fails every control call.
	Status sys.Status
}

// Device is a scripted scanner.
type Device struct {
	Info    sys.Device
	Options []*Option
	// Frames are consumed in order by Start. Start returns StatusNoDocs
	// once they run out.
	Frames []Frame
	// Next, when set, produces frames instead of Frames. Returning false
	// makes Start fail with StatusNoDocs.
	Next func(d *Device) (Frame, bool)
	// StartStatus is popped before each Start. A non-good entry fails
	// that Start without consuming a frame.
	StartStatus []sys.Status
	// Idle is returned from GetParameters while no frame is active.
	Idle         sys.Parameters
	IOModeStatus sys.Status
	SelectFD     int
	// Resource, when set, makes Open request credentials for it.
	Resource string
	// Username and Password are the credentials Open accepts after an
	// authorization request.
	Username string
	Password string
}

// Counts records how often each entry point was called.
type Counts struct {
	Init, Exit, GetDevices, Open, Close       int
	Start, Read, Cancel, SetIOMode, GetParams int
	Control, Auth                             int
}

// Backend is the scripted sys.Backend. The zero value has no devices.
type Backend struct {
	VersionCode int32
	InitStatus  sys.Status
	Devices     []*Device

	mu      sync.Mutex
	counts  Counts
	auth    sys.AuthFunc
	next    sys.Handle
	handles map[sys.Handle]*open

	// LastUsername and LastPassword hold what the last authorization
	// callback wrote, up to the NUL.
	LastUsername []byte
	LastPassword []byte
}

type open struct {
	dev       *Device
	frame     int
	cur       *Frame
	pos       int
	cancelled bool
	cancelCh  chan struct{}
}

var _ sys.Backend = (*Backend)(nil)

// New returns a backend reporting SANE 1.0.0 with the given devices.
func New(devices ...*Device) *Backend {
	return &Backend{
		VersionCode: 1 << 24,
		Devices:     devices,
	}
}

// Counts returns a snapshot of the call counters.
func (b *Backend) Counts() Counts {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.counts
}

// OpenHandles returns the number of handles not yet closed.
func (b *Backend) OpenHandles() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.handles)
}

func (b *Backend) Init(auth sys.AuthFunc) (int32, sys.Status) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.counts.Init++
	if b.InitStatus != sys.StatusGood {
		return 0, b.InitStatus
	}
	b.auth = auth
	b.handles = map[sys.Handle]*open{}
	return b.VersionCode, sys.StatusGood
}

func (b *Backend) Exit() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.counts.Exit++
	b.auth = nil
}

func (b *Backend) GetDevices(localOnly bool) ([]sys.Device, sys.Status) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.counts.GetDevices++
	var list []sys.Device
	for _, d := range b.Devices {
		list = append(list, d.Info)
	}
	return list, sys.StatusGood
}

func (b *Backend) Open(name []byte) (sys.Handle, sys.Status) {
	b.mu.Lock()
	b.counts.Open++
	var dev *Device
	for _, d := range b.Devices {
		if len(name) == 0 || bytes.Equal(d.Info.Name, name) {
			dev = d
			break
		}
	}
	auth := b.auth
	b.mu.Unlock()

	if dev == nil {
		return 0, sys.StatusInval
	}
	if dev.Resource != "" {
		user := make([]byte, sys.MaxUsernameLen)
		pass := make([]byte, sys.MaxPasswordLen)
		if auth != nil {
			auth([]byte(dev.Resource), user, pass)
		}
		user = cstr(user)
		pass = cstr(pass)

		b.mu.Lock()
		b.counts.Auth++
		b.LastUsername, b.LastPassword = user, pass
		b.mu.Unlock()

		if string(user) != dev.Username || string(pass) != dev.Password {
			return 0, sys.StatusAccessDenied
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.next++
	b.handles[b.next] = &open{dev: dev}
	return b.next, sys.StatusGood
}

func (b *Backend) Close(h sys.Handle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.counts.Close++
	delete(b.handles, h)
}

func (b *Backend) GetOptionDescriptor(h sys.Handle, index int32) *sys.OptionDescriptor {
	b.mu.Lock()
	defer b.mu.Unlock()
	o := b.handles[h]
	if o == nil || index < 0 || int(index) >= len(o.dev.Options) {
		return nil
	}
	desc := o.dev.Options[index].Descriptor
	return &desc
}

func (b *Backend) ControlOption(h sys.Handle, index int32, action sys.Action, value []byte) (int32, sys.Status) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.counts.Control++
	o := b.handles[h]
	if o == nil || index < 0 || int(index) >= len(o.dev.Options) {
		return 0, sys.StatusInval
	}
	opt := o.dev.Options[index]
	if opt.Status != sys.StatusGood {
		return 0, opt.Status
	}
	switch action {
	case sys.ActionGetValue:
		copy(value, opt.Value)
		return 0, sys.StatusGood
	case sys.ActionSetValue:
		n := min(len(value), int(opt.Descriptor.Size))
		v := make([]byte, opt.Descriptor.Size)
		copy(v, value[:n])
		opt.Value = v
		return opt.SetInfo, sys.StatusGood
	case sys.ActionSetAuto:
		if opt.Descriptor.Cap&sys.CapAutomatic == 0 {
			return 0, sys.StatusInval
		}
		return 0, sys.StatusGood
	}
	return 0, sys.StatusInval
}

func (b *Backend) GetParameters(h sys.Handle) (sys.Parameters, sys.Status) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.counts.GetParams++
	o := b.handles[h]
	if o == nil {
		return sys.Parameters{}, sys.StatusInval
	}
	if o.cur != nil {
		return o.cur.Params, sys.StatusGood
	}
	return o.dev.Idle, sys.StatusGood
}

func (b *Backend) Start(h sys.Handle) sys.Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.counts.Start++
	o := b.handles[h]
	if o == nil {
		return sys.StatusInval
	}
	if len(o.dev.StartStatus) > 0 {
		st := o.dev.StartStatus[0]
		o.dev.StartStatus = o.dev.StartStatus[1:]
		if st != sys.StatusGood {
			return st
		}
	}
	if o.dev.Next != nil {
		f, ok := o.dev.Next(o.dev)
		if !ok {
			o.cur = nil
			return sys.StatusNoDocs
		}
		o.cur = &f
	} else {
		if o.frame >= len(o.dev.Frames) {
			o.cur = nil
			return sys.StatusNoDocs
		}
		o.cur = &o.dev.Frames[o.frame]
		o.frame++
	}
	o.pos = 0
	o.cancelled = false
	o.cancelCh = make(chan struct{})
	return sys.StatusGood
}

func (b *Backend) Read(h sys.Handle, buf []byte) (int, sys.Status) {
	b.mu.Lock()
	b.counts.Read++
	o := b.handles[h]
	if o == nil || o.cur == nil {
		b.mu.Unlock()
		return 0, sys.StatusInval
	}
	if o.cancelled {
		o.cur = nil
		b.mu.Unlock()
		return 0, sys.StatusCancelled
	}
	f := o.cur
	if o.pos < len(f.Data) {
		n := min(len(buf), len(f.Data)-o.pos)
		if f.Chunk > 0 {
			n = min(n, f.Chunk)
		}
		copy(buf, f.Data[o.pos:o.pos+n])
		o.pos += n
		b.mu.Unlock()
		return n, sys.StatusGood
	}
	if f.Block {
		ch := o.cancelCh
		b.mu.Unlock()
		<-ch
		b.mu.Lock()
		o.cur = nil
		b.mu.Unlock()
		return 0, sys.StatusCancelled
	}
	defer b.mu.Unlock()
	if f.End != sys.StatusGood {
		return 0, f.End
	}
	return 0, sys.StatusEOF
}

func (b *Backend) Cancel(h sys.Handle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.counts.Cancel++
	o := b.handles[h]
	if o == nil || o.cur == nil || o.cancelled {
		return
	}
	o.cancelled = true
	close(o.cancelCh)
}

func (b *Backend) SetIOMode(h sys.Handle, nonBlocking bool) sys.Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.counts.SetIOMode++
	o := b.handles[h]
	if o == nil {
		return sys.StatusInval
	}
	return o.dev.IOModeStatus
}

func (b *Backend) GetSelectFD(h sys.Handle) (int, sys.Status) {
	b.mu.Lock()
	defer b.mu.Unlock()
	o := b.handles[h]
	if o == nil {
		return 0, sys.StatusInval
	}
	if o.dev.SelectFD == 0 {
		return 0, sys.StatusUnsupported
	}
	return o.dev.SelectFD, sys.StatusGood
}

func (b *Backend) StrStatus(st sys.Status) string {
	return sys.StatusMessage(st)
}

func cstr(b []byte) []byte {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return b[:i]
	}
	return b
}
