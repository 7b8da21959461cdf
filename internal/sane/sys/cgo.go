//go:build cgo

package sys

/*
#cgo LDFLAGS: -lsane
#include <stdlib.h>
#include <string.h>
#include <sane/sane.h>

extern SANE_Status airsane_init(SANE_Int *version_code);
*/
import "C"

import (
	"sync"
	"unsafe"
)

var (
	authMu sync.Mutex
	authFn AuthFunc

	handlesMu sync.RWMutex
	handles   = map[Handle]C.SANE_Handle{}
	nextID    Handle
)

//export airsaneAuthorize
func airsaneAuthorize(resource, username, password *C.char) {
	authMu.Lock()
	fn := authFn
	authMu.Unlock()

	user := unsafe.Slice((*byte)(unsafe.Pointer(username)), MaxUsernameLen)
	pass := unsafe.Slice((*byte)(unsafe.Pointer(password)), MaxPasswordLen)
	if fn == nil {
		user[0], pass[0] = 0, 0
		return
	}
	fn(C.GoBytes(unsafe.Pointer(resource), C.int(C.strlen(resource))), user, pass)
}

type libsane struct{}

// NewLibSANE returns the Backend bound to the system libsane.
func NewLibSANE() Backend {
	return libsane{}
}

func (libsane) Init(auth AuthFunc) (int32, Status) {
	authMu.Lock()
	authFn = auth
	authMu.Unlock()

	var version C.SANE_Int
	st := Status(C.airsane_init(&version))
	if st != StatusGood {
		authMu.Lock()
		authFn = nil
		authMu.Unlock()
	}
	return int32(version), st
}

func (libsane) Exit() {
	C.sane_exit()

	authMu.Lock()
	authFn = nil
	authMu.Unlock()
}

func (libsane) GetDevices(localOnly bool) ([]Device, Status) {
	var list **C.SANE_Device
	st := Status(C.sane_get_devices(&list, cBool(localOnly)))
	if st != StatusGood {
		return nil, st
	}
	var devices []Device
	for p := list; *p != nil; p = (**C.SANE_Device)(unsafe.Add(unsafe.Pointer(p), unsafe.Sizeof(*p))) {
		d := *p
		devices = append(devices, Device{
			Name:   goBytes(d.name),
			Vendor: goBytes(d.vendor),
			Model:  goBytes(d.model),
			Type:   goBytes(d._type),
		})
	}
	return devices, StatusGood
}

func (libsane) Open(name []byte) (Handle, Status) {
	cname := C.CString(string(name))
	defer C.free(unsafe.Pointer(cname))

	var h C.SANE_Handle
	st := Status(C.sane_open(cname, &h))
	if st != StatusGood {
		return 0, st
	}

	handlesMu.Lock()
	defer handlesMu.Unlock()
	nextID++
	handles[nextID] = h
	return nextID, StatusGood
}

func (libsane) Close(h Handle) {
	handlesMu.Lock()
	ch, ok := handles[h]
	delete(handles, h)
	handlesMu.Unlock()
	if ok {
		C.sane_close(ch)
	}
}

func (libsane) GetOptionDescriptor(h Handle, index int32) *OptionDescriptor {
	ch, ok := lookup(h)
	if !ok {
		return nil
	}
	d := C.sane_get_option_descriptor(ch, C.SANE_Int(index))
	if d == nil {
		return nil
	}
	desc := &OptionDescriptor{
		Name:           goBytes(d.name),
		Title:          goBytes(d.title),
		Desc:           goBytes(d.desc),
		Type:           ValueType(d._type),
		Unit:           Unit(d.unit),
		Size:           int32(d.size),
		Cap:            int32(d.cap),
		ConstraintType: ConstraintType(d.constraint_type),
	}
	// The constraint union is a single pointer.
	ptr := *(*unsafe.Pointer)(unsafe.Pointer(&d.constraint))
	if ptr == nil {
		return desc
	}
	switch desc.ConstraintType {
	case ConstraintRange:
		r := (*C.SANE_Range)(ptr)
		desc.Range = Range{Min: int32(r.min), Max: int32(r.max), Quant: int32(r.quant)}
	case ConstraintWordList:
		n := int(*(*C.SANE_Word)(ptr))
		words := unsafe.Slice((*C.SANE_Word)(ptr), n+1)
		desc.WordList = make([]int32, n+1)
		for i, w := range words {
			desc.WordList[i] = int32(w)
		}
	case ConstraintStringList:
		for p := (**C.char)(ptr); *p != nil; p = (**C.char)(unsafe.Add(unsafe.Pointer(p), unsafe.Sizeof(*p))) {
			desc.StringList = append(desc.StringList, goBytes(*p))
		}
	}
	return desc
}

func (libsane) ControlOption(h Handle, index int32, action Action, value []byte) (int32, Status) {
	ch, ok := lookup(h)
	if !ok {
		return 0, StatusInval
	}
	var ptr unsafe.Pointer
	if len(value) > 0 {
		ptr = unsafe.Pointer(&value[0])
	}
	var info C.SANE_Int
	st := C.sane_control_option(ch, C.SANE_Int(index), C.SANE_Action(action), ptr, &info)
	return int32(info), Status(st)
}

func (libsane) GetParameters(h Handle) (Parameters, Status) {
	ch, ok := lookup(h)
	if !ok {
		return Parameters{}, StatusInval
	}
	var p C.SANE_Parameters
	st := Status(C.sane_get_parameters(ch, &p))
	if st != StatusGood {
		return Parameters{}, st
	}
	return Parameters{
		Format:        Frame(p.format),
		LastFrame:     p.last_frame != 0,
		BytesPerLine:  int32(p.bytes_per_line),
		PixelsPerLine: int32(p.pixels_per_line),
		Lines:         int32(p.lines),
		Depth:         int32(p.depth),
	}, StatusGood
}

func (libsane) Start(h Handle) Status {
	ch, ok := lookup(h)
	if !ok {
		return StatusInval
	}
	return Status(C.sane_start(ch))
}

func (libsane) Read(h Handle, buf []byte) (int, Status) {
	ch, ok := lookup(h)
	if !ok {
		return 0, StatusInval
	}
	if len(buf) == 0 {
		return 0, StatusGood
	}
	var n C.SANE_Int
	st := C.sane_read(ch, (*C.SANE_Byte)(unsafe.Pointer(&buf[0])), C.SANE_Int(len(buf)), &n)
	return int(n), Status(st)
}

func (libsane) Cancel(h Handle) {
	if ch, ok := lookup(h); ok {
		C.sane_cancel(ch)
	}
}

func (libsane) SetIOMode(h Handle, nonBlocking bool) Status {
	ch, ok := lookup(h)
	if !ok {
		return StatusInval
	}
	return Status(C.sane_set_io_mode(ch, cBool(nonBlocking)))
}

func (libsane) GetSelectFD(h Handle) (int, Status) {
	ch, ok := lookup(h)
	if !ok {
		return 0, StatusInval
	}
	var fd C.SANE_Int
	st := Status(C.sane_get_select_fd(ch, &fd))
	return int(fd), st
}

func (libsane) StrStatus(st Status) string {
	return C.GoString(C.sane_strstatus(C.SANE_Status(st)))
}

// lookup returns the C handle for h. Unknown ids never reach libsane.
func lookup(h Handle) (C.SANE_Handle, bool) {
	handlesMu.RLock()
	defer handlesMu.RUnlock()
	ch, ok := handles[h]
	return ch, ok
}

func cBool(b bool) C.SANE_Bool {
	if b {
		return C.SANE_TRUE
	}
	return C.SANE_FALSE
}

func goBytes(s *C.char) []byte {
	if s == nil {
		return nil
	}
	return C.GoBytes(unsafe.Pointer(s), C.int(C.strlen(s)))
}
