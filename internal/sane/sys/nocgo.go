//go:build !cgo

package sys

type unsupported struct{}

// NewLibSANE returns a Backend that fails every call with
// StatusUnsupported. libsane needs cgo.
func NewLibSANE() Backend {
	return unsupported{}
}

func (unsupported) Init(AuthFunc) (int32, Status) { return 0, StatusUnsupported }
func (unsupported) Exit() {}
func (unsupported) GetDevices(bool) ([]Device, Status) { return nil, StatusUnsupported }
func (unsupported) Open([]byte) (Handle, Status) { return 0, StatusUnsupported }
func (unsupported) Close(Handle) {}
func (unsupported) GetOptionDescriptor(Handle, int32) *OptionDescriptor { return nil }
func (unsupported) ControlOption(Handle, int32, Action, []byte) (int32, Status) {
	return 0, StatusUnsupported
}
func (unsupported) GetParameters(Handle) (Parameters, Status) { return Parameters{}, StatusUnsupported }
func (unsupported) Start(Handle) Status { return StatusUnsupported }
func (unsupported) Read(Handle, []byte) (int, Status) { return 0, StatusUnsupported }
func (unsupported) Cancel(Handle) {}
func (unsupported) SetIOMode(Handle, bool) Status { return StatusUnsupported }
func (unsupported) GetSelectFD(Handle) (int, Status) { return 0, StatusUnsupported }
func (unsupported) StrStatus(st Status) string { return StatusMessage(st) }
