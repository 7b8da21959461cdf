package sane

// DeviceDescription describes an available device.
type DeviceDescription struct {
	Name   Str
	Vendor Str
	Model  Str
	Type   Str
}

// Devices lists the available devices. With localOnly set, network
// devices are skipped.
func (s *Session) Devices(localOnly bool) ([]DeviceDescription, error) {
	b := s.sys()
	list, st := b.GetDevices(localOnly)
	if err := check(b, st); err != nil {
		return nil, err
	}
	out := make([]DeviceDescription, 0, len(list))
	for _, d := range list {
		out = append(out, DeviceDescription{
			Name:   cloneStr(d.Name),
			Vendor: cloneStr(d.Vendor),
			Model:  cloneStr(d.Model),
			Type:   cloneStr(d.Type),
		})
	}
	return out, nil
}

// Devices lists the available devices through anchor.
func Devices(anchor Anchor, localOnly bool) ([]DeviceDescription, error) {
	return With2(anchor, func(s *Session) ([]DeviceDescription, error) {
		return s.Devices(localOnly)
	})
}
