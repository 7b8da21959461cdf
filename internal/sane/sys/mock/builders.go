package mock

import (
	"encoding/binary"

	"github.com/mzyy94/airsane/internal/sane/sys"
)

// Word encodes v the way ControlOption exchanges word values.
func Word(v int32) []byte {
	b := make([]byte, 4)
	binary.NativeEndian.PutUint32(b, uint32(v))
	return b
}

// Words encodes a word array option value.
func Words(vs ...int32) []byte {
	b := make([]byte, 0, 4*len(vs))
	for _, v := range vs {
		b = binary.NativeEndian.AppendUint32(b, uint32(v))
	}
	return b
}

// Text encodes s as a NUL-padded string value of size bytes.
func Text(s string, size int) []byte {
	b := make([]byte, size)
	copy(b, s)
	return b
}

const settable = sys.CapSoftSelect | sys.CapSoftDetect

// NewDevice returns a device with the given options preceded by the
// option count option.
func NewDevice(name, vendor, model, typ string, opts ...*Option) *Device {
	count := &Option{
		Descriptor: sys.OptionDescriptor{
			Title: []byte("Number of options"),
			Type:  sys.TypeInt,
			Size:  4,
			Cap:   sys.CapSoftDetect,
		},
		Value: Word(int32(len(opts) + 1)),
	}
	return &Device{
		Info: sys.Device{
			Name:   []byte(name),
			Vendor: []byte(vendor),
			Model:  []byte(model),
			Type:   []byte(typ),
		},
		Options: append([]*Option{count}, opts...),
	}
}

// IntOption returns a settable integer option.
func IntOption(name string, v int32, unit sys.Unit) *Option {
	return &Option{
		Descriptor: sys.OptionDescriptor{
			Name:  []byte(name),
			Title: []byte(name),
			Type:  sys.TypeInt,
			Unit:  unit,
			Size:  4,
			Cap:   settable,
		},
		Value: Word(v),
	}
}

// FixedOption returns a settable fixed-point option holding raw word v.
func FixedOption(name string, v int32, unit sys.Unit) *Option {
	o := IntOption(name, v, unit)
	o.Descriptor.Type = sys.TypeFixed
	return o
}

// BoolOption returns a boolean option with the given capabilities.
func BoolOption(name string, v bool, capabilities int32) *Option {
	var w int32
	if v {
		w = 1
	}
	return &Option{
		Descriptor: sys.OptionDescriptor{
			Name:  []byte(name),
			Title: []byte(name),
			Type:  sys.TypeBool,
			Size:  4,
			Cap:   capabilities,
		},
		Value: Word(w),
	}
}

// StringListOption returns a settable string option constrained to list.
func StringListOption(name, v string, size int, list ...string) *Option {
	desc := sys.OptionDescriptor{
		Name:           []byte(name),
		Title:          []byte(name),
		Type:           sys.TypeString,
		Size:           int32(size),
		Cap:            settable,
		ConstraintType: sys.ConstraintStringList,
	}
	for _, s := range list {
		desc.StringList = append(desc.StringList, []byte(s))
	}
	return &Option{Descriptor: desc, Value: Text(v, size)}
}

// WordListOption returns a settable integer option constrained to list.
func WordListOption(name string, v int32, unit sys.Unit, list ...int32) *Option {
	o := IntOption(name, v, unit)
	o.Descriptor.ConstraintType = sys.ConstraintWordList
	o.Descriptor.WordList = append([]int32{int32(len(list))}, list...)
	return o
}

// RangeOption returns a settable integer option constrained to a range.
func RangeOption(name string, v int32, unit sys.Unit, r sys.Range) *Option {
	o := IntOption(name, v, unit)
	o.Descriptor.ConstraintType = sys.ConstraintRange
	o.Descriptor.Range = r
	return o
}

// GroupOption returns a group separator.
func GroupOption(title string) *Option {
	return &Option{Descriptor: sys.OptionDescriptor{
		Title: []byte(title),
		Type:  sys.TypeGroup,
	}}
}

// ButtonOption returns a settable button option.
func ButtonOption(name string) *Option {
	return &Option{Descriptor: sys.OptionDescriptor{
		Name:  []byte(name),
		Title: []byte(name),
		Type:  sys.TypeButton,
		Cap:   settable,
	}}
}

// GrayFrame returns a single-pass 8-bit gray frame of the given size
// filled with data produced by pixel.
func GrayFrame(width, lines int, pixel func(x, y int) byte) Frame {
	data := make([]byte, 0, width*lines)
	for y := range lines {
		for x := range width {
			data = append(data, pixel(x, y))
		}
	}
	return Frame{
		Params: sys.Parameters{
			Format:        sys.FrameGray,
			LastFrame:     true,
			BytesPerLine:  int32(width),
			PixelsPerLine: int32(width),
			Lines:         int32(lines),
			Depth:         8,
		},
		Data: data,
	}
}
