package sane

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mzyy94/airsane/internal/sane/sys"
)

// Unit is the physical unit of an option value.
type Unit int

const (
	UnitNone Unit = iota
	UnitPixel
	UnitBit
	UnitMM
	UnitDPI
	UnitPercent
	UnitMicrosecond
	UnitUnknown
)

func (u Unit) String() string {
	switch u {
	case UnitNone:
		return ""
	case UnitPixel:
		return "px"
	case UnitBit:
		return "bit"
	case UnitMM:
		return "mm"
	case UnitDPI:
		return "dpi"
	case UnitPercent:
		return "%"
	case UnitMicrosecond:
		return "us"
	}
	return "?"
}

func unitFromSys(u sys.Unit) Unit {
	if u >= sys.UnitNone && u <= sys.UnitMicrosecond {
		return Unit(u)
	}
	return UnitUnknown
}

// Capabilities are the SANE_CAP bits of an option.
type Capabilities uint32

const (
	CapSoftSelect Capabilities = sys.CapSoftSelect
	CapHardSelect Capabilities = sys.CapHardSelect
	CapSoftDetect Capabilities = sys.CapSoftDetect
	CapEmulated   Capabilities = sys.CapEmulated
	CapAutomatic  Capabilities = sys.CapAutomatic
	CapInactive   Capabilities = sys.CapInactive
	CapAdvanced   Capabilities = sys.CapAdvanced
)

func (c Capabilities) Has(bits Capabilities) bool { return c&bits == bits }

// IsActive reports whether the option currently applies.
func (c Capabilities) IsActive() bool { return !c.Has(CapInactive) }

// IsSettable reports whether software may set the option.
func (c Capabilities) IsSettable() bool { return c.Has(CapSoftSelect) }

func (c Capabilities) String() string {
	var names []string
	for _, f := range []struct {
		bit  Capabilities
		name string
	}{
		{CapSoftSelect, "soft-select"},
		{CapHardSelect, "hard-select"},
		{CapSoftDetect, "soft-detect"},
		{CapEmulated, "emulated"},
		{CapAutomatic, "automatic"},
		{CapInactive, "inactive"},
		{CapAdvanced, "advanced"},
	} {
		if c.Has(f.bit) {
			names = append(names, f.name)
		}
	}
	return strings.Join(names, ",")
}

// ControlInfo is returned when setting an option.
type ControlInfo uint32

const (
	// InfoInexact means the value was rounded.
	InfoInexact ControlInfo = sys.InfoInexact
	// InfoReloadOptions means other option descriptors changed.
	InfoReloadOptions ControlInfo = sys.InfoReloadOptions
	// InfoReloadParams means the scan parameters changed.
	InfoReloadParams ControlInfo = sys.InfoReloadParams
)

func (i ControlInfo) Has(bits ControlInfo) bool { return i&bits == bits }

// ConstraintKind tells which fields of a Constraint are set.
type ConstraintKind int

const (
	ConstraintNone ConstraintKind = iota
	ConstraintIntRange
	ConstraintFixedRange
	ConstraintIntList
	ConstraintFixedList
	ConstraintStringList
	// ConstraintUnsupported is a constraint type that does not fit the
	// option's value type.
	ConstraintUnsupported
)

// Range bounds an int or fixed option. Quant zero means no quantization.
type Range struct {
	Min, Max, Quant int32
}

// Constraint restricts the values an option accepts.
type Constraint struct {
	Kind    ConstraintKind
	Range   Range
	Words   []int32
	Strings []Str
	// RawType and RawValueType are set for ConstraintUnsupported.
	RawType      sys.ConstraintType
	RawValueType sys.ValueType
}

// FixedRange returns Range as fixed-point values.
func (c Constraint) FixedRange() (min, max, quant Fixed) {
	return Fixed(c.Range.Min), Fixed(c.Range.Max), Fixed(c.Range.Quant)
}

// Fixeds returns Words as fixed-point values.
func (c Constraint) Fixeds() []Fixed {
	out := make([]Fixed, len(c.Words))
	for i, w := range c.Words {
		out[i] = Fixed(w)
	}
	return out
}

func constraintFromSys(d *sys.OptionDescriptor) Constraint {
	unsupported := Constraint{Kind: ConstraintUnsupported, RawType: d.ConstraintType, RawValueType: d.Type}
	switch d.ConstraintType {
	case sys.ConstraintNone:
		return Constraint{Kind: ConstraintNone}
	case sys.ConstraintRange:
		r := Range{Min: d.Range.Min, Max: d.Range.Max, Quant: d.Range.Quant}
		switch d.Type {
		case sys.TypeInt:
			return Constraint{Kind: ConstraintIntRange, Range: r}
		case sys.TypeFixed:
			return Constraint{Kind: ConstraintFixedRange, Range: r}
		}
	case sys.ConstraintWordList:
		words, ok := decodeWordList(d.WordList)
		if !ok {
			return unsupported
		}
		switch d.Type {
		case sys.TypeInt:
			return Constraint{Kind: ConstraintIntList, Words: words}
		case sys.TypeFixed:
			return Constraint{Kind: ConstraintFixedList, Words: words}
		}
	case sys.ConstraintStringList:
		if d.Type == sys.TypeString {
			list := make([]Str, len(d.StringList))
			for i, s := range d.StringList {
				list[i] = cloneStr(s)
			}
			return Constraint{Kind: ConstraintStringList, Strings: list}
		}
	}
	return unsupported
}

// decodeWordList strips the length prefix of a word list.
func decodeWordList(raw []int32) ([]int32, bool) {
	if len(raw) == 0 {
		return nil, false
	}
	n := int(raw[0])
	if n < 0 || n > len(raw)-1 {
		return nil, false
	}
	return append([]int32(nil), raw[1:1+n]...), true
}

// Option is a snapshot of one option descriptor of an open device. After
// a set reports InfoReloadOptions, fetch options again for fresh
// descriptors.
type Option struct {
	device *Device
	index  int
	desc   sys.OptionDescriptor
}

// Option returns the option at index, or false when the device has no
// such option. It panics on a negative index.
func (d *Device) Option(index int) (*Option, bool) {
	if index < 0 {
		panic(fmt.Sprintf("sane: negative option index %d", index))
	}
	d.mustBeOpen()
	desc := With(d.anchor, func(s *Session) *sys.OptionDescriptor {
		return s.sys().GetOptionDescriptor(d.handle, int32(index))
	})
	if desc == nil {
		return nil, false
	}
	return &Option{device: d, index: index, desc: *desc}, true
}

// OptionCount returns the value of option 0, the number of options
// including itself. It panics if the backend breaks that contract.
func (d *Device) OptionCount() int {
	o, ok := d.Option(0)
	if !ok {
		panic("sane: device has no option 0")
	}
	v, ok, err := o.Get()
	if err != nil || !ok {
		panic(fmt.Sprintf("sane: reading option count: %v", err))
	}
	n, ok := v.Int()
	if !ok {
		panic("sane: option 0 is not an integer")
	}
	return int(n)
}

// Options returns every option after option 0.
func (d *Device) Options() []*Option {
	n := d.OptionCount()
	opts := make([]*Option, 0, max(n-1, 0))
	for i := 1; i < n; i++ {
		if o, ok := d.Option(i); ok {
			opts = append(opts, o)
		}
	}
	return opts
}

// OptionByName returns the first option called name.
func (d *Device) OptionByName(name string) (*Option, bool) {
	want := StrOf(name)
	for _, o := range d.Options() {
		if o.Name().Equal(want) {
			return o, true
		}
	}
	return nil, false
}

func (o *Option) Index() int { return o.index }

func (o *Option) Name() Str { return cloneStr(o.desc.Name) }

func (o *Option) Title() Str { return cloneStr(o.desc.Title) }

func (o *Option) Description() Str { return cloneStr(o.desc.Desc) }

func (o *Option) Type() ValueType { return valueTypeFromSys(o.desc.Type) }

func (o *Option) Unit() Unit { return unitFromSys(o.desc.Unit) }

// Size is the size of the value in bytes. For word arrays it is four
// times the element count.
func (o *Option) Size() int { return int(o.desc.Size) }

func (o *Option) Capabilities() Capabilities { return Capabilities(o.desc.Cap) }

func (o *Option) IsActive() bool { return o.Capabilities().IsActive() }

func (o *Option) IsSettable() bool { return o.Capabilities().IsSettable() }

func (o *Option) Constraint() Constraint { return constraintFromSys(&o.desc) }

// Get reads the current value. ok is false for options without a value,
// such as groups and buttons. Word arrays return their first element.
func (o *Option) Get() (v Value, ok bool, err error) {
	t := o.Type()
	if !t.IsValue() {
		return Value{}, false, nil
	}
	o.device.mustBeOpen()
	buf := make([]byte, max(int(o.desc.Size), 4))
	err = With(o.device.anchor, func(s *Session) error {
		_, st := s.sys().ControlOption(o.device.handle, int32(o.index), sys.ActionGetValue, buf)
		return check(s.backend, st)
	})
	if err != nil {
		return Value{}, false, err
	}
	return decodeValue(t, buf), true, nil
}

// Set writes v and returns the value the backend kept, which differs from
// v when info has InfoInexact. Setting a value of the wrong type panics;
// setting a button ignores v.
func (o *Option) Set(v Value) (info ControlInfo, kept Value, err error) {
	t := o.Type()
	var buf []byte
	switch {
	case t == TypeButton:
	case t.IsValue() && v.Type() == t:
		buf = encodeValue(v, int(o.desc.Size))
	default:
		panic(fmt.Sprintf("sane: setting %s option %q to a %s value", t, o.Name().String(), v.Type()))
	}
	o.device.mustBeOpen()
	var raw int32
	err = With(o.device.anchor, func(s *Session) error {
		var st sys.Status
		raw, st = s.sys().ControlOption(o.device.handle, int32(o.index), sys.ActionSetValue, buf)
		return check(s.backend, st)
	})
	if err != nil {
		return 0, Value{}, err
	}
	info = ControlInfo(raw)
	slog.Debug("sane: option set", "name", o.Name().String(), "value", v.String(), "info", uint32(info))
	if buf != nil {
		kept = decodeValue(t, buf)
	}
	return info, kept, nil
}

// SetAuto lets the backend choose the value. Options without
// CapAutomatic usually fail with ErrInval.
func (o *Option) SetAuto() (ControlInfo, error) {
	o.device.mustBeOpen()
	var raw int32
	err := With(o.device.anchor, func(s *Session) error {
		var st sys.Status
		raw, st = s.sys().ControlOption(o.device.handle, int32(o.index), sys.ActionSetAuto, nil)
		return check(s.backend, st)
	})
	return ControlInfo(raw), err
}

func decodeValue(t ValueType, buf []byte) Value {
	if t == TypeString {
		return StringValue(cstring(buf))
	}
	v, _ := ValueFromWord(int32(binary.NativeEndian.Uint32(buf)), t)
	return v
}

func encodeValue(v Value, size int) []byte {
	if s, ok := v.Str(); ok {
		buf := make([]byte, max(size, len(s)+1))
		copy(buf, s)
		return buf
	}
	w, _ := v.Word()
	buf := make([]byte, max(size, 4))
	binary.NativeEndian.PutUint32(buf, uint32(w))
	return buf
}
