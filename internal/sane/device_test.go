package sane

import (
	"errors"
	"testing"

	"github.com/mzyy94/airsane/internal/sane/sys"
	"github.com/mzyy94/airsane/internal/sane/sys/mock"
)

func TestConnectAndCloseOnce(t *testing.T) {
	b := mock.New(testDevice())
	s := newSession(t, b, nil)

	d, err := s.Connect(Str("test:0"))
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if got := d.Name().String(); got != "test:0" {
		t.Errorf("Name() = %q", got)
	}
	d.Close()
	d.Close()
	if got := b.Counts().Close; got != 1 {
		t.Errorf("Close calls = %d, want 1", got)
	}
	mustPanic(t, "Parameters after Close", func() { d.Parameters() })
}

func TestConnectUnknownDevice(t *testing.T) {
	b := mock.New(testDevice())
	s := newSession(t, b, nil)
	if _, err := s.Connect(Str("missing")); !errors.Is(err, ErrInval) {
		t.Errorf("Connect error = %v, want ErrInval", err)
	}
	if got := b.Counts().Close; got != 0 {
		t.Errorf("Close calls = %d, want 0", got)
	}
}

func TestMapAnchorMovesHandle(t *testing.T) {
	b := mock.New(testDevice())
	s := newSession(t, b, nil)
	d, err := s.Connect(nil)
	if err != nil {
		t.Fatal(err)
	}

	var locked *Locked
	moved := MapAnchor(d, func(a Anchor) Anchor {
		locked = NewLocked(a)
		return locked
	})
	if moved.Anchor() != Anchor(locked) {
		t.Error("moved device does not use the new anchor")
	}

	d.Close()
	if got := b.Counts().Close; got != 0 {
		t.Fatalf("closing the moved-from device closed the handle")
	}
	if _, err := moved.Parameters(); err != nil {
		t.Errorf("Parameters: %v", err)
	}
	moved.Close()
	if got := b.Counts().Close; got != 1 {
		t.Errorf("Close calls = %d, want 1", got)
	}
	mustPanic(t, "MapAnchor of closed device", func() { MapAnchor(moved, func(a Anchor) Anchor { return a }) })
}

func TestDevices(t *testing.T) {
	b := mock.New(
		mock.NewDevice("a:1", "Acme", "One", "flatbed scanner"),
		mock.NewDevice("b:2", "Bolt", "Two", "sheetfed scanner"),
	)
	s := newSession(t, b, nil)

	list, err := Devices(s, true)
	if err != nil {
		t.Fatalf("Devices: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("len = %d, want 2", len(list))
	}
	want := DeviceDescription{Name: Str("b:2"), Vendor: Str("Bolt"), Model: Str("Two"), Type: Str("sheetfed scanner")}
	got := list[1]
	if !got.Name.Equal(want.Name) || !got.Vendor.Equal(want.Vendor) || !got.Model.Equal(want.Model) || !got.Type.Equal(want.Type) {
		t.Errorf("list[1] = %+v, want %+v", got, want)
	}
}

func TestSelectFD(t *testing.T) {
	d, _ := connect(t, testDevice())
	if _, err := d.SelectFD(); !errors.Is(err, ErrUnsupported) {
		t.Errorf("SelectFD error = %v, want ErrUnsupported", err)
	}
}

func TestDeviceParameters(t *testing.T) {
	dev := testDevice()
	dev.Idle = params(sys.FrameRGB, 100, 300, -1, 8, true)
	d, _ := connect(t, dev)

	p, err := d.Parameters()
	if err != nil {
		t.Fatal(err)
	}
	if p.Format != FrameRGB || p.PixelsPerLine != 100 || p.BytesPerLine != 300 || p.Depth != 8 || !p.LastFrame {
		t.Errorf("Parameters() = %s", p)
	}
	if _, ok := p.KnownLines(); ok {
		t.Error("KnownLines reported a height for lines=-1")
	}
}
