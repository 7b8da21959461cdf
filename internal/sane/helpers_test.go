package sane

import (
	"testing"

	"github.com/mzyy94/airsane/internal/sane/sys"
	"github.com/mzyy94/airsane/internal/sane/sys/mock"
)

// newSession initializes b and exits it when the test ends.
func newSession(t *testing.T, b *mock.Backend, auth AuthorizationCallback) *Session {
	t.Helper()
	s, _, err := Init(b, auth)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testDevice(opts ...*mock.Option) *mock.Device {
	return mock.NewDevice("test:0", "Vendor", "Model", "flatbed scanner", opts...)
}

// connect opens the only device of a fresh mock backend.
func connect(t *testing.T, dev *mock.Device) (*Device, *mock.Backend) {
	t.Helper()
	b := mock.New(dev)
	s := newSession(t, b, nil)
	d, err := s.Connect(nil)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d, b
}

func params(format sys.Frame, ppl, bpl, lines, depth int32, last bool) sys.Parameters {
	return sys.Parameters{
		Format:        format,
		LastFrame:     last,
		BytesPerLine:  bpl,
		PixelsPerLine: ppl,
		Lines:         lines,
		Depth:         depth,
	}
}

func mustPanic(t *testing.T, name string, f func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Errorf("%s did not panic", name)
		}
	}()
	f()
}
