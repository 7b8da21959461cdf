package scanner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mzyy94/airsane/internal/sane"
	"github.com/mzyy94/airsane/internal/sane/sys"
	"github.com/mzyy94/airsane/internal/sane/sys/mock"
)

// connect initializes a session on b and connects to its first device.
func connect(t *testing.T, b *mock.Backend) *Scanner {
	t.Helper()
	sess, _, err := sane.InitNoAuth(b)
	require.NoError(t, err)
	sc := New(sane.NewLocked(sess), "")
	if err := sc.Connect(context.Background()); err != nil {
		sess.Close()
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() {
		sc.Disconnect()
		sess.Close()
	})
	return sc
}

func demo(t *testing.T) (*Scanner, *mock.Backend) {
	t.Helper()
	b := mock.Demo()
	return connect(t, b), b
}

// option returns the scripted option called name.
func option(b *mock.Backend, name string) *mock.Option {
	for _, o := range b.Devices[0].Options {
		if string(o.Descriptor.Name) == name {
			return o
		}
	}
	return nil
}

func fixedRangeOption(name string, v, lo, hi float64) *mock.Option {
	o := mock.FixedOption(name, sane.FixedFromFloat(v).Word(), sys.UnitMM)
	o.Descriptor.ConstraintType = sys.ConstraintRange
	o.Descriptor.Range = sys.Range{Min: sane.FixedFromFloat(lo).Word(), Max: sane.FixedFromFloat(hi).Word()}
	return o
}

func grayPage(width, height int) Page {
	data := make([]byte, width*height)
	for i := range data {
		data[i] = byte(i)
	}
	return Page{
		Image: &sane.DecodedImage{
			Data:   data,
			Format: sane.DecodedImageFormat{Kind: sane.KindGray, Bytes: 1},
			Width:  uint32(width),
			Height: uint32(height),
		},
		Resolution: 75,
	}
}
