package scanner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mzyy94/airsane/internal/sane"
	"github.com/mzyy94/airsane/internal/sane/sys"
	"github.com/mzyy94/airsane/internal/sane/sys/mock"
)

func TestConnectDescribesDevice(t *testing.T) {
	sc, b := demo(t)

	assert.True(t, sc.Connected())
	assert.True(t, sc.Online())
	assert.Equal(t, mock.DemoDeviceName, sc.DeviceName())
	assert.Equal(t, "AirSane", sc.Vendor())
	assert.Equal(t, "Virtual Scanner", sc.Model())
	assert.Equal(t, "AirSane Virtual Scanner", sc.Name())
	assert.Equal(t, 1, b.OpenHandles())

	sc.Disconnect()
	assert.False(t, sc.Connected())
	assert.Equal(t, 0, b.OpenHandles())
	sc.Disconnect()
	assert.Equal(t, 1, b.Counts().Close)
}

func TestConnectUnknownDevice(t *testing.T) {
	b := mock.Demo()
	sess, _, err := sane.InitNoAuth(b)
	require.NoError(t, err)
	defer sess.Close()

	sc := New(sess, "mock:missing")
	err = sc.Connect(context.Background())
	assert.Error(t, err)
	assert.False(t, sc.Connected())
}

func TestScanNotConnected(t *testing.T) {
	sc := New(sane.AnchorFunc(func(func(*sane.Session)) { t.Fatal("anchor used") }), "")
	_, err := sc.Scan(context.Background(), DefaultScanConfig(), nil)
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestScanFlatbed(t *testing.T) {
	tests := []struct {
		mode ColorMode
		kind sane.ImageKind
	}{
		{ColorColor, sane.KindRGB},
		{ColorGray, sane.KindGray},
		{ColorLineart, sane.KindBlackAndWhite},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			sc, b := demo(t)
			var seen []int
			pages, err := sc.Scan(context.Background(), ScanConfig{ColorMode: tt.mode, Resolution: 75, Source: SourceFlatbed}, func(p Page) {
				seen = append(seen, p.Index)
			})
			require.NoError(t, err)
			require.Len(t, pages, 1)
			assert.Equal(t, []int{0}, seen)

			p := pages[0]
			assert.Equal(t, tt.kind, p.Image.Format.Kind)
			assert.Equal(t, uint32(304), p.Image.Width)
			assert.Equal(t, uint32(437), p.Image.Height)
			assert.Equal(t, 75, p.Resolution)
			assert.Equal(t, 1, b.Counts().Start)
		})
	}
}

func TestScanFeederUntilEmpty(t *testing.T) {
	sc, b := demo(t)
	pages, err := sc.Scan(context.Background(), ScanConfig{ColorMode: ColorGray, Resolution: 75, Source: SourceADF}, nil)
	require.NoError(t, err)
	require.Len(t, pages, 3)
	for i, p := range pages {
		assert.Equal(t, i, p.Index)
	}
	assert.Equal(t, 4, b.Counts().Start)
	assert.Equal(t, 1, b.OpenHandles())
}

func TestScanFeederEmpty(t *testing.T) {
	dev := mock.NewDevice("mock:adf", "Acme", "Feeder", "sheetfed scanner",
		mock.StringListOption("source", "ADF", 16, "ADF"),
	)
	sc := connect(t, mock.New(dev))

	_, err := sc.Scan(context.Background(), DefaultScanConfig(), nil)
	assert.ErrorIs(t, err, sane.ErrNoDocs)
}

func TestScanAppliesOptions(t *testing.T) {
	sc, b := demo(t)
	_, err := sc.Scan(context.Background(), ScanConfig{ColorMode: ColorGray, Resolution: 200, Source: SourceFlatbed}, nil)
	require.NoError(t, err)

	assert.Equal(t, mock.Text("Gray", 16), option(b, "mode").Value)
	assert.Equal(t, mock.Word(150), option(b, "resolution").Value)
	assert.Equal(t, mock.Text("Flatbed", 32), option(b, "source").Value)
}

func TestScanUnsupportedMode(t *testing.T) {
	sc, b := demo(t)
	_, err := sc.Scan(context.Background(), ScanConfig{ColorMode: "Sepia"}, nil)
	assert.ErrorContains(t, err, `mode "Sepia" not supported`)
	assert.Equal(t, 0, b.Counts().Start)
}

func TestScanArea(t *testing.T) {
	dev := mock.NewDevice("mock:area", "Acme", "Area", "flatbed scanner",
		fixedRangeOption("tl-x", 0, 0, 216),
		fixedRangeOption("tl-y", 0, 0, 297),
		fixedRangeOption("br-x", 216, 0, 216),
		fixedRangeOption("br-y", 297, 0, 297),
	)
	dev.Frames = []mock.Frame{mock.GrayFrame(8, 8, func(x, y int) byte { return 0 })}
	b := mock.New(dev)
	sc := connect(t, b)

	_, err := sc.Scan(context.Background(), ScanConfig{Area: &Area{X: 10, Y: 20, Width: 500, Height: 50}}, nil)
	require.NoError(t, err)

	want := map[string]float64{"tl-x": 10, "tl-y": 20, "br-x": 216, "br-y": 70}
	for name, mm := range want {
		assert.Equal(t, mock.Word(sane.FixedFromFloat(mm).Word()), option(b, name).Value, name)
	}
}

func TestScanCancelledByContext(t *testing.T) {
	frame := mock.GrayFrame(16, 16, func(x, y int) byte { return 0 })
	frame.Data = frame.Data[:64]
	frame.Block = true
	dev := mock.NewDevice("mock:slow", "Acme", "Slow", "flatbed scanner")
	dev.Frames = []mock.Frame{frame}
	b := mock.New(dev)
	sc := connect(t, b)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	pages, err := sc.Scan(ctx, DefaultScanConfig(), nil)
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "err = %v", err)
	assert.Empty(t, pages)
	assert.Equal(t, 1, b.Counts().Cancel)
	assert.False(t, sc.Scanning())

	// the device stays usable
	dev.Frames = append(dev.Frames, mock.GrayFrame(4, 4, func(x, y int) byte { return 0 }))
	pages, err = sc.Scan(context.Background(), DefaultScanConfig(), nil)
	require.NoError(t, err)
	assert.Len(t, pages, 1)
}

func TestScanMultiFrame(t *testing.T) {
	band := func(f sys.Frame, v byte, last bool) mock.Frame {
		fr := mock.GrayFrame(2, 2, func(x, y int) byte { return v })
		fr.Params.Format = f
		fr.Params.LastFrame = last
		return fr
	}
	dev := mock.NewDevice("mock:3pass", "Acme", "Three Pass", "flatbed scanner")
	dev.Frames = []mock.Frame{
		band(sys.FrameRed, 1, false),
		band(sys.FrameGreen, 2, false),
		band(sys.FrameBlue, 3, true),
	}
	sc := connect(t, mock.New(dev))

	pages, err := sc.Scan(context.Background(), DefaultScanConfig(), nil)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, sane.KindRGB, pages[0].Image.Format.Kind)
	assert.Equal(t, []byte{1, 2, 3, 1, 2, 3, 1, 2, 3, 1, 2, 3}, pages[0].Image.Data)
}

func TestCapabilities(t *testing.T) {
	sc, _ := demo(t)
	caps, err := sc.Capabilities()
	require.NoError(t, err)

	assert.ElementsMatch(t, []ColorMode{ColorColor, ColorGray, ColorLineart}, caps.ColorModes)
	assert.Equal(t, []int{75, 150, 300, 600}, caps.Resolutions)
	assert.Equal(t, []Source{SourceFlatbed, SourceADF, SourceADFDuplex}, caps.Sources)
	assert.True(t, caps.HasSource(SourceADF))
	assert.Zero(t, caps.MaxWidth)
}

func TestCapabilitiesDefaults(t *testing.T) {
	dev := mock.NewDevice("mock:bare", "Acme", "Bare", "flatbed scanner",
		mock.RangeOption("resolution", 100, sys.UnitDPI, sys.Range{Min: 100, Max: 600, Quant: 100}),
		fixedRangeOption("br-x", 210, 0, 210),
	)
	sc := connect(t, mock.New(dev))

	caps, err := sc.Capabilities()
	require.NoError(t, err)
	assert.Equal(t, []Source{SourceFlatbed}, caps.Sources)
	assert.Equal(t, []int{100, 200, 300, 400, 600}, caps.Resolutions)
	assert.InDelta(t, 210, caps.MaxWidth, 0.001)
}

func TestCheckADFStatus(t *testing.T) {
	sc, b := demo(t)
	loaded, err := sc.CheckADFStatus()
	require.NoError(t, err)
	assert.True(t, loaded)

	option(b, "page-loaded").Value = mock.Word(0)
	loaded, err = sc.CheckADFStatus()
	require.NoError(t, err)
	assert.False(t, loaded)
}

func TestCheckADFStatusNoSensor(t *testing.T) {
	sc := connect(t, mock.New(mock.NewDevice("mock:bare", "Acme", "Bare", "flatbed scanner")))
	_, err := sc.CheckADFStatus()
	assert.ErrorIs(t, err, sane.ErrUnsupported)
}

func TestStatusChecksDoNotWaitForLock(t *testing.T) {
	sc, b := demo(t)

	// Connect and Disconnect hold mu without setting scanning.
	sc.mu.Lock()
	controls := b.Counts().Control
	_, err := sc.CheckADFStatus()
	assert.ErrorIs(t, err, ErrBusy)
	_, err = sc.ButtonPressed("scan")
	assert.ErrorIs(t, err, ErrBusy)
	assert.Equal(t, controls, b.Counts().Control)
	sc.mu.Unlock()

	loaded, err := sc.CheckADFStatus()
	require.NoError(t, err)
	assert.True(t, loaded)
	_, err = sc.ButtonPressed("scan")
	assert.NoError(t, err)
}

func TestSnap(t *testing.T) {
	list := sane.Constraint{Kind: sane.ConstraintIntList, Words: []int32{75, 150, 300, 600}}
	intRange := sane.Constraint{Kind: sane.ConstraintIntRange, Range: sane.Range{Min: 50, Max: 1200, Quant: 50}}
	fixedRange := sane.Constraint{Kind: sane.ConstraintFixedRange, Range: sane.Range{
		Min: sane.FixedFromInt(0).Word(), Max: sane.FixedFromInt(100).Word(),
	}}
	tests := []struct {
		name  string
		c     sane.Constraint
		fixed bool
		v     float64
		want  float64
	}{
		{"list exact", list, false, 300, 300},
		{"list nearest", list, false, 200, 150},
		{"list above", list, false, 2400, 600},
		{"range quantized", intRange, false, 333, 350},
		{"range below", intRange, false, 10, 50},
		{"range above", intRange, false, 5000, 1200},
		{"fixed range", fixedRange, true, 42.5, 42.5},
		{"fixed clamp", fixedRange, true, -3, 0},
		{"none", sane.Constraint{}, false, 123, 123},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, snap(tt.c, tt.v, tt.fixed), 1e-9)
		})
	}
}

func TestNormalize(t *testing.T) {
	modes := []struct {
		in   string
		want ColorMode
		ok   bool
	}{
		{"Color", ColorColor, true},
		{"Grayscale", ColorGray, true},
		{"Black & White", ColorLineart, true},
		{"Halftone", ColorLineart, true},
		{"Infrared", ColorAuto, false},
	}
	for _, tt := range modes {
		got, ok := normalizeMode(tt.in)
		assert.Equal(t, tt.want, got, tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
	}

	sources := []struct {
		in   string
		want Source
		ok   bool
	}{
		{"Flatbed", SourceFlatbed, true},
		{"Automatic Document Feeder", SourceADF, true},
		{"ADF Front", SourceADF, true},
		{"ADF Back", SourceAuto, false},
		{"ADF Duplex", SourceADFDuplex, true},
		{"Transparency Unit", SourceAuto, false},
	}
	for _, tt := range sources {
		got, ok := normalizeSource(tt.in)
		assert.Equal(t, tt.want, got, tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
	}

	got, ok := matchSource([]string{"Flatbed", "Automatic Document Feeder"}, string(SourceADF))
	assert.True(t, ok)
	assert.Equal(t, "Automatic Document Feeder", got)
	got, ok = matchMode([]string{"Lineart", "Gray"}, "gray")
	assert.True(t, ok)
	assert.Equal(t, "Gray", got)
}

func TestParseUserValues(t *testing.T) {
	for in, want := range map[string]ColorMode{"": ColorAuto, "auto": ColorAuto, "bw": ColorLineart, "gray": ColorGray, "Color": ColorColor} {
		got, err := ParseColorMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseColorMode("sepia")
	assert.Error(t, err)

	for in, want := range map[string]Source{"": SourceAuto, "flatbed": SourceFlatbed, "adf": SourceADF, "duplex": SourceADFDuplex} {
		got, err := ParseSource(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err = ParseSource("film")
	assert.Error(t, err)
}
