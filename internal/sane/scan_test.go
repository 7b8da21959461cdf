package sane

import (
	"bytes"
	"errors"
	"io"
	"io/fs"
	"syscall"
	"testing"

	"github.com/mzyy94/airsane/internal/sane/sys"
	"github.com/mzyy94/airsane/internal/sane/sys/mock"
)

// readScan reads all frames of one scan into a decoder.
func readScan(t *testing.T, r *ScanReader) *DecodedImage {
	t.Helper()
	dec := NewFrameDecoder(FrameDecoderOptions{})
	for {
		f, err := r.NextFrame()
		if err != nil {
			t.Fatalf("NextFrame: %v", err)
		}
		if f == nil {
			break
		}
		data, err := f.ReadFullFrame(nil)
		if err != nil {
			t.Fatalf("ReadFullFrame: %v", err)
		}
		if err := dec.Write(data, f.Parameters()); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	img, err := dec.IntoImage()
	if err != nil {
		t.Fatalf("IntoImage: %v", err)
	}
	return img
}

func TestScanSingleFrame(t *testing.T) {
	dev := testDevice()
	dev.Frames = []mock.Frame{{
		Params: params(sys.FrameGray, 4, 8, 2, 8, true),
		Data:   []byte{10, 20, 30, 40, 0, 0, 0, 0, 50, 60, 70, 80, 0, 0, 0, 0},
		Chunk:  3,
	}}
	d, b := connect(t, dev)

	r := d.Scan()
	img := readScan(t, r)
	if !bytes.Equal(img.Data, []byte{10, 20, 30, 40, 50, 60, 70, 80}) {
		t.Errorf("data = %v", img.Data)
	}
	if !r.Done() {
		t.Error("scan not done after last frame")
	}
	r.Close()

	c := b.Counts()
	if c.Start != 1 || c.Cancel != 0 || c.Close != 1 {
		t.Errorf("Start=%d Cancel=%d Close=%d, want 1 0 1", c.Start, c.Cancel, c.Close)
	}
}

func TestScanBandedFrames(t *testing.T) {
	band := func(f sys.Frame, v byte, last bool) mock.Frame {
		return mock.Frame{Params: params(f, 2, 2, 1, 8, last), Data: []byte{v, v + 1}}
	}
	dev := testDevice()
	dev.Frames = []mock.Frame{
		band(sys.FrameGreen, 20, false),
		band(sys.FrameBlue, 30, false),
		band(sys.FrameRed, 10, true),
	}
	d, b := connect(t, dev)

	img := readScan(t, d.Scan())
	want := []byte{10, 20, 30, 11, 21, 31}
	if !bytes.Equal(img.Data, want) || img.Format != (DecodedImageFormat{Kind: KindRGB, Bytes: 1}) {
		t.Errorf("image = %v %s, want %v rgb8", img.Data, img.Format, want)
	}
	if got := b.Counts().Start; got != 3 {
		t.Errorf("Start calls = %d, want 3", got)
	}
}

func TestReadFullFrameUnknownLines(t *testing.T) {
	data := make([]byte, 250)
	for i := range data {
		data[i] = byte(i)
	}
	dev := testDevice()
	dev.Frames = []mock.Frame{{Params: params(sys.FrameGray, 10, 10, -1, 8, true), Data: data, Chunk: 70}}
	d, _ := connect(t, dev)

	r := d.Scan()
	defer r.Close()
	f, err := r.NextFrame()
	if err != nil {
		t.Fatal(err)
	}
	prefix := []byte{0xaa}
	got, err := f.ReadFullFrame(prefix)
	if err != nil {
		t.Fatalf("ReadFullFrame: %v", err)
	}
	if len(got) != 251 || got[0] != 0xaa || !bytes.Equal(got[1:], data) {
		t.Errorf("read %d bytes, want prefix + 250", len(got))
	}
	if !r.Done() {
		t.Error("scan not done after EOF of last frame")
	}
	if f, _ := r.NextFrame(); f != nil {
		t.Error("NextFrame after done returned a frame")
	}
}

func TestReadFullFrameEndsEarly(t *testing.T) {
	dev := testDevice()
	dev.Frames = []mock.Frame{{Params: params(sys.FrameGray, 4, 4, 3, 8, true), Data: make([]byte, 8)}}
	d, _ := connect(t, dev)
	r := d.Scan()
	defer r.Close()
	f, err := r.NextFrame()
	if err != nil {
		t.Fatal(err)
	}
	mustPanic(t, "short frame", func() { f.ReadFullFrame(nil) })
	mustPanic(t, "second ReadFullFrame", func() { f.ReadFullFrame(nil) })
}

func TestFrameReaderIsReader(t *testing.T) {
	dev := testDevice()
	dev.Frames = []mock.Frame{{Params: params(sys.FrameGray, 3, 3, -1, 8, true), Data: []byte("abcdefghi"), Chunk: 2}}
	d, _ := connect(t, dev)
	r := d.Scan()
	defer r.Close()

	f, err := r.NextFrame()
	if err != nil {
		t.Fatal(err)
	}
	got, err := io.ReadAll(f)
	if err != nil || string(got) != "abcdefghi" {
		t.Errorf("ReadAll = %q, %v", got, err)
	}
}

func TestReadErrorKinds(t *testing.T) {
	tests := []struct {
		end  sys.Status
		sane error
		kind error
	}{
		{sys.StatusCancelled, ErrCancelled, syscall.EPIPE},
		{sys.StatusNoMem, ErrNoMem, syscall.ENOMEM},
		{sys.StatusAccessDenied, ErrAccessDenied, fs.ErrPermission},
		{sys.StatusJammed, ErrJammed, nil},
	}
	for _, tt := range tests {
		t.Run(sys.StatusMessage(tt.end), func(t *testing.T) {
			dev := testDevice()
			dev.Frames = []mock.Frame{{Params: params(sys.FrameGray, 1, 1, -1, 8, false), End: tt.end}}
			d, _ := connect(t, dev)
			r := d.Scan()
			defer r.Close()

			f, err := r.NextFrame()
			if err != nil {
				t.Fatal(err)
			}
			_, err = f.Read(make([]byte, 4))
			var re *ReadError
			if !errors.As(err, &re) || !errors.Is(err, tt.sane) {
				t.Fatalf("Read error = %v, want *ReadError for %v", err, tt.sane)
			}
			if tt.kind != nil && !errors.Is(err, tt.kind) {
				t.Errorf("errors.Is(err, %v) = false", tt.kind)
			}
			if cancelled := tt.end == sys.StatusCancelled; r.Done() != cancelled {
				t.Errorf("Done() = %v, want %v", r.Done(), cancelled)
			}
		})
	}

	if e := newReadError(&Error{Status: StatusEOF}); !errors.Is(e, io.ErrUnexpectedEOF) {
		t.Error("EOF does not map to io.ErrUnexpectedEOF")
	}
}

func TestCancelFromOtherGoroutine(t *testing.T) {
	dev := testDevice()
	dev.Frames = []mock.Frame{{Params: params(sys.FrameGray, 4, 4, -1, 8, true), Data: make([]byte, 8), Block: true}}
	d, b := connect(t, dev)
	r := d.Scan()

	f, err := r.NextFrame()
	if err != nil {
		t.Fatal(err)
	}
	errc := make(chan error, 1)
	go func() {
		_, err := f.ReadFullFrame(nil)
		errc <- err
	}()

	r.Cancel()
	if err := <-errc; !errors.Is(err, ErrCancelled) {
		t.Errorf("ReadFullFrame error = %v, want ErrCancelled", err)
	}
	r.Cancel()
	dev2 := r.IntoInner()
	if dev2 != d {
		t.Error("IntoInner returned another device")
	}
	if got := b.Counts().Cancel; got != 1 {
		t.Errorf("Cancel calls = %d, want 1", got)
	}
	if f, err := r.NextFrame(); f != nil || err != nil {
		t.Errorf("NextFrame after cancel = %v, %v", f, err)
	}
}

func TestReadAfterCancel(t *testing.T) {
	dev := testDevice()
	dev.Frames = []mock.Frame{mock.GrayFrame(4, 4, func(x, y int) byte { return 1 })}
	d, b := connect(t, dev)
	r := d.Scan()
	defer r.Close()

	f, err := r.NextFrame()
	if err != nil {
		t.Fatal(err)
	}
	r.Cancel()
	reads := b.Counts().Read

	buf := make([]byte, 4)
	if n, err := f.Read(buf); n != 0 || !errors.Is(err, ErrCancelled) || !errors.Is(err, syscall.EPIPE) {
		t.Errorf("Read after Cancel = %d, %v, want 0, ErrCancelled", n, err)
	}
	if _, err := f.ReadFrame(buf); !errors.Is(err, ErrCancelled) {
		t.Errorf("ReadFrame after Cancel error = %v, want ErrCancelled", err)
	}
	if got := b.Counts().Read; got != reads {
		t.Errorf("backend reads = %d after Cancel, want %d", got, reads)
	}
}

func TestReadFullFrameAfterCancel(t *testing.T) {
	dev := testDevice()
	dev.Frames = []mock.Frame{mock.GrayFrame(4, 4, func(x, y int) byte { return 1 })}
	d, b := connect(t, dev)
	r := d.Scan()
	defer r.Close()

	f, err := r.NextFrame()
	if err != nil {
		t.Fatal(err)
	}
	r.Cancel()
	if _, err := f.ReadFullFrame(nil); !errors.Is(err, ErrCancelled) {
		t.Errorf("ReadFullFrame error = %v, want ErrCancelled", err)
	}
	if got := b.Counts().Read; got != 0 {
		t.Errorf("backend reads = %d, want 0", got)
	}
}

func TestCancelAfterDeviceClose(t *testing.T) {
	dev := testDevice()
	dev.Frames = []mock.Frame{mock.GrayFrame(2, 2, func(x, y int) byte { return 1 })}
	d, b := connect(t, dev)
	r := d.Scan()
	if _, err := r.NextFrame(); err != nil {
		t.Fatal(err)
	}

	d.Close()
	r.Close()
	r.Cancel()
	if got := b.Counts().Cancel; got != 0 {
		t.Errorf("Cancel calls = %d after device close, want 0", got)
	}
	if got := b.OpenHandles(); got != 0 {
		t.Errorf("open handles = %d, want 0", got)
	}
}

func TestIntoInnerCancelsUnfinishedScan(t *testing.T) {
	dev := testDevice()
	dev.Frames = []mock.Frame{mock.GrayFrame(2, 2, func(x, y int) byte { return 1 })}
	d, b := connect(t, dev)

	r := d.Scan()
	if _, err := r.NextFrame(); err != nil {
		t.Fatal(err)
	}
	d = r.IntoInner()
	if got := b.Counts().Cancel; got != 1 {
		t.Errorf("Cancel calls = %d, want 1", got)
	}
	if _, err := d.Parameters(); err != nil {
		t.Errorf("device unusable after IntoInner: %v", err)
	}
}

func TestNextFrameIOMode(t *testing.T) {
	tests := []struct {
		name   string
		status sys.Status
		want   error
	}{
		{"good", sys.StatusGood, nil},
		{"unsupported is ignored", sys.StatusUnsupported, nil},
		{"failure", sys.StatusIOError, ErrIOError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := testDevice()
			dev.IOModeStatus = tt.status
			dev.Frames = []mock.Frame{mock.GrayFrame(1, 1, func(x, y int) byte { return 0 })}
			d, _ := connect(t, dev)
			r := d.Scan()
			defer r.Close()

			_, err := r.NextFrame()
			if tt.want == nil && err != nil || tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("NextFrame error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestNextFrameNoDocs(t *testing.T) {
	d, b := connect(t, testDevice())
	r := d.Scan()
	if _, err := r.NextFrame(); !errors.Is(err, ErrNoDocs) {
		t.Errorf("NextFrame error = %v, want ErrNoDocs", err)
	}
	r.Close()
	c := b.Counts()
	if c.Cancel != 1 || c.Close != 1 {
		t.Errorf("Cancel=%d Close=%d, want 1 1", c.Cancel, c.Close)
	}
}
