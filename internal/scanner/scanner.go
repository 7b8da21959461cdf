package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/mzyy94/airsane/internal/metrics"
	"github.com/mzyy94/airsane/internal/sane"
)

var (
	ErrNotConnected = errors.New("scanner not connected")
	ErrBusy         = errors.New("scan in progress")
)

// Page is one decoded sheet side.
type Page struct {
	Index int
	Image *sane.DecodedImage
	// Params are the parameters of the last frame of the page.
	Params     sane.Parameters
	Resolution int
}

// Scanner is a high-level interface for one SANE device.
type Scanner struct {
	anchor     sane.Anchor
	deviceName string

	mu       sync.Mutex // held for the whole of Connect, Scan and Disconnect
	dev      *sane.Device
	desc     sane.DeviceDescription
	scanning atomic.Bool
}

// New creates a Scanner for deviceName. An empty name picks the first
// device the library reports. anchor must serialize access to the
// session when the Scanner is shared between goroutines.
func New(anchor sane.Anchor, deviceName string) *Scanner {
	return &Scanner{anchor: anchor, deviceName: deviceName}
}

// Connect opens the device.
func (s *Scanner) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dev != nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	slog.Info("looking up scanner", "device", s.deviceName)
	list, err := sane.Devices(s.anchor, false)
	if err != nil {
		return fmt.Errorf("list devices: %w", err)
	}
	desc, found := findDevice(list, s.deviceName)
	name := s.deviceName
	if found {
		name = desc.Name.String()
	} else {
		desc = sane.DeviceDescription{Name: sane.StrOf(name)}
	}

	dev, err := sane.Connect(s.anchor, sane.StrOf(name))
	if err != nil {
		return fmt.Errorf("open %q: %w", name, err)
	}
	s.dev = dev
	s.desc = desc
	slog.Info("connected to scanner", "device", name, "vendor", desc.Vendor.String(), "model", desc.Model.String())
	return nil
}

func findDevice(list []sane.DeviceDescription, name string) (sane.DeviceDescription, bool) {
	for _, d := range list {
		if name == "" || d.Name.String() == name {
			return d, true
		}
	}
	return sane.DeviceDescription{}, false
}

// Disconnect closes the device.
func (s *Scanner) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dev == nil {
		return
	}
	if err := s.dev.Close(); err != nil {
		slog.Warn("close failed", "err", err)
	}
	s.dev = nil
	slog.Info("disconnected from scanner", "device", s.DeviceName())
}

// Scan applies cfg and scans until the feeder is empty, or a single page
// for the flatbed. onPage, when set, is called as each page completes.
// Cancelling ctx cancels the page in progress.
func (s *Scanner) Scan(ctx context.Context, cfg ScanConfig, onPage func(Page)) ([]Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dev == nil {
		return nil, ErrNotConnected
	}
	s.scanning.Store(true)
	defer s.scanning.Store(false)

	if err := s.apply(cfg); err != nil {
		return nil, err
	}
	dpi := s.currentResolution()
	feeder := s.feederSelected()
	slog.Info("scan starting", "device", s.DeviceName(), "config", cfg.String(), "feeder", feeder)

	var pages []Page
	for {
		p, err := s.scanPage(ctx, len(pages))
		if err != nil {
			if ctx.Err() != nil {
				return pages, ctx.Err()
			}
			if errors.Is(err, sane.ErrNoDocs) && len(pages) > 0 {
				break
			}
			return pages, err
		}
		p.Resolution = dpi
		pages = append(pages, p)
		metrics.PagesTotal.Inc()
		slog.Info("page scanned", "page", p.Index+1, "width", p.Image.Width, "height", p.Image.Height, "format", p.Image.Format.String())
		if onPage != nil {
			onPage(p)
		}
		if !feeder {
			break
		}
	}
	return pages, nil
}

func (s *Scanner) scanPage(ctx context.Context, index int) (Page, error) {
	reader := s.dev.Scan()
	stop := context.AfterFunc(ctx, reader.Cancel)
	defer func() {
		stop()
		s.dev = reader.IntoInner()
	}()

	dec := sane.NewFrameDecoder(sane.FrameDecoderOptions{})
	var (
		buf    []byte
		params sane.Parameters
	)
	for {
		fr, err := reader.NextFrame()
		if err != nil {
			return Page{}, err
		}
		if fr == nil {
			break
		}
		params = fr.Parameters()
		metrics.FramesTotal.WithLabelValues(params.Format.String()).Inc()

		buf, err = fr.ReadFullFrame(buf[:0])
		metrics.BytesRead.Add(float64(len(buf)))
		if err != nil {
			return Page{}, fmt.Errorf("read page %d: %w", index+1, err)
		}
		if err := dec.Write(buf, params); err != nil {
			return Page{}, fmt.Errorf("decode page %d: %w", index+1, err)
		}
	}

	img, err := dec.IntoImage()
	if err != nil {
		return Page{}, fmt.Errorf("decode page %d: %w", index+1, err)
	}
	return Page{Index: index, Image: img, Params: params}, nil
}

// CheckADFStatus reports whether paper is loaded in the feeder, read from
// an "adf-loaded" or "page-loaded" sensor option. It fails with ErrBusy
// while a scan runs and with sane.ErrUnsupported when the device has no
// such sensor.
func (s *Scanner) CheckADFStatus() (bool, error) {
	if s.scanning.Load() || !s.mu.TryLock() {
		return false, ErrBusy
	}
	defer s.mu.Unlock()
	if s.dev == nil {
		return false, ErrNotConnected
	}
	for _, name := range []string{"adf-loaded", "page-loaded"} {
		if v, ok, err := s.readBool(name); ok || err != nil {
			return v, err
		}
	}
	return false, sane.ErrUnsupported
}

// ButtonPressed reports whether any of the named hardware buttons is
// down.
func (s *Scanner) ButtonPressed(names ...string) (bool, error) {
	if s.scanning.Load() || !s.mu.TryLock() {
		return false, ErrBusy
	}
	defer s.mu.Unlock()
	if s.dev == nil {
		return false, ErrNotConnected
	}
	for _, name := range names {
		v, _, err := s.readBool(name)
		if err != nil {
			return false, err
		}
		if v {
			return true, nil
		}
	}
	return false, nil
}

// readBool reads an active boolean option. ok is false when the device
// has no such option.
func (s *Scanner) readBool(name string) (v bool, ok bool, err error) {
	o, found := s.dev.OptionByName(name)
	if !found || !o.IsActive() || o.Type() != sane.TypeBool {
		return false, false, nil
	}
	val, _, err := o.Get()
	if err != nil {
		return false, true, fmt.Errorf("read %s: %w", name, err)
	}
	b, _ := val.Bool()
	return b, true, nil
}

// Options returns the option descriptors of the open device.
func (s *Scanner) Options() ([]*sane.Option, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dev == nil {
		return nil, ErrNotConnected
	}
	return s.dev.Options(), nil
}

// DeviceName returns the library name of the device.
func (s *Scanner) DeviceName() string {
	if name := s.desc.Name.String(); name != "" {
		return name
	}
	return s.deviceName
}

// Vendor returns the vendor reported by device enumeration.
func (s *Scanner) Vendor() string { return s.desc.Vendor.String() }

// Model returns the model reported by device enumeration.
func (s *Scanner) Model() string { return s.desc.Model.String() }

// Name returns a human readable device name.
func (s *Scanner) Name() string {
	switch {
	case s.Vendor() != "" && s.Model() != "":
		return s.Vendor() + " " + s.Model()
	case s.Model() != "":
		return s.Model()
	}
	return s.DeviceName()
}

// Connected returns whether the device is open.
func (s *Scanner) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dev != nil
}

// Online reports whether the device is open, without waiting for a
// running scan.
func (s *Scanner) Online() bool {
	if s.scanning.Load() {
		return true
	}
	return s.Connected()
}

// Scanning reports whether a scan is running.
func (s *Scanner) Scanning() bool { return s.scanning.Load() }
