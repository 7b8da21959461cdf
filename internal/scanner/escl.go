package scanner

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/OpenPrinting/go-mfp/abstract"
	"github.com/OpenPrinting/go-mfp/util/generic"
	"github.com/OpenPrinting/go-mfp/util/uuid"

	"github.com/mzyy94/airsane/internal/metrics"
)

// Letter width by A4 height, used when the device reports no scan area.
const (
	defaultMaxWidthMM  = 216
	defaultMaxHeightMM = 297
	minSizeMM          = 10
)

// ESCLAdapter implements abstract.Scanner for a SANE device.
type ESCLAdapter struct {
	scanner  *Scanner
	devCaps  Capabilities
	caps     *abstract.ScannerCapabilities
	adfEmpty atomic.Bool // set after a feeder scan completes
}

// NewESCLAdapter creates an eSCL adapter wrapping the given connected
// Scanner.
func NewESCLAdapter(s *Scanner) (*ESCLAdapter, error) {
	devCaps, err := s.Capabilities()
	if err != nil {
		return nil, err
	}
	a := &ESCLAdapter{scanner: s, devCaps: devCaps}
	a.caps = a.buildCapabilities()
	return a, nil
}

func (a *ESCLAdapter) buildCapabilities() *abstract.ScannerCapabilities {
	dc := a.devCaps

	var modes []abstract.ColorMode
	for _, m := range dc.ColorModes {
		modes = append(modes, esclColorMode(m))
	}
	if len(modes) == 0 {
		modes = []abstract.ColorMode{abstract.ColorModeColor}
	}

	dpis := dc.Resolutions
	if len(dpis) == 0 {
		dpis = []int{300}
	}
	resolutions := make([]abstract.Resolution, len(dpis))
	for i, dpi := range dpis {
		resolutions[i] = abstract.Resolution{XResolution: dpi, YResolution: dpi}
	}
	maxDPI := slices.Max(dpis)

	profile := abstract.SettingsProfile{
		ColorModes:  generic.MakeBitset(modes...),
		Depths:      generic.MakeBitset(abstract.ColorDepth8),
		Resolutions: resolutions,
	}
	if slices.Contains(dc.ColorModes, ColorLineart) {
		profile.BinaryRenderings = generic.MakeBitset(abstract.BinaryRenderingThreshold)
	}

	maxWidth, maxHeight := dc.MaxWidth, dc.MaxHeight
	if maxWidth <= 0 {
		maxWidth = defaultMaxWidthMM
	}
	if maxHeight <= 0 {
		maxHeight = defaultMaxHeightMM
	}
	input := &abstract.InputCapabilities{
		MinWidth:              minSizeMM * abstract.Millimeter,
		MaxWidth:              mmToDim(maxWidth),
		MinHeight:             minSizeMM * abstract.Millimeter,
		MaxHeight:             mmToDim(maxHeight),
		MaxOpticalXResolution: maxDPI,
		MaxOpticalYResolution: maxDPI,
		Intents: generic.MakeBitset(
			abstract.IntentDocument,
			abstract.IntentPhoto,
			abstract.IntentTextAndGraphic,
		),
		Profiles: []abstract.SettingsProfile{profile},
	}

	caps := &abstract.ScannerCapabilities{
		UUID:            uuid.SHA1(uuid.NameSpaceDNS, "airsane."+a.scanner.DeviceName()),
		MakeAndModel:    a.scanner.Name(),
		Manufacturer:    a.scanner.Vendor(),
		SerialNumber:    a.scanner.DeviceName(),
		DocumentFormats: []string{FormatPNG, FormatJPEG, FormatPDF},
	}
	if dc.HasSource(SourceFlatbed) {
		caps.Platen = input
	}
	if dc.HasSource(SourceADF) {
		caps.ADFCapacity = 50
		caps.ADFSimplex = input
	}
	if dc.HasSource(SourceADFDuplex) {
		caps.ADFCapacity = 50
		caps.ADFDuplex = input
	}
	return caps
}

func mmToDim(mm float64) abstract.Dimension {
	return abstract.Dimension(math.Round(mm * float64(abstract.Millimeter)))
}

func dimToMM(d abstract.Dimension) float64 {
	return float64(d) / float64(abstract.Millimeter)
}

func esclColorMode(m ColorMode) abstract.ColorMode {
	switch m {
	case ColorGray:
		return abstract.ColorModeMono
	case ColorLineart:
		return abstract.ColorModeBinary
	}
	return abstract.ColorModeColor
}

// Capabilities returns the scanner capabilities.
func (a *ESCLAdapter) Capabilities() *abstract.ScannerCapabilities {
	return a.caps
}

// Scan maps an eSCL request onto the device options and executes the
// scan.
func (a *ESCLAdapter) Scan(ctx context.Context, req abstract.ScannerRequest) (abstract.Document, error) {
	if err := req.Validate(a.caps); err != nil {
		return nil, err
	}

	cfg := mapScanConfig(req, a.devCaps)
	slog.Info("scan requested",
		"colorMode", req.ColorMode,
		"resolution", req.Resolution,
		"adfMode", req.ADFMode,
		"format", req.DocumentFormat,
		"config", cfg.String(),
	)

	start := time.Now()
	pages, err := a.scanner.Scan(ctx, cfg, nil)
	metrics.ObserveScan("escl", start, err)
	if cfg.Source.IsFeeder() {
		a.adfEmpty.Store(true)
	}
	if err != nil {
		return nil, err
	}

	dpi := pages[0].Resolution
	if dpi == 0 {
		dpi = max(req.Resolution.XResolution, 300)
	}
	res := abstract.Resolution{XResolution: dpi, YResolution: dpi}

	if req.DocumentFormat == FormatPDF {
		data, err := GeneratePDF(pages, dpi)
		if err != nil {
			return nil, err
		}
		return &pageDocument{res: res, files: []docFile{{FormatPDF, data}}}, nil
	}

	format := FormatPNG
	if req.DocumentFormat == FormatJPEG {
		format = FormatJPEG
	}
	doc := &pageDocument{res: res}
	for _, p := range pages {
		var buf bytes.Buffer
		if err := EncodePage(&buf, p, format); err != nil {
			return nil, err
		}
		doc.files = append(doc.files, docFile{format, buf.Bytes()})
	}

	// Apply filter for other formats
	if req.DocumentFormat != "" && req.DocumentFormat != format {
		return abstract.NewFilter(doc, abstract.FilterOptions{
			OutputFormat: req.DocumentFormat,
		}), nil
	}
	return doc, nil
}

// CheckADFStatus queries the device for paper presence.
// On error, falls back to cached state from the last scan session.
func (a *ESCLAdapter) CheckADFStatus() (bool, error) {
	hasPaper, err := a.scanner.CheckADFStatus()
	if err != nil {
		if a.adfEmpty.Load() || errors.Is(err, ErrBusy) {
			slog.Debug("ADF status check failed, using cached state", "empty", a.adfEmpty.Load(), "err", err)
			return !a.adfEmpty.Load(), nil
		}
		return false, err
	}
	a.adfEmpty.Store(!hasPaper)
	return hasPaper, nil
}

// HasADF reports whether the device has a document feeder.
func (a *ESCLAdapter) HasADF() bool {
	return a.caps.ADFSimplex != nil || a.caps.ADFDuplex != nil
}

// TXTRecords returns the _uscan._tcp TXT records advertising the device
// under name.
func (a *ESCLAdapter) TXTRecords(name string) []string {
	var cs []string
	for _, m := range a.devCaps.ColorModes {
		switch m {
		case ColorColor:
			cs = append(cs, "color")
		case ColorGray:
			cs = append(cs, "grayscale")
		case ColorLineart:
			cs = append(cs, "binary")
		}
	}
	if len(cs) == 0 {
		cs = []string{"color"}
	}
	var is []string
	if a.caps.Platen != nil {
		is = append(is, "platen")
	}
	if a.HasADF() {
		is = append(is, "adf")
	}
	duplex := "F"
	if a.caps.ADFDuplex != nil {
		duplex = "T"
	}
	return []string{
		"txtvers=1",
		"ty=" + name,
		"pdl=" + strings.Join(a.caps.DocumentFormats, ","),
		"cs=" + strings.Join(cs, ","),
		"is=" + strings.Join(is, ","),
		"duplex=" + duplex,
		"rs=eSCL",
	}
}

// Close closes the device.
func (a *ESCLAdapter) Close() error {
	a.scanner.Disconnect()
	return nil
}

// mapScanConfig converts an eSCL ScannerRequest to a ScanConfig.
func mapScanConfig(req abstract.ScannerRequest, caps Capabilities) ScanConfig {
	cfg := DefaultScanConfig()

	switch req.ColorMode {
	case abstract.ColorModeColor:
		cfg.ColorMode = ColorColor
	case abstract.ColorModeMono:
		cfg.ColorMode = ColorGray
	case abstract.ColorModeBinary:
		cfg.ColorMode = ColorLineart
	}

	cfg.Resolution = max(req.Resolution.XResolution, 0)

	switch {
	case req.ADFMode == abstract.ADFModeDuplex:
		cfg.Source = SourceADFDuplex
	case req.ADFMode == abstract.ADFModeSimplex:
		cfg.Source = SourceADF
	case caps.HasSource(SourceFlatbed):
		cfg.Source = SourceFlatbed
	case caps.HasSource(SourceADF):
		cfg.Source = SourceADF
	}

	if req.Region.Width > 0 && req.Region.Height > 0 {
		cfg.Area = &Area{
			X:      dimToMM(req.Region.XOffset),
			Y:      dimToMM(req.Region.YOffset),
			Width:  dimToMM(req.Region.Width),
			Height: dimToMM(req.Region.Height),
		}
	}
	return cfg
}

// docFile is one encoded output file.
type docFile struct {
	format string
	data   []byte
}

// pageDocument wraps encoded pages as an abstract.Document.
type pageDocument struct {
	res   abstract.Resolution
	files []docFile
	idx   int
}

func (d *pageDocument) Resolution() abstract.Resolution { return d.res }

func (d *pageDocument) Next() (abstract.DocumentFile, error) {
	if d.idx >= len(d.files) {
		return nil, io.EOF
	}
	f := d.files[d.idx]
	d.idx++
	return &pageFile{Reader: bytes.NewReader(f.data), format: f.format}, nil
}

func (d *pageDocument) Close() error { return nil }

// pageFile wraps a single encoded file as an abstract.DocumentFile.
type pageFile struct {
	*bytes.Reader
	format string
}

func (f *pageFile) Format() string { return f.format }
