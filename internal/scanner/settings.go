package scanner

import (
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"

	"github.com/mzyy94/airsane/internal/sane"
)

// ColorMode is a scan mode as named by the standard "mode" option.
type ColorMode string

const (
	ColorAuto    ColorMode = ""
	ColorColor   ColorMode = "Color"
	ColorGray    ColorMode = "Gray"
	ColorLineart ColorMode = "Lineart"
)

// Source is a scan source as named by the standard "source" option.
type Source string

const (
	SourceAuto      Source = ""
	SourceFlatbed   Source = "Flatbed"
	SourceADF       Source = "ADF"
	SourceADFDuplex Source = "ADF Duplex"
)

// IsFeeder reports whether the source takes paper from a document feeder.
func (s Source) IsFeeder() bool {
	return s == SourceADF || s == SourceADFDuplex
}

// Area is a scan window in millimeters from the top-left corner.
type Area struct {
	X, Y, Width, Height float64
}

// ScanConfig holds the settings applied before a scan. Zero fields keep
// the device's current value.
type ScanConfig struct {
	ColorMode  ColorMode
	Resolution int
	Source     Source
	Area       *Area
}

// DefaultScanConfig returns a config that keeps every device setting.
func DefaultScanConfig() ScanConfig {
	return ScanConfig{}
}

func (c ScanConfig) String() string {
	s := fmt.Sprintf("mode=%q resolution=%d source=%q", c.ColorMode, c.Resolution, c.Source)
	if c.Area != nil {
		s += fmt.Sprintf(" area=%gx%g+%g+%g", c.Area.Width, c.Area.Height, c.Area.X, c.Area.Y)
	}
	return s
}

var modeAliases = map[ColorMode][]string{
	ColorColor:   {"color", "colour", "24bit color"},
	ColorGray:    {"gray", "grey", "grayscale", "greyscale"},
	ColorLineart: {"lineart", "binary", "black & white", "halftone"},
}

// normalizeMode maps a backend mode string to a ColorMode.
func normalizeMode(s string) (ColorMode, bool) {
	l := strings.ToLower(s)
	for mode, aliases := range modeAliases {
		if slices.Contains(aliases, l) {
			return mode, true
		}
	}
	return ColorAuto, false
}

// normalizeSource maps a backend source string to a Source.
func normalizeSource(s string) (Source, bool) {
	l := strings.ToLower(s)
	switch {
	case strings.Contains(l, "duplex"):
		return SourceADFDuplex, true
	case strings.Contains(l, "adf"), strings.Contains(l, "feeder"):
		if strings.Contains(l, "back") {
			return SourceAuto, false
		}
		return SourceADF, true
	case strings.Contains(l, "flatbed"), strings.Contains(l, "platen"), l == "normal":
		return SourceFlatbed, true
	}
	return SourceAuto, false
}

// ParseColorMode parses a user supplied mode such as "gray" or "bw".
// Empty and "auto" keep the device setting.
func ParseColorMode(s string) (ColorMode, error) {
	switch strings.ToLower(s) {
	case "", "auto":
		return ColorAuto, nil
	case "bw":
		return ColorLineart, nil
	}
	if m, ok := normalizeMode(s); ok {
		return m, nil
	}
	return ColorAuto, fmt.Errorf("unknown color mode %q", s)
}

// ParseSource parses a user supplied source such as "flatbed", "adf" or
// "duplex". Empty and "auto" keep the device setting.
func ParseSource(s string) (Source, error) {
	switch strings.ToLower(s) {
	case "", "auto":
		return SourceAuto, nil
	case "duplex":
		return SourceADFDuplex, nil
	}
	if src, ok := normalizeSource(s); ok {
		return src, nil
	}
	return SourceAuto, fmt.Errorf("unknown source %q", s)
}

func matchMode(choices []string, want string) (string, bool) {
	for _, c := range choices {
		if strings.EqualFold(c, want) {
			return c, true
		}
	}
	for _, c := range choices {
		if m, ok := normalizeMode(c); ok && string(m) == want {
			return c, true
		}
	}
	return "", false
}

func matchSource(choices []string, want string) (string, bool) {
	for _, c := range choices {
		if strings.EqualFold(c, want) {
			return c, true
		}
	}
	for _, c := range choices {
		if src, ok := normalizeSource(c); ok && string(src) == want {
			return c, true
		}
	}
	return "", false
}

func strs(list []sane.Str) []string {
	out := make([]string, len(list))
	for i, s := range list {
		out[i] = s.String()
	}
	return out
}

// apply writes cfg to the device. Options the device lacks are skipped.
func (s *Scanner) apply(cfg ScanConfig) error {
	// source first: it can change the constraints of the others
	if cfg.Source != SourceAuto {
		if err := s.setChoice("source", string(cfg.Source), matchSource); err != nil {
			return err
		}
	}
	if cfg.ColorMode != ColorAuto {
		if err := s.setChoice("mode", string(cfg.ColorMode), matchMode); err != nil {
			return err
		}
	}
	if cfg.Resolution > 0 {
		if err := s.setNumber("resolution", float64(cfg.Resolution)); err != nil {
			return err
		}
	}
	if a := cfg.Area; a != nil {
		for _, o := range []struct {
			name string
			v    float64
		}{
			{"tl-x", a.X},
			{"tl-y", a.Y},
			{"br-x", a.X + a.Width},
			{"br-y", a.Y + a.Height},
		} {
			if err := s.setNumber(o.name, o.v); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Scanner) settable(name string) (*sane.Option, bool) {
	o, ok := s.dev.OptionByName(name)
	if !ok || !o.IsActive() || !o.IsSettable() {
		slog.Debug("option not available", "name", name)
		return nil, false
	}
	return o, true
}

func (s *Scanner) setChoice(name, want string, match func([]string, string) (string, bool)) error {
	o, ok := s.settable(name)
	if !ok || o.Type() != sane.TypeString {
		return nil
	}
	value := want
	if c := o.Constraint(); c.Kind == sane.ConstraintStringList {
		choices := strs(c.Strings)
		if value, ok = match(choices, want); !ok {
			return fmt.Errorf("%s %q not supported (have %s)", name, want, strings.Join(choices, ", "))
		}
	}
	if _, _, err := o.Set(sane.StringValue(sane.StrOf(value))); err != nil {
		return fmt.Errorf("set %s: %w", name, err)
	}
	return nil
}

// setNumber writes v, snapped to the option's constraint, to an int or
// fixed option.
func (s *Scanner) setNumber(name string, v float64) error {
	o, ok := s.settable(name)
	if !ok {
		return nil
	}
	var val sane.Value
	switch o.Type() {
	case sane.TypeInt:
		val = sane.IntValue(int32(math.Round(snap(o.Constraint(), v, false))))
	case sane.TypeFixed:
		val = sane.FixedValue(sane.FixedFromFloat(snap(o.Constraint(), v, true)))
	default:
		return nil
	}
	info, kept, err := o.Set(val)
	if err != nil {
		return fmt.Errorf("set %s: %w", name, err)
	}
	if info.Has(sane.InfoInexact) {
		slog.Debug("option rounded", "name", name, "want", v, "got", kept.String())
	}
	return nil
}

// snap returns the allowed value nearest to v.
func snap(c sane.Constraint, v float64, fixed bool) float64 {
	conv := func(w int32) float64 {
		if fixed {
			return sane.FixedFromWord(w).Float64()
		}
		return float64(w)
	}
	switch c.Kind {
	case sane.ConstraintIntList, sane.ConstraintFixedList:
		if len(c.Words) == 0 {
			return v
		}
		best := conv(c.Words[0])
		for _, w := range c.Words[1:] {
			if f := conv(w); math.Abs(f-v) < math.Abs(best-v) {
				best = f
			}
		}
		return best
	case sane.ConstraintIntRange, sane.ConstraintFixedRange:
		lo, hi, q := conv(c.Range.Min), conv(c.Range.Max), conv(c.Range.Quant)
		v = math.Max(lo, math.Min(hi, v))
		if q > 0 {
			v = lo + math.Round((v-lo)/q)*q
			v = math.Min(v, hi)
		}
	}
	return v
}

// readNumber reads an int or fixed option as float64.
func (s *Scanner) readNumber(name string) (float64, bool) {
	o, ok := s.dev.OptionByName(name)
	if !ok || !o.IsActive() {
		return 0, false
	}
	v, ok, err := o.Get()
	if err != nil || !ok {
		return 0, false
	}
	if i, ok := v.Int(); ok {
		return float64(i), true
	}
	if f, ok := v.Fixed(); ok {
		return f.Float64(), true
	}
	return 0, false
}

func (s *Scanner) readString(name string) (string, bool) {
	o, ok := s.dev.OptionByName(name)
	if !ok || !o.IsActive() {
		return "", false
	}
	v, ok, err := o.Get()
	if err != nil || !ok {
		return "", false
	}
	str, ok := v.Str()
	return str.String(), ok
}

func (s *Scanner) currentResolution() int {
	if dpi, ok := s.readNumber("resolution"); ok {
		return int(math.Round(dpi))
	}
	return 0
}

func (s *Scanner) feederSelected() bool {
	src, ok := s.readString("source")
	if !ok {
		return false
	}
	n, _ := normalizeSource(src)
	return n.IsFeeder()
}

// Capabilities describes what the device can be set to.
type Capabilities struct {
	ColorModes  []ColorMode
	Resolutions []int
	Sources     []Source
	// MaxWidth and MaxHeight are in millimeters. Zero when unknown.
	MaxWidth, MaxHeight float64
}

// HasSource reports whether src is available.
func (c Capabilities) HasSource(src Source) bool {
	return slices.Contains(c.Sources, src)
}

var commonResolutions = []int{75, 100, 150, 200, 300, 400, 600, 1200}

// Capabilities reads the device capabilities from its option
// constraints.
func (s *Scanner) Capabilities() (Capabilities, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dev == nil {
		return Capabilities{}, ErrNotConnected
	}
	var caps Capabilities
	for _, o := range s.dev.Options() {
		c := o.Constraint()
		switch o.Name().String() {
		case "mode":
			for _, m := range strs(c.Strings) {
				if mode, ok := normalizeMode(m); ok && !slices.Contains(caps.ColorModes, mode) {
					caps.ColorModes = append(caps.ColorModes, mode)
				}
			}
		case "source":
			for _, src := range strs(c.Strings) {
				if n, ok := normalizeSource(src); ok && !slices.Contains(caps.Sources, n) {
					caps.Sources = append(caps.Sources, n)
				}
			}
		case "resolution":
			caps.Resolutions = resolutions(c)
		case "br-x":
			caps.MaxWidth = rangeMax(c)
		case "br-y":
			caps.MaxHeight = rangeMax(c)
		}
	}
	if len(caps.Sources) == 0 {
		caps.Sources = []Source{SourceFlatbed}
	}
	return caps, nil
}

func resolutions(c sane.Constraint) []int {
	var out []int
	switch c.Kind {
	case sane.ConstraintIntList:
		for _, w := range c.Words {
			out = append(out, int(w))
		}
	case sane.ConstraintFixedList:
		for _, f := range c.Fixeds() {
			out = append(out, int(math.Round(f.Float64())))
		}
	case sane.ConstraintIntRange, sane.ConstraintFixedRange:
		fixed := c.Kind == sane.ConstraintFixedRange
		for _, dpi := range commonResolutions {
			if snap(c, float64(dpi), fixed) == float64(dpi) {
				out = append(out, dpi)
			}
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func rangeMax(c sane.Constraint) float64 {
	switch c.Kind {
	case sane.ConstraintFixedRange:
		_, hi, _ := c.FixedRange()
		return hi.Float64()
	case sane.ConstraintIntRange:
		return float64(c.Range.Max)
	}
	return 0
}
