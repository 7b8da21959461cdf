package sane

import (
	"fmt"
	"math"
)

// ImageKind is the pixel layout of a DecodedImage.
type ImageKind int

const (
	// KindBlackAndWhite pixels are packed MSB first, one bit each, unless
	// the image is Expanded. A set bit or byte 1 is black.
	KindBlackAndWhite ImageKind = iota + 1
	// KindGray pixels are Bytes bytes each, in native byte order.
	KindGray
	// KindRGB pixels are three interleaved channels of Bytes bytes each.
	KindRGB
)

// DecodedImageFormat describes the data of a DecodedImage.
type DecodedImageFormat struct {
	Kind ImageKind
	// Bytes is bytes per pixel for gray and per channel for RGB.
	Bytes uint32
}

func (f DecodedImageFormat) String() string {
	switch f.Kind {
	case KindBlackAndWhite:
		return "black-and-white"
	case KindGray:
		return fmt.Sprintf("gray%d", f.Bytes*8)
	case KindRGB:
		return fmt.Sprintf("rgb%d", f.Bytes*8)
	}
	return "invalid"
}

// DecodedImage is a complete image with row padding removed.
type DecodedImage struct {
	Data   []byte
	Format DecodedImageFormat
	Width  uint32
	Height uint32
	// Expanded is set for black and white images with one byte per pixel.
	Expanded bool
}

// DecodeErrorKind classifies a DecodeError.
type DecodeErrorKind int

const (
	// AlreadyDone means the image was complete before the write.
	AlreadyDone DecodeErrorKind = iota + 1
	// DuplicateChannel means a color band arrived twice.
	DuplicateChannel
	// UnexpectedParameters means a band does not match the earlier ones.
	UnexpectedParameters
	// UnsupportedParameters means a valid layout this decoder cannot handle.
	UnsupportedParameters
	// InvalidParameters means the parameters contradict the frame data.
	InvalidParameters
)

// DecodeError is returned by FrameDecoder.Write. The decoder is unchanged
// after a failed write.
type DecodeError struct {
	Kind   DecodeErrorKind
	Reason string
}

func (e *DecodeError) Error() string {
	var kind string
	switch e.Kind {
	case AlreadyDone:
		kind = "image already complete"
	case DuplicateChannel:
		kind = "duplicate color channel"
	case UnexpectedParameters:
		kind = "unexpected frame parameters"
	case UnsupportedParameters:
		kind = "unsupported frame parameters"
	case InvalidParameters:
		kind = "invalid frame parameters"
	}
	if e.Reason == "" {
		return "sane: " + kind
	}
	return "sane: " + kind + ": " + e.Reason
}

// Is matches DecodeErrors of the same kind.
func (e *DecodeError) Is(target error) bool {
	t, ok := target.(*DecodeError)
	return ok && t.Reason == "" && t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrAlreadyDone           = &DecodeError{Kind: AlreadyDone}
	ErrDuplicateChannel      = &DecodeError{Kind: DuplicateChannel}
	ErrUnexpectedParameters  = &DecodeError{Kind: UnexpectedParameters}
	ErrUnsupportedParameters = &DecodeError{Kind: UnsupportedParameters}
	ErrInvalidParameters     = &DecodeError{Kind: InvalidParameters}
)

// IncompleteError is returned by IntoImage before the image is complete.
// Buffer holds the decoder's storage for reuse.
type IncompleteError struct {
	Buffer []byte
}

func (e *IncompleteError) Error() string { return "sane: image is not complete" }

// FrameDecoderOptions configure NewFrameDecoder.
type FrameDecoderOptions struct {
	// Buffer is reused as pixel storage. Its contents are discarded.
	Buffer []byte
	// BlackAndWhiteAsBytes stores one byte per black and white pixel
	// instead of packing eight pixels per byte.
	BlackAndWhiteAsBytes bool
}

type decoderState int

const (
	stateInitial decoderState = iota
	stateRGBParts
	stateDone
)

// FrameDecoder assembles the frames of one scan into a DecodedImage.
type FrameDecoder struct {
	state    decoderState
	asBytes  bool
	buf      []byte
	format   DecodedImageFormat
	width    uint32
	height   uint32
	channels [3]bool
}

// NewFrameDecoder returns a decoder in its initial state.
func NewFrameDecoder(opts FrameDecoderOptions) *FrameDecoder {
	return &FrameDecoder{buf: opts.Buffer[:0], asBytes: opts.BlackAndWhiteAsBytes}
}

// Done reports whether the image is complete.
func (d *FrameDecoder) Done() bool { return d.state == stateDone }

// Write adds one frame with the parameters it was read with.
func (d *FrameDecoder) Write(frame []byte, p Parameters) error {
	if d.state == stateDone {
		return ErrAlreadyDone
	}
	if p.Depth == 0 {
		return &DecodeError{Kind: InvalidParameters, Reason: "depth is zero"}
	}
	if p.BytesPerLine == 0 {
		return &DecodeError{Kind: InvalidParameters, Reason: "bytes per line is zero"}
	}
	if uint64(len(frame)) > math.MaxUint32 {
		return &DecodeError{Kind: InvalidParameters, Reason: "frame too large"}
	}
	bpl := int(p.BytesPerLine)
	if len(frame)%bpl != 0 {
		return &DecodeError{Kind: InvalidParameters, Reason: "frame is not a whole number of lines"}
	}
	width := p.PixelsPerLine
	height := uint32(len(frame) / bpl)
	if lines, ok := p.KnownLines(); ok && lines != height {
		return &DecodeError{Kind: InvalidParameters, Reason: fmt.Sprintf("got %d lines, want %d", height, lines)}
	}

	switch {
	case d.state == stateInitial && p.Format == FrameGray && p.Depth == 1:
		return d.writeBlackAndWhite(frame, bpl, width, height)
	case d.state == stateInitial && p.Format == FrameGray:
		return d.writeInterleaved(frame, p, width, height, 1, KindGray)
	case d.state == stateInitial && p.Format == FrameRGB:
		return d.writeInterleaved(frame, p, width, height, 3, KindRGB)
	case p.Format == FrameRed || p.Format == FrameGreen || p.Format == FrameBlue:
		if d.state == stateInitial || d.state == stateRGBParts {
			return d.writeChannel(frame, p, width, height)
		}
	}
	return &DecodeError{Kind: UnsupportedParameters, Reason: fmt.Sprintf("%s frame", p.Format)}
}

func (d *FrameDecoder) writeBlackAndWhite(frame []byte, bpl int, width, height uint32) error {
	if width%8 != 0 {
		return &DecodeError{Kind: UnsupportedParameters, Reason: "line width is not a multiple of 8 pixels"}
	}
	row := int(width / 8)
	if row > bpl {
		return &DecodeError{Kind: InvalidParameters, Reason: "line is wider than bytes per line"}
	}
	for y := range int(height) {
		line := frame[y*bpl : y*bpl+row]
		for _, b := range line {
			if !d.asBytes {
				d.buf = append(d.buf, ^b)
				continue
			}
			for bit := 7; bit >= 0; bit-- {
				d.buf = append(d.buf, ^b>>bit&1)
			}
		}
	}
	d.finish(DecodedImageFormat{Kind: KindBlackAndWhite}, width, height)
	return nil
}

func (d *FrameDecoder) writeInterleaved(frame []byte, p Parameters, width, height uint32, channels int, kind ImageKind) error {
	if p.Depth%8 != 0 {
		return &DecodeError{Kind: UnsupportedParameters, Reason: fmt.Sprintf("depth %d", p.Depth)}
	}
	bytes := p.Depth / 8
	bpl := int(p.BytesPerLine)
	row := int(width) * channels * int(bytes)
	if row > bpl {
		return &DecodeError{Kind: InvalidParameters, Reason: "line is wider than bytes per line"}
	}
	for y := range int(height) {
		d.buf = append(d.buf, frame[y*bpl:y*bpl+row]...)
	}
	d.finish(DecodedImageFormat{Kind: kind, Bytes: bytes}, width, height)
	return nil
}

func (d *FrameDecoder) writeChannel(frame []byte, p Parameters, width, height uint32) error {
	ch := int(p.Format - FrameRed)
	if d.state == stateInitial {
		if p.Depth%8 != 0 {
			return &DecodeError{Kind: UnsupportedParameters, Reason: fmt.Sprintf("depth %d", p.Depth)}
		}
	} else {
		if d.channels[ch] {
			return &DecodeError{Kind: DuplicateChannel, Reason: p.Format.String()}
		}
		if width != d.width || height != d.height {
			return &DecodeError{Kind: UnexpectedParameters, Reason: "band size differs"}
		}
		if p.Depth%8 != 0 || p.Depth/8 != d.format.Bytes {
			return &DecodeError{Kind: UnexpectedParameters, Reason: "band depth differs"}
		}
	}

	bpc := int(p.Depth / 8)
	bpl := int(p.BytesPerLine)
	if int(width)*bpc > bpl {
		return &DecodeError{Kind: InvalidParameters, Reason: "line is wider than bytes per line"}
	}
	if d.state == stateInitial {
		n := int(width) * int(height) * 3 * bpc
		d.buf = append(d.buf[:0], make([]byte, n)...)
		d.state = stateRGBParts
		d.format = DecodedImageFormat{Kind: KindRGB, Bytes: uint32(bpc)}
		d.width, d.height = width, height
	}

	pixel := 3 * bpc
	for y := range int(height) {
		src := frame[y*bpl:]
		dst := d.buf[y*int(width)*pixel:]
		for x := range int(width) {
			copy(dst[x*pixel+ch*bpc:x*pixel+ch*bpc+bpc], src[x*bpc:x*bpc+bpc])
		}
	}
	d.channels[ch] = true
	if d.channels[0] && d.channels[1] && d.channels[2] {
		d.state = stateDone
	}
	return nil
}

func (d *FrameDecoder) finish(f DecodedImageFormat, width, height uint32) {
	d.format = f
	d.width, d.height = width, height
	d.state = stateDone
}

// IntoImage returns the completed image. Before completion it returns an
// *IncompleteError carrying the buffer.
func (d *FrameDecoder) IntoImage() (*DecodedImage, error) {
	if d.state != stateDone {
		return nil, &IncompleteError{Buffer: d.buf}
	}
	return &DecodedImage{
		Data:     d.buf,
		Format:   d.format,
		Width:    d.width,
		Height:   d.height,
		Expanded: d.format.Kind == KindBlackAndWhite && d.asBytes,
	}, nil
}
