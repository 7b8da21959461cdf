// go-mfp's imgconv needs libjpeg/libpng through cgo. For a CGO_ENABLED=0
// build (libsane backend unavailable, mock backend only) copy this file
// into the vendored package:
//
//	go mod vendor
//	cp build/_imgconv_nocgo.go vendor/github.com/OpenPrinting/go-mfp/imgconv/imgconv_nocgo.go
//	CGO_ENABLED=0 go build -mod=vendor ./cmd/airsane

//go:build !cgo

package imgconv

import (
	"errors"
	"image/color"
	"io"
)

var errNoCGO = errors.New("imgconv: JPEG/PNG support requires CGO (libjpeg/libpng)")

func NewJPEGReader(input io.Reader) (Decoder, error) {
	return nil, errNoCGO
}

func NewJPEGWriter(output io.Writer, wid, hei int, model color.Model, quality int) (Encoder, error) {
	return nil, errNoCGO
}

func NewPNGReader(input io.Reader) (Decoder, error) {
	return nil, errNoCGO
}

func NewPNGWriter(output io.Writer, wid, hei int, model color.Model) (Encoder, error) {
	return nil, errNoCGO
}
