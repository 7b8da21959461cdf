package sane

import (
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
)

// bwPalette maps pixel value 1 to black.
var bwPalette = color.Palette{color.White, color.Black}

// Image converts the decoded data to an image.Image. Black and white
// becomes *image.Paletted, gray *image.Gray or *image.Gray16, and RGB
// *image.RGBA or *image.RGBA64. Samples wider than 16 bits are not
// supported.
func (img *DecodedImage) Image() (image.Image, error) {
	w, h := int(img.Width), int(img.Height)
	rect := image.Rect(0, 0, w, h)
	switch f := img.Format; {
	case f.Kind == KindBlackAndWhite:
		out := image.NewPaletted(rect, bwPalette)
		if img.Expanded {
			copy(out.Pix, img.Data)
			return out, nil
		}
		for i := range out.Pix {
			out.Pix[i] = img.Data[i/8] >> (7 - i%8) & 1
		}
		return out, nil

	case f.Kind == KindGray && f.Bytes == 1:
		out := image.NewGray(rect)
		copy(out.Pix, img.Data)
		return out, nil

	case f.Kind == KindGray && f.Bytes == 2:
		out := image.NewGray16(rect)
		for i := 0; i < w*h; i++ {
			binary.BigEndian.PutUint16(out.Pix[2*i:], binary.NativeEndian.Uint16(img.Data[2*i:]))
		}
		return out, nil

	case f.Kind == KindRGB && f.Bytes == 1:
		out := image.NewRGBA(rect)
		for i := 0; i < w*h; i++ {
			copy(out.Pix[4*i:4*i+3], img.Data[3*i:3*i+3])
			out.Pix[4*i+3] = 0xff
		}
		return out, nil

	case f.Kind == KindRGB && f.Bytes == 2:
		out := image.NewRGBA64(rect)
		for i := 0; i < w*h; i++ {
			for c := range 3 {
				binary.BigEndian.PutUint16(out.Pix[8*i+2*c:], binary.NativeEndian.Uint16(img.Data[6*i+2*c:]))
			}
			out.Pix[8*i+6], out.Pix[8*i+7] = 0xff, 0xff
		}
		return out, nil
	}
	return nil, fmt.Errorf("sane: cannot convert %s image", img.Format)
}
