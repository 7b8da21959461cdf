package mock

import (
	"bytes"
	"encoding/binary"

	"github.com/mzyy94/airsane/internal/sane/sys"
)

// DemoDeviceName is the name of the device served by Demo.
const DemoDeviceName = "mock:demo"

// Demo returns a backend with one virtual flatbed and document feeder
// scanner. Frames are generated from the current mode, resolution and
// source option values. The feeder holds three sheets and refills after
// reporting it is empty.
func Demo() *Backend {
	dev := NewDevice(DemoDeviceName, "AirSane", "Virtual Scanner", "flatbed scanner",
		GroupOption("Scan Mode"),
		StringListOption("mode", "Color", 16, "Color", "Gray", "Lineart"),
		WordListOption("resolution", 150, sys.UnitDPI, 75, 150, 300, 600),
		StringListOption("source", "Flatbed", 32, "Flatbed", "ADF", "ADF Duplex"),
		GroupOption("Sensors"),
		BoolOption("page-loaded", true, sys.CapHardSelect|sys.CapSoftDetect),
		BoolOption("scan", false, sys.CapHardSelect|sys.CapSoftDetect),
	)
	sheets := 3
	dev.Next = func(d *Device) (Frame, bool) {
		source := textValue(d, "source")
		if source != "Flatbed" {
			if sheets == 0 {
				sheets = 3
				return Frame{}, false
			}
			sheets--
		}
		return demoFrame(textValue(d, "mode"), int(wordValue(d, "resolution"))), true
	}
	dev.Idle = demoFrame("Color", 150).Params
	dev.Idle.Lines = -1
	return New(dev)
}

func demoFrame(mode string, dpi int) Frame {
	// A6 portrait.
	width := 105 * dpi * 10 / 254 &^ 7
	lines := 148 * dpi * 10 / 254
	switch mode {
	case "Gray":
		return GrayFrame(width, lines, func(x, y int) byte { return byte(x * 255 / width) })
	case "Lineart":
		bpl := width / 8
		data := make([]byte, 0, bpl*lines)
		for y := range lines {
			for x := range bpl {
				if (x/4+y/32)%2 == 0 {
					data = append(data, 0xff)
				} else {
					data = append(data, 0x00)
				}
			}
		}
		return Frame{
			Params: sys.Parameters{
				Format: sys.FrameGray, LastFrame: true,
				BytesPerLine: int32(bpl), PixelsPerLine: int32(width),
				Lines: int32(lines), Depth: 1,
			},
			Data: data,
		}
	}
	data := make([]byte, 0, width*lines*3)
	for y := range lines {
		for x := range width {
			data = append(data, byte(x*255/width), byte(y*255/lines), 0x80)
		}
	}
	return Frame{
		Params: sys.Parameters{
			Format: sys.FrameRGB, LastFrame: true,
			BytesPerLine: int32(width * 3), PixelsPerLine: int32(width),
			Lines: int32(lines), Depth: 8,
		},
		Data: data,
	}
}

func find(d *Device, name string) *Option {
	for _, o := range d.Options {
		if string(o.Descriptor.Name) == name {
			return o
		}
	}
	return nil
}

func textValue(d *Device, name string) string {
	o := find(d, name)
	if o == nil {
		return ""
	}
	if i := bytes.IndexByte(o.Value, 0); i >= 0 {
		return string(o.Value[:i])
	}
	return string(o.Value)
}

func wordValue(d *Device, name string) int32 {
	o := find(d, name)
	if o == nil || len(o.Value) < 4 {
		return 0
	}
	return int32(binary.NativeEndian.Uint32(o.Value))
}
