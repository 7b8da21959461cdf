package sane

import (
	"math"
	"strconv"

	"github.com/mzyy94/airsane/internal/sane/sys"
)

// Fixed is a signed Q15.16 fixed-point number.
type Fixed int32

const fixedOne = 1 << sys.FixedScaleShift

// FixedFromWord reinterprets a raw word.
func FixedFromWord(w int32) Fixed { return Fixed(w) }

// FixedFromInt converts i exactly. i must be within [-32768, 32767].
func FixedFromInt(i int16) Fixed { return Fixed(int32(i) << sys.FixedScaleShift) }

// FixedFromFloat rounds f to the nearest representable value. Out of
// range inputs saturate.
func FixedFromFloat(f float64) Fixed {
	v := math.Round(f * fixedOne)
	switch {
	case math.IsNaN(v):
		return 0
	case v >= math.MaxInt32:
		return math.MaxInt32
	case v <= math.MinInt32:
		return math.MinInt32
	}
	return Fixed(v)
}

// Word returns the raw representation.
func (f Fixed) Word() int32 { return int32(f) }

// Float64 returns the exact value.
func (f Fixed) Float64() float64 { return float64(f) / fixedOne }

// Int returns the integer part, rounded toward negative infinity.
func (f Fixed) Int() int16 { return int16(int32(f) >> sys.FixedScaleShift) }

func (f Fixed) String() string {
	return strconv.FormatFloat(f.Float64(), 'f', -1, 64)
}
