package render

import (
	"fmt"
	"math"

	"github.com/janelia-flyem/planerender/dvid"
)

// Window is the [Min,Max] raw intensity range that maps onto the full display range.
// Min == Max is a valid, degenerate window that maps every sample to 0.
type Window struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Degenerate returns true if the window is empty.
func (w Window) Degenerate() bool {
	return w.Max == w.Min
}

// Check verifies the window is ordered and lies within the pixel type's numeric domain.
func (w Window) Check(dt dvid.DataType) error {
	if math.IsNaN(w.Min) || math.IsNaN(w.Max) {
		return dvid.NewConfigError("window [%g,%g] has NaN bound", w.Min, w.Max)
	}
	if w.Min > w.Max {
		return dvid.NewConfigError("window min %g > max %g", w.Min, w.Max)
	}
	if !dt.Contains(w.Min) || !dt.Contains(w.Max) {
		return dvid.NewConfigError("window [%g,%g] outside %s domain [%g,%g]",
			w.Min, w.Max, dt, dt.Min(), dt.Max())
	}
	return nil
}

func (w Window) String() string {
	return fmt.Sprintf("[%g,%g]", w.Min, w.Max)
}

// Quantize maps a raw sample into [0,255] using the window.  The result is
// clamp((sample - Min) / (Max - Min) * 255, 0, 255), rounded half away from zero.
// A degenerate window maps everything to 0.  Otherwise NaN maps to 0, +Inf to 255
// and -Inf to 0.
func Quantize(sample float64, w Window) uint8 {
	if w.Max <= w.Min {
		return 0
	}
	switch {
	case math.IsNaN(sample):
		return 0
	case math.IsInf(sample, 1):
		return 255
	case math.IsInf(sample, -1):
		return 0
	}
	span := w.Max - w.Min
	var v float64
	if math.IsInf(span, 0) {
		// Window spans more than the float64 range, e.g., a full float64 domain.
		v = (sample*0.5 - w.Min*0.5) / (w.Max*0.5 - w.Min*0.5) * 255
	} else {
		v = (sample - w.Min) / span * 255
	}
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(math.Round(v))
}

// quantizeTableThreshold is the number of pixels above which a full table over all
// 16-bit sample values is cheaper than quantizing each sample.
const quantizeTableThreshold = 1 << 16

// QuantizePlane decodes len(dst) samples of type dt from little-endian raw data,
// quantizes each against w, passes the result through chain (nil is identity), and
// writes one byte per sample into dst.
func QuantizePlane(dt dvid.DataType, raw []byte, w Window, chain *Chain, dst []uint8) error {
	n := len(dst)
	if len(raw) < n*dt.Bytes() {
		return fmt.Errorf("raw data has %d bytes, need %d for %d %s samples", len(raw), n*dt.Bytes(), n, dt)
	}
	switch dt {
	case dvid.T_uint8, dvid.T_int8:
		var table [256]uint8
		for i := 0; i < 256; i++ {
			table[i] = chain.Apply(Quantize(dt.Value([]byte{byte(i)}, 0), w))
		}
		for i := 0; i < n; i++ {
			dst[i] = table[raw[i]]
		}
	case dvid.T_uint16, dvid.T_int16:
		if n >= quantizeTableThreshold {
			table := make([]uint8, 1<<16)
			b := make([]byte, 2)
			for i := 0; i < 1<<16; i++ {
				b[0], b[1] = byte(i), byte(i>>8)
				table[i] = chain.Apply(Quantize(dt.Value(b, 0), w))
			}
			for i := 0; i < n; i++ {
				dst[i] = table[int(raw[2*i])|int(raw[2*i+1])<<8]
			}
			return nil
		}
		fallthrough
	default:
		for i := 0; i < n; i++ {
			dst[i] = chain.Apply(Quantize(dt.Value(raw, i), w))
		}
	}
	return nil
}
