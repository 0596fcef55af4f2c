package render

import (
	"math"
	"testing"

	"github.com/janelia-flyem/planerender/dvid"
)

var allTypes = []dvid.DataType{
	dvid.T_uint8, dvid.T_int8, dvid.T_uint16, dvid.T_int16,
	dvid.T_uint32, dvid.T_int32, dvid.T_float32, dvid.T_float64,
}

func TestQuantizeWindowEnds(t *testing.T) {
	for _, dt := range allTypes {
		w := Window{Min: dt.Min(), Max: dt.Max()}
		if err := w.Check(dt); err != nil {
			t.Fatalf("full domain window for %s should be valid: %v\n", dt, err)
		}
		if got := Quantize(w.Min, w); got != 0 {
			t.Errorf("%s: expected Quantize(min) = 0, got %d\n", dt, got)
		}
		if got := Quantize(w.Max, w); got != 255 {
			t.Errorf("%s: expected Quantize(max) = 255, got %d\n", dt, got)
		}
	}
}

func TestQuantizeClampAndRound(t *testing.T) {
	w := Window{Min: 10, Max: 20}
	tests := []struct {
		sample float64
		want   uint8
	}{
		{-1e9, 0},
		{5, 0},
		{10, 0},
		{15, 128}, // 127.5 rounds away from zero
		{20, 255},
		{25, 255},
		{1e9, 255},
	}
	for _, tc := range tests {
		if got := Quantize(tc.sample, w); got != tc.want {
			t.Errorf("Quantize(%g, %s): expected %d, got %d\n", tc.sample, w, tc.want, got)
		}
	}
}

func TestQuantizeMonotonic(t *testing.T) {
	w := Window{Min: -300, Max: 1700}
	var last uint8
	for s := -1000.0; s <= 3000; s += 0.75 {
		got := Quantize(s, w)
		if got < last {
			t.Fatalf("Quantize not monotonic: %g -> %d after %d\n", s, got, last)
		}
		last = got
	}
}

func TestQuantizeNonFinite(t *testing.T) {
	w := Window{Min: 0, Max: 1}
	if got := Quantize(math.NaN(), w); got != 0 {
		t.Errorf("expected NaN -> 0, got %d\n", got)
	}
	if got := Quantize(math.Inf(1), w); got != 255 {
		t.Errorf("expected +Inf -> 255, got %d\n", got)
	}
	if got := Quantize(math.Inf(-1), w); got != 0 {
		t.Errorf("expected -Inf -> 0, got %d\n", got)
	}
}

func TestQuantizeDegenerate(t *testing.T) {
	w := Window{Min: 42, Max: 42}
	if !w.Degenerate() {
		t.Fatalf("expected %s to be degenerate\n", w)
	}
	if err := w.Check(dvid.T_uint16); err != nil {
		t.Fatalf("degenerate window should be valid: %v\n", err)
	}
	for _, s := range []float64{0, 41, 42, 43, 65535, math.NaN(), math.Inf(1), math.Inf(-1)} {
		if got := Quantize(s, w); got != 0 {
			t.Errorf("degenerate window: expected 0 for %g, got %d\n", s, got)
		}
	}
}

func TestWindowCheck(t *testing.T) {
	bad := []struct {
		dt dvid.DataType
		w  Window
	}{
		{dvid.T_uint8, Window{Min: 10, Max: 5}},
		{dvid.T_uint8, Window{Min: 0, Max: 256}},
		{dvid.T_uint8, Window{Min: -1, Max: 255}},
		{dvid.T_int16, Window{Min: -40000, Max: 0}},
		{dvid.T_float32, Window{Min: math.NaN(), Max: 1}},
	}
	for _, tc := range bad {
		err := tc.w.Check(tc.dt)
		if err == nil {
			t.Errorf("expected error for %s window %s\n", tc.dt, tc.w)
			continue
		}
		if !dvid.IsConfigError(err) {
			t.Errorf("expected config error for %s window %s, got %v\n", tc.dt, tc.w, err)
		}
	}
}

func TestQuantizeSignedness(t *testing.T) {
	raw := []byte{0xFF}
	dst := make([]uint8, 1)
	if err := QuantizePlane(dvid.T_uint8, raw, Window{Min: 0, Max: 255}, nil, dst); err != nil {
		t.Fatalf("error quantizing: %v\n", err)
	}
	if dst[0] != 255 {
		t.Errorf("0xFF as uint8 should quantize to 255, got %d\n", dst[0])
	}
	if err := QuantizePlane(dvid.T_int8, raw, Window{Min: -128, Max: 127}, nil, dst); err != nil {
		t.Fatalf("error quantizing: %v\n", err)
	}
	if dst[0] != 127 {
		t.Errorf("0xFF as int8 (-1) should quantize to 127, got %d\n", dst[0])
	}
}

func TestQuantizePlaneTables(t *testing.T) {
	// Large enough to take the 16-bit table path.
	n := quantizeTableThreshold + 17
	chain, err := NewChain(ReverseIntensity{})
	if err != nil {
		t.Fatalf("error building chain: %v\n", err)
	}
	for _, dt := range allTypes {
		raw := make([]byte, n*dt.Bytes())
		for i := 0; i < n; i++ {
			dt.PutValue(raw, i, float64((i*7919)%200)-50)
		}
		w := Window{Min: -20, Max: 120}
		if !dt.Signed() {
			w.Min = 0
		}
		dst := make([]uint8, n)
		if err := QuantizePlane(dt, raw, w, chain, dst); err != nil {
			t.Fatalf("error quantizing %s: %v\n", dt, err)
		}
		for i := 0; i < n; i++ {
			expected := 255 - Quantize(dt.Value(raw, i), w)
			if dst[i] != expected {
				t.Fatalf("%s sample %d (%g): expected %d, got %d\n", dt, i, dt.Value(raw, i), expected, dst[i])
			}
		}
	}
}

func TestQuantizePlaneShortData(t *testing.T) {
	dst := make([]uint8, 10)
	if err := QuantizePlane(dvid.T_uint16, make([]byte, 19), Window{0, 1}, nil, dst); err == nil {
		t.Errorf("expected error on short raw data\n")
	}
}
