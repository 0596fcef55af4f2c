package render

import (
	"math"
	"sort"

	"github.com/janelia-flyem/planerender/dvid"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Stats summarizes the finite samples of a raw plane.
type Stats struct {
	Count  int
	Min    float64
	Max    float64
	Mean   float64
	StdDev float64
}

// finiteSamples decodes all finite samples of a raw plane.
func finiteSamples(dt dvid.DataType, raw []byte) []float64 {
	n := len(raw) / dt.Bytes()
	x := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		v := dt.Value(raw, i)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		x = append(x, v)
	}
	return x
}

// ComputeStats returns statistics over the finite samples of a raw plane.
func ComputeStats(dt dvid.DataType, raw []byte) Stats {
	x := finiteSamples(dt, raw)
	if len(x) == 0 {
		return Stats{}
	}
	mean, std := stat.MeanStdDev(x, nil)
	if len(x) == 1 {
		std = 0
	}
	return Stats{
		Count:  len(x),
		Min:    floats.Min(x),
		Max:    floats.Max(x),
		Mean:   mean,
		StdDev: std,
	}
}

// AutoWindow returns a window spanning the low and high quantiles of the finite
// samples of a raw plane.  A plane with no finite samples gets the degenerate
// window [0,0].
func AutoWindow(dt dvid.DataType, raw []byte, low, high float64) (Window, error) {
	if !(low >= 0 && low < high && high <= 1) {
		return Window{}, dvid.NewConfigError("auto window quantiles [%g,%g] must satisfy 0 <= low < high <= 1", low, high)
	}
	x := finiteSamples(dt, raw)
	if len(x) == 0 {
		return Window{}, nil
	}
	sort.Float64s(x)
	return Window{
		Min: stat.Quantile(low, stat.Empirical, x, nil),
		Max: stat.Quantile(high, stat.Empirical, x, nil),
	}, nil
}
