package render

import (
	"fmt"
)

// ChannelOutput is the quantized, codomain-transformed plane of one channel together
// with how it is colored.
type ChannelOutput struct {
	Channel int
	Values  []uint8
	Color   RGB
	LUT     *ColorLUT
}

func (out ChannelOutput) colors() *ColorLUT {
	if out.LUT != nil {
		return out.LUT
	}
	return RampLUT(out.Color)
}

// Compositor combines channel outputs into an image.
type Compositor struct {
	Model Model
}

// Composite combines the outputs into a width x height image.  With ModelRGB each
// color component is the sum over channels of round(v * color / 255), or the LUT
// entry for LUT channels, clamped to 255.  Saturating addition of non-negative values
// makes the result independent of channel order.  With no outputs the image is fully
// zero, including alpha.
func (c Compositor) Composite(outputs []ChannelOutput, width, height int) (*Image, error) {
	n := width * height
	for _, out := range outputs {
		if len(out.Values) != n {
			return nil, fmt.Errorf("channel %d has %d values, expected %d for %d x %d image",
				out.Channel, len(out.Values), n, width, height)
		}
	}
	img := NewImage(width, height)
	if len(outputs) == 0 {
		return img, nil
	}

	if c.Model == ModelGreyscale {
		values := outputs[0].Values
		for i, p := 0, 0; i < n; i, p = i+1, p+4 {
			v := values[i]
			img.Pix[p], img.Pix[p+1], img.Pix[p+2], img.Pix[p+3] = v, v, v, 255
		}
		return img, nil
	}

	if len(outputs) == 1 && outputs[0].LUT != nil {
		lut := outputs[0].LUT
		values := outputs[0].Values
		for i, p := 0, 0; i < n; i, p = i+1, p+4 {
			v := values[i]
			img.Pix[p], img.Pix[p+1], img.Pix[p+2], img.Pix[p+3] = lut.R[v], lut.G[v], lut.B[v], 255
		}
		return img, nil
	}

	for p := 3; p < len(img.Pix); p += 4 {
		img.Pix[p] = 255
	}
	for _, out := range outputs {
		Accumulate(img, out)
	}
	return img, nil
}

// Accumulate adds the colored contribution of one channel into img with saturation.
func Accumulate(img *Image, out ChannelOutput) {
	lut := out.colors()
	for i, p := 0, 0; i < len(out.Values); i, p = i+1, p+4 {
		v := out.Values[i]
		img.Pix[p] = satAdd(img.Pix[p], lut.R[v])
		img.Pix[p+1] = satAdd(img.Pix[p+1], lut.G[v])
		img.Pix[p+2] = satAdd(img.Pix[p+2], lut.B[v])
	}
}

func satAdd(a, b uint8) uint8 {
	sum := uint16(a) + uint16(b)
	if sum > 255 {
		return 255
	}
	return uint8(sum)
}
