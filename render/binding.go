package render

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/janelia-flyem/planerender/dvid"
)

// RGB is a display color.
type RGB struct {
	R, G, B uint8
}

var (
	White = RGB{255, 255, 255}
	Red   = RGB{255, 0, 0}
	Green = RGB{0, 255, 0}
	Blue  = RGB{0, 0, 255}
)

// ParseRGB parses "#RRGGBB" or "RRGGBB".
func ParseRGB(s string) (RGB, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) != 6 {
		return RGB{}, fmt.Errorf("color %q must be given as #RRGGBB", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return RGB{}, fmt.Errorf("bad color %q: %v", s, err)
	}
	return RGB{uint8(v >> 16), uint8(v >> 8), uint8(v)}, nil
}

func (c RGB) String() string {
	return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
}

// Model selects how active channels are combined into the output.
type Model uint8

const (
	// ModelRGB adds the colored contribution of every active channel.
	ModelRGB Model = iota

	// ModelGreyscale renders only the first active channel as gray levels.
	ModelGreyscale
)

func (m Model) String() string {
	switch m {
	case ModelRGB:
		return "rgb"
	case ModelGreyscale:
		return "greyscale"
	default:
		return fmt.Sprintf("Model(%d)", uint8(m))
	}
}

// ParseModel converts "rgb" or "greyscale" (or "grayscale") into a Model.
func ParseModel(s string) (Model, error) {
	switch strings.ToLower(s) {
	case "", "rgb":
		return ModelRGB, nil
	case "greyscale", "grayscale", "grey", "gray":
		return ModelGreyscale, nil
	}
	return ModelRGB, fmt.Errorf("unknown rendering model %q", s)
}

// Default quantiles used when a channel's window is computed from the plane itself.
const (
	DefaultAutoLow  = 0.005
	DefaultAutoHigh = 0.995
)

// ChannelBinding is the rendering configuration of one channel.  The renderer only
// reads bindings; it never modifies them.
type ChannelBinding struct {
	Channel   int
	Label     string
	Active    bool
	PixelType dvid.DataType

	// Window is ignored when AutoWindow is set, in which case the window is taken
	// from the AutoLow and AutoHigh quantiles of each rendered plane.
	Window     Window
	AutoWindow bool
	AutoLow    float64
	AutoHigh   float64

	// Color is used unless LUT is non-nil.
	Color RGB
	LUT   *ColorLUT

	Chain *Chain
}

// Validate checks the binding for configuration errors.
func (b ChannelBinding) Validate() error {
	if b.Channel < 0 {
		return dvid.NewConfigError("channel index %d is negative", b.Channel)
	}
	if !b.PixelType.Valid() {
		return dvid.NewConfigError("channel %d has invalid pixel type %s", b.Channel, b.PixelType)
	}
	if b.AutoWindow {
		low, high := b.quantiles()
		if !(low >= 0 && low < high && high <= 1) {
			return dvid.NewConfigError("channel %d auto window quantiles [%g,%g] must satisfy 0 <= low < high <= 1",
				b.Channel, low, high)
		}
		return nil
	}
	if err := b.Window.Check(b.PixelType); err != nil {
		return fmt.Errorf("channel %d: %w", b.Channel, err)
	}
	return nil
}

func (b ChannelBinding) quantiles() (low, high float64) {
	low, high = b.AutoLow, b.AutoHigh
	if low == 0 && high == 0 {
		return DefaultAutoLow, DefaultAutoHigh
	}
	return
}

// AppendKey appends a deterministic byte encoding of everything in the binding that
// affects rendered output.  It is used to build cache keys.
func (b ChannelBinding) AppendKey(key []byte) []byte {
	var flags byte
	if b.Active {
		flags |= 1
	}
	if b.AutoWindow {
		flags |= 2
	}
	key = binary.LittleEndian.AppendUint32(key, uint32(b.Channel))
	key = append(key, flags, byte(b.PixelType), b.Color.R, b.Color.G, b.Color.B)
	for _, f := range []float64{b.Window.Min, b.Window.Max, b.AutoLow, b.AutoHigh} {
		key = binary.LittleEndian.AppendUint64(key, math.Float64bits(f))
	}
	if b.LUT != nil {
		key = append(key, 'L')
		key = append(key, b.LUT.R[:]...)
		key = append(key, b.LUT.G[:]...)
		key = append(key, b.LUT.B[:]...)
	}
	if b.Chain != nil {
		table := b.Chain.Table()
		key = append(key, 'C')
		key = append(key, table[:]...)
	}
	return key
}

func (b ChannelBinding) String() string {
	var color string
	if b.LUT != nil {
		color = "lut " + b.LUT.Name
	} else {
		color = b.Color.String()
	}
	window := b.Window.String()
	if b.AutoWindow {
		low, high := b.quantiles()
		window = fmt.Sprintf("auto[%g,%g]", low, high)
	}
	return fmt.Sprintf("channel %d (%s, active %t): %s window %s, %s, %s",
		b.Channel, b.Label, b.Active, b.PixelType, window, color, b.Chain)
}

// activeBindings returns the active bindings after validating them.
func activeBindings(bindings []ChannelBinding) ([]ChannelBinding, error) {
	var active []ChannelBinding
	for _, b := range bindings {
		if !b.Active {
			continue
		}
		if err := b.Validate(); err != nil {
			return nil, err
		}
		active = append(active, b)
	}
	return active, nil
}
