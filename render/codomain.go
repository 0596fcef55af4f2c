package render

import (
	"fmt"
	"math"
	"strings"

	"github.com/janelia-flyem/planerender/dvid"
)

// CodomainMap is a transform of quantized intensities in [0,255].  The set of maps is
// closed: ReverseIntensity, Gamma, and LUT.
type CodomainMap interface {
	Map(v uint8) uint8
	String() string

	codomainMap()
}

// ReverseIntensity inverts intensities: 255 - v.
type ReverseIntensity struct{}

func (ReverseIntensity) Map(v uint8) uint8 { return 255 - v }
func (ReverseIntensity) String() string    { return "reverse" }
func (ReverseIntensity) codomainMap()      {}

// Gamma applies round(255 * (v/255)^(1/exponent)).
type Gamma struct {
	exponent float64
}

// NewGamma returns a gamma map.  The exponent must be positive and finite.
func NewGamma(exponent float64) (Gamma, error) {
	if !(exponent > 0) || math.IsInf(exponent, 1) {
		return Gamma{}, dvid.NewConfigError("gamma exponent must be > 0, got %g", exponent)
	}
	return Gamma{exponent: exponent}, nil
}

// Exponent returns the gamma exponent.
func (g Gamma) Exponent() float64 {
	return g.exponent
}

func (g Gamma) Map(v uint8) uint8 {
	out := math.Round(255 * math.Pow(float64(v)/255, 1/g.exponent))
	if out >= 255 {
		return 255
	}
	return uint8(out)
}

func (g Gamma) String() string { return fmt.Sprintf("gamma(%g)", g.exponent) }
func (Gamma) codomainMap()      {}

// LUT is a direct 256-entry intensity lookup.
type LUT struct {
	table [256]uint8
}

// NewLUT returns a lookup table map.  The table must have exactly 256 entries.
func NewLUT(table []uint8) (LUT, error) {
	if len(table) != 256 {
		return LUT{}, dvid.NewConfigError("lookup table must have 256 entries, got %d", len(table))
	}
	var lut LUT
	copy(lut.table[:], table)
	return lut, nil
}

func (l LUT) Map(v uint8) uint8 { return l.table[v] }
func (LUT) String() string       { return "lut" }
func (LUT) codomainMap()         {}

// Chain is an ordered, immutable sequence of codomain maps.  Maps are applied in the
// order given; composing them is not commutative.  A nil *Chain is the identity.
type Chain struct {
	maps  []CodomainMap
	table [256]uint8
}

// NewChain returns a chain applying maps in order.
func NewChain(maps ...CodomainMap) (*Chain, error) {
	c := &Chain{maps: make([]CodomainMap, len(maps))}
	for i, m := range maps {
		switch cm := m.(type) {
		case nil:
			return nil, dvid.NewConfigError("codomain map %d is nil", i)
		case Gamma:
			if cm.exponent <= 0 {
				return nil, dvid.NewConfigError("codomain map %d: gamma exponent must be > 0", i)
			}
		}
		c.maps[i] = m
	}
	for v := 0; v < 256; v++ {
		out := uint8(v)
		for _, m := range c.maps {
			out = m.Map(out)
		}
		c.table[v] = out
	}
	return c, nil
}

// Apply runs v through every map of the chain.
func (c *Chain) Apply(v uint8) uint8 {
	if c == nil {
		return v
	}
	return c.table[v]
}

// Len returns the number of maps in the chain.
func (c *Chain) Len() int {
	if c == nil {
		return 0
	}
	return len(c.maps)
}

// Maps returns a copy of the chain's maps in application order.
func (c *Chain) Maps() []CodomainMap {
	if c == nil {
		return nil
	}
	maps := make([]CodomainMap, len(c.maps))
	copy(maps, c.maps)
	return maps
}

// Table returns the composed 256-entry table of the chain.
func (c *Chain) Table() [256]uint8 {
	if c == nil {
		var identity [256]uint8
		for i := range identity {
			identity[i] = uint8(i)
		}
		return identity
	}
	return c.table
}

func (c *Chain) String() string {
	if c.Len() == 0 {
		return "identity"
	}
	names := make([]string, len(c.maps))
	for i, m := range c.maps {
		names[i] = m.String()
	}
	return strings.Join(names, " -> ")
}
