package codec

import (
	"errors"
	"fmt"
	"image/color"
	"math"
)

// MaxBreaks is the number of texels in the class-break lookup texture.
const MaxBreaks = 256

// SearchProbes is the fixed iteration budget of the binary search, log2 of
// MaxBreaks.
const SearchProbes = 8

var ErrInvalidRamp = errors.New("codec: invalid color ramp")

// Break colours the half-open value interval [Min, Max).
type Break struct {
	Min   float64    `json:"min"`
	Max   float64    `json:"max"`
	Color color.RGBA `json:"color"`
}

// ColorRamp is an ordered list of contiguous breaks.
type ColorRamp []Break

// NewColorRamp validates breaks: 1 to MaxBreaks entries, Min < Max for
// each, each Min equal to the previous Max. Only the first Min may be -Inf
// and only the last Max +Inf.
func NewColorRamp(breaks []Break) (ColorRamp, error) {
	n := len(breaks)
	if n == 0 || n > MaxBreaks {
		return nil, fmt.Errorf("%w: %d breaks, want 1..%d", ErrInvalidRamp, n, MaxBreaks)
	}
	for i, b := range breaks {
		if math.IsNaN(b.Min) || math.IsNaN(b.Max) || !(b.Min < b.Max) {
			return nil, fmt.Errorf("%w: break %d has min %v >= max %v", ErrInvalidRamp, i, b.Min, b.Max)
		}
		if math.IsInf(b.Min, 0) && (i != 0 || b.Min > 0) {
			return nil, fmt.Errorf("%w: break %d has infinite min", ErrInvalidRamp, i)
		}
		if math.IsInf(b.Max, 0) && (i != n-1 || b.Max < 0) {
			return nil, fmt.Errorf("%w: break %d has infinite max", ErrInvalidRamp, i)
		}
		if i > 0 && breaks[i-1].Max != b.Min {
			return nil, fmt.Errorf("%w: gap between break %d (max %v) and %d (min %v)", ErrInvalidRamp, i-1, breaks[i-1].Max, i, b.Min)
		}
	}
	ramp := make(ColorRamp, n)
	copy(ramp, breaks)
	return ramp, nil
}

// Lookup returns the colour of the break containing v by linear scan. Values
// below the first break take its colour, values at or above the last Max
// take the last colour. NaN is transparent.
func (r ColorRamp) Lookup(v float64) color.RGBA {
	if len(r) == 0 || math.IsNaN(v) {
		return color.RGBA{}
	}
	if v < r[0].Min {
		return r[0].Color
	}
	for _, b := range r {
		if v >= b.Min && v < b.Max {
			return b.Color
		}
	}
	return r[len(r)-1].Color
}

// Range returns the lower bound of the first break and the upper bound of
// the last.
func (r ColorRamp) Range() (float64, float64) {
	if len(r) == 0 {
		return 0, 0
	}
	return r[0].Min, r[len(r)-1].Max
}

// PackNode encodes a break as one RGBA32F texel: min, max and two colour
// channels per float (integer part and thousandths).
func PackNode(b Break) [4]float32 {
	return [4]float32{
		float32(b.Min),
		float32(b.Max),
		float32(b.Color.R) + float32(b.Color.G)/1000,
		float32(b.Color.B) + float32(b.Color.A)/1000,
	}
}

func splitChannels(z float32) (uint8, uint8) {
	hi := math.Floor(float64(z))
	lo := math.Round((float64(z) - hi) * 1000)
	return uint8(hi), uint8(lo)
}

// DecodeNode is the inverse of PackNode.
func DecodeNode(t [4]float32) Break {
	r, g := splitChannels(t[2])
	b, a := splitChannels(t[3])
	return Break{
		Min:   float64(t[0]),
		Max:   float64(t[1]),
		Color: color.RGBA{R: r, G: g, B: b, A: a},
	}
}

// PackRamp lays the ramp out as MaxBreaks RGBA32F texels. Unused texels are
// zero.
func PackRamp(r ColorRamp) []float32 {
	texels := make([]float32, MaxBreaks*4)
	for i, b := range r {
		if i >= MaxBreaks {
			break
		}
		node := PackNode(b)
		copy(texels[i*4:], node[:])
	}
	return texels
}

// SearchNodes runs the class-break search over count nodes obtained from
// fetch: out-of-range values clamp to the end colours, otherwise a binary
// search of at most SearchProbes probes finds the [min, max) node.
func SearchNodes(fetch func(i int) [4]float32, count int, v float32) color.RGBA {
	if count <= 0 || v != v {
		return color.RGBA{}
	}

	first := DecodeNode(fetch(0))
	if float64(v) < first.Min {
		return first.Color
	}
	last := DecodeNode(fetch(count - 1))
	if float64(v) >= last.Max {
		return last.Color
	}

	lo, hi := 0, count-1
	for i := 0; i < SearchProbes && lo < hi; i++ {
		mid := (lo + hi) / 2
		node := DecodeNode(fetch(mid))
		switch {
		case float64(v) < node.Min:
			hi = mid - 1
		case float64(v) >= node.Max:
			lo = mid + 1
		default:
			return node.Color
		}
	}
	return DecodeNode(fetch(lo)).Color
}

// LookupPacked searches texels laid out by PackRamp.
func LookupPacked(texels []float32, count int, v float32) color.RGBA {
	if len(texels) < count*4 {
		return color.RGBA{}
	}
	return SearchNodes(func(i int) [4]float32 {
		return [4]float32{texels[i*4], texels[i*4+1], texels[i*4+2], texels[i*4+3]}
	}, count, v)
}
