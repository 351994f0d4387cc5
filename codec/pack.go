package codec

import (
	"math"
)

const (
	shift1 = 255.0
	shift2 = 65025.0
	shift3 = 16581375.0
)

// PackPrecision is the worst-case round-trip error of PackRGBA/UnpackRGBA for
// values in [0, 1].
const PackPrecision = 1.0 / shift3

func fract(v float64) float64 {
	return v - math.Floor(v)
}

// Normalize maps v from [min, max] onto [0, 1], clamping values outside the
// range. A degenerate range maps everything to 0.
func Normalize(v, min, max float64) float64 {
	if !(max > min) {
		return 0
	}
	n := (v - min) / (max - min)
	switch {
	case n < 0 || math.IsNaN(n):
		return 0
	case n > 1:
		return 1
	}
	return n
}

// Denormalize is the inverse of Normalize for n in [0, 1].
func Denormalize(n, min, max float64) float64 {
	return min + n*(max-min)
}

// PackNormalizedFloat splits v in [0, 1] into four channel fractions. Each
// channel keeps the part of v the following channel cannot represent, the
// same arithmetic the fragment program performs.
func PackNormalizedFloat(v float64) [4]float64 {
	enc := [4]float64{v, fract(shift1 * v), fract(shift2 * v), fract(shift3 * v)}
	if v >= 1 {
		enc = [4]float64{1, 0, 0, 0}
	}
	enc[0] -= enc[1] / 255
	enc[1] -= enc[2] / 255
	enc[2] -= enc[3] / 255
	return enc
}

// UnpackNormalizedFloat recombines channel fractions.
func UnpackNormalizedFloat(enc [4]float64) float64 {
	return enc[0] + enc[1]/shift1 + enc[2]/shift2 + enc[3]/shift3
}

func toByte(c float64) uint8 {
	return uint8(math.Round(math.Max(0, math.Min(1, c)) * 255))
}

// PackRGBA encodes v in [0, 1] into four bytes.
func PackRGBA(v float64) [4]uint8 {
	enc := PackNormalizedFloat(v)
	return [4]uint8{toByte(enc[0]), toByte(enc[1]), toByte(enc[2]), toByte(enc[3])}
}

// UnpackRGBA decodes bytes written by PackRGBA.
func UnpackRGBA(b [4]uint8) float64 {
	return UnpackNormalizedFloat([4]float64{
		float64(b[0]) / 255, float64(b[1]) / 255, float64(b[2]) / 255, float64(b[3]) / 255,
	})
}

// PackRGB encodes v in [0, 1] into three bytes; alpha is left to the caller.
// The round-trip error is bounded by 1/65025.
func PackRGB(v float64) [3]uint8 {
	b := PackRGBA(v)
	return [3]uint8{b[0], b[1], b[2]}
}

// UnpackRGB decodes bytes written by PackRGB.
func UnpackRGB(b [3]uint8) float64 {
	return UnpackRGBA([4]uint8{b[0], b[1], b[2], 0})
}

// UnpackValue decodes a packed pixel and maps it back onto [min, max].
func UnpackValue(r, g, b uint8, min, max float64) float64 {
	return Denormalize(UnpackRGB([3]uint8{r, g, b}), min, max)
}

func fract32(v float32) float32 {
	return v - float32(math.Floor(float64(v)))
}

// PackNormalizedFloat32 is PackNormalizedFloat carried out in single
// precision, as a fragment program computes it.
func PackNormalizedFloat32(v float32) [4]float32 {
	if v >= 1 {
		return [4]float32{1, 0, 0, 0}
	}
	enc := [4]float32{v, fract32(v * shift1), fract32(v * shift2), fract32(v * shift3)}
	enc[0] -= enc[1] / 255
	enc[1] -= enc[2] / 255
	enc[2] -= enc[3] / 255
	return enc
}
