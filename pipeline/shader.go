package pipeline

import (
	_ "embed"
	"fmt"
	"math"

	kriging "github.com/flywave/go-kriging-gpu"
	"github.com/flywave/go-kriging-gpu/codec"
	"github.com/flywave/go-kriging-gpu/gpu"
)

//go:embed shaders/kriging.wgsl
var krigingShaderSource string

// Texture units of the kriging program.
const (
	variogramUnit = 0
	rampUnit      = 1
)

// krigingShader is the CPU form of shaders/kriging.wgsl. All arithmetic is
// single precision.
type krigingShader struct {
	binder uniformBinder
}

var _ gpu.FragmentShader = krigingShader{}

type modelFunc32 func(h, nugget, rng, sill, a float32) float32

func exp32(x float32) float32 {
	return float32(math.Exp(float64(x)))
}

func gaussian32(h, nugget, rng, sill, a float32) float32 {
	x := h / rng
	return nugget + (sill-nugget)/rng*(1-exp32(-(1/a)*x*x))
}

func exponential32(h, nugget, rng, sill, a float32) float32 {
	return nugget + (sill-nugget)/rng*(1-exp32(-(1/a)*(h/rng)))
}

func spherical32(h, nugget, rng, sill, _ float32) float32 {
	if h > rng {
		return nugget + (sill-nugget)/rng
	}
	x := h / rng
	return nugget + (sill-nugget)/rng*(1.5*x-0.5*x*x*x)
}

func modelFor(code float32) modelFunc32 {
	switch code {
	case kriging.Gaussian.Code():
		return gaussian32
	case kriging.Exponential.Code():
		return exponential32
	}
	return spherical32
}

func (s krigingShader) Bind(u gpu.Uniforms, tex gpu.Samplers) (gpu.FragmentFunc, error) {
	in, err := s.binder.Decode(u)
	if err != nil {
		return nil, err
	}
	width := int(in.DataTexSize[0])
	n := int(in.N)
	if width <= 0 || n <= 0 || n > kriging.MaxSamples {
		return nil, fmt.Errorf("pipeline: bad sample texture inputs n=%d width=%d", n, width)
	}

	model := modelFor(in.Model)
	format := OutputFormat(in.Format)
	breaks := int(in.BreakCount)
	fetchNode := func(i int) [4]float32 { return tex.Fetch(rampUnit, i, 0) }

	return func(x, y float32) [4]float32 {
		wx := x*in.CellSize + in.Origin[0]
		wy := y*in.CellSize + in.Origin[1]

		var sum float32
		for i := 0; i < kriging.MaxSamples; i++ {
			if i >= n {
				break
			}
			t := tex.Fetch(variogramUnit, i%width, i/width)
			dx, dy := wx-t[1], wy-t[2]
			h := float32(math.Sqrt(float64(dx*dx + dy*dy)))
			sum += model(h, in.Nugget, in.Range, in.Sill, in.A) * t[0]
		}

		switch format {
		case ValueBuffer:
			return [4]float32{sum, 0, 0, 1}
		case PackedImage:
			v := (sum - in.PackRange[0]) / (in.PackRange[1] - in.PackRange[0])
			v = float32(math.Max(0, math.Min(1, float64(v))))
			enc := codec.PackNormalizedFloat32(v)
			return [4]float32{enc[0], enc[1], enc[2], 1}
		}
		c := codec.SearchNodes(fetchNode, breaks, sum)
		return [4]float32{float32(c.R) / 255, float32(c.G) / 255, float32(c.B) / 255, float32(c.A) / 255}
	}, nil
}
