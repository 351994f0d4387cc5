package pipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kriging "github.com/flywave/go-kriging-gpu"
	"github.com/flywave/go-kriging-gpu/gpu"
)

type fakeUniforms struct {
	block []float32
	named map[string][]float32
}

func (u *fakeUniforms) Block() []float32 { return u.block }

func (u *fakeUniforms) Value(name string) ([]float32, bool) {
	v, ok := u.named[name]
	return v, ok
}

// recordingDevice keeps the uniforms it is given; every other Device
// method panics through the nil embedded interface.
type recordingDevice struct {
	gpu.Device
	fakeUniforms
}

func (d *recordingDevice) SetUniformBlock(data []float32) error {
	d.block = append([]float32(nil), data...)
	return nil
}

func (d *recordingDevice) SetUniform(name string, values ...float32) error {
	if d.named == nil {
		d.named = make(map[string][]float32)
	}
	d.named[name] = append([]float32(nil), values...)
	return nil
}

func sampleInputs() inputs {
	return inputs{
		Origin:      [2]float32{-12.5, 40},
		CellSize:    0.25,
		N:           37,
		DataTexSize: [2]float32{8, 8},
		PackRange:   [2]float32{-1, 9},
		Nugget:      0.3,
		Range:       55,
		Sill:        1.7,
		A:           1.0 / 3,
		Model:       kriging.Spherical.Code(),
		BreakCount:  5,
		Format:      float32(ClassifiedImage),
		Rows:        120,
	}
}

func TestUniformBlockLayout(t *testing.T) {
	in := sampleInputs()
	b := in.block()
	require.Len(t, b, BlockSize)
	assert.Equal(t, []float32{-12.5, 40, 0.25, 37}, b[0:4])
	assert.Equal(t, []float32{8, 8, -1, 9}, b[4:8])
	assert.Equal(t, []float32{0.3, 55, 1.7, 1.0 / 3}, b[8:12])
	assert.Equal(t, []float32{kriging.Spherical.Code(), 5, 3, 120}, b[12:16])

	_, err := inputsFromBlock(b[:10])
	assert.Error(t, err)
}

func TestUniformBinders(t *testing.T) {
	in := sampleInputs()
	for _, b := range []uniformBinder{blockBinder{}, scalarBinder{}} {
		t.Run(b.Name(), func(t *testing.T) {
			var rec recordingDevice
			require.NoError(t, b.Bind(&rec, &in))
			got, err := b.Decode(&rec.fakeUniforms)
			require.NoError(t, err)
			assert.Equal(t, in, got)
		})
	}

	_, err := scalarBinder{}.Decode(&fakeUniforms{})
	assert.Error(t, err)
}

func TestShaderSource(t *testing.T) {
	src := krigingShaderSource
	for _, want := range []string{
		"fn vs_main", "fn fs_main", "fn pack_normalized", "fn classify",
		"var variogram_tex", "var ramp_tex", "1024",
	} {
		assert.True(t, strings.Contains(src, want), "missing %q", want)
	}
}

func TestModelFor(t *testing.T) {
	assert.InDelta(t, 0.55, float64(modelFor(kriging.Spherical.Code())(20, 0, 10, 5.5, 1.0/3)), 1e-6)
	assert.InDelta(t, 0, float64(modelFor(kriging.Gaussian.Code())(0, 0, 10, 5.5, 1.0/3)), 1e-6)
	assert.InDelta(t, 0.2, float64(modelFor(kriging.Exponential.Code())(0, 0.2, 10, 5.5, 1.0/3)), 1e-6)
}
