package pipeline

import (
	"fmt"

	"github.com/flywave/go-kriging-gpu/gpu"
)

// BlockSize is the number of floats in the std140 uniform block.
const BlockSize = 16

// Uniform names used when the device has no uniform blocks.
const (
	uGridInfo        = "u_gridInfo"
	uDimension       = "u_dimension"
	uVariogramSize   = "u_variogramMxySize"
	uPackValueRange  = "u_packValueRange"
	uVariogramParam  = "u_variogramParam"
	uModel           = "u_model"
	uClassbreakCount = "u_classbreakCount"
	uOutputFormat    = "u_outputFormat"
)

// inputs is everything the fragment program reads besides its textures.
type inputs struct {
	Origin      [2]float32
	CellSize    float32
	N           float32
	DataTexSize [2]float32
	PackRange   [2]float32
	Nugget      float32
	Range       float32
	Sill        float32
	A           float32
	Model       float32
	BreakCount  float32
	Format      float32
	Rows        float32
}

// block lays the inputs out as
// [ox, oy, cell, n | texW, texH, packMin, packMax | nugget, range, sill, A | model, breaks, format, rows].
func (in *inputs) block() []float32 {
	return []float32{
		in.Origin[0], in.Origin[1], in.CellSize, in.N,
		in.DataTexSize[0], in.DataTexSize[1], in.PackRange[0], in.PackRange[1],
		in.Nugget, in.Range, in.Sill, in.A,
		in.Model, in.BreakCount, in.Format, in.Rows,
	}
}

func inputsFromBlock(b []float32) (inputs, error) {
	if len(b) < BlockSize {
		return inputs{}, fmt.Errorf("pipeline: uniform block has %d of %d floats", len(b), BlockSize)
	}
	return inputs{
		Origin:      [2]float32{b[0], b[1]},
		CellSize:    b[2],
		N:           b[3],
		DataTexSize: [2]float32{b[4], b[5]},
		PackRange:   [2]float32{b[6], b[7]},
		Nugget:      b[8],
		Range:       b[9],
		Sill:        b[10],
		A:           b[11],
		Model:       b[12],
		BreakCount:  b[13],
		Format:      b[14],
		Rows:        b[15],
	}, nil
}

func inputsFromUniforms(u gpu.Uniforms) (inputs, error) {
	get := func(name string, n int) ([]float32, error) {
		v, ok := u.Value(name)
		if !ok || len(v) != n {
			return nil, fmt.Errorf("pipeline: uniform %s not set", name)
		}
		return v, nil
	}

	var in inputs
	grid, err := get(uGridInfo, 4)
	if err != nil {
		return in, err
	}
	dim, err := get(uDimension, 1)
	if err != nil {
		return in, err
	}
	size, err := get(uVariogramSize, 2)
	if err != nil {
		return in, err
	}
	pack, err := get(uPackValueRange, 2)
	if err != nil {
		return in, err
	}
	param, err := get(uVariogramParam, 4)
	if err != nil {
		return in, err
	}
	model, err := get(uModel, 1)
	if err != nil {
		return in, err
	}
	breaks, err := get(uClassbreakCount, 1)
	if err != nil {
		return in, err
	}
	format, err := get(uOutputFormat, 1)
	if err != nil {
		return in, err
	}

	in.Origin = [2]float32{grid[0], grid[1]}
	in.CellSize = grid[2]
	in.Rows = grid[3]
	in.N = dim[0]
	in.DataTexSize = [2]float32{size[0], size[1]}
	in.PackRange = [2]float32{pack[0], pack[1]}
	in.Nugget, in.Range, in.Sill, in.A = param[0], param[1], param[2], param[3]
	in.Model = model[0]
	in.BreakCount = breaks[0]
	in.Format = format[0]
	return in, nil
}

// uniformBinder uploads program inputs. The strategy is fixed when the
// Context is created.
type uniformBinder interface {
	Name() string
	Bind(dev gpu.Device, in *inputs) error
	Decode(u gpu.Uniforms) (inputs, error)
}

type blockBinder struct{}

func (blockBinder) Name() string { return "uniform-block" }

func (blockBinder) Bind(dev gpu.Device, in *inputs) error {
	return dev.SetUniformBlock(in.block())
}

func (blockBinder) Decode(u gpu.Uniforms) (inputs, error) {
	return inputsFromBlock(u.Block())
}

type scalarBinder struct{}

func (scalarBinder) Name() string { return "uniforms" }

func (scalarBinder) Bind(dev gpu.Device, in *inputs) error {
	set := []struct {
		name   string
		values []float32
	}{
		{uGridInfo, []float32{in.Origin[0], in.Origin[1], in.CellSize, in.Rows}},
		{uDimension, []float32{in.N}},
		{uVariogramSize, in.DataTexSize[:]},
		{uPackValueRange, in.PackRange[:]},
		{uVariogramParam, []float32{in.Nugget, in.Range, in.Sill, in.A}},
		{uModel, []float32{in.Model}},
		{uClassbreakCount, []float32{in.BreakCount}},
		{uOutputFormat, []float32{in.Format}},
	}
	for _, s := range set {
		if err := dev.SetUniform(s.name, s.values...); err != nil {
			return err
		}
	}
	return nil
}

func (scalarBinder) Decode(u gpu.Uniforms) (inputs, error) {
	return inputsFromUniforms(u)
}
