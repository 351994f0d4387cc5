package pipeline

import (
	"context"
	"fmt"
	"image"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	kriging "github.com/flywave/go-kriging-gpu"
	"github.com/flywave/go-kriging-gpu/gpu"
)

// OutputFormat selects what a draw produces. The numeric values are the
// codes the fragment program switches on.
type OutputFormat int

const (
	// PackedImage encodes normalized values into the RGB bytes of an image.
	PackedImage OutputFormat = 1
	// ValueBuffer reads raw float32 values back.
	ValueBuffer OutputFormat = 2
	// ClassifiedImage colours values through a class-break ramp.
	ClassifiedImage OutputFormat = 3
)

func (f OutputFormat) String() string {
	switch f {
	case PackedImage:
		return "packed-image"
	case ValueBuffer:
		return "value-buffer"
	case ClassifiedImage:
		return "classified-image"
	}
	return fmt.Sprintf("OutputFormat(%d)", int(f))
}

// GenerateOptions describes one evaluation.
type GenerateOptions struct {
	Variogram *VariogramHandle
	Grid      kriging.Grid
	Format    OutputFormat
	// PackValueRange is the [min, max] interval mapped onto [0, 1] by
	// PackedImage.
	PackValueRange [2]float64
	// Ramp is required by ClassifiedImage.
	Ramp *RampHandle
}

// Output is the result of Generate. Values is set for ValueBuffer, Image
// otherwise; both are top-down and owned by the caller.
type Output struct {
	Format  OutputFormat
	Grid    kriging.Grid
	Values  []float32
	Image   *image.RGBA
	Elapsed time.Duration
}

type drawState int

const (
	stateIdle drawState = iota
	stateBind
	stateSetUniforms
	stateDraw
	stateReadback
	stateRelease
)

func (s drawState) String() string {
	return [...]string{"idle", "bind", "set-uniforms", "draw", "readback", "release"}[s]
}

func (c *Context) validate(opts *GenerateOptions) error {
	if opts.Variogram == nil {
		return fmt.Errorf("%w: no variogram", ErrInvalidOptions)
	}
	if opts.Variogram.ctx != c {
		return fmt.Errorf("%w: variogram belongs to another context", ErrInvalidOptions)
	}
	if opts.Variogram.N > kriging.MaxSamples {
		return fmt.Errorf("%w: %d samples", kriging.ErrTooManySamples, opts.Variogram.N)
	}
	if err := opts.Grid.Validate(); err != nil {
		return err
	}
	limit := c.dev.Capabilities().MaxTextureSize
	if opts.Grid.Cols > limit || opts.Grid.Rows > limit {
		return fmt.Errorf("%w: %dx%d exceeds device limit %d", kriging.ErrInvalidGrid, opts.Grid.Cols, opts.Grid.Rows, limit)
	}

	switch opts.Format {
	case ValueBuffer:
	case PackedImage:
		lo, hi := opts.PackValueRange[0], opts.PackValueRange[1]
		if math.IsNaN(lo) || math.IsNaN(hi) || math.IsInf(lo, 0) || math.IsInf(hi, 0) || !(hi > lo) {
			return fmt.Errorf("%w: pack value range [%v, %v]", ErrInvalidOptions, lo, hi)
		}
	case ClassifiedImage:
		if opts.Ramp == nil {
			return fmt.Errorf("%w: classified output needs a color ramp", ErrInvalidOptions)
		}
		if opts.Ramp.released.Load() {
			return fmt.Errorf("color ramp: %w", ErrReleased)
		}
	default:
		return fmt.Errorf("%w: output format %v", ErrInvalidOptions, opts.Format)
	}
	return nil
}

// Generate evaluates the model over opts.Grid on the device. Validation
// happens before anything is queued; the draw itself runs on the context
// queue after all previously submitted work.
func (c *Context) Generate(ctx context.Context, opts GenerateOptions) (*Output, error) {
	if err := c.alive(); err != nil {
		return nil, err
	}
	if err := c.validate(&opts); err != nil {
		return nil, err
	}
	if err := opts.Variogram.Retain(); err != nil {
		return nil, fmt.Errorf("variogram: %w", err)
	}
	defer opts.Variogram.Release()

	start := time.Now()
	out, err := do(ctx, c, func() (*Output, error) {
		return c.draw(&opts)
	})
	if err != nil {
		return nil, err
	}
	out.Elapsed = time.Since(start)
	return out, nil
}

// draw runs the state sequence of one evaluation. Only called from the queue.
func (c *Context) draw(opts *GenerateOptions) (out *Output, err error) {
	g := opts.Grid
	v := opts.Variogram
	log := c.log.WithFields(logrus.Fields{"format": opts.Format, "grid": g.String()})

	state := stateIdle
	enter := func(s drawState) {
		state = s
		log.WithField("state", s).Debug("pipeline state")
	}
	defer func() {
		failed := state
		enter(stateRelease)
		c.release()
		enter(stateIdle)
		if err != nil {
			out = nil
			err = fmt.Errorf("pipeline %s: %w", failed, err)
		}
	}()

	enter(stateBind)
	var rt *renderTarget
	if opts.Format == ValueBuffer {
		if rt, err = c.target(g.Cols, g.Rows); err != nil {
			return nil, err
		}
		if err = c.dev.BindFramebuffer(rt.Framebuffer); err != nil {
			return nil, err
		}
	} else if err = c.dev.BindFramebuffer(gpu.DefaultFramebuffer); err != nil {
		return nil, err
	}
	c.dev.Viewport(g.Cols, g.Rows)
	if err = c.dev.UseProgram(c.program); err != nil {
		return nil, err
	}
	if err = c.dev.BindTexture(variogramUnit, v.tex); err != nil {
		return nil, err
	}
	in := inputs{
		Origin:      [2]float32{float32(g.OriginX - v.Offset[0]), float32(g.OriginY - v.Offset[1])},
		CellSize:    float32(g.CellSize),
		N:           float32(v.N),
		DataTexSize: [2]float32{float32(v.Width), float32(v.Height)},
		PackRange:   [2]float32{float32(opts.PackValueRange[0]), float32(opts.PackValueRange[1])},
		Nugget:      float32(v.Nugget),
		Range:       float32(v.Range),
		Sill:        float32(v.Sill),
		A:           float32(v.A),
		Model:       v.Model.Code(),
		Format:      float32(opts.Format),
		Rows:        float32(g.Rows),
	}
	if opts.Format == ClassifiedImage {
		if err = c.dev.BindTexture(rampUnit, opts.Ramp.tex); err != nil {
			return nil, err
		}
		in.BreakCount = float32(opts.Ramp.Count)
	}

	enter(stateSetUniforms)
	if err = c.binder.Bind(c.dev, &in); err != nil {
		return nil, err
	}

	enter(stateDraw)
	c.dev.Clear([4]float32{})
	if err = c.dev.Draw(); err != nil {
		return nil, err
	}

	enter(stateReadback)
	out = &Output{Format: opts.Format, Grid: g}
	if opts.Format == ValueBuffer {
		raw := make([]float32, g.Len())
		if err = c.dev.ReadPixels(raw); err != nil {
			return nil, err
		}
		out.Values = flipRows(raw, g.Cols, g.Rows)
	} else {
		out.Image = image.NewRGBA(image.Rect(0, 0, g.Cols, g.Rows))
		if err = c.dev.ReadImage(out.Image); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// release unbinds everything a draw bound.
func (c *Context) release() {
	_ = c.dev.BindTexture(variogramUnit, 0)
	_ = c.dev.BindTexture(rampUnit, 0)
	_ = c.dev.BindFramebuffer(gpu.DefaultFramebuffer)
}

// flipRows converts a bottom-up raster into a new top-down one.
func flipRows(src []float32, cols, rows int) []float32 {
	dst := make([]float32, len(src))
	for r := 0; r < rows; r++ {
		copy(dst[r*cols:(r+1)*cols], src[(rows-1-r)*cols:(rows-r)*cols])
	}
	return dst
}
