package pipeline

import (
	"context"
	"sync/atomic"

	"github.com/gogpu/gputypes"

	"github.com/flywave/go-kriging-gpu/codec"
	"github.com/flywave/go-kriging-gpu/gpu"
)

// RampHandle is a colour ramp packed into a MaxBreaks×1 float texture.
type RampHandle struct {
	ctx      *Context
	tex      gpu.Texture
	Count    int
	released atomic.Bool
}

// UploadRamp validates breaks and copies them to the device.
func (c *Context) UploadRamp(ctx context.Context, breaks []codec.Break) (*RampHandle, error) {
	if err := c.alive(); err != nil {
		return nil, err
	}
	ramp, err := codec.NewColorRamp(breaks)
	if err != nil {
		return nil, err
	}
	data := codec.PackRamp(ramp)

	tex, err := c.createOwned(ctx, gpu.TextureDescriptor{
		Label:  "color-ramp",
		Width:  codec.MaxBreaks,
		Height: 1,
		Format: gputypes.TextureFormatRGBA32Float,
	}, data)
	if err != nil {
		return nil, err
	}
	c.log.WithField("breaks", len(ramp)).Debug("color ramp uploaded")
	return &RampHandle{ctx: c, tex: tex, Count: len(ramp)}, nil
}

// Release deletes the texture. Releasing twice returns ErrReleased, and
// releasing after Destroy returns ErrContextDestroyed.
func (r *RampHandle) Release() error {
	if !r.released.CompareAndSwap(false, true) {
		return ErrReleased
	}
	return r.ctx.releaseOwned(r.tex)
}
