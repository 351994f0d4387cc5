package pipeline

import (
	"context"
	"fmt"
	"math/bits"
	"sync/atomic"

	"github.com/gogpu/gputypes"

	kriging "github.com/flywave/go-kriging-gpu"
	"github.com/flywave/go-kriging-gpu/gpu"
)

// dataTexSize returns the smallest power-of-two texture holding n texels,
// as square as possible with the extra factor of two on the width.
func dataTexSize(n int) (int, int) {
	if n <= 1 {
		return 1, 1
	}
	l := bits.Len(uint(n - 1))
	cols := (l + 1) / 2
	return 1 << cols, 1 << (l - cols)
}

// VariogramHandle is a trained model resident on the device. Its texture
// holds one (weight, x, y, 0) texel per sample; coordinates are stored
// relative to Offset to keep them small in single precision.
type VariogramHandle struct {
	ctx *Context
	tex gpu.Texture

	N       int
	Width   int
	Height  int
	Offset  [2]float64
	Model   kriging.ModelType
	Nugget  float64
	Range   float64
	Sill    float64
	A       float64
	refs    atomic.Int32
}

// UploadVariogram copies a trained model to the device.
func (c *Context) UploadVariogram(ctx context.Context, kri *kriging.Kriging) (*VariogramHandle, error) {
	if err := c.alive(); err != nil {
		return nil, err
	}
	if kri == nil || !kri.Trained() {
		return nil, kriging.ErrNotTrained
	}
	if kri.N > kriging.MaxSamples {
		return nil, fmt.Errorf("%w: %d > %d", kriging.ErrTooManySamples, kri.N, kriging.MaxSamples)
	}

	pos := kri.Positions()
	var ox, oy float64
	for _, p := range pos {
		ox += p[0]
		oy += p[1]
	}
	ox /= float64(len(pos))
	oy /= float64(len(pos))

	w, h := dataTexSize(kri.N)
	data := make([]float32, w*h*4)
	for i, p := range pos {
		data[i*4] = float32(kri.M[i])
		data[i*4+1] = float32(p[0] - ox)
		data[i*4+2] = float32(p[1] - oy)
	}

	tex, err := c.createOwned(ctx, gpu.TextureDescriptor{
		Label:  "variogram",
		Width:  w,
		Height: h,
		Format: gputypes.TextureFormatRGBA32Float,
	}, data)
	if err != nil {
		return nil, err
	}

	v := &VariogramHandle{
		ctx:    c,
		tex:    tex,
		N:      kri.N,
		Width:  w,
		Height: h,
		Offset: [2]float64{ox, oy},
		Model:  kri.Model,
		Nugget: kri.Nugget,
		Range:  kri.Range,
		Sill:   kri.Sill,
		A:      kri.A,
	}
	v.refs.Store(1)
	c.log.WithField("n", kri.N).WithField("size", fmt.Sprintf("%dx%d", w, h)).Debug("variogram uploaded")
	return v, nil
}

// Retain adds a reference. It fails once the last reference is gone.
func (v *VariogramHandle) Retain() error {
	for {
		n := v.refs.Load()
		if n <= 0 {
			return ErrReleased
		}
		if v.refs.CompareAndSwap(n, n+1) {
			return nil
		}
	}
}

// Release drops a reference; the texture is deleted with the last one.
// Releasing the last reference after Destroy returns ErrContextDestroyed;
// Destroy has freed the texture already.
func (v *VariogramHandle) Release() error {
	n := v.refs.Add(-1)
	switch {
	case n < 0:
		v.refs.Store(0)
		return ErrReleased
	case n > 0:
		return nil
	}
	return v.ctx.releaseOwned(v.tex)
}

// Released reports whether the texture has been freed.
func (v *VariogramHandle) Released() bool {
	return v.refs.Load() <= 0
}
