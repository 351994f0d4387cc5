package pipeline

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/flywave/go-kriging-gpu/gpu"
)

// renderTarget is a float framebuffer reused by value-buffer draws of the
// same size.
type renderTarget struct {
	Width       int
	Height      int
	Framebuffer gpu.Framebuffer
	Attachment  gpu.Texture
}

func targetKey(w, h int) string {
	return fmt.Sprintf("%d×%d", w, h)
}

func newRenderTarget(dev gpu.Device, w, h int) (*renderTarget, error) {
	tex, err := dev.CreateTexture(gpu.TextureDescriptor{
		Label:  "value-target " + targetKey(w, h),
		Width:  w,
		Height: h,
		Format: gputypes.TextureFormatR32Float,
	}, nil)
	if err != nil {
		return nil, err
	}
	fb, err := dev.CreateFramebuffer(tex)
	if err != nil {
		dev.DeleteTexture(tex)
		return nil, err
	}
	return &renderTarget{Width: w, Height: h, Framebuffer: fb, Attachment: tex}, nil
}

func (rt *renderTarget) dispose(dev gpu.Device) {
	dev.DeleteFramebuffer(rt.Framebuffer)
	dev.DeleteTexture(rt.Attachment)
}

// CacheStats counts render-target cache activity.
type CacheStats struct {
	Len       int
	Capacity  int
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// target returns the cached render target for w×h, creating it on a miss.
// Only called from the queue.
func (c *Context) target(w, h int) (*renderTarget, error) {
	key := targetKey(w, h)
	if rt, ok := c.targets.Get(key); ok {
		c.hits.Add(1)
		return rt, nil
	}
	c.misses.Add(1)
	rt, err := newRenderTarget(c.dev, w, h)
	if err != nil {
		return nil, err
	}
	c.log.WithField("target", key).Debug("render target created")
	if c.targets.Add(key, rt) {
		c.evictions.Add(1)
	}
	return rt, nil
}
