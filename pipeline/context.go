// Package pipeline evaluates trained kriging models on a GPU device: it
// uploads the weight vector as a float texture, rasterizes the grid with a
// fragment program and reads the result back as values or images.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"github.com/flywave/go-kriging-gpu/gpu"
	"github.com/flywave/go-kriging-gpu/internal/logging"
)

// DefaultTargetCacheSize is the number of value-buffer render targets kept
// alive between draws.
const DefaultTargetCacheSize = 10

// Option configures a Context.
type Option func(*contextOptions)

type contextOptions struct {
	queueSize      int
	cacheSize      int
	scalarUniforms bool
}

func defaultOptions() contextOptions {
	return contextOptions{
		queueSize: DefaultQueueSize,
		cacheSize: DefaultTargetCacheSize,
	}
}

// WithQueueSize bounds the number of pending GPU tasks.
func WithQueueSize(n int) Option {
	return func(o *contextOptions) { o.queueSize = n }
}

// WithTargetCacheSize sets how many value-buffer render targets are cached.
func WithTargetCacheSize(n int) Option {
	return func(o *contextOptions) { o.cacheSize = n }
}

// WithScalarUniforms forces individual uniforms even when the device
// supports uniform blocks.
func WithScalarUniforms() Option {
	return func(o *contextOptions) { o.scalarUniforms = true }
}

// Context owns the device state of the pipeline: the compiled program, the
// render-target cache and the queue serializing device access. A Context
// is safe for concurrent use; all device calls happen on its queue.
type Context struct {
	dev     gpu.Device
	queue   *Queue
	binder  uniformBinder
	program gpu.Program
	targets *lru.Cache[string, *renderTarget]
	log     *logrus.Entry

	// textures still owned by live handles; touched only on the queue
	owned map[gpu.Texture]struct{}

	capacity  int
	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64

	mu        sync.RWMutex
	destroyed bool
}

// NewContext checks the device capabilities, picks the uniform strategy and
// compiles the kriging program.
func NewContext(dev gpu.Device, opts ...Option) (*Context, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.cacheSize <= 0 {
		o.cacheSize = DefaultTargetCacheSize
	}

	caps := dev.Capabilities()
	if !caps.FloatTextures || !caps.ColorBufferFloat {
		return nil, fmt.Errorf("%w: float textures %v, float color buffer %v", ErrUnsupportedDevice, caps.FloatTextures, caps.ColorBufferFloat)
	}

	c := &Context{
		dev:      dev,
		queue:    NewQueue(o.queueSize),
		log:      logging.WithComponent("pipeline"),
		owned:    make(map[gpu.Texture]struct{}),
		capacity: o.cacheSize,
	}
	if caps.UniformBlocks && !o.scalarUniforms {
		c.binder = blockBinder{}
	} else {
		c.binder = scalarBinder{}
	}
	targets, err := lru.NewWithEvict(o.cacheSize, func(key string, rt *renderTarget) {
		c.log.WithField("target", key).Debug("render target disposed")
		rt.dispose(dev)
	})
	if err != nil {
		c.queue.Close()
		return nil, err
	}
	c.targets = targets

	program, err := Submit(context.Background(), c.queue, func() (gpu.Program, error) {
		return dev.CreateProgram(gpu.ProgramDescriptor{
			Label:    "kriging",
			WGSL:     krigingShaderSource,
			Fragment: krigingShader{binder: c.binder},
		})
	}).Wait(context.Background())
	if err != nil {
		c.queue.Close()
		return nil, err
	}
	c.program = program

	c.log.WithFields(logrus.Fields{
		"uniforms": c.binder.Name(),
		"targets":  o.cacheSize,
	}).Info("pipeline context created")
	return c, nil
}

// UniformStrategy names the uniform upload strategy in use.
func (c *Context) UniformStrategy() string {
	return c.binder.Name()
}

// Device returns the device the context draws with.
func (c *Context) Device() gpu.Device {
	return c.dev
}

// TargetCacheStats reports the render-target cache counters.
func (c *Context) TargetCacheStats() CacheStats {
	return CacheStats{
		Len:       c.targets.Len(),
		Capacity:  c.capacity,
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}

func (c *Context) alive() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.destroyed {
		return ErrContextDestroyed
	}
	return nil
}

// do runs fn on the queue and waits for it.
func do[T any](ctx context.Context, c *Context, fn func() (T, error)) (T, error) {
	c.mu.RLock()
	if c.destroyed {
		c.mu.RUnlock()
		var zero T
		return zero, ErrContextDestroyed
	}
	f := Submit(ctx, c.queue, fn)
	c.mu.RUnlock()
	return f.Wait(ctx)
}

// createOwned creates a texture on the queue and tracks it until
// releaseOwned or Destroy frees it.
func (c *Context) createOwned(ctx context.Context, desc gpu.TextureDescriptor, data []float32) (gpu.Texture, error) {
	return do(ctx, c, func() (gpu.Texture, error) {
		tex, err := c.dev.CreateTexture(desc, data)
		if err != nil {
			return 0, err
		}
		c.owned[tex] = struct{}{}
		return tex, nil
	})
}

// releaseOwned queues the deletion of a handle texture. After Destroy the
// texture is already gone and ErrContextDestroyed is returned.
func (c *Context) releaseOwned(tex gpu.Texture) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.destroyed {
		return ErrContextDestroyed
	}
	Submit(context.Background(), c.queue, func() (struct{}, error) {
		delete(c.owned, tex)
		c.dev.DeleteTexture(tex)
		return struct{}{}, nil
	})
	return nil
}

// Destroy releases the program, every cached render target and every
// texture still held by a handle, then stops the queue. Tasks queued before
// Destroy still run. Releasing a handle afterwards returns
// ErrContextDestroyed.
func (c *Context) Destroy() {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return
	}
	c.destroyed = true
	c.mu.Unlock()

	Submit(context.Background(), c.queue, func() (struct{}, error) {
		c.targets.Purge()
		for tex := range c.owned {
			c.dev.DeleteTexture(tex)
		}
		clear(c.owned)
		c.dev.DeleteProgram(c.program)
		return struct{}{}, nil
	})
	c.queue.Close()
	c.log.Info("pipeline context destroyed")
}
