// Package gpu defines the small slice of a GPU API the evaluation pipeline
// needs: float textures, framebuffers, one full-screen fragment pass,
// uniforms and readback. SoftwareDevice implements it on the CPU in float32.
package gpu

import (
	"errors"
	"image"

	"github.com/gogpu/gputypes"
)

// MaxTextureUnits is the number of texture units a draw may sample from.
const MaxTextureUnits = 4

var (
	ErrUnsupported        = errors.New("gpu: feature not supported by device")
	ErrInvalidHandle      = errors.New("gpu: invalid or deleted handle")
	ErrIncompleteFramebuf = errors.New("gpu: framebuffer incomplete")
	ErrNoProgram          = errors.New("gpu: no program in use")
	ErrDeviceLost         = errors.New("gpu: device destroyed")
)

// Texture, Framebuffer and Program are opaque handles. Zero is never a
// valid texture or program; the zero Framebuffer is the default one.
type (
	Texture     uint32
	Framebuffer uint32
	Program     uint32
)

const DefaultFramebuffer Framebuffer = 0

// TextureDescriptor describes a 2D texture.
type TextureDescriptor struct {
	Label  string
	Width  int
	Height int
	Format gputypes.TextureFormat
}

// Capabilities reports optional device features.
type Capabilities struct {
	// FloatTextures allows sampling R32Float and RGBA32Float textures.
	FloatTextures bool
	// ColorBufferFloat allows rendering into float attachments.
	ColorBufferFloat bool
	// UniformBlocks allows SetUniformBlock.
	UniformBlocks bool
	// SPIRV means programs are consumed as SPIR-V and their WGSL source is
	// compiled at CreateProgram.
	SPIRV          bool
	MaxTextureSize int
}

// Uniforms exposes the uniform state of a draw to a fragment shader.
type Uniforms interface {
	// Block returns the bound uniform block, or nil.
	Block() []float32
	// Value returns an individually set uniform.
	Value(name string) ([]float32, bool)
}

// Samplers gives texelFetch-style access to the bound textures. Rows are
// addressed bottom-up. Out-of-range fetches return zero.
type Samplers interface {
	Fetch(unit, x, y int) [4]float32
	Size(unit int) (int, int)
}

// FragmentFunc shades one fragment. x and y are the window coordinates of
// the pixel centre with y growing upwards.
type FragmentFunc func(x, y float32) [4]float32

// FragmentShader produces the per-fragment function of one draw from the
// bound uniforms and textures.
type FragmentShader interface {
	Bind(u Uniforms, s Samplers) (FragmentFunc, error)
}

// ProgramDescriptor pairs the WGSL source of a program with its CPU
// implementation.
type ProgramDescriptor struct {
	Label    string
	WGSL     string
	Fragment FragmentShader
}

// Device is a GPU context. Implementations are not required to be safe for
// concurrent use.
type Device interface {
	Capabilities() Capabilities

	CreateTexture(desc TextureDescriptor, data []float32) (Texture, error)
	DeleteTexture(t Texture)
	CreateFramebuffer(attachment Texture) (Framebuffer, error)
	DeleteFramebuffer(fb Framebuffer)
	BindFramebuffer(fb Framebuffer) error

	CreateProgram(desc ProgramDescriptor) (Program, error)
	DeleteProgram(p Program)
	UseProgram(p Program) error

	BindTexture(unit int, t Texture) error
	SetUniformBlock(data []float32) error
	SetUniform(name string, values ...float32) error

	Viewport(width, height int)
	Clear(rgba [4]float32)
	Draw() error

	// ReadPixels copies the red channel of the bound float framebuffer,
	// bottom row first.
	ReadPixels(dst []float32) error
	// ReadImage copies the bound RGBA8 framebuffer into a top-down image.
	ReadImage(dst *image.RGBA) error

	Destroy()
}

// IsFloat reports whether f is one of the float formats the pipeline uses.
func IsFloat(f gputypes.TextureFormat) bool {
	return f == gputypes.TextureFormatR32Float || f == gputypes.TextureFormatRGBA32Float
}

// Channels returns the channel count of the formats the pipeline uses, or 0.
func Channels(f gputypes.TextureFormat) int {
	switch f {
	case gputypes.TextureFormatR32Float:
		return 1
	case gputypes.TextureFormatRGBA32Float, gputypes.TextureFormatRGBA8Unorm:
		return 4
	}
	return 0
}
