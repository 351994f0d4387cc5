package gpu

import (
	"image"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// coordShader writes the fragment coordinate, a uniform and texel 0 of unit 0.
type coordShader struct{}

func (coordShader) Bind(u Uniforms, s Samplers) (FragmentFunc, error) {
	scale := float32(1)
	if v, ok := u.Value("u_scale"); ok {
		scale = v[0]
	}
	if b := u.Block(); len(b) > 0 {
		scale = b[0]
	}
	texel := s.Fetch(0, 0, 0)
	return func(x, y float32) [4]float32 {
		return [4]float32{x * scale, y * scale, texel[0], 1}
	}, nil
}

func TestSoftwareDeviceFloatTarget(t *testing.T) {
	a := assert.New(t)
	d := NewSoftwareDevice()

	src, err := d.CreateTexture(TextureDescriptor{Width: 1, Height: 1, Format: gputypes.TextureFormatRGBA32Float}, []float32{7, 0, 0, 0})
	require.NoError(t, err)
	dst, err := d.CreateTexture(TextureDescriptor{Width: 3, Height: 2, Format: gputypes.TextureFormatR32Float}, nil)
	require.NoError(t, err)
	fb, err := d.CreateFramebuffer(dst)
	require.NoError(t, err)
	p, err := d.CreateProgram(ProgramDescriptor{Label: "coord", Fragment: coordShader{}})
	require.NoError(t, err)

	require.NoError(t, d.BindFramebuffer(fb))
	require.NoError(t, d.UseProgram(p))
	require.NoError(t, d.BindTexture(0, src))
	require.NoError(t, d.SetUniform("u_scale", 2))
	d.Viewport(3, 2)
	require.NoError(t, d.Draw())

	out := make([]float32, 6)
	require.NoError(t, d.ReadPixels(out))
	// red = 2 * (x + 0.5), bottom row first
	a.Equal([]float32{1, 3, 5, 1, 3, 5}, out)

	require.NoError(t, d.SetUniformBlock([]float32{10}))
	require.NoError(t, d.Draw())
	require.NoError(t, d.ReadPixels(out))
	a.Equal([]float32{5, 15, 25, 5, 15, 25}, out)

	s := d.Stats()
	a.Equal(2, s.Textures)
	a.Equal(1, s.Framebuffers)
	a.Equal(2, s.Draws)
	a.Equal(12, s.Fragments)

	d.DeleteFramebuffer(fb)
	d.DeleteTexture(dst)
	d.DeleteTexture(src)
	a.Equal(0, d.Stats().Textures)
	a.Equal(0, d.Stats().Framebuffers)
}

func TestSoftwareDeviceDefaultFramebuffer(t *testing.T) {
	a := assert.New(t)
	d := NewSoftwareDevice()

	p, err := d.CreateProgram(ProgramDescriptor{Fragment: coordShader{}})
	require.NoError(t, err)
	require.NoError(t, d.UseProgram(p))
	require.NoError(t, d.SetUniform("u_scale", 0.25))
	d.Viewport(2, 2)
	require.NoError(t, d.Draw())

	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	require.NoError(t, d.ReadImage(img))

	// top-down: image row 0 is window row 1 (y = 1.5)
	a.Equal(uint8(32), img.Pix[0])  // 0.125
	a.Equal(uint8(96), img.Pix[1])  // 0.375
	a.Equal(uint8(255), img.Pix[3]) // alpha
	a.Equal(uint8(32), img.Pix[img.Stride+1])

	a.Error(d.ReadPixels(make([]float32, 4)))
}

func TestSoftwareDeviceCapabilities(t *testing.T) {
	a := assert.New(t)

	d := NewSoftwareDevice(WithoutFloatTextures())
	_, err := d.CreateTexture(TextureDescriptor{Width: 1, Height: 1, Format: gputypes.TextureFormatRGBA32Float}, nil)
	a.ErrorIs(err, ErrUnsupported)

	d = NewSoftwareDevice(WithoutColorBufferFloat())
	tex, err := d.CreateTexture(TextureDescriptor{Width: 1, Height: 1, Format: gputypes.TextureFormatR32Float}, nil)
	require.NoError(t, err)
	_, err = d.CreateFramebuffer(tex)
	a.ErrorIs(err, ErrIncompleteFramebuf)

	d = NewSoftwareDevice(WithoutUniformBlocks())
	a.False(d.Capabilities().UniformBlocks)
	a.ErrorIs(d.SetUniformBlock([]float32{1}), ErrUnsupported)
	a.NoError(d.SetUniform("u_x", 1, 2, 3, 4))
	a.Error(d.SetUniform("u_x", 1, 2, 3, 4, 5))

	d = NewSoftwareDevice(WithMaxTextureSize(16))
	_, err = d.CreateTexture(TextureDescriptor{Width: 32, Height: 1, Format: gputypes.TextureFormatRGBA8Unorm}, nil)
	a.ErrorIs(err, ErrUnsupported)
	_, err = d.CreateTexture(TextureDescriptor{Width: 2, Height: 2, Format: gputypes.TextureFormatRGBA32Float}, []float32{1})
	a.Error(err)
}

func TestSoftwareDeviceHandles(t *testing.T) {
	a := assert.New(t)
	d := NewSoftwareDevice()

	a.ErrorIs(d.BindFramebuffer(42), ErrInvalidHandle)
	a.ErrorIs(d.UseProgram(42), ErrInvalidHandle)
	a.ErrorIs(d.BindTexture(0, 42), ErrInvalidHandle)
	a.Error(d.BindTexture(MaxTextureUnits, 0))
	a.ErrorIs(d.Draw(), ErrNoProgram)
	_, err := d.CreateFramebuffer(42)
	a.ErrorIs(err, ErrInvalidHandle)
	_, err = d.CreateProgram(ProgramDescriptor{Label: "empty"})
	a.Error(err)

	d.Destroy()
	_, err = d.CreateTexture(TextureDescriptor{Width: 1, Height: 1, Format: gputypes.TextureFormatRGBA8Unorm}, nil)
	a.ErrorIs(err, ErrDeviceLost)
}
