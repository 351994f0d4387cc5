package gpu

import (
	"fmt"
	"image"
	"math"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"

	"github.com/flywave/go-kriging-gpu/internal/logging"
)

// SoftwareOption configures a SoftwareDevice.
type SoftwareOption func(*Capabilities)

// WithoutFloatTextures simulates a device that cannot sample float textures.
func WithoutFloatTextures() SoftwareOption {
	return func(c *Capabilities) { c.FloatTextures = false }
}

// WithoutColorBufferFloat simulates a device that cannot render to float
// attachments.
func WithoutColorBufferFloat() SoftwareOption {
	return func(c *Capabilities) { c.ColorBufferFloat = false }
}

// WithoutUniformBlocks simulates a device limited to individual uniforms.
func WithoutUniformBlocks() SoftwareOption {
	return func(c *Capabilities) { c.UniformBlocks = false }
}

// WithSPIRV makes CreateProgram compile the WGSL source to SPIR-V, as a
// hardware back-end would.
func WithSPIRV() SoftwareOption {
	return func(c *Capabilities) { c.SPIRV = true }
}

// WithMaxTextureSize limits texture dimensions.
func WithMaxTextureSize(n int) SoftwareOption {
	return func(c *Capabilities) { c.MaxTextureSize = n }
}

type swTexture struct {
	desc  TextureDescriptor
	float []float32
	bytes []uint8
}

type swProgram struct {
	desc  ProgramDescriptor
	spirv []byte
}

type swUniforms struct {
	block []float32
	named map[string][]float32
}

func (u *swUniforms) Block() []float32 { return u.block }

func (u *swUniforms) Value(name string) ([]float32, bool) {
	v, ok := u.named[name]
	return v, ok
}

// DeviceStats counts live objects and work done by a SoftwareDevice.
type DeviceStats struct {
	Textures     int
	Framebuffers int
	Programs     int
	Draws        int
	Fragments    int
}

// SoftwareDevice executes fragment programs on the CPU. Float attachments
// keep float32 precision; RGBA8 attachments quantize like a UNORM target.
// The default framebuffer is an RGBA8 surface sized by Viewport.
type SoftwareDevice struct {
	mu   sync.Mutex
	caps Capabilities

	next         uint32
	textures     map[Texture]*swTexture
	framebuffers map[Framebuffer]Texture
	programs     map[Program]*swProgram

	bound    Framebuffer
	program  Program
	units    [MaxTextureUnits]Texture
	uniforms swUniforms
	width    int
	height   int
	canvas   *swTexture

	draws, fragments int
	destroyed        bool
}

var _ Device = (*SoftwareDevice)(nil)

// NewSoftwareDevice returns a device with every capability enabled unless
// an option removes it.
func NewSoftwareDevice(opts ...SoftwareOption) *SoftwareDevice {
	caps := Capabilities{
		FloatTextures:    true,
		ColorBufferFloat: true,
		UniformBlocks:    true,
		MaxTextureSize:   8192,
	}
	for _, opt := range opts {
		opt(&caps)
	}
	logging.WithComponent("gpu").WithField("caps", fmt.Sprintf("%+v", caps)).Debug("software device created")
	return &SoftwareDevice{
		caps:         caps,
		textures:     make(map[Texture]*swTexture),
		framebuffers: make(map[Framebuffer]Texture),
		programs:     make(map[Program]*swProgram),
		uniforms:     swUniforms{named: make(map[string][]float32)},
		canvas:       &swTexture{desc: TextureDescriptor{Label: "default", Format: gputypes.TextureFormatRGBA8Unorm}},
	}
}

func (d *SoftwareDevice) Capabilities() Capabilities {
	return d.caps
}

func (d *SoftwareDevice) handle() uint32 {
	d.next++
	return d.next
}

func (d *SoftwareDevice) CreateTexture(desc TextureDescriptor, data []float32) (Texture, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.destroyed {
		return 0, ErrDeviceLost
	}

	ch := Channels(desc.Format)
	if ch == 0 {
		return 0, fmt.Errorf("%w: texture format %v", ErrUnsupported, desc.Format)
	}
	if IsFloat(desc.Format) && !d.caps.FloatTextures {
		return 0, fmt.Errorf("%w: float textures", ErrUnsupported)
	}
	if desc.Width <= 0 || desc.Height <= 0 || desc.Width > d.caps.MaxTextureSize || desc.Height > d.caps.MaxTextureSize {
		return 0, fmt.Errorf("%w: texture size %dx%d (max %d)", ErrUnsupported, desc.Width, desc.Height, d.caps.MaxTextureSize)
	}

	n := desc.Width * desc.Height * ch
	tex := &swTexture{desc: desc}
	if IsFloat(desc.Format) {
		tex.float = make([]float32, n)
		if data != nil {
			if len(data) != n {
				return 0, fmt.Errorf("gpu: texture %q expects %d floats, got %d", desc.Label, n, len(data))
			}
			copy(tex.float, data)
		}
	} else {
		tex.bytes = make([]uint8, n)
		if data != nil {
			if len(data) != n {
				return 0, fmt.Errorf("gpu: texture %q expects %d values, got %d", desc.Label, n, len(data))
			}
			for i, v := range data {
				tex.bytes[i] = unorm8(v)
			}
		}
	}

	t := Texture(d.handle())
	d.textures[t] = tex
	return t, nil
}

func (d *SoftwareDevice) DeleteTexture(t Texture) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.textures, t)
	for i := range d.units {
		if d.units[i] == t {
			d.units[i] = 0
		}
	}
}

func (d *SoftwareDevice) CreateFramebuffer(attachment Texture) (Framebuffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.destroyed {
		return 0, ErrDeviceLost
	}

	tex, ok := d.textures[attachment]
	if !ok {
		return 0, fmt.Errorf("%w: texture %d", ErrInvalidHandle, attachment)
	}
	if IsFloat(tex.desc.Format) && !d.caps.ColorBufferFloat {
		return 0, fmt.Errorf("%w: float color attachment", ErrIncompleteFramebuf)
	}

	fb := Framebuffer(d.handle())
	d.framebuffers[fb] = attachment
	return fb, nil
}

func (d *SoftwareDevice) DeleteFramebuffer(fb Framebuffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.framebuffers, fb)
	if d.bound == fb {
		d.bound = DefaultFramebuffer
	}
}

func (d *SoftwareDevice) BindFramebuffer(fb Framebuffer) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if fb != DefaultFramebuffer {
		if _, ok := d.framebuffers[fb]; !ok {
			return fmt.Errorf("%w: framebuffer %d", ErrInvalidHandle, fb)
		}
	}
	d.bound = fb
	return nil
}

func (d *SoftwareDevice) CreateProgram(desc ProgramDescriptor) (Program, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.destroyed {
		return 0, ErrDeviceLost
	}
	if desc.Fragment == nil {
		return 0, fmt.Errorf("gpu: program %q has no fragment stage", desc.Label)
	}

	prog := &swProgram{desc: desc}
	if d.caps.SPIRV {
		spirv, err := naga.Compile(desc.WGSL)
		if err != nil {
			return 0, fmt.Errorf("gpu: compile %q: %w", desc.Label, err)
		}
		prog.spirv = spirv
		logging.WithComponent("gpu").WithField("bytes", len(spirv)).Debug("program compiled to SPIR-V")
	}

	p := Program(d.handle())
	d.programs[p] = prog
	return p, nil
}

func (d *SoftwareDevice) DeleteProgram(p Program) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.programs, p)
	if d.program == p {
		d.program = 0
	}
}

func (d *SoftwareDevice) UseProgram(p Program) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.programs[p]; !ok {
		return fmt.Errorf("%w: program %d", ErrInvalidHandle, p)
	}
	d.program = p
	return nil
}

func (d *SoftwareDevice) BindTexture(unit int, t Texture) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if unit < 0 || unit >= MaxTextureUnits {
		return fmt.Errorf("gpu: texture unit %d out of range", unit)
	}
	if t != 0 {
		if _, ok := d.textures[t]; !ok {
			return fmt.Errorf("%w: texture %d", ErrInvalidHandle, t)
		}
	}
	d.units[unit] = t
	return nil
}

func (d *SoftwareDevice) SetUniformBlock(data []float32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.caps.UniformBlocks {
		return fmt.Errorf("%w: uniform blocks", ErrUnsupported)
	}
	d.uniforms.block = append(d.uniforms.block[:0], data...)
	return nil
}

func (d *SoftwareDevice) SetUniform(name string, values ...float32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if name == "" || len(values) == 0 || len(values) > 4 {
		return fmt.Errorf("gpu: uniform %q with %d components", name, len(values))
	}
	d.uniforms.named[name] = append([]float32(nil), values...)
	return nil
}

func (d *SoftwareDevice) Viewport(width, height int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.width, d.height = width, height
}

// target returns the texture backing the bound framebuffer, resizing the
// default surface to the viewport when needed.
func (d *SoftwareDevice) target() (*swTexture, error) {
	if d.bound == DefaultFramebuffer {
		c := d.canvas
		if c.desc.Width != d.width || c.desc.Height != d.height {
			c.desc.Width, c.desc.Height = d.width, d.height
			c.bytes = make([]uint8, d.width*d.height*4)
		}
		return c, nil
	}
	t, ok := d.textures[d.framebuffers[d.bound]]
	if !ok {
		return nil, fmt.Errorf("%w: attachment of framebuffer %d", ErrIncompleteFramebuf, d.bound)
	}
	return t, nil
}

func (d *SoftwareDevice) Clear(rgba [4]float32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, err := d.target()
	if err != nil {
		return
	}
	ch := Channels(t.desc.Format)
	for i := 0; i < t.desc.Width*t.desc.Height; i++ {
		t.write(i, ch, rgba)
	}
}

func (t *swTexture) write(pixel, ch int, rgba [4]float32) {
	if t.float != nil {
		copy(t.float[pixel*ch:pixel*ch+ch], rgba[:ch])
		return
	}
	for c := 0; c < 4; c++ {
		t.bytes[pixel*4+c] = unorm8(rgba[c])
	}
}

func unorm8(v float32) uint8 {
	if v != v || v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(math.Round(float64(v) * 255))
}

type swSamplers struct {
	units [MaxTextureUnits]*swTexture
}

func (s *swSamplers) Fetch(unit, x, y int) [4]float32 {
	var out [4]float32
	if unit < 0 || unit >= MaxTextureUnits || s.units[unit] == nil {
		return out
	}
	t := s.units[unit]
	if x < 0 || y < 0 || x >= t.desc.Width || y >= t.desc.Height {
		return out
	}
	i := y*t.desc.Width + x
	if t.float != nil {
		ch := Channels(t.desc.Format)
		copy(out[:], t.float[i*ch:i*ch+ch])
		if ch == 1 {
			out[3] = 1
		}
		return out
	}
	for c := 0; c < 4; c++ {
		out[c] = float32(t.bytes[i*4+c]) / 255
	}
	return out
}

func (s *swSamplers) Size(unit int) (int, int) {
	if unit < 0 || unit >= MaxTextureUnits || s.units[unit] == nil {
		return 0, 0
	}
	return s.units[unit].desc.Width, s.units[unit].desc.Height
}

// Draw runs the current program over every pixel of the viewport.
func (d *SoftwareDevice) Draw() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.destroyed {
		return ErrDeviceLost
	}

	prog, ok := d.programs[d.program]
	if !ok {
		return ErrNoProgram
	}
	t, err := d.target()
	if err != nil {
		return err
	}
	if t.desc.Width != d.width || t.desc.Height != d.height {
		return fmt.Errorf("gpu: viewport %dx%d does not match attachment %dx%d", d.width, d.height, t.desc.Width, t.desc.Height)
	}

	samplers := &swSamplers{}
	for i, u := range d.units {
		if u != 0 {
			samplers.units[i] = d.textures[u]
		}
	}
	shade, err := prog.desc.Fragment.Bind(&d.uniforms, samplers)
	if err != nil {
		return err
	}

	ch := Channels(t.desc.Format)
	for y := 0; y < d.height; y++ {
		fy := float32(y) + 0.5
		for x := 0; x < d.width; x++ {
			t.write(y*d.width+x, ch, shade(float32(x)+0.5, fy))
		}
	}
	d.draws++
	d.fragments += d.width * d.height
	return nil
}

func (d *SoftwareDevice) ReadPixels(dst []float32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, err := d.target()
	if err != nil {
		return err
	}
	if t.float == nil {
		return fmt.Errorf("%w: ReadPixels needs a float attachment", ErrUnsupported)
	}
	n := t.desc.Width * t.desc.Height
	if len(dst) < n {
		return fmt.Errorf("gpu: ReadPixels destination holds %d of %d values", len(dst), n)
	}
	ch := Channels(t.desc.Format)
	for i := 0; i < n; i++ {
		dst[i] = t.float[i*ch]
	}
	return nil
}

func (d *SoftwareDevice) ReadImage(dst *image.RGBA) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, err := d.target()
	if err != nil {
		return err
	}
	if t.bytes == nil {
		return fmt.Errorf("%w: ReadImage needs an RGBA8 attachment", ErrUnsupported)
	}
	w, h := t.desc.Width, t.desc.Height
	if dst.Rect.Dx() != w || dst.Rect.Dy() != h {
		return fmt.Errorf("gpu: ReadImage destination is %v, framebuffer %dx%d", dst.Rect.Size(), w, h)
	}
	for y := 0; y < h; y++ {
		src := t.bytes[(h-1-y)*w*4 : (h-y)*w*4]
		copy(dst.Pix[y*dst.Stride:y*dst.Stride+w*4], src)
	}
	return nil
}

// Stats returns a snapshot of live objects and work done.
func (d *SoftwareDevice) Stats() DeviceStats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return DeviceStats{
		Textures:     len(d.textures),
		Framebuffers: len(d.framebuffers),
		Programs:     len(d.programs),
		Draws:        d.draws,
		Fragments:    d.fragments,
	}
}

// SPIRV returns the compiled module of p when the device compiles programs.
func (d *SoftwareDevice) SPIRV(p Program) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	if prog, ok := d.programs[p]; ok {
		return prog.spirv
	}
	return nil
}

func (d *SoftwareDevice) Destroy() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.textures = make(map[Texture]*swTexture)
	d.framebuffers = make(map[Framebuffer]Texture)
	d.programs = make(map[Program]*swProgram)
	d.units = [MaxTextureUnits]Texture{}
	d.bound = DefaultFramebuffer
	d.program = 0
	d.destroyed = true
}
