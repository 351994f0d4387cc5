package codec

import (
	"fmt"
	"image/color"
	"math"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/colornames"
)

// ParseColor accepts #rgb, #rrggbb, #rrggbbaa, rgb(r, g, b),
// rgba(r, g, b, a) with a in [0, 1], and SVG colour names.
func ParseColor(s string) (color.RGBA, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch {
	case strings.HasPrefix(s, "#"):
		return parseHex(s)
	case strings.HasPrefix(s, "rgb"):
		return parseFunctional(s)
	}
	if c, ok := colornames.Map[s]; ok {
		return c, nil
	}
	return color.RGBA{}, fmt.Errorf("%w: unknown color %q", ErrInvalidRamp, s)
}

func parseHex(s string) (color.RGBA, error) {
	alpha := uint8(255)
	if len(s) == 9 {
		a, err := strconv.ParseUint(s[7:], 16, 8)
		if err != nil {
			return color.RGBA{}, fmt.Errorf("%w: bad alpha in %q", ErrInvalidRamp, s)
		}
		alpha = uint8(a)
		s = s[:7]
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("%w: %v", ErrInvalidRamp, err)
	}
	r, g, b := c.RGB255()
	return color.RGBA{R: r, G: g, B: b, A: alpha}, nil
}

func parseFunctional(s string) (color.RGBA, error) {
	open := strings.IndexByte(s, '(')
	if open < 0 || !strings.HasSuffix(s, ")") {
		return color.RGBA{}, fmt.Errorf("%w: malformed color %q", ErrInvalidRamp, s)
	}
	name := strings.TrimSpace(s[:open])
	parts := strings.Split(s[open+1:len(s)-1], ",")
	if (name == "rgb" && len(parts) != 3) || (name == "rgba" && len(parts) != 4) || (name != "rgb" && name != "rgba") {
		return color.RGBA{}, fmt.Errorf("%w: malformed color %q", ErrInvalidRamp, s)
	}

	var ch [4]uint8
	ch[3] = 255
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return color.RGBA{}, fmt.Errorf("%w: bad channel in %q", ErrInvalidRamp, s)
		}
		if i == 3 {
			v *= 255
		}
		ch[i] = uint8(math.Round(math.Max(0, math.Min(255, v))))
	}
	return color.RGBA{R: ch[0], G: ch[1], B: ch[2], A: ch[3]}, nil
}

// BreakSpec is the textual form of a Break used in configuration files. A
// missing Min or Max means an open end.
type BreakSpec struct {
	Min   *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max   *float64 `json:"max,omitempty" yaml:"max,omitempty"`
	Color string   `json:"color" yaml:"color"`
}

// ParseBreaks converts specs into a validated ramp.
func ParseBreaks(specs []BreakSpec) (ColorRamp, error) {
	breaks := make([]Break, len(specs))
	for i, spec := range specs {
		c, err := ParseColor(spec.Color)
		if err != nil {
			return nil, fmt.Errorf("break %d: %w", i, err)
		}
		breaks[i] = Break{Min: math.Inf(-1), Max: math.Inf(1), Color: c}
		if spec.Min != nil {
			breaks[i].Min = *spec.Min
		}
		if spec.Max != nil {
			breaks[i].Max = *spec.Max
		}
	}
	return NewColorRamp(breaks)
}

// UniformRamp splits [min, max) into len(colors) equal breaks. The first
// and last breaks are left open.
func UniformRamp(min, max float64, colors []color.RGBA) (ColorRamp, error) {
	n := len(colors)
	if n == 0 || !(max > min) {
		return nil, fmt.Errorf("%w: uniform ramp over [%v, %v) with %d colors", ErrInvalidRamp, min, max, n)
	}
	step := (max - min) / float64(n)
	breaks := make([]Break, n)
	for i, c := range colors {
		breaks[i] = Break{Min: min + float64(i)*step, Max: min + float64(i+1)*step, Color: c}
	}
	breaks[0].Min = math.Inf(-1)
	breaks[n-1].Max = math.Inf(1)
	for i := 1; i < n; i++ {
		breaks[i].Min = breaks[i-1].Max
	}
	return NewColorRamp(breaks)
}

// GradientRamp builds an n-break uniform ramp blending from one colour to
// another in Lab space.
func GradientRamp(min, max float64, from, to color.RGBA, n int) (ColorRamp, error) {
	if n <= 0 || n > MaxBreaks {
		return nil, fmt.Errorf("%w: %d gradient steps", ErrInvalidRamp, n)
	}
	c0, _ := colorful.MakeColor(from)
	c1, _ := colorful.MakeColor(to)
	colors := make([]color.RGBA, n)
	for i := range colors {
		t := 0.0
		if n > 1 {
			t = float64(i) / float64(n-1)
		}
		r, g, b := c0.BlendLab(c1, t).Clamped().RGB255()
		colors[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return UniformRamp(min, max, colors)
}
