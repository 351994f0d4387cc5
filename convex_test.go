package kriging

import (
	"testing"

	vec2d "github.com/flywave/go3d/float64/vec2"
	vec3d "github.com/flywave/go3d/float64/vec3"

	"github.com/stretchr/testify/assert"
)

func TestNewConvex(t *testing.T) {
	a := assert.New(t)

	vertices := []vec3d.T{{0, 0, 0}, {100, 0, 0}, {100, -10, 0}, {150, 100, 0}, {100, 200, 0}, {0, 210, 0}, {-50, 100, 0}, {30, 30, 0}, {75, 30, 0}}
	hull := []vec2d.T{{-50, 100}, {0, 0}, {100, -10}, {150, 100}, {100, 200}, {0, 210}}

	c := NewConvex(vertices)

	a.Equal(hull, c.Hull())
	a.Equal(vec2d.Rect{Min: vec2d.T{-50, -10}, Max: vec2d.T{150, 210}}, c.Rect())
}

func TestEdge(t *testing.T) {
	a := assert.New(t)

	vertices := []vec3d.T{
		{0, 0, 0},
		{100, 0, 0},
		{0, 100, 0},
		{100, 100, 0}}

	c := NewConvex(vertices)

	edges := c.Edges()
	a.Len(edges, 4)
	for i, edge := range edges {
		nextIndex := i + 1
		if len(edges) <= nextIndex {
			nextIndex = 0
		}

		nextEdge := edges[nextIndex]
		a.True(OnTheRight(Subtract(nextEdge.End, nextEdge.Start), Subtract(edge.End, edge.Start)))
		a.InDelta(1, edge.Normal.Length(), 1e-12)
	}
}

func TestInHull(t *testing.T) {
	a := assert.New(t)

	vertices := []vec3d.T{
		{0, 0, 0},
		{100, 0, 0},
		{0, 100, 0},
		{100, 100, 0}}

	c := NewConvex(vertices)

	a.True(c.InHull(vec2d.T{50, 50}))
	a.False(c.InHull(vec2d.T{50, -50}))
	a.False(c.InHull(vec2d.T{0, 50}))

	a.True(c.Contains(0, 50))
	a.True(c.Contains(100, 100))
	a.False(c.Contains(100.5, 50))
}

func TestDegenerateHull(t *testing.T) {
	a := assert.New(t)

	c := NewConvex([]vec3d.T{{0, 0, 1}, {1, 1, 2}, {2, 2, 3}})
	a.True(c.Degenerate())
	a.False(c.Contains(1, 1))

	a.Empty(NewConvex(nil).Hull())
}

func TestSupport(t *testing.T) {
	a := assert.New(t)

	c := NewConvex(
		[]vec3d.T{
			{0, 0, 0},
			{100, 0, 0},
			{0, 100, 0},
			{100, 100, 0}})

	a.Equal(vec2d.T{100, 100}, c.Support(vec2d.T{1, 1}))
	a.Equal(vec2d.T{0, 0}, c.Support(vec2d.T{-1, -1}))
}
