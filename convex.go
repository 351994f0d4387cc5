package kriging

import (
	"math"

	vec2d "github.com/flywave/go3d/float64/vec2"
	vec3d "github.com/flywave/go3d/float64/vec3"
)

// Convex is the 2D convex hull of a sample set, used to clip rasters to the
// area the samples actually cover.
type Convex struct {
	vertices []vec3d.T
	hull     []vec2d.T
	edges    []Edge
}

type Edge struct {
	Start  vec2d.T
	End    vec2d.T
	Normal vec2d.T
}

func NewConvex(vertices []vec3d.T) *Convex {
	c := Convex{vertices, nil, nil}
	return &c
}

func (c *Convex) Rect() vec2d.Rect {
	r := vec2d.Rect{Min: vec2d.MaxVal, Max: vec2d.MinVal}
	for i := range c.Hull() {
		r.Extend(&c.hull[i])
	}
	return r
}

// Hull returns the hull vertices in counter-clockwise order.
func (c *Convex) Hull() []vec2d.T {
	if c.hull == nil {
		if len(c.vertices) == 0 {
			c.hull = []vec2d.T{}
			return c.hull
		}
		minX, maxX := c.getExtremePoints()
		if minX == maxX {
			c.hull = []vec2d.T{minX}
			return c.hull
		}
		c.hull = append(c.quickHull(c.vertices, maxX, minX), c.quickHull(c.vertices, minX, maxX)...)
	}

	return c.hull
}

// Degenerate reports whether the hull encloses no area.
func (c *Convex) Degenerate() bool {
	return len(c.Hull()) < 3
}

func (c *Convex) Edges() []Edge {
	if c.edges == nil {
		hull := c.Hull()
		for i, start := range hull {
			nextIndex := i + 1
			if len(hull) <= nextIndex {
				nextIndex = 0
			}
			end := hull[nextIndex]
			d := vec2d.Sub(&end, &start)
			normal := vec2d.T{d[1], -d[0]}
			normal.Normalize()
			c.edges = append(c.edges, Edge{
				start,
				end,
				normal})
		}
	}
	return c.edges
}

// Support returns the hull vertex farthest along dir.
func (c *Convex) Support(dir vec2d.T) (bestVertex vec2d.T) {
	bestProjection := -math.MaxFloat64

	for _, vertex := range c.Hull() {
		v := vertex
		projection := vec2d.Dot(&v, &dir)

		if bestProjection < projection {
			bestVertex = vertex
			bestProjection = projection
		}
	}

	return bestVertex
}

func (c *Convex) quickHull(points []vec3d.T, start, end vec2d.T) []vec2d.T {
	lhs, farthestPoint := c.leftOf(points, start, end)
	if len(lhs) == 0 {
		return []vec2d.T{end}
	}

	return append(
		c.quickHull(lhs, farthestPoint, end),
		c.quickHull(lhs, start, farthestPoint)...)
}

func Subtract(lhs vec2d.T, rhs vec2d.T) vec2d.T {
	return vec2d.T{lhs[0] - rhs[0], lhs[1] - rhs[1]}
}

func OnTheRight(v vec2d.T, o vec2d.T) bool {
	return Cross(v, o) < 0
}

// InHull reports whether point lies strictly inside the hull.
func (c *Convex) InHull(point vec2d.T) bool {
	if c.Degenerate() {
		return false
	}
	for _, edge := range c.Edges() {
		if !OnTheRight(Subtract(point, edge.Start), Subtract(edge.End, edge.Start)) {
			return false
		}
	}

	return true
}

// Contains is InHull with points on the boundary counted as inside.
func (c *Convex) Contains(x, y float64) bool {
	if c.Degenerate() {
		return false
	}
	p := vec2d.T{x, y}
	for _, edge := range c.Edges() {
		if Cross(Subtract(edge.End, edge.Start), Subtract(p, edge.Start)) < 0 {
			return false
		}
	}
	return true
}

func (c *Convex) getExtremePoints() (minX, maxX vec2d.T) {
	minX = vec2d.T{math.MaxFloat64, 0}
	maxX = vec2d.T{-math.MaxFloat64, 0}

	for _, p := range c.vertices {
		if p[0] < minX[0] || (p[0] == minX[0] && p[1] < minX[1]) {
			minX = vec2d.T{p[0], p[1]}
		}

		if maxX[0] < p[0] || (p[0] == maxX[0] && p[1] > maxX[1]) {
			maxX = vec2d.T{p[0], p[1]}
		}
	}

	return minX, maxX
}

// leftOf returns the points strictly left of start→end and the one farthest
// from that line.
func (c *Convex) leftOf(points []vec3d.T, start, end vec2d.T) ([]vec3d.T, vec2d.T) {
	var lhs []vec3d.T
	var farthestPoint vec2d.T
	maxDistanceIndicator := -math.MaxFloat64

	for _, point := range points {
		distanceIndicator := c.getDistanceIndicator(point, start, end)
		if distanceIndicator > 0 {
			lhs = append(lhs, point)
			if maxDistanceIndicator < distanceIndicator {
				maxDistanceIndicator = distanceIndicator
				farthestPoint = vec2d.T{point[0], point[1]}
			}
		}
	}

	return lhs, farthestPoint
}

func Cross(lhs, rhs vec2d.T) float64 {
	return (lhs[0] * rhs[1]) - (lhs[1] * rhs[0])
}

func (c *Convex) getDistanceIndicator(point vec3d.T, start, end vec2d.T) float64 {
	point2d := vec2d.T{point[0], point[1]}
	vLine := vec2d.Sub(&end, &start)

	vPoint := vec2d.Sub(&point2d, &start)

	return Cross(vLine, vPoint)
}
