package kriging

import (
	"fmt"
	"math"

	vec2d "github.com/flywave/go3d/float64/vec2"
)

// DefaultResolution is the number of cells along the longer side of a grid
// built by GridFromExtent when no resolution is given.
const DefaultResolution = 300

// Grid is a regular raster over world coordinates. Origin is the lower-left
// corner; rows are counted from the bottom when addressing cells, while
// rasters produced over a Grid are stored top-down.
type Grid struct {
	OriginX  float64 `json:"originX" yaml:"originX"`
	OriginY  float64 `json:"originY" yaml:"originY"`
	CellSize float64 `json:"cellSize" yaml:"cellSize"`
	Cols     int     `json:"cols" yaml:"cols"`
	Rows     int     `json:"rows" yaml:"rows"`
}

func NewGrid(originX, originY, cellSize float64, cols, rows int) (Grid, error) {
	g := Grid{OriginX: originX, OriginY: originY, CellSize: cellSize, Cols: cols, Rows: rows}
	if err := g.Validate(); err != nil {
		return Grid{}, err
	}
	return g, nil
}

// GridFromExtent scales extent about its centre by factor and splits the
// longer side into resolution cells.
func GridFromExtent(extent vec2d.Rect, factor float64, resolution int) (Grid, error) {
	if factor <= 0 || !finite(factor) {
		return Grid{}, fmt.Errorf("%w: expand factor %v", ErrInvalidGrid, factor)
	}
	if resolution <= 0 {
		resolution = DefaultResolution
	}
	w := extent.Max[0] - extent.Min[0]
	h := extent.Max[1] - extent.Min[1]
	if !finite(w) || !finite(h) || w < 0 || h < 0 || (w == 0 && h == 0) {
		return Grid{}, fmt.Errorf("%w: degenerate extent %v", ErrInvalidGrid, extent)
	}

	cx := (extent.Min[0] + extent.Max[0]) / 2
	cy := (extent.Min[1] + extent.Max[1]) / 2
	w *= factor
	h *= factor

	cell := math.Max(w, h) / float64(resolution)
	g := Grid{
		OriginX:  cx - w/2,
		OriginY:  cy - h/2,
		CellSize: cell,
		Cols:     int(math.Max(1, math.Round(w/cell))),
		Rows:     int(math.Max(1, math.Round(h/cell))),
	}
	return g, g.Validate()
}

func (g Grid) Validate() error {
	if g.Cols <= 0 || g.Rows <= 0 {
		return fmt.Errorf("%w: size %dx%d", ErrInvalidGrid, g.Cols, g.Rows)
	}
	if !(g.CellSize > 0) || !finite(g.CellSize) {
		return fmt.Errorf("%w: cell size %v", ErrInvalidGrid, g.CellSize)
	}
	if !finite(g.OriginX) || !finite(g.OriginY) {
		return fmt.Errorf("%w: origin (%v, %v)", ErrInvalidGrid, g.OriginX, g.OriginY)
	}
	return nil
}

// Len is the number of cells.
func (g Grid) Len() int {
	return g.Cols * g.Rows
}

// CellCenter returns the world coordinate of cell (col, row), row counted
// from the bottom.
func (g Grid) CellCenter(col, row int) (float64, float64) {
	return g.OriginX + (float64(col)+0.5)*g.CellSize,
		g.OriginY + (float64(row)+0.5)*g.CellSize
}

// Index returns the top-down raster offset of cell (col, row).
func (g Grid) Index(col, row int) int {
	return (g.Rows-1-row)*g.Cols + col
}

func (g Grid) Extent() vec2d.Rect {
	return vec2d.Rect{
		Min: vec2d.T{g.OriginX, g.OriginY},
		Max: vec2d.T{g.OriginX + float64(g.Cols)*g.CellSize, g.OriginY + float64(g.Rows)*g.CellSize},
	}
}

func (g Grid) String() string {
	return fmt.Sprintf("%dx%d@%g(%g,%g)", g.Cols, g.Rows, g.CellSize, g.OriginX, g.OriginY)
}
