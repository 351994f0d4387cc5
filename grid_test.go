package kriging

import (
	"errors"
	"testing"

	vec2d "github.com/flywave/go3d/float64/vec2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGridFromExtent(t *testing.T) {
	a := assert.New(t)

	extent := vec2d.Rect{Min: vec2d.T{0, 0}, Max: vec2d.T{10, 5}}

	g, err := GridFromExtent(extent, 1, 10)
	require.NoError(t, err)
	a.Equal(Grid{OriginX: 0, OriginY: 0, CellSize: 1, Cols: 10, Rows: 5}, g)

	g, err = GridFromExtent(extent, 2, 10)
	require.NoError(t, err)
	a.Equal(Grid{OriginX: -5, OriginY: -2.5, CellSize: 2, Cols: 10, Rows: 5}, g)
	a.Equal(vec2d.Rect{Min: vec2d.T{-5, -2.5}, Max: vec2d.T{15, 7.5}}, g.Extent())

	g, err = GridFromExtent(extent, 1, 0)
	require.NoError(t, err)
	a.Equal(DefaultResolution, g.Cols)
	a.Equal(DefaultResolution/2, g.Rows)

	_, err = GridFromExtent(extent, 0, 10)
	a.True(errors.Is(err, ErrInvalidGrid))

	_, err = GridFromExtent(vec2d.Rect{Min: vec2d.T{1, 1}, Max: vec2d.T{1, 1}}, 1, 10)
	a.True(errors.Is(err, ErrInvalidGrid))
}

func TestGridAddressing(t *testing.T) {
	a := assert.New(t)

	g, err := NewGrid(10, 20, 2, 3, 2)
	require.NoError(t, err)
	a.Equal(6, g.Len())

	x, y := g.CellCenter(0, 0)
	a.Equal(11.0, x)
	a.Equal(21.0, y)
	x, y = g.CellCenter(2, 1)
	a.Equal(15.0, x)
	a.Equal(23.0, y)

	a.Equal(3, g.Index(0, 0))
	a.Equal(2, g.Index(2, 1))
}

func TestGridValidate(t *testing.T) {
	a := assert.New(t)

	a.Error(Grid{CellSize: 1, Cols: 0, Rows: 1}.Validate())
	a.Error(Grid{CellSize: 0, Cols: 1, Rows: 1}.Validate())
	a.Error(Grid{CellSize: -1, Cols: 1, Rows: 1}.Validate())
	a.NoError(Grid{CellSize: 0.5, Cols: 1, Rows: 1}.Validate())

	_, err := NewGrid(0, 0, 1, -2, 2)
	a.True(errors.Is(err, ErrInvalidGrid))
}
