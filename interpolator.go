package kriging

import (
	"fmt"
	"math"

	vec2d "github.com/flywave/go3d/float64/vec2"
	vec3d "github.com/flywave/go3d/float64/vec3"
	"github.com/sirupsen/logrus"

	"github.com/flywave/go-kriging-gpu/internal/logging"
)

const (
	DefaultNoData       = float64(-9999)
	DefaultModel        = Exponential
	DefaultSigma2       = float64(0)
	DefaultAlpha        = float64(100)
	DefaultExpandFactor = float64(1)
)

const (
	BILINEAR   = "bilinear"
	HYPERBOLIC = "hyperbolic"
)

// CellInterpolator blends the four raster values around a point. x and y
// are the fractional offsets from the north-west value.
type CellInterpolator interface {
	Interpolate(southWestHeight, southEastHeight, northWestHeight, northEastHeight, x, y float64) float64
}

type BilinearInterpolator struct{}

func Lerp(value1, value2, amount float64) float64 { return value1 + (value2-value1)*amount }

func (i *BilinearInterpolator) Interpolate(southWestHeight, southEastHeight, northWestHeight, northEastHeight, x, y float64) float64 {
	return Lerp(Lerp(northWestHeight, southWestHeight, y), Lerp(northEastHeight, southEastHeight, y), x)
}

type HyperbolicInterpolator struct{}

func (i *HyperbolicInterpolator) Interpolate(southWestHeight, southEastHeight, northWestHeight, northEastHeight, x, y float64) float64 {
	h1 := northWestHeight
	h2 := northEastHeight
	h3 := southWestHeight
	h4 := southEastHeight
	a00 := h1
	a10 := h2 - h1
	a01 := h3 - h1
	a11 := h1 - h2 - h3 + h4
	return a00 + a10*x + a01*y + a11*x*y
}

func NewCellInterpolator(name string) (CellInterpolator, error) {
	switch name {
	case "", BILINEAR:
		return &BilinearInterpolator{}, nil
	case HYPERBOLIC:
		return &HyperbolicInterpolator{}, nil
	}
	return nil, fmt.Errorf("%w: interpolator %q", ErrInvalidParameter, name)
}

// Options configures an Interpolator. Nil fields take the package defaults.
type Options struct {
	Model        *ModelType
	Sigma2       *float64
	Alpha        *float64
	Grid         *Grid
	ExpandFactor *float64
	Resolution   *int
	MaxSamples   *int
	ClipToHull   *bool
	NoData       *float64
	Interpolator *string
}

// Interpolator runs the CPU path end to end: thin the samples, train,
// derive the grid and raster it, optionally clipped to the sample hull.
type Interpolator struct {
	model        ModelType
	sigma2       float64
	alpha        float64
	grid         *Grid
	expandFactor float64
	resolution   int
	maxSamples   int
	clip         bool
	nodata       float64
	cell         CellInterpolator
}

// Result is the product of Interpolator.Process.
type Result struct {
	Grid    Grid
	Values  []float32
	Samples []vec3d.T
	Kriging *Kriging
	Hull    *Convex
	NoData  float64
	Min     float64
	Max     float64

	cell CellInterpolator
}

func NewInterpolator(opts Options) (*Interpolator, error) {
	inter := &Interpolator{
		model:        DefaultModel,
		sigma2:       DefaultSigma2,
		alpha:        DefaultAlpha,
		grid:         opts.Grid,
		expandFactor: DefaultExpandFactor,
		resolution:   DefaultResolution,
		maxSamples:   MaxSamples,
		nodata:       DefaultNoData,
	}

	if opts.Model != nil {
		inter.model = *opts.Model
	}
	if opts.Sigma2 != nil {
		inter.sigma2 = *opts.Sigma2
	}
	if opts.Alpha != nil {
		inter.alpha = *opts.Alpha
	}
	if opts.ExpandFactor != nil {
		inter.expandFactor = *opts.ExpandFactor
	}
	if opts.Resolution != nil {
		inter.resolution = *opts.Resolution
	}
	if opts.MaxSamples != nil {
		inter.maxSamples = *opts.MaxSamples
	}
	if inter.maxSamples > MaxSamples {
		return nil, fmt.Errorf("%w: sample limit %d exceeds %d", ErrTooManySamples, inter.maxSamples, MaxSamples)
	}
	if opts.ClipToHull != nil {
		inter.clip = *opts.ClipToHull
	}
	if opts.NoData != nil {
		inter.nodata = float64(float32(*opts.NoData))
	}

	name := ""
	if opts.Interpolator != nil {
		name = *opts.Interpolator
	}
	cell, err := NewCellInterpolator(name)
	if err != nil {
		return nil, err
	}
	inter.cell = cell

	return inter, nil
}

// Process rasters pos over the configured grid, or over the expanded sample
// extent when no grid is set.
func (p *Interpolator) Process(pos []vec3d.T) (*Result, error) {
	log := logging.WithComponent("interpolator")

	samples, err := ThinSamples(pos, p.maxSamples)
	if err != nil {
		return nil, err
	}
	if len(samples) != len(pos) {
		log.WithFields(logrus.Fields{"in": len(pos), "out": len(samples)}).Info("samples thinned")
	}

	kri, err := New(samples).Train(p.model, p.sigma2, p.alpha)
	if err != nil {
		return nil, err
	}

	hull := NewConvex(samples)
	grid, err := p.cacleGrid(samples)
	if err != nil {
		return nil, err
	}

	values, err := kri.Raster(grid)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Grid:    grid,
		Values:  values,
		Samples: samples,
		Kriging: kri,
		Hull:    hull,
		NoData:  p.nodata,
		Min:     math.Inf(1),
		Max:     math.Inf(-1),
		cell:    p.cell,
	}
	if p.clip && !hull.Degenerate() {
		p.clipToHull(res)
	}
	for _, v := range res.Values {
		if float64(v) == p.nodata {
			continue
		}
		res.Min = math.Min(res.Min, float64(v))
		res.Max = math.Max(res.Max, float64(v))
	}
	return res, nil
}

func (p *Interpolator) cacleGrid(samples []vec3d.T) (Grid, error) {
	if p.grid != nil {
		return *p.grid, p.grid.Validate()
	}
	lo, hi, err := minMaxVec3(samples)
	if err != nil {
		return Grid{}, err
	}
	extent := vec2d.Rect{Min: vec2d.T{lo[0], lo[1]}, Max: vec2d.T{hi[0], hi[1]}}
	return GridFromExtent(extent, p.expandFactor, p.resolution)
}

func (p *Interpolator) clipToHull(res *Result) {
	g := res.Grid
	for r := 0; r < g.Rows; r++ {
		cursor := g.Index(0, r)
		for c := 0; c < g.Cols; c++ {
			x, y := g.CellCenter(c, r)
			if !res.Hull.Contains(x, y) {
				res.Values[cursor+c] = float32(p.nodata)
			}
		}
	}
}

// ValueAt interpolates the raster at a world coordinate between the four
// surrounding cell centres. NoData cells are replaced by the mean of the
// valid neighbours; outside the grid it returns NoData.
func (r *Result) ValueAt(x, y float64) float64 {
	g := r.Grid
	fx := (x-g.OriginX)/g.CellSize - 0.5
	fy := (g.OriginY+float64(g.Rows)*g.CellSize-y)/g.CellSize - 0.5
	if fx < -0.5 || fy < -0.5 || fx > float64(g.Cols)-0.5 || fy > float64(g.Rows)-0.5 {
		return r.NoData
	}

	x0, y0 := int(math.Floor(fx)), int(math.Floor(fy))
	northWest := r.value(x0, y0)
	northEast := r.value(x0+1, y0)
	southWest := r.value(x0, y0+1)
	southEast := r.value(x0+1, y0+1)

	avg := getAverageExceptForNoDataValue(r.NoData, r.NoData, southWest, southEast, northWest, northEast)
	if avg == r.NoData {
		return r.NoData
	}
	if northWest == r.NoData {
		northWest = avg
	}
	if northEast == r.NoData {
		northEast = avg
	}
	if southWest == r.NoData {
		southWest = avg
	}
	if southEast == r.NoData {
		southEast = avg
	}

	cell := r.cell
	if cell == nil {
		cell = &BilinearInterpolator{}
	}
	return cell.Interpolate(southWest, southEast, northWest, northEast, fx-float64(x0), fy-float64(y0))
}

// value reads a top-down raster cell, clamping to the edges.
func (r *Result) value(col, row int) float64 {
	g := r.Grid
	col = clampInt(col, 0, g.Cols-1)
	row = clampInt(row, 0, g.Rows-1)
	return float64(r.Values[row*g.Cols+col])
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func getAverageExceptForNoDataValue(noData, valueIfAllBad float64, values ...float64) float64 {
	sum := 0.0
	n := 0
	for _, v := range values {
		if v != noData {
			sum += v
			n++
		}
	}
	if n == 0 {
		return valueIfAllBad
	}
	return sum / float64(n)
}
