// Package worker runs kriging jobs: it trains a model, rasters it on the
// CPU and evaluates it three times on the GPU pipeline, timing each step.
package worker

import (
	"fmt"
	"image"
	"math"

	kriging "github.com/flywave/go-kriging-gpu"
	"github.com/flywave/go-kriging-gpu/codec"
)

// Request is one job. Data, Xs and Ys are parallel sample slices; the grid
// starts at LLCorner with GridSize [cols, rows] cells of CellSize.
type Request struct {
	ID             string            `json:"id,omitempty"`
	Data           []float64         `json:"data"`
	Xs             []float64         `json:"xs"`
	Ys             []float64         `json:"ys"`
	LLCorner       [2]float64        `json:"llCorner"`
	CellSize       float64           `json:"cellSize"`
	GridSize       [2]int            `json:"gridSize"`
	ColorMapping   []codec.Break     `json:"colorMapping,omitempty"`
	PackValueRange [2]float64        `json:"packValueRange"`
	Model          kriging.ModelType `json:"model,omitempty"`
	Sigma2         float64           `json:"sigma2"`
	Alpha          float64           `json:"alpha,omitempty"`
	// Thin reduces inputs above kriging.MaxSamples with a voxel filter
	// instead of rejecting them.
	Thin bool `json:"thin,omitempty"`
}

// Grid returns the request grid.
func (r *Request) Grid() (kriging.Grid, error) {
	return kriging.NewGrid(r.LLCorner[0], r.LLCorner[1], r.CellSize, r.GridSize[0], r.GridSize[1])
}

func (r *Request) withDefaults() Request {
	req := *r
	if req.Model == "" {
		req.Model = kriging.DefaultModel
	}
	if req.Alpha == 0 {
		req.Alpha = kriging.DefaultAlpha
	}
	return req
}

// Response carries every output of a job. Slices and images belong to the
// receiver. Times are in milliseconds.
type Response struct {
	ID string

	RawBuffer   []float32
	ValueBuffer []float32
	Image       *image.RGBA
	PackedImage *image.RGBA

	TimeTrain       float64
	TimeRawBuffer   float64
	TimeImage       float64
	TimePackedImage float64
	TimeValueBuffer float64

	Grid    kriging.Grid
	Samples int
	Report  *Report
	// Diverged is set when Report exceeds Tolerance.
	Diverged bool

	// GPUError is set when the job fell back to the CPU path.
	GPUError error
	// Err is set when the job failed as a whole.
	Err error
}

// packRange returns the requested packing interval, or the data range of
// raw when none was given.
func packRange(req [2]float64, raw []float32) [2]float64 {
	if req[1] > req[0] {
		return req
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range raw {
		lo = math.Min(lo, float64(v))
		hi = math.Max(hi, float64(v))
	}
	if !(hi > lo) {
		return [2]float64{lo - 0.5, lo + 0.5}
	}
	return [2]float64{lo, hi}
}

func validateRequest(req *Request) error {
	if len(req.Data) != len(req.Xs) || len(req.Data) != len(req.Ys) {
		return fmt.Errorf("%w: %d values, %d xs, %d ys", kriging.ErrInvalidParameter, len(req.Data), len(req.Xs), len(req.Ys))
	}
	if !req.Model.Valid() {
		return fmt.Errorf("%w: %q", kriging.ErrUnknownModel, req.Model)
	}
	if _, err := req.Grid(); err != nil {
		return err
	}
	if len(req.ColorMapping) > 0 {
		if _, err := codec.NewColorRamp(req.ColorMapping); err != nil {
			return err
		}
	}
	return nil
}
