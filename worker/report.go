package worker

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Tolerance is the largest relative difference between the GPU value
// buffer and the CPU raster a job accepts before flagging it as diverged.
//
// The GPU evaluates the model in single precision. Gaussian models trained
// with sigma2 = 0 are ill-conditioned enough that their weights, once
// rounded to float32, can miss the CPU raster by orders of magnitude; such
// jobs should use a positive sigma2 or rely on RawBuffer.
const Tolerance = 1e-3

// Report compares a GPU value buffer with the CPU raster of the same grid.
type Report struct {
	Cells      int     `json:"cells"`
	MeanDiff   float64 `json:"meanDiff"`
	RMSE       float64 `json:"rmse"`
	MaxAbsDiff float64 `json:"maxAbsDiff"`
	MaxRelDiff float64 `json:"maxRelDiff"`
}

// Within reports whether every cell agrees to rel relative to max(1, |cpu|).
func (r *Report) Within(rel float64) bool {
	return r.MaxRelDiff <= rel
}

func (r *Report) String() string {
	return fmt.Sprintf("cells=%d mean=%.3g rmse=%.3g maxAbs=%.3g maxRel=%.3g", r.Cells, r.MeanDiff, r.RMSE, r.MaxAbsDiff, r.MaxRelDiff)
}

// Compare builds a Report from two rasters of equal length.
func Compare(cpu, gpu []float32) (*Report, error) {
	if len(cpu) != len(gpu) {
		return nil, fmt.Errorf("worker: comparing %d with %d cells", len(cpu), len(gpu))
	}
	if len(cpu) == 0 {
		return &Report{}, nil
	}

	diff := make([]float64, len(cpu))
	abs := make([]float64, len(cpu))
	rel := make([]float64, len(cpu))
	for i := range cpu {
		d := float64(gpu[i]) - float64(cpu[i])
		diff[i] = d
		abs[i] = math.Abs(d)
		rel[i] = abs[i] / math.Max(1, math.Abs(float64(cpu[i])))
	}
	sq := make([]float64, len(diff))
	floats.MulTo(sq, diff, diff)

	return &Report{
		Cells:      len(cpu),
		MeanDiff:   stat.Mean(diff, nil),
		RMSE:       math.Sqrt(stat.Mean(sq, nil)),
		MaxAbsDiff: floats.Max(abs),
		MaxRelDiff: floats.Max(rel),
	}, nil
}
