package worker

import (
	"context"
	"errors"
	"image/color"
	"math"
	"math/rand"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kriging "github.com/flywave/go-kriging-gpu"
	"github.com/flywave/go-kriging-gpu/codec"
	"github.com/flywave/go-kriging-gpu/gpu"
	"github.com/flywave/go-kriging-gpu/internal/logging"
	"github.com/flywave/go-kriging-gpu/pipeline"
)

func testRequest(seed int64, n int) Request {
	r := rand.New(rand.NewSource(seed))
	req := Request{
		LLCorner:       [2]float64{0, 0},
		CellSize:       5,
		GridSize:       [2]int{20, 16},
		PackValueRange: [2]float64{0, 4},
		Model:          kriging.Exponential,
		Sigma2:         0.1,
		Alpha:          100,
		ColorMapping: []codec.Break{
			{Min: math.Inf(-1), Max: 2, Color: color.RGBA{B: 255, A: 255}},
			{Min: 2, Max: math.Inf(1), Color: color.RGBA{R: 255, A: 255}},
		},
	}
	for i := 0; i < n; i++ {
		x, y := r.Float64()*100, r.Float64()*80
		req.Xs = append(req.Xs, x)
		req.Ys = append(req.Ys, y)
		req.Data = append(req.Data, math.Sin(x/20)+math.Cos(y/15)+2)
	}
	return req
}

func TestWorkerRun(t *testing.T) {
	w := New(gpu.NewSoftwareDevice())
	defer w.Close()
	require.NoError(t, w.GPUError())

	res := w.Run(context.Background(), testRequest(1, 50))
	require.NoError(t, res.Err)
	require.NoError(t, res.GPUError)
	assert.NotEmpty(t, res.ID)
	assert.Equal(t, 50, res.Samples)

	cells := 20 * 16
	assert.Len(t, res.RawBuffer, cells)
	assert.Len(t, res.ValueBuffer, cells)
	require.NotNil(t, res.Image)
	require.NotNil(t, res.PackedImage)
	assert.Equal(t, 20, res.Image.Rect.Dx())
	assert.Equal(t, 16, res.PackedImage.Rect.Dy())

	require.NotNil(t, res.Report)
	assert.Equal(t, cells, res.Report.Cells)
	assert.True(t, res.Report.Within(Tolerance), res.Report.String())
	assert.False(t, res.Diverged)

	for _, ms := range []float64{res.TimeTrain, res.TimeRawBuffer, res.TimeImage, res.TimePackedImage, res.TimeValueBuffer} {
		assert.GreaterOrEqual(t, ms, 0.0)
	}

	// Classified pixels follow the CPU raster except right at the break.
	g := res.Grid
	for i, v := range res.RawBuffer {
		if math.Abs(float64(v)-2) < 1e-3 {
			continue
		}
		want := color.RGBA{B: 255, A: 255}
		if v >= 2 {
			want = color.RGBA{R: 255, A: 255}
		}
		require.Equal(t, want, res.Image.RGBAAt(i%g.Cols, i/g.Cols), "cell %d", i)
	}
}

func TestWorkerWithoutRamp(t *testing.T) {
	w := New(gpu.NewSoftwareDevice())
	defer w.Close()

	req := testRequest(2, 30)
	req.ColorMapping = nil
	req.PackValueRange = [2]float64{}
	res := w.Run(context.Background(), req)
	require.NoError(t, res.Err)
	require.NoError(t, res.GPUError)
	assert.Nil(t, res.Image)
	assert.NotNil(t, res.PackedImage)
	assert.NotNil(t, res.ValueBuffer)
}

func TestWorkerCPUOnly(t *testing.T) {
	for name, w := range map[string]*Worker{
		"no device":   New(nil),
		"unsupported": New(gpu.NewSoftwareDevice(gpu.WithoutColorBufferFloat())),
	} {
		t.Run(name, func(t *testing.T) {
			defer w.Close()
			assert.ErrorIs(t, w.GPUError(), pipeline.ErrUnsupportedDevice)

			res := w.Run(context.Background(), testRequest(3, 20))
			require.NoError(t, res.Err)
			assert.ErrorIs(t, res.GPUError, pipeline.ErrUnsupportedDevice)
			assert.Len(t, res.RawBuffer, 20*16)
			assert.Nil(t, res.ValueBuffer)
			assert.Nil(t, res.Report)
		})
	}
}

func TestWorkerGPUFailureDegrades(t *testing.T) {
	// The grid fits the CPU path but not the device.
	w := New(gpu.NewSoftwareDevice(gpu.WithMaxTextureSize(16)))
	defer w.Close()

	req := testRequest(4, 20)
	req.ColorMapping = nil
	res := w.Run(context.Background(), req)
	require.NoError(t, res.Err)
	assert.ErrorIs(t, res.GPUError, kriging.ErrInvalidGrid)
	assert.Len(t, res.RawBuffer, 20*16)
	assert.Nil(t, res.ValueBuffer)
}

func TestWorkerInvalidRequests(t *testing.T) {
	w := New(nil)
	defer w.Close()

	req := testRequest(5, 10)
	req.Xs = req.Xs[:5]
	assert.ErrorIs(t, w.Run(context.Background(), req).Err, kriging.ErrInvalidParameter)

	req = testRequest(5, 10)
	req.GridSize = [2]int{0, 4}
	assert.ErrorIs(t, w.Run(context.Background(), req).Err, kriging.ErrInvalidGrid)

	req = testRequest(5, 10)
	req.Model = "linear"
	assert.ErrorIs(t, w.Run(context.Background(), req).Err, kriging.ErrUnknownModel)

	req = testRequest(5, 10)
	req.ColorMapping = []codec.Break{{Min: 1, Max: 0}}
	assert.ErrorIs(t, w.Run(context.Background(), req).Err, codec.ErrInvalidRamp)

	req = testRequest(5, 1)
	assert.ErrorIs(t, w.Run(context.Background(), req).Err, kriging.ErrNotEnoughSamples)
}

func TestWorkerThinning(t *testing.T) {
	if testing.Short() {
		t.Skip("trains a full-size model")
	}
	w := New(nil)
	defer w.Close()

	req := testRequest(6, kriging.MaxSamples+200)
	req.GridSize = [2]int{4, 4}
	res := w.Run(context.Background(), req)
	assert.ErrorIs(t, res.Err, kriging.ErrTooManySamples)

	req.Thin = true
	res = w.Run(context.Background(), req)
	require.NoError(t, res.Err)
	assert.LessOrEqual(t, res.Samples, kriging.MaxSamples)
	assert.Greater(t, res.Samples, 1)
}

func TestWorkerSubmit(t *testing.T) {
	w := New(gpu.NewSoftwareDevice())

	ids := map[string]bool{}
	for i := 0; i < 4; i++ {
		req := testRequest(int64(10+i), 20)
		if i == 0 {
			req.ID = "first"
		}
		id, err := w.Submit(context.Background(), req)
		require.NoError(t, err)
		ids[id] = true
	}
	assert.True(t, ids["first"])
	assert.Len(t, ids, 4)

	for i := 0; i < 4; i++ {
		res := <-w.Results()
		require.NoError(t, res.Err)
		require.NoError(t, res.GPUError)
		assert.True(t, ids[res.ID])
		delete(ids, res.ID)
	}

	w.Close()
	w.Close()
	_, ok := <-w.Results()
	assert.False(t, ok)
	_, err := w.Submit(context.Background(), testRequest(1, 10))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestCompare(t *testing.T) {
	r, err := Compare([]float32{1, 2, 10, -4}, []float32{1, 2.5, 9, -4})
	require.NoError(t, err)
	assert.Equal(t, 4, r.Cells)
	assert.InDelta(t, -0.125, r.MeanDiff, 1e-9)
	assert.InDelta(t, math.Sqrt(1.25/4), r.RMSE, 1e-9)
	assert.InDelta(t, 1, r.MaxAbsDiff, 1e-9)
	assert.InDelta(t, 0.25, r.MaxRelDiff, 1e-9)
	assert.False(t, r.Within(0.1))

	_, err = Compare([]float32{1}, nil)
	assert.Error(t, err)

	empty, err := Compare(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Cells)
}

func TestFlagDivergence(t *testing.T) {
	logger, hook := test.NewNullLogger()
	log := logrus.NewEntry(logger)

	res := &Response{Report: &Report{Cells: 4, MaxRelDiff: Tolerance / 2}}
	flagDivergence(log, res)
	assert.False(t, res.Diverged)
	assert.Empty(t, hook.AllEntries())

	res = &Response{Report: &Report{Cells: 4, MaxRelDiff: 9.4e3, MaxAbsDiff: 2e4}}
	flagDivergence(log, res)
	assert.True(t, res.Diverged)
	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, 9.4e3, entry.Data["maxRel"])

	hook.Reset()
	flagDivergence(log, &Response{})
	assert.Empty(t, hook.AllEntries())
}

func TestWorkerGaussianWithoutNugget(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logging.SetLogger(logger)
	t.Cleanup(func() { logging.SetLogger(nil) })

	w := New(gpu.NewSoftwareDevice())
	defer w.Close()

	req := testRequest(3, 200)
	req.Model, req.Sigma2 = kriging.Gaussian, 0
	res := w.Run(context.Background(), req)
	if errors.Is(res.Err, kriging.ErrSingularMatrix) {
		t.Skip("training data singular without a nugget")
	}
	require.NoError(t, res.Err)
	require.NoError(t, res.GPUError)
	require.NotNil(t, res.Report)

	// Float32 weights of an ill-conditioned gaussian system may miss the CPU
	// raster; the job must say so instead of returning silently.
	assert.Equal(t, !res.Report.Within(Tolerance), res.Diverged, res.Report.String())
	warned := false
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel && e.Message == "GPU values diverge from the CPU raster" {
			warned = true
		}
	}
	assert.Equal(t, res.Diverged, warned)
}

func TestPackRange(t *testing.T) {
	assert.Equal(t, [2]float64{1, 3}, packRange([2]float64{1, 3}, nil))
	assert.Equal(t, [2]float64{-1, 5}, packRange([2]float64{}, []float32{2, -1, 5}))
	assert.Equal(t, [2]float64{1.5, 2.5}, packRange([2]float64{}, []float32{2, 2}))
}
