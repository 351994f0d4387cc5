package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	kriging "github.com/flywave/go-kriging-gpu"
	"github.com/flywave/go-kriging-gpu/gpu"
	"github.com/flywave/go-kriging-gpu/internal/logging"
	"github.com/flywave/go-kriging-gpu/pipeline"
)

// DefaultResultsSize is the buffer of the results channel.
const DefaultResultsSize = 16

var ErrClosed = errors.New("worker: closed")

// Worker runs jobs against one pipeline context. Without a usable device it
// degrades to CPU-only jobs and reports why in Response.GPUError.
type Worker struct {
	pc     *pipeline.Context
	gpuErr error
	log    *logrus.Entry

	results chan *Response
	wg      sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// New creates a worker drawing with dev. dev may be nil.
func New(dev gpu.Device, opts ...pipeline.Option) *Worker {
	w := &Worker{
		log:     logging.WithComponent("worker"),
		results: make(chan *Response, DefaultResultsSize),
	}
	if dev == nil {
		w.gpuErr = fmt.Errorf("%w: no device", pipeline.ErrUnsupportedDevice)
	} else if pc, err := pipeline.NewContext(dev, opts...); err != nil {
		w.gpuErr = err
	} else {
		w.pc = pc
	}
	if w.gpuErr != nil {
		w.log.WithError(w.gpuErr).Warn("GPU pipeline unavailable, running CPU only")
	}
	return w
}

// GPUError returns why the worker runs CPU only, or nil.
func (w *Worker) GPUError() error {
	return w.gpuErr
}

// Results delivers the responses of submitted jobs. It is closed by Close.
func (w *Worker) Results() <-chan *Response {
	return w.results
}

// Submit starts req in its own goroutine and returns the job ID. The
// response arrives on Results; the caller must keep draining it.
func (w *Worker) Submit(ctx context.Context, req Request) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return "", ErrClosed
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.results <- w.Run(ctx, req)
	}()
	return req.ID, nil
}

// Run executes req synchronously. A failure of the whole job is reported in
// Response.Err; the response is never nil.
func (w *Worker) Run(ctx context.Context, req Request) *Response {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	req = req.withDefaults()
	res := &Response{ID: req.ID}
	log := w.log.WithField("job", req.ID)

	if err := validateRequest(&req); err != nil {
		res.Err = err
		log.WithError(err).Error("invalid request")
		return res
	}
	g, _ := req.Grid()
	res.Grid = g

	kri, err := kriging.NewFromArrays(req.Data, req.Xs, req.Ys)
	if err != nil {
		res.Err = err
		return res
	}
	if n := len(kri.Positions()); req.Thin && n > kriging.MaxSamples {
		pos, err := kriging.ThinSamples(kri.Positions(), kriging.MaxSamples)
		if err != nil {
			res.Err = err
			return res
		}
		log.WithFields(logrus.Fields{"from": n, "to": len(pos)}).Info("samples thinned")
		kri = kriging.New(pos)
	}

	start := time.Now()
	if _, err := kri.Train(req.Model, req.Sigma2, req.Alpha); err != nil {
		res.Err = err
		log.WithError(err).Error("training failed")
		return res
	}
	res.TimeTrain = millis(start)
	res.Samples = kri.N

	start = time.Now()
	if res.RawBuffer, err = kri.Raster(g); err != nil {
		res.Err = err
		return res
	}
	res.TimeRawBuffer = millis(start)

	if w.pc == nil {
		res.GPUError = w.gpuErr
	} else if err := w.evaluate(ctx, &req, kri, res); err != nil {
		res.GPUError = err
		log.WithError(err).Warn("GPU evaluation failed, returning CPU raster only")
	}

	log.WithFields(logrus.Fields{
		"samples": res.Samples,
		"grid":    g.String(),
		"train":   res.TimeTrain,
		"raw":     res.TimeRawBuffer,
		"image":   res.TimeImage,
		"packed":  res.TimePackedImage,
		"value":   res.TimeValueBuffer,
	}).Info("job done")
	return res
}

// evaluate runs the three GPU draws and the comparison with the CPU raster.
func (w *Worker) evaluate(ctx context.Context, req *Request, kri *kriging.Kriging, res *Response) error {
	v, err := w.pc.UploadVariogram(ctx, kri)
	if err != nil {
		return err
	}
	defer v.Release()

	opts := pipeline.GenerateOptions{Variogram: v, Grid: res.Grid}

	if len(req.ColorMapping) > 0 {
		ramp, err := w.pc.UploadRamp(ctx, req.ColorMapping)
		if err != nil {
			return err
		}
		defer ramp.Release()

		opts.Format, opts.Ramp = pipeline.ClassifiedImage, ramp
		start := time.Now()
		out, err := w.pc.Generate(ctx, opts)
		if err != nil {
			return err
		}
		res.Image, res.TimeImage = out.Image, millis(start)
		opts.Ramp = nil
	}

	opts.Format = pipeline.PackedImage
	opts.PackValueRange = packRange(req.PackValueRange, res.RawBuffer)
	start := time.Now()
	out, err := w.pc.Generate(ctx, opts)
	if err != nil {
		return err
	}
	res.PackedImage, res.TimePackedImage = out.Image, millis(start)

	opts.Format = pipeline.ValueBuffer
	start = time.Now()
	if out, err = w.pc.Generate(ctx, opts); err != nil {
		return err
	}
	res.ValueBuffer, res.TimeValueBuffer = out.Values, millis(start)

	if res.Report, err = Compare(res.RawBuffer, res.ValueBuffer); err != nil {
		return err
	}
	flagDivergence(w.log.WithFields(logrus.Fields{"job": req.ID, "model": req.Model}), res)
	return nil
}

// flagDivergence marks res when the GPU values miss the CPU raster by more
// than Tolerance.
func flagDivergence(log *logrus.Entry, res *Response) {
	if res.Report == nil || res.Report.Within(Tolerance) {
		return
	}
	res.Diverged = true
	log.WithFields(logrus.Fields{
		"maxRel": res.Report.MaxRelDiff,
		"maxAbs": res.Report.MaxAbsDiff,
		"rmse":   res.Report.RMSE,
	}).Warn("GPU values diverge from the CPU raster")
}

// Close waits for submitted jobs, destroys the pipeline context and closes
// the results channel.
func (w *Worker) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	w.mu.Unlock()

	w.wg.Wait()
	if w.pc != nil {
		w.pc.Destroy()
	}
	close(w.results)
}

func millis(start time.Time) float64 {
	return float64(time.Since(start)) / float64(time.Millisecond)
}
