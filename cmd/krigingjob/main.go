// Command krigingjob runs one kriging job from a sample file: it rasters the
// model on the CPU, evaluates it on the GPU pipeline, and writes the images,
// raw grids and a comparison report.
package main

import (
	"context"
	"flag"
	"fmt"
	"image/color"
	"log"
	"os"

	vec2d "github.com/flywave/go3d/float64/vec2"
	"github.com/sirupsen/logrus"

	kriging "github.com/flywave/go-kriging-gpu"
	"github.com/flywave/go-kriging-gpu/codec"
	"github.com/flywave/go-kriging-gpu/config"
	"github.com/flywave/go-kriging-gpu/gpu"
	"github.com/flywave/go-kriging-gpu/worker"
)

func main() {
	input := flag.String("input", "", "Sample file: CSV rows of x,y,value or a JSON job request")
	configPath := flag.String("config", "", "Configuration file (.yaml, .yml, .ini, .gcfg)")
	outputDir := flag.String("output", "", "Output directory (overrides the configuration)")
	mode := flag.String("mode", "job", "job: CPU raster plus GPU evaluations; cpu: CPU interpolation clipped to the sample hull")
	spirv := flag.Bool("spirv", false, "Compile the fragment program to SPIR-V")
	exampleConfig := flag.Bool("example-config", false, "Print an example configuration file and exit")
	flag.Parse()

	if *exampleConfig {
		fmt.Print(config.ExampleConfigFile)
		return
	}
	if *input == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg := config.DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadConfig(*configPath); err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
	}
	if *outputDir != "" {
		cfg.Output.Dir = *outputDir
	}
	setupLogging(cfg.Log.Level)

	req, err := readSamples(*input)
	if err != nil {
		log.Fatalf("Failed to read samples: %v", err)
	}
	if err := os.MkdirAll(cfg.Output.Dir, 0755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}

	switch *mode {
	case "job":
		err = runJob(cfg, req, *spirv)
	case "cpu":
		err = runCPU(cfg, req)
	default:
		err = fmt.Errorf("unknown mode %q", *mode)
	}
	if err != nil {
		log.Fatal(err)
	}
}

func setupLogging(level string) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		log.Fatalf("Bad log level: %v", err)
	}
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(lvl)
	kriging.SetLogger(l)
}

// ramp returns the configured class breaks, or a blue to red gradient over
// [lo, hi).
func ramp(cfg *config.Config, lo, hi float64) (codec.ColorRamp, error) {
	r, err := cfg.Ramp()
	if err != nil || r != nil {
		return r, err
	}
	return codec.GradientRamp(lo, hi, color.RGBA{B: 255, A: 255}, color.RGBA{R: 255, A: 255}, 10)
}

// grid picks the job grid: the request's, the configured one, or the
// expanded sample extent.
func grid(cfg *config.Config, req *worker.Request) (kriging.Grid, error) {
	if req.GridSize[0] > 0 && req.GridSize[1] > 0 {
		return req.Grid()
	}
	if cfg.HasFixedGrid() {
		return cfg.FixedGrid()
	}
	if len(req.Xs) == 0 {
		return kriging.Grid{}, kriging.ErrNotEnoughSamples
	}
	ext := vec2d.Rect{Min: vec2d.T{req.Xs[0], req.Ys[0]}, Max: vec2d.T{req.Xs[0], req.Ys[0]}}
	for i := range req.Xs {
		ext.Extend(&vec2d.T{req.Xs[i], req.Ys[i]})
	}
	return kriging.GridFromExtent(ext, cfg.Grid.ExpandFactor, cfg.Grid.Resolution)
}

func runJob(cfg *config.Config, req *worker.Request, spirv bool) error {
	g, err := grid(cfg, req)
	if err != nil {
		return err
	}
	req.LLCorner = [2]float64{g.OriginX, g.OriginY}
	req.CellSize = g.CellSize
	req.GridSize = [2]int{g.Cols, g.Rows}
	if req.Model == "" {
		req.Model = cfg.ModelType()
		req.Sigma2 = cfg.Model.Sigma2
		req.Alpha = cfg.Model.Alpha
	}
	if !(req.PackValueRange[1] > req.PackValueRange[0]) {
		req.PackValueRange = [2]float64{cfg.Output.PackMin, cfg.Output.PackMax}
	}
	if len(req.ColorMapping) == 0 {
		r, err := ramp(cfg, req.PackValueRange[0], req.PackValueRange[1])
		if err != nil {
			return err
		}
		req.ColorMapping = r
	}
	req.Thin = true

	var devOpts []gpu.SoftwareOption
	if spirv {
		devOpts = append(devOpts, gpu.WithSPIRV())
	}
	w := worker.New(gpu.NewSoftwareDevice(devOpts...), cfg.PipelineOptions()...)
	defer w.Close()

	res := w.Run(context.Background(), *req)
	if res.Err != nil {
		return res.Err
	}

	fmt.Printf("Job %s: %d samples on %s\n", res.ID, res.Samples, res.Grid)
	fmt.Printf("  train         %8.2f ms\n", res.TimeTrain)
	fmt.Printf("  cpu raster    %8.2f ms\n", res.TimeRawBuffer)
	if res.GPUError != nil {
		fmt.Printf("  GPU unavailable: %v\n", res.GPUError)
	} else {
		fmt.Printf("  image         %8.2f ms\n", res.TimeImage)
		fmt.Printf("  packed image  %8.2f ms\n", res.TimePackedImage)
		fmt.Printf("  value buffer  %8.2f ms\n", res.TimeValueBuffer)
		fmt.Printf("  report        %s\n", res.Report)
	}

	dir := cfg.Output.Dir
	var written []string
	if cfg.Output.Raw {
		p, err := writeRaw(dir, "raster", res.RawBuffer)
		if err != nil {
			return err
		}
		written = append(written, p)
		if res.ValueBuffer != nil {
			if p, err = writeRaw(dir, "values", res.ValueBuffer); err != nil {
				return err
			}
			written = append(written, p)
		}
	}
	if res.Image != nil {
		p, err := writeImage(dir, "classified", cfg.Output.ImageFormat, res.Image)
		if err != nil {
			return err
		}
		written = append(written, p)
	}
	if res.PackedImage != nil {
		p, err := writeImage(dir, "packed", cfg.Output.ImageFormat, res.PackedImage)
		if err != nil {
			return err
		}
		written = append(written, p)
	}
	for _, p := range written {
		fmt.Printf("Wrote %s\n", p)
	}
	return nil
}

func runCPU(cfg *config.Config, req *worker.Request) error {
	if len(req.Data) != len(req.Xs) || len(req.Data) != len(req.Ys) {
		return fmt.Errorf("%w: mismatched sample slices", kriging.ErrInvalidParameter)
	}
	model := cfg.ModelType()
	clip := true
	opts := kriging.Options{
		Model:        &model,
		Sigma2:       &cfg.Model.Sigma2,
		Alpha:        &cfg.Model.Alpha,
		ExpandFactor: &cfg.Grid.ExpandFactor,
		Resolution:   &cfg.Grid.Resolution,
		ClipToHull:   &clip,
	}
	if cfg.HasFixedGrid() {
		g, err := cfg.FixedGrid()
		if err != nil {
			return err
		}
		opts.Grid = &g
	}
	inter, err := kriging.NewInterpolator(opts)
	if err != nil {
		return err
	}
	res, err := inter.Process(positions(req))
	if err != nil {
		return err
	}
	fmt.Printf("CPU raster of %d samples on %s, values in [%g, %g]\n", len(res.Samples), res.Grid, res.Min, res.Max)

	r, err := ramp(cfg, res.Min, res.Max)
	if err != nil {
		return err
	}
	p, err := writeImage(cfg.Output.Dir, "classified", cfg.Output.ImageFormat, classify(res.Grid, res.Values, r, res.NoData))
	if err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", p)
	if cfg.Output.Raw {
		if p, err = writeRaw(cfg.Output.Dir, "raster", res.Values); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", p)
	}
	return nil
}
