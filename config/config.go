// Package config loads kriging job settings from YAML or gcfg INI files.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/gcfg.v1"
	"gopkg.in/yaml.v3"

	kriging "github.com/flywave/go-kriging-gpu"
	"github.com/flywave/go-kriging-gpu/codec"
	"github.com/flywave/go-kriging-gpu/pipeline"
)

var ErrUnknownFormat = errors.New("config: unknown file format")

const ExampleConfigFile = `# Example kriging job configuration (gcfg INI).
[Model]
# gaussian, exponential or spherical
Type = exponential
Sigma2 = 0
Alpha = 100

[Grid]
# Leave Cols and Rows at 0 to derive the grid from the sample extent.
# OriginX = 0
# OriginY = 0
# CellSize = 1
# Cols = 0
# Rows = 0
ExpandFactor = 1
Resolution = 300

[Pipeline]
QueueSize = 64
TargetCacheSize = 10
# ScalarUniforms = true

[Output]
Dir = out
PackMin = 0
PackMax = 1
# png or tiff
ImageFormat = png
Raw = true

[Log]
# panic, fatal, error, warn, info, debug or trace
Level = info

# One section per class break. Breaks are ordered by Min; an empty Min or Max
# leaves that end open.
[Break "low"]
Max = 0.5
Color = "#2b83ba"

[Break "high"]
Min = 0.5
Color = "rgb(215, 25, 28)"
`

// ModelConfig selects the variogram model and its fitting parameters.
type ModelConfig struct {
	Type   string  `yaml:"type"`
	Sigma2 float64 `yaml:"sigma2"`
	Alpha  float64 `yaml:"alpha"`
}

// GridConfig fixes the output grid. With Cols or Rows at zero the grid is
// derived from the sample extent using ExpandFactor and Resolution.
type GridConfig struct {
	OriginX      float64 `yaml:"originX"`
	OriginY      float64 `yaml:"originY"`
	CellSize     float64 `yaml:"cellSize"`
	Cols         int     `yaml:"cols"`
	Rows         int     `yaml:"rows"`
	ExpandFactor float64 `yaml:"expandFactor"`
	Resolution   int     `yaml:"resolution"`
}

type PipelineConfig struct {
	QueueSize       int  `yaml:"queueSize"`
	TargetCacheSize int  `yaml:"targetCacheSize"`
	ScalarUniforms  bool `yaml:"scalarUniforms"`
}

type OutputConfig struct {
	Dir         string  `yaml:"dir"`
	PackMin     float64 `yaml:"packMin"`
	PackMax     float64 `yaml:"packMax"`
	ImageFormat string  `yaml:"imageFormat"`
	Raw         bool    `yaml:"raw"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// BreakConfig is one class break. Min and Max are kept as text so that an
// empty value can mean an open end in both file formats.
type BreakConfig struct {
	Min   string `yaml:"min,omitempty"`
	Max   string `yaml:"max,omitempty"`
	Color string `yaml:"color"`
}

// Config is the full job configuration.
type Config struct {
	Model    ModelConfig             `yaml:"model"`
	Grid     GridConfig              `yaml:"grid"`
	Pipeline PipelineConfig          `yaml:"pipeline"`
	Output   OutputConfig            `yaml:"output"`
	Log      LogConfig               `yaml:"log"`
	Break    map[string]*BreakConfig `yaml:"breaks,omitempty"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Model.Type = string(kriging.DefaultModel)
	cfg.Model.Sigma2 = kriging.DefaultSigma2
	cfg.Model.Alpha = kriging.DefaultAlpha

	cfg.Grid.ExpandFactor = kriging.DefaultExpandFactor
	cfg.Grid.Resolution = kriging.DefaultResolution

	cfg.Pipeline.QueueSize = pipeline.DefaultQueueSize
	cfg.Pipeline.TargetCacheSize = pipeline.DefaultTargetCacheSize

	cfg.Output.Dir = "out"
	cfg.Output.PackMin = 0
	cfg.Output.PackMax = 1
	cfg.Output.ImageFormat = "png"
	cfg.Output.Raw = true

	cfg.Log.Level = "info"
	return cfg
}

// LoadConfig reads path over the defaults. YAML is used for .yaml and .yml
// files, gcfg INI for .ini, .gcfg and .conf. A missing file yields the
// defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	case ".ini", ".gcfg", ".conf":
		if err := gcfg.ReadFileInto(cfg, path); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, path)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseINI reads a gcfg document over the defaults.
func ParseINI(text string) (*Config, error) {
	cfg := DefaultConfig()
	if err := gcfg.ReadStringInto(cfg, text); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveConfig writes cfg as YAML, creating the directory if needed.
func SaveConfig(cfg *Config, path string) error {
	if ext := strings.ToLower(filepath.Ext(path)); ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("%w: only YAML can be written, got %s", ErrUnknownFormat, path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}
	return nil
}

// Validate checks the values that can be checked without sample data.
func (cfg *Config) Validate() error {
	if _, err := kriging.ParseModelType(cfg.Model.Type); err != nil {
		return err
	}
	if cfg.Model.Sigma2 < 0 || math.IsNaN(cfg.Model.Sigma2) {
		return fmt.Errorf("%w: sigma2 %v", kriging.ErrInvalidParameter, cfg.Model.Sigma2)
	}
	if !(cfg.Model.Alpha > 0) {
		return fmt.Errorf("%w: alpha %v", kriging.ErrInvalidParameter, cfg.Model.Alpha)
	}
	if cfg.HasFixedGrid() {
		if _, err := cfg.FixedGrid(); err != nil {
			return err
		}
	} else if !(cfg.Grid.ExpandFactor > 0) {
		return fmt.Errorf("%w: expand factor %v", kriging.ErrInvalidGrid, cfg.Grid.ExpandFactor)
	}
	if !(cfg.Output.PackMax > cfg.Output.PackMin) {
		return fmt.Errorf("config: pack range [%v, %v] is empty", cfg.Output.PackMin, cfg.Output.PackMax)
	}
	switch strings.ToLower(cfg.Output.ImageFormat) {
	case "png", "tiff", "tif":
	default:
		return fmt.Errorf("config: image format %q", cfg.Output.ImageFormat)
	}
	if len(cfg.Break) > 0 {
		if _, err := cfg.Ramp(); err != nil {
			return err
		}
	}
	return nil
}

// ModelType returns the parsed model name.
func (cfg *Config) ModelType() kriging.ModelType {
	m, _ := kriging.ParseModelType(cfg.Model.Type)
	return m
}

// HasFixedGrid reports whether the grid is given explicitly.
func (cfg *Config) HasFixedGrid() bool {
	return cfg.Grid.Cols > 0 || cfg.Grid.Rows > 0
}

func (cfg *Config) FixedGrid() (kriging.Grid, error) {
	g := cfg.Grid
	return kriging.NewGrid(g.OriginX, g.OriginY, g.CellSize, g.Cols, g.Rows)
}

// PipelineOptions maps the pipeline section onto context options.
func (cfg *Config) PipelineOptions() []pipeline.Option {
	opts := []pipeline.Option{
		pipeline.WithQueueSize(cfg.Pipeline.QueueSize),
		pipeline.WithTargetCacheSize(cfg.Pipeline.TargetCacheSize),
	}
	if cfg.Pipeline.ScalarUniforms {
		opts = append(opts, pipeline.WithScalarUniforms())
	}
	return opts
}

func parseBound(s string, open float64) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return open, nil
	}
	return strconv.ParseFloat(s, 64)
}

// Ramp orders the configured breaks by their lower bound and validates them.
// It returns nil when no breaks are configured.
func (cfg *Config) Ramp() (codec.ColorRamp, error) {
	if len(cfg.Break) == 0 {
		return nil, nil
	}

	type named struct {
		name string
		spec codec.BreakSpec
		min  float64
	}
	list := make([]named, 0, len(cfg.Break))
	for name, b := range cfg.Break {
		if b == nil {
			continue
		}
		min, err := parseBound(b.Min, math.Inf(-1))
		if err != nil {
			return nil, fmt.Errorf("break %q: min: %w", name, err)
		}
		max, err := parseBound(b.Max, math.Inf(1))
		if err != nil {
			return nil, fmt.Errorf("break %q: max: %w", name, err)
		}
		list = append(list, named{name: name, min: min, spec: codec.BreakSpec{Min: &min, Max: &max, Color: b.Color}})
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].min != list[j].min {
			return list[i].min < list[j].min
		}
		return list[i].name < list[j].name
	})

	specs := make([]codec.BreakSpec, len(list))
	for i := range list {
		specs[i] = list[i].spec
	}
	return codec.ParseBreaks(specs)
}
