package fractal

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/gekko3d/fractal/rt/core"
	"github.com/gekko3d/fractal/rt/engine"
	"github.com/gekko3d/fractal/rt/tree"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

var ErrUnsupportedConfigFormat = errors.New("unsupported config format")

type WindowConfig struct {
	Width  int    `yaml:"width" toml:"width"`
	Height int    `yaml:"height" toml:"height"`
	Title  string `yaml:"title" toml:"title"`
}

type Config struct {
	Depth           int     `yaml:"depth" toml:"depth"`
	SpinRateDegrees float32 `yaml:"spin_rate_degrees" toml:"spin_rate_degrees"`
	HostScale       float32 `yaml:"host_scale" toml:"host_scale"`
	WrapSpin        bool    `yaml:"wrap_spin" toml:"wrap_spin"`
	BoundsSize      float32 `yaml:"bounds_size" toml:"bounds_size"`

	Workers   int `yaml:"workers" toml:"workers"`
	ChunkSize int `yaml:"chunk_size" toml:"chunk_size"`
	QueueSize int `yaml:"queue_size" toml:"queue_size"`

	Debug        bool `yaml:"debug" toml:"debug"`
	ProfileEvery int  `yaml:"profile_every" toml:"profile_every"`
	FixedDtMs    int  `yaml:"fixed_dt_ms" toml:"fixed_dt_ms"`

	Window WindowConfig `yaml:"window" toml:"window"`
}

func DefaultConfig() Config {
	return Config{
		Depth:           4,
		SpinRateDegrees: 22.5,
		HostScale:       1,
		WrapSpin:        true,
		BoundsSize:      3,
		Workers:         max(runtime.NumCPU()-1, 1),
		ChunkSize:       engine.DefaultChunkSize,
		QueueSize:       engine.DefaultQueueSize,
		ProfileEvery:    120,
		Window: WindowConfig{
			Width:  1280,
			Height: 720,
			Title:  "Fractal",
		},
	}
}

// LoadConfig reads a YAML (.yaml, .yml) or TOML (.toml) file on top of
// DefaultConfig and validates the result.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	case ".toml":
		err = toml.Unmarshal(data, &cfg)
	default:
		return cfg, fmt.Errorf("%w: %q", ErrUnsupportedConfigFormat, ext)
	}
	if err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	switch {
	case c.Depth < 1 || c.Depth > tree.MaxDepth:
		return fmt.Errorf("%w: depth %d outside [1, %d]", ErrInvalidConfiguration, c.Depth, tree.MaxDepth)
	case c.HostScale <= 0:
		return fmt.Errorf("%w: host_scale must be positive, got %v", ErrInvalidConfiguration, c.HostScale)
	case c.BoundsSize <= 0:
		return fmt.Errorf("%w: bounds_size must be positive, got %v", ErrInvalidConfiguration, c.BoundsSize)
	case c.Workers < 0:
		return fmt.Errorf("%w: workers must not be negative, got %d", ErrInvalidConfiguration, c.Workers)
	case c.ChunkSize < 1:
		return fmt.Errorf("%w: chunk_size must be at least 1, got %d", ErrInvalidConfiguration, c.ChunkSize)
	case c.QueueSize < 1:
		return fmt.Errorf("%w: queue_size must be at least 1, got %d", ErrInvalidConfiguration, c.QueueSize)
	case c.FixedDtMs < 0:
		return fmt.Errorf("%w: fixed_dt_ms must not be negative, got %d", ErrInvalidConfiguration, c.FixedDtMs)
	}
	return nil
}

// SpinRate is the angular rate in radians per second.
func (c Config) SpinRate() float32 {
	return core.DegToRad(c.SpinRateDegrees)
}

func (c Config) FixedDt() time.Duration {
	return time.Duration(c.FixedDtMs) * time.Millisecond
}
