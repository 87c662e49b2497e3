package fractal

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 4, cfg.Depth)
	assert.GreaterOrEqual(t, cfg.Workers, 1)
	assert.InDelta(t, 0.392699, cfg.SpinRate(), 1e-5)
}

func TestLoadConfigYAML(t *testing.T) {
	path := writeFile(t, "fractal.yaml", `
depth: 6
spin_rate_degrees: 45
wrap_spin: false
fixed_dt_ms: 16
window:
  title: Demo
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 6, cfg.Depth)
	assert.Equal(t, float32(45), cfg.SpinRateDegrees)
	assert.False(t, cfg.WrapSpin)
	assert.Equal(t, 16*time.Millisecond, cfg.FixedDt())
	assert.Equal(t, "Demo", cfg.Window.Title)
	assert.Equal(t, 1280, cfg.Window.Width)
	assert.Equal(t, float32(1), cfg.HostScale)
}

func TestLoadConfigTOML(t *testing.T) {
	path := writeFile(t, "fractal.toml", `
depth = 2
chunk_size = 64
debug = true

[window]
width = 640
height = 480
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Depth)
	assert.Equal(t, 64, cfg.ChunkSize)
	assert.True(t, cfg.Debug)
	assert.Equal(t, 640, cfg.Window.Width)
	assert.Equal(t, "Fractal", cfg.Window.Title)
}

func TestLoadConfigRejectsBadInput(t *testing.T) {
	_, err := LoadConfig(writeFile(t, "fractal.json", `{"depth": 3}`))
	assert.ErrorIs(t, err, ErrUnsupportedConfigFormat)

	_, err = LoadConfig(writeFile(t, "deep.yaml", "depth: 9\n"))
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	_, err = LoadConfig(writeFile(t, "broken.toml", "depth = [\n"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidConfiguration)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestConfigValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"zero depth":     func(c *Config) { c.Depth = 0 },
		"host scale":     func(c *Config) { c.HostScale = 0 },
		"bounds":         func(c *Config) { c.BoundsSize = -1 },
		"workers":        func(c *Config) { c.Workers = -2 },
		"chunk size":     func(c *Config) { c.ChunkSize = 0 },
		"queue size":     func(c *Config) { c.QueueSize = 0 },
		"fixed timestep": func(c *Config) { c.FixedDtMs = -5 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfiguration)
		})
	}
}
