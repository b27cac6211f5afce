package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Conceptual-Machines/nearfield-gen/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(NewViper())
	require.NoError(t, err)

	assert.Equal(t, 1024, cfg.CanvasWidth)
	assert.Equal(t, 1024, cfg.CanvasHeight)
	assert.Equal(t, 100, cfg.NumImages)
	assert.Equal(t, "LHS", cfg.SamplingMethod)
	assert.Equal(t, 0.5, cfg.DCOffset)
	assert.Nil(t, cfg.Seed)
	assert.Equal(t, []string{"perlin_octaves"}, cfg.IntegerParams)
	assert.Positive(t, cfg.Workers)

	flat, err := cfg.Ranges.Flatten()
	require.NoError(t, err)
	assert.Len(t, flat, 12)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("CANVAS_WIDTH", "64")
	t.Setenv("CANVAS_HEIGHT", "32")
	t.Setenv("NUM_IMAGES", "5")
	t.Setenv("SAMPLING_METHOD", "random")
	t.Setenv("SEED", "42")

	cfg, err := Load(NewViper())
	require.NoError(t, err)

	assert.Equal(t, 64, cfg.CanvasWidth)
	assert.Equal(t, 32, cfg.CanvasHeight)
	assert.Equal(t, 5, cfg.NumImages)
	assert.Equal(t, "random", cfg.SamplingMethod)
	require.NotNil(t, cfg.Seed)
	assert.Equal(t, uint64(42), *cfg.Seed)
	assert.Equal(t, 64, cfg.Canvas().Width)
}

func TestLoad_IntegerParamsList(t *testing.T) {
	tests := []struct {
		name string
		env  string
		want []string
	}{
		{"comma separated", "perlin_octaves,perlin_scale", []string{"perlin_octaves", "perlin_scale"}},
		{"spaces after commas", "perlin_octaves, perlin_scale", []string{"perlin_octaves", "perlin_scale"}},
		{"trailing comma", "perlin_octaves,", []string{"perlin_octaves"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("INTEGER_PARAMS", tt.env)
			cfg, err := Load(NewViper())
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.IntegerParams)
		})
	}

	t.Run("sequence from config file", func(t *testing.T) {
		v := NewViper()
		v.Set(KeyIntegerParams, []string{"perlin_octaves", "perlin_scale"})
		cfg, err := Load(v)
		require.NoError(t, err)
		assert.Equal(t, []string{"perlin_octaves", "perlin_scale"}, cfg.IntegerParams)
	})
}

func TestLoad_RangesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ranges.yaml")
	require.NoError(t, os.WriteFile(path, []byte("a: [0, 1]\ng:\n  b: [2, 3]\n"), 0o644))

	v := NewViper()
	v.Set(KeyRangesFile, path)
	cfg, err := Load(v)
	require.NoError(t, err)

	flat, err := cfg.Ranges.Flatten()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "g_b"}, flat.Names())
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  interface{}
	}{
		{"unknown method", KeySamplingMethod, "sobol"},
		{"zero images", KeyNumImages, 0},
		{"negative width", KeyCanvasWidth, -4},
		{"zero workers", KeyWorkers, 0},
		{"bad seed", KeySeed, "minus-one"},
		{"missing ranges file", KeyRangesFile, "/nonexistent/ranges.yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewViper()
			v.Set(tt.key, tt.val)
			cfg, err := Load(v)
			assert.ErrorIs(t, err, ErrInvalidConfig)
			assert.Nil(t, cfg)
		})
	}
}

func TestValidate_InvertedRange(t *testing.T) {
	cfg, err := Load(NewViper())
	require.NoError(t, err)

	cfg.Ranges = *(&schema.Schema{}).Leaf("major_axis", 400, 300)
	err = cfg.Validate()
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "min 400 greater than max 300")
}
