package config

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"strings"

	"github.com/Conceptual-Machines/nearfield-gen/internal/sampler"
	"github.com/Conceptual-Machines/nearfield-gen/internal/schema"
	"github.com/Conceptual-Machines/nearfield-gen/internal/synth"
	"github.com/spf13/viper"
)

// ErrInvalidConfig marks configuration errors; a run must not start with one.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config keys, also used as flag bindings. Environment variables use the upper-case
// form with dots replaced by underscores (canvas.width -> CANVAS_WIDTH).
const (
	KeyEnvironment    = "environment"
	KeyPort           = "port"
	KeySentryDSN      = "sentry.dsn"
	KeyDatabaseURL    = "database.url"
	KeyCanvasWidth    = "canvas.width"
	KeyCanvasHeight   = "canvas.height"
	KeyNumImages      = "num.images"
	KeySamplingMethod = "sampling.method"
	KeyDCOffset       = "dc.offset"
	KeySeed           = "seed"
	KeyWorkers        = "workers"
	KeyNoiseWorkers   = "noise.workers"
	KeyOutputDir      = "output.dir"
	KeyRangesFile     = "ranges.file"
	KeyIntegerParams  = "integer.params"
	KeyCompressTIFF   = "tiff.compress"
	KeyMetricsNS      = "metrics.namespace"
)

// Config holds the application configuration. It is built once at startup and passed
// explicitly to every component.
type Config struct {
	// Environment
	Environment string
	Port        string

	// Observability
	SentryDSN        string // Sentry DSN for error tracking
	MetricsNamespace string // CloudWatch namespace

	// Optional parameter database; CSV logging is always on
	DatabaseURL string

	// Dataset
	CanvasWidth    int
	CanvasHeight   int
	NumImages      int
	SamplingMethod string
	DCOffset       float64
	Seed           *uint64 // nil leaves sampling and grain unseeded
	IntegerParams  []string
	Ranges         schema.Schema

	// Execution
	Workers      int // concurrent images
	NoiseWorkers int // goroutines per image for noise bands
	OutputDir    string
	RangesFile   string
	CompressTIFF bool
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyEnvironment, "development")
	v.SetDefault(KeyPort, "8080")
	v.SetDefault(KeySentryDSN, "")
	v.SetDefault(KeyDatabaseURL, "")
	v.SetDefault(KeyCanvasWidth, 1024)
	v.SetDefault(KeyCanvasHeight, 1024)
	v.SetDefault(KeyNumImages, 100)
	v.SetDefault(KeySamplingMethod, string(sampler.MethodLHS))
	v.SetDefault(KeyDCOffset, synth.DefaultDCOffset)
	v.SetDefault(KeySeed, "")
	v.SetDefault(KeyWorkers, runtime.NumCPU())
	v.SetDefault(KeyNoiseWorkers, 1)
	v.SetDefault(KeyOutputDir, "output/images")
	v.SetDefault(KeyRangesFile, "")
	v.SetDefault(KeyIntegerParams, sampler.DefaultIntegerParams)
	v.SetDefault(KeyCompressTIFF, false)
	v.SetDefault(KeyMetricsNS, "")
}

// NewViper returns a viper instance with defaults and environment lookup.
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the configuration from v, loads the range schema and validates the result.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Environment:      v.GetString(KeyEnvironment),
		Port:             v.GetString(KeyPort),
		SentryDSN:        v.GetString(KeySentryDSN),
		MetricsNamespace: v.GetString(KeyMetricsNS),
		DatabaseURL:      v.GetString(KeyDatabaseURL),
		CanvasWidth:      v.GetInt(KeyCanvasWidth),
		CanvasHeight:     v.GetInt(KeyCanvasHeight),
		NumImages:        v.GetInt(KeyNumImages),
		SamplingMethod:   v.GetString(KeySamplingMethod),
		DCOffset:         v.GetFloat64(KeyDCOffset),
		IntegerParams:    stringList(v, KeyIntegerParams),
		Workers:          v.GetInt(KeyWorkers),
		NoiseWorkers:     v.GetInt(KeyNoiseWorkers),
		OutputDir:        v.GetString(KeyOutputDir),
		RangesFile:       v.GetString(KeyRangesFile),
		CompressTIFF:     v.GetBool(KeyCompressTIFF),
	}

	if raw := v.GetString(KeySeed); raw != "" {
		var seed uint64
		if _, err := fmt.Sscan(raw, &seed); err != nil {
			return nil, fmt.Errorf("%w: seed %q is not an unsigned integer", ErrInvalidConfig, raw)
		}
		cfg.Seed = &seed
	}

	var err error
	if cfg.RangesFile != "" {
		cfg.Ranges, err = schema.LoadFile(cfg.RangesFile)
	} else {
		cfg.Ranges, err = schema.Default()
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every value a run depends on.
func (c *Config) Validate() error {
	var problems []string
	if c.CanvasWidth <= 0 || c.CanvasHeight <= 0 {
		problems = append(problems, fmt.Sprintf("canvas %dx%d must be positive", c.CanvasWidth, c.CanvasHeight))
	}
	if c.NumImages <= 0 {
		problems = append(problems, fmt.Sprintf("num images %d must be positive", c.NumImages))
	}
	if _, err := sampler.ParseMethod(c.SamplingMethod); err != nil {
		problems = append(problems, err.Error())
	}
	if math.IsNaN(c.DCOffset) || math.IsInf(c.DCOffset, 0) {
		problems = append(problems, "dc offset must be finite")
	}
	if c.Workers <= 0 {
		problems = append(problems, fmt.Sprintf("workers %d must be positive", c.Workers))
	}
	if c.OutputDir == "" {
		problems = append(problems, "output dir is empty")
	}
	if _, err := c.Ranges.Flatten(); err != nil {
		problems = append(problems, "ranges: "+err.Error())
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// Canvas returns the configured image size.
func (c *Config) Canvas() synth.Canvas {
	return synth.Canvas{Width: c.CanvasWidth, Height: c.CanvasHeight}
}

// IsProduction reports whether metrics shipping should be enabled
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// stringList reads a list that may come from YAML as a sequence or from the environment
// as a comma-separated string such as INTEGER_PARAMS=perlin_octaves,perlin_scale.
func stringList(v *viper.Viper, key string) []string {
	raw, ok := v.Get(key).(string)
	if !ok {
		return v.GetStringSlice(key)
	}
	var out []string
	for _, name := range strings.Split(raw, ",") {
		if name = strings.TrimSpace(name); name != "" {
			out = append(out, name)
		}
	}
	return out
}
