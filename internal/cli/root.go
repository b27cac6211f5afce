// Package cli wires the nearfield commands: generate, sample and serve.
package cli

import (
	"context"
	"fmt"

	"github.com/Conceptual-Machines/nearfield-gen/internal/config"
	"github.com/getsentry/sentry-go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// flagBinding ties a command-line flag to a configuration key.
type flagBinding struct {
	key  string
	flag string
}

// app is the state shared by one command tree.
type app struct {
	v       *viper.Viper
	cfgFile string
	version string
	cfg     *config.Config
	sentry  bool
}

var persistentBindings = []flagBinding{
	{config.KeySeed, "seed"},
	{config.KeyRangesFile, "ranges"},
	{config.KeyCanvasWidth, "canvas-width"},
	{config.KeyCanvasHeight, "canvas-height"},
	{config.KeySamplingMethod, "sampling-method"},
	{config.KeyIntegerParams, "integer-params"},
	{config.KeyDCOffset, "dc-offset"},
	{config.KeyNoiseWorkers, "noise-workers"},
}

// NewRootCommand builds the command tree with a fresh configuration.
func NewRootCommand(version string) *cobra.Command {
	a := &app{v: config.NewViper(), version: version}

	root := &cobra.Command{
		Use:           "nearfield",
		Short:         "Generate synthetic nearfield images",
		Long:          "Generate a dataset of synthetic 16-bit nearfield images from sampled parameter ranges.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.sentry {
				sentry.Flush(sentryFlushTimeout)
			}
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "Config file (yaml, json or toml)")
	pf.String("seed", "", "Seed for reproducible sampling and rendering")
	pf.String("ranges", "", "YAML file with parameter ranges (default: built-in ranges)")
	pf.Int("canvas-width", a.v.GetInt(config.KeyCanvasWidth), "Image width in pixels")
	pf.Int("canvas-height", a.v.GetInt(config.KeyCanvasHeight), "Image height in pixels")
	pf.String("sampling-method", a.v.GetString(config.KeySamplingMethod), "Sampling method: LHS or random")
	pf.StringSlice("integer-params", a.v.GetStringSlice(config.KeyIntegerParams), "Parameters rounded to whole numbers")
	pf.Float64("dc-offset", a.v.GetFloat64(config.KeyDCOffset), "Constant added to the noise field")
	pf.Int("noise-workers", a.v.GetInt(config.KeyNoiseWorkers), "Goroutines per image for noise synthesis")

	root.AddCommand(newGenerateCmd(a), newSampleCmd(a), newServeCmd(a))
	return root
}

// Execute runs the command tree against the process arguments.
func Execute(version string) error {
	return NewRootCommand(version).ExecuteContext(context.Background())
}

// load binds the running command's flags, reads the optional config file and builds
// the configuration. Sentry starts once the configuration is known.
func (a *app) load(cmd *cobra.Command, local []flagBinding) (*config.Config, error) {
	bindings := append(append([]flagBinding{}, persistentBindings...), local...)
	for _, b := range bindings {
		flag := cmd.Flags().Lookup(b.flag)
		if flag == nil {
			return nil, fmt.Errorf("flag --%s not defined on %s", b.flag, cmd.Name())
		}
		if err := a.v.BindPFlag(b.key, flag); err != nil {
			return nil, fmt.Errorf("binding flag --%s: %w", b.flag, err)
		}
	}

	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
		if err := a.v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("%w: reading %s: %w", config.ErrInvalidConfig, a.cfgFile, err)
		}
	}

	cfg, err := config.Load(a.v)
	if err != nil {
		return nil, err
	}
	a.cfg = cfg
	a.sentry = initSentry(cfg, a.version)
	return cfg, nil
}
