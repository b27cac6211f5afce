package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Conceptual-Machines/nearfield-gen/internal/config"
	"github.com/Conceptual-Machines/nearfield-gen/internal/database"
	"github.com/Conceptual-Machines/nearfield-gen/internal/logger"
	"github.com/Conceptual-Machines/nearfield-gen/internal/metrics"
	"github.com/Conceptual-Machines/nearfield-gen/internal/runner"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var generateBindings = []flagBinding{
	{config.KeyNumImages, "num-images"},
	{config.KeyOutputDir, "output-dir"},
	{config.KeyWorkers, "workers"},
	{config.KeyCompressTIFF, "compress"},
	{config.KeyDatabaseURL, "database-url"},
}

func newGenerateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Render a dataset of nearfield images",
		Long: "Sample parameter sets, render one 16-bit TIFF per set into a timestamped folder " +
			"and log the parameters of every image to parameters_log.csv.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.load(cmd, generateBindings)
			if err != nil {
				return err
			}
			return runGenerate(cmd, cfg)
		},
	}

	f := cmd.Flags()
	f.Int("num-images", a.v.GetInt(config.KeyNumImages), "Number of images to generate")
	f.String("output-dir", a.v.GetString(config.KeyOutputDir), "Base name of the output folder; a timestamp is appended")
	f.Int("workers", a.v.GetInt(config.KeyWorkers), "Images rendered concurrently")
	f.Bool("compress", a.v.GetBool(config.KeyCompressTIFF), "Deflate-compress TIFF output")
	f.String("database-url", "", "Postgres URL for the run and parameter log")
	return cmd
}

func runGenerate(cmd *cobra.Command, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	batch := &runner.Batch{
		Config:   cfg,
		Recorder: newRecorder(ctx, cfg, nil),
		Stages:   metrics.NewSentryMetrics(),
	}
	progress := &progressLine{w: cmd.ErrOrStderr()}
	batch.OnProgress = progress.Update

	if cfg.DatabaseURL != "" {
		db, err := openDatabase(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		batch.NewRunLog = func(runID string) runner.RunLog {
			return database.NewParameterStore(db, runID)
		}
	}

	summary, err := batch.Run(ctx)
	progress.End()
	if summary != nil {
		printSummary(cmd.OutOrStdout(), summary)
	}
	return err
}

// newRecorder fans metrics out to CloudWatch (production only), Sentry spans and, when
// set, in-process counters.
func newRecorder(ctx context.Context, cfg *config.Config, counters *metrics.Counters) metrics.Recorder {
	recorders := metrics.Multi{metrics.NewSentryMetrics()}
	if counters != nil {
		recorders = append(recorders, counters)
	}
	cw, err := metrics.NewClient(ctx, cfg.Environment, cfg.MetricsNamespace)
	if err != nil {
		logger.Warn("CloudWatch metrics unavailable", logger.Fields{"error": err.Error()})
		return recorders
	}
	if cw.Enabled() {
		recorders = append(recorders, cw)
	}
	return recorders
}

func openDatabase(url string) (*gorm.DB, error) {
	db, err := database.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return db, nil
}

// progressLine redraws a single status line after every finished image.
type progressLine struct {
	w    io.Writer
	open bool // a partial line is on screen
}

func (l *progressLine) Update(p runner.Progress) {
	pct := 100 * p.Done / max(p.Total, 1)
	fmt.Fprintf(l.w, "\rGenerating images: %d/%d [%3d%%] failed: %d", p.Done, p.Total, pct, p.Failed)
	if p.LastFile != "" {
		fmt.Fprintf(l.w, " Last saved: %s", p.LastFile)
	}
	l.open = p.Done != p.Total
	if !l.open {
		fmt.Fprintln(l.w)
	}
}

// End terminates a line left open by a cancelled run.
func (l *progressLine) End() {
	if l.open {
		fmt.Fprintln(l.w)
		l.open = false
	}
}

func printSummary(w io.Writer, s *runner.Summary) {
	fmt.Fprintf(w, "Run %s: %d/%d images saved to %s in %s\n",
		s.RunID, s.Succeeded, s.Requested, s.OutputDir, s.Duration.Round(time.Millisecond))
	if s.Skipped > 0 {
		fmt.Fprintf(w, "%d images skipped after cancellation\n", s.Skipped)
	}
	for _, f := range s.Failures {
		fmt.Fprintf(w, "  image %d failed: %s\n", f.Index, f.Error)
	}
}
