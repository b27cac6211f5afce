package runner

import (
	"context"
	"fmt"
	"image"
	"path/filepath"
	"time"

	"github.com/Conceptual-Machines/nearfield-gen/internal/config"
	"github.com/Conceptual-Machines/nearfield-gen/internal/logger"
	"github.com/Conceptual-Machines/nearfield-gen/internal/metrics"
	"github.com/Conceptual-Machines/nearfield-gen/internal/models"
	"github.com/Conceptual-Machines/nearfield-gen/internal/output"
	"github.com/Conceptual-Machines/nearfield-gen/internal/sampler"
	"github.com/Conceptual-Machines/nearfield-gen/internal/schema"
	"github.com/Conceptual-Machines/nearfield-gen/internal/synth"
	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
)

// ParamsLogFile is the CSV written next to the images.
const ParamsLogFile = "parameters_log.csv"

// RunLog records a run and its images outside the output folder.
type RunLog interface {
	output.ParameterLogger
	StartRun(ctx context.Context, run *models.GenerationRun) error
	FinishRun(ctx context.Context, status string, failed int) error
}

// Batch wires the sampler, the generator and persistence for one dataset run.
type Batch struct {
	Config   *config.Config
	Recorder metrics.Recorder
	// Stages, when set, receives per-stage timings of every image.
	Stages StageRecorder
	// NewRunLog, when set, opens the database log for a run ID.
	NewRunLog  func(runID string) RunLog
	OnProgress func(Progress)
	Now        func() time.Time
}

// SampleParameters draws the configured number of parameter sets. Any error here is a
// configuration error and no image must be generated.
func SampleParameters(cfg *config.Config) ([]schema.ParameterSet, error) {
	opts := []sampler.Option{sampler.WithIntegerParams(cfg.IntegerParams...)}
	if cfg.Seed != nil {
		opts = append(opts, sampler.WithSeed(*cfg.Seed))
	}
	smp, err := sampler.New(cfg.SamplingMethod, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrInvalidConfig, err)
	}
	sets, err := smp.Sample(cfg.Ranges, cfg.NumImages)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrInvalidConfig, err)
	}
	return sets, nil
}

// generatorRenderer seeds image i from the base seed when one is configured, so a
// seeded run does not depend on the order in which workers finish.
type generatorRenderer struct {
	gen    *synth.Generator
	seed   *uint64
	stages StageRecorder
	runID  string
}

func (r generatorRenderer) Render(ctx context.Context, index int, ps schema.ParameterSet) (*image.Gray16, error) {
	var seed uint64
	if r.seed == nil {
		seed = r.gen.NextSeed()
	} else {
		seed = ImageSeed(*r.seed, index)
	}
	img, timings, err := r.gen.GenerateTimed(ps, seed)
	if r.stages != nil {
		for _, st := range timings {
			r.stages.RecordPerformanceMetric(ctx, "synth."+st.Stage, st.Duration, map[string]interface{}{
				"index":  index,
				"run_id": r.runID,
			})
		}
	}
	return img, err
}

// ImageSeed derives the seed of sample index from the run seed (splitmix64 step).
func ImageSeed(base uint64, index int) uint64 {
	z := base + uint64(index+1)*0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// Run samples parameters, creates the output folder and renders every image.
func (b *Batch) Run(ctx context.Context) (*Summary, error) {
	cfg := b.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	sets, err := SampleParameters(cfg)
	if err != nil {
		return nil, err
	}

	gen, err := synth.NewGenerator(synth.Options{
		Canvas:   cfg.Canvas(),
		DCOffset: cfg.DCOffset,
		Workers:  cfg.NoiseWorkers,
		Seed:     cfg.Seed,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrInvalidConfig, err)
	}

	now := time.Now
	if b.Now != nil {
		now = b.Now
	}
	dir, err := output.CreateOutputFolder(cfg.OutputDir, now())
	if err != nil {
		return nil, err
	}

	runID := uuid.New().String()
	var params output.ParameterLogger = output.NewCSVLogger(filepath.Join(dir, ParamsLogFile))

	var runLog RunLog
	if b.NewRunLog != nil {
		runLog = b.NewRunLog(runID)
		err := runLog.StartRun(ctx, &models.GenerationRun{
			OutputDir:       dir,
			SamplingMethod:  cfg.SamplingMethod,
			CanvasWidth:     cfg.CanvasWidth,
			CanvasHeight:    cfg.CanvasHeight,
			ImagesRequested: len(sets),
		})
		if err != nil {
			return nil, fmt.Errorf("recording run: %w", err)
		}
		params = output.MultiLogger{params, runLog}
	}

	logger.Info("Run started", logger.Fields{
		"run_id":          runID,
		"output_dir":      dir,
		"images":          len(sets),
		"sampling_method": cfg.SamplingMethod,
		"workers":         cfg.Workers,
	})

	pool := &Pool{
		Renderer:   generatorRenderer{gen: gen, seed: cfg.Seed, stages: b.Stages, runID: runID},
		Sink:       &output.Store{Dir: dir, TIFF: output.TIFFOptions{Compress: cfg.CompressTIFF}, Params: params},
		Workers:    cfg.Workers,
		Recorder:   b.Recorder,
		OnProgress: b.OnProgress,
		RunID:      runID,
	}
	summary, runErr := pool.Run(ctx, sets)
	if summary != nil {
		summary.OutputDir = dir
	}

	if runLog != nil && summary != nil {
		status := models.RunStatusCompleted
		if runErr != nil {
			status = models.RunStatusCancelled
		}
		// The run context may already be cancelled; the final status still goes out.
		if err := runLog.FinishRun(context.WithoutCancel(ctx), status, summary.Failed); err != nil {
			logger.Warn("Failed to record run completion", logger.Fields{"run_id": runID, "error": err.Error()})
		}
	}

	if summary != nil {
		fields := logger.Fields{
			"run_id":      runID,
			"succeeded":   summary.Succeeded,
			"failed":      summary.Failed,
			"skipped":     summary.Skipped,
			"duration_ms": summary.Duration.Milliseconds(),
		}
		logger.Info("Run finished", fields)
		if summary.Failed > 0 {
			logger.LogToSentry(sentry.LevelWarning, "Run finished with failed images", fields)
		}
	}
	return summary, runErr
}
