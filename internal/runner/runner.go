package runner

import (
	"context"
	"errors"
	"fmt"
	"image"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/Conceptual-Machines/nearfield-gen/internal/logger"
	"github.com/Conceptual-Machines/nearfield-gen/internal/metrics"
	"github.com/Conceptual-Machines/nearfield-gen/internal/schema"
	"github.com/getsentry/sentry-go"
	"golang.org/x/sync/errgroup"
)

// Renderer turns one parameter set into an image.
type Renderer interface {
	Render(ctx context.Context, index int, ps schema.ParameterSet) (*image.Gray16, error)
}

// StageRecorder receives the timing of each pipeline stage of an image.
// *metrics.SentryMetrics satisfies it.
type StageRecorder interface {
	RecordPerformanceMetric(ctx context.Context, operation string, duration time.Duration, metadata map[string]interface{}) *sentry.Span
}

// Sink persists a rendered image and returns its filename.
type Sink interface {
	Save(ctx context.Context, index int, img *image.Gray16, ps schema.ParameterSet) (string, error)
}

// ErrPanic wraps a panic recovered while processing one sample.
var ErrPanic = errors.New("panic during image generation")

// Progress is reported after every finished task.
type Progress struct {
	Done     int
	Total    int
	Failed   int
	LastFile string
}

// Failure describes one sample that produced no image.
type Failure struct {
	Index int    `json:"index"`
	Error string `json:"error"`
	err   error
}

// Unwrap exposes the underlying error.
func (f Failure) Unwrap() error {
	return f.err
}

// Summary reports the outcome of a batch.
type Summary struct {
	RunID     string        `json:"run_id"`
	OutputDir string        `json:"output_dir"`
	Requested int           `json:"requested"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Skipped   int           `json:"skipped"` // never dispatched because the run was cancelled
	Failures  []Failure     `json:"failures,omitempty"`
	Files     []string      `json:"files"` // by sample index; empty for failed or skipped samples
	Duration  time.Duration `json:"duration"`
}

// Pool runs one independent task per parameter set on a bounded number of goroutines.
type Pool struct {
	Renderer   Renderer
	Sink       Sink
	Workers    int
	Recorder   metrics.Recorder
	OnProgress func(Progress)
	RunID      string
}

// Run renders and saves every parameter set. A failing sample is logged and counted and
// never stops its siblings. Cancelling ctx stops dispatching; tasks already running
// finish, the rest are counted as skipped and ctx.Err() is returned with the summary.
func (p *Pool) Run(ctx context.Context, sets []schema.ParameterSet) (*Summary, error) {
	if p.Renderer == nil || p.Sink == nil {
		return nil, fmt.Errorf("runner: renderer and sink are required")
	}
	workers := p.Workers
	if workers <= 0 {
		workers = 1
	}

	start := time.Now()
	summary := &Summary{
		RunID:     p.RunID,
		Requested: len(sets),
		Files:     make([]string, len(sets)),
	}

	var (
		mu         sync.Mutex
		done       int
		dispatched int
	)
	finish := func(index int, filename string, err error) {
		mu.Lock()
		defer mu.Unlock()
		done++
		if err != nil {
			summary.Failed++
			summary.Failures = append(summary.Failures, Failure{Index: index, Error: err.Error(), err: err})
		} else {
			summary.Succeeded++
			summary.Files[index] = filename
		}
		if p.OnProgress != nil {
			p.OnProgress(Progress{Done: done, Total: len(sets), Failed: summary.Failed, LastFile: filename})
		}
	}

	g := new(errgroup.Group)
	g.SetLimit(workers)
	for i, ps := range sets {
		if ctx.Err() != nil {
			break
		}
		dispatched++
		g.Go(func() error {
			taskStart := time.Now()
			filename, err := p.runOne(ctx, i, ps)
			elapsed := time.Since(taskStart)

			if p.Recorder != nil {
				p.Recorder.RecordImage(ctx, elapsed, err == nil)
			}
			if err != nil {
				logger.Error("Error generating image", err, logger.Fields{
					"run_id": p.RunID,
					"index":  i,
				})
			} else {
				logger.LogImageGenerated(ctx, i, filename, elapsed, logger.Fields{"run_id": p.RunID})
			}
			finish(i, filename, err)
			return nil
		})
	}
	_ = g.Wait()

	summary.Skipped = len(sets) - dispatched
	summary.Duration = time.Since(start)
	sort.Slice(summary.Failures, func(a, b int) bool {
		return summary.Failures[a].Index < summary.Failures[b].Index
	})
	if p.Recorder != nil {
		p.Recorder.RecordRun(ctx, summary.Requested, summary.Failed, summary.Duration)
	}

	if summary.Skipped > 0 {
		return summary, ctx.Err()
	}
	return summary, nil
}

// runOne isolates a single sample: panics become errors so siblings keep running.
func (p *Pool) runOne(ctx context.Context, index int, ps schema.ParameterSet) (filename string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: sample %d: %v\n%s", ErrPanic, index, r, debug.Stack())
		}
	}()

	img, err := p.Renderer.Render(ctx, index, ps)
	if err != nil {
		return "", fmt.Errorf("sample %d: %w", index, err)
	}
	filename, err = p.Sink.Save(ctx, index, img, ps)
	if err != nil {
		return "", fmt.Errorf("sample %d: saving: %w", index, err)
	}
	return filename, nil
}
