package metrics

import (
	"context"
	"sync/atomic"
	"time"
)

// Recorder receives image and run metrics.
type Recorder interface {
	RecordImage(ctx context.Context, duration time.Duration, success bool)
	RecordRun(ctx context.Context, requested, failed int, duration time.Duration)
}

// Multi forwards every record to each recorder.
type Multi []Recorder

func (m Multi) RecordImage(ctx context.Context, duration time.Duration, success bool) {
	for _, r := range m {
		r.RecordImage(ctx, duration, success)
	}
}

func (m Multi) RecordRun(ctx context.Context, requested, failed int, duration time.Duration) {
	for _, r := range m {
		r.RecordRun(ctx, requested, failed, duration)
	}
}

// Counters keeps in-process totals, served by the preview server's metrics endpoint.
type Counters struct {
	images   atomic.Int64
	failures atomic.Int64
	runs     atomic.Int64
	totalMs  atomic.Int64
}

func (c *Counters) RecordImage(_ context.Context, duration time.Duration, success bool) {
	if success {
		c.images.Add(1)
	} else {
		c.failures.Add(1)
	}
	c.totalMs.Add(duration.Milliseconds())
}

func (c *Counters) RecordRun(context.Context, int, int, time.Duration) {
	c.runs.Add(1)
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	ImagesGenerated int64   `json:"images_generated"`
	ImageErrors     int64   `json:"image_errors"`
	Runs            int64   `json:"runs"`
	AvgImageMs      float64 `json:"avg_image_ms"`
}

func (c *Counters) Snapshot() Snapshot {
	s := Snapshot{
		ImagesGenerated: c.images.Load(),
		ImageErrors:     c.failures.Load(),
		Runs:            c.runs.Load(),
	}
	if n := s.ImagesGenerated + s.ImageErrors; n > 0 {
		s.AvgImageMs = float64(c.totalMs.Load()) / float64(n)
	}
	return s
}
