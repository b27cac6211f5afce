package synth

import (
	"fmt"
	"image"
	"math"
	"sync"
	"time"

	"github.com/Conceptual-Machines/nearfield-gen/internal/schema"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// DefaultDCOffset keeps the noise field predominantly positive.
const DefaultDCOffset = 0.5

// Options configures a Generator.
type Options struct {
	Canvas   Canvas
	DCOffset float64
	// Workers bounds the goroutines used for noise evaluation inside one image.
	// Zero uses every CPU.
	Workers int
	// Seed, when non-nil, fixes the sequence of per-image seeds handed out by Generate.
	Seed *uint64
}

// Generator renders nearfield images. It holds no per-image state, so one Generator
// may serve many goroutines.
type Generator struct {
	canvas   Canvas
	dcOffset float64
	workers  int

	mu    sync.Mutex
	seeds *rand.Rand
}

// NewGenerator validates the options and builds a generator.
func NewGenerator(opts Options) (*Generator, error) {
	if err := opts.Canvas.Validate(); err != nil {
		return nil, err
	}
	if math.IsNaN(opts.DCOffset) || math.IsInf(opts.DCOffset, 0) {
		return nil, fmt.Errorf("%w: dc offset %v", ErrInvalidParams, opts.DCOffset)
	}
	seed := uint64(time.Now().UnixNano())
	if opts.Seed != nil {
		seed = *opts.Seed
	}
	return &Generator{
		canvas:   opts.Canvas,
		dcOffset: opts.DCOffset,
		workers:  opts.Workers,
		seeds:    rand.New(rand.NewSource(seed)),
	}, nil
}

// Canvas returns the output size.
func (g *Generator) Canvas() Canvas {
	return g.canvas
}

// StageTiming is the wall time of one pipeline stage.
type StageTiming struct {
	Stage    string
	Duration time.Duration
}

// Pipeline stage names reported by GenerateTimed.
const (
	StageNoise    = "noise"
	StageMask     = "mask"
	StageSoften   = "soften"
	StageGrain    = "grain"
	StageQuantize = "quantize"
)

// NextSeed draws the next per-image seed from the generator's own source.
func (g *Generator) NextSeed() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.seeds.Uint64()
}

// Generate renders one image with a seed drawn from the generator's own source.
func (g *Generator) Generate(ps schema.ParameterSet) (*image.Gray16, error) {
	return g.GenerateWithSeed(ps, g.NextSeed())
}

// GenerateWithSeed renders one image. The same parameters and seed always give the
// same pixels.
func (g *Generator) GenerateWithSeed(ps schema.ParameterSet, seed uint64) (*image.Gray16, error) {
	img, _, err := g.GenerateTimed(ps, seed)
	return img, err
}

// GenerateTimed is GenerateWithSeed that also reports how long each stage took, in
// pipeline order. Stages that never ran are absent.
func (g *Generator) GenerateTimed(ps schema.ParameterSet, seed uint64) (*image.Gray16, []StageTiming, error) {
	p, err := ParamsFromSet(ps)
	if err != nil {
		return nil, nil, err
	}
	t := &stageTimer{}
	field, err := g.compose(p, rand.NewSource(seed), t)
	if err != nil {
		return nil, t.timings, err
	}
	t.start()
	img := Quantize(field)
	t.stop(StageQuantize)
	return img, t.timings, nil
}

// Compose runs the pipeline up to, but not including, quantization:
// noise, asymmetry, mask, edge roll-off, masking, grain and clipping to [0, 1].
func (g *Generator) Compose(p Params, src rand.Source) (*Field, error) {
	return g.compose(p, src, nil)
}

type stageTimer struct {
	began   time.Time
	timings []StageTiming
}

func (t *stageTimer) start() {
	if t != nil {
		t.began = time.Now()
	}
}

func (t *stageTimer) stop(stage string) {
	if t != nil {
		t.timings = append(t.timings, StageTiming{Stage: stage, Duration: time.Since(t.began)})
	}
}

func (g *Generator) compose(p Params, src rand.Source, t *stageTimer) (*Field, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	rnd := rand.New(src)

	t.start()
	field, err := SynthesizeNoise(g.canvas, p.Noise, g.dcOffset, NewNoise(int64(rnd.Uint64())), g.workers)
	if err != nil {
		return nil, fmt.Errorf("noise: %w", err)
	}
	Warp(field, p.AsymmetryX, p.AsymmetryY)
	t.stop(StageNoise)

	t.start()
	mask, err := BuildMask(g.canvas, p.MajorAxis, p.MinorAxis, p.AngleRotation)
	if err != nil {
		return nil, fmt.Errorf("mask: %w", err)
	}
	t.stop(StageMask)

	t.start()
	weights, err := Soften(mask, p.ErfRolloff)
	if err != nil {
		return nil, fmt.Errorf("rolloff: %w", err)
	}
	if err := field.Mul(weights); err != nil {
		return nil, err
	}
	t.stop(StageSoften)

	t.start()
	if p.GaussianNoise > 0 {
		grain := distuv.Normal{Mu: 0, Sigma: p.GaussianNoise, Src: rnd}
		for i := range field.Pix {
			field.Pix[i] += grain.Rand()
		}
	}
	Clip(field, 0, 1)
	t.stop(StageGrain)
	return field, nil
}

// Clip bounds every value to [lo, hi]. NaN becomes lo.
func Clip(f *Field, lo, hi float64) {
	for i, v := range f.Pix {
		switch {
		case math.IsNaN(v) || v < lo:
			f.Pix[i] = lo
		case v > hi:
			f.Pix[i] = hi
		}
	}
}

// Quantize scales a [0, 1] field to the 16-bit range, truncating toward zero.
// Values outside [0, 1] are clipped first.
func Quantize(f *Field) *image.Gray16 {
	img := image.NewGray16(image.Rect(0, 0, f.Width, f.Height))
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			v := f.At(x, y)
			switch {
			case math.IsNaN(v) || v <= 0:
				v = 0
			case v >= 1:
				v = 1
			}
			q := uint16(v * math.MaxUint16)
			i := img.PixOffset(x, y)
			img.Pix[i] = uint8(q >> 8)
			img.Pix[i+1] = uint8(q)
		}
	}
	return img
}
