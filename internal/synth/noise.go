package synth

import (
	"fmt"
	"runtime"

	"github.com/ojrac/opensimplex-go"
	"golang.org/x/sync/errgroup"
)

// Noise2D evaluates coherent noise in roughly [-1, 1].
type Noise2D interface {
	Eval2(x, y float64) float64
}

// NewNoise returns a seeded OpenSimplex source. It is safe for concurrent reads.
func NewNoise(seed int64) Noise2D {
	return opensimplex.New(seed)
}

// octave holds the precomputed frequency and weight of one noise layer.
type octave struct {
	freq   float64
	weight float64
}

// octaves normalizes the layer weights so the sum stays within the base noise range.
func octaves(p NoiseParams) []octave {
	layers := make([]octave, p.Octaves)
	freq, amp, total := 1.0, 1.0, 0.0
	for i := range layers {
		layers[i] = octave{freq: freq, weight: amp}
		total += amp
		freq *= p.Lacunarity
		amp *= p.Persistence
	}
	for i := range layers {
		layers[i].weight /= total
	}
	return layers
}

// fractal sums the octave layers at one coordinate.
func fractal(gen Noise2D, layers []octave, x, y float64) float64 {
	var sum float64
	for _, o := range layers {
		sum += gen.Eval2(x*o.freq, y*o.freq) * o.weight
	}
	return sum
}

// SynthesizeNoise evaluates multi-octave noise at (x/scale, y/scale) for every pixel,
// multiplies it by the amplitude and adds dcOffset. Rows are split into bands that are
// filled concurrently by up to workers goroutines; workers <= 0 uses every CPU.
func SynthesizeNoise(c Canvas, p NoiseParams, dcOffset float64, gen Noise2D, workers int) (*Field, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if p.Scale <= 0 || p.Octaves < 1 || p.Persistence < 0 || p.Lacunarity <= 0 {
		return nil, fmt.Errorf("%w: noise %+v", ErrInvalidParams, p)
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	workers = min(workers, c.Height)

	field := NewField(c)
	layers := octaves(p)
	band := (c.Height + workers - 1) / workers

	var g errgroup.Group
	for start := 0; start < c.Height; start += band {
		end := min(start+band, c.Height)
		g.Go(func() error {
			for y := start; y < end; y++ {
				fy := float64(y) / p.Scale
				row := field.Pix[y*c.Width : (y+1)*c.Width]
				for x := range row {
					row[x] = fractal(gen, layers, float64(x)/p.Scale, fy)*p.Amplitude + dcOffset
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return field, nil
}
