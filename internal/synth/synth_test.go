package synth

import (
	"math"
	"testing"
	"time"

	"github.com/Conceptual-Machines/nearfield-gen/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

// scenarioParams is a 4x4-friendly set: unit circle, sharp edge, no noise or grain.
func scenarioParams(overrides map[string]float64) schema.ParameterSet {
	base := []schema.Value{
		{Name: ParamMajorAxis, Value: 1},
		{Name: ParamMinorAxis, Value: 1},
		{Name: ParamAngleRotation, Value: 0},
		{Name: ParamErfRolloff, Value: 10},
		{Name: ParamGaussianNoise, Value: 0},
		{Name: ParamAsymmetryX, Value: 0},
		{Name: ParamAsymmetryY, Value: 0},
		{Name: ParamPerlinScale, Value: 10},
		{Name: ParamPerlinOctaves, Value: 1},
		{Name: ParamPerlinPersistence, Value: 0.5},
		{Name: ParamPerlinLacunarity, Value: 2},
		{Name: ParamPerlinAmplitude, Value: 0},
	}
	for i, v := range base {
		if o, ok := overrides[v.Name]; ok {
			base[i].Value = o
		}
	}
	return base
}

func newGenerator(t *testing.T, c Canvas, dc float64) *Generator {
	t.Helper()
	seed := uint64(1234)
	g, err := NewGenerator(Options{Canvas: c, DCOffset: dc, Workers: 2, Seed: &seed})
	require.NoError(t, err)
	return g
}

func TestBuildMask_UnitCircle(t *testing.T) {
	mask, err := BuildMask(Canvas{Width: 4, Height: 4}, 1, 1, 0)
	require.NoError(t, err)

	inside := map[[2]int]bool{{2, 2}: true, {1, 2}: true, {3, 2}: true, {2, 1}: true, {2, 3}: true}
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			want := 0.0
			if inside[[2]int{x, y}] {
				want = 1
			}
			assert.Equal(t, want, mask.At(x, y), "pixel (%d,%d)", x, y)
		}
	}
}

func TestBuildMask_Rotation(t *testing.T) {
	c := Canvas{Width: 16, Height: 16}

	flat, err := BuildMask(c, 3, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, 1.0, flat.At(10, 8))
	assert.Equal(t, 0.0, flat.At(8, 10))

	upright, err := BuildMask(c, 3, 1, 90)
	require.NoError(t, err)
	assert.Equal(t, 0.0, upright.At(10, 8))
	assert.Equal(t, 1.0, upright.At(8, 10))
}

func TestBuildMask_RejectsDegenerateAxes(t *testing.T) {
	for _, axes := range [][2]float64{{0, 1}, {1, -2}, {math.NaN(), 1}, {math.Inf(1), 1}} {
		_, err := BuildMask(Canvas{Width: 4, Height: 4}, axes[0], axes[1], 0)
		assert.ErrorIs(t, err, ErrInvalidParams, "axes %v", axes)
	}

	_, err := BuildMask(Canvas{Width: 0, Height: 4}, 1, 1, 0)
	assert.ErrorIs(t, err, ErrInvalidParams)
}

func TestDistanceTransform_MatchesBruteForce(t *testing.T) {
	rnd := rand.New(rand.NewSource(5))
	mask := NewField(Canvas{Width: 13, Height: 9})
	for i := range mask.Pix {
		if rnd.Float64() < 0.6 {
			mask.Pix[i] = 1
		}
	}

	for _, invert := range []bool{false, true} {
		got := distanceTransform(mask, invert)
		for y := 0; y < mask.Height; y++ {
			for x := 0; x < mask.Width; x++ {
				in := (mask.At(x, y) > 0.5) != invert
				if !in {
					assert.Equal(t, 0.0, got[y*mask.Width+x])
					continue
				}
				best := math.Inf(1)
				for yy := 0; yy < mask.Height; yy++ {
					for xx := 0; xx < mask.Width; xx++ {
						if (mask.At(xx, yy) > 0.5) != invert {
							continue
						}
						best = math.Min(best, math.Hypot(float64(x-xx), float64(y-yy)))
					}
				}
				assert.InDelta(t, best, got[y*mask.Width+x], 1e-9, "pixel (%d,%d) invert=%v", x, y, invert)
			}
		}
	}
}

func TestSoften(t *testing.T) {
	c := Canvas{Width: 32, Height: 24}
	mask, err := BuildMask(c, 9, 5, 30)
	require.NoError(t, err)

	t.Run("bounded", func(t *testing.T) {
		w, err := Soften(mask, 0.05)
		require.NoError(t, err)
		for _, v := range w.Pix {
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 1.0)
		}
	})

	t.Run("sharp rolloff converges to mask", func(t *testing.T) {
		w, err := Soften(mask, 1e6)
		require.NoError(t, err)
		assert.InDeltaSlice(t, mask.Pix, w.Pix, 1e-12)
	})

	t.Run("wider rolloff at lower sharpness", func(t *testing.T) {
		soft, err := Soften(mask, 0.05)
		require.NoError(t, err)
		hard, err := Soften(mask, 2)
		require.NoError(t, err)
		// The centre is deep inside; a soft edge keeps it further from 1.
		cx, cy := 16, 12
		assert.Less(t, soft.At(cx, cy), hard.At(cx, cy))
		assert.Greater(t, soft.At(0, 0), hard.At(0, 0))
	})

	t.Run("zero rolloff is flat", func(t *testing.T) {
		w, err := Soften(mask, 0)
		require.NoError(t, err)
		for _, v := range w.Pix {
			assert.Equal(t, 0.5, v)
		}
	})

	t.Run("negative rolloff rejected", func(t *testing.T) {
		_, err := Soften(mask, -1)
		assert.ErrorIs(t, err, ErrInvalidParams)
	})
}

func TestSoften_DegenerateMasks(t *testing.T) {
	c := Canvas{Width: 5, Height: 5}

	empty := NewField(c)
	w, err := Soften(empty, 0.1)
	require.NoError(t, err)
	for _, v := range w.Pix {
		assert.Equal(t, 0.0, v)
	}

	full, err := BuildMask(c, 100, 100, 0)
	require.NoError(t, err)
	w, err = Soften(full, 0)
	require.NoError(t, err)
	for _, v := range w.Pix {
		assert.Equal(t, 1.0, v)
	}
}

func TestSynthesizeNoise(t *testing.T) {
	c := Canvas{Width: 40, Height: 30}
	p := NoiseParams{Scale: 12, Octaves: 4, Persistence: 0.5, Lacunarity: 2, Amplitude: 0.3}
	gen := NewNoise(77)

	t.Run("zero amplitude is the dc offset", func(t *testing.T) {
		flat := p
		flat.Amplitude = 0
		f, err := SynthesizeNoise(c, flat, 0.5, gen, 0)
		require.NoError(t, err)
		for _, v := range f.Pix {
			assert.Equal(t, 0.5, v)
		}
	})

	t.Run("bounded around the offset", func(t *testing.T) {
		f, err := SynthesizeNoise(c, p, 0.5, gen, 3)
		require.NoError(t, err)
		var spread float64
		for _, v := range f.Pix {
			assert.InDelta(t, 0.5, v, 0.3*1.05)
			spread = math.Max(spread, math.Abs(v-0.5))
		}
		assert.Greater(t, spread, 0.0)
	})

	t.Run("banding does not change values", func(t *testing.T) {
		one, err := SynthesizeNoise(c, p, 0.5, gen, 1)
		require.NoError(t, err)
		many, err := SynthesizeNoise(c, p, 0.5, gen, 7)
		require.NoError(t, err)
		assert.Equal(t, one.Pix, many.Pix)
	})

	t.Run("matches the octave sum", func(t *testing.T) {
		f, err := SynthesizeNoise(c, p, 0.5, gen, 2)
		require.NoError(t, err)

		x, y := 17, 9
		var total, norm float64
		freq, amp := 1.0, 1.0
		for i := 0; i < p.Octaves; i++ {
			total += gen.Eval2(float64(x)/p.Scale*freq, float64(y)/p.Scale*freq) * amp
			norm += amp
			freq *= p.Lacunarity
			amp *= p.Persistence
		}
		assert.InDelta(t, total/norm*p.Amplitude+0.5, f.At(x, y), 1e-12)
	})

	t.Run("invalid", func(t *testing.T) {
		bad := p
		bad.Octaves = 0
		_, err := SynthesizeNoise(c, bad, 0.5, gen, 1)
		assert.ErrorIs(t, err, ErrInvalidParams)
	})
}

func TestWarp(t *testing.T) {
	c := Canvas{Width: 5, Height: 3}

	f := NewField(c)
	Warp(f, 0, 0)
	assert.Equal(t, make([]float64, 15), f.Pix)

	Warp(f, 0.5, 0.2)
	assert.InDelta(t, -0.7, f.At(0, 0), 1e-12)
	assert.InDelta(t, 0.7, f.At(4, 2), 1e-12)
	assert.InDelta(t, 0.0, f.At(2, 1), 1e-12)
	assert.InDelta(t, 0.5-0.2, f.At(4, 0), 1e-12)
}

func TestLinspace(t *testing.T) {
	assert.Equal(t, []float64{-1, -0.5, 0, 0.5, 1}, linspace(-1, 1, 5))
	assert.Equal(t, []float64{3}, linspace(3, 9, 1))
}

func TestQuantize(t *testing.T) {
	f := NewField(Canvas{Width: 5, Height: 1})
	copy(f.Pix, []float64{-0.2, 0, 0.5, 1, math.NaN()})

	img := Quantize(f)
	got := make([]uint16, 5)
	for x := range got {
		got[x] = img.Gray16At(x, 0).Y
	}
	assert.Equal(t, []uint16{0, 0, 32767, 65535, 0}, got)
}

func TestGenerator_Scenario4x4(t *testing.T) {
	g := newGenerator(t, Canvas{Width: 4, Height: 4}, DefaultDCOffset)
	ps := scenarioParams(nil)

	first, err := g.Generate(ps)
	require.NoError(t, err)

	assert.Equal(t, uint16(32767), first.Gray16At(2, 2).Y)
	for _, corner := range [][2]int{{0, 0}, {3, 0}, {0, 3}, {3, 3}} {
		assert.Equal(t, uint16(0), first.Gray16At(corner[0], corner[1]).Y)
	}

	// Amplitude and grain are zero, so no randomness reaches the pixels.
	for i := 0; i < 3; i++ {
		again, err := g.Generate(ps)
		require.NoError(t, err)
		assert.Equal(t, first.Pix, again.Pix)
	}
}

func TestGenerator_ZeroNoiseIsSoftenedMask(t *testing.T) {
	c := Canvas{Width: 48, Height: 32}
	g := newGenerator(t, c, 1)
	ps := scenarioParams(map[string]float64{
		ParamMajorAxis:     14,
		ParamMinorAxis:     9,
		ParamAngleRotation: 25,
		ParamErfRolloff:    0.3,
	})

	img, err := g.Generate(ps)
	require.NoError(t, err)

	mask, err := BuildMask(c, 14, 9, 25)
	require.NoError(t, err)
	weights, err := Soften(mask, 0.3)
	require.NoError(t, err)
	assert.Equal(t, Quantize(weights).Pix, img.Pix)
}

func TestGenerator_SeedReproducible(t *testing.T) {
	c := Canvas{Width: 24, Height: 24}
	g := newGenerator(t, c, DefaultDCOffset)
	ps := scenarioParams(map[string]float64{
		ParamMajorAxis:       8,
		ParamMinorAxis:       6,
		ParamGaussianNoise:   0.04,
		ParamPerlinAmplitude: 0.6,
		ParamPerlinOctaves:   3,
		ParamAsymmetryX:      0.2,
	})

	a, err := g.GenerateWithSeed(ps, 9)
	require.NoError(t, err)
	b, err := g.GenerateWithSeed(ps, 9)
	require.NoError(t, err)
	c2, err := g.GenerateWithSeed(ps, 10)
	require.NoError(t, err)

	assert.Equal(t, a.Pix, b.Pix)
	assert.NotEqual(t, a.Pix, c2.Pix)
}

func TestGenerator_SampledParamsStayInRange(t *testing.T) {
	g := newGenerator(t, Canvas{Width: 20, Height: 16}, DefaultDCOffset)
	rnd := rand.New(rand.NewSource(8))

	for i := 0; i < 20; i++ {
		ps := scenarioParams(map[string]float64{
			ParamMajorAxis:       1 + rnd.Float64()*12,
			ParamMinorAxis:       1 + rnd.Float64()*12,
			ParamAngleRotation:   rnd.Float64() * 180,
			ParamErfRolloff:      rnd.Float64(),
			ParamGaussianNoise:   rnd.Float64() * 0.5,
			ParamAsymmetryX:      rnd.Float64()*4 - 2,
			ParamAsymmetryY:      rnd.Float64()*4 - 2,
			ParamPerlinAmplitude: rnd.Float64() * 3,
			ParamPerlinOctaves:   float64(1 + rnd.Intn(5)),
		})
		img, err := g.Generate(ps)
		require.NoError(t, err)
		assert.Equal(t, 20, img.Bounds().Dx())
		assert.Equal(t, 16, img.Bounds().Dy())
	}
}

func TestParamsFromSet_Errors(t *testing.T) {
	_, err := ParamsFromSet(schema.ParameterSet{{Name: ParamMajorAxis, Value: 3}})
	assert.ErrorIs(t, err, ErrMissingParam)

	_, err = ParamsFromSet(scenarioParams(map[string]float64{ParamMinorAxis: -1}))
	assert.ErrorIs(t, err, ErrInvalidParams)

	_, err = ParamsFromSet(scenarioParams(map[string]float64{ParamPerlinOctaves: 0}))
	assert.ErrorIs(t, err, ErrInvalidParams)

	p, err := ParamsFromSet(scenarioParams(map[string]float64{ParamPerlinOctaves: 3}))
	require.NoError(t, err)
	assert.Equal(t, 3, p.Noise.Octaves)
}

func TestParamsFromSet_OctavesRoundHalfToEven(t *testing.T) {
	tests := []struct {
		in   float64
		want int
	}{
		{2.5, 2},
		{3.5, 4},
		{2.4, 2},
		{4.6, 5},
	}
	for _, tt := range tests {
		p, err := ParamsFromSet(scenarioParams(map[string]float64{ParamPerlinOctaves: tt.in}))
		require.NoError(t, err)
		assert.Equal(t, tt.want, p.Noise.Octaves, "octaves %v", tt.in)
	}
}

func TestGenerator_GenerateTimedReportsStages(t *testing.T) {
	c := Canvas{Width: 16, Height: 12}
	g := newGenerator(t, c, DefaultDCOffset)
	ps := scenarioParams(map[string]float64{
		ParamMajorAxis:       6,
		ParamMinorAxis:       4,
		ParamGaussianNoise:   0.02,
		ParamPerlinAmplitude: 0.5,
	})

	img, timings, err := g.GenerateTimed(ps, 21)
	require.NoError(t, err)

	stages := make([]string, len(timings))
	for i, st := range timings {
		stages[i] = st.Stage
		assert.GreaterOrEqual(t, st.Duration, time.Duration(0))
	}
	assert.Equal(t, []string{StageNoise, StageMask, StageSoften, StageGrain, StageQuantize}, stages)

	plain, err := g.GenerateWithSeed(ps, 21)
	require.NoError(t, err)
	assert.Equal(t, plain.Pix, img.Pix)
}

func TestGenerator_GenerateTimedStopsAtFailingStage(t *testing.T) {
	g := newGenerator(t, Canvas{Width: 8, Height: 8}, DefaultDCOffset)
	_, timings, err := g.GenerateTimed(scenarioParams(map[string]float64{ParamMinorAxis: -1}), 1)
	assert.ErrorIs(t, err, ErrInvalidParams)
	assert.Empty(t, timings)
}
