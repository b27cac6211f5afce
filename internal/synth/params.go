package synth

import (
	"fmt"
	"math"

	"github.com/Conceptual-Machines/nearfield-gen/internal/schema"
)

// Composite parameter names read from a parameter set.
const (
	ParamMajorAxis         = "major_axis"
	ParamMinorAxis         = "minor_axis"
	ParamAngleRotation     = "angle_rotation"
	ParamErfRolloff        = "erf_rolloff"
	ParamGaussianNoise     = "gaussian_noise"
	ParamAsymmetryX        = "asymmetry_x"
	ParamAsymmetryY        = "asymmetry_y"
	ParamPerlinScale       = "perlin_scale"
	ParamPerlinOctaves     = "perlin_octaves"
	ParamPerlinPersistence = "perlin_persistence"
	ParamPerlinLacunarity  = "perlin_lacunarity"
	ParamPerlinAmplitude   = "perlin_amplitude"
)

// NoiseParams controls the multi-octave noise field.
type NoiseParams struct {
	Scale       float64
	Octaves     int
	Persistence float64
	Lacunarity  float64
	Amplitude   float64
}

// Params is the typed form of one parameter set.
type Params struct {
	MajorAxis     float64
	MinorAxis     float64
	AngleRotation float64 // degrees
	ErfRolloff    float64
	GaussianNoise float64 // grain standard deviation
	AsymmetryX    float64
	AsymmetryY    float64
	Noise         NoiseParams
}

// ParamsFromSet extracts the pipeline parameters. Extra names in the set are ignored.
func ParamsFromSet(ps schema.ParameterSet) (Params, error) {
	var (
		p       Params
		octaves float64
		missing []string
	)
	fields := []struct {
		name string
		dst  *float64
	}{
		{ParamMajorAxis, &p.MajorAxis},
		{ParamMinorAxis, &p.MinorAxis},
		{ParamAngleRotation, &p.AngleRotation},
		{ParamErfRolloff, &p.ErfRolloff},
		{ParamGaussianNoise, &p.GaussianNoise},
		{ParamAsymmetryX, &p.AsymmetryX},
		{ParamAsymmetryY, &p.AsymmetryY},
		{ParamPerlinScale, &p.Noise.Scale},
		{ParamPerlinOctaves, &octaves},
		{ParamPerlinPersistence, &p.Noise.Persistence},
		{ParamPerlinLacunarity, &p.Noise.Lacunarity},
		{ParamPerlinAmplitude, &p.Noise.Amplitude},
	}
	for _, f := range fields {
		v, ok := ps.Get(f.name)
		if !ok {
			missing = append(missing, f.name)
			continue
		}
		*f.dst = v
	}
	if len(missing) > 0 {
		return Params{}, fmt.Errorf("%w: %v", ErrMissingParam, missing)
	}
	// Half-to-even, the same rule the sampler applies to integer parameters.
	p.Noise.Octaves = int(math.RoundToEven(octaves))
	return p, p.Validate()
}

// Validate rejects values that would make the pipeline degenerate.
func (p Params) Validate() error {
	values := []float64{
		p.MajorAxis, p.MinorAxis, p.AngleRotation, p.ErfRolloff, p.GaussianNoise,
		p.AsymmetryX, p.AsymmetryY, p.Noise.Scale, p.Noise.Persistence, p.Noise.Lacunarity, p.Noise.Amplitude,
	}
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite value", ErrInvalidParams)
		}
	}

	switch {
	case p.MajorAxis <= 0 || p.MinorAxis <= 0:
		return fmt.Errorf("%w: axes must be positive, got %v and %v", ErrInvalidParams, p.MajorAxis, p.MinorAxis)
	case p.ErfRolloff < 0:
		return fmt.Errorf("%w: erf rolloff %v is negative", ErrInvalidParams, p.ErfRolloff)
	case p.GaussianNoise < 0:
		return fmt.Errorf("%w: gaussian noise %v is negative", ErrInvalidParams, p.GaussianNoise)
	case p.Noise.Scale <= 0:
		return fmt.Errorf("%w: noise scale %v must be positive", ErrInvalidParams, p.Noise.Scale)
	case p.Noise.Octaves < 1:
		return fmt.Errorf("%w: noise needs at least one octave, got %d", ErrInvalidParams, p.Noise.Octaves)
	case p.Noise.Persistence < 0:
		return fmt.Errorf("%w: persistence %v is negative", ErrInvalidParams, p.Noise.Persistence)
	case p.Noise.Lacunarity <= 0:
		return fmt.Errorf("%w: lacunarity %v must be positive", ErrInvalidParams, p.Noise.Lacunarity)
	}
	return nil
}
