package sampler

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/Conceptual-Machines/nearfield-gen/internal/schema"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"
	"gonum.org/v1/gonum/stat/distuv"
	"gonum.org/v1/gonum/stat/samplemv"
)

// Method selects the sampling strategy.
type Method string

const (
	// MethodLHS draws a Latin Hypercube design over the flattened schema.
	MethodLHS Method = "LHS"
	// MethodRandom draws every parameter independently and uniformly.
	MethodRandom Method = "random"
)

var (
	// ErrUnknownMethod is a configuration error: no samples are produced.
	ErrUnknownMethod = errors.New("unknown sampling method")

	// ErrInvalidCount is returned for a non-positive sample count.
	ErrInvalidCount = errors.New("sample count must be positive")
)

// DefaultIntegerParams lists the composite names rounded to whole numbers.
var DefaultIntegerParams = []string{"perlin_octaves"}

// ParseMethod validates a method name.
func ParseMethod(name string) (Method, error) {
	switch Method(name) {
	case MethodLHS, MethodRandom:
		return Method(name), nil
	default:
		return "", fmt.Errorf("%w: %q (want %q or %q)", ErrUnknownMethod, name, MethodLHS, MethodRandom)
	}
}

// Sampler produces parameter sets from a range schema.
type Sampler struct {
	method  Method
	integer map[string]bool

	mu  sync.Mutex
	src rand.Source
}

// Option configures a Sampler.
type Option func(*Sampler)

// WithSeed makes the sampler reproducible.
func WithSeed(seed uint64) Option {
	return func(s *Sampler) {
		s.src = rand.NewSource(seed)
	}
}

// WithSource substitutes the random source.
func WithSource(src rand.Source) Option {
	return func(s *Sampler) {
		s.src = src
	}
}

// WithIntegerParams replaces the set of parameters rounded to integers.
func WithIntegerParams(names ...string) Option {
	return func(s *Sampler) {
		s.integer = make(map[string]bool, len(names))
		for _, n := range names {
			s.integer[n] = true
		}
	}
}

// New creates a sampler. An unknown method fails with ErrUnknownMethod.
func New(method string, opts ...Option) (*Sampler, error) {
	m, err := ParseMethod(method)
	if err != nil {
		return nil, err
	}

	s := &Sampler{method: m}
	WithIntegerParams(DefaultIntegerParams...)(s)
	for _, opt := range opts {
		opt(s)
	}
	if s.src == nil {
		s.src = rand.NewSource(uint64(time.Now().UnixNano()))
	}
	return s, nil
}

// Method returns the configured strategy.
func (s *Sampler) Method() Method {
	return s.method
}

// Sample returns n parameter sets. Each set holds every flattened parameter, in
// flattened order, with integer parameters rounded.
func (s *Sampler) Sample(sch schema.Schema, n int) ([]schema.ParameterSet, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidCount, n)
	}
	flat, err := sch.Flatten()
	if err != nil {
		return nil, err
	}
	for _, b := range flat {
		if s.integer[b.Name] && math.Ceil(b.Min) > math.Floor(b.Max) {
			return nil, fmt.Errorf("%s: %w: no integer in [%v, %v]", b.Name, schema.ErrInvalidRange, b.Min, b.Max)
		}
	}

	// The source is not safe for concurrent use.
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.method {
	case MethodLHS:
		return s.latinHypercube(flat, n), nil
	case MethodRandom:
		return s.uniform(flat, n), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMethod, s.method)
	}
}

// latinHypercube maps a unit design to the parameter ranges, one column per parameter.
func (s *Sampler) latinHypercube(flat schema.Flat, n int) []schema.ParameterSet {
	design := mat.NewDense(n, len(flat), nil)
	samplemv.LatinHypercube{
		Q:   distmv.NewUnitUniform(len(flat), s.src),
		Src: s.src,
	}.Sample(design)

	sets := make([]schema.ParameterSet, n)
	for i := range sets {
		ps := make(schema.ParameterSet, len(flat))
		for j, b := range flat {
			ps[j] = schema.Value{Name: b.Name, Value: s.finish(b, b.Min+design.At(i, j)*(b.Max-b.Min))}
		}
		sets[i] = ps
	}
	return sets
}

func (s *Sampler) uniform(flat schema.Flat, n int) []schema.ParameterSet {
	dists := make([]distuv.Uniform, len(flat))
	for j, b := range flat {
		dists[j] = distuv.Uniform{Min: b.Min, Max: b.Max, Src: s.src}
	}

	sets := make([]schema.ParameterSet, n)
	for i := range sets {
		ps := make(schema.ParameterSet, len(flat))
		for j, b := range flat {
			ps[j] = schema.Value{Name: b.Name, Value: s.finish(b, dists[j].Rand())}
		}
		sets[i] = ps
	}
	return sets
}

// finish rounds integer parameters and keeps every value inside its range.
func (s *Sampler) finish(b schema.Bound, v float64) float64 {
	if s.integer[b.Name] {
		v = math.RoundToEven(v)
		if lo := math.Ceil(b.Min); v < lo {
			v = lo
		}
		if hi := math.Floor(b.Max); v > hi {
			v = hi
		}
		return v
	}
	return math.Min(math.Max(v, b.Min), b.Max)
}
