package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Value is one sampled parameter.
type Value struct {
	Name  string
	Value float64
}

// ParameterSet holds one concrete value per flattened parameter, in flattened order.
type ParameterSet []Value

// Get returns the value of a composite parameter.
func (ps ParameterSet) Get(name string) (float64, bool) {
	for _, v := range ps {
		if v.Name == name {
			return v.Value, true
		}
	}
	return 0, false
}

// Names returns the parameter names in order.
func (ps ParameterSet) Names() []string {
	names := make([]string, len(ps))
	for i, v := range ps {
		names[i] = v.Name
	}
	return names
}

// Map returns the set as an unordered name to value map.
func (ps ParameterSet) Map() map[string]float64 {
	m := make(map[string]float64, len(ps))
	for _, v := range ps {
		m[v.Name] = v.Value
	}
	return m
}

// Strings formats each value the way the parameter log writes it.
func (ps ParameterSet) Strings() []string {
	out := make([]string, len(ps))
	for i, v := range ps {
		out[i] = strconv.FormatFloat(v.Value, 'f', -1, 64)
	}
	return out
}

// MarshalJSON encodes the set as a JSON object whose keys keep flattened order.
func (ps ParameterSet) MarshalJSON() ([]byte, error) {
	buf := []byte{'{'}
	for i, v := range ps {
		if i > 0 {
			buf = append(buf, ',')
		}
		key, err := json.Marshal(v.Name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(v.Value)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", v.Name, err)
		}
		buf = append(buf, key...)
		buf = append(buf, ':')
		buf = append(buf, val...)
	}
	return append(buf, '}'), nil
}

// FromMap orders the values of m by the flattened schema. Every flattened name must be
// present and inside its range; unknown keys are rejected. Names listed in integer must
// hold whole numbers.
func FromMap(flat Flat, m map[string]float64, integer ...string) (ParameterSet, error) {
	if len(m) != len(flat) {
		for name := range m {
			if _, ok := flat.Lookup(name); !ok {
				return nil, fmt.Errorf("%w: unknown parameter %s", ErrMalformedSchema, name)
			}
		}
	}
	whole := make(map[string]bool, len(integer))
	for _, name := range integer {
		whole[name] = true
	}
	ps := make(ParameterSet, 0, len(flat))
	for _, b := range flat {
		v, ok := m[b.Name]
		if !ok {
			return nil, fmt.Errorf("%w: missing parameter %s", ErrMalformedSchema, b.Name)
		}
		if !b.Contains(v) {
			return nil, fmt.Errorf("%w: %s=%v outside [%v, %v]", ErrInvalidRange, b.Name, v, b.Min, b.Max)
		}
		if whole[b.Name] && v != math.Trunc(v) {
			return nil, fmt.Errorf("%w: %s=%v is not an integer", ErrInvalidRange, b.Name, v)
		}
		ps = append(ps, Value{Name: b.Name, Value: v})
	}
	return ps, nil
}
