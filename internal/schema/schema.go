package schema

import (
	"fmt"
	"math"
)

// Node is either a Leaf range or a Group of leaf ranges.
type Node interface {
	isNode()
}

// Leaf is an inclusive numeric range.
type Leaf struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

func (Leaf) isNode() {}

// Validate checks that the bounds are finite and ordered.
func (l Leaf) Validate() error {
	if math.IsNaN(l.Min) || math.IsNaN(l.Max) || math.IsInf(l.Min, 0) || math.IsInf(l.Max, 0) {
		return fmt.Errorf("%w: bounds must be finite, got (%v, %v)", ErrInvalidRange, l.Min, l.Max)
	}
	if l.Min > l.Max {
		return fmt.Errorf("%w: min %v greater than max %v", ErrInvalidRange, l.Min, l.Max)
	}
	return nil
}

// Contains reports whether v lies in [Min, Max].
func (l Leaf) Contains(v float64) bool {
	return v >= l.Min && v <= l.Max
}

// Member is a named leaf inside a Group.
type Member struct {
	Name  string
	Range Leaf
}

// Group is a named set of sub-parameters. Members keep their declaration order.
type Group struct {
	Members []Member
}

func (Group) isNode() {}

// Param is one top-level schema entry.
type Param struct {
	Name string
	Node Node
}

// Schema is an ordered parameter range schema with at most one level of nesting.
type Schema struct {
	Params []Param
}

// Leaf appends a flat range and returns the schema for chaining.
func (s *Schema) Leaf(name string, lo, hi float64) *Schema {
	s.Params = append(s.Params, Param{Name: name, Node: Leaf{Min: lo, Max: hi}})
	return s
}

// Group appends a nested group and returns the schema for chaining.
func (s *Schema) Group(name string, members ...Member) *Schema {
	s.Params = append(s.Params, Param{Name: name, Node: Group{Members: members}})
	return s
}

// Sub is a shorthand for building group members.
func Sub(name string, lo, hi float64) Member {
	return Member{Name: name, Range: Leaf{Min: lo, Max: hi}}
}

// Bound is one entry of a flattened schema.
type Bound struct {
	Name string `json:"name"`
	Leaf
}

// Flat is the flattened schema. Its order is the column order of every sampled design.
type Flat []Bound

// Names returns the composite names in order.
func (f Flat) Names() []string {
	names := make([]string, len(f))
	for i, b := range f {
		names[i] = b.Name
	}
	return names
}

// Lookup returns the range registered under a composite name.
func (f Flat) Lookup(name string) (Leaf, bool) {
	for _, b := range f {
		if b.Name == name {
			return b.Leaf, true
		}
	}
	return Leaf{}, false
}

// Flatten normalizes the schema into composite names. Group members are emitted as
// group_member at the group's position, in member order.
func (s Schema) Flatten() (Flat, error) {
	if len(s.Params) == 0 {
		return nil, ErrEmptySchema
	}

	flat := make(Flat, 0, len(s.Params))
	seen := make(map[string]struct{}, len(s.Params))
	add := func(name string, l Leaf) error {
		if err := l.Validate(); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateName, name)
		}
		seen[name] = struct{}{}
		flat = append(flat, Bound{Name: name, Leaf: l})
		return nil
	}

	for _, p := range s.Params {
		if p.Name == "" {
			return nil, fmt.Errorf("%w: empty parameter name", ErrMalformedSchema)
		}
		switch n := p.Node.(type) {
		case Leaf:
			if err := add(p.Name, n); err != nil {
				return nil, err
			}
		case Group:
			if len(n.Members) == 0 {
				return nil, fmt.Errorf("%w: group %s has no members", ErrEmptySchema, p.Name)
			}
			for _, m := range n.Members {
				if m.Name == "" {
					return nil, fmt.Errorf("%w: empty member name in group %s", ErrMalformedSchema, p.Name)
				}
				if err := add(p.Name+"_"+m.Name, m.Range); err != nil {
					return nil, err
				}
			}
		default:
			return nil, fmt.Errorf("%w: %s has no range", ErrMalformedSchema, p.Name)
		}
	}
	return flat, nil
}
