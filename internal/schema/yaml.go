package schema

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ParseYAML reads a range schema document. Leaves are two-element sequences and
// groups are mappings of leaves:
//
//	major_axis: [300, 400]
//	perlin:
//	  scale: [10, 100]
//	  octaves: [1, 5]
//
// Document order is preserved, which fixes the flattened column order.
func ParseYAML(data []byte) (Schema, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Schema{}, fmt.Errorf("%w: %v", ErrMalformedSchema, err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return Schema{}, ErrEmptySchema
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return Schema{}, fmt.Errorf("%w: top level must be a mapping (line %d)", ErrMalformedSchema, root.Line)
	}

	var s Schema
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, val := root.Content[i], root.Content[i+1]
		switch val.Kind {
		case yaml.SequenceNode:
			leaf, err := parseLeaf(key.Value, val)
			if err != nil {
				return Schema{}, err
			}
			s.Params = append(s.Params, Param{Name: key.Value, Node: leaf})
		case yaml.MappingNode:
			group, err := parseGroup(key.Value, val)
			if err != nil {
				return Schema{}, err
			}
			s.Params = append(s.Params, Param{Name: key.Value, Node: group})
		default:
			return Schema{}, fmt.Errorf("%w: %s must be [min, max] or a group (line %d)", ErrMalformedSchema, key.Value, val.Line)
		}
	}
	if len(s.Params) == 0 {
		return Schema{}, ErrEmptySchema
	}
	return s, nil
}

// LoadFile reads a schema from disk.
func LoadFile(path string) (Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Schema{}, fmt.Errorf("reading range schema: %w", err)
	}
	s, err := ParseYAML(data)
	if err != nil {
		return Schema{}, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

func parseGroup(name string, node *yaml.Node) (Group, error) {
	var g Group
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		if val.Kind == yaml.MappingNode {
			return Group{}, fmt.Errorf("%w: %s.%s (line %d)", ErrNestingTooDeep, name, key.Value, val.Line)
		}
		if val.Kind != yaml.SequenceNode {
			return Group{}, fmt.Errorf("%w: %s.%s must be [min, max] (line %d)", ErrMalformedSchema, name, key.Value, val.Line)
		}
		leaf, err := parseLeaf(name+"."+key.Value, val)
		if err != nil {
			return Group{}, err
		}
		g.Members = append(g.Members, Member{Name: key.Value, Range: leaf})
	}
	if len(g.Members) == 0 {
		return Group{}, fmt.Errorf("%w: group %s has no members", ErrEmptySchema, name)
	}
	return g, nil
}

func parseLeaf(name string, node *yaml.Node) (Leaf, error) {
	if len(node.Content) != 2 {
		return Leaf{}, fmt.Errorf("%w: %s needs exactly two bounds (line %d)", ErrMalformedSchema, name, node.Line)
	}
	var bounds [2]float64
	for i, item := range node.Content {
		if item.Kind != yaml.ScalarNode {
			return Leaf{}, fmt.Errorf("%w: %s bound %d is not a number (line %d)", ErrMalformedSchema, name, i, item.Line)
		}
		v, err := strconv.ParseFloat(item.Value, 64)
		if err != nil {
			return Leaf{}, fmt.Errorf("%w: %s bound %q: %v", ErrMalformedSchema, name, item.Value, err)
		}
		bounds[i] = v
	}
	leaf := Leaf{Min: bounds[0], Max: bounds[1]}
	if err := leaf.Validate(); err != nil {
		return Leaf{}, fmt.Errorf("%s: %w", name, err)
	}
	return leaf, nil
}
