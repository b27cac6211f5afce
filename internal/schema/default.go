package schema

import "github.com/Conceptual-Machines/nearfield-gen/pkg/embedded"

// Default returns the built-in range schema.
func Default() (Schema, error) {
	return ParseYAML(embedded.DefaultRangesYAML)
}
