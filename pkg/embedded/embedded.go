package embedded

import (
	_ "embed"
)

// Default parameter range schema used when no ranges file is configured.
//
//go:embed data/default_ranges.yaml
var DefaultRangesYAML []byte
