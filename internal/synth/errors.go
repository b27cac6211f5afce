package synth

import "errors"

var (
	// ErrInvalidParams is returned for parameter values the pipeline cannot render,
	// such as non-positive axis lengths.
	ErrInvalidParams = errors.New("invalid image parameters")

	// ErrMissingParam is returned when a parameter set lacks a required name.
	ErrMissingParam = errors.New("missing image parameter")
)
