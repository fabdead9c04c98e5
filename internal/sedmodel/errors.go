package sedmodel

import "errors"

var (
	// ErrInvalidDescriptor rejects descriptors whose ranges overlap or
	// leave gaps in the theta vector.
	ErrInvalidDescriptor = errors.New("invalid parameter descriptor")

	// ErrShapeMismatch reports a theta vector whose length disagrees with
	// the descriptor's total parameter count.
	ErrShapeMismatch = errors.New("theta length does not match descriptor")

	// ErrUnsupportedParameterSet reports a gradient request for a
	// parameter set other than exactly {mass}.
	ErrUnsupportedParameterSet = errors.New("gradients are only defined for the mass-only parameter set")

	// ErrJitterGradient reports a gradient request with a nonzero jitter
	// term, whose derivative has not been derived.
	ErrJitterGradient = errors.New("jitter gradient not derived")
)
