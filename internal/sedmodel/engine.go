package sedmodel

import (
	"context"

	"gonum.org/v1/gonum/mat"

	"github.com/pyaritra/prospector/internal/model"
)

// SynthesisEngine renders spectra and photometry from physical
// parameters. It is an opaque, blocking collaborator: calls are
// deterministic for fixed inputs and failures propagate unwrapped.
type SynthesisEngine interface {
	// GetSpectrum returns the composite spectrum on the observed
	// wavelength grid and the photometry through the given filters.
	GetSpectrum(ctx context.Context, params ParamStore, wave []float64, filters []model.Filter) (spec, phot []float64, extras map[string]float64, err error)

	// GetComponents returns per-component outputs, components x wavelength
	// and components x filters, before any mass weighting.
	GetComponents(ctx context.Context, params ParamStore, wave []float64, filters []model.Filter) (compSpec, compPhot *mat.Dense, extras map[string]float64, err error)
}

// PriorGradFunc returns the gradient of the log prior with respect to
// theta, with zero entries where no analytic gradient is defined. The
// returned slice must have len(theta) entries.
type PriorGradFunc func(theta []float64) []float64
