package sedmodel

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// LnProbGrad returns the gradient of the log probability along theta.
// Only the mass-only parameter set has analytic gradients in this
// formulation; anything else fails with ErrUnsupportedParameterSet.
//
// Each active term (spectroscopy when a wavelength grid exists,
// photometry when filters exist, the prior always) is accumulated into
// the descriptor's offset range. With neither data term present the
// result reduces to the prior gradient alone.
func (m *CompositeModel) LnProbGrad(ctx context.Context, theta []float64) ([]float64, error) {
	if !m.desc.Only("mass") {
		return nil, ErrUnsupportedParameterSet
	}

	compSpec, compPhot, _, err := m.EvaluateComponents(ctx, theta)
	if err != nil {
		return nil, err
	}
	mass := m.params["mass"]

	terms := make([]map[string][]float64, 0, 2)

	if m.obs.Wavelength != nil {
		if m.jitter != 0 {
			return nil, ErrJitterGradient
		}
		g, err := m.spectroscopyGrad(compSpec, mass)
		if err != nil {
			return nil, err
		}
		terms = append(terms, map[string][]float64{"mass": g})
	}

	if len(m.obs.Filters) > 0 {
		g, err := m.photometryGrad(compPhot, mass)
		if err != nil {
			return nil, err
		}
		terms = append(terms, map[string][]float64{"mass": g})
	}

	// The prior gradient seeds the output; parameters without an analytic
	// prior gradient stay at zero.
	grad := make([]float64, len(theta))
	if m.priorGrad != nil {
		copy(grad, m.priorGrad(theta))
	}

	for _, sp := range m.desc.specs {
		dst := grad[sp.Offset : sp.Offset+sp.Length]
		for _, term := range terms {
			if contribution, ok := term[sp.Name]; ok {
				floats.Add(dst, contribution)
			}
		}
	}
	return grad, nil
}

// spectroscopyGrad computes d(-chi2/2)/d(mass) over masked wavelength
// bins. A nil mask includes every bin.
func (m *CompositeModel) spectroscopyGrad(compSpec *mat.Dense, mass []float64) ([]float64, error) {
	ncomp, nbins := compSpec.Dims()
	if ncomp != len(mass) || nbins != len(m.obs.Wavelength) {
		return nil, fmt.Errorf("%w: component spectra are %dx%d for %d masses over %d bins",
			ErrShapeMismatch, ncomp, nbins, len(mass), len(m.obs.Wavelength))
	}

	predicted := make([]float64, nbins)
	for c := 0; c < ncomp; c++ {
		floats.AddScaled(predicted, mass[c], compSpec.RawRowView(c))
	}

	grad := make([]float64, ncomp)
	for i := 0; i < nbins; i++ {
		if m.obs.Mask != nil && !m.obs.Mask[i] {
			continue
		}
		sigma := m.obs.Unc[i] + m.jitter*m.obs.Spectrum[i]
		part := -(predicted[i] - m.obs.Spectrum[i]) / (sigma * sigma)
		for c := 0; c < ncomp; c++ {
			grad[c] += part * compSpec.At(c, i)
		}
	}
	return grad, nil
}

// photometryGrad computes d(-chi2/2)/d(mass) summed over every filter.
// No mask applies here, only to the spectroscopy term.
func (m *CompositeModel) photometryGrad(compPhot *mat.Dense, mass []float64) ([]float64, error) {
	ncomp, nfilters := compPhot.Dims()
	if ncomp != len(mass) || nfilters != len(m.obs.Filters) {
		return nil, fmt.Errorf("%w: component photometry is %dx%d for %d masses over %d filters",
			ErrShapeMismatch, ncomp, nfilters, len(mass), len(m.obs.Filters))
	}

	predicted := make([]float64, nfilters)
	for c := 0; c < ncomp; c++ {
		floats.AddScaled(predicted, mass[c], compPhot.RawRowView(c))
	}

	grad := make([]float64, ncomp)
	for f := 0; f < nfilters; f++ {
		flux := math.Pow(10, -0.4*m.obs.Mags[f])
		sigma := flux * m.obs.MagsUnc[f] / 1.086
		part := -(predicted[f] - flux) / (sigma * sigma)
		for c := 0; c < ncomp; c++ {
			grad[c] += part * compPhot.At(c, f)
		}
	}
	return grad, nil
}
