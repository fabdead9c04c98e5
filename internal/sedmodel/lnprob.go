package sedmodel

import (
	"context"
	"math"
)

// LnProb evaluates the model and returns the log likelihood -chi2/2 of
// the observation given theta. The spectroscopy term honors the mask;
// the photometry term sums over every filter, mirroring LnProbGrad.
func (m *CompositeModel) LnProb(ctx context.Context, theta []float64) (float64, error) {
	spec, phot, _, err := m.Evaluate(ctx, theta)
	if err != nil {
		return 0, err
	}

	lnp := 0.0
	if m.obs.Wavelength != nil {
		for i := range m.obs.Wavelength {
			if m.obs.Mask != nil && !m.obs.Mask[i] {
				continue
			}
			sigma := m.obs.Unc[i] + m.jitter*m.obs.Spectrum[i]
			resid := spec[i] - m.obs.Spectrum[i]
			lnp -= 0.5 * resid * resid / (sigma * sigma)
		}
	}
	for f := range m.obs.Filters {
		flux := math.Pow(10, -0.4*m.obs.Mags[f])
		sigma := flux * m.obs.MagsUnc[f] / 1.086
		resid := phot[f] - flux
		lnp -= 0.5 * resid * resid / (sigma * sigma)
	}
	return lnp, nil
}
