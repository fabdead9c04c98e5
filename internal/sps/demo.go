package sps

import (
	"context"
	"math"

	"github.com/pyaritra/prospector/internal/model"
	"github.com/pyaritra/prospector/internal/sedmodel"
)

// DemoObservation synthesizes an observation from the demo basis with
// the given true component masses: a fully masked spectrum on the native
// grid plus two bandpasses, with 5 percent uncertainties. Used by the
// gradient check and tests.
func DemoObservation(trueMass []float64) (model.Observation, error) {
	basis := DemoBasis()
	filters := []model.Filter{
		{Name: "demo_b", WaveEffective: 4500},
		{Name: "demo_r", WaveEffective: 7500},
	}

	params := sedmodel.ParamStore{"mass": append([]float64(nil), trueMass...)}
	spec, phot, _, err := basis.GetSpectrum(context.Background(), params, basis.Wavelength, filters)
	if err != nil {
		return model.Observation{}, err
	}

	obs := model.Observation{
		Wavelength: append([]float64(nil), basis.Wavelength...),
		Spectrum:   spec,
		Unc:        make([]float64, len(spec)),
		Mask:       make([]bool, len(spec)),
		Filters:    filters,
		Mags:       make([]float64, len(phot)),
		MagsUnc:    make([]float64, len(phot)),
	}
	for i := range spec {
		obs.Unc[i] = 0.05 * spec[i]
		obs.Mask[i] = true
	}
	for f := range phot {
		obs.Mags[f] = -2.5 * math.Log10(phot[f])
		obs.MagsUnc[f] = 0.05
	}
	return obs, nil
}
