package sps

import (
	"context"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/pyaritra/prospector/internal/model"
	"github.com/pyaritra/prospector/internal/sedmodel"
)

// TemplateBasis is a deterministic synthesis engine backed by fixed
// per-component template spectra on a native wavelength grid. It exists
// so the CLI and tests have a real engine to drive; production fits use
// an external stellar population synthesis engine behind the same
// interface.
//
// Wavelength must be sorted ascending; nearest-bin resampling
// binary-searches it.
type TemplateBasis struct {
	Wavelength []float64
	Spectra    [][]float64
}

var _ sedmodel.SynthesisEngine = (*TemplateBasis)(nil)

// GetSpectrum returns the mass-weighted composite spectrum resampled on
// wave and the matching photometry through filters.
func (b *TemplateBasis) GetSpectrum(ctx context.Context, params sedmodel.ParamStore, wave []float64, filters []model.Filter) ([]float64, []float64, map[string]float64, error) {
	compSpec, compPhot, extras, err := b.GetComponents(ctx, params, wave, filters)
	if err != nil {
		return nil, nil, nil, err
	}
	mass, err := b.massWeights(params)
	if err != nil {
		return nil, nil, nil, err
	}

	// Component matrices carry one padding column when a grid is absent;
	// trim back to the requested shapes.
	spec := weightedSum(compSpec, mass)[:len(wave)]
	phot := weightedSum(compPhot, mass)[:len(filters)]
	return spec, phot, extras, nil
}

// GetComponents returns per-component outputs before mass weighting:
// components x wavelength and components x filters.
func (b *TemplateBasis) GetComponents(_ context.Context, params sedmodel.ParamStore, wave []float64, filters []model.Filter) (*mat.Dense, *mat.Dense, map[string]float64, error) {
	if len(b.Spectra) == 0 {
		return nil, nil, nil, fmt.Errorf("template basis has no components")
	}
	if !sort.Float64sAreSorted(b.Wavelength) {
		return nil, nil, nil, fmt.Errorf("template basis grid is not sorted ascending")
	}
	if _, err := b.massWeights(params); err != nil {
		return nil, nil, nil, err
	}

	ncomp := len(b.Spectra)

	nbins := len(wave)
	compSpec := mat.NewDense(ncomp, maxInt(nbins, 1), nil)
	for c, template := range b.Spectra {
		if len(template) != len(b.Wavelength) {
			return nil, nil, nil, fmt.Errorf("template %d has %d bins on a %d-bin grid", c, len(template), len(b.Wavelength))
		}
		for i, w := range wave {
			compSpec.Set(c, i, template[b.nearest(w)])
		}
	}

	compPhot := mat.NewDense(ncomp, maxInt(len(filters), 1), nil)
	for c, template := range b.Spectra {
		for f, filter := range filters {
			compPhot.Set(c, f, template[b.nearest(filter.WaveEffective)])
		}
	}

	extras := map[string]float64{"ncomp": float64(ncomp)}
	return compSpec, compPhot, extras, nil
}

func (b *TemplateBasis) massWeights(params sedmodel.ParamStore) ([]float64, error) {
	mass, ok := params["mass"]
	if !ok {
		return nil, fmt.Errorf("template basis requires a mass parameter")
	}
	if len(mass) != len(b.Spectra) {
		return nil, fmt.Errorf("got %d masses for %d components", len(mass), len(b.Spectra))
	}
	return mass, nil
}

// nearest returns the index of the native grid point closest to w.
func (b *TemplateBasis) nearest(w float64) int {
	i := sort.SearchFloat64s(b.Wavelength, w)
	if i == len(b.Wavelength) {
		return i - 1
	}
	if i > 0 && w-b.Wavelength[i-1] < b.Wavelength[i]-w {
		return i - 1
	}
	return i
}

func weightedSum(components *mat.Dense, weights []float64) []float64 {
	_, cols := components.Dims()
	out := make([]float64, cols)
	for c, weight := range weights {
		row := components.RawRowView(c)
		for i := range out {
			out[i] += weight * row[i]
		}
	}
	return out
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
