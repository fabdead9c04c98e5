package sps

import "fmt"

// Resolve returns the built-in engine registered under name.
func Resolve(name string) (*TemplateBasis, error) {
	switch name {
	case "", "template", "template-basis":
		return DemoBasis(), nil
	default:
		return nil, fmt.Errorf("unsupported synthesis engine: %s", name)
	}
}

// DemoBasis is a two-component basis over a coarse optical grid, enough
// to exercise evaluation and gradient paths end to end.
func DemoBasis() *TemplateBasis {
	return &TemplateBasis{
		Wavelength: []float64{3500, 4500, 5500, 6500, 7500, 8500},
		Spectra: [][]float64{
			{2.0, 1.6, 1.2, 0.9, 0.7, 0.6},
			{0.4, 0.7, 1.0, 1.3, 1.5, 1.6},
		},
	}
}
