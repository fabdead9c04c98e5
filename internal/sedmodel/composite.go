package sedmodel

import (
	"context"
	"errors"

	"gonum.org/v1/gonum/mat"

	"github.com/pyaritra/prospector/internal/model"
)

// imfTypeValue is pinned into the parameter store on every SetParameters
// call, independent of theta. The synthesis engine reads it like any
// other parameter.
const imfTypeValue = 2

// Config assembles a CompositeModel.
type Config struct {
	Descriptor *Descriptor
	Obs        model.Observation
	Engine     SynthesisEngine
	Jitter     float64
	PriorGrad  PriorGradFunc
}

// CompositeModel maps theta vectors onto named parameters and delegates
// spectrum synthesis to an external engine. Each instance owns its
// parameter store; concurrent evaluation is safe only across instances.
type CompositeModel struct {
	desc      *Descriptor
	obs       model.Observation
	engine    SynthesisEngine
	jitter    float64
	priorGrad PriorGradFunc

	params ParamStore
}

func NewCompositeModel(cfg Config) (*CompositeModel, error) {
	if cfg.Descriptor == nil {
		return nil, errors.New("descriptor is required")
	}
	if cfg.Engine == nil {
		return nil, errors.New("synthesis engine is required")
	}
	return &CompositeModel{
		desc:      cfg.Descriptor,
		obs:       cfg.Obs,
		engine:    cfg.Engine,
		jitter:    cfg.Jitter,
		priorGrad: cfg.PriorGrad,
	}, nil
}

// Descriptor returns the model's parameter descriptor.
func (m *CompositeModel) Descriptor() *Descriptor { return m.desc }

// Obs returns the observation the model is fit against.
func (m *CompositeModel) Obs() model.Observation { return m.obs }

// SetParameters rebuilds the parameter store from theta. As a side
// effect independent of theta, imf_type is pinned to a constant entry.
func (m *CompositeModel) SetParameters(theta []float64) error {
	store, err := m.desc.Set(theta)
	if err != nil {
		return err
	}
	store["imf_type"] = []float64{imfTypeValue}
	m.params = store
	return nil
}

// Params returns the store produced by the last SetParameters call.
func (m *CompositeModel) Params() ParamStore { return m.params }

// Evaluate refreshes the parameter store and returns the engine's
// composite spectrum, photometry and extras. Engine failures propagate.
func (m *CompositeModel) Evaluate(ctx context.Context, theta []float64) (spec, phot []float64, extras map[string]float64, err error) {
	if err := m.SetParameters(theta); err != nil {
		return nil, nil, nil, err
	}
	return m.engine.GetSpectrum(ctx, m.params, m.obs.Wavelength, m.obs.Filters)
}

// EvaluateComponents refreshes the parameter store and returns the
// engine's per-component outputs, for callers that weight components
// themselves.
func (m *CompositeModel) EvaluateComponents(ctx context.Context, theta []float64) (compSpec, compPhot *mat.Dense, extras map[string]float64, err error) {
	if err := m.SetParameters(theta); err != nil {
		return nil, nil, nil, err
	}
	return m.engine.GetComponents(ctx, m.params, m.obs.Wavelength, m.obs.Filters)
}
