package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// Filter describes a photometric bandpass by its effective wavelength.
type Filter struct {
	Name          string  `json:"name"`
	WaveEffective float64 `json:"wave_effective"`
}

// Observation is the data being fit. A nil Wavelength means no
// spectroscopy was taken; an empty Filters slice means no photometry.
// The record is read-only from the model core's perspective.
type Observation struct {
	Wavelength []float64 `json:"wavelength,omitempty"`
	Spectrum   []float64 `json:"spectrum,omitempty"`
	Unc        []float64 `json:"unc,omitempty"`
	Mask       []bool    `json:"mask,omitempty"`
	Filters    []Filter  `json:"filters,omitempty"`
	Mags       []float64 `json:"mags,omitempty"`
	MagsUnc    []float64 `json:"mags_unc,omitempty"`
}

// ParamSpec maps one named parameter onto a contiguous range of the
// flat theta vector.
type ParamSpec struct {
	Name   string `json:"name"`
	Offset int    `json:"offset"`
	Length int    `json:"length"`
}

// Chain holds an MCMC sampling chain with shape walkers x steps x params,
// stored row-major in Samples.
type Chain struct {
	Walkers int       `json:"walkers"`
	Steps   int       `json:"steps"`
	Params  int       `json:"params"`
	Samples []float64 `json:"samples"`
}

// At returns the theta component for one walker, step and parameter index.
// Callers are responsible for in-range indices.
func (c Chain) At(walker, step, param int) float64 {
	return c.Samples[(walker*c.Steps+step)*c.Params+param]
}

// Theta returns a copy of the full parameter vector at one chain position.
func (c Chain) Theta(walker, step int) []float64 {
	base := (walker*c.Steps + step) * c.Params
	return append([]float64(nil), c.Samples[base:base+c.Params]...)
}

// RunParams are the sampler settings recorded alongside a fitting run.
type RunParams struct {
	Outfile string  `json:"outfile" yaml:"outfile"`
	Engine  string  `json:"engine" yaml:"engine"`
	Walkers int     `json:"walkers" yaml:"walkers"`
	Steps   int     `json:"steps" yaml:"steps"`
	Burn    int     `json:"burn" yaml:"burn"`
	Thin    int     `json:"thin" yaml:"thin"`
	Jitter  float64 `json:"jitter" yaml:"jitter"`
	Seed    int64   `json:"seed" yaml:"seed"`
}

// FitResult is the persisted envelope for one fitting run: the sampler
// outputs plus everything needed to rebuild the model that produced them.
type FitResult struct {
	VersionedRecord
	RunID                 string      `json:"run_id"`
	RunParams             RunParams   `json:"run_params"`
	Obs                   Observation `json:"obs"`
	ParamSpecs            []ParamSpec `json:"param_specs"`
	InitialTheta          []float64   `json:"initial_theta,omitempty"`
	SamplingInitialCenter []float64   `json:"sampling_initial_center,omitempty"`
	Chain                 Chain       `json:"chain"`
	LnProbability         []float64   `json:"lnprobability"`
	Acceptance            []float64   `json:"acceptance,omitempty"`
	SamplingDuration      float64     `json:"sampling_duration_s,omitempty"`
	OptimizerDuration     float64     `json:"optimizer_duration_s,omitempty"`
	ToolkitVersion        string      `json:"toolkit_version,omitempty"`
	CreatedAtUTC          string      `json:"created_at_utc,omitempty"`
}
