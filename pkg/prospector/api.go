package prospector

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pyaritra/prospector/internal/model"
	"github.com/pyaritra/prospector/internal/sedmodel"
	"github.com/pyaritra/prospector/internal/sps"
	"github.com/pyaritra/prospector/internal/stats"
	"github.com/pyaritra/prospector/internal/storage"
)

// Version identifies the toolkit build recorded into result envelopes.
const Version = "0.3.0"

const (
	defaultResultsDir = "results"
	defaultExportsDir = "exports"
	defaultDBPath     = "prospector.db"
)

type Options struct {
	StoreKind  string
	DBPath     string
	ResultsDir string
	ExportsDir string
}

type Client struct {
	store       storage.Store
	initialized bool

	resultsDir string
	exportsDir string
}

type SaveRunRequest struct {
	Name   string
	Result model.FitResult
}

type RunSummary struct {
	RunID        string
	ArtifactsDir string
	BestLnProb   float64
	BestTheta    []float64
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID        string
	Engine       string
	Walkers      int
	Steps        int
	Params       int
	BestLnProb   float64
	CreatedAtUTC string
}

type QuantilesRequest struct {
	RunID  string
	Latest bool
	Start  int
	Thin   int
}

type ParamEvolRequest struct {
	RunID  string
	Latest bool
	Param  string
	Start  int
}

type CornerRequest struct {
	RunID  string
	Latest bool
	XParam string
	YParam string
	Bins   int
	Start  int
	Thin   int
}

type BestFitRequest struct {
	RunID  string
	Latest bool
}

type BestFitSummary struct {
	RunID      string
	Theta      []float64
	LnProb     float64
	Spectrum   []float64
	Photometry []float64
}

type DeleteRequest struct {
	RunID string
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
}

type GradCheckRequest struct {
	Masses []float64
	Eps    float64
}

type GradCheckSummary struct {
	Analytic   []float64
	Numeric    []float64
	MaxAbsDiff float64
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	resultsDir := opts.ResultsDir
	if resultsDir == "" {
		resultsDir = defaultResultsDir
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:      store,
		resultsDir: resultsDir,
		exportsDir: exportsDir,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	return c.ensureStore(ctx)
}

// SaveRun stamps, persists and indexes one fitting run: the envelope
// goes to the store, the diagnostics to the results directory.
func (c *Client) SaveRun(ctx context.Context, req SaveRunRequest) (RunSummary, error) {
	result := req.Result

	desc, err := sedmodel.NewDescriptor(result.ParamSpecs)
	if err != nil {
		return RunSummary{}, err
	}
	if result.Chain.Params != desc.Total() {
		return RunSummary{}, fmt.Errorf("chain has %d parameters, descriptor has %d", result.Chain.Params, desc.Total())
	}

	name := req.Name
	if name == "" {
		name = result.RunParams.Outfile
	}
	if name == "" {
		name = "run"
	}
	now := time.Now().UTC()
	result.RunID = fmt.Sprintf("%s-%s", name, strings.Split(uuid.NewString(), "-")[0])
	result.SchemaVersion = storage.CurrentSchemaVersion
	result.CodecVersion = storage.CurrentCodecVersion
	result.ToolkitVersion = Version
	result.CreatedAtUTC = now.Format(time.RFC3339Nano)

	_, _, bestTheta, bestLnProb, err := stats.BestSample(result.Chain, result.LnProbability)
	if err != nil {
		return RunSummary{}, err
	}

	if err := c.ensureStore(ctx); err != nil {
		return RunSummary{}, err
	}
	if err := c.store.SaveFitResult(ctx, result); err != nil {
		return RunSummary{}, err
	}
	if err := c.store.SaveBestTheta(ctx, result.RunID, bestTheta); err != nil {
		return RunSummary{}, err
	}

	flat, err := stats.FlattenChain(result.Chain, result.RunParams.Burn, result.RunParams.Thin)
	if err != nil {
		return RunSummary{}, err
	}
	quantiles, err := stats.Quantiles(flat, stats.ParamLabels(result.ParamSpecs))
	if err != nil {
		return RunSummary{}, err
	}

	runDir, err := stats.WriteRunArtifacts(c.resultsDir, stats.RunArtifacts{
		Config: stats.RunConfig{
			RunID:        result.RunID,
			Engine:       result.RunParams.Engine,
			Walkers:      result.Chain.Walkers,
			Steps:        result.Chain.Steps,
			Params:       result.Chain.Params,
			Jitter:       result.RunParams.Jitter,
			ParamSpecs:   result.ParamSpecs,
			CreatedAtUTC: result.CreatedAtUTC,
		},
		Result:    result,
		Quantiles: quantiles,
	})
	if err != nil {
		return RunSummary{}, err
	}

	if err := stats.AppendRunIndex(c.resultsDir, stats.RunIndexEntry{
		RunID:        result.RunID,
		Engine:       result.RunParams.Engine,
		Walkers:      result.Chain.Walkers,
		Steps:        result.Chain.Steps,
		Params:       result.Chain.Params,
		BestLnProb:   bestLnProb,
		CreatedAtUTC: result.CreatedAtUTC,
	}); err != nil {
		return RunSummary{}, err
	}

	return RunSummary{
		RunID:        result.RunID,
		ArtifactsDir: filepath.Clean(runDir),
		BestLnProb:   bestLnProb,
		BestTheta:    bestTheta,
	}, nil
}

func (c *Client) Runs(_ context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}

	entries, err := stats.ListRunIndex(c.resultsDir)
	if err != nil {
		return nil, err
	}
	if len(entries) > req.Limit {
		entries = entries[:req.Limit]
	}

	out := make([]RunItem, 0, len(entries))
	for _, e := range entries {
		out = append(out, RunItem{
			RunID:        e.RunID,
			Engine:       e.Engine,
			Walkers:      e.Walkers,
			Steps:        e.Steps,
			Params:       e.Params,
			BestLnProb:   e.BestLnProb,
			CreatedAtUTC: e.CreatedAtUTC,
		})
	}
	return out, nil
}

func (c *Client) Quantiles(ctx context.Context, req QuantilesRequest) ([]stats.ParamQuantiles, error) {
	result, err := c.loadResult(ctx, req.RunID, req.Latest)
	if err != nil {
		return nil, err
	}

	flat, err := stats.FlattenChain(result.Chain, req.Start, req.Thin)
	if err != nil {
		return nil, err
	}
	return stats.Quantiles(flat, stats.ParamLabels(result.ParamSpecs))
}

func (c *Client) ParamEvol(ctx context.Context, req ParamEvolRequest) ([][]stats.ChainPoint, error) {
	result, err := c.loadResult(ctx, req.RunID, req.Latest)
	if err != nil {
		return nil, err
	}

	idx, err := labelIndex(result.ParamSpecs, req.Param)
	if err != nil {
		return nil, err
	}
	return stats.ParamEvol(result.Chain, idx, req.Start)
}

func (c *Client) Corner(ctx context.Context, req CornerRequest) (stats.CornerData, error) {
	result, err := c.loadResult(ctx, req.RunID, req.Latest)
	if err != nil {
		return stats.CornerData{}, err
	}

	xIdx, err := labelIndex(result.ParamSpecs, req.XParam)
	if err != nil {
		return stats.CornerData{}, err
	}
	yIdx, err := labelIndex(result.ParamSpecs, req.YParam)
	if err != nil {
		return stats.CornerData{}, err
	}

	flat, err := stats.FlattenChain(result.Chain, req.Start, req.Thin)
	if err != nil {
		return stats.CornerData{}, err
	}
	return stats.CornerHistogram(flat, xIdx, yIdx, req.Bins, req.XParam, req.YParam)
}

// BestFit rebuilds the model from a persisted run and evaluates it at
// the highest-probability sample. The reported LnProb is always the
// rebuilt model's value at that theta, not the persisted chain entry.
func (c *Client) BestFit(ctx context.Context, req BestFitRequest) (BestFitSummary, error) {
	result, err := c.loadResult(ctx, req.RunID, req.Latest)
	if err != nil {
		return BestFitSummary{}, err
	}

	theta, ok, err := c.store.GetBestTheta(ctx, result.RunID)
	if err != nil {
		return BestFitSummary{}, err
	}
	if !ok {
		_, _, theta, _, err = stats.BestSample(result.Chain, result.LnProbability)
		if err != nil {
			return BestFitSummary{}, err
		}
	}

	desc, err := sedmodel.NewDescriptor(result.ParamSpecs)
	if err != nil {
		return BestFitSummary{}, err
	}
	engine, err := sps.Resolve(result.RunParams.Engine)
	if err != nil {
		return BestFitSummary{}, err
	}
	cm, err := sedmodel.NewCompositeModel(sedmodel.Config{
		Descriptor: desc,
		Obs:        result.Obs,
		Engine:     engine,
		Jitter:     result.RunParams.Jitter,
	})
	if err != nil {
		return BestFitSummary{}, err
	}

	spec, phot, _, err := cm.Evaluate(ctx, theta)
	if err != nil {
		return BestFitSummary{}, err
	}
	lnProb, err := cm.LnProb(ctx, theta)
	if err != nil {
		return BestFitSummary{}, err
	}

	return BestFitSummary{
		RunID:      result.RunID,
		Theta:      theta,
		LnProb:     lnProb,
		Spectrum:   spec,
		Photometry: phot,
	}, nil
}

// Delete removes one run everywhere it lives: the store, the artifacts
// directory and the run index.
func (c *Client) Delete(ctx context.Context, req DeleteRequest) error {
	if req.RunID == "" {
		return errors.New("run id is required")
	}

	if err := c.ensureStore(ctx); err != nil {
		return err
	}
	if err := c.store.DeleteFitResult(ctx, req.RunID); err != nil {
		return err
	}
	if err := os.RemoveAll(filepath.Join(c.resultsDir, req.RunID)); err != nil {
		return err
	}
	return stats.RemoveRunIndex(c.resultsDir, req.RunID)
}

func (c *Client) Export(_ context.Context, req ExportRequest) (ExportSummary, error) {
	if req.RunID != "" && req.Latest {
		return ExportSummary{}, errors.New("use either run id or latest")
	}
	if req.RunID == "" && !req.Latest {
		return ExportSummary{}, errors.New("export requires run id or latest")
	}
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}

	runID := req.RunID
	if req.Latest {
		entries, err := stats.ListRunIndex(c.resultsDir)
		if err != nil {
			return ExportSummary{}, err
		}
		if len(entries) == 0 {
			return ExportSummary{}, errors.New("no runs available to export")
		}
		runID = entries[0].RunID
	}

	exportedDir, err := stats.ExportRunArtifacts(c.resultsDir, runID, req.OutDir)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: runID, Directory: filepath.Clean(exportedDir)}, nil
}

// GradCheck compares the analytic mass gradient against central finite
// differences of the log likelihood on the demo basis.
func (c *Client) GradCheck(ctx context.Context, req GradCheckRequest) (GradCheckSummary, error) {
	masses := req.Masses
	if len(masses) == 0 {
		masses = []float64{1.0, 2.0}
	}
	eps := req.Eps
	if eps <= 0 {
		eps = 1e-6
	}

	obs, err := sps.DemoObservation(masses)
	if err != nil {
		return GradCheckSummary{}, err
	}
	desc, err := sedmodel.NewDescriptor([]model.ParamSpec{
		{Name: "mass", Offset: 0, Length: len(masses)},
	})
	if err != nil {
		return GradCheckSummary{}, err
	}
	engine := sps.DemoBasis()
	if len(engine.Spectra) != len(masses) {
		return GradCheckSummary{}, fmt.Errorf("demo basis has %d components, got %d masses", len(engine.Spectra), len(masses))
	}
	cm, err := sedmodel.NewCompositeModel(sedmodel.Config{
		Descriptor: desc,
		Obs:        obs,
		Engine:     engine,
	})
	if err != nil {
		return GradCheckSummary{}, err
	}

	// Perturb away from the synthetic truth so residuals are nonzero.
	theta := make([]float64, len(masses))
	for i, m := range masses {
		theta[i] = m * 1.1
	}

	analytic, err := cm.LnProbGrad(ctx, theta)
	if err != nil {
		return GradCheckSummary{}, err
	}

	numeric := make([]float64, len(theta))
	for i := range theta {
		h := eps * math.Max(1, math.Abs(theta[i]))
		up := append([]float64(nil), theta...)
		down := append([]float64(nil), theta...)
		up[i] += h
		down[i] -= h

		lnpUp, err := cm.LnProb(ctx, up)
		if err != nil {
			return GradCheckSummary{}, err
		}
		lnpDown, err := cm.LnProb(ctx, down)
		if err != nil {
			return GradCheckSummary{}, err
		}
		numeric[i] = (lnpUp - lnpDown) / (2 * h)
	}

	maxDiff := 0.0
	for i := range analytic {
		if d := math.Abs(analytic[i] - numeric[i]); d > maxDiff {
			maxDiff = d
		}
	}

	return GradCheckSummary{Analytic: analytic, Numeric: numeric, MaxAbsDiff: maxDiff}, nil
}

func (c *Client) ensureStore(ctx context.Context) error {
	if c.initialized {
		return nil
	}
	if err := c.store.Init(ctx); err != nil {
		return err
	}
	c.initialized = true
	return nil
}

func (c *Client) loadResult(ctx context.Context, runID string, latest bool) (model.FitResult, error) {
	if runID != "" && latest {
		return model.FitResult{}, errors.New("use either run id or latest")
	}
	if latest {
		entries, err := stats.ListRunIndex(c.resultsDir)
		if err != nil {
			return model.FitResult{}, err
		}
		if len(entries) == 0 {
			return model.FitResult{}, errors.New("no runs available")
		}
		runID = entries[0].RunID
	}
	if runID == "" {
		return model.FitResult{}, errors.New("run id or latest is required")
	}

	if err := c.ensureStore(ctx); err != nil {
		return model.FitResult{}, err
	}
	result, ok, err := c.store.GetFitResult(ctx, runID)
	if err != nil {
		return model.FitResult{}, err
	}
	if !ok {
		return model.FitResult{}, fmt.Errorf("fit result not found for run id: %s", runID)
	}
	return result, nil
}

func labelIndex(specs []model.ParamSpec, label string) (int, error) {
	if label == "" {
		return 0, errors.New("parameter name is required")
	}
	for i, l := range stats.ParamLabels(specs) {
		if l == label {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unknown parameter: %s", label)
}
