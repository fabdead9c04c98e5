package prospector

import (
	"context"
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/pyaritra/prospector/internal/model"
	"github.com/pyaritra/prospector/internal/sps"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()

	client, err := New(Options{
		StoreKind:  "memory",
		ResultsDir: t.TempDir(),
		ExportsDir: t.TempDir(),
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	t.Cleanup(func() {
		_ = client.Close()
	})
	return client
}

func demoResult(t *testing.T) model.FitResult {
	t.Helper()

	obs, err := sps.DemoObservation([]float64{1.0, 2.0})
	if err != nil {
		t.Fatalf("demo observation: %v", err)
	}

	return model.FitResult{
		RunParams: model.RunParams{Engine: "template", Walkers: 2, Steps: 3, Thin: 1},
		Obs:       obs,
		ParamSpecs: []model.ParamSpec{
			{Name: "mass", Offset: 0, Length: 2},
		},
		Chain: model.Chain{
			Walkers: 2,
			Steps:   3,
			Params:  2,
			Samples: []float64{
				1.0, 2.0, 1.1, 2.1, 0.9, 1.9,
				1.05, 2.05, 1.2, 2.2, 0.95, 1.95,
			},
		},
		LnProbability: []float64{-10, -8, -6, -9, -5, -7},
	}
}

func saveDemoRun(t *testing.T, client *Client) RunSummary {
	t.Helper()

	summary, err := client.SaveRun(context.Background(), SaveRunRequest{Name: "demo", Result: demoResult(t)})
	if err != nil {
		t.Fatalf("save run: %v", err)
	}
	return summary
}

func TestSaveRunStampsAndIndexes(t *testing.T) {
	client := newTestClient(t)

	summary := saveDemoRun(t, client)
	if !strings.HasPrefix(summary.RunID, "demo-") {
		t.Fatalf("run id missing name prefix: %s", summary.RunID)
	}
	if summary.BestLnProb != -5 {
		t.Fatalf("best lnprob mismatch: got=%g want=-5", summary.BestLnProb)
	}
	if len(summary.BestTheta) != 2 || summary.BestTheta[0] != 1.2 || summary.BestTheta[1] != 2.2 {
		t.Fatalf("best theta mismatch: %v", summary.BestTheta)
	}

	items, err := client.Runs(context.Background(), RunsRequest{})
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("run count mismatch: got=%d want=1", len(items))
	}
	item := items[0]
	if item.RunID != summary.RunID || item.Engine != "template" || item.Walkers != 2 || item.Steps != 3 || item.Params != 2 {
		t.Fatalf("unexpected run item: %+v", item)
	}
}

func TestSaveRunChainDescriptorMismatch(t *testing.T) {
	client := newTestClient(t)

	result := demoResult(t)
	result.Chain.Params = 3
	result.Chain.Samples = make([]float64, 2*3*3)

	if _, err := client.SaveRun(context.Background(), SaveRunRequest{Result: result}); err == nil {
		t.Fatalf("expected error for chain/descriptor mismatch")
	}
}

func TestRunsLimit(t *testing.T) {
	client := newTestClient(t)

	saveDemoRun(t, client)
	saveDemoRun(t, client)
	saveDemoRun(t, client)

	items, err := client.Runs(context.Background(), RunsRequest{Limit: 2})
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("limit not applied: got=%d want=2", len(items))
	}
}

func TestQuantilesLatest(t *testing.T) {
	client := newTestClient(t)
	saveDemoRun(t, client)

	quantiles, err := client.Quantiles(context.Background(), QuantilesRequest{Latest: true, Thin: 1})
	if err != nil {
		t.Fatalf("quantiles: %v", err)
	}
	if len(quantiles) != 2 {
		t.Fatalf("quantile count mismatch: got=%d want=2", len(quantiles))
	}
	if quantiles[0].Name != "mass_1" || quantiles[1].Name != "mass_2" {
		t.Fatalf("unexpected labels: %+v", quantiles)
	}
	for _, q := range quantiles {
		if q.Q16 > q.Q50 || q.Q50 > q.Q84 {
			t.Fatalf("quantiles out of order: %+v", q)
		}
	}
}

func TestLoadResultRejectsAmbiguousSelection(t *testing.T) {
	client := newTestClient(t)
	summary := saveDemoRun(t, client)

	if _, err := client.Quantiles(context.Background(), QuantilesRequest{RunID: summary.RunID, Latest: true}); err == nil {
		t.Fatalf("expected error for run id plus latest")
	}
	if _, err := client.Quantiles(context.Background(), QuantilesRequest{}); err == nil {
		t.Fatalf("expected error for neither run id nor latest")
	}
}

func TestParamEvol(t *testing.T) {
	client := newTestClient(t)
	saveDemoRun(t, client)

	series, err := client.ParamEvol(context.Background(), ParamEvolRequest{Latest: true, Param: "mass_1"})
	if err != nil {
		t.Fatalf("param evol: %v", err)
	}
	if len(series) != 2 {
		t.Fatalf("walker count mismatch: got=%d want=2", len(series))
	}
	if series[0][0].Value != 1.0 || series[1][1].Value != 1.2 {
		t.Fatalf("unexpected series values: %+v", series)
	}

	if _, err := client.ParamEvol(context.Background(), ParamEvolRequest{Latest: true, Param: "nope"}); err == nil {
		t.Fatalf("expected error for unknown parameter label")
	}
}

func TestCorner(t *testing.T) {
	client := newTestClient(t)
	saveDemoRun(t, client)

	corner, err := client.Corner(context.Background(), CornerRequest{
		Latest: true,
		XParam: "mass_1",
		YParam: "mass_2",
		Bins:   4,
	})
	if err != nil {
		t.Fatalf("corner: %v", err)
	}
	if corner.XName != "mass_1" || corner.YName != "mass_2" {
		t.Fatalf("axis names mismatch: %+v", corner)
	}

	total := 0
	for _, row := range corner.Counts {
		for _, n := range row {
			total += n
		}
	}
	if total != 6 {
		t.Fatalf("histogram lost samples: got=%d want=6", total)
	}
}

func TestBestFit(t *testing.T) {
	client := newTestClient(t)
	summary := saveDemoRun(t, client)

	fit, err := client.BestFit(context.Background(), BestFitRequest{RunID: summary.RunID})
	if err != nil {
		t.Fatalf("best fit: %v", err)
	}
	if fit.RunID != summary.RunID {
		t.Fatalf("run id mismatch: got=%s want=%s", fit.RunID, summary.RunID)
	}
	if len(fit.Theta) != 2 || fit.Theta[0] != 1.2 || fit.Theta[1] != 2.2 {
		t.Fatalf("unexpected best theta: %v", fit.Theta)
	}
	if len(fit.Spectrum) == 0 || len(fit.Photometry) != 2 {
		t.Fatalf("unexpected model outputs: spec=%d phot=%d", len(fit.Spectrum), len(fit.Photometry))
	}
	if math.IsNaN(fit.LnProb) || math.IsInf(fit.LnProb, 0) || fit.LnProb > 0 {
		t.Fatalf("unexpected lnprob: %g", fit.LnProb)
	}
}

func TestExport(t *testing.T) {
	client := newTestClient(t)
	summary := saveDemoRun(t, client)

	exported, err := client.Export(context.Background(), ExportRequest{Latest: true, OutDir: t.TempDir()})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if exported.RunID != summary.RunID {
		t.Fatalf("exported run mismatch: got=%s want=%s", exported.RunID, summary.RunID)
	}

	if _, err := client.Export(context.Background(), ExportRequest{RunID: summary.RunID, Latest: true}); err == nil {
		t.Fatalf("expected error for run id plus latest")
	}
	if _, err := client.Export(context.Background(), ExportRequest{}); err == nil {
		t.Fatalf("expected error for neither run id nor latest")
	}
}

func TestBestFitLnProbSameWithAndWithoutStoredTheta(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	if err := client.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	// Persist an envelope directly, as a run sampled elsewhere would be,
	// so no best theta is stored yet.
	result := demoResult(t)
	result.RunID = "manual"
	if err := client.store.SaveFitResult(ctx, result); err != nil {
		t.Fatalf("save result: %v", err)
	}

	fromChain, err := client.BestFit(ctx, BestFitRequest{RunID: "manual"})
	if err != nil {
		t.Fatalf("best fit without stored theta: %v", err)
	}

	if err := client.store.SaveBestTheta(ctx, "manual", fromChain.Theta); err != nil {
		t.Fatalf("save best theta: %v", err)
	}
	fromStore, err := client.BestFit(ctx, BestFitRequest{RunID: "manual"})
	if err != nil {
		t.Fatalf("best fit with stored theta: %v", err)
	}

	if !reflect.DeepEqual(fromChain.Theta, fromStore.Theta) {
		t.Fatalf("theta differs across paths: %v vs %v", fromChain.Theta, fromStore.Theta)
	}
	if fromChain.LnProb != fromStore.LnProb {
		t.Fatalf("lnprob differs across paths: %g vs %g", fromChain.LnProb, fromStore.LnProb)
	}
}

func TestDelete(t *testing.T) {
	client := newTestClient(t)
	summary := saveDemoRun(t, client)

	if err := client.Delete(context.Background(), DeleteRequest{RunID: summary.RunID}); err != nil {
		t.Fatalf("delete: %v", err)
	}

	items, err := client.Runs(context.Background(), RunsRequest{})
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("run still indexed after delete: %+v", items)
	}
	if _, err := client.Quantiles(context.Background(), QuantilesRequest{RunID: summary.RunID}); err == nil {
		t.Fatalf("result still loadable after delete")
	}

	if err := client.Delete(context.Background(), DeleteRequest{}); err == nil {
		t.Fatalf("expected error for missing run id")
	}
}

func TestGradCheck(t *testing.T) {
	client := newTestClient(t)

	summary, err := client.GradCheck(context.Background(), GradCheckRequest{})
	if err != nil {
		t.Fatalf("grad check: %v", err)
	}
	if len(summary.Analytic) != 2 || len(summary.Numeric) != 2 {
		t.Fatalf("gradient lengths mismatch: %+v", summary)
	}
	// The log likelihood is quadratic in the masses, so central
	// differences agree with the analytic gradient to rounding error.
	if summary.MaxAbsDiff > 1e-4 {
		t.Fatalf("gradients disagree: max abs diff %g", summary.MaxAbsDiff)
	}
}

func TestGradCheckMassCountMismatch(t *testing.T) {
	client := newTestClient(t)

	if _, err := client.GradCheck(context.Background(), GradCheckRequest{Masses: []float64{1, 2, 3}}); err == nil {
		t.Fatalf("expected error for mass count mismatch")
	}
}
