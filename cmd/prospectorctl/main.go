package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/pyaritra/prospector/internal/model"
	"github.com/pyaritra/prospector/internal/storage"
	prospector "github.com/pyaritra/prospector/pkg/prospector"
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "init":
		return runInit(ctx, args[1:])
	case "save":
		return runSave(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "quantiles":
		return runQuantiles(ctx, args[1:])
	case "evol":
		return runEvol(ctx, args[1:])
	case "corner":
		return runCorner(ctx, args[1:])
	case "bestfit":
		return runBestFit(ctx, args[1:])
	case "delete":
		return runDelete(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	case "gradcheck":
		return runGradCheck(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func storeFlags(fs *flag.FlagSet) (storeKind, dbPath, resultsDir *string) {
	storeKind = fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath = fs.String("db-path", "prospector.db", "sqlite database path")
	resultsDir = fs.String("results-dir", "results", "run artifacts directory")
	return storeKind, dbPath, resultsDir
}

func newClient(storeKind, dbPath, resultsDir string) (*prospector.Client, error) {
	return prospector.New(prospector.Options{
		StoreKind:  storeKind,
		DBPath:     dbPath,
		ResultsDir: resultsDir,
	})
}

func runInit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	storeKind, dbPath, resultsDir := storeFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient(*storeKind, *dbPath, *resultsDir)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	if err := client.Init(ctx); err != nil {
		return err
	}

	fmt.Printf("initialized store=%s\n", *storeKind)
	return nil
}

func runSave(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("save", flag.ContinueOnError)
	storeKind, dbPath, resultsDir := storeFlags(fs)
	resultFile := fs.String("result", "", "fit result envelope JSON file")
	runParamsFile := fs.String("run-params", "", "YAML run params overriding the envelope")
	name := fs.String("name", "", "run name prefix")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *resultFile == "" {
		return usageError("save requires -result")
	}

	data, err := os.ReadFile(*resultFile)
	if err != nil {
		return err
	}
	var result model.FitResult
	if err := json.Unmarshal(data, &result); err != nil {
		return fmt.Errorf("decode result envelope: %w", err)
	}

	if *runParamsFile != "" {
		raw, err := os.ReadFile(*runParamsFile)
		if err != nil {
			return err
		}
		if err := yaml.Unmarshal(raw, &result.RunParams); err != nil {
			return fmt.Errorf("decode run params: %w", err)
		}
	}

	client, err := newClient(*storeKind, *dbPath, *resultsDir)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.SaveRun(ctx, prospector.SaveRunRequest{Name: *name, Result: result})
	if err != nil {
		return err
	}

	fmt.Printf("saved run=%s best_lnprob=%.6g artifacts=%s\n", summary.RunID, summary.BestLnProb, summary.ArtifactsDir)
	return nil
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	storeKind, dbPath, resultsDir := storeFlags(fs)
	limit := fs.Int("limit", 20, "max runs to list")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient(*storeKind, *dbPath, *resultsDir)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	items, err := client.Runs(ctx, prospector.RunsRequest{Limit: *limit})
	if err != nil {
		return err
	}

	for _, item := range items {
		fmt.Printf("%s engine=%s chain=%dx%dx%d best_lnprob=%.6g created=%s\n",
			item.RunID, item.Engine, item.Walkers, item.Steps, item.Params, item.BestLnProb, item.CreatedAtUTC)
	}
	return nil
}

func runQuantiles(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("quantiles", flag.ContinueOnError)
	storeKind, dbPath, resultsDir := storeFlags(fs)
	runID := fs.String("run", "", "run id")
	latest := fs.Bool("latest", false, "use the most recent run")
	start := fs.Int("start", 0, "steps to discard as burn-in")
	thin := fs.Int("thin", 1, "keep every thin-th step")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient(*storeKind, *dbPath, *resultsDir)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	quantiles, err := client.Quantiles(ctx, prospector.QuantilesRequest{
		RunID:  *runID,
		Latest: *latest,
		Start:  *start,
		Thin:   *thin,
	})
	if err != nil {
		return err
	}

	for _, q := range quantiles {
		fmt.Printf("%s q16=%.6g q50=%.6g q84=%.6g\n", q.Name, q.Q16, q.Q50, q.Q84)
	}
	return nil
}

func runEvol(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("evol", flag.ContinueOnError)
	storeKind, dbPath, resultsDir := storeFlags(fs)
	runID := fs.String("run", "", "run id")
	latest := fs.Bool("latest", false, "use the most recent run")
	param := fs.String("param", "", "parameter label, e.g. mass_1")
	start := fs.Int("start", 0, "first step to include")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient(*storeKind, *dbPath, *resultsDir)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	series, err := client.ParamEvol(ctx, prospector.ParamEvolRequest{
		RunID:  *runID,
		Latest: *latest,
		Param:  *param,
		Start:  *start,
	})
	if err != nil {
		return err
	}

	return printJSON(series)
}

func runCorner(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("corner", flag.ContinueOnError)
	storeKind, dbPath, resultsDir := storeFlags(fs)
	runID := fs.String("run", "", "run id")
	latest := fs.Bool("latest", false, "use the most recent run")
	xParam := fs.String("x", "", "x parameter label")
	yParam := fs.String("y", "", "y parameter label")
	bins := fs.Int("bins", 20, "histogram bins per axis")
	start := fs.Int("start", 0, "steps to discard as burn-in")
	thin := fs.Int("thin", 1, "keep every thin-th step")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient(*storeKind, *dbPath, *resultsDir)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	corner, err := client.Corner(ctx, prospector.CornerRequest{
		RunID:  *runID,
		Latest: *latest,
		XParam: *xParam,
		YParam: *yParam,
		Bins:   *bins,
		Start:  *start,
		Thin:   *thin,
	})
	if err != nil {
		return err
	}

	return printJSON(corner)
}

func runBestFit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("bestfit", flag.ContinueOnError)
	storeKind, dbPath, resultsDir := storeFlags(fs)
	runID := fs.String("run", "", "run id")
	latest := fs.Bool("latest", false, "use the most recent run")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient(*storeKind, *dbPath, *resultsDir)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.BestFit(ctx, prospector.BestFitRequest{RunID: *runID, Latest: *latest})
	if err != nil {
		return err
	}

	return printJSON(summary)
}

func runDelete(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("delete", flag.ContinueOnError)
	storeKind, dbPath, resultsDir := storeFlags(fs)
	runID := fs.String("run", "", "run id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID == "" {
		return usageError("delete requires -run")
	}

	client, err := newClient(*storeKind, *dbPath, *resultsDir)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	if err := client.Delete(ctx, prospector.DeleteRequest{RunID: *runID}); err != nil {
		return err
	}

	fmt.Printf("deleted run=%s\n", *runID)
	return nil
}

func runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	storeKind, dbPath, resultsDir := storeFlags(fs)
	runID := fs.String("run", "", "run id")
	latest := fs.Bool("latest", false, "export the most recent run")
	outDir := fs.String("out", "exports", "export directory")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient(*storeKind, *dbPath, *resultsDir)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Export(ctx, prospector.ExportRequest{RunID: *runID, Latest: *latest, OutDir: *outDir})
	if err != nil {
		return err
	}

	fmt.Printf("exported run=%s dir=%s\n", summary.RunID, summary.Directory)
	return nil
}

func runGradCheck(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("gradcheck", flag.ContinueOnError)
	storeKind, dbPath, resultsDir := storeFlags(fs)
	eps := fs.Float64("eps", 1e-6, "finite difference step scale")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient(*storeKind, *dbPath, *resultsDir)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.GradCheck(ctx, prospector.GradCheckRequest{Eps: *eps})
	if err != nil {
		return err
	}

	fmt.Printf("analytic=%v\n", summary.Analytic)
	fmt.Printf("numeric=%v\n", summary.Numeric)
	fmt.Printf("max_abs_diff=%.3g\n", summary.MaxAbsDiff)
	return nil
}

func printJSON(value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: prospectorctl <init|save|runs|quantiles|evol|corner|bestfit|delete|export|gradcheck> [flags]", msg)
}
