package stats

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/pyaritra/prospector/internal/model"
)

const runIndexFile = "run_index.json"

// RunConfig summarizes one fitting run for its config.json artifact.
type RunConfig struct {
	RunID        string            `json:"run_id"`
	Engine       string            `json:"engine"`
	Walkers      int               `json:"walkers"`
	Steps        int               `json:"steps"`
	Params       int               `json:"params"`
	Jitter       float64           `json:"jitter"`
	ParamSpecs   []model.ParamSpec `json:"param_specs"`
	CreatedAtUTC string            `json:"created_at_utc"`
}

// RunArtifacts is everything written into one run's artifact directory.
type RunArtifacts struct {
	Config    RunConfig        `json:"config"`
	Result    model.FitResult  `json:"result"`
	Quantiles []ParamQuantiles `json:"quantiles"`
}

type RunIndexEntry struct {
	RunID        string  `json:"run_id"`
	Engine       string  `json:"engine"`
	Walkers      int     `json:"walkers"`
	Steps        int     `json:"steps"`
	Params       int     `json:"params"`
	BestLnProb   float64 `json:"best_lnprob"`
	CreatedAtUTC string  `json:"created_at_utc"`
}

// WriteRunArtifacts writes config.json, result.json, quantiles.json and
// chain_series.csv under baseDir/<run id> and returns the run directory.
func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.Config.RunID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(baseDir, artifacts.Config.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, "config.json"), artifacts.Config); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "result.json"), artifacts.Result); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "quantiles.json"), artifacts.Quantiles); err != nil {
		return "", err
	}

	series, err := BestLnProbSeries(artifacts.Result.Chain, artifacts.Result.LnProbability)
	if err != nil {
		return "", err
	}
	if err := writeChainSeries(filepath.Join(runDir, "chain_series.csv"), series); err != nil {
		return "", err
	}

	return runDir, nil
}

func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := ListRunIndex(baseDir)
	if err != nil {
		return err
	}

	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}

	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

// RemoveRunIndex drops one run's entry; a run id absent from the index
// is not an error.
func RemoveRunIndex(baseDir, runID string) error {
	index, err := ListRunIndex(baseDir)
	if err != nil {
		return err
	}

	filtered := index[:0]
	for _, entry := range index {
		if entry.RunID != runID {
			filtered = append(filtered, entry)
		}
	}
	if len(filtered) == len(index) {
		return nil
	}
	return writeJSON(filepath.Join(baseDir, runIndexFile), filtered)
}

func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	path := filepath.Join(baseDir, runIndexFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunIndexEntry{}, nil
		}
		return nil, err
	}

	var entries []RunIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}

	type indexedEntry struct {
		entry RunIndexEntry
		idx   int
	}
	indexed := make([]indexedEntry, len(entries))
	for i := range entries {
		indexed[i] = indexedEntry{entry: entries[i], idx: i}
	}
	sort.Slice(indexed, func(i, j int) bool {
		if indexed[i].entry.CreatedAtUTC == indexed[j].entry.CreatedAtUTC {
			// Prefer later appended entries for equal timestamps.
			return indexed[i].idx > indexed[j].idx
		}
		return indexed[i].entry.CreatedAtUTC > indexed[j].entry.CreatedAtUTC
	})

	sorted := make([]RunIndexEntry, 0, len(indexed))
	for _, item := range indexed {
		sorted = append(sorted, item.entry)
	}
	return sorted, nil
}

func ExportRunArtifacts(baseDir, runID, outDir string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("run id is required")
	}

	src := filepath.Join(baseDir, runID)
	if _, err := os.Stat(src); err != nil {
		return "", err
	}

	dst := filepath.Join(outDir, runID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}

	files := []string{"config.json", "result.json", "quantiles.json", "chain_series.csv"}
	for _, file := range files {
		if err := copyFile(filepath.Join(src, file), filepath.Join(dst, file)); err != nil {
			return "", err
		}
	}
	return dst, nil
}

func ReadRunConfig(baseDir, runID string) (RunConfig, bool, error) {
	path := filepath.Join(baseDir, runID, "config.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return RunConfig{}, false, nil
		}
		return RunConfig{}, false, err
	}

	var cfg RunConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return RunConfig{}, false, err
	}
	return cfg, true, nil
}

func ReadQuantiles(baseDir, runID string) ([]ParamQuantiles, bool, error) {
	path := filepath.Join(baseDir, runID, "quantiles.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var quantiles []ParamQuantiles
	if err := json.Unmarshal(data, &quantiles); err != nil {
		return nil, false, err
	}
	return quantiles, true, nil
}

func writeChainSeries(path string, bestByStep []float64) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"step", "best_lnprob"}); err != nil {
		return err
	}
	for i, best := range bestByStep {
		if err := writer.Write([]string{
			strconv.Itoa(i + 1),
			strconv.FormatFloat(best, 'f', -1, 64),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
