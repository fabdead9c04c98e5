package stats

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/pyaritra/prospector/internal/model"
)

// ChainPoint is one sample of a diagnostic series, addressed by step.
type ChainPoint struct {
	Step  int     `json:"step"`
	Value float64 `json:"value"`
}

// ParamQuantiles are the 16/50/84 percentiles of one parameter's
// posterior samples.
type ParamQuantiles struct {
	Name string  `json:"name"`
	Q16  float64 `json:"q16"`
	Q50  float64 `json:"q50"`
	Q84  float64 `json:"q84"`
}

// CornerData is a 2-D histogram of two parameters' joint posterior,
// left to the caller to render.
type CornerData struct {
	XName  string    `json:"x_name"`
	YName  string    `json:"y_name"`
	XEdges []float64 `json:"x_edges"`
	YEdges []float64 `json:"y_edges"`
	Counts [][]int   `json:"counts"`
}

// ParamLabels expands descriptor specs into one label per theta entry,
// in offset order: a single-element parameter keeps its name, longer
// ones get a 1-based suffix.
func ParamLabels(specs []model.ParamSpec) []string {
	ordered := append([]model.ParamSpec(nil), specs...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Offset < ordered[j].Offset })

	labels := make([]string, 0, len(ordered))
	for _, sp := range ordered {
		if sp.Length == 1 {
			labels = append(labels, sp.Name)
			continue
		}
		for i := 1; i <= sp.Length; i++ {
			labels = append(labels, fmt.Sprintf("%s_%d", sp.Name, i))
		}
	}
	return labels
}

// FlattenChain reshapes walkers x steps x params into samples x params,
// skipping the first start steps of every walker and keeping every
// thin-th step after that.
func FlattenChain(c model.Chain, start, thin int) ([][]float64, error) {
	if err := checkChain(c); err != nil {
		return nil, err
	}
	if thin <= 0 {
		thin = 1
	}
	if start < 0 || start >= c.Steps {
		return nil, fmt.Errorf("start %d outside chain of %d steps", start, c.Steps)
	}

	flat := make([][]float64, 0, c.Walkers*((c.Steps-start+thin-1)/thin))
	for w := 0; w < c.Walkers; w++ {
		for s := start; s < c.Steps; s += thin {
			flat = append(flat, c.Theta(w, s))
		}
	}
	return flat, nil
}

// Quantiles computes 16/50/84 percentiles per parameter over a
// flattened chain. Labels must have one entry per parameter column.
func Quantiles(flat [][]float64, labels []string) ([]ParamQuantiles, error) {
	if len(flat) == 0 {
		return nil, fmt.Errorf("empty flattened chain")
	}
	if len(labels) != len(flat[0]) {
		return nil, fmt.Errorf("got %d labels for %d parameters", len(labels), len(flat[0]))
	}

	out := make([]ParamQuantiles, 0, len(labels))
	column := make([]float64, len(flat))
	for p, label := range labels {
		for i, sample := range flat {
			column[i] = sample[p]
		}
		sort.Float64s(column)
		out = append(out, ParamQuantiles{
			Name: label,
			Q16:  stat.Quantile(0.16, stat.Empirical, column, nil),
			Q50:  stat.Quantile(0.50, stat.Empirical, column, nil),
			Q84:  stat.Quantile(0.84, stat.Empirical, column, nil),
		})
	}
	return out, nil
}

// BestSample returns the chain position with the highest log
// probability and a copy of its theta vector.
func BestSample(c model.Chain, lnprob []float64) (walker, step int, theta []float64, best float64, err error) {
	if err := checkChain(c); err != nil {
		return 0, 0, nil, 0, err
	}
	if len(lnprob) != c.Walkers*c.Steps {
		return 0, 0, nil, 0, fmt.Errorf("got %d lnprobability entries for %d positions", len(lnprob), c.Walkers*c.Steps)
	}

	bestIdx := 0
	for i, v := range lnprob {
		if v > lnprob[bestIdx] {
			bestIdx = i
		}
	}
	walker = bestIdx / c.Steps
	step = bestIdx % c.Steps
	return walker, step, c.Theta(walker, step), lnprob[bestIdx], nil
}

// ParamEvol returns one series per walker tracing a single parameter's
// value against step number, the data behind an evolution plot.
func ParamEvol(c model.Chain, param, start int) ([][]ChainPoint, error) {
	if err := checkChain(c); err != nil {
		return nil, err
	}
	if param < 0 || param >= c.Params {
		return nil, fmt.Errorf("parameter index %d outside %d parameters", param, c.Params)
	}
	if start < 0 || start >= c.Steps {
		return nil, fmt.Errorf("start %d outside chain of %d steps", start, c.Steps)
	}

	series := make([][]ChainPoint, c.Walkers)
	for w := 0; w < c.Walkers; w++ {
		points := make([]ChainPoint, 0, c.Steps-start)
		for s := start; s < c.Steps; s++ {
			points = append(points, ChainPoint{Step: s, Value: c.At(w, s, param)})
		}
		series[w] = points
	}
	return series, nil
}

// BestLnProbSeries returns, per step, the highest log probability across
// walkers. Useful for judging burn-in.
func BestLnProbSeries(c model.Chain, lnprob []float64) ([]float64, error) {
	if err := checkChain(c); err != nil {
		return nil, err
	}
	if len(lnprob) != c.Walkers*c.Steps {
		return nil, fmt.Errorf("got %d lnprobability entries for %d positions", len(lnprob), c.Walkers*c.Steps)
	}

	series := make([]float64, c.Steps)
	for s := 0; s < c.Steps; s++ {
		best := lnprob[s]
		for w := 1; w < c.Walkers; w++ {
			if v := lnprob[w*c.Steps+s]; v > best {
				best = v
			}
		}
		series[s] = best
	}
	return series, nil
}

// CornerHistogram bins the joint samples of two parameter columns of a
// flattened chain into a bins x bins 2-D histogram.
func CornerHistogram(flat [][]float64, xParam, yParam, bins int, xName, yName string) (CornerData, error) {
	if len(flat) == 0 {
		return CornerData{}, fmt.Errorf("empty flattened chain")
	}
	nparams := len(flat[0])
	if xParam < 0 || xParam >= nparams || yParam < 0 || yParam >= nparams {
		return CornerData{}, fmt.Errorf("parameter indices %d,%d outside %d parameters", xParam, yParam, nparams)
	}
	if bins <= 0 {
		bins = 20
	}

	xEdges := binEdges(flat, xParam, bins)
	yEdges := binEdges(flat, yParam, bins)

	counts := make([][]int, bins)
	for i := range counts {
		counts[i] = make([]int, bins)
	}
	for _, sample := range flat {
		xi := binIndex(xEdges, sample[xParam])
		yi := binIndex(yEdges, sample[yParam])
		counts[xi][yi]++
	}

	return CornerData{
		XName:  xName,
		YName:  yName,
		XEdges: xEdges,
		YEdges: yEdges,
		Counts: counts,
	}, nil
}

func binEdges(flat [][]float64, param, bins int) []float64 {
	lo, hi := flat[0][param], flat[0][param]
	for _, sample := range flat {
		if sample[param] < lo {
			lo = sample[param]
		}
		if sample[param] > hi {
			hi = sample[param]
		}
	}
	if hi == lo {
		hi = lo + 1
	}
	edges := make([]float64, bins+1)
	width := (hi - lo) / float64(bins)
	for i := range edges {
		edges[i] = lo + float64(i)*width
	}
	return edges
}

func binIndex(edges []float64, v float64) int {
	bins := len(edges) - 1
	idx := sort.SearchFloat64s(edges, v) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= bins {
		idx = bins - 1
	}
	return idx
}

func checkChain(c model.Chain) error {
	if c.Walkers <= 0 || c.Steps <= 0 || c.Params <= 0 {
		return fmt.Errorf("chain has shape %dx%dx%d", c.Walkers, c.Steps, c.Params)
	}
	if len(c.Samples) != c.Walkers*c.Steps*c.Params {
		return fmt.Errorf("chain has %d samples for shape %dx%dx%d", len(c.Samples), c.Walkers, c.Steps, c.Params)
	}
	return nil
}
