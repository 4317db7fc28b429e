package sim

import (
	"context"
	"math"
	"sync"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/galtonsim/internal/analysis"
	"github.com/san-kum/galtonsim/internal/galton"
)

// Result is the outcome of one completed run.
type Result struct {
	Seed       int64               `json:"seed"`
	Counts     []int               `json:"counts"`
	Comparison analysis.Comparison `json:"comparison"`
	Ticks      uint64              `json:"ticks"`
	Time       float64             `json:"time"`
	Dropped    int                 `json:"dropped"`
	Metrics    map[string]float64  `json:"metrics"`
}

// Ensemble runs the same board with consecutive seeds in parallel.
type Ensemble struct {
	base      galton.Config
	numRuns   int
	seedStart int64
	dt        float64

	// NewMetrics, when set, gives every run its own metric instances.
	NewMetrics func() []galton.Metric

	log zerolog.Logger
}

func NewEnsemble(cfg galton.Config, numRuns int, seedStart int64, dt float64, log zerolog.Logger) *Ensemble {
	return &Ensemble{base: cfg, numRuns: numRuns, seedStart: seedStart, dt: dt, log: log}
}

func (e *Ensemble) Run(ctx context.Context) ([]*Result, error) {
	results := make([]*Result, e.numRuns)
	errs := make([]error, e.numRuns)

	var wg sync.WaitGroup
	for i := 0; i < e.numRuns; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			seed := e.seedStart + int64(idx)
			cfgCopy := e.base
			cfgCopy.Run.Seed = &seed
			// Parallelism is across runs.
			cfgCopy.Run.Workers = 1

			results[idx], errs[idx] = e.runOne(ctx, cfgCopy)
		}(i)
	}

	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	return results, nil
}

func (e *Ensemble) runOne(ctx context.Context, cfg galton.Config) (*Result, error) {
	c, err := New(cfg, e.log)
	if err != nil {
		return nil, err
	}
	if e.NewMetrics != nil {
		for _, m := range e.NewMetrics() {
			c.AddMetric(m)
		}
	}

	snap, err := RunToCompletion(ctx, c, e.dt)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Seed:       c.Seed(),
		Counts:     snap.Bins,
		Comparison: c.Comparison(),
		Ticks:      snap.Tick,
		Time:       snap.Time,
		Dropped:    snap.Dropped,
		Metrics:    make(map[string]float64),
	}
	for _, m := range c.Metrics() {
		res.Metrics[m.Name()] = m.Value()
	}
	return res, nil
}

// Spread summarises how much an ensemble's runs disagree.
type Spread struct {
	Runs               int     `json:"runs"`
	MeanObservedMean   float64 `json:"mean_observed_mean"`
	StdObservedMean    float64 `json:"std_observed_mean"`
	MeanTotalVariation float64 `json:"mean_total_variation"`
	MaxTotalVariation  float64 `json:"max_total_variation"`
	MeanChiSquare      float64 `json:"mean_chi_square"`
}

func Summarize(results []*Result) Spread {
	s := Spread{Runs: len(results)}
	if len(results) == 0 {
		return s
	}

	means := make([]float64, len(results))
	tvs := make([]float64, len(results))
	chis := make([]float64, len(results))
	for i, r := range results {
		means[i] = r.Comparison.ObservedMean
		tvs[i] = r.Comparison.TotalVariation
		chis[i] = r.Comparison.ChiSquare
		s.MaxTotalVariation = math.Max(s.MaxTotalVariation, tvs[i])
	}

	s.MeanObservedMean, s.StdObservedMean = stat.PopMeanStdDev(means, nil)
	s.MeanTotalVariation = stat.Mean(tvs, nil)
	s.MeanChiSquare = stat.Mean(chis, nil)
	return s
}
