// Package experiment runs a configured model comparison end to end: load
// the data, hold out an evaluation subset, tune every configured family on
// the training subset and report cross-validated and held-out scores.
package experiment

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/multierr"

	"github.com/YuminosukeSato/scitune/config"
	"github.com/YuminosukeSato/scitune/core/model"
	"github.com/YuminosukeSato/scitune/core/parallel"
	"github.com/YuminosukeSato/scitune/dataset"
	"github.com/YuminosukeSato/scitune/metrics"
	"github.com/YuminosukeSato/scitune/pkg/errors"
	"github.com/YuminosukeSato/scitune/pkg/log"
	"github.com/YuminosukeSato/scitune/report"
	"github.com/YuminosukeSato/scitune/sklearn/model_selection"
)

// PCG streams for the experiment-level random sources.
const (
	streamData       uint64 = 0x64617461
	streamCandidates uint64 = 0x63616e64
)

// ModelOutcome is the result of tuning one configured family.
type ModelOutcome struct {
	Family string
	Search *model_selection.SearchResult
	// Test holds held-out scores by metric name.
	Test map[string]float64
	// Importances is set for families that rank features.
	Importances []float64
	PlotPath    string
	Err         error
}

// Outcome is the result of Run.
type Outcome struct {
	Train, Test *dataset.Dataset
	Models      []ModelOutcome
	Comparison  *report.Comparison
}

// Runner executes experiments against a family registry.
type Runner struct {
	Registry *model.Registry
	// Out receives the text report; nil discards it.
	Out    io.Writer
	Logger log.Logger
}

// Run executes e. A family whose search fails is reported and skipped; Run
// fails only when the data cannot be prepared or every family fails.
func (r *Runner) Run(ctx context.Context, e *config.Experiment) (*Outcome, error) {
	logger := r.Logger
	if logger == nil {
		logger = log.GetLoggerWithName("experiment")
	}
	out := r.Out
	if out == nil {
		out = io.Discard
	}
	highlight := report.ColorEnabled(e.Output.Color)

	ds, err := e.Data.Load(rand.New(rand.NewPCG(e.Seed, streamData)))
	if err != nil {
		return nil, err
	}
	train, test, err := model_selection.SplitDataset(ds, e.Split.TrainSize, model_selection.NewRand(e.Seed))
	if err != nil {
		return nil, err
	}
	logger.Info("Dataset ready",
		log.OperationKey, log.OperationSplit,
		log.DataPathKey, e.Data.Path,
		log.SamplesKey, ds.Len(),
		log.FeaturesKey, ds.NumFeatures(),
		log.TrainSizeKey, train.Len(),
		log.TestSizeKey, test.Len(),
	)

	ms, err := e.MetricList()
	if err != nil {
		return nil, err
	}
	pool := parallel.NewPool(e.Workers)
	candRng := rand.New(rand.NewPCG(e.Seed, streamCandidates))

	outcome := &Outcome{Train: train, Test: test, Comparison: report.NewComparison(ms)}
	var failures error
	for _, mc := range e.Models {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, "experiment")
		}
		mo := r.runModel(ctx, e, mc, train, test, ms, pool, candRng, logger)
		if mo.Err != nil {
			failures = multierr.Append(failures, mo.Err)
			logger.Error("Model failed", mo.Err, log.FamilyKey, mc.Family)
			fmt.Fprintf(out, "\n== %s: FAILED\n%v\n", mc.Family, mo.Err)
			outcome.Models = append(outcome.Models, mo)
			continue
		}
		if err := outcome.Comparison.Add(mo.Search, mo.Test); err != nil {
			return nil, err
		}
		outcome.Models = append(outcome.Models, mo)

		fmt.Fprintf(out, "\n== %s (%d candidates, %d fits, %s)\n",
			mc.Family, len(mo.Search.Results), mo.Search.Tasks, mo.Search.Elapsed.Round(time.Millisecond))
		if err := report.CandidateTable(out, mo.Search, highlight); err != nil {
			return nil, err
		}
		if mo.Importances != nil {
			fmt.Fprintln(out)
			if err := report.Importances(out, train.FeatureNames, mo.Importances, highlight); err != nil {
				return nil, err
			}
		}
		if mo.PlotPath != "" {
			fmt.Fprintf(out, "plot: %s\n", mo.PlotPath)
		}
	}

	if len(outcome.Comparison.Rows) == 0 {
		return outcome, errors.Wrap(failures, "every model failed")
	}
	fmt.Fprintf(out, "\n== comparison (train %d / test %d rows)\n", train.Len(), test.Len())
	if err := outcome.Comparison.Render(out, highlight); err != nil {
		return nil, err
	}
	return outcome, nil
}

func (r *Runner) runModel(
	ctx context.Context,
	e *config.Experiment,
	mc config.ModelConfig,
	train, test *dataset.Dataset,
	ms []metrics.Metric,
	pool *parallel.Pool,
	rng *rand.Rand,
	logger log.Logger,
) ModelOutcome {
	mo := ModelOutcome{Family: mc.Family}
	family, err := r.Registry.Get(mc.Family)
	if err != nil {
		mo.Err = err
		return mo
	}
	cands, err := mc.Candidates(rng)
	if err != nil {
		mo.Err = err
		return mo
	}

	search := &model_selection.SearchCV{
		Family:     family,
		Candidates: cands,
		Resampler:  e.Resampling.Resampler(),
		Metrics:    ms,
		Pool:       pool,
		Seed:       e.Seed,
		Logger:     logger,
	}
	res, err := search.Fit(ctx, train.X, train.Y)
	if err != nil {
		mo.Err = errors.Wrapf(err, "tune %s", mc.Family)
		return mo
	}
	mo.Search = res

	if mo.Test, err = res.Evaluate(test.X, test.Y); err != nil {
		mo.Err = errors.Wrapf(err, "evaluate %s", mc.Family)
		return mo
	}
	if fi, ok := res.BestEstimator.(model.FeatureImporter); ok {
		if mo.Importances, err = fi.FeatureImportances(); err != nil {
			logger.Warn("Feature importances unavailable", log.FamilyKey, mc.Family, log.ErrorKey, err)
			mo.Importances = nil
		}
	}

	if mc.Plot != "" && e.Output.PlotDir != "" {
		path := filepath.Join(e.Output.PlotDir, fmt.Sprintf("%s_%s.png", mc.Family, mc.Plot))
		if err := os.MkdirAll(e.Output.PlotDir, 0o755); err != nil {
			logger.Warn("Cannot create plot directory", log.ErrorKey, err)
		} else if err := report.PlotMetric(path, res, mc.Plot); err != nil {
			logger.Warn("Plot failed", log.FamilyKey, mc.Family, log.ErrorKey, err)
		} else {
			mo.PlotPath = path
		}
	}
	return mo
}
