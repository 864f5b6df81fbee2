package model_selection

import (
	"context"
	"fmt"
	"iter"
	"math"
	"math/rand/v2"
	"slices"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/YuminosukeSato/scitune/core/model"
	"github.com/YuminosukeSato/scitune/core/parallel"
	"github.com/YuminosukeSato/scitune/dataset"
	"github.com/YuminosukeSato/scitune/metrics"
	"github.com/YuminosukeSato/scitune/pkg/errors"
	"github.com/YuminosukeSato/scitune/pkg/log"
)

// PCG streams, so that fold shuffles and estimator seeds never share a
// sequence.
const (
	streamFolds uint64 = 0x666f6c6473
	streamTasks uint64 = 0x7461736b73
)

// SearchCV evaluates every candidate of one family on every resample of a
// fold plan and refits the best candidate on all training rows.
type SearchCV struct {
	Family     model.Family
	Candidates []model.Params
	// Resampler defaults to KFold{NSplits: 5}.
	Resampler Resampler
	// Metrics defaults to metrics.Default(). The first one is primary.
	Metrics []metrics.Metric
	// Pool defaults to one worker per CPU.
	Pool   *parallel.Pool
	Seed   uint64
	Logger log.Logger
}

// CandidateResult aggregates one candidate over its resamples.
type CandidateResult struct {
	Params model.Params
	// Scores[m][r] is metric m on resample r; NaN when the task failed or
	// was never dispatched.
	Scores [][]float64
	Mean   []float64
	Std    []float64
	// Successes counts resamples with a finite primary score.
	Successes int
	// Eliminated is set when the adaptive rule dropped the candidate.
	Eliminated   bool
	EliminatedAt int
	// Rank is 1 for the best candidate.
	Rank int
}

// Failed reports whether no resample of the candidate succeeded.
func (c CandidateResult) Failed() bool { return c.Successes == 0 }

// SearchResult is the outcome of SearchCV.Fit.
type SearchResult struct {
	RunID         string
	Family        string
	Metrics       []metrics.Metric
	Results       []CandidateResult
	BestIndex     int
	BestParams    model.Params
	BestEstimator model.Regressor
	// Budget is the resample budget of the plan; Tasks the number of
	// candidate×resample fits actually dispatched.
	Budget  int
	Tasks   int
	Elapsed time.Duration
}

// Best returns the selected candidate.
func (r *SearchResult) Best() CandidateResult { return r.Results[r.BestIndex] }

// Predict uses the refit best estimator.
func (r *SearchResult) Predict(X mat.Matrix) (mat.Matrix, error) {
	if r.BestEstimator == nil {
		return nil, errors.NewNotFittedError("SearchResult", "Predict")
	}
	return r.BestEstimator.Predict(X)
}

// Evaluate scores the refit estimator on (X, y) with every search metric.
func (r *SearchResult) Evaluate(X, y mat.Matrix) (map[string]float64, error) {
	pred, err := r.Predict(X)
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64, len(r.Metrics))
	for _, m := range r.Metrics {
		s, err := m.Score(y, pred)
		if err != nil {
			return nil, errors.Wrapf(err, "evaluate %s", m.Name)
		}
		out[m.Name] = s
	}
	return out, nil
}

// Score returns the primary metric of the refit estimator on (X, y).
func (r *SearchResult) Score(X, y mat.Matrix) (float64, error) {
	pred, err := r.Predict(X)
	if err != nil {
		return math.NaN(), err
	}
	return r.Metrics[0].Score(y, pred)
}

// search is the state of one Fit call.
type search struct {
	*SearchCV
	logger  log.Logger
	X       mat.Matrix
	y       *mat.VecDense
	folds   []Fold
	results []CandidateResult
	taskErr [][]error
	active  []bool
	budget  int
	tasks   int
}

// Fit runs the search over the training rows (X, y).
func (s *SearchCV) Fit(ctx context.Context, X, y mat.Matrix) (*SearchResult, error) {
	start := time.Now()
	cfg := s.withDefaults()
	if cfg.Family == nil {
		return nil, errors.NewValidationError("family", "must not be nil", nil)
	}
	if len(cfg.Candidates) == 0 {
		return nil, errors.NewEmptyGridError("SearchCV.Fit", "no candidates")
	}
	n, _ := X.Dims()
	yv, err := metrics.ColumnVector("SearchCV.Fit", y)
	if err != nil {
		return nil, err
	}
	if yv.Len() != n {
		return nil, errors.NewDimensionError("SearchCV.Fit", n, yv.Len(), 0)
	}

	plan, err := cfg.Resampler.Plan(n, rand.New(rand.NewPCG(cfg.Seed, streamFolds)))
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	run := &search{
		SearchCV: cfg,
		logger: cfg.Logger.With(
			log.RunIDKey, runID,
			log.FamilyKey, cfg.Family.Name(),
		),
		X:      X,
		y:      yv,
		budget: plan.Budget(),
	}
	run.init()
	run.logger.Info("Search started",
		log.CandidatesKey, len(cfg.Candidates),
		log.ResamplesKey, run.budget,
		log.SamplesKey, n,
		log.MetricKey, cfg.Metrics[0].Name,
		log.WorkerCountKey, cfg.Pool.Size(),
		log.RandomSeedKey, cfg.Seed,
	)

	if err := run.resample(ctx, plan); err != nil {
		return nil, err
	}
	run.aggregate()

	best, ok := run.selectBest()
	if !ok {
		var all error
		for _, row := range run.taskErr {
			for _, e := range row {
				all = multierr.Append(all, e)
			}
		}
		err := errors.NewAllCandidatesFailedError(cfg.Family.Name(), len(cfg.Candidates), all)
		run.logger.Error("Search failed", err)
		return nil, err
	}
	run.rank()

	est, err := run.refit(best)
	if err != nil {
		run.logger.Error("Refit failed", err, log.CandidateKey, best)
		return nil, err
	}

	res := &SearchResult{
		RunID:         runID,
		Family:        cfg.Family.Name(),
		Metrics:       cfg.Metrics,
		Results:       run.results,
		BestIndex:     best,
		BestParams:    run.results[best].Params.Clone(),
		BestEstimator: est,
		Budget:        run.budget,
		Tasks:         run.tasks,
		Elapsed:       time.Since(start),
	}
	run.logger.Info("Search finished",
		log.CandidateKey, best,
		log.ParamsKey, res.BestParams.String(),
		log.MeanScoreKey, res.Best().Mean[0],
		log.StdScoreKey, res.Best().Std[0],
		"tune.tasks", res.Tasks,
		log.DurationMsKey, res.Elapsed.Milliseconds(),
	)
	return res, nil
}

func (s *SearchCV) withDefaults() *SearchCV {
	cfg := *s
	if cfg.Resampler == nil {
		cfg.Resampler = KFold{NSplits: 5}
	}
	if len(cfg.Metrics) == 0 {
		cfg.Metrics = metrics.Default()
	}
	if cfg.Pool == nil {
		cfg.Pool = parallel.NewPool(0)
	}
	if cfg.Logger == nil {
		cfg.Logger = log.GetLoggerWithName("model_selection")
	}
	return &cfg
}

func (r *search) init() {
	r.results = make([]CandidateResult, len(r.Candidates))
	r.taskErr = make([][]error, len(r.Candidates))
	r.active = make([]bool, len(r.Candidates))
	for c, p := range r.Candidates {
		scores := make([][]float64, len(r.Metrics))
		for m := range scores {
			scores[m] = make([]float64, r.budget)
			for i := range scores[m] {
				scores[m][i] = math.NaN()
			}
		}
		r.results[c] = CandidateResult{Params: p.Clone(), Scores: scores, EliminatedAt: -1}
		r.taskErr[c] = make([]error, r.budget)
		r.active[c] = true
	}
}

// resample dispatches rounds until the plan is exhausted or, for a
// non-complete adaptive plan, a single candidate survives.
func (r *search) resample(ctx context.Context, plan *FoldPlan) error {
	next, stop := iter.Pull(plan.All())
	defer stop()

	for round := 0; len(r.folds) < r.budget; round++ {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, "SearchCV.Fit")
		}
		size := r.budget
		if plan.Adaptive != nil {
			size = 1
			if round == 0 {
				size = plan.Adaptive.MinResamples
			}
		}
		first := len(r.folds)
		for range size {
			f, ok := next()
			if !ok {
				break
			}
			r.folds = append(r.folds, f)
		}

		if err := r.dispatch(ctx, round, first, len(r.folds)); err != nil {
			return err
		}

		if plan.Adaptive != nil {
			survivors := r.eliminate(round, plan.Adaptive.Alpha)
			if survivors <= 1 && !plan.Adaptive.Complete {
				r.logger.Info("Single candidate left, stopping early",
					log.RoundKey, round,
					"tune.resamples_done", len(r.folds),
				)
				break
			}
		}
	}
	return nil
}

// dispatch runs every active candidate on resamples [lo, hi).
func (r *search) dispatch(ctx context.Context, round, lo, hi int) error {
	var cands []int
	for c, ok := range r.active {
		if ok {
			cands = append(cands, c)
		}
	}
	width := hi - lo
	n := len(cands) * width
	r.logger.Debug("Dispatching round",
		log.RoundKey, round,
		log.SurvivorsKey, len(cands),
		"tune.tasks", n,
	)

	var started atomic.Int64
	err := r.Pool.Run(ctx, n, func(t int) {
		started.Add(1)
		c, res := cands[t/width], lo+t%width
		scores, err := r.task(c, res)
		if err != nil {
			r.taskErr[c][res] = errors.Wrapf(err, "candidate %d (%s) resample %d", c, r.Candidates[c], res)
			r.logger.Warn("Task failed",
				log.CandidateKey, c,
				log.ResampleKey, res,
				log.ErrorKey, err,
			)
			return
		}
		// slot (c, res) is written by this task only
		for m, v := range scores {
			r.results[c].Scores[m][res] = v
		}
	})
	r.tasks += int(started.Load())
	if err != nil {
		r.logger.Warn("Search cancelled",
			log.RoundKey, round,
			"tune.tasks", r.tasks,
			log.ErrorKey, err,
		)
		return errors.Wrap(err, "SearchCV.Fit")
	}
	return nil
}

// taskSeed derives the estimator seed of (candidate, resample).
func (r *search) taskSeed(c, res int) uint64 {
	return rand.New(rand.NewPCG(r.Seed^streamTasks, uint64(c)<<32|uint64(res))).Uint64()
}

// task fits candidate c on the training rows of resample res and scores
// the held-out rows. A panic in the backend is returned as an error.
func (r *search) task(c, res int) (scores []float64, err error) {
	defer errors.Recover(&err, "SearchCV.task")

	fold := r.folds[res]
	Xtr, ytr := dataset.Rows(r.X, r.y, fold.TrainIndices)
	Xte, yte := dataset.Rows(r.X, r.y, fold.TestIndices)

	est, err := r.Family.New(r.Candidates[c], r.taskSeed(c, res))
	if err != nil {
		return nil, err
	}
	if err := est.Fit(Xtr, ytr); err != nil {
		return nil, err
	}
	pred, err := est.Predict(Xte)
	if err != nil {
		return nil, err
	}

	scores = make([]float64, len(r.Metrics))
	for m, metric := range r.Metrics {
		v, err := metric.Score(yte, pred)
		if err != nil {
			return nil, errors.Wrapf(err, "metric %s", metric.Name)
		}
		scores[m] = v
	}
	if err := errors.CheckScalar(r.Metrics[0].Name, scores[0], res); err != nil {
		return nil, err
	}
	return scores, nil
}

// eliminate applies a one-sided paired t-test of every active candidate
// against the current leader on their shared resamples, and returns the
// number of survivors.
func (r *search) eliminate(round int, alpha float64) int {
	primary := r.Metrics[0]
	done := len(r.folds)
	loss := func(c int) []float64 {
		out := make([]float64, done)
		for i := range out {
			out[i] = primary.Loss(r.results[c].Scores[0][i])
		}
		return out
	}

	leader, leaderMean := -1, math.Inf(1)
	for c, ok := range r.active {
		if !ok {
			continue
		}
		mean, n := nanMean(loss(c))
		if n == 0 {
			// nothing to compare against yet
			r.drop(c, round, "all resamples failed", math.NaN())
			continue
		}
		if mean < leaderMean {
			leader, leaderMean = c, mean
		}
	}
	if leader < 0 {
		return 0
	}

	base := loss(leader)
	survivors := 0
	for c, ok := range r.active {
		if !ok {
			continue
		}
		if c == leader {
			survivors++
			continue
		}
		cl := loss(c)
		var d []float64
		for i := range cl {
			if !math.IsNaN(cl[i]) && !math.IsNaN(base[i]) {
				d = append(d, cl[i]-base[i])
			}
		}
		if p := pairedPValue(d); p < alpha {
			r.drop(c, round, "significantly worse than leader", p)
			continue
		}
		survivors++
	}
	return survivors
}

func (r *search) drop(c, round int, reason string, p float64) {
	r.active[c] = false
	r.results[c].Eliminated = true
	r.results[c].EliminatedAt = round
	r.logger.Debug("Candidate eliminated",
		log.CandidateKey, c,
		log.RoundKey, round,
		log.PValueKey, p,
		"reason", reason,
	)
}

// pairedPValue is the one-sided p-value of H0: mean(d) <= 0. Fewer than two
// differences never eliminate. Zero spread eliminates exactly when the
// mean is positive.
func pairedPValue(d []float64) float64 {
	if len(d) < 2 {
		return 1
	}
	mean, std := stat.MeanStdDev(d, nil)
	if std == 0 || math.IsNaN(std) {
		if mean > 0 {
			return 0
		}
		return 1
	}
	t := mean / (std / math.Sqrt(float64(len(d))))
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(len(d) - 1)}
	return 1 - dist.CDF(t)
}

func nanMean(v []float64) (float64, int) {
	var sum float64
	n := 0
	for _, x := range v {
		if !math.IsNaN(x) {
			sum += x
			n++
		}
	}
	if n == 0 {
		return math.NaN(), 0
	}
	return sum / float64(n), n
}

func (r *search) aggregate() {
	for c := range r.results {
		res := &r.results[c]
		res.Mean = make([]float64, len(r.Metrics))
		res.Std = make([]float64, len(r.Metrics))
		for m := range r.Metrics {
			ok := slices.DeleteFunc(slices.Clone(res.Scores[m]), math.IsNaN)
			if m == 0 {
				res.Successes = len(ok)
			}
			switch len(ok) {
			case 0:
				res.Mean[m], res.Std[m] = math.NaN(), math.NaN()
			case 1:
				res.Mean[m], res.Std[m] = ok[0], 0
			default:
				res.Mean[m], res.Std[m] = stat.MeanStdDev(ok, nil)
			}
		}
		r.logger.Debug("Candidate aggregated",
			log.CandidateKey, c,
			log.ParamsKey, res.Params.String(),
			log.MeanScoreKey, res.Mean[0],
			log.StdScoreKey, res.Std[0],
			"tune.successes", res.Successes,
		)
	}
}

// selectBest picks the best mean primary score among candidates that were
// neither eliminated nor failed. Ties go to the earlier candidate.
func (r *search) selectBest() (int, bool) {
	primary := r.Metrics[0]
	best := -1
	for c, res := range r.results {
		if res.Eliminated || res.Failed() {
			continue
		}
		if best < 0 || primary.Better(res.Mean[0], r.results[best].Mean[0]) {
			best = c
		}
	}
	return best, best >= 0
}

// rank orders surviving candidates first, then eliminated ones, then
// failed ones; within a group by mean primary score.
func (r *search) rank() {
	primary := r.Metrics[0]
	tier := func(res CandidateResult) int {
		switch {
		case res.Failed():
			return 2
		case res.Eliminated:
			return 1
		}
		return 0
	}
	order := make([]int, len(r.results))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		ra, rb := r.results[a], r.results[b]
		if ta, tb := tier(ra), tier(rb); ta != tb {
			return ta - tb
		}
		switch {
		case primary.Better(ra.Mean[0], rb.Mean[0]):
			return -1
		case primary.Better(rb.Mean[0], ra.Mean[0]):
			return 1
		}
		return 0
	})
	for pos, c := range order {
		r.results[c].Rank = pos + 1
	}
}

func (r *search) refit(best int) (model.Regressor, error) {
	var est model.Regressor
	err := errors.SafeExecute("SearchCV.refit", func() error {
		var err error
		est, err = r.Family.New(r.Candidates[best], r.taskSeed(best, r.budget))
		if err != nil {
			return err
		}
		return est.Fit(r.X, r.y)
	})
	if err != nil {
		return nil, errors.NewModelError("SearchCV.refit", fmt.Sprintf("refit of %s failed", r.Candidates[best]), err)
	}
	return est, nil
}
