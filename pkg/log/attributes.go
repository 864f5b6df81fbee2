package log

// Standard attribute keys. They follow a dotted hierarchy ("model.name",
// "data.samples") so that JSON logs can be filtered by prefix.

// Model and operation context.
const (
	// ModelNameKey identifies the estimator type, e.g. "Lasso".
	ModelNameKey = "model.name"

	// FamilyKey is the registry name of a model family, e.g. "random_forest".
	FamilyKey = "model.family"

	// OperationKey specifies the operation being performed.
	// Standard values are the Operation* constants below.
	OperationKey = "ml.operation"

	// ComponentKey identifies which package emitted the record.
	ComponentKey = "ml.component"

	// PhaseKey indicates the lifecycle phase, see the Phase* constants.
	PhaseKey = "ml.phase"
)

// Data shape.
const (
	SamplesKey  = "data.samples"
	FeaturesKey = "data.features"
	// TrainSizeKey and TestSizeKey record the sizes of a holdout split.
	TrainSizeKey = "data.train_size"
	TestSizeKey  = "data.test_size"
	// DataPathKey is the source file of a loaded dataset.
	DataPathKey = "data.path"
)

// Tuning run context.
const (
	// RunIDKey is the UUID assigned to one SearchCV.Fit call.
	RunIDKey = "tune.run_id"

	// CandidatesKey is the number of hyperparameter candidates in a search.
	CandidatesKey = "tune.candidates"

	// CandidateKey is the index of a candidate within a search.
	CandidateKey = "tune.candidate"

	// ResampleKey is the flat index of a resample (repeat*k + fold).
	ResampleKey = "tune.resample"

	// ResamplesKey is the total resample budget of a plan.
	ResamplesKey = "tune.resamples"

	// RoundKey is the index of an adaptive resampling round.
	RoundKey = "tune.round"

	// SurvivorsKey is the number of candidates still active after elimination.
	SurvivorsKey = "tune.survivors"

	// ParamsKey holds the hyperparameter values of a candidate.
	ParamsKey = "tune.params"

	// ScoreKey holds a single resample score.
	ScoreKey = "tune.score"

	// MetricKey names the metric being optimised.
	MetricKey = "tune.metric"

	// MeanScoreKey and StdScoreKey summarise a candidate across resamples.
	MeanScoreKey = "tune.mean_score"
	StdScoreKey  = "tune.std_score"

	// PValueKey is the p-value of an elimination test.
	PValueKey = "tune.p_value"
)

// Performance.
const (
	DurationMsKey = "perf.duration_ms"
	IterationKey  = "training.iteration"
)

// Error context.
const (
	ErrorKey      = "error"
	StacktraceKey = "error.stacktrace"
)

// Configuration.
const (
	RandomSeedKey = "config.random_seed"
	ConfigPathKey = "config.path"
)

// Infrastructure.
const (
	// WorkerCountKey is the number of concurrent workers in a pool.
	WorkerCountKey = "infra.worker_count"
)

// Standard values for OperationKey.
const (
	OperationFit     = "fit"
	OperationPredict = "predict"
	OperationScore   = "score"
	OperationSplit   = "split"
	OperationSearch  = "search"
	OperationRefit   = "refit"
	OperationLoad    = "load"
)

// Standard values for PhaseKey.
const (
	PhaseTraining   = "training"
	PhaseValidation = "validation"
	PhaseTesting    = "testing"
)
