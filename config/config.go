// Package config loads experiment definitions from YAML or TOML files.
//
// An experiment names a dataset, how to hold out an evaluation subset, how
// to resample the training subset, and the model families to tune:
//
//	data:
//	  path: housing.csv
//	  target: price
//	split:
//	  train_size: 0.8
//	resampling:
//	  method: adaptive_cv
//	  folds: 5
//	  repeats: 3
//	  min_resamples: 5
//	models:
//	  - family: lasso
//	    grid:
//	      alpha: [0.001, 0.01, 0.1, 1]
//	  - family: gradient_boosting
//	    random:
//	      budget: 20
//	      space:
//	        learning_rate: {type: log_uniform, min: 0.01, max: 0.3}
//	        max_depth: {type: int_uniform, min: 2, max: 6}
package config

import (
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
	"go.uber.org/multierr"

	"github.com/YuminosukeSato/scitune/core/model"
	"github.com/YuminosukeSato/scitune/dataset"
	"github.com/YuminosukeSato/scitune/metrics"
	"github.com/YuminosukeSato/scitune/pkg/errors"
	"github.com/YuminosukeSato/scitune/sklearn/model_selection"
)

// Resampling methods.
const (
	MethodCV         = "cv"
	MethodRepeatedCV = "repeatedcv"
	MethodAdaptiveCV = "adaptive_cv"
)

// Experiment is the root of a configuration file.
type Experiment struct {
	Data       DataConfig       `yaml:"data" toml:"data"`
	Split      SplitConfig      `yaml:"split" toml:"split"`
	Resampling ResamplingConfig `yaml:"resampling" toml:"resampling"`
	Metrics    []string         `yaml:"metrics" toml:"metrics" validate:"dive,oneof=rmse mse mae mape r2"`
	Models     []ModelConfig    `yaml:"models" toml:"models" validate:"required,min=1,dive"`
	Seed       uint64           `yaml:"seed" toml:"seed"`
	Workers    int              `yaml:"workers" toml:"workers" validate:"gte=0"`
	Log        LogConfig        `yaml:"log" toml:"log"`
	Output     OutputConfig     `yaml:"output" toml:"output"`
}

// DataConfig selects a CSV file or a synthetic generator.
type DataConfig struct {
	Path      string           `yaml:"path" toml:"path" validate:"required_without=Synthetic"`
	Target    string           `yaml:"target" toml:"target"`
	Delimiter string           `yaml:"delimiter" toml:"delimiter" validate:"omitempty,len=1"`
	Comment   string           `yaml:"comment" toml:"comment" validate:"omitempty,len=1"`
	Synthetic *SyntheticConfig `yaml:"synthetic" toml:"synthetic"`
}

// SyntheticConfig describes a generated dataset.
type SyntheticConfig struct {
	Kind        string  `yaml:"kind" toml:"kind" validate:"oneof=regression friedman1"`
	Samples     int     `yaml:"samples" toml:"samples" validate:"gt=0"`
	Features    int     `yaml:"features" toml:"features" validate:"gt=0"`
	Informative int     `yaml:"informative" toml:"informative" validate:"gte=0"`
	Noise       float64 `yaml:"noise" toml:"noise" validate:"gte=0"`
}

// SplitConfig controls the holdout split.
type SplitConfig struct {
	// TrainSize is a fraction in (0, 1) or an absolute row count.
	TrainSize float64 `yaml:"train_size" toml:"train_size" validate:"gt=0"`
}

// ResamplingConfig selects the fold plan.
type ResamplingConfig struct {
	Method       string  `yaml:"method" toml:"method" validate:"oneof=cv repeatedcv adaptive_cv"`
	Folds        int     `yaml:"folds" toml:"folds" validate:"gte=2"`
	Repeats      int     `yaml:"repeats" toml:"repeats" validate:"gte=1"`
	MinResamples int     `yaml:"min_resamples" toml:"min_resamples" validate:"gte=0"`
	Alpha        float64 `yaml:"alpha" toml:"alpha" validate:"gt=0,lt=1"`
	Complete     bool    `yaml:"complete" toml:"complete"`
}

// ModelConfig is one family to tune. With neither Grid nor Random the
// family's defaults are evaluated as a single candidate.
type ModelConfig struct {
	Family string               `yaml:"family" toml:"family" validate:"required"`
	Grid   map[string][]float64 `yaml:"grid" toml:"grid" validate:"omitempty,dive,min=1"`
	Random *RandomSearchConfig  `yaml:"random" toml:"random"`
	Fixed  map[string]float64   `yaml:"fixed" toml:"fixed"`
	// Plot names the hyperparameter to put on the x axis of the metric plot.
	Plot string `yaml:"plot" toml:"plot"`
}

// RandomSearchConfig draws Budget candidates from Space.
type RandomSearchConfig struct {
	Budget int                           `yaml:"budget" toml:"budget" validate:"gt=0"`
	Space  map[string]DistributionConfig `yaml:"space" toml:"space" validate:"required,min=1,dive"`
}

// DistributionConfig is the serialised form of a model_selection.Distribution.
type DistributionConfig struct {
	Type   string    `yaml:"type" toml:"type" validate:"oneof=uniform log_uniform int_uniform choice"`
	Min    float64   `yaml:"min" toml:"min"`
	Max    float64   `yaml:"max" toml:"max"`
	Values []float64 `yaml:"values" toml:"values"`
}

// LogConfig configures pkg/log.
type LogConfig struct {
	Level  string `yaml:"level" toml:"level" validate:"oneof=debug info warn warning error"`
	Format string `yaml:"format" toml:"format" validate:"oneof=json console"`
}

// OutputConfig controls reports.
type OutputConfig struct {
	// PlotDir receives one PNG per model with a Plot parameter. Empty
	// disables plotting.
	PlotDir string `yaml:"plot_dir" toml:"plot_dir"`
	// Color is auto, always or never.
	Color string `yaml:"color" toml:"color" validate:"oneof=auto always never"`
}

// Default returns an experiment with every default applied and no models.
func Default() *Experiment {
	e := &Experiment{}
	e.applyDefaults()
	return e
}

func (e *Experiment) applyDefaults() {
	if e.Split.TrainSize == 0 {
		e.Split.TrainSize = 0.8
	}
	r := &e.Resampling
	if r.Method == "" {
		r.Method = MethodCV
	}
	if r.Folds == 0 {
		r.Folds = 5
	}
	if r.Repeats == 0 {
		r.Repeats = 1
		if r.Method != MethodCV {
			r.Repeats = 3
		}
	}
	if r.Alpha == 0 {
		r.Alpha = 0.05
	}
	if r.MinResamples == 0 && r.Method == MethodAdaptiveCV {
		r.MinResamples = min(5, r.Folds*r.Repeats)
	}
	if len(e.Metrics) == 0 {
		e.Metrics = []string{"rmse", "mae", "r2"}
	}
	if e.Log.Level == "" {
		e.Log.Level = "info"
	}
	if e.Log.Format == "" {
		e.Log.Format = "console"
	}
	if e.Output.Color == "" {
		e.Output.Color = "auto"
	}
	if s := e.Data.Synthetic; s != nil && s.Kind == "" {
		s.Kind = "regression"
	}
}

// Load reads an experiment from path. The format is chosen by extension:
// .yaml/.yml or .toml. Relative data paths are resolved against the
// directory of the configuration file.
func Load(path string) (*Experiment, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}
	e, err := Parse(raw, strings.TrimPrefix(filepath.Ext(path), "."))
	if err != nil {
		return nil, errors.Wrapf(err, "config %s", path)
	}
	if e.Data.Path != "" && !filepath.IsAbs(e.Data.Path) {
		e.Data.Path = filepath.Join(filepath.Dir(path), e.Data.Path)
	}
	return e, nil
}

// Parse decodes raw in the given format ("yaml", "yml" or "toml"), applies
// defaults and validates the result.
func Parse(raw []byte, format string) (*Experiment, error) {
	e := &Experiment{}
	switch strings.ToLower(format) {
	case "yaml", "yml":
		if err := yaml.Unmarshal(raw, e); err != nil {
			return nil, errors.Wrap(err, "decode yaml")
		}
	case "toml":
		if err := toml.Unmarshal(raw, e); err != nil {
			return nil, errors.Wrap(err, "decode toml")
		}
	default:
		return nil, errors.NewValidationError("format", "must be yaml, yml or toml", format)
	}
	e.applyDefaults()
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return e, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct tags and the cross-field rules tags cannot
// express. All violations are returned together.
func (e *Experiment) Validate() error {
	var all error
	if err := validate.Struct(e); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return errors.Wrap(err, "validate config")
		}
		for _, fe := range verrs {
			all = multierr.Append(all, errors.NewValidationError(fe.Namespace(), "failed '"+fe.Tag()+"' "+fe.Param(), fe.Value()))
		}
	}

	r := e.Resampling
	if r.Method == MethodAdaptiveCV {
		if r.MinResamples < 2 || r.MinResamples > r.Folds*r.Repeats {
			all = multierr.Append(all, errors.NewValidationError("Experiment.Resampling.MinResamples", "must be in [2, folds*repeats]", r.MinResamples))
		}
	}
	for i, m := range e.Models {
		if len(m.Grid) > 0 && m.Random != nil {
			all = multierr.Append(all, errors.NewValidationError("Experiment.Models["+strconv.Itoa(i)+"]", "grid and random are mutually exclusive", m.Family))
		}
	}
	return all
}

// Resampler converts the resampling section.
func (r ResamplingConfig) Resampler() model_selection.Resampler {
	switch r.Method {
	case MethodRepeatedCV:
		return model_selection.RepeatedKFold{NSplits: r.Folds, NRepeats: r.Repeats}
	case MethodAdaptiveCV:
		return model_selection.AdaptiveKFold{
			NSplits:      r.Folds,
			NRepeats:     r.Repeats,
			MinResamples: r.MinResamples,
			Alpha:        r.Alpha,
			Complete:     r.Complete,
		}
	default:
		return model_selection.KFold{NSplits: r.Folds}
	}
}

// MetricList resolves the metric names; the first is primary.
func (e *Experiment) MetricList() ([]metrics.Metric, error) {
	return metrics.ByNames(e.Metrics)
}

// Distribution converts the serialised form.
func (d DistributionConfig) Distribution() model_selection.Distribution {
	switch d.Type {
	case "log_uniform":
		return model_selection.LogUniform{Min: d.Min, Max: d.Max}
	case "int_uniform":
		return model_selection.IntUniform{Min: int(d.Min), Max: int(d.Max)}
	case "choice":
		return model_selection.Choice{Values: d.Values}
	default:
		return model_selection.Uniform{Min: d.Min, Max: d.Max}
	}
}

// Candidates expands the model's search space. Fixed values are merged into
// every candidate.
func (m ModelConfig) Candidates(rng *rand.Rand) ([]model.Params, error) {
	var cands []model.Params
	var err error
	switch {
	case len(m.Grid) > 0:
		cands, err = model_selection.ParameterGrid(m.Grid)
	case m.Random != nil:
		space := make(map[string]model_selection.Distribution, len(m.Random.Space))
		for name, d := range m.Random.Space {
			space[name] = d.Distribution()
		}
		cands, err = model_selection.ParameterSampler(space, m.Random.Budget, rng)
	default:
		cands = []model.Params{{}}
	}
	if err != nil {
		return nil, errors.Wrapf(err, "model %s", m.Family)
	}
	for _, c := range cands {
		for k, v := range m.Fixed {
			if _, set := c[k]; !set {
				c[k] = v
			}
		}
	}
	return cands, nil
}

// Load reads or generates the dataset.
func (d DataConfig) Load(rng *rand.Rand) (*dataset.Dataset, error) {
	if s := d.Synthetic; s != nil && d.Path == "" {
		switch s.Kind {
		case "friedman1":
			return dataset.MakeFriedman1(s.Samples, s.Features, s.Noise, rng)
		default:
			return dataset.MakeRegression(s.Samples, s.Features, s.Informative, s.Noise, rng)
		}
	}
	opts := dataset.Options{Target: d.Target}
	if d.Delimiter != "" {
		opts.Delimiter, _ = utf8.DecodeRuneInString(d.Delimiter)
	}
	if d.Comment != "" {
		opts.Comment, _ = utf8.DecodeRuneInString(d.Comment)
	}
	return dataset.LoadCSV(d.Path, opts)
}
