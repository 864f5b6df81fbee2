package report

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/scitune/core/model"
	"github.com/YuminosukeSato/scitune/metrics"
	"github.com/YuminosukeSato/scitune/pkg/errors"
	"github.com/YuminosukeSato/scitune/sklearn/model_selection"
)

func fakeResult(family string, rmse float64) *model_selection.SearchResult {
	nan := math.NaN()
	return &model_selection.SearchResult{
		Family:  family,
		Metrics: []metrics.Metric{metrics.RMSEMetric, metrics.R2Metric},
		Results: []model_selection.CandidateResult{
			{Params: model.Params{"alpha": 0.01, "max_iter": 100}, Mean: []float64{rmse, 0.9}, Std: []float64{0.1, 0.01}, Successes: 5, Rank: 1},
			{Params: model.Params{"alpha": 1, "max_iter": 100}, Mean: []float64{rmse + 1, 0.5}, Std: []float64{0.2, 0.05}, Successes: 5, Rank: 2},
			{Params: model.Params{"alpha": 10, "max_iter": 100}, Mean: []float64{nan, nan}, Std: []float64{nan, nan}, Rank: 4},
			{Params: model.Params{"alpha": 0.01, "max_iter": 1000}, Mean: []float64{rmse + 2, 0.4}, Std: []float64{0.3, 0.1}, Successes: 3, Eliminated: true, EliminatedAt: 0, Rank: 3},
		},
		BestIndex:  0,
		BestParams: model.Params{"alpha": 0.01, "max_iter": 100},
		Budget:     5,
		Tasks:      18,
		Elapsed:    1500 * time.Millisecond,
	}
}

func TestComparisonRender(t *testing.T) {
	c := NewComparison([]metrics.Metric{metrics.RMSEMetric, metrics.R2Metric})
	require.NoError(t, c.Add(fakeResult("lasso", 2), map[string]float64{"rmse": 2.5, "r2": 0.8}))
	require.NoError(t, c.Add(fakeResult("random_forest", 1.5), map[string]float64{"rmse": 1.9, "r2": 0.9}))
	assert.Equal(t, 1, c.Best())

	var buf bytes.Buffer
	require.NoError(t, c.Render(&buf, false))
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "cv rmse")
	assert.Contains(t, lines[0], "test r2")
	assert.True(t, strings.HasPrefix(lines[2], "  lasso"))
	assert.True(t, strings.HasPrefix(lines[3], "* random_forest"))
	assert.Contains(t, lines[3], "1.5000 ± 0.1000")
	assert.Contains(t, lines[3], "1.9000")
	assert.Contains(t, lines[3], "alpha=0.01, max_iter=100")
	assert.NotContains(t, buf.String(), "\x1b[", "no escape codes without highlight")

	// header and rows line up on the second column
	assert.Equal(t, strings.Index(lines[0], "cv rmse"), strings.Index(lines[2], "2.0000"))
}

func TestComparisonBestWithoutTestScores(t *testing.T) {
	c := NewComparison([]metrics.Metric{metrics.RMSEMetric, metrics.R2Metric})
	require.NoError(t, c.Add(fakeResult("a", 3), nil))
	require.NoError(t, c.Add(fakeResult("b", 2), map[string]float64{"rmse": 9}))
	assert.Equal(t, 1, c.Best(), "falls back to cv mean")

	var buf bytes.Buffer
	require.NoError(t, c.Render(&buf, false))
	assert.NotContains(t, buf.String(), "test rmse")
}

func TestComparisonRejectsMismatchedMetrics(t *testing.T) {
	c := NewComparison([]metrics.Metric{metrics.MAEMetric, metrics.R2Metric})
	err := c.Add(fakeResult("a", 1), nil)
	var vErr *errors.ValidationError
	assert.True(t, errors.As(err, &vErr))

	c = NewComparison(metrics.Default())
	err = c.Add(fakeResult("a", 1), nil)
	var dErr *errors.DimensionError
	assert.True(t, errors.As(err, &dErr))
}

func TestCandidateTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, CandidateTable(&buf, fakeResult("lasso", 1), false))
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 6)
	assert.True(t, strings.HasPrefix(lines[2], "* 1"))
	assert.Contains(t, lines[4], "eliminated@0")
	assert.Contains(t, lines[4], "3/5")
	assert.Contains(t, lines[5], "failed")
	assert.Contains(t, lines[5], "-")
}

func TestImportances(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Importances(&buf, []string{"x0", "x1", "x2"}, []float64{0.2, 0.7, 0.1}, false))
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 5)
	assert.True(t, strings.HasPrefix(lines[2], "* x1"))
	assert.Contains(t, lines[3], "x0")
	assert.Contains(t, lines[4], "x2")

	err := Importances(&buf, []string{"x0"}, []float64{0.5, 0.5}, false)
	var dErr *errors.DimensionError
	assert.True(t, errors.As(err, &dErr))
}

func TestMetricSeries(t *testing.T) {
	series, err := MetricSeries(fakeResult("lasso", 1), "alpha")
	require.NoError(t, err)
	require.Len(t, series, 2)
	assert.Len(t, series["max_iter=100"], 2, "the failed candidate is skipped")
	assert.Equal(t, 0.01, series["max_iter=100"][0].X)
	assert.Equal(t, 1.0, series["max_iter=100"][1].X)
	assert.Len(t, series["max_iter=1000"], 1)

	_, err = MetricSeries(fakeResult("lasso", 1), "gamma")
	var vErr *errors.ValidationError
	assert.True(t, errors.As(err, &vErr))
}

func TestPlotMetricWritesPNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alpha.png")
	require.NoError(t, PlotMetric(path, fakeResult("lasso", 1), "alpha"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "\x89PNG", string(raw[:4]))
}
