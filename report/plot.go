package report

import (
	"cmp"
	"maps"
	"math"
	"slices"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/scitune/pkg/errors"
	"github.com/YuminosukeSato/scitune/sklearn/model_selection"
)

// MetricSeries groups the mean primary score of every successful candidate
// by the values of all parameters other than param. Each series is sorted
// by param.
func MetricSeries(res *model_selection.SearchResult, param string) (map[string]plotter.XYs, error) {
	series := map[string]plotter.XYs{}
	for _, c := range res.Results {
		x, ok := c.Params[param]
		if !ok {
			return nil, errors.NewValidationError("param", "not a hyperparameter of "+res.Family, param)
		}
		if c.Failed() || math.IsNaN(c.Mean[0]) {
			continue
		}
		rest := c.Params.Clone()
		delete(rest, param)
		label := rest.String()
		if label == "" {
			label = res.Family
		}
		series[label] = append(series[label], plotter.XY{X: x, Y: c.Mean[0]})
	}
	if len(series) == 0 {
		return nil, errors.NewValueError("report.MetricSeries", "no successful candidates to plot")
	}
	for _, pts := range series {
		slices.SortFunc(pts, func(a, b plotter.XY) int { return cmp.Compare(a.X, b.X) })
	}
	return series, nil
}

// PlotMetric saves a line chart of mean primary metric against param. The
// image format follows the file extension (png, svg, pdf).
func PlotMetric(path string, res *model_selection.SearchResult, param string) error {
	series, err := MetricSeries(res, param)
	if err != nil {
		return err
	}

	p := plot.New()
	p.Title.Text = res.Family
	p.X.Label.Text = param
	p.Y.Label.Text = "cv " + res.Metrics[0].Name
	if spansDecades(series) {
		p.X.Scale = plot.LogScale{}
		p.X.Tick.Marker = plot.LogTicks{Prec: -1}
	}

	var lines []interface{}
	for _, label := range slices.Sorted(maps.Keys(series)) {
		lines = append(lines, label, series[label])
	}
	if err := plotutil.AddLinePoints(p, lines...); err != nil {
		return errors.Wrap(err, "report.PlotMetric")
	}
	if err := p.Save(8*vg.Inch, 4*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "report.PlotMetric: save %s", path)
	}
	return nil
}

// spansDecades reports whether all x values are positive and cover more
// than two orders of magnitude, as in a log-spaced alpha grid.
func spansDecades(series map[string]plotter.XYs) bool {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, pts := range series {
		for _, pt := range pts {
			lo, hi = math.Min(lo, pt.X), math.Max(hi, pt.X)
		}
	}
	return lo > 0 && hi/lo > 100
}
