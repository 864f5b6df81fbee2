package report

import (
	"cmp"
	"fmt"
	"io"
	"math"
	"slices"
	"time"

	"github.com/YuminosukeSato/scitune/metrics"
	"github.com/YuminosukeSato/scitune/pkg/errors"
	"github.com/YuminosukeSato/scitune/sklearn/model_selection"
)

// Row is one tuned family in a model comparison.
type Row struct {
	Family string
	Params string
	// CVMean and CVStd are indexed like Comparison.Metrics.
	CVMean []float64
	CVStd  []float64
	// Test holds held-out scores by metric name; nil when no test set.
	Test    map[string]float64
	Tasks   int
	Elapsed time.Duration
}

// Comparison collects the best candidate of several searches sharing the
// same metrics.
type Comparison struct {
	Metrics []metrics.Metric
	Rows    []Row
}

// NewComparison starts an empty comparison over ms.
func NewComparison(ms []metrics.Metric) *Comparison {
	return &Comparison{Metrics: ms}
}

// Add appends the best candidate of res. test may be nil.
func (c *Comparison) Add(res *model_selection.SearchResult, test map[string]float64) error {
	if len(res.Metrics) != len(c.Metrics) {
		return errors.NewDimensionError("Comparison.Add", len(c.Metrics), len(res.Metrics), 1)
	}
	for i, m := range res.Metrics {
		if m.Name != c.Metrics[i].Name {
			return errors.NewValidationError("metrics", "search metrics differ from comparison metrics", m.Name)
		}
	}
	best := res.Best()
	c.Rows = append(c.Rows, Row{
		Family:  res.Family,
		Params:  res.BestParams.String(),
		CVMean:  slices.Clone(best.Mean),
		CVStd:   slices.Clone(best.Std),
		Test:    test,
		Tasks:   res.Tasks,
		Elapsed: res.Elapsed,
	})
	return nil
}

// Best returns the index of the winning row: by held-out primary metric
// when every row has one, otherwise by cross-validated mean.
func (c *Comparison) Best() int {
	if len(c.Rows) == 0 {
		return -1
	}
	primary := c.Metrics[0]
	score := func(r Row) float64 { return r.CVMean[0] }
	if c.hasTest() {
		score = func(r Row) float64 { return r.Test[primary.Name] }
	}
	best := 0
	for i := 1; i < len(c.Rows); i++ {
		if primary.Better(score(c.Rows[i]), score(c.Rows[best])) {
			best = i
		}
	}
	return best
}

func (c *Comparison) hasTest() bool {
	for _, r := range c.Rows {
		if r.Test == nil {
			return false
		}
		if _, ok := r.Test[c.Metrics[0].Name]; !ok {
			return false
		}
	}
	return len(c.Rows) > 0
}

// Render writes the comparison as an aligned table.
func (c *Comparison) Render(w io.Writer, highlight bool) error {
	t := &table{header: []string{"model"}, best: c.Best()}
	for _, m := range c.Metrics {
		t.header = append(t.header, "cv "+m.Name)
	}
	withTest := c.hasTest()
	if withTest {
		for _, m := range c.Metrics {
			t.header = append(t.header, "test "+m.Name)
		}
	}
	t.header = append(t.header, "fits", "time", "params")

	for _, r := range c.Rows {
		row := []string{r.Family}
		for i := range c.Metrics {
			row = append(row, meanStd(r.CVMean[i], r.CVStd[i]))
		}
		if withTest {
			for _, m := range c.Metrics {
				row = append(row, num(r.Test[m.Name]))
			}
		}
		row = append(row,
			fmt.Sprint(r.Tasks),
			r.Elapsed.Round(time.Millisecond).String(),
			r.Params,
		)
		t.rows = append(t.rows, row)
	}
	return t.render(w, highlight)
}

// CandidateTable writes every candidate of res in rank order.
func CandidateTable(w io.Writer, res *model_selection.SearchResult, highlight bool) error {
	t := &table{header: []string{"rank"}, best: -1}
	for _, m := range res.Metrics {
		t.header = append(t.header, m.Name)
	}
	t.header = append(t.header, "resamples", "status", "params")

	order := make([]int, len(res.Results))
	for i := range order {
		order[i] = i
	}
	slices.SortFunc(order, func(a, b int) int {
		return cmp.Compare(res.Results[a].Rank, res.Results[b].Rank)
	})

	for pos, c := range order {
		r := res.Results[c]
		row := []string{fmt.Sprint(r.Rank)}
		for m := range res.Metrics {
			row = append(row, meanStd(r.Mean[m], r.Std[m]))
		}
		status := "ok"
		switch {
		case r.Failed():
			status = "failed"
		case r.Eliminated:
			status = fmt.Sprintf("eliminated@%d", r.EliminatedAt)
		}
		row = append(row, fmt.Sprintf("%d/%d", r.Successes, res.Budget), status, r.Params.String())
		if c == res.BestIndex {
			t.best = pos
		}
		t.rows = append(t.rows, row)
	}
	return t.render(w, highlight)
}

// Importances writes feature importances in decreasing order.
func Importances(w io.Writer, names []string, importances []float64, highlight bool) error {
	if len(names) != len(importances) {
		return errors.NewDimensionError("report.Importances", len(names), len(importances), 1)
	}
	order := make([]int, len(names))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return cmp.Compare(importances[b], importances[a])
	})

	t := &table{header: []string{"feature", "importance", ""}, best: 0}
	for _, j := range order {
		bar := int(math.Round(importances[j] * 40))
		t.rows = append(t.rows, []string{
			names[j],
			fmt.Sprintf("%.4f", importances[j]),
			bars(bar),
		})
	}
	if len(t.rows) == 0 {
		t.best = -1
	}
	return t.render(w, highlight)
}

func bars(n int) string {
	out := make([]rune, max(n, 0))
	for i := range out {
		out[i] = '█'
	}
	return string(out)
}

func num(v float64) string {
	if math.IsNaN(v) {
		return "-"
	}
	return fmt.Sprintf("%.4f", v)
}

func meanStd(mean, std float64) string {
	if math.IsNaN(mean) {
		return "-"
	}
	return fmt.Sprintf("%.4f ± %.4f", mean, std)
}
