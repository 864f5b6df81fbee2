// Package tree provides a CART-style regression tree. The split search
// works on per-sample gradients and hessians, so the same grower serves
// plain regression (gradient −y, hessian 1) and gradient boosting.
package tree

import (
	"math"
	"math/rand/v2"
	"slices"

	"gonum.org/v1/gonum/mat"
)

// Node is one node of a grown tree. Leaves have Left == Right == -1.
type Node struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Value     float64
	Gain      float64
	NSamples  int
}

// IsLeaf reports whether the node has no children.
func (n Node) IsLeaf() bool { return n.Left < 0 }

// Tree is a flat slice of nodes with the root at index 0.
type Tree struct {
	Nodes     []Node
	NFeatures int
}

// Config controls tree growth.
type Config struct {
	// MaxDepth limits depth; 0 means unlimited.
	MaxDepth int
	// MinSamplesSplit is the minimum node size eligible for a split.
	MinSamplesSplit int
	// MinSamplesLeaf is the minimum number of samples in each child.
	MinSamplesLeaf int
	// MaxFeatures is the number of features tried per split; 0 means all.
	MaxFeatures int
	// Lambda is the L2 penalty on leaf values.
	Lambda float64
}

func (c Config) withDefaults(nFeatures int) Config {
	if c.MinSamplesLeaf < 1 {
		c.MinSamplesLeaf = 1
	}
	if c.MinSamplesSplit < 2 {
		c.MinSamplesSplit = 2
	}
	if c.MaxFeatures <= 0 || c.MaxFeatures > nFeatures {
		c.MaxFeatures = nFeatures
	}
	return c
}

type grower struct {
	X        mat.Matrix
	grad     []float64
	hess     []float64
	cfg      Config
	rng      *rand.Rand
	features []int
	nodes    []Node
}

type splitInfo struct {
	feature   int
	threshold float64
	gain      float64
}

// Grow fits a tree to the given rows of X. grad and hess are indexed by
// row of X. rng is only used when cfg.MaxFeatures is below the number of
// features and may otherwise be nil.
func Grow(X mat.Matrix, grad, hess []float64, rows []int, cfg Config, rng *rand.Rand) *Tree {
	_, p := X.Dims()
	g := &grower{
		X:        X,
		grad:     grad,
		hess:     hess,
		cfg:      cfg.withDefaults(p),
		rng:      rng,
		features: make([]int, p),
	}
	for j := range g.features {
		g.features[j] = j
	}
	g.build(slices.Clone(rows), 0)
	return &Tree{Nodes: g.nodes, NFeatures: p}
}

func (g *grower) sums(rows []int) (sumGrad, sumHess float64) {
	for _, r := range rows {
		sumGrad += g.grad[r]
		sumHess += g.hess[r]
	}
	return sumGrad, sumHess
}

// leafValue is the L2-regularised Newton step −G/(H+λ).
func (g *grower) leafValue(sumGrad, sumHess float64) float64 {
	denom := sumHess + g.cfg.Lambda
	if denom < 1e-10 {
		denom = 1e-10
	}
	return -sumGrad / denom
}

func (g *grower) splitGain(lg, lh, rg, rh, tg, th float64) float64 {
	lambda := g.cfg.Lambda
	return 0.5 * (lg*lg/(lh+lambda) + rg*rg/(rh+lambda) - tg*tg/(th+lambda))
}

func (g *grower) build(rows []int, depth int) int {
	sumGrad, sumHess := g.sums(rows)
	id := len(g.nodes)
	g.nodes = append(g.nodes, Node{
		Feature:  -1,
		Left:     -1,
		Right:    -1,
		Value:    g.leafValue(sumGrad, sumHess),
		NSamples: len(rows),
	})

	if len(rows) < g.cfg.MinSamplesSplit || len(rows) < 2*g.cfg.MinSamplesLeaf {
		return id
	}
	if g.cfg.MaxDepth > 0 && depth >= g.cfg.MaxDepth {
		return id
	}

	best := splitInfo{feature: -1}
	for _, f := range g.candidateFeatures() {
		s := g.bestSplitForFeature(rows, f, sumGrad, sumHess)
		if s.feature >= 0 && (best.feature < 0 || s.gain > best.gain) {
			best = s
		}
	}
	if best.feature < 0 || best.gain <= 1e-12 {
		return id
	}

	var left, right []int
	for _, r := range rows {
		if g.X.At(r, best.feature) <= best.threshold {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}

	l := g.build(left, depth+1)
	r := g.build(right, depth+1)
	n := &g.nodes[id]
	n.Feature = best.feature
	n.Threshold = best.threshold
	n.Gain = best.gain
	n.Left = l
	n.Right = r
	return id
}

// candidateFeatures returns MaxFeatures features without replacement.
func (g *grower) candidateFeatures() []int {
	if g.cfg.MaxFeatures >= len(g.features) || g.rng == nil {
		return g.features
	}
	g.rng.Shuffle(len(g.features), func(i, j int) {
		g.features[i], g.features[j] = g.features[j], g.features[i]
	})
	return g.features[:g.cfg.MaxFeatures]
}

func (g *grower) bestSplitForFeature(rows []int, feature int, totalGrad, totalHess float64) splitInfo {
	type entry struct {
		value float64
		row   int
	}
	values := make([]entry, len(rows))
	for i, r := range rows {
		values[i] = entry{value: g.X.At(r, feature), row: r}
	}
	slices.SortFunc(values, func(a, b entry) int {
		switch {
		case a.value < b.value:
			return -1
		case a.value > b.value:
			return 1
		default:
			return a.row - b.row
		}
	})

	best := splitInfo{feature: -1, gain: math.Inf(-1)}
	var leftGrad, leftHess float64
	minLeaf := g.cfg.MinSamplesLeaf
	for i := 0; i < len(values)-1; i++ {
		leftGrad += g.grad[values[i].row]
		leftHess += g.hess[values[i].row]
		nLeft := i + 1
		if nLeft < minLeaf || len(values)-nLeft < minLeaf {
			continue
		}
		if values[i].value == values[i+1].value {
			continue
		}
		gain := g.splitGain(leftGrad, leftHess, totalGrad-leftGrad, totalHess-leftHess, totalGrad, totalHess)
		if gain > best.gain {
			best = splitInfo{
				feature:   feature,
				threshold: (values[i].value + values[i+1].value) / 2,
				gain:      gain,
			}
		}
	}
	return best
}

// PredictRow walks the tree for one sample.
func (t *Tree) PredictRow(row []float64) float64 {
	i := 0
	for {
		n := t.Nodes[i]
		if n.IsLeaf() {
			return n.Value
		}
		if row[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// Depth returns the length of the longest root-to-leaf path.
func (t *Tree) Depth() int {
	var walk func(i int) int
	walk = func(i int) int {
		n := t.Nodes[i]
		if n.IsLeaf() {
			return 0
		}
		return 1 + max(walk(n.Left), walk(n.Right))
	}
	if len(t.Nodes) == 0 {
		return 0
	}
	return walk(0)
}

// NumLeaves counts leaf nodes.
func (t *Tree) NumLeaves() int {
	c := 0
	for _, n := range t.Nodes {
		if n.IsLeaf() {
			c++
		}
	}
	return c
}

// GainImportances returns the total split gain per feature, unnormalised.
func (t *Tree) GainImportances() []float64 {
	imp := make([]float64, t.NFeatures)
	for _, n := range t.Nodes {
		if !n.IsLeaf() {
			imp[n.Feature] += n.Gain
		}
	}
	return imp
}

// Normalize scales v in place to sum to 1. An all-zero slice is left as is.
func Normalize(v []float64) []float64 {
	var sum float64
	for _, x := range v {
		sum += x
	}
	if sum > 0 {
		for i := range v {
			v[i] /= sum
		}
	}
	return v
}
