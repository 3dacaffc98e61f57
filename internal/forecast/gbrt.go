package forecast

import (
	"context"
	"errors"
	"sort"
)

// GBRTConfig parameterises the gradient-boosted regression tree ensemble.
type GBRTConfig struct {
	Trees          int
	MaxDepth       int
	LearningRate   float64
	MinSamplesLeaf int
}

// DefaultGBRTConfig returns the ensemble used by the lag model.
func DefaultGBRTConfig() GBRTConfig {
	return GBRTConfig{
		Trees:          300,
		MaxDepth:       3,
		LearningRate:   0.05,
		MinSamplesLeaf: 1,
	}
}

var errEmptyTrainingSet = errors.New("gbrt: empty training set")

// GradientBoostedRegressor fits an additive ensemble of shallow regression
// trees under squared-error loss. Training is deterministic.
type GradientBoostedRegressor struct {
	cfg   GBRTConfig
	base  float64
	trees []regressionTree
}

// NewGradientBoostedRegressor creates an unfitted model.
func NewGradientBoostedRegressor(cfg GBRTConfig) *GradientBoostedRegressor {
	if cfg.Trees < 1 {
		cfg.Trees = 1
	}
	if cfg.MaxDepth < 1 {
		cfg.MaxDepth = 1
	}
	if cfg.LearningRate <= 0 {
		cfg.LearningRate = 0.1
	}
	if cfg.MinSamplesLeaf < 1 {
		cfg.MinSamplesLeaf = 1
	}
	return &GradientBoostedRegressor{cfg: cfg}
}

// Fit trains the ensemble. ctx is checked between boosting stages so a
// deadline aborts training; the model must not be used after an error.
func (m *GradientBoostedRegressor) Fit(ctx context.Context, x [][]float64, y []float64) error {
	if len(x) == 0 || len(x) != len(y) {
		return errEmptyTrainingSet
	}

	m.base = mean(y)
	m.trees = make([]regressionTree, 0, m.cfg.Trees)

	current := make([]float64, len(y))
	for i := range current {
		current[i] = m.base
	}
	residuals := make([]float64, len(y))

	for stage := 0; stage < m.cfg.Trees; stage++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		for i := range y {
			residuals[i] = y[i] - current[i]
		}
		tree := growTree(x, residuals, m.cfg.MaxDepth, m.cfg.MinSamplesLeaf)
		for i := range current {
			current[i] += m.cfg.LearningRate * tree.predict(x[i])
		}
		m.trees = append(m.trees, tree)
	}
	return nil
}

// Predict returns the ensemble estimate for one feature row.
func (m *GradientBoostedRegressor) Predict(row []float64) float64 {
	out := m.base
	for i := range m.trees {
		out += m.cfg.LearningRate * m.trees[i].predict(row)
	}
	return out
}

type treeNode struct {
	leaf      bool
	value     float64
	feature   int
	threshold float64
	left      int
	right     int
}

type regressionTree struct {
	nodes []treeNode
}

func (t regressionTree) predict(row []float64) float64 {
	i := 0
	for {
		n := t.nodes[i]
		if n.leaf {
			return n.value
		}
		if row[n.feature] <= n.threshold {
			i = n.left
		} else {
			i = n.right
		}
	}
}

type treeBuilder struct {
	x        [][]float64
	target   []float64
	maxDepth int
	minLeaf  int
	nodes    []treeNode
}

func growTree(x [][]float64, target []float64, maxDepth, minLeaf int) regressionTree {
	b := &treeBuilder{x: x, target: target, maxDepth: maxDepth, minLeaf: minLeaf}
	idx := make([]int, len(target))
	for i := range idx {
		idx[i] = i
	}
	b.grow(idx, 0)
	return regressionTree{nodes: b.nodes}
}

// grow appends the subtree for idx and returns its root position.
func (b *treeBuilder) grow(idx []int, depth int) int {
	var sum float64
	for _, i := range idx {
		sum += b.target[i]
	}
	pos := len(b.nodes)
	b.nodes = append(b.nodes, treeNode{leaf: true, value: sum / float64(len(idx))})

	if depth >= b.maxDepth || len(idx) < 2*b.minLeaf {
		return pos
	}

	feature, threshold, ok := b.bestSplit(idx, sum)
	if !ok {
		return pos
	}

	var left, right []int
	for _, i := range idx {
		if b.x[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.nodes[pos] = treeNode{feature: feature, threshold: threshold, left: l, right: r}
	return pos
}

// bestSplit finds the split with the largest reduction in squared error.
// Only splits between distinct feature values are considered.
func (b *treeBuilder) bestSplit(idx []int, total float64) (int, float64, bool) {
	n := len(idx)
	parentScore := total * total / float64(n)

	bestGain := 0.0
	bestFeature := -1
	var bestThreshold float64

	sorted := make([]int, n)
	features := len(b.x[idx[0]])
	for f := 0; f < features; f++ {
		copy(sorted, idx)
		sort.SliceStable(sorted, func(a, c int) bool {
			return b.x[sorted[a]][f] < b.x[sorted[c]][f]
		})

		var leftSum float64
		for k := 1; k < n; k++ {
			leftSum += b.target[sorted[k-1]]
			if k < b.minLeaf || n-k < b.minLeaf {
				continue
			}
			lo, hi := b.x[sorted[k-1]][f], b.x[sorted[k]][f]
			if lo == hi {
				continue
			}
			rightSum := total - leftSum
			score := leftSum*leftSum/float64(k) + rightSum*rightSum/float64(n-k)
			gain := score - parentScore
			if gain > bestGain+1e-12 {
				bestGain = gain
				bestFeature = f
				bestThreshold = lo + (hi-lo)/2
			}
		}
	}

	if bestFeature < 0 {
		return 0, 0, false
	}
	return bestFeature, bestThreshold, true
}
