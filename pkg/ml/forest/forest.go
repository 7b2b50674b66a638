// Package forest implements a bagged ensemble of CART decision trees for
// binary and multi-class classification over dense float features.
package forest

import (
	"errors"
	"math"
	"math/rand"
	"sort"
)

type Options struct {
	Trees           int
	MaxDepth        int // 0 grows until leaves are pure
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     int // 0 uses sqrt(features)
	Seed            int64
}

// Node is a flattened tree node. Leaves have Feature == -1 and carry the
// class distribution of the training samples that reached them.
type Node struct {
	Feature   int       `json:"f"`
	Threshold float64   `json:"t,omitempty"`
	Left      int       `json:"l,omitempty"`
	Right     int       `json:"r,omitempty"`
	Proba     []float64 `json:"p,omitempty"`
}

type Tree struct {
	Nodes []Node `json:"nodes"`
}

type Forest struct {
	Classes  int    `json:"classes"`
	Features int    `json:"features"`
	Trees    []Tree `json:"trees"`
}

func Train(samples [][]float64, labels []int, classes int, opts Options) (*Forest, error) {
	if len(samples) == 0 {
		return nil, errors.New("no training samples")
	}
	if len(samples) != len(labels) {
		return nil, errors.New("samples and labels differ in length")
	}
	if classes < 2 {
		classes = 2
	}
	for _, y := range labels {
		if y < 0 || y >= classes {
			return nil, errors.New("label out of range")
		}
	}
	if opts.Trees <= 0 {
		opts.Trees = 100
	}
	if opts.MinSamplesSplit < 2 {
		opts.MinSamplesSplit = 2
	}
	if opts.MinSamplesLeaf < 1 {
		opts.MinSamplesLeaf = 1
	}
	features := len(samples[0])
	if features == 0 {
		return nil, errors.New("samples have no features")
	}
	if opts.MaxFeatures <= 0 || opts.MaxFeatures > features {
		opts.MaxFeatures = int(math.Max(1, math.Floor(math.Sqrt(float64(features)))))
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	f := &Forest{Classes: classes, Features: features, Trees: make([]Tree, 0, opts.Trees)}
	n := len(samples)
	for t := 0; t < opts.Trees; t++ {
		idx := make([]int, n)
		for i := range idx {
			idx[i] = rng.Intn(n)
		}
		b := &builder{
			x:       samples,
			y:       labels,
			classes: classes,
			opts:    opts,
			rng:     rand.New(rand.NewSource(rng.Int63())),
		}
		b.build(idx, 0)
		f.Trees = append(f.Trees, Tree{Nodes: b.nodes})
	}
	return f, nil
}

// PredictProba averages the leaf class distributions of every tree.
func (f *Forest) PredictProba(x []float64) []float64 {
	classes := f.Classes
	if classes < 2 {
		classes = 2
	}
	out := make([]float64, classes)
	if len(f.Trees) == 0 {
		for i := range out {
			out[i] = 1 / float64(classes)
		}
		return out
	}
	for _, t := range f.Trees {
		for c, p := range t.leaf(x) {
			if c < classes {
				out[c] += p
			}
		}
	}
	for c := range out {
		out[c] /= float64(len(f.Trees))
	}
	return out
}

// Validate checks node references against the feature width.
func (f *Forest) Validate(width int) error {
	if f.Features != width {
		return errors.New("forest feature width does not match preprocessor")
	}
	for _, t := range f.Trees {
		if len(t.Nodes) == 0 {
			return errors.New("empty tree")
		}
		for i, n := range t.Nodes {
			if n.Feature < 0 {
				if len(n.Proba) != f.Classes {
					return errors.New("leaf distribution does not match class count")
				}
				continue
			}
			// children follow their parent, so trees are acyclic
			if n.Feature >= width || n.Left <= i || n.Right <= i || n.Left >= len(t.Nodes) || n.Right >= len(t.Nodes) {
				return errors.New("malformed split node")
			}
		}
	}
	return nil
}

func (t Tree) leaf(x []float64) []float64 {
	i := 0
	for {
		n := t.Nodes[i]
		if n.Feature < 0 {
			return n.Proba
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

type builder struct {
	x       [][]float64
	y       []int
	classes int
	opts    Options
	rng     *rand.Rand
	nodes   []Node
}

func (b *builder) build(idx []int, depth int) int {
	counts := b.counts(idx)
	id := len(b.nodes)
	b.nodes = append(b.nodes, Node{Feature: -1})

	if (b.opts.MaxDepth > 0 && depth >= b.opts.MaxDepth) || len(idx) < b.opts.MinSamplesSplit || pure(counts) {
		b.nodes[id].Proba = distribution(counts, len(idx))
		return id
	}

	feature, threshold, ok := b.bestSplit(idx, counts)
	if !ok {
		b.nodes[id].Proba = distribution(counts, len(idx))
		return id
	}

	var left, right []int
	for _, i := range idx {
		if b.x[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	l := b.build(left, depth+1)
	r := b.build(right, depth+1)
	b.nodes[id] = Node{Feature: feature, Threshold: threshold, Left: l, Right: r}
	return id
}

func (b *builder) bestSplit(idx []int, counts []int) (int, float64, bool) {
	n := len(idx)
	best := gini(counts, n)
	bestFeature, bestThreshold, found := -1, 0.0, false

	sorted := make([]int, n)
	leftCounts := make([]int, b.classes)
	rightCounts := make([]int, b.classes)

	// constant features do not count towards MaxFeatures, so a node only
	// becomes a leaf early when no feature can split it
	visited := 0
	for _, feature := range b.rng.Perm(len(b.x[0])) {
		if visited >= b.opts.MaxFeatures {
			break
		}
		if b.constant(idx, feature) {
			continue
		}
		visited++

		copy(sorted, idx)
		sort.Slice(sorted, func(i, j int) bool { return b.x[sorted[i]][feature] < b.x[sorted[j]][feature] })

		for c := range leftCounts {
			leftCounts[c] = 0
			rightCounts[c] = counts[c]
		}
		for i := 0; i < n-1; i++ {
			y := b.y[sorted[i]]
			leftCounts[y]++
			rightCounts[y]--

			lv, rv := b.x[sorted[i]][feature], b.x[sorted[i+1]][feature]
			if lv == rv {
				continue
			}
			nl, nr := i+1, n-i-1
			if nl < b.opts.MinSamplesLeaf || nr < b.opts.MinSamplesLeaf {
				continue
			}
			impurity := (float64(nl)*gini(leftCounts, nl) + float64(nr)*gini(rightCounts, nr)) / float64(n)
			if impurity < best-1e-12 {
				best = impurity
				bestFeature = feature
				bestThreshold = lv + (rv-lv)/2
				found = true
			}
		}
	}
	return bestFeature, bestThreshold, found
}

func (b *builder) constant(idx []int, feature int) bool {
	first := b.x[idx[0]][feature]
	for _, i := range idx[1:] {
		if b.x[i][feature] != first {
			return false
		}
	}
	return true
}

func (b *builder) counts(idx []int) []int {
	out := make([]int, b.classes)
	for _, i := range idx {
		out[b.y[i]]++
	}
	return out
}

func gini(counts []int, n int) float64 {
	if n == 0 {
		return 0
	}
	g := 1.0
	for _, c := range counts {
		p := float64(c) / float64(n)
		g -= p * p
	}
	return g
}

func pure(counts []int) bool {
	nonZero := 0
	for _, c := range counts {
		if c > 0 {
			nonZero++
		}
	}
	return nonZero <= 1
}

func distribution(counts []int, n int) []float64 {
	out := make([]float64, len(counts))
	if n == 0 {
		return out
	}
	for c, v := range counts {
		out[c] = float64(v) / float64(n)
	}
	return out
}
