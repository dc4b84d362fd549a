// Package tree implements the Tree node table: traversal (predict, leaf
// index), growth (splitting a leaf into an internal node), scaling, and
// text (de)serialisation (§3, §4.11, §6 model format).
package tree

import "math"

// Tree is an additive regression tree: NumLeaves leaves connected by
// NumLeaves-1 internal (split) nodes. Child references use LightGBM's own
// convention: a non-negative child index names another internal node; a
// negative child index c names leaf ~c (i.e. -(c)-1).
type Tree struct {
	NumLeaves int

	// Internal node arrays, length NumLeaves-1, indexed by internal node id.
	SplitFeature  []int32
	Threshold     []float64 // real-valued split threshold
	ThresholdBin  []uint32  // bin-valued split threshold (training-time only)
	DefaultLeft   []bool
	LeftChild     []int32
	RightChild    []int32
	InternalValue []float64 // predicted value if traversal stopped here
	InternalCount []int32
	Gain          []float64 // split gain, for feature importance

	// Leaf arrays, length NumLeaves.
	LeafValue []float64
	LeafCount []int32

	ShrinkageApplied float64 // cumulative scale factor, for diagnostics only
}

// NewTree starts a single-leaf tree with the given root value.
func NewTree(rootValue float64) *Tree {
	return &Tree{
		NumLeaves:        1,
		LeafValue:        []float64{rootValue},
		LeafCount:        []int32{0},
		ShrinkageApplied: 1,
	}
}

// leafChildRef encodes leaf index i as a child reference.
func leafChildRef(i int) int32 { return int32(-(i + 1)) }

// isLeafRef reports whether a child reference points at a leaf, and if so
// which one.
func isLeafRef(ref int32) (leaf int, ok bool) {
	if ref < 0 {
		return int(-ref - 1), true
	}
	return 0, false
}

// Split replaces leaf with an internal node, producing two new leaves
// (left reuses leaf's slot, right is appended). Returns (newNodeID,
// leftLeaf, rightLeaf) where leftLeaf == leaf.
func (t *Tree) Split(leaf int, feature int32, thresholdBin uint32, thresholdReal float64, defaultLeft bool,
	leftValue, rightValue float64, leftCount, rightCount int32, gain float64) (internalNode, leftLeaf, rightLeaf int) {

	internalNode = len(t.SplitFeature)
	newLeaf := t.NumLeaves // the right child's leaf id

	t.SplitFeature = append(t.SplitFeature, feature)
	t.Threshold = append(t.Threshold, thresholdReal)
	t.ThresholdBin = append(t.ThresholdBin, thresholdBin)
	t.DefaultLeft = append(t.DefaultLeft, defaultLeft)
	t.InternalValue = append(t.InternalValue, t.LeafValue[leaf])
	t.InternalCount = append(t.InternalCount, leftCount+rightCount)
	t.Gain = append(t.Gain, gain)
	t.LeftChild = append(t.LeftChild, leafChildRef(leaf))
	t.RightChild = append(t.RightChild, leafChildRef(newLeaf))

	// Whichever internal node previously referenced `leaf` as a child must
	// now point at this new internal node instead.
	for i := 0; i < internalNode; i++ {
		if l, ok := isLeafRef(t.LeftChild[i]); ok && l == leaf {
			t.LeftChild[i] = int32(internalNode)
		}
		if l, ok := isLeafRef(t.RightChild[i]); ok && l == leaf {
			t.RightChild[i] = int32(internalNode)
		}
	}

	t.LeafValue[leaf] = leftValue
	t.LeafCount[leaf] = leftCount
	t.LeafValue = append(t.LeafValue, rightValue)
	t.LeafCount = append(t.LeafCount, rightCount)
	t.NumLeaves++

	return internalNode, leaf, newLeaf
}

// rootRef returns the child-reference form of the tree's root: node 0 if
// any internal nodes exist, else the sole leaf.
func (t *Tree) rootRef() int32 {
	if len(t.SplitFeature) == 0 {
		return leafChildRef(0)
	}
	return 0
}

// Predict returns the leaf value reached by row (indexed by original
// feature index, not bin). A NaN feature value follows DefaultLeft
// (§4.11).
func (t *Tree) Predict(row []float64) float64 {
	return t.LeafValue[t.PredictLeafIndex(row)]
}

// PredictLeafIndex returns the id of the leaf reached by row.
func (t *Tree) PredictLeafIndex(row []float64) int {
	ref := t.rootRef()
	for {
		if leaf, ok := isLeafRef(ref); ok {
			return leaf
		}
		node := ref
		x := math.NaN()
		f := int(t.SplitFeature[node])
		if f >= 0 && f < len(row) {
			x = row[f]
		}
		goLeft := false
		if math.IsNaN(x) {
			goLeft = t.DefaultLeft[node]
		} else {
			goLeft = x <= t.Threshold[node]
		}
		if goLeft {
			ref = t.LeftChild[node]
		} else {
			ref = t.RightChild[node]
		}
	}
}

// PredictContrib returns a Saabas-style per-feature contribution vector
// (length numFeatures) plus the bias (root value): the sum of a feature's
// contribution across the decision path equals leaf_value - root_value
// (§ SPEC_FULL supplemented features — predict_contrib).
func (t *Tree) PredictContrib(row []float64, numFeatures int) (contrib []float64, bias float64) {
	contrib = make([]float64, numFeatures)
	if len(t.SplitFeature) == 0 {
		return contrib, t.LeafValue[0]
	}
	bias = t.InternalValue[0]
	ref := t.rootRef()
	prevValue := bias
	for {
		if leaf, ok := isLeafRef(ref); ok {
			// Single-node tree: no splits, nothing to attribute.
			return contrib, t.LeafValue[leaf]
		}
		node := ref
		f := int(t.SplitFeature[node])
		x := math.NaN()
		if f >= 0 && f < len(row) {
			x = row[f]
		}
		goLeft := false
		if math.IsNaN(x) {
			goLeft = t.DefaultLeft[node]
		} else {
			goLeft = x <= t.Threshold[node]
		}
		var nextRef int32
		if goLeft {
			nextRef = t.LeftChild[node]
		} else {
			nextRef = t.RightChild[node]
		}
		var nextValue float64
		leaf, atLeaf := isLeafRef(nextRef)
		if atLeaf {
			nextValue = t.LeafValue[leaf]
		} else {
			nextValue = t.InternalValue[nextRef]
		}
		if f >= 0 && f < numFeatures {
			contrib[f] += nextValue - prevValue
		}
		prevValue = nextValue
		if atLeaf {
			return contrib, bias
		}
		ref = nextRef
	}
}

// Scale multiplies every leaf value (and internal bookkeeping value) by
// factor, used for learning-rate shrinkage and DART's tree dropping
// (§4.9 step 2, §4.10, §8 property 7: scales whose factors multiply to 1,
// such as 0.1, -1 and -10, restore the original tree to within 1e-12).
func (t *Tree) Scale(factor float64) {
	for i := range t.LeafValue {
		t.LeafValue[i] *= factor
	}
	for i := range t.InternalValue {
		t.InternalValue[i] *= factor
	}
	t.ShrinkageApplied *= factor
}

// Clone deep-copies the tree, so the copy can be scaled or refit without
// changing the original.
func (t *Tree) Clone() *Tree {
	c := *t
	c.SplitFeature = append([]int32(nil), t.SplitFeature...)
	c.Threshold = append([]float64(nil), t.Threshold...)
	c.ThresholdBin = append([]uint32(nil), t.ThresholdBin...)
	c.DefaultLeft = append([]bool(nil), t.DefaultLeft...)
	c.LeftChild = append([]int32(nil), t.LeftChild...)
	c.RightChild = append([]int32(nil), t.RightChild...)
	c.InternalValue = append([]float64(nil), t.InternalValue...)
	c.InternalCount = append([]int32(nil), t.InternalCount...)
	c.Gain = append([]float64(nil), t.Gain...)
	c.LeafValue = append([]float64(nil), t.LeafValue...)
	c.LeafCount = append([]int32(nil), t.LeafCount...)
	return &c
}

// Refit recomputes every leaf's value from fresh (sum_gradient, sum_hessian)
// pairs without altering the tree's structure (split features/thresholds
// untouched) — LightGBM's RefitTree, useful for continued training against
// a different objective (SPEC_FULL supplemented features).
func (t *Tree) Refit(leafSumGrad, leafSumHess []float64, l2 float64) {
	for leaf := 0; leaf < t.NumLeaves; leaf++ {
		t.LeafValue[leaf] = -leafSumGrad[leaf] / (leafSumHess[leaf] + l2)
	}
}
