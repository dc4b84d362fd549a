package tree

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

// buildTinyTree mirrors scenario A (spec §8): a single split on feature 0
// at threshold 1.5, left leaf value -1, right leaf value 1.
func buildTinyTree() *Tree {
	t := NewTree(0)
	t.Split(0, 0, 1, 1.5, true, -1, 1, 2, 2, 0.5)
	return t
}

func TestTreePredictRoutesLeftAndRight(t *testing.T) {
	tr := buildTinyTree()
	assert.Equal(t, -1.0, tr.Predict([]float64{0}))
	assert.Equal(t, -1.0, tr.Predict([]float64{1}))
	assert.Equal(t, 1.0, tr.Predict([]float64{2}))
}

func TestTreePredictMissingFollowsDefaultLeft(t *testing.T) {
	tr := buildTinyTree()
	assert.Equal(t, -1.0, tr.Predict([]float64{math.NaN()}))
}

func TestTreeScaleRoundTrip(t *testing.T) {
	tr := buildTinyTree()
	before := append([]float64(nil), tr.LeafValue...)

	tr.Scale(0.1)
	tr.Scale(-1)
	tr.Scale(-10)

	for i, v := range tr.LeafValue {
		assert.InDelta(t, before[i], v, 1e-12)
	}
}

func TestTreeCloneIsIndependent(t *testing.T) {
	tr := buildTinyTree()
	c := tr.Clone()
	c.Scale(2)

	assert.NotEqual(t, tr.LeafValue[0], c.LeafValue[0])
}

func TestTreeSplitPartitionsAllLeaves(t *testing.T) {
	tr := NewTree(0)
	_, left, right := tr.Split(0, 0, 10, 5, true, -1, 1, 3, 3, 1)
	assert.Equal(t, 0, left)
	assert.Equal(t, 1, right)
	assert.Equal(t, 2, tr.NumLeaves)

	_, left2, right2 := tr.Split(right, 1, 2, 2.5, false, 0.5, 1.5, 1, 2, 0.3)
	assert.Equal(t, right, left2)
	assert.Equal(t, 2, right2)
	assert.Equal(t, 3, tr.NumLeaves)
	assert.Len(t, tr.LeafValue, 3)
}

func TestTreeRefitPreservesStructure(t *testing.T) {
	tr := buildTinyTree()
	splitBefore := append([]int32(nil), tr.SplitFeature...)

	tr.Refit([]float64{-4, 8}, []float64{2, 2}, 0)

	assert.Equal(t, splitBefore, tr.SplitFeature)
	assert.InDelta(t, 2.0, tr.LeafValue[0], 1e-9)
	assert.InDelta(t, -4.0, tr.LeafValue[1], 1e-9)
}
