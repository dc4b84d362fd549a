package partition

import (
	"testing"

	"github.com/go-gbdt/gbdt/internal/binning"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func denseBinWithValues(bins []uint32) *binning.DenseBin {
	b := binning.NewDenseBin(len(bins), 4)
	for i, v := range bins {
		b.Push(i, v)
	}
	b.FinishLoad()
	return b
}

// TestSplitPartitionsAllLeaves verifies spec §8 property 3 (totality): every
// row is owned by exactly one leaf after a split, and counts sum to N.
func TestSplitPartitionsAllLeaves(t *testing.T) {
	p := Init(6, nil, 2)
	bin := denseBinWithValues([]uint32{0, 1, 2, 0, 1, 2})

	right := p.Split(0, bin, 1, 0, true)
	assert.True(t, p.Totality(6))
	assert.Equal(t, p.LeafCount(0)+p.LeafCount(right), 6)
}

func TestSplitRoutesByThreshold(t *testing.T) {
	p := Init(4, nil, 1)
	bin := denseBinWithValues([]uint32{0, 1, 2, 3})

	right := p.Split(0, bin, 1, 0, true) // bin <= 1 goes left
	leftRows := p.LeafRows(0)
	rightRows := p.LeafRows(right)

	assert.ElementsMatch(t, []int{0, 1}, leftRows)
	assert.ElementsMatch(t, []int{2, 3}, rightRows)
}

func TestInitRespectsUsedIndices(t *testing.T) {
	p := Init(10, []int{2, 4, 6}, 1)
	assert.Equal(t, 1, p.NumLeaves())
	assert.ElementsMatch(t, []int{2, 4, 6}, p.LeafRows(0))
}

func TestSplitIsParallelSafeAcrossChunks(t *testing.T) {
	n := 1000
	bins := make([]uint32, n)
	for i := range bins {
		bins[i] = uint32(i % 4)
	}
	p := Init(n, nil, 8)
	bin := denseBinWithValues(bins)

	right := p.Split(0, bin, 1, 0, true)
	require.True(t, p.Totality(n))
	assert.Equal(t, n/2, p.LeafCount(0)) // bins 0,1 -> left (500), bins 2,3 -> right (500)
	assert.Equal(t, n/2, p.LeafCount(right))
}
