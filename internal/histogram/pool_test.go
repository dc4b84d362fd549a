package histogram

import (
	"testing"

	"github.com/go-gbdt/gbdt/internal/binning"
	"github.com/stretchr/testify/assert"
)

// TestSubtractTrick verifies spec §8 property 4: a sibling's histogram plus
// the subtraction-trick result must reconstruct the parent's.
func TestSubtractTrick(t *testing.T) {
	parent := NewFeatureSet([]int{2})
	parent[0][0] = binning.HistogramEntry{SumGradient: 5, SumHessian: 3, Count: 4}
	parent[0][1] = binning.HistogramEntry{SumGradient: 2, SumHessian: 1, Count: 2}

	sibling := NewFeatureSet([]int{2})
	sibling[0][0] = binning.HistogramEntry{SumGradient: 2, SumHessian: 1, Count: 1}
	sibling[0][1] = binning.HistogramEntry{SumGradient: 1, SumHessian: 0.5, Count: 1}

	dst := NewFeatureSet([]int{2})
	Subtract(dst, parent, sibling)

	for b := 0; b < 2; b++ {
		reconstructed := binning.HistogramEntry{
			SumGradient: dst[0][b].SumGradient + sibling[0][b].SumGradient,
			SumHessian:  dst[0][b].SumHessian + sibling[0][b].SumHessian,
			Count:       dst[0][b].Count + sibling[0][b].Count,
		}
		assert.InDelta(t, parent[0][b].SumGradient, reconstructed.SumGradient, 1e-12)
		assert.InDelta(t, parent[0][b].SumHessian, reconstructed.SumHessian, 1e-12)
		assert.Equal(t, parent[0][b].Count, reconstructed.Count)
	}
}

func TestCloneIsIndependentOfSource(t *testing.T) {
	fs := NewFeatureSet([]int{1})
	fs[0][0] = binning.HistogramEntry{SumGradient: 1, SumHessian: 1, Count: 1}

	clone := Clone(fs)
	fs[0][0].SumGradient = 99

	assert.InDelta(t, 1, clone[0][0].SumGradient, 1e-12)
}

func TestPoolDirectModeAlwaysHits(t *testing.T) {
	p := NewPool(4, []int{3}, 4)
	fs, ok := p.Get(2)
	assert.True(t, ok)
	fs[0][0].SumGradient = 7

	fs2, ok2 := p.Get(2)
	assert.True(t, ok2)
	assert.InDelta(t, 7, fs2[0][0].SumGradient, 1e-12)
}

func TestPoolMappedModeEvictsLRU(t *testing.T) {
	p := NewPool(2, []int{1}, 8)

	_, ok := p.Get(0)
	assert.False(t, ok) // first touch of slot is a miss
	_, ok = p.Get(1)
	assert.False(t, ok)

	// Touch leaf 0 again so leaf 1 becomes the LRU slot.
	_, _ = p.Get(0)

	_, ok = p.Get(2) // should evict leaf 1, not leaf 0
	assert.False(t, ok)

	fs0, ok0 := p.Get(0)
	assert.True(t, ok0)
	_ = fs0
}

func TestPoolMoveRelabelsWithoutCopy(t *testing.T) {
	p := NewPool(2, []int{1}, 8)
	fs, _ := p.Get(0)
	fs[0][0].SumGradient = 42

	p.Move(0, 5)
	moved, ok := p.Get(5)
	assert.True(t, ok)
	assert.InDelta(t, 42, moved[0][0].SumGradient, 1e-12)
}

func TestResetZeroesAllEntries(t *testing.T) {
	fs := NewFeatureSet([]int{2})
	fs[0][0] = binning.HistogramEntry{SumGradient: 1, SumHessian: 1, Count: 1}
	fs[0][1] = binning.HistogramEntry{SumGradient: 2, SumHessian: 2, Count: 2}

	fs.Reset()
	assert.Equal(t, binning.HistogramEntry{}, fs[0][0])
	assert.Equal(t, binning.HistogramEntry{}, fs[0][1])
}
