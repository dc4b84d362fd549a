package binning

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestFindBinMonotonicity verifies spec §8 property 1: bin_upper_bound is
// strictly increasing and value_to_bin is monotonically non-decreasing.
func TestFindBinMonotonicity(t *testing.T) {
	samples := []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 1.5, 2.5, 3.5, 7.2, 8.8}
	m := FindBin(samples, len(samples), 8, 1)
	require.False(t, m.IsTrivial)

	for i := 1; i < len(m.UpperBound); i++ {
		assert.Greater(t, m.UpperBound[i], m.UpperBound[i-1], "upper bounds must strictly increase")
	}

	prevBin := -1
	for x := -1.0; x <= 11.0; x += 0.25 {
		b := m.ValueToBin(x)
		assert.GreaterOrEqual(t, b, prevBin)
		prevBin = b
	}
}

func TestFindBinTrivialFeature(t *testing.T) {
	m := FindBin([]float64{5, 5, 5, 5}, 4, 255, 1)
	assert.True(t, m.IsTrivial)
	assert.Equal(t, 1, m.NumBin())
}

func TestValueToBinMissing(t *testing.T) {
	m := FindBin([]float64{0, 1, 2, 3}, 4, 255, 1)
	assert.Equal(t, m.DefaultBin, m.ValueToBin(math.NaN()))
	assert.Equal(t, m.DefaultBin, m.ValueToBin(MissingValue))
}

func TestZeroAlwaysOnBoundary(t *testing.T) {
	m := FindBin([]float64{-3, -2, -1, 1, 2, 3}, 6, 255, 1)
	zeroBin := m.ValueToBin(0)
	negBin := m.ValueToBin(-0.5)
	posBin := m.ValueToBin(0.5)
	assert.NotEqual(t, negBin, posBin, "zero must sit on a bin boundary, never inside a bin")
	assert.Equal(t, negBin, zeroBin)
}

func TestDenseBinPushAndHistogram(t *testing.T) {
	d := NewDenseBin(4, 3)
	d.Push(0, 0)
	d.Push(1, 1)
	d.Push(2, 1)
	d.Push(3, 2)
	d.FinishLoad()

	g := []float64{1, 2, 3, 4}
	h := []float64{1, 1, 1, 1}
	out := make([]HistogramEntry, 3)
	d.ConstructHistogram([]int{0, 1, 2, 3}, g, h, out)

	assert.Equal(t, float64(1), out[0].SumGradient)
	assert.Equal(t, float64(5), out[1].SumGradient)
	assert.Equal(t, float64(4), out[2].SumGradient)
	assert.Equal(t, uint32(1), out[0].Count)
	assert.Equal(t, uint32(2), out[1].Count)
}

func TestDenseBinSplit(t *testing.T) {
	d := NewDenseBin(6, 3)
	for i, b := range []uint32{0, 1, 2, 0, 1, 2} {
		d.Push(i, b)
	}
	d.FinishLoad()

	rowsIn := []int{0, 1, 2, 3, 4, 5}
	rowsOut := make([]int, 6)
	leftCount := d.Split(0, 0, true, rowsIn, rowsOut)

	assert.Equal(t, 2, leftCount)
	for _, r := range rowsOut[:leftCount] {
		assert.LessOrEqual(t, d.BinAt(r), uint32(0))
	}
}

func TestSparseBinRoundTrip(t *testing.T) {
	s := NewSparseBin(10, 3, 0)
	s.Push(2, 1)
	s.Push(5, 2)
	s.Push(7, 1)
	s.FinishLoad()

	assert.Equal(t, uint32(1), s.BinAt(2))
	assert.Equal(t, uint32(2), s.BinAt(5))
	assert.Equal(t, uint32(0), s.BinAt(0), "unset rows fall back to the default bin")

	rows, bins := s.Entries()
	require.Len(t, rows, 3)

	s2 := NewSparseBin(10, 3, 0)
	s2.LoadEntries(rows, bins)
	for _, r := range []int{0, 2, 5, 7, 9} {
		assert.Equal(t, s.BinAt(r), s2.BinAt(r))
	}
}

func TestChooseEncoding(t *testing.T) {
	assert.Equal(t, "sparse", ChooseEncoding(0.9, 0.8))
	assert.Equal(t, "dense", ChooseEncoding(0.5, 0.8))
}
