package dataset

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildSample(t *testing.T) *Dataset {
	t.Helper()
	ds, err := FromColumns([][]float64{{0, 1, 2, 3, 4}, {5, 4, 3, 2, 1}}, BuildOptions{MaxBin: 8})
	require.NoError(t, err)
	require.NoError(t, ds.Meta.SetLabel([]float64{0, 1, 0, 1, 0}))
	require.NoError(t, ds.Meta.SetWeight([]float64{1, 2, 1, 1, 3}))
	return ds
}

func TestFromColumnsBuildsOneFeaturePerColumn(t *testing.T) {
	ds := buildSample(t)
	assert.Equal(t, 5, ds.NumData)
	assert.Equal(t, 2, ds.NumUsedFeatures())
}

// TestBinaryRoundTrip verifies spec §8 property 2: WriteBinary then
// ReadBinary must reconstruct bin boundaries, features, and metadata
// exactly.
func TestBinaryRoundTrip(t *testing.T) {
	ds := buildSample(t)

	var buf bytes.Buffer
	require.NoError(t, ds.WriteBinary(&buf))

	got, err := ReadBinary(&buf)
	require.NoError(t, err)

	assert.Equal(t, ds.NumData, got.NumData)
	assert.Equal(t, ds.NumTotalFeatures, got.NumTotalFeatures)
	require.Len(t, got.Features, len(ds.Features))

	for i, feat := range ds.Features {
		assert.Equal(t, feat.Mapper.UpperBound, got.Features[i].Mapper.UpperBound)
		for r := 0; r < ds.NumData; r++ {
			assert.Equal(t, feat.Bin.BinAt(r), got.Features[i].Bin.BinAt(r))
		}
	}

	assert.Equal(t, ds.Meta.Label(), got.Meta.Label())
	assert.InDeltaSlice(t, ds.Meta.Weight(), got.Meta.Weight(), 1e-6)
}

func TestAlignedValidationSharesBinMappers(t *testing.T) {
	train := buildSample(t)
	valid, err := AlignedValidation(train, [][]float64{{0, 1, 2, 3, 4}, {5, 4, 3, 2, 1}})
	require.NoError(t, err)

	assert.Equal(t, train.NumUsedFeatures(), valid.NumUsedFeatures())
	for i := range train.Features {
		assert.Same(t, train.Features[i].Mapper, valid.Features[i].Mapper)
	}
}

func TestAlignedValidationRejectsColumnMismatch(t *testing.T) {
	train := buildSample(t)
	_, err := AlignedValidation(train, [][]float64{{0, 1}})
	assert.Error(t, err)
}
