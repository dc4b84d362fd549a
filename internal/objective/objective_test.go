package objective

import (
	"testing"

	"github.com/go-gbdt/gbdt/internal/dataset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func metaWithLabel(t *testing.T, label []float64) *dataset.Metadata {
	t.Helper()
	m := dataset.NewMetadata(len(label))
	require.NoError(t, m.SetLabel(label))
	return m
}

func TestNewUnknownObjective(t *testing.T) {
	m := metaWithLabel(t, []float64{0})
	_, err := New("bogus", m, Config{})
	assert.Error(t, err)
}

func TestRegressionL2Gradients(t *testing.T) {
	m := metaWithLabel(t, []float64{1, 2, 3})
	o, err := New("regression", m, Config{})
	require.NoError(t, err)
	assert.Equal(t, 1, o.TreesPerIteration())

	g := make([]float64, 3)
	h := make([]float64, 3)
	o.GetGradients([]float64{0, 0, 0}, g, h)
	assert.Equal(t, []float64{-1, -2, -3}, g)
	assert.Equal(t, []float64{1, 1, 1}, h)

	assert.InDelta(t, 2.0, o.InitScore()[0], 1e-12) // mean of 1,2,3
}

func TestBinaryLoglossGradientsAtZeroScore(t *testing.T) {
	m := metaWithLabel(t, []float64{1, 0})
	o, err := New("binary", m, Config{})
	require.NoError(t, err)

	g := make([]float64, 2)
	h := make([]float64, 2)
	o.GetGradients([]float64{0, 0}, g, h)
	// sigmoid(0) = 0.5, so g = p - y
	assert.InDelta(t, -0.5, g[0], 1e-12)
	assert.InDelta(t, 0.5, g[1], 1e-12)

	tr, ok := o.(Transformer)
	require.True(t, ok)
	probs := tr.Transform([]float64{0, 0})
	assert.InDelta(t, 0.5, probs[0], 1e-12)
}

func TestMulticlassSoftmaxRequiresNumClass(t *testing.T) {
	m := metaWithLabel(t, []float64{0, 1})
	_, err := New("multiclass", m, Config{NumClass: 1})
	assert.Error(t, err)

	_, err = New("multiclass", m, Config{NumClass: 3})
	assert.NoError(t, err)
}

func TestMulticlassSoftmaxGradientsSumToZeroPerRow(t *testing.T) {
	m := metaWithLabel(t, []float64{0, 1})
	o, err := New("multiclass", m, Config{NumClass: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, o.TreesPerIteration())

	n := 2
	scores := make([]float64, 2*n)
	g := make([]float64, 2*n)
	h := make([]float64, 2*n)
	o.GetGradients(scores, g, h)

	for i := 0; i < n; i++ {
		sum := 0.0
		for c := 0; c < 2; c++ {
			sum += g[c*n+i]
		}
		assert.InDelta(t, 0, sum, 1e-9)
	}
}

func TestMulticlassOVAMatchesPerClassBinary(t *testing.T) {
	m := metaWithLabel(t, []float64{0, 1, 0})
	o, err := New("multiclassova", m, Config{NumClass: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, o.TreesPerIteration())

	n := 3
	scores := make([]float64, 2*n)
	g := make([]float64, 2*n)
	h := make([]float64, 2*n)
	o.GetGradients(scores, g, h)

	// Class 0's indicator is [1,0,1]; at score 0 the gradient is p-y=0.5-y.
	assert.InDelta(t, -0.5, g[0], 1e-12)
	assert.InDelta(t, 0.5, g[1], 1e-12)
	assert.InDelta(t, -0.5, g[2], 1e-12)
}

func TestLambdaRankRequiresQueryBoundaries(t *testing.T) {
	m := metaWithLabel(t, []float64{0, 1})
	_, err := New("lambdarank", m, Config{})
	assert.Error(t, err)
}

func TestLambdaRankGradientsFavorHigherLabel(t *testing.T) {
	m := metaWithLabel(t, []float64{0, 2})
	require.NoError(t, m.SetQueryBoundaries([]int32{0, 2}))

	o, err := New("lambdarank", m, Config{})
	require.NoError(t, err)

	g := make([]float64, 2)
	h := make([]float64, 2)
	o.GetGradients([]float64{0, 0}, g, h)

	// Row 1 has the higher label and equal score, so it should be pulled up
	// (negative gradient) while row 0 is pulled down.
	assert.Less(t, g[1], 0.0)
	assert.Greater(t, g[0], 0.0)
}

func TestLambdaRankSkipsUniformQueries(t *testing.T) {
	m := metaWithLabel(t, []float64{1, 1})
	require.NoError(t, m.SetQueryBoundaries([]int32{0, 2}))

	o, err := New("lambdarank", m, Config{})
	require.NoError(t, err)

	g := make([]float64, 2)
	h := make([]float64, 2)
	o.GetGradients([]float64{0, 0}, g, h)
	assert.Equal(t, []float64{0, 0}, g)
}
