package metric

import (
	"testing"

	"github.com/go-gbdt/gbdt/internal/dataset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestL2Eval(t *testing.T) {
	m := metaWithLabelT(t, []float64{0, 1, 2})
	metric, err := New("l2", m, 1, 1, nil)
	require.NoError(t, err)
	assert.False(t, metric.HigherBetter())

	got := metric.Eval([]float64{0, 1, 2})
	assert.InDelta(t, 0, got, 1e-12)

	got2 := metric.Eval([]float64{1, 1, 1})
	assert.InDelta(t, (1.0+0.0+1.0)/3.0, got2, 1e-12)
}

func TestBinaryLoglossPerfectPrediction(t *testing.T) {
	m := metaWithLabelT(t, []float64{1, 0})
	metric, err := New("binary_logloss", m, 1, 1, nil)
	require.NoError(t, err)

	got := metric.Eval([]float64{20, -20}) // large-margin, confident + correct
	assert.Less(t, got, 1e-6)
}

func TestAUCPerfectSeparation(t *testing.T) {
	m := metaWithLabelT(t, []float64{0, 0, 1, 1})
	metric, err := New("auc", m, 1, 1, nil)
	require.NoError(t, err)
	assert.True(t, metric.HigherBetter())

	got := metric.Eval([]float64{0.1, 0.2, 0.8, 0.9})
	assert.InDelta(t, 1.0, got, 1e-12)
}

func TestMultiErrorUsesClassMajorScores(t *testing.T) {
	m := metaWithLabelT(t, []float64{0, 1, 2})
	metric, err := New("multi_error", m, 3, 1, nil)
	require.NoError(t, err)

	// class-major: scores[c*n+i]; make row i's argmax equal to label i.
	n := 3
	scores := make([]float64, 3*n)
	for i, label := range []int{0, 1, 2} {
		scores[label*n+i] = 10
	}
	got := metric.Eval(scores)
	assert.Equal(t, 0.0, got)
}

func TestNewUnknownMetric(t *testing.T) {
	m := metaWithLabelT(t, []float64{0})
	_, err := New("not-a-metric", m, 1, 1, nil)
	assert.Error(t, err)
}

func metaWithLabelT(t *testing.T, label []float64) *dataset.Metadata {
	t.Helper()
	m := dataset.NewMetadata(len(label))
	require.NoError(t, m.SetLabel(label))
	return m
}
