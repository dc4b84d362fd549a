package boosting

import (
	"bytes"
	"testing"

	"github.com/go-gbdt/gbdt/internal/tree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildStump(feature int32, threshold float64, left, right float64) *tree.Tree {
	t := tree.NewTree(0)
	t.Split(0, feature, 0, threshold, true, left, right, 1, 1, 0.2)
	t.Scale(0.5)
	return t
}

func TestModelDumpParseRoundTrip(t *testing.T) {
	m := &Model{
		BoostingType:      "gbdt",
		Objective:         "regression",
		NumClass:          1,
		TreesPerIteration: 1,
		MaxFeatureIdx:     0,
		FeatureNames:      []string{"x0"},
		Trees:             []*tree.Tree{buildStump(0, 1.5, -1, 1)},
	}

	var buf bytes.Buffer
	require.NoError(t, m.Dump(&buf))

	got, err := Parse(&buf)
	require.NoError(t, err)

	assert.Equal(t, m.BoostingType, got.BoostingType)
	assert.Equal(t, m.Objective, got.Objective)
	assert.Equal(t, m.NumClass, got.NumClass)
	assert.Equal(t, m.FeatureNames, got.FeatureNames)
	require.Len(t, got.Trees, 1)

	want := m.Predict([]float64{0})
	have := got.Predict([]float64{0})
	assert.InDeltaSlice(t, want, have, 1e-9)

	want2 := m.Predict([]float64{3})
	have2 := got.Predict([]float64{3})
	assert.InDeltaSlice(t, want2, have2, 1e-9)
}

func TestModelParseRejectsMissingHeader(t *testing.T) {
	_, err := Parse(bytes.NewReader(nil))
	assert.Error(t, err)
}

func TestModelNumIterationAndTruncateLast(t *testing.T) {
	m := &Model{TreesPerIteration: 2}
	for i := 0; i < 6; i++ {
		m.Trees = append(m.Trees, tree.NewTree(0))
	}
	assert.Equal(t, 3, m.NumIteration())

	m.TruncateLast(1)
	assert.Equal(t, 2, m.NumIteration())
	assert.Len(t, m.Trees, 4)
}

func TestModelPredictContribSumsToScoreMinusBias(t *testing.T) {
	t1 := buildStump(0, 1.5, -1, 1)
	m := &Model{TreesPerIteration: 1, NumClass: 1, MaxFeatureIdx: 0, Trees: []*tree.Tree{t1}}

	contrib, bias := m.PredictContrib([]float64{3})
	require.Len(t, contrib, 1)

	score := m.Predict([]float64{3})[0]
	assert.InDelta(t, score, bias+contrib[0], 1e-9)
}

func TestFeatureImportanceSplitAndGain(t *testing.T) {
	t1 := buildStump(0, 1.5, -1, 1)
	t2 := buildStump(0, 2.5, -2, 2)
	m := &Model{TreesPerIteration: 1, NumClass: 1, FeatureNames: []string{"x0"}, Trees: []*tree.Tree{t1, t2}}

	split := m.FeatureImportance(ImportanceSplit)
	assert.Equal(t, float64(2), split["x0"])

	gain := m.FeatureImportance(ImportanceGain)
	assert.InDelta(t, t1.Gain[0]+t2.Gain[0], gain["x0"], 1e-9)
}
