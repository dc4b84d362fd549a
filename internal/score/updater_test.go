package score

import (
	"testing"

	"github.com/go-gbdt/gbdt/internal/tree"
	"github.com/stretchr/testify/assert"
)

func TestNewSeedsInitScorePerClass(t *testing.T) {
	u := New(3, 2, []float64{0.5, -0.5})
	assert.Equal(t, []float64{0.5, 0.5, 0.5, -0.5, -0.5, -0.5}, u.Scores)
}

func TestAddScoresAddsToOneClassOnly(t *testing.T) {
	u := New(2, 2, []float64{0, 0})
	u.AddScores(1, []float64{1, 2})
	assert.Equal(t, []float64{0, 0, 1, 2}, u.Scores)
}

func TestAddTreeFastUsesRowToLeafMap(t *testing.T) {
	tr := tree.NewTree(0)
	tr.Split(0, 0, 1, 1.5, true, -1, 1, 1, 1, 0.1)

	u := New(2, 1, []float64{0})
	u.AddTreeFast(0, []int{0, 1}, tr)

	assert.Equal(t, -1.0, u.Scores[0])
	assert.Equal(t, 1.0, u.Scores[1])
}

// TestAddTreeFastSlowAgree checks spec §8 property 8 (prediction invariance):
// the fast (row->leaf map) and slow (full traversal) paths must agree.
func TestAddTreeFastSlowAgree(t *testing.T) {
	tr := tree.NewTree(0)
	tr.Split(0, 0, 1, 1.5, true, -1, 1, 1, 1, 0.1)
	rows := []int{0, 1}
	features := [][]float64{{0}, {3}}

	fast := New(2, 1, []float64{0})
	fast.AddTreeFast(0, []int{0, 1}, tr)

	slow := New(2, 1, []float64{0})
	slow.AddTreeSlow(0, rows, features, tr)

	assert.InDeltaSlice(t, fast.Scores, slow.Scores, 1e-9)
}

func TestAddScaledAppliesFactor(t *testing.T) {
	u := New(2, 1, []float64{0})
	u.AddScaled(0, []float64{2, 4}, 0.5)
	assert.Equal(t, []float64{1.0, 2.0}, u.Scores)
}
