// Package score implements ScoreUpdater: the accumulator that holds a
// dataset's running prediction vector across boosting iterations (§2 table).
package score

import (
	"github.com/go-gbdt/gbdt/internal/tree"
)

// Updater owns one dataset's score vector, length numData*numTreesPerClass
// (class-major, matching the objective's gradient layout).
type Updater struct {
	NumData  int
	NumClass int
	Scores   []float64
}

// New allocates a zeroed score vector seeded with initScore (length
// NumClass, broadcast across all rows).
func New(numData, numClass int, initScore []float64) *Updater {
	u := &Updater{NumData: numData, NumClass: numClass, Scores: make([]float64, numData*numClass)}
	for c := 0; c < numClass; c++ {
		base := initScore[c]
		for i := 0; i < numData; i++ {
			u.Scores[c*numData+i] = base
		}
	}
	return u
}

// AddScores adds delta (length numData) to class c's score slice.
func (u *Updater) AddScores(class int, delta []float64) {
	base := class * u.NumData
	for i, d := range delta {
		u.Scores[base+i] += d
	}
}

// ClassScores returns the live slice for one class (no copy).
func (u *Updater) ClassScores(class int) []float64 {
	base := class * u.NumData
	return u.Scores[base : base+u.NumData]
}

// AddTreeFast adds a trained tree's contribution using the leaf values the
// tree learner already computed for each row, via a row->leaf map built
// during training (the "fast path" from the learner's own partition,
// §4.9 step 2) instead of re-traversing the tree per row. Rows mapped to
// -1 (not in the learner's partition, e.g. out-of-bag) are skipped.
func (u *Updater) AddTreeFast(class int, rowToLeaf []int, t *tree.Tree) {
	base := class * u.NumData
	for row, leaf := range rowToLeaf {
		if leaf < 0 {
			continue
		}
		u.Scores[base+row] += t.LeafValue[leaf]
	}
}

// AddTreeSlow adds a tree's contribution by full traversal per row — used
// for out-of-bag rows after bagging, so the next iteration sees a complete
// score vector (§4.9 step 2).
func (u *Updater) AddTreeSlow(class int, rows []int, features [][]float64, t *tree.Tree) {
	base := class * u.NumData
	for _, row := range rows {
		u.Scores[base+row] += t.Predict(features[row])
	}
}

// AddScaled adds delta scaled by factor, used by DART to restore a dropped
// tree's contribution or re-normalise after adding a new one (§4.10).
func (u *Updater) AddScaled(class int, delta []float64, factor float64) {
	base := class * u.NumData
	for i, d := range delta {
		u.Scores[base+i] += d * factor
	}
}
