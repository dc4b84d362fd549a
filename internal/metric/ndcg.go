package metric

import (
	"math"

	"github.com/go-gbdt/gbdt/internal/dataset"
	"gonum.org/v1/gonum/stat"
)

// NDCG evaluates normalised discounted cumulative gain at several cutoffs,
// averaged over queries and then over cutoffs, matching lambdarank's own
// per-query structure (§2 table, §4.8).
type NDCG struct {
	label           []float64
	queryBoundaries []int32
	at              []int
	labelGain       []float64
}

func NewNDCG(meta *dataset.Metadata, at []int) *NDCG {
	gain := make([]float64, 32)
	for i := range gain {
		gain[i] = math.Exp2(float64(i)) - 1
	}
	return &NDCG{
		label:           meta.Label(),
		queryBoundaries: meta.QueryBoundaries(),
		at:              at,
		labelGain:       gain,
	}
}

func (m *NDCG) Name() string       { return "ndcg" }
func (m *NDCG) HigherBetter() bool { return true }

func (m *NDCG) gain(label float64) float64 {
	idx := int(label)
	if idx < 0 {
		idx = 0
	}
	if idx >= len(m.labelGain) {
		idx = len(m.labelGain) - 1
	}
	return m.labelGain[idx]
}

func (m *NDCG) Eval(scores []float64) float64 {
	qb := m.queryBoundaries
	if len(qb) < 2 {
		return 0
	}
	sums := make([]float64, len(m.at))
	numQueries := 0
	for q := 0; q+1 < len(qb); q++ {
		begin, end := int(qb[q]), int(qb[q+1])
		n := end - begin
		if n == 0 {
			continue
		}
		numQueries++

		// Sort this query's rows by predicted score descending: stat.SortWeighted
		// sorts ascending, so we sort on negated scores and carry the row's
		// label gain alongside as the "weight" slot.
		negScores := make([]float64, n)
		gains := make([]float64, n)
		for i := 0; i < n; i++ {
			negScores[i] = -scores[begin+i]
			gains[i] = m.gain(m.label[begin+i])
		}
		stat.SortWeighted(negScores, gains)

		// Ideal ranking sorts by gain descending regardless of predicted score.
		idealGains := append([]float64(nil), gains...)
		sortDescending(idealGains)

		for ai, cutoff := range m.at {
			k := cutoff
			if k > n {
				k = n
			}
			dcg, idcg := 0.0, 0.0
			for pos := 0; pos < k; pos++ {
				disc := math.Log2(float64(pos + 2))
				dcg += gains[pos] / disc
				idcg += idealGains[pos] / disc
			}
			if idcg > 0 {
				sums[ai] += dcg / idcg
			}
		}
	}
	if numQueries == 0 {
		return 0
	}
	total := 0.0
	for _, s := range sums {
		total += s / float64(numQueries)
	}
	return total / float64(len(m.at))
}

// sortDescending sorts v descending in place, reusing stat.SortWeighted by
// sorting the negation ascending (gonum has no descending variant).
func sortDescending(v []float64) {
	neg := make([]float64, len(v))
	scratch := make([]float64, len(v))
	for i, x := range v {
		neg[i] = -x
	}
	stat.SortWeighted(neg, scratch)
	for i := range v {
		v[i] = -neg[i]
	}
}
