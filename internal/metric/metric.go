// Package metric implements score evaluation against labels (§2 table,
// §9 design notes: a Metric is an immutable collaborator parameterised
// once with label/weight/query and passed by borrow to Boosting).
package metric

import (
	"math"
	"sort"

	"github.com/go-gbdt/gbdt/internal/dataset"
	gbdterrors "github.com/go-gbdt/gbdt/pkg/errors"
)

// Metric evaluates a score vector against the labels it was bound to.
// HigherBetter reports the comparison direction for early stopping.
type Metric interface {
	Name() string
	Eval(scores []float64) float64
	HigherBetter() bool
}

// New constructs a Metric bound to meta. Recognised names: l1, l2,
// binary_logloss, auc, ndcg, multi_error.
func New(name string, meta *dataset.Metadata, numClass int, sigmoid float64, ndcgAt []int) (Metric, error) {
	switch name {
	case "l1", "mae":
		return &L1{label: meta.Label(), weight: meta.Weight()}, nil
	case "l2", "mse", "":
		return &L2{label: meta.Label(), weight: meta.Weight()}, nil
	case "binary_logloss", "logloss":
		s := sigmoid
		if s <= 0 {
			s = 1
		}
		return &BinaryLogloss{label: meta.Label(), weight: meta.Weight(), sigmoid: s}, nil
	case "auc":
		return &AUC{label: meta.Label(), weight: meta.Weight()}, nil
	case "ndcg":
		if len(ndcgAt) == 0 {
			ndcgAt = []int{1, 3, 5, 10}
		}
		return NewNDCG(meta, ndcgAt), nil
	case "multi_error":
		if numClass < 2 {
			return nil, gbdterrors.NewConfigError("num_class", "multi_error metric requires num_class >= 2")
		}
		return &MultiError{label: meta.Label(), numClass: numClass}, nil
	default:
		return nil, gbdterrors.NewConfigError("metric", "unknown metric "+name)
	}
}

// L1 is mean absolute error.
type L1 struct {
	label, weight []float64
}

func (m *L1) Name() string       { return "l1" }
func (m *L1) HigherBetter() bool { return false }
func (m *L1) Eval(scores []float64) float64 {
	sum, wsum := 0.0, 0.0
	for i, y := range m.label {
		w := 1.0
		if m.weight != nil {
			w = m.weight[i]
		}
		sum += w * math.Abs(scores[i]-y)
		wsum += w
	}
	if wsum == 0 {
		return 0
	}
	return sum / wsum
}

// L2 is mean squared error.
type L2 struct {
	label, weight []float64
}

func (m *L2) Name() string       { return "l2" }
func (m *L2) HigherBetter() bool { return false }
func (m *L2) Eval(scores []float64) float64 {
	sum, wsum := 0.0, 0.0
	for i, y := range m.label {
		w := 1.0
		if m.weight != nil {
			w = m.weight[i]
		}
		d := scores[i] - y
		sum += w * d * d
		wsum += w
	}
	if wsum == 0 {
		return 0
	}
	return sum / wsum
}

// BinaryLogloss evaluates -mean(y*log(p) + (1-y)*log(1-p)) from raw margins.
type BinaryLogloss struct {
	label, weight []float64
	sigmoid       float64
}

func (m *BinaryLogloss) Name() string       { return "binary_logloss" }
func (m *BinaryLogloss) HigherBetter() bool { return false }
func (m *BinaryLogloss) Eval(scores []float64) float64 {
	sum, wsum := 0.0, 0.0
	for i, y := range m.label {
		w := 1.0
		if m.weight != nil {
			w = m.weight[i]
		}
		p := 1.0 / (1.0 + math.Exp(-m.sigmoid*scores[i]))
		p = math.Min(math.Max(p, 1e-15), 1-1e-15)
		sum -= w * (y*math.Log(p) + (1-y)*math.Log(1-p))
		wsum += w
	}
	if wsum == 0 {
		return 0
	}
	return sum / wsum
}

// AUC is area under the ROC curve, computed via the weighted rank-sum
// formula so it supports per-row weights (binary labels assumed).
type AUC struct {
	label, weight []float64
}

func (m *AUC) Name() string       { return "auc" }
func (m *AUC) HigherBetter() bool { return true }
func (m *AUC) Eval(scores []float64) float64 {
	type row struct {
		score, label, weight float64
	}
	rows := make([]row, len(m.label))
	for i := range rows {
		w := 1.0
		if m.weight != nil {
			w = m.weight[i]
		}
		rows[i] = row{scores[i], m.label[i], w}
	}
	sort.Slice(rows, func(a, b int) bool { return rows[a].score < rows[b].score })

	var posWeight, negWeight, wilcoxon float64
	cumNeg := 0.0
	for _, r := range rows {
		if r.label > 0 {
			posWeight += r.weight
			wilcoxon += r.weight * cumNeg
		} else {
			negWeight += r.weight
			cumNeg += r.weight
		}
	}
	if posWeight == 0 || negWeight == 0 {
		return 0.5
	}
	return wilcoxon / (posWeight * negWeight)
}

// MultiError is the fraction of rows whose argmax class != true label.
type MultiError struct {
	label    []float64
	numClass int
}

func (m *MultiError) Name() string       { return "multi_error" }
func (m *MultiError) HigherBetter() bool { return false }
func (m *MultiError) Eval(scores []float64) float64 {
	n := len(m.label)
	wrong := 0
	for i := 0; i < n; i++ {
		best, bestScore := 0, math.Inf(-1)
		for c := 0; c < m.numClass; c++ {
			if s := scores[c*n+i]; s > bestScore {
				best, bestScore = c, s
			}
		}
		if best != int(m.label[i]) {
			wrong++
		}
	}
	if n == 0 {
		return 0
	}
	return float64(wrong) / float64(n)
}
