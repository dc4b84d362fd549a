package objective

import (
	"math"

	"github.com/go-gbdt/gbdt/internal/dataset"
)

// MulticlassSoftmax is the native multiclass objective: NumClass trees per
// iteration, gradients from the softmax cross-entropy loss (§4.8).
type MulticlassSoftmax struct {
	label    []float64
	weight   []float64
	NumClass int
}

func NewMulticlassSoftmax(meta *dataset.Metadata, numClass int) *MulticlassSoftmax {
	return &MulticlassSoftmax{label: meta.Label(), weight: meta.Weight(), NumClass: numClass}
}

func (o *MulticlassSoftmax) TreesPerIteration() int { return o.NumClass }
func (o *MulticlassSoftmax) Name() string           { return "multiclass" }

// Transform applies row-wise softmax. rawScores is one row's NumClass margins.
func (o *MulticlassSoftmax) Transform(rawScores []float64) []float64 {
	return softmaxRow(rawScores)
}

func softmaxRow(row []float64) []float64 {
	maxV := math.Inf(-1)
	for _, v := range row {
		if v > maxV {
			maxV = v
		}
	}
	out := make([]float64, len(row))
	sum := 0.0
	for i, v := range row {
		e := math.Exp(v - maxV)
		out[i] = e
		sum += e
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

func (o *MulticlassSoftmax) GetGradients(scores []float64, g, h []float64) {
	n := len(o.label)
	row := make([]float64, o.NumClass)
	for i := 0; i < n; i++ {
		for c := 0; c < o.NumClass; c++ {
			row[c] = scores[c*n+i]
		}
		p := softmaxRow(row)
		w := 1.0
		if o.weight != nil {
			w = o.weight[i]
		}
		trueClass := int(o.label[i])
		for c := 0; c < o.NumClass; c++ {
			target := 0.0
			if c == trueClass {
				target = 1.0
			}
			g[c*n+i] = (p[c] - target) * w
			h[c*n+i] = math.Max(2*p[c]*(1-p[c]), 1e-16) * w
		}
	}
}

func (o *MulticlassSoftmax) InitScore() []float64 {
	return make([]float64, o.NumClass)
}

// MulticlassOVA is "one vs all": NumClass independent binary classifiers,
// each scored by BinaryLogloss against an indicator label.
type MulticlassOVA struct {
	inner []*BinaryLogloss
	n     int
}

func NewMulticlassOVA(meta *dataset.Metadata, numClass int, sigmoid float64) *MulticlassOVA {
	label := meta.Label()
	weight := meta.Weight()
	inner := make([]*BinaryLogloss, numClass)
	for c := 0; c < numClass; c++ {
		indicator := make([]float64, len(label))
		for i, y := range label {
			if int(y) == c {
				indicator[i] = 1
			}
		}
		inner[c] = &BinaryLogloss{label: indicator, weight: weight, Sigmoid: sigmoid}
	}
	return &MulticlassOVA{inner: inner, n: len(label)}
}

func (o *MulticlassOVA) TreesPerIteration() int { return len(o.inner) }
func (o *MulticlassOVA) Name() string           { return "multiclassova" }

func (o *MulticlassOVA) GetGradients(scores []float64, g, h []float64) {
	for c, obj := range o.inner {
		obj.GetGradients(scores[c*o.n:(c+1)*o.n], g[c*o.n:(c+1)*o.n], h[c*o.n:(c+1)*o.n])
	}
}

func (o *MulticlassOVA) InitScore() []float64 {
	out := make([]float64, len(o.inner))
	for c, obj := range o.inner {
		out[c] = obj.InitScore()[0]
	}
	return out
}

func (o *MulticlassOVA) Transform(rawScores []float64) []float64 {
	out := make([]float64, len(rawScores))
	for c, s := range rawScores {
		out[c] = sigmoid(s, o.inner[c].Sigmoid)
	}
	return out
}
