package objective

import (
	"math"

	"github.com/go-gbdt/gbdt/internal/dataset"
)

// BinaryLogloss is binary classification with a logistic link: scores are
// raw margins, g = sigmoid(sigma*s) - y, h = sigma^2 * p * (1-p).
type BinaryLogloss struct {
	label   []float64
	weight  []float64
	Sigmoid float64
}

func NewBinaryLogloss(meta *dataset.Metadata, sigmoid float64) *BinaryLogloss {
	return &BinaryLogloss{label: meta.Label(), weight: meta.Weight(), Sigmoid: sigmoid}
}

func (o *BinaryLogloss) TreesPerIteration() int { return 1 }
func (o *BinaryLogloss) Name() string           { return "binary" }

func sigmoid(x, sigma float64) float64 {
	return 1.0 / (1.0 + math.Exp(-sigma*x))
}

func (o *BinaryLogloss) GetGradients(scores []float64, g, h []float64) {
	for i, y := range o.label {
		w := 1.0
		if o.weight != nil {
			w = o.weight[i]
		}
		p := sigmoid(scores[i], o.Sigmoid)
		g[i] = (p - y) * w
		h[i] = o.Sigmoid * o.Sigmoid * p * (1 - p) * w
	}
}

func (o *BinaryLogloss) InitScore() []float64 {
	sum, wsum := 0.0, 0.0
	for i, y := range o.label {
		w := 1.0
		if o.weight != nil {
			w = o.weight[i]
		}
		sum += y * w
		wsum += w
	}
	if wsum == 0 {
		return []float64{0}
	}
	p := sum / wsum
	p = math.Min(math.Max(p, 1e-10), 1-1e-10)
	return []float64{math.Log(p/(1-p)) / o.Sigmoid}
}

// Transform applies the sigmoid to raw margins, producing probabilities.
func (o *BinaryLogloss) Transform(rawScores []float64) []float64 {
	out := make([]float64, len(rawScores))
	for i, s := range rawScores {
		out[i] = sigmoid(s, o.Sigmoid)
	}
	return out
}
