package objective

import "github.com/go-gbdt/gbdt/internal/dataset"

// RegressionL2 is squared-error regression: g = pred - y, h = weight (or 1).
type RegressionL2 struct {
	label  []float64
	weight []float64
}

func NewRegressionL2(meta *dataset.Metadata) *RegressionL2 {
	return &RegressionL2{label: meta.Label(), weight: meta.Weight()}
}

func (o *RegressionL2) TreesPerIteration() int { return 1 }
func (o *RegressionL2) Name() string           { return "regression" }

func (o *RegressionL2) GetGradients(scores []float64, g, h []float64) {
	for i, y := range o.label {
		w := 1.0
		if o.weight != nil {
			w = o.weight[i]
		}
		g[i] = (scores[i] - y) * w
		h[i] = w
	}
}

func (o *RegressionL2) InitScore() []float64 {
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
	return []float64{sum / wsum}
}
