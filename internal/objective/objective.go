// Package objective implements the pluggable loss functions the boosting
// controller consumes to turn scores into gradients/hessians (§4.8).
package objective

import (
	"github.com/go-gbdt/gbdt/internal/dataset"
	gbdterrors "github.com/go-gbdt/gbdt/pkg/errors"
)

// Objective is the sealed-variant contract every loss function implements
// (§9 design notes: single virtual method, no open plugin API beyond this).
// An Objective is bound to one dataset's label/weight/query metadata at
// construction time (via New), the way the teacher's CreateObjectiveFunction
// is called once per Trainer with the full training set already attached.
type Objective interface {
	// GetGradients fills g and h (each length numData*TreesPerIteration)
	// from the current score vector (same length/layout).
	GetGradients(scores []float64, g, h []float64)
	// TreesPerIteration is 1 for binary/regression/lambdarank, NumClass for
	// multiclass objectives.
	TreesPerIteration() int
	// InitScore returns the bias score (length TreesPerIteration) the
	// boosting controller seeds train/valid scores with before the first
	// tree is trained.
	InitScore() []float64
	// Name identifies the objective in the model file header.
	Name() string
}

// Transformer is implemented by objectives that need a post-transform at
// prediction time (e.g. multiclass softmax, binary sigmoid).
type Transformer interface {
	Transform(rawScores []float64) []float64
}

// Config bundles the parameters New needs beyond the objective's name.
type Config struct {
	NumClass    int
	Sigmoid     float64
	LabelGain   []float64
	MaxPosition int
}

// New constructs an Objective bound to meta. Recognised names: "regression"
// (L2), "binary" (logloss), "multiclass" (softmax), "multiclassova",
// "lambdarank".
func New(name string, meta *dataset.Metadata, cfg Config) (Objective, error) {
	switch name {
	case "", "regression", "regression_l2", "l2":
		return NewRegressionL2(meta), nil
	case "binary":
		s := cfg.Sigmoid
		if s <= 0 {
			s = 1
		}
		return NewBinaryLogloss(meta, s), nil
	case "multiclass", "softmax":
		if cfg.NumClass < 2 {
			return nil, gbdterrors.NewConfigError("num_class", "multiclass objective requires num_class >= 2")
		}
		return NewMulticlassSoftmax(meta, cfg.NumClass), nil
	case "multiclassova", "ova":
		if cfg.NumClass < 2 {
			return nil, gbdterrors.NewConfigError("num_class", "multiclassova objective requires num_class >= 2")
		}
		s := cfg.Sigmoid
		if s <= 0 {
			s = 1
		}
		return NewMulticlassOVA(meta, cfg.NumClass, s), nil
	case "lambdarank":
		if meta == nil || meta.NumQueries() == 0 {
			return nil, gbdterrors.NewConfigError("objective", "lambdarank requires query boundaries")
		}
		return NewLambdaRank(meta, cfg.LabelGain, cfg.MaxPosition), nil
	default:
		return nil, gbdterrors.NewConfigError("objective", "unknown objective "+name)
	}
}
