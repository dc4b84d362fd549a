// Package config implements the Configuration collaborator (§1, §6 CLI
// surface): LightGBM-style key=value tokens ("objective=binary",
// "num_leaves=63"), not POSIX flags, with an alias table and validation
// that surfaces as a config error before training starts (§7).
package config

import (
	"strconv"
	"strings"

	gbdterrors "github.com/go-gbdt/gbdt/pkg/errors"
)

// Config holds every parameter named in the CLI surface (§6), with the
// same defaults and JSON-ish field grouping the teacher's TrainingParams
// used, generalised to the full histogram-based GBDT this module implements.
type Config struct {
	Task       string // "train" or "predict"
	Data       string
	ValidData  []string
	InputModel string
	OutputModel  string
	OutputResult string
	LearningCurveOutput string // ambient reporting: optional PNG path
	PredictContrib bool // task=predict: emit per-feature Saabas contributions instead of raw scores

	NumIterations int
	LearningRate  float64
	NumLeaves     int
	MaxBin        int
	MinDataInLeaf int
	MinSumHessianInLeaf float64
	Lambda        float64 // lambda_l2
	MinGainToSplit float64 // gamma

	BaggingFraction float64
	BaggingFreq     int
	FeatureFraction float64

	Objective string
	NumClass  int
	Sigmoid   float64
	Metric    []string

	Boosting string // "gbdt" or "dart"
	MaxDrop  int
	SkipDrop float64

	NumThreads         int
	IsSparse           bool
	UseTwoRoundLoading bool
	IsSaveBinaryFile   bool

	TreeLearner      string // "serial", "feature", "data"
	NumMachines      int
	LocalListenPort  int
	MachineListFile  string

	DropRate float64 // DART

	EarlyStoppingRound int
	OutputFreq         int

	Seed int
}

// Defaults returns a Config matching LightGBM's own published defaults,
// the values the teacher's NewTrainer filled in when a field was zero.
func Defaults() Config {
	return Config{
		Task:                "train",
		NumIterations:       100,
		LearningRate:        0.1,
		NumLeaves:           31,
		MaxBin:              255,
		MinDataInLeaf:       20,
		MinSumHessianInLeaf: 1e-3,
		BaggingFraction:     1.0,
		BaggingFreq:         0,
		FeatureFraction:     1.0,
		Objective:           "regression",
		NumClass:            1,
		Sigmoid:             1.0,
		Metric:              nil,
		Boosting:            "gbdt",
		MaxDrop:             50,
		SkipDrop:            0.5,
		NumThreads:          0, // 0 means "use GOMAXPROCS", resolved by callers
		TreeLearner:         "serial",
		NumMachines:         1,
		DropRate:            0.1,
		OutputFreq:          1,
	}
}

// aliases maps a deprecated or alternate key to its canonical name, the
// way LightGBM recognises "num_round" for "num_iterations" etc.
var aliases = map[string]string{
	"num_round":        "num_iterations",
	"num_boost_round":  "num_iterations",
	"shrinkage_rate":   "learning_rate",
	"num_leaf":         "num_leaves",
	"min_data":         "min_data_in_leaf",
	"min_child_samples": "min_data_in_leaf",
	"min_sum_hessian":  "min_sum_hessian_in_leaf",
	"min_child_weight": "min_sum_hessian_in_leaf",
	"lambda_l2":        "lambda",
	"reg_lambda":       "lambda",
	"min_split_gain":   "min_gain_to_split",
	"sub_row":          "bagging_fraction",
	"subsample":        "bagging_fraction",
	"subsample_freq":   "bagging_freq",
	"colsample_bytree": "feature_fraction",
	"valid":            "valid_data",
	"model_input":      "input_model",
	"model_output":     "output_model",
	"boosting_type":    "boosting",
	"boost":            "boosting",
}

// Parse reads LightGBM-style "key=value" tokens (as found on the CLI or in
// a config file, one token per line or per argv entry) into a Config
// seeded with Defaults(). Unknown keys are rejected as a config error so a
// typo doesn't silently no-op (§7).
func Parse(tokens []string) (Config, error) {
	cfg := Defaults()
	for _, tok := range tokens {
		tok = strings.TrimSpace(tok)
		if tok == "" || strings.HasPrefix(tok, "#") {
			continue
		}
		key, value, ok := strings.Cut(tok, "=")
		if !ok {
			return cfg, gbdterrors.NewConfigError(tok, "expected key=value")
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)
		if canonical, isAlias := aliases[key]; isAlias {
			key = canonical
		}
		if err := cfg.set(key, value); err != nil {
			return cfg, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) set(key, value string) error {
	var err error
	switch key {
	case "task":
		c.Task = value
	case "data":
		c.Data = value
	case "valid_data":
		c.ValidData = splitCSV(value)
	case "input_model":
		c.InputModel = value
	case "output_model":
		c.OutputModel = value
	case "output_result":
		c.OutputResult = value
	case "learning_curve_output":
		c.LearningCurveOutput = value
	case "predict_contrib":
		c.PredictContrib, err = atob(key, value)
	case "num_iterations":
		c.NumIterations, err = atoi(key, value)
	case "learning_rate":
		c.LearningRate, err = atof(key, value)
	case "num_leaves":
		c.NumLeaves, err = atoi(key, value)
	case "max_bin":
		c.MaxBin, err = atoi(key, value)
	case "min_data_in_leaf":
		c.MinDataInLeaf, err = atoi(key, value)
	case "min_sum_hessian_in_leaf":
		c.MinSumHessianInLeaf, err = atof(key, value)
	case "lambda":
		c.Lambda, err = atof(key, value)
	case "min_gain_to_split":
		c.MinGainToSplit, err = atof(key, value)
	case "bagging_fraction":
		c.BaggingFraction, err = atof(key, value)
	case "bagging_freq":
		c.BaggingFreq, err = atoi(key, value)
	case "feature_fraction":
		c.FeatureFraction, err = atof(key, value)
	case "objective":
		c.Objective = value
	case "num_class":
		c.NumClass, err = atoi(key, value)
	case "sigmoid":
		c.Sigmoid, err = atof(key, value)
	case "metric":
		c.Metric = splitCSV(value)
	case "boosting":
		c.Boosting = value
	case "max_drop":
		c.MaxDrop, err = atoi(key, value)
	case "skip_drop":
		c.SkipDrop, err = atof(key, value)
	case "num_threads":
		c.NumThreads, err = atoi(key, value)
	case "is_sparse":
		c.IsSparse, err = atob(key, value)
	case "use_two_round_loading":
		c.UseTwoRoundLoading, err = atob(key, value)
	case "is_save_binary_file":
		c.IsSaveBinaryFile, err = atob(key, value)
	case "tree_learner":
		c.TreeLearner = value
	case "num_machines":
		c.NumMachines, err = atoi(key, value)
	case "local_listen_port":
		c.LocalListenPort, err = atoi(key, value)
	case "machine_list_file":
		c.MachineListFile = value
	case "drop_rate":
		c.DropRate, err = atof(key, value)
	case "early_stopping_round":
		c.EarlyStoppingRound, err = atoi(key, value)
	case "output_freq":
		c.OutputFreq, err = atoi(key, value)
	case "seed":
		c.Seed, err = atoi(key, value)
	default:
		return gbdterrors.NewConfigError(key, "unknown parameter")
	}
	return err
}

func atoi(key, value string) (int, error) {
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, gbdterrors.NewConfigError(key, "expected an integer, got "+value)
	}
	return v, nil
}

func atof(key, value string) (float64, error) {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, gbdterrors.NewConfigError(key, "expected a number, got "+value)
	}
	return v, nil
}

func atob(key, value string) (bool, error) {
	v, err := strconv.ParseBool(value)
	if err != nil {
		return false, gbdterrors.NewConfigError(key, "expected true/false, got "+value)
	}
	return v, nil
}

func splitCSV(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate rejects conflicting or out-of-range values before training
// starts (§7 config error examples: "bagging_fraction >= 1 and
// bagging_freq > 0" is not itself an error in LightGBM — bagging simply
// never triggers — but a negative fraction or an unusable tree_learner is).
func (c *Config) Validate() error {
	if c.Task != "train" && c.Task != "predict" {
		return gbdterrors.NewConfigError("task", "must be train or predict")
	}
	if c.NumLeaves < 2 {
		return gbdterrors.NewConfigError("num_leaves", "must be >= 2")
	}
	if c.MaxBin < 2 {
		return gbdterrors.NewConfigError("max_bin", "must be >= 2")
	}
	if c.LearningRate <= 0 {
		return gbdterrors.NewConfigError("learning_rate", "must be > 0")
	}
	if c.BaggingFraction <= 0 || c.BaggingFraction > 1 {
		return gbdterrors.NewConfigError("bagging_fraction", "must be in (0, 1]")
	}
	if c.FeatureFraction <= 0 || c.FeatureFraction > 1 {
		return gbdterrors.NewConfigError("feature_fraction", "must be in (0, 1]")
	}
	switch c.TreeLearner {
	case "serial", "feature", "data":
	default:
		return gbdterrors.NewConfigError("tree_learner", "must be serial, feature, or data")
	}
	if c.TreeLearner != "serial" && c.NumMachines < 2 {
		return gbdterrors.NewConfigError("num_machines", "feature/data tree_learner requires num_machines >= 2")
	}
	if c.NumClass < 1 {
		return gbdterrors.NewConfigError("num_class", "must be >= 1")
	}
	if c.DropRate < 0 || c.DropRate > 1 {
		return gbdterrors.NewConfigError("drop_rate", "must be in [0, 1]")
	}
	switch c.Boosting {
	case "gbdt", "dart":
	default:
		return gbdterrors.NewConfigError("boosting", "must be gbdt or dart")
	}
	if c.SkipDrop < 0 || c.SkipDrop > 1 {
		return gbdterrors.NewConfigError("skip_drop", "must be in [0, 1]")
	}
	return nil
}
