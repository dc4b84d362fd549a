package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
}

func TestParseOverridesAndAliases(t *testing.T) {
	cfg, err := Parse([]string{
		"task=train",
		"data=train.txt",
		"valid_data=v1.txt,v2.txt",
		"num_round=50",     // alias for num_iterations
		"shrinkage_rate=0.05", // alias for learning_rate
		"subsample=0.8",    // alias for bagging_fraction
		"objective=binary",
		"metric=auc,binary_logloss",
	})
	require.NoError(t, err)

	assert.Equal(t, "train", cfg.Task)
	assert.Equal(t, []string{"v1.txt", "v2.txt"}, cfg.ValidData)
	assert.Equal(t, 50, cfg.NumIterations)
	assert.InDelta(t, 0.05, cfg.LearningRate, 1e-12)
	assert.InDelta(t, 0.8, cfg.BaggingFraction, 1e-12)
	assert.Equal(t, "binary", cfg.Objective)
	assert.Equal(t, []string{"auc", "binary_logloss"}, cfg.Metric)
}

func TestParseRejectsUnknownKey(t *testing.T) {
	_, err := Parse([]string{"not_a_real_key=1"})
	assert.Error(t, err)
}

func TestParseRejectsMalformedToken(t *testing.T) {
	_, err := Parse([]string{"no_equals_sign"})
	assert.Error(t, err)
}

func TestParseSkipsBlankLinesAndComments(t *testing.T) {
	cfg, err := Parse([]string{"", "  ", "# a comment", "num_leaves=63"})
	require.NoError(t, err)
	assert.Equal(t, 63, cfg.NumLeaves)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []string{
		"num_leaves=1",
		"max_bin=1",
		"learning_rate=0",
		"bagging_fraction=1.5",
		"feature_fraction=0",
		"tree_learner=bogus",
		"num_class=0",
		"drop_rate=1.5",
		"boosting=bogus",
	}
	for _, tok := range cases {
		_, err := Parse([]string{tok})
		assert.Errorf(t, err, "expected %q to fail validation", tok)
	}
}

func TestValidateFeatureDataTreeLearnerRequiresMachines(t *testing.T) {
	_, err := Parse([]string{"tree_learner=feature", "num_machines=1"})
	assert.Error(t, err)

	_, err = Parse([]string{"tree_learner=feature", "num_machines=2"})
	assert.NoError(t, err)
}

func TestPredictContribAndLearningCurveOutput(t *testing.T) {
	cfg, err := Parse([]string{
		"task=predict",
		"predict_contrib=true",
		"learning_curve_output=curve.png",
	})
	require.NoError(t, err)
	assert.True(t, cfg.PredictContrib)
	assert.Equal(t, "curve.png", cfg.LearningCurveOutput)
}

func TestDartBoostingParams(t *testing.T) {
	cfg, err := Parse([]string{"boosting=dart", "drop_rate=0.2", "max_drop=10", "skip_drop=0.3"})
	require.NoError(t, err)
	assert.Equal(t, "dart", cfg.Boosting)
	assert.InDelta(t, 0.2, cfg.DropRate, 1e-12)
	assert.Equal(t, 10, cfg.MaxDrop)
	assert.InDelta(t, 0.3, cfg.SkipDrop, 1e-12)
}
