package plot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLearningCurveWritesPNG(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "curve.png")

	err := LearningCurve("training", []Series{
		{Name: "l2", Values: []float64{1.0, 0.5, 0.25, 0.1}},
		{Name: "valid l2", Values: []float64{1.2, 0.8, 0.4, 0.3}},
	}, path)
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestLearningCurveRejectsNoSeries(t *testing.T) {
	err := LearningCurve("empty", nil, filepath.Join(t.TempDir(), "out.png"))
	assert.Error(t, err)
}
