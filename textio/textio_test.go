package textio

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadDenseWithLabel(t *testing.T) {
	data := "1 0.5 1.5\n0 2.0 3.0\n"
	parsed, err := Read(strings.NewReader(data), true)
	require.NoError(t, err)

	assert.Equal(t, []float64{1, 0}, parsed.Label)
	assert.Equal(t, 2, parsed.NumFeatures)
	assert.Equal(t, [][]float64{{0.5, 1.5}, {2.0, 3.0}}, parsed.Rows)
}

func TestReadDenseNoLabel(t *testing.T) {
	data := "0.5 1.5\n2.0 3.0\n"
	parsed, err := Read(strings.NewReader(data), false)
	require.NoError(t, err)
	assert.Nil(t, parsed.Label)
	assert.Equal(t, 2, parsed.NumFeatures)
}

func TestReadLibsvmSniffsAndExpands(t *testing.T) {
	data := "1 1:0.5 3:2.0\n0 2:1.0\n"
	parsed, err := Read(strings.NewReader(data), true)
	require.NoError(t, err)

	assert.Equal(t, []float64{1, 0}, parsed.Label)
	assert.Equal(t, 3, parsed.NumFeatures)
	assert.Equal(t, []float64{0.5, 0, 2.0}, parsed.Rows[0])
	assert.Equal(t, []float64{0, 1.0, 0}, parsed.Rows[1])
}

func TestReadRejectsRaggedDenseRows(t *testing.T) {
	data := "1 0.5 1.5\n0 2.0\n"
	_, err := Read(strings.NewReader(data), true)
	assert.Error(t, err)
}

func TestReadSkipsCommentsAndBlankLines(t *testing.T) {
	data := "# comment\n\n1 0.5\n"
	parsed, err := Read(strings.NewReader(data), true)
	require.NoError(t, err)
	assert.Len(t, parsed.Rows, 1)
}

func TestToColumnsTransposes(t *testing.T) {
	p := &ParsedData{NumFeatures: 2, Rows: [][]float64{{1, 2}, {3, 4}, {5, 6}}}
	cols := p.ToColumns()
	assert.Equal(t, [][]float64{{1, 3, 5}, {2, 4, 6}}, cols)
}

func TestReadAuxVector(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/train.txt.weight"
	require.NoError(t, os.WriteFile(path, []byte("0.5\n1.0\n\n2.5\n"), 0o600))

	vals, err := ReadAuxVector(path)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 1.0, 2.5}, vals)
}

func TestReadQueryFileBoundaries(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/train.txt.query"
	require.NoError(t, os.WriteFile(path, []byte("3\n2\n"), 0o600))

	qb, err := ReadQueryFile(path, 5)
	require.NoError(t, err)
	assert.Equal(t, []int32{0, 3, 5}, qb)
}

func TestReadQueryFileRejectsMismatchedTotal(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/train.txt.query"
	require.NoError(t, os.WriteFile(path, []byte("3\n2\n"), 0o600))

	_, err := ReadQueryFile(path, 6)
	assert.Error(t, err)
}
