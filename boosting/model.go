// Package boosting implements the GBDT and DART controllers (§4.9, §4.10):
// the iteration loop, bagging, shrinkage, score bookkeeping, early
// stopping, and the trained Model's text (de)serialisation (§6 model
// format) and feature importance (supplemented from original_source/).
package boosting

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/go-gbdt/gbdt/internal/tree"
	gbdterrors "github.com/go-gbdt/gbdt/pkg/errors"
)

// Model is a trained ensemble: TreesPerIteration trees are added together
// per boosting round (1 for binary/regression/lambdarank, NumClass for
// multiclass).
type Model struct {
	BoostingType      string // "gbdt" or "dart"
	Objective         string
	NumClass          int
	TreesPerIteration int
	LabelIndex        int
	MaxFeatureIdx     int
	Sigmoid           float64
	FeatureNames      []string
	Trees             []*tree.Tree
}

// Predict returns the raw per-class score (length NumClass) for one row,
// summing every tree's contribution; class c's trees are the ones at
// indices c, c+NumClass, c+2*NumClass, ... (round-major order, §4.9).
func (m *Model) Predict(row []float64) []float64 {
	out := make([]float64, m.NumClass)
	for i, t := range m.Trees {
		out[i%m.TreesPerIteration] += t.Predict(row)
	}
	return out
}

// PredictContrib returns the summed Saabas-style per-feature contribution
// vector (length MaxFeatureIdx+1) and bias across every tree of class 0,
// exposing tree.Tree.PredictContrib through the model's production predict
// path (§ SPEC_FULL supplemented features — predict_contrib).
func (m *Model) PredictContrib(row []float64) (contrib []float64, bias float64) {
	numFeatures := m.MaxFeatureIdx + 1
	contrib = make([]float64, numFeatures)
	for i, t := range m.Trees {
		if i%m.TreesPerIteration != 0 {
			continue
		}
		tc, tb := t.PredictContrib(row, numFeatures)
		for f, v := range tc {
			contrib[f] += v
		}
		bias += tb
	}
	return contrib, bias
}

// NumIteration reports how many boosting rounds the model holds.
func (m *Model) NumIteration() int {
	if m.TreesPerIteration == 0 {
		return 0
	}
	return len(m.Trees) / m.TreesPerIteration
}

// TruncateLast drops the last n boosting rounds (n*TreesPerIteration
// trees), used by early stopping to discard iterations trained after the
// best validation score was last seen (§4.9 step 4).
func (m *Model) TruncateLast(n int) {
	drop := n * m.TreesPerIteration
	if drop <= 0 || drop > len(m.Trees) {
		return
	}
	m.Trees = m.Trees[:len(m.Trees)-drop]
}

// ImportanceKind selects the feature importance statistic (§ SPEC_FULL
// supplemented features: split-count and total-gain, grounded in
// gbdt.cpp's FeatureImportance).
type ImportanceKind int

const (
	ImportanceSplit ImportanceKind = iota
	ImportanceGain
)

// FeatureImportance sums, per feature, either the number of times it was
// used as a split feature or the total gain of splits that used it.
func (m *Model) FeatureImportance(kind ImportanceKind) map[string]float64 {
	totals := make(map[int]float64)
	for _, t := range m.Trees {
		for i, f := range t.SplitFeature {
			switch kind {
			case ImportanceGain:
				totals[int(f)] += t.Gain[i]
			default:
				totals[int(f)]++
			}
		}
	}
	out := make(map[string]float64, len(totals))
	for f, v := range totals {
		out[m.featureName(f)] = v
	}
	return out
}

func (m *Model) featureName(f int) string {
	if f >= 0 && f < len(m.FeatureNames) && m.FeatureNames[f] != "" {
		return m.FeatureNames[f]
	}
	return "Column_" + strconv.Itoa(f)
}

// Dump writes the model in LightGBM's own plain-text, line-oriented format
// (§6 model file format): a header, one block per tree, and a trailing
// "feature importances:" block.
func (m *Model) Dump(w io.Writer) error {
	bw := bufio.NewWriter(w)

	boostingType := m.BoostingType
	if boostingType == "" {
		boostingType = "gbdt"
	}
	fmt.Fprintln(bw, boostingType)
	fmt.Fprintf(bw, "num_class=%d\n", m.NumClass)
	fmt.Fprintf(bw, "label_index=%d\n", m.LabelIndex)
	fmt.Fprintf(bw, "max_feature_idx=%d\n", m.MaxFeatureIdx)
	fmt.Fprintf(bw, "sigmoid=%s\n", formatFloat(m.Sigmoid))
	if m.Objective != "" {
		fmt.Fprintf(bw, "objective=%s\n", m.Objective)
	}
	if len(m.FeatureNames) > 0 {
		fmt.Fprintf(bw, "feature_names=%s\n", strings.Join(m.FeatureNames, " "))
	}
	fmt.Fprintln(bw)

	var sb strings.Builder
	for idx, t := range m.Trees {
		t.WriteTo(&sb, idx)
	}
	if _, err := bw.WriteString(sb.String()); err != nil {
		return gbdterrors.NewIOError("boosting.Model.Dump", "", err)
	}

	fmt.Fprintln(bw, "feature importances:")
	for name, v := range m.FeatureImportance(ImportanceSplit) {
		fmt.Fprintf(bw, "%s=%d\n", name, int64(v))
	}

	return bw.Flush()
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

// Parse reads a model written by Dump back into a Model.
func Parse(r io.Reader) (*Model, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	m := &Model{NumClass: 1, TreesPerIteration: 1}
	params := map[string]string{}
	inTree := false
	sawHeader := false
	inImportances := false
	lineNo := 0

	flush := func() error {
		if inTree {
			t, err := tree.ParseBlock(params)
			if err != nil {
				return err
			}
			m.Trees = append(m.Trees, t)
		}
		inTree = false
		params = map[string]string{}
		return nil
	}

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			if err := flush(); err != nil {
				return nil, err
			}
			continue
		}
		if line == "feature importances:" {
			if err := flush(); err != nil {
				return nil, err
			}
			inImportances = true
			continue
		}
		if inImportances {
			continue // importances are derived, not restored
		}
		if strings.HasPrefix(line, "Tree=") {
			if err := flush(); err != nil {
				return nil, err
			}
			inTree = true
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			if !sawHeader {
				m.BoostingType = line
				sawHeader = true
				continue
			}
			return nil, gbdterrors.NewModelParseError("boosting.Parse", "expected key=value", lineNo)
		}
		if !sawHeader {
			return nil, gbdterrors.NewModelParseError("boosting.Parse", "missing boosting-kind header line", lineNo)
		}
		if inTree {
			params[key] = value
			continue
		}
		switch key {
		case "num_class":
			m.NumClass, _ = strconv.Atoi(value)
			if m.NumClass > 1 {
				m.TreesPerIteration = m.NumClass
			}
		case "label_index":
			m.LabelIndex, _ = strconv.Atoi(value)
		case "max_feature_idx":
			m.MaxFeatureIdx, _ = strconv.Atoi(value)
		case "sigmoid":
			m.Sigmoid, _ = strconv.ParseFloat(value, 64)
		case "objective":
			m.Objective = value
		case "feature_names":
			m.FeatureNames = strings.Fields(value)
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}
	if err := scanner.Err(); err != nil {
		return nil, gbdterrors.NewIOError("boosting.Parse", "", err)
	}
	if !sawHeader {
		return nil, gbdterrors.NewModelParseError("boosting.Parse", "empty model file", lineNo)
	}
	return m, nil
}

