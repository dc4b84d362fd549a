// Package textio reads the plain-text input formats this module accepts:
// dense CSV/TSV-style rows and sparse LIBSVM rows, plus the auxiliary
// .weight/.query/.init files LightGBM's own loader recognises (§6).
package textio

import (
	"bufio"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	gbdterrors "github.com/go-gbdt/gbdt/pkg/errors"
)

// ParsedData is the row-major result of reading a training/prediction file:
// Label is nil for predict-only input. ToColumns builds a column-major
// copy of Rows on demand.
type ParsedData struct {
	Label      []float64
	Rows       [][]float64 // row-major, dense (LIBSVM rows expanded with zeros)
	NumFeatures int
}

// ToColumns transposes the row-major Rows into the column-major layout
// dataset.FromColumns expects.
func (p *ParsedData) ToColumns() [][]float64 {
	cols := make([][]float64, p.NumFeatures)
	for c := range cols {
		cols[c] = make([]float64, len(p.Rows))
	}
	for r, row := range p.Rows {
		for c, v := range row {
			cols[c][r] = v
		}
	}
	return cols
}

// ReadFile detects the format from the first data line (LIBSVM if it
// contains "idx:value" tokens, dense otherwise) and parses accordingly. hasLabel controls
// whether the first dense column / LIBSVM label field is consumed as the
// label rather than treated as a feature.
func ReadFile(path string, hasLabel bool) (*ParsedData, error) {
	cleanPath := filepath.Clean(path)
	f, err := os.Open(cleanPath)
	if err != nil {
		return nil, gbdterrors.NewIOError("textio.ReadFile", cleanPath, err)
	}
	defer func() { _ = f.Close() }()
	return Read(f, hasLabel)
}

// Read parses a training/prediction file from an io.Reader, sniffing the
// format from the first non-empty, non-comment line.
func Read(r io.Reader, hasLabel bool) (*ParsedData, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var lines []string
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, gbdterrors.NewIOError("textio.Read", "", err)
	}
	if len(lines) == 0 {
		return nil, gbdterrors.NewModelParseError("textio.Read", "empty input", 0)
	}

	if isLibsvm(lines[0]) {
		return parseLibsvm(lines, hasLabel)
	}
	return parseDense(lines, hasLabel)
}

// isLibsvm reports whether a line looks like sparse "idx:value" LIBSVM
// format rather than a plain delimited dense row.
func isLibsvm(line string) bool {
	fields := splitFields(line)
	for _, f := range fields {
		if strings.Contains(f, ":") {
			return true
		}
	}
	return false
}

func splitFields(line string) []string {
	return strings.FieldsFunc(line, func(r rune) bool {
		return r == ',' || r == '\t' || r == ' '
	})
}

func parseDense(lines []string, hasLabel bool) (*ParsedData, error) {
	out := &ParsedData{Rows: make([][]float64, 0, len(lines))}
	if hasLabel {
		out.Label = make([]float64, 0, len(lines))
	}
	for i, line := range lines {
		fields := splitFields(line)
		start := 0
		if hasLabel {
			if len(fields) == 0 {
				return nil, gbdterrors.NewModelParseError("textio.parseDense", "missing label", i+1)
			}
			label, err := strconv.ParseFloat(fields[0], 64)
			if err != nil {
				return nil, gbdterrors.NewModelParseError("textio.parseDense", "invalid label: "+fields[0], i+1)
			}
			out.Label = append(out.Label, label)
			start = 1
		}
		row := make([]float64, len(fields)-start)
		for j, tok := range fields[start:] {
			v, err := strconv.ParseFloat(tok, 64)
			if err != nil {
				return nil, gbdterrors.NewModelParseError("textio.parseDense", "invalid value: "+tok, i+1)
			}
			row[j] = v
		}
		if out.NumFeatures == 0 {
			out.NumFeatures = len(row)
		} else if len(row) != out.NumFeatures {
			return nil, gbdterrors.NewDataShapeError("textio.parseDense", len(row), out.NumFeatures, "row "+strconv.Itoa(i+1)+" has a different feature count")
		}
		out.Rows = append(out.Rows, row)
	}
	return out, nil
}

// parseLibsvm reads "label idx:value idx:value ..." rows (1-based feature
// indices, LIBSVM convention), expanding each row to a dense vector sized
// to the largest index seen across the file.
func parseLibsvm(lines []string, hasLabel bool) (*ParsedData, error) {
	type sparseRow struct {
		label  float64
		idx    []int
		val    []float64
	}
	rows := make([]sparseRow, len(lines))
	maxIdx := 0
	for i, line := range lines {
		fields := splitFields(line)
		start := 0
		var sr sparseRow
		if hasLabel {
			if len(fields) == 0 {
				return nil, gbdterrors.NewModelParseError("textio.parseLibsvm", "missing label", i+1)
			}
			label, err := strconv.ParseFloat(fields[0], 64)
			if err != nil {
				return nil, gbdterrors.NewModelParseError("textio.parseLibsvm", "invalid label: "+fields[0], i+1)
			}
			sr.label = label
			start = 1
		}
		for _, tok := range fields[start:] {
			idxStr, valStr, ok := strings.Cut(tok, ":")
			if !ok {
				return nil, gbdterrors.NewModelParseError("textio.parseLibsvm", "expected idx:value, got "+tok, i+1)
			}
			idx, err := strconv.Atoi(idxStr)
			if err != nil || idx < 1 {
				return nil, gbdterrors.NewModelParseError("textio.parseLibsvm", "invalid feature index: "+idxStr, i+1)
			}
			val, err := strconv.ParseFloat(valStr, 64)
			if err != nil {
				return nil, gbdterrors.NewModelParseError("textio.parseLibsvm", "invalid value: "+valStr, i+1)
			}
			sr.idx = append(sr.idx, idx)
			sr.val = append(sr.val, val)
			if idx > maxIdx {
				maxIdx = idx
			}
		}
		rows[i] = sr
	}

	out := &ParsedData{NumFeatures: maxIdx, Rows: make([][]float64, len(rows))}
	if hasLabel {
		out.Label = make([]float64, len(rows))
	}
	for i, sr := range rows {
		row := make([]float64, maxIdx)
		for j, idx := range sr.idx {
			row[idx-1] = sr.val[j]
		}
		out.Rows[i] = row
		if hasLabel {
			out.Label[i] = sr.label
		}
	}
	return out, nil
}

// ReadAuxVector reads a LightGBM auxiliary side file: one float per line,
// used for .weight and .init (per-row init score, single class) files.
func ReadAuxVector(path string) ([]float64, error) {
	cleanPath := filepath.Clean(path)
	f, err := os.Open(cleanPath)
	if err != nil {
		return nil, gbdterrors.NewIOError("textio.ReadAuxVector", cleanPath, err)
	}
	defer func() { _ = f.Close() }()

	var out []float64
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		tok := strings.TrimSpace(scanner.Text())
		if tok == "" {
			continue
		}
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return nil, gbdterrors.NewModelParseError("textio.ReadAuxVector", "invalid value: "+tok, line)
		}
		out = append(out, v)
	}
	if err := scanner.Err(); err != nil {
		return nil, gbdterrors.NewIOError("textio.ReadAuxVector", cleanPath, err)
	}
	return out, nil
}

// ReadQueryFile reads a LightGBM .query file: one row count per query
// group, per line, and converts it into cumulative boundaries (§3 invariant:
// qb[0]==0, qb[len-1]==num_data).
func ReadQueryFile(path string, numData int) ([]int32, error) {
	counts, err := ReadAuxVector(path)
	if err != nil {
		return nil, err
	}
	qb := make([]int32, 0, len(counts)+1)
	qb = append(qb, 0)
	total := 0
	for _, c := range counts {
		if c != math.Trunc(c) || c <= 0 {
			return nil, gbdterrors.NewModelParseError("textio.ReadQueryFile", "query counts must be positive integers", 0)
		}
		total += int(c)
		qb = append(qb, int32(total))
	}
	if total != numData {
		return nil, gbdterrors.NewDataShapeError("textio.ReadQueryFile", total, numData, "query file row counts must sum to num_data")
	}
	return qb, nil
}
