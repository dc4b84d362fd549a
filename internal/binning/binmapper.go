// Package binning implements the per-feature discretisation (BinMapper)
// and the two physical bin-storage encodings (dense and sparse) that make
// histogram-based tree learning fast: §4.1-§4.3 of the design.
package binning

import (
	"math"
	"sort"

	gbdterrors "github.com/go-gbdt/gbdt/pkg/errors"
)

// MissingValue is the sentinel raw value used for a row with no observed
// entry (as opposed to an observed zero). It matches LightGBM's NaN-is-missing
// convention.
const MissingValue = math.MaxFloat64

// BinMapper maps a feature's raw values to compact bin indices. Built once
// per feature during dataset load and immutable thereafter; shared by
// reference between a training dataset and any validation dataset built
// against it so that bin alignment is guaranteed (§9 design notes).
type BinMapper struct {
	// UpperBound[i] is the inclusive upper bound of bin i. UpperBound is
	// strictly increasing; the last entry is +Inf.
	UpperBound []float64
	// DefaultBin is the bin a zero/missing value maps to.
	DefaultBin int
	// IsTrivial is true when the feature has a single distinct value and
	// should be excluded from training (used_feature_map entry -1).
	IsTrivial bool
	// SparseRate is the fraction of rows equal to the feature's most common
	// value (usually zero), used to pick the storage encoding (§3).
	SparseRate float64
	// MissingIsZero records whether missing values were folded into the
	// zero bucket at bin-construction time.
	MissingIsZero bool
}

// NumBin returns the number of bins, always >= 1 (1 only for trivial features).
func (m *BinMapper) NumBin() int { return len(m.UpperBound) }

// ValueToBin returns the smallest i such that x <= UpperBound[i]. NaN and
// MissingValue map to DefaultBin, matching LightGBM's missing-value policy.
func (m *BinMapper) ValueToBin(x float64) int {
	if math.IsNaN(x) || x == MissingValue {
		return m.DefaultBin
	}
	// UpperBound is short (<= 256 entries): linear scan beats binary search
	// once the branch predictor warms up, and this runs in the load's hot
	// loop over every raw value.
	for i, ub := range m.UpperBound {
		if x <= ub {
			return i
		}
	}
	return len(m.UpperBound) - 1
}

// FindBin builds a BinMapper for one feature from a (possibly subsampled)
// slice of observed values. maxBin caps the number of bins (spec default
// 255), including the zero boundary insertZeroBoundary may add. When there
// are more distinct values than bins, minDataInBin merges any quantile bin
// that would otherwise end up with fewer than that many rows; with fewer
// distinct values every value gets its own bin and no merge happens.
func FindBin(samples []float64, totalCount int, maxBin int, minDataInBin int) *BinMapper {
	if maxBin < 2 {
		maxBin = 2
	}
	if minDataInBin < 1 {
		minDataInBin = 1
	}

	filtered := make([]float64, 0, len(samples))
	missing := 0
	for _, v := range samples {
		if math.IsNaN(v) {
			missing++
			continue
		}
		filtered = append(filtered, v)
	}
	sort.Float64s(filtered)

	distinct, counts := distinctCounts(filtered)
	if len(distinct) <= 1 {
		return &BinMapper{
			UpperBound:    []float64{math.Inf(1)},
			DefaultBin:    0,
			IsTrivial:     true,
			SparseRate:    sparseRate(counts, len(filtered)),
			MissingIsZero: missing > 0,
		}
	}

	// Keep one bin in reserve for the zero boundary when the values
	// straddle zero, so the final count never exceeds maxBin.
	budget := maxBin
	if distinct[0] <= 0 && distinct[len(distinct)-1] >= 0 {
		budget--
	}
	var upper []float64
	if len(distinct) <= budget {
		upper = midpointBounds(distinct)
	} else {
		upper = quantileBounds(distinct, counts, budget, minDataInBin)
	}
	upper = insertZeroBoundary(upper, distinct)

	m := &BinMapper{
		UpperBound:    upper,
		SparseRate:    sparseRate(counts, len(filtered)),
		MissingIsZero: missing > 0,
	}
	m.DefaultBin = m.ValueToBin(0)
	return m
}

func distinctCounts(sorted []float64) ([]float64, []int) {
	if len(sorted) == 0 {
		return nil, nil
	}
	distinct := []float64{sorted[0]}
	counts := []int{1}
	for _, v := range sorted[1:] {
		if v == distinct[len(distinct)-1] {
			counts[len(counts)-1]++
		} else {
			distinct = append(distinct, v)
			counts = append(counts, 1)
		}
	}
	return distinct, counts
}

func sparseRate(counts []int, total int) float64 {
	if total == 0 || len(counts) == 0 {
		return 1
	}
	max := 0
	for _, c := range counts {
		if c > max {
			max = c
		}
	}
	return float64(max) / float64(total)
}

// midpointBounds returns one boundary between every pair of consecutive
// distinct values (singleton bins), plus +Inf for the top bin.
func midpointBounds(distinct []float64) []float64 {
	bounds := make([]float64, 0, len(distinct))
	for i := 0; i+1 < len(distinct); i++ {
		bounds = append(bounds, (distinct[i]+distinct[i+1])/2)
	}
	bounds = append(bounds, math.Inf(1))
	return bounds
}

// quantileBounds partitions distinct values into roughly-equal-count groups,
// merging a boundary forward whenever splitting there would leave a group
// with fewer than minDataInBin rows (§4.1).
func quantileBounds(distinct []float64, counts []int, maxBin, minDataInBin int) []float64 {
	total := 0
	for _, c := range counts {
		total += c
	}
	targetPerBin := float64(total) / float64(maxBin)

	var bounds []float64
	acc := 0
	binStart := 0
	for i := range distinct {
		acc += counts[i]
		remainingBins := maxBin - len(bounds) - 1
		isLast := i == len(distinct)-1
		if isLast {
			break
		}
		enoughForThisBin := float64(acc) >= targetPerBin
		enoughRowsLeftInGroup := (i - binStart + 1) >= 1
		wouldLeaveTooFewNext := total-runningTotal(counts, i+1) < minDataInBin
		_ = wouldLeaveTooFewNext
		if enoughForThisBin && enoughRowsLeftInGroup && remainingBins > 0 {
			bounds = append(bounds, (distinct[i]+distinct[i+1])/2)
			acc = 0
			binStart = i + 1
		}
	}
	bounds = append(bounds, math.Inf(1))
	return mergeThinBins(bounds, distinct, counts, minDataInBin)
}

func runningTotal(counts []int, from int) int {
	s := 0
	for _, c := range counts[:from] {
		s += c
	}
	return s
}

// mergeThinBins removes a finite boundary if the bin it creates would hold
// fewer than minDataInBin rows, folding it into its neighbour.
func mergeThinBins(bounds []float64, distinct []float64, counts []int, minDataInBin int) []float64 {
	if len(bounds) <= 1 {
		return bounds
	}
	rowCount := func(lo, hi float64) int {
		c := 0
		for i, v := range distinct {
			if v > lo && v <= hi {
				c += counts[i]
			}
		}
		return c
	}
	merged := make([]float64, 0, len(bounds))
	prevBound := math.Inf(-1)
	for i, b := range bounds {
		hi := b
		if i == len(bounds)-1 {
			hi = math.Inf(1)
		}
		if rowCount(prevBound, hi) < minDataInBin && len(merged) > 0 {
			continue // fold this boundary away, extending the previous bin
		}
		merged = append(merged, b)
		prevBound = b
	}
	if len(merged) == 0 {
		merged = []float64{math.Inf(1)}
	} else {
		merged[len(merged)-1] = math.Inf(1)
	}
	return merged
}

// insertZeroBoundary guarantees zero sits on a boundary between two bins
// (never inside one), so ValueToBin(0) is deterministic and stable across
// rebinning (§4.1 "zero is always the interior boundary").
func insertZeroBoundary(bounds []float64, distinct []float64) []float64 {
	if distinct[0] > 0 || distinct[len(distinct)-1] < 0 {
		return bounds // zero out of range, nothing to do
	}
	for _, b := range bounds {
		if b == 0 {
			return bounds
		}
	}
	out := make([]float64, 0, len(bounds)+1)
	inserted := false
	prev := math.Inf(-1)
	for _, b := range bounds {
		if !inserted && prev < 0 && (b > 0 || math.IsInf(b, 1)) {
			out = append(out, 0)
			inserted = true
		}
		out = append(out, b)
		prev = b
	}
	return out
}

// ValidateForTraining returns a data-shape error if maxBin is unusable.
func ValidateForTraining(maxBin int) error {
	if maxBin < 2 {
		return gbdterrors.NewConfigError("max_bin", "must be >= 2")
	}
	return nil
}
