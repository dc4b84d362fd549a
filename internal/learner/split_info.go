package learner

// splitInfo is the best candidate split found for one leaf (§4.6): which
// feature, which bin threshold, the resulting gain, and the sufficient
// statistics needed to build the two child leaves without rescanning rows.
type splitInfo struct {
	valid bool
	gain  float64

	feature      int // local (used-feature) index
	thresholdBin uint32
	defaultLeft  bool

	leftSumGrad, leftSumHess   float64
	leftCount                  int32
	rightSumGrad, rightSumHess float64
	rightCount                 int32
}

// better reports whether candidate c beats the current best, tie-breaking
// by (feature_index, threshold_bin) so floating-point associativity in
// histogram sums never changes which split wins on a tie (§4.6, §4.7).
func (s splitInfo) better(c splitInfo) bool {
	if !c.valid {
		return false
	}
	if !s.valid {
		return true
	}
	if c.gain != s.gain {
		return c.gain > s.gain
	}
	if c.feature != s.feature {
		return c.feature < s.feature
	}
	return c.thresholdBin < s.thresholdBin
}
