package binning

// OrderedBin maintains, per current leaf, a contiguous block of (row, bin)
// pairs drawn from a sparse column's non-default entries only (§4.3). It
// trades memory (one array sized to the sparse feature's non-default count,
// not num_data) for sequential, cache-friendly histogram construction: the
// caller never touches the sparse column's random-access map in the hot
// split-search loop.
//
// Used only when a column's sparse rate clears the encoding threshold and
// the learner opts into "ordered" mode for that feature (§4.3).
type OrderedBin struct {
	src *SparseBin

	// rows/bins is the full, leaf-partitioned array of non-default entries.
	rows []int
	bins []uint32

	// leafBegin/leafCount delimit the block owned by each live leaf id.
	leafBegin []int
	leafCount []int
}

// NewOrderedBin builds the initial single-block view (all non-default rows
// in leaf 0) from a SparseBin.
func NewOrderedBin(src *SparseBin) *OrderedBin {
	o := &OrderedBin{src: src}
	o.rows = make([]int, len(src.rowOf))
	o.bins = make([]uint32, len(src.rowOf))
	n := 0
	for i, r := range src.rowOf {
		if src.val[i] == 0xFF {
			continue
		}
		o.rows[n] = r
		o.bins[n] = uint32(src.val[i])
		n++
	}
	o.rows = o.rows[:n]
	o.bins = o.bins[:n]
	o.leafBegin = []int{0}
	o.leafCount = []int{n}
	return o
}

// ConstructHistogram accumulates the (g, h, count) contribution of leaf's
// non-default rows into out (per-bin). It does not add the default-bin
// rows: the caller, which knows the leaf's total gradient/hessian sum and
// row count, adds that mass as the leaf total minus what was seen here.
func (o *OrderedBin) ConstructHistogram(leaf int, g, h []float64, out []HistogramEntry) {
	begin, count := o.leafBegin[leaf], o.leafCount[leaf]
	for i := begin; i < begin+count; i++ {
		r := o.rows[i]
		b := o.bins[i]
		e := &out[b]
		e.SumGradient += g[r]
		e.SumHessian += h[r]
		e.Count++
	}
}

// NonDefaultRows returns the rows (and bins) owned by a leaf, for callers
// that need to know which rows were iterated (e.g. to compute the implicit
// default-bin sum as leaf-total minus this).
func (o *OrderedBin) NonDefaultRows(leaf int) ([]int, []uint32) {
	begin, count := o.leafBegin[leaf], o.leafCount[leaf]
	return o.rows[begin : begin+count], o.bins[begin : begin+count]
}

// Split partitions leaf's block in place using a membership predicate
// (typically "is this row in the left child's row set", computed by
// DataPartition.Split) and registers the resulting right sub-block as
// rightLeaf's new region. The left sub-block stays at leaf's original
// offset, shrunk to its new count — mirroring DataPartition's in-place
// partition (§4.4).
func (o *OrderedBin) Split(leaf, rightLeaf int, goesLeft func(row int) bool) {
	begin, count := o.leafBegin[leaf], o.leafCount[leaf]
	end := begin + count
	left := begin
	right := end - 1
	rows := o.rows
	bins := o.bins
	for left <= right {
		for left <= right && goesLeft(rows[left]) {
			left++
		}
		for left <= right && !goesLeft(rows[right]) {
			right--
		}
		if left < right {
			rows[left], rows[right] = rows[right], rows[left]
			bins[left], bins[right] = bins[right], bins[left]
			left++
			right--
		}
	}
	leftCount := left - begin
	o.leafCount[leaf] = leftCount
	o.leafBegin = append(o.leafBegin, left)
	o.leafCount = append(o.leafCount, count-leftCount)
	_ = rightLeaf // leaf ids are assigned by the caller; block index == leaf id by convention
}
