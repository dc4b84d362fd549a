package binning

// HistogramEntry accumulates gradient/hessian/count for one bin (spec §3).
type HistogramEntry struct {
	SumGradient float64
	SumHessian  float64
	Count       uint32
}

// Bin is the column-major binned storage contract for one feature (§4.2).
// A Dense bin gives O(1) random access; a Sparse bin only supports
// sequential iteration, which is why histogram construction and split take
// row-id slices rather than raw indices.
type Bin interface {
	// NumBin returns the number of bins this column's mapper produced.
	NumBin() int
	// Push records that row idx falls in binIdx, during dataset load.
	// Not safe for concurrent calls on the same Bin from multiple threads;
	// callers build per-thread shards and merge them with FinishLoad.
	Push(idx int, binIdx uint32)
	// FinishLoad compacts/finalises the column after all Push calls (and any
	// shard merge) have completed.
	FinishLoad()
	// BinAt returns the bin index stored for row idx. Dense: a slice index.
	// Sparse: a lookup in the row->bin map built by FinishLoad, falling
	// back to the default bin for rows with no stored entry.
	BinAt(idx int) uint32
	// ConstructHistogram accumulates (g, h, count) into out, one entry
	// per bin, for exactly the given row ids.
	ConstructHistogram(rows []int, g, h []float64, out []HistogramEntry)
	// Split partitions rows into rows that go left (bin <= thresholdBin,
	// except DefaultBin which follows defaultLeft) and right. Returns the
	// count of rows placed left; rowsOut is overwritten in place: left rows
	// occupy rowsOut[:leftCount], right rows occupy rowsOut[leftCount:].
	Split(thresholdBin uint32, defaultBin uint32, defaultLeft bool, rowsIn []int, rowsOut []int) int
}

// DenseBin stores one bin index per row: NewDenseBin picks a byte per row
// when the column has at most 256 bins and a uint16 per row otherwise.
// There is no 4-bit packing.
type DenseBin struct {
	numBin int
	small  []uint8  // used when numBin <= 256
	wide   []uint16 // used when numBin > 256
}

// NewDenseBin allocates a dense column for numData rows and numBin bins.
func NewDenseBin(numData, numBin int) *DenseBin {
	d := &DenseBin{numBin: numBin}
	if numBin <= 256 {
		d.small = make([]uint8, numData)
	} else {
		d.wide = make([]uint16, numData)
	}
	return d
}

func (d *DenseBin) NumBin() int { return d.numBin }

// NumData returns the row count this column was allocated for.
func (d *DenseBin) NumData() int {
	if d.small != nil {
		return len(d.small)
	}
	return len(d.wide)
}

func (d *DenseBin) Push(idx int, binIdx uint32) {
	if d.small != nil {
		d.small[idx] = uint8(binIdx)
	} else {
		d.wide[idx] = uint16(binIdx)
	}
}

func (d *DenseBin) FinishLoad() {}

func (d *DenseBin) BinAt(idx int) uint32 {
	if d.small != nil {
		return uint32(d.small[idx])
	}
	return uint32(d.wide[idx])
}

func (d *DenseBin) ConstructHistogram(rows []int, g, h []float64, out []HistogramEntry) {
	if d.small != nil {
		for _, r := range rows {
			b := d.small[r]
			e := &out[b]
			e.SumGradient += g[r]
			e.SumHessian += h[r]
			e.Count++
		}
		return
	}
	for _, r := range rows {
		b := d.wide[r]
		e := &out[b]
		e.SumGradient += g[r]
		e.SumHessian += h[r]
		e.Count++
	}
}

func (d *DenseBin) Split(thresholdBin uint32, defaultBin uint32, defaultLeft bool, rowsIn []int, rowsOut []int) int {
	left := 0
	right := len(rowsIn) - 1
	for _, r := range rowsIn {
		b := d.BinAt(r)
		goLeft := b <= thresholdBin
		if b == defaultBin {
			goLeft = defaultLeft
		}
		if goLeft {
			rowsOut[left] = r
			left++
		} else {
			rowsOut[right] = r
			right--
		}
	}
	// The above fills left-to-right and right-to-left in one pass; the
	// right side ends up reversed relative to input order, which is fine
	// because DataPartition makes no ordering guarantee (§4.4).
	return left
}

// SparseBin stores only non-default entries as parallel (delta, val) runs:
// delta is the row-gap to the next non-default row (8-bit, with 0xFF used
// as a continuation marker for gaps > 255), val is the bin index (§3).
type SparseBin struct {
	numBin     int
	numData    int
	defaultBin uint32
	delta      []uint8
	val        []uint8
	rowOf      []int          // row index for each (delta, val) entry, built at FinishLoad
	index      map[int]uint32 // rowOf -> val, excluding continuation markers
	// buildRows/buildBins accumulate Push calls before FinishLoad compacts
	// them into the delta/val run encoding.
	buildRows []int
	buildBins []uint32
}

// NewSparseBin allocates a sparse column. defaultBin is the bin assigned to
// values that are never explicitly pushed (implicit zeros).
func NewSparseBin(numData, numBin int, defaultBin uint32) *SparseBin {
	return &SparseBin{numBin: numBin, numData: numData, defaultBin: defaultBin}
}

func (s *SparseBin) NumBin() int { return s.numBin }

// NumData returns the row count this column was allocated for.
func (s *SparseBin) NumData() int { return s.numData }

// DefaultBin returns the bin assigned to rows with no explicit entry.
func (s *SparseBin) DefaultBin() uint32 { return s.defaultBin }

// Entries returns the (row, bin) pairs actually stored, in row order,
// excluding overflow-chain continuation markers. Used for serialisation.
func (s *SparseBin) Entries() (rows []int, bins []uint32) {
	rows = make([]int, 0, len(s.rowOf))
	bins = make([]uint32, 0, len(s.rowOf))
	for i, r := range s.rowOf {
		if s.val[i] == 0xFF {
			continue
		}
		rows = append(rows, r)
		bins = append(bins, uint32(s.val[i]))
	}
	return rows, bins
}

// LoadEntries reconstructs a SparseBin's delta/val encoding directly from
// (row, bin) pairs, the inverse of Entries, used when deserialising.
func (s *SparseBin) LoadEntries(rows []int, bins []uint32) {
	s.buildRows = append([]int(nil), rows...)
	s.buildBins = append([]uint32(nil), bins...)
	s.FinishLoad()
}

func (s *SparseBin) Push(idx int, binIdx uint32) {
	if binIdx == s.defaultBin {
		return // implicit; not stored
	}
	s.buildRows = append(s.buildRows, idx)
	s.buildBins = append(s.buildBins, binIdx)
}

func (s *SparseBin) FinishLoad() {
	n := len(s.buildRows)
	s.delta = make([]uint8, 0, n)
	s.val = make([]uint8, 0, n)
	s.rowOf = make([]int, 0, n)
	prev := -1
	for i, row := range s.buildRows {
		gap := row - prev
		for gap > 255 {
			// overflow chain: emit a marker entry that consumes 255 rows
			// with no value, keeping every delta byte-sized.
			s.delta = append(s.delta, 255)
			s.val = append(s.val, 0xFF) // continuation marker, never a real bin
			s.rowOf = append(s.rowOf, prev+255)
			gap -= 255
			prev += 255
		}
		s.delta = append(s.delta, uint8(gap))
		s.val = append(s.val, uint8(s.buildBins[i]))
		s.rowOf = append(s.rowOf, row)
		prev = row
	}
	s.buildRows = nil
	s.buildBins = nil

	s.index = make(map[int]uint32, len(s.rowOf))
	for i, r := range s.rowOf {
		if s.val[i] != 0xFF {
			s.index[r] = uint32(s.val[i])
		}
	}
}

// BinAt looks idx up in the row->bin map built by FinishLoad and returns
// the default bin for rows with no stored entry. Used for interface
// completeness and for OrderedBin construction.
func (s *SparseBin) BinAt(idx int) uint32 {
	if v, ok := s.index[idx]; ok {
		return v
	}
	return s.defaultBin
}

func (s *SparseBin) ConstructHistogram(rows []int, g, h []float64, out []HistogramEntry) {
	for _, r := range rows {
		b := s.defaultBin
		if v, ok := s.index[r]; ok {
			b = v
		}
		e := &out[b]
		e.SumGradient += g[r]
		e.SumHessian += h[r]
		e.Count++
	}
}

func (s *SparseBin) Split(thresholdBin uint32, defaultBin uint32, defaultLeft bool, rowsIn []int, rowsOut []int) int {
	left := 0
	right := len(rowsIn) - 1
	for _, r := range rowsIn {
		b := s.defaultBin
		if v, ok := s.index[r]; ok {
			b = v
		}
		goLeft := b <= thresholdBin
		if b == defaultBin {
			goLeft = defaultLeft
		}
		if goLeft {
			rowsOut[left] = r
			left++
		} else {
			rowsOut[right] = r
			right--
		}
	}
	return left
}

// ChooseEncoding picks Dense or Sparse for a feature based on its sparse
// rate and a threshold (default 0.8, spec §3).
func ChooseEncoding(sparseRate, threshold float64) string {
	if sparseRate > threshold {
		return "sparse"
	}
	return "dense"
}
