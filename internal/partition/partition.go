// Package partition implements DataPartition: the leaf -> contiguous row
// range map that the tree learner splits in place as it grows (§4.4).
package partition

import (
	"runtime"
	"sync"

	"github.com/go-gbdt/gbdt/internal/binning"
)

// leafRange is a (begin, count) slice into Indices.
type leafRange struct {
	begin, count int
}

// DataPartition maintains indices (a permutation of row ids) plus, per
// leaf, the contiguous range within indices that leaf owns. Splits are not
// stable: relative order within each child is not preserved (§4.4).
type DataPartition struct {
	Indices []int
	ranges  []leafRange

	numThreads int
}

// Init seeds leaf 0 with every row in usedIndices (or all NumData rows if
// usedIndices is nil, i.e. no bagging this iteration).
func Init(numData int, usedIndices []int, numThreads int) *DataPartition {
	if numThreads <= 0 {
		numThreads = runtime.GOMAXPROCS(0)
	}
	p := &DataPartition{numThreads: numThreads}
	if usedIndices != nil {
		p.Indices = append([]int(nil), usedIndices...)
	} else {
		p.Indices = make([]int, numData)
		for i := range p.Indices {
			p.Indices[i] = i
		}
	}
	p.ranges = []leafRange{{begin: 0, count: len(p.Indices)}}
	return p
}

// NumLeaves returns the current number of live leaves.
func (p *DataPartition) NumLeaves() int { return len(p.ranges) }

// LeafRows returns the row-id slice owned by leaf.
func (p *DataPartition) LeafRows(leaf int) []int {
	r := p.ranges[leaf]
	return p.Indices[r.begin : r.begin+r.count]
}

// LeafCount returns the row count owned by leaf.
func (p *DataPartition) LeafCount(leaf int) int { return p.ranges[leaf].count }

// Split partitions leaf's rows by bin, using featureBin to classify each
// row, producing a left child that reuses leaf's id and a right child
// that gets a new leaf id (returned). The row range is chunked across
// p.numThreads workers: each computes its own (left, right) sub-partition
// into a scratch buffer, a serial prefix scan assigns write offsets, then
// a second parallel pass copies scratch back into Indices (§4.4).
func (p *DataPartition) Split(leaf int, featureBin binning.Bin, thresholdBin, defaultBin uint32, defaultLeft bool) (rightLeaf int) {
	r := p.ranges[leaf]
	rows := p.Indices[r.begin : r.begin+r.count]
	n := len(rows)

	numChunks := p.numThreads
	if numChunks > n {
		numChunks = n
	}
	if numChunks < 1 {
		numChunks = 1
	}
	chunkSize := (n + numChunks - 1) / numChunks

	leftBuf := make([][]int, numChunks)
	rightBuf := make([][]int, numChunks)
	var wg sync.WaitGroup
	for c := 0; c < numChunks; c++ {
		start := c * chunkSize
		end := start + chunkSize
		if end > n {
			end = n
		}
		if start >= end {
			continue
		}
		wg.Add(1)
		go func(c, start, end int) {
			defer wg.Done()
			chunk := rows[start:end]
			scratch := make([]int, len(chunk))
			left := featureBin.Split(thresholdBin, defaultBin, defaultLeft, chunk, scratch)
			leftBuf[c] = scratch[:left]
			// scratch[left:] holds the right rows in reverse order (see
			// binning.Bin.Split); copy it out the right way round isn't
			// required since child order is unspecified (§4.4).
			rightBuf[c] = scratch[left:]
		}(c, start, end)
	}
	wg.Wait()

	// Serial prefix scan: compute write offsets (O(num_threads)).
	leftOffsets := make([]int, numChunks)
	rightOffsets := make([]int, numChunks)
	leftTotal, rightTotal := 0, 0
	for c := 0; c < numChunks; c++ {
		leftOffsets[c] = leftTotal
		leftTotal += len(leftBuf[c])
	}
	for c := 0; c < numChunks; c++ {
		rightOffsets[c] = rightTotal
		rightTotal += len(rightBuf[c])
	}

	// Second parallel pass: copy scratch buffers back into Indices so left
	// rows occupy [begin, begin+leftTotal) and right rows occupy the rest.
	out := p.Indices[r.begin : r.begin+r.count]
	wg = sync.WaitGroup{}
	for c := 0; c < numChunks; c++ {
		if leftBuf[c] == nil && rightBuf[c] == nil {
			continue
		}
		wg.Add(1)
		go func(c int) {
			defer wg.Done()
			copy(out[leftOffsets[c]:], leftBuf[c])
			copy(out[leftTotal+rightOffsets[c]:], rightBuf[c])
		}(c)
	}
	wg.Wait()

	p.ranges[leaf] = leafRange{begin: r.begin, count: leftTotal}
	rightBegin := r.begin + leftTotal
	p.ranges = append(p.ranges, leafRange{begin: rightBegin, count: rightTotal})
	return len(p.ranges) - 1
}

// Totality checks the spec §8 invariant: every row id appears in exactly
// one leaf and leaf counts sum to N. Exposed for tests.
func (p *DataPartition) Totality(numData int) bool {
	seen := make([]bool, numData)
	total := 0
	for _, r := range p.ranges {
		total += r.count
		for _, row := range p.Indices[r.begin : r.begin+r.count] {
			if seen[row] {
				return false
			}
			seen[row] = true
		}
	}
	return total == len(p.Indices)
}
