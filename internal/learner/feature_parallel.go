package learner

import (
	"context"
	"math/rand"

	"github.com/go-gbdt/gbdt/internal/binning"
	"github.com/go-gbdt/gbdt/internal/dataset"
	"github.com/go-gbdt/gbdt/internal/histogram"
	"github.com/go-gbdt/gbdt/internal/partition"
	"github.com/go-gbdt/gbdt/internal/tree"
	gbdterrors "github.com/go-gbdt/gbdt/pkg/errors"
	"github.com/go-gbdt/gbdt/network"
)

// FeatureParallel is the feature-parallel TreeLearner variant (§4.7): every
// machine holds the full row set but searches only the features assigned
// to it, and the best candidate is Allreduced with an argmax-by-gain
// combiner before being applied identically on every machine. In this
// single-process simulation every "machine" shares the same underlying
// Dataset (see network.NewBarrier), so applying the winning split never
// needs a separate row-assignment broadcast — only the split decision
// itself is exchanged, exactly as the spec's "every machine holds all
// rows" premise implies.
type FeatureParallel struct {
	ds     *dataset.Dataset
	cfg    Config
	kernel *Learner
	net    network.Allreduce
	owned  map[int]bool
}

// NewFeatureParallel builds a FeatureParallel learner whose machine owns a
// deterministic shard of the Dataset's features (index modulo machine count),
// so that, across the group, every feature is searched by exactly one machine.
func NewFeatureParallel(ds *dataset.Dataset, cfg Config, net network.Allreduce) *FeatureParallel {
	owned := make(map[int]bool, len(ds.Features))
	for i := range ds.Features {
		if i%net.NumMachines() == net.MachineID() {
			owned[i] = true
		}
	}
	return &FeatureParallel{ds: ds, cfg: cfg, kernel: New(ds, cfg), net: net, owned: owned}
}

func noOrderedBins(n int) []*binning.OrderedBin {
	return make([]*binning.OrderedBin, n)
}

// Train mirrors Learner.Train's leaf-wise growth loop, but resolves each
// split via distributedBestSplit instead of a purely local search.
func (f *FeatureParallel) Train(g, h []float64, usedIndices []int, rnd *rand.Rand) (*tree.Tree, []int, error) {
	if len(g) != f.ds.NumData || len(h) != f.ds.NumData {
		return nil, nil, gbdterrors.NewDataShapeError("learner.FeatureParallel.Train", len(g), f.ds.NumData, "gradient/hessian length must equal dataset row count")
	}

	l := f.kernel
	part := partition.Init(f.ds.NumData, usedIndices, l.cfg.NumThreads)
	numBins := make([]int, len(f.ds.Features))
	for i, feat := range f.ds.Features {
		numBins[i] = feat.Mapper.NumBin()
	}
	pool := histogram.NewPool(l.cfg.HistogramPoolSize, numBins, l.cfg.MaxLeaves)
	noOB := noOrderedBins(len(f.ds.Features))

	allFeatures := l.selectFeatures(rnd)
	ownedSubset := make([]int, 0, len(allFeatures))
	for _, fi := range allFeatures {
		if f.owned[fi] {
			ownedSubset = append(ownedSubset, fi)
		}
	}

	rootRows := part.LeafRows(0)
	var sumG, sumH float64
	for _, r := range rootRows {
		sumG += g[r]
		sumH += h[r]
	}
	rootCount := int32(len(rootRows))
	t := tree.NewTree(-sumG / (sumH + l.cfg.Lambda))

	leafSumG := []float64{sumG}
	leafSumH := []float64{sumH}
	leafCount := []int32{rootCount}

	rootHist, _ := pool.Get(0)
	l.buildHistogram(0, rootRows, g, h, allFeatures, rootHist, noOB, sumG, sumH, rootCount)

	bestSplit := []splitInfo{f.distributedBestSplit(rootHist, ownedSubset, sumG, sumH, rootCount)}

	for t.NumLeaves < l.cfg.MaxLeaves {
		leaf := pickBestLeaf(bestSplit)
		if leaf < 0 {
			break
		}
		sp := bestSplit[leaf]
		if !sp.valid || sp.gain <= 0 {
			break
		}

		feat := f.ds.Features[sp.feature]
		leftValue := -sp.leftSumGrad / (sp.leftSumHess + l.cfg.Lambda)
		rightValue := -sp.rightSumGrad / (sp.rightSumHess + l.cfg.Lambda)

		parentHist, _ := pool.Get(leaf)
		snapshot := histogram.Clone(parentHist)

		thresholdReal := feat.Mapper.UpperBound[sp.thresholdBin]
		_, leftLeaf, rightLeaf := t.Split(leaf, int32(sp.feature), sp.thresholdBin, thresholdReal, sp.defaultLeft,
			leftValue, rightValue, sp.leftCount, sp.rightCount, sp.gain)

		part.Split(leaf, feat.Bin, sp.thresholdBin, uint32(feat.Mapper.DefaultBin), sp.defaultLeft)

		leafSumG = append(leafSumG, 0)
		leafSumH = append(leafSumH, 0)
		leafCount = append(leafCount, 0)
		leafSumG[leftLeaf], leafSumH[leftLeaf], leafCount[leftLeaf] = sp.leftSumGrad, sp.leftSumHess, sp.leftCount
		leafSumG[rightLeaf], leafSumH[rightLeaf], leafCount[rightLeaf] = sp.rightSumGrad, sp.rightSumHess, sp.rightCount

		smaller, larger := leftLeaf, rightLeaf
		if sp.rightCount < sp.leftCount {
			smaller, larger = rightLeaf, leftLeaf
		}

		smallerHist, _ := pool.Get(smaller)
		l.buildHistogram(smaller, part.LeafRows(smaller), g, h, allFeatures, smallerHist, noOB,
			leafSumG[smaller], leafSumH[smaller], leafCount[smaller])

		largerHist, _ := pool.Get(larger)
		histogram.Subtract(largerHist, snapshot, smallerHist)

		bestSplit = append(bestSplit, splitInfo{})
		leftHist, _ := pool.Get(leftLeaf)
		rightHist, _ := pool.Get(rightLeaf)
		bestSplit[leftLeaf] = f.distributedBestSplit(leftHist, ownedSubset, leafSumG[leftLeaf], leafSumH[leftLeaf], leafCount[leftLeaf])
		bestSplit[rightLeaf] = f.distributedBestSplit(rightHist, ownedSubset, leafSumG[rightLeaf], leafSumH[rightLeaf], leafCount[rightLeaf])
	}

	rowToLeaf := make([]int, f.ds.NumData)
	for i := range rowToLeaf {
		rowToLeaf[i] = -1
	}
	for leaf := 0; leaf < part.NumLeaves(); leaf++ {
		for _, r := range part.LeafRows(leaf) {
			rowToLeaf[r] = leaf
		}
	}
	return t, rowToLeaf, nil
}

// distributedBestSplit searches this machine's owned features locally,
// then Allreduces the single best candidate across the group so every
// machine applies the identical winning split (§4.7). Only the left-side
// sums travel on the wire; the right side is always recovered from the
// (already locally known) parent sums, keeping the payload fixed-width.
func (f *FeatureParallel) distributedBestSplit(hist histogram.FeatureSet, owned []int, parentSumG, parentSumH float64, parentCount int32) splitInfo {
	local := f.kernel.findBestSplit(hist, owned, parentSumG, parentSumH, parentCount)
	payload := encodeSplit(local, f.net.MachineID())
	reduced, err := f.net.Reduce(context.Background(), payload, network.ArgmaxGainOp)
	if err != nil {
		return splitInfo{}
	}
	return decodeSplit(reduced, parentSumG, parentSumH, parentCount)
}

// splitPayload layout: [gain, machineID, feature, thresholdBin, defaultLeft,
// leftSumGrad, leftSumHess, leftCount].
func encodeSplit(s splitInfo, machineID int) []float64 {
	if !s.valid {
		return []float64{negInf, float64(machineID), 0, 0, 0, 0, 0, 0}
	}
	defaultLeft := 0.0
	if s.defaultLeft {
		defaultLeft = 1
	}
	return []float64{
		s.gain, float64(machineID), float64(s.feature), float64(s.thresholdBin), defaultLeft,
		s.leftSumGrad, s.leftSumHess, float64(s.leftCount),
	}
}

const negInf = -1e300

func decodeSplit(payload []float64, parentSumG, parentSumH float64, parentCount int32) splitInfo {
	if len(payload) < 8 || payload[0] <= negInf/2 {
		return splitInfo{}
	}
	leftSumGrad, leftSumHess := payload[5], payload[6]
	leftCount := int32(payload[7])
	return splitInfo{
		valid:        true,
		gain:         payload[0],
		feature:      int(payload[2]),
		thresholdBin: uint32(payload[3]),
		defaultLeft:  payload[4] != 0,
		leftSumGrad:  leftSumGrad,
		leftSumHess:  leftSumHess,
		leftCount:    leftCount,
		rightSumGrad: parentSumG - leftSumGrad,
		rightSumHess: parentSumH - leftSumHess,
		rightCount:   parentCount - leftCount,
	}
}
