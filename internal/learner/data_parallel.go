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

// DataParallel is the data-parallel TreeLearner variant (§4.7): every
// machine holds every feature but only a disjoint slice of rows. Per-leaf
// per-feature histograms are Allreduce-summed before the best-split search,
// so every machine ends up searching an identical combined histogram and
// picks an identical winning split with no further exchange needed.
//
// This implementation Allreduces every feature's histogram rather than the
// spec's bandwidth-saving "only a sharded subset of features is fully
// Allreduced, the winning machine broadcasts the split" optimisation — a
// deliberate simplification noted in the design ledger; the observable tree
// output is identical, only the wire traffic is larger.
type DataParallel struct {
	ds        *dataset.Dataset
	cfg       Config
	kernel    *Learner
	net       network.Allreduce
	machineID int
	numMach   int
}

// NewDataParallel builds a DataParallel learner for one machine in the group.
func NewDataParallel(ds *dataset.Dataset, cfg Config, net network.Allreduce) *DataParallel {
	return &DataParallel{
		ds: ds, cfg: cfg, kernel: New(ds, cfg), net: net,
		machineID: net.MachineID(), numMach: net.NumMachines(),
	}
}

// localRows returns this machine's deterministic row shard (index modulo
// machine count), intersected with usedIndices if bagging narrowed the set.
func (d *DataParallel) localRows(usedIndices []int) []int {
	if usedIndices == nil {
		rows := make([]int, 0, d.ds.NumData/d.numMach+1)
		for r := 0; r < d.ds.NumData; r++ {
			if r%d.numMach == d.machineID {
				rows = append(rows, r)
			}
		}
		return rows
	}
	rows := make([]int, 0, len(usedIndices)/d.numMach+1)
	for _, r := range usedIndices {
		if r%d.numMach == d.machineID {
			rows = append(rows, r)
		}
	}
	return rows
}

func (d *DataParallel) Train(g, h []float64, usedIndices []int, rnd *rand.Rand) (*tree.Tree, []int, error) {
	if len(g) != d.ds.NumData || len(h) != d.ds.NumData {
		return nil, nil, gbdterrors.NewDataShapeError("learner.DataParallel.Train", len(g), d.ds.NumData, "gradient/hessian length must equal dataset row count")
	}

	l := d.kernel
	rows := d.localRows(usedIndices)
	part := partition.Init(d.ds.NumData, rows, l.cfg.NumThreads)
	numBins := make([]int, len(d.ds.Features))
	for i, feat := range d.ds.Features {
		numBins[i] = feat.Mapper.NumBin()
	}
	pool := histogram.NewPool(l.cfg.HistogramPoolSize, numBins, l.cfg.MaxLeaves)
	noOB := noOrderedBins(len(d.ds.Features))

	allFeatures := l.selectFeatures(rnd)

	rootRows := part.LeafRows(0)
	t := tree.NewTree(0) // root value fixed up below once global sums are known

	rootHist, _ := pool.Get(0)
	l.buildHistogram(0, rootRows, g, h, allFeatures, rootHist, noOB, 0, 0, 0)
	globalRootHist, globalSumG, globalSumH, globalCount := d.allreduceHistogram(rootHist, allFeatures)
	t.LeafValue[0] = -globalSumG / (globalSumH + l.cfg.Lambda)

	leafSumG := []float64{globalSumG}
	leafSumH := []float64{globalSumH}
	leafCount := []int32{globalCount}

	bestSplit := []splitInfo{l.findBestSplit(globalRootHist, allFeatures, globalSumG, globalSumH, globalCount)}

	for t.NumLeaves < l.cfg.MaxLeaves {
		leaf := pickBestLeaf(bestSplit)
		if leaf < 0 {
			break
		}
		sp := bestSplit[leaf]
		if !sp.valid || sp.gain <= 0 {
			break
		}

		feat := d.ds.Features[sp.feature]
		leftValue := -sp.leftSumGrad / (sp.leftSumHess + l.cfg.Lambda)
		rightValue := -sp.rightSumGrad / (sp.rightSumHess + l.cfg.Lambda)

		thresholdReal := feat.Mapper.UpperBound[sp.thresholdBin]
		_, leftLeaf, rightLeaf := t.Split(leaf, int32(sp.feature), sp.thresholdBin, thresholdReal, sp.defaultLeft,
			leftValue, rightValue, sp.leftCount, sp.rightCount, sp.gain)

		// Every machine partitions only the local rows it holds; the
		// winning feature/threshold is already identical everywhere.
		part.Split(leaf, feat.Bin, sp.thresholdBin, uint32(feat.Mapper.DefaultBin), sp.defaultLeft)

		leafSumG = append(leafSumG, 0)
		leafSumH = append(leafSumH, 0)
		leafCount = append(leafCount, 0)
		leafSumG[leftLeaf], leafSumH[leftLeaf], leafCount[leftLeaf] = sp.leftSumGrad, sp.leftSumHess, sp.leftCount
		leafSumG[rightLeaf], leafSumH[rightLeaf], leafCount[rightLeaf] = sp.rightSumGrad, sp.rightSumHess, sp.rightCount

		leftLocalHist, _ := pool.Get(leftLeaf)
		l.buildHistogram(leftLeaf, part.LeafRows(leftLeaf), g, h, allFeatures, leftLocalHist, noOB, 0, 0, 0)
		globalLeftHist, _, _, _ := d.allreduceHistogram(leftLocalHist, allFeatures)

		rightLocalHist, _ := pool.Get(rightLeaf)
		l.buildHistogram(rightLeaf, part.LeafRows(rightLeaf), g, h, allFeatures, rightLocalHist, noOB, 0, 0, 0)
		globalRightHist, _, _, _ := d.allreduceHistogram(rightLocalHist, allFeatures)

		bestSplit = append(bestSplit, splitInfo{})
		bestSplit[leftLeaf] = l.findBestSplit(globalLeftHist, allFeatures, leafSumG[leftLeaf], leafSumH[leftLeaf], leafCount[leftLeaf])
		bestSplit[rightLeaf] = l.findBestSplit(globalRightHist, allFeatures, leafSumG[rightLeaf], leafSumH[rightLeaf], leafCount[rightLeaf])
	}

	rowToLeaf := make([]int, d.ds.NumData)
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

// allreduceHistogram flattens a FeatureSet into one wire buffer, sums it
// across the group, and unflattens the result, also returning the combined
// (sumG, sumH, count) for the leaf, read off the first feature's bins
// (every feature's histogram covers the same leaf rows, so any of them
// yields the same leaf-level totals).
func (d *DataParallel) allreduceHistogram(hist histogram.FeatureSet, features []int) (histogram.FeatureSet, float64, float64, int32) {
	flat := flattenHistogram(hist, features)
	reduced, err := d.net.Reduce(context.Background(), flat, network.SumOp)
	if err != nil {
		reduced = flat
	}
	combined := unflattenHistogram(reduced, hist, features)

	var sumG, sumH float64
	var count int32
	if len(features) > 0 {
		for _, e := range combined[features[0]] {
			sumG += e.SumGradient
			sumH += e.SumHessian
			count += int32(e.Count)
		}
	}
	return combined, sumG, sumH, count
}

// flattenHistogram packs (sumGradient, sumHessian, count) triples for every
// bin of every feature in features, in a fixed, deterministic order.
func flattenHistogram(hist histogram.FeatureSet, features []int) []float64 {
	n := 0
	for _, fi := range features {
		n += len(hist[fi]) * 3
	}
	out := make([]float64, 0, n)
	for _, fi := range features {
		for _, e := range hist[fi] {
			out = append(out, e.SumGradient, e.SumHessian, float64(e.Count))
		}
	}
	return out
}

func unflattenHistogram(flat []float64, shapeLike histogram.FeatureSet, features []int) histogram.FeatureSet {
	out := histogram.Clone(shapeLike)
	pos := 0
	for _, fi := range features {
		for b := range out[fi] {
			out[fi][b] = binning.HistogramEntry{
				SumGradient: flat[pos],
				SumHessian:  flat[pos+1],
				Count:       uint32(flat[pos+2]),
			}
			pos += 3
		}
	}
	return out
}
