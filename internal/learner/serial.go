// Package learner implements TreeLearner: leaf-wise growth over a binned
// Dataset, picking the globally-best leaf to split and the best
// (feature, threshold) for it via histogram prefix sums (§4.6). The serial
// kernel here is reused, unmodified, as the local compute step inside the
// feature-parallel and data-parallel variants (§4.7).
package learner

import (
	"math/rand"
	"runtime"
	"sort"
	"sync"

	"github.com/go-gbdt/gbdt/internal/binning"
	"github.com/go-gbdt/gbdt/internal/dataset"
	"github.com/go-gbdt/gbdt/internal/histogram"
	"github.com/go-gbdt/gbdt/internal/partition"
	"github.com/go-gbdt/gbdt/internal/tree"
	gbdterrors "github.com/go-gbdt/gbdt/pkg/errors"
)

// Config bundles the tree-growth parameters (§4.6, §6 CLI surface).
type Config struct {
	MaxLeaves           int
	MinDataInLeaf       int
	MinSumHessianInLeaf float64
	Lambda              float64 // L2 regularisation
	Gamma               float64 // minimum gain to accept a split
	NumThreads          int
	HistogramPoolSize   int     // K in §4.5; 0 means "size to MaxLeaves" (direct indexing)
	FeatureFraction     float64 // (0,1]; 1 disables feature sampling
}

func (c *Config) normalize() {
	if c.MaxLeaves <= 1 {
		c.MaxLeaves = 31
	}
	if c.MinDataInLeaf <= 0 {
		c.MinDataInLeaf = 20
	}
	if c.MinSumHessianInLeaf <= 0 {
		c.MinSumHessianInLeaf = 1e-3
	}
	if c.NumThreads <= 0 {
		c.NumThreads = runtime.GOMAXPROCS(0)
	}
	if c.HistogramPoolSize <= 0 {
		c.HistogramPoolSize = c.MaxLeaves
	}
	if c.FeatureFraction <= 0 || c.FeatureFraction > 1 {
		c.FeatureFraction = 1
	}
}

// Learner is the serial TreeLearner: one instance trains one class's tree
// per Train call, reading a fixed Dataset (§4.6 state: "current tree,
// DataPartition, HistogramPool, best_split_per_leaf").
type Learner struct {
	ds  *dataset.Dataset
	cfg Config
}

// New builds a Learner bound to ds. ds must outlive every Train call.
func New(ds *dataset.Dataset, cfg Config) *Learner {
	cfg.normalize()
	return &Learner{ds: ds, cfg: cfg}
}

// Train grows one tree against gradients/hessians g, h (each length
// ds.NumData). usedIndices restricts training to a bagged row subset; nil
// means every row participates. rnd drives feature-fraction sampling and
// is nil-safe (nil disables sampling). Returns the tree plus a row->leaf
// map for the boosting controller's fast-path score update (§4.9 step 2).
func (l *Learner) Train(g, h []float64, usedIndices []int, rnd *rand.Rand) (*tree.Tree, []int, error) {
	if len(g) != l.ds.NumData || len(h) != l.ds.NumData {
		return nil, nil, gbdterrors.NewDataShapeError("learner.Train", len(g), l.ds.NumData, "gradient/hessian length must equal dataset row count")
	}

	part := partition.Init(l.ds.NumData, usedIndices, l.cfg.NumThreads)
	numBins := make([]int, len(l.ds.Features))
	for i, f := range l.ds.Features {
		numBins[i] = f.Mapper.NumBin()
	}
	pool := histogram.NewPool(l.cfg.HistogramPoolSize, numBins, l.cfg.MaxLeaves)

	featureSubset := l.selectFeatures(rnd)

	// Ordered bins give a cache-friendly sequential scan over a sparse
	// feature's non-default entries, but their leaf blocks are built over
	// every row in the column; they are only correct when every row is in
	// play, i.e. no bagging this iteration (§4.3).
	useOrdered := usedIndices == nil
	orderedBins := make([]*binning.OrderedBin, len(l.ds.Features))
	if useOrdered {
		for _, fi := range featureSubset {
			feat := l.ds.Features[fi]
			if sb, ok := feat.Bin.(*binning.SparseBin); ok && feat.Mapper.SparseRate >= l.ds.SparseThreshold {
				orderedBins[fi] = binning.NewOrderedBin(sb)
			}
		}
	}

	rootRows := part.LeafRows(0)
	var sumG, sumH float64
	for _, r := range rootRows {
		sumG += g[r]
		sumH += h[r]
	}
	rootCount := int32(len(rootRows))
	rootValue := -sumG / (sumH + l.cfg.Lambda)
	t := tree.NewTree(rootValue)

	leafSumG := []float64{sumG}
	leafSumH := []float64{sumH}
	leafCount := []int32{rootCount}

	rootHist, _ := pool.Get(0)
	l.buildHistogram(0, rootRows, g, h, featureSubset, rootHist, orderedBins, sumG, sumH, rootCount)

	bestSplit := []splitInfo{l.findBestSplit(rootHist, featureSubset, sumG, sumH, rootCount)}

	for t.NumLeaves < l.cfg.MaxLeaves {
		leaf := pickBestLeaf(bestSplit)
		if leaf < 0 {
			break
		}
		sp := bestSplit[leaf]
		if !sp.valid || sp.gain <= 0 {
			break
		}

		feat := l.ds.Features[sp.feature]
		leftValue := -sp.leftSumGrad / (sp.leftSumHess + l.cfg.Lambda)
		rightValue := -sp.rightSumGrad / (sp.rightSumHess + l.cfg.Lambda)

		parentHist, _ := pool.Get(leaf)
		snapshot := histogram.Clone(parentHist)

		thresholdReal := feat.Mapper.UpperBound[sp.thresholdBin]
		_, leftLeaf, rightLeaf := t.Split(leaf, int32(sp.feature), sp.thresholdBin, thresholdReal, sp.defaultLeft,
			leftValue, rightValue, sp.leftCount, sp.rightCount, sp.gain)

		partRightLeaf := part.Split(leaf, feat.Bin, sp.thresholdBin, uint32(feat.Mapper.DefaultBin), sp.defaultLeft)

		if useOrdered {
			leftRows := buildRowSet(part.LeafRows(leaf))
			for _, fi := range featureSubset {
				if ob := orderedBins[fi]; ob != nil {
					ob.Split(leaf, partRightLeaf, func(row int) bool {
						_, ok := leftRows[row]
						return ok
					})
				}
			}
		}

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
		l.buildHistogram(smaller, part.LeafRows(smaller), g, h, featureSubset, smallerHist, orderedBins,
			leafSumG[smaller], leafSumH[smaller], leafCount[smaller])

		largerHist, _ := pool.Get(larger)
		histogram.Subtract(largerHist, snapshot, smallerHist)

		bestSplit = append(bestSplit, splitInfo{})
		leftHist, _ := pool.Get(leftLeaf)
		rightHist, _ := pool.Get(rightLeaf)
		bestSplit[leftLeaf] = l.findBestSplit(leftHist, featureSubset, leafSumG[leftLeaf], leafSumH[leftLeaf], leafCount[leftLeaf])
		bestSplit[rightLeaf] = l.findBestSplit(rightHist, featureSubset, leafSumG[rightLeaf], leafSumH[rightLeaf], leafCount[rightLeaf])
	}

	rowToLeaf := make([]int, l.ds.NumData)
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

// buildHistogram fills hist (one entry-slice per feature in featureSubset)
// from scratch, in parallel across features (§4.2, §4.3, §5).
func (l *Learner) buildHistogram(leaf int, rows []int, g, h []float64, featureSubset []int, hist histogram.FeatureSet,
	orderedBins []*binning.OrderedBin, leafSumG, leafSumH float64, leafCount int32) {

	var wg sync.WaitGroup
	sem := make(chan struct{}, l.cfg.NumThreads)
	for _, fi := range featureSubset {
		wg.Add(1)
		sem <- struct{}{}
		go func(fi int) {
			defer wg.Done()
			defer func() { <-sem }()
			out := hist[fi]
			for i := range out {
				out[i] = binning.HistogramEntry{}
			}
			if ob := orderedBins[fi]; ob != nil {
				ob.ConstructHistogram(leaf, g, h, out)
				nonDefaultRows, _ := ob.NonDefaultRows(leaf)
				var ndG, ndH float64
				for _, r := range nonDefaultRows {
					ndG += g[r]
					ndH += h[r]
				}
				defaultBin := uint32(l.ds.Features[fi].Mapper.DefaultBin)
				e := &out[defaultBin]
				e.SumGradient += leafSumG - ndG
				e.SumHessian += leafSumH - ndH
				e.Count += uint32(int(leafCount) - len(nonDefaultRows))
				return
			}
			l.ds.Features[fi].Bin.ConstructHistogram(rows, g, h, out)
		}(fi)
	}
	wg.Wait()
}

// findBestSplit searches every feature in featureSubset in parallel and
// combines the winners with the (feature_index, threshold_bin) tie-break
// rule (§4.6).
func (l *Learner) findBestSplit(hist histogram.FeatureSet, featureSubset []int, parentSumG, parentSumH float64, parentCount int32) splitInfo {
	results := make([]splitInfo, len(featureSubset))
	var wg sync.WaitGroup
	sem := make(chan struct{}, l.cfg.NumThreads)
	for idx, fi := range featureSubset {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx, fi int) {
			defer wg.Done()
			defer func() { <-sem }()
			results[idx] = l.bestSplitForFeature(hist[fi], l.ds.Features[fi].Mapper, parentSumG, parentSumH, parentCount, fi)
		}(idx, fi)
	}
	wg.Wait()

	var best splitInfo
	for i := range results {
		if best.better(results[i]) {
			best = results[i]
		}
	}
	return best
}

// bestSplitForFeature implements the per-feature prefix-sum search (§4.6):
// for each threshold bin t, the left side is bins [0, t], the right side
// is the parent minus the left prefix.
func (l *Learner) bestSplitForFeature(entries []binning.HistogramEntry, mapper *binning.BinMapper,
	parentSumG, parentSumH float64, parentCount int32, featureIdx int) splitInfo {

	numBin := len(entries)
	if numBin < 2 {
		return splitInfo{}
	}
	parentGain := parentSumG * parentSumG / (parentSumH + l.cfg.Lambda)

	var leftG, leftH float64
	var leftCount int32
	var best splitInfo
	for tBin := 0; tBin < numBin-1; tBin++ {
		e := entries[tBin]
		leftG += e.SumGradient
		leftH += e.SumHessian
		leftCount += int32(e.Count)

		rightG := parentSumG - leftG
		rightH := parentSumH - leftH
		rightCount := parentCount - leftCount

		if leftCount < int32(l.cfg.MinDataInLeaf) || rightCount < int32(l.cfg.MinDataInLeaf) {
			continue
		}
		if leftH < l.cfg.MinSumHessianInLeaf || rightH < l.cfg.MinSumHessianInLeaf {
			continue
		}

		gain := leftG*leftG/(leftH+l.cfg.Lambda) + rightG*rightG/(rightH+l.cfg.Lambda) - parentGain - l.cfg.Gamma
		cand := splitInfo{
			valid:        true,
			gain:         gain,
			feature:      featureIdx,
			thresholdBin: uint32(tBin),
			defaultLeft:  mapper.DefaultBin <= tBin,
			leftSumGrad:  leftG,
			leftSumHess:  leftH,
			leftCount:    leftCount,
			rightSumGrad: rightG,
			rightSumHess: rightH,
			rightCount:   rightCount,
		}
		if best.better(cand) {
			best = cand
		}
	}
	return best
}

// pickBestLeaf returns the index of the live leaf with the largest valid
// split gain, or -1 if none can be split further (§4.6 step 3a).
func pickBestLeaf(bestSplit []splitInfo) int {
	best := -1
	for i, s := range bestSplit {
		if !s.valid {
			continue
		}
		if best < 0 || s.gain > bestSplit[best].gain {
			best = i
		}
	}
	return best
}

// selectFeatures applies feature_fraction sampling (§6 CLI surface). A nil
// rnd or a fraction of 1 uses every feature, in index order.
func (l *Learner) selectFeatures(rnd *rand.Rand) []int {
	all := make([]int, len(l.ds.Features))
	for i := range all {
		all[i] = i
	}
	if rnd == nil || l.cfg.FeatureFraction >= 1 {
		return all
	}
	n := int(float64(len(all)) * l.cfg.FeatureFraction)
	if n < 1 {
		n = 1
	}
	perm := rnd.Perm(len(all))
	selected := append([]int(nil), perm[:n]...)
	sort.Ints(selected)
	return selected
}

func buildRowSet(rows []int) map[int]struct{} {
	s := make(map[int]struct{}, len(rows))
	for _, r := range rows {
		s[r] = struct{}{}
	}
	return s
}
