package boosting

import (
	"math"
	"math/rand"
	"sort"

	"github.com/go-gbdt/gbdt/config"
	"github.com/go-gbdt/gbdt/internal/dataset"
	"github.com/go-gbdt/gbdt/internal/learner"
	"github.com/go-gbdt/gbdt/internal/metric"
	"github.com/go-gbdt/gbdt/internal/objective"
	"github.com/go-gbdt/gbdt/internal/score"
	"github.com/go-gbdt/gbdt/internal/tree"
	"github.com/go-gbdt/gbdt/network"
	gbdterrors "github.com/go-gbdt/gbdt/pkg/errors"
	"github.com/go-gbdt/gbdt/pkg/log"
)

// Params is the subset of configuration the boosting controller itself
// consumes, independent of how it was parsed (§4.9, §4.10).
type Params struct {
	NumIterations      int
	LearningRate       float64
	BaggingFraction    float64
	BaggingFreq        int
	FeatureFraction    float64
	EarlyStoppingRound int
	OutputFreq         int
	BoostingType       string // "gbdt" or "dart"
	DropRate           float64
	MaxDrop            int
	SkipDrop           float64
	Seed               int64

	MaxLeaves           int
	MinDataInLeaf       int
	MinSumHessianInLeaf float64
	Lambda              float64
	MinGainToSplit      float64
	NumThreads          int

	TreeLearner string // "serial", "feature", "data"

	NumClass int
	Sigmoid  float64
}

// ParamsFromConfig translates a parsed config.Config into boosting Params,
// the glue the CLI's Configuration collaborator hands to the controller.
func ParamsFromConfig(cfg config.Config) Params {
	return Params{
		NumIterations:       cfg.NumIterations,
		LearningRate:        cfg.LearningRate,
		BaggingFraction:     cfg.BaggingFraction,
		BaggingFreq:         cfg.BaggingFreq,
		FeatureFraction:     cfg.FeatureFraction,
		EarlyStoppingRound:  cfg.EarlyStoppingRound,
		OutputFreq:          cfg.OutputFreq,
		BoostingType:        cfg.Boosting,
		DropRate:            cfg.DropRate,
		MaxDrop:             cfg.MaxDrop,
		SkipDrop:            cfg.SkipDrop,
		Seed:                int64(cfg.Seed),
		MaxLeaves:           cfg.NumLeaves,
		MinDataInLeaf:       cfg.MinDataInLeaf,
		MinSumHessianInLeaf: cfg.MinSumHessianInLeaf,
		Lambda:              cfg.Lambda,
		MinGainToSplit:      cfg.MinGainToSplit,
		NumThreads:          cfg.NumThreads,
		TreeLearner:         cfg.TreeLearner,
		NumClass:            cfg.NumClass,
		Sigmoid:             cfg.Sigmoid,
	}
}

func (p *Params) normalize() {
	if p.NumIterations <= 0 {
		p.NumIterations = 100
	}
	if p.LearningRate <= 0 {
		p.LearningRate = 0.1
	}
	if p.BaggingFraction <= 0 {
		p.BaggingFraction = 1
	}
	if p.FeatureFraction <= 0 {
		p.FeatureFraction = 1
	}
	if p.OutputFreq <= 0 {
		p.OutputFreq = 1
	}
	if p.BoostingType == "" {
		p.BoostingType = "gbdt"
	}
	if p.DropRate <= 0 {
		p.DropRate = 0.1
	}
	if p.TreeLearner == "" {
		p.TreeLearner = "serial"
	}
}

// treeLearner is the interface every §4.6/§4.7 TreeLearner variant
// satisfies; the controller is agnostic to which one it was handed.
type treeLearner interface {
	Train(g, h []float64, usedIndices []int, rnd *rand.Rand) (*tree.Tree, []int, error)
}

// ValidSet pairs a held-out Dataset with the name it is reported under.
type ValidSet struct {
	Name string
	Data *dataset.Dataset
}

// GBDT is the boosting controller (§4.9, §4.10). One instance owns the
// training dataset, its objective and metrics, one TreeLearner per class,
// and the running score vectors for train and every validation set.
type GBDT struct {
	params Params
	obj    objective.Objective
	mets   []metric.Metric

	train      *dataset.Dataset
	trainRows  [][]float64
	trainScore *score.Updater

	valid      []ValidSet
	validRows  [][][]float64
	validScore []*score.Updater
	validMets  [][]metric.Metric

	learners []treeLearner
	rnd      *rand.Rand
	logger   log.Logger

	model *Model

	bestIter  int
	bestScore []float64 // per validation set, first metric
	noImprove int

	history map[string][]float64
}

// New builds a GBDT controller bound to train (and optionally valid sets),
// with one TreeLearner per class selected by params.TreeLearner.
func New(params Params, train *dataset.Dataset, objName string, metricNames []string, valid []ValidSet, net network.Allreduce) (*GBDT, error) {
	params.normalize()

	obj, err := objective.New(objName, train.Meta, objective.Config{NumClass: params.NumClass, Sigmoid: params.Sigmoid})
	if err != nil {
		return nil, err
	}
	treesPerIter := obj.TreesPerIteration()

	mets := make([]metric.Metric, 0, len(metricNames))
	for _, name := range metricNames {
		m, err := metric.New(name, train.Meta, treesPerIter, 1, nil)
		if err != nil {
			return nil, err
		}
		mets = append(mets, m)
	}

	if net == nil {
		net = network.Local{}
	}

	lc := learner.Config{
		MaxLeaves:           params.MaxLeaves,
		MinDataInLeaf:       params.MinDataInLeaf,
		MinSumHessianInLeaf: params.MinSumHessianInLeaf,
		Lambda:              params.Lambda,
		Gamma:               params.MinGainToSplit,
		NumThreads:          params.NumThreads,
		FeatureFraction:     params.FeatureFraction,
	}
	learners := make([]treeLearner, treesPerIter)
	for c := range learners {
		switch params.TreeLearner {
		case "feature":
			learners[c] = learner.NewFeatureParallel(train, lc, net)
		case "data":
			learners[c] = learner.NewDataParallel(train, lc, net)
		default:
			learners[c] = learner.New(train, lc)
		}
	}

	g := &GBDT{
		params:     params,
		obj:        obj,
		mets:       mets,
		train:      train,
		trainRows:  denseRows(train),
		trainScore: score.New(train.NumData, treesPerIter, obj.InitScore()),
		learners:   learners,
		rnd:        rand.New(rand.NewSource(params.Seed)),
		logger:     log.GetLoggerWithName("boosting.gbdt"),
		model: &Model{
			BoostingType:      params.BoostingType,
			Objective:         objName,
			NumClass:          treesPerIter,
			TreesPerIteration: treesPerIter,
			MaxFeatureIdx:     train.NumUsedFeatures() - 1,
		},
		bestIter: -1,
		history:  make(map[string][]float64),
	}

	for _, v := range valid {
		g.valid = append(g.valid, v)
		g.validRows = append(g.validRows, denseRows(v.Data))
		g.validScore = append(g.validScore, score.New(v.Data.NumData, treesPerIter, obj.InitScore()))
		vmets := make([]metric.Metric, 0, len(metricNames))
		for _, name := range metricNames {
			m, err := metric.New(name, v.Data.Meta, treesPerIter, 1, nil)
			if err != nil {
				return nil, err
			}
			vmets = append(vmets, m)
		}
		g.validMets = append(g.validMets, vmets)
	}
	g.bestScore = make([]float64, len(g.valid))
	for v := range g.validMets {
		if len(g.validMets[v]) == 0 {
			continue
		}
		if g.validMets[v][0].HigherBetter() {
			g.bestScore[v] = math.Inf(-1)
		} else {
			g.bestScore[v] = math.Inf(1)
		}
	}

	return g, nil
}

// denseRows materialises every row's used-feature values as the bin
// mapper's upper bound of the row's own bin — exact for routing through
// any tree built from the same mapper (§4.2: a row's true value always
// falls in (UpperBound[bin-1], UpperBound[bin]], so every split test
// against that mapper's own bin boundaries agrees with the true value),
// used by the tree's Predict/PredictLeafIndex which compare against raw
// thresholds rather than bin indices.
func denseRows(ds *dataset.Dataset) [][]float64 {
	rows := make([][]float64, ds.NumData)
	for r := range rows {
		rows[r] = make([]float64, len(ds.Features))
	}
	for fi, feat := range ds.Features {
		for r := 0; r < ds.NumData; r++ {
			rows[r][fi] = feat.Mapper.UpperBound[feat.Bin.BinAt(r)]
		}
	}
	return rows
}

// Fit runs the full boosting loop (§4.9 GBDT, §4.10 DART) and returns the
// trained Model.
func (g *GBDT) Fit() (*Model, error) {
	treesPerIter := g.model.TreesPerIteration
	numData := g.train.NumData
	gh := make([]float64, numData*treesPerIter)
	hh := make([]float64, numData*treesPerIter)

	for iter := 0; iter < g.params.NumIterations; iter++ {
		var dropped []int
		shrinkage := g.params.LearningRate
		isDart := g.params.BoostingType == "dart"

		if isDart {
			dropped = g.selectDropped(len(g.model.Trees), iter)
			shrinkage = 1.0 / float64(len(dropped)+1)
			for _, ti := range dropped {
				t := g.model.Trees[ti]
				class := ti % treesPerIter
				delta := predictRows(t, g.trainRows)
				g.trainScore.AddScaled(class, delta, -1)
			}
		}

		g.obj.GetGradients(g.trainScore.Scores, gh, hh)

		stop := false
		for c := 0; c < treesPerIter; c++ {
			base := c * numData
			gc := gh[base : base+numData]
			hc := hh[base : base+numData]

			usedIndices := g.sampleBagging(iter)

			newTree, rowToLeaf, err := g.learners[c].Train(gc, hc, usedIndices, g.rnd)
			if err != nil {
				return nil, err
			}
			if newTree.NumLeaves <= 1 {
				if iter == 0 {
					return nil, gbdterrors.NewNumericError("boosting.Fit", "no valid split found at iteration 0")
				}
				g.logger.Warn("cannot continue: no valid split", "iteration", iter, "class", c)
				stop = true
				break
			}
			newTree.Scale(shrinkage)

			g.applyTreeToTrainScore(c, rowToLeaf, newTree, usedIndices)
			for v := range g.valid {
				g.validScore[v].AddTreeSlow(c, allRows(g.valid[v].Data.NumData), g.validRows[v], newTree)
			}
			if iter == 0 {
				// Train/valid scores start from the objective's init score;
				// folding it into each class's first tree keeps the model's
				// own prediction equal to those scores.
				bias := g.obj.InitScore()[c]
				for i := range newTree.LeafValue {
					newTree.LeafValue[i] += bias
				}
				for i := range newTree.InternalValue {
					newTree.InternalValue[i] += bias
				}
			}
			g.model.Trees = append(g.model.Trees, newTree)
		}
		if stop {
			break
		}

		if isDart && len(dropped) > 0 {
			factor := float64(len(dropped)) / float64(len(dropped)+1)
			for _, ti := range dropped {
				t := g.model.Trees[ti]
				class := ti % treesPerIter
				deltaOld := predictRows(t, g.trainRows)
				g.trainScore.AddScaled(class, deltaOld, factor)
				for v := range g.valid {
					deltaValid := predictRows(t, g.validRows[v])
					g.validScore[v].AddScaled(class, deltaValid, factor-1)
				}
				t.Scale(factor)
			}
		}

		g.recordHistory()
		if iter%g.params.OutputFreq == 0 {
			g.logIteration(iter)
		}

		if g.params.EarlyStoppingRound > 0 && len(g.valid) > 0 {
			improved := g.updateBest(iter)
			if !improved {
				g.noImprove++
				if g.noImprove >= g.params.EarlyStoppingRound {
					g.logger.Info("early stopping", "iteration", iter, "best_iteration", g.bestIter)
					g.model.TruncateLast(iter - g.bestIter)
					break
				}
			} else {
				g.noImprove = 0
			}
		}
	}

	return g.model, nil
}

// applyTreeToTrainScore adds newTree's contribution to the training score:
// in-bag rows via the learner's fast rowToLeaf map, out-of-bag rows (when
// bagging narrowed usedIndices) via full traversal, so the next iteration
// sees a complete score vector (§4.9 step 2).
func (g *GBDT) applyTreeToTrainScore(class int, rowToLeaf []int, t *tree.Tree, usedIndices []int) {
	g.trainScore.AddTreeFast(class, rowToLeaf, t)
	if usedIndices == nil {
		return
	}
	inBag := make(map[int]bool, len(usedIndices))
	for _, r := range usedIndices {
		inBag[r] = true
	}
	oob := make([]int, 0, g.train.NumData-len(usedIndices))
	for r := 0; r < g.train.NumData; r++ {
		if !inBag[r] {
			oob = append(oob, r)
		}
	}
	g.trainScore.AddTreeSlow(class, oob, g.trainRows, t)
}

func predictRows(t *tree.Tree, rows [][]float64) []float64 {
	out := make([]float64, len(rows))
	for i, row := range rows {
		out[i] = t.Predict(row)
	}
	return out
}

func allRows(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

// sampleBagging returns the bagged row subset for this iteration, or nil
// if bagging isn't due. When the training set has query groups, whole
// queries are sampled rather than individual rows (§4.9 step 2).
func (g *GBDT) sampleBagging(iter int) []int {
	if g.params.BaggingFraction >= 1 || g.params.BaggingFreq <= 0 || iter%g.params.BaggingFreq != 0 {
		return nil
	}
	qb := g.train.Meta.QueryBoundaries()
	if len(qb) > 1 {
		numQueries := len(qb) - 1
		kept := make([]int, 0, numQueries)
		for q := 0; q < numQueries; q++ {
			if g.rnd.Float64() < g.params.BaggingFraction {
				kept = append(kept, q)
			}
		}
		if len(kept) == 0 {
			kept = append(kept, g.rnd.Intn(numQueries))
		}
		rows := make([]int, 0, g.train.NumData)
		for _, q := range kept {
			for r := qb[q]; r < qb[q+1]; r++ {
				rows = append(rows, int(r))
			}
		}
		sort.Ints(rows)
		return rows
	}

	rows := make([]int, 0, int(float64(g.train.NumData)*g.params.BaggingFraction)+1)
	for r := 0; r < g.train.NumData; r++ {
		if g.rnd.Float64() < g.params.BaggingFraction {
			rows = append(rows, r)
		}
	}
	if len(rows) == 0 {
		rows = append(rows, g.rnd.Intn(g.train.NumData))
	}
	return rows
}

// selectDropped chooses DART's dropped-tree subset for this iteration:
// Bernoulli per tree with probability drop_rate; if empty, force one
// random tree (§4.10).
func (g *GBDT) selectDropped(numTrees, iter int) []int {
	if numTrees == 0 {
		return nil
	}
	if g.params.SkipDrop > 0 && g.rnd.Float64() < g.params.SkipDrop {
		return nil
	}
	var dropped []int
	for i := 0; i < numTrees; i++ {
		if g.rnd.Float64() < g.params.DropRate {
			dropped = append(dropped, i)
		}
	}
	if len(dropped) == 0 {
		dropped = []int{g.rnd.Intn(numTrees)}
	}
	if g.params.MaxDrop > 0 && len(dropped) > g.params.MaxDrop {
		dropped = dropped[:g.params.MaxDrop]
	}
	return dropped
}

// recordHistory appends this iteration's metric values to History, the
// series contrib/plot's LearningCurve consumes.
func (g *GBDT) recordHistory() {
	for _, m := range g.mets {
		key := "train_" + m.Name()
		g.history[key] = append(g.history[key], m.Eval(g.trainScore.Scores))
	}
	for v := range g.valid {
		for _, m := range g.validMets[v] {
			key := g.valid[v].Name + "_" + m.Name()
			g.history[key] = append(g.history[key], m.Eval(g.validScore[v].Scores))
		}
	}
}

// History returns the per-iteration metric series recorded during Fit,
// keyed "train_<metric>" or "<validset>_<metric>".
func (g *GBDT) History() map[string][]float64 {
	return g.history
}

func (g *GBDT) logIteration(iter int) {
	kv := make([]interface{}, 0, len(g.mets)*2+2)
	kv = append(kv, "iteration", iter)
	for _, m := range g.mets {
		kv = append(kv, "train_"+m.Name(), m.Eval(g.trainScore.Scores))
	}
	for v := range g.valid {
		for _, m := range g.validMets[v] {
			kv = append(kv, g.valid[v].Name+"_"+m.Name(), m.Eval(g.validScore[v].Scores))
		}
	}
	g.logger.Info("boosting progress", kv...)
}

// updateBest evaluates each validation set's own first metric (bound to
// that set's own labels/weights) and reports whether any improved on its
// running best (§4.9 step 4).
func (g *GBDT) updateBest(iter int) bool {
	improved := false
	for v := range g.valid {
		if len(g.validMets[v]) == 0 {
			continue
		}
		m := g.validMets[v][0]
		val := m.Eval(g.validScore[v].Scores)
		if better(val, g.bestScore[v], m.HigherBetter()) {
			g.bestScore[v] = val
			g.bestIter = iter
			improved = true
		}
	}
	return improved
}

func better(candidate, best float64, higherBetter bool) bool {
	if higherBetter {
		return candidate > best
	}
	return candidate < best
}
