package objective

import (
	"math"
	"sort"

	"github.com/go-gbdt/gbdt/internal/dataset"
)

// LambdaRank produces pairwise lambda-gradients per query (§4.8): for every
// inversion (i, j) with label_i > label_j, it subtracts
// sigma * |DeltaNDCG_ij| / (1 + exp(sigma*(s_i - s_j))) from g_i and adds
// it to g_j, so the higher-labelled row's score is pushed up, with
// matching second-order terms for h. Queries whose
// rows all share one label contribute nothing.
type LambdaRank struct {
	label           []float64
	queryBoundaries []int32
	labelGain       []float64
	maxPosition     int
	sigma           float64
}

// NewLambdaRank builds a LambdaRank objective. labelGain[g] is the gain for
// label g (defaults to 2^g - 1 up to label 31, LightGBM's convention);
// maxPosition truncates DCG discounting (0 means unbounded).
func NewLambdaRank(meta *dataset.Metadata, labelGain []float64, maxPosition int) *LambdaRank {
	if labelGain == nil {
		labelGain = defaultLabelGain(32)
	}
	return &LambdaRank{
		label:           meta.Label(),
		queryBoundaries: meta.QueryBoundaries(),
		labelGain:       labelGain,
		maxPosition:     maxPosition,
		sigma:           1.0,
	}
}

func defaultLabelGain(n int) []float64 {
	g := make([]float64, n)
	for i := range g {
		g[i] = math.Exp2(float64(i)) - 1
	}
	return g
}

func (o *LambdaRank) TreesPerIteration() int { return 1 }
func (o *LambdaRank) Name() string           { return "lambdarank" }

func (o *LambdaRank) InitScore() []float64 { return []float64{0} }

func (o *LambdaRank) gain(label float64) float64 {
	idx := int(label)
	if idx < 0 {
		idx = 0
	}
	if idx >= len(o.labelGain) {
		idx = len(o.labelGain) - 1
	}
	return o.labelGain[idx]
}

func (o *LambdaRank) GetGradients(scores []float64, g, h []float64) {
	for i := range g {
		g[i] = 0
		h[i] = 0
	}
	qb := o.queryBoundaries
	for q := 0; q+1 < len(qb); q++ {
		begin, end := int(qb[q]), int(qb[q+1])
		o.queryGradients(begin, end, scores, g, h)
	}
}

// queryGradients computes lambda-gradients for one query's row range
// [begin, end), using the ideal-DCG normaliser so |DeltaNDCG| is on the
// [0,1]-ish scale LightGBM targets.
func (o *LambdaRank) queryGradients(begin, end int, scores, g, h []float64) {
	n := end - begin
	if n < 2 {
		return
	}
	order := make([]int, n)
	for i := range order {
		order[i] = begin + i
	}
	sort.Slice(order, func(a, b int) bool { return o.label[order[a]] > o.label[order[b]] })
	idealDCG := 0.0
	for pos, row := range order {
		if o.maxPosition > 0 && pos >= o.maxPosition {
			break
		}
		idealDCG += o.gain(o.label[row]) / math.Log2(float64(pos+2))
	}
	if idealDCG <= 0 {
		return
	}

	allEqual := true
	for i := 1; i < n; i++ {
		if o.label[begin+i] != o.label[begin] {
			allEqual = false
			break
		}
	}
	if allEqual {
		return
	}

	position := make(map[int]int, n)
	for pos, row := range order {
		position[row] = pos
	}

	for i := begin; i < end; i++ {
		for j := begin; j < end; j++ {
			if o.label[i] <= o.label[j] {
				continue
			}
			pi, pj := position[i], position[j]
			discI := 1 / math.Log2(float64(pi+2))
			discJ := 1 / math.Log2(float64(pj+2))
			deltaNDCG := math.Abs((o.gain(o.label[i])-o.gain(o.label[j]))*(discI-discJ)) / idealDCG

			rho := 1.0 / (1.0 + math.Exp(o.sigma*(scores[i]-scores[j])))
			lambda := o.sigma * rho * deltaNDCG
			hess := o.sigma * o.sigma * rho * (1 - rho) * deltaNDCG
			if hess < 1e-16 {
				hess = 1e-16
			}

			g[i] -= lambda
			g[j] += lambda
			h[i] += hess
			h[j] += hess
		}
	}
}
