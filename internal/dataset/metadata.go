package dataset

import (
	"math"
	"strconv"
	"sync"

	gbdterrors "github.com/go-gbdt/gbdt/pkg/errors"
)

// Metadata is the non-feature side of a Dataset: label, optional weight,
// optional multiclass init-score, and optional query (group) boundaries
// for ranking (§3). Setters are guarded by a single mutex since they are
// only ever called from the control thread while the dataset is idle
// (§5 shared-resource policy); readers never take it.
type Metadata struct {
	mu sync.Mutex

	label           []float64
	weight          []float64
	initScore       []float64 // length numData * numClass when set
	queryBoundaries []int32   // length numQueries+1
	numData         int
}

// NewMetadata allocates Metadata for numData rows with no optional fields set.
func NewMetadata(numData int) *Metadata {
	return &Metadata{numData: numData}
}

// SetLabel installs the label vector, validating length and rejecting NaN
// labels (spec §7 numerical degeneracy).
func (m *Metadata) SetLabel(label []float64) error {
	if len(label) != m.numData {
		return gbdterrors.NewDataShapeError("Metadata.SetLabel", len(label), m.numData, "label length must equal num_data")
	}
	for i, v := range label {
		if math.IsNaN(v) {
			return gbdterrors.NewNumericError("Metadata.SetLabel", "NaN label at row "+strconv.Itoa(i))
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.label = append([]float64(nil), label...)
	return nil
}

// SetWeight installs per-row weights.
func (m *Metadata) SetWeight(weight []float64) error {
	if weight != nil && len(weight) != m.numData {
		return gbdterrors.NewDataShapeError("Metadata.SetWeight", len(weight), m.numData, "weight length must equal num_data")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if weight == nil {
		m.weight = nil
		return nil
	}
	m.weight = append([]float64(nil), weight...)
	return nil
}

// SetInitScore installs an initial score vector, numData*numClass long.
func (m *Metadata) SetInitScore(initScore []float64, numClass int) error {
	if initScore != nil && len(initScore) != m.numData*numClass {
		return gbdterrors.NewDataShapeError("Metadata.SetInitScore", len(initScore), m.numData*numClass, "init_score length must equal num_data*num_class")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.initScore = append([]float64(nil), initScore...)
	return nil
}

// SetQueryBoundaries installs query (group) boundaries: qb[q] is the first
// row of query q, qb[num_queries] == num_data (§3 invariant).
func (m *Metadata) SetQueryBoundaries(qb []int32) error {
	if len(qb) < 1 {
		return gbdterrors.NewDataShapeError("Metadata.SetQueryBoundaries", len(qb), 1, "need at least one boundary")
	}
	for i := 1; i < len(qb); i++ {
		if qb[i] <= qb[i-1] {
			return gbdterrors.NewDataShapeError("Metadata.SetQueryBoundaries", int(qb[i]), int(qb[i-1]), "query boundaries must be strictly increasing")
		}
	}
	if int(qb[len(qb)-1]) != m.numData {
		return gbdterrors.NewDataShapeError("Metadata.SetQueryBoundaries", int(qb[len(qb)-1]), m.numData, "last query boundary must equal num_data")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queryBoundaries = append([]int32(nil), qb...)
	return nil
}

func (m *Metadata) Label() []float64           { return m.label }
func (m *Metadata) Weight() []float64          { return m.weight }
func (m *Metadata) InitScore() []float64       { return m.initScore }
func (m *Metadata) QueryBoundaries() []int32   { return m.queryBoundaries }
func (m *Metadata) NumQueries() int {
	if m.queryBoundaries == nil {
		return 0
	}
	return len(m.queryBoundaries) - 1
}
