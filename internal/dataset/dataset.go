package dataset

import (
	"runtime"
	"strconv"
	"sync"

	"github.com/go-gbdt/gbdt/internal/binning"
	gbdterrors "github.com/go-gbdt/gbdt/pkg/errors"
	"github.com/go-gbdt/gbdt/pkg/log"
	"gonum.org/v1/gonum/mat"
)

// DefaultSparseThreshold is the sparse-rate cutoff above which a feature is
// stored as a SparseBin instead of a DenseBin (§3).
const DefaultSparseThreshold = 0.8

// Feature is one column: its immutable BinMapper plus the physical bin
// storage (dense or sparse), picked once at load time.
type Feature struct {
	Name   string
	Mapper *binning.BinMapper
	Bin    binning.Bin
}

// Dataset owns the binned feature columns plus Metadata, per §3. Built once
// per training run and immutable during training; a validation dataset
// borrows (shares, not copies) its mappers from the training dataset that
// built them, guaranteeing bin-aligned histograms (§9 design notes).
type Dataset struct {
	NumData           int
	NumTotalFeatures  int
	UsedFeatureMap    []int // len NumTotalFeatures; -1 for a dropped (trivial) feature
	Features          []*Feature
	Meta              *Metadata
	MaxBin            int
	SparseThreshold   float64

	logger log.Logger
}

// BuildOptions configures dataset construction from raw, row-major values.
type BuildOptions struct {
	MaxBin          int
	MinDataInBin    int
	SparseThreshold float64
	NumThreads      int
	FeatureNames    []string
}

func (o *BuildOptions) normalize() {
	if o.MaxBin <= 0 {
		o.MaxBin = 255
	}
	if o.MinDataInBin <= 0 {
		o.MinDataInBin = 3
	}
	if o.SparseThreshold <= 0 {
		o.SparseThreshold = DefaultSparseThreshold
	}
	if o.NumThreads <= 0 {
		o.NumThreads = runtime.GOMAXPROCS(0)
	}
}

// FromColumns builds a fresh training Dataset from column-major raw values
// (columns[f][row]), computing one BinMapper per feature in parallel
// (§5 "BinMapper construction over features").
func FromColumns(columns [][]float64, opts BuildOptions) (*Dataset, error) {
	opts.normalize()
	if len(columns) == 0 {
		return nil, gbdterrors.NewDataShapeError("dataset.FromColumns", 0, 1, "no feature columns")
	}
	numData := len(columns[0])
	for i, col := range columns {
		if len(col) != numData {
			return nil, gbdterrors.NewDataShapeError("dataset.FromColumns", len(col), numData, "feature column "+colName(opts, i)+" length mismatch")
		}
	}

	ds := &Dataset{
		NumData:          numData,
		NumTotalFeatures: len(columns),
		UsedFeatureMap:   make([]int, len(columns)),
		Meta:             NewMetadata(numData),
		MaxBin:           opts.MaxBin,
		SparseThreshold:  opts.SparseThreshold,
		logger:           log.GetLoggerWithName("dataset"),
	}

	mappers := make([]*binning.BinMapper, len(columns))
	var wg sync.WaitGroup
	sem := make(chan struct{}, opts.NumThreads)
	for i := range columns {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			mappers[i] = binning.FindBin(columns[i], numData, opts.MaxBin, opts.MinDataInBin)
		}(i)
	}
	wg.Wait()

	used := 0
	for i, m := range mappers {
		if m.IsTrivial {
			ds.UsedFeatureMap[i] = -1
			continue
		}
		ds.UsedFeatureMap[i] = used
		used++
	}

	ds.Features = make([]*Feature, used)
	for i, m := range mappers {
		local := ds.UsedFeatureMap[i]
		if local < 0 {
			continue
		}
		name := colName(opts, i)
		feat := &Feature{Name: name, Mapper: m}
		if binning.ChooseEncoding(m.SparseRate, opts.SparseThreshold) == "sparse" {
			sb := binning.NewSparseBin(numData, m.NumBin(), uint32(m.DefaultBin))
			for r, v := range columns[i] {
				sb.Push(r, uint32(m.ValueToBin(v)))
			}
			sb.FinishLoad()
			feat.Bin = sb
		} else {
			db := binning.NewDenseBin(numData, m.NumBin())
			for r, v := range columns[i] {
				db.Push(r, uint32(m.ValueToBin(v)))
			}
			db.FinishLoad()
			feat.Bin = db
		}
		ds.Features[local] = feat
	}

	ds.logger.Info("built dataset", "num_data", numData, "num_total_features", len(columns), "num_used_features", used)
	return ds, nil
}

// FromDense builds a Dataset from a gonum dense matrix (rows x features),
// the ingestion boundary for callers that already hold data in gonum form
// (e.g. loaded via another gonum-based pipeline stage).
func FromDense(m *mat.Dense, opts BuildOptions) (*Dataset, error) {
	rows, cols := m.Dims()
	columns := make([][]float64, cols)
	for c := 0; c < cols; c++ {
		col := make([]float64, rows)
		for r := 0; r < rows; r++ {
			col[r] = m.At(r, c)
		}
		columns[c] = col
	}
	return FromColumns(columns, opts)
}

// AlignedValidation builds a validation Dataset sharing train's BinMappers
// by reference (never deep-copying them), so histograms stay bin-aligned.
// The training dataset must outlive the returned validation dataset.
func AlignedValidation(train *Dataset, columns [][]float64) (*Dataset, error) {
	if len(columns) != train.NumTotalFeatures {
		return nil, gbdterrors.NewDataShapeError("dataset.AlignedValidation", len(columns), train.NumTotalFeatures, "feature count must match training dataset")
	}
	numData := 0
	if len(columns) > 0 {
		numData = len(columns[0])
	}
	ds := &Dataset{
		NumData:          numData,
		NumTotalFeatures: train.NumTotalFeatures,
		UsedFeatureMap:   train.UsedFeatureMap,
		Meta:             NewMetadata(numData),
		MaxBin:           train.MaxBin,
		SparseThreshold:  train.SparseThreshold,
		logger:           log.GetLoggerWithName("dataset"),
	}
	ds.Features = make([]*Feature, len(train.Features))
	for i, col := range columns {
		local := train.UsedFeatureMap[i]
		if local < 0 {
			continue
		}
		mapper := train.Features[local].Mapper
		feat := &Feature{Name: train.Features[local].Name, Mapper: mapper}
		if binning.ChooseEncoding(mapper.SparseRate, train.SparseThreshold) == "sparse" {
			sb := binning.NewSparseBin(numData, mapper.NumBin(), uint32(mapper.DefaultBin))
			for r, v := range col {
				sb.Push(r, uint32(mapper.ValueToBin(v)))
			}
			sb.FinishLoad()
			feat.Bin = sb
		} else {
			db := binning.NewDenseBin(numData, mapper.NumBin())
			for r, v := range col {
				db.Push(r, uint32(mapper.ValueToBin(v)))
			}
			db.FinishLoad()
			feat.Bin = db
		}
		ds.Features[local] = feat
	}
	return ds, nil
}

func colName(opts BuildOptions, i int) string {
	if i < len(opts.FeatureNames) && opts.FeatureNames[i] != "" {
		return opts.FeatureNames[i]
	}
	return "Column_" + strconv.Itoa(i)
}

// NumUsedFeatures returns the count of non-trivial features retained for training.
func (d *Dataset) NumUsedFeatures() int { return len(d.Features) }

// FeatureAt returns the local feature at used-index i.
func (d *Dataset) FeatureAt(i int) *Feature { return d.Features[i] }
