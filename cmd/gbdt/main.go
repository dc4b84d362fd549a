// Command gbdt is the CLI surface (§6): a single binary driven by
// LightGBM-style "key=value" tokens rather than POSIX flags, with
// task=train and task=predict as the two entry points.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-gbdt/gbdt/boosting"
	"github.com/go-gbdt/gbdt/config"
	contribplot "github.com/go-gbdt/gbdt/contrib/plot"
	"github.com/go-gbdt/gbdt/internal/dataset"
	"github.com/go-gbdt/gbdt/network"
	gbdterrors "github.com/go-gbdt/gbdt/pkg/errors"
	"github.com/go-gbdt/gbdt/pkg/log"
	"github.com/go-gbdt/gbdt/textio"
)

var logger = log.GetLoggerWithName("cmd.gbdt")

func main() {
	if err := run(os.Args[1:]); err != nil {
		logger.Error("fatal", "error", err.Error())
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.Parse(args)
	if err != nil {
		return err
	}

	switch cfg.Task {
	case "predict":
		return runPredict(cfg)
	default:
		return runTrain(cfg)
	}
}

// runTrain loads the training data (and any valid_data sets), fits a
// GBDT/DART model, and writes it to output_model (§6).
func runTrain(cfg config.Config) error {
	if cfg.Data == "" {
		return gbdterrors.NewConfigError("data", "task=train requires data=")
	}

	train, err := loadDataset(cfg.Data, nil, cfg)
	if err != nil {
		return err
	}

	var valid []boosting.ValidSet
	for _, path := range cfg.ValidData {
		vds, err := loadDataset(path, train, cfg)
		if err != nil {
			return err
		}
		valid = append(valid, boosting.ValidSet{Name: filepath.Base(path), Data: vds})
	}

	params := boosting.ParamsFromConfig(cfg)
	gbdt, err := boosting.New(params, train, cfg.Objective, cfg.Metric, valid, network.Local{})
	if err != nil {
		return err
	}

	model, err := gbdt.Fit()
	if err != nil {
		return err
	}

	if cfg.OutputModel != "" {
		f, err := os.Create(filepath.Clean(cfg.OutputModel))
		if err != nil {
			return gbdterrors.NewIOError("cmd.gbdt.runTrain", cfg.OutputModel, err)
		}
		defer func() { _ = f.Close() }()
		if err := model.Dump(f); err != nil {
			return err
		}
		logger.Info("model written", "path", cfg.OutputModel, "num_iteration", model.NumIteration())
	}

	if cfg.LearningCurveOutput != "" {
		if err := writeLearningCurve(gbdt.History(), cfg.LearningCurveOutput); err != nil {
			return err
		}
	}

	if cfg.OutputResult != "" {
		return writePredictions(model, train, cfg.OutputResult)
	}
	return nil
}

// runPredict loads a previously trained model and a data file with no
// label column, scoring every row and writing output_result (§6).
func runPredict(cfg config.Config) error {
	if cfg.InputModel == "" {
		return gbdterrors.NewConfigError("input_model", "task=predict requires input_model=")
	}
	if cfg.Data == "" {
		return gbdterrors.NewConfigError("data", "task=predict requires data=")
	}

	mf, err := os.Open(filepath.Clean(cfg.InputModel))
	if err != nil {
		return gbdterrors.NewIOError("cmd.gbdt.runPredict", cfg.InputModel, err)
	}
	defer func() { _ = mf.Close() }()

	model, err := boosting.Parse(mf)
	if err != nil {
		return err
	}

	parsed, err := textio.ReadFile(cfg.Data, false)
	if err != nil {
		return err
	}

	out := cfg.OutputResult
	if out == "" {
		out = cfg.Data + ".result"
	}
	if cfg.PredictContrib {
		return writeContribPredictions(model, parsed.Rows, out)
	}
	return writeRowPredictions(model, parsed.Rows, out)
}

// loadDataset reads a dense/LIBSVM text file plus its optional .weight and
// .query side files (§6), and binds it into a Dataset: a fresh one via
// FromColumns when train is nil, or one aligned to train's BinMappers
// otherwise, so validation histograms stay bin-compatible with training.
func loadDataset(path string, train *dataset.Dataset, cfg config.Config) (*dataset.Dataset, error) {
	parsed, err := textio.ReadFile(path, true)
	if err != nil {
		return nil, err
	}

	var ds *dataset.Dataset
	if train == nil {
		opts := dataset.BuildOptions{MaxBin: cfg.MaxBin, NumThreads: cfg.NumThreads}
		ds, err = dataset.FromColumns(parsed.ToColumns(), opts)
	} else {
		ds, err = dataset.AlignedValidation(train, parsed.ToColumns())
	}
	if err != nil {
		return nil, err
	}

	if err := ds.Meta.SetLabel(parsed.Label); err != nil {
		return nil, err
	}

	if weight, werr := readSideFile(path + ".weight"); werr == nil {
		if err := ds.Meta.SetWeight(weight); err != nil {
			return nil, err
		}
	}

	if _, statErr := os.Stat(path + ".query"); statErr == nil {
		qb, err := textio.ReadQueryFile(path+".query", ds.NumData)
		if err != nil {
			return nil, err
		}
		if err := ds.Meta.SetQueryBoundaries(qb); err != nil {
			return nil, err
		}
	}

	return ds, nil
}

// writeLearningCurve renders the per-iteration metric history Fit recorded
// into a PNG (ambient reporting, not part of the model artifact itself).
func writeLearningCurve(history map[string][]float64, path string) error {
	series := make([]contribplot.Series, 0, len(history))
	for name, values := range history {
		series = append(series, contribplot.Series{Name: name, Values: values})
	}
	if err := contribplot.LearningCurve("training progress", series, path); err != nil {
		return err
	}
	logger.Info("learning curve written", "path", path)
	return nil
}

func readSideFile(path string) ([]float64, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	return textio.ReadAuxVector(path)
}

// writePredictions scores every row already held by ds via its column-major
// reconstruction, used when task=train also names output_result=.
func writePredictions(model *boosting.Model, ds *dataset.Dataset, outPath string) error {
	rows := make([][]float64, ds.NumData)
	for r := range rows {
		rows[r] = make([]float64, len(ds.Features))
		for fi, feat := range ds.Features {
			rows[r][fi] = feat.Mapper.UpperBound[feat.Bin.BinAt(r)]
		}
	}
	return writeRowPredictions(model, rows, outPath)
}

func writeRowPredictions(model *boosting.Model, rows [][]float64, outPath string) error {
	f, err := os.Create(filepath.Clean(outPath))
	if err != nil {
		return gbdterrors.NewIOError("cmd.gbdt.writeRowPredictions", outPath, err)
	}
	defer func() { _ = f.Close() }()

	for _, row := range rows {
		raw := model.Predict(row)
		line := ""
		for i, v := range raw {
			if i > 0 {
				line += "\t"
			}
			line += strconv.FormatFloat(v, 'g', -1, 64)
		}
		if _, err := fmt.Fprintln(f, line); err != nil {
			return gbdterrors.NewIOError("cmd.gbdt.writeRowPredictions", outPath, err)
		}
	}
	logger.Info("predictions written", "path", outPath, "num_rows", len(rows))
	return nil
}

// writeContribPredictions scores every row's per-feature Saabas contribution
// breakdown (predict_contrib=true) instead of the raw per-class score,
// trailing each row with its bias term.
func writeContribPredictions(model *boosting.Model, rows [][]float64, outPath string) error {
	f, err := os.Create(filepath.Clean(outPath))
	if err != nil {
		return gbdterrors.NewIOError("cmd.gbdt.writeContribPredictions", outPath, err)
	}
	defer func() { _ = f.Close() }()

	for _, row := range rows {
		contrib, bias := model.PredictContrib(row)
		line := ""
		for i, v := range contrib {
			if i > 0 {
				line += "\t"
			}
			line += strconv.FormatFloat(v, 'g', -1, 64)
		}
		line += "\t" + strconv.FormatFloat(bias, 'g', -1, 64)
		if _, err := fmt.Fprintln(f, line); err != nil {
			return gbdterrors.NewIOError("cmd.gbdt.writeContribPredictions", outPath, err)
		}
	}
	logger.Info("contribution predictions written", "path", outPath, "num_rows", len(rows))
	return nil
}
