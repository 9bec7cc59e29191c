package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"github.com/oncoml/cna2gex/dataset"
	"github.com/oncoml/cna2gex/eval"
	"github.com/oncoml/cna2gex/fu"
	"github.com/oncoml/cna2gex/model"
	"github.com/oncoml/cna2gex/runlog"
	"go-ml.dev/pkg/iokit"
	"go-ml.dev/pkg/zorros"
	"go-ml.dev/pkg/zorros/zlog"
	"golang.org/x/xerrors"
)

/*
Config is the immutable description of one run, decoded from a JSON
file. Derived values (resolved hidden dimension, matrix shapes) are
returned by the components that compute them and never written back.
*/
type Config struct {
	ProcessedDataDir string   `json:"processed_data_dir"`
	ExperimentDir    string   `json:"experiment_dir"`
	InputDataTypes   []string `json:"input_data_types"`
	OutputDataType   string   `json:"output_data_type"`
	CancerType       string   `json:"cancer_type"`

	SplitRatios      map[string]float64 `json:"split_ratios"`
	Seed             int64              `json:"seed"`
	NormalizationEps float64            `json:"normalization_eps"`
	NormalizeInput   bool               `json:"normalize_input"`
	NormalizeOutput  bool               `json:"normalize_output"`

	LossFunction          string  `json:"loss_function"`
	Optimizer             string  `json:"optimizer"`
	LearningRate          float64 `json:"learning_rate"`
	Momentum              float64 `json:"momentum"`
	BatchSize             int     `json:"batch_size"`
	NumEpochs             int     `json:"num_epochs"`
	EarlyStoppingPatience int     `json:"early_stopping_patience"`
	SchedulerFactor       float64 `json:"scheduler_factor"`
	SchedulerPatience     int     `json:"scheduler_patience"`

	Model              string `json:"model"`
	HiddenDimension    int    `json:"hidden_dimension"`
	NumNonLinearLayers int    `json:"num_nonlinear_layers"`
	ResConDiagonalW    bool   `json:"rescon_diagonal_w"`

	RunLog string `json:"runlog"`
}

func (cfg Config) experimentName() string {
	return fmt.Sprintf("%v_%v_%v_%v_seed%d",
		strings.Join(cfg.InputDataTypes, "+"), cfg.OutputDataType, cfg.CancerType, cfg.Model, cfg.Seed)
}

// validate covers everything that must fail before any data is loaded.
func (cfg Config) validate() error {
	if err := dataset.ValidateRatios(cfg.SplitRatios); err != nil {
		return err
	}
	if len(cfg.InputDataTypes) == 0 {
		return xerrors.Errorf("input_data_types must name at least one source: %w", dataset.ErrConfiguration)
	}
	if cfg.OutputDataType == "" {
		return xerrors.Errorf("output_data_type is required: %w", dataset.ErrConfiguration)
	}
	if cfg.CancerType == "" {
		return xerrors.Errorf("cancer_type is required ('all' or a specific category): %w", dataset.ErrConfiguration)
	}
	if _, err := model.LossByName(cfg.LossFunction); err != nil {
		return xerrors.Errorf("%v: %w", err.Error(), dataset.ErrConfiguration)
	}
	if cfg.NumEpochs < 1 {
		return xerrors.Errorf("num_epochs must be at least 1: %w", dataset.ErrConfiguration)
	}
	if cfg.EarlyStoppingPatience < 1 {
		return xerrors.Errorf("early_stopping_patience must be at least 1: %w", dataset.ErrConfiguration)
	}
	switch cfg.Model {
	case model.KindLinear, model.KindMLP, model.KindResConMLP:
	default:
		return xerrors.Errorf("unknown model `%v`: %w", cfg.Model, dataset.ErrConfiguration)
	}
	switch cfg.Optimizer {
	case "", "sgd", "adam":
	default:
		return xerrors.Errorf("unknown optimizer `%v`: %w", cfg.Optimizer, dataset.ErrConfiguration)
	}
	return nil
}

func buildModel(cfg Config, inputDim, outputDim int, rng *rand.Rand) (model.Model, error) {
	hidden := model.ResolveHiddenDimension(cfg.HiddenDimension, inputDim, outputDim)
	switch cfg.Model {
	case model.KindLinear:
		return model.NewLinear(inputDim, outputDim, rng), nil
	case model.KindMLP:
		return model.NewMLP(inputDim, outputDim, hidden, cfg.NumNonLinearLayers, rng)
	case model.KindResConMLP:
		return model.NewResConMLP(inputDim, outputDim, hidden, cfg.NumNonLinearLayers, cfg.ResConDiagonalW, rng)
	}
	return nil, zorros.Errorf("unknown model `%v`", cfg.Model)
}

func buildOptimizer(cfg Config) model.Optimizer {
	lr := cfg.LearningRate
	if lr == 0 {
		lr = 1e-3
	}
	if cfg.Optimizer == "sgd" {
		return model.NewSGD(lr, cfg.Momentum)
	}
	return model.NewAdam(lr)
}

func run(cfg Config) error {
	if err := cfg.validate(); err != nil {
		return err
	}
	loss, err := model.LossByName(cfg.LossFunction)
	if err != nil {
		return err
	}

	assembler := dataset.Assembler{Dir: cfg.ProcessedDataDir, Seed: cfg.Seed}
	ds, err := assembler.Assemble(cfg.CancerType, cfg.InputDataTypes, cfg.OutputDataType)
	if err != nil {
		return err
	}
	split, err := dataset.Partition(ds.Len(), cfg.SplitRatios, cfg.Seed)
	if err != nil {
		return err
	}
	eps := cfg.NormalizationEps
	if eps == 0 {
		eps = 1e-5
	}
	stats := dataset.Fit(ds.X, ds.Y, split.Train, ds.OneHotColumns, eps)

	rng := rand.New(rand.NewSource(cfg.Seed))
	m, err := buildModel(cfg, ds.InputDim, ds.OutputDim, rng)
	if err != nil {
		return err
	}
	opt := buildOptimizer(cfg)
	sched := model.NewReduceLROnPlateau(opt, fnzf(cfg.SchedulerFactor, 0.1), fu.Fnzi(cfg.SchedulerPatience, 10))

	experimentDir := filepath.Join(cfg.ExperimentDir, cfg.experimentName())
	if cfg.ExperimentDir == "" {
		experimentDir = fu.ModelPath(cfg.experimentName())
	}
	stash, err := model.NewStash(filepath.Join(experimentDir, "checkpoints"))
	if err != nil {
		return err
	}
	loop := &model.Loop{
		Dataset:         ds,
		Split:           split,
		Stats:           stats,
		NormalizeInput:  cfg.NormalizeInput,
		NormalizeOutput: cfg.NormalizeOutput,
		Loss:            loss,
		BatchSize:       cfg.BatchSize,
		MaxEpochs:       cfg.NumEpochs,
		Patience:        cfg.EarlyStoppingPatience,
		Seed:            cfg.Seed,
		Stash:           stash,
		ModelFile:       iokit.File(filepath.Join(experimentDir, "best-model.gob.xz")),
	}
	var rl *runlog.Log
	if cfg.RunLog != "" {
		if rl, err = runlog.Open(cfg.RunLog, cfg.experimentName(), cfg.CancerType, cfg.Seed); err != nil {
			return err
		}
		defer rl.Close()
		loop.Sink = rl
	}

	res, err := loop.Run(m, opt, sched)
	if err != nil {
		return err
	}
	zlog.Info(fmt.Sprintf("Training %v at epoch %d, best val %v loss is %.2f.",
		res.State, res.StoppedEpoch, loss.Name(), res.BestValLoss))

	lookup := make(map[string]string, ds.Len())
	for i, id := range ds.SampleIDs {
		lookup[id] = ds.CancerTypes[i]
	}
	reporter := eval.Reporter{ExperimentDir: experimentDir, GeneIDs: ds.GeneIDs, Loss: loss}
	for _, q := range []struct {
		name string
		idx  []int
	}{{"val", split.Val}, {"test", split.Test}} {
		if len(q.idx) == 0 {
			zlog.Warning(fmt.Sprintf("%v split is empty, skipping its report", q.name))
			continue
		}
		preds, truths, ids := loop.Predict(res.Model, q.idx)
		groups, err := reporter.Report(q.name, preds, truths, ids, lookup)
		if err != nil {
			return err
		}
		if rl != nil {
			if err = rl.RecordMetrics(q.name, groups); err != nil {
				return err
			}
		}
	}
	return nil
}

func fnzf(x, dflt float64) float64 {
	if x != 0 {
		return x
	}
	return dflt
}

func main() {
	configPath := flag.String("config", "run.json", "path to the run configuration file")
	flag.Parse()

	raw, err := os.Open(*configPath)
	if err != nil {
		panic(zorros.Panic(zorros.Trace(err)))
	}
	var cfg Config
	err = json.NewDecoder(raw).Decode(&cfg)
	raw.Close()
	if err != nil {
		panic(zorros.Panic(zorros.Wrapf(err, "failed to decode config %v: %v", *configPath, err.Error())))
	}
	if err = run(cfg); err != nil {
		panic(zorros.Panic(err))
	}
}
