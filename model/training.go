package model

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/oncoml/cna2gex/dataset"
	"github.com/oncoml/cna2gex/fu"
	"go-ml.dev/pkg/iokit"
	"go-ml.dev/pkg/zorros/zlog"
	"golang.org/x/xerrors"
	"gonum.org/v1/gonum/mat"
)

// ErrNumericAnomaly marks a NaN or Inf loss; it is propagated to the
// caller, never masked.
var ErrNumericAnomaly = xerrors.New("numeric anomaly")

/*
State is the terminal condition of a training run.
*/
type State int

const (
	Running State = iota
	EarlyStopped
	Exhausted
)

func (s State) String() string {
	switch s {
	case EarlyStopped:
		return "early-stopped"
	case Exhausted:
		return "exhausted"
	}
	return "running"
}

/*
EpochSink receives the per-epoch losses, e.g. for a metrics dashboard.
*/
type EpochSink interface {
	Epoch(epoch int, trainLoss, valLoss float64)
}

const DefaultBatchSize = 64

/*
Loop runs the epoch-driven training cycle over a partitioned dataset:
re-shuffled mini-batches, mean-reduction training loss, sum/count
validation loss with output denormalization, and the early-stopping
state machine with best-checkpoint selection.
*/
type Loop struct {
	Dataset         *dataset.Dataset
	Split           dataset.Split
	Stats           dataset.Stats
	NormalizeInput  bool
	NormalizeOutput bool
	Loss            Loss
	BatchSize       int
	MaxEpochs       int
	Patience        int
	Seed            int64
	Stash           *Stash
	Sink            EpochSink    // optional
	ModelFile       iokit.Output // optional export of the best checkpoint
}

/*
Result is the outcome of a training run. Model is the best-validation
snapshot restored from the stash, not necessarily the last-epoch model.
*/
type Result struct {
	Model        Model
	State        State
	StoppedEpoch int
	BestValLoss  float64
	History      []float64 // validation loss per epoch
}

func (l *Loop) Run(m Model, opt Optimizer, sched Scheduler) (*Result, error) {
	rng := rand.New(rand.NewSource(l.Seed))
	res := &Result{State: Running, BestValLoss: math.Inf(1)}
	notImproved := 0
	for epoch := 1; epoch <= fu.Maxi(l.MaxEpochs, 1); epoch++ {
		trainLoss, err := l.trainEpoch(m, opt, rng)
		if err != nil {
			return nil, err
		}
		valLoss, err := l.Evaluate(m, l.Split.Val)
		if err != nil {
			return nil, err
		}
		zlog.Info(fmt.Sprintf("Epoch %03d,   Val %v loss is %.2f.", epoch, l.Loss.Name(), valLoss))
		if l.Sink != nil {
			l.Sink.Epoch(epoch, trainLoss, valLoss)
		}
		res.History = append(res.History, valLoss)
		res.StoppedEpoch = epoch
		if valLoss < res.BestValLoss {
			notImproved = 0
			res.BestValLoss = valLoss
			// the previous best file stays valid until the rename completes
			if err = l.Stash.Save(m.Snapshot()); err != nil {
				return nil, err
			}
			continue
		}
		notImproved++
		if notImproved == l.Patience {
			res.State = EarlyStopped
			zlog.Info(fmt.Sprintf("Early stopping at epoch %d.", epoch))
			break
		}
		sched.Step(valLoss)
	}
	if res.State == Running {
		res.State = Exhausted
	}
	snap, err := l.Stash.Load()
	if err != nil {
		return nil, err
	}
	if res.Model, err = FromSnapshot(snap); err != nil {
		return nil, err
	}
	if l.ModelFile != nil {
		if err = l.Stash.Export(l.ModelFile); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (l *Loop) trainEpoch(m Model, opt Optimizer, rng *rand.Rand) (float64, error) {
	idx := append([]int{}, l.Split.Train...)
	rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
	var lossSum, count float64
	for _, batch := range batches(idx, fu.Fnzi(l.BatchSize, DefaultBatchSize)) {
		x := dataset.Rows(l.Dataset.X, batch)
		y := dataset.Rows(l.Dataset.Y, batch)
		if l.NormalizeInput {
			x = dataset.Apply(x, l.Stats.XMean, l.Stats.XStd)
		}
		if l.NormalizeOutput {
			y = dataset.Apply(y, l.Stats.YMean, l.Stats.YStd)
		}
		pred := m.Forward(x)
		r, c := y.Dims()
		n := float64(r * c)
		loss := l.Loss.Sum(pred, y) / n
		if math.IsNaN(loss) || math.IsInf(loss, 0) {
			return 0, xerrors.Errorf("train loss is %v: %w", loss, ErrNumericAnomaly)
		}
		grad := l.Loss.Grad(pred, y)
		grad.Scale(1/n, grad)
		m.Backward(grad)
		opt.Step(m.Parameters())
		lossSum += loss * n
		count += n
	}
	return lossSum / count, nil
}

/*
Evaluate runs a no-gradient pass over the given rows and returns the
sum-reduction loss divided by the total element count. Predictions are
denormalized before comparison so the loss is in the original target
scale.
*/
func (l *Loop) Evaluate(m Model, idx []int) (float64, error) {
	var lossSum, count float64
	for _, batch := range batches(idx, fu.Fnzi(l.BatchSize, DefaultBatchSize)) {
		pred, y := l.predictBatch(m, batch)
		r, c := y.Dims()
		lossSum += l.Loss.Sum(pred, y)
		count += float64(r * c)
	}
	loss := lossSum / count
	if math.IsNaN(loss) || math.IsInf(loss, 0) {
		return 0, xerrors.Errorf("validation loss is %v: %w", loss, ErrNumericAnomaly)
	}
	return loss, nil
}

/*
Predict collects the denormalized predictions and the ground truths for
the given rows, aligned with the returned sample ids.
*/
func (l *Loop) Predict(m Model, idx []int) (preds, truths *mat.Dense, sampleIDs []string) {
	preds = mat.NewDense(len(idx), l.Dataset.OutputDim, nil)
	truths = mat.NewDense(len(idx), l.Dataset.OutputDim, nil)
	sampleIDs = make([]string, len(idx))
	at := 0
	for _, batch := range batches(idx, fu.Fnzi(l.BatchSize, DefaultBatchSize)) {
		pred, y := l.predictBatch(m, batch)
		for k := range batch {
			preds.SetRow(at, pred.RawRowView(k))
			truths.SetRow(at, y.RawRowView(k))
			sampleIDs[at] = l.Dataset.SampleIDs[batch[k]]
			at++
		}
	}
	return
}

func (l *Loop) predictBatch(m Model, batch []int) (pred, y *mat.Dense) {
	x := dataset.Rows(l.Dataset.X, batch)
	y = dataset.Rows(l.Dataset.Y, batch)
	if l.NormalizeInput {
		x = dataset.Apply(x, l.Stats.XMean, l.Stats.XStd)
	}
	pred = m.Forward(x)
	if l.NormalizeOutput {
		// training compared against normalized targets, so the raw
		// output is in normalized scale and must be inverted here
		pred = dataset.Invert(pred, l.Stats.YMean, l.Stats.YStd)
	}
	return
}

func batches(idx []int, size int) [][]int {
	var r [][]int
	for at := 0; at < len(idx); at += size {
		r = append(r, idx[at:fu.Mini(at+size, len(idx))])
	}
	return r
}
