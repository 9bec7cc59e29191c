package model

import (
	"io/ioutil"
	"math"
	"os"
	"testing"

	"github.com/oncoml/cna2gex/dataset"
	"gonum.org/v1/gonum/mat"
	"gotest.tools/assert"
)

// stubModel scripts the validation losses of consecutive epochs. The
// fixture's val split has 2 rows and its train split 3, so the batch
// height tells the passes apart.
type stubModel struct {
	valPreds   []float64
	valCalls   int
	savedEpoch float64
	marker     *Parameter
}

func newStubModel(valLosses []float64) *stubModel {
	s := &stubModel{marker: newParameter("marker", 1, 1)}
	for _, l := range valLosses {
		s.valPreds = append(s.valPreds, math.Sqrt(l))
	}
	return s
}

func (s *stubModel) Forward(x *mat.Dense) *mat.Dense {
	r, _ := x.Dims()
	out := mat.NewDense(r, 1, nil)
	if r == 2 {
		v := s.valPreds[s.valCalls]
		s.valCalls++
		for i := 0; i < r; i++ {
			out.Set(i, 0, v)
		}
	}
	return out
}

func (s *stubModel) Backward(grad *mat.Dense) {}
func (s *stubModel) Parameters() []*Parameter { return []*Parameter{s.marker} }

func (s *stubModel) Snapshot() *Snapshot {
	return &Snapshot{
		Kind:    "stub",
		Tensors: []Tensor{{Name: "epoch", Rows: 1, Cols: 1, Data: []float64{float64(s.valCalls)}}},
	}
}

func init() {
	RegisterKind("stub", func(s *Snapshot) (Model, error) {
		return &stubModel{savedEpoch: s.Tensors[0].Data[0], marker: newParameter("marker", 1, 1)}, nil
	})
}

type spyScheduler struct {
	steps []float64
}

func (s *spyScheduler) Step(valLoss float64) { s.steps = append(s.steps, valLoss) }

type spySink struct {
	epochs []int
}

func (s *spySink) Epoch(epoch int, trainLoss, valLoss float64) { s.epochs = append(s.epochs, epoch) }

func loopFixture(t *testing.T, maxEpochs, patience int) (*Loop, func()) {
	t.Helper()
	dir, err := ioutil.TempDir("", "loop-*")
	assert.NilError(t, err)
	stash, err := NewStash(dir)
	assert.NilError(t, err)
	ds := &dataset.Dataset{
		X:         mat.NewDense(5, 1, []float64{1, 2, 3, 4, 5}),
		Y:         mat.NewDense(5, 1, nil),
		SampleIDs: []string{"S1", "S2", "S3", "S4", "S5"},
		InputDim:  1,
		OutputDim: 1,
	}
	loss, err := LossByName("mse")
	assert.NilError(t, err)
	return &Loop{
		Dataset:   ds,
		Split:     dataset.Split{Train: []int{0, 1, 2}, Val: []int{3, 4}},
		Loss:      loss,
		BatchSize: 8,
		MaxEpochs: maxEpochs,
		Patience:  patience,
		Seed:      1,
		Stash:     stash,
	}, func() { os.RemoveAll(dir) }
}

func Test_EarlyStopping(t *testing.T) {
	l, cleanup := loopFixture(t, 10, 2)
	defer cleanup()
	sched := &spyScheduler{}
	sink := &spySink{}
	l.Sink = sink

	res, err := l.Run(newStubModel([]float64{5, 5, 6, 7}), NewSGD(0.1, 0), sched)
	assert.NilError(t, err)
	assert.Equal(t, res.State, EarlyStopped)
	assert.Equal(t, res.StoppedEpoch, 3)
	assert.Equal(t, len(res.History), 3)
	assert.Equal(t, res.BestValLoss, res.History[0])

	// the returned model is the checkpoint captured at epoch 1
	assert.Equal(t, res.Model.(*stubModel).savedEpoch, 1.0)

	// scheduler advanced on the first non-improving epoch only; the
	// stopping epoch breaks before stepping it
	assert.Equal(t, len(sched.steps), 1)
	assert.DeepEqual(t, sink.epochs, []int{1, 2, 3})
}

func Test_EpochBudgetExhausted(t *testing.T) {
	l, cleanup := loopFixture(t, 3, 5)
	defer cleanup()
	res, err := l.Run(newStubModel([]float64{5, 4, 3}), NewSGD(0.1, 0), &spyScheduler{})
	assert.NilError(t, err)
	assert.Equal(t, res.State, Exhausted)
	assert.Equal(t, res.StoppedEpoch, 3)
	// every epoch improved, the last checkpoint is the best one
	assert.Equal(t, res.Model.(*stubModel).savedEpoch, 3.0)
	assert.Assert(t, res.BestValLoss < res.History[0])
}

func Test_NumericAnomalyPropagates(t *testing.T) {
	l, cleanup := loopFixture(t, 4, 2)
	defer cleanup()
	_, err := l.Run(newStubModel([]float64{math.NaN()}), NewSGD(0.1, 0), &spyScheduler{})
	assert.ErrorContains(t, err, "numeric anomaly")
}

func Test_LinearModelLearns(t *testing.T) {
	l, cleanup := loopFixture(t, 500, 500)
	defer cleanup()
	// y = 2x over the same 5 samples
	for i := 0; i < 5; i++ {
		l.Dataset.Y.Set(i, 0, 2*l.Dataset.X.At(i, 0))
	}
	l.Split = dataset.Split{Train: []int{0, 1, 2, 4}, Val: []int{3}}

	m := NewLinear(1, 1, newRng(7))
	opt := NewSGD(0.05, 0)
	res, err := l.Run(m, opt, NewReduceLROnPlateau(opt, 0.5, 3))
	assert.NilError(t, err)
	assert.Assert(t, res.BestValLoss < res.History[0])
	assert.Assert(t, res.BestValLoss < 0.5)
}
