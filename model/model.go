package model

import (
	"go-ml.dev/pkg/zorros"
	"gonum.org/v1/gonum/mat"
)

/*
Model maps a batch of inputs to predictions and owns its learnable
parameters. Backward must be called right after Forward on the same
batch; it accumulates parameter gradients from the loss gradient of
the predictions.
*/
type Model interface {
	Forward(x *mat.Dense) *mat.Dense
	Backward(grad *mat.Dense)
	Parameters() []*Parameter
	Snapshot() *Snapshot
}

/*
Optimizer updates model parameters from their accumulated gradients.
The learning rate is exposed so a scheduler can adjust it between epochs.
*/
type Optimizer interface {
	Step(params []*Parameter)
	LearningRate() float64
	SetLearningRate(lr float64)
}

/*
Scheduler advances the learning-rate schedule with the current
validation loss.
*/
type Scheduler interface {
	Step(valLoss float64)
}

/*
Parameter is one learnable tensor with its gradient accumulator.
*/
type Parameter struct {
	Name  string
	Value *mat.Dense
	Grad  *mat.Dense
}

func newParameter(name string, rows, cols int) *Parameter {
	return &Parameter{
		Name:  name,
		Value: mat.NewDense(rows, cols, nil),
		Grad:  mat.NewDense(rows, cols, nil),
	}
}

func (p *Parameter) ZeroGrad() {
	p.Grad.Zero()
}

/*
Snapshot is a serializable copy of a model's architecture and weights,
used for checkpointing and for returning the best model after training.
*/
type Snapshot struct {
	Kind             string
	InputDim         int
	OutputDim        int
	HiddenDim        int
	NonLinearLayers  int
	DiagonalResidual bool
	Tensors          []Tensor
}

/*
Tensor is one flattened parameter inside a Snapshot.
*/
type Tensor struct {
	Name       string
	Rows, Cols int
	Data       []float64
}

func snapTensor(p *Parameter) Tensor {
	r, c := p.Value.Dims()
	data := make([]float64, r*c)
	copy(data, p.Value.RawMatrix().Data)
	return Tensor{Name: p.Name, Rows: r, Cols: c, Data: data}
}

func (s *Snapshot) restoreInto(params []*Parameter) error {
	if len(s.Tensors) != len(params) {
		return zorros.Errorf("snapshot has %d tensors, model has %d parameters", len(s.Tensors), len(params))
	}
	for i, p := range params {
		ts := s.Tensors[i]
		r, c := p.Value.Dims()
		if ts.Rows != r || ts.Cols != c {
			return zorros.Errorf("snapshot tensor %v has shape (%d,%d), parameter %v has shape (%d,%d)",
				ts.Name, ts.Rows, ts.Cols, p.Name, r, c)
		}
		copy(p.Value.RawMatrix().Data, ts.Data)
	}
	return nil
}

var snapshotBuilders = map[string]func(*Snapshot) (Model, error){}

/*
RegisterKind registers a snapshot builder for a model kind. The built-in
kinds register themselves from their source files.
*/
func RegisterKind(kind string, build func(*Snapshot) (Model, error)) {
	snapshotBuilders[kind] = build
}

/*
FromSnapshot reconstructs a model from a snapshot.
*/
func FromSnapshot(s *Snapshot) (Model, error) {
	build, ok := snapshotBuilders[s.Kind]
	if !ok {
		return nil, zorros.Errorf("unknown model kind `%v`", s.Kind)
	}
	return build(s)
}

/*
ResolveHiddenDimension returns the hidden width to use: the configured
value when positive, otherwise the mean of the input and output widths.
*/
func ResolveHiddenDimension(configured, inputDim, outputDim int) int {
	if configured > 0 {
		return configured
	}
	return (inputDim + outputDim) / 2
}
