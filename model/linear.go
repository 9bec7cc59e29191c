package model

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

const KindLinear = "linear"

/*
Linear predicts the targets as a single affine map of the inputs.
*/
type Linear struct {
	out *layer
}

func NewLinear(inputDim, outputDim int, rng *rand.Rand) *Linear {
	return &Linear{out: newLayer("out", inputDim, outputDim, false, rng)}
}

func (m *Linear) Forward(x *mat.Dense) *mat.Dense { return m.out.forward(x) }
func (m *Linear) Backward(grad *mat.Dense)        { m.out.backward(grad) }
func (m *Linear) Parameters() []*Parameter        { return m.out.params() }

func (m *Linear) Snapshot() *Snapshot {
	in, out := m.out.W.Value.Dims()
	s := &Snapshot{Kind: KindLinear, InputDim: in, OutputDim: out}
	for _, p := range m.Parameters() {
		s.Tensors = append(s.Tensors, snapTensor(p))
	}
	return s
}

func init() {
	RegisterKind(KindLinear, func(s *Snapshot) (Model, error) {
		m := NewLinear(s.InputDim, s.OutputDim, rand.New(rand.NewSource(0)))
		if err := s.restoreInto(m.Parameters()); err != nil {
			return nil, err
		}
		return m, nil
	})
}
