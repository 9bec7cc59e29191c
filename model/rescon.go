package model

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

const KindResConMLP = "rescon_mlp"

/*
ResConMLP is an MLP with a learnable residual connection from the first
outputDim input columns (the gene-aligned copy-number features) to the
output. With a diagonal residual the weight is a fresh vector parameter
embedded into a diagonal map at every forward evaluation; otherwise it
is a full outputDim x outputDim matrix.
*/
type ResConMLP struct {
	mlp      *MLP
	resW     *Parameter // 1 x outputDim when diagonal, outputDim x outputDim otherwise
	resB     *Parameter
	diagonal bool
	x        *mat.Dense
}

func NewResConMLP(inputDim, outputDim, hiddenDim, nonLinearLayers int, diagonal bool, rng *rand.Rand) (*ResConMLP, error) {
	mlp, err := NewMLP(inputDim, outputDim, hiddenDim, nonLinearLayers, rng)
	if err != nil {
		return nil, err
	}
	m := &ResConMLP{mlp: mlp, diagonal: diagonal}
	if diagonal {
		m.resW = newParameter("res.W", 1, outputDim)
	} else {
		m.resW = newParameter("res.W", outputDim, outputDim)
	}
	m.resB = newParameter("res.B", 1, outputDim)
	bound := 1.0 / float64(outputDim)
	initUniform(m.resW.Value, bound, rng)
	initUniform(m.resB.Value, bound, rng)
	return m, nil
}

func (m *ResConMLP) Forward(x *mat.Dense) *mat.Dense {
	m.x = x
	y := m.mlp.Forward(x)
	n, _ := x.Dims()
	_, out := m.resB.Value.Dims()
	for i := 0; i < n; i++ {
		for j := 0; j < out; j++ {
			var r float64
			if m.diagonal {
				r = x.At(i, j) * m.resW.Value.At(0, j)
			} else {
				for k := 0; k < out; k++ {
					r += x.At(i, k) * m.resW.Value.At(k, j)
				}
			}
			y.Set(i, j, y.At(i, j)+r+m.resB.Value.At(0, j))
		}
	}
	return y
}

func (m *ResConMLP) Backward(grad *mat.Dense) {
	m.mlp.Backward(grad)
	n, out := grad.Dims()
	for j := 0; j < out; j++ {
		bsum := m.resB.Grad.At(0, j)
		for i := 0; i < n; i++ {
			bsum += grad.At(i, j)
		}
		m.resB.Grad.Set(0, j, bsum)
	}
	if m.diagonal {
		for j := 0; j < out; j++ {
			s := m.resW.Grad.At(0, j)
			for i := 0; i < n; i++ {
				s += m.x.At(i, j) * grad.At(i, j)
			}
			m.resW.Grad.Set(0, j, s)
		}
		return
	}
	for k := 0; k < out; k++ {
		for j := 0; j < out; j++ {
			s := m.resW.Grad.At(k, j)
			for i := 0; i < n; i++ {
				s += m.x.At(i, k) * grad.At(i, j)
			}
			m.resW.Grad.Set(k, j, s)
		}
	}
}

func (m *ResConMLP) Parameters() []*Parameter {
	return append(m.mlp.Parameters(), m.resW, m.resB)
}

func (m *ResConMLP) Snapshot() *Snapshot {
	s := m.mlp.Snapshot()
	s.Kind = KindResConMLP
	s.DiagonalResidual = m.diagonal
	s.Tensors = append(s.Tensors, snapTensor(m.resW), snapTensor(m.resB))
	return s
}

func init() {
	RegisterKind(KindResConMLP, func(s *Snapshot) (Model, error) {
		m, err := NewResConMLP(s.InputDim, s.OutputDim, s.HiddenDim, s.NonLinearLayers, s.DiagonalResidual, rand.New(rand.NewSource(0)))
		if err != nil {
			return nil, err
		}
		if err = s.restoreInto(m.Parameters()); err != nil {
			return nil, err
		}
		return m, nil
	})
}
