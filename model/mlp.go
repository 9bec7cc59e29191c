package model

import (
	"fmt"
	"math/rand"

	"go-ml.dev/pkg/zorros"
	"gonum.org/v1/gonum/mat"
)

const KindMLP = "mlp"

/*
MLP stacks ReLU layers between the inputs and an affine output layer.
*/
type MLP struct {
	layers          []*layer
	hiddenDim       int
	nonLinearLayers int
}

func NewMLP(inputDim, outputDim, hiddenDim, nonLinearLayers int, rng *rand.Rand) (*MLP, error) {
	if nonLinearLayers < 1 {
		return nil, zorros.Errorf("use the linear model when num_nonlinear_layers == 0")
	}
	m := &MLP{hiddenDim: hiddenDim, nonLinearLayers: nonLinearLayers}
	in := inputDim
	for i := 0; i < nonLinearLayers; i++ {
		m.layers = append(m.layers, newLayer(layerName("hidden", i), in, hiddenDim, true, rng))
		in = hiddenDim
	}
	m.layers = append(m.layers, newLayer("out", hiddenDim, outputDim, false, rng))
	return m, nil
}

func layerName(prefix string, i int) string {
	return fmt.Sprintf("%s%d", prefix, i)
}

func (m *MLP) Forward(x *mat.Dense) *mat.Dense {
	y := x
	for _, l := range m.layers {
		y = l.forward(y)
	}
	return y
}

func (m *MLP) Backward(grad *mat.Dense) {
	g := grad
	for i := len(m.layers) - 1; i >= 0; i-- {
		g = m.layers[i].backward(g)
	}
}

func (m *MLP) Parameters() []*Parameter {
	var ps []*Parameter
	for _, l := range m.layers {
		ps = append(ps, l.params()...)
	}
	return ps
}

func (m *MLP) Snapshot() *Snapshot {
	in, _ := m.layers[0].W.Value.Dims()
	_, out := m.layers[len(m.layers)-1].W.Value.Dims()
	s := &Snapshot{
		Kind:            KindMLP,
		InputDim:        in,
		OutputDim:       out,
		HiddenDim:       m.hiddenDim,
		NonLinearLayers: m.nonLinearLayers,
	}
	for _, p := range m.Parameters() {
		s.Tensors = append(s.Tensors, snapTensor(p))
	}
	return s
}

func init() {
	RegisterKind(KindMLP, func(s *Snapshot) (Model, error) {
		m, err := NewMLP(s.InputDim, s.OutputDim, s.HiddenDim, s.NonLinearLayers, rand.New(rand.NewSource(0)))
		if err != nil {
			return nil, err
		}
		if err = s.restoreInto(m.Parameters()); err != nil {
			return nil, err
		}
		return m, nil
	})
}
