package model

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// layer is one fully connected layer with an optional ReLU activation.
// forward caches its input and pre-activation for the backward pass.
type layer struct {
	W, B *Parameter
	relu bool
	x, z *mat.Dense
}

func newLayer(name string, in, out int, relu bool, rng *rand.Rand) *layer {
	l := &layer{
		W:    newParameter(name+".W", in, out),
		B:    newParameter(name+".B", 1, out),
		relu: relu,
	}
	// kaiming-uniform bound for a=sqrt(5), as torch initializes linear layers
	bound := 1.0 / math.Sqrt(float64(in))
	initUniform(l.W.Value, bound, rng)
	initUniform(l.B.Value, bound, rng)
	return l
}

func initUniform(m *mat.Dense, bound float64, rng *rand.Rand) {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			m.Set(i, j, (rng.Float64()*2-1)*bound)
		}
	}
}

func (l *layer) forward(x *mat.Dense) *mat.Dense {
	n, _ := x.Dims()
	_, out := l.W.Value.Dims()
	z := mat.NewDense(n, out, nil)
	z.Mul(x, l.W.Value)
	for i := 0; i < n; i++ {
		for j := 0; j < out; j++ {
			z.Set(i, j, z.At(i, j)+l.B.Value.At(0, j))
		}
	}
	l.x, l.z = x, z
	if !l.relu {
		return z
	}
	a := mat.NewDense(n, out, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < out; j++ {
			a.Set(i, j, math.Max(z.At(i, j), 0))
		}
	}
	return a
}

// backward accumulates W/B gradients and returns the gradient with
// respect to the layer input.
func (l *layer) backward(grad *mat.Dense) *mat.Dense {
	n, out := grad.Dims()
	if l.relu {
		g := mat.NewDense(n, out, nil)
		for i := 0; i < n; i++ {
			for j := 0; j < out; j++ {
				if l.z.At(i, j) > 0 {
					g.Set(i, j, grad.At(i, j))
				}
			}
		}
		grad = g
	}
	var dw mat.Dense
	dw.Mul(l.x.T(), grad)
	l.W.Grad.Add(l.W.Grad, &dw)
	for j := 0; j < out; j++ {
		s := l.B.Grad.At(0, j)
		for i := 0; i < n; i++ {
			s += grad.At(i, j)
		}
		l.B.Grad.Set(0, j, s)
	}
	in, _ := l.W.Value.Dims()
	dx := mat.NewDense(n, in, nil)
	dx.Mul(grad, l.W.Value.T())
	return dx
}

func (l *layer) params() []*Parameter {
	return []*Parameter{l.W, l.B}
}
