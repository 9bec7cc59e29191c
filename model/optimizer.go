package model

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

/*
SGD is plain stochastic gradient descent with optional momentum.
*/
type SGD struct {
	LR       float64
	Momentum float64
	velocity map[*Parameter]*mat.Dense
}

func NewSGD(lr, momentum float64) *SGD {
	return &SGD{LR: lr, Momentum: momentum, velocity: map[*Parameter]*mat.Dense{}}
}

func (o *SGD) LearningRate() float64      { return o.LR }
func (o *SGD) SetLearningRate(lr float64) { o.LR = lr }

func (o *SGD) Step(params []*Parameter) {
	for _, p := range params {
		r, c := p.Value.Dims()
		v, ok := o.velocity[p]
		if !ok {
			v = mat.NewDense(r, c, nil)
			o.velocity[p] = v
		}
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				u := o.Momentum*v.At(i, j) + p.Grad.At(i, j)
				v.Set(i, j, u)
				p.Value.Set(i, j, p.Value.At(i, j)-o.LR*u)
			}
		}
		p.ZeroGrad()
	}
}

/*
Adam keeps per-parameter first and second moment estimates.
*/
type Adam struct {
	LR      float64
	Beta1   float64
	Beta2   float64
	Epsilon float64
	t       int
	m, v    map[*Parameter]*mat.Dense
}

func NewAdam(lr float64) *Adam {
	return &Adam{
		LR:      lr,
		Beta1:   0.9,
		Beta2:   0.999,
		Epsilon: 1e-8,
		m:       map[*Parameter]*mat.Dense{},
		v:       map[*Parameter]*mat.Dense{},
	}
}

func (o *Adam) LearningRate() float64      { return o.LR }
func (o *Adam) SetLearningRate(lr float64) { o.LR = lr }

func (o *Adam) Step(params []*Parameter) {
	o.t++
	c1 := 1 - math.Pow(o.Beta1, float64(o.t))
	c2 := 1 - math.Pow(o.Beta2, float64(o.t))
	for _, p := range params {
		r, c := p.Value.Dims()
		m, ok := o.m[p]
		if !ok {
			m = mat.NewDense(r, c, nil)
			o.m[p] = m
			o.v[p] = mat.NewDense(r, c, nil)
		}
		v := o.v[p]
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				g := p.Grad.At(i, j)
				mij := o.Beta1*m.At(i, j) + (1-o.Beta1)*g
				vij := o.Beta2*v.At(i, j) + (1-o.Beta2)*g*g
				m.Set(i, j, mij)
				v.Set(i, j, vij)
				p.Value.Set(i, j, p.Value.At(i, j)-o.LR*(mij/c1)/(math.Sqrt(vij/c2)+o.Epsilon))
			}
		}
		p.ZeroGrad()
	}
}
