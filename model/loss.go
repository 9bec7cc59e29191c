package model

import (
	"math"

	"go-ml.dev/pkg/zorros"
	"gonum.org/v1/gonum/mat"
)

/*
Loss is an element-wise regression loss. Sum returns the loss summed
over all elements; Grad returns the gradient of that sum with respect
to the predictions. Mean reduction is the caller's division by the
element count.
*/
type Loss interface {
	Name() string
	Sum(pred, target *mat.Dense) float64
	Grad(pred, target *mat.Dense) *mat.Dense
}

/*
LossByName resolves a loss function identifier from the configuration.
*/
func LossByName(name string) (Loss, error) {
	switch name {
	case "mse":
		return mseLoss{}, nil
	case "mae":
		return maeLoss{}, nil
	}
	return nil, zorros.Errorf("unknown loss function `%v`", name)
}

type mseLoss struct{}

func (mseLoss) Name() string { return "mse" }

func (mseLoss) Sum(pred, target *mat.Dense) float64 {
	r, c := pred.Dims()
	var s float64
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			q := pred.At(i, j) - target.At(i, j)
			s += q * q
		}
	}
	return s
}

func (mseLoss) Grad(pred, target *mat.Dense) *mat.Dense {
	r, c := pred.Dims()
	g := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			g.Set(i, j, 2*(pred.At(i, j)-target.At(i, j)))
		}
	}
	return g
}

type maeLoss struct{}

func (maeLoss) Name() string { return "mae" }

func (maeLoss) Sum(pred, target *mat.Dense) float64 {
	r, c := pred.Dims()
	var s float64
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			s += math.Abs(pred.At(i, j) - target.At(i, j))
		}
	}
	return s
}

func (maeLoss) Grad(pred, target *mat.Dense) *mat.Dense {
	r, c := pred.Dims()
	g := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			switch d := pred.At(i, j) - target.At(i, j); {
			case d > 0:
				g.Set(i, j, 1)
			case d < 0:
				g.Set(i, j, -1)
			}
		}
	}
	return g
}
