package dataset

import (
	"github.com/oncoml/cna2gex/fu"
	"gonum.org/v1/gonum/mat"
)

/*
Stats holds the column-wise normalization statistics of a dataset,
computed from the train partition only. The statistics are immutable
after Fit and are the sole source of truth for normalizing or
denormalizing any split.
*/
type Stats struct {
	XMean, XStd []float64
	YMean, YStd []float64
}

/*
Fit computes per-column mean and population standard deviation (plus eps)
of the features and targets over the train rows only. One-hot cancer-type
feature columns are forced to mean 0 / std 1 so Apply leaves them intact.
*/
func Fit(X, Y *mat.Dense, trainIdx []int, oneHotColumns []int, eps float64) Stats {
	s := Stats{}
	s.XMean, s.XStd = columnStats(X, trainIdx, eps)
	s.YMean, s.YStd = columnStats(Y, trainIdx, eps)
	for _, j := range oneHotColumns {
		s.XMean[j] = 0
		s.XStd[j] = 1
	}
	return s
}

func columnStats(m *mat.Dense, idx []int, eps float64) (mean, std []float64) {
	_, c := m.Dims()
	mean = make([]float64, c)
	std = make([]float64, c)
	col := make([]float64, len(idx))
	for j := 0; j < c; j++ {
		for k, i := range idx {
			col[k] = m.At(i, j)
		}
		mean[j] = fu.Mean(col)
		std[j] = fu.Std(col) + eps
	}
	return
}

/*
Apply returns (x - mean) / std computed column-wise on a fresh matrix.
*/
func Apply(m *mat.Dense, mean, std []float64) *mat.Dense {
	r, c := m.Dims()
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out.Set(i, j, (m.At(i, j)-mean[j])/std[j])
		}
	}
	return out
}

/*
Invert returns x * std + mean, the exact inverse of Apply up to
floating-point rounding.
*/
func Invert(m *mat.Dense, mean, std []float64) *mat.Dense {
	r, c := m.Dims()
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out.Set(i, j, m.At(i, j)*std[j]+mean[j])
		}
	}
	return out
}

/*
Rows gathers the given rows of a matrix into a fresh matrix, preserving
the index order.
*/
func Rows(m *mat.Dense, idx []int) *mat.Dense {
	_, c := m.Dims()
	out := mat.NewDense(len(idx), c, nil)
	for k, i := range idx {
		for j := 0; j < c; j++ {
			out.Set(k, j, m.At(i, j))
		}
	}
	return out
}
