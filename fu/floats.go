package fu

import "math"

func Mean(a []float64) float64 {
	var c float64
	for _, x := range a {
		c += x
	}
	return c / float64(len(a))
}

// Std is the population standard deviation (divides by N, not N-1).
func Std(a []float64) float64 {
	m := Mean(a)
	var c float64
	for _, x := range a {
		q := x - m
		c += q * q
	}
	return math.Sqrt(c / float64(len(a)))
}

func Mse(a, b []float64) float64 {
	var c float64
	for i, x := range a {
		q := x - b[i]
		c += q * q
	}
	return c / float64(len(a))
}

// Fnzi returns x if x is not zero and dflt otherwise
func Fnzi(x, dflt int) int {
	if x != 0 {
		return x
	}
	return dflt
}

func Maxi(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func Mini(a, b int) int {
	if a < b {
		return a
	}
	return b
}
