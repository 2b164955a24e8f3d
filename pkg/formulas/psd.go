package formulas

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// RepairPSD clips negative eigenvalues at epsilon and reconstructs the matrix.
// Matrices that are already positive semi-definite are returned unchanged, and
// a failed eigendecomposition returns the input as-is rather than an error.
func RepairPSD(m [][]float64, epsilon float64) [][]float64 {
	n := len(m)
	if n == 0 {
		return m
	}

	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			sym.SetSym(i, j, (m[i][j]+m[j][i])/2)
		}
	}

	var eig mat.EigenSym
	if !eig.Factorize(sym, true) {
		return m
	}

	vals := eig.Values(nil)
	clipped := false
	for i, v := range vals {
		if v < epsilon {
			vals[i] = epsilon
			clipped = true
		}
	}
	if !clipped {
		return m
	}

	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	var tmp, rebuilt mat.Dense
	tmp.Mul(&vecs, mat.NewDiagDense(n, vals))
	rebuilt.Mul(&tmp, vecs.T())

	out := squareMatrix(n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			out[i][j] = rebuilt.At(i, j)
		}
	}
	return out
}

// RepairCorrelation repairs a correlation matrix: eigenvalue clipping followed
// by renormalization so the diagonal is exactly 1.
func RepairCorrelation(m [][]float64, epsilon float64) [][]float64 {
	repaired := RepairPSD(m, epsilon)
	n := len(repaired)
	out := squareMatrix(n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			denom := math.Sqrt(repaired[i][i] * repaired[j][j])
			if denom > 0 {
				out[i][j] = repaired[i][j] / denom
			}
		}
		out[i][i] = 1
	}
	return out
}

func squareMatrix(n int) [][]float64 {
	m := make([][]float64, n)
	for i := range m {
		m[i] = make([]float64, n)
	}
	return m
}
