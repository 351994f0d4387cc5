package kriging

import (
	"fmt"
	"math"
)

// Small dense matrix helpers. Every matrix is a row-major []float64.

type solver string

const (
	solverCholesky    solver = "cholesky"
	solverGaussJordan solver = "gauss-jordan"
)

func matrixDiag(c float64, n int) []float64 {
	Z := make([]float64, n*n)
	for i := 0; i < n; i++ {
		Z[i*n+i] = c
	}
	return Z
}

// matrixTranspose transposes the n×m matrix X into an m×n matrix.
func matrixTranspose(X []float64, n, m int) []float64 {
	Z := make([]float64, m*n)
	for i := 0; i < n; i++ {
		for j := 0; j < m; j++ {
			Z[j*n+i] = X[i*m+j]
		}
	}
	return Z
}

func matrixAdd(X, Y []float64, n, m int) []float64 {
	Z := make([]float64, n*m)
	for i := 0; i < n; i++ {
		for j := 0; j < m; j++ {
			Z[i*m+j] = X[i*m+j] + Y[i*m+j]
		}
	}
	return Z
}

// matrixMultiply returns the n×p product of the n×m matrix X and the m×p matrix Y.
func matrixMultiply(X, Y []float64, n, m, p int) []float64 {
	Z := make([]float64, n*p)
	for i := 0; i < n; i++ {
		for j := 0; j < p; j++ {
			idx := i*p + j
			for k := 0; k < m; k++ {
				Z[idx] += X[i*m+k] * Y[k*p+j]
			}
		}
	}
	return Z
}

// matrixChol decomposes X in place into its lower Cholesky factor.
// It returns false as soon as a pivot is not positive; X is then partially
// overwritten and must be discarded.
func matrixChol(X []float64, n int) bool {
	p := make([]float64, n)
	for i := 0; i < n; i++ {
		p[i] = X[i*n+i]
	}
	for i := 0; i < n; i++ {
		for j := 0; j < i; j++ {
			p[i] -= pow2(X[i*n+j])
		}
		if p[i] <= 0 {
			return false
		}
		p[i] = math.Sqrt(p[i])
		for j := i + 1; j < n; j++ {
			for k := 0; k < i; k++ {
				X[j*n+i] -= X[j*n+k] * X[i*n+k]
			}
			X[j*n+i] /= p[i]
		}
	}
	for i := 0; i < n; i++ {
		X[i*n+i] = p[i]
	}
	return true
}

// matrixChol2inv turns a Cholesky factor produced by matrixChol into the full
// symmetric inverse, in place.
func matrixChol2inv(X []float64, n int) {
	var i, j, k int
	var sum float64
	for i = 0; i < n; i++ {
		X[i*n+i] = 1 / X[i*n+i]
		for j = i + 1; j < n; j++ {
			sum = 0
			for k = i; k < j; k++ {
				sum -= X[j*n+k] * X[k*n+i]
			}
			X[j*n+i] = sum / X[j*n+j]
		}
	}
	for i = 0; i < n; i++ {
		for j = i + 1; j < n; j++ {
			X[i*n+j] = 0
		}
	}
	for i = 0; i < n; i++ {
		X[i*n+i] *= X[i*n+i]
		for k = i + 1; k < n; k++ {
			X[i*n+i] += X[k*n+i] * X[k*n+i]
		}
		for j = i + 1; j < n; j++ {
			for k = j; k < n; k++ {
				X[i*n+j] += X[k*n+i] * X[k*n+j]
			}
		}
	}
	for i = 0; i < n; i++ {
		for j = 0; j < i; j++ {
			X[i*n+j] = X[j*n+i]
		}
	}
}

// matrixSolve inverts X in place by Gauss-Jordan elimination with full
// pivoting against the identity. It returns false on an exactly zero pivot.
func matrixSolve(X []float64, n int) bool {
	m := n
	b := matrixDiag(1, n)
	indxc := make([]int, n)
	indxr := make([]int, n)
	ipiv := make([]int, n)

	var icol, irow int
	var big, dum, pivinv float64

	for i := 0; i < n; i++ {
		big = 0
		for j := 0; j < n; j++ {
			if ipiv[j] == 1 {
				continue
			}
			for k := 0; k < n; k++ {
				if ipiv[k] == 0 && math.Abs(X[j*n+k]) >= big {
					big = math.Abs(X[j*n+k])
					irow = j
					icol = k
				}
			}
		}
		ipiv[icol]++

		if irow != icol {
			for l := 0; l < n; l++ {
				X[irow*n+l], X[icol*n+l] = X[icol*n+l], X[irow*n+l]
			}
			for l := 0; l < m; l++ {
				b[irow*n+l], b[icol*n+l] = b[icol*n+l], b[irow*n+l]
			}
		}

		indxr[i] = irow
		indxc[i] = icol

		if X[icol*n+icol] == 0 {
			return false
		}

		pivinv = 1 / X[icol*n+icol]
		X[icol*n+icol] = 1
		for l := 0; l < n; l++ {
			X[icol*n+l] *= pivinv
		}
		for l := 0; l < m; l++ {
			b[icol*n+l] *= pivinv
		}

		for ll := 0; ll < n; ll++ {
			if ll == icol {
				continue
			}
			dum = X[ll*n+icol]
			X[ll*n+icol] = 0
			for l := 0; l < n; l++ {
				X[ll*n+l] -= X[icol*n+l] * dum
			}
			for l := 0; l < m; l++ {
				b[ll*n+l] -= b[icol*n+l] * dum
			}
		}
	}

	for l := n - 1; l >= 0; l-- {
		if indxr[l] == indxc[l] {
			continue
		}
		for k := 0; k < n; k++ {
			X[k*n+indxr[l]], X[k*n+indxc[l]] = X[k*n+indxc[l]], X[k*n+indxr[l]]
		}
	}
	return true
}

// matrixInvert returns the inverse of the symmetric matrix X, trying Cholesky
// first and Gauss-Jordan elimination second. X itself is left untouched.
func matrixInvert(X []float64, n int) ([]float64, solver, error) {
	Z := make([]float64, len(X))
	copy(Z, X)
	if matrixChol(Z, n) {
		matrixChol2inv(Z, n)
		return Z, solverCholesky, nil
	}

	copy(Z, X)
	if matrixSolve(Z, n) {
		return Z, solverGaussJordan, nil
	}
	return nil, "", fmt.Errorf("%w: %dx%d matrix failed Cholesky and Gauss-Jordan", ErrSingularMatrix, n, n)
}
