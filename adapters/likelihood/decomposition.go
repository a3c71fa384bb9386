// Package likelihood implements the theory-to-bandpower mapper and the
// covariance-based likelihood forms.
package likelihood

import (
	"log"
	"math"

	"gonum.org/v1/gonum/mat"

	"pslike/domain/core"
)

// relTol is the relative singular-value cutoff below which a covariance
// direction is treated as null when building the pseudo-inverse.
const relTol = 1e-12

// covDecomposition is the cached factorization of an observation's
// covariance matrix. It is computed once per observation and shared by all
// evaluations, which keeps the sampler's inner loop free of O(n^3) work.
type covDecomposition struct {
	dim      int
	chol     *mat.Cholesky
	pinv     *mat.Dense // set only on the degraded path
	logDet   float64    // pseudo-log-determinant on the degraded path
	rank     int
	degraded bool
}

// decompose factorizes cov. A Cholesky factorization is attempted first; if
// the matrix is not positive definite the behavior depends on strict mode:
// strict fails with SingularCovariance, otherwise an SVD pseudo-inverse is
// substituted and the decomposition is marked degraded.
func decompose(cov *mat.SymDense, strict bool) (*covDecomposition, error) {
	n := cov.SymmetricDim()

	var chol mat.Cholesky
	if chol.Factorize(cov) {
		return &covDecomposition{
			dim:    n,
			chol:   &chol,
			logDet: chol.LogDet(),
			rank:   n,
		}, nil
	}

	if strict {
		return nil, core.NewSingularCovarianceError(n)
	}

	log.Printf("[likelihood] covariance not positive definite, using pseudo-inverse (n=%d)", n)

	dense := mat.NewDense(n, n, nil)
	dense.Copy(cov)
	var svd mat.SVD
	if !svd.Factorize(dense, mat.SVDThin) {
		return nil, core.NewSingularCovarianceError(n)
	}

	s := svd.Values(nil)
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	cutoff := relTol * s[0]
	rank := 0
	logDet := 0.0
	inv := make([]float64, n)
	for i, sv := range s {
		if sv > cutoff {
			inv[i] = 1 / sv
			logDet += math.Log(sv)
			rank++
		}
	}
	if rank == 0 {
		return nil, core.NewSingularCovarianceError(n)
	}

	// pinv = V * diag(1/s) * U^T over the retained directions.
	scaled := mat.NewDense(n, n, nil)
	for j := 0; j < n; j++ {
		for i := 0; i < n; i++ {
			scaled.Set(i, j, v.At(i, j)*inv[j])
		}
	}
	pinv := mat.NewDense(n, n, nil)
	pinv.Mul(scaled, u.T())

	return &covDecomposition{
		dim:      n,
		pinv:     pinv,
		logDet:   logDet,
		rank:     rank,
		degraded: true,
	}, nil
}

// mahalanobis returns r^T C^-1 r using the cached factorization.
func (d *covDecomposition) mahalanobis(r *mat.VecDense) float64 {
	y := mat.NewVecDense(d.dim, nil)
	if d.chol != nil {
		if err := d.chol.SolveVecTo(y, r); err != nil {
			return math.NaN()
		}
	} else {
		y.MulVec(d.pinv, r)
	}
	return mat.Dot(r, y)
}
