package vgicp

import (
	"errors"

	"github.com/seqsense/pcgol/mat"
	"github.com/seqsense/pcgol/pc"
	gmat "gonum.org/v1/gonum/mat"

	"github.com/seqsense/vgicp/internal/parallel"
	"github.com/seqsense/vgicp/mat3"
)

// RegularizationMethod selects how a raw per-point sample covariance is
// conditioned before it is used in Mahalanobis weighting. Regularization is
// what keeps rank-deficient neighborhoods (collinear or coplanar points)
// usable downstream.
type RegularizationMethod int

const (
	// RegularizationNone keeps the raw sample covariance.
	RegularizationNone RegularizationMethod = iota
	// RegularizationPlane replaces the eigenvalues by (1e-3, 1, 1),
	// modelling every neighborhood as a locally planar patch.
	RegularizationPlane
	// RegularizationMinEig floors each eigenvalue at 1e-3 times the
	// largest one.
	RegularizationMinEig
	// RegularizationNormalizedMinEig divides the eigenvalues by the
	// largest one and then applies the same floor.
	RegularizationNormalizedMinEig
)

const (
	minEigenvalueRatio = 1e-3
	// Absolute eigenvalue floor so that a fully degenerate neighborhood
	// (all samples identical) still yields an invertible covariance.
	minEigenvalueAbs = 1e-9
)

// covarianceEstimation computes one covariance per point from its k nearest
// neighbors. neighbors is the flat k*N table produced by knn.Search; each
// point is part of its own neighbor set, so a cell contributes k samples.
func covarianceEstimation(cloud pc.Vec3RandomAccessor, k int, neighbors []int, method RegularizationMethod) ([]mat3.Mat, error) {
	n := cloud.Len()
	if k <= 0 || len(neighbors) != k*n {
		return nil, ErrNeighborSize
	}
	covs := make([]mat3.Mat, n)
	errs := make([]error, parallel.NumChunks(n))
	parallel.ForChunks(n, func(chunk, begin, end int) {
		for i := begin; i < end; i++ {
			var mean mat.Vec3
			for _, j := range neighbors[i*k : i*k+k] {
				mean = mean.Add(cloud.Vec3At(j))
			}
			mean = mean.Mul(1 / float32(k))
			var cov mat3.Mat
			for _, j := range neighbors[i*k : i*k+k] {
				d := cloud.Vec3At(j).Sub(mean)
				cov = cov.Add(mat3.Outer(d, d))
			}
			cov = cov.Scale(1 / float32(k))
			out, err := regularize(cov, method)
			if err != nil {
				errs[chunk] = err
				return
			}
			covs[i] = out
		}
	})
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return covs, nil
}

// regularize is a pure function of the raw second-moment matrix. It
// reconstructs the matrix from its eigendecomposition with conditioned
// eigenvalues.
func regularize(c mat3.Mat, method RegularizationMethod) (mat3.Mat, error) {
	if method == RegularizationNone {
		return c, nil
	}
	sym := gmat.NewSymDense(3, []float64{
		float64(c[0]), float64(c[1]), float64(c[2]),
		float64(c[1]), float64(c[4]), float64(c[5]),
		float64(c[2]), float64(c[5]), float64(c[8]),
	})
	var es gmat.EigenSym
	if !es.Factorize(sym, true) {
		return mat3.Mat{}, errors.New("covariance eigendecomposition failed")
	}
	vals := es.Values(nil) // ascending
	var vecs gmat.Dense
	es.VectorsTo(&vecs)

	switch method {
	case RegularizationPlane:
		vals[0], vals[1], vals[2] = minEigenvalueRatio, 1, 1
	case RegularizationMinEig:
		floor := vals[2] * minEigenvalueRatio
		if floor < minEigenvalueAbs {
			floor = minEigenvalueAbs
		}
		for i := range vals {
			if vals[i] < floor {
				vals[i] = floor
			}
		}
	case RegularizationNormalizedMinEig:
		if vals[2] > 0 {
			for i := range vals {
				vals[i] /= vals[2]
			}
		}
		for i := range vals {
			if vals[i] < minEigenvalueRatio {
				vals[i] = minEigenvalueRatio
			}
		}
	}

	var out mat3.Mat
	for r := 0; r < 3; r++ {
		for cc := 0; cc < 3; cc++ {
			var s float64
			for j := 0; j < 3; j++ {
				s += vecs.At(r, j) * vals[j] * vecs.At(cc, j)
			}
			out[r*3+cc] = float32(s)
		}
	}
	return out, nil
}
