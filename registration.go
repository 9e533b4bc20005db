package vgicp

import (
	"errors"
	"math"

	"github.com/seqsense/pcgol/mat"
	"github.com/seqsense/pcgol/pc"
	gmat "gonum.org/v1/gonum/mat"

	"github.com/seqsense/vgicp/knn"
)

// NearestNeighborMethod selects how per-point neighbor tables are computed
// when clouds are set through Registration.
type NearestNeighborMethod int

const (
	// NearestNeighborKDTree queries a balanced kd-tree in parallel per
	// point. Default.
	NearestNeighborKDTree NearestNeighborMethod = iota
	// NearestNeighborBruteForce selects the k smallest of all-pairs
	// distances. O(N^2); for small clouds.
	NearestNeighborBruteForce
)

// Registration drives a Core through the voxelized GICP pipeline and
// refines a rigid transform by Gauss-Newton iterations. Parameters take
// effect on the next SetInput* or Align call.
type Registration struct {
	KCorrespondences      int
	Resolution            float32
	Regularization        RegularizationMethod
	NeighborSearch        NearestNeighborMethod
	MaxIterations         int
	RotationEpsilon       float64
	TransformationEpsilon float64

	core *Core
}

func NewRegistration() *Registration {
	return &Registration{
		KCorrespondences:      20,
		Resolution:            1.0,
		Regularization:        RegularizationMinEig,
		NeighborSearch:        NearestNeighborKDTree,
		MaxIterations:         64,
		RotationEpsilon:       2e-3,
		TransformationEpsilon: 5e-4,
		core:                  NewCore(),
	}
}

// Core exposes the underlying engine for diagnostics.
func (r *Registration) Core() *Core {
	return r.core
}

// SetInputSource sets the source cloud and computes its neighbor table and
// covariances.
func (r *Registration) SetInputSource(cloud pc.Vec3RandomAccessor) error {
	r.core.SetResolution(r.Resolution)
	r.core.SetSourceCloud(cloud)
	switch r.NeighborSearch {
	case NearestNeighborBruteForce:
		if err := r.core.FindSourceNeighbors(r.KCorrespondences); err != nil {
			return err
		}
	default:
		nb, err := knn.KDTree{}.Search(cloud, r.KCorrespondences)
		if err != nil {
			return err
		}
		if err := r.core.SetSourceNeighbors(r.KCorrespondences, nb); err != nil {
			return err
		}
	}
	return r.core.CalculateSourceCovariances(r.Regularization)
}

// SetInputTarget sets the target cloud, computes its neighbor table and
// covariances, and builds the voxel map.
func (r *Registration) SetInputTarget(cloud pc.Vec3RandomAccessor) error {
	r.core.SetResolution(r.Resolution)
	r.core.SetTargetCloud(cloud)
	switch r.NeighborSearch {
	case NearestNeighborBruteForce:
		if err := r.core.FindTargetNeighbors(r.KCorrespondences); err != nil {
			return err
		}
	default:
		nb, err := knn.KDTree{}.Search(cloud, r.KCorrespondences)
		if err != nil {
			return err
		}
		if err := r.core.SetTargetNeighbors(r.KCorrespondences, nb); err != nil {
			return err
		}
	}
	if err := r.core.CalculateTargetCovariances(r.Regularization); err != nil {
		return err
	}
	return r.core.CreateTargetVoxelMap()
}

// SwapSourceAndTarget exchanges the clouds held by the core for
// bidirectional registration without recomputing buffers.
func (r *Registration) SwapSourceAndTarget() error {
	return r.core.SwapSourceAndTarget()
}

// Result is the outcome of Align.
type Result struct {
	Transform  mat.Mat4
	Error      float64
	Iterations int
	Converged  bool
	Inliers    int
}

// Align refines guess by Gauss-Newton iterations: per iteration the
// correspondences are recomputed at the current estimate, the normal
// equations H*delta = -b are solved, and the step is retracted onto the
// transform. Convergence is declared when both the rotation and the
// translation components of the step fall under the epsilons.
func (r *Registration) Align(guess mat.Mat4) (*Result, error) {
	x := guess
	res := &Result{Transform: x}
	for iter := 0; iter < r.MaxIterations; iter++ {
		if err := r.core.UpdateCorrespondences(x); err != nil {
			return nil, err
		}
		ev, err := r.core.ComputeError(x)
		if err != nil {
			return nil, err
		}
		delta, err := solveDelta(ev.H, ev.B)
		if err != nil {
			return nil, err
		}
		x = deltaTransform(delta).Mul(x)

		res.Transform = x
		res.Error = ev.Error
		res.Inliers = ev.Inliers
		res.Iterations = iter + 1
		if maxAbs(delta[0], delta[1], delta[2]) < r.RotationEpsilon &&
			maxAbs(delta[3], delta[4], delta[5]) < r.TransformationEpsilon {
			res.Converged = true
			break
		}
	}
	return res, nil
}

// solveDelta solves H*delta = -b, retrying with increasing diagonal damping
// when H is not positive definite (too few correspondences or flat
// geometry).
func solveDelta(h *gmat.SymDense, b *gmat.VecDense) ([6]float64, error) {
	nb := gmat.NewVecDense(6, nil)
	nb.ScaleVec(-1, b)
	var delta [6]float64
	damping := 0.0
	for attempt := 0; attempt < 8; attempt++ {
		hd := h
		if damping > 0 {
			d := gmat.NewSymDense(6, nil)
			d.CopySym(h)
			for i := 0; i < 6; i++ {
				d.SetSym(i, i, d.At(i, i)+damping)
			}
			hd = d
		}
		var chol gmat.Cholesky
		if chol.Factorize(hd) {
			var x gmat.VecDense
			if err := chol.SolveVecTo(&x, nb); err == nil {
				for i := range delta {
					delta[i] = x.AtVec(i)
				}
				return delta, nil
			}
		}
		if damping == 0 {
			damping = 1e-6
		} else {
			damping *= 10
		}
	}
	return delta, errors.New("normal equations are singular")
}

// deltaTransform builds the rigid transform [exp(w) | t] of a tangent-space
// step (w, t).
func deltaTransform(d [6]float64) mat.Mat4 {
	t := mat.Translate(float32(d[3]), float32(d[4]), float32(d[5]))
	theta := math.Sqrt(d[0]*d[0] + d[1]*d[1] + d[2]*d[2])
	if theta < 1e-12 {
		return t
	}
	rot := mat.Rotate(
		float32(d[0]/theta), float32(d[1]/theta), float32(d[2]/theta),
		float32(theta),
	)
	return t.Mul(rot)
}

func maxAbs(vs ...float64) float64 {
	var m float64
	for _, v := range vs {
		if v < 0 {
			v = -v
		}
		if v > m {
			m = v
		}
	}
	return m
}
