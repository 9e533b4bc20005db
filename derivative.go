package vgicp

import (
	"github.com/seqsense/pcgol/mat"
	gmat "gonum.org/v1/gonum/mat"

	"github.com/seqsense/vgicp/internal/parallel"
	"github.com/seqsense/vgicp/mat3"
)

// Evaluation is the linearized cost at one trial transform: the summed
// Mahalanobis error and the normal equation terms over the 6-dimensional
// tangent space of SE(3). Component order is rotation x, y, z, then
// translation x, y, z.
type Evaluation struct {
	Error   float64
	H       *gmat.SymDense // 6x6
	B       *gmat.VecDense // 6
	Inliers int
}

type derivPartial struct {
	err     float64
	h       [6][6]float64
	b       [6]float64
	inliers int
}

// ComputeError evaluates the cost, gradient and Hessian of the voxelized
// GICP objective at trans. For each source point with a valid
// correspondence to a voxel (mean mu, covariance St), the residual is
// e = mu - T*p with combined covariance C = St + R*Ss*R' and cost e'C^-1 e.
// The Jacobian is taken at the linearization point recorded by the last
// UpdateCorrespondences. Points without a correspondence are skipped.
//
// The caller must keep the correspondence table consistent with the
// transform being evaluated; a stale table yields a valid but off-model
// quadratic approximation, not an error.
func (c *Core) ComputeError(trans mat.Mat4) (*Evaluation, error) {
	if len(c.source) == 0 {
		return nil, ErrNoPoints
	}
	if c.sourceCovs == nil {
		return nil, ErrNoCovariances
	}
	if !c.hasCorrs {
		return nil, ErrNoCorrespondences
	}

	evalR := mat3.RotationOf(trans)
	evalRT := evalR.Transpose()

	n := len(c.source)
	parts := make([]derivPartial, parallel.NumChunks(n))
	parallel.ForChunks(n, func(chunk, begin, end int) {
		part := &parts[chunk]
		for i := begin; i < end; i++ {
			voxel := c.corrs[i].Voxel
			if voxel == nil {
				continue
			}
			p := c.source[i]
			e := voxel.Mean.Sub(trans.TransformAffine(p))
			cc := voxel.Cov.Add(evalR.Mul(c.sourceCovs[i]).Mul(evalRT))
			ci, ok := cc.Inv()
			if !ok {
				// Degenerate voxel distribution; absorbed like a miss.
				continue
			}

			// J = [skew(T_lin*p), -I]
			s := mat3.Skew(c.linearized.TransformAffine(p))
			a := s.Transpose().Mul(ci) // S' C^-1
			h00 := a.Mul(s)
			h01 := a.Scale(-1)
			ie := ci.Transform(e)
			bRot := a.Transform(e)

			part.err += float64(e.Dot(ie))
			part.inliers++
			for r := 0; r < 3; r++ {
				for cl := 0; cl < 3; cl++ {
					part.h[r][cl] += float64(h00[r*3+cl])
					part.h[r][cl+3] += float64(h01[r*3+cl])
					part.h[r+3][cl] += float64(h01[cl*3+r])
					part.h[r+3][cl+3] += float64(ci[r*3+cl])
				}
				part.b[r] += float64(bRot[r])
				part.b[r+3] -= float64(ie[r])
			}
		}
	})

	ev := &Evaluation{
		H: gmat.NewSymDense(6, nil),
		B: gmat.NewVecDense(6, nil),
	}
	var h [6][6]float64
	var b [6]float64
	for i := range parts {
		part := &parts[i]
		ev.Error += part.err
		ev.Inliers += part.inliers
		for r := 0; r < 6; r++ {
			for cl := 0; cl < 6; cl++ {
				h[r][cl] += part.h[r][cl]
			}
			b[r] += part.b[r]
		}
	}
	for r := 0; r < 6; r++ {
		for cl := r; cl < 6; cl++ {
			ev.H.SetSym(r, cl, 0.5*(h[r][cl]+h[cl][r]))
		}
		ev.B.SetVec(r, b[r])
	}
	return ev, nil
}
