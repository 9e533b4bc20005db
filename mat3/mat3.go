// Package mat3 provides 3x3 single precision matrix arithmetic used for
// per-point covariances. It complements the Vec3/Mat4 types of
// github.com/seqsense/pcgol/mat.
package mat3

import (
	"github.com/seqsense/pcgol/mat"
)

// Mat is a 3x3 matrix stored in row-major order.
type Mat [9]float32

func Identity() Mat {
	return Mat{
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
	}
}

// Outer returns the outer product a*b'.
func Outer(a, b mat.Vec3) Mat {
	return Mat{
		a[0] * b[0], a[0] * b[1], a[0] * b[2],
		a[1] * b[0], a[1] * b[1], a[1] * b[2],
		a[2] * b[0], a[2] * b[1], a[2] * b[2],
	}
}

// Skew returns the skew-symmetric matrix S with S*b == v x b.
func Skew(v mat.Vec3) Mat {
	return Mat{
		0, -v[2], v[1],
		v[2], 0, -v[0],
		-v[1], v[0], 0,
	}
}

// RotationOf extracts the rotation block of a column-major affine Mat4.
func RotationOf(a mat.Mat4) Mat {
	return Mat{
		a[4*0+0], a[4*1+0], a[4*2+0],
		a[4*0+1], a[4*1+1], a[4*2+1],
		a[4*0+2], a[4*1+2], a[4*2+2],
	}
}

func (m Mat) Add(a Mat) Mat {
	var out Mat
	for i := range m {
		out[i] = m[i] + a[i]
	}
	return out
}

func (m Mat) Sub(a Mat) Mat {
	var out Mat
	for i := range m {
		out[i] = m[i] - a[i]
	}
	return out
}

func (m Mat) Scale(a float32) Mat {
	var out Mat
	for i := range m {
		out[i] = m[i] * a
	}
	return out
}

func (m Mat) Mul(a Mat) Mat {
	var out Mat
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			out[r*3+c] = m[r*3+0]*a[0*3+c] + m[r*3+1]*a[1*3+c] + m[r*3+2]*a[2*3+c]
		}
	}
	return out
}

func (m Mat) Transpose() Mat {
	return Mat{
		m[0], m[3], m[6],
		m[1], m[4], m[7],
		m[2], m[5], m[8],
	}
}

func (m Mat) Transform(v mat.Vec3) mat.Vec3 {
	return mat.Vec3{
		m[0]*v[0] + m[1]*v[1] + m[2]*v[2],
		m[3]*v[0] + m[4]*v[1] + m[5]*v[2],
		m[6]*v[0] + m[7]*v[1] + m[8]*v[2],
	}
}

func (m Mat) Trace() float32 {
	return m[0] + m[4] + m[8]
}

func (m Mat) Det() float32 {
	return m[0]*(m[4]*m[8]-m[5]*m[7]) -
		m[1]*(m[3]*m[8]-m[5]*m[6]) +
		m[2]*(m[3]*m[7]-m[4]*m[6])
}

const detEpsilon = 1e-12

// Inv returns the inverse by the adjugate. ok is false when the matrix is
// numerically singular.
func (m Mat) Inv() (Mat, bool) {
	d := m.Det()
	if -detEpsilon < d && d < detEpsilon {
		return Mat{}, false
	}
	id := 1 / d
	return Mat{
		(m[4]*m[8] - m[5]*m[7]) * id,
		(m[2]*m[7] - m[1]*m[8]) * id,
		(m[1]*m[5] - m[2]*m[4]) * id,
		(m[5]*m[6] - m[3]*m[8]) * id,
		(m[0]*m[8] - m[2]*m[6]) * id,
		(m[2]*m[3] - m[0]*m[5]) * id,
		(m[3]*m[7] - m[4]*m[6]) * id,
		(m[1]*m[6] - m[0]*m[7]) * id,
		(m[0]*m[4] - m[1]*m[3]) * id,
	}, true
}
