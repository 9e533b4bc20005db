package vgicp

import (
	"github.com/seqsense/pcgol/mat"
	"github.com/seqsense/pcgol/pc"
)

// latticeCloud returns an n^3 cubic lattice. With offset 0.5*spacing and a
// voxel resolution equal to spacing, every point sits at a cell center and
// each occupied voxel holds exactly one point.
func latticeCloud(n int, spacing, offset float32) pc.Vec3Slice {
	out := make(pc.Vec3Slice, 0, n*n*n)
	for x := 0; x < n; x++ {
		for y := 0; y < n; y++ {
			for z := 0; z < n; z++ {
				out = append(out, mat.Vec3{
					float32(x)*spacing + offset,
					float32(y)*spacing + offset,
					float32(z)*spacing + offset,
				})
			}
		}
	}
	return out
}

func transformCloud(cloud pc.Vec3Slice, trans mat.Mat4) pc.Vec3Slice {
	out := make(pc.Vec3Slice, len(cloud))
	for i, p := range cloud {
		out[i] = trans.TransformAffine(p)
	}
	return out
}
