// Package voxelmap implements the sparse spatial hash grid of Gaussian
// distributions used as the target model of voxelized GICP. Each occupied
// cell aggregates the mean and covariance of the target points falling
// into it.
package voxelmap

import (
	"errors"

	"github.com/seqsense/pcgol/mat"
	"github.com/seqsense/pcgol/pc"

	"github.com/seqsense/vgicp/internal/parallel"
	"github.com/seqsense/vgicp/mat3"
)

var (
	ErrNoPoint            = errors.New("no point")
	ErrCovarianceMismatch = errors.New("covariance count differs from point count")
	ErrInvalidResolution  = errors.New("resolution must be positive")
)

// Coord is a quantized cell coordinate. Cells are keyed by the three
// integer coordinates directly, so keys never collide regardless of the
// cloud extent.
type Coord struct {
	X, Y, Z int32
}

// Voxel is the distribution aggregated from the points hashing to one cell.
type Voxel struct {
	Mean mat.Vec3
	Cov  mat3.Mat
	N    int
}

// Map is a spatial hash grid with a fixed cell edge length. It is built
// once over a target cloud and read-only afterwards; a changed cloud or
// resolution requires a full rebuild.
type Map struct {
	resolution    float32
	resolutionInv float32
	voxels        map[Coord]*Voxel
}

// Build constructs a map from the cloud and its per-point covariances.
// Every point contributes its position and covariance to the running sum of
// its cell; each cell is then normalized by its point count.
func Build(cloud pc.Vec3RandomAccessor, covs []mat3.Mat, resolution float32) (*Map, error) {
	n := cloud.Len()
	if n == 0 {
		return nil, ErrNoPoint
	}
	if len(covs) != n {
		return nil, ErrCovarianceMismatch
	}
	if resolution <= 0 {
		return nil, ErrInvalidResolution
	}
	m := &Map{
		resolution:    resolution,
		resolutionInv: 1 / resolution,
	}

	// Scatter-reduce into per-chunk partial maps, merged in chunk order so
	// that the per-cell accumulation order is deterministic.
	parts := make([]map[Coord]*Voxel, parallel.NumChunks(n))
	parallel.ForChunks(n, func(chunk, begin, end int) {
		part := make(map[Coord]*Voxel)
		for i := begin; i < end; i++ {
			p := cloud.Vec3At(i)
			v, ok := part[m.CoordOf(p)]
			if !ok {
				v = &Voxel{}
				part[m.CoordOf(p)] = v
			}
			v.Mean = v.Mean.Add(p)
			v.Cov = v.Cov.Add(covs[i])
			v.N++
		}
		parts[chunk] = part
	})

	voxels := make(map[Coord]*Voxel)
	for _, part := range parts {
		for c, pv := range part {
			v, ok := voxels[c]
			if !ok {
				voxels[c] = pv
				continue
			}
			v.Mean = v.Mean.Add(pv.Mean)
			v.Cov = v.Cov.Add(pv.Cov)
			v.N += pv.N
		}
	}
	for _, v := range voxels {
		inv := 1 / float32(v.N)
		v.Mean = v.Mean.Mul(inv)
		v.Cov = v.Cov.Scale(inv)
	}
	m.voxels = voxels
	return m, nil
}

// CoordOf returns the cell coordinate containing p.
func (m *Map) CoordOf(p mat.Vec3) Coord {
	return Coord{
		X: floorDiv(p[0] * m.resolutionInv),
		Y: floorDiv(p[1] * m.resolutionInv),
		Z: floorDiv(p[2] * m.resolutionInv),
	}
}

func floorDiv(a float32) int32 {
	i := int32(a)
	if a < 0 && float32(i) != a {
		i--
	}
	return i
}

// Lookup returns the voxel at c, or ok=false for an unoccupied cell.
func (m *Map) Lookup(c Coord) (*Voxel, bool) {
	v, ok := m.voxels[c]
	return v, ok
}

func (m *Map) Len() int {
	return len(m.voxels)
}

func (m *Map) Resolution() float32 {
	return m.resolution
}

// Each calls fn for every occupied cell. Iteration order is unspecified.
func (m *Map) Each(fn func(Coord, *Voxel)) {
	for c, v := range m.voxels {
		fn(c, v)
	}
}
