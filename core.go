// Package vgicp implements rigid registration of 3D point clouds by
// voxelized Generalized ICP. Core owns the point buffers, neighbor tables,
// covariances, the target voxel map and the correspondence table, and
// evaluates the error/gradient/Hessian consumed by an outer optimizer.
// Registration wraps Core with the standard pipeline and a Gauss-Newton
// loop.
package vgicp

import (
	"github.com/seqsense/pcgol/mat"
	"github.com/seqsense/pcgol/pc"

	"github.com/seqsense/vgicp/knn"
	"github.com/seqsense/vgicp/mat3"
	"github.com/seqsense/vgicp/voxelmap"
)

// Core is the registration engine. All buffers are exclusively owned;
// setters replace them wholesale and never mutate in place. A Core is
// meant for single-goroutine iterative use by one optimizer loop and is
// not safe for concurrent use.
type Core struct {
	source, target           pc.Vec3Slice
	sourceK, targetK         int
	sourceNeighbors          []int
	targetNeighbors          []int
	sourceCovs, targetCovs   []mat3.Mat
	resolution               float32
	voxels                   *voxelmap.Map
	corrs                    []Correspondence
	hasCorrs                 bool
	linearized               mat.Mat4
}

func NewCore() *Core {
	return &Core{resolution: 1.0}
}

// SetResolution sets the voxel edge length. The target voxel map must be
// recreated for it to take effect.
func (c *Core) SetResolution(resolution float32) {
	c.resolution = resolution
}

// SetSourceCloud replaces the source point buffer and invalidates the
// source neighbor table, covariances and correspondences.
func (c *Core) SetSourceCloud(cloud pc.Vec3RandomAccessor) {
	c.source = copyCloud(cloud)
	c.sourceNeighbors, c.sourceCovs, c.sourceK = nil, nil, 0
	c.corrs, c.hasCorrs = nil, false
}

// SetTargetCloud replaces the target point buffer and invalidates the
// target neighbor table, covariances, voxel map and correspondences.
func (c *Core) SetTargetCloud(cloud pc.Vec3RandomAccessor) {
	c.target = copyCloud(cloud)
	c.targetNeighbors, c.targetCovs, c.targetK = nil, nil, 0
	c.voxels = nil
	c.corrs, c.hasCorrs = nil, false
}

func copyCloud(cloud pc.Vec3RandomAccessor) pc.Vec3Slice {
	out := make(pc.Vec3Slice, cloud.Len())
	for i := range out {
		out[i] = cloud.Vec3At(i)
	}
	return out
}

// SetSourceNeighbors sets a host-computed neighbor table for the source
// cloud. len(neighbors) must be k times the point count.
func (c *Core) SetSourceNeighbors(k int, neighbors []int) error {
	if len(c.source) == 0 {
		return ErrNoPoints
	}
	if k <= 0 || len(neighbors) != k*len(c.source) {
		return ErrNeighborSize
	}
	c.sourceNeighbors = append([]int(nil), neighbors...)
	c.sourceK = k
	return nil
}

// SetTargetNeighbors sets a host-computed neighbor table for the target
// cloud. len(neighbors) must be k times the point count.
func (c *Core) SetTargetNeighbors(k int, neighbors []int) error {
	if len(c.target) == 0 {
		return ErrNoPoints
	}
	if k <= 0 || len(neighbors) != k*len(c.target) {
		return ErrNeighborSize
	}
	c.targetNeighbors = append([]int(nil), neighbors...)
	c.targetK = k
	return nil
}

// FindSourceNeighbors computes the source neighbor table by brute force.
func (c *Core) FindSourceNeighbors(k int) error {
	if len(c.source) == 0 {
		return ErrNoPoints
	}
	nb, err := knn.BruteForce{}.Search(c.source, k)
	if err != nil {
		return err
	}
	c.sourceNeighbors, c.sourceK = nb, k
	return nil
}

// FindTargetNeighbors computes the target neighbor table by brute force.
func (c *Core) FindTargetNeighbors(k int) error {
	if len(c.target) == 0 {
		return ErrNoPoints
	}
	nb, err := knn.BruteForce{}.Search(c.target, k)
	if err != nil {
		return err
	}
	c.targetNeighbors, c.targetK = nb, k
	return nil
}

// CalculateSourceCovariances recomputes the source covariances from the
// neighbor table under the given regularization method.
func (c *Core) CalculateSourceCovariances(method RegularizationMethod) error {
	if len(c.source) == 0 {
		return ErrNoPoints
	}
	if c.sourceNeighbors == nil {
		return ErrNoNeighbors
	}
	covs, err := covarianceEstimation(c.source, c.sourceK, c.sourceNeighbors, method)
	if err != nil {
		return err
	}
	c.sourceCovs = covs
	return nil
}

// CalculateTargetCovariances recomputes the target covariances from the
// neighbor table under the given regularization method.
func (c *Core) CalculateTargetCovariances(method RegularizationMethod) error {
	if len(c.target) == 0 {
		return ErrNoPoints
	}
	if c.targetNeighbors == nil {
		return ErrNoNeighbors
	}
	covs, err := covarianceEstimation(c.target, c.targetK, c.targetNeighbors, method)
	if err != nil {
		return err
	}
	c.targetCovs = covs
	return nil
}

// CreateTargetVoxelMap (re)builds the distribution voxel map from the
// target cloud and covariances at the current resolution.
func (c *Core) CreateTargetVoxelMap() error {
	if len(c.target) == 0 {
		return ErrNoPoints
	}
	if c.targetCovs == nil {
		return ErrNoCovariances
	}
	m, err := voxelmap.Build(c.target, c.targetCovs, c.resolution)
	if err != nil {
		return err
	}
	c.voxels = m
	return nil
}

// SwapSourceAndTarget exchanges the point buffers, neighbor tables and
// covariances of source and target, then rebuilds the voxel map when the
// new target already has covariances. Correspondences are invalidated.
func (c *Core) SwapSourceAndTarget() error {
	c.source, c.target = c.target, c.source
	c.sourceK, c.targetK = c.targetK, c.sourceK
	c.sourceNeighbors, c.targetNeighbors = c.targetNeighbors, c.sourceNeighbors
	c.sourceCovs, c.targetCovs = c.targetCovs, c.sourceCovs
	c.voxels = nil
	c.corrs, c.hasCorrs = nil, false
	if len(c.target) != 0 && c.targetCovs != nil {
		return c.CreateTargetVoxelMap()
	}
	return nil
}

// SourceCloud returns a copy of the source point buffer.
func (c *Core) SourceCloud() pc.Vec3Slice {
	return append(pc.Vec3Slice(nil), c.source...)
}

// TargetCloud returns a copy of the target point buffer.
func (c *Core) TargetCloud() pc.Vec3Slice {
	return append(pc.Vec3Slice(nil), c.target...)
}

// SourceCovariances returns a copy of the source covariances.
func (c *Core) SourceCovariances() []mat3.Mat {
	return append([]mat3.Mat(nil), c.sourceCovs...)
}

// TargetCovariances returns a copy of the target covariances.
func (c *Core) TargetCovariances() []mat3.Mat {
	return append([]mat3.Mat(nil), c.targetCovs...)
}

// TargetVoxelMap returns the current voxel map, or nil before
// CreateTargetVoxelMap.
func (c *Core) TargetVoxelMap() *voxelmap.Map {
	return c.voxels
}

// Correspondences returns a copy of the correspondence table computed by
// the last UpdateCorrespondences.
func (c *Core) Correspondences() []Correspondence {
	return append([]Correspondence(nil), c.corrs...)
}

// LinearizationPoint returns the transform the current correspondence
// table was computed at.
func (c *Core) LinearizationPoint() mat.Mat4 {
	return c.linearized
}
