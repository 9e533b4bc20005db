package vgicp

import (
	"errors"
)

// Precondition violations. Operations fail fast with these instead of
// silently producing stale numbers when called out of the dependency order
// of the pipeline.
var (
	ErrNoPoints          = errors.New("point cloud is not set")
	ErrNeighborSize      = errors.New("neighbor table length must be k * number of points")
	ErrNoNeighbors       = errors.New("neighbors are not set")
	ErrNoCovariances     = errors.New("covariances are not calculated")
	ErrNoVoxelMap        = errors.New("target voxel map is not created")
	ErrNoCorrespondences = errors.New("correspondences are not updated")
)
