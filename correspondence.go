package vgicp

import (
	"github.com/seqsense/pcgol/mat"

	"github.com/seqsense/vgicp/internal/parallel"
	"github.com/seqsense/vgicp/voxelmap"
)

// Correspondence links one source point to the target voxel its transformed
// position falls into. Voxel is nil when the cell is unoccupied; such
// points contribute nothing to the cost.
type Correspondence struct {
	Coord voxelmap.Coord
	Voxel *voxelmap.Voxel
}

func (c Correspondence) Valid() bool {
	return c.Voxel != nil
}

// UpdateCorrespondences maps every source point through trans to its target
// voxel and records trans as the new linearization point. It must be called
// whenever the trial transform moves; ComputeError assumes the table is
// consistent with its linearization point.
func (c *Core) UpdateCorrespondences(trans mat.Mat4) error {
	if len(c.source) == 0 {
		return ErrNoPoints
	}
	if c.voxels == nil {
		return ErrNoVoxelMap
	}
	corrs := make([]Correspondence, len(c.source))
	parallel.ForChunks(len(c.source), func(_, begin, end int) {
		for i := begin; i < end; i++ {
			coord := c.voxels.CoordOf(trans.TransformAffine(c.source[i]))
			v, _ := c.voxels.Lookup(coord)
			corrs[i] = Correspondence{Coord: coord, Voxel: v}
		}
	})
	c.corrs = corrs
	c.hasCorrs = true
	c.linearized = trans
	return nil
}
