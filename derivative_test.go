package vgicp

import (
	"math"
	"testing"

	"github.com/seqsense/pcgol/mat"
	"github.com/seqsense/pcgol/pc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupCore(t *testing.T, source, target pc.Vec3Slice, k int) *Core {
	t.Helper()
	c := NewCore()
	c.SetTargetCloud(target)
	require.NoError(t, c.FindTargetNeighbors(k))
	require.NoError(t, c.CalculateTargetCovariances(RegularizationMinEig))
	require.NoError(t, c.CreateTargetVoxelMap())
	c.SetSourceCloud(source)
	require.NoError(t, c.FindSourceNeighbors(k))
	require.NoError(t, c.CalculateSourceCovariances(RegularizationMinEig))
	return c
}

func evalAt(t *testing.T, c *Core, trans mat.Mat4) *Evaluation {
	t.Helper()
	require.NoError(t, c.UpdateCorrespondences(trans))
	ev, err := c.ComputeError(trans)
	require.NoError(t, err)
	return ev
}

func TestComputeError_perfectAlignment(t *testing.T) {
	// One point per voxel, source identical to target: every residual is
	// exactly zero at identity.
	cloud := latticeCloud(5, 1.0, 0.5)
	c := setupCore(t, cloud, cloud, 10)

	ev := evalAt(t, c, mat.Translate(0, 0, 0))
	assert.Equal(t, cloud.Len(), ev.Inliers)
	assert.InDelta(t, 0, ev.Error, 1e-9)
	for i := 0; i < 6; i++ {
		assert.InDelta(t, 0, ev.B.AtVec(i), 1e-6)
	}
	for i := 0; i < 6; i++ {
		assert.Greater(t, ev.H.At(i, i), 0.0, "Hessian diagonal must be positive")
	}
}

func TestComputeError_ordering(t *testing.T) {
	target := latticeCloud(6, 1.0, 0.5)
	misalign := mat.Translate(0.1, 0, 0).Mul(mat.Rotate(0, 0, 1, 5*math.Pi/180))
	source := transformCloud(target, misalign)
	c := setupCore(t, source, target, 10)

	aligned := mat.Rotate(0, 0, 1, -5*math.Pi/180).Mul(mat.Translate(-0.1, 0, 0))
	evAligned := evalAt(t, c, aligned)
	evIdentity := evalAt(t, c, mat.Translate(0, 0, 0))

	assert.Equal(t, target.Len(), evAligned.Inliers)
	assert.Less(t, evAligned.Error, 1e-3)
	assert.Greater(t, evIdentity.Error, evAligned.Error)
	for i := 0; i < 6; i++ {
		assert.InDelta(t, 0, evAligned.B.AtVec(i), 0.05,
			"gradient must vanish at the aligning transform")
	}
}

func TestComputeError_symmetricHessian(t *testing.T) {
	target := latticeCloud(4, 1.0, 0.5)
	source := transformCloud(target, mat.Translate(0.2, -0.1, 0.05))
	c := setupCore(t, source, target, 8)

	ev := evalAt(t, c, mat.Translate(0, 0, 0))
	for r := 0; r < 6; r++ {
		for cl := 0; cl < 6; cl++ {
			assert.Equal(t, ev.H.At(r, cl), ev.H.At(cl, r))
		}
	}
}
