package vgicp

import (
	"testing"

	"github.com/seqsense/pcgol/mat"
	"github.com/seqsense/pcgol/pc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seqsense/vgicp/knn"
	"github.com/seqsense/vgicp/mat3"
)

func TestRegularize(t *testing.T) {
	// Diagonal input keeps the eigenvectors axis-aligned, so the expected
	// output is a plain diagonal matrix.
	c := mat3.Mat{
		1, 0, 0,
		0, 1e-6, 0,
		0, 0, 4,
	}

	t.Run("None", func(t *testing.T) {
		out, err := regularize(c, RegularizationNone)
		require.NoError(t, err)
		assert.Equal(t, c, out)
	})
	t.Run("Plane", func(t *testing.T) {
		out, err := regularize(c, RegularizationPlane)
		require.NoError(t, err)
		assert.InDelta(t, 1, out[0], 1e-5)
		assert.InDelta(t, 1e-3, out[4], 1e-6)
		assert.InDelta(t, 1, out[8], 1e-5)
		assert.InDelta(t, 1e-3, out.Det(), 1e-5)
	})
	t.Run("MinEig", func(t *testing.T) {
		out, err := regularize(c, RegularizationMinEig)
		require.NoError(t, err)
		assert.InDelta(t, 1, out[0], 1e-5)
		assert.InDelta(t, 4e-3, out[4], 1e-6, "small eigenvalues are floored relative to the largest")
		assert.InDelta(t, 4, out[8], 1e-5)
	})
	t.Run("NormalizedMinEig", func(t *testing.T) {
		out, err := regularize(c, RegularizationNormalizedMinEig)
		require.NoError(t, err)
		assert.InDelta(t, 0.25, out[0], 1e-5)
		assert.InDelta(t, 1e-3, out[4], 1e-6)
		assert.InDelta(t, 1, out[8], 1e-5)
	})
}

func TestRegularize_zero(t *testing.T) {
	out, err := regularize(mat3.Mat{}, RegularizationMinEig)
	require.NoError(t, err)
	for i := 0; i < 9; i += 4 {
		assert.InDelta(t, 1e-9, out[i], 1e-12, "zero covariance gets the absolute floor")
	}
}

func TestCovarianceEstimation(t *testing.T) {
	cloud := latticeCloud(4, 1.0, 0)
	const k = 8
	nb, err := knn.BruteForce{}.Search(cloud, k)
	require.NoError(t, err)

	covs, err := covarianceEstimation(cloud, k, nb, RegularizationMinEig)
	require.NoError(t, err)
	require.Len(t, covs, cloud.Len())
	for _, c := range covs {
		ct := c.Transpose()
		for i := range c {
			assert.InDelta(t, ct[i], c[i], 1e-6)
		}
		_, ok := c.Inv()
		assert.True(t, ok, "regularized covariances must be invertible")
	}
}

func TestCovarianceEstimation_degenerate(t *testing.T) {
	// Collinear points: the raw sample covariance is rank one.
	cloud := make(pc.Vec3Slice, 12)
	for i := range cloud {
		cloud[i] = mat.Vec3{float32(i), 0, 0}
	}
	const k = 4
	nb, err := knn.BruteForce{}.Search(cloud, k)
	require.NoError(t, err)

	raw, err := covarianceEstimation(cloud, k, nb, RegularizationNone)
	require.NoError(t, err)
	_, ok := raw[0].Inv()
	assert.False(t, ok)

	for _, method := range []RegularizationMethod{
		RegularizationPlane,
		RegularizationMinEig,
		RegularizationNormalizedMinEig,
	} {
		covs, err := covarianceEstimation(cloud, k, nb, method)
		require.NoError(t, err)
		for _, c := range covs {
			_, ok := c.Inv()
			assert.True(t, ok)
		}
	}
}

func TestCovarianceEstimation_badTable(t *testing.T) {
	cloud := latticeCloud(2, 1.0, 0)
	_, err := covarianceEstimation(cloud, 0, nil, RegularizationMinEig)
	assert.ErrorIs(t, err, ErrNeighborSize)
	_, err = covarianceEstimation(cloud, 3, make([]int, 7), RegularizationMinEig)
	assert.ErrorIs(t, err, ErrNeighborSize)
}
