package knn

import (
	"math/rand"
	"testing"

	"github.com/seqsense/pcgol/mat"
	"github.com/seqsense/pcgol/pc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomCloud(n int, seed int64) pc.Vec3Slice {
	rnd := rand.New(rand.NewSource(seed))
	out := make(pc.Vec3Slice, n)
	for i := range out {
		out[i] = mat.Vec3{
			rnd.Float32() * 10,
			rnd.Float32() * 10,
			rnd.Float32() * 10,
		}
	}
	return out
}

func TestSearch(t *testing.T) {
	cloud := randomCloud(200, 1)
	const k = 8

	for name, s := range map[string]Search{
		"BruteForce": BruteForce{},
		"KDTree":     KDTree{},
	} {
		t.Run(name, func(t *testing.T) {
			nb, err := s.Search(cloud, k)
			require.NoError(t, err)
			require.Len(t, nb, k*cloud.Len())

			for i := 0; i < cloud.Len(); i++ {
				row := nb[i*k : i*k+k]
				assert.Equal(t, i, row[0], "a point must be its own nearest neighbor")

				p := cloud.Vec3At(i)
				prev := float32(-1)
				for _, j := range row {
					d := cloud.Vec3At(j).Sub(p).NormSq()
					assert.GreaterOrEqual(t, d, prev, "neighbors must be sorted by distance")
					prev = d
				}
			}
		})
	}
}

func TestSearch_backendsAgree(t *testing.T) {
	// Random coordinates make pairwise distances unique, so both backends
	// must return identical tables.
	cloud := randomCloud(150, 2)
	const k = 10

	bf, err := BruteForce{}.Search(cloud, k)
	require.NoError(t, err)
	kd, err := KDTree{}.Search(cloud, k)
	require.NoError(t, err)
	assert.Equal(t, bf, kd)
}

func TestSearch_invalidK(t *testing.T) {
	cloud := randomCloud(10, 3)
	for _, s := range []Search{BruteForce{}, KDTree{}} {
		_, err := s.Search(cloud, 0)
		assert.ErrorIs(t, err, ErrInvalidK)
		_, err = s.Search(cloud, 11)
		assert.ErrorIs(t, err, ErrInvalidK)
	}
	nb, err := BruteForce{}.Search(cloud, 10)
	assert.NoError(t, err)
	assert.Len(t, nb, 100)
}
