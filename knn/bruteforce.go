package knn

import (
	"github.com/seqsense/pcgol/pc"

	"github.com/seqsense/vgicp/internal/parallel"
)

// BruteForce computes all-pairs squared distances and keeps the k smallest
// per query point. O(N^2); meant for small clouds or as ground truth. Use
// KDTree otherwise.
type BruteForce struct{}

func (BruteForce) Search(cloud pc.Vec3RandomAccessor, k int) ([]int, error) {
	n := cloud.Len()
	if k <= 0 || k > n {
		return nil, ErrInvalidK
	}
	out := make([]int, n*k)
	parallel.ForChunks(n, func(_, begin, end int) {
		nb := make([]neighbor, n)
		for i := begin; i < end; i++ {
			p := cloud.Vec3At(i)
			for j := 0; j < n; j++ {
				nb[j] = neighbor{id: j, distSq: cloud.Vec3At(j).Sub(p).NormSq()}
			}
			sortNeighbors(nb)
			for j := 0; j < k; j++ {
				out[i*k+j] = nb[j].id
			}
		}
	})
	return out, nil
}
