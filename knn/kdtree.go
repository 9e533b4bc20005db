package knn

import (
	"github.com/seqsense/pcgol/mat"
	"github.com/seqsense/pcgol/pc"
	"gonum.org/v1/gonum/spatial/kdtree"

	"github.com/seqsense/vgicp/internal/parallel"
)

// KDTree builds a balanced kd-tree over the cloud and queries it for each
// point independently on all available CPUs. This is the default backend.
type KDTree struct{}

func (KDTree) Search(cloud pc.Vec3RandomAccessor, k int) ([]int, error) {
	n := cloud.Len()
	if k <= 0 || k > n {
		return nil, ErrInvalidK
	}
	pts := make(treePoints, n)
	for i := 0; i < n; i++ {
		pts[i] = treePoint{p: cloud.Vec3At(i), id: i}
	}
	t := kdtree.New(pts, false)

	out := make([]int, n*k)
	parallel.ForChunks(n, func(_, begin, end int) {
		nb := make([]neighbor, 0, k)
		for i := begin; i < end; i++ {
			keep := kdtree.NewNKeeper(k)
			t.NearestSet(keep, treePoint{p: cloud.Vec3At(i), id: i})
			nb = nb[:0]
			for _, cd := range keep.Heap {
				if cd.Comparable == nil {
					continue
				}
				nb = append(nb, neighbor{
					id:     cd.Comparable.(treePoint).id,
					distSq: float32(cd.Dist),
				})
			}
			sortNeighbors(nb)
			for j, b := range nb {
				out[i*k+j] = b.id
			}
		}
	})
	return out, nil
}

type treePoint struct {
	p  mat.Vec3
	id int
}

func (p treePoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(treePoint)
	return float64(p.p[d] - q.p[d])
}

func (p treePoint) Dims() int { return 3 }

func (p treePoint) Distance(c kdtree.Comparable) float64 {
	q := c.(treePoint)
	return float64(p.p.Sub(q.p).NormSq())
}

type treePoints []treePoint

func (p treePoints) Index(i int) kdtree.Comparable         { return p[i] }
func (p treePoints) Len() int                              { return len(p) }
func (p treePoints) Pivot(d kdtree.Dim) int                { return treePlane{treePoints: p, Dim: d}.Pivot() }
func (p treePoints) Slice(start, end int) kdtree.Interface { return p[start:end] }

type treePlane struct {
	kdtree.Dim
	treePoints
}

func (p treePlane) Less(i, j int) bool { return p.treePoints[i].p[p.Dim] < p.treePoints[j].p[p.Dim] }
func (p treePlane) Pivot() int         { return kdtree.Partition(p, kdtree.MedianOfMedians(p)) }
func (p treePlane) Slice(start, end int) kdtree.SortSlicer {
	p.treePoints = p.treePoints[start:end]
	return p
}
func (p treePlane) Swap(i, j int) {
	p.treePoints[i], p.treePoints[j] = p.treePoints[j], p.treePoints[i]
}
