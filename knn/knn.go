// Package knn finds the k nearest neighbors of every point of a cloud
// within the same cloud. Two interchangeable backends are provided: a
// balanced kd-tree queried in parallel per point, and an all-pairs brute
// force search.
package knn

import (
	"errors"
	"sort"

	"github.com/seqsense/pcgol/pc"
)

// ErrInvalidK is returned when k is not in [1, cloud.Len()].
var ErrInvalidK = errors.New("k must be within the number of points")

// Search computes the neighbor table of cloud. The result has length
// k*cloud.Len(); slot [i*k, i*k+k) holds the indices of the k nearest
// neighbors of point i, sorted by ascending distance with ties broken by
// index. Every point is its own nearest neighbor.
type Search interface {
	Search(cloud pc.Vec3RandomAccessor, k int) ([]int, error)
}

type neighbor struct {
	id     int
	distSq float32
}

func sortNeighbors(nb []neighbor) {
	sort.Slice(nb, func(i, j int) bool {
		if nb[i].distSq != nb[j].distSq {
			return nb[i].distSq < nb[j].distSq
		}
		return nb[i].id < nb[j].id
	})
}
