package parallel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestForChunks(t *testing.T) {
	const n = 1000
	visited := make([]int, n)
	chunks := make([]bool, NumChunks(n))
	ForChunks(n, func(chunk, begin, end int) {
		assert.Less(t, chunk, NumChunks(n))
		chunks[chunk] = true
		for i := begin; i < end; i++ {
			visited[i]++
		}
	})
	for i, v := range visited {
		if v != 1 {
			t.Fatalf("index %d visited %d times", i, v)
		}
	}
	for c, ok := range chunks {
		if !ok {
			t.Fatalf("chunk %d not executed", c)
		}
	}
}

func TestForChunks_small(t *testing.T) {
	var calls int
	ForChunks(1, func(chunk, begin, end int) {
		calls++
		assert.Equal(t, 0, chunk)
		assert.Equal(t, 0, begin)
		assert.Equal(t, 1, end)
	})
	assert.Equal(t, 1, calls)

	ForChunks(0, func(chunk, begin, end int) {
		t.Fatal("fn must not be called for n=0")
	})
}
