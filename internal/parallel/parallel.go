// Package parallel runs per-point loops over contiguous index chunks, one
// goroutine per chunk. Work items must be independent; only the per-chunk
// results may be merged afterwards, in chunk order, to keep reductions
// deterministic for a fixed GOMAXPROCS.
package parallel

import (
	"runtime"
	"sync"
)

// NumChunks returns the number of chunks ForChunks splits n items into.
func NumChunks(n int) int {
	if n <= 0 {
		return 0
	}
	w := runtime.GOMAXPROCS(0)
	if w > n {
		w = n
	}
	return w
}

// ForChunks splits [0, n) into NumChunks(n) contiguous chunks and calls
// fn(chunk, begin, end) concurrently. It returns after all chunks finished.
func ForChunks(n int, fn func(chunk, begin, end int)) {
	w := NumChunks(n)
	if w == 0 {
		return
	}
	if w == 1 {
		fn(0, 0, n)
		return
	}
	// Balanced split so that every chunk is non-empty for w <= n.
	var wg sync.WaitGroup
	for c := 0; c < w; c++ {
		begin, end := c*n/w, (c+1)*n/w
		wg.Add(1)
		go func(c, begin, end int) {
			defer wg.Done()
			fn(c, begin, end)
		}(c, begin, end)
	}
	wg.Wait()
}
