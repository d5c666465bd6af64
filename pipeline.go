package ligament

import "golang.org/x/sync/errgroup"

// parallelFor splits [0, n) in one contiguous chunk per worker and returns
// once every chunk is done
func parallelFor(workersCount, n int, fn func(start, end int)) {
	_ = parallelForErr(workersCount, n, func(start, end int) error {
		fn(start, end)
		return nil
	})
}

// parallelForErr is parallelFor for chunks that can fail; the first error is returned
func parallelForErr(workersCount, n int, fn func(start, end int) error) error {
	if n <= 0 {
		return nil
	}

	workersCount = max(1, min(workersCount, n))
	if workersCount == 1 {
		return fn(0, n)
	}

	chunkSize := (n + workersCount - 1) / workersCount

	var g errgroup.Group
	g.SetLimit(workersCount)
	for start := 0; start < n; start += chunkSize {
		end := min(start+chunkSize, n)
		g.Go(func() error {
			return fn(start, end)
		})
	}

	return g.Wait()
}

func task[T any](workersCount int, data []T, fn func(data T)) {
	parallelFor(workersCount, len(data), func(start, end int) {
		for i := start; i < end; i++ {
			fn(data[i])
		}
	})
}
