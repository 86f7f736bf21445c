package streamutil

import "sync"

// FanOut runs fn over items with at most concurrency goroutines in flight,
// collecting one result per item in input order. It mirrors the
// WaitGroup-plus-mutex fan-out the teacher uses for concurrent test
// harnesses, generalized into a reusable helper; the collection read path
// uses it for its chunked mutation fetch.
func FanOut[T, R any](items []T, concurrency int, fn func(T) R) []R {
	if concurrency <= 0 {
		concurrency = 1
	}

	results := make([]R, len(items))
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for i, item := range items {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, item T) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = fn(item)
		}(i, item)
	}

	wg.Wait()
	return results
}

// FanOutErr is FanOut for functions that can fail; the first error wins but
// every goroutine still runs to completion so partial results stay usable.
func FanOutErr[T, R any](items []T, concurrency int, fn func(T) (R, error)) ([]R, error) {
	if concurrency <= 0 {
		concurrency = 1
	}

	results := make([]R, len(items))
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for i, item := range items {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, item T) {
			defer wg.Done()
			defer func() { <-sem }()
			r, err := fn(item)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return
			}
			results[i] = r
		}(i, item)
	}

	wg.Wait()
	return results, firstErr
}
