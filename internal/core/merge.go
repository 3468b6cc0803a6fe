package core

import (
	"context"
	"sync"
)

// Merge fans several channels into one. The output closes once every input
// is drained or ctx is done.
func Merge[T any](ctx context.Context, channels ...<-chan T) <-chan T {
	var wg sync.WaitGroup

	wg.Add(len(channels))
	out := make(chan T)
	multiplex := func(c <-chan T) {
		defer wg.Done()
		for i := range c {
			select {
			case <-ctx.Done():
				return
			case out <- i:
			}
		}
	}

	for _, c := range channels {
		go multiplex(c)
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	return out
}
