package worker

import (
	"context"
	"runtime"
	"sync"
)

// Pool runs tasks on a bounded number of goroutines.
//
// Results are handed to a single handler goroutine (the caller of Run), one
// at a time, so the handler may mutate shared state without locking. The
// handler can return follow-up tasks, which are queued behind the ones
// already pending.
type Pool[T, R any] struct {
	concurrency int
	work        func(context.Context, T) R
}

// NewPool creates a pool. A concurrency of 0 or less means runtime.NumCPU().
func NewPool[T, R any](concurrency int, work func(context.Context, T) R) *Pool[T, R] {
	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
	}
	return &Pool[T, R]{
		concurrency: concurrency,
		work:        work,
	}
}

// Concurrency returns the number of workers.
func (p *Pool[T, R]) Concurrency() int {
	return p.concurrency
}

// Run processes seed and every follow-up task returned by handle until no
// work is left. If ctx is cancelled no new task is started, results of tasks
// already running are discarded, and ctx.Err() is returned once all workers
// have stopped.
func (p *Pool[T, R]) Run(ctx context.Context, seed []T, handle func(R) []T) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	jobs := make(chan T)
	results := make(chan R)

	var wg sync.WaitGroup
	for i := 0; i < p.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				results <- p.work(ctx, job)
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	queue := append([]T(nil), seed...)
	inflight := 0
	done := ctx.Done()
	var err error

	for len(queue) > 0 || inflight > 0 {
		var send chan<- T
		var next T
		if len(queue) > 0 {
			send = jobs
			next = queue[0]
		}

		select {
		case send <- next:
			queue = queue[1:]
			inflight++
		case res := <-results:
			inflight--
			if err == nil {
				queue = append(queue, handle(res)...)
			}
		case <-done:
			err = ctx.Err()
			queue = nil
			done = nil
		}
	}

	close(jobs)
	for range results {
	}

	return err
}
