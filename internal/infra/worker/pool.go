// File: internal/infra/worker/pool.go
package worker

import (
	"context"
	"errors"
	"runtime"
	"sync"
)

// Task is one unit of work; the pool passes it the pool's root context.
type Task func(ctx context.Context) error

// Pool runs submitted tasks on a fixed number of goroutines. Part transfers
// of chunked uploads go through it so parallelism stays capped no matter how
// many parts a file splits into.
type Pool struct {
	wg    sync.WaitGroup
	jobs  chan Task
	quit  chan struct{}
	n     int
	onErr func(error)
}

func NewPool(workers int, onErr func(error)) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Pool{jobs: make(chan Task, workers*4), quit: make(chan struct{}), n: workers, onErr: onErr}
}

func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.n; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case <-p.quit:
					return
				case task := <-p.jobs:
					if task == nil {
						continue
					}
					if err := task(ctx); err != nil && p.onErr != nil {
						p.onErr(err)
					}
				}
			}
		}()
	}
}

func (p *Pool) Stop() {
	close(p.quit)
	p.wg.Wait()
}

// Submit blocks until a worker frees a queue slot or ctx is done. Blocking
// is what keeps an upload from queueing hundreds of parts at once.
func (p *Pool) Submit(ctx context.Context, task Task) error {
	if task == nil {
		return errors.New("nil task")
	}
	select {
	case p.jobs <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.quit:
		return errors.New("pool stopped")
	}
}
