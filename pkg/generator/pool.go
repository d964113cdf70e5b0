package generator

import (
	"context"
	"sync"
)

// pool runs submitted jobs on a fixed number of goroutines
type pool struct {
	jobs chan func()
	wg   sync.WaitGroup
}

func newPool(workers int) *pool {
	p := &pool{jobs: make(chan func(), workers)}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for job := range p.jobs {
				job()
			}
		}()
	}
	return p
}

// submit blocks until a worker is free or ctx is done
func (p *pool) submit(ctx context.Context, job func()) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case p.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// wait lets queued jobs finish and stops the workers
func (p *pool) wait() {
	close(p.jobs)
	p.wg.Wait()
}
