// Package tasks is the fork-join pool that runs per-chunk work items.
package tasks

import (
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Pool runs independent work items on a fixed number of workers. Each call
// to Scope is a hard barrier: it returns only after every item completed.
type Pool struct {
	workers int
}

// NewPool sizes the pool; workers <= 0 uses GOMAXPROCS.
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Pool{workers: workers}
}

func (p *Pool) Workers() int { return p.workers }

// Scope calls fn(worker, i) for every i in [0, n). Items have no ordering
// guarantee. worker is in [0, Workers()) and no two concurrent calls share a
// worker index, so per-worker state needs no locking. A panic in any item is
// re-raised on the caller after the join.
func (p *Pool) Scope(n int, fn func(worker, i int)) {
	if n <= 0 {
		return
	}
	workers := p.workers
	if workers > n {
		workers = n
	}

	var (
		next    atomic.Int64
		stopped atomic.Bool
		g       errgroup.Group
	)
	for w := 0; w < workers; w++ {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					stopped.Store(true)
					err = workerPanic{val: r}
				}
			}()
			for !stopped.Load() {
				i := int(next.Add(1) - 1)
				if i >= n {
					return nil
				}
				fn(w, i)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		var wp workerPanic
		if errors.As(err, &wp) {
			if inner, ok := wp.val.(error); ok {
				panic(fmt.Errorf("tasks: worker panic: %w", inner))
			}
			panic(fmt.Sprintf("tasks: worker panic: %v", wp.val))
		}
		panic(err)
	}
}

// workerPanic carries a recovered panic value through the group's error.
type workerPanic struct{ val any }

func (p workerPanic) Error() string { return fmt.Sprint(p.val) }

// Map runs fn for every item and collects results by index.
func Map[T any](p *Pool, n int, fn func(worker, i int) T) []T {
	out := make([]T, n)
	p.Scope(n, func(worker, i int) {
		out[i] = fn(worker, i)
	})
	return out
}
