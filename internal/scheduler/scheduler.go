// Package scheduler abstracts the compute environment a dedup run executes
// under, collapsing what used to be a deep hierarchy of environment-specific
// settings classes into one tagged variant with a Scheduler interface the
// core depends on but never inspects the concrete type of.
package scheduler

import (
	"sync"

	"github.com/nearsift/nearsift/internal/constants"
)

// Environment tags the compute environment a Scheduler is sized for.
type Environment int

const (
	// Local is a single developer machine: modest concurrency.
	Local Environment = iota
	// Workstation is a dedicated multi-core machine: the default hashing
	// worker-pool size from the concurrency model.
	Workstation
	// Cluster is a large shared multi-node environment: highest default
	// concurrency, sized for the external job dispatcher to further shard
	// across nodes.
	Cluster
)

// DefaultConcurrency returns the per-variant default worker-pool size.
func (e Environment) DefaultConcurrency() int {
	switch e {
	case Local:
		return 4
	case Workstation:
		return constants.DefaultWorkerCount
	case Cluster:
		return 128
	default:
		return constants.DefaultWorkerCount
	}
}

func (e Environment) String() string {
	switch e {
	case Local:
		return "local"
	case Workstation:
		return "workstation"
	case Cluster:
		return "cluster"
	default:
		return "unknown"
	}
}

// Future is a handle to a task submitted to a Scheduler.
type Future struct {
	done   chan struct{}
	result any
	err    error
}

// Wait blocks until the task completes and returns its result.
func (f *Future) Wait() (any, error) {
	<-f.done
	return f.result, f.err
}

// Scheduler is the external collaborator the core depends on for
// concurrency, implementable by any task executor (a local worker pool, or
// a distributed job dispatcher). The core never sees the concrete type.
type Scheduler interface {
	// Submit runs task asynchronously, bounded by the Scheduler's
	// concurrency limit, and returns a Future for its result.
	Submit(task func() (any, error)) *Future
	// Shutdown blocks until all submitted tasks have completed.
	Shutdown()
}

// poolScheduler is a bounded worker-pool Scheduler, the simplest correct
// implementation suitable for Local and Workstation environments.
type poolScheduler struct {
	sem chan struct{}
	wg  sync.WaitGroup
}

// New creates a Scheduler sized for env's default concurrency.
func New(env Environment) Scheduler {
	return NewWithConcurrency(env.DefaultConcurrency())
}

// NewWithConcurrency creates a Scheduler with an explicit worker-pool size,
// for callers that override the environment default.
func NewWithConcurrency(concurrency int) Scheduler {
	if concurrency < 1 {
		concurrency = 1
	}
	return &poolScheduler{sem: make(chan struct{}, concurrency)}
}

func (p *poolScheduler) Submit(task func() (any, error)) *Future {
	f := &Future{done: make(chan struct{})}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.sem <- struct{}{}
		defer func() { <-p.sem }()
		f.result, f.err = task()
		close(f.done)
	}()
	return f
}

func (p *poolScheduler) Shutdown() {
	p.wg.Wait()
}

// Map runs fn over items using s, bounded by s's concurrency, and returns
// results in the same order as items. It returns the first error
// encountered, after waiting for all in-flight tasks to finish.
func Map[T, R any](s Scheduler, items []T, fn func(T) (R, error)) ([]R, error) {
	futures := make([]*Future, len(items))
	for i, item := range items {
		it := item
		futures[i] = s.Submit(func() (any, error) {
			return fn(it)
		})
	}

	results := make([]R, len(items))
	var firstErr error
	for i, f := range futures {
		res, err := f.Wait()
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if res != nil {
			results[i] = res.(R)
		}
	}
	return results, firstErr
}
