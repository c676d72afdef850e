package resilience

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/anthanhphan/gosdk/logger"
)

var (
	ErrWorkerPoolClosed = errors.New("worker pool is closed")
	ErrJobPanicked      = errors.New("job panicked")
)

// WorkerPool runs jobs on a fixed set of goroutines fed from a bounded queue.
// A panicking job is recovered and logged; the worker that ran it keeps serving.
type WorkerPool struct {
	jobs   chan func()
	done   chan struct{}
	closed bool
	mu     sync.RWMutex
	once   sync.Once
	wg     sync.WaitGroup
}

func NewWorkerPool(workers, queueSize int) *WorkerPool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = workers
	}

	p := &WorkerPool{
		jobs: make(chan func(), queueSize),
		done: make(chan struct{}),
	}

	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for job := range p.jobs {
				_ = runJob(job)
			}
		}()
	}

	return p
}

// Submit queues job without waiting for it to run. It blocks while the queue
// is full until ctx is done or the pool closes.
func (p *WorkerPool) Submit(ctx context.Context, job func()) error {
	if job == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrWorkerPoolClosed
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.done:
		return ErrWorkerPoolClosed
	case p.jobs <- job:
		return nil
	}
}

// Do runs fn on the pool and waits for it to finish. If ctx ends first Do
// returns ctx.Err(); a job that already started still runs to completion.
func (p *WorkerPool) Do(ctx context.Context, fn func()) error {
	result := make(chan error, 1)
	if err := p.Submit(ctx, func() { result <- runJob(fn) }); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-result:
		return err
	}
}

func (p *WorkerPool) Close() {
	p.once.Do(func() {
		close(p.done)
		p.mu.Lock()
		p.closed = true
		close(p.jobs)
		p.mu.Unlock()
	})
}

func (p *WorkerPool) Wait() {
	p.wg.Wait()
}

func runJob(job func()) (err error) {
	if job == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Errorw("Worker job panicked", "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
			err = fmt.Errorf("%w: %v", ErrJobPanicked, r)
		}
	}()
	job()
	return nil
}
