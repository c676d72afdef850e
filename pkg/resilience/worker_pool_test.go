package resilience

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestWorkerPoolExecutesJobs(t *testing.T) {
	pool := NewWorkerPool(3, 6)
	defer pool.Close()

	var count int32
	for i := 0; i < 10; i++ {
		if err := pool.Submit(context.Background(), func() {
			atomic.AddInt32(&count, 1)
		}); err != nil {
			t.Fatalf("submit failed: %v", err)
		}
	}

	pool.Close()
	pool.Wait()

	if got := atomic.LoadInt32(&count); got != 10 {
		t.Fatalf("expected 10 jobs executed, got %d", got)
	}
}

func TestWorkerPoolSubmitAfterClose(t *testing.T) {
	pool := NewWorkerPool(1, 1)
	pool.Close()
	if err := pool.Submit(context.Background(), func() {}); err != ErrWorkerPoolClosed {
		t.Fatalf("expected ErrWorkerPoolClosed, got %v", err)
	}
}

func TestWorkerPoolDoWaitsForResult(t *testing.T) {
	pool := NewWorkerPool(2, 2)
	defer pool.Close()

	var value int32
	if err := pool.Do(context.Background(), func() {
		atomic.StoreInt32(&value, 42)
	}); err != nil {
		t.Fatalf("do failed: %v", err)
	}
	if got := atomic.LoadInt32(&value); got != 42 {
		t.Fatalf("expected job to have run before Do returned, got %d", got)
	}
}

func TestWorkerPoolRecoversPanics(t *testing.T) {
	pool := NewWorkerPool(1, 1)
	defer pool.Close()

	err := pool.Do(context.Background(), func() { panic("boom") })
	if !errors.Is(err, ErrJobPanicked) {
		t.Fatalf("expected ErrJobPanicked, got %v", err)
	}

	// The single worker must still be alive.
	ran := false
	if err := pool.Do(context.Background(), func() { ran = true }); err != nil {
		t.Fatalf("do after panic failed: %v", err)
	}
	if !ran {
		t.Fatal("expected job to run after a panic")
	}
}

func TestWorkerPoolDoHonoursContext(t *testing.T) {
	pool := NewWorkerPool(1, 1)
	defer pool.Close()

	release := make(chan struct{})
	started := make(chan struct{})
	if err := pool.Submit(context.Background(), func() {
		close(started)
		<-release
	}); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := pool.Do(ctx, func() {}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	close(release)
}

func TestWorkerPoolCloseUnblocksSubmit(t *testing.T) {
	pool := NewWorkerPool(1, 1)

	release := make(chan struct{})
	started := make(chan struct{})
	_ = pool.Submit(context.Background(), func() {
		close(started)
		<-release
	})
	<-started
	_ = pool.Submit(context.Background(), func() {}) // fills the queue

	errCh := make(chan error, 1)
	go func() {
		errCh <- pool.Submit(context.Background(), func() {})
	}()

	time.Sleep(10 * time.Millisecond)
	pool.Close()
	if err := <-errCh; err != ErrWorkerPoolClosed {
		t.Fatalf("expected ErrWorkerPoolClosed, got %v", err)
	}
	close(release)
	pool.Wait()
}
