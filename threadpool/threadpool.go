// Package threadpool implements the bounded worker pool VFS uses to
// parallelise backend reads. It is the only source of worker parallelism
// inside tilestore; every other concurrent call from a caller is
// unconstrained.
package threadpool

import (
	"fmt"
	"sync"

	"github.com/hupe1980/tilestore/status"
)

// Task is a nullary unit of work submitted to a ThreadPool. Its result is
// opaque to the pool; callers type-assert it out of the returned Handle.
type Task func() (any, error)

// Handle is a completion token returned by Enqueue. It resolves exactly
// once, either to the task's return value or to an error describing why
// the task failed.
type Handle struct {
	done   chan struct{}
	result any
	err    error
}

func newHandle() *Handle {
	return &Handle{done: make(chan struct{})}
}

func (h *Handle) resolve(result any, err error) {
	h.result = result
	h.err = err
	close(h.done)
}

// Wait blocks until the handle resolves and returns its result or error.
func (h *Handle) Wait() (any, error) {
	<-h.done
	return h.result, h.err
}

// Done reports whether the handle has resolved, without blocking.
func (h *Handle) Done() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

type queuedTask struct {
	task   Task
	handle *Handle
}

// ThreadPool is a bounded set of worker goroutines draining a single FIFO
// task queue, guarded by one mutex and one condition variable -- the Go
// analogue of a mutex/condvar worker pool over std::queue.
type ThreadPool struct {
	mu         sync.Mutex
	notEmpty   *sync.Cond
	queueEmpty *sync.Cond
	queue      []queuedTask
	terminate  bool
	numThreads int
	wg         sync.WaitGroup
}

// New starts a ThreadPool with n worker goroutines. n must be >= 1.
func New(n int) *ThreadPool {
	if n < 1 {
		n = 1
	}
	p := &ThreadPool{numThreads: n}
	p.notEmpty = sync.NewCond(&p.mu)
	p.queueEmpty = sync.NewCond(&p.mu)
	p.wg.Add(n)
	for i := 0; i < n; i++ {
		go p.worker()
	}
	return p
}

// NumThreads returns the number of worker goroutines the pool was built
// with.
func (p *ThreadPool) NumThreads() int {
	return p.numThreads
}

// Enqueue pushes task onto the FIFO queue and returns a Handle that
// resolves once some worker has run it. Tasks start in enqueue order;
// completion order is unconstrained.
func (p *ThreadPool) Enqueue(task Task) *Handle {
	h := newHandle()
	p.mu.Lock()
	p.queue = append(p.queue, queuedTask{task: task, handle: h})
	p.mu.Unlock()
	p.notEmpty.Signal()
	return h
}

// Go is a fire-and-forget overload of Enqueue: the task still runs, but
// its result is discarded. Use this when the caller has no use for
// completion status.
func (p *ThreadPool) Go(task Task) {
	p.Enqueue(task)
}

// WaitAll blocks until every handle in handles has resolved and reports
// whether all of them resolved successfully. It is defined only against
// handles obtained strictly before the call; a handle from a concurrently
// racing Enqueue is not covered by this guarantee.
func WaitAll(handles []*Handle) bool {
	ok := true
	for _, h := range handles {
		_, err := h.Wait()
		if err != nil {
			ok = false
		}
	}
	return ok
}

// drain blocks until the task queue is empty. It does not wait for
// in-flight tasks (already popped by a worker) to finish; it only waits
// for the queue slice itself to drain.
func (p *ThreadPool) drain() {
	p.mu.Lock()
	for len(p.queue) > 0 {
		p.queueEmpty.Wait()
	}
	p.mu.Unlock()
}

// Close signals shutdown and joins every worker. It first drains the
// queue (so no task is ever abandoned mid-queue), then flips the
// terminate flag and wakes every worker -- avoiding the livelock where a
// terminate-then-drain ordering could race a concurrent Enqueue into
// losing its wakeup.
func (p *ThreadPool) Close() error {
	p.drain()

	p.mu.Lock()
	p.terminate = true
	p.mu.Unlock()
	p.notEmpty.Broadcast()

	p.wg.Wait()
	return nil
}

func (p *ThreadPool) worker() {
	defer p.wg.Done()
	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.terminate {
			p.notEmpty.Wait()
		}
		if len(p.queue) == 0 && p.terminate {
			p.mu.Unlock()
			return
		}
		qt := p.queue[0]
		p.queue = p.queue[1:]
		if len(p.queue) == 0 {
			p.queueEmpty.Broadcast()
		}
		p.mu.Unlock()

		result, err := runTask(qt.task)
		qt.handle.resolve(result, err)
	}
}

// runTask executes task, converting a panic into a pool-level fault
// status so a misbehaving task never takes down a worker goroutine.
func runTask(task Task) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = status.Wrapf(status.CategoryIOError, fmt.Errorf("%v", r), "threadpool: task panicked")
		}
	}()
	return task()
}
