package asyncdb

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// Result carries the outcome of one offloaded query.
type Result struct {
	Value any
	Err   error
}

// Operation is a blocking query to run on a worker.
type Operation func() (any, error)

// ErrShutDown is returned by Submit after Shutdown.
var ErrShutDown = errors.New("async query pool is shut down")

type job struct {
	op        Operation
	result    chan Result
	onSuccess func(any)
	onError   func(error)
}

// Pool offloads blocking tracking-store queries to background workers so the
// UI thread never blocks. Completion ordering across submissions is not
// guaranteed.
type Pool struct {
	jobChan chan job
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	log     *slog.Logger

	mu     sync.Mutex
	closed bool
}

// NewPool starts workerCount workers (default 2).
func NewPool(workerCount int, log *slog.Logger) *Pool {
	if workerCount <= 0 {
		workerCount = 2
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		jobChan: make(chan job, workerCount*2),
		ctx:     ctx,
		cancel:  cancel,
		log:     log,
	}
	for i := 0; i < workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	return p
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for j := range p.jobChan {
		value, err := j.op()
		if j.result != nil {
			j.result <- Result{Value: value, Err: err}
		}
		if err != nil {
			if j.onError != nil {
				j.onError(err)
			} else if j.result == nil {
				p.log.Warn("async query failed", "worker", id, "error", err)
			}
		} else if j.onSuccess != nil {
			j.onSuccess(value)
		}
	}
}

// Submit schedules op and returns a channel delivering its single Result.
func (p *Pool) Submit(op Operation) (<-chan Result, error) {
	result := make(chan Result, 1)
	if err := p.enqueue(job{op: op, result: result}); err != nil {
		return nil, err
	}
	return result, nil
}

// SubmitWithCallbacks schedules op and invokes onSuccess or onError from a
// worker goroutine. Callers marshal back to their own thread themselves.
func (p *Pool) SubmitWithCallbacks(op Operation, onSuccess func(any), onError func(error)) error {
	return p.enqueue(job{op: op, onSuccess: onSuccess, onError: onError})
}

func (p *Pool) enqueue(j job) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrShutDown
	}
	p.mu.Unlock()

	select {
	case p.jobChan <- j:
		return nil
	case <-p.ctx.Done():
		return ErrShutDown
	}
}

// Shutdown stops accepting work. With wait=true it blocks until queued
// operations finish; otherwise queued work is abandoned.
func (p *Pool) Shutdown(wait bool) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	close(p.jobChan)
	if wait {
		p.wg.Wait()
	}
	p.cancel()
}
