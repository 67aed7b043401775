package worker

import (
	"context"
	"log"
	"sync"
)

type Job func(ctx context.Context)

// Dispatcher runs the asynchronous settlement and payout phases off the
// request path. Jobs are fire-and-forget from the caller's perspective; each
// job owns its own transactions and must converge to a terminal state on its
// own, so a dropped job is recoverable by replaying the original request.
type Dispatcher struct {
	jobs    chan Job
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	stopped chan struct{}
}

func NewDispatcher(workers, queueSize int) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		jobs:    make(chan Job, queueSize),
		ctx:     ctx,
		cancel:  cancel,
		stopped: make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.run()
	}
	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for job := range d.jobs {
		job(d.ctx)
	}
}

// Enqueue hands a job to the worker pool. It must be called only after the
// transaction that created the work has committed. Returns false when the
// queue is full or the dispatcher is shutting down.
func (d *Dispatcher) Enqueue(job Job) bool {
	select {
	case <-d.stopped:
		return false
	default:
	}
	select {
	case d.jobs <- job:
		return true
	default:
		log.Printf("worker queue full, dropping job")
		return false
	}
}

// Stop drains queued jobs, then cancels the worker context and waits for
// in-flight jobs to finish.
func (d *Dispatcher) Stop() {
	close(d.stopped)
	close(d.jobs)
	d.wg.Wait()
	d.cancel()
}
