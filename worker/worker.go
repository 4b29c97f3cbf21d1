package worker

import "sync"

// Job is a unit of work run by the pool.
type Job func()

// Pool runs submitted jobs on a fixed set of goroutines. With one worker, jobs
// run in submission order.
type Pool struct {
	jobs       chan Job
	maxWorkers int

	mu      sync.RWMutex
	closed  bool
	started bool
	wg      sync.WaitGroup
}

// New creates a new Pool.
func New(maxWorkers, queueSize int) *Pool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &Pool{
		jobs:       make(chan Job, queueSize),
		maxWorkers: maxWorkers,
	}
}

// Start creates and starts the worker goroutines.
func (p *Pool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.closed {
		return
	}
	p.started = true
	for i := 0; i < p.maxWorkers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// Submit queues a job. It blocks while the queue is full and reports false once
// the pool is stopped.
func (p *Pool) Submit(job Job) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}
	p.jobs <- job
	return true
}

// Stop drains the queue and waits for the workers to finish.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	started := p.started
	p.mu.Unlock()

	if !started {
		for job := range p.jobs {
			job()
		}
		return
	}
	p.wg.Wait()
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for job := range p.jobs {
		job()
	}
}
