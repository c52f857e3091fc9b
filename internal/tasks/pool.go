// Package tasks provides a fixed-size pool of workers for background jobs.
package tasks

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrPoolStopped is returned when submitting to a pool that is not running.
var ErrPoolStopped = errors.New("task pool is not running")

// Task is a unit of background work.
type Task func(ctx context.Context) (any, error)

// Result is the outcome of a task.
type Result struct {
	Value any
	Err   error
}

type job struct {
	task   Task
	result chan Result
}

// Config contains pool configuration.
type Config struct {
	NumWorkers int
	QueueSize  int
}

// DefaultConfig returns default pool configuration.
func DefaultConfig() Config {
	return Config{
		NumWorkers: 4,
		QueueSize:  64,
	}
}

// Pool runs submitted tasks on a fixed number of goroutines.
type Pool struct {
	config Config
	jobs   chan job

	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewPool creates a new task pool. Call Start before submitting.
func NewPool(config Config) *Pool {
	if config.NumWorkers <= 0 {
		config.NumWorkers = 1
	}
	return &Pool{
		config: config,
		jobs:   make(chan job, config.QueueSize),
		stopCh: make(chan struct{}),
	}
}

// Start launches worker goroutines.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return
	}
	p.running = true

	slog.Info("starting task pool", "workers", p.config.NumWorkers, "queue_size", p.config.QueueSize)

	for i := 0; i < p.config.NumWorkers; i++ {
		p.wg.Add(1)
		go p.run(ctx)
	}
}

// Stop rejects new tasks and waits for workers to finish their current task.
// Queued tasks that were not started receive ErrPoolStopped.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	close(p.stopCh)
	p.mu.Unlock()

	p.wg.Wait()

	for {
		select {
		case j := <-p.jobs:
			j.result <- Result{Err: ErrPoolStopped}
		default:
			slog.Info("task pool stopped")
			return
		}
	}
}

// Running reports whether the pool accepts tasks.
func (p *Pool) Running() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.running
}

// Submit queues a task. The returned channel receives exactly one result.
func (p *Pool) Submit(ctx context.Context, task Task) (<-chan Result, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.running {
		return nil, ErrPoolStopped
	}

	j := job{task: task, result: make(chan Result, 1)}
	select {
	case p.jobs <- j:
		recordQueued()
		return j.result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *Pool) run(ctx context.Context) {
	defer p.wg.Done()

	for {
		// Stopping takes priority over queued jobs.
		select {
		case <-p.stopCh:
			return
		default:
		}

		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case j := <-p.jobs:
			p.execute(ctx, j)
		}
	}
}

func (p *Pool) execute(ctx context.Context, j job) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("task panicked", "panic", r)
			recordDone("panic")
			j.result <- Result{Err: errors.New("task panicked")}
		}
	}()

	value, err := j.task(ctx)
	if err != nil {
		recordDone("error")
	} else {
		recordDone("success")
	}
	j.result <- Result{Value: value, Err: err}
}
